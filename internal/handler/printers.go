package handler

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"printfleet/internal/model"
	"printfleet/internal/protocol"
	"printfleet/internal/queue"
	"printfleet/internal/store"
	"printfleet/internal/telemetry"
)

// PrinterHandler exposes the fleet inventory plus the two command triggers:
// driver installation and an on-demand poll. Triggers only enqueue; delivery
// happens on the dispatcher.
type PrinterHandler struct {
	Store     *store.Store
	Queue     *queue.Queue
	DriverDir string
}

type createPrinterBody struct {
	AgentID      string `json:"agentId"`
	IP           string `json:"ip"`
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	SerialNumber string `json:"serialNumber"`
	ProfileID    string `json:"profileId"`
}

func (h *PrinterHandler) Create(c *gin.Context) {
	var body createPrinterBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if body.AgentID == "" || body.IP == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "agentId and ip are required"})
		return
	}
	if _, ok := h.Store.GetAgent(body.AgentID); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Agent not found"})
		return
	}

	now := time.Now().UnixMilli()
	printer := h.Store.CreatePrinter(model.Printer{
		AgentID:      body.AgentID,
		IP:           body.IP,
		Manufacturer: body.Manufacturer,
		Model:        body.Model,
		SerialNumber: body.SerialNumber,
		ProfileID:    body.ProfileID,
	}, now)

	c.JSON(http.StatusOK, gin.H{"printer": printer})
}

func (h *PrinterHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"printers": h.Store.ListPrinters()})
}

func (h *PrinterHandler) Get(c *gin.Context) {
	printer, ok := h.Store.GetPrinter(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Printer not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"printer": printer})
}

type installBody struct {
	DriverName string `json:"driverName"`
}

// Install enqueues a high-priority provisioning command for the printer's
// agent. The driver artifact must already be present in the server's driver
// directory; the agent fetches it back over HTTP with its own token.
func (h *PrinterHandler) Install(c *gin.Context) {
	printer, ok := h.Store.GetPrinter(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Printer not found"})
		return
	}

	var body installBody
	if err := c.ShouldBindJSON(&body); err != nil || body.DriverName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "driverName is required"})
		return
	}

	name := filepath.Base(body.DriverName)
	info, err := os.Stat(filepath.Join(h.DriverDir, name))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Driver artifact not found"})
		return
	}

	requestID := uuid.NewString()
	h.Queue.Enqueue(queue.Command{
		Kind:     protocol.TypeInstallPrinter,
		Priority: queue.PriorityHigh,
		AgentID:  printer.AgentID,
		Payload: protocol.InstallPrinter{
			Type:         protocol.TypeInstallPrinter,
			RequestID:    requestID,
			PrinterIP:    printer.IP,
			Manufacturer: printer.Manufacturer,
			Model:        printer.Model,
			DriverURL:    driverURL(c, name),
			DriverName:   name,
			DriverSize:   info.Size(),
		},
	})

	c.JSON(http.StatusAccepted, gin.H{"requestId": requestID})
}

// Poll enqueues an on-demand telemetry poll ahead of the background schedule.
func (h *PrinterHandler) Poll(c *gin.Context) {
	printer, ok := h.Store.GetPrinter(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Printer not found"})
		return
	}

	profile, err := h.Store.ProfileForPrinter(printer.ID)
	if err != nil {
		if !errors.Is(err, store.ErrProfileNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		profile = telemetry.DefaultProfile()
	}

	requestID := uuid.NewString()
	h.Queue.Enqueue(queue.Command{
		Kind:     protocol.TypePollPrinter,
		Priority: queue.PriorityMedium,
		AgentID:  printer.AgentID,
		Payload: protocol.PollPrinter{
			Type:      protocol.TypePollPrinter,
			RequestID: requestID,
			PrinterID: printer.ID,
			PrinterIP: printer.IP,
			Profile:   profile,
		},
	})

	c.JSON(http.StatusAccepted, gin.H{"requestId": requestID})
}

func (h *PrinterHandler) Telemetry(c *gin.Context) {
	printerID := c.Param("id")
	if _, ok := h.Store.GetPrinter(printerID); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Printer not found"})
		return
	}

	sample, ok := h.Store.GetSample(printerID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "No telemetry recorded yet"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"telemetry": sample})
}

var historyCategories = map[model.HistoryCategory]struct{}{
	model.HistoryCounters:      {},
	model.HistorySupplies:      {},
	model.HistoryErrors:        {},
	model.HistoryStatusChanges: {},
}

func (h *PrinterHandler) History(c *gin.Context) {
	printerID := c.Param("id")
	if _, ok := h.Store.GetPrinter(printerID); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Printer not found"})
		return
	}

	category := model.HistoryCategory(c.Query("category"))
	if _, ok := historyCategories[category]; !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid history category"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"category": category,
		"entries":  h.Store.History(printerID, category),
	})
}

func driverURL(c *gin.Context, name string) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/v1/drivers/%s", scheme, c.Request.Host, name)
}
