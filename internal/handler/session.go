package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"printfleet/internal/auth"
	"printfleet/internal/hub"
	"printfleet/internal/model"
	"printfleet/internal/protocol"
	"printfleet/internal/store"
	"printfleet/internal/telemetry"
)

// SessionHandler owns the long-lived command channel to a connected agent.
// Commands flow down through the hub; results and telemetry flow back up
// through the read loop here.
type SessionHandler struct {
	Hub         *hub.Hub
	Store       *store.Store
	TokenConfig auth.TokenConfig
	Recorder    *telemetry.Recorder
	Log         zerolog.Logger
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) Write(message []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.conn.WriteMessage(websocket.TextMessage, message)
}

func (w *wsWriter) Close() error {
	return w.conn.Close()
}

func (h *SessionHandler) Serve(c *gin.Context) {
	tokenString := c.Query("token")
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}
	claims, err := auth.VerifyToken(tokenString, h.TokenConfig)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}
	if _, ok := h.Store.GetAgent(claims.AgentID); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unknown agent"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	writer := &wsWriter{conn: ws}
	sess := h.Hub.Register(claims.AgentID, writer)
	defer func() {
		h.Hub.Evict(sess)
		_ = ws.Close()
	}()

	log := h.Log.With().Str("agent_id", claims.AgentID).Logger()
	log.Info().Msg("agent session opened")
	defer log.Info().Msg("agent session closed")

	ws.SetReadLimit(1024 * 1024)
	const pongWait = 60 * time.Second
	const writeWait = 10 * time.Second
	pingPeriod := (pongWait * 9) / 10

	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	done := make(chan struct{})
	var closeOnce sync.Once
	closeDone := func() {
		closeOnce.Do(func() {
			close(done)
		})
	}
	defer closeDone()

	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				deadline := time.Now().Add(writeWait)
				if err := ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					_ = ws.Close()
					return
				}
			}
		}
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}

		env, err := protocol.Decode(data)
		if err != nil {
			msg := "malformed message"
			if errors.Is(err, protocol.ErrUnknownMessageType) {
				msg = err.Error()
			}
			log.Warn().Err(err).Msg("undecodable message on agent session")
			out, _ := json.Marshal(protocol.NewError(msg))
			_ = writer.Write(out)
			continue
		}

		switch env.Type {
		case protocol.TypeHeartbeat:
			now := time.Now()
			sess.Touch(now)
			out, _ := json.Marshal(protocol.HeartbeatResponse{
				Type:      protocol.TypeHeartbeatResponse,
				Status:    "ok",
				Timestamp: now.UnixMilli(),
			})
			_ = writer.Write(out)

		case protocol.TypeInstallationResult:
			var msg protocol.InstallationResult
			if err := json.Unmarshal(env.Payload, &msg); err != nil {
				continue
			}
			h.recordInstallResult(log, msg)

		case protocol.TypeTelemetryReport:
			var msg protocol.TelemetryReport
			if err := json.Unmarshal(env.Payload, &msg); err != nil {
				continue
			}
			h.Recorder.Record(msg.Sample)

		case protocol.TypeError:
			var msg protocol.ErrorMessage
			if err := json.Unmarshal(env.Payload, &msg); err != nil {
				continue
			}
			log.Warn().Str("message", msg.Message).Msg("agent reported error")

		default:
			log.Warn().Str("type", string(env.Type)).Msg("unexpected message on agent session")
		}
	}
}

func (h *SessionHandler) recordInstallResult(log zerolog.Logger, msg protocol.InstallationResult) {
	result := msg.Result
	event := log.Info()
	if !result.Success {
		event = log.Error()
	}
	event.
		Str("request_id", msg.RequestID).
		Str("printer_ip", result.PrinterIP).
		Str("model", result.Model).
		Bool("success", result.Success).
		Str("message", result.Message).
		Msg("installation result")

	if result.Success {
		return
	}
	for _, printer := range h.Store.ListPrinters() {
		if printer.IP == result.PrinterIP {
			h.Store.AppendHistory(printer.ID, model.HistoryErrors, model.HistoryEntry{
				Timestamp: time.Now().UnixMilli(),
				Data:      gin.H{"kind": "installation_failed", "message": result.Message},
			})
			return
		}
	}
}
