package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"printfleet/internal/hub"
	"printfleet/internal/store"
)

type AgentHandler struct {
	Store *store.Store
	Hub   *hub.Hub
}

func (h *AgentHandler) List(c *gin.Context) {
	agents := h.Store.ListAgents()
	resp := make([]gin.H, 0, len(agents))
	for _, a := range agents {
		entry := gin.H{
			"id":         a.ID,
			"hostname":   a.Hostname,
			"os":         a.OS,
			"platform":   a.Platform,
			"systemInfo": a.SystemInfo,
			"createdAt":  a.CreatedAt,
			"updatedAt":  a.UpdatedAt,
			"connected":  false,
		}
		if sess, ok := h.Hub.Lookup(a.ID); ok {
			entry["connected"] = true
			entry["connectedAt"] = sess.ConnectedAt.UnixMilli()
			entry["lastSeen"] = sess.LastSeen().UnixMilli()
		}
		resp = append(resp, entry)
	}
	c.JSON(http.StatusOK, gin.H{"agents": resp})
}

func (h *AgentHandler) Get(c *gin.Context) {
	agentID := c.Param("id")
	a, ok := h.Store.GetAgent(agentID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Agent not found"})
		return
	}

	entry := gin.H{
		"id":         a.ID,
		"hostname":   a.Hostname,
		"os":         a.OS,
		"platform":   a.Platform,
		"systemInfo": a.SystemInfo,
		"createdAt":  a.CreatedAt,
		"updatedAt":  a.UpdatedAt,
		"connected":  false,
	}
	if sess, ok := h.Hub.Lookup(a.ID); ok {
		entry["connected"] = true
		entry["connectedAt"] = sess.ConnectedAt.UnixMilli()
		entry["lastSeen"] = sess.LastSeen().UnixMilli()
	}
	c.JSON(http.StatusOK, gin.H{"agent": entry})
}
