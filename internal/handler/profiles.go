package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"printfleet/internal/model"
	"printfleet/internal/store"
)

type ProfileHandler struct {
	Store *store.Store
}

// Upsert creates or replaces the OID profile for one manufacturer/model
// family. Profiles are keyed by family, so re-posting updates in place.
func (h *ProfileHandler) Upsert(c *gin.Context) {
	var body model.OIDProfile
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if body.Manufacturer == "" || body.ModelFamily == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "manufacturer and modelFamily are required"})
		return
	}

	profile := h.Store.UpsertProfile(body, time.Now().UnixMilli())
	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

func (h *ProfileHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"profiles": h.Store.ListProfiles()})
}

func (h *ProfileHandler) Get(c *gin.Context) {
	profile, ok := h.Store.GetProfile(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Profile not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile})
}
