package handler

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
)

// DriverHandler serves driver archives to agents. The route is protected by
// agent authentication; operators upload archives out of band into Dir.
type DriverHandler struct {
	Dir string
}

func (h *DriverHandler) Get(c *gin.Context) {
	name := filepath.Base(c.Param("name"))
	if name == "." || name == string(filepath.Separator) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid driver name"})
		return
	}

	path := filepath.Join(h.Dir, name)
	if _, err := os.Stat(path); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Driver artifact not found"})
		return
	}

	c.FileAttachment(path, name)
}

func (h *DriverHandler) List(c *gin.Context) {
	entries, err := os.ReadDir(h.Dir)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"drivers": []gin.H{}})
		return
	}

	drivers := make([]gin.H, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		drivers = append(drivers, gin.H{"name": entry.Name(), "size": info.Size()})
	}
	c.JSON(http.StatusOK, gin.H{"drivers": drivers})
}
