package api

import (
	"net/http"
	"strconv"
	"time"

	"example.com/hydrofarm/services/farm/internal/core"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// APIHandlers holds the services the HTTP layer dispatches to.
type APIHandlers struct {
	services *core.ServiceRegistry
	logger   *logrus.Logger
}

func NewAPIHandlers(services *core.ServiceRegistry, logger *logrus.Logger) *APIHandlers {
	return &APIHandlers{services: services, logger: logger}
}

// HealthCheck reports service liveness.
func (h *APIHandlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

// respondError maps service errors onto HTTP status codes.
func (h *APIHandlers) respondError(c *gin.Context, err error) {
	switch {
	case core.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case core.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case core.IsConflict(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.WithError(err).WithField("path", c.Request.URL.Path).
			Error("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// queryTime parses an RFC3339 timestamp query parameter. A missing parameter
// yields nil; a malformed one yields an error.
func queryTime(c *gin.Context, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, core.NewValidationError(name, "must be an RFC3339 timestamp")
	}
	return &t, nil
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func queryFloat(c *gin.Context, name string) *float64 {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &f
}
