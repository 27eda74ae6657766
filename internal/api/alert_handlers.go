package api

import (
	"net/http"

	"example.com/hydrofarm/services/farm/internal/core"
	"github.com/gin-gonic/gin"
)

func (h *APIHandlers) CreateAlert(c *gin.Context) {
	var in core.CreateAlertInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	alert, err := h.services.Alerts.CreateAlert(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, alert)
}

func (h *APIHandlers) QueryAlerts(c *gin.Context) {
	startDate, err := queryTime(c, "start_date")
	if err != nil {
		h.respondError(c, err)
		return
	}
	endDate, err := queryTime(c, "end_date")
	if err != nil {
		h.respondError(c, err)
		return
	}

	filter := core.AlertFilter{
		SensorID:   c.Query("sensor_id"),
		SensorType: core.SensorType(c.Query("sensor_type")),
		DeviceID:   c.Query("device_id"),
		Severity:   core.AlertSeverity(c.Query("severity")),
		Status:     core.AlertStatus(c.Query("status")),
		StartDate:  startDate,
		EndDate:    endDate,
		Skip:       queryInt(c, "skip", 0),
		Limit:      queryInt(c, "limit", 0),
		SortBy:     c.Query("sort_by"),
		SortAsc:    c.Query("sort_dir") == "asc",
	}

	alerts, err := h.services.Alerts.QueryAlerts(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, alerts)
}

func (h *APIHandlers) GetAlert(c *gin.Context) {
	alert, err := h.services.Alerts.GetAlert(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (h *APIHandlers) UpdateAlert(c *gin.Context) {
	var patch core.AlertPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	alert, err := h.services.Alerts.UpdateAlert(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (h *APIHandlers) DeleteAlert(c *gin.Context) {
	if err := h.services.Alerts.DeleteAlert(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *APIHandlers) AcknowledgeAlert(c *gin.Context) {
	userID := c.GetString("user_id")
	alert, err := h.services.Alerts.Acknowledge(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (h *APIHandlers) ResolveAlert(c *gin.Context) {
	alert, err := h.services.Alerts.Resolve(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (h *APIHandlers) DismissAlert(c *gin.Context) {
	alert, err := h.services.Alerts.Dismiss(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (h *APIHandlers) AlertStatistics(c *gin.Context) {
	startDate, err := queryTime(c, "start_date")
	if err != nil {
		h.respondError(c, err)
		return
	}
	endDate, err := queryTime(c, "end_date")
	if err != nil {
		h.respondError(c, err)
		return
	}

	counts, err := h.services.Alerts.Statistics(c.Request.Context(),
		c.Query("group_by"), c.Query("device_id"), startDate, endDate)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}
