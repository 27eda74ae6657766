package api

import (
	"net/http"

	"example.com/hydrofarm/services/farm/internal/core"
	"github.com/gin-gonic/gin"
)

func (h *APIHandlers) CreateSensor(c *gin.Context) {
	var in core.CreateSensorInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	sensor, err := h.services.Sensors.CreateSensor(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sensor)
}

func (h *APIHandlers) ListSensors(c *gin.Context) {
	sensors, err := h.services.Sensors.ListSensors(c.Request.Context(), c.Query("device_uid"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sensors)
}

func (h *APIHandlers) GetSensor(c *gin.Context) {
	sensor, err := h.services.Sensors.GetSensor(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sensor)
}

func (h *APIHandlers) UpdateSensor(c *gin.Context) {
	var patch core.SensorPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	sensor, err := h.services.Sensors.UpdateSensor(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sensor)
}

func (h *APIHandlers) DeleteSensor(c *gin.Context) {
	if err := h.services.Sensors.DeleteSensor(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *APIHandlers) IngestReading(c *gin.Context) {
	var in core.IngestReadingInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	reading, err := h.services.Sensors.IngestReading(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, reading)
}

func (h *APIHandlers) QueryReadings(c *gin.Context) {
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

	filter := core.ReadingFilter{
		SensorID:   c.Query("sensor_id"),
		SensorType: core.SensorType(c.Query("sensor_type")),
		DeviceUID:  c.Query("device_uid"),
		StartDate:  startDate,
		EndDate:    endDate,
		MinValue:   queryFloat(c, "min_value"),
		MaxValue:   queryFloat(c, "max_value"),
		Skip:       queryInt(c, "skip", 0),
		Limit:      queryInt(c, "limit", 0),
		SortBy:     c.Query("sort_by"),
		SortAsc:    c.Query("sort_dir") == "asc",
	}

	readings, err := h.services.Sensors.QueryReadings(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, readings)
}

func (h *APIHandlers) LatestReading(c *gin.Context) {
	reading, err := h.services.Sensors.LatestReading(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reading)
}

func (h *APIHandlers) DeleteReading(c *gin.Context) {
	if err := h.services.Sensors.DeleteReading(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *APIHandlers) ReadingStatistics(c *gin.Context) {
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
	if startDate == nil || endDate == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start_date and end_date are required"})
		return
	}

	stats, err := h.services.Sensors.Statistics(c.Request.Context(), c.Param("id"), *startDate, *endDate)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
