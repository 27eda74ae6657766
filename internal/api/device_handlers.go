package api

import (
	"net/http"

	"example.com/hydrofarm/services/farm/internal/core"
	"github.com/gin-gonic/gin"
)

func (h *APIHandlers) CreateDevice(c *gin.Context) {
	var in core.CreateDeviceInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	device, err := h.services.Devices.CreateDevice(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, device)
}

func (h *APIHandlers) ListDevices(c *gin.Context) {
	devices, err := h.services.Devices.ListDevices(c.Request.Context(),
		core.DeviceStatus(c.Query("status")))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, devices)
}

func (h *APIHandlers) GetDevice(c *gin.Context) {
	device, err := h.services.Devices.GetDevice(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, device)
}

func (h *APIHandlers) GetDeviceByUID(c *gin.Context) {
	device, err := h.services.Devices.GetDeviceByUID(c.Request.Context(), c.Param("uid"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, device)
}

func (h *APIHandlers) UpdateDevice(c *gin.Context) {
	var patch core.DevicePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	device, err := h.services.Devices.UpdateDevice(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, device)
}

func (h *APIHandlers) DeleteDevice(c *gin.Context) {
	if err := h.services.Devices.DeleteDevice(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *APIHandlers) UpdateDeviceStatus(c *gin.Context) {
	var body struct {
		Status core.DeviceStatus `json:"status"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	device, err := h.services.Devices.UpdateStatus(c.Request.Context(), c.Param("id"), body.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, device)
}

func (h *APIHandlers) AddDeviceSensor(c *gin.Context) {
	device, err := h.services.Devices.AddSensor(c.Request.Context(), c.Param("id"), c.Param("sensorId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, device)
}

func (h *APIHandlers) RemoveDeviceSensor(c *gin.Context) {
	device, err := h.services.Devices.RemoveSensor(c.Request.Context(), c.Param("id"), c.Param("sensorId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, device)
}

func (h *APIHandlers) UpdateDeviceConfiguration(c *gin.Context) {
	var updates map[string]interface{}
	if err := c.ShouldBindJSON(&updates); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	device, err := h.services.Devices.MergeConfiguration(c.Request.Context(), c.Param("id"), updates)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, device)
}
