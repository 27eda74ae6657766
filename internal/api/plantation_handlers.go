package api

import (
	"net/http"

	"example.com/hydrofarm/services/farm/internal/core"
	"github.com/gin-gonic/gin"
)

func (h *APIHandlers) CreatePlantation(c *gin.Context) {
	var in core.CreatePlantationInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	plantation, err := h.services.Plantations.CreatePlantation(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, plantation)
}

func (h *APIHandlers) QueryPlantations(c *gin.Context) {
	plantedAfter, err := queryTime(c, "planted_after")
	if err != nil {
		h.respondError(c, err)
		return
	}
	plantedBefore, err := queryTime(c, "planted_before")
	if err != nil {
		h.respondError(c, err)
		return
	}
	harvestedAfter, err := queryTime(c, "harvested_after")
	if err != nil {
		h.respondError(c, err)
		return
	}
	harvestedBefore, err := queryTime(c, "harvested_before")
	if err != nil {
		h.respondError(c, err)
		return
	}

	filter := core.PlantationFilter{
		PlantID:         c.Query("plant_id"),
		DeviceID:        c.Query("device_id"),
		PlantedAfter:    plantedAfter,
		PlantedBefore:   plantedBefore,
		HarvestedAfter:  harvestedAfter,
		HarvestedBefore: harvestedBefore,
		Location:        c.Query("location"),
		Page:            queryInt(c, "page", 1),
		Limit:           queryInt(c, "limit", 10),
		SortBy:          c.Query("sort_by"),
		SortAsc:         c.Query("sort_dir") == "asc",
	}
	for _, raw := range splitParam(c.Query("stages")) {
		filter.Stages = append(filter.Stages, core.GrowthStage(raw))
	}
	for _, raw := range splitParam(c.Query("statuses")) {
		filter.Statuses = append(filter.Statuses, core.PlantationStatus(raw))
	}

	plantations, total, err := h.services.Plantations.QueryPlantations(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"items": plantations,
		"total": total,
		"page":  filter.Page,
		"limit": filter.Limit,
	})
}

func (h *APIHandlers) GetPlantation(c *gin.Context) {
	plantation, err := h.services.Plantations.GetPlantation(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, plantation)
}

func (h *APIHandlers) UpdatePlantation(c *gin.Context) {
	var patch core.PlantationPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	plantation, err := h.services.Plantations.UpdatePlantation(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, plantation)
}

func (h *APIHandlers) DeletePlantation(c *gin.Context) {
	if err := h.services.Plantations.DeletePlantation(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *APIHandlers) PlantationStatistics(c *gin.Context) {
	stats, err := h.services.Plantations.Statistics(c.Request.Context(), c.Query("device_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *APIHandlers) SystemOverview(c *gin.Context) {
	overview, err := h.services.Stats.Overview(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, overview)
}

func (h *APIHandlers) DeviceStatistics(c *gin.Context) {
	stats, err := h.services.Stats.DeviceStatistics(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *APIHandlers) GrowthPerformance(c *gin.Context) {
	report, err := h.services.Stats.GrowthPerformance(c.Request.Context(), c.Query("period"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
