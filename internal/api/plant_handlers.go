package api

import (
	"net/http"
	"strings"

	"example.com/hydrofarm/services/farm/internal/core"
	"github.com/gin-gonic/gin"
)

func (h *APIHandlers) CreatePlant(c *gin.Context) {
	var in core.CreatePlantInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	plant, err := h.services.Plants.CreatePlant(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, plant)
}

func (h *APIHandlers) SearchPlants(c *gin.Context) {
	filter := core.PlantFilter{
		Search:  c.Query("search"),
		Tags:    splitParam(c.Query("tags")),
		Page:    queryInt(c, "page", 1),
		Limit:   queryInt(c, "limit", 10),
		SortBy:  c.Query("sort_by"),
		SortAsc: c.Query("sort_dir") != "desc",
	}
	for _, raw := range splitParam(c.Query("categories")) {
		filter.Categories = append(filter.Categories, core.PlantCategory(raw))
	}
	if max := queryInt(c, "max_growth_cycle_days", 0); max > 0 {
		filter.GrowthCycleDaysMax = &max
	}

	plants, total, err := h.services.Plants.SearchPlants(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"items": plants,
		"total": total,
		"page":  filter.Page,
		"limit": filter.Limit,
	})
}

func (h *APIHandlers) GetPlant(c *gin.Context) {
	plant, err := h.services.Plants.GetPlant(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, plant)
}

func (h *APIHandlers) UpdatePlant(c *gin.Context) {
	var patch core.PlantPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	plant, err := h.services.Plants.UpdatePlant(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, plant)
}

func (h *APIHandlers) DeletePlant(c *gin.Context) {
	if err := h.services.Plants.DeletePlant(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *APIHandlers) PlantStatistics(c *gin.Context) {
	stats, err := h.services.Plants.Statistics(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// splitParam parses a comma-separated query value into its parts.
func splitParam(raw string) []string {
	if raw == "" {
		return nil
	}
	var parts []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
