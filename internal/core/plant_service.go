package core

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// PlantService manages the plant catalog. Catalog entries are reference
// data; growing instances live in PlantationService.
type PlantService struct {
	store  DataStore
	logger *logrus.Logger
}

func NewPlantService(store DataStore, logger *logrus.Logger) *PlantService {
	return &PlantService{store: store, logger: logger}
}

// CreatePlantInput carries the fields for a new catalog entry.
type CreatePlantInput struct {
	Name                 string                 `json:"name"`
	ScientificName       string                 `json:"scientific_name"`
	Category             PlantCategory          `json:"category"`
	Description          string                 `json:"description"`
	ImageURL             string                 `json:"image_url"`
	Tags                 []string               `json:"tags"`
	OptimalConditions    OptimalConditions      `json:"optimal_conditions"`
	GrowthCycleDays      *int                   `json:"growth_cycle_days"`
	SpacingCm            *int                   `json:"spacing_cm"`
	NutrientRequirements map[string]interface{} `json:"nutrient_requirements"`
	HarvestInfo          HarvestInfo            `json:"harvest_info"`
	CommonProblems       []string               `json:"common_problems"`
	GrowingTips          []string               `json:"growing_tips"`
}

func (s *PlantService) CreatePlant(ctx context.Context, in CreatePlantInput) (*Plant, error) {
	if in.Name == "" {
		return nil, NewValidationError("name", "name is required")
	}
	if in.ScientificName == "" {
		return nil, NewValidationError("scientific_name", "scientific_name is required")
	}

	category := in.Category
	if category == "" {
		category = CategoryOther
	}
	if !category.Valid() {
		return nil, NewValidationError("category", "unknown plant category %q", category)
	}

	plant := &Plant{
		ID:                   uuid.New().String(),
		Name:                 in.Name,
		ScientificName:       in.ScientificName,
		Category:             category,
		Description:          in.Description,
		ImageURL:             in.ImageURL,
		Tags:                 in.Tags,
		OptimalConditions:    datatypes.NewJSONType(in.OptimalConditions),
		GrowthCycleDays:      in.GrowthCycleDays,
		SpacingCm:            in.SpacingCm,
		NutrientRequirements: in.NutrientRequirements,
		HarvestInfo:          datatypes.NewJSONType(in.HarvestInfo),
		CommonProblems:       in.CommonProblems,
		GrowingTips:          in.GrowingTips,
	}

	if err := s.store.CreatePlant(ctx, plant); err != nil {
		return nil, fmt.Errorf("failed to create plant: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"plant_id": plant.ID,
		"name":     plant.Name,
		"category": plant.Category,
	}).Info("Plant added to catalog")

	return plant, nil
}

func (s *PlantService) GetPlant(ctx context.Context, id string) (*Plant, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidID
	}
	return s.store.GetPlant(ctx, id)
}

// SearchPlants runs a filtered catalog search and returns the page plus the
// total match count.
func (s *PlantService) SearchPlants(ctx context.Context, f PlantFilter) ([]*Plant, int64, error) {
	for _, category := range f.Categories {
		if !category.Valid() {
			return nil, 0, NewValidationError("category", "unknown plant category %q", category)
		}
	}
	return s.store.QueryPlants(ctx, f)
}

// PlantPatch is a partial catalog update.
type PlantPatch struct {
	Name                 *string                `json:"name"`
	ScientificName       *string                `json:"scientific_name"`
	Category             *PlantCategory         `json:"category"`
	Description          *string                `json:"description"`
	ImageURL             *string                `json:"image_url"`
	Tags                 []string               `json:"tags"`
	OptimalConditions    *OptimalConditions     `json:"optimal_conditions"`
	GrowthCycleDays      *int                   `json:"growth_cycle_days"`
	SpacingCm            *int                   `json:"spacing_cm"`
	NutrientRequirements map[string]interface{} `json:"nutrient_requirements"`
	HarvestInfo          *HarvestInfo           `json:"harvest_info"`
	CommonProblems       []string               `json:"common_problems"`
	GrowingTips          []string               `json:"growing_tips"`
}

func (s *PlantService) UpdatePlant(ctx context.Context, id string, patch PlantPatch) (*Plant, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidID
	}

	plant, err := s.store.GetPlant(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		plant.Name = *patch.Name
	}
	if patch.ScientificName != nil {
		plant.ScientificName = *patch.ScientificName
	}
	if patch.Category != nil {
		if !patch.Category.Valid() {
			return nil, NewValidationError("category", "unknown plant category %q", *patch.Category)
		}
		plant.Category = *patch.Category
	}
	if patch.Description != nil {
		plant.Description = *patch.Description
	}
	if patch.ImageURL != nil {
		plant.ImageURL = *patch.ImageURL
	}
	if patch.Tags != nil {
		plant.Tags = patch.Tags
	}
	if patch.OptimalConditions != nil {
		plant.OptimalConditions = datatypes.NewJSONType(*patch.OptimalConditions)
	}
	if patch.GrowthCycleDays != nil {
		plant.GrowthCycleDays = patch.GrowthCycleDays
	}
	if patch.SpacingCm != nil {
		plant.SpacingCm = patch.SpacingCm
	}
	if patch.NutrientRequirements != nil {
		plant.NutrientRequirements = patch.NutrientRequirements
	}
	if patch.HarvestInfo != nil {
		plant.HarvestInfo = datatypes.NewJSONType(*patch.HarvestInfo)
	}
	if patch.CommonProblems != nil {
		plant.CommonProblems = patch.CommonProblems
	}
	if patch.GrowingTips != nil {
		plant.GrowingTips = patch.GrowingTips
	}

	if err := s.store.SavePlant(ctx, plant); err != nil {
		return nil, fmt.Errorf("failed to update plant: %w", err)
	}
	return plant, nil
}

func (s *PlantService) DeletePlant(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidID
	}
	return s.store.DeletePlant(ctx, id)
}

// PlantStats summarizes the catalog and its usage in plantations.
type PlantStats struct {
	Total       int64        `json:"total"`
	ByCategory  []GroupCount `json:"by_category"`
	MostPlanted []PlantUsage `json:"most_planted"`
}

func (s *PlantService) Statistics(ctx context.Context) (*PlantStats, error) {
	byCategory, err := s.store.PlantCategoryCounts(ctx)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, row := range byCategory {
		total += row.Count
	}

	mostPlanted, err := s.store.MostPlantedPlants(ctx, 5)
	if err != nil {
		return nil, err
	}

	return &PlantStats{
		Total:       total,
		ByCategory:  byCategory,
		MostPlanted: mostPlanted,
	}, nil
}
