package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// PlantationService manages growing instances and their history logs.
type PlantationService struct {
	store  DataStore
	logger *logrus.Logger
}

func NewPlantationService(store DataStore, logger *logrus.Logger) *PlantationService {
	return &PlantationService{store: store, logger: logger}
}

// CreatePlantationInput carries the fields for starting a plantation.
type CreatePlantationInput struct {
	PlantID     string                 `json:"plant_id"`
	DeviceID    string                 `json:"device_id"`
	PlantedDate *time.Time             `json:"planted_date"`
	Stage       GrowthStage            `json:"current_stage"`
	Quantity    *int                   `json:"quantity"`
	Location    string                 `json:"location"`
	Notes       string                 `json:"notes"`
	GrowthData  map[string]interface{} `json:"growth_data"`
}

// CreatePlantation starts a plantation. The referenced plant must exist in
// the catalog; the device reference is not checked, devices may be
// registered later.
func (s *PlantationService) CreatePlantation(ctx context.Context, in CreatePlantationInput) (*Plantation, error) {
	if _, err := uuid.Parse(in.PlantID); err != nil {
		return nil, ErrInvalidID
	}
	if in.DeviceID == "" {
		return nil, NewValidationError("device_id", "device_id is required")
	}

	stage := in.Stage
	if stage == "" {
		stage = StageSeedling
	}
	if !stage.Valid() {
		return nil, NewValidationError("current_stage", "unknown growth stage %q", stage)
	}

	exists, err := s.store.PlantExists(ctx, in.PlantID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrPlantNotFound
	}

	plantedDate := time.Now()
	if in.PlantedDate != nil {
		plantedDate = *in.PlantedDate
	}

	plantation := &Plantation{
		ID:                  uuid.New().String(),
		PlantID:             in.PlantID,
		DeviceID:            in.DeviceID,
		PlantedDate:         plantedDate,
		CurrentStage:        stage,
		Status:              PlantationActive,
		Quantity:            in.Quantity,
		Location:            in.Location,
		Notes:               in.Notes,
		GrowthData:          in.GrowthData,
		HarvestData:         map[string]interface{}{},
		GrowthHistory:       []GrowthEntry{},
		Issues:              []IssueEntry{},
		Treatments:          []TreatmentEntry{},
		NutrientAdjustments: []NutrientAdjustment{},
	}
	if plantation.GrowthData == nil {
		plantation.GrowthData = map[string]interface{}{}
	}

	if err := s.store.CreatePlantation(ctx, plantation); err != nil {
		return nil, fmt.Errorf("failed to create plantation: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"plantation_id": plantation.ID,
		"plant_id":      plantation.PlantID,
		"device_id":     plantation.DeviceID,
	}).Info("Plantation started")

	return plantation, nil
}

func (s *PlantationService) GetPlantation(ctx context.Context, id string) (*Plantation, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidID
	}
	return s.store.GetPlantation(ctx, id)
}

func (s *PlantationService) QueryPlantations(ctx context.Context, f PlantationFilter) ([]*Plantation, int64, error) {
	for _, stage := range f.Stages {
		if !stage.Valid() {
			return nil, 0, NewValidationError("current_stage", "unknown growth stage %q", stage)
		}
	}
	for _, status := range f.Statuses {
		if !status.Valid() {
			return nil, 0, NewValidationError("status", "unknown plantation status %q", status)
		}
	}
	return s.store.QueryPlantations(ctx, f)
}

// PlantationPatch is a partial update plus up to one append per history log.
// Appends are applied after the field patch, in a fixed order: growth
// history, issues, treatments, nutrient adjustments. The logs themselves are
// never rewritten.
type PlantationPatch struct {
	CurrentStage  *GrowthStage           `json:"current_stage"`
	Status        *PlantationStatus      `json:"status"`
	HarvestedDate *time.Time             `json:"harvested_date"`
	Quantity      *int                   `json:"quantity"`
	Location      *string                `json:"location"`
	Notes         *string                `json:"notes"`
	GrowthData    map[string]interface{} `json:"growth_data"`
	HarvestData   map[string]interface{} `json:"harvest_data"`

	GrowthEntry        *GrowthEntry        `json:"growth_entry"`
	Issue              *IssueEntry         `json:"issue"`
	Treatment          *TreatmentEntry     `json:"treatment"`
	NutrientAdjustment *NutrientAdjustment `json:"nutrient_adjustment"`
}

// UpdatePlantation applies the patch and appends as one revision. A status
// change to harvested fills harvested_date with now unless the patch carries
// an explicit date; explicit dates are stored verbatim.
func (s *PlantationService) UpdatePlantation(ctx context.Context, id string, patch PlantationPatch) (*Plantation, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidID
	}

	plantation, err := s.store.GetPlantation(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.CurrentStage != nil {
		if !patch.CurrentStage.Valid() {
			return nil, NewValidationError("current_stage", "unknown growth stage %q", *patch.CurrentStage)
		}
		plantation.CurrentStage = *patch.CurrentStage
	}
	if patch.HarvestedDate != nil {
		plantation.HarvestedDate = patch.HarvestedDate
	}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, NewValidationError("status", "unknown plantation status %q", *patch.Status)
		}
		plantation.Status = *patch.Status
		if plantation.Status == PlantationHarvested && plantation.HarvestedDate == nil {
			now := time.Now()
			plantation.HarvestedDate = &now
		}
	}
	if patch.Quantity != nil {
		plantation.Quantity = patch.Quantity
	}
	if patch.Location != nil {
		plantation.Location = *patch.Location
	}
	if patch.Notes != nil {
		plantation.Notes = *patch.Notes
	}
	if patch.GrowthData != nil {
		plantation.GrowthData = patch.GrowthData
	}
	if patch.HarvestData != nil {
		plantation.HarvestData = patch.HarvestData
	}

	if patch.GrowthEntry != nil {
		entry := *patch.GrowthEntry
		if entry.Date.IsZero() {
			entry.Date = time.Now()
		}
		if entry.Stage != "" && !entry.Stage.Valid() {
			return nil, NewValidationError("growth_entry.stage", "unknown growth stage %q", entry.Stage)
		}
		plantation.GrowthHistory = append(plantation.GrowthHistory, entry)
	}
	if patch.Issue != nil {
		entry := *patch.Issue
		if entry.Date.IsZero() {
			entry.Date = time.Now()
		}
		plantation.Issues = append(plantation.Issues, entry)
	}
	if patch.Treatment != nil {
		entry := *patch.Treatment
		if entry.Date.IsZero() {
			entry.Date = time.Now()
		}
		plantation.Treatments = append(plantation.Treatments, entry)
	}
	if patch.NutrientAdjustment != nil {
		entry := *patch.NutrientAdjustment
		if entry.Date.IsZero() {
			entry.Date = time.Now()
		}
		plantation.NutrientAdjustments = append(plantation.NutrientAdjustments, entry)
	}

	if err := s.store.SavePlantation(ctx, plantation); err != nil {
		return nil, fmt.Errorf("failed to update plantation: %w", err)
	}
	return plantation, nil
}

func (s *PlantationService) DeletePlantation(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidID
	}
	return s.store.DeletePlantation(ctx, id)
}

// Statistics reports plantation groupings, optionally narrowed to one device.
func (s *PlantationService) Statistics(ctx context.Context, deviceID string) (*PlantationStats, error) {
	return s.store.PlantationStatistics(ctx, deviceID)
}
