package core

import (
	"time"

	"gorm.io/datatypes"
)

// SensorType identifies what a sensor measures.
type SensorType string

const (
	SensorTypePH          SensorType = "ph"
	SensorTypeEC          SensorType = "ec"
	SensorTypeTemperature SensorType = "temperature"
	SensorTypeHumidity    SensorType = "humidity"
	SensorTypeLight       SensorType = "light"
	SensorTypeWaterLevel  SensorType = "water_level"
)

// Valid reports whether t is a known sensor type.
func (t SensorType) Valid() bool {
	switch t {
	case SensorTypePH, SensorTypeEC, SensorTypeTemperature,
		SensorTypeHumidity, SensorTypeLight, SensorTypeWaterLevel:
		return true
	}
	return false
}

// AlertSeverity ranks how urgent an alert is.
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

func (s AlertSeverity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// AlertStatus tracks an alert through its lifecycle.
// new -> acknowledged -> resolved, or dismissed from any state.
// Resolved is terminal; a dismissed alert can still be resolved.
type AlertStatus string

const (
	AlertStatusNew          AlertStatus = "new"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusResolved     AlertStatus = "resolved"
	AlertStatusDismissed    AlertStatus = "dismissed"
)

func (s AlertStatus) Valid() bool {
	switch s {
	case AlertStatusNew, AlertStatusAcknowledged, AlertStatusResolved, AlertStatusDismissed:
		return true
	}
	return false
}

// DeviceStatus is the connectivity state of a controller.
type DeviceStatus string

const (
	DeviceStatusOnline      DeviceStatus = "online"
	DeviceStatusOffline     DeviceStatus = "offline"
	DeviceStatusMaintenance DeviceStatus = "maintenance"
	DeviceStatusInactive    DeviceStatus = "inactive"
)

func (s DeviceStatus) Valid() bool {
	switch s {
	case DeviceStatusOnline, DeviceStatusOffline, DeviceStatusMaintenance, DeviceStatusInactive:
		return true
	}
	return false
}

// DeviceType is the controller hardware family.
type DeviceType string

const (
	DeviceTypeESP32       DeviceType = "esp32"
	DeviceTypeRaspberryPi DeviceType = "raspberry_pi"
	DeviceTypeArduino     DeviceType = "arduino"
	DeviceTypeOther       DeviceType = "other"
)

func (t DeviceType) Valid() bool {
	switch t {
	case DeviceTypeESP32, DeviceTypeRaspberryPi, DeviceTypeArduino, DeviceTypeOther:
		return true
	}
	return false
}

// PlantCategory groups catalog plants.
type PlantCategory string

const (
	CategoryLeafyGreens    PlantCategory = "leafy_greens"
	CategoryHerbs          PlantCategory = "herbs"
	CategoryFruiting       PlantCategory = "fruiting"
	CategoryRootVegetables PlantCategory = "root_vegetables"
	CategoryFlowers        PlantCategory = "flowers"
	CategoryOther          PlantCategory = "other"
)

func (c PlantCategory) Valid() bool {
	switch c {
	case CategoryLeafyGreens, CategoryHerbs, CategoryFruiting,
		CategoryRootVegetables, CategoryFlowers, CategoryOther:
		return true
	}
	return false
}

// GrowthStage is a plantation's position in the growth cycle. Stages are
// conventionally monotonic but callers may set any stage directly.
type GrowthStage string

const (
	StageSeedling   GrowthStage = "seedling"
	StageVegetative GrowthStage = "vegetative"
	StageFlowering  GrowthStage = "flowering"
	StageFruiting   GrowthStage = "fruiting"
	StageHarvesting GrowthStage = "harvesting"
)

func (s GrowthStage) Valid() bool {
	switch s {
	case StageSeedling, StageVegetative, StageFlowering, StageFruiting, StageHarvesting:
		return true
	}
	return false
}

// PlantationStatus is the overall outcome state of a plantation.
type PlantationStatus string

const (
	PlantationActive    PlantationStatus = "active"
	PlantationHarvested PlantationStatus = "harvested"
	PlantationFailed    PlantationStatus = "failed"
	PlantationRemoved   PlantationStatus = "removed"
)

func (s PlantationStatus) Valid() bool {
	switch s {
	case PlantationActive, PlantationHarvested, PlantationFailed, PlantationRemoved:
		return true
	}
	return false
}

// ReadingRetention is how long sensor readings are kept before purge.
const ReadingRetention = 30 * 24 * time.Hour

// Sensor is a physical measurement source attached to a device.
type Sensor struct {
	ID           string     `json:"id" gorm:"type:uuid;primaryKey"`
	Name         string     `json:"name" gorm:"not null"`
	Type         SensorType `json:"type" gorm:"index;not null"`
	DeviceUID    string     `json:"device_uid" gorm:"index;not null"`
	Unit         string     `json:"unit" gorm:"not null"`
	Active       bool       `json:"active" gorm:"default:true"`
	MinThreshold *float64   `json:"min_threshold"`
	MaxThreshold *float64   `json:"max_threshold"`
	Description  string     `json:"description"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// SensorReading is one immutable observation. AlertTriggered is computed once
// at ingestion from the sensor's thresholds as they were at that moment;
// later threshold edits never change stored readings.
type SensorReading struct {
	ID             string     `json:"id" gorm:"type:uuid;primaryKey"`
	SensorID       string     `json:"sensor_id" gorm:"type:uuid;index:idx_readings_sensor_ts;not null"`
	SensorType     SensorType `json:"sensor_type" gorm:"index;not null"` // snapshot at write time
	Value          float64    `json:"value" gorm:"not null"`
	Timestamp      time.Time  `json:"timestamp" gorm:"index:idx_readings_sensor_ts;not null"`
	DeviceUID      string     `json:"device_uid" gorm:"index"`
	AlertTriggered bool       `json:"alert_triggered" gorm:"default:false"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Alert is a recorded anomalous condition, derived from a threshold breach or
// created manually by an operator.
type Alert struct {
	ID             string        `json:"id" gorm:"type:uuid;primaryKey"`
	SensorID       string        `json:"sensor_id" gorm:"type:uuid;index;not null"`
	SensorType     SensorType    `json:"sensor_type" gorm:"not null"`
	DeviceID       string        `json:"device_id" gorm:"type:uuid;index;not null"`
	Value          float64       `json:"value" gorm:"not null"`
	Threshold      float64       `json:"threshold" gorm:"not null"`
	Timestamp      time.Time     `json:"timestamp" gorm:"index;not null"`
	Message        string        `json:"message" gorm:"not null"`
	Severity       AlertSeverity `json:"severity" gorm:"index;default:medium"`
	Status         AlertStatus   `json:"status" gorm:"index;default:new"`
	AcknowledgedBy *string       `json:"acknowledged_by" gorm:"type:uuid"`
	AcknowledgedAt *time.Time    `json:"acknowledged_at"`
	ResolvedAt     *time.Time    `json:"resolved_at"`
	Notes          string        `json:"notes"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// Device is a physical controller. DeviceUID is the identifier devices use on
// the wire, distinct from the database id. Configuration keys are free-form
// (pump cadence, light schedule, reporting interval); unknown keys round-trip
// unchanged. SensorIDs is treated as a set.
type Device struct {
	ID              string                      `json:"id" gorm:"type:uuid;primaryKey"`
	Name            string                      `json:"name" gorm:"not null"`
	DeviceUID       string                      `json:"device_uid" gorm:"uniqueIndex;not null"`
	Type            DeviceType                  `json:"type" gorm:"default:esp32"`
	Status          DeviceStatus                `json:"status" gorm:"index;default:offline"`
	Location        string                      `json:"location"`
	Description     string                      `json:"description"`
	LastConnection  *time.Time                  `json:"last_connection"`
	FirmwareVersion string                      `json:"firmware_version"`
	Configuration   datatypes.JSONMap           `json:"configuration" gorm:"type:jsonb"`
	SensorIDs       datatypes.JSONSlice[string] `json:"sensor_ids" gorm:"type:jsonb"`
	CreatedAt       time.Time                   `json:"created_at"`
	UpdatedAt       time.Time                   `json:"updated_at"`
}

// OptimalConditions are the target ranges a plant grows best in.
type OptimalConditions struct {
	PHMin            *float64 `json:"ph_min,omitempty"`
	PHMax            *float64 `json:"ph_max,omitempty"`
	ECMin            *float64 `json:"ec_min,omitempty"`
	ECMax            *float64 `json:"ec_max,omitempty"`
	TemperatureMin   *float64 `json:"temperature_min,omitempty"`
	TemperatureMax   *float64 `json:"temperature_max,omitempty"`
	HumidityMin      *float64 `json:"humidity_min,omitempty"`
	HumidityMax      *float64 `json:"humidity_max,omitempty"`
	LightHoursPerDay *float64 `json:"light_hours_per_day,omitempty"`
	LightIntensity   *float64 `json:"light_intensity,omitempty"`
}

// HarvestInfo describes expected yield and how to harvest.
type HarvestInfo struct {
	ExpectedYieldPerPlant *float64 `json:"expected_yield_per_plant,omitempty"`
	HarvestInstructions   string   `json:"harvest_instructions,omitempty"`
}

// Plant is immutable catalog reference data, not an instance growing in a
// farm. NutrientRequirements maps element name to target ppm.
type Plant struct {
	ID                   string                               `json:"id" gorm:"type:uuid;primaryKey"`
	Name                 string                               `json:"name" gorm:"index;not null"`
	ScientificName       string                               `json:"scientific_name" gorm:"not null"`
	Category             PlantCategory                        `json:"category" gorm:"index;default:other"`
	Description          string                               `json:"description"`
	ImageURL             string                               `json:"image_url"`
	Tags                 datatypes.JSONSlice[string]          `json:"tags" gorm:"type:jsonb"`
	OptimalConditions    datatypes.JSONType[OptimalConditions] `json:"optimal_conditions" gorm:"type:jsonb"`
	GrowthCycleDays      *int                                 `json:"growth_cycle_days"`
	SpacingCm            *int                                 `json:"spacing_cm"`
	NutrientRequirements datatypes.JSONMap                    `json:"nutrient_requirements" gorm:"type:jsonb"`
	HarvestInfo          datatypes.JSONType[HarvestInfo]      `json:"harvest_info" gorm:"type:jsonb"`
	CommonProblems       datatypes.JSONSlice[string]          `json:"common_problems" gorm:"type:jsonb"`
	GrowingTips          datatypes.JSONSlice[string]          `json:"growing_tips" gorm:"type:jsonb"`
	CreatedAt            time.Time                            `json:"created_at"`
	UpdatedAt            time.Time                            `json:"updated_at"`
}

// GrowthEntry is one dated growth observation.
type GrowthEntry struct {
	Date      time.Time   `json:"date"`
	Stage     GrowthStage `json:"stage"`
	HeightCm  *float64    `json:"height_cm,omitempty"`
	WidthCm   *float64    `json:"width_cm,omitempty"`
	LeafCount *int        `json:"leaf_count,omitempty"`
	ImageURL  string      `json:"image_url,omitempty"`
	Notes     string      `json:"notes,omitempty"`
}

// IssueEntry is one dated problem report.
type IssueEntry struct {
	Date            time.Time  `json:"date"`
	Type            string     `json:"type"`
	Description     string     `json:"description"`
	Resolved        bool       `json:"resolved"`
	ResolvedDate    *time.Time `json:"resolved_date,omitempty"`
	ResolutionNotes string     `json:"resolution_notes,omitempty"`
	ImageURL        string     `json:"image_url,omitempty"`
}

// TreatmentEntry is one dated intervention.
type TreatmentEntry struct {
	Date        time.Time `json:"date"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Dosage      string    `json:"dosage,omitempty"`
	Notes       string    `json:"notes,omitempty"`
}

// NutrientAdjustment is one dated change to the nutrient mix. Adjustments
// maps element name to the applied delta.
type NutrientAdjustment struct {
	Date        time.Time          `json:"date"`
	Adjustments map[string]float64 `json:"adjustments"`
	Reason      string             `json:"reason,omitempty"`
	Notes       string             `json:"notes,omitempty"`
}

// Plantation is one concrete instance of a Plant growing on a Device. The
// four history slices are append-only: updates may append one entry each,
// never rewrite or truncate. GrowthData keys: height_cm, width_cm,
// leaf_count, stem_diameter_mm, root_length_cm; unknown keys round-trip.
type Plantation struct {
	ID                  string                                  `json:"id" gorm:"type:uuid;primaryKey"`
	PlantID             string                                  `json:"plant_id" gorm:"type:uuid;index;not null"`
	DeviceID            string                                  `json:"device_id" gorm:"type:uuid;index;not null"`
	PlantedDate         time.Time                               `json:"planted_date" gorm:"index;not null"`
	HarvestedDate       *time.Time                              `json:"harvested_date" gorm:"index"`
	CurrentStage        GrowthStage                             `json:"current_stage" gorm:"index;default:seedling"`
	Status              PlantationStatus                        `json:"status" gorm:"index;default:active"`
	Quantity            *int                                    `json:"quantity"`
	Location            string                                  `json:"location"`
	Notes               string                                  `json:"notes"`
	GrowthData          datatypes.JSONMap                       `json:"growth_data" gorm:"type:jsonb"`
	HarvestData         datatypes.JSONMap                       `json:"harvest_data" gorm:"type:jsonb"`
	GrowthHistory       datatypes.JSONSlice[GrowthEntry]        `json:"growth_history" gorm:"type:jsonb"`
	Issues              datatypes.JSONSlice[IssueEntry]         `json:"issues" gorm:"type:jsonb"`
	Treatments          datatypes.JSONSlice[TreatmentEntry]     `json:"treatments" gorm:"type:jsonb"`
	NutrientAdjustments datatypes.JSONSlice[NutrientAdjustment] `json:"nutrient_adjustments" gorm:"type:jsonb"`
	CreatedAt           time.Time                               `json:"created_at"`
	UpdatedAt           time.Time                               `json:"updated_at"`
}

// User is an operator account.
type User struct {
	ID             string     `json:"id" gorm:"type:uuid;primaryKey"`
	FullName       string     `json:"full_name" gorm:"not null"`
	Email          string     `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash   string     `json:"-" gorm:"not null"`
	ProfilePicture string     `json:"profile_picture"`
	EmailVerified  bool       `json:"email_verified" gorm:"default:false"`
	OTP            string     `json:"-"`
	OTPExpires     *time.Time `json:"-"`
	ResetToken     string     `json:"-"`
	ResetExpires   *time.Time `json:"-"`
	Role           string     `json:"role" gorm:"default:user"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TableName overrides for GORM
func (Sensor) TableName() string        { return "sensors" }
func (SensorReading) TableName() string { return "sensor_readings" }
func (Alert) TableName() string         { return "alerts" }
func (Device) TableName() string        { return "devices" }
func (Plant) TableName() string         { return "plants" }
func (Plantation) TableName() string    { return "plantations" }
func (User) TableName() string          { return "users" }
