package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

func jsonArray(values ...string) string {
	b, _ := json.Marshal(values)
	return string(b)
}

// ReadingFilter narrows a sensor-reading query. Nil/zero fields impose no
// constraint. Limit defaults to 100, sort to descending timestamp.
type ReadingFilter struct {
	SensorID   string
	SensorType SensorType
	DeviceUID  string
	StartDate  *time.Time
	EndDate    *time.Time
	MinValue   *float64
	MaxValue   *float64
	Skip       int
	Limit      int
	SortBy     string
	SortAsc    bool
}

// AlertFilter narrows an alert query. Limit defaults to 20.
type AlertFilter struct {
	SensorID   string
	SensorType SensorType
	DeviceID   string
	Severity   AlertSeverity
	Status     AlertStatus
	StartDate  *time.Time
	EndDate    *time.Time
	Skip       int
	Limit      int
	SortBy     string
	SortAsc    bool
}

// PlantFilter narrows a plant catalog search.
type PlantFilter struct {
	Search             string
	Categories         []PlantCategory
	Tags               []string
	GrowthCycleDaysMax *int
	Page               int
	Limit              int
	SortBy             string
	SortAsc            bool
}

// PlantationFilter narrows a plantation query.
type PlantationFilter struct {
	PlantID         string
	DeviceID        string
	Stages          []GrowthStage
	Statuses        []PlantationStatus
	PlantedAfter    *time.Time
	PlantedBefore   *time.Time
	HarvestedAfter  *time.Time
	HarvestedBefore *time.Time
	Location        string
	Page            int
	Limit           int
	SortBy          string
	SortAsc         bool
}

// ReadingStats is the aggregate over a sensor's readings in a window.
type ReadingStats struct {
	AvgValue   float64 `json:"avg_value"`
	MinValue   float64 `json:"min_value"`
	MaxValue   float64 `json:"max_value"`
	Count      int64   `json:"count"`
	AlertCount int64   `json:"alert_count"`
}

// GroupCount is one grouped-count row (status, category, stage, severity...).
type GroupCount struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// MonthCount is a calendar-month bucketed count.
type MonthCount struct {
	Year  int   `json:"year"`
	Month int   `json:"month"`
	Count int64 `json:"count"`
}

// PlantUsage counts how often a catalog plant appears in plantations.
type PlantUsage struct {
	PlantID  string `json:"plant_id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

// PlantationStats is the full grouping report for plantations.
type PlantationStats struct {
	Total             int64            `json:"total"`
	ByStatus          map[string]int64 `json:"by_status"`
	ByPlantCategory   map[string]int64 `json:"by_plant_category"`
	ByGrowthStage     map[string]int64 `json:"by_growth_stage"`
	PlantedPerMonth   []MonthCount     `json:"planted_per_month"`
	HarvestedPerMonth []MonthCount     `json:"harvested_per_month"`
}

// DeviceLeader is one row in a top-devices ranking. Name and Location are
// blank when the referenced device no longer exists.
type DeviceLeader struct {
	DeviceID string `json:"device_id"`
	Name     string `json:"name"`
	Location string `json:"location"`
	Count    int64  `json:"count"`
}

// DeviceStats groups controllers by status and ranks the busiest ones.
type DeviceStats struct {
	ByStatus        map[string]int64 `json:"by_status"`
	MostSensors     []DeviceLeader   `json:"most_sensors"`
	MostAlerts      []DeviceLeader   `json:"most_alerts"`
	MostPlantations []DeviceLeader   `json:"most_plantations"`
}

// CategoryHarvest aggregates harvest outcomes for one plant category.
// AvgCycleDays covers harvested plantations with a harvest date only.
type CategoryHarvest struct {
	Category     string  `json:"category"`
	Total        int64   `json:"total"`
	Harvested    int64   `json:"harvested"`
	Failed       int64   `json:"failed"`
	SuccessRate  float64 `json:"success_rate" gorm:"-"`
	AvgCycleDays float64 `json:"avg_cycle_days"`
}

// ResolutionTimeStats summarizes how long resolved alerts stayed open.
type ResolutionTimeStats struct {
	AvgHours float64 `json:"avg_hours"`
	MinHours float64 `json:"min_hours"`
	MaxHours float64 `json:"max_hours"`
	Count    int64   `json:"count"`
}

// GrowthPerformance is the growing-outcome report over one period.
// AlertResolution is nil when no alert was resolved in the period.
type GrowthPerformance struct {
	ByCategory      []CategoryHarvest    `json:"by_category"`
	AlertResolution *ResolutionTimeStats `json:"alert_resolution"`
}

// SystemOverview is the cross-entity count snapshot.
type SystemOverview struct {
	TotalDevices      int64 `json:"total_devices"`
	TotalSensors      int64 `json:"total_sensors"`
	TotalAlerts       int64 `json:"total_alerts"`
	TotalPlants       int64 `json:"total_plants"`
	TotalPlantations  int64 `json:"total_plantations"`
	OnlineDevices     int64 `json:"online_devices"`
	ActivePlantations int64 `json:"active_plantations"`
	OpenAlerts        int64 `json:"open_alerts"`
}

// DataStore defines the interface for data access operations.
type DataStore interface {
	// Sensor operations
	CreateSensor(ctx context.Context, sensor *Sensor) error
	GetSensor(ctx context.Context, id string) (*Sensor, error)
	ListSensors(ctx context.Context, deviceUID string) ([]*Sensor, error)
	SaveSensor(ctx context.Context, sensor *Sensor) error
	DeleteSensor(ctx context.Context, id string) error

	// Reading operations
	CreateReading(ctx context.Context, reading *SensorReading) error
	QueryReadings(ctx context.Context, f ReadingFilter) ([]*SensorReading, error)
	LatestReading(ctx context.Context, sensorID string) (*SensorReading, error)
	DeleteReading(ctx context.Context, id string) error
	DeleteReadingsBySensor(ctx context.Context, sensorID string) error
	PurgeReadingsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	ReadingStatistics(ctx context.Context, sensorID string, start, end time.Time) (*ReadingStats, error)

	// Alert operations
	CreateAlert(ctx context.Context, alert *Alert) error
	GetAlert(ctx context.Context, id string) (*Alert, error)
	QueryAlerts(ctx context.Context, f AlertFilter) ([]*Alert, error)
	SaveAlert(ctx context.Context, alert *Alert) error
	DeleteAlert(ctx context.Context, id string) error
	AlertGroupCounts(ctx context.Context, groupBy, deviceID string, start, end *time.Time) ([]GroupCount, error)

	// Device operations
	CreateDevice(ctx context.Context, device *Device) error
	GetDevice(ctx context.Context, id string) (*Device, error)
	GetDeviceByUID(ctx context.Context, uid string) (*Device, error)
	ListDevices(ctx context.Context, status DeviceStatus) ([]*Device, error)
	SaveDevice(ctx context.Context, device *Device) error
	DeleteDevice(ctx context.Context, id string) error

	// Plant operations
	CreatePlant(ctx context.Context, plant *Plant) error
	GetPlant(ctx context.Context, id string) (*Plant, error)
	PlantExists(ctx context.Context, id string) (bool, error)
	QueryPlants(ctx context.Context, f PlantFilter) ([]*Plant, int64, error)
	SavePlant(ctx context.Context, plant *Plant) error
	DeletePlant(ctx context.Context, id string) error
	PlantCategoryCounts(ctx context.Context) ([]GroupCount, error)
	MostPlantedPlants(ctx context.Context, limit int) ([]PlantUsage, error)

	// Plantation operations
	CreatePlantation(ctx context.Context, plantation *Plantation) error
	GetPlantation(ctx context.Context, id string) (*Plantation, error)
	QueryPlantations(ctx context.Context, f PlantationFilter) ([]*Plantation, int64, error)
	SavePlantation(ctx context.Context, plantation *Plantation) error
	DeletePlantation(ctx context.Context, id string) error
	PlantationStatistics(ctx context.Context, deviceID string) (*PlantationStats, error)

	// User operations
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	SaveUser(ctx context.Context, user *User) error

	// Aggregates
	Overview(ctx context.Context) (*SystemOverview, error)
	DeviceStatistics(ctx context.Context) (*DeviceStats, error)
	HarvestSuccessByCategory(ctx context.Context, since time.Time) ([]CategoryHarvest, error)
	AlertResolutionTime(ctx context.Context, since time.Time) (*ResolutionTimeStats, error)

	// Transaction support
	WithTransaction(ctx context.Context, fn func(context.Context, DataStore) error) error
}

type dataStore struct {
	db *gorm.DB
}

// NewDataStore wraps a gorm connection in the DataStore interface.
func NewDataStore(db *gorm.DB) DataStore {
	return &dataStore{db: db}
}

func (s *dataStore) WithTransaction(ctx context.Context, fn func(context.Context, DataStore) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(ctx, NewDataStore(tx))
	})
}

func notFound(err, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}

// --- Sensors ---

func (s *dataStore) CreateSensor(ctx context.Context, sensor *Sensor) error {
	return s.db.WithContext(ctx).Create(sensor).Error
}

func (s *dataStore) GetSensor(ctx context.Context, id string) (*Sensor, error) {
	var sensor Sensor
	if err := s.db.WithContext(ctx).First(&sensor, "id = ?", id).Error; err != nil {
		return nil, notFound(err, ErrSensorNotFound)
	}
	return &sensor, nil
}

func (s *dataStore) ListSensors(ctx context.Context, deviceUID string) ([]*Sensor, error) {
	var sensors []*Sensor
	q := s.db.WithContext(ctx)
	if deviceUID != "" {
		q = q.Where("device_uid = ?", deviceUID)
	}
	return sensors, q.Order("created_at DESC").Find(&sensors).Error
}

func (s *dataStore) SaveSensor(ctx context.Context, sensor *Sensor) error {
	return s.db.WithContext(ctx).Save(sensor).Error
}

func (s *dataStore) DeleteSensor(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&Sensor{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSensorNotFound
	}
	return nil
}

// --- Readings ---

// readingSortColumns whitelists sortable columns to keep user-supplied sort
// fields out of the SQL.
var readingSortColumns = map[string]string{
	"timestamp":   "timestamp",
	"value":       "value",
	"sensor_type": "sensor_type",
	"device_uid":  "device_uid",
	"created_at":  "created_at",
}

func (s *dataStore) CreateReading(ctx context.Context, reading *SensorReading) error {
	return s.db.WithContext(ctx).Create(reading).Error
}

func (s *dataStore) QueryReadings(ctx context.Context, f ReadingFilter) ([]*SensorReading, error) {
	q := s.db.WithContext(ctx).Model(&SensorReading{})

	if f.SensorID != "" {
		q = q.Where("sensor_id = ?", f.SensorID)
	}
	if f.SensorType != "" {
		q = q.Where("sensor_type = ?", f.SensorType)
	}
	if f.DeviceUID != "" {
		q = q.Where("device_uid = ?", f.DeviceUID)
	}
	if f.StartDate != nil {
		q = q.Where("timestamp >= ?", *f.StartDate)
	}
	if f.EndDate != nil {
		q = q.Where("timestamp <= ?", *f.EndDate)
	}
	if f.MinValue != nil {
		q = q.Where("value >= ?", *f.MinValue)
	}
	if f.MaxValue != nil {
		q = q.Where("value <= ?", *f.MaxValue)
	}

	column, ok := readingSortColumns[f.SortBy]
	if !ok {
		column = "timestamp"
	}
	dir := "DESC"
	if f.SortAsc {
		dir = "ASC"
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	var readings []*SensorReading
	err := q.Order(fmt.Sprintf("%s %s", column, dir)).
		Offset(f.Skip).
		Limit(limit).
		Find(&readings).Error
	return readings, err
}

func (s *dataStore) LatestReading(ctx context.Context, sensorID string) (*SensorReading, error) {
	var reading SensorReading
	err := s.db.WithContext(ctx).
		Where("sensor_id = ?", sensorID).
		Order("timestamp DESC").
		First(&reading).Error
	if err != nil {
		return nil, notFound(err, ErrReadingNotFound)
	}
	return &reading, nil
}

func (s *dataStore) DeleteReading(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&SensorReading{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrReadingNotFound
	}
	return nil
}

func (s *dataStore) DeleteReadingsBySensor(ctx context.Context, sensorID string) error {
	return s.db.WithContext(ctx).Delete(&SensorReading{}, "sensor_id = ?", sensorID).Error
}

func (s *dataStore) PurgeReadingsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Delete(&SensorReading{}, "timestamp < ?", cutoff)
	return res.RowsAffected, res.Error
}

func (s *dataStore) ReadingStatistics(ctx context.Context, sensorID string, start, end time.Time) (*ReadingStats, error) {
	var stats ReadingStats
	err := s.db.WithContext(ctx).Model(&SensorReading{}).
		Select(`COALESCE(AVG(value), 0) AS avg_value,
			COALESCE(MIN(value), 0) AS min_value,
			COALESCE(MAX(value), 0) AS max_value,
			COUNT(*) AS count,
			COALESCE(SUM(CASE WHEN alert_triggered THEN 1 ELSE 0 END), 0) AS alert_count`).
		Where("sensor_id = ? AND timestamp >= ? AND timestamp <= ?", sensorID, start, end).
		Scan(&stats).Error
	return &stats, err
}

// --- Alerts ---

var alertSortColumns = map[string]string{
	"timestamp":  "timestamp",
	"value":      "value",
	"severity":   "severity",
	"status":     "status",
	"created_at": "created_at",
}

func (s *dataStore) CreateAlert(ctx context.Context, alert *Alert) error {
	return s.db.WithContext(ctx).Create(alert).Error
}

func (s *dataStore) GetAlert(ctx context.Context, id string) (*Alert, error) {
	var alert Alert
	if err := s.db.WithContext(ctx).First(&alert, "id = ?", id).Error; err != nil {
		return nil, notFound(err, ErrAlertNotFound)
	}
	return &alert, nil
}

func (s *dataStore) QueryAlerts(ctx context.Context, f AlertFilter) ([]*Alert, error) {
	q := s.db.WithContext(ctx).Model(&Alert{})

	if f.SensorID != "" {
		q = q.Where("sensor_id = ?", f.SensorID)
	}
	if f.SensorType != "" {
		q = q.Where("sensor_type = ?", f.SensorType)
	}
	if f.DeviceID != "" {
		q = q.Where("device_id = ?", f.DeviceID)
	}
	if f.Severity != "" {
		q = q.Where("severity = ?", f.Severity)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.StartDate != nil {
		q = q.Where("timestamp >= ?", *f.StartDate)
	}
	if f.EndDate != nil {
		q = q.Where("timestamp <= ?", *f.EndDate)
	}

	column, ok := alertSortColumns[f.SortBy]
	if !ok {
		column = "timestamp"
	}
	dir := "DESC"
	if f.SortAsc {
		dir = "ASC"
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}

	var alerts []*Alert
	err := q.Order(fmt.Sprintf("%s %s", column, dir)).
		Offset(f.Skip).
		Limit(limit).
		Find(&alerts).Error
	return alerts, err
}

func (s *dataStore) SaveAlert(ctx context.Context, alert *Alert) error {
	return s.db.WithContext(ctx).Save(alert).Error
}

func (s *dataStore) DeleteAlert(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&Alert{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAlertNotFound
	}
	return nil
}

var alertGroupColumns = map[string]string{
	"severity":    "severity",
	"status":      "status",
	"sensor_type": "sensor_type",
}

func (s *dataStore) AlertGroupCounts(ctx context.Context, groupBy, deviceID string, start, end *time.Time) ([]GroupCount, error) {
	column, ok := alertGroupColumns[groupBy]
	if !ok {
		return nil, NewValidationError("group_by", "unsupported grouping %q", groupBy)
	}

	q := s.db.WithContext(ctx).Model(&Alert{}).
		Select(fmt.Sprintf("%s AS key, COUNT(*) AS count", column)).
		Group(column)
	if deviceID != "" {
		q = q.Where("device_id = ?", deviceID)
	}
	if start != nil {
		q = q.Where("timestamp >= ?", *start)
	}
	if end != nil {
		q = q.Where("timestamp <= ?", *end)
	}

	var counts []GroupCount
	return counts, q.Scan(&counts).Error
}

// --- Devices ---

func (s *dataStore) CreateDevice(ctx context.Context, device *Device) error {
	return s.db.WithContext(ctx).Create(device).Error
}

func (s *dataStore) GetDevice(ctx context.Context, id string) (*Device, error) {
	var device Device
	if err := s.db.WithContext(ctx).First(&device, "id = ?", id).Error; err != nil {
		return nil, notFound(err, ErrDeviceNotFound)
	}
	return &device, nil
}

func (s *dataStore) GetDeviceByUID(ctx context.Context, uid string) (*Device, error) {
	var device Device
	if err := s.db.WithContext(ctx).First(&device, "device_uid = ?", uid).Error; err != nil {
		return nil, notFound(err, ErrDeviceNotFound)
	}
	return &device, nil
}

func (s *dataStore) ListDevices(ctx context.Context, status DeviceStatus) ([]*Device, error) {
	var devices []*Device
	q := s.db.WithContext(ctx)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	return devices, q.Order("created_at DESC").Find(&devices).Error
}

func (s *dataStore) SaveDevice(ctx context.Context, device *Device) error {
	return s.db.WithContext(ctx).Save(device).Error
}

func (s *dataStore) DeleteDevice(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&Device{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// --- Plants ---

var plantSortColumns = map[string]string{
	"name":              "name",
	"category":          "category",
	"growth_cycle_days": "growth_cycle_days",
	"created_at":        "created_at",
}

func (s *dataStore) CreatePlant(ctx context.Context, plant *Plant) error {
	return s.db.WithContext(ctx).Create(plant).Error
}

func (s *dataStore) GetPlant(ctx context.Context, id string) (*Plant, error) {
	var plant Plant
	if err := s.db.WithContext(ctx).First(&plant, "id = ?", id).Error; err != nil {
		return nil, notFound(err, ErrPlantNotFound)
	}
	return &plant, nil
}

func (s *dataStore) PlantExists(ctx context.Context, id string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Plant{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func (s *dataStore) QueryPlants(ctx context.Context, f PlantFilter) ([]*Plant, int64, error) {
	q := s.db.WithContext(ctx).Model(&Plant{})

	if f.Search != "" {
		pattern := "%" + f.Search + "%"
		q = q.Where("name ILIKE ? OR scientific_name ILIKE ? OR description ILIKE ?",
			pattern, pattern, pattern)
	}
	if len(f.Categories) > 0 {
		q = q.Where("category IN ?", f.Categories)
	}
	if len(f.Tags) > 0 {
		// jsonb containment per tag; any match qualifies.
		tagCond := s.db.Where("tags @> ?", jsonArray(f.Tags[0]))
		for _, tag := range f.Tags[1:] {
			tagCond = tagCond.Or("tags @> ?", jsonArray(tag))
		}
		q = q.Where(tagCond)
	}
	if f.GrowthCycleDaysMax != nil {
		q = q.Where("growth_cycle_days <= ?", *f.GrowthCycleDaysMax)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	column, ok := plantSortColumns[f.SortBy]
	if !ok {
		column = "name"
	}
	dir := "ASC"
	if !f.SortAsc && f.SortBy != "" {
		dir = "DESC"
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 10
	}

	var plants []*Plant
	err := q.Order(fmt.Sprintf("%s %s", column, dir)).
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&plants).Error
	return plants, total, err
}

func (s *dataStore) SavePlant(ctx context.Context, plant *Plant) error {
	return s.db.WithContext(ctx).Save(plant).Error
}

func (s *dataStore) DeletePlant(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&Plant{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPlantNotFound
	}
	return nil
}

func (s *dataStore) PlantCategoryCounts(ctx context.Context) ([]GroupCount, error) {
	var counts []GroupCount
	err := s.db.WithContext(ctx).Model(&Plant{}).
		Select("category AS key, COUNT(*) AS count").
		Group("category").
		Scan(&counts).Error
	return counts, err
}

func (s *dataStore) MostPlantedPlants(ctx context.Context, limit int) ([]PlantUsage, error) {
	if limit <= 0 {
		limit = 10
	}
	var usage []PlantUsage
	err := s.db.WithContext(ctx).Table("plantations").
		Select("plantations.plant_id AS plant_id, plants.name AS name, plants.category AS category, COUNT(*) AS count").
		Joins("JOIN plants ON plants.id = plantations.plant_id").
		Group("plantations.plant_id, plants.name, plants.category").
		Order("count DESC").
		Limit(limit).
		Scan(&usage).Error
	return usage, err
}

// --- Plantations ---

var plantationSortColumns = map[string]string{
	"planted_date":   "planted_date",
	"harvested_date": "harvested_date",
	"current_stage":  "current_stage",
	"status":         "status",
	"created_at":     "created_at",
}

func (s *dataStore) CreatePlantation(ctx context.Context, plantation *Plantation) error {
	return s.db.WithContext(ctx).Create(plantation).Error
}

func (s *dataStore) GetPlantation(ctx context.Context, id string) (*Plantation, error) {
	var plantation Plantation
	if err := s.db.WithContext(ctx).First(&plantation, "id = ?", id).Error; err != nil {
		return nil, notFound(err, ErrPlantationNotFound)
	}
	return &plantation, nil
}

func (s *dataStore) QueryPlantations(ctx context.Context, f PlantationFilter) ([]*Plantation, int64, error) {
	q := s.db.WithContext(ctx).Model(&Plantation{})

	if f.PlantID != "" {
		q = q.Where("plant_id = ?", f.PlantID)
	}
	if f.DeviceID != "" {
		q = q.Where("device_id = ?", f.DeviceID)
	}
	if len(f.Stages) > 0 {
		q = q.Where("current_stage IN ?", f.Stages)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if f.PlantedAfter != nil {
		q = q.Where("planted_date >= ?", *f.PlantedAfter)
	}
	if f.PlantedBefore != nil {
		q = q.Where("planted_date <= ?", *f.PlantedBefore)
	}
	if f.HarvestedAfter != nil {
		q = q.Where("harvested_date >= ?", *f.HarvestedAfter)
	}
	if f.HarvestedBefore != nil {
		q = q.Where("harvested_date <= ?", *f.HarvestedBefore)
	}
	if f.Location != "" {
		q = q.Where("location ILIKE ?", "%"+f.Location+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	column, ok := plantationSortColumns[f.SortBy]
	if !ok {
		column = "planted_date"
	}
	dir := "DESC"
	if f.SortAsc {
		dir = "ASC"
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 10
	}

	var plantations []*Plantation
	err := q.Order(fmt.Sprintf("%s %s", column, dir)).
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&plantations).Error
	return plantations, total, err
}

func (s *dataStore) SavePlantation(ctx context.Context, plantation *Plantation) error {
	return s.db.WithContext(ctx).Save(plantation).Error
}

func (s *dataStore) DeletePlantation(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&Plantation{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPlantationNotFound
	}
	return nil
}

func (s *dataStore) PlantationStatistics(ctx context.Context, deviceID string) (*PlantationStats, error) {
	stats := &PlantationStats{
		ByStatus:        make(map[string]int64),
		ByPlantCategory: make(map[string]int64),
		ByGrowthStage:   make(map[string]int64),
	}

	base := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&Plantation{})
		if deviceID != "" {
			q = q.Where("plantations.device_id = ?", deviceID)
		}
		return q
	}

	if err := base().Count(&stats.Total).Error; err != nil {
		return nil, err
	}

	var rows []GroupCount
	if err := base().Select("status AS key, COUNT(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		stats.ByStatus[row.Key] = row.Count
	}

	rows = rows[:0]
	if err := base().
		Select("plants.category AS key, COUNT(*) AS count").
		Joins("JOIN plants ON plants.id = plantations.plant_id").
		Group("plants.category").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		stats.ByPlantCategory[row.Key] = row.Count
	}

	rows = rows[:0]
	if err := base().Select("current_stage AS key, COUNT(*) AS count").Group("current_stage").Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		stats.ByGrowthStage[row.Key] = row.Count
	}

	err := base().
		Select(`EXTRACT(YEAR FROM planted_date)::int AS year,
			EXTRACT(MONTH FROM planted_date)::int AS month,
			COUNT(*) AS count`).
		Group("year, month").
		Order("year, month").
		Scan(&stats.PlantedPerMonth).Error
	if err != nil {
		return nil, err
	}

	err = base().
		Where("harvested_date IS NOT NULL").
		Select(`EXTRACT(YEAR FROM harvested_date)::int AS year,
			EXTRACT(MONTH FROM harvested_date)::int AS month,
			COUNT(*) AS count`).
		Group("year, month").
		Order("year, month").
		Scan(&stats.HarvestedPerMonth).Error
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// --- Users ---

func (s *dataStore) CreateUser(ctx context.Context, user *User) error {
	return s.db.WithContext(ctx).Create(user).Error
}

func (s *dataStore) GetUser(ctx context.Context, id string) (*User, error) {
	var user User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	return &user, nil
}

func (s *dataStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	if err := s.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	return &user, nil
}

func (s *dataStore) SaveUser(ctx context.Context, user *User) error {
	return s.db.WithContext(ctx).Save(user).Error
}

// --- Aggregates ---

func (s *dataStore) Overview(ctx context.Context) (*SystemOverview, error) {
	var overview SystemOverview

	counts := []struct {
		model interface{}
		cond  []interface{}
		dest  *int64
	}{
		{&Device{}, nil, &overview.TotalDevices},
		{&Sensor{}, nil, &overview.TotalSensors},
		{&Alert{}, nil, &overview.TotalAlerts},
		{&Plant{}, nil, &overview.TotalPlants},
		{&Plantation{}, nil, &overview.TotalPlantations},
		{&Device{}, []interface{}{"status = ?", DeviceStatusOnline}, &overview.OnlineDevices},
		{&Plantation{}, []interface{}{"status = ?", PlantationActive}, &overview.ActivePlantations},
		{&Alert{}, []interface{}{"status IN ?", []AlertStatus{AlertStatusNew, AlertStatusAcknowledged}}, &overview.OpenAlerts},
	}

	for _, c := range counts {
		q := s.db.WithContext(ctx).Model(c.model)
		if len(c.cond) > 0 {
			q = q.Where(c.cond[0], c.cond[1:]...)
		}
		if err := q.Count(c.dest).Error; err != nil {
			return nil, err
		}
	}

	return &overview, nil
}

func (s *dataStore) DeviceStatistics(ctx context.Context) (*DeviceStats, error) {
	stats := &DeviceStats{ByStatus: make(map[string]int64)}

	var rows []GroupCount
	err := s.db.WithContext(ctx).Model(&Device{}).
		Select("status AS key, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		stats.ByStatus[row.Key] = row.Count
	}

	err = s.db.WithContext(ctx).Table("sensors").
		Select("devices.id AS device_id, devices.name AS name, devices.location AS location, COUNT(*) AS count").
		Joins("JOIN devices ON devices.device_uid = sensors.device_uid").
		Group("devices.id, devices.name, devices.location").
		Order("count DESC").
		Limit(5).
		Scan(&stats.MostSensors).Error
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Table("alerts").
		Select("alerts.device_id AS device_id, COALESCE(devices.name, '') AS name, COALESCE(devices.location, '') AS location, COUNT(*) AS count").
		Joins("LEFT JOIN devices ON devices.id = alerts.device_id").
		Group("alerts.device_id, devices.name, devices.location").
		Order("count DESC").
		Limit(5).
		Scan(&stats.MostAlerts).Error
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Table("plantations").
		Select("plantations.device_id AS device_id, COALESCE(devices.name, '') AS name, COALESCE(devices.location, '') AS location, COUNT(*) AS count").
		Joins("LEFT JOIN devices ON devices.id = plantations.device_id").
		Group("plantations.device_id, devices.name, devices.location").
		Order("count DESC").
		Limit(5).
		Scan(&stats.MostPlantations).Error
	return stats, err
}

func (s *dataStore) HarvestSuccessByCategory(ctx context.Context, since time.Time) ([]CategoryHarvest, error) {
	q := s.db.WithContext(ctx).Table("plantations").
		Select(`plants.category AS category,
			COUNT(*) AS total,
			SUM(CASE WHEN plantations.status = ? THEN 1 ELSE 0 END) AS harvested,
			SUM(CASE WHEN plantations.status = ? THEN 1 ELSE 0 END) AS failed,
			COALESCE(AVG(CASE WHEN plantations.status = ? AND plantations.harvested_date IS NOT NULL
				THEN EXTRACT(EPOCH FROM (plantations.harvested_date - plantations.planted_date)) / 86400 END), 0) AS avg_cycle_days`,
			PlantationHarvested, PlantationFailed, PlantationHarvested).
		Joins("JOIN plants ON plants.id = plantations.plant_id").
		Group("plants.category").
		Order("plants.category")
	if !since.IsZero() {
		q = q.Where("plantations.planted_date >= ?", since)
	}

	var rows []CategoryHarvest
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		if rows[i].Total > 0 {
			rows[i].SuccessRate = float64(rows[i].Harvested) / float64(rows[i].Total) * 100
		}
	}
	return rows, nil
}

func (s *dataStore) AlertResolutionTime(ctx context.Context, since time.Time) (*ResolutionTimeStats, error) {
	q := s.db.WithContext(ctx).Model(&Alert{}).
		Select(`COALESCE(AVG(EXTRACT(EPOCH FROM (resolved_at - created_at)) / 3600), 0) AS avg_hours,
			COALESCE(MIN(EXTRACT(EPOCH FROM (resolved_at - created_at)) / 3600), 0) AS min_hours,
			COALESCE(MAX(EXTRACT(EPOCH FROM (resolved_at - created_at)) / 3600), 0) AS max_hours,
			COUNT(*) AS count`).
		Where("status = ? AND resolved_at IS NOT NULL", AlertStatusResolved)
	if !since.IsZero() {
		q = q.Where("created_at >= ?", since)
	}

	var row ResolutionTimeStats
	if err := q.Scan(&row).Error; err != nil {
		return nil, err
	}
	if row.Count == 0 {
		return nil, nil
	}
	return &row, nil
}
