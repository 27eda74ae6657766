package core_test

import (
	"context"
	"sort"
	"strings"
	"time"

	"example.com/hydrofarm/services/farm/internal/core"
)

// fakeStore is an in-memory DataStore for service tests.
type fakeStore struct {
	sensors     map[string]*core.Sensor
	readings    map[string]*core.SensorReading
	alerts      map[string]*core.Alert
	devices     map[string]*core.Device
	plants      map[string]*core.Plant
	plantations map[string]*core.Plantation
	users       map[string]*core.User
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sensors:     make(map[string]*core.Sensor),
		readings:    make(map[string]*core.SensorReading),
		alerts:      make(map[string]*core.Alert),
		devices:     make(map[string]*core.Device),
		plants:      make(map[string]*core.Plant),
		plantations: make(map[string]*core.Plantation),
		users:       make(map[string]*core.User),
	}
}

func (f *fakeStore) WithTransaction(ctx context.Context, fn func(context.Context, core.DataStore) error) error {
	return fn(ctx, f)
}

// --- Sensors ---

func (f *fakeStore) CreateSensor(ctx context.Context, sensor *core.Sensor) error {
	cp := *sensor
	f.sensors[sensor.ID] = &cp
	return nil
}

func (f *fakeStore) GetSensor(ctx context.Context, id string) (*core.Sensor, error) {
	sensor, ok := f.sensors[id]
	if !ok {
		return nil, core.ErrSensorNotFound
	}
	cp := *sensor
	return &cp, nil
}

func (f *fakeStore) ListSensors(ctx context.Context, deviceUID string) ([]*core.Sensor, error) {
	var out []*core.Sensor
	for _, sensor := range f.sensors {
		if deviceUID == "" || sensor.DeviceUID == deviceUID {
			cp := *sensor
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) SaveSensor(ctx context.Context, sensor *core.Sensor) error {
	cp := *sensor
	f.sensors[sensor.ID] = &cp
	return nil
}

func (f *fakeStore) DeleteSensor(ctx context.Context, id string) error {
	if _, ok := f.sensors[id]; !ok {
		return core.ErrSensorNotFound
	}
	delete(f.sensors, id)
	return nil
}

// --- Readings ---

func (f *fakeStore) CreateReading(ctx context.Context, reading *core.SensorReading) error {
	cp := *reading
	f.readings[reading.ID] = &cp
	return nil
}

func (f *fakeStore) QueryReadings(ctx context.Context, q core.ReadingFilter) ([]*core.SensorReading, error) {
	var out []*core.SensorReading
	for _, reading := range f.readings {
		if q.SensorID != "" && reading.SensorID != q.SensorID {
			continue
		}
		if q.SensorType != "" && reading.SensorType != q.SensorType {
			continue
		}
		if q.DeviceUID != "" && reading.DeviceUID != q.DeviceUID {
			continue
		}
		if q.StartDate != nil && reading.Timestamp.Before(*q.StartDate) {
			continue
		}
		if q.EndDate != nil && reading.Timestamp.After(*q.EndDate) {
			continue
		}
		if q.MinValue != nil && reading.Value < *q.MinValue {
			continue
		}
		if q.MaxValue != nil && reading.Value > *q.MaxValue {
			continue
		}
		cp := *reading
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch q.SortBy {
		case "value":
			if q.SortAsc {
				return a.Value < b.Value
			}
			return a.Value > b.Value
		default:
			if q.SortAsc {
				return a.Timestamp.Before(b.Timestamp)
			}
			return a.Timestamp.After(b.Timestamp)
		}
	})

	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	if q.Skip >= len(out) {
		return nil, nil
	}
	out = out[q.Skip:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) LatestReading(ctx context.Context, sensorID string) (*core.SensorReading, error) {
	var latest *core.SensorReading
	for _, reading := range f.readings {
		if reading.SensorID != sensorID {
			continue
		}
		if latest == nil || reading.Timestamp.After(latest.Timestamp) {
			latest = reading
		}
	}
	if latest == nil {
		return nil, core.ErrReadingNotFound
	}
	cp := *latest
	return &cp, nil
}

func (f *fakeStore) DeleteReading(ctx context.Context, id string) error {
	if _, ok := f.readings[id]; !ok {
		return core.ErrReadingNotFound
	}
	delete(f.readings, id)
	return nil
}

func (f *fakeStore) DeleteReadingsBySensor(ctx context.Context, sensorID string) error {
	for id, reading := range f.readings {
		if reading.SensorID == sensorID {
			delete(f.readings, id)
		}
	}
	return nil
}

func (f *fakeStore) PurgeReadingsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var purged int64
	for id, reading := range f.readings {
		if reading.Timestamp.Before(cutoff) {
			delete(f.readings, id)
			purged++
		}
	}
	return purged, nil
}

func (f *fakeStore) ReadingStatistics(ctx context.Context, sensorID string, start, end time.Time) (*core.ReadingStats, error) {
	stats := &core.ReadingStats{}
	for _, reading := range f.readings {
		if reading.SensorID != sensorID || reading.Timestamp.Before(start) || reading.Timestamp.After(end) {
			continue
		}
		if stats.Count == 0 {
			stats.MinValue = reading.Value
			stats.MaxValue = reading.Value
		}
		if reading.Value < stats.MinValue {
			stats.MinValue = reading.Value
		}
		if reading.Value > stats.MaxValue {
			stats.MaxValue = reading.Value
		}
		stats.AvgValue += reading.Value
		stats.Count++
		if reading.AlertTriggered {
			stats.AlertCount++
		}
	}
	if stats.Count > 0 {
		stats.AvgValue /= float64(stats.Count)
	}
	return stats, nil
}

// --- Alerts ---

func (f *fakeStore) CreateAlert(ctx context.Context, alert *core.Alert) error {
	cp := *alert
	f.alerts[alert.ID] = &cp
	return nil
}

func (f *fakeStore) GetAlert(ctx context.Context, id string) (*core.Alert, error) {
	alert, ok := f.alerts[id]
	if !ok {
		return nil, core.ErrAlertNotFound
	}
	cp := *alert
	return &cp, nil
}

func (f *fakeStore) QueryAlerts(ctx context.Context, q core.AlertFilter) ([]*core.Alert, error) {
	var out []*core.Alert
	for _, alert := range f.alerts {
		if q.SensorID != "" && alert.SensorID != q.SensorID {
			continue
		}
		if q.SensorType != "" && alert.SensorType != q.SensorType {
			continue
		}
		if q.DeviceID != "" && alert.DeviceID != q.DeviceID {
			continue
		}
		if q.Severity != "" && alert.Severity != q.Severity {
			continue
		}
		if q.Status != "" && alert.Status != q.Status {
			continue
		}
		cp := *alert
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) SaveAlert(ctx context.Context, alert *core.Alert) error {
	cp := *alert
	f.alerts[alert.ID] = &cp
	return nil
}

func (f *fakeStore) DeleteAlert(ctx context.Context, id string) error {
	if _, ok := f.alerts[id]; !ok {
		return core.ErrAlertNotFound
	}
	delete(f.alerts, id)
	return nil
}

func (f *fakeStore) AlertGroupCounts(ctx context.Context, groupBy, deviceID string, start, end *time.Time) ([]core.GroupCount, error) {
	counts := make(map[string]int64)
	for _, alert := range f.alerts {
		if deviceID != "" && alert.DeviceID != deviceID {
			continue
		}
		var key string
		switch groupBy {
		case "severity":
			key = string(alert.Severity)
		case "status":
			key = string(alert.Status)
		case "sensor_type":
			key = string(alert.SensorType)
		default:
			return nil, core.NewValidationError("group_by", "unsupported grouping %q", groupBy)
		}
		counts[key]++
	}
	var out []core.GroupCount
	for key, count := range counts {
		out = append(out, core.GroupCount{Key: key, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// --- Devices ---

func (f *fakeStore) CreateDevice(ctx context.Context, device *core.Device) error {
	cp := *device
	f.devices[device.ID] = &cp
	return nil
}

func (f *fakeStore) GetDevice(ctx context.Context, id string) (*core.Device, error) {
	device, ok := f.devices[id]
	if !ok {
		return nil, core.ErrDeviceNotFound
	}
	cp := *device
	return &cp, nil
}

func (f *fakeStore) GetDeviceByUID(ctx context.Context, uid string) (*core.Device, error) {
	for _, device := range f.devices {
		if device.DeviceUID == uid {
			cp := *device
			return &cp, nil
		}
	}
	return nil, core.ErrDeviceNotFound
}

func (f *fakeStore) ListDevices(ctx context.Context, status core.DeviceStatus) ([]*core.Device, error) {
	var out []*core.Device
	for _, device := range f.devices {
		if status == "" || device.Status == status {
			cp := *device
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) SaveDevice(ctx context.Context, device *core.Device) error {
	cp := *device
	f.devices[device.ID] = &cp
	return nil
}

func (f *fakeStore) DeleteDevice(ctx context.Context, id string) error {
	if _, ok := f.devices[id]; !ok {
		return core.ErrDeviceNotFound
	}
	delete(f.devices, id)
	return nil
}

// --- Plants ---

func (f *fakeStore) CreatePlant(ctx context.Context, plant *core.Plant) error {
	cp := *plant
	f.plants[plant.ID] = &cp
	return nil
}

func (f *fakeStore) GetPlant(ctx context.Context, id string) (*core.Plant, error) {
	plant, ok := f.plants[id]
	if !ok {
		return nil, core.ErrPlantNotFound
	}
	cp := *plant
	return &cp, nil
}

func (f *fakeStore) PlantExists(ctx context.Context, id string) (bool, error) {
	_, ok := f.plants[id]
	return ok, nil
}

func (f *fakeStore) QueryPlants(ctx context.Context, q core.PlantFilter) ([]*core.Plant, int64, error) {
	var matched []*core.Plant
	for _, plant := range f.plants {
		if q.Search != "" && !strings.Contains(strings.ToLower(plant.Name), strings.ToLower(q.Search)) {
			continue
		}
		if len(q.Categories) > 0 {
			found := false
			for _, category := range q.Categories {
				if plant.Category == category {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		if len(q.Tags) > 0 {
			found := false
			for _, want := range q.Tags {
				for _, tag := range plant.Tags {
					if tag == want {
						found = true
					}
				}
			}
			if !found {
				continue
			}
		}
		cp := *plant
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })

	total := int64(len(matched))
	page := q.Page
	if page < 1 {
		page = 1
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}
	offset := (page - 1) * limit
	if offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func (f *fakeStore) SavePlant(ctx context.Context, plant *core.Plant) error {
	cp := *plant
	f.plants[plant.ID] = &cp
	return nil
}

func (f *fakeStore) DeletePlant(ctx context.Context, id string) error {
	if _, ok := f.plants[id]; !ok {
		return core.ErrPlantNotFound
	}
	delete(f.plants, id)
	return nil
}

func (f *fakeStore) PlantCategoryCounts(ctx context.Context) ([]core.GroupCount, error) {
	counts := make(map[string]int64)
	for _, plant := range f.plants {
		counts[string(plant.Category)]++
	}
	var out []core.GroupCount
	for key, count := range counts {
		out = append(out, core.GroupCount{Key: key, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (f *fakeStore) MostPlantedPlants(ctx context.Context, limit int) ([]core.PlantUsage, error) {
	counts := make(map[string]int64)
	for _, plantation := range f.plantations {
		counts[plantation.PlantID]++
	}
	var out []core.PlantUsage
	for plantID, count := range counts {
		usage := core.PlantUsage{PlantID: plantID, Count: count}
		if plant, ok := f.plants[plantID]; ok {
			usage.Name = plant.Name
			usage.Category = string(plant.Category)
		}
		out = append(out, usage)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- Plantations ---

func (f *fakeStore) CreatePlantation(ctx context.Context, plantation *core.Plantation) error {
	cp := *plantation
	f.plantations[plantation.ID] = &cp
	return nil
}

func (f *fakeStore) GetPlantation(ctx context.Context, id string) (*core.Plantation, error) {
	plantation, ok := f.plantations[id]
	if !ok {
		return nil, core.ErrPlantationNotFound
	}
	cp := *plantation
	return &cp, nil
}

func (f *fakeStore) QueryPlantations(ctx context.Context, q core.PlantationFilter) ([]*core.Plantation, int64, error) {
	var out []*core.Plantation
	for _, plantation := range f.plantations {
		if q.PlantID != "" && plantation.PlantID != q.PlantID {
			continue
		}
		if q.DeviceID != "" && plantation.DeviceID != q.DeviceID {
			continue
		}
		if len(q.Stages) > 0 && !containsStage(q.Stages, plantation.CurrentStage) {
			continue
		}
		if len(q.Statuses) > 0 && !containsStatus(q.Statuses, plantation.Status) {
			continue
		}
		if q.PlantedAfter != nil && plantation.PlantedDate.Before(*q.PlantedAfter) {
			continue
		}
		if q.PlantedBefore != nil && plantation.PlantedDate.After(*q.PlantedBefore) {
			continue
		}
		if q.HarvestedAfter != nil && (plantation.HarvestedDate == nil || plantation.HarvestedDate.Before(*q.HarvestedAfter)) {
			continue
		}
		if q.HarvestedBefore != nil && (plantation.HarvestedDate == nil || plantation.HarvestedDate.After(*q.HarvestedBefore)) {
			continue
		}
		if q.Location != "" && !strings.Contains(strings.ToLower(plantation.Location), strings.ToLower(q.Location)) {
			continue
		}
		cp := *plantation
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].PlantedDate.After(out[j].PlantedDate)
	})

	total := int64(len(out))
	page := q.Page
	if page < 1 {
		page = 1
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}
	offset := (page - 1) * limit
	if offset >= len(out) {
		return nil, total, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

func containsStage(stages []core.GrowthStage, stage core.GrowthStage) bool {
	for _, s := range stages {
		if s == stage {
			return true
		}
	}
	return false
}

func containsStatus(statuses []core.PlantationStatus, status core.PlantationStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func (f *fakeStore) SavePlantation(ctx context.Context, plantation *core.Plantation) error {
	cp := *plantation
	f.plantations[plantation.ID] = &cp
	return nil
}

func (f *fakeStore) DeletePlantation(ctx context.Context, id string) error {
	if _, ok := f.plantations[id]; !ok {
		return core.ErrPlantationNotFound
	}
	delete(f.plantations, id)
	return nil
}

func (f *fakeStore) PlantationStatistics(ctx context.Context, deviceID string) (*core.PlantationStats, error) {
	stats := &core.PlantationStats{
		ByStatus:        make(map[string]int64),
		ByPlantCategory: make(map[string]int64),
		ByGrowthStage:   make(map[string]int64),
	}
	for _, plantation := range f.plantations {
		if deviceID != "" && plantation.DeviceID != deviceID {
			continue
		}
		stats.Total++
		stats.ByStatus[string(plantation.Status)]++
		stats.ByGrowthStage[string(plantation.CurrentStage)]++
		if plant, ok := f.plants[plantation.PlantID]; ok {
			stats.ByPlantCategory[string(plant.Category)]++
		}
	}
	return stats, nil
}

// --- Users ---

func (f *fakeStore) CreateUser(ctx context.Context, user *core.User) error {
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeStore) GetUser(ctx context.Context, id string) (*core.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, core.ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	for _, user := range f.users {
		if user.Email == email {
			cp := *user
			return &cp, nil
		}
	}
	return nil, core.ErrUserNotFound
}

func (f *fakeStore) SaveUser(ctx context.Context, user *core.User) error {
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

// --- Aggregates ---

func (f *fakeStore) Overview(ctx context.Context) (*core.SystemOverview, error) {
	overview := &core.SystemOverview{
		TotalDevices:     int64(len(f.devices)),
		TotalSensors:     int64(len(f.sensors)),
		TotalAlerts:      int64(len(f.alerts)),
		TotalPlants:      int64(len(f.plants)),
		TotalPlantations: int64(len(f.plantations)),
	}
	for _, device := range f.devices {
		if device.Status == core.DeviceStatusOnline {
			overview.OnlineDevices++
		}
	}
	for _, plantation := range f.plantations {
		if plantation.Status == core.PlantationActive {
			overview.ActivePlantations++
		}
	}
	for _, alert := range f.alerts {
		if alert.Status == core.AlertStatusNew || alert.Status == core.AlertStatusAcknowledged {
			overview.OpenAlerts++
		}
	}
	return overview, nil
}

func (f *fakeStore) DeviceStatistics(ctx context.Context) (*core.DeviceStats, error) {
	stats := &core.DeviceStats{ByStatus: make(map[string]int64)}
	for _, device := range f.devices {
		stats.ByStatus[string(device.Status)]++
	}

	sensorCounts := make(map[string]int64)
	for _, sensor := range f.sensors {
		for _, device := range f.devices {
			if device.DeviceUID == sensor.DeviceUID {
				sensorCounts[device.ID]++
			}
		}
	}
	stats.MostSensors = f.deviceLeaders(sensorCounts)

	alertCounts := make(map[string]int64)
	for _, alert := range f.alerts {
		alertCounts[alert.DeviceID]++
	}
	stats.MostAlerts = f.deviceLeaders(alertCounts)

	plantationCounts := make(map[string]int64)
	for _, plantation := range f.plantations {
		plantationCounts[plantation.DeviceID]++
	}
	stats.MostPlantations = f.deviceLeaders(plantationCounts)

	return stats, nil
}

func (f *fakeStore) deviceLeaders(counts map[string]int64) []core.DeviceLeader {
	var out []core.DeviceLeader
	for deviceID, count := range counts {
		leader := core.DeviceLeader{DeviceID: deviceID, Count: count}
		if device, ok := f.devices[deviceID]; ok {
			leader.Name = device.Name
			leader.Location = device.Location
		}
		out = append(out, leader)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > 5 {
		out = out[:5]
	}
	return out
}

func (f *fakeStore) HarvestSuccessByCategory(ctx context.Context, since time.Time) ([]core.CategoryHarvest, error) {
	byCategory := make(map[string]*core.CategoryHarvest)
	cycleDays := make(map[string][]float64)
	for _, plantation := range f.plantations {
		if !since.IsZero() && plantation.PlantedDate.Before(since) {
			continue
		}
		plant, ok := f.plants[plantation.PlantID]
		if !ok {
			continue
		}
		category := string(plant.Category)
		row, ok := byCategory[category]
		if !ok {
			row = &core.CategoryHarvest{Category: category}
			byCategory[category] = row
		}
		row.Total++
		switch plantation.Status {
		case core.PlantationHarvested:
			row.Harvested++
			if plantation.HarvestedDate != nil {
				days := plantation.HarvestedDate.Sub(plantation.PlantedDate).Hours() / 24
				cycleDays[category] = append(cycleDays[category], days)
			}
		case core.PlantationFailed:
			row.Failed++
		}
	}

	var out []core.CategoryHarvest
	for category, row := range byCategory {
		if row.Total > 0 {
			row.SuccessRate = float64(row.Harvested) / float64(row.Total) * 100
		}
		if days := cycleDays[category]; len(days) > 0 {
			var sum float64
			for _, d := range days {
				sum += d
			}
			row.AvgCycleDays = sum / float64(len(days))
		}
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

func (f *fakeStore) AlertResolutionTime(ctx context.Context, since time.Time) (*core.ResolutionTimeStats, error) {
	var stats core.ResolutionTimeStats
	for _, alert := range f.alerts {
		if alert.Status != core.AlertStatusResolved || alert.ResolvedAt == nil {
			continue
		}
		if !since.IsZero() && alert.CreatedAt.Before(since) {
			continue
		}
		hours := alert.ResolvedAt.Sub(alert.CreatedAt).Hours()
		if stats.Count == 0 || hours < stats.MinHours {
			stats.MinHours = hours
		}
		if hours > stats.MaxHours {
			stats.MaxHours = hours
		}
		stats.AvgHours += hours
		stats.Count++
	}
	if stats.Count == 0 {
		return nil, nil
	}
	stats.AvgHours /= float64(stats.Count)
	return &stats, nil
}
