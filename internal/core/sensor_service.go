package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"example.com/hydrofarm/services/farm/internal/infrastructure"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// latestReadingTTL bounds staleness of the cached latest reading per sensor.
const latestReadingTTL = 5 * time.Minute

// SensorService manages sensors and the reading ingestion pipeline.
type SensorService struct {
	store     DataStore
	cache     *infrastructure.Cache
	messaging *infrastructure.Messaging
	logger    *logrus.Logger
}

func NewSensorService(store DataStore, cache *infrastructure.Cache, messaging *infrastructure.Messaging, logger *logrus.Logger) *SensorService {
	return &SensorService{
		store:     store,
		cache:     cache,
		messaging: messaging,
		logger:    logger,
	}
}

// CreateSensorInput carries the fields an operator supplies for a new sensor.
type CreateSensorInput struct {
	Name         string     `json:"name"`
	Type         SensorType `json:"type"`
	DeviceUID    string     `json:"device_uid"`
	Unit         string     `json:"unit"`
	Active       *bool      `json:"active"`
	MinThreshold *float64   `json:"min_threshold"`
	MaxThreshold *float64   `json:"max_threshold"`
	Description  string     `json:"description"`
}

func (s *SensorService) CreateSensor(ctx context.Context, in CreateSensorInput) (*Sensor, error) {
	if in.Name == "" {
		return nil, NewValidationError("name", "name is required")
	}
	if !in.Type.Valid() {
		return nil, NewValidationError("type", "unknown sensor type %q", in.Type)
	}
	if in.DeviceUID == "" {
		return nil, NewValidationError("device_uid", "device_uid is required")
	}
	if in.Unit == "" {
		return nil, NewValidationError("unit", "unit is required")
	}

	sensor := &Sensor{
		ID:           uuid.New().String(),
		Name:         in.Name,
		Type:         in.Type,
		DeviceUID:    in.DeviceUID,
		Unit:         in.Unit,
		Active:       true,
		MinThreshold: in.MinThreshold,
		MaxThreshold: in.MaxThreshold,
		Description:  in.Description,
	}
	if in.Active != nil {
		sensor.Active = *in.Active
	}

	if err := s.store.CreateSensor(ctx, sensor); err != nil {
		return nil, fmt.Errorf("failed to create sensor: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"sensor_id":  sensor.ID,
		"type":       sensor.Type,
		"device_uid": sensor.DeviceUID,
	}).Info("Sensor created")

	return sensor, nil
}

func (s *SensorService) GetSensor(ctx context.Context, id string) (*Sensor, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidID
	}
	return s.store.GetSensor(ctx, id)
}

func (s *SensorService) ListSensors(ctx context.Context, deviceUID string) ([]*Sensor, error) {
	return s.store.ListSensors(ctx, deviceUID)
}

// SensorPatch is a partial sensor update. Nil fields are untouched. Threshold
// pointers set a new bound; the Clear flags remove one.
type SensorPatch struct {
	Name              *string     `json:"name"`
	Type              *SensorType `json:"type"`
	DeviceUID         *string     `json:"device_uid"`
	Unit              *string     `json:"unit"`
	Active            *bool       `json:"active"`
	MinThreshold      *float64    `json:"min_threshold"`
	MaxThreshold      *float64    `json:"max_threshold"`
	ClearMinThreshold bool        `json:"clear_min_threshold"`
	ClearMaxThreshold bool        `json:"clear_max_threshold"`
	Description       *string     `json:"description"`
}

// UpdateSensor applies a partial patch. Threshold edits only affect readings
// ingested afterwards.
func (s *SensorService) UpdateSensor(ctx context.Context, id string, patch SensorPatch) (*Sensor, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidID
	}

	sensor, err := s.store.GetSensor(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		sensor.Name = *patch.Name
	}
	if patch.Type != nil {
		if !patch.Type.Valid() {
			return nil, NewValidationError("type", "unknown sensor type %q", *patch.Type)
		}
		sensor.Type = *patch.Type
	}
	if patch.DeviceUID != nil {
		sensor.DeviceUID = *patch.DeviceUID
	}
	if patch.Unit != nil {
		sensor.Unit = *patch.Unit
	}
	if patch.Active != nil {
		sensor.Active = *patch.Active
	}
	if patch.MinThreshold != nil {
		sensor.MinThreshold = patch.MinThreshold
	}
	if patch.MaxThreshold != nil {
		sensor.MaxThreshold = patch.MaxThreshold
	}
	if patch.ClearMinThreshold {
		sensor.MinThreshold = nil
	}
	if patch.ClearMaxThreshold {
		sensor.MaxThreshold = nil
	}
	if patch.Description != nil {
		sensor.Description = *patch.Description
	}

	if err := s.store.SaveSensor(ctx, sensor); err != nil {
		return nil, fmt.Errorf("failed to update sensor: %w", err)
	}
	return sensor, nil
}

// DeleteSensor removes a sensor and cascades to all its readings.
func (s *SensorService) DeleteSensor(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidID
	}

	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx DataStore) error {
		if err := tx.DeleteSensor(ctx, id); err != nil {
			return err
		}
		return tx.DeleteReadingsBySensor(ctx, id)
	})
	if err != nil {
		return err
	}

	s.invalidateLatest(ctx, id)
	s.logger.WithField("sensor_id", id).Info("Sensor deleted with readings")
	return nil
}

// IngestReadingInput is one observation arriving from a device, over HTTP or
// MQTT.
type IngestReadingInput struct {
	SensorID   string     `json:"sensor_id"`
	SensorType SensorType `json:"sensor_type"`
	Value      float64    `json:"value"`
	Timestamp  *time.Time `json:"timestamp"`
	DeviceUID  string     `json:"device_uid"`
}

// IngestReading persists one reading. The alert flag is derived here, from
// the sensor's thresholds as they stand right now, and is never recomputed:
// the stored flag is the durable signal for historical queries.
func (s *SensorService) IngestReading(ctx context.Context, in IngestReadingInput) (*SensorReading, error) {
	if _, err := uuid.Parse(in.SensorID); err != nil {
		return nil, ErrInvalidID
	}

	sensor, err := s.store.GetSensor(ctx, in.SensorID)
	if err != nil {
		return nil, err
	}

	sensorType := in.SensorType
	if sensorType == "" {
		sensorType = sensor.Type
	}
	if !sensorType.Valid() {
		return nil, NewValidationError("sensor_type", "unknown sensor type %q", sensorType)
	}

	timestamp := time.Now()
	if in.Timestamp != nil {
		timestamp = *in.Timestamp
	}

	deviceUID := in.DeviceUID
	if deviceUID == "" {
		deviceUID = sensor.DeviceUID
	}

	reading := &SensorReading{
		ID:             uuid.New().String(),
		SensorID:       sensor.ID,
		SensorType:     sensorType,
		Value:          in.Value,
		Timestamp:      timestamp,
		DeviceUID:      deviceUID,
		AlertTriggered: thresholdBreached(sensor, in.Value),
	}

	if err := s.store.CreateReading(ctx, reading); err != nil {
		return nil, fmt.Errorf("failed to persist reading: %w", err)
	}

	s.cacheLatest(ctx, reading)

	if reading.AlertTriggered {
		s.logger.WithFields(logrus.Fields{
			"sensor_id": sensor.ID,
			"type":      sensorType,
			"value":     in.Value,
		}).Warn("Reading breached sensor thresholds")
		s.publishBreach(ctx, sensor, reading)
	}

	return reading, nil
}

// thresholdBreached evaluates value against the sensor's configured bounds.
// An absent bound is unbounded on that side.
func thresholdBreached(sensor *Sensor, value float64) bool {
	if sensor.MinThreshold != nil && value < *sensor.MinThreshold {
		return true
	}
	if sensor.MaxThreshold != nil && value > *sensor.MaxThreshold {
		return true
	}
	return false
}

func (s *SensorService) QueryReadings(ctx context.Context, f ReadingFilter) ([]*SensorReading, error) {
	if f.SensorID != "" {
		if _, err := uuid.Parse(f.SensorID); err != nil {
			return nil, ErrInvalidID
		}
	}
	if f.SensorType != "" && !f.SensorType.Valid() {
		return nil, NewValidationError("sensor_type", "unknown sensor type %q", f.SensorType)
	}
	return s.store.QueryReadings(ctx, f)
}

func (s *SensorService) LatestReading(ctx context.Context, sensorID string) (*SensorReading, error) {
	if _, err := uuid.Parse(sensorID); err != nil {
		return nil, ErrInvalidID
	}

	if cached := s.cachedLatest(ctx, sensorID); cached != nil {
		return cached, nil
	}

	reading, err := s.store.LatestReading(ctx, sensorID)
	if err != nil {
		return nil, err
	}
	s.cacheLatest(ctx, reading)
	return reading, nil
}

func (s *SensorService) DeleteReading(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidID
	}
	return s.store.DeleteReading(ctx, id)
}

// Statistics aggregates a sensor's readings over [start, end]. A window with
// no readings yields a zeroed record, not an error.
func (s *SensorService) Statistics(ctx context.Context, sensorID string, start, end time.Time) (*ReadingStats, error) {
	if _, err := uuid.Parse(sensorID); err != nil {
		return nil, ErrInvalidID
	}
	return s.store.ReadingStatistics(ctx, sensorID, start, end)
}

// PurgeExpiredReadings drops readings older than the retention window.
func (s *SensorService) PurgeExpiredReadings(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-ReadingRetention)
	purged, err := s.store.PurgeReadingsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge readings: %w", err)
	}
	if purged > 0 {
		s.logger.WithFields(logrus.Fields{
			"purged": purged,
			"cutoff": cutoff,
		}).Info("Expired sensor readings purged")
	}
	return purged, nil
}

func (s *SensorService) cacheLatest(ctx context.Context, reading *SensorReading) {
	if s.cache == nil {
		return
	}
	data, _ := json.Marshal(reading)
	s.cache.Set(ctx, infrastructure.LatestReadingKey(reading.SensorID), string(data), latestReadingTTL)
}

func (s *SensorService) cachedLatest(ctx context.Context, sensorID string) *SensorReading {
	if s.cache == nil {
		return nil
	}
	data, err := s.cache.Get(ctx, infrastructure.LatestReadingKey(sensorID))
	if err != nil {
		return nil
	}
	var reading SensorReading
	if err := json.Unmarshal([]byte(data), &reading); err != nil {
		return nil
	}
	return &reading
}

func (s *SensorService) invalidateLatest(ctx context.Context, sensorID string) {
	if s.cache == nil {
		return
	}
	s.cache.Delete(ctx, infrastructure.LatestReadingKey(sensorID))
}

func (s *SensorService) publishBreach(ctx context.Context, sensor *Sensor, reading *SensorReading) {
	if s.messaging == nil {
		return
	}
	event := map[string]interface{}{
		"sensor_id":     sensor.ID,
		"sensor_type":   reading.SensorType,
		"device_uid":    reading.DeviceUID,
		"value":         reading.Value,
		"min_threshold": sensor.MinThreshold,
		"max_threshold": sensor.MaxThreshold,
		"timestamp":     reading.Timestamp,
	}
	if err := s.messaging.Publish(ctx, infrastructure.TopicReadingBreach, event); err != nil {
		// The stored alert_triggered flag is the durable signal; event
		// delivery is best effort.
		s.logger.WithError(err).WithField("sensor_id", sensor.ID).
			Error("Failed to publish threshold breach event")
	}
}
