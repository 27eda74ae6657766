package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"example.com/hydrofarm/services/farm/internal/infrastructure"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const deviceCacheTTL = 10 * time.Minute

// DeviceService manages controller devices.
type DeviceService struct {
	store  DataStore
	cache  *infrastructure.Cache
	logger *logrus.Logger
}

func NewDeviceService(store DataStore, cache *infrastructure.Cache, logger *logrus.Logger) *DeviceService {
	return &DeviceService{
		store:  store,
		cache:  cache,
		logger: logger,
	}
}

// CreateDeviceInput carries the fields for registering a new device.
type CreateDeviceInput struct {
	Name            string                 `json:"name"`
	DeviceUID       string                 `json:"device_uid"`
	Type            DeviceType             `json:"type"`
	Status          DeviceStatus           `json:"status"`
	Location        string                 `json:"location"`
	Description     string                 `json:"description"`
	FirmwareVersion string                 `json:"firmware_version"`
	Configuration   map[string]interface{} `json:"configuration"`
}

// CreateDevice registers a device. A duplicate device UID is a conflict.
func (s *DeviceService) CreateDevice(ctx context.Context, in CreateDeviceInput) (*Device, error) {
	if in.Name == "" {
		return nil, NewValidationError("name", "name is required")
	}
	if in.DeviceUID == "" {
		return nil, NewValidationError("device_uid", "device_uid is required")
	}

	deviceType := in.Type
	if deviceType == "" {
		deviceType = DeviceTypeESP32
	}
	if !deviceType.Valid() {
		return nil, NewValidationError("type", "unknown device type %q", deviceType)
	}

	status := in.Status
	if status == "" {
		status = DeviceStatusOffline
	}
	if !status.Valid() {
		return nil, NewValidationError("status", "unknown device status %q", status)
	}

	if _, err := s.store.GetDeviceByUID(ctx, in.DeviceUID); err == nil {
		return nil, NewConflictError("device with uid %q already exists", in.DeviceUID)
	} else if !errors.Is(err, ErrDeviceNotFound) {
		return nil, err
	}

	device := &Device{
		ID:              uuid.New().String(),
		Name:            in.Name,
		DeviceUID:       in.DeviceUID,
		Type:            deviceType,
		Status:          status,
		Location:        in.Location,
		Description:     in.Description,
		FirmwareVersion: in.FirmwareVersion,
		Configuration:   in.Configuration,
		SensorIDs:       []string{},
	}
	if device.Configuration == nil {
		device.Configuration = map[string]interface{}{}
	}

	if err := s.store.CreateDevice(ctx, device); err != nil {
		return nil, fmt.Errorf("failed to create device: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"device_id":  device.ID,
		"device_uid": device.DeviceUID,
		"type":       device.Type,
	}).Info("Device registered")

	return device, nil
}

func (s *DeviceService) GetDevice(ctx context.Context, id string) (*Device, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidID
	}
	return s.store.GetDevice(ctx, id)
}

// GetDeviceByUID resolves a device by its wire identifier, through the cache.
// This is the hot path for every MQTT message.
func (s *DeviceService) GetDeviceByUID(ctx context.Context, deviceUID string) (*Device, error) {
	if deviceUID == "" {
		return nil, NewValidationError("device_uid", "device_uid is required")
	}

	if cached := s.cachedDevice(ctx, deviceUID); cached != nil {
		return cached, nil
	}

	device, err := s.store.GetDeviceByUID(ctx, deviceUID)
	if err != nil {
		return nil, err
	}
	s.cacheDevice(ctx, device)
	return device, nil
}

func (s *DeviceService) ListDevices(ctx context.Context, status DeviceStatus) ([]*Device, error) {
	if status != "" && !status.Valid() {
		return nil, NewValidationError("status", "unknown device status %q", status)
	}
	return s.store.ListDevices(ctx, status)
}

// DevicePatch is a partial device update.
type DevicePatch struct {
	Name            *string       `json:"name"`
	Type            *DeviceType   `json:"type"`
	Status          *DeviceStatus `json:"status"`
	Location        *string       `json:"location"`
	Description     *string       `json:"description"`
	FirmwareVersion *string       `json:"firmware_version"`
}

func (s *DeviceService) UpdateDevice(ctx context.Context, id string, patch DevicePatch) (*Device, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidID
	}

	device, err := s.store.GetDevice(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		device.Name = *patch.Name
	}
	if patch.Type != nil {
		if !patch.Type.Valid() {
			return nil, NewValidationError("type", "unknown device type %q", *patch.Type)
		}
		device.Type = *patch.Type
	}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, NewValidationError("status", "unknown device status %q", *patch.Status)
		}
		s.applyStatus(device, *patch.Status)
	}
	if patch.Location != nil {
		device.Location = *patch.Location
	}
	if patch.Description != nil {
		device.Description = *patch.Description
	}
	if patch.FirmwareVersion != nil {
		device.FirmwareVersion = *patch.FirmwareVersion
	}

	return s.save(ctx, device, "failed to update device")
}

func (s *DeviceService) DeleteDevice(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidID
	}

	device, err := s.store.GetDevice(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteDevice(ctx, id); err != nil {
		return err
	}
	s.invalidateDevice(ctx, device.DeviceUID)
	s.logger.WithField("device_uid", device.DeviceUID).Info("Device deleted")
	return nil
}

// UpdateStatus transitions the device's connectivity state. Going online
// stamps last_connection.
func (s *DeviceService) UpdateStatus(ctx context.Context, id string, status DeviceStatus) (*Device, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidID
	}
	if !status.Valid() {
		return nil, NewValidationError("status", "unknown device status %q", status)
	}

	device, err := s.store.GetDevice(ctx, id)
	if err != nil {
		return nil, err
	}
	s.applyStatus(device, status)
	return s.save(ctx, device, "failed to update device status")
}

// UpdateStatusByUID is the MQTT-facing variant of UpdateStatus.
func (s *DeviceService) UpdateStatusByUID(ctx context.Context, deviceUID string, status DeviceStatus) (*Device, error) {
	if !status.Valid() {
		return nil, NewValidationError("status", "unknown device status %q", status)
	}

	device, err := s.store.GetDeviceByUID(ctx, deviceUID)
	if err != nil {
		return nil, err
	}
	s.applyStatus(device, status)
	return s.save(ctx, device, "failed to update device status")
}

func (s *DeviceService) applyStatus(device *Device, status DeviceStatus) {
	device.Status = status
	if status == DeviceStatusOnline {
		now := time.Now()
		device.LastConnection = &now
	}
}

// AddSensor attaches a sensor id to the device. The list is a set; adding an
// already attached sensor is a no-op.
func (s *DeviceService) AddSensor(ctx context.Context, id, sensorID string) (*Device, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidID
	}
	if _, err := uuid.Parse(sensorID); err != nil {
		return nil, ErrInvalidID
	}

	device, err := s.store.GetDevice(ctx, id)
	if err != nil {
		return nil, err
	}

	for _, existing := range device.SensorIDs {
		if existing == sensorID {
			return device, nil
		}
	}
	device.SensorIDs = append(device.SensorIDs, sensorID)
	return s.save(ctx, device, "failed to attach sensor")
}

// RemoveSensor detaches a sensor id. Removing an absent sensor is a no-op.
func (s *DeviceService) RemoveSensor(ctx context.Context, id, sensorID string) (*Device, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidID
	}

	device, err := s.store.GetDevice(ctx, id)
	if err != nil {
		return nil, err
	}

	kept := device.SensorIDs[:0]
	for _, existing := range device.SensorIDs {
		if existing != sensorID {
			kept = append(kept, existing)
		}
	}
	if len(kept) == len(device.SensorIDs) {
		return device, nil
	}
	device.SensorIDs = kept
	return s.save(ctx, device, "failed to detach sensor")
}

// MergeConfiguration overlays the given keys onto the device configuration.
// Keys not present in updates keep their stored values.
func (s *DeviceService) MergeConfiguration(ctx context.Context, id string, updates map[string]interface{}) (*Device, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidID
	}

	device, err := s.store.GetDevice(ctx, id)
	if err != nil {
		return nil, err
	}

	if device.Configuration == nil {
		device.Configuration = map[string]interface{}{}
	}
	for key, value := range updates {
		device.Configuration[key] = value
	}
	return s.save(ctx, device, "failed to update device configuration")
}

func (s *DeviceService) save(ctx context.Context, device *Device, action string) (*Device, error) {
	if err := s.store.SaveDevice(ctx, device); err != nil {
		return nil, fmt.Errorf("%s: %w", action, err)
	}
	s.cacheDevice(ctx, device)
	return device, nil
}

func (s *DeviceService) cacheDevice(ctx context.Context, device *Device) {
	if s.cache == nil {
		return
	}
	data, _ := json.Marshal(device)
	s.cache.Set(ctx, infrastructure.DeviceUIDKey(device.DeviceUID), string(data), deviceCacheTTL)
}

func (s *DeviceService) cachedDevice(ctx context.Context, deviceUID string) *Device {
	if s.cache == nil {
		return nil
	}
	data, err := s.cache.Get(ctx, infrastructure.DeviceUIDKey(deviceUID))
	if err != nil {
		return nil
	}
	var device Device
	if err := json.Unmarshal([]byte(data), &device); err != nil {
		return nil
	}
	return &device
}

func (s *DeviceService) invalidateDevice(ctx context.Context, deviceUID string) {
	if s.cache == nil {
		return
	}
	s.cache.Delete(ctx, infrastructure.DeviceUIDKey(deviceUID))
}
