package core

import (
	"context"
	"fmt"
	"time"

	"example.com/hydrofarm/services/farm/internal/infrastructure"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AlertService manages alert records and their lifecycle transitions.
type AlertService struct {
	store     DataStore
	messaging *infrastructure.Messaging
	logger    *logrus.Logger
}

func NewAlertService(store DataStore, messaging *infrastructure.Messaging, logger *logrus.Logger) *AlertService {
	return &AlertService{
		store:     store,
		messaging: messaging,
		logger:    logger,
	}
}

// CreateAlertInput describes a new alert, whether raised from a threshold
// breach or entered manually by an operator.
type CreateAlertInput struct {
	SensorID   string        `json:"sensor_id"`
	SensorType SensorType    `json:"sensor_type"`
	DeviceID   string        `json:"device_id"`
	Value      float64       `json:"value"`
	Threshold  float64       `json:"threshold"`
	Timestamp  *time.Time    `json:"timestamp"`
	Message    string        `json:"message"`
	Severity   AlertSeverity `json:"severity"`
	Notes      string        `json:"notes"`
}

func (s *AlertService) CreateAlert(ctx context.Context, in CreateAlertInput) (*Alert, error) {
	if _, err := uuid.Parse(in.SensorID); err != nil {
		return nil, ErrInvalidID
	}
	if !in.SensorType.Valid() {
		return nil, NewValidationError("sensor_type", "unknown sensor type %q", in.SensorType)
	}
	if in.Message == "" {
		return nil, NewValidationError("message", "message is required")
	}

	severity := in.Severity
	if severity == "" {
		severity = SeverityMedium
	}
	if !severity.Valid() {
		return nil, NewValidationError("severity", "unknown severity %q", severity)
	}

	timestamp := time.Now()
	if in.Timestamp != nil {
		timestamp = *in.Timestamp
	}

	alert := &Alert{
		ID:         uuid.New().String(),
		SensorID:   in.SensorID,
		SensorType: in.SensorType,
		DeviceID:   in.DeviceID,
		Value:      in.Value,
		Threshold:  in.Threshold,
		Timestamp:  timestamp,
		Message:    in.Message,
		Severity:   severity,
		Status:     AlertStatusNew,
		Notes:      in.Notes,
	}

	if err := s.store.CreateAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("failed to create alert: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"alert_id":  alert.ID,
		"sensor_id": alert.SensorID,
		"severity":  alert.Severity,
	}).Info("Alert created")
	s.publishEvent(ctx, infrastructure.TopicAlertCreated, alert)

	return alert, nil
}

func (s *AlertService) GetAlert(ctx context.Context, id string) (*Alert, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidID
	}
	return s.store.GetAlert(ctx, id)
}

func (s *AlertService) QueryAlerts(ctx context.Context, f AlertFilter) ([]*Alert, error) {
	if f.Severity != "" && !f.Severity.Valid() {
		return nil, NewValidationError("severity", "unknown severity %q", f.Severity)
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, NewValidationError("status", "unknown status %q", f.Status)
	}
	return s.store.QueryAlerts(ctx, f)
}

// AlertPatch is a partial alert update. A status change through here stamps
// the matching timestamp when it is still unset, same as the dedicated
// transition calls.
type AlertPatch struct {
	Message        *string        `json:"message"`
	Severity       *AlertSeverity `json:"severity"`
	Status         *AlertStatus   `json:"status"`
	AcknowledgedBy *string        `json:"acknowledged_by"`
	Notes          *string        `json:"notes"`
}

func (s *AlertService) UpdateAlert(ctx context.Context, id string, patch AlertPatch) (*Alert, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidID
	}

	alert, err := s.store.GetAlert(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Message != nil {
		alert.Message = *patch.Message
	}
	if patch.Severity != nil {
		if !patch.Severity.Valid() {
			return nil, NewValidationError("severity", "unknown severity %q", *patch.Severity)
		}
		alert.Severity = *patch.Severity
	}
	if patch.AcknowledgedBy != nil {
		alert.AcknowledgedBy = patch.AcknowledgedBy
	}
	if patch.Notes != nil {
		alert.Notes = *patch.Notes
	}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, NewValidationError("status", "unknown status %q", *patch.Status)
		}
		alert.Status = *patch.Status
		now := time.Now()
		if alert.Status == AlertStatusAcknowledged && alert.AcknowledgedAt == nil {
			alert.AcknowledgedAt = &now
		}
		if alert.Status == AlertStatusResolved && alert.ResolvedAt == nil {
			alert.ResolvedAt = &now
		}
	}

	if err := s.store.SaveAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("failed to update alert: %w", err)
	}
	return alert, nil
}

func (s *AlertService) DeleteAlert(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidID
	}
	return s.store.DeleteAlert(ctx, id)
}

// Acknowledge moves an alert from new to acknowledged and records who and
// when. Any other starting status is a conflict.
func (s *AlertService) Acknowledge(ctx context.Context, id, userID string) (*Alert, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidID
	}

	alert, err := s.store.GetAlert(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert.Status != AlertStatusNew {
		return nil, NewConflictError("alert cannot be acknowledged from status %q", alert.Status)
	}

	now := time.Now()
	alert.Status = AlertStatusAcknowledged
	alert.AcknowledgedAt = &now
	if userID != "" {
		alert.AcknowledgedBy = &userID
	}

	if err := s.store.SaveAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("failed to acknowledge alert: %w", err)
	}
	s.publishEvent(ctx, infrastructure.TopicAlertAcknowledged, alert)
	return alert, nil
}

// Resolve closes an alert. Only resolving an already resolved alert is a
// conflict; a dismissed alert can still be resolved.
func (s *AlertService) Resolve(ctx context.Context, id string) (*Alert, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidID
	}

	alert, err := s.store.GetAlert(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert.Status == AlertStatusResolved {
		return nil, NewConflictError("alert cannot be resolved from status %q", alert.Status)
	}

	now := time.Now()
	alert.Status = AlertStatusResolved
	alert.ResolvedAt = &now

	if err := s.store.SaveAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("failed to resolve alert: %w", err)
	}
	s.publishEvent(ctx, infrastructure.TopicAlertResolved, alert)
	return alert, nil
}

// Dismiss marks an alert as not actionable. Allowed from any status.
func (s *AlertService) Dismiss(ctx context.Context, id string) (*Alert, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidID
	}

	alert, err := s.store.GetAlert(ctx, id)
	if err != nil {
		return nil, err
	}

	alert.Status = AlertStatusDismissed
	if err := s.store.SaveAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("failed to dismiss alert: %w", err)
	}
	return alert, nil
}

// Statistics counts alerts grouped by severity, status or sensor_type,
// optionally narrowed to one device and a time window.
func (s *AlertService) Statistics(ctx context.Context, groupBy, deviceID string, start, end *time.Time) ([]GroupCount, error) {
	if groupBy == "" {
		groupBy = "severity"
	}
	return s.store.AlertGroupCounts(ctx, groupBy, deviceID, start, end)
}

func (s *AlertService) publishEvent(ctx context.Context, topic string, alert *Alert) {
	if s.messaging == nil {
		return
	}
	if err := s.messaging.Publish(ctx, topic, alert); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"topic":    topic,
			"alert_id": alert.ID,
		}).Error("Failed to publish alert event")
	}
}
