package core_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"example.com/hydrofarm/services/farm/internal/core"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func floatPtr(v float64) *float64 { return &v }

func newSensorFixture(t *testing.T, store *fakeStore, min, max *float64) *core.Sensor {
	t.Helper()
	sensor := &core.Sensor{
		ID:           uuid.New().String(),
		Name:         "reservoir ph",
		Type:         core.SensorTypePH,
		DeviceUID:    "dev-001",
		Unit:         "pH",
		Active:       true,
		MinThreshold: min,
		MaxThreshold: max,
	}
	if err := store.CreateSensor(context.Background(), sensor); err != nil {
		t.Fatalf("CreateSensor: %v", err)
	}
	return sensor
}

func TestIngestReadingThresholds(t *testing.T) {
	tests := []struct {
		name      string
		min, max  *float64
		value     float64
		wantAlert bool
	}{
		{"within both bounds", floatPtr(5.5), floatPtr(6.5), 6.0, false},
		{"below min", floatPtr(5.5), floatPtr(6.5), 5.0, true},
		{"above max", floatPtr(5.5), floatPtr(6.5), 7.0, true},
		{"equal to min is not a breach", floatPtr(5.5), floatPtr(6.5), 5.5, false},
		{"equal to max is not a breach", floatPtr(5.5), floatPtr(6.5), 6.5, false},
		{"no thresholds", nil, nil, 42.0, false},
		{"only min set, below", floatPtr(5.5), nil, 1.0, true},
		{"only min set, huge value ok", floatPtr(5.5), nil, 99.0, false},
		{"only max set, above", nil, floatPtr(6.5), 7.2, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			svc := core.NewSensorService(store, nil, nil, testLogger())
			sensor := newSensorFixture(t, store, tt.min, tt.max)

			reading, err := svc.IngestReading(context.Background(), core.IngestReadingInput{
				SensorID: sensor.ID,
				Value:    tt.value,
			})
			if err != nil {
				t.Fatalf("IngestReading: %v", err)
			}
			if reading.AlertTriggered != tt.wantAlert {
				t.Errorf("AlertTriggered = %v, want %v", reading.AlertTriggered, tt.wantAlert)
			}
		})
	}
}

func TestIngestReadingDefaults(t *testing.T) {
	store := newFakeStore()
	svc := core.NewSensorService(store, nil, nil, testLogger())
	sensor := newSensorFixture(t, store, nil, nil)

	before := time.Now()
	reading, err := svc.IngestReading(context.Background(), core.IngestReadingInput{
		SensorID: sensor.ID,
		Value:    6.1,
	})
	after := time.Now()
	if err != nil {
		t.Fatalf("IngestReading: %v", err)
	}

	if reading.Timestamp.Before(before) || reading.Timestamp.After(after) {
		t.Errorf("Timestamp %v not defaulted to ingestion time", reading.Timestamp)
	}
	if reading.SensorType != sensor.Type {
		t.Errorf("SensorType = %q, want snapshot of sensor type %q", reading.SensorType, sensor.Type)
	}
	if reading.DeviceUID != sensor.DeviceUID {
		t.Errorf("DeviceUID = %q, want %q from sensor", reading.DeviceUID, sensor.DeviceUID)
	}
}

func TestIngestReadingExplicitTimestampPreserved(t *testing.T) {
	store := newFakeStore()
	svc := core.NewSensorService(store, nil, nil, testLogger())
	sensor := newSensorFixture(t, store, nil, nil)

	ts := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	reading, err := svc.IngestReading(context.Background(), core.IngestReadingInput{
		SensorID:  sensor.ID,
		Value:     6.1,
		Timestamp: &ts,
	})
	if err != nil {
		t.Fatalf("IngestReading: %v", err)
	}
	if !reading.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", reading.Timestamp, ts)
	}
}

func TestIngestReadingErrors(t *testing.T) {
	store := newFakeStore()
	svc := core.NewSensorService(store, nil, nil, testLogger())

	if _, err := svc.IngestReading(context.Background(), core.IngestReadingInput{
		SensorID: "not-a-uuid",
		Value:    1,
	}); !errors.Is(err, core.ErrInvalidID) {
		t.Errorf("malformed id: got %v, want ErrInvalidID", err)
	}

	if _, err := svc.IngestReading(context.Background(), core.IngestReadingInput{
		SensorID: uuid.New().String(),
		Value:    1,
	}); !errors.Is(err, core.ErrSensorNotFound) {
		t.Errorf("unknown sensor: got %v, want ErrSensorNotFound", err)
	}

	sensor := newSensorFixture(t, store, nil, nil)
	if _, err := svc.IngestReading(context.Background(), core.IngestReadingInput{
		SensorID:   sensor.ID,
		SensorType: "sunshine",
		Value:      1,
	}); !core.IsValidation(err) {
		t.Errorf("unknown sensor type: got %v, want validation error", err)
	}
}

// Threshold edits must only affect later ingestions; stored flags stay as
// computed at write time.
func TestThresholdEditDoesNotRewriteHistory(t *testing.T) {
	store := newFakeStore()
	svc := core.NewSensorService(store, nil, nil, testLogger())
	sensor := newSensorFixture(t, store, floatPtr(5.5), floatPtr(6.5))

	ctx := context.Background()
	old, err := svc.IngestReading(ctx, core.IngestReadingInput{SensorID: sensor.ID, Value: 6.0})
	if err != nil {
		t.Fatalf("IngestReading: %v", err)
	}
	if old.AlertTriggered {
		t.Fatal("reading within thresholds flagged")
	}

	// Tighten the max below the old value.
	if _, err := svc.UpdateSensor(ctx, sensor.ID, core.SensorPatch{
		MaxThreshold: floatPtr(5.8),
	}); err != nil {
		t.Fatalf("UpdateSensor: %v", err)
	}

	stored, err := store.GetSensor(ctx, sensor.ID)
	if err != nil {
		t.Fatalf("GetSensor: %v", err)
	}
	if stored.MaxThreshold == nil || *stored.MaxThreshold != 5.8 {
		t.Fatalf("MaxThreshold = %v, want 5.8", stored.MaxThreshold)
	}

	readings, err := svc.QueryReadings(ctx, core.ReadingFilter{SensorID: sensor.ID})
	if err != nil {
		t.Fatalf("QueryReadings: %v", err)
	}
	if len(readings) != 1 || readings[0].AlertTriggered {
		t.Error("old reading re-flagged after threshold edit")
	}

	// A new ingestion of the same value now breaches.
	fresh, err := svc.IngestReading(ctx, core.IngestReadingInput{SensorID: sensor.ID, Value: 6.0})
	if err != nil {
		t.Fatalf("IngestReading: %v", err)
	}
	if !fresh.AlertTriggered {
		t.Error("new reading not evaluated against updated thresholds")
	}
}

func TestUpdateSensorClearThreshold(t *testing.T) {
	store := newFakeStore()
	svc := core.NewSensorService(store, nil, nil, testLogger())
	sensor := newSensorFixture(t, store, floatPtr(5.5), floatPtr(6.5))

	updated, err := svc.UpdateSensor(context.Background(), sensor.ID, core.SensorPatch{
		ClearMinThreshold: true,
	})
	if err != nil {
		t.Fatalf("UpdateSensor: %v", err)
	}
	if updated.MinThreshold != nil {
		t.Error("MinThreshold not cleared")
	}
	if updated.MaxThreshold == nil {
		t.Error("MaxThreshold cleared unexpectedly")
	}
}

func TestDeleteSensorCascadesReadings(t *testing.T) {
	store := newFakeStore()
	svc := core.NewSensorService(store, nil, nil, testLogger())
	sensor := newSensorFixture(t, store, nil, nil)
	other := newSensorFixture(t, store, nil, nil)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := svc.IngestReading(ctx, core.IngestReadingInput{SensorID: sensor.ID, Value: float64(i)}); err != nil {
			t.Fatalf("IngestReading: %v", err)
		}
	}
	if _, err := svc.IngestReading(ctx, core.IngestReadingInput{SensorID: other.ID, Value: 1}); err != nil {
		t.Fatalf("IngestReading: %v", err)
	}

	if err := svc.DeleteSensor(ctx, sensor.ID); err != nil {
		t.Fatalf("DeleteSensor: %v", err)
	}

	if _, err := svc.GetSensor(ctx, sensor.ID); !errors.Is(err, core.ErrSensorNotFound) {
		t.Errorf("sensor still present: %v", err)
	}
	remaining, err := store.QueryReadings(ctx, core.ReadingFilter{})
	if err != nil {
		t.Fatalf("QueryReadings: %v", err)
	}
	if len(remaining) != 1 || remaining[0].SensorID != other.ID {
		t.Errorf("cascade delete left %d readings", len(remaining))
	}
}

func TestPurgeExpiredReadings(t *testing.T) {
	store := newFakeStore()
	svc := core.NewSensorService(store, nil, nil, testLogger())
	sensor := newSensorFixture(t, store, nil, nil)

	ctx := context.Background()
	stale := time.Now().Add(-core.ReadingRetention - time.Hour)
	fresh := time.Now().Add(-time.Hour)

	for _, ts := range []time.Time{stale, fresh} {
		ts := ts
		if _, err := svc.IngestReading(ctx, core.IngestReadingInput{
			SensorID:  sensor.ID,
			Value:     6.0,
			Timestamp: &ts,
		}); err != nil {
			t.Fatalf("IngestReading: %v", err)
		}
	}

	purged, err := svc.PurgeExpiredReadings(ctx)
	if err != nil {
		t.Fatalf("PurgeExpiredReadings: %v", err)
	}
	if purged != 1 {
		t.Errorf("purged = %d, want 1", purged)
	}

	remaining, err := svc.QueryReadings(ctx, core.ReadingFilter{SensorID: sensor.ID})
	if err != nil {
		t.Fatalf("QueryReadings: %v", err)
	}
	if len(remaining) != 1 {
		t.Errorf("remaining readings = %d, want 1", len(remaining))
	}
}

func TestReadingStatisticsEmptyWindow(t *testing.T) {
	store := newFakeStore()
	svc := core.NewSensorService(store, nil, nil, testLogger())
	sensor := newSensorFixture(t, store, nil, nil)

	stats, err := svc.Statistics(context.Background(), sensor.ID,
		time.Now().Add(-time.Hour), time.Now())
	if err != nil {
		t.Fatalf("Statistics: %v", err)
	}
	if stats.Count != 0 || stats.AvgValue != 0 || stats.AlertCount != 0 {
		t.Errorf("empty window stats not zeroed: %+v", stats)
	}
}

func TestQueryReadingsSortAndPaging(t *testing.T) {
	store := newFakeStore()
	svc := core.NewSensorService(store, nil, nil, testLogger())
	ctx := context.Background()
	sensor := newSensorFixture(t, store, floatPtr(10), nil)

	first := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	second := first.Add(time.Minute)
	for _, in := range []core.IngestReadingInput{
		{SensorID: sensor.ID, Value: 5, Timestamp: &first},
		{SensorID: sensor.ID, Value: 20, Timestamp: &second},
	} {
		if _, err := svc.IngestReading(ctx, in); err != nil {
			t.Fatalf("IngestReading: %v", err)
		}
	}

	// Default order is newest first; the limit applies after sorting.
	page, err := svc.QueryReadings(ctx, core.ReadingFilter{SensorID: sensor.ID, Limit: 1})
	if err != nil {
		t.Fatalf("QueryReadings: %v", err)
	}
	if len(page) != 1 || page[0].Value != 20 {
		t.Fatalf("first page = %+v, want the newer reading with value 20", page)
	}
	if page[0].AlertTriggered {
		t.Error("value 20 flagged as breach")
	}

	page, err = svc.QueryReadings(ctx, core.ReadingFilter{SensorID: sensor.ID, Skip: 1, Limit: 1})
	if err != nil {
		t.Fatalf("QueryReadings: %v", err)
	}
	if len(page) != 1 || page[0].Value != 5 {
		t.Fatalf("skipped page = %+v, want the older reading with value 5", page)
	}
	if !page[0].AlertTriggered {
		t.Error("value 5 below min threshold not flagged")
	}

	page, err = svc.QueryReadings(ctx, core.ReadingFilter{SensorID: sensor.ID, SortBy: "value", SortAsc: true})
	if err != nil {
		t.Fatalf("QueryReadings: %v", err)
	}
	if len(page) != 2 || page[0].Value != 5 || page[1].Value != 20 {
		t.Errorf("value ascending = %+v", page)
	}
}
