// services/farm/cmd/replay.go
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"example.com/hydrofarm/services/farm/internal/core"
	"example.com/hydrofarm/services/farm/internal/infrastructure"
	"github.com/spf13/cobra"
)

// replayCmd re-ingests dead-lettered MQTT readings from the journal.
var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Re-ingest journaled sensor readings",
	Long:  `Drains the dead-letter journal of readings that failed ingestion and pushes them back through the ingestion pipeline.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReplay()
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)
}

func runReplay() error {
	logger.Info("Replaying journaled readings...")

	db, err := infrastructure.NewDatabase(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	journal, err := infrastructure.NewJournal(cfg.Storage.JournalPath)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer journal.Close()

	entries, err := journal.ReadAll()
	if err != nil {
		return fmt.Errorf("failed to read journal: %w", err)
	}
	if len(entries) == 0 {
		logger.Info("Journal is empty, nothing to replay")
		return nil
	}

	store := core.NewDataStore(db.DB)
	sensors := core.NewSensorService(store, nil, nil, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	var replayed int
	var remaining []infrastructure.JournalEntry

	for _, entry := range entries {
		if infrastructure.MessageTypeFromTopic(entry.Topic) != "readings" {
			// Status updates are transient; replaying a stale one would
			// clobber the current device state.
			continue
		}

		var msg struct {
			SensorID   string     `json:"sensor_id"`
			SensorType string     `json:"sensor_type"`
			Value      float64    `json:"value"`
			Timestamp  *time.Time `json:"timestamp"`
		}
		if err := json.Unmarshal(entry.Payload, &msg); err != nil {
			logger.WithError(err).WithField("entry_id", entry.ID).
				Warn("Dropping malformed journal entry")
			continue
		}

		timestamp := msg.Timestamp
		if timestamp == nil {
			// Preserve the original arrival time, not the replay time.
			arrival := entry.Timestamp
			timestamp = &arrival
		}

		_, err := sensors.IngestReading(ctx, core.IngestReadingInput{
			SensorID:   msg.SensorID,
			SensorType: core.SensorType(msg.SensorType),
			Value:      msg.Value,
			Timestamp:  timestamp,
			DeviceUID:  infrastructure.DeviceUIDFromTopic(entry.Topic),
		})
		if err != nil {
			entry.Retries++
			entry.Error = err.Error()
			remaining = append(remaining, entry)
			logger.WithError(err).WithField("entry_id", entry.ID).
				Warn("Replay failed, keeping entry")
			continue
		}
		replayed++
	}

	if err := journal.Rewrite(remaining); err != nil {
		return fmt.Errorf("failed to compact journal: %w", err)
	}

	logger.WithFields(map[string]interface{}{
		"replayed":  replayed,
		"remaining": len(remaining),
	}).Info("Replay complete")
	return nil
}
