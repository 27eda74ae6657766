package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"example.com/hydrofarm/services/farm/internal/api"
	"example.com/hydrofarm/services/farm/internal/core"
	"example.com/hydrofarm/services/farm/internal/infrastructure"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

// purgeInterval is how often expired readings are swept.
const purgeInterval = time.Hour

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the farm monitoring API server",
	Long:  `Launches the HTTP server and MQTT subscriber to handle sensor ingestion, alerting, and plantation tracking.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServer() error {
	logger.Info("Initializing Farm Monitoring Service...")

	// --- Infrastructure Setup ---
	logger.Info("Connecting to database...")
	db, err := infrastructure.NewDatabase(cfg.Database)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	logger.Info("Connecting to cache...")
	cache, err := infrastructure.NewCache(cfg.Redis)
	if err != nil {
		return fmt.Errorf("cache connection failed: %w", err)
	}
	defer cache.Close()

	logger.Info("Connecting to messaging service...")
	messaging, err := infrastructure.NewMessaging(cfg.ServiceBus)
	if err != nil {
		logger.Warn("Messaging service unavailable, continuing without it")
		messaging = nil
	} else {
		defer messaging.Close()
	}

	journal, err := infrastructure.NewJournal(cfg.Storage.JournalPath)
	if err != nil {
		return fmt.Errorf("failed to open ingestion journal: %w", err)
	}
	defer journal.Close()

	// --- Service Layer Setup ---
	dataStore := core.NewDataStore(db.DB)
	mailer := infrastructure.NewSMTPMailer(cfg.Mail)

	services := core.NewServiceRegistry(
		dataStore, cache, messaging, mailer,
		cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, logger,
	)

	// --- MQTT Ingestion ---
	var subscriber *infrastructure.MQTTSubscriber
	if cfg.MQTT != nil && cfg.MQTT.BrokerURL != "" {
		subscriber, err = infrastructure.NewMQTTSubscriber(infrastructure.MQTTConfig{
			BrokerURL:         cfg.MQTT.BrokerURL,
			ClientID:          cfg.MQTT.ClientID,
			Username:          cfg.MQTT.Username,
			Password:          cfg.MQTT.Password,
			QoS:               cfg.MQTT.QoS,
			CleanSession:      cfg.MQTT.CleanSession,
			Topics:            cfg.MQTT.Topics,
			KeepAlive:         cfg.MQTT.KeepAlive,
			ConnectTimeout:    cfg.MQTT.ConnectTimeout,
			MaxReconnectDelay: cfg.MQTT.MaxReconnectDelay,
		}, journal, logger)
		if err != nil {
			return fmt.Errorf("failed to create MQTT subscriber: %w", err)
		}

		subscriber.RegisterHandler("readings", readingHandler(services))
		subscriber.RegisterHandler("status", statusHandler(services))

		if err := subscriber.Start(); err != nil {
			logger.WithError(err).Warn("MQTT broker unavailable, continuing without ingestion")
			subscriber = nil
		}
	}

	// --- Reading Retention ---
	purgeCtx, cancelPurge := context.WithCancel(context.Background())
	defer cancelPurge()
	go purgeLoop(purgeCtx, services.Sensors)

	// --- API Layer Setup ---
	router := gin.New()
	router.Use(gin.Recovery())

	handlers := api.NewAPIHandlers(services, logger)
	api.SetupRoutes(router, handlers, services, logger)

	// --- HTTP Server ---
	serverAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful Shutdown ---
	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Infof("Farm Monitoring API listening on %s", serverAddr)
		logger.Info("Service started successfully")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-shutdownChan

	logger.Warn("Shutdown signal received, initiating graceful shutdown...")

	cancelPurge()
	if subscriber != nil {
		subscriber.Stop()
	}

	// Shutdown HTTP server
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	} else {
		logger.Info("Server stopped gracefully")
	}

	logger.Info("Farm Monitoring Service shutdown complete")
	return nil
}

// mqttReading is the payload devices publish on farm/{device_uid}/readings.
type mqttReading struct {
	SensorID   string     `json:"sensor_id"`
	SensorType string     `json:"sensor_type"`
	Value      float64    `json:"value"`
	Timestamp  *time.Time `json:"timestamp"`
}

// readingHandler ingests readings arriving over MQTT. Errors propagate to the
// subscriber, which journals the payload for replay.
func readingHandler(services *core.ServiceRegistry) infrastructure.MessageHandler {
	return func(ctx context.Context, topic string, payload []byte) error {
		var msg mqttReading
		if err := json.Unmarshal(payload, &msg); err != nil {
			return fmt.Errorf("malformed reading payload: %w", err)
		}

		_, err := services.Sensors.IngestReading(ctx, core.IngestReadingInput{
			SensorID:   msg.SensorID,
			SensorType: core.SensorType(msg.SensorType),
			Value:      msg.Value,
			Timestamp:  msg.Timestamp,
			DeviceUID:  infrastructure.DeviceUIDFromTopic(topic),
		})
		return err
	}
}

// statusHandler applies status updates published on farm/{device_uid}/status.
func statusHandler(services *core.ServiceRegistry) infrastructure.MessageHandler {
	return func(ctx context.Context, topic string, payload []byte) error {
		var msg struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(payload, &msg); err != nil {
			return fmt.Errorf("malformed status payload: %w", err)
		}

		deviceUID := infrastructure.DeviceUIDFromTopic(topic)
		_, err := services.Devices.UpdateStatusByUID(ctx, deviceUID, core.DeviceStatus(msg.Status))
		return err
	}
}

// purgeLoop sweeps readings past the retention window until ctx is cancelled.
func purgeLoop(ctx context.Context, sensors *core.SensorService) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := sensors.PurgeExpiredReadings(ctx); err != nil {
				logger.WithError(err).Error("Reading retention sweep failed")
			}
		}
	}
}
