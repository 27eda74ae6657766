// services/farm/cmd/migrate.go
package cmd

import (
	"fmt"

	"example.com/hydrofarm/services/farm/internal/core"
	"example.com/hydrofarm/services/farm/internal/infrastructure"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gorm.io/datatypes"
)

// migrateCmd represents the migrate command.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long:  `Applies all pending database migrations to ensure the schema is up to date.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrations()
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrations() error {
	logger.Info("Running database migrations...")

	// Connect to database
	db, err := infrastructure.NewDatabase(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// Auto-migrate all models
	logger.Info("Migrating models...")

	models := []interface{}{
		&core.User{},
		&core.Device{},
		&core.Sensor{},
		&core.SensorReading{},
		&core.Alert{},
		&core.Plant{},
		&core.Plantation{},
	}

	for _, model := range models {
		if err := db.DB.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", model, err)
		}
		logger.Infof("Migrated %T", model)
	}

	if err := seedCatalog(db); err != nil {
		logger.WithError(err).Warn("Failed to seed plant catalog")
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

// seedCatalog inserts a starter plant catalog into an empty database.
func seedCatalog(db *infrastructure.Database) error {
	var count int64
	if err := db.DB.Model(&core.Plant{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	logger.Info("Seeding plant catalog...")

	phMin, phMax := 5.5, 6.5
	tempMin, tempMax := 15.0, 22.0
	cycleLettuce := 45
	cycleBasil := 60

	plants := []core.Plant{
		{
			ID:             uuid.New().String(),
			Name:           "Lettuce",
			ScientificName: "Lactuca sativa",
			Category:       core.CategoryLeafyGreens,
			Tags:           []string{"beginner", "fast"},
			OptimalConditions: datatypes.NewJSONType(core.OptimalConditions{
				PHMin: &phMin, PHMax: &phMax,
				TemperatureMin: &tempMin, TemperatureMax: &tempMax,
			}),
			GrowthCycleDays: &cycleLettuce,
		},
		{
			ID:             uuid.New().String(),
			Name:           "Basil",
			ScientificName: "Ocimum basilicum",
			Category:       core.CategoryHerbs,
			Tags:           []string{"beginner", "fragrant"},
			OptimalConditions: datatypes.NewJSONType(core.OptimalConditions{
				PHMin: &phMin, PHMax: &phMax,
			}),
			GrowthCycleDays: &cycleBasil,
		},
	}

	for _, plant := range plants {
		if err := db.DB.Create(&plant).Error; err != nil {
			logger.WithError(err).WithField("plant", plant.Name).Warn("Failed to seed plant")
		} else {
			logger.WithField("plant", plant.Name).Info("Seeded plant")
		}
	}
	return nil
}
