package core

import (
	"time"

	"example.com/hydrofarm/services/farm/internal/infrastructure"
	"github.com/sirupsen/logrus"
)

// ServiceRegistry bundles all services behind one constructor so transports
// and commands share a single wiring point.
type ServiceRegistry struct {
	Sensors     *SensorService
	Alerts      *AlertService
	Devices     *DeviceService
	Plants      *PlantService
	Plantations *PlantationService
	Stats       *StatsService
	Auth        *AuthService
}

// NewServiceRegistry wires the services. cache and messaging may be nil in
// tests and in commands that only touch the database.
func NewServiceRegistry(
	store DataStore,
	cache *infrastructure.Cache,
	messaging *infrastructure.Messaging,
	mailer Mailer,
	jwtSecret string,
	tokenTTL time.Duration,
	logger *logrus.Logger,
) *ServiceRegistry {
	return &ServiceRegistry{
		Sensors:     NewSensorService(store, cache, messaging, logger),
		Alerts:      NewAlertService(store, messaging, logger),
		Devices:     NewDeviceService(store, cache, logger),
		Plants:      NewPlantService(store, logger),
		Plantations: NewPlantationService(store, logger),
		Stats:       NewStatsService(store, logger),
		Auth:        NewAuthService(store, mailer, jwtSecret, tokenTTL, logger),
	}
}
