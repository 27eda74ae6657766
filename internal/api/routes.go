package api

import (
	"example.com/hydrofarm/services/farm/internal/core"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SetupRoutes configures all API routes.
func SetupRoutes(router *gin.Engine, handlers *APIHandlers, services *core.ServiceRegistry, logger *logrus.Logger) {
	// Global middleware
	router.Use(Recovery(logger))
	router.Use(RequestLogger(logger))
	router.Use(CORS())

	// Health check (public)
	router.GET("/health", handlers.HealthCheck)

	// API v1
	v1 := router.Group("/api/v1")
	v1.Use(RateLimiter(100)) // 100 requests per minute per IP

	// Public auth endpoints
	auth := v1.Group("/auth")
	{
		auth.POST("/register", handlers.Register)
		auth.POST("/verify", handlers.VerifyEmail)
		auth.POST("/resend-verification", handlers.ResendVerification)
		auth.POST("/login", handlers.Login)
		auth.POST("/forgot-password", handlers.RequestPasswordReset)
		auth.POST("/reset-password", handlers.ResetPassword)
	}

	// Authenticated endpoints
	authAPI := v1.Group("")
	authAPI.Use(TokenAuthentication(services.Auth))
	{
		authAPI.GET("/auth/profile", handlers.Profile)

		sensors := authAPI.Group("/sensors")
		{
			sensors.POST("", handlers.CreateSensor)
			sensors.GET("", handlers.ListSensors)
			sensors.GET("/:id", handlers.GetSensor)
			sensors.PATCH("/:id", handlers.UpdateSensor)
			sensors.DELETE("/:id", handlers.DeleteSensor)
			sensors.GET("/:id/readings/latest", handlers.LatestReading)
			sensors.GET("/:id/statistics", handlers.ReadingStatistics)
		}

		readings := authAPI.Group("/readings")
		{
			readings.POST("", handlers.IngestReading)
			readings.GET("", handlers.QueryReadings)
			readings.DELETE("/:id", handlers.DeleteReading)
		}

		alerts := authAPI.Group("/alerts")
		{
			alerts.POST("", handlers.CreateAlert)
			alerts.GET("", handlers.QueryAlerts)
			alerts.GET("/statistics", handlers.AlertStatistics)
			alerts.GET("/:id", handlers.GetAlert)
			alerts.PATCH("/:id", handlers.UpdateAlert)
			alerts.DELETE("/:id", handlers.DeleteAlert)
			alerts.POST("/:id/acknowledge", handlers.AcknowledgeAlert)
			alerts.POST("/:id/resolve", handlers.ResolveAlert)
			alerts.POST("/:id/dismiss", handlers.DismissAlert)
		}

		devices := authAPI.Group("/devices")
		{
			devices.POST("", handlers.CreateDevice)
			devices.GET("", handlers.ListDevices)
			devices.GET("/uid/:uid", handlers.GetDeviceByUID)
			devices.GET("/:id", handlers.GetDevice)
			devices.PATCH("/:id", handlers.UpdateDevice)
			devices.DELETE("/:id", handlers.DeleteDevice)
			devices.PATCH("/:id/status", handlers.UpdateDeviceStatus)
			devices.POST("/:id/sensors/:sensorId", handlers.AddDeviceSensor)
			devices.DELETE("/:id/sensors/:sensorId", handlers.RemoveDeviceSensor)
			devices.PATCH("/:id/configuration", handlers.UpdateDeviceConfiguration)
		}

		plants := authAPI.Group("/plants")
		{
			plants.POST("", handlers.CreatePlant)
			plants.GET("", handlers.SearchPlants)
			plants.GET("/statistics", handlers.PlantStatistics)
			plants.GET("/:id", handlers.GetPlant)
			plants.PATCH("/:id", handlers.UpdatePlant)
			plants.DELETE("/:id", handlers.DeletePlant)
		}

		plantations := authAPI.Group("/plantations")
		{
			plantations.POST("", handlers.CreatePlantation)
			plantations.GET("", handlers.QueryPlantations)
			plantations.GET("/statistics", handlers.PlantationStatistics)
			plantations.GET("/:id", handlers.GetPlantation)
			plantations.PATCH("/:id", handlers.UpdatePlantation)
			plantations.DELETE("/:id", handlers.DeletePlantation)
		}

		statistics := authAPI.Group("/statistics")
		{
			statistics.GET("/overview", handlers.SystemOverview)
			statistics.GET("/devices", handlers.DeviceStatistics)
			statistics.GET("/growth", handlers.GrowthPerformance)
		}
	}
}
