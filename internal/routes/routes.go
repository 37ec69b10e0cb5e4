package routes

import (
	"ehealthwave-server/internal/config"
	"ehealthwave-server/internal/handlers"
	"ehealthwave-server/internal/middleware"
	"ehealthwave-server/internal/models"
	"ehealthwave-server/internal/realtime"
	"ehealthwave-server/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// providerHandlers are the routes doctors and red cross organizations share.
type providerHandlers struct {
	scheduling  *handlers.SchedulingHandler
	credentials *handlers.CredentialHandler
	clinical    *handlers.ClinicalHandler
}

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, svc *services.Services, ws *realtime.Handler, cfg *config.Config, log *logrus.Logger) {
	// Initialize handlers
	authHandler := handlers.NewAuthHandler(svc, cfg, log)
	profileHandler := handlers.NewProfileHandler(svc, cfg, log)
	chatHandler := handlers.NewChatHandler(svc, ws, cfg, log)
	shared := providerHandlers{
		scheduling:  handlers.NewSchedulingHandler(svc, cfg, log),
		credentials: handlers.NewCredentialHandler(svc, cfg, log),
		clinical:    handlers.NewClinicalHandler(svc, cfg, log),
	}

	// Public routes (no authentication required)
	router.POST("/register", authHandler.Register)
	router.POST("/login", authHandler.Login)

	// Authenticated routes
	private := router.Group("")
	private.Use(middleware.AuthMiddleware(cfg, svc.Identity, log))
	{
		private.POST("/logout", authHandler.Logout)
		private.Static("/uploads", cfg.Uploads.Dir)

		userRoutes := private.Group("/user")
		{
			userRoutes.GET("/me", authHandler.Me)
			userRoutes.PUT("/update", authHandler.UpdateAccount)
			userRoutes.PUT("/delete", authHandler.DeleteAccount)
		}

		doctorRoutes := private.Group("/doctor")
		{
			doctorRoutes.GET("/profile/:username", profileHandler.GetDoctorProfile)
			doctorRoutes.GET("/:username/certificates", shared.credentials.ListCertificates(models.ProviderDoctor))
			doctorRoutes.GET("/:username/workdays", shared.scheduling.ListWorkdays(models.ProviderDoctor))

			owner := doctorRoutes.Group("", middleware.RoleAuthMiddleware(models.RoleDoctor))
			owner.POST("/register", profileHandler.RegisterDoctor)
			owner.PUT("/update", profileHandler.UpdateDoctor)
			owner.PUT("/delete", profileHandler.DeleteProfile)
			shared.register(owner)
			owner.POST("/medical-history/create", shared.clinical.CreateMedicalHistory)
		}

		redCrossRoutes := private.Group("/redcross")
		{
			redCrossRoutes.GET("/profile/:username", profileHandler.GetRedCrossProfile)
			redCrossRoutes.GET("/:username/certificates", shared.credentials.ListCertificates(models.ProviderRedCross))
			redCrossRoutes.GET("/:username/workdays", shared.scheduling.ListWorkdays(models.ProviderRedCross))

			owner := redCrossRoutes.Group("", middleware.RoleAuthMiddleware(models.RoleRedCross))
			owner.POST("/register", profileHandler.RegisterRedCross)
			owner.PUT("/update", profileHandler.UpdateRedCross)
			owner.PUT("/delete", profileHandler.DeleteProfile)
			shared.register(owner)
		}

		patientRoutes := private.Group("/patient")
		{
			patientRoutes.GET("/profile/:username", profileHandler.GetPatientProfile)

			owner := patientRoutes.Group("", middleware.RoleAuthMiddleware(models.RolePatient))
			owner.POST("/register", profileHandler.RegisterPatient)
			owner.PUT("/update", profileHandler.UpdatePatient)
			owner.PUT("/delete", profileHandler.DeleteProfile)
			owner.GET("/appointments", shared.scheduling.ListPatientAppointments)
			owner.GET("/prescriptions", shared.clinical.ListPatientPrescriptions)
			owner.GET("/documents", shared.clinical.ListPatientDocuments)
			owner.GET("/medical-history", shared.clinical.ListPatientMedicalHistory)
		}

		chatRoutes := private.Group("/chat")
		{
			chatRoutes.POST("/create", middleware.RoleAuthMiddleware(models.RoleDoctor), chatHandler.CreateRoom)
			chatRoutes.GET("/rooms", chatHandler.ListRooms)
			chatRoutes.POST("/:room/messages", chatHandler.SendMessage)
			chatRoutes.GET("/:room/messages", chatHandler.ListMessages)
		}

		private.GET("/ws", chatHandler.WebSocket)
	}

	// Simple health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "UP"})
	})
}

// register mounts the scheduling, certificate and clinical routes under a
// provider group.
func (h providerHandlers) register(group *gin.RouterGroup) {
	group.POST("/certificate/create", h.credentials.CreateCertificate)
	group.PUT("/certificate/update/:name", h.credentials.UpdateCertificate)
	group.PUT("/certificate/delete/:name", h.credentials.DeleteCertificate)

	group.POST("/workdays/create", h.scheduling.CreateWorkday)
	group.PUT("/workdays/update/:day", h.scheduling.UpdateWorkday)
	group.PUT("/workdays/active/:day", h.scheduling.ToggleWorkday)

	group.POST("/appointment/create", h.scheduling.CreateAppointment)
	group.PUT("/appointment/update/:name", h.scheduling.UpdateAppointment)
	group.PUT("/appointment/active/:name", h.scheduling.ToggleAppointment)
	group.PUT("/appointment/delete/:name", h.scheduling.DeleteAppointment)
	group.GET("/appointments", h.scheduling.ListProviderAppointments)
	group.GET("/appointment/:id", h.scheduling.GetAppointment)

	group.POST("/appointment/documents/create", h.clinical.CreateDocument)
	group.PUT("/appointment/documents/update/:name", h.clinical.UpdateDocument)
	group.PUT("/appointment/documents/active/:id", h.clinical.ToggleDocument)
	group.PUT("/appointment/documents/delete/:id", h.clinical.DeleteDocument)

	group.POST("/prescription/create", h.clinical.CreatePrescription)
	group.PUT("/prescription/update/:id", h.clinical.UpdatePrescription)
	group.PUT("/prescription/active/:id", h.clinical.TogglePrescription)
	group.PUT("/prescription/delete/:id", h.clinical.DeletePrescription)
}
