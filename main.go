package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"ehealthwave-server/internal/config"
	"ehealthwave-server/internal/events"
	"ehealthwave-server/internal/logger"
	"ehealthwave-server/internal/middleware"
	"ehealthwave-server/internal/models"
	"ehealthwave-server/internal/realtime"
	"ehealthwave-server/internal/routes"
	"ehealthwave-server/internal/services"
	"ehealthwave-server/internal/storage"
)

func main() {
	root := &cobra.Command{
		Use:           "ehealthwave",
		Short:         "EHealthWave coordination server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP and websocket server",
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update the database schema and exit",
			RunE:  runMigrate,
		},
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap loads the environment and builds the logger.
func bootstrap() (*config.Config, *logrus.Logger, error) {
	// A missing .env file is fine; the process environment still applies.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, nil, fmt.Errorf("error loading .env file: %w", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("error loading config: %w", err)
	}
	return cfg, logger.New(cfg.Log.Level, cfg.Log.Format), nil
}

func runMigrate(_ *cobra.Command, _ []string) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	if _, err := models.InitDB(models.DatabaseConfig{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN}); err != nil {
		return fmt.Errorf("error migrating database: %w", err)
	}
	log.WithField("driver", cfg.Database.Driver).Info("database schema is up to date")
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database connection
	db, err := models.InitDB(models.DatabaseConfig{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN})
	if err != nil {
		return fmt.Errorf("error connecting to database: %w", err)
	}

	files, err := storage.NewLocalStore(cfg.Uploads.Dir, cfg.Uploads.MaxRequest)
	if err != nil {
		return err
	}

	hub := realtime.NewHub(log)
	var broadcaster realtime.Broadcaster = hub
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("error connecting to redis: %w", err)
		}

		relay := realtime.NewRedisRelay(client, cfg.Redis.Channel, hub, log)
		go func() {
			if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("realtime relay stopped")
			}
		}()
		broadcaster = relay
	}

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		log.WithFields(logrus.Fields{"brokers": cfg.Kafka.Brokers, "topic": cfg.Kafka.Topic}).Info("publishing domain events")
	}
	defer publisher.Close()

	svc := services.New(services.Deps{
		DB:          db,
		Files:       files,
		Broadcaster: broadcaster,
		Events:      publisher,
		Log:         log,
		SessionTTL:  time.Duration(cfg.SessionTTLHours) * time.Hour,
	})

	// Initialize Gin router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.MaxMultipartMemory = cfg.Uploads.MaxRequest
	router.Use(gin.Recovery(), middleware.RequestLogger(log))
	// Two images and the form fields must fit.
	router.Use(middleware.BodyLimit(3 * cfg.Uploads.MaxRequest))

	// Configure CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Origin}
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader}
	router.Use(cors.New(corsConfig))

	ws := realtime.NewHandler(hub, broadcaster, svc.Messaging, cfg.Origin, log)
	routes.SetupRoutes(router, svc, ws, cfg, log)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Port).Info("server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
