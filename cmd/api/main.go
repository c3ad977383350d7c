package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-assess-api/internal/config"
	"github.com/noah-isme/gema-assess-api/internal/database"
	"github.com/noah-isme/gema-assess-api/internal/handler"
	"github.com/noah-isme/gema-assess-api/internal/middleware"
	"github.com/noah-isme/gema-assess-api/internal/models"
	"github.com/noah-isme/gema-assess-api/internal/observability"
	"github.com/noah-isme/gema-assess-api/internal/repository"
	"github.com/noah-isme/gema-assess-api/internal/router"
	"github.com/noah-isme/gema-assess-api/internal/service"
	"github.com/noah-isme/gema-assess-api/pkg/ai"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()

	shutdownTracing, err := observability.InitTracing(context.Background(), observability.TracingConfig{
		Enabled:      cfg.TracingEnabled,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SampleRate:   cfg.TraceSampleRate,
		ServiceName:  cfg.AppName,
	})
	if err != nil {
		log.Fatalf("failed to initialise tracing: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Warn().Err(err).Msg("failed to flush traces")
		}
	}()

	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&models.Assignment{}, &models.Submission{}, &models.ChatLog{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(context.Background(), cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis url not set, assignment settings are read from the database on every request")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain()
	}

	var (
		judge    ai.Judge
		streamer ai.ChatStreamer
	)
	if cfg.OpenAIAPIKey != "" {
		client, err := ai.NewOpenAIClient(ai.OpenAIConfig{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			ChatModel:  cfg.ChatModel,
			JudgeModel: cfg.JudgeModel,
			MaxTokens:  cfg.AIMaxTokens,
			Logger:     logger,
		})
		if err != nil {
			log.Fatalf("failed to create openai client: %v", err)
		}
		judge = client
		streamer = client
	} else {
		logger.Warn().Msg("openai api key not set, evaluation and conversation turns will fail")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	submissionRepo := repository.NewSubmissionRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	chatLogRepo := repository.NewChatLogRepository(db)

	events := service.NewNATSEventPublisher(natsConn, cfg.NATSSubject, logger)
	store := service.NewAttemptStore(submissionRepo, events, logger)
	assignmentService := service.NewAssignmentService(assignmentRepo, redisClient, cfg.AssignmentCacheTTL, logger)
	scorer := service.NewRubricScorer(judge, logger)
	orchestrator := service.NewConversationOrchestrator(streamer, logger)
	chatLogs := service.NewChatLogService(chatLogRepo, logger)

	assessmentService := service.NewAssessmentService(
		scorer,
		store,
		orchestrator,
		chatLogs,
		assignmentService,
		service.AllowAllGate{},
		service.AssessmentConfig{DefaultMaxAttempts: cfg.DefaultMaxAttempts},
		logger,
	)
	sessionService := service.NewSessionService(submissionRepo, assignmentService, store, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	probes := map[string]handler.HealthProbe{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if redisClient != nil {
		probes["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	if natsConn != nil {
		probes["nats"] = func(context.Context) error {
			if !natsConn.IsConnected() {
				return fmt.Errorf("nats connection %s", natsConn.Status())
			}
			return nil
		}
	}

	middleware.Register(app, middleware.Config{
		Logger:         &logger,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Development:    cfg.AppEnv == "development",
	})
	router.Register(app, cfg, router.Dependencies{
		AssessmentHandler:     handler.NewAssessmentHandler(assessmentService, validate, logger),
		TurnHandler:           handler.NewTurnHandler(assessmentService, validate, logger),
		SessionHandler:        handler.NewSessionHandler(sessionService, validate, logger),
		AssignmentHandler:     handler.NewAssignmentHandler(assignmentService, validate, logger),
		JWTMiddleware:         middleware.JWTProtected(cfg.JWTSecret),
		OptionalJWTMiddleware: middleware.OptionalJWT(cfg.JWTSecret),
		HealthProbes:          probes,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
