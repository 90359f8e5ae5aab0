package bootstrap

import (
	"context"
	"log"
	"net/http"
	"time"

	"instrument-advisor-be/internal/config"
	"instrument-advisor-be/internal/controller"
	"instrument-advisor-be/internal/handler"
	"instrument-advisor-be/internal/pkg/logger"
	"instrument-advisor-be/internal/repository/implementation"
	"instrument-advisor-be/internal/repository/memory"
	"instrument-advisor-be/internal/service"
	"instrument-advisor-be/internal/websocket"
	"instrument-advisor-be/pkg/analysis"
	"instrument-advisor-be/pkg/recommender"

	pktNats "instrument-advisor-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ConversationController controller.IConversationController
	ProjectController      controller.IProjectController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	// WebSockets & Notification
	NotificationHandler *handler.NotificationHandler
	WebSocketHub        *websocket.Hub

	// Exposed for the simulation tooling
	ConversationService service.IConversationService
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	sessionRepo := memory.NewSessionRepository()
	projectRepo := implementation.NewProjectRepository(db)

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 2.5 Infrastructure
	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/notification.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// 3. Recommendation backend client
	schemaCache := recommender.NewSchemaCache(rdb, time.Duration(cfg.Recommender.SchemaCacheHours)*time.Hour)
	recClient := recommender.New(
		cfg.Recommender.BaseURL,
		recommender.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Recommender.TimeoutSeconds) * time.Second}),
		recommender.WithSchemaCache(schemaCache),
	)
	analysisRunner := analysis.New(recClient)

	// 4. Services
	publisherService := service.NewPublisherService(cfg.App.ArchiveTopic, pubSub)
	consumerService := service.NewConsumerService(
		pubSub,
		cfg.App.ArchiveTopic,
		projectRepo,
		sessionRepo,
	)

	var eventBus service.IEventPublisher
	if natsPub != nil {
		eventBus = natsPub
	}
	conversationService := service.NewConversationService(
		sessionRepo,
		recClient,
		analysisRunner,
		eventBus,
		publisherService,
		sysLogger,
	)
	projectService := service.NewProjectService(projectRepo, sessionRepo, sysLogger)

	// 4.5 Notification System Infrastructure
	notifService := service.NewNotificationService(natsSub, wsHub, wsLogger) // Hub implements NotificationDelivery

	// Start Service (Worker)
	if natsSub != nil {
		go notifService.Start()
	}

	// Handler
	notifHandler := handler.NewNotificationHandler(natsPub, wsHub, wsLogger)

	// 5. Controllers
	return &Container{
		NotificationHandler:    notifHandler,
		WebSocketHub:           wsHub,
		ConversationController: controller.NewConversationController(conversationService),
		ProjectController:      controller.NewProjectController(projectService),

		ConsumerService:     consumerService,
		ConversationService: conversationService,
	}
}
