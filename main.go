package main

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"messaging-service/internal/bus"
	"messaging-service/internal/config"
	"messaging-service/internal/conversations"
	"messaging-service/internal/db"
	"messaging-service/internal/handlers"
	"messaging-service/internal/middleware"
	"messaging-service/internal/notifications"
	"messaging-service/internal/observability"
	"messaging-service/internal/presence"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/repositories"
	"messaging-service/internal/users"
	"messaging-service/internal/ws"
)

const serviceName = "messaging-service"

func main() {
	ctx := context.Background()
	cfg := config.Load()

	shutdownTracing, err := observability.SetupTracing(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}
	defer func() {
		_ = shutdownTracing(context.Background())
	}()

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	messageRepo := repositories.NewMessageRepo(database)
	conversationRepo := repositories.NewConversationRepo(database)

	// REDIS_URL switches presence and event relay from process-local to
	// shared, for multi-instance deployments.
	var presenceStore presence.Store
	var eventBus bus.EventBus
	if cfg.RedisURL != "" {
		redisPresence, err := presence.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect presence store: %v", err)
		}
		defer redisPresence.Close()
		presenceStore = redisPresence

		redisBus, err := bus.NewRedisBus(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect event bus: %v", err)
		}
		defer redisBus.Close()
		eventBus = redisBus
		log.Println("presence and event relay backed by redis")
	} else {
		presenceStore = presence.NewMemoryStore()
		eventBus = bus.NewMemoryBus()
		log.Println("presence and event relay are process-local")
	}

	hub := ws.NewHub(eventBus)
	gateway := ws.NewGateway(eventBus)

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	notifier := notifications.NewNotifier(publisher, serviceName)

	var directory users.Directory = users.StaticDirectory{}
	if cfg.ProfileServiceURL != "" {
		directory = users.NewHTTPDirectory(cfg.ProfileServiceURL)
	}

	aggregator := conversations.NewAggregator(conversationRepo, presenceStore, directory)

	messageHandler := handlers.NewMessageHandler(messageRepo, gateway, notifier)
	conversationHandler := handlers.NewConversationHandler(aggregator, messageRepo, presenceStore, gateway)
	wsHandler := ws.NewHandler(hub, gateway, presenceStore, []byte(cfg.JWTSecret))

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authMiddleware := middleware.AuthMiddleware([]byte(cfg.JWTSecret))

	router.POST("/messages", authMiddleware, messageHandler.Send)
	router.DELETE("/messages/:id", authMiddleware, messageHandler.Delete)
	router.POST("/messages/:id/delivered", authMiddleware, messageHandler.MarkDelivered)
	router.GET("/search", authMiddleware, messageHandler.Search)
	router.GET("/unread-count", authMiddleware, messageHandler.UnreadCount)

	router.GET("/conversations", authMiddleware, conversationHandler.List)
	router.GET("/conversations/:userId", authMiddleware, conversationHandler.Messages)
	router.PUT("/conversations/:userId/read", authMiddleware, conversationHandler.MarkRead)
	router.GET("/online-users", authMiddleware, conversationHandler.OnlineUsers)

	router.GET("/ws", wsHandler.Handle)

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
