package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"hopin-service/internal/config"
	"hopin-service/internal/db"
	"hopin-service/internal/feed"
	"hopin-service/internal/handlers"
	"hopin-service/internal/middleware"
	"hopin-service/internal/observability"
	"hopin-service/internal/plans"
	"hopin-service/internal/repositories"
	"hopin-service/internal/telemetry"
	"hopin-service/internal/ws"
)

func main() {
	cfg := config.Load()
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set")
	}

	database, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	shutdownTracing, err := observability.InitTracing(context.Background(), "hopin-service", cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Printf("tracing shutdown: %v", err)
		}
	}()

	feedPublisher := feed.NewPublisher(cfg.AMQPURL, cfg.FeedExchange)
	defer feedPublisher.Close()
	log.Printf("change feed publisher mode=%s", feed.PublisherMode(feedPublisher))

	var audit *telemetry.AuditEmitter
	if cfg.AMQPURL != "" {
		eventPublisher, err := observability.NewAMQPPublisher(cfg.AMQPURL, cfg.FeedExchange)
		if err != nil {
			log.Printf("event publisher disabled: %v", err)
		} else {
			defer eventPublisher.Close()
			observability.SetPublisher(eventPublisher)
			audit = telemetry.NewAuditEmitter(eventPublisher, cfg.AuditRouting, "hopin-service", cfg.Environment)
		}
	}

	conversationRepo := repositories.NewConversationRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	userRepo := repositories.NewUserRepo(database)
	planRepo := repositories.NewPlanRepo(database)

	planService := plans.NewService(planRepo)

	hub := ws.NewHub()

	conversationHandler := handlers.NewConversationHandler(conversationRepo, messageRepo, userRepo, hub, feedPublisher, cfg.OnlineWindow)
	planHandler := handlers.NewPlanHandler(planService, audit)
	conversationWS := ws.NewConversationWebSocketHandler(hub, conversationRepo, cfg.JWTSecret)

	router := gin.Default()

	// middlewares
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("hopin-service"))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret)

	router.GET("/conversations", authMiddleware, conversationHandler.ListConversations)
	router.POST("/conversations/start", authMiddleware, conversationHandler.StartConversation)
	router.GET("/conversations/:conversation_id/messages", authMiddleware, conversationHandler.GetMessages)
	router.POST("/conversations/:conversation_id/messages", authMiddleware, conversationHandler.PostMessage)
	router.POST("/conversations/:conversation_id/read", authMiddleware, conversationHandler.MarkRead)
	router.POST("/presence/heartbeat", authMiddleware, conversationHandler.Heartbeat)

	router.POST("/plans", authMiddleware, planHandler.CreatePlan)
	router.GET("/plans/:plan_id", authMiddleware, planHandler.GetPlan)
	router.PUT("/plans/:plan_id", authMiddleware, planHandler.UpdatePlan)
	router.DELETE("/plans/:plan_id", authMiddleware, planHandler.DeletePlan)
	router.GET("/plans/:plan_id/members", authMiddleware, planHandler.ListMembers)
	router.POST("/plans/:plan_id/join", authMiddleware, planHandler.RequestToJoin)
	router.POST("/plans/:plan_id/invites", authMiddleware, planHandler.InviteUsers)
	router.POST("/plans/:plan_id/requests/:member_id", authMiddleware, planHandler.ManageRequest)
	router.POST("/plans/:plan_id/respond", authMiddleware, planHandler.RespondToInvite)
	router.POST("/plans/:plan_id/verify", authMiddleware, planHandler.VerifyAttendee)

	router.GET("/ws/conversations/:conversation_id", conversationWS.Handle)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterDebugRoutes(router, audit, cfg.DebugRoutes)

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
