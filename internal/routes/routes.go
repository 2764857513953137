package routes

import (
	"log"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/croquete1/Fitness-Pro-sub002/internal/config"
	"github.com/croquete1/Fitness-Pro-sub002/internal/handlers"
	"github.com/croquete1/Fitness-Pro-sub002/internal/middleware"
	"github.com/croquete1/Fitness-Pro-sub002/internal/repository"
	"github.com/croquete1/Fitness-Pro-sub002/internal/services"
	chatws "github.com/croquete1/Fitness-Pro-sub002/internal/websocket"
)

func RegisterRoutes(app *fiber.App, cfg *config.Config, db *pgxpool.Pool) {
	threadRepo := repository.NewThreadRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	attachmentRepo := repository.NewAttachmentRepository(db)
	profileRepo := repository.NewProfileRepository(db)

	if !cfg.StorageConfigured() {
		log.Println("Supabase storage is not fully configured; attachment uploads will fail")
	}
	storage := services.NewSupabaseStorage(cfg.SupabaseURL, cfg.SupabaseBucket, cfg.SupabaseServiceKey)
	attachmentService := services.NewAttachmentService(storage, attachmentRepo, cfg.SupabaseBucket)
	messagingService := services.NewMessagingService(
		threadRepo,
		messageRepo,
		attachmentService,
		attachmentRepo,
		profileRepo,
	)

	chatHub := chatws.NewHub()
	go chatHub.Run()

	chatHandler := handlers.NewChatHandler(messagingService, chatHub)
	wsHandler := handlers.NewWSHandler(chatHub, cfg.JWTSecret)

	api := app.Group("/api")
	protected := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))

	threads := protected.Group("/threads")
	threads.Get("", chatHandler.ListThreads)
	threads.Get("/with/:counterpartId", chatHandler.OpenThreadWith)
	threads.Get("/:id", chatHandler.GetThread)
	threads.Post("/:id/read", chatHandler.MarkThreadRead)

	protected.Post("/messages", chatHandler.SendMessage)

	api.Use("/v1/ws", wsHandler.Auth)
	api.Get("/v1/ws", websocket.New(wsHandler.Handle))
}
