package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/teamvault/backend/internal/config"
	"github.com/teamvault/backend/internal/database"
	"github.com/teamvault/backend/internal/handlers"
	"github.com/teamvault/backend/internal/middleware"
	"github.com/teamvault/backend/internal/services"
	"github.com/teamvault/backend/internal/storage"
	"github.com/teamvault/backend/pkg/logger"
	"github.com/teamvault/backend/pkg/utils"
)

func main() {
	logger.Init()

	cfg := config.Load()
	utils.ConfigureJWT(cfg.JWT.Secret, cfg.JWT.ExpirationHours)

	db, err := database.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	var storageClient storage.ObjectStore
	switch cfg.Storage.Backend {
	case "s3":
		storageClient, err = storage.NewS3Client(cfg.Storage)
	default:
		storageClient, err = storage.NewMinIOClient(cfg.Storage)
	}
	if err != nil {
		log.Fatalf("storage initialization failed: %v", err)
	}
	if err := storageClient.EnsureBucket(context.Background()); err != nil {
		log.Fatalf("failed ensuring storage bucket: %v", err)
	}

	authzService := services.NewAuthzService(db)
	treeCollector := services.NewTreeCollector(db, cfg.Delete.TreeBatchSize)
	keyResolver := storage.NewKeyResolver(storageClient.Bucket(), storageClient.Endpoints()...)
	batchDeleter := storage.NewBatchDeleter(storageClient, cfg.Delete.AttemptTimeout)
	metadataExecutor := services.NewMetadataExecutor(db)
	deletionService := services.NewDeletionService(db, authzService, treeCollector, keyResolver, batchDeleter, metadataExecutor)

	authHandler := handlers.NewAuthHandler(db)
	projectsHandler := handlers.NewProjectsHandler(db)
	foldersHandler := handlers.NewFoldersHandler(db, deletionService)
	filesHandler := handlers.NewFilesHandler(db, storageClient, deletionService)
	sharesHandler := handlers.NewSharesHandler(db)

	authMiddleware := middleware.NewAuthMiddleware(db)

	app := fiber.New(fiber.Config{BodyLimit: 100 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS())
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")

	// Share-link resolution is token-addressed; auth is optional and only
	// attributes the access log when a valid token is presented.
	publicRoutes := api.Group("/public", authMiddleware.OptionalAuth)
	publicRoutes.Get("/links/:token", sharesHandler.ResolveLink)

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", authHandler.Register)
	authRoutes.Post("/login", authHandler.Login)
	authRoutes.Get("/me", authMiddleware.RequireAuth, authHandler.Me)

	projectRoutes := api.Group("/projects", authMiddleware.RequireAuth)
	projectRoutes.Post("/", projectsHandler.Create)
	projectRoutes.Get("/", projectsHandler.List)
	projectRoutes.Get("/:id", projectsHandler.Get)
	projectRoutes.Get("/:id/root", filesHandler.ListProjectRoot)
	projectRoutes.Post("/:id/members", projectsHandler.AddMember)
	projectRoutes.Delete("/:id/members/:userId", projectsHandler.RemoveMember)

	folderRoutes := api.Group("/folders", authMiddleware.RequireAuth)
	folderRoutes.Post("/", foldersHandler.Create)
	folderRoutes.Get("/:id/children", foldersHandler.Children)
	folderRoutes.Delete("/:id", foldersHandler.Delete)

	fileRoutes := api.Group("/files", authMiddleware.RequireAuth)
	fileRoutes.Post("/upload", filesHandler.Upload)
	fileRoutes.Get("/:id", filesHandler.Get)
	fileRoutes.Get("/:id/download", filesHandler.Download)
	fileRoutes.Get("/:id/download-url", filesHandler.DownloadURL)
	fileRoutes.Post("/:id/grants", sharesHandler.CreateGrant)
	fileRoutes.Get("/:id/grants", sharesHandler.ListGrants)
	fileRoutes.Post("/:id/links", sharesHandler.CreateLink)
	fileRoutes.Get("/:id/links", sharesHandler.ListLinks)
	fileRoutes.Delete("/:id", filesHandler.Delete)

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	logger.Info("server_starting", map[string]interface{}{
		"port":            cfg.Server.Port,
		"address":         listenAddr,
		"storage_backend": cfg.Storage.Backend,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(listenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("shutting down server due to signal: %s", sig)
		shutdownDone := make(chan struct{})
		go func() {
			_ = app.Shutdown()
			close(shutdownDone)
		}()
		select {
		case <-shutdownDone:
		case <-time.After(10 * time.Second):
			log.Print("forced shutdown timeout reached")
		}
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	}
}
