package main

import (
	"context"
	"net/http"

	"drivebox/internal/api"
	"drivebox/internal/config"
	"drivebox/internal/database"
	"drivebox/internal/hierarchy"
	"drivebox/internal/search"
	"drivebox/internal/sharing"
	"drivebox/internal/storage"
	"drivebox/internal/uploading"
	"drivebox/internal/websocket"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load configuration", zap.Error(err))
	}

	ctx := context.Background()

	dbpool, err := pgxpool.New(ctx, cfg.DB.Source)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer dbpool.Close()

	if err := dbpool.Ping(ctx); err != nil {
		log.Fatal("failed to ping database", zap.Error(err))
	}
	log.Info("connected to database")

	objectStore, err := storage.NewS3Store(ctx, storage.S3Config{
		Endpoint:  cfg.S3.Endpoint,
		Region:    cfg.S3.Region,
		Bucket:    cfg.S3.Bucket,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
	})
	if err != nil {
		log.Fatal("failed to initialize object store", zap.Error(err))
	}
	log.Info("object store ready", zap.String("bucket", cfg.S3.Bucket))

	wsHub := websocket.NewHub(log)
	go wsHub.Run()

	store := database.NewStore(dbpool)

	hierarchyEngine, err := hierarchy.NewEngine(store, log)
	if err != nil {
		log.Fatal("failed to initialize hierarchy engine", zap.Error(err))
	}
	sharingEngine := sharing.NewEngine(store, objectStore, log)
	uploadEngine, err := uploading.NewEngine(store, objectStore, log)
	if err != nil {
		log.Fatal("failed to initialize upload engine", zap.Error(err))
	}
	searchEngine := search.NewEngine(store, log)

	server := api.NewServer(cfg, store, hierarchyEngine, sharingEngine, uploadEngine, searchEngine, wsHub, log)

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(api.MetricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", server.HealthCheckHandler)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", server.ServeWsHandler)
	r.Get("/public/{token}", server.PublicResourceHandler)

	r.Post("/api/v1/auth/login", server.LoginHandler)
	r.Post("/api/v1/auth/refresh", server.RefreshTokenHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(server.AuthMiddleware)

		r.Get("/me", server.GetCurrentUserHandler)
		r.Get("/me/storage", server.GetStorageUsageHandler)

		r.Get("/nodes", server.ListNodesHandler)
		r.Post("/nodes/folder", server.CreateFolderHandler)
		r.Post("/nodes/file", server.UploadFileHandler)
		r.Patch("/nodes/{nodeId}", server.UpdateNodeHandler)
		r.Delete("/nodes/{nodeId}", server.DeleteNodeHandler)
		r.Post("/nodes/{nodeId}/copy", server.CopyNodeHandler)
		r.Post("/nodes/{nodeId}/restore", server.RestoreNodeHandler)
		r.Get("/nodes/{nodeId}/download-url", server.DownloadURLHandler)
		r.Get("/nodes/{nodeId}/content", server.DownloadContentHandler)
		r.Post("/nodes/{nodeId}/star", server.StarNodeHandler)
		r.Get("/nodes/{nodeId}/star", server.GetStarStatusHandler)
		r.Delete("/nodes/{nodeId}/star", server.UnstarNodeHandler)

		r.Get("/trash", server.ListTrashHandler)
		r.Delete("/trash/purge", server.PurgeTrashHandler)

		r.Post("/nodes/{nodeId}/grants", server.CreateGrantsHandler)
		r.Get("/nodes/{nodeId}/grants", server.ListGrantsHandler)
		r.Patch("/grants/{grantId}", server.UpdateGrantHandler)
		r.Delete("/grants/{grantId}", server.DeleteGrantHandler)
		r.Post("/nodes/{nodeId}/link", server.CreatePublicLinkHandler)

		r.Get("/shares/incoming/users", server.ListSharingUsersHandler)
		r.Get("/shares/incoming/nodes", server.ListSharedNodesHandler)
		r.Get("/shares/outgoing", server.ListOutgoingGrantsHandler)

		r.Post("/uploads", server.StartUploadHandler)
		r.Put("/uploads/{uploadId}/parts/{partNumber}", server.UploadChunkHandler)
		r.Post("/uploads/{uploadId}/complete", server.CompleteUploadHandler)

		r.Get("/search", server.SearchNodesHandler)
		r.Get("/recent", server.RecentFilesHandler)
		r.Get("/starred", server.ListStarredHandler)

		r.Get("/events", server.GetEventsHandler)

		r.Get("/sessions", server.ListSessionsHandler)
		r.Delete("/sessions/{sessionId}", server.DeleteSessionHandler)
		r.Post("/sessions/terminate_all", server.TerminateAllSessionsHandler)
	})

	addr := cfg.AppHost
	if addr == "" {
		addr = ":8080"
	}

	log.Info("starting server", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}
