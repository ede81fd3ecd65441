package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"imgshare-backend/internal/blobstore"
	"imgshare-backend/internal/blobstore/localblob"
	"imgshare-backend/internal/blobstore/s3blob"
	"imgshare-backend/internal/config"
	"imgshare-backend/internal/handlers"
	"imgshare-backend/internal/kvstore"
	"imgshare-backend/internal/kvstore/memorykv"
	"imgshare-backend/internal/kvstore/postgreskv"
	"imgshare-backend/internal/kvstore/rediskv"
	"imgshare-backend/internal/middleware"
	"imgshare-backend/internal/services"
	"imgshare-backend/internal/store"
	"imgshare-backend/internal/token"
)

func main() {
	cfg := config.Load()

	log, err := newLogger(cfg.Production)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kv, err := newKVStore(ctx, cfg)
	if err != nil {
		log.Fatal("failed to connect key-value store", zap.Error(err))
	}
	defer kv.Close()

	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		log.Fatal("failed to set up blob store", zap.Error(err))
	}

	codec := token.NewCodec(cfg.AuthSecret)
	quotas := store.NewQuotaLedger(kv, cfg.DefaultMaxImages)
	records := store.NewRecordStore(kv)

	authService := services.NewAuthService(kv)
	if err := authService.EnsureAdmin(ctx, cfg.AdminBootstrapPassword, cfg.DefaultMaxImages); err != nil {
		log.Fatal("failed to bootstrap admin account", zap.Error(err))
	}

	uploadService := services.NewUploadService(blobs, records, quotas, services.UploadConfig{
		NodeID:       cfg.NodeID,
		MaxBytes:     cfg.MaxUploadBytes,
		AllowedMimes: cfg.AllowedMimeTypes,
	}, log)
	fileService := services.NewFileService(blobs, records)
	userService := services.NewUserService(authService, blobs, records, quotas, log)

	authMiddleware := middleware.NewAuthMiddleware(codec, cfg.SessionCookieName, log)
	authHandler := handlers.NewAuthHandler(authService, quotas, codec, handlers.CookieConfig{
		Name:   cfg.SessionCookieName,
		TTL:    time.Duration(cfg.SessionTTLSeconds) * time.Second,
		Secure: cfg.Production,
	})
	fileHandler := handlers.NewFileHandler(fileService, uploadService)
	userHandler := handlers.NewUserHandler(userService, cfg.DefaultMaxImages)

	// The router puts the gate in front of every handler so that
	// unauthenticated requests never reach storage.
	handler := handlers.NewRouter(authMiddleware, authHandler, fileHandler, userHandler)

	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("shutdown did not finish cleanly", zap.Error(err))
		}
	}()

	log.Info("server starting", zap.String("addr", addr),
		zap.String("kv_backend", cfg.KVBackend), zap.String("blob_backend", cfg.BlobBackend))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(production bool) (*zap.Logger, error) {
	if production {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func newKVStore(ctx context.Context, cfg *config.Config) (kvstore.Store, error) {
	switch cfg.KVBackend {
	case "redis":
		return rediskv.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	case "postgres":
		return postgreskv.New(cfg.DatabaseURL)
	case "memory":
		return memorykv.New(), nil
	default:
		return nil, fmt.Errorf("unknown KV_BACKEND %q", cfg.KVBackend)
	}
}

func newBlobStore(ctx context.Context, cfg *config.Config) (blobstore.Store, error) {
	switch cfg.BlobBackend {
	case "s3":
		return s3blob.New(ctx, s3blob.Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
	case "local":
		return localblob.New(cfg.BlobPath), nil
	default:
		return nil, fmt.Errorf("unknown BLOB_BACKEND %q", cfg.BlobBackend)
	}
}
