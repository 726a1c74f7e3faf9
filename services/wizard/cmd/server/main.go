package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"marinehub/internal/ratelimit"
	"marinehub/internal/util"
	"marinehub/pkg/payment"
	"marinehub/pkg/repairclient"
	"marinehub/pkg/scheduling"
	"marinehub/pkg/upload"
	"marinehub/services/wizard/internal/app"
	"marinehub/services/wizard/internal/config"
	"marinehub/services/wizard/internal/server"
	"marinehub/services/wizard/internal/store"
)

const defaultPaymentAPI = "https://api.stripe.com"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using process environment")
	}
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	sessionTTL, err := config.ParseDuration(cfg.SessionTTL, 2*time.Hour)
	if err != nil {
		log.Fatalf("failed to parse session TTL: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel, "wizard", cfg.LogsDir)

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		cancel()
		util.Fatal("failed to connect redis", "addr", cfg.RedisAddr, "err", err)
	}
	cancel()
	defer rdb.Close()

	signer, backend, err := uploadBackend(cfg)
	if err != nil {
		util.Fatal("failed to init upload backend", "backend", cfg.Upload.Backend, "err", err)
	}

	var payments *payment.Delegate
	if strings.TrimSpace(cfg.Payment.SecretKey) != "" {
		apiURL := cfg.Payment.APIURL
		if apiURL == "" {
			apiURL = defaultPaymentAPI
		}
		payments = payment.NewDelegate(payment.NewHTTPProcessor(apiURL, cfg.Payment.SecretKey))
	} else {
		logger.Warn("payment secret key not set; payment intents are disabled")
	}

	appCore, err := app.New(app.Config{
		Store:        store.NewRedisSessionStore(rdb, sessionTTL),
		Repairs:      repairclient.NewClient(cfg.RepairAPIURL),
		Uploader:     upload.NewUploader(backend),
		Signer:       signer,
		Events:       scheduling.NewClient(cfg.Calendly.APIURL, cfg.Calendly.Token),
		Payments:     payments,
		WidgetURL:    cfg.Calendly.WidgetURL,
		UploadFolder: cfg.Upload.Folder,
		UploadTags:   cfg.Upload.Tags,
	})
	if err != nil {
		util.Fatal("failed to init app", "err", err)
	}

	limiter, err := ratelimit.NewFixedWindowLimiter(rdb, "marinehub:ratelimit:signature", signatureLimit(cfg.SignatureRateLimitPerMinute), time.Minute)
	if err != nil {
		util.Fatal("failed to init signature rate limiter", "err", err)
	}
	httpServer, err := server.New(server.Config{
		App:               appCore,
		SignatureLimiter:  limiter,
		TrustedProxyCIDRs: cfg.TrustedProxyCIDRs,
		AllowedOrigins:    cfg.AllowedOrigins,
		MaxUploadBytes:    cfg.MaxUploadBytes,
	})
	if err != nil {
		util.Fatal("failed to init server", "err", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", "err", err)
		}
	}()

	slog.Info("server listening", "addr", addr, "upload_backend", cfg.Upload.Backend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "err", err)
	}
}

func uploadBackend(cfg config.FileConfig) (upload.Signer, upload.Backend, error) {
	switch cfg.Upload.Backend {
	case "minio":
		expiry, err := config.ParseDuration(cfg.Minio.PresignExpiry, 7*24*time.Hour)
		if err != nil {
			return nil, nil, err
		}
		backend, err := upload.NewMinioBackend(upload.MinioConfig{
			Endpoint:      cfg.Minio.Endpoint,
			AccessKey:     cfg.Minio.AccessKey,
			SecretKey:     cfg.Minio.SecretKey,
			Bucket:        cfg.Minio.Bucket,
			UseSSL:        cfg.Minio.UseSSL,
			PresignExpiry: expiry,
		})
		return nil, backend, err
	default:
		signer := &upload.SecretSigner{
			APIKey:    cfg.Cloudinary.APIKey,
			Secret:    cfg.Cloudinary.APISecret,
			Algorithm: upload.Algorithm(strings.ToLower(cfg.Cloudinary.SignatureAlgorithm)),
		}
		backend, err := upload.NewCloudinaryBackend(upload.CloudinaryConfig{
			BaseURL:   cfg.Cloudinary.BaseURL,
			CloudName: cfg.Cloudinary.CloudName,
			Signer:    signer,
		})
		return signer, backend, err
	}
}

func signatureLimit(perMinute int) int {
	if perMinute <= 0 {
		return 30
	}
	return perMinute
}
