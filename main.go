package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"social-service/internal/auth"
	"social-service/internal/config"
	"social-service/internal/db"
	"social-service/internal/events"
	grpcsvc "social-service/internal/grpc"
	"social-service/internal/handlers"
	"social-service/internal/logger"
	"social-service/internal/metrics"
	"social-service/internal/observability"
	"social-service/internal/rabbitmq"
	"social-service/internal/realtime"
	"social-service/internal/repositories"
	"social-service/internal/repositories/memory"
	"social-service/internal/services"
	"social-service/internal/storage"
	"social-service/internal/telemetry"
)

const uploadPath = "/uploads"

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := logger.Init(cfg.Environment); err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()
	lg := logger.Get()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	observability.InitMetrics(prometheus.DefaultRegisterer)
	metrics.RegisterSocialMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(cfg)
	if err != nil {
		lg.Fatal("failed to open store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer st.close()

	blobs, uploadDir := openBlobs(ctx, cfg)

	publisher := newPublisher(cfg.AMQPURL, cfg.EventsExchange, "event")
	defer publisher.Close()
	auditPublisher := newPublisher(cfg.AMQPURL, cfg.LogsExchange, "audit")
	defer auditPublisher.Close()

	hub := realtime.NewHub()
	notifier := events.Multi{events.NewAMQPNotifier(publisher), hub}
	auditEmitter := telemetry.NewAuditEmitter(auditPublisher, cfg.ServiceName, cfg.Environment)

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	userService := services.NewUserService(st.users, auth.NewBcryptHasher(), tokens, blobs, cfg.MaxUploadBytes)
	visibility := services.NewVisibilityResolver(st.friends)
	friendService := services.NewFriendService(st.friends, st.users, userService, notifier)
	contentService := services.NewContentService(st.content, userService, visibility, blobs, notifier, cfg.MaxUploadBytes)

	router := handlers.NewRouter(handlers.RouterConfig{
		Tokens:         tokens,
		UploadDir:      uploadDir,
		UploadPath:     uploadPath,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Ready:          st.ready,
	}, handlers.Handlers{
		Auth:    handlers.NewAuthHandler(userService, auditEmitter),
		Users:   handlers.NewUserHandler(userService, friendService, auditEmitter),
		Friends: handlers.NewFriendHandler(friendService, auditEmitter),
		Posts:   handlers.NewPostHandler(contentService, auditEmitter),
		Events:  handlers.NewEventsHandler(hub),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// Open event streams end with the process context instead of holding Shutdown.
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	grpcServer := grpcsvc.NewServer(grpcsvc.NewSocialGRPCServer(friendService, visibility, userService))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return grpcsvc.Serve(gctx, cfg.GRPCAddr, grpcServer)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			lg.Warn("HTTP server shutdown error", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		lg.Error("server error", zap.Error(err))
		os.Exit(1)
	}
	lg.Info("shutdown complete")
}

type store struct {
	users   repositories.UserRepository
	friends repositories.FriendRepository
	content repositories.ContentRepository
	ready   func(context.Context) error
	close   func() error
}

func openStore(cfg *config.Config) (*store, error) {
	if cfg.StoreDriver == config.StoreMemory {
		logger.Get().Warn("using in-memory store; data is lost on restart")
		return &store{
			users:   memory.NewUserStore(),
			friends: memory.NewFriendStore(),
			content: memory.NewContentStore(),
			close:   func() error { return nil },
		}, nil
	}

	driver, err := db.DriverName(cfg.StoreDriver)
	if err != nil {
		return nil, err
	}
	conn, err := db.Connect(driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	return &store{
		users:   repositories.NewUserRepository(conn),
		friends: repositories.NewFriendRepository(conn),
		content: repositories.NewContentRepository(conn),
		ready:   conn.PingContext,
		close:   conn.Close,
	}, nil
}

func openBlobs(ctx context.Context, cfg *config.Config) (storage.BlobStore, string) {
	if cfg.BlobDriver == config.BlobS3 {
		store, err := storage.NewS3Store(ctx, cfg.S3Bucket, cfg.S3Region, cfg.S3PublicURL)
		if err != nil {
			logger.Get().Fatal("failed to init s3 storage", zap.Error(err))
		}
		return store, ""
	}

	store, err := storage.NewLocalStore(cfg.UploadDir, uploadPath)
	if err != nil {
		logger.Get().Fatal("failed to init local storage", zap.Error(err))
	}
	return store, store.Dir()
}

func newPublisher(amqpURL, exchange, purpose string) rabbitmq.Publisher {
	if amqpURL == "" {
		logger.Get().Warn("AMQP_URL not set; publishing disabled", zap.String("purpose", purpose))
		return rabbitmq.NewNoopPublisher()
	}
	pub, err := rabbitmq.NewPublisher(amqpURL, exchange)
	if err != nil {
		logger.Get().Warn("failed to initialize RabbitMQ publisher", zap.String("purpose", purpose), zap.Error(err))
		return rabbitmq.NewNoopPublisher()
	}
	return pub
}
