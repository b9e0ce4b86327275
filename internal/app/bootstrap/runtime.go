package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"gorm.io/gorm"

	cacheadapter "github.com/viralforge/invoicing-accounts/internal/adapters/cache"
	eventadapter "github.com/viralforge/invoicing-accounts/internal/adapters/events"
	grpcadapter "github.com/viralforge/invoicing-accounts/internal/adapters/grpc"
	httpadapter "github.com/viralforge/invoicing-accounts/internal/adapters/http"
	"github.com/viralforge/invoicing-accounts/internal/adapters/postgres"
	"github.com/viralforge/invoicing-accounts/internal/adapters/security"
	"github.com/viralforge/invoicing-accounts/internal/application"
	"github.com/viralforge/invoicing-accounts/internal/ports"
)

type Runtime struct {
	cfg     Config
	logger  *slog.Logger
	db      *gorm.DB
	redis   *redis.Client
	service *application.Service
	outbox  *eventadapter.OutboxWorker
	closers []func() error
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).
		With("service", cfg.ServiceID)
	slog.SetDefault(logger)
	logger.Info("bootstrapping invoicing accounts service", "http_port", cfg.HTTPPort, "grpc_port", cfg.GRPCPort)

	rt := &Runtime{cfg: cfg, logger: logger}

	rt.db, err = postgres.Connect(ctx, cfg.DatabaseURL, postgres.PoolConfig{MaxOpenConns: cfg.MaxDBConns})
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, func() error {
		sqlDB, err := rt.db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})

	if err := postgres.RunMigrations(ctx, rt.db); err != nil {
		rt.close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	rt.redis, err = cacheadapter.Connect(ctx, cfg.RedisURL)
	if err != nil {
		rt.close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	rt.closers = append(rt.closers, rt.redis.Close)

	tokens, err := newTokenIssuer(cfg, logger)
	if err != nil {
		rt.close()
		return nil, err
	}

	repos := postgres.NewRepositories(rt.db)
	rt.service = application.NewService(application.Dependencies{
		Config: application.Config{
			PublicBaseURL:            cfg.PublicBaseURL,
			CodeTTL:                  cfg.CodeTTL,
			LinkTTL:                  cfg.LinkTTL,
			FailedLoginThreshold:     cfg.FailedThreshold,
			LockoutDuration:          cfg.LockoutDuration,
			ResetRequestThreshold:    cfg.ResetRequestThreshold,
			ResetRequestWindow:       cfg.ResetRequestWindow,
			ConcealUnknownResetEmail: cfg.ConcealUnknownResetEmail,
		},
		Accounts:      repos.Accounts,
		Verifications: repos.Verifications,
		Lockouts:      cacheadapter.NewRedisLockoutStore(rt.redis),
		Hasher:        security.NewBcryptHasher(cfg.BcryptCost),
		Tokens:        tokens,
	})

	publisher, err := rt.newPublisher()
	if err != nil {
		rt.close()
		return nil, err
	}
	rt.outbox = eventadapter.NewOutboxWorker(logger, repos.Outbox, publisher, eventadapter.WorkerConfig{
		Interval:   cfg.OutboxPollInterval,
		BatchSize:  cfg.OutboxBatchSize,
		ClaimTTL:   cfg.OutboxClaimTTL,
		MaxRetries: cfg.OutboxMaxRetries,
	})

	return rt, nil
}

func newTokenIssuer(cfg Config, logger *slog.Logger) (*security.TokenIssuer, error) {
	tokenCfg := security.TokenConfig{
		KeyID:      cfg.JWTKeyID,
		Issuer:     cfg.JWTIssuer,
		Audience:   cfg.JWTAudience,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
		Leeway:     5 * time.Second,
	}
	issuer, err := security.NewTokenIssuer(tokenCfg, cfg.JWTPrivateKeyPEM, cfg.JWTPublicKeyPEM)
	if err == nil {
		return issuer, nil
	}
	if !cfg.AllowEphemeralJWT {
		return nil, fmt.Errorf("init token issuer: %w", err)
	}
	logger.Warn("using ephemeral JWT keys for local/dev runtime")
	issuer, err = security.NewEphemeralTokenIssuer(tokenCfg)
	if err != nil {
		return nil, fmt.Errorf("init ephemeral token issuer: %w", err)
	}
	return issuer, nil
}

// newPublisher fans out to kafka and SMTP when configured and logs events otherwise.
func (r *Runtime) newPublisher() (*eventadapter.FanoutPublisher, error) {
	var sinks []ports.EventPublisher
	if len(r.cfg.KafkaBrokers) > 0 {
		kafka, err := eventadapter.NewKafkaPublisher(r.cfg.KafkaBrokers, r.cfg.KafkaTopics)
		if err != nil {
			return nil, fmt.Errorf("init kafka publisher: %w", err)
		}
		r.closers = append(r.closers, kafka.Close)
		sinks = append(sinks, kafka)
	}
	if r.cfg.SMTPHost != "" {
		mail, err := eventadapter.NewMailPublisher(eventadapter.MailConfig{
			Host:     r.cfg.SMTPHost,
			Port:     r.cfg.SMTPPort,
			Username: r.cfg.SMTPUsername,
			Password: r.cfg.SMTPPassword,
			From:     r.cfg.SMTPFrom,
		})
		if err != nil {
			return nil, fmt.Errorf("init mail publisher: %w", err)
		}
		sinks = append(sinks, mail)
	}
	fanout := eventadapter.NewFanoutPublisher(sinks...)
	if fanout.Len() == 0 {
		r.logger.Warn("no kafka brokers or smtp host configured; outbox events are only logged")
		fanout = eventadapter.NewFanoutPublisher(eventadapter.NewLoggingPublisher(r.logger))
	}
	return fanout, nil
}

// ready reports whether postgres and redis answer.
func (r *Runtime) ready(ctx context.Context) error {
	if err := postgres.Ping(ctx, r.db); err != nil {
		return err
	}
	return r.redis.Ping(ctx).Err()
}

func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer r.close()

	router := httpadapter.NewRouter(httpadapter.NewHandler(r.service, httpadapter.WithReadiness(r.ready)))
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", r.cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	grpcadapter.Register(grpcServer, grpcadapter.NewAccountTokenServer(r.service))

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", r.cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("listen gRPC: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		r.logger.Info("http server started", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		r.logger.Info("grpc server started", "addr", lis.Addr().String())
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case runErr = <-errCh:
		r.logger.Error("server failure", "error", runErr)
	}

	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	grpcServer.GracefulStop()
	return runErr
}

func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer r.close()

	r.logger.Info("outbox worker started")
	err := r.outbox.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// close releases resources in reverse acquisition order.
func (r *Runtime) close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			r.logger.Warn("close resource", "error", err)
		}
	}
	r.closers = nil
}
