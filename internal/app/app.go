package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "voty/docs"
	"voty/internal/config"
	"voty/internal/database"
	"voty/internal/handlers"
	"voty/internal/logger"
	"voty/internal/metrics"
	"voty/internal/middleware"
	"voty/internal/ratelimit"
	"voty/internal/repositories"
	"voty/internal/routes"
	"voty/internal/services"
	"voty/internal/utils"
	"voty/internal/worker/cleanup"
)

// Run loads configuration, wires every component and serves until SIGINT or
// SIGTERM.
func Run(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Environment)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === DB ===
	if cfg.Database.AutoMigrate {
		log.Info("running database migrations")
		if err := database.RunMigrations(cfg.Database.DSN); err != nil {
			return err
		}
	}
	db, err := database.Open(ctx, cfg.Database.DSN, database.PoolOptions{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, cfg.Database.PingTimeout)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Warn("database close", zap.Error(err))
		}
	}()

	// === Metrics ===
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	// === Send limiter ===
	policy := ratelimit.Policy{
		Window:      cfg.Verification.ResendWindow,
		MaxInWindow: cfg.Verification.MaxSends,
		Cooldown:    cfg.Verification.ResendCooldown,
	}
	var limiter ratelimit.Limiter
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		limiter = ratelimit.NewRedisLimiter(rdb, policy)
		log.Info("send limiter: redis", zap.String("addr", cfg.Redis.Addr))
	} else {
		limiter = ratelimit.NewMemoryLimiter(policy)
		log.Info("send limiter: in-process")
	}

	// === Repos ===
	verificationRepo := repositories.NewPhoneVerificationRepository(db)
	identityRepo := repositories.NewIdentityRepository(db)
	profileRepo := repositories.NewProfileRepository(db)
	resetRepo := repositories.NewPasswordResetRepository(db)

	// === Services ===
	authService := services.NewAuthService(cfg.Auth.JWTSecret, services.AuthOptions{
		AccessTTL: cfg.Auth.AccessTokenTTL,
		SignupTTL: cfg.Auth.SignupTokenTTL,
		EmailTTL:  cfg.Auth.EmailTokenTTL,
	})
	emailService := services.NewEmailService(
		cfg.Email.SMTPHost,
		cfg.Email.SMTPPort,
		cfg.Email.SMTPUser,
		cfg.Email.SMTPPassword,
		cfg.Email.FromEmail,
	)
	mobizonClient := utils.NewClientWithOptions(
		cfg.Mobizon.APIKey,
		cfg.Mobizon.SenderID,
		cfg.Mobizon.DryRun,
		cfg.Mobizon.Timeout,
		logger.WithComponent(log, "mobizon"),
	)

	verificationService := services.NewVerificationService(
		verificationRepo,
		mobizonClient,
		limiter,
		collector,
		logger.WithComponent(log, "verification"),
		services.VerificationOptions{
			CodeTTL:     cfg.Verification.CodeTTL,
			MaxAttempts: cfg.Verification.MaxAttempts,
		},
	)
	identityService := services.NewIdentityService(identityRepo, authService, emailService, cfg.Auth.PublicBaseURL, logger.WithComponent(log, "identity"))
	registrationService := services.NewRegistrationService(
		identityService,
		profileRepo,
		verificationService,
		collector,
		logger.WithComponent(log, "registration"),
		services.RegistrationOptions{
			ProfileRetries: cfg.Registration.ProfileRetries,
			RetryBackoff:   cfg.Registration.RetryBackoff,
		},
	)
	signupService := services.NewSignupService(authService, verificationService, registrationService, cfg.Auth.EmailRedirectURL, logger.WithComponent(log, "signup"))
	userService := services.NewUserService(identityService, profileRepo, authService)
	resetService := services.NewPasswordResetService(identityRepo, resetRepo, emailService, authService, cfg.Auth.PasswordResetURL, cfg.Auth.ResetTokenTTL, logger.WithComponent(log, "password-reset"))

	// === Cleanup worker ===
	job := cleanup.NewCleanupJob(verificationRepo, identityRepo, collector, logger.WithComponent(log, "cleanup"))
	job.Interval = cfg.Cleanup.Interval
	job.MaxAge = cfg.Cleanup.VerificationMaxAge
	job.BatchSize = cfg.Cleanup.IdentityBatchSize
	go job.Start(ctx)

	// === Gin ===
	if cfg.Log.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger.WithComponent(log, "http")))
	router.Use(middleware.CORS(cfg.Server.CORSOrigin))
	router.Use(middleware.Timeout(cfg.Server.RequestTimeout))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	routes.SetupRoutes(router, routes.Handlers{
		Verification:  handlers.NewVerificationHandler(verificationService),
		Signup:        handlers.NewSignupHandler(signupService),
		Auth:          handlers.NewAuthHandler(userService, identityService, logger.WithComponent(log, "auth")),
		PasswordReset: handlers.NewPasswordResetHandler(resetService),
		Health:        handlers.NewHealthHandler(db),
		Metrics:       metrics.Handler(registry),
	}, authService)

	// === Run ===
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
