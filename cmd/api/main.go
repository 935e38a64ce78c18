package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	_ "github.com/redmonkez12/fitcoach-api/docs" // Swagger docs (generated)
	"github.com/redmonkez12/fitcoach-api/internal/access"
	"github.com/redmonkez12/fitcoach-api/internal/account"
	"github.com/redmonkez12/fitcoach-api/internal/auth"
	"github.com/redmonkez12/fitcoach-api/internal/billing"
	"github.com/redmonkez12/fitcoach-api/internal/config"
	"github.com/redmonkez12/fitcoach-api/internal/database"
	"github.com/redmonkez12/fitcoach-api/internal/email"
	httpServer "github.com/redmonkez12/fitcoach-api/internal/http"
	"github.com/redmonkez12/fitcoach-api/internal/logging"
	"github.com/redmonkez12/fitcoach-api/internal/ratelimit"
	"github.com/redmonkez12/fitcoach-api/internal/user"
)

// @title           FitCoach API
// @version         1.0
// @description     Entitlement, billing webhook and token service for the FitCoach web and mobile apps.

// @contact.name   API Support
// @contact.email  support@fitcoach.app

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the access token.

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger(cfg.Server.IsDevelopment())
	logger.Info("starting application",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
	)

	ctx := context.Background()

	sqlDB, err := database.Open(ctx, cfg.Database.ConnectionString())
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer sqlDB.Close()

	if cfg.Database.RunMigrations {
		if err := database.Migrate(sqlDB); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		logger.Info("database migrations applied")
	}
	db := database.NewBunDB(sqlDB)

	redisClient, err := initRedis(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}
	defer redisClient.Close()

	// Repositories
	userRepo := user.NewRepository(db)
	refreshRepo := auth.NewRedisRepository(redisClient)
	verificationRepo := auth.NewVerificationTokenRepository(db)

	rateLimiter := ratelimit.NewLimiter(redisClient, 10, 15*time.Minute, 2*time.Minute)

	// Tokens
	pasetoService, err := auth.NewPasetoService(cfg.Auth.PasetoKey)
	if err != nil {
		return fmt.Errorf("failed to initialize PASETO service: %w", err)
	}
	mobileTokens, err := auth.NewMobileTokenService(cfg.Auth.MobileTokenSecret, cfg.Auth.MobileTokenDuration)
	if err != nil {
		return fmt.Errorf("failed to initialize mobile tokens: %w", err)
	}
	identity := auth.NewGoogleVerifier(
		cfg.Identity.GoogleClientID,
		cfg.Identity.GoogleIssuers,
		auth.NewRemoteKeySet(cfg.Identity.GoogleJWKSURL, time.Hour),
	)

	emailService, err := email.NewService(cfg.Email, cfg.Auth.PasswordResetTTL, cfg.Auth.EmailChangeTTL)
	if err != nil {
		return fmt.Errorf("failed to initialize email service: %w", err)
	}
	if !emailService.Enabled() {
		logger.Warn("SMTP not configured, emails will be skipped")
	}

	authService := auth.NewService(
		userRepo,
		refreshRepo,
		verificationRepo,
		pasetoService,
		mobileTokens,
		identity,
		emailService,
		logger,
		auth.Options{
			SessionDuration:      cfg.Auth.SessionDuration,
			RefreshTokenDuration: cfg.Auth.RefreshTokenDuration,
			TrialDuration:        cfg.Auth.TrialDuration,
			PasswordResetTTL:     cfg.Auth.PasswordResetTTL,
			EmailChangeTTL:       cfg.Auth.EmailChangeTTL,
		},
	)
	accountService := account.NewService(userRepo, cfg.Auth.TrialDuration, logger)

	// Billing
	dedup := billing.NewRedisDeduper(redisClient, cfg.Auth.WebhookDedupRetention)
	stripeHook := billing.NewIngester[billing.StripeEvent](billing.NewStripeAdapter(cfg.Billing.WebhookSecret), userRepo, dedup)
	revenueCatHook := billing.NewIngester[billing.RCEvent](billing.NewRevenueCatAdapter(cfg.Mobile.WebhookSecret), userRepo, dedup)
	portal := billing.NewPortalService(
		billing.NewStripePortalClient(cfg.Billing.SecretKey),
		userRepo,
		cfg.Billing.PortalReturnURL,
		cfg.Billing.APITimeout,
	)

	var webApp http.Handler
	if cfg.Server.WebAppURL != "" {
		webApp, err = httpServer.NewWebAppProxy(cfg.Server.WebAppURL)
		if err != nil {
			return fmt.Errorf("invalid WEB_APP_URL: %w", err)
		}
	}

	router := httpServer.NewRouter(cfg, httpServer.Handlers{
		Auth: auth.NewHandler(
			authService,
			rateLimiter,
			!cfg.Server.IsDevelopment(), // isProduction
			cfg.Auth.SessionDuration,
			cfg.Auth.RefreshTokenDuration,
		),
		Mobile:         auth.NewMobileHandler(authService),
		AuthMiddleware: auth.NewMiddleware(pasetoService, mobileTokens),
		Account:        account.NewHandler(accountService),
		Portal:         billing.NewPortalHandler(portal),
		StripeHook:     stripeHook,
		RevenueCatHook: revenueCatHook,
		Guard:          access.NewGuard(pasetoService, access.NewMatcher()),
		Limiter:        rateLimiter,
		WebApp:         webApp,
	}, logger)

	server := httpServer.NewServer(
		":"+cfg.Server.Port,
		router,
		cfg.Server.ReadTimeout,
		cfg.Server.WriteTimeout,
		logger,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("received signal", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// initRedis initializes the Redis connection and returns a Redis client
func initRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}
