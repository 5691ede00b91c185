package app

import (
	"context"
	"fmt"
	"net/http"

	"clan-manager/internal/admin"
	"clan-manager/internal/auth"
	"clan-manager/internal/clanwar"
	"clan-manager/internal/config"
	"clan-manager/internal/db"
	"clan-manager/internal/maintenance"
	"clan-manager/internal/media"
	"clan-manager/internal/observability"
	"clan-manager/internal/roster"
	"clan-manager/internal/security"
	"clan-manager/internal/strategy"
)

const (
	loginLimitMessage    = "Too many login attempts. Please try again in 15 minutes."
	registerLimitMessage = "Too many accounts created from this IP. Please try again in 1 hour."
	apiLimitMessage      = "Too many requests. Please slow down."
)

type Options struct {
	// RunMigrations is the default used when RUN_MIGRATIONS_ON_STARTUP is unset.
	RunMigrations bool
}

type Runtime struct {
	Config  config.Config
	Logger  *observability.Logger
	Handler http.Handler
	Close   func() error
}

// Database is what the runtime needs from the pool.
type Database interface {
	db.DBTX
	Pinger
}

func Build(ctx context.Context, options Options) (*Runtime, error) {
	cfg, err := config.LoadConfig(options.RunMigrations)
	if err != nil {
		return nil, err
	}

	logger := observability.NewLogger()
	if err := observability.InitSentry(cfg.SentryDSN, cfg.Env); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{
		MaxConns:        int32(cfg.DB.MaxConns),
		MinConns:        int32(cfg.DB.MinConns),
		MaxConnLifetime: cfg.DB.MaxConnLifetime,
		MaxConnIdleTime: cfg.DB.MaxConnIdleTime,
	})
	if err != nil {
		return nil, err
	}

	if cfg.RunMigrations {
		if err := db.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	deps, err := Assemble(ctx, cfg, pool, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &Runtime{
		Config:  cfg,
		Logger:  logger,
		Handler: NewRouter(deps),
		Close: func() error {
			observability.FlushSentry()
			pool.Close()
			return nil
		},
	}, nil
}

// Assemble builds every service and handler on top of an open database.
func Assemble(ctx context.Context, cfg config.Config, database Database, logger *observability.Logger) (Deps, error) {
	var counters security.CounterStore = security.NewMemoryStore()
	if cfg.CounterStore == config.CounterStorePostgres {
		counters = security.NewPostgresStore(database)
	}

	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return Deps{}, fmt.Errorf("init token issuer: %w", err)
	}

	tracker := security.NewLoginTracker(counters, cfg.LoginMaxAttempts, cfg.LoginLockWindow)
	users := auth.NewRepository(database)
	authService := auth.NewService(users, tracker, tokens).WithBcryptCost(cfg.BcryptCost)

	adminUser, err := authService.BootstrapAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword)
	if err != nil {
		return Deps{}, fmt.Errorf("bootstrap admin: %w", err)
	}
	if adminUser.ID != "" {
		logger.Info("admin_bootstrapped", map[string]any{"username": adminUser.Username})
	}

	blacklist := security.NewBlacklist()
	for _, ip := range cfg.BlockedIPs {
		if _, err := blacklist.Block(ip, "configured at startup", 0); err != nil {
			return Deps{}, fmt.Errorf("BLOCKED_IPS %q: %w", ip, err)
		}
	}

	var uploader media.ImageUploader
	if cfg.CloudinaryURL != "" {
		cloudinary, err := media.NewCloudinary(cfg.CloudinaryURL)
		if err != nil {
			return Deps{}, fmt.Errorf("init cloudinary: %w", err)
		}
		uploader = cloudinary
	} else {
		logger.Warn("cloudinary_disabled", map[string]any{"reason": "CLOUDINARY_URL not set, images are stored inline"})
	}
	images := media.NewImages(uploader)

	rosterRepo := roster.NewRepository(database)

	return Deps{
		Logger:         logger,
		TrustProxy:     cfg.TrustProxy,
		AllowedOrigins: cfg.AllowedOrigins,

		Blacklist: blacklist,
		SpeedLimiter: security.NewSpeedLimiter(counters, security.SpeedPolicy{
			After:    cfg.Slowdown.After,
			Step:     cfg.Slowdown.Step,
			MaxDelay: cfg.Slowdown.MaxDelay,
			Window:   cfg.Slowdown.Window,
		}),
		LoginLimiter: security.NewRateLimiter(counters, security.Policy{
			Name:           "login",
			Max:            cfg.LoginRateLimit.Max,
			Window:         cfg.LoginRateLimit.Window,
			SkipSuccessful: true,
			Message:        loginLimitMessage,
		}),
		RegisterLimiter: security.NewRateLimiter(counters, security.Policy{
			Name:    "register",
			Max:     cfg.RegisterRateLimit.Max,
			Window:  cfg.RegisterRateLimit.Window,
			Message: registerLimitMessage,
		}),
		APILimiter: security.NewRateLimiter(counters, security.Policy{
			Name:    "api",
			Max:     cfg.APIRateLimit.Max,
			Window:  cfg.APIRateLimit.Window,
			Message: apiLimitMessage,
		}),
		Tokens: tokens,

		Auth:     auth.NewHandler(authService),
		Roster:   roster.NewHandler(rosterRepo, images),
		ClanWar:  clanwar.NewHandler(clanwar.NewRepository(database)),
		Strategy: strategy.NewHandler(strategy.NewRepository(database), images),
		Media:    media.NewUploadHandler(uploader),
		Admin:    admin.NewHandler(authService, rosterRepo, blacklist),
		Cleanup:  maintenance.NewCleanupHandler(counters, blacklist, logger, cfg.CronSecret),
		Database: database,
	}, nil
}
