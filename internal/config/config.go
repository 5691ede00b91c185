package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const minJWTSecretBytes = 32

const (
	CounterStoreMemory   = "memory"
	CounterStorePostgres = "postgres"
)

type Config struct {
	DatabaseURL string
	JWTSecret   string
	Port        string
	Env         string
	SentryDSN   string

	CloudinaryURL string
	CronSecret    string

	AllowedOrigins []string
	TrustProxy     bool
	BlockedIPs     []string
	CounterStore   string

	TokenTTL   time.Duration
	BcryptCost int

	LoginMaxAttempts int
	LoginLockWindow  time.Duration

	LoginRateLimit    RateLimit
	RegisterRateLimit RateLimit
	APIRateLimit      RateLimit
	Slowdown          Slowdown

	AdminUsername string
	AdminPassword string

	DB            DBPool
	RunMigrations bool
}

type RateLimit struct {
	Max    int
	Window time.Duration
}

type Slowdown struct {
	After    int
	Step     time.Duration
	MaxDelay time.Duration
	Window   time.Duration
}

type DBPool struct {
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// LoadConfig reads the process environment. runMigrations is the default for
// RUN_MIGRATIONS_ON_STARTUP, which differs between the server and the
// serverless entry.
func LoadConfig(runMigrations bool) (Config, error) {
	databaseURL, err := mustEnv("DATABASE_URL")
	if err != nil {
		return Config{}, err
	}
	jwtSecret, err := mustEnv("JWT_SECRET")
	if err != nil {
		return Config{}, err
	}
	if len(jwtSecret) < minJWTSecretBytes {
		return Config{}, fmt.Errorf("JWT_SECRET must be at least %d bytes", minJWTSecretBytes)
	}

	counterStore := strings.ToLower(envOrDefault("RATE_LIMIT_STORE", CounterStoreMemory))
	if counterStore != CounterStoreMemory && counterStore != CounterStorePostgres {
		return Config{}, fmt.Errorf("RATE_LIMIT_STORE must be %q or %q", CounterStoreMemory, CounterStorePostgres)
	}

	adminUsername := strings.TrimSpace(os.Getenv("ADMIN_USERNAME"))
	adminPassword := os.Getenv("ADMIN_PASSWORD")
	if (adminUsername == "") != (adminPassword == "") {
		return Config{}, fmt.Errorf("ADMIN_USERNAME and ADMIN_PASSWORD are required together")
	}

	return Config{
		DatabaseURL: databaseURL,
		JWTSecret:   jwtSecret,
		Port:        envOrDefault("PORT", "8080"),
		Env:         envOrDefault("APP_ENV", "development"),
		SentryDSN:   strings.TrimSpace(os.Getenv("SENTRY_DSN")),

		CloudinaryURL: strings.TrimSpace(os.Getenv("CLOUDINARY_URL")),
		CronSecret:    strings.TrimSpace(os.Getenv("CRON_SECRET")),

		AllowedOrigins: envListOrDefault("ALLOWED_ORIGINS", []string{"*"}),
		TrustProxy:     EnvBoolOrDefault("TRUST_PROXY", false),
		BlockedIPs:     envListOrDefault("BLOCKED_IPS", nil),
		CounterStore:   counterStore,

		TokenTTL:   envHoursOrDefault("TOKEN_TTL_HOURS", 24),
		BcryptCost: envIntOrDefault("BCRYPT_COST", 10),

		LoginMaxAttempts: envIntOrDefault("LOGIN_MAX_ATTEMPTS", 5),
		LoginLockWindow:  envMinutesOrDefault("LOGIN_LOCK_MINUTES", 15),

		LoginRateLimit: RateLimit{
			Max:    envIntOrDefault("LOGIN_RATE_LIMIT_MAX", 15),
			Window: envMinutesOrDefault("LOGIN_RATE_LIMIT_WINDOW_MINUTES", 15),
		},
		RegisterRateLimit: RateLimit{
			Max:    envIntOrDefault("REGISTER_RATE_LIMIT_MAX", 20),
			Window: envMinutesOrDefault("REGISTER_RATE_LIMIT_WINDOW_MINUTES", 60),
		},
		APIRateLimit: RateLimit{
			Max:    envIntOrDefault("API_RATE_LIMIT_MAX", 200),
			Window: envSecondsOrDefault("API_RATE_LIMIT_WINDOW_SECONDS", 60),
		},
		Slowdown: Slowdown{
			After:    envIntOrDefault("SLOWDOWN_AFTER", 500),
			Step:     envMillisOrDefault("SLOWDOWN_STEP_MS", 100),
			MaxDelay: envMillisOrDefault("SLOWDOWN_MAX_MS", 5000),
			Window:   envMinutesOrDefault("SLOWDOWN_WINDOW_MINUTES", 15),
		},

		AdminUsername: adminUsername,
		AdminPassword: adminPassword,

		DB: DBPool{
			MaxConns:        envIntOrDefault("DB_MAX_CONNS", 10),
			MinConns:        envIntOrDefault("DB_MIN_CONNS", 1),
			MaxConnLifetime: envMinutesOrDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30),
			MaxConnIdleTime: envMinutesOrDefault("DB_CONN_MAX_IDLE_TIME_MINUTES", 10),
		},
		RunMigrations: EnvBoolOrDefault("RUN_MIGRATIONS_ON_STARTUP", runMigrations),
	}, nil
}

func (c Config) Addr() string {
	return ":" + c.Port
}

func mustEnv(name string) (string, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return "", fmt.Errorf("missing required env: %s", name)
	}
	return value, nil
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func envListOrDefault(name string, fallback []string) []string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}

func envIntOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envMillisOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Millisecond
}

func envSecondsOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Second
}

func envMinutesOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Minute
}

func envHoursOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Hour
}

func EnvBoolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if value == "" {
		return fallback
	}

	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
