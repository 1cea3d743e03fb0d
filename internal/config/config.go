package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Firebase FirebaseConfig
	Auth     AuthConfig
	Logging  LoggingConfig
	Habits   HabitConfig
	Effects  EffectConfig
}

type ServerConfig struct {
	Port            string
	Environment     string
	Timezone        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	GracefulTimeout time.Duration
	RateLimitRPS    float64
	RateLimitBurst  int
	MetricsUser     string
	MetricsPass     string
	PprofSecret     string
}

type StoreConfig struct {
	// Driver is one of firestore, postgres or memory.
	Driver      string
	DatabaseURL string
	// TxMaxRetries bounds retries of a transaction that lost a race.
	TxMaxRetries int
}

type FirebaseConfig struct {
	ProjectID          string
	CredentialsFile    string
	ServiceAccountJSON string
}

type AuthConfig struct {
	ClerkSecretKey     string
	ClerkWebhookSecret string
}

type LoggingConfig struct {
	Level string
}

type HabitConfig struct {
	MaxStreakShields     int
	InitialStreakShields int
}

type EffectConfig struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
}

// Load reads configuration from the environment. Outside production a .env
// file is loaded first when present.
func Load() (*Config, error) {
	env := getEnv("APP_ENV", "development")
	if env != "production" {
		envFile := fmt.Sprintf(".env.%s", env)
		if _, err := os.Stat(envFile); err == nil {
			_ = godotenv.Load(envFile)
		} else {
			_ = godotenv.Load()
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			Environment:     env,
			Timezone:        getEnv("APP_TIMEZONE", "Local"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getDurationEnv("SERVER_IDLE_TIMEOUT", 60*time.Second),
			GracefulTimeout: getDurationEnv("SERVER_GRACEFUL_TIMEOUT", 15*time.Second),
			RateLimitRPS:    getFloatEnv("RATE_LIMIT_RPS", 2),
			RateLimitBurst:  getIntEnv("RATE_LIMIT_BURST", 10),
			MetricsUser:     os.Getenv("METRICS_USER"),
			MetricsPass:     os.Getenv("METRICS_PASS"),
			PprofSecret:     os.Getenv("PPROF_SECRET"),
		},
		Store: StoreConfig{
			Driver:       strings.ToLower(getEnv("STORE_DRIVER", "firestore")),
			DatabaseURL:  os.Getenv("DATABASE_URL"),
			TxMaxRetries: getIntEnv("TX_MAX_RETRIES", 5),
		},
		Firebase: FirebaseConfig{
			ProjectID:          os.Getenv("FIREBASE_PROJECT_ID"),
			CredentialsFile:    os.Getenv("FIREBASE_CREDENTIALS_FILE"),
			ServiceAccountJSON: os.Getenv("FCM_SERVICE_ACCOUNT_JSON"),
		},
		Auth: AuthConfig{
			ClerkSecretKey:     os.Getenv("CLERK_SECRET_KEY"),
			ClerkWebhookSecret: os.Getenv("CLERK_WEBHOOK_SECRET"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Habits: HabitConfig{
			MaxStreakShields:     getIntEnv("MAX_STREAK_SHIELDS", 5),
			InitialStreakShields: getIntEnv("INITIAL_STREAK_SHIELDS", 1),
		},
		Effects: EffectConfig{
			Workers:     getIntEnv("EFFECT_WORKERS", 4),
			QueueSize:   getIntEnv("EFFECT_QUEUE_SIZE", 256),
			MaxAttempts: getIntEnv("EFFECT_MAX_ATTEMPTS", 3),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "firestore", "memory":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("store config: DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("store config: unknown STORE_DRIVER %q", c.Store.Driver)
	}
	if c.Store.TxMaxRetries < 0 {
		return fmt.Errorf("store config: TX_MAX_RETRIES must not be negative")
	}

	if c.Habits.MaxStreakShields < 0 {
		return fmt.Errorf("habit config: MAX_STREAK_SHIELDS must not be negative")
	}
	if c.Habits.InitialStreakShields < 0 || c.Habits.InitialStreakShields > c.Habits.MaxStreakShields {
		return fmt.Errorf("habit config: INITIAL_STREAK_SHIELDS must be between 0 and %d", c.Habits.MaxStreakShields)
	}

	if c.Effects.Workers < 1 {
		return fmt.Errorf("effect config: EFFECT_WORKERS must be at least 1")
	}
	if c.Effects.QueueSize < 1 {
		return fmt.Errorf("effect config: EFFECT_QUEUE_SIZE must be at least 1")
	}
	if c.Effects.MaxAttempts < 1 {
		return fmt.Errorf("effect config: EFFECT_MAX_ATTEMPTS must be at least 1")
	}

	if c.IsProduction() && c.Auth.ClerkSecretKey == "" {
		return fmt.Errorf("auth config: CLERK_SECRET_KEY is required in production")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
