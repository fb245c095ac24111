package config

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	// Server configuration
	ServerPort  string `default:"8080"`
	Environment string `default:"development"`
	LogLevel    string `default:"info"`

	// Database configuration
	DBDriver   string `default:"postgres"` // postgres, mysql or sqlite
	DBHost     string `default:"localhost"`
	DBPort     string `default:"5432"`
	DBUser     string `default:"postgres"`
	DBPassword string `default:"postgres"`
	DBName     string `default:"notes"`
	DBPath     string `default:"data/notes.db"` // sqlite only
	DBMaxOpen  int    `default:"20"`
	DBMaxIdle  int    `default:"5"`

	// Redis configuration
	RedisAddress string        `default:"localhost:6379"`
	CacheTTL     time.Duration `default:"24h"`

	// JWT configuration
	JWTSecret string
	JWTTTL    time.Duration `default:"72h"`

	WorkerPoolSize int `default:"4"`

	FrontendAddress string `default:"https://production-frontend.com"`
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Load builds the configuration from defaults, an optional .env file and the environment.
func Load(logger *zap.Logger) (*Config, error) {
	// Find .env file
	envPath := ".env"
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		// Try to find .env in parent directories
		envPath = filepath.Join("..", ".env")
		if _, err := os.Stat(envPath); os.IsNotExist(err) {
			envPath = filepath.Join("..", "..", ".env")
		}
	}

	// Load .env file if it exists
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			logger.Warn("error loading .env file", zap.String("path", envPath), zap.Error(err))
		}
	}

	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, err
	}

	cfg.ServerPort = getEnv("PORT", cfg.ServerPort)
	cfg.Environment = getEnv("ENV", cfg.Environment)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.DBDriver = strings.ToLower(getEnv("DB_DRIVER", cfg.DBDriver))
	cfg.DBHost = getEnv("DB_HOST", cfg.DBHost)
	cfg.DBPort = getEnv("DB_PORT", cfg.DBPort)
	cfg.DBUser = getEnv("DB_USER", cfg.DBUser)
	cfg.DBPassword = getEnv("DB_PASSWORD", cfg.DBPassword)
	cfg.DBName = getEnv("DB_NAME", cfg.DBName)
	cfg.DBPath = getEnv("DB_PATH", cfg.DBPath)
	cfg.DBMaxOpen = getEnvInt("DB_MAX_OPEN", cfg.DBMaxOpen)
	cfg.DBMaxIdle = getEnvInt("DB_MAX_IDLE", cfg.DBMaxIdle)
	cfg.RedisAddress = getEnv("REDIS_ADDRESS", cfg.RedisAddress)
	cfg.CacheTTL = getEnvDuration("CACHE_TTL", cfg.CacheTTL)
	cfg.JWTTTL = getEnvDuration("JWT_TTL", cfg.JWTTTL)
	cfg.WorkerPoolSize = getEnvInt("WORKER_POOL_SIZE", cfg.WorkerPoolSize)
	cfg.FrontendAddress = getEnv("FRONTEND_ADDRESS", cfg.FrontendAddress)

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		secret, err := generateRandomSecret(32)
		if err != nil {
			return nil, err
		}
		cfg.JWTSecret = secret
		logger.Warn("JWT_SECRET not set, generated a random secret; tokens will not survive a restart")
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return d
}

// generateRandomSecret returns a hex encoded secret built from length random bytes
func generateRandomSecret(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
