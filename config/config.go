package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	DatabaseURL  string
	JWTSecretKey string
	ServerPort   int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicBaseURL   string

	// Тайминги матчей. Значения в минутах, см. DefaultMatchPolicy.
	MatchMinLiveDuration time.Duration
	MatchCancelWindow    time.Duration
	MatchScoreEditGrace  time.Duration

	LeaderboardRebuildInterval time.Duration
	StatusUpdateInterval       time.Duration
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	// Загружаем .env файл, если он есть. Ошибку не считаем фатальной.
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	jwtKey := os.Getenv("JWT_SECRET_KEY")
	if jwtKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	port, err := intEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, err
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	redisDB, err := intEnv("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}

	minLive, err := minutesEnv("MATCH_MIN_LIVE_MINUTES", 5)
	if err != nil {
		return nil, err
	}
	cancelWindow, err := minutesEnv("MATCH_CANCEL_WINDOW_MINUTES", 10)
	if err != nil {
		return nil, err
	}
	scoreGrace, err := minutesEnv("MATCH_SCORE_GRACE_MINUTES", 15)
	if err != nil {
		return nil, err
	}
	rebuildInterval, err := minutesEnv("LEADERBOARD_REBUILD_MINUTES", 30)
	if err != nil {
		return nil, err
	}
	statusInterval, err := minutesEnv("STATUS_UPDATE_MINUTES", 1)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabaseURL:  dbURL,
		JWTSecretKey: jwtKey,
		ServerPort:   port,

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,

		R2AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:      os.Getenv("R2_BUCKET_NAME"),
		R2PublicBaseURL:   os.Getenv("R2_PUBLIC_BASE_URL"),

		MatchMinLiveDuration: minLive,
		MatchCancelWindow:    cancelWindow,
		MatchScoreEditGrace:  scoreGrace,

		LeaderboardRebuildInterval: rebuildInterval,
		StatusUpdateInterval:       statusInterval,
	}

	return cfg, nil
}

// R2Configured сообщает, заданы ли все реквизиты объектного хранилища.
func (c *Config) R2Configured() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" &&
		c.R2SecretAccessKey != "" && c.R2BucketName != "" && c.R2PublicBaseURL != ""
}

func intEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return v, nil
}

func minutesEnv(key string, defMinutes int) (time.Duration, error) {
	v, err := intEnv(key, defMinutes)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return time.Duration(v) * time.Minute, nil
}
