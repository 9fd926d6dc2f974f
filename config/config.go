package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Server   ServerConfig
	Notifier NotifierConfig
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type ServerConfig struct {
	Addr string
}

// NotifierConfig controls the retry sweeper for failed notifications.
type NotifierConfig struct {
	SweepInterval  time.Duration
	InitialBackoff time.Duration
	MaxAttempts    int
}

var AppConfig *Config

func LoadConfig() *Config {
	AppConfig = &Config{
		Database: GetDatabaseConfig(),
		Redis:    GetRedisConfig(),
		Server:   GetServerConfig(),
		Notifier: GetNotifierConfig(),
	}

	return AppConfig
}

func LoadTestConfig() *Config {
	testDBConfig := DatabaseConfig{
		Host:     "localhost",
		Port:     "5433", // test DB runs on 5433
		User:     "postgres",
		Password: "postgres",
		DBName:   "test_db",
		SSLMode:  "disable",
	}

	testRedisConfig := RedisConfig{
		Host:     "localhost",
		Port:     "6380", // test Redis runs on 6380
		Password: "",
		DB:       1,
	}

	return &Config{
		Database: testDBConfig,
		Redis:    testRedisConfig,
		Server:   ServerConfig{Addr: ":0"},
		Notifier: NotifierConfig{
			SweepInterval:  100 * time.Millisecond,
			InitialBackoff: 50 * time.Millisecond,
			MaxAttempts:    3,
		},
	}
}

func GetDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", "postgres"),
		DBName:   getEnv("DB_NAME", "postgres"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
	}
}

func GetRedisConfig() RedisConfig {
	db, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		panic(err)
	}

	return RedisConfig{
		Host:     getEnv("REDIS_HOST", "localhost"),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       db,
	}
}

func GetServerConfig() ServerConfig {
	return ServerConfig{
		Addr: getEnv("SERVER_ADDR", ":8080"),
	}
}

func GetNotifierConfig() NotifierConfig {
	sweep, err := time.ParseDuration(getEnv("NOTIFIER_SWEEP_INTERVAL", "30s"))
	if err != nil {
		panic(err)
	}
	backoff, err := time.ParseDuration(getEnv("NOTIFIER_INITIAL_BACKOFF", "1m"))
	if err != nil {
		panic(err)
	}
	maxAttempts, err := strconv.Atoi(getEnv("NOTIFIER_MAX_ATTEMPTS", "5"))
	if err != nil {
		panic(err)
	}

	return NotifierConfig{
		SweepInterval:  sweep,
		InitialBackoff: backoff,
		MaxAttempts:    maxAttempts,
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
