package config

import (
	"log"
	"os"
)

type Config struct {
	DatabaseURL   string
	JWTSecret     string
	Port          string
	CORSOrigin    string // defaults to the dev frontend origin
	CatalogPath   string // optional; compiled-in catalog when empty
	RedisAddr     string // optional; snapshot cache disabled when empty
	RedisPassword string
	Timezone      string // IANA name for the day boundary, default UTC
	MigrationsDir string
}

func Load() Config {
	cfg := Config{
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		Port:          getenv("PORT", "8080"),
		CORSOrigin:    getenv("CORS_ORIGIN", "http://localhost:5173"),
		CatalogPath:   os.Getenv("CATALOG_PATH"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		Timezone:      getenv("TIMEZONE", "UTC"),
		MigrationsDir: getenv("MIGRATIONS_DIR", "migrations"),
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
