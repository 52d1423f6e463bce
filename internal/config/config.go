package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Secret cipher key derivation
	MasterSecret string
	KDFSalt      string

	// Sessions
	SessionTTL   time.Duration
	CookieName   string
	CookieSecure bool

	// Admin
	AdminEmails string

	// Server
	Port           string
	CORSOrigins    string
	DebugEndpoints bool
}

func Load() *Config {
	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "clinic_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		MasterSecret: getEnv("MASTER_SECRET", ""),
		KDFSalt:      getEnv("KDF_SALT", "clinicore-kdf-v1"),

		SessionTTL:   parseDuration(getEnv("SESSION_TTL", "168h")),
		CookieName:   getEnv("SESSION_COOKIE_NAME", "clinic_session"),
		CookieSecure: parseBool(getEnv("COOKIE_SECURE", "false")),

		AdminEmails: getEnv("ADMIN_EMAILS", ""),

		Port:           getEnv("PORT", "8080"),
		CORSOrigins:    getEnv("CORS_ORIGINS", "http://localhost:5173"),
		DebugEndpoints: parseBool(getEnv("DEBUG_ENDPOINTS", "false")),
	}
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 168 * time.Hour
	}
	return d
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false
	}
	return b
}
