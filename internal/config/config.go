// Package config loads runtime configuration from the environment.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values. Every field maps to one
// environment variable; optional integrations are disabled when their
// variables are empty.
type Config struct {
	Env  string // GIN_MODE
	Port string // APP_PORT

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	JWTSecret   string
	CORSOrigins []string

	RedisAddr     string // empty disables the Redis invoice counter
	RedisPassword string
	RedisDB       int

	RabbitMQURL string // empty disables domain events

	MidtransServerKey string
	MidtransClientKey string
	MidtransUseProd   bool

	SMTP SMTPConfig

	OverdueCron     string
	OPReportCron    string
	DefaultTimezone string
}

// SMTPConfig holds outbound mail settings
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Enabled reports whether outbound mail is configured.
func (s SMTPConfig) Enabled() bool {
	return s.Host != "" && s.From != ""
}

// Load reads configs/.env when present, then the process environment.
func Load() Config {
	if err := godotenv.Load("configs/.env"); err != nil {
		log.Println("No configs/.env file found or error loading it")
	}

	cfg := Config{
		Env:  getenv("GIN_MODE", "debug"),
		Port: getenv("APP_PORT", getenv("PORT", "8080")),

		DBHost:     getenv("DB_HOST", "localhost"),
		DBPort:     getenv("DB_PORT", "5432"),
		DBUser:     getenv("DB_USER", "postgres"),
		DBPassword: getenv("DB_PASSWORD", "postgres"),
		DBName:     getenv("DB_NAME", "tourdesk"),
		DBSSLMode:  getenv("DB_SSLMODE", "disable"),

		JWTSecret:   os.Getenv("JWT_SECRET"),
		CORSOrigins: splitList(getenv("CORS_ORIGINS", "http://localhost:5173,http://127.0.0.1:5173")),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       atoi(getenv("REDIS_DB", "0")),

		RabbitMQURL: os.Getenv("RABBITMQ_URL"),

		MidtransServerKey: os.Getenv("MIDTRANS_SERVER_KEY"),
		MidtransClientKey: os.Getenv("MIDTRANS_CLIENT_KEY"),
		MidtransUseProd:   parseBool(os.Getenv("MIDTRANS_USE_PROD")),

		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     atoi(getenv("SMTP_PORT", "587")),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     os.Getenv("SMTP_FROM"),
		},

		OverdueCron:     getenv("OVERDUE_CRON", "0 * * * *"),
		OPReportCron:    getenv("OP_REPORT_CRON", "0 18 * * *"),
		DefaultTimezone: getenv("DEFAULT_TIMEZONE", "Asia/Bangkok"),
	}

	if cfg.JWTSecret == "" {
		if cfg.Env == "release" {
			log.Fatal("FATAL: JWT_SECRET environment variable is required in release mode")
		}
		cfg.JWTSecret = "default_super_secret_key" // development only
	}
	return cfg
}

// DSN renders the Postgres connection string.
func (c Config) DSN() string {
	return "postgres://" + c.DBUser + ":" + c.DBPassword + "@" + c.DBHost + ":" + c.DBPort + "/" + c.DBName + "?sslmode=" + c.DBSSLMode
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoi(s string) int {
	i, _ := strconv.Atoi(s)
	return i
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	return err == nil && b
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
