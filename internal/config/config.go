package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string

	// Location is the civil calendar the hospital operates in. Visit dates
	// and the closing-hour check use wall-clock parts in this location, not
	// UTC midnight.
	Location       *time.Location
	QueueCloseHour int

	DefaultAvgServiceMinutes float64
	MaxReissueCount          int
	ReissueProximity         int
	MaxAdvanceStep           int

	RateLimitPerMinute     int
	RateLimitBurst         int
	UserRateLimitPerMinute int
	UserRateLimitBurst     int

	OTLPEndpoint string
	LogLevel     string
}

func Load() Config {
	_ = godotenv.Load()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	cfg := Config{
		Port:                     port,
		DatabaseURL:              os.Getenv("DB_DSN"),
		Location:                 loadLocation("TIMEZONE", "Asia/Ho_Chi_Minh"),
		QueueCloseHour:           readInt("QUEUE_CLOSE_HOUR", 24),
		DefaultAvgServiceMinutes: readFloat("DEFAULT_AVG_SERVICE_MINUTES", 5),
		MaxReissueCount:          readInt("MAX_REISSUE_COUNT", 3),
		ReissueProximity:         readInt("REISSUE_PROXIMITY", 3),
		MaxAdvanceStep:           readInt("MAX_ADVANCE_STEP", 10),
		RateLimitPerMinute:       readInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:           readInt("RATE_LIMIT_BURST", 30),
		UserRateLimitPerMinute:   readInt("USER_RATE_LIMIT_PER_MIN", 60),
		UserRateLimitBurst:       readInt("USER_RATE_LIMIT_BURST", 20),
		OTLPEndpoint:             os.Getenv("OTLP_ENDPOINT"),
		LogLevel:                 os.Getenv("LOG_LEVEL"),
	}

	setupLogger(cfg.LogLevel)
	return cfg
}

func loadLocation(key, fallback string) *time.Location {
	name := os.Getenv(key)
	if name == "" {
		name = fallback
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		slog.Warn("invalid timezone, using local", "timezone", name, "error", err)
		return time.Local
	}
	return loc
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func readFloat(key string, fallback float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func setupLogger(level string) {
	logLevel := slog.LevelInfo
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))
}
