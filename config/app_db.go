package config

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/akeren/launch-waitlist/internal/log"
	"github.com/akeren/launch-waitlist/pkg/retry"
	"github.com/akeren/launch-waitlist/pkg/utils"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type DBConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	SSLMode         string // Default: "require" for prod safety
	// PingAttempts bounds the startup connectivity check; the database container often lags the app.
	PingAttempts int
	PingTimeout  time.Duration
}

func NewDBConfig() *DBConfig {
	return &DBConfig{
		MaxIdleConns:    positiveIntFromEnv("DB_MAX_IDLE_CONNS", 10),
		MaxOpenConns:    positiveIntFromEnv("DB_MAX_OPEN_CONNS", 25),
		ConnMaxLifetime: utils.GetEnvPositiveDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		SSLMode:         "require",
		PingAttempts:    positiveIntFromEnv("DB_PING_ATTEMPTS", 5),
		PingTimeout:     utils.GetEnvPositiveDuration("DB_PING_TIMEOUT", 3*time.Second),
	}
}

func NewDatabase(logger *log.Logger, cfg *DBConfig) (*gorm.DB, error) {
	if cfg == nil {
		cfg = NewDBConfig()
	}

	dsn, err := buildDSNFromEnv(logger, cfg)
	if err != nil {
		return nil, err
	}

	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormLogLevel()),
	})
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		logger.Error("Failed to get database instance", "error", err)
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	policy := retry.NewExponentialBackoff(&retry.Config{
		MaxAttempts: cfg.PingAttempts,
		BaseDelay:   250 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Multiplier:  2.0,
		Retryable:   func(error) bool { return true },
	})

	attempt := 0
	err = policy.Execute(context.Background(), func(ctx context.Context) error {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
		defer cancel()

		if pingErr := sqlDB.PingContext(pingCtx); pingErr != nil {
			logger.Warn("Database ping failed", "attempt", attempt, "error", pingErr)
			return pingErr
		}
		return nil
	})
	if err != nil {
		logger.Error("Database unreachable", "attempts", attempt, "error", err)
		_ = sqlDB.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	logger.Info("Database connection established successfully")
	return gdb, nil
}

// buildDSNFromEnv prefers APP_DATABASE_URL, then DATABASE_URL, then the discrete POSTGRES_* variables.
func buildDSNFromEnv(logger *log.Logger, cfg *DBConfig) (string, error) {
	for _, key := range []string{"APP_DATABASE_URL", "DATABASE_URL"} {
		if url := sanitizeEnv(GetValueFromEnvironmentVariable(key, "")); url != "" {
			logger.Info("Using connection URL for database", "source", key)
			return url, nil
		}
	}

	host, portStr, user, pass, dbName, ssl := getDatabaseEnvParams()
	if ssl == "" {
		ssl = cfg.SSLMode
	}

	missing := []string{}

	if host == "" {
		missing = append(missing, "POSTGRES_HOST")
	}

	if portStr == "" {
		missing = append(missing, "POSTGRES_PORT")
	}

	if user == "" {
		missing = append(missing, "POSTGRES_USER")
	}

	if dbName == "" {
		missing = append(missing, "POSTGRES_DB_NAME")
	}

	if len(missing) > 0 {
		logger.Error("Missing required database environment variables", "missing_vars", strings.Join(missing, ", "))

		return "", fmt.Errorf("missing required database env vars: %s", strings.Join(missing, ", "))
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		logger.Error("Invalid POSTGRES_PORT", "error", err)
		return "", fmt.Errorf("invalid POSTGRES_PORT %q: %w", portStr, err)
	}

	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, pass, dbName, ssl,
	)

	logger.Info("Connecting to database",
		"host", host,
		"port", port,
		"user", user,
		"dbname", dbName,
		"sslmode", ssl,
	)
	return dsn, nil
}

func getDatabaseEnvParams() (host, port, user, pass, dbName, ssl string) {
	host = sanitizeEnv(GetValueFromEnvironmentVariable("POSTGRES_HOST", ""))
	port = sanitizeEnv(GetValueFromEnvironmentVariable("POSTGRES_PORT", ""))
	user = sanitizeEnv(GetValueFromEnvironmentVariable("POSTGRES_USER", ""))
	pass = sanitizeEnv(GetValueFromEnvironmentVariable("POSTGRES_PASSWORD", ""))
	dbName = sanitizeEnv(GetValueFromEnvironmentVariable("POSTGRES_DB_NAME", ""))
	ssl = sanitizeEnv(GetValueFromEnvironmentVariable("POSTGRES_SSLMODE", ""))

	return host, port, user, pass, dbName, ssl
}

func sanitizeEnv(v string) string {
	s := strings.TrimSpace(v)

	if len(s) >= 2 && ((s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'')) {
		s = s[1 : len(s)-1]
	}

	return s
}

func positiveIntFromEnv(key string, defaultValue int) int {
	n, err := strconv.Atoi(utils.GetEnvTrimmed(key))
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}

func gormLogLevel() gormlogger.LogLevel {
	switch strings.ToLower(utils.GetEnvTrimmed("DB_LOG_LEVEL")) {
	case "silent":
		return gormlogger.Silent
	case "info":
		return gormlogger.Info
	case "error":
		return gormlogger.Error
	default:
		return gormlogger.Warn
	}
}

func AutoMigrate(logger *log.Logger, db *gorm.DB, models ...any) error {
	if db == nil {
		logger.Error("Cannot migrate: db is empty")
		return errors.New("cannot migrate: db is empty")
	}

	if err := db.AutoMigrate(models...); err != nil {
		logger.Error("Database migration failed", "error", err)
		return fmt.Errorf("auto-migrate failed: %w", err)
	}

	logger.Info("Database migration completed successfully")

	return nil
}

func CloseDatabase(db *gorm.DB, logger *log.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Error("Failed to get SQL DB instance", "error", err)
		return
	}

	if err := sqlDB.Close(); err != nil {
		logger.Error("Failed to close database", "error", err)
	} else {
		logger.Info("Database closed successfully")
	}
}
