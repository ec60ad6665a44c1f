package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/akeren/launch-waitlist/internal/log"
	"github.com/joho/godotenv"
)

const (
	AppEnvKey  = "APP_ENV"
	EnvFileKey = "ENV_FILE"
)

// Environments in which the server may run gorm AutoMigrate against the schema.
var autoMigrateEnvs = map[string]bool{
	"": true, "dev": true, "development": true, "local": true, "test": true, "testing": true,
}

// InitializeEnvFile loads .env, or the comma-separated files named by ENV_FILE,
// without overriding variables already set in the process. SKIP_DOTENV=true
// disables it, which is what containers that inject env directly want.
func InitializeEnvFile(logger *log.Logger) {
	if os.Getenv("SKIP_DOTENV") == "true" {
		logger.Info("Skipping env file load (SKIP_DOTENV=true)")
		return
	}

	files := envFiles(os.Getenv(EnvFileKey))
	if err := godotenv.Load(files...); err != nil {
		logger.Warn("No env file loaded", "files", files, "error", err.Error())
		return
	}
	logger.Info("Environment variables loaded", "files", files)
}

func envFiles(raw string) []string {
	var files []string
	for _, f := range strings.Split(raw, ",") {
		if f = strings.TrimSpace(f); f != "" {
			files = append(files, f)
		}
	}
	if len(files) == 0 {
		return []string{".env"}
	}
	return files
}

func GetValueFromEnvironmentVariable(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func GetAppEnv() string {
	return normalizeAppEnv(os.Getenv(AppEnvKey))
}

func normalizeAppEnv(env string) string {
	return strings.ToLower(strings.TrimSpace(env))
}

// ValidateAutoMigrateAllowed keeps --auto-migrate away from shared databases;
// those are migrated with `cli migrate up`.
func ValidateAutoMigrateAllowed(appEnv string) error {
	env := normalizeAppEnv(appEnv)
	if autoMigrateEnvs[env] {
		return nil
	}
	return fmt.Errorf("--auto-migrate is not allowed when %s=%q; run `cli migrate up` instead", AppEnvKey, env)
}
