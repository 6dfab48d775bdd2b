package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Gemini AI
	GeminiAPIKey         string
	GeminiModel          string
	GeminiTemperature    float32
	GeminiConcurrentReqs int

	// Sessions
	SessionSecret      string
	SessionIdleTimeout time.Duration
	ChatRequestsPerMin int

	// Redis (optional, live update fan-out)
	RedisURL string

	// Observability
	LogFile      string
	TelemetryDir string

	// Page
	AppTitle         string
	InputPlaceholder string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	secretsFile := getEnvOrDefault("SECRETS_FILE", ".streamlit/secrets.toml")
	if os.Getenv("GEMINI_API_KEY") == "" {
		key, err := loadSecretsFile(secretsFile)
		if err != nil {
			panic(err.Error())
		}
		if key != "" {
			os.Setenv("GEMINI_API_KEY", key)
		}
	}

	cfg := &Config{
		Port:                 getEnvOrDefault("PORT", "8080"),
		Env:                  getEnvOrDefault("ENV", "development"),
		GeminiAPIKey:         mustGetEnv("GEMINI_API_KEY"),
		GeminiModel:          getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-flash"),
		GeminiTemperature:    float32(getEnvAsFloatOrDefault("GEMINI_TEMPERATURE", 1.0)),
		GeminiConcurrentReqs: getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 5),
		SessionSecret:        getEnvOrDefault("SESSION_SECRET", ""),
		SessionIdleTimeout:   time.Duration(getEnvAsIntOrDefault("SESSION_IDLE_TIMEOUT_MINUTES", 60)) * time.Minute,
		ChatRequestsPerMin:   getEnvAsIntOrDefault("CHAT_REQUESTS_PER_MINUTE", 20),
		RedisURL:             getEnvOrDefault("REDIS_URL", ""),
		LogFile:              getEnvOrDefault("LOG_FILE", ""),
		TelemetryDir:         getEnvOrDefault("TELEMETRY_DIR", ""),
		AppTitle:             getEnvOrDefault("APP_TITLE", "NishAstra – Your AI Companion!"),
		InputPlaceholder:     getEnvOrDefault("INPUT_PLACEHOLDER", "Ask Gemini-Pro..."),
	}

	return cfg
}

// secrets mirrors a Streamlit secrets.toml holding the API key.
type secrets struct {
	GeminiAPIKey string `toml:"GEMINI_API_KEY"`
	GoogleAPIKey string `toml:"GOOGLE_API_KEY"`
}

func loadSecretsFile(path string) (string, error) {
	var s secrets
	if _, err := toml.DecodeFile(path, &s); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to parse secrets file %s: %w", path, err)
	}
	if s.GeminiAPIKey != "" {
		return s.GeminiAPIKey, nil
	}
	return s.GoogleAPIKey, nil
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsFloatOrDefault(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 32)
	if err != nil {
		return defaultVal
	}
	return f
}
