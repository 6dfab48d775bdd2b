package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestGetEnvOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal string
		expected   string
	}{
		{"uses env value", "TEST_VAR_1", "hello", "default", "hello"},
		{"uses default when empty", "TEST_VAR_2", "", "default", "default"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				os.Setenv(tc.key, tc.envValue)
				defer os.Unsetenv(tc.key)
			}

			result := getEnvOrDefault(tc.key, tc.defaultVal)
			if result != tc.expected {
				t.Errorf("Expected %q, got %q", tc.expected, result)
			}
		})
	}
}

func TestGetEnvAsIntOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal int
		expected   int
	}{
		{"parses integer", "TEST_INT_1", "42", 10, 42},
		{"uses default for empty", "TEST_INT_2", "", 10, 10},
		{"uses default for non-numeric", "TEST_INT_3", "abc", 10, 10},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				os.Setenv(tc.key, tc.envValue)
				defer os.Unsetenv(tc.key)
			}

			result := getEnvAsIntOrDefault(tc.key, tc.defaultVal)
			if result != tc.expected {
				t.Errorf("Expected %d, got %d", tc.expected, result)
			}
		})
	}
}

func TestGetEnvAsFloatOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		envValue   string
		defaultVal float64
		expected   float64
	}{
		{"parses float", "0.25", 1, 0.25},
		{"uses default for empty", "", 1, 1},
		{"uses default for garbage", "warm", 1, 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("TEST_FLOAT", tc.envValue)

			result := getEnvAsFloatOrDefault("TEST_FLOAT", tc.defaultVal)
			if result != tc.expected {
				t.Errorf("Expected %v, got %v", tc.expected, result)
			}
		})
	}
}

func TestMustGetEnv_Panics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for missing required env var")
		}
	}()

	os.Unsetenv("NONEXISTENT_REQUIRED_VAR")
	mustGetEnv("NONEXISTENT_REQUIRED_VAR")
}

func TestMustGetEnv_ReturnsValue(t *testing.T) {
	os.Setenv("TEST_REQUIRED", "value123")
	defer os.Unsetenv("TEST_REQUIRED")

	result := mustGetEnv("TEST_REQUIRED")
	if result != "value123" {
		t.Errorf("Expected 'value123', got %q", result)
	}
}

func TestLoadSecretsFile(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name     string
		content  string
		expected string
	}{
		{"google key", `GOOGLE_API_KEY = "g-key"`, "g-key"},
		{"gemini key wins", "GOOGLE_API_KEY = \"g-key\"\nGEMINI_API_KEY = \"gem-key\"", "gem-key"},
		{"no key", `OTHER = "x"`, ""},
	}

	for i, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(dir, "secrets"+string(rune('a'+i))+".toml")
			if err := os.WriteFile(path, []byte(tc.content), 0o600); err != nil {
				t.Fatalf("prep: %v", err)
			}

			key, err := loadSecretsFile(path)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if key != tc.expected {
				t.Errorf("Expected %q, got %q", tc.expected, key)
			}
		})
	}
}

func TestLoadSecretsFile_Missing(t *testing.T) {
	key, err := loadSecretsFile(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("missing file should not be an error, got %v", err)
	}
	if key != "" {
		t.Errorf("Expected empty key, got %q", key)
	}
}

func TestLoadSecretsFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	os.WriteFile(path, []byte("GOOGLE_API_KEY = "), 0o600)

	if _, err := loadSecretsFile(path); err == nil {
		t.Fatal("expected error for malformed TOML")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("SECRETS_FILE", filepath.Join(t.TempDir(), "none.toml"))
	for _, k := range []string{"PORT", "GEMINI_MODEL", "SESSION_IDLE_TIMEOUT_MINUTES", "REDIS_URL", "INPUT_PLACEHOLDER"} {
		t.Setenv(k, "")
	}

	cfg := Load()

	if cfg.GeminiAPIKey != "test-key" {
		t.Errorf("Expected API key from env, got %q", cfg.GeminiAPIKey)
	}
	if cfg.Port != "8080" {
		t.Errorf("Expected default port 8080, got %q", cfg.Port)
	}
	if cfg.GeminiModel != "gemini-1.5-flash" {
		t.Errorf("Expected default model, got %q", cfg.GeminiModel)
	}
	if cfg.SessionIdleTimeout != time.Hour {
		t.Errorf("Expected 1h idle timeout, got %v", cfg.SessionIdleTimeout)
	}
	if cfg.RedisURL != "" {
		t.Errorf("Expected Redis to be optional, got %q", cfg.RedisURL)
	}
	if cfg.InputPlaceholder != "Ask Gemini-Pro..." {
		t.Errorf("Unexpected placeholder %q", cfg.InputPlaceholder)
	}
}

func TestLoad_KeyFromSecretsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.toml")
	os.WriteFile(path, []byte(`GOOGLE_API_KEY = "from-file"`), 0o600)

	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("SECRETS_FILE", path)

	cfg := Load()
	if cfg.GeminiAPIKey != "from-file" {
		t.Errorf("Expected key from secrets file, got %q", cfg.GeminiAPIKey)
	}
}

func TestLoad_MalformedSecretsFilePanicsWithParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.toml")
	os.WriteFile(path, []byte("GOOGLE_API_KEY = "), 0o600)

	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("SECRETS_FILE", path)

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("Expected panic for malformed secrets file")
		}
		msg, _ := r.(string)
		if !strings.Contains(msg, "failed to parse secrets file") || !strings.Contains(msg, path) {
			t.Errorf("Expected panic to name the secrets file, got %v", r)
		}
	}()

	Load()
}

func TestLoad_MalformedSecretsFileIgnoredWhenEnvSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.toml")
	os.WriteFile(path, []byte("GOOGLE_API_KEY = "), 0o600)

	t.Setenv("GEMINI_API_KEY", "env-key")
	t.Setenv("SECRETS_FILE", path)

	if cfg := Load(); cfg.GeminiAPIKey != "env-key" {
		t.Errorf("Expected key from env, got %q", cfg.GeminiAPIKey)
	}
}
