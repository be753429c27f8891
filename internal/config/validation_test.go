package config

import (
	"errors"
	"os"
	"testing"
)

// validBaseConfig returns a Config that passes validation with the file backend.
func validBaseConfig() *Config {
	return &Config{
		Provider:             ProviderGemini,
		ModelName:            "gemini-2.5-flash",
		Temperature:          0.7,
		GeneratorTemperature: 0.3,
		MaxTokens:            2048,
		EmbedderModel:        DefaultGeminiEmbedderModel,
		ChunkSize:            DefaultChunkSize,
		ChunkOverlap:         DefaultChunkOverlap,
		RAGTopK:              DefaultTopK,
		DefaultIndustry:      "restaurant",
		DataDir:              "/tmp/rulesmith-test",
		StorageBackend:       StorageFile,
	}
}

// validPostgresConfig returns a Config that passes validation with the postgres backend.
func validPostgresConfig() *Config {
	cfg := validBaseConfig()
	cfg.StorageBackend = StoragePostgres
	cfg.PostgresHost = "localhost"
	cfg.PostgresPort = 5432
	cfg.PostgresUser = "rulesmith"
	cfg.PostgresPassword = "test_password_ok"
	cfg.PostgresDBName = "rulesmith"
	cfg.PostgresSSLMode = "disable"
	return cfg
}

// setAPIKey sets GEMINI_API_KEY for the duration of the test.
func setAPIKey(t *testing.T) {
	t.Helper()
	old := os.Getenv("GEMINI_API_KEY")
	if err := os.Setenv("GEMINI_API_KEY", "test-api-key"); err != nil {
		t.Fatalf("setting GEMINI_API_KEY: %v", err)
	}
	t.Cleanup(func() {
		if old != "" {
			_ = os.Setenv("GEMINI_API_KEY", old)
		} else {
			_ = os.Unsetenv("GEMINI_API_KEY")
		}
	})
}

// TestValidateSuccess tests successful validation for both storage backends.
func TestValidateSuccess(t *testing.T) {
	setAPIKey(t)

	googleai := validBaseConfig()
	googleai.Provider = ProviderGoogleAI

	for _, tt := range []struct {
		name string
		cfg  *Config
	}{
		{"file backend", validBaseConfig()},
		{"postgres backend", validPostgresConfig()},
		{"googleai provider alias", googleai},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); err != nil {
				t.Errorf("Validate() unexpected error with valid config: %v", err)
			}
		})
	}
}

// TestValidateNilConfig tests that a nil config is rejected.
func TestValidateNilConfig(t *testing.T) {
	var cfg *Config
	if err := cfg.Validate(); !errors.Is(err, ErrConfigNil) {
		t.Errorf("Validate() on nil config: got %v, want ErrConfigNil", err)
	}
}

// TestValidateMissingAPIKey tests that a missing GEMINI_API_KEY is rejected.
func TestValidateMissingAPIKey(t *testing.T) {
	old := os.Getenv("GEMINI_API_KEY")
	_ = os.Unsetenv("GEMINI_API_KEY")
	t.Cleanup(func() {
		if old != "" {
			_ = os.Setenv("GEMINI_API_KEY", old)
		}
	})

	cfg := validBaseConfig()
	if err := cfg.Validate(); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("Validate() without API key: got %v, want ErrMissingAPIKey", err)
	}
}

// TestValidateFieldErrors tests each validation rule via its sentinel error.
func TestValidateFieldErrors(t *testing.T) {
	setAPIKey(t)

	tests := []struct {
		name     string
		mutate   func(*Config)
		sentinel error
	}{
		{"unsupported provider", func(c *Config) { c.Provider = "openai" }, ErrInvalidProvider},
		{"empty model name", func(c *Config) { c.ModelName = "" }, ErrInvalidModelName},
		{"temperature too low", func(c *Config) { c.Temperature = -0.1 }, ErrInvalidTemperature},
		{"temperature too high", func(c *Config) { c.Temperature = 2.5 }, ErrInvalidTemperature},
		{"generator temperature too high", func(c *Config) { c.GeneratorTemperature = 3.0 }, ErrInvalidTemperature},
		{"max tokens zero", func(c *Config) { c.MaxTokens = 0 }, ErrInvalidMaxTokens},
		{"max tokens too high", func(c *Config) { c.MaxTokens = 3000000 }, ErrInvalidMaxTokens},
		{"empty embedder model", func(c *Config) { c.EmbedderModel = "" }, ErrInvalidEmbedderModel},
		{"chunk size zero", func(c *Config) { c.ChunkSize = 0 }, ErrInvalidChunkSize},
		{"negative chunk overlap", func(c *Config) { c.ChunkOverlap = -1 }, ErrInvalidChunkOverlap},
		{"top-k zero", func(c *Config) { c.RAGTopK = 0 }, ErrInvalidTopK},
		{"top-k too high", func(c *Config) { c.RAGTopK = 11 }, ErrInvalidTopK},
		{"unknown backend", func(c *Config) { c.StorageBackend = "redis" }, ErrInvalidStorageBackend},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validBaseConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("Validate() = %v, want %v", err, tt.sentinel)
			}
		})
	}
}

// TestValidatePostgresErrors tests postgres-specific validation rules.
func TestValidatePostgresErrors(t *testing.T) {
	setAPIKey(t)

	tests := []struct {
		name     string
		mutate   func(*Config)
		sentinel error
	}{
		{"empty host", func(c *Config) { c.PostgresHost = "" }, ErrInvalidPostgresHost},
		{"port zero", func(c *Config) { c.PostgresPort = 0 }, ErrInvalidPostgresPort},
		{"port too high", func(c *Config) { c.PostgresPort = 70000 }, ErrInvalidPostgresPort},
		{"empty db name", func(c *Config) { c.PostgresDBName = "" }, ErrInvalidPostgresDBName},
		{"empty password", func(c *Config) { c.PostgresPassword = "" }, ErrInvalidPostgresPassword},
		{"short password", func(c *Config) { c.PostgresPassword = "short" }, ErrInvalidPostgresPassword},
		{"empty ssl mode", func(c *Config) { c.PostgresSSLMode = "" }, ErrInvalidPostgresSSLMode},
		{"deprecated ssl mode", func(c *Config) { c.PostgresSSLMode = "prefer" }, ErrInvalidPostgresSSLMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validPostgresConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("Validate() = %v, want %v", err, tt.sentinel)
			}
		})
	}
}

// TestValidateFileBackendSkipsPostgres tests that postgres settings are ignored
// when the file backend is selected.
func TestValidateFileBackendSkipsPostgres(t *testing.T) {
	setAPIKey(t)

	cfg := validBaseConfig()
	cfg.PostgresHost = ""
	cfg.PostgresPort = 0
	cfg.PostgresPassword = ""

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with file backend should ignore postgres fields, got: %v", err)
	}
}
