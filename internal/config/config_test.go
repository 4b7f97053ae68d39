package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Gemini: GeminiConfig{
			APIKey: "test-gemini-key",
		},
		Storage: StorageConfig{
			BasePath: "/data/media",
		},
		Chunking: ChunkingConfig{
			Concurrency: 1,
		},
		Analysis: AnalysisConfig{
			DefaultTier:     "pro",
			MaxOutputTokens: 8192,
		},
	}
}

func TestConfig_Validate_Success(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("Validate() should pass, got %v", err)
	}
}

func TestConfig_Validate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing gemini key", func(c *Config) { c.Gemini.APIKey = "" }},
		{"missing storage path", func(c *Config) { c.Storage.BasePath = "" }},
		{"zero concurrency", func(c *Config) { c.Chunking.Concurrency = 0 }},
		{"missing default tier", func(c *Config) { c.Analysis.DefaultTier = "" }},
		{"non-positive max output tokens", func(c *Config) { c.Analysis.MaxOutputTokens = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() should fail")
			}
		})
	}
}

func TestConfig_ValidateServer(t *testing.T) {
	cfg := validConfig()
	if err := cfg.ValidateServer(); err == nil {
		t.Error("ValidateServer() should fail without API_KEY")
	}
	cfg.Server.APIKey = "key"
	if err := cfg.ValidateServer(); err != nil {
		t.Errorf("ValidateServer() = %v", err)
	}
}

func TestGeminiConfig_ModelFor(t *testing.T) {
	cfg := GeminiConfig{LiteModel: "l", ProModel: "p", PremierModel: "x"}

	tests := []struct {
		tier string
		want string
	}{
		{"lite", "l"},
		{"pro", "p"},
		{"premier", "x"},
		{"unknown", "p"},
	}
	for _, tt := range tests {
		if got := cfg.ModelFor(tt.tier); got != tt.want {
			t.Errorf("ModelFor(%q) = %q, want %q", tt.tier, got, tt.want)
		}
	}
}

func TestServerConfig_Address(t *testing.T) {
	cfg := ServerConfig{Host: "127.0.0.1", Port: 9850}
	if got := cfg.Address(); got != "127.0.0.1:9850" {
		t.Errorf("Address() = %q", got)
	}
}

func TestLoad_FromYAMLFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
server:
  port: 8080
  api_key: "yaml-api-key"
storage:
  base_path: "/custom/path"
gemini:
  api_key: "yaml-gemini-key"
database:
  path: "/var/lib/analysis.db"
chunking:
  concurrency: 4
  fallback_duration: 90s
analysis:
  default_tier: premier
  combined: true
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want %d", cfg.Server.Port, 8080)
	}
	if cfg.Server.APIKey != "yaml-api-key" {
		t.Errorf("APIKey = %q, want %q", cfg.Server.APIKey, "yaml-api-key")
	}
	if cfg.Storage.BasePath != "/custom/path" {
		t.Errorf("Storage.BasePath = %q", cfg.Storage.BasePath)
	}
	if cfg.Gemini.APIKey != "yaml-gemini-key" {
		t.Errorf("Gemini.APIKey = %q", cfg.Gemini.APIKey)
	}
	if cfg.Database.Path != "/var/lib/analysis.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Chunking.Concurrency != 4 {
		t.Errorf("Concurrency = %d, want 4", cfg.Chunking.Concurrency)
	}
	if cfg.Chunking.FallbackDuration != 90*time.Second {
		t.Errorf("FallbackDuration = %v, want 90s", cfg.Chunking.FallbackDuration)
	}
	if cfg.Analysis.DefaultTier != "premier" {
		t.Errorf("DefaultTier = %q, want premier", cfg.Analysis.DefaultTier)
	}
	if !cfg.Analysis.Combined {
		t.Error("Combined = false, want true")
	}

	// Keys absent from the file keep their defaults
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Host = %q, want default", cfg.Server.Host)
	}
	if cfg.Analysis.MaxOutputTokens != 8192 {
		t.Errorf("MaxOutputTokens = %d, want default", cfg.Analysis.MaxOutputTokens)
	}
}

func TestLoad_SetEnvOverridesYAMLDefaultedField(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
gemini:
  api_key: "yaml-gemini-key"
chunking:
  concurrency: 4
analysis:
  default_tier: premier
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("CHUNKING_CONCURRENCY", "2")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Chunking.Concurrency != 2 {
		t.Errorf("Concurrency = %d, want 2 from env", cfg.Chunking.Concurrency)
	}
	if cfg.Analysis.DefaultTier != "premier" {
		t.Errorf("DefaultTier = %q, want premier from file", cfg.Analysis.DefaultTier)
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-gemini-key")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Chunking.FallbackDuration != 300*time.Second {
		t.Errorf("FallbackDuration = %v, want 300s", cfg.Chunking.FallbackDuration)
	}
	if cfg.Analysis.DefaultTier != "pro" {
		t.Errorf("DefaultTier = %q, want pro", cfg.Analysis.DefaultTier)
	}
	if cfg.Analysis.CallTimeout != 15*time.Minute {
		t.Errorf("CallTimeout = %v", cfg.Analysis.CallTimeout)
	}
	if cfg.Chunking.Concurrency != 1 {
		t.Errorf("Concurrency = %d, want 1", cfg.Chunking.Concurrency)
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
gemini:
  api_key: "yaml-gemini-key"
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("GEMINI_API_KEY", "env-gemini-key")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Gemini.APIKey != "env-gemini-key" {
		t.Errorf("Gemini.APIKey should be from env, got %q", cfg.Gemini.APIKey)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	invalidYAML := `
server:
  host: "localhost
  port: 8080
`
	if err := os.WriteFile(configPath, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("Load should fail for invalid YAML")
	}
}

func TestLoad_NonexistentFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("Load should fail for nonexistent file")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	if _, err := Load(""); err == nil {
		t.Error("Load should fail validation without required values")
	}
}
