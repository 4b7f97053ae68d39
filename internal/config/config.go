package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Worker   WorkerConfig   `yaml:"worker"`
	Gemini   GeminiConfig   `yaml:"gemini"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Chunking ChunkingConfig `yaml:"chunking"`
	Database DatabaseConfig `yaml:"database"`
	FFmpeg   FFmpegConfig   `yaml:"ffmpeg"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `yaml:"host" envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port         int           `yaml:"port" envconfig:"SERVER_PORT" default:"9850"`
	APIKey       string        `yaml:"api_key" envconfig:"API_KEY"`
	ReadTimeout  time.Duration `yaml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT" default:"60s"`
}

// StorageConfig holds object storage and local staging configuration.
type StorageConfig struct {
	BasePath     string `yaml:"base_path" envconfig:"STORAGE_PATH" default:"/data/media"`
	TempPath     string `yaml:"temp_path" envconfig:"STORAGE_TEMP_PATH" default:"/data/temp"`
	MinFreeBytes int64  `yaml:"min_free_bytes" envconfig:"STORAGE_MIN_FREE_BYTES" default:"1073741824"` // 1GB
}

// WorkerConfig holds worker pool configuration.
type WorkerConfig struct {
	Count        int           `yaml:"count" envconfig:"WORKER_COUNT" default:"1"`
	PollInterval time.Duration `yaml:"poll_interval" envconfig:"WORKER_POLL_INTERVAL" default:"5s"`
	MaxRetries   int           `yaml:"max_retries" envconfig:"WORKER_MAX_RETRIES" default:"2"`
}

// GeminiConfig holds configuration for the external analysis capability.
type GeminiConfig struct {
	APIKey             string        `yaml:"api_key" envconfig:"GEMINI_API_KEY"`
	LiteModel          string        `yaml:"lite_model" envconfig:"GEMINI_LITE_MODEL" default:"gemini-2.0-flash-lite"`
	ProModel           string        `yaml:"pro_model" envconfig:"GEMINI_PRO_MODEL" default:"gemini-2.5-flash"`
	PremierModel       string        `yaml:"premier_model" envconfig:"GEMINI_PREMIER_MODEL" default:"gemini-2.5-pro"`
	UploadPollInterval time.Duration `yaml:"upload_poll_interval" envconfig:"GEMINI_UPLOAD_POLL_INTERVAL" default:"5s"`
	UploadTimeout      time.Duration `yaml:"upload_timeout" envconfig:"GEMINI_UPLOAD_TIMEOUT" default:"10m"`
}

// ModelFor returns the configured model name for a capability tier.
func (c GeminiConfig) ModelFor(tier string) string {
	switch tier {
	case "lite":
		return c.LiteModel
	case "premier":
		return c.PremierModel
	default:
		return c.ProModel
	}
}

// AnalysisConfig holds per-call analysis options.
type AnalysisConfig struct {
	DefaultTier     string        `yaml:"default_tier" envconfig:"ANALYSIS_DEFAULT_TIER" default:"pro"`
	MaxOutputTokens int           `yaml:"max_output_tokens" envconfig:"ANALYSIS_MAX_OUTPUT_TOKENS" default:"8192"`
	Temperature     float64       `yaml:"temperature" envconfig:"ANALYSIS_TEMPERATURE" default:"0.2"`
	Combined        bool          `yaml:"combined" envconfig:"ANALYSIS_COMBINED" default:"false"`
	CallTimeout     time.Duration `yaml:"call_timeout" envconfig:"ANALYSIS_CALL_TIMEOUT" default:"15m"`
}

// ChunkingConfig holds chunk planning and execution configuration.
type ChunkingConfig struct {
	Concurrency      int           `yaml:"concurrency" envconfig:"CHUNKING_CONCURRENCY" default:"1"`
	FallbackDuration time.Duration `yaml:"fallback_duration" envconfig:"CHUNKING_FALLBACK_DURATION" default:"300s"`
	// TiersFile points at a YAML tier table that replaces the built-in one.
	TiersFile string `yaml:"tiers_file" envconfig:"CHUNKING_TIERS_FILE"`
}

// DatabaseConfig holds job persistence configuration.
type DatabaseConfig struct {
	// Path of the SQLite database. Empty keeps jobs in memory.
	Path string `yaml:"path" envconfig:"DATABASE_PATH"`
}

// FFmpegConfig holds external media tool configuration.
type FFmpegConfig struct {
	FFmpegPath  string `yaml:"ffmpeg_path" envconfig:"FFMPEG_PATH" default:"ffmpeg"`
	FFprobePath string `yaml:"ffprobe_path" envconfig:"FFPROBE_PATH" default:"ffprobe"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `yaml:"level" envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads configuration from file and environment variables.
// A .env file in the working directory is applied to the environment first.
// Precedence, lowest first: `default:` tags, the YAML file, environment
// variables that are actually set.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	// Defaults plus environment
	env := &Config{}
	if err := envconfig.Process("", env); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	cfg := env
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		file := *env
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
		overlaySetEnv(reflect.ValueOf(&file).Elem(), reflect.ValueOf(env).Elem(), "")
		cfg = &file
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// overlaySetEnv copies into dst every field of src whose environment
// variable is set. Keys are looked up the way envconfig resolves them:
// "{SECTION}_{TAG}" first, then the bare tag.
func overlaySetEnv(dst, src reflect.Value, prefix string) {
	t := dst.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Type.Kind() == reflect.Struct {
			overlaySetEnv(dst.Field(i), src.Field(i), strings.ToUpper(f.Name))
			continue
		}
		alt := strings.ToUpper(f.Tag.Get("envconfig"))
		if alt == "" {
			continue
		}
		_, set := os.LookupEnv(prefix + "_" + alt)
		if !set {
			_, set = os.LookupEnv(alt)
		}
		if set {
			dst.Field(i).Set(src.Field(i))
		}
	}
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if c.Gemini.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if c.Storage.BasePath == "" {
		return fmt.Errorf("STORAGE_PATH is required")
	}
	if c.Chunking.Concurrency < 1 {
		return fmt.Errorf("CHUNKING_CONCURRENCY must be at least 1")
	}
	if c.Analysis.DefaultTier == "" {
		return fmt.Errorf("ANALYSIS_DEFAULT_TIER is required")
	}
	if c.Analysis.MaxOutputTokens <= 0 {
		return fmt.Errorf("ANALYSIS_MAX_OUTPUT_TOKENS must be positive")
	}
	return nil
}

// ValidateServer checks the settings only the HTTP server needs.
func (c *Config) ValidateServer() error {
	if c.Server.APIKey == "" {
		return fmt.Errorf("API_KEY is required")
	}
	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
