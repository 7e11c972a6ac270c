package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/threadline-rugs/roomview/internal/catalog"
	"github.com/threadline-rugs/roomview/internal/gateway"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `toml:"server"`
	AI       AIConfig       `toml:"ai"`
	Catalog  CatalogConfig  `toml:"catalog"`
	Pipeline PipelineConfig `toml:"pipeline"`
	LogLevel string         `toml:"log_level"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           string `toml:"port"`
	MaxUploadBytes int64  `toml:"max_upload_bytes"`
	StaticDir      string `toml:"static_dir"`
}

// AIConfig selects and configures the upstream AI providers
type AIConfig struct {
	GatewayURL        string   `toml:"gateway_url"`
	GatewayAPIKey     string   `toml:"gateway_api_key"`
	GeminiAPIKey      string   `toml:"gemini_api_key"`
	OllamaURL         string   `toml:"ollama_url"`
	AnalysisProvider  string   `toml:"analysis_provider"`
	CompositeProvider string   `toml:"composite_provider"`
	AnalysisModel     string   `toml:"analysis_model"`
	CompositeModel    string   `toml:"composite_model"`
	Temperature       float64  `toml:"temperature"`
	UpstreamTimeout   Duration `toml:"upstream_timeout"`
}

// CatalogConfig locates the rug catalog and its images
type CatalogConfig struct {
	Path      string `toml:"path"`
	AssetsDir string `toml:"assets_dir"`
}

// PipelineConfig tunes the visualization attempt
type PipelineConfig struct {
	StageDelay   Duration `toml:"stage_delay"`
	FetchTimeout Duration `toml:"fetch_timeout"`
	// RemoteURL, when set, makes the CLI call a running server instead of
	// the in-process service.
	RemoteURL string `toml:"remote_url"`
}

// Duration is a time.Duration that decodes from TOML strings like "500ms"
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Defaults returns the configuration used when nothing is set
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:           "8888",
			MaxUploadBytes: 10 * 1024 * 1024,
			StaticDir:      "static",
		},
		AI: AIConfig{
			GatewayURL:        gateway.DefaultURL,
			OllamaURL:         "http://localhost:11434",
			AnalysisProvider:  "gateway",
			CompositeProvider: "gateway",
			UpstreamTimeout:   Duration{120 * time.Second},
		},
		Catalog: CatalogConfig{
			AssetsDir: catalog.DefaultAssetsDir,
		},
		Pipeline: PipelineConfig{
			FetchTimeout: Duration{30 * time.Second},
		},
		LogLevel: "info",
	}
}

// Load builds the configuration from defaults, then the optional TOML file at
// path, then environment variables.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Port = getEnv("PORT", cfg.Server.Port)
	cfg.Server.MaxUploadBytes = getEnvAsInt64("MAX_UPLOAD_BYTES", cfg.Server.MaxUploadBytes)
	cfg.Server.StaticDir = getEnv("STATIC_DIR", cfg.Server.StaticDir)

	cfg.AI.GatewayURL = getEnv("AI_GATEWAY_URL", cfg.AI.GatewayURL)
	cfg.AI.GatewayAPIKey = getEnv("AI_GATEWAY_API_KEY", getEnv("LOVABLE_API_KEY", cfg.AI.GatewayAPIKey))
	cfg.AI.GeminiAPIKey = getEnv("GEMINI_API_KEY", cfg.AI.GeminiAPIKey)
	cfg.AI.OllamaURL = getEnv("OLLAMA_URL", getEnv("OLLAMA_HOST", cfg.AI.OllamaURL))
	cfg.AI.AnalysisProvider = getEnv("ANALYSIS_PROVIDER", cfg.AI.AnalysisProvider)
	cfg.AI.CompositeProvider = getEnv("COMPOSITE_PROVIDER", cfg.AI.CompositeProvider)
	cfg.AI.AnalysisModel = getEnv("ANALYSIS_MODEL", cfg.AI.AnalysisModel)
	cfg.AI.CompositeModel = getEnv("COMPOSITE_MODEL", cfg.AI.CompositeModel)
	cfg.AI.Temperature = getEnvAsFloat("AI_TEMPERATURE", cfg.AI.Temperature)
	cfg.AI.UpstreamTimeout.Duration = getEnvAsDuration("UPSTREAM_TIMEOUT", cfg.AI.UpstreamTimeout.Duration)

	cfg.Catalog.Path = getEnv("CATALOG_PATH", cfg.Catalog.Path)
	cfg.Catalog.AssetsDir = getEnv("RUG_ASSETS_DIR", cfg.Catalog.AssetsDir)

	cfg.Pipeline.StageDelay.Duration = getEnvAsDuration("STAGE_DELAY", cfg.Pipeline.StageDelay.Duration)
	cfg.Pipeline.FetchTimeout.Duration = getEnvAsDuration("FETCH_TIMEOUT", cfg.Pipeline.FetchTimeout.Duration)
	cfg.Pipeline.RemoteURL = getEnv("ROOMVIEW_URL", cfg.Pipeline.RemoteURL)

	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
}

// DefaultModel returns the model used for a provider and purpose when none
// is configured.
func DefaultModel(provider string, composite bool) string {
	switch provider {
	case "gemini":
		if composite {
			return "gemini-2.5-flash-image-preview"
		}
		return "gemini-2.5-pro"
	case "ollama":
		return getEnv("OLLAMA_MODEL", "llava:13b")
	default:
		if composite {
			return "google/gemini-2.5-flash-image-preview"
		}
		return "google/gemini-2.5-pro"
	}
}

// Validate reports configuration the selected providers cannot work without
func (c *Config) Validate() error {
	var errs []error

	switch c.AI.AnalysisProvider {
	case "gateway", "gemini", "ollama":
	default:
		errs = append(errs, fmt.Errorf("unsupported analysis provider: %s", c.AI.AnalysisProvider))
	}
	switch c.AI.CompositeProvider {
	case "gateway", "gemini":
	default:
		errs = append(errs, fmt.Errorf("unsupported composite provider: %s", c.AI.CompositeProvider))
	}

	uses := map[string]bool{c.AI.AnalysisProvider: true, c.AI.CompositeProvider: true}
	if uses["gateway"] && c.AI.GatewayAPIKey == "" {
		errs = append(errs, errors.New("AI_GATEWAY_API_KEY is required for the gateway provider"))
	}
	if uses["gemini"] && c.AI.GeminiAPIKey == "" {
		errs = append(errs, errors.New("GEMINI_API_KEY is required for the gemini provider"))
	}

	return errors.Join(errs...)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
