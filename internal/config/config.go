// Package config loads service settings from defaults, an optional config
// file, environment variables and command-line flags, in increasing order
// of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Port string `mapstructure:"port"`

	// Text generation backend
	LLMProvider   string        `mapstructure:"llm_provider"`
	LLMEndpoint   string        `mapstructure:"llm_endpoint"`
	LLMAPIKey     string        `mapstructure:"llm_api_key"`
	LLMModel      string        `mapstructure:"llm_model"`
	LLMMaxTokens  int           `mapstructure:"llm_max_tokens"`
	LLMTimeout    time.Duration `mapstructure:"llm_timeout"`
	LLMMaxRetries int           `mapstructure:"llm_max_retries"`
	LLMRateLimit  float64       `mapstructure:"llm_rate_limit"`
	LLMRateBurst  int           `mapstructure:"llm_rate_burst"`

	// Circuit breaker around the backend
	BreakerFailures    uint32        `mapstructure:"breaker_failures"`
	BreakerOpenTimeout time.Duration `mapstructure:"breaker_open_timeout"`

	// Worker pool
	WorkerCount     int `mapstructure:"worker_count"`
	PipelineWorkers int `mapstructure:"pipeline_workers"`
	MaxQueueSize    int `mapstructure:"max_queue_size"`

	// Upload limits
	UploadMaxFiles int   `mapstructure:"upload_max_files"`
	UploadMaxBytes int64 `mapstructure:"upload_max_bytes"`

	// Chunking of long documents
	ChunkEnabled bool `mapstructure:"chunk_enabled"`
	ChunkSize    int  `mapstructure:"chunk_size"`
	ChunkOverlap int  `mapstructure:"chunk_overlap"`

	// PDF
	PDFFallbackPdftotext bool          `mapstructure:"pdf_fallback_pdftotext"`
	PDFOCREndpoint       string        `mapstructure:"pdf_ocr_endpoint"`
	PDFOCRTimeout        time.Duration `mapstructure:"pdf_ocr_timeout"`

	// Mindmap canvas
	CanvasWidth   float64 `mapstructure:"canvas_width"`
	CanvasHeight  float64 `mapstructure:"canvas_height"`
	CanvasPadding float64 `mapstructure:"canvas_padding"`

	// Batch state
	JobTTL time.Duration `mapstructure:"job_ttl"`

	// Logging
	LogLevel      string `mapstructure:"log_level"`
	LogFormat     string `mapstructure:"log_format"`
	LogFile       string `mapstructure:"log_file"`
	LogMaxSizeMB  int    `mapstructure:"log_max_size_mb"`
	LogMaxBackups int    `mapstructure:"log_max_backups"`
	LogMaxAgeDays int    `mapstructure:"log_max_age_days"`

	CORSOrigins []string `mapstructure:"cors_origins"`
}

var defaults = map[string]any{
	"port": "8090",

	"llm_provider":    "llamacpp",
	"llm_endpoint":    "",
	"llm_api_key":     "",
	"llm_model":       "",
	"llm_max_tokens":  2048,
	"llm_timeout":     2 * time.Minute,
	"llm_max_retries": 0,
	"llm_rate_limit":  0.0,
	"llm_rate_burst":  1,

	"breaker_failures":     5,
	"breaker_open_timeout": 30 * time.Second,

	"worker_count":     2,
	"pipeline_workers": 4,
	"max_queue_size":   100,

	"upload_max_files": 10,
	"upload_max_bytes": 10 << 20,

	"chunk_enabled": true,
	"chunk_size":    3000,
	"chunk_overlap": 200,

	"pdf_fallback_pdftotext": true,
	"pdf_ocr_endpoint":       "",
	"pdf_ocr_timeout":        5 * time.Minute,

	"canvas_width":   900.0,
	"canvas_height":  800.0,
	"canvas_padding": 100.0,

	"job_ttl": time.Hour,

	"log_level":        "info",
	"log_format":       "json",
	"log_file":         "",
	"log_max_size_mb":  100,
	"log_max_backups":  3,
	"log_max_age_days": 28,

	"cors_origins": []string{"*"},
}

// Load reads configuration. path may be empty. Environment variables use
// the upper-cased key (LLM_ENDPOINT for llm_endpoint). Flags, when given,
// are bound by name with dashes mapped to underscores (--llm-endpoint).
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if flags != nil {
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			if _, known := defaults[key]; !known || !f.Changed {
				return
			}
			if err := v.BindPFlag(key, f); err != nil {
				bindErr = errors.Join(bindErr, err)
			}
		})
		if bindErr != nil {
			return Config{}, fmt.Errorf("bind flags: %w", bindErr)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	switch strings.ToLower(c.LLMProvider) {
	case "llamacpp":
	case "claude", "gemini":
		check(c.LLMAPIKey != "", "LLM_API_KEY is required for provider %q", c.LLMProvider)
	default:
		check(false, "LLM_PROVIDER %q is not one of llamacpp, claude, gemini", c.LLMProvider)
	}

	check(c.Port != "", "PORT is required")
	check(c.LLMMaxTokens > 0, "LLM_MAX_TOKENS must be positive")
	check(c.LLMTimeout > 0, "LLM_TIMEOUT must be positive")
	check(c.LLMMaxRetries >= 0, "LLM_MAX_RETRIES must not be negative")
	check(c.LLMRateLimit >= 0, "LLM_RATE_LIMIT must not be negative")
	check(c.WorkerCount > 0, "WORKER_COUNT must be positive")
	check(c.PipelineWorkers > 0, "PIPELINE_WORKERS must be positive")
	check(c.MaxQueueSize > 0, "MAX_QUEUE_SIZE must be positive")
	check(c.UploadMaxFiles > 0, "UPLOAD_MAX_FILES must be positive")
	check(c.UploadMaxBytes > 0, "UPLOAD_MAX_BYTES must be positive")
	check(c.ChunkSize > 0, "CHUNK_SIZE must be positive")
	check(c.ChunkOverlap >= 0 && c.ChunkOverlap < c.ChunkSize, "CHUNK_OVERLAP must be in [0, CHUNK_SIZE)")
	check(c.CanvasPadding >= 0 && 2*c.CanvasPadding < c.CanvasWidth && 2*c.CanvasPadding < c.CanvasHeight,
		"CANVAS_PADDING %.0f leaves no room in a %.0fx%.0f canvas", c.CanvasPadding, c.CanvasWidth, c.CanvasHeight)
	check(c.JobTTL > 0, "JOB_TTL must be positive")

	var level slog.Level
	check(level.UnmarshalText([]byte(c.LogLevel)) == nil, "LOG_LEVEL %q is not a slog level", c.LogLevel)
	check(c.LogFormat == "json" || c.LogFormat == "text", "LOG_FORMAT must be json or text")

	return errors.Join(errs...)
}
