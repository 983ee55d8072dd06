package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
// Values come from environment variables with sensible defaults.
//
// Environment Variables:
//
// HTTP:
// - HTTP_ADDR: listen address (default: :8000)
// - STATIC_DIR: directory with the web UI (default: static)
// - UI_ENABLED: serve the web UI (default: true)
// - LOG_LEVEL: debug|info|warn|error (default: info)
//
// Speech Provider:
// - SPEECH_API_KEY: provider subscription key (required)
// - SPEECH_STREAM_URL: websocket endpoint for streaming recognition
// - SPEECH_BATCH_URL: base URL for batch recognition jobs
// - SPEECH_TRANSLATE_URL: translation endpoint
// - SPEECH_TTS_URL: text-to-speech endpoint
// - SPEECH_TIMEOUT: per-call timeout in seconds (default: 30)
//
// Batch pipeline:
// - WORK_ROOT: root for per-job working directories (default: os temp dir)
// - MAX_UPLOAD_MB: upload size cap in MB (default: 200)
// - POLL_INTERVAL_SECONDS: job status poll interval (default: 3)
// - TRANSLATE_CONCURRENCY: bounded cue-translation fan-out (default: 5)
// - CUE_PAUSE_GAP_MS: silence gap that closes a cue (default: 500)
// - CUE_MAX_WORDS: word cap per cue (default: 8)
// - SWEEP_CRON: schedule for reaping abandoned jobs (default: @every 10m)
// - JOB_TTL_MINUTES: age after which an unattached job is reaped (default: 60)
// - HISTORY_DB: sqlite path for the job history log (empty disables it)
//
// Gateway:
// - DEFAULT_SPEAKER: voice used when the client does not pick one
// - STREAM_SAMPLE_RATE: PCM sample rate expected from clients (default: 16000)
type Config struct {
	HTTP     HTTPConfig
	Provider ProviderConfig
	Pipeline PipelineConfig
	Gateway  GatewayConfig

	LogLevel string
}

type HTTPConfig struct {
	Addr      string
	StaticDir string
	UIEnabled bool
}

// ProviderConfig holds the endpoints and credentials of the speech provider.
type ProviderConfig struct {
	APIKey       string
	StreamURL    string
	BatchURL     string
	TranslateURL string
	TTSURL       string
	Timeout      int
}

type PipelineConfig struct {
	WorkRoot             string
	MaxUploadBytes       int64
	PollInterval         time.Duration
	TranslateConcurrency int64
	CuePauseGap          time.Duration
	CueMaxWords          int
	SweepCron            string
	JobTTL               time.Duration
	HistoryDB            string
}

type GatewayConfig struct {
	DefaultSpeaker string
	SampleRate     int
}

// Option is a function type for configuring Config
type Option func(*Config)

// NewFromEnv creates a new Config instance with values from environment
// variables and options.
func NewFromEnv(opts ...Option) (*Config, error) {
	config := &Config{
		HTTP: HTTPConfig{
			Addr:      getEnvString("HTTP_ADDR", ":8000"),
			StaticDir: getEnvString("STATIC_DIR", "static"),
			UIEnabled: getEnvBool("UI_ENABLED", true),
		},
		Provider: ProviderConfig{
			APIKey:       getEnvString("SPEECH_API_KEY", ""),
			StreamURL:    getEnvString("SPEECH_STREAM_URL", "wss://api.sarvam.ai/speech-to-text/ws"),
			BatchURL:     getEnvString("SPEECH_BATCH_URL", "https://api.sarvam.ai/speech-to-text-job"),
			TranslateURL: getEnvString("SPEECH_TRANSLATE_URL", "https://api.sarvam.ai/translate"),
			TTSURL:       getEnvString("SPEECH_TTS_URL", "https://api.sarvam.ai/text-to-speech"),
			Timeout:      getEnvInt("SPEECH_TIMEOUT", 30),
		},
		Pipeline: PipelineConfig{
			WorkRoot:             getEnvString("WORK_ROOT", os.TempDir()),
			MaxUploadBytes:       int64(getEnvInt("MAX_UPLOAD_MB", 200)) << 20,
			PollInterval:         time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 3)) * time.Second,
			TranslateConcurrency: int64(getEnvInt("TRANSLATE_CONCURRENCY", 5)),
			CuePauseGap:          time.Duration(getEnvInt("CUE_PAUSE_GAP_MS", 500)) * time.Millisecond,
			CueMaxWords:          getEnvInt("CUE_MAX_WORDS", 8),
			SweepCron:            getEnvString("SWEEP_CRON", "@every 10m"),
			JobTTL:               time.Duration(getEnvInt("JOB_TTL_MINUTES", 60)) * time.Minute,
			HistoryDB:            getEnvString("HISTORY_DB", ""),
		},
		Gateway: GatewayConfig{
			DefaultSpeaker: getEnvString("DEFAULT_SPEAKER", "shubh"),
			SampleRate:     getEnvInt("STREAM_SAMPLE_RATE", 16000),
		},
		LogLevel: getEnvString("LOG_LEVEL", "info"),
	}

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if c.Provider.APIKey == "" {
		return fmt.Errorf("SPEECH_API_KEY is required")
	}
	if c.Pipeline.TranslateConcurrency <= 0 {
		return fmt.Errorf("TRANSLATE_CONCURRENCY must be positive")
	}
	if c.Pipeline.CueMaxWords <= 0 {
		return fmt.Errorf("CUE_MAX_WORDS must be positive")
	}
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean value from environment variables with default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
