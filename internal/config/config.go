// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all server configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string
	SessionTTL  time.Duration
	Retention   time.Duration

	StoreBackend  string // "sqlite" or "redis"
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LLMProvider string // "gemini" or "mock"
	GeminiKey   string
	GeminiModel string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	UploadMaxBytes int64
	UploadDir      string
	S3             S3Config

	AMQPURL      string
	AMQPExchange string

	Transcript TranscriptConfig
	Interview  InterviewConfig
}

// S3Config selects the S3-compatible upload archive. Empty Bucket disables it.
type S3Config struct {
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

// TranscriptConfig controls NDJSON conversation transcripts.
type TranscriptConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Load reads configuration from environment variables and the optional
// INTERVIEW_CONFIG file.
func Load() (*Config, error) {
	queueSize := getEnvInt("TRANSCRIPT_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		Port:        getEnv("PORT", "5000"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DBPath:      getEnv("DB_PATH", "./data/careermate.db"),
		SessionTTL:  getEnvDuration("SESSION_TTL", 60*time.Minute),
		Retention:   getEnvDuration("VALUE_RETENTION", 30*24*time.Hour),

		StoreBackend:  strings.ToLower(getEnv("STORE_BACKEND", "sqlite")),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		LLMProvider: strings.ToLower(getEnv("LLM_PROVIDER", "")),
		GeminiKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModel: getEnv("GEMINI_MODEL", ""),

		RateLimitRequests: getEnvInt("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),

		UploadMaxBytes: int64(getEnvInt("UPLOAD_MAX_BYTES", 5*1024*1024)),
		UploadDir:      getEnv("UPLOAD_DIR", "./uploads"),
		S3: S3Config{
			Bucket:    getEnv("S3_BUCKET", ""),
			Endpoint:  getEnv("S3_ENDPOINT", ""),
			Region:    getEnv("S3_REGION", ""),
			AccessKey: getEnv("S3_ACCESS_KEY", ""),
			SecretKey: getEnv("S3_SECRET_KEY", ""),
		},

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "careermate_events"),

		Transcript: TranscriptConfig{
			Enabled:   getEnvBool("TRANSCRIPT_LOG_ENABLED", false),
			Dir:       getEnv("TRANSCRIPT_LOG_DIR", "./data/logs/transcripts"),
			QueueSize: queueSize,
		},
		Interview: DefaultInterview(),
	}
	if cfg.LLMProvider == "" {
		cfg.LLMProvider = "mock"
		if cfg.GeminiKey != "" {
			cfg.LLMProvider = "gemini"
		}
	}

	if path := getEnv("INTERVIEW_CONFIG", ""); path != "" {
		interview, err := LoadInterview(path)
		if err != nil {
			return nil, err
		}
		cfg.Interview = *interview
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if c.Retention <= 0 {
		return fmt.Errorf("VALUE_RETENTION must be > 0")
	}
	switch c.StoreBackend {
	case "sqlite":
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR cannot be empty when STORE_BACKEND=redis")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be sqlite or redis, got %q", c.StoreBackend)
	}
	switch c.LLMProvider {
	case "mock":
	case "gemini":
		if c.GeminiKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when LLM_PROVIDER=gemini")
		}
	default:
		return fmt.Errorf("LLM_PROVIDER must be gemini or mock, got %q", c.LLMProvider)
	}
	if c.RateLimitRequests <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be > 0")
	}
	if c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be > 0")
	}
	if c.UploadMaxBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be > 0")
	}
	if c.Transcript.Enabled && c.Transcript.Dir == "" {
		return fmt.Errorf("TRANSCRIPT_LOG_DIR cannot be empty")
	}
	return c.Interview.Validate()
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AllowedOrigins returns the CORS origins for the configured frontend.
func (c *Config) AllowedOrigins() []string {
	if c.FrontendURL == "" {
		return []string{"http://localhost:5173", "http://localhost:3000"}
	}
	var origins []string
	for _, o := range strings.Split(c.FrontendURL, ",") {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// ClientConfig holds the CLI settings.
type ClientConfig struct {
	BackendURL  string
	StatePath   string
	FFMPEG      string
	AudioFormat string
	AudioDevice string
	FallbackSTT string
}

// LoadClient reads the CLI configuration from the environment.
func LoadClient() (*ClientConfig, error) {
	home, _ := os.UserHomeDir()
	defaultState := "./careermate-state.db"
	if home != "" {
		defaultState = home + "/.careermate/state.db"
	}
	cfg := &ClientConfig{
		BackendURL:  strings.TrimRight(getEnv("CAREERMATE_BACKEND_URL", "http://localhost:5000"), "/"),
		StatePath:   getEnv("CAREERMATE_STATE_PATH", defaultState),
		FFMPEG:      getEnv("CAREERMATE_FFMPEG", "ffmpeg"),
		AudioFormat: getEnv("CAREERMATE_AUDIO_FORMAT", ""),
		AudioDevice: getEnv("CAREERMATE_AUDIO_DEVICE", ""),
		FallbackSTT: getEnv("CAREERMATE_FALLBACK_STT", ""),
	}
	if cfg.BackendURL == "" {
		return nil, fmt.Errorf("CAREERMATE_BACKEND_URL cannot be empty")
	}
	if cfg.StatePath == "" {
		return nil, fmt.Errorf("CAREERMATE_STATE_PATH cannot be empty")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
