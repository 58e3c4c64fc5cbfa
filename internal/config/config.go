// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, persistence, rate limiting, observability and the settings of the
// assistant pipeline (model provider, OCR provider, retry policy, image
// normalization and attachment limits).
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "vehicle-assistant")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// LLMConfig selects the conversational / extraction model. Any endpoint that
// speaks the OpenAI chat-completions protocol works (OpenAI, Mistral,
// OpenRouter, a local gateway).
type LLMConfig struct {
	Provider    string        // LLM_PROVIDER: openai|mistral|openrouter|custom
	BaseURL     string        // LLM_BASE_URL
	APIKey      string        // LLM_API_KEY
	Model       string        // LLM_MODEL
	Temperature float32       // LLM_TEMPERATURE
	Timeout     time.Duration // LLM_TIMEOUT per request
}

// OCRConfig selects the OCR backend used for grounding and PDF pages.
type OCRConfig struct {
	Provider string // OCR_PROVIDER: mistral|vision|none
	BaseURL  string // OCR_BASE_URL (mistral)
	APIKey   string // OCR_API_KEY (falls back to LLM_API_KEY)
	Model    string // OCR_MODEL
}

// RetryConfig bounds retries around provider calls. Delays are in the
// tens of seconds because provider quotas are enforced per minute.
type RetryConfig struct {
	MaxAttempts  int           // RETRY_MAX_ATTEMPTS
	InitialDelay time.Duration // RETRY_INITIAL_DELAY
	MaxDelay     time.Duration // RETRY_MAX_DELAY
	Multiplier   float64       // RETRY_MULTIPLIER
}

// ImageConfig controls document image normalization.
type ImageConfig struct {
	MaxDimension int // IMAGE_MAX_DIMENSION
	JPEGQuality  int // IMAGE_JPEG_QUALITY (1..100)
}

// AssistantConfig tunes the two-phase conversation.
type AssistantConfig struct {
	Language        string        // ASSISTANT_LANGUAGE, reply language
	MaxSteps        int           // ASSISTANT_MAX_STEPS, tool loop bound
	MaxVisionImages int           // ASSISTANT_MAX_VISION_IMAGES per request
	MaxAttachments  int           // ASSISTANT_MAX_ATTACHMENTS per turn
	HistoryLimit    int           // ASSISTANT_HISTORY_LIMIT, messages replayed to the model
	PendingTTL      time.Duration // ASSISTANT_PENDING_TTL
	MaxPromptRunes  int           // ASSISTANT_MAX_PROMPT_RUNES
}

// StorageConfig selects where normalized invoice images live.
type StorageConfig struct {
	ImageStore string // IMAGE_STORE: db|s3
	S3Bucket   string // S3_BUCKET
	S3Region   string // S3_REGION
	S3Prefix   string // S3_PREFIX
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // chat turns can take minutes while retrying
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	MaxUploadBytes    int64         // request body cap (attachments)
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Persistence
	DBPath  string // SQLite path
	Storage StorageConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Assistant pipeline
	LLM       LLMConfig
	OCR       OCRConfig
	Retry     RetryConfig
	Image     ImageConfig
	Assistant AssistantConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 30*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 10*time.Minute),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		MaxUploadBytes:    int64(getint("MAX_UPLOAD_BYTES", 48<<20)),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// Persistence
		DBPath: getenv("DB_PATH", "vehicles.db"),
		Storage: StorageConfig{
			ImageStore: strings.ToLower(getenv("IMAGE_STORE", "db")),
			S3Bucket:   getenv("S3_BUCKET", ""),
			S3Region:   getenv("S3_REGION", "eu-central-1"),
			S3Prefix:   strings.Trim(getenv("S3_PREFIX", "invoices"), "/"),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Assistant pipeline
		LLM: LLMConfig{
			Provider:    strings.ToLower(getenv("LLM_PROVIDER", "mistral")),
			BaseURL:     getenv("LLM_BASE_URL", ""),
			APIKey:      getenv("LLM_API_KEY", ""),
			Model:       getenv("LLM_MODEL", ""),
			Temperature: float32(getfloat("LLM_TEMPERATURE", 0.1)),
			Timeout:     getdur("LLM_TIMEOUT", 2*time.Minute),
		},
		OCR: OCRConfig{
			Provider: strings.ToLower(getenv("OCR_PROVIDER", "mistral")),
			BaseURL:  getenv("OCR_BASE_URL", "https://api.mistral.ai"),
			APIKey:   getenv("OCR_API_KEY", ""),
			Model:    getenv("OCR_MODEL", "mistral-ocr-latest"),
		},
		Retry: RetryConfig{
			MaxAttempts:  getint("RETRY_MAX_ATTEMPTS", 4),
			InitialDelay: getdur("RETRY_INITIAL_DELAY", 10*time.Second),
			MaxDelay:     getdur("RETRY_MAX_DELAY", 60*time.Second),
			Multiplier:   getfloat("RETRY_MULTIPLIER", 2.0),
		},
		Image: ImageConfig{
			MaxDimension: getint("IMAGE_MAX_DIMENSION", 1540),
			JPEGQuality:  getint("IMAGE_JPEG_QUALITY", 80),
		},
		Assistant: AssistantConfig{
			Language:        getenv("ASSISTANT_LANGUAGE", "German"),
			MaxSteps:        getint("ASSISTANT_MAX_STEPS", 5),
			MaxVisionImages: getint("ASSISTANT_MAX_VISION_IMAGES", 8),
			MaxAttachments:  getint("ASSISTANT_MAX_ATTACHMENTS", 20),
			HistoryLimit:    getint("ASSISTANT_HISTORY_LIMIT", 40),
			PendingTTL:      getdur("ASSISTANT_PENDING_TTL", 30*time.Minute),
			MaxPromptRunes:  getint("ASSISTANT_MAX_PROMPT_RUNES", 4000),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "vehicle-assistant"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = defaultBaseURL(cfg.LLM.Provider)
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = defaultModel(cfg.LLM.Provider)
	}
	if cfg.OCR.APIKey == "" {
		cfg.OCR.APIKey = cfg.LLM.APIKey
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if cfg.MaxUploadBytes <= 0 {
		return cfg, errors.New("MAX_UPLOAD_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	switch cfg.Storage.ImageStore {
	case "db":
	case "s3":
		if strings.TrimSpace(cfg.Storage.S3Bucket) == "" {
			return cfg, errors.New("S3_BUCKET is required when IMAGE_STORE=s3")
		}
	default:
		return cfg, errors.New("IMAGE_STORE must be one of: db, s3")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		return cfg, errors.New("LLM_TEMPERATURE must be in [0,2]")
	}
	if cfg.LLM.Timeout <= 0 {
		return cfg, errors.New("LLM_TIMEOUT must be > 0")
	}
	switch cfg.OCR.Provider {
	case "mistral", "vision", "none":
	default:
		return cfg, errors.New("OCR_PROVIDER must be one of: mistral, vision, none")
	}
	if cfg.Retry.MaxAttempts < 1 {
		return cfg, errors.New("RETRY_MAX_ATTEMPTS must be >= 1")
	}
	if cfg.Retry.InitialDelay <= 0 || cfg.Retry.MaxDelay < cfg.Retry.InitialDelay {
		return cfg, errors.New("RETRY_INITIAL_DELAY must be > 0 and <= RETRY_MAX_DELAY")
	}
	if cfg.Retry.Multiplier < 1 {
		return cfg, errors.New("RETRY_MULTIPLIER must be >= 1")
	}
	if cfg.Image.MaxDimension < 64 {
		return cfg, errors.New("IMAGE_MAX_DIMENSION must be >= 64")
	}
	if cfg.Image.JPEGQuality < 1 || cfg.Image.JPEGQuality > 100 {
		return cfg, errors.New("IMAGE_JPEG_QUALITY must be in [1,100]")
	}
	if cfg.Assistant.MaxSteps < 1 {
		return cfg, errors.New("ASSISTANT_MAX_STEPS must be >= 1")
	}
	if cfg.Assistant.MaxVisionImages < 0 || cfg.Assistant.MaxAttachments < 1 {
		return cfg, errors.New("ASSISTANT_MAX_VISION_IMAGES must be >= 0 and ASSISTANT_MAX_ATTACHMENTS >= 1")
	}
	if cfg.Assistant.PendingTTL <= 0 {
		return cfg, errors.New("ASSISTANT_PENDING_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// OCRThenParse reports whether the configured model family should read
// documents through OCR text instead of its own vision-and-json mode.
// Mistral's vision JSON mode invents numeric line items on tabular invoices.
func (c LLMConfig) OCRThenParse() bool {
	return c.Provider == "mistral"
}

// defaultBaseURL returns the OpenAI-compatible endpoint of a known provider.
func defaultBaseURL(provider string) string {
	switch provider {
	case "mistral":
		return "https://api.mistral.ai/v1"
	case "openrouter":
		return "https://openrouter.ai/api/v1"
	default:
		return "https://api.openai.com/v1"
	}
}

func defaultModel(provider string) string {
	switch provider {
	case "mistral":
		return "mistral-small-latest"
	case "openrouter":
		return "google/gemini-2.5-flash"
	default:
		return "gpt-4.1-mini"
	}
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
