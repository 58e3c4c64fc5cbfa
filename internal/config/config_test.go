package config

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

// --- MustLoad ---

func TestMustLoad_PanicsOnInvalidConfig(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose")
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("MustLoad should panic on invalid config")
		}
	}()
	_ = MustLoad()
}

// --- Load success + normalization + parsing ---

func TestLoad_Success_DefaultsAndOverrides(t *testing.T) {
	t.Setenv("PORT", "8088")
	t.Setenv("READ_TIMEOUT", "2s")
	t.Setenv("WRITE_TIMEOUT", "3m")
	t.Setenv("MAX_UPLOAD_BYTES", "1024")
	t.Setenv("GIN_MODE", "weird")
	t.Setenv("LOG_LEVEL", "warning")
	t.Setenv("API_BASE_PATH", "api/v2/")
	t.Setenv("RATE_RPS", "x")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.com , , http://b ")
	t.Setenv("LLM_PROVIDER", "OpenRouter")
	t.Setenv("LLM_API_KEY", "k-1")
	t.Setenv("OCR_PROVIDER", "vision")
	t.Setenv("RETRY_MAX_ATTEMPTS", "6")
	t.Setenv("IMAGE_MAX_DIMENSION", "1024")
	t.Setenv("ASSISTANT_PENDING_TTL", "5m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != "8088" || cfg.ReadTimeout != 2*time.Second || cfg.WriteTimeout != 3*time.Minute {
		t.Fatalf("server fields unexpected: %+v", cfg)
	}
	if cfg.MaxUploadBytes != 1024 {
		t.Fatalf("MaxUploadBytes = %d", cfg.MaxUploadBytes)
	}
	if cfg.GinMode != "release" || cfg.LogLevel != "warn" {
		t.Fatalf("normalization failed: gin=%q log=%q", cfg.GinMode, cfg.LogLevel)
	}
	if cfg.APIBasePath != "/api/v2" {
		t.Fatalf("APIBasePath = %q", cfg.APIBasePath)
	}
	if cfg.RateRPS != 5.0 {
		t.Fatalf("RateRPS fallback = %v", cfg.RateRPS)
	}
	if want := []string{"https://a.com", "http://b"}; !reflect.DeepEqual(cfg.CORS.AllowedOrigins, want) {
		t.Fatalf("CORS = %#v, want %#v", cfg.CORS.AllowedOrigins, want)
	}
	if cfg.LLM.Provider != "openrouter" || cfg.LLM.BaseURL != "https://openrouter.ai/api/v1" || cfg.LLM.Model == "" {
		t.Fatalf("llm defaults not applied: %+v", cfg.LLM)
	}
	if cfg.OCR.Provider != "vision" || cfg.OCR.APIKey != "k-1" {
		t.Fatalf("ocr config: %+v", cfg.OCR)
	}
	if cfg.Retry.MaxAttempts != 6 || cfg.Retry.InitialDelay != 10*time.Second || cfg.Retry.MaxDelay != time.Minute {
		t.Fatalf("retry config: %+v", cfg.Retry)
	}
	if cfg.Image.MaxDimension != 1024 || cfg.Image.JPEGQuality != 80 {
		t.Fatalf("image config: %+v", cfg.Image)
	}
	if cfg.Assistant.PendingTTL != 5*time.Minute || cfg.Assistant.MaxVisionImages != 8 || cfg.Assistant.Language != "German" {
		t.Fatalf("assistant config: %+v", cfg.Assistant)
	}
	if cfg.OTEL.ServiceName != "vehicle-assistant" {
		t.Fatalf("OTEL service default = %q", cfg.OTEL.ServiceName)
	}
}

func TestLLMConfig_OCRThenParse(t *testing.T) {
	if !(LLMConfig{Provider: "mistral"}).OCRThenParse() {
		t.Fatalf("mistral should read documents through OCR")
	}
	if (LLMConfig{Provider: "openai"}).OCRThenParse() {
		t.Fatalf("openai should use vision mode")
	}
}

// --- validation failures ---

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"port", map[string]string{"PORT": " "}, "PORT"},
		{"timeouts", map[string]string{"READ_TIMEOUT": "-1s"}, "timeouts"},
		{"upload", map[string]string{"MAX_UPLOAD_BYTES": "-5"}, "MAX_UPLOAD_BYTES"},
		{"store", map[string]string{"IMAGE_STORE": "ftp"}, "IMAGE_STORE"},
		{"s3 bucket", map[string]string{"IMAGE_STORE": "s3"}, "S3_BUCKET"},
		{"burst", map[string]string{"RATE_BURST": "0"}, "RATE_BURST"},
		{"temperature", map[string]string{"LLM_TEMPERATURE": "3"}, "LLM_TEMPERATURE"},
		{"ocr", map[string]string{"OCR_PROVIDER": "tesseract"}, "OCR_PROVIDER"},
		{"attempts", map[string]string{"RETRY_MAX_ATTEMPTS": "0"}, "RETRY_MAX_ATTEMPTS"},
		{"delays", map[string]string{"RETRY_INITIAL_DELAY": "2m", "RETRY_MAX_DELAY": "1m"}, "RETRY_INITIAL_DELAY"},
		{"multiplier", map[string]string{"RETRY_MULTIPLIER": "0.5"}, "RETRY_MULTIPLIER"},
		{"dimension", map[string]string{"IMAGE_MAX_DIMENSION": "10"}, "IMAGE_MAX_DIMENSION"},
		{"quality", map[string]string{"IMAGE_JPEG_QUALITY": "101"}, "IMAGE_JPEG_QUALITY"},
		{"steps", map[string]string{"ASSISTANT_MAX_STEPS": "0"}, "ASSISTANT_MAX_STEPS"},
		{"pending", map[string]string{"ASSISTANT_PENDING_TTL": "-1m"}, "ASSISTANT_PENDING_TTL"},
		{"sampler", map[string]string{"OTEL_TRACES_SAMPLER_ARG": "1.5"}, "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("want error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

// --- helpers ---

func TestGetbool_Variants(t *testing.T) {
	for _, v := range []string{"1", "true", "YES", "y", "On"} {
		t.Setenv("X_BOOL", v)
		if !getbool("X_BOOL", false) {
			t.Fatalf("%q should be true", v)
		}
	}
	t.Setenv("X_BOOL", "maybe")
	if !getbool("X_BOOL", true) {
		t.Fatalf("unknown value should fall back to default")
	}
}

func TestNormalizeBasePath(t *testing.T) {
	cases := map[string]string{"": "/", "  ": "/", "api": "/api", "/api/": "/api", "/": "/"}
	for in, want := range cases {
		if got := normalizeBasePath(in); got != want {
			t.Fatalf("normalizeBasePath(%q) = %q, want %q", in, got, want)
		}
	}
}
