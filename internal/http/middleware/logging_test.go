package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	log.Logger = zerolog.New(&buf)
	return &buf
}

func TestRedactor(t *testing.T) {
	r := NewRedactor()
	cases := []struct{ in, want string }{
		{"", ""},
		{"VIN WBA8E9C50GK123456 plate SG 218574 mail a@b.de",
			"VIN [REDACTED:vin] plate [REDACTED:plate] mail [REDACTED:email]"},
		{"Kennzeichen M-AB 1234", "Kennzeichen [REDACTED:plate]"},
		{"chat 123e4567-e89b-12d3-a456-426614174000", "chat [REDACTED:id]"},
		{"call 0171 5551234", "call [REDACTED:phone]"},
		{"Ölwechsel bei 152000 km", "Ölwechsel bei 152000 km"},
	}
	for _, tc := range cases {
		if got := r.Redact(tc.in); got != tc.want {
			t.Fatalf("Redact(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Identity())
	r.GET("/who", func(c *gin.Context) { c.String(http.StatusOK, UserID(c)) })

	for hdr, want := range map[string]string{"": "demo-user", " u1 ": "u1"} {
		req := httptest.NewRequest(http.MethodGet, "/who", nil)
		if hdr != "" {
			req.Header.Set(HeaderUserID, hdr)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Body.String() != want {
			t.Fatalf("header %q: got %q want %q", hdr, w.Body.String(), want)
		}
	}
}

func TestAccessLog_RedactsAndScopesLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogs(t)

	r := gin.New()
	r.Use(RequestID(), Identity(), AccessLog(RedactOptions{MaskHeaders: []string{"X-Api-Key"}}))
	r.GET("/vehicles/:id/maintenance-status", func(c *gin.Context) {
		LoggerFrom(c).Info().Msg("inner")
		c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/vehicles/v1/maintenance-status?plate=M-AB-1234&email=a@b.de", nil)
	req.Header.Set("X-Request-ID", "rid-1")
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("X-Api-Key", "k")
	req.Header.Set("X-Note", "VIN WBA8E9C50GK123456")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Header().Get("X-Request-ID") != "rid-1" {
		t.Fatalf("request id not echoed")
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected inner + access lines, got %d: %s", len(lines), buf.String())
	}
	var inner, access map[string]any
	_ = json.Unmarshal([]byte(lines[0]), &inner)
	_ = json.Unmarshal([]byte(lines[1]), &access)

	if inner["request_id"] != "rid-1" || inner["path"] != "/vehicles/:id/maintenance-status" {
		t.Fatalf("inner log not request scoped: %v", inner)
	}
	if access["level"] != "info" || access["message"] != "http_request" {
		t.Fatalf("unexpected access line: %v", access)
	}
	q, _ := access["query"].(string)
	if !strings.Contains(q, "[REDACTED:plate]") || !strings.Contains(q, "[REDACTED:email]") {
		t.Fatalf("query not redacted: %q", q)
	}
	headers, _ := access["headers"].(map[string]any)
	if headers["Authorization"] != "[REDACTED]" || headers["X-Api-Key"] != "[REDACTED]" {
		t.Fatalf("sensitive headers not masked: %v", headers)
	}
	if headers["X-Note"] != "VIN [REDACTED:vin]" {
		t.Fatalf("header not redacted: %v", headers["X-Note"])
	}
}

func TestAccessLog_Levels(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogs(t)

	r := gin.New()
	r.Use(AccessLog(RedactOptions{}))
	r.GET("/warn", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/error", func(c *gin.Context) { c.Status(http.StatusBadGateway) })

	for _, p := range []string{"/warn", "/error"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}
	logs := buf.String()
	if !strings.Contains(logs, `"level":"warn"`) || !strings.Contains(logs, `"level":"error"`) {
		t.Fatalf("expected warn and error lines: %s", logs)
	}
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	_ = captureLogs(t)

	r := gin.New()
	r.Use(RequestID(), Recovery())
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set("X-Request-ID", "rid-p")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["code"] != "internal_error" || body["request_id"] != "rid-p" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestLoggerFrom_Fallback(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if LoggerFrom(c) == nil {
		t.Fatalf("expected a logger")
	}
}
