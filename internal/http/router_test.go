package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-vehicle-assistant/internal/config"
	"github.com/tbourn/go-vehicle-assistant/internal/domain"
	"github.com/tbourn/go-vehicle-assistant/internal/http/handlers"
	"github.com/tbourn/go-vehicle-assistant/internal/http/middleware"
	"github.com/tbourn/go-vehicle-assistant/internal/repo"
	"github.com/tbourn/go-vehicle-assistant/internal/services"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:router_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// echoTurns stores a user/assistant pair per turn.
type echoTurns struct {
	db    *gorm.DB
	calls int
}

func (e *echoTurns) Send(ctx context.Context, userID, chatID string, turn services.Turn) (*services.Reply, error) {
	e.calls++
	if _, err := repo.GetChat(ctx, e.db, chatID, userID); err != nil {
		return nil, services.ErrChatNotFound
	}
	u := &domain.Message{ChatID: chatID, Role: "user", Content: turn.Content}
	a := &domain.Message{ChatID: chatID, Role: "assistant", Content: "ok: " + turn.Content}
	for _, m := range []*domain.Message{u, a} {
		if err := repo.CreateMessage(ctx, e.db, m); err != nil {
			return nil, err
		}
	}
	return &services.Reply{UserMessage: u, Message: a, Phase: "conversation"}, nil
}

func testConfig() config.Config {
	return config.Config{
		APIBasePath:    "/api/v1",
		MaxUploadBytes: 1 << 20,
		RateRPS:        100,
		RateBurst:      50,
		IdempotencyTTL: time.Hour,
		OTEL:           config.OTELConfig{ServiceName: "test-svc"},
	}
}

func newRouter(t *testing.T, cfg config.Config) (*gin.Engine, *gorm.DB, *echoTurns) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	turns := &echoTurns{db: db}
	r := gin.New()
	RegisterRoutes(r, db, cfg, handlers.Deps{
		Turns:    turns,
		Vehicles: services.NewVehicleService(repo.NewStore(db), nil),
	})
	return r, db, turns
}

func serve(r *gin.Engine, method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterRoutes_HealthMetricsFallbacks(t *testing.T) {
	r, _, _ := newRouter(t, testConfig())

	w := serve(r, http.MethodGet, "/health", "", map[string]string{"Origin": "https://app.example"})
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("allow-all CORS: %q", got)
	}
	if w.Header().Get("X-Request-ID") == "" || w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing request id or security headers: %v", w.Header())
	}

	if w := serve(r, http.MethodGet, "/metrics", "", nil); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "vehicle_assistant_http_requests_total") {
		t.Fatalf("GET /metrics: %d", w.Code)
	}

	w = serve(r, http.MethodGet, "/nope", "", nil)
	if w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), handlers.ErrCodeNotFound) {
		t.Fatalf("NoRoute: %d %s", w.Code, w.Body.String())
	}
	w = serve(r, http.MethodDelete, "/api/v1/chats", "", nil)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("NoMethod: %d", w.Code)
	}

	if w := serve(r, http.MethodGet, "/swagger/index.html", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("swagger must be off by default: %d", w.Code)
	}
}

func TestRegisterRoutes_CORSAllowList(t *testing.T) {
	cfg := testConfig()
	cfg.CORS.AllowedOrigins = []string{"https://garage.example"}
	r, _, _ := newRouter(t, cfg)

	w := serve(r, http.MethodGet, "/health", "", map[string]string{"Origin": "https://garage.example"})
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://garage.example" {
		t.Fatalf("allowed origin: %q", got)
	}
	w = serve(r, http.MethodGet, "/health", "", map[string]string{"Origin": "https://evil.example"})
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("foreign origin echoed: %q", got)
	}
}

func TestRegisterRoutes_Swagger(t *testing.T) {
	cfg := testConfig()
	cfg.SwaggerEnabled = true
	r, _, _ := newRouter(t, cfg)
	w := serve(r, http.MethodGet, "/swagger/doc.json", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "/chats/{id}/messages") {
		t.Fatalf("swagger doc: %d", w.Code)
	}
}

func TestRegisterRoutes_BodyLimit(t *testing.T) {
	cfg := testConfig()
	cfg.MaxUploadBytes = 16
	r, _, _ := newRouter(t, cfg)
	w := serve(r, http.MethodPost, "/api/v1/chats", `{"title":"a very long title indeed"}`, nil)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("want 413, got %d", w.Code)
	}
}

func TestGroupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	for _, prefix := range []string{"", "/", "/api/v2"} {
		r := gin.New()
		groupWithPrefix(r, prefix).GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
		path := strings.TrimSuffix(prefix, "/") + "/ping"
		if w := serve(r, http.MethodGet, path, "", nil); w.Code != http.StatusOK {
			t.Fatalf("prefix %q: GET %s = %d", prefix, path, w.Code)
		}
	}
}

func TestPipeline_ChatTurnAndIdempotentRetry(t *testing.T) {
	r, _, turns := newRouter(t, testConfig())
	user := map[string]string{middleware.HeaderUserID: "garage-owner"}

	w := serve(r, http.MethodPost, "/api/v1/chats", "", user)
	if w.Code != http.StatusCreated {
		t.Fatalf("create chat: %d %s", w.Code, w.Body.String())
	}
	var ch domain.Chat
	_ = json.Unmarshal(w.Body.Bytes(), &ch)

	path := "/api/v1/chats/" + ch.ID + "/messages"
	hdr := map[string]string{middleware.HeaderUserID: "garage-owner", middleware.HeaderIdempotencyKey: "k-1"}
	body := `{"content":"Kilometerstand BMW 91000"}`

	first := serve(r, http.MethodPost, path, body, hdr)
	if first.Code != http.StatusOK {
		t.Fatalf("turn: %d %s", first.Code, first.Body.String())
	}
	again := serve(r, http.MethodPost, path, body, hdr)
	if again.Code != http.StatusOK || again.Header().Get("Idempotency-Replayed") != "true" || turns.calls != 1 {
		t.Fatalf("replay: %d replayed=%q calls=%d", again.Code, again.Header().Get("Idempotency-Replayed"), turns.calls)
	}
	if w := serve(r, http.MethodPost, path, `{"content":"anders"}`, hdr); w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("reused key: %d", w.Code)
	}

	w = serve(r, http.MethodGet, path, "", user)
	if w.Code != http.StatusOK {
		t.Fatalf("list: %d", w.Code)
	}
	var page handlers.ListMessagesResponse
	_ = json.Unmarshal(w.Body.Bytes(), &page)
	if page.Pagination.Total != 2 {
		t.Fatalf("transcript: %+v", page.Pagination)
	}

	if w := serve(r, http.MethodGet, path, "", map[string]string{middleware.HeaderUserID: "someone-else"}); w.Code != http.StatusNotFound {
		t.Fatalf("foreign chat: %d", w.Code)
	}
}

func TestPipeline_TurnsAreRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.RateRPS = 0.01
	cfg.RateBurst = turnCost
	r, _, _ := newRouter(t, cfg)
	user := map[string]string{middleware.HeaderUserID: "busy"}

	w := serve(r, http.MethodPost, "/api/v1/chats", "", user)
	var ch domain.Chat
	_ = json.Unmarshal(w.Body.Bytes(), &ch)
	path := "/api/v1/chats/" + ch.ID + "/messages"

	// chat creation took one token, so the bucket cannot cover a turn
	w = serve(r, http.MethodPost, path, `{"content":"hi"}`, user)
	if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") == "" {
		t.Fatalf("want 429 with Retry-After, got %d", w.Code)
	}
}

func TestPipeline_VehicleEndpoints(t *testing.T) {
	r, db, _ := newRouter(t, testConfig())
	v := domain.Vehicle{ID: uuid.NewString(), Make: "VW", Model: "Golf", Year: 2018, Mileage: 120000}
	if err := db.Create(&v).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	w := serve(r, http.MethodGet, "/api/v1/vehicles", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Golf") {
		t.Fatalf("vehicles: %d %s", w.Code, w.Body.String())
	}
	if w := serve(r, http.MethodGet, "/api/v1/vehicles/"+v.ID+"/maintenance-status", "", nil); w.Code != http.StatusOK {
		t.Fatalf("status: %d %s", w.Code, w.Body.String())
	}
	if w := serve(r, http.MethodGet, "/api/v1/invoices/"+uuid.NewString()+"/image", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("missing invoice: %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/vehicles", bytes.NewReader(nil))
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("JSON responses should be gzipped: %v", rec.Header())
	}
}
