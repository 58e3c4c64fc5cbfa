package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-vehicle-assistant/internal/domain"
	"github.com/tbourn/go-vehicle-assistant/internal/http/middleware"
	"github.com/tbourn/go-vehicle-assistant/internal/repo"
	"github.com/tbourn/go-vehicle-assistant/internal/services"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// fakeTurns records turns and persists a user/assistant pair like the
// assistant does, so replays can find the stored reply.
type fakeTurns struct {
	db    *gorm.DB
	err   error
	phase string
	turns []services.Turn
}

func (f *fakeTurns) Send(ctx context.Context, userID, chatID string, turn services.Turn) (*services.Reply, error) {
	f.turns = append(f.turns, turn)
	if f.err != nil {
		return nil, f.err
	}
	if _, err := repo.GetChat(ctx, f.db, chatID, userID); err != nil {
		return nil, services.ErrChatNotFound
	}
	u := &domain.Message{ID: uuid.NewString(), ChatID: chatID, Role: "user", Content: turn.Content}
	a := &domain.Message{ID: uuid.NewString(), ChatID: chatID, Role: "assistant", Content: fmt.Sprintf("reply %d", len(f.turns))}
	for _, m := range []*domain.Message{u, a} {
		if err := repo.CreateMessage(ctx, f.db, m); err != nil {
			return nil, err
		}
	}
	return &services.Reply{UserMessage: u, Message: a, Phase: f.phase}, nil
}

type fakeVehicles struct {
	list   []services.VehicleSummary
	status map[string]services.MaintenanceStatus
	images map[string][]byte
	err    error
}

func (f *fakeVehicles) List(context.Context) ([]services.VehicleSummary, error) {
	return f.list, f.err
}

func (f *fakeVehicles) MaintenanceStatus(_ context.Context, id string) (services.MaintenanceStatus, error) {
	st, ok := f.status[id]
	if !ok {
		return services.MaintenanceStatus{}, services.ErrVehicleNotFound
	}
	return st, nil
}

func (f *fakeVehicles) InvoiceImage(_ context.Context, id string) ([]byte, string, error) {
	data, ok := f.images[id]
	switch {
	case !ok:
		return nil, "", services.ErrInvoiceNotFound
	case data == nil:
		return nil, "", services.ErrNoImage
	}
	return data, "image/jpeg", nil
}

type testEnv struct {
	db       *gorm.DB
	r        *gin.Engine
	turns    *fakeTurns
	vehicles *fakeVehicles
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	env := &testEnv{
		db:       db,
		turns:    &fakeTurns{db: db},
		vehicles: &fakeVehicles{status: map[string]services.MaintenanceStatus{}, images: map[string][]byte{}},
	}
	h := New(Deps{
		Chats:    services.NewChatService(db, services.RepoChats{}),
		Messages: services.NewMessageService(db),
		Turns:    env.turns,
		Vehicles: env.vehicles,
		DB:       db,
	})

	lookup := func(ctx context.Context, userID, chatID, key string) (string, bool, error) {
		rec, err := repo.GetIdempotency(ctx, db, userID, chatID, key, time.Now().UTC())
		if err != nil || rec == nil {
			return "", false, err
		}
		return rec.RequestHash, true, nil
	}

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Identity(), middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, lookup))
	r.POST("/chats", h.CreateChat)
	r.GET("/chats", h.ListChats)
	r.PUT("/chats/:id/title", h.UpdateChatTitle)
	r.GET("/chats/:id/messages", h.ListMessages)
	r.POST("/chats/:id/messages", h.PostMessage)
	r.GET("/chats/:id/messages/:mid", h.GetMessage)
	r.GET("/vehicles", h.ListVehicles)
	r.GET("/vehicles/:id/maintenance-status", h.MaintenanceStatus)
	r.GET("/invoices/:id/image", h.InvoiceImage)
	env.r = r
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func (e *testEnv) createChat(t *testing.T, user string) domain.Chat {
	t.Helper()
	w := e.do(t, http.MethodPost, "/chats", nil, map[string]string{middleware.HeaderUserID: user})
	if w.Code != http.StatusCreated {
		t.Fatalf("create chat: %d %s", w.Code, w.Body.String())
	}
	var ch domain.Chat
	decode(t, w, &ch)
	return ch
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("json: %v (%s)", err, w.Body.String())
	}
}

func errCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var er ErrorResponse
	decode(t, w, &er)
	return er.Code
}
