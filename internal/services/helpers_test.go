package services

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-vehicle-assistant/internal/domain"
	"github.com/tbourn/go-vehicle-assistant/internal/llm"
	"github.com/tbourn/go-vehicle-assistant/internal/ocr"
	"github.com/tbourn/go-vehicle-assistant/internal/repo"
)

// newServiceDB opens a private in-memory database with the full schema.
func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:svc_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func seedVehicle(t *testing.T, db *gorm.DB, make_, model string, mileage int) *domain.Vehicle {
	t.Helper()
	v := &domain.Vehicle{Make: make_, Model: model, Year: 2016, Mileage: mileage, LicensePlate: "SG 218574"}
	if err := repo.CreateVehicle(context.Background(), db, v); err != nil {
		t.Fatalf("create vehicle: %v", err)
	}
	return v
}

func seedChat(t *testing.T, db *gorm.DB, userID string) *domain.Chat {
	t.Helper()
	c, err := repo.CreateChat(context.Background(), db, userID, defaultTitleNew)
	if err != nil {
		t.Fatalf("create chat: %v", err)
	}
	return c
}

// scriptedLLM answers completions from a fixed script and records requests.
type scriptedLLM struct {
	mu       sync.Mutex
	replies  []openai.ChatCompletionMessage
	requests []openai.ChatCompletionRequest
	err      error
}

func (s *scriptedLLM) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return openai.ChatCompletionResponse{}, s.err
	}
	if len(s.replies) == 0 {
		return openai.ChatCompletionResponse{}, errors.New("script exhausted")
	}
	msg := s.replies[0]
	s.replies = s.replies[1:]
	if msg.Role == "" {
		msg.Role = openai.ChatMessageRoleAssistant
	}
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{Message: msg}}}, nil
}

func (s *scriptedLLM) client() *llm.Client {
	return &llm.Client{Completer: s, Model: "test-model"}
}

func prose(text string) openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{Content: text}
}

func callTools(calls ...openai.ToolCall) openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{ToolCalls: calls}
}

func toolCall(id, name, args string) openai.ToolCall {
	return openai.ToolCall{
		ID:       id,
		Type:     openai.ToolTypeFunction,
		Function: openai.FunctionCall{Name: name, Arguments: args},
	}
}

// fakeRecognizer returns canned text and counts calls.
type fakeRecognizer struct {
	mu        sync.Mutex
	text      string
	pages     []ocr.Page
	err       error
	imageHits int
	docHits   int
}

func (f *fakeRecognizer) RecognizeImage(context.Context, []byte, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.imageHits++
	return f.text, f.err
}

func (f *fakeRecognizer) RecognizeDocument(context.Context, []byte, string) ([]ocr.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docHits++
	return f.pages, f.err
}

// pngImage encodes a w×h image with a dark stripe so it is not blank.
func pngImage(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{R: 250, G: 250, B: 250, A: 255}
			if y%10 < 2 {
				c = color.RGBA{A: 255}
			}
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func countRows(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	if err := db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}
