// Package services – MessageService
//
// This file implements MessageService, the read side of the chat transcript:
// paginated listing and single-message lookup, both scoped to a chat owned by
// the caller. Writes go through Assistant.Send, which persists the user and
// assistant messages of a turn atomically.
//
// It also holds the title helpers used to auto-name a chat from its first
// user prompt while the chat still has a default/empty title.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// include chat/user identifiers and pagination parameters where applicable.

package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/tbourn/go-vehicle-assistant/internal/domain"
	"github.com/tbourn/go-vehicle-assistant/internal/repo"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	roleUser      = "user"
	roleAssistant = "assistant"

	// default titles we consider “placeholder” and eligible for auto-generation
	defaultTitleNew      = "New chat"
	defaultTitleUntitled = "Untitled"
)

// MessageService serves the stored transcript of a chat.
type MessageService struct {
	DB *gorm.DB
}

// NewMessageService returns a MessageService over db.
func NewMessageService(db *gorm.DB) *MessageService { return &MessageService{DB: db} }

// ListPage returns paginated messages for a chat owned by userID.
func (s *MessageService) ListPage(ctx context.Context, userID, chatID string, page, pageSize int) ([]domain.Message, int64, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("chat.id", chatID),
			attribute.String("user.id", userID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	// Ensure chat exists and belongs to the user
	if _, err := repo.GetChat(ctx, s.DB, chatID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, ErrChatNotFound
		}
		return nil, 0, err
	}

	total, err := repo.CountMessages(ctx, s.DB, chatID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Message{}, 0, nil
	}

	items, err := repo.ListMessagesPage(ctx, s.DB, chatID, offset, pageSize)
	return items, total, err
}

// Get returns one message of a chat owned by userID.
func (s *MessageService) Get(ctx context.Context, userID, chatID, messageID string) (*domain.Message, error) {
	ctx, span := otel.Tracer("services/MessageService").Start(ctx, "Get",
		trace.WithAttributes(
			attribute.String("chat.id", chatID),
			attribute.String("message.id", messageID),
		),
	)
	defer span.End()

	if _, err := repo.GetChat(ctx, s.DB, chatID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}
	m, err := repo.GetMessage(ctx, s.DB, chatID, messageID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMessageNotFound
	}
	return m, err
}

// --- Title generation helpers ---

// shouldAutoTitle reports whether the current title is a placeholder.
func shouldAutoTitle(current string) bool {
	t := strings.TrimSpace(strings.ToLower(current))
	return t == "" || t == strings.ToLower(defaultTitleNew) || t == strings.ToLower(defaultTitleUntitled)
}

// generateTitle derives a concise title from the prompt: up to eight
// non-stopword words, title-cased, clipped to maxLen runes.
func generateTitle(prompt string, maxLen int) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return ""
	}
	toks := titleWordRE.FindAllString(strings.ToLower(prompt), -1)
	if len(toks) == 0 {
		return ""
	}

	titleCaser := cases.Title(language.English)
	out := make([]string, 0, 8)

	for _, w := range toks {
		if _, skip := titleStopWords[w]; skip {
			continue
		}
		out = append(out, titleCaser.String(w))
		if len(out) >= 8 {
			break
		}
	}
	if len(out) == 0 {
		return ""
	}
	if maxLen <= 0 {
		maxLen = 60
	}
	title := strings.Join(out, " ")
	if utf8.RuneCountInString(title) > maxLen {
		return string([]rune(title)[:maxLen])
	}
	return title
}

// Extract Unicode letters with optional trailing numbers (e.g., "320d" stays "d").
var titleWordRE = regexp.MustCompile(`[\p{L}]+[\p{N}]*`)

// Stop-words for compact titles. Users write in English or German.
var titleStopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "to": {}, "in": {},
	"is": {}, "are": {}, "for": {}, "on": {}, "with": {}, "by": {}, "from": {},
	"at": {}, "as": {}, "that": {}, "this": {}, "it": {}, "be": {}, "was": {}, "were": {},
	"my": {}, "i": {},
	"der": {}, "die": {}, "das": {}, "den": {}, "dem": {}, "ein": {}, "eine": {}, "einen": {},
	"und": {}, "oder": {}, "ist": {}, "für": {}, "mit": {}, "von": {}, "im": {}, "am": {},
	"mein": {}, "meine": {}, "meinen": {}, "ich": {}, "bitte": {}, "hier": {},
}
