// Package services – Assistant
//
// Assistant runs one conversation turn in two phases:
//
//   - Analysis: the turn carries attachments. Images are normalized and,
//     when the OCR provider allows it, OCR'd through the cache; PDFs are
//     OCR'd page by page. The model reads everything without tools and asks
//     the user to confirm. The attachments are parked as pending context for
//     the chat; nothing but the transcript is written.
//   - Execution: any other turn. Pending context is taken, the tool registry
//     is offered and the model acts in a bounded loop.
//
// Both messages of a turn are persisted in one transaction.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/go-vehicle-assistant/internal/config"
	"github.com/tbourn/go-vehicle-assistant/internal/docimage"
	"github.com/tbourn/go-vehicle-assistant/internal/domain"
	"github.com/tbourn/go-vehicle-assistant/internal/llm"
	"github.com/tbourn/go-vehicle-assistant/internal/observability"
	"github.com/tbourn/go-vehicle-assistant/internal/ocr"
	"github.com/tbourn/go-vehicle-assistant/internal/repo"
)

// Turn phases.
const (
	PhaseAnalysis = "analysis"
	PhaseExecute  = "execute"
)

const (
	mimePDF       = "application/pdf"
	thumbnailSize = 160

	replyDone        = "Done."
	replyUnreadable  = "I could not read the documents. Please try again."
	analysisDefault  = "Please analyse the attached documents."
	corruptImageText = "I could not open the image %q. Please take the photo again, ideally flat and in good light."
)

// Attachment is an uploaded file of a turn.
type Attachment struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Turn is one user message with optional attachments.
type Turn struct {
	Content     string
	Attachments []Attachment
}

// Reply is the persisted outcome of a turn.
type Reply struct {
	UserMessage *domain.Message
	Message     *domain.Message
	Phase       string
}

// Assistant is the conversation orchestrator.
type Assistant struct {
	DB         *gorm.DB
	LLM        *llm.Client
	Registry   *Registry
	Normalizer *docimage.Normalizer
	Recognizer ocr.Recognizer
	Cache      *ocr.Cache
	Pending    *PendingStore
	Cfg        config.AssistantConfig

	// OCRGrounding enables OCR of attached images before analysis.
	OCRGrounding bool
	TitleMaxLen  int
	Now          func() time.Time
}

// NewAssistant wires an Assistant from cfg. rec may be nil when OCR is off.
func NewAssistant(db *gorm.DB, client *llm.Client, reg *Registry, rec ocr.Recognizer, cache *ocr.Cache, cfg config.Config) *Assistant {
	return &Assistant{
		DB:           db,
		LLM:          client,
		Registry:     reg,
		Normalizer:   docimage.NewNormalizer(cfg.Image),
		Recognizer:   rec,
		Cache:        cache,
		Pending:      NewPendingStore(cfg.Assistant.PendingTTL),
		Cfg:          cfg.Assistant,
		OCRGrounding: rec != nil && cfg.OCR.Provider != "none",
		TitleMaxLen:  60,
		Now:          time.Now,
	}
}

// Send validates and runs one turn of chatID for userID.
func (a *Assistant) Send(ctx context.Context, userID, chatID string, turn Turn) (*Reply, error) {
	ctx, span := otel.Tracer("services/Assistant").Start(ctx, "Send",
		trace.WithAttributes(
			attribute.String("chat.id", chatID),
			attribute.String("user.id", userID),
			attribute.Int("attachments", len(turn.Attachments)),
		),
	)
	defer span.End()

	turn.Content = strings.TrimSpace(turn.Content)
	if turn.Content == "" && len(turn.Attachments) == 0 {
		return nil, ErrEmptyPrompt
	}
	if a.Cfg.MaxPromptRunes > 0 && utf8.RuneCountInString(turn.Content) > a.Cfg.MaxPromptRunes {
		return nil, ErrTooLong
	}
	if a.Cfg.MaxAttachments > 0 && len(turn.Attachments) > a.Cfg.MaxAttachments {
		return nil, ErrTooManyAttachments
	}
	for i := range turn.Attachments {
		att := &turn.Attachments[i]
		if att.MIMEType == "" {
			att.MIMEType = docimage.SniffMIME(att.Data)
		}
		if att.MIMEType != mimePDF && !docimage.IsImage(att.MIMEType) {
			return nil, fmt.Errorf("%w: %s (%s)", ErrUnsupportedAttachment, att.Name, att.MIMEType)
		}
	}

	chat, err := repo.GetChat(ctx, a.DB, chatID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}
	history, err := a.history(ctx, chatID)
	if err != nil {
		return nil, err
	}

	phase := PhaseExecute
	var (
		reply   string
		results []domain.ToolResult
		cards   []domain.Attachment
	)
	if len(turn.Attachments) > 0 {
		phase = PhaseAnalysis
		reply, cards, err = a.analyse(ctx, chatID, turn, history)
	} else {
		reply, results, err = a.execute(ctx, userID, chatID, turn.Content, history)
	}
	span.SetAttributes(attribute.String("assistant.phase", phase))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	observability.Turns.WithLabelValues(phase).Inc()

	userMsg, botMsg, err := a.persist(ctx, chat, turn.Content, cards, reply, results)
	if err != nil {
		return nil, err
	}
	return &Reply{UserMessage: userMsg, Message: botMsg, Phase: phase}, nil
}

// history replays the latest messages as model input.
func (a *Assistant) history(ctx context.Context, chatID string) ([]openai.ChatCompletionMessage, error) {
	limit := a.Cfg.HistoryLimit
	if limit <= 0 {
		return nil, nil
	}
	msgs, err := repo.RecentMessages(ctx, a.DB, chatID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		if m.Role == roleAssistant {
			out = append(out, llm.Assistant(m.Content))
		} else {
			out = append(out, llm.User(m.Content))
		}
	}
	return out, nil
}

// analyse runs the first phase. A corrupt image ends the turn with a retake
// request and leaves any earlier pending context untouched.
func (a *Assistant) analyse(ctx context.Context, chatID string, turn Turn, history []openai.ChatCompletionMessage) (string, []domain.Attachment, error) {
	pending := &Pending{}
	cards := make([]domain.Attachment, 0, len(turn.Attachments))

	for _, att := range turn.Attachments {
		if att.MIMEType == mimePDF {
			pages, err := a.readPDF(ctx, att)
			if err != nil {
				return "", nil, err
			}
			for _, p := range pages {
				pending.Pages = append(pending.Pages, PendingPage{
					Document: att.Name,
					Number:   len(pending.Pages) + 1,
					Markdown: p.Markdown,
				})
			}
			cards = append(cards, domain.Attachment{Type: "pdf", Name: att.Name})
			continue
		}

		img, err := a.Normalizer.Normalize(att.Data)
		if errors.Is(err, docimage.ErrCorruptImage) {
			log.Info().Str("chat_id", chatID).Str("attachment", att.Name).Err(err).Msg("corrupt image attachment")
			return fmt.Sprintf(corruptImageText, att.Name), nil, nil
		}
		if err != nil {
			return "", nil, err
		}
		pi := PendingImage{Name: att.Name, Data: img, MIME: docimage.MIMEType}
		if a.OCRGrounding && a.Recognizer != nil && a.Cache != nil {
			l, err := a.Cache.Recognize(ctx, a.Recognizer, img, docimage.MIMEType)
			if err != nil {
				log.Warn().Str("chat_id", chatID).Str("attachment", att.Name).Err(err).Msg("ocr grounding failed, continuing without text")
			} else {
				pi.OCRHash, pi.OCRText = l.Hash, l.Text
			}
		}
		pending.Images = append(pending.Images, pi)

		preview, err := docimage.Thumbnail(img, thumbnailSize)
		if err != nil {
			log.Debug().Str("attachment", att.Name).Err(err).Msg("thumbnail failed")
		}
		cards = append(cards, domain.Attachment{Type: "image", Name: att.Name, Preview: preview})
	}

	var grounding []string
	if len(pending.Pages) > 0 {
		grounding = append(grounding, renderPages(pending.Pages))
	}
	if text := renderImageOCR(pending.Images); text != "" {
		grounding = append(grounding, text)
	}

	vehicles, err := a.Registry.Store.ListVehicles(ctx)
	if err != nil {
		return "", nil, err
	}
	msgs := []openai.ChatCompletionMessage{
		llm.System(analysisSystemPrompt(a.language(), strings.Join(grounding, "\n\n"), len(pending.Pages))),
		llm.System(vehicleContext(vehicles)),
	}
	msgs = append(msgs, history...)

	text := turn.Content
	if text == "" {
		text = analysisDefault
	}
	maxImages := a.Cfg.MaxVisionImages
	switch {
	case len(pending.Images) == 0:
		msgs = append(msgs, llm.User(text))
	case maxImages > 0 && len(pending.Images) > maxImages:
		note := fmt.Sprintf("\n\n(%d images were sent; only their OCR text is available.)", len(pending.Images))
		msgs = append(msgs, llm.User(text+note))
	default:
		uris := make([]string, 0, len(pending.Images))
		for _, img := range pending.Images {
			uris = append(uris, docimage.DataURI(img.MIME, img.Data))
		}
		msgs = append(msgs, llm.UserWithImages(text, uris))
	}

	msg, err := a.LLM.Complete(ctx, "assistant.analysis", openai.ChatCompletionRequest{Messages: msgs})
	if err != nil {
		return "", nil, err
	}
	a.Pending.Put(chatID, pending)

	reply := strings.TrimSpace(msg.Content)
	if reply == "" {
		reply = replyUnreadable
	}
	return reply, cards, nil
}

func (a *Assistant) readPDF(ctx context.Context, att Attachment) ([]ocr.Page, error) {
	if a.Recognizer == nil {
		return nil, fmt.Errorf("read %s: %w", att.Name, ocr.ErrDisabled)
	}
	pages, err := a.Recognizer.RecognizeDocument(ctx, att.Data, mimePDF)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", att.Name, err)
	}
	return pages, nil
}

// execute runs the second phase: the bounded tool loop.
func (a *Assistant) execute(ctx context.Context, userID, chatID, content string, history []openai.ChatCompletionMessage) (string, []domain.ToolResult, error) {
	pending, _ := a.Pending.Take(chatID)

	vehicles, err := a.Registry.Store.ListVehicles(ctx)
	if err != nil {
		return "", nil, err
	}
	vctx := vehicleContext(vehicles)

	msgs := []openai.ChatCompletionMessage{llm.System(systemPrompt(a.language()))}
	msgs = append(msgs, history...)
	if pending.Empty() {
		msgs = append(msgs, llm.System(vctx+"\n\n"+idRule))
	} else {
		msgs = append(msgs, llm.User(pendingContext(pending, vctx)))
	}
	msgs = append(msgs, llm.User(content))

	env := &Env{UserID: userID, ChatID: chatID, Pending: pending, Now: a.now()}
	tools := a.Registry.Definitions(pending.Empty())
	steps := a.maxSteps(pending)

	var (
		results []domain.ToolResult
		reply   string
	)
	for step := 0; step < steps; step++ {
		msg, err := a.LLM.Complete(ctx, "assistant.execute", openai.ChatCompletionRequest{
			Messages: msgs,
			Tools:    tools,
		})
		if err != nil {
			return "", nil, err
		}
		if len(msg.ToolCalls) == 0 {
			reply = msg.Content
			break
		}
		msgs = append(msgs, msg)
		for _, call := range msg.ToolCalls {
			res, err := a.Registry.Invoke(ctx, call, env)
			if err != nil {
				return "", nil, fmt.Errorf("tool %s: %w", call.Function.Name, err)
			}
			results = append(results, res)
			payload, err := json.Marshal(res)
			if err != nil {
				return "", nil, err
			}
			msgs = append(msgs, llm.ToolResult(call.ID, string(payload)))
		}
		if step == steps-1 {
			log.Warn().Str("chat_id", chatID).Int("steps", steps).Msg("tool loop exhausted")
		}
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		reply = Summarize(results)
	}
	if reply == "" {
		reply = replyDone
	}
	return reply, results, nil
}

// maxSteps bounds the tool loop. Multi-page PDFs need two calls per page.
func (a *Assistant) maxSteps(p *Pending) int {
	n := a.Cfg.MaxSteps
	if n <= 0 {
		n = 5
	}
	if p != nil && len(p.Pages) > 0 {
		n = max(n, 2*len(p.Pages)+2)
	}
	return n
}

func (a *Assistant) persist(ctx context.Context, chat *domain.Chat, content string, atts []domain.Attachment, reply string, results []domain.ToolResult) (*domain.Message, *domain.Message, error) {
	now := a.now().UTC()
	userMsg := &domain.Message{
		ChatID:    chat.ID,
		Role:      roleUser,
		Content:   content,
		CreatedAt: now,
	}
	if len(atts) > 0 {
		userMsg.Attachments = datatypes.NewJSONSlice(atts)
	}
	botMsg := &domain.Message{
		ChatID:    chat.ID,
		Role:      roleAssistant,
		Content:   reply,
		CreatedAt: now.Add(time.Millisecond),
	}
	var kept []domain.ToolResult
	for _, r := range results {
		if r.Success {
			kept = append(kept, r)
		}
	}
	if len(kept) > 0 {
		botMsg.ToolResults = datatypes.NewJSONSlice(kept)
	}

	err := a.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.CreateMessage(ctx, tx, userMsg); err != nil {
			return err
		}
		if err := repo.CreateMessage(ctx, tx, botMsg); err != nil {
			return err
		}
		if shouldAutoTitle(chat.Title) {
			if gen := generateTitle(content, a.TitleMaxLen); gen != "" {
				if err := repo.UpdateChatTitle(ctx, tx, chat.ID, chat.UserID, gen); err == nil {
					chat.Title = gen
				}
			}
		}
		return repo.TouchChat(ctx, tx, chat.ID)
	})
	if err != nil {
		return nil, nil, err
	}
	return userMsg, botMsg, nil
}

func (a *Assistant) language() string {
	if a.Cfg.Language != "" {
		return a.Cfg.Language
	}
	return "German"
}

func (a *Assistant) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}
