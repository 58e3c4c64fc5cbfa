// Package extract turns document images (or their OCR text) into validated
// structured records: workshop invoices, vehicle documents and service
// booklet pages.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-vehicle-assistant/internal/config"
	"github.com/tbourn/go-vehicle-assistant/internal/docimage"
	"github.com/tbourn/go-vehicle-assistant/internal/llm"
	"github.com/tbourn/go-vehicle-assistant/internal/observability"
	"github.com/tbourn/go-vehicle-assistant/internal/ocr"
)

// ErrSchemaValidation is returned when the model's payload does not match the
// schema even after sanitizing. It is distinct from provider errors, which
// carry retry classifications.
var ErrSchemaValidation = errors.New("extract: payload does not match schema")

// Strategy selects how a document reaches the model.
type Strategy string

const (
	// StrategyOCRThenParse OCRs the image and lets a text model fill the schema.
	StrategyOCRThenParse Strategy = "ocr_then_parse"
	// StrategyVision sends the image with a strict JSON schema response format.
	StrategyVision Strategy = "vision"
)

// Input is a document image, its OCR text, or both. Text, when set, is used
// as is and no OCR call is made.
type Input struct {
	Image []byte
	MIME  string
	Text  string
}

// Result is a structured extraction. Partial is set when Value was decoded
// from a payload that failed validation.
type Result[T any] struct {
	Value    T
	Partial  bool
	Raw      json.RawMessage
	OCRHash  string
	OCRText  string
	Strategy Strategy
}

// Extractor runs structured extraction against one model.
type Extractor struct {
	LLM        *llm.Client
	Recognizer ocr.Recognizer
	Cache      *ocr.Cache
	Strategy   Strategy
	Language   string
}

// New returns an Extractor whose strategy follows the model family: models
// that cannot be trusted with vision JSON read documents through OCR.
func New(client *llm.Client, rec ocr.Recognizer, cache *ocr.Cache, cfg config.LLMConfig, language string) *Extractor {
	strategy := StrategyVision
	if cfg.OCRThenParse() {
		strategy = StrategyOCRThenParse
	}
	return &Extractor{LLM: client, Recognizer: rec, Cache: cache, Strategy: strategy, Language: language}
}

func (e *Extractor) ExtractInvoice(ctx context.Context, in Input) (Result[InvoiceData], error) {
	return run[InvoiceData](ctx, e, KindInvoice, in)
}

func (e *Extractor) ExtractVehicleDocument(ctx context.Context, in Input) (Result[VehicleDocumentData], error) {
	return run[VehicleDocumentData](ctx, e, KindVehicleDocument, in)
}

func (e *Extractor) ExtractServiceBook(ctx context.Context, in Input) (Result[ServiceBookData], error) {
	return run[ServiceBookData](ctx, e, KindServiceBook, in)
}

// Extract dispatches on kind and returns the value as an untyped any.
func (e *Extractor) Extract(ctx context.Context, kind Kind, in Input) (any, bool, error) {
	switch kind {
	case KindInvoice:
		r, err := e.ExtractInvoice(ctx, in)
		return r.Value, r.Partial, err
	case KindVehicleDocument:
		r, err := e.ExtractVehicleDocument(ctx, in)
		return r.Value, r.Partial, err
	case KindServiceBook:
		r, err := e.ExtractServiceBook(ctx, in)
		return r.Value, r.Partial, err
	}
	return nil, false, fmt.Errorf("extract: unknown kind %q", kind)
}

func run[T any](ctx context.Context, e *Extractor, kind Kind, in Input) (Result[T], error) {
	strategy := e.Strategy
	if in.Text != "" {
		strategy = StrategyOCRThenParse
	}
	ctx, span := otel.Tracer("extract").Start(ctx, "Extract",
		trace.WithAttributes(
			attribute.String("extract.kind", string(kind)),
			attribute.String("extract.strategy", string(strategy)),
		))
	defer span.End()
	start := time.Now()
	defer func() {
		observability.ExtractionDuration.WithLabelValues(string(kind), string(strategy)).Observe(time.Since(start).Seconds())
	}()

	res := Result[T]{Strategy: strategy, OCRText: in.Text}
	var (
		content string
		err     error
	)
	if strategy == StrategyOCRThenParse {
		if res.OCRText == "" {
			if e.Cache == nil || e.Recognizer == nil {
				return res, errors.New("extract: OCR is not configured")
			}
			mime := in.MIME
			if mime == "" {
				mime = docimage.MIMEType
			}
			l, err := e.Cache.Recognize(ctx, e.Recognizer, in.Image, mime)
			if err != nil {
				span.RecordError(err)
				return res, err
			}
			res.OCRHash, res.OCRText = l.Hash, l.Text
		}
		content, err = e.parseText(ctx, kind, res.OCRText)
	} else {
		content, err = e.parseImage(ctx, kind, in)
	}
	if err != nil {
		span.RecordError(err)
		return res, err
	}

	raw := []byte(llm.StripFences(content))
	res.Raw = raw
	schema := compiled[kind]
	if vErr := llm.ValidateJSON(schema, raw); vErr != nil {
		cleaned, touched, sErr := Sanitize(kind, raw)
		if sErr != nil {
			span.RecordError(vErr)
			return res, fmt.Errorf("%w: %v", ErrSchemaValidation, vErr)
		}
		res.Raw = cleaned
		if err := llm.ValidateJSON(schema, cleaned); err != nil {
			log.Warn().Str("kind", string(kind)).Err(err).Msg("extraction payload still invalid after sanitize")
			res.Partial = true
			_ = json.Unmarshal(cleaned, &res.Value)
			span.RecordError(err)
			return res, fmt.Errorf("%w: %v", ErrSchemaValidation, err)
		}
		log.Debug().Str("kind", string(kind)).Strs("touched", touched).Msg("extraction payload sanitized")
	}
	if err := json.Unmarshal(res.Raw, &res.Value); err != nil {
		res.Partial = true
		return res, fmt.Errorf("%w: %v", ErrSchemaValidation, err)
	}
	return res, nil
}

func (e *Extractor) parseText(ctx context.Context, kind Kind, text string) (string, error) {
	schemaJSON, _ := json.Marshal(Schema(kind))
	msg, err := e.LLM.Complete(ctx, "extract."+string(kind), openai.ChatCompletionRequest{
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		Messages: []openai.ChatCompletionMessage{
			llm.System(systemPrompt(kind, e.language()) + "\n\nJSON Schema:\n" + string(schemaJSON)),
			llm.User("OCR text of the document (markdown):\n\n" + strings.TrimSpace(text)),
		},
	})
	if err != nil {
		return "", err
	}
	return msg.Content, nil
}

func (e *Extractor) parseImage(ctx context.Context, kind Kind, in Input) (string, error) {
	if len(in.Image) == 0 {
		return "", errors.New("extract: no image")
	}
	mime := in.MIME
	if mime == "" {
		mime = docimage.SniffMIME(in.Image)
	}
	schemaJSON, _ := json.Marshal(Schema(kind))
	msg, err := e.LLM.Complete(ctx, "extract."+string(kind), openai.ChatCompletionRequest{
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   string(kind),
				Schema: json.RawMessage(schemaJSON),
				Strict: true,
			},
		},
		Messages: []openai.ChatCompletionMessage{
			llm.System(systemPrompt(kind, e.language())),
			llm.UserWithImages("Extract this document.", []string{docimage.DataURI(mime, in.Image)}),
		},
	})
	if err != nil {
		return "", err
	}
	return msg.Content, nil
}

func (e *Extractor) language() string {
	if e.Language == "" {
		return "German"
	}
	return e.Language
}
