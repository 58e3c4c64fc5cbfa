// Package ocr turns document images and PDFs into markdown text. It defines
// the Recognizer seam with Mistral and Google Cloud Vision implementations,
// and a content-addressed cache that guarantees one provider call per
// distinct image.
package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/tbourn/go-vehicle-assistant/internal/config"
	"github.com/tbourn/go-vehicle-assistant/internal/retry"
)

// Page is the OCR result of one document page. Number starts at 1.
type Page struct {
	Number   int    `json:"number"`
	Markdown string `json:"markdown"`
}

// Recognizer reads text from documents.
type Recognizer interface {
	// RecognizeImage returns the markdown of a single image.
	RecognizeImage(ctx context.Context, img []byte, mime string) (string, error)
	// RecognizeDocument returns one markdown page per PDF page.
	RecognizeDocument(ctx context.Context, doc []byte, mime string) ([]Page, error)
}

// JoinPages renders pages as one text with "--- Page N ---" separators.
func JoinPages(pages []Page) string {
	var b strings.Builder
	for i, p := range pages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "--- Page %d ---\n%s", p.Number, strings.TrimSpace(p.Markdown))
	}
	return b.String()
}

// New builds the recognizer selected by cfg, wrapped with retries.
func New(ctx context.Context, cfg config.OCRConfig, p retry.Policy) (Recognizer, error) {
	var r Recognizer
	switch cfg.Provider {
	case "mistral":
		r = NewMistralRecognizer(cfg)
	case "vision":
		v, err := NewVisionRecognizer(ctx)
		if err != nil {
			return nil, err
		}
		r = v
	default:
		return Disabled{}, nil
	}
	return WithRetry(r, p), nil
}

// Disabled is the recognizer used when OCR is switched off.
type Disabled struct{}

func (Disabled) RecognizeImage(context.Context, []byte, string) (string, error) {
	return "", ErrDisabled
}

func (Disabled) RecognizeDocument(context.Context, []byte, string) ([]Page, error) {
	return nil, ErrDisabled
}

type retrying struct {
	next   Recognizer
	policy retry.Policy
}

// WithRetry retries r's rate-limited and unavailable failures under p.
func WithRetry(r Recognizer, p retry.Policy) Recognizer {
	return &retrying{next: r, policy: p}
}

func (r *retrying) RecognizeImage(ctx context.Context, img []byte, mime string) (string, error) {
	return retry.Do(ctx, r.policy, "ocr.image", func(ctx context.Context) (string, error) {
		return r.next.RecognizeImage(ctx, img, mime)
	})
}

func (r *retrying) RecognizeDocument(ctx context.Context, doc []byte, mime string) ([]Page, error) {
	return retry.Do(ctx, r.policy, "ocr.document", func(ctx context.Context) ([]Page, error) {
		return r.next.RecognizeDocument(ctx, doc, mime)
	})
}
