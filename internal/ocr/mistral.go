package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/tbourn/go-vehicle-assistant/internal/config"
	"github.com/tbourn/go-vehicle-assistant/internal/docimage"
	"github.com/tbourn/go-vehicle-assistant/internal/retry"
)

// MistralRecognizer calls Mistral's document OCR endpoint. Tables come back
// as separate markdown blocks referenced by placeholder links; they are
// substituted inline so numeric line items stay in reading order.
type MistralRecognizer struct {
	BaseURL string
	APIKey  string
	Model   string
	HTTP    *http.Client
}

// NewMistralRecognizer returns a recognizer for cfg.
func NewMistralRecognizer(cfg config.OCRConfig) *MistralRecognizer {
	return &MistralRecognizer{
		BaseURL: strings.TrimRight(cfg.BaseURL, "/"),
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		HTTP:    &http.Client{Timeout: 2 * time.Minute},
	}
}

type mistralDocument struct {
	Type        string `json:"type"`
	ImageURL    string `json:"image_url,omitempty"`
	DocumentURL string `json:"document_url,omitempty"`
}

type mistralRequest struct {
	Model       string          `json:"model"`
	Document    mistralDocument `json:"document"`
	TableFormat string          `json:"table_format"`
}

type mistralTable struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

type mistralPage struct {
	Index    int            `json:"index"`
	Markdown string         `json:"markdown"`
	Tables   []mistralTable `json:"tables"`
}

type mistralResponse struct {
	Pages []mistralPage `json:"pages"`
}

func (m *MistralRecognizer) RecognizeImage(ctx context.Context, img []byte, mime string) (string, error) {
	if !docimage.IsImage(mime) {
		return "", wrap("RecognizeImage", ErrUnsupportedMIME, mime)
	}
	pages, err := m.process(ctx, mistralDocument{Type: "image_url", ImageURL: docimage.DataURI(mime, img)})
	if err != nil {
		return "", wrap("RecognizeImage", err, "")
	}
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		parts = append(parts, p.Markdown)
	}
	return strings.Join(parts, "\n\n"), nil
}

func (m *MistralRecognizer) RecognizeDocument(ctx context.Context, doc []byte, mime string) ([]Page, error) {
	if mime != "application/pdf" {
		return nil, wrap("RecognizeDocument", ErrUnsupportedMIME, mime)
	}
	pages, err := m.process(ctx, mistralDocument{Type: "document_url", DocumentURL: docimage.DataURI(mime, doc)})
	if err != nil {
		return nil, wrap("RecognizeDocument", err, "")
	}
	return pages, nil
}

func (m *MistralRecognizer) process(ctx context.Context, doc mistralDocument) ([]Page, error) {
	body, err := json.Marshal(mistralRequest{Model: m.Model, Document: doc, TableFormat: "markdown"})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.BaseURL+"/v1/ocr", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.APIKey)

	resp, err := m.HTTP.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, retry.FromHTTP(0, "", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, retry.FromHTTP(0, "", err)
	}
	if resp.StatusCode >= 400 {
		return nil, retry.FromHTTP(resp.StatusCode, resp.Header.Get("Retry-After"),
			fmt.Errorf("mistral ocr: http %d: %s", resp.StatusCode, snippet(raw)))
	}

	var out mistralResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Pages) == 0 {
		return nil, ErrEmptyDocument
	}
	sort.SliceStable(out.Pages, func(i, j int) bool { return out.Pages[i].Index < out.Pages[j].Index })

	pages := make([]Page, 0, len(out.Pages))
	for i, p := range out.Pages {
		pages = append(pages, Page{Number: i + 1, Markdown: inlineTables(p.Markdown, p.Tables)})
	}
	return pages, nil
}

// inlineTables replaces "[tbl-N.md](tbl-N.md)" placeholders with the table
// markdown.
func inlineTables(md string, tables []mistralTable) string {
	for _, t := range tables {
		placeholder := "[" + t.ID + "](" + t.ID + ")"
		md = strings.ReplaceAll(md, placeholder, "\n"+strings.TrimSpace(t.Content)+"\n")
	}
	return md
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "…"
	}
	return s
}
