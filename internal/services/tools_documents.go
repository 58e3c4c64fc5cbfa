package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-vehicle-assistant/internal/domain"
	"github.com/tbourn/go-vehicle-assistant/internal/extract"
	"github.com/tbourn/go-vehicle-assistant/internal/repo"
	"github.com/tbourn/go-vehicle-assistant/internal/search"
	"github.com/tbourn/go-vehicle-assistant/internal/storage"
)

const (
	defaultSearchHits = 5
	maxSearchHits     = 20
)

func (r *Registry) registerDocumentTools() {
	r.add(&Tool{
		Name:        ToolGetOCRText,
		Description: "Returns the stored OCR text of an invoice, for questions about details that are not in the structured data.",
		Params:      object(map[string]any{"invoice_id": nonEmpty("Invoice id")}, "invoice_id"),
		Run:         r.getOCRText,
	})
	r.add(&Tool{
		Name:        ToolScanDocument,
		Description: "Re-reads the stored image of an invoice into structured data of the given kind.",
		Params: object(map[string]any{
			"invoice_id": nonEmpty("Invoice id"),
			"kind": map[string]any{
				"type":        "string",
				"enum":        []string{string(extract.KindInvoice), string(extract.KindVehicleDocument), string(extract.KindServiceBook)},
				"description": "Document type",
			},
		}, "invoice_id", "kind"),
		Run: r.scanDocument,
	})
	r.add(&Tool{
		Name:        ToolSearchDocuments,
		Description: "Full-text search over the OCR text of all stored invoices. Returns the best matching snippets.",
		Params: object(map[string]any{
			"query": nonEmpty("What to look for, e.g. \"Zahnriemen\" or \"brake pads front\""),
			"limit": integer("Maximum number of hits (default 5)", 1),
		}, "query"),
		Run: r.searchDocuments,
	})
}

func (r *Registry) getOCRText(ctx context.Context, _ *Env, raw json.RawMessage) (domain.ToolResult, error) {
	var a invoiceIDArgs
	if err := decodeArgs(raw, &a); err != nil {
		return invalid("%v", err), nil
	}
	inv, err := r.Store.GetInvoice(ctx, a.InvoiceID)
	if errors.Is(err, repo.ErrNotFound) {
		return notFound("Invoice %s not found", a.InvoiceID), nil
	}
	if err != nil {
		return domain.ToolResult{}, err
	}
	if inv.OCRCacheID == nil || *inv.OCRCacheID == "" {
		return notFound("No OCR text stored for invoice %s", inv.ID), nil
	}
	text, found := r.OCR.Peek(ctx, *inv.OCRCacheID)
	if !found || strings.TrimSpace(text) == "" {
		return notFound("No OCR text stored for invoice %s", inv.ID), nil
	}
	return succeeded(domain.KindOCRText, OCRText{InvoiceID: inv.ID, Text: text},
		"OCR text of the invoice from %s (%s)", inv.WorkshopName, inv.Date), nil
}

type scanArgs struct {
	InvoiceID string `json:"invoice_id"`
	Kind      string `json:"kind"`
}

func (r *Registry) scanDocument(ctx context.Context, _ *Env, raw json.RawMessage) (domain.ToolResult, error) {
	var a scanArgs
	if err := decodeArgs(raw, &a); err != nil {
		return invalid("%v", err), nil
	}
	kind, known := extract.ParseKind(a.Kind)
	if !known {
		return invalid("unknown document kind %q", a.Kind), nil
	}
	if r.Extractor == nil {
		return invalid("document scanning is not configured"), nil
	}
	inv, err := r.Store.GetInvoice(ctx, a.InvoiceID)
	if errors.Is(err, repo.ErrNotFound) {
		return notFound("Invoice %s not found", a.InvoiceID), nil
	}
	if err != nil {
		return domain.ToolResult{}, err
	}
	img, mime, err := r.Images.Get(ctx, inv)
	if errors.Is(err, storage.ErrNoImage) {
		return notFound("No image stored for invoice %s", inv.ID), nil
	}
	if err != nil {
		return domain.ToolResult{}, fmt.Errorf("load invoice image: %w", err)
	}

	in := extract.Input{Image: img, MIME: mime}
	if inv.OCRCacheID != nil {
		if text, found := r.OCR.Peek(ctx, *inv.OCRCacheID); found && strings.TrimSpace(text) != "" {
			in.Text = text
		}
	}
	value, partial, err := r.Extractor.Extract(ctx, kind, in)
	switch {
	case errors.Is(err, extract.ErrSchemaValidation) && partial:
		log.Warn().Str("invoice_id", inv.ID).Str("kind", string(kind)).Err(err).Msg("scan returned partial data")
		return succeeded(domain.KindDocumentScanned,
			DocumentScanned{InvoiceID: inv.ID, Kind: string(kind), Partial: true, Document: value},
			"Document read, but some fields could not be recognized. Check them with the user."), nil
	case errors.Is(err, extract.ErrSchemaValidation):
		return invalid("the document could not be read as %s", kind), nil
	case err != nil:
		return domain.ToolResult{}, err
	}
	return succeeded(domain.KindDocumentScanned,
		DocumentScanned{InvoiceID: inv.ID, Kind: string(kind), Document: value},
		"Document read as %s", kind), nil
}

type searchArgs struct {
	Query string       `json:"query"`
	Limit *wholeNumber `json:"limit"`
}

func (r *Registry) searchDocuments(ctx context.Context, _ *Env, raw json.RawMessage) (domain.ToolResult, error) {
	var a searchArgs
	if err := decodeArgs(raw, &a); err != nil {
		return invalid("%v", err), nil
	}
	limit := defaultSearchHits
	if a.Limit != nil {
		limit = min(max(int(*a.Limit), 1), maxSearchHits)
	}

	invoices, err := r.Store.ListInvoicesWithOCR(ctx)
	if err != nil {
		return domain.ToolResult{}, err
	}
	hashes := make([]string, 0, len(invoices))
	for _, inv := range invoices {
		hashes = append(hashes, *inv.OCRCacheID)
	}
	rows, err := r.Store.ListOCR(ctx, hashes)
	if err != nil {
		return domain.ToolResult{}, err
	}
	texts := make(map[string]string, len(rows))
	for _, row := range rows {
		texts[row.Hash] = row.Markdown
	}

	docs := make([]search.Document, 0, len(invoices))
	for _, inv := range invoices {
		text := texts[*inv.OCRCacheID]
		if strings.TrimSpace(text) == "" {
			continue
		}
		docs = append(docs, search.Document{
			ID:    inv.ID,
			Title: fmt.Sprintf("%s, %s", inv.WorkshopName, inv.Date),
			Text:  text,
		})
	}
	hits := search.NewIndex(docs, search.WithStopwords(search.GermanStopwords)).TopK(a.Query, limit)
	if len(hits) == 0 {
		return notFound("Nothing found for %q in %d stored document(s)", a.Query, len(docs)), nil
	}
	return succeeded(domain.KindSearchHits, SearchHits{Query: a.Query, Hits: hits},
		"%d hit(s) for %q", len(hits), a.Query), nil
}
