package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tbourn/go-vehicle-assistant/internal/config"
	"github.com/tbourn/go-vehicle-assistant/internal/docimage"
	"github.com/tbourn/go-vehicle-assistant/internal/extract"
	"github.com/tbourn/go-vehicle-assistant/internal/ocr"
	"github.com/tbourn/go-vehicle-assistant/internal/repo"
)

type extractOutput struct {
	Kind    extract.Kind `json:"kind"`
	File    string       `json:"file"`
	Partial bool         `json:"partial"`
	Value   any          `json:"value"`
}

func newExtractCmd(a *app) *cobra.Command {
	var kindFlag string
	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Extract a structured record from a document photo or PDF",
		Example: `  vehicle-assistant extract --kind invoice rechnung.jpg
  vehicle-assistant extract --kind service_book serviceheft.pdf`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, ok := extract.ParseKind(kindFlag)
			if !ok {
				return fmt.Errorf("unknown kind %q (invoice, vehicle_document, service_book)", kindFlag)
			}
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			db, err := openDB(a.cfg)
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}
			p, err := newExtraction(cmd.Context(), a.cfg, repo.NewStore(db))
			if err != nil {
				return err
			}

			in, err := documentInput(cmd, p, raw, a.cfg.Image)
			if err != nil {
				return err
			}
			value, partial, err := p.extractor.Extract(cmd.Context(), kind, in)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(extractOutput{Kind: kind, File: args[0], Partial: partial, Value: value})
		},
	}
	cmd.Flags().StringVarP(&kindFlag, "kind", "k", string(extract.KindInvoice), "document kind: invoice, vehicle_document or service_book")
	return cmd
}

// documentInput normalizes an image, or OCRs a PDF so the extractor reads
// its text.
func documentInput(cmd *cobra.Command, p *pipeline, raw []byte, imgCfg config.ImageConfig) (extract.Input, error) {
	mime := docimage.SniffMIME(raw)
	if docimage.IsImage(mime) {
		img, err := docimage.NewNormalizer(imgCfg).Normalize(raw)
		if err != nil {
			return extract.Input{}, err
		}
		return extract.Input{Image: img, MIME: docimage.MIMEType}, nil
	}
	if mime != "application/pdf" {
		return extract.Input{}, fmt.Errorf("%w: %s", ocr.ErrUnsupportedMIME, mime)
	}
	pages, err := p.recognizer.RecognizeDocument(cmd.Context(), raw, mime)
	if err != nil {
		return extract.Input{}, err
	}
	return extract.Input{Text: ocr.JoinPages(pages)}, nil
}
