package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/tbourn/go-vehicle-assistant/internal/docimage"
	"github.com/tbourn/go-vehicle-assistant/internal/ocr"
	"github.com/tbourn/go-vehicle-assistant/internal/sysutil"
)

func newNormalizeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "normalize <in> <out>",
		Short: "Rotate, scale and re-encode a document photo the way uploads are stored",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			out, err := docimage.NewNormalizer(a.cfg.Image).Normalize(raw)
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[1], out, 0o644); err != nil {
				return err
			}
			lg := sysutil.Component("normalize")
			lg.Info().
				Int("in_bytes", len(raw)).
				Int("out_bytes", len(out)).
				Str("ocr_key", ocr.Hash(out)).
				Msg("normalized")
			return nil
		},
	}
}
