package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/tbourn/go-vehicle-assistant/internal/repo"
	"github.com/tbourn/go-vehicle-assistant/internal/sysutil"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and drop expired idempotency records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openDB(a.cfg)
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}
			n, err := repo.PurgeIdempotency(cmd.Context(), db, time.Now().UTC())
			if err != nil {
				return err
			}
			lg := sysutil.Component("migrate")
			lg.Info().Str("db", a.cfg.DBPath).Int64("purged", n).Msg("schema up to date")
			return nil
		},
	}
}
