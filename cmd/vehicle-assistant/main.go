// Command vehicle-assistant runs the conversational maintenance tracker and
// its maintenance commands.
//
// @title       Vehicle Assistant API
// @version     1.0
// @description Conversational maintenance tracker: chats, document uploads, vehicles and invoices.
// @BasePath    /api/v1
package main

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-vehicle-assistant/internal/config"
	"github.com/tbourn/go-vehicle-assistant/internal/sysutil"
)

var version = "dev"

// app carries what every subcommand needs after the root pre-run.
type app struct {
	cfg config.Config
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var envFile string

	root := &cobra.Command{
		Use:           "vehicle-assistant",
		Short:         "Conversational vehicle maintenance tracker",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			sysutil.SetupLogging(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogPretty)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment is read")

	root.AddCommand(
		newServeCmd(a),
		newMigrateCmd(a),
		newExtractCmd(a),
		newNormalizeCmd(a),
	)
	return root
}
