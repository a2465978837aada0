package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mittelgard/clientforge/internal/config"
	"github.com/mittelgard/clientforge/internal/lifecycle"
	"github.com/mittelgard/clientforge/internal/patch"
)

// Version is set at build time via -ldflags.
var Version = "v0.1.0-dev"

var (
	cfgFile string

	cfg  *config.Config
	orch *lifecycle.Orchestrator
)

var rootCmd = &cobra.Command{
	Use:   "clientforge",
	Short: "Manage game client installations for server deployments",
	Long: `clientforge manages locally installed game clients on behalf of a
server operator: it verifies executable integrity, applies per-deployment
binary patch selections, installs add-ons, allocates free overlay slots,
and supervises spawned client processes.`,
	Version:      Version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initRuntime()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// Bare invocation: run the configured autostart, if any.
		if cfg.Autostart.Dataset == "" {
			return cmd.Help()
		}
		ds, err := cfg.Dataset(cfg.Autostart.Dataset)
		if err != nil {
			return err
		}
		log.Info().Str("dataset", ds.Name).Msg("autostart configured, running startup")
		return orch.Startup(cmd.Context(), ds, cfg.Autostart.Count, cfg.Autostart.IP)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default clientforge.yaml)")
}

// initRuntime loads configuration, configures logging, and wires the
// orchestrator with the verified patch catalog.
func initRuntime() error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return err
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level)

	catalog, err := patch.LoadFileVerified(cfg.CatalogPath(), cfg.Keyring)
	if err != nil {
		return err
	}

	orch = lifecycle.New(cfg, catalog)
	return nil
}
