// Package cli implements the huddle command tree.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/scttfrdmn/agenkit/huddle-go/config"
	"github.com/scttfrdmn/agenkit/huddle-go/observability"
)

// version can be overridden at build time via -ldflags "-X".
var version = "dev"

// app carries state shared by the subcommands. flags holds the raw flag
// values; cfg is the effective configuration once flags are layered over
// file and environment.
type app struct {
	configPath string
	flags      config.Config
	cfg        config.Config
	logger     *slog.Logger
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{flags: config.Default()}

	root := &cobra.Command{
		Use:           "huddle",
		Short:         "Pre-shift guest briefings for restaurant reservations",
		Long:          color.CyanString("huddle") + " runs a panel of model-backed analysts over every reservation\nand writes a coordinated briefing back into the dataset.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "YAML config file")
	pf.StringVarP(&a.flags.Input, "input", "i", a.flags.Input, "input dataset")
	pf.StringVarP(&a.flags.Output, "output", "o", a.flags.Output, "output dataset")
	pf.StringVar(&a.flags.LogLevel, "log-level", a.flags.LogLevel, "debug, info, warn or error")
	pf.StringVar(&a.flags.LogFormat, "log-format", a.flags.LogFormat, "text or json")

	root.AddCommand(newAugmentCmd(a))
	root.AddCommand(newPrepareCmd(a))
	root.AddCommand(newItemsCmd(a))
	return root
}

// Execute runs the root command and reports a failure on stderr.
func Execute() error {
	err := NewRootCmd().Execute()
	if err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

// setup loads the configuration and configures logging.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.applyFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := observability.ConfigureLogging(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

// flagFields maps a flag name to the Config field it sets.
var flagFields = map[string]func(dst *config.Config, src config.Config){
	"input":         func(d *config.Config, s config.Config) { d.Input = s.Input },
	"output":        func(d *config.Config, s config.Config) { d.Output = s.Output },
	"log-level":     func(d *config.Config, s config.Config) { d.LogLevel = s.LogLevel },
	"log-format":    func(d *config.Config, s config.Config) { d.LogFormat = s.LogFormat },
	"workers":       func(d *config.Config, s config.Config) { d.Workers = s.Workers },
	"upcoming-only": func(d *config.Config, s config.Config) { d.UpcomingOnly = s.UpcomingOnly },
	"max-attempts":  func(d *config.Config, s config.Config) { d.MaxAttempts = s.MaxAttempts },
	"base-delay":    func(d *config.Config, s config.Config) { d.BaseDelay = s.BaseDelay },
	"max-delay":     func(d *config.Config, s config.Config) { d.MaxDelay = s.MaxDelay },
	"rate-limit":    func(d *config.Config, s config.Config) { d.RateLimit = s.RateLimit },
	"cache-size":    func(d *config.Config, s config.Config) { d.CacheSize = s.CacheSize },
	"cache-ttl":     func(d *config.Config, s config.Config) { d.CacheTTL = s.CacheTTL },
	"redis-url":     func(d *config.Config, s config.Config) { d.RedisURL = s.RedisURL },
	"metrics-addr":  func(d *config.Config, s config.Config) { d.MetricsAddr = s.MetricsAddr },
	"otlp-endpoint": func(d *config.Config, s config.Config) { d.OTLPEndpoint = s.OTLPEndpoint },
	"trace-console": func(d *config.Config, s config.Config) { d.TraceConsole = s.TraceConsole },
	"menu":          func(d *config.Config, s config.Config) { d.Menu = s.Menu },
	"seed":          func(d *config.Config, s config.Config) { d.Seed = s.Seed },
}

// applyFlags copies explicitly set flags over cfg.
func (a *app) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	for name, set := range flagFields {
		if cmd.Flags().Changed(name) {
			set(cfg, a.flags)
		}
	}
}

func printElapsed(cmd *cobra.Command, what string, start time.Time) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s in %.2f seconds\n", what, time.Since(start).Seconds())
}
