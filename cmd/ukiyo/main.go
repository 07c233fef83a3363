// Command ukiyo runs the multi-provider answer server and its local tools.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ukiyo/internal/config"
	"ukiyo/internal/flow"
	"ukiyo/internal/logging"
	"ukiyo/internal/provider"
	"ukiyo/internal/store"
)

// app carries the global flags and the config loaded for the running command.
type app struct {
	configPath string
	verbose    bool
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "ukiyo",
		Short: "ukiyo - multi-provider AI answer server",
		Long: `ukiyo orchestrates OpenAI, Claude, Cohere, Gemini and Perplexity through
named modes (balance, search6, supersearch, superwriting, fastchat, writing,
ultrawriting, deepsearch, ultrasearch) and serves the result over HTTP.

Run "ukiyo serve" to start the server, or "ukiyo ask" to try a mode locally.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg

			if _, err := logging.Initialize(logging.Options{
				Level:      cfg.Logging.Level,
				Format:     cfg.Logging.Format,
				File:       cfg.Logging.File,
				Categories: cfg.Logging.Categories,
			}); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			if a.verbose {
				_ = logging.SetLevel("debug")
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logging.Sync()
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "ukiyo.yaml", "Path to the YAML config file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")

	root.AddCommand(
		a.serveCmd(),
		a.askCmd(),
		a.translateCmd(),
		a.userCmd(),
		a.memoryCmd(),
	)
	return root
}

// openStore opens the configured database.
func (a *app) openStore() (*store.Store, error) {
	return store.Open(a.cfg.Store.DatabasePath, store.WithMemoryLimit(a.cfg.Memory.MaxRecordsPerUser))
}

// newEngine wires the provider set into the flow engine.
func (a *app) newEngine(set *provider.Set) *flow.Engine {
	return flow.New(flow.Providers{
		OpenAI: set.OpenAI,
		Claude: set.Claude,
		Cohere: set.Cohere,
		Gemini: set.Gemini,
		Search: set.Search,
	}, flow.WithMemoryMaxLength(a.cfg.Memory.MaxFormattedLength))
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
