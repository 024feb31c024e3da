package cli

import (
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/arthur-debert/bootonce/internal/version"
	"github.com/arthur-debert/bootonce/pkg/config"
	"github.com/arthur-debert/bootonce/pkg/logging"
	"github.com/arthur-debert/bootonce/pkg/output"
)

// globals holds the persistent flags and what PersistentPreRunE derives
// from them
type globals struct {
	verbosity  int
	configPath string
	format     string
	logFile    string

	cfg       *config.Config
	overrides map[string]interface{}
}

// NewRootCmd creates and returns the root command
func NewRootCmd() *cobra.Command {
	g := &globals{overrides: make(map[string]interface{})}

	rootCmd := &cobra.Command{
		Use:     "bootonce",
		Short:   MsgRootShort,
		Long:    MsgRootLong,
		Version: version.Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if g.logFile != "" {
				if err := os.Setenv(logging.EnvLogFile, g.logFile); err != nil {
					return err
				}
			}
			logging.SetupLogger(g.verbosity)
			log.Debug().Str("command", cmd.Name()).Msg("Command started")

			if _, err := output.ParseFormat(g.format); err != nil {
				return err
			}
			if err := g.collectOverrides(cmd); err != nil {
				return err
			}
			return g.load()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		DisableAutoGenTag: true,
	}

	// Global flags
	rootCmd.PersistentFlags().CountVarP(&g.verbosity, "verbose", "v", "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)")
	rootCmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Config file (default $XDG_CONFIG_HOME/bootonce/config.toml)")
	rootCmd.PersistentFlags().StringVar(&g.format, "format", "auto", "Output format: auto, term, text, json, yaml")
	rootCmd.PersistentFlags().StringVar(&g.logFile, "log-file", "", "Log file (default $XDG_STATE_HOME/bootonce/bootonce.log)")

	rootCmd.AddCommand(newRunCmd(g))
	rootCmd.AddCommand(newVerifyCmd(g))
	rootCmd.AddCommand(newConfigCmd(g))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// collectOverrides turns command flags that shadow config keys into
// koanf overrides, so they win over files and environment
func (g *globals) collectOverrides(cmd *cobra.Command) error {
	flags := cmd.Flags()
	if f := flags.Lookup("metrics-addr"); f != nil && f.Changed {
		g.overrides["metrics.enabled"] = true
		g.overrides["metrics.listen_addr"] = f.Value.String()
	}
	if f := flags.Lookup("triggers"); f != nil && f.Changed {
		names, err := flags.GetStringSlice("triggers")
		if err != nil {
			return err
		}
		g.overrides["startup.triggers"] = names
	}
	if f := flags.Lookup("marker"); f != nil && f.Changed {
		g.overrides["diagnostics.init_marker"] = f.Value.String()
	}
	if f := flags.Lookup("expect"); f != nil && f.Changed {
		n, err := flags.GetInt("expect")
		if err != nil {
			return err
		}
		g.overrides["diagnostics.expected_count"] = n
	}
	return nil
}

func (g *globals) load() error {
	cfg, err := config.Load(config.LoadOptions{Path: g.configPath, Overrides: g.overrides})
	if err != nil {
		return err
	}
	g.cfg = cfg
	return nil
}

// renderer resolves --format against w
func (g *globals) renderer(w io.Writer) (*output.Renderer, error) {
	format, err := output.ParseFormat(g.format)
	if err != nil {
		return nil, err
	}
	if f, ok := w.(*os.File); ok {
		format = output.Resolve(format, f)
	} else if format == output.FormatAuto {
		format = output.FormatText
	}
	return output.NewRenderer(w, format)
}
