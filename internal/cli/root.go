// Package cli implements the spindle command line.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/tessro/spindle/internal/config"
	apperrors "github.com/tessro/spindle/internal/errors"
	"github.com/tessro/spindle/internal/logging"
)

var (
	cfgFile string
	jsonOut bool
	verbose bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "spindle",
	Short: "A Spotify player that lives in your terminal",
	Long: `Spindle mounts a Spotify Web Playback SDK player in a browser tab and
drives it from the terminal: transport controls, a local queue that stays in
sync with Spotify, and a live event stream.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ~/.spindlerc)")
	rootCmd.PersistentFlags().BoolVarP(&jsonOut, "json", "j", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func initConfig() error {
	var err error
	if cfgFile != "" {
		cfg, err = config.LoadFrom(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrInvalidConfig, err)
	}

	return nil
}

// newLogger builds the command's logger. When the terminal belongs to a
// full-screen UI, output always goes to a file.
func newLogger(ownsTerminal bool) (*log.Logger, error) {
	lc := cfg.Log
	if ownsTerminal && lc.File == "" {
		lc.File = logging.DefaultFile()
	}
	if verbose {
		lc.Level = "debug"
	}
	return logging.New(lc, os.Stderr)
}

// configPath returns the file config edits go to.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if p := config.FindConfigFile(); p != "" {
		return p
	}
	return config.DefaultPath()
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, apperrors.Format(err))
		os.Exit(1)
	}
}

// Config returns the loaded configuration.
func Config() *config.Config {
	return cfg
}

// JSONOutput returns true if JSON output is requested.
func JSONOutput() bool {
	return jsonOut
}

// Verbose returns true if verbose output is requested.
func Verbose() bool {
	return verbose
}
