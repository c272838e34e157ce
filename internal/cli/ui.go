package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/tessro/spindle/internal/config"
	"github.com/tessro/spindle/internal/logging"
	"github.com/tessro/spindle/internal/tui"
	"github.com/tessro/spindle/internal/tui/styles"
)

var uiCmd = &cobra.Command{
	Use:     "ui",
	Aliases: []string{"tui"},
	Short:   "Start the player and the interactive dashboard",
	Long: `Start the web player and open the terminal dashboard.

The dashboard shows:
  • Now Playing - current track, progress, volume
  • Queue - upcoming tracks, kept in sync with Spotify
  • Session - player phase, device and last queue sync
  • History - tracks played this session

Edits to the config file's theme and volume apply while it runs.
Logs go to the configured log file. Press ? inside for key bindings.`,
	RunE: runUI,
}

func init() {
	rootCmd.AddCommand(uiCmd)
}

func runUI(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(true)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m, err := mountSession(logger)
	if err != nil {
		return err
	}
	defer m.Close()

	m.openPage(func(msg string) { cmd.Println(msg) })
	m.initialize(ctx)

	styles.Apply(cfg.TUI.Theme)
	themes := make(chan string, 1)
	if path := configPath(); fileExists(path) {
		go func() {
			err := config.Watch(ctx, path, liveReload(ctx, m, logger, themes))
			if err != nil {
				logger.Warn("config watch stopped", "err", err)
			}
		}()
	}

	return tui.Run(ctx, m.session, tui.Options{
		Searcher: m.remote,
		Reinit:   m.session.Initialize,
		Themes:   themes,
	})
}

// liveReload applies theme and volume edits from a reloaded config file.
func liveReload(ctx context.Context, m *mount, logger *log.Logger, themes chan<- string) func(*config.Config, error) {
	theme, volume := cfg.TUI.Theme, cfg.Player.Volume

	return func(next *config.Config, err error) {
		if err == nil {
			err = next.Validate()
		}
		if err != nil {
			logger.Warn("ignoring config change", "err", err)
			return
		}

		if next.TUI.Theme != theme {
			theme = next.TUI.Theme
			select {
			case themes <- theme:
			default:
				logger.Debug("theme change dropped, UI busy")
			}
		}

		if next.Player.Volume != volume {
			volume = next.Player.Volume
			vctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := m.session.SetVolume(vctx, volume); err != nil {
				logger.Warn("apply volume from config", "err", err)
			}
		}

		if !verbose {
			if err := logging.SetLevel(logger, next.Log.Level); err != nil {
				logger.Warn("apply log level from config", "err", err)
			}
		}
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
