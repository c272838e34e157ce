package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tessro/spindle/internal/spotify/player"
	"github.com/tessro/spindle/internal/tail"
)

var (
	runPlay      string
	runEnqueue   []string
	runNoEmoji   bool
	runTimestamp bool
	runFormat    string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the player headless and stream playback events",
	Long: `Start the web player without the dashboard and print playback events
as they happen.

Events:
  - Track changes, completions and skips
  - Pause/Resume and volume changes
  - Device ready/lost and player phase changes
  - Queue changes and syncs with Spotify
  - Session expiry and errors

The --format flag takes a Go template over .Type, .Time, .Title, .Artist,
.Album, .Phase, .Device, .Volume and .Queued.`,
	Example: `  spindle run
  spindle run --play 4uLU6hMCjMI75M1A2tKUQC
  spindle run --enqueue 3n3Ppam7vgaVa1iaRUc9Lp --enqueue 7ouMYWpwJ422jRcDASZB7P`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runPlay, "play", "", "track ID or URI to play once the player is ready")
	runCmd.Flags().StringArrayVar(&runEnqueue, "enqueue", nil, "track ID or URI to add to the queue (repeatable)")
	runCmd.Flags().BoolVar(&runNoEmoji, "no-emoji", false, "disable emoji output")
	runCmd.Flags().BoolVarP(&runTimestamp, "timestamp", "t", false, "show timestamps")
	runCmd.Flags().StringVarP(&runFormat, "format", "f", "", "custom format template")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	logger, err := newLogger(false)
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

	states, cancel := m.session.Subscribe()
	defer cancel()
	watcher := tail.NewWatcher(states)
	go func() { _ = watcher.Run(ctx) }()

	m.openPage(func(msg string) { logger.Info(msg) })
	if err := m.session.Initialize(ctx); err != nil {
		return err
	}

	for _, ref := range runEnqueue {
		t, err := m.remote.Track(ctx, player.TrackID(ref))
		if err != nil {
			return fmt.Errorf("enqueue %s: %w", ref, err)
		}
		if err := m.session.Enqueue(ctx, *t); err != nil {
			return err
		}
	}
	if runPlay != "" {
		if err := m.session.PlayTrack(ctx, player.TrackID(runPlay)); err != nil {
			return err
		}
	}

	formatter := tail.NewFormatter(
		tail.WithEmoji(!runNoEmoji),
		tail.WithTimestamp(runTimestamp),
		tail.WithTemplate(runFormat),
	)

	for event := range watcher.Events() {
		if JSONOutput() {
			if err := printJSON(out, event); err != nil {
				return err
			}
			continue
		}
		fmt.Fprintln(out, formatter.Format(event))
	}
	return nil
}
