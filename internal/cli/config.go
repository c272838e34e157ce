package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tessro/spindle/internal/config"
)

var (
	initClientID string
	initForce    bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Commands for viewing and editing spindle configuration.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration: file values, environment overrides and defaults.`,
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	Long: `Create a new configuration file. In a terminal you are prompted for the
Spotify client ID and a few player settings; otherwise defaults are written.`,
	RunE: runConfigInit,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value.

Supported keys:
  ` + strings.Join(config.Keys(), "\n  ") + `

Examples:
  spindle config set spotify.client_id 0123456789abcdef
  spindle config set player.volume 40
  spindle config set tui.theme light`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), configPath())
		return nil
	},
}

func init() {
	configInitCmd.Flags().StringVar(&initClientID, "client-id", "", "Spotify app client ID")
	configInitCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing config file")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if JSONOutput() {
		return printJSON(out, cfg)
	}

	encoder := toml.NewEncoder(out)
	encoder.Indent = "  "
	return encoder.Encode(cfg)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	path := configPath()

	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
	}

	newCfg := config.Default()
	newCfg.Spotify.ClientID = initClientID

	if term.IsTerminal(int(os.Stdin.Fd())) && !JSONOutput() {
		if err := promptConfig(newCfg); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return nil
			}
			return err
		}
	}

	if err := newCfg.Validate(); err != nil {
		return err
	}
	if err := config.Save(path, newCfg); err != nil {
		return err
	}

	if JSONOutput() {
		return printJSON(out, map[string]string{
			"status": "created",
			"path":   path,
		})
	}

	fmt.Fprintf(out, "Created config file: %s\n", path)
	fmt.Fprintln(out, "\nNext steps:")
	if newCfg.Spotify.ClientID == "" {
		fmt.Fprintln(out, "  - Set your Spotify client ID: spindle config set spotify.client_id <id>")
	}
	fmt.Fprintln(out, "  - Run 'spindle auth login' to authenticate with Spotify")
	fmt.Fprintln(out, "  - Run 'spindle ui' to start playing")
	return nil
}

func promptConfig(c *config.Config) error {
	volume := fmt.Sprint(c.Player.Volume)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Spotify client ID").
				Description("From your app at developer.spotify.com/dashboard").
				Value(&c.Spotify.ClientID),
			huh.NewInput().
				Title("Player name").
				Description("How the player shows up in Spotify Connect").
				Value(&c.Player.Name),
			huh.NewInput().
				Title("Starting volume").
				Value(&volume).
				Validate(func(s string) error {
					var v int
					if _, err := fmt.Sscanf(s, "%d", &v); err != nil || v < 0 || v > 100 {
						return errors.New("enter a number from 0 to 100")
					}
					return nil
				}),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Theme").
				Options(
					huh.NewOption("Follow terminal", "auto"),
					huh.NewOption("Dark (Mocha)", "dark"),
					huh.NewOption("Light (Latte)", "light"),
				).
				Value(&c.TUI.Theme),
			huh.NewConfirm().
				Title("Open the player page in your browser automatically?").
				Value(&c.Player.OpenBrowser),
		),
	)

	if err := form.Run(); err != nil {
		return err
	}
	_, err := fmt.Sscanf(volume, "%d", &c.Player.Volume)
	return err
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]
	path := configPath()

	if err := config.Set(path, key, value); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if JSONOutput() {
		return printJSON(out, map[string]string{
			"status": "updated",
			"key":    key,
			"value":  value,
			"path":   path,
		})
	}
	fmt.Fprintf(out, "Set %s = %s\n", key, value)
	return nil
}
