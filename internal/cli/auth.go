package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tessro/spindle/internal/browser"
	apperrors "github.com/tessro/spindle/internal/errors"
	"github.com/tessro/spindle/internal/spotify/auth"
)

const loginTimeout = 5 * time.Minute

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage Spotify authentication",
	Long:  `Commands for managing Spotify OAuth authentication.`,
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate with Spotify",
	Long:  `Opens a browser to authenticate with Spotify using the OAuth PKCE flow.`,
	RunE:  runAuthLogin,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove stored Spotify credentials",
	Long:  `Removes the stored Spotify OAuth tokens from the local machine.`,
	RunE:  runAuthLogout,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show authentication status",
	Long:  `Checks the stored credential against Spotify and shows the account it belongs to.`,
	RunE:  runAuthStatus,
}

func init() {
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
	rootCmd.AddCommand(authCmd)
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	logger, err := newLogger(false)
	if err != nil {
		return err
	}
	creds, err := newCredentials(logger)
	if err != nil {
		return err
	}

	pkce, err := auth.NewPKCE()
	if err != nil {
		return fmt.Errorf("failed to generate PKCE: %w", err)
	}

	addr, path, err := creds.oauth.CallbackAddr()
	if err != nil {
		return err
	}
	callbackServer, err := auth.NewCallbackServer(addr, path)
	if err != nil {
		return fmt.Errorf("failed to start callback server: %w", err)
	}
	callbackServer.Start()
	defer func() { _ = callbackServer.Shutdown(context.Background()) }()

	authURL := creds.oauth.AuthURL(pkce)

	fmt.Fprintln(out, "Opening browser for Spotify authentication...")
	if err := browser.Open(authURL); err != nil {
		fmt.Fprintf(out, "Could not open browser automatically.\n")
		fmt.Fprintf(out, "Please open this URL in your browser:\n\n%s\n\n", authURL)
	}

	fmt.Fprintln(out, "Waiting for authentication...")
	ctx, cancel := context.WithTimeout(cmd.Context(), loginTimeout)
	defer cancel()

	result, err := callbackServer.Wait(ctx)
	if err != nil {
		return fmt.Errorf("authentication timed out: %w", err)
	}
	if err := result.Verify(pkce.State); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrAuthentication, err)
	}

	token, err := creds.oauth.Exchange(ctx, result.Code, pkce)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrAuthentication, err)
	}
	if err := creds.storage.Save(token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	user, err := creds.api(logger).GetCurrentUser(ctx)
	if err != nil {
		fmt.Fprintln(out, "Authentication successful! Token stored.")
		return nil
	}

	if JSONOutput() {
		return printJSON(out, map[string]any{
			"status":       "authenticated",
			"user_id":      user.ID,
			"display_name": user.DisplayName,
			"product":      user.Product,
		})
	}

	fmt.Fprintf(out, "Successfully authenticated as %s (%s)\n", user.DisplayName, user.Email)
	if !user.IsPremium() {
		fmt.Fprintln(out, "Note: the web player needs Spotify Premium; this account is "+user.Product+".")
	}
	return nil
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	storage, err := auth.NewTokenStorage("")
	if err != nil {
		return fmt.Errorf("failed to initialize token storage: %w", err)
	}

	status := "logged_out"
	if !storage.Exists() {
		status = "not_authenticated"
	} else if err := storage.Delete(); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}

	if JSONOutput() {
		return printJSON(out, map[string]string{"status": status})
	}
	if status == "not_authenticated" {
		fmt.Fprintln(out, "Not authenticated with Spotify.")
	} else {
		fmt.Fprintln(out, "Logged out of Spotify.")
	}
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	logger, err := newLogger(false)
	if err != nil {
		return err
	}
	creds, err := newCredentials(logger)
	if err != nil {
		return err
	}

	user, err := creds.api(logger).GetCurrentUser(cmd.Context())
	authenticated := err == nil

	if JSONOutput() {
		status := map[string]any{"authenticated": authenticated}
		if authenticated {
			status["user_id"] = user.ID
			status["display_name"] = user.DisplayName
			status["product"] = user.Product
			status["premium"] = user.IsPremium()
		} else {
			status["error"] = err.Error()
		}
		return printJSON(out, status)
	}

	if !authenticated {
		if errors.Is(err, apperrors.ErrNoCredential) {
			fmt.Fprintln(out, "Not authenticated with Spotify.")
			fmt.Fprintln(out, "Run 'spindle auth login' to authenticate.")
			return nil
		}
		return err
	}

	t := NewTableWriter(out)
	t.Row("Account", fmt.Sprintf("%s (%s)", user.DisplayName, user.ID))
	t.Row("Plan", user.Product)
	t.Row("Web player", StatusIcon(user.IsPremium())+" "+premiumLabel(user.IsPremium()))
	t.Flush()
	return nil
}

func premiumLabel(ok bool) string {
	if ok {
		return "available"
	}
	return "requires Premium"
}
