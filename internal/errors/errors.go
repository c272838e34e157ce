package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error types for common failure scenarios.
var (
	ErrNoCredential       = errors.New("no credential")
	ErrAuthentication     = errors.New("authentication failed")
	ErrSessionExpired     = errors.New("session expired")
	ErrDeviceNotReady     = errors.New("device not ready")
	ErrRemoteCall         = errors.New("remote call failed")
	ErrEngineInit         = errors.New("playback engine failed to initialize")
	ErrReconnectExhausted = errors.New("playback engine could not reconnect")
	ErrNoEngine           = errors.New("no playback engine")
	ErrTrackNotQueued     = errors.New("track not in queue")
	ErrPremiumRequired    = errors.New("spotify premium required")
	ErrNotConfigured      = errors.New("spotify client id not configured")
	ErrInvalidConfig      = errors.New("invalid configuration")
)

// RemoteError is a failed call against the provider's Web API.
type RemoteError struct {
	Op     string
	Status int // HTTP status, 0 when the request never got a response
	Err    error
}

func (e *RemoteError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %d %s: %v", e.Op, e.Status, http.StatusText(e.Status), e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Is makes every RemoteError match ErrRemoteCall, and a 401 additionally
// match ErrSessionExpired.
func (e *RemoteError) Is(target error) bool {
	switch target {
	case ErrRemoteCall:
		return true
	case ErrSessionExpired:
		return e.Status == http.StatusUnauthorized
	}
	return false
}

// Remote wraps err from op with the response status.
func Remote(op string, status int, err error) error {
	return &RemoteError{Op: op, Status: status, Err: err}
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Status
	}
	return 0
}

// SpindleError wraps an error with a user-friendly suggestion.
type SpindleError struct {
	Err        error
	Suggestion string
}

func (e *SpindleError) Error() string {
	return e.Err.Error()
}

func (e *SpindleError) Unwrap() error {
	return e.Err
}

// WithSuggestion wraps an error with a helpful suggestion.
func WithSuggestion(err error, suggestion string) error {
	return &SpindleError{
		Err:        err,
		Suggestion: suggestion,
	}
}

// GetSuggestion returns a suggestion for the given error.
func GetSuggestion(err error) string {
	if err == nil {
		return ""
	}

	var se *SpindleError
	if errors.As(err, &se) && se.Suggestion != "" {
		return se.Suggestion
	}

	switch {
	case errors.Is(err, ErrNoCredential), errors.Is(err, ErrSessionExpired), errors.Is(err, ErrAuthentication):
		return "Run 'spindle auth login' to authenticate with Spotify"
	case errors.Is(err, ErrNotConfigured):
		return "Run 'spindle config init' and enter your Spotify app's client ID"
	case errors.Is(err, ErrPremiumRequired):
		return "The Web Playback SDK requires Spotify Premium"
	case errors.Is(err, ErrDeviceNotReady), errors.Is(err, ErrNoEngine):
		return "Keep the spindle player tab open in your browser and wait for it to connect"
	case errors.Is(err, ErrEngineInit), errors.Is(err, ErrReconnectExhausted):
		return "Reload the player tab, or restart spindle"
	case errors.Is(err, ErrInvalidConfig):
		return "Check your config with 'spindle config show'"
	}

	switch status := StatusOf(err); {
	case status == http.StatusTooManyRequests:
		return "Too many requests. Wait a moment and try again"
	case status >= 500:
		return "Spotify is having issues. Try again in a moment"
	}

	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") {
		return "Check your internet connection and try again"
	}

	return ""
}

// Format returns a formatted error message with suggestion if available.
func Format(err error) string {
	if err == nil {
		return ""
	}

	suggestion := GetSuggestion(err)
	if suggestion != "" {
		return fmt.Sprintf("Error: %s\n\nSuggestion: %s", err.Error(), suggestion)
	}

	return fmt.Sprintf("Error: %s", err.Error())
}
