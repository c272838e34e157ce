// Package player adapts the Spotify Web API client to the remote
// transport a playback session drives.
package player

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/tessro/spindle/internal/core"
	apperrors "github.com/tessro/spindle/internal/errors"
	"github.com/tessro/spindle/internal/spotify/client"
)

// Remote issues device-targeted playback calls through the Web API and
// speaks core types.
type Remote struct {
	client *client.Client
}

// New creates a remote transport over c.
func New(c *client.Client) *Remote {
	return &Remote{client: c}
}

// TrackURI returns the playback URI for a track ID.
func TrackURI(id string) string {
	return "spotify:track:" + id
}

// TrackID extracts the track ID from a bare ID, a spotify:track: URI or
// an open.spotify.com link.
func TrackID(ref string) string {
	ref = strings.TrimSpace(ref)
	if id, ok := strings.CutPrefix(ref, "spotify:track:"); ok {
		return id
	}
	if u, err := url.Parse(ref); err == nil && u.Host == "open.spotify.com" {
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		// Localized links carry a leading segment like intl-de.
		if len(parts) >= 2 && parts[len(parts)-2] == "track" {
			return parts[len(parts)-1]
		}
	}
	return ref
}

// CheckCredential confirms the provider accepts the current credential
// and that the account may use the web player.
func (r *Remote) CheckCredential(ctx context.Context) error {
	user, err := r.client.GetCurrentUser(ctx)
	if err != nil {
		return err
	}
	if !user.IsPremium() {
		return fmt.Errorf("account %s is on the %q plan: %w", user.ID, user.Product, apperrors.ErrPremiumRequired)
	}
	return nil
}

// TransferPlayback makes deviceID the active device without starting
// playback.
func (r *Remote) TransferPlayback(ctx context.Context, deviceID string) error {
	return playbackError(r.client.TransferPlayback(ctx, deviceID, false))
}

// PlayTrack starts the track on deviceID.
func (r *Remote) PlayTrack(ctx context.Context, deviceID, trackID string) error {
	return playbackError(r.client.Play(ctx, deviceID, &client.PlayOptions{
		URIs: []string{TrackURI(trackID)},
	}))
}

// Next advances the remote queue on deviceID.
func (r *Remote) Next(ctx context.Context, deviceID string) error {
	return playbackError(r.client.Next(ctx, deviceID))
}

// Previous steps back on deviceID.
func (r *Remote) Previous(ctx context.Context, deviceID string) error {
	return playbackError(r.client.Previous(ctx, deviceID))
}

// Enqueue appends uri to the remote queue of deviceID.
func (r *Remote) Enqueue(ctx context.Context, deviceID, uri string) error {
	return playbackError(r.client.AddToQueue(ctx, uri, deviceID))
}

// playbackError tags the player endpoint failures callers act on: a free
// account, and a device Spotify no longer knows about.
func playbackError(err error) error {
	switch {
	case err == nil:
		return nil
	case client.IsPremiumRequiredError(err):
		return fmt.Errorf("%w: %w", apperrors.ErrPremiumRequired, err)
	case client.IsNoActiveDeviceError(err):
		return fmt.Errorf("%w: %w", apperrors.ErrDeviceNotReady, err)
	}
	return err
}

// Queue returns the upcoming tracks of the remote queue, without the
// currently playing one.
func (r *Remote) Queue(ctx context.Context) ([]core.Track, error) {
	q, err := r.client.GetQueue(ctx)
	if err != nil {
		return nil, err
	}
	return convertTracks(q.Queue), nil
}

// Track fetches full metadata for a track.
func (r *Remote) Track(ctx context.Context, id string) (*core.Track, error) {
	t, err := r.client.GetTrack(ctx, id)
	if err != nil {
		return nil, err
	}
	return convertTrack(t), nil
}

// CurrentlyPlaying returns the account's current track and its progress
// in milliseconds, or nil when nothing is loaded.
func (r *Remote) CurrentlyPlaying(ctx context.Context) (*core.Track, int, error) {
	cp, err := r.client.GetCurrentlyPlaying(ctx)
	if err != nil || cp == nil {
		return nil, 0, err
	}
	return convertTrack(cp.Item), cp.ProgressMS, nil
}

// Search finds tracks matching query.
func (r *Remote) Search(ctx context.Context, query string, limit int) ([]core.Track, error) {
	items, err := r.client.SearchTracks(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return convertTracks(items), nil
}

func convertTracks(items []client.Track) []core.Track {
	out := make([]core.Track, 0, len(items))
	for i := range items {
		// Local files and unavailable tracks come back without an ID.
		if items[i].ID == "" {
			continue
		}
		out = append(out, *convertTrack(&items[i]))
	}
	return out
}

// convertTrack converts a Spotify track to a core track.
func convertTrack(t *client.Track) *core.Track {
	if t == nil {
		return nil
	}

	artists := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = a.Name
	}

	images := make([]string, 0, len(t.Album.Images))
	for _, img := range t.Album.Images {
		images = append(images, img.URL)
	}

	return &core.Track{
		ID:      t.ID,
		URI:     t.URI,
		Title:   t.Name,
		Artists: artists,
		Album: core.Album{
			ID:     t.Album.ID,
			Name:   t.Album.Name,
			Images: images,
		},
		Duration: time.Duration(t.DurationMS) * time.Millisecond,
	}
}
