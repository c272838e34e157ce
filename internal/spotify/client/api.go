package client

import (
	"context"
	"errors"
	"net/url"
	"strconv"
)

// GetCurrentUser returns the current user's profile. It doubles as the
// pre-flight check that the credential is accepted.
func (c *Client) GetCurrentUser(ctx context.Context) (*User, error) {
	var user User
	if err := c.Get(ctx, "/me", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetTrack returns full metadata for a track. Results are cached; track
// metadata does not change during a session.
func (c *Client) GetTrack(ctx context.Context, id string) (*Track, error) {
	if id == "" {
		return nil, errors.New("track id cannot be empty")
	}
	if t, ok := c.tracks.Get(id); ok {
		return &t, nil
	}

	var track Track
	if err := c.Get(ctx, "/tracks/"+url.PathEscape(id), &track); err != nil {
		return nil, err
	}
	c.tracks.Add(id, track)
	return &track, nil
}

// GetCurrentlyPlaying returns what the account is playing right now, or
// nil when nothing is.
func (c *Client) GetCurrentlyPlaying(ctx context.Context) (*CurrentlyPlaying, error) {
	var cp CurrentlyPlaying
	if err := c.Get(ctx, "/me/player/currently-playing", &cp); err != nil {
		return nil, err
	}
	if cp.Item == nil {
		return nil, nil
	}
	return &cp, nil
}

// SearchTracks searches the catalog for tracks.
func (c *Client) SearchTracks(ctx context.Context, query string, limit int) ([]Track, error) {
	if query == "" {
		return nil, errors.New("search query cannot be empty")
	}

	params := map[string]string{
		"q":    query,
		"type": "track",
	}
	if limit > 0 {
		params["limit"] = strconv.Itoa(limit)
	}

	var resp SearchResponse
	if err := c.Get(ctx, BuildURL("/search", params), &resp); err != nil {
		return nil, err
	}
	if resp.Tracks == nil {
		return nil, nil
	}
	for _, t := range resp.Tracks.Items {
		c.tracks.Add(t.ID, t)
	}
	return resp.Tracks.Items, nil
}
