package core

import "context"

// Controller is the command surface of a mounted playback session.
// User interfaces hold a Controller; they never mutate session state
// directly.
type Controller interface {
	PlayTrack(ctx context.Context, trackID string) error
	PauseTrack(ctx context.Context) error
	ResumeTrack(ctx context.Context) error
	SeekPosition(ctx context.Context, positionMs int) error
	SetVolume(ctx context.Context, volume int) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error

	Enqueue(ctx context.Context, t Track) error
	Dequeue(id string) bool
	ClearQueue()
	SkipToTrack(ctx context.Context, id string) error
	SyncQueue()

	Snapshot() PlaybackState
	Subscribe() (<-chan PlaybackState, func())
}
