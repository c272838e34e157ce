package bridge

import (
	"context"
	"encoding/json"
	"time"

	"github.com/tessro/spindle/internal/engine"
)

const disconnectTimeout = 2 * time.Second

// Player is an engine.Player living in the connected page.
type Player struct {
	server    *Server
	opts      engine.Options
	listeners engine.Listeners
}

var _ engine.Player = (*Player)(nil)

// Connect builds the SDK player in the page and connects it. It reports
// false without an error when no page is connected.
func (p *Player) Connect(ctx context.Context) (bool, error) {
	page := p.server.currentPage()
	if page == nil {
		return false, nil
	}
	p.server.setActive(p)

	raw, err := page.call(ctx, methodConnect, connectArgs{Name: p.opts.Name, Volume: p.opts.Volume})
	if err != nil {
		return false, err
	}
	var ok bool
	if err := json.Unmarshal(raw, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

// Disconnect releases the SDK player. Errors are ignored; the page may
// already be gone.
func (p *Player) Disconnect() {
	defer p.server.clearActive(p)
	page := p.server.currentPage()
	if page == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	_, _ = page.call(ctx, methodDisconnect, nil)
}

func (p *Player) AddListener(name engine.EventName, h engine.Handler) {
	p.listeners.Add(name, h)
}

func (p *Player) RemoveListener(name engine.EventName) {
	p.listeners.Remove(name)
}

func (p *Player) Pause(ctx context.Context) error {
	return p.invoke(ctx, methodPause, nil)
}

func (p *Player) Resume(ctx context.Context) error {
	return p.invoke(ctx, methodResume, nil)
}

func (p *Player) Seek(ctx context.Context, positionMs int) error {
	return p.invoke(ctx, methodSeek, seekArgs{PositionMS: positionMs})
}

func (p *Player) SetVolume(ctx context.Context, volume float64) error {
	return p.invoke(ctx, methodSetVolume, volumeArgs{Volume: volume})
}

func (p *Player) NextTrack(ctx context.Context) error {
	return p.invoke(ctx, methodNext, nil)
}

func (p *Player) PreviousTrack(ctx context.Context) error {
	return p.invoke(ctx, methodPrevious, nil)
}

func (p *Player) GetCurrentState(ctx context.Context) (*engine.State, error) {
	page := p.server.currentPage()
	if page == nil {
		return nil, errPageGone
	}
	raw, err := page.call(ctx, methodGetState, nil)
	if err != nil {
		return nil, err
	}
	return decodeState(raw)
}

func (p *Player) invoke(ctx context.Context, method string, args any) error {
	page := p.server.currentPage()
	if page == nil {
		return errPageGone
	}
	_, err := page.call(ctx, method, args)
	return err
}

func jsonString(s string) (json.RawMessage, error) {
	return json.Marshal(s)
}
