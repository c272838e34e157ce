package engine

import "sync"

// Listeners is a registry of one handler per event name, for Player
// implementations.
type Listeners struct {
	mu       sync.RWMutex
	handlers map[EventName]Handler
}

// Add registers h for name, replacing any previous handler.
func (l *Listeners) Add(name EventName, h Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.handlers == nil {
		l.handlers = make(map[EventName]Handler)
	}
	l.handlers[name] = h
}

// Remove drops the handler for name.
func (l *Listeners) Remove(name EventName) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.handlers, name)
}

// Len returns the number of registered handlers.
func (l *Listeners) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.handlers)
}

// Emit calls the handler registered for ev.Name, if any. It reports
// whether a handler ran.
func (l *Listeners) Emit(ev Event) bool {
	l.mu.RLock()
	h := l.handlers[ev.Name]
	l.mu.RUnlock()
	if h == nil {
		return false
	}
	h(ev)
	return true
}
