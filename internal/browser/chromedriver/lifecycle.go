package chromedriver

import (
	"context"
	"sync"
)

const (
	eventInit        = "init"
	eventNetworkIdle = "networkIdle"
)

// lifecycle follows Page.lifecycleEvent notifications of the main frame so
// callers can wait for "network idle after navigation N".
type lifecycle struct {
	mu        sync.Mutex
	mainFrame string
	inits     int
	idle      bool
	changed   chan struct{}
}

func newLifecycle() *lifecycle {
	return &lifecycle{changed: make(chan struct{})}
}

func (l *lifecycle) setMainFrame(id string) {
	l.mu.Lock()
	l.mainFrame = id
	l.mu.Unlock()
}

func (l *lifecycle) observe(frameID, name string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.mainFrame != "" && frameID != l.mainFrame {
		return
	}

	switch name {
	case eventInit:
		l.inits++
		l.idle = false
	case eventNetworkIdle:
		l.idle = true
	default:
		return
	}
	close(l.changed)
	l.changed = make(chan struct{})
}

// mark returns the number of navigations seen so far.
func (l *lifecycle) mark() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inits
}

// waitIdle blocks until a navigation newer than mark has gone network idle.
func (l *lifecycle) waitIdle(ctx context.Context, mark int) error {
	for {
		l.mu.Lock()
		done := l.inits > mark && l.idle
		ch := l.changed
		l.mu.Unlock()

		if done {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}
