// Package middleware holds HTTP middleware shared by the API routes.
package middleware

import (
	"context"
	"net/http"
	"sync"
)

// Serializer lets one caller at a time reach the chat session. The browser
// session has a single page, so interleaved operations would corrupt it.
// The zero value is ready to use.
type Serializer struct {
	once sync.Once
	slot chan struct{}
}

// NewSerializer returns a ready Serializer.
func NewSerializer() *Serializer {
	return &Serializer{}
}

func (s *Serializer) init() chan struct{} {
	s.once.Do(func() {
		s.slot = make(chan struct{}, 1)
	})
	return s.slot
}

func (s *Serializer) acquire(ctx context.Context) error {
	slot := s.init()
	select {
	case slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Serializer) release() {
	<-s.slot
}

// Handler wraps next so that requests run one after another. A request whose
// context ends while it waits is dropped.
func (s *Serializer) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.acquire(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		defer s.release()
		next.ServeHTTP(w, r)
	})
}

// Do runs fn while holding the slot. Long-lived connections use it per message.
func (s *Serializer) Do(fn func()) {
	_ = s.DoContext(context.Background(), fn)
}

// DoContext runs fn while holding the slot. It gives up with ctx.Err() if ctx
// ends before the slot frees up; fn is not run in that case.
func (s *Serializer) DoContext(ctx context.Context, fn func()) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()
	fn()
	return nil
}
