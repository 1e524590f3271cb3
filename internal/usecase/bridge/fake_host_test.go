package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"webllm-bridge/internal/application/port/output"
	"webllm-bridge/internal/domain/entity"
)

// fakeHost stands in for the browser. Sessions follow the page contract the
// bridge expects: the proxy appears after Open and turns ready after initialize.
type fakeHost struct {
	launches atomic.Int32

	// launched receives once per Launch call when non-nil.
	launched chan struct{}
	// gate, when non-nil, blocks Launch until closed or ctx ends.
	gate chan struct{}

	mu           sync.Mutex
	launchErr    error
	openErr      error
	initErr      error
	proxyMissing bool
	invokeErr    error
	payload      json.RawMessage
	markup       string
	shot         *entity.Screenshot
	sessions     []*fakeSession
}

func (h *fakeHost) Launch(ctx context.Context) (output.HostSession, error) {
	n := h.launches.Add(1)
	if h.launched != nil {
		h.launched <- struct{}{}
	}
	if h.gate != nil {
		select {
		case <-h.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.launchErr != nil {
		return nil, h.launchErr
	}
	s := &fakeSession{host: h, id: fmt.Sprintf("session-%d", n)}
	h.sessions = append(h.sessions, s)
	return s, nil
}

func (h *fakeHost) set(fn func(h *fakeHost)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn(h)
}

func (h *fakeHost) lastSession() *fakeSession {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.sessions) == 0 {
		return nil
	}
	return h.sessions[len(h.sessions)-1]
}

type fakeSession struct {
	host *fakeHost
	id   string

	opened      atomic.Bool
	ready       atomic.Bool
	closed      atomic.Bool
	invocations atomic.Int32
	lastOp      atomic.Value
}

func (s *fakeSession) ID() string { return s.id }

func (s *fakeSession) Open(ctx context.Context, url string) error {
	s.host.mu.Lock()
	defer s.host.mu.Unlock()
	if s.host.openErr != nil {
		return s.host.openErr
	}
	s.opened.Store(true)
	return nil
}

func (s *fakeSession) Evaluate(ctx context.Context, fn string, args ...any) (json.RawMessage, error) {
	if s.closed.Load() {
		return nil, output.ErrSessionClosed
	}

	s.host.mu.Lock()
	initErr, invokeErr, payload := s.host.initErr, s.host.invokeErr, s.host.payload
	s.host.mu.Unlock()

	switch fn {
	case initializeFn:
		if initErr != nil {
			return nil, initErr
		}
		s.ready.Store(true)
		return json.RawMessage("true"), nil
	case invokeFn:
		s.invocations.Add(1)
		if len(args) > 0 {
			s.lastOp.Store(args[0])
		}
		if invokeErr != nil {
			return nil, invokeErr
		}
		return payload, nil
	default:
		return nil, errors.New("unexpected function")
	}
}

func (s *fakeSession) WaitFor(ctx context.Context, predicate string, timeout time.Duration) error {
	if s.closed.Load() {
		return output.ErrSessionClosed
	}

	s.host.mu.Lock()
	proxyMissing := s.host.proxyMissing
	s.host.mu.Unlock()

	switch predicate {
	case proxyDefinedPredicate:
		if proxyMissing || !s.opened.Load() {
			return output.ErrPollTimeout
		}
		return nil
	case readyPredicate:
		if !s.ready.Load() {
			return output.ErrPollTimeout
		}
		return nil
	default:
		return errors.New("unexpected predicate")
	}
}

func (s *fakeSession) Screenshot(ctx context.Context) (*entity.Screenshot, error) {
	s.host.mu.Lock()
	defer s.host.mu.Unlock()
	if s.host.shot == nil {
		return nil, errors.New("no screenshot configured")
	}
	return s.host.shot, nil
}

func (s *fakeSession) Markup(ctx context.Context) (string, error) {
	s.host.mu.Lock()
	defer s.host.mu.Unlock()
	if s.host.markup == "" {
		return "", errors.New("no markup configured")
	}
	return s.host.markup, nil
}

func (s *fakeSession) Close() error {
	s.closed.Store(true)
	return nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
