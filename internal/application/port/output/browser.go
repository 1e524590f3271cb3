package output

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"webllm-bridge/internal/domain/entity"
)

var (
	ErrPollTimeout   = errors.New("page predicate poll timed out")
	ErrSessionClosed = errors.New("host session closed")
)

// RemoteHostPort launches browser sessions. Each session owns one browser
// process and one page.
type RemoteHostPort interface {
	Launch(ctx context.Context) (HostSession, error)
}

type HostSession interface {
	ID() string
	Open(ctx context.Context, url string) error
	// Evaluate runs fn (a JS function expression) in the page with args and
	// returns its awaited result as JSON.
	Evaluate(ctx context.Context, fn string, args ...any) (json.RawMessage, error)
	// WaitFor polls predicate (a JS function expression) until it returns a
	// truthy value. It returns ErrPollTimeout once timeout elapses.
	WaitFor(ctx context.Context, predicate string, timeout time.Duration) error
	Screenshot(ctx context.Context) (*entity.Screenshot, error)
	// Markup returns the page body with scripts, styles and noisy attributes
	// stripped.
	Markup(ctx context.Context) (string, error)
	Close() error
}
