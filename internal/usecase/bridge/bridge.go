package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"webllm-bridge/internal/application/port/input"
	"webllm-bridge/internal/application/port/output"
	"webllm-bridge/internal/domain/entity"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/singleflight"
)

// Page-side expressions. The engine contract lives on window.webllmProxy.
const (
	proxyDefinedPredicate = `() => window.webllmProxy !== undefined`
	readyPredicate        = `() => window.webllmProxy !== undefined && window.webllmProxy.isReady() === true`
	initializeFn          = `async (options) => { await window.webllmProxy.initialize(options); return true; }`
	invokeFn              = `async (op, args) => {
	const proxy = window.webllmProxy;
	if (!proxy || typeof proxy[op] !== 'function') {
		throw new Error('unknown proxy operation: ' + op);
	}
	return await proxy[op](args);
}`
)

const (
	outcomeSuccess  = "success"
	outcomeFailure  = "failure"
	outcomeTornDown = "torn_down"
	outcomeNotReady = "not_ready"
)

var _ input.BridgePort = (*Bridge)(nil)

type Config struct {
	Model       string
	DocumentURL string

	PollTimeout       time.Duration
	ProbeTimeout      time.Duration
	InitializeTimeout time.Duration
	InvokeTimeout     time.Duration

	RetryInitial time.Duration
	RetryMax     time.Duration

	// DiagnosticsDir receives a screenshot and the page markup whenever
	// initialization fails. Empty disables capture.
	DiagnosticsDir string
}

func DefaultConfig() Config {
	return Config{
		PollTimeout:       60 * time.Second,
		ProbeTimeout:      5 * time.Second,
		InitializeTimeout: 10 * time.Minute,
		InvokeTimeout:     5 * time.Minute,
		RetryInitial:      5 * time.Second,
		RetryMax:          5 * time.Minute,
	}
}

type Option func(*Bridge)

// WithClock overrides the wall clock used for timestamps and the retry cooldown.
func WithClock(now func() time.Time) Option {
	return func(b *Bridge) {
		b.now = now
	}
}

// Bridge owns the single browser session hosting the inference engine and
// gates every invocation on its lifecycle.
type Bridge struct {
	host output.RemoteHostPort
	// metrics state writes happen under mu so the gauge follows state.
	metrics output.BridgeMetricsPort
	logger  output.LoggerPort
	cfg     Config
	now     func() time.Time

	group singleflight.Group

	mu         sync.RWMutex
	state      entity.SessionState
	session    output.HostSession
	lastErr    *entity.Failure
	generation uint64
	inflight   func() (any, error)
	cancelInit context.CancelFunc
	retry      *backoff.ExponentialBackOff
	readyAt    time.Time
	failedAt   time.Time
	retryAt    time.Time
}

func New(
	host output.RemoteHostPort,
	metrics output.BridgeMetricsPort,
	logger output.LoggerPort,
	cfg Config,
	opts ...Option,
) *Bridge {
	defaults := DefaultConfig()
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = defaults.PollTimeout
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = defaults.ProbeTimeout
	}
	if cfg.InitializeTimeout <= 0 {
		cfg.InitializeTimeout = defaults.InitializeTimeout
	}
	if cfg.InvokeTimeout <= 0 {
		cfg.InvokeTimeout = defaults.InvokeTimeout
	}
	if cfg.RetryInitial <= 0 {
		cfg.RetryInitial = defaults.RetryInitial
	}
	if cfg.RetryMax < cfg.RetryInitial {
		cfg.RetryMax = cfg.RetryInitial
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = cfg.RetryInitial
	retry.MaxInterval = cfg.RetryMax
	retry.Reset()

	b := &Bridge{
		host:    host,
		metrics: metrics,
		logger:  logger.Named("bridge"),
		cfg:     cfg,
		now:     time.Now,
		state:   entity.StateUninitialized,
		retry:   retry,
	}
	for _, opt := range opts {
		opt(b)
	}

	b.metrics.SetBridgeState(b.state)
	return b
}

func (b *Bridge) State() entity.SessionState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// LastError returns the failure recorded by the most recent failed
// initialization, or nil.
func (b *Bridge) LastError() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.lastErr == nil {
		return nil
	}
	return b.lastErr
}

func (b *Bridge) Snapshot() entity.SessionSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	snap := entity.SessionSnapshot{
		State:     b.state,
		StateName: b.state.String(),
		Model:     b.cfg.Model,
		ReadyAt:   timePtr(b.readyAt),
		FailedAt:  timePtr(b.failedAt),
		RetryAt:   timePtr(b.retryAt),
	}
	if b.session != nil {
		snap.SessionID = b.session.ID()
	}
	if b.lastErr != nil {
		snap.LastError = b.lastErr.Detail()
	}
	return snap
}

// Initialize brings the engine to Ready. Concurrent callers share one
// initialization; a caller whose ctx ends stops waiting without cancelling it.
func (b *Bridge) Initialize(ctx context.Context) error {
	b.mu.Lock()
	switch b.state {
	case entity.StateReady:
		b.mu.Unlock()
		return nil

	case entity.StateFailed:
		if b.now().Before(b.retryAt) {
			err := b.lastErr
			b.mu.Unlock()
			return err
		}
		b.logger.Info("Retry cooldown elapsed, recovering from failed state",
			"last_error", b.lastErr.Detail())
		b.beginLocked()

	case entity.StateUninitialized:
		b.beginLocked()
	}

	// Joining under the lock guarantees the flight is still registered:
	// the run cannot leave Initializing without taking the lock first.
	ch := b.group.DoChan(flightKey(b.generation), b.inflight)
	b.mu.Unlock()

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return entity.WrapFailure(entity.FailureEngineNotReady,
			"stopped waiting for engine initialization", ctx.Err())
	}
}

// beginLocked moves to Initializing and prepares the shared run. b.mu must be held.
func (b *Bridge) beginLocked() {
	b.generation++
	gen := b.generation

	initCtx, cancel := context.WithCancel(context.Background())
	b.cancelInit = cancel
	b.state = entity.StateInitializing
	b.inflight = func() (any, error) {
		defer cancel()
		return nil, b.runInitialize(initCtx, gen)
	}
	b.metrics.SetBridgeState(b.state)
}

func (b *Bridge) runInitialize(ctx context.Context, gen uint64) error {
	start := time.Now()
	log := b.logger.WithFields(map[string]any{
		"generation": gen,
		"model":      b.cfg.Model,
	})
	log.Info("Initializing engine")

	launchCtx, cancel := context.WithTimeout(ctx, b.cfg.PollTimeout)
	session, err := b.host.Launch(launchCtx)
	cancel()
	if err != nil {
		return b.fail(gen, nil, "launch remote host", err, start)
	}
	if !b.attach(gen, session) {
		_ = session.Close()
		return b.tornDown(start)
	}
	log = log.WithField("session_id", session.ID())

	log.Debug("Opening bridge document", "url", b.cfg.DocumentURL)
	openCtx, cancel := context.WithTimeout(ctx, b.cfg.PollTimeout)
	err = session.Open(openCtx, b.cfg.DocumentURL)
	cancel()
	if err != nil {
		return b.fail(gen, session, "open bridge document", err, start)
	}

	log.Debug("Waiting for proxy to be defined")
	if err := session.WaitFor(ctx, proxyDefinedPredicate, b.cfg.PollTimeout); err != nil {
		return b.fail(gen, session, "wait for proxy", err, start)
	}

	log.Info("Loading model into engine")
	initCtx, cancel := context.WithTimeout(ctx, b.cfg.InitializeTimeout)
	_, err = session.Evaluate(initCtx, initializeFn, map[string]any{"model": b.cfg.Model})
	cancel()
	if err != nil {
		return b.fail(gen, session, "initialize engine", err, start)
	}

	if err := session.WaitFor(ctx, readyPredicate, b.cfg.PollTimeout); err != nil {
		return b.fail(gen, session, "wait for engine ready", err, start)
	}

	b.mu.Lock()
	if b.generation != gen {
		b.mu.Unlock()
		return b.tornDown(start)
	}
	b.state = entity.StateReady
	b.lastErr = nil
	b.readyAt = b.now()
	b.failedAt = time.Time{}
	b.retryAt = time.Time{}
	b.cancelInit = nil
	b.retry.Reset()
	b.metrics.SetBridgeState(entity.StateReady)
	b.mu.Unlock()

	elapsed := time.Since(start)
	b.metrics.ObserveInitialization(outcomeSuccess, elapsed)
	log.Info("Engine ready", "duration_ms", elapsed.Milliseconds())
	return nil
}

// attach records session as the bridge's handle unless a teardown has
// superseded this run.
func (b *Bridge) attach(gen uint64, session output.HostSession) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.generation != gen {
		return false
	}
	b.session = session
	return true
}

func (b *Bridge) fail(gen uint64, session output.HostSession, step string, cause error, start time.Time) error {
	if b.isCurrent(gen) && session != nil {
		b.captureDiagnostics(session, gen)
	}

	b.mu.Lock()
	if b.generation != gen {
		b.mu.Unlock()
		return b.tornDown(start)
	}
	f := entity.WrapFailure(entity.FailureInitialization, step+" failed", cause)
	now := b.now()
	b.session = nil
	b.state = entity.StateFailed
	b.lastErr = f
	b.failedAt = now
	b.retryAt = now.Add(b.retry.NextBackOff())
	b.cancelInit = nil
	retryAt := b.retryAt
	b.metrics.SetBridgeState(entity.StateFailed)
	b.mu.Unlock()

	if session != nil {
		if err := session.Close(); err != nil {
			b.logger.Warn("Failed to close host session", "error", err)
		}
	}

	b.metrics.ObserveInitialization(outcomeFailure, time.Since(start))
	b.logger.Error("Engine initialization failed",
		"generation", gen,
		"step", step,
		"error", cause,
		"retry_at", retryAt.Format(time.RFC3339))
	return f
}

func (b *Bridge) tornDown(start time.Time) error {
	b.metrics.ObserveInitialization(outcomeTornDown, time.Since(start))
	b.logger.Info("Initialization superseded by teardown")
	return entity.NewFailure(entity.FailureTornDown, "bridge was torn down during initialization")
}

func (b *Bridge) isCurrent(gen uint64) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.generation == gen
}

// IsReady re-confirms readiness with the page. It never starts initialization.
func (b *Bridge) IsReady(ctx context.Context) bool {
	b.mu.RLock()
	state, session := b.state, b.session
	b.mu.RUnlock()

	if state != entity.StateReady || session == nil {
		return false
	}
	if err := session.WaitFor(ctx, readyPredicate, b.cfg.ProbeTimeout); err != nil {
		b.logger.Debug("Readiness probe failed", "error", err)
		return false
	}
	return true
}

// Invoke calls window.webllmProxy[operation](args) and returns the page
// result verbatim. Invocation errors leave the session Ready.
func (b *Bridge) Invoke(ctx context.Context, operation string, args any) entity.InferenceResult {
	start := time.Now()

	if !b.IsReady(ctx) {
		b.metrics.ObserveInvocation(operation, outcomeNotReady, time.Since(start))
		return entity.Failed(entity.NewFailure(entity.FailureEngineNotReady, "engine is not ready"))
	}

	b.mu.RLock()
	session := b.session
	b.mu.RUnlock()
	if session == nil {
		b.metrics.ObserveInvocation(operation, outcomeNotReady, time.Since(start))
		return entity.Failed(entity.NewFailure(entity.FailureEngineNotReady, "engine is not ready"))
	}

	callCtx, cancel := context.WithTimeout(ctx, b.cfg.InvokeTimeout)
	defer cancel()

	payload, err := session.Evaluate(callCtx, invokeFn, operation, args)
	if err != nil {
		b.metrics.ObserveInvocation(operation, outcomeFailure, time.Since(start))
		b.logger.Error("Engine invocation failed", "operation", operation, "error", err)
		return entity.Failed(entity.WrapFailure(entity.FailureEngineInvocation,
			fmt.Sprintf("%s failed", operation), err))
	}

	elapsed := time.Since(start)
	b.metrics.ObserveInvocation(operation, outcomeSuccess, elapsed)
	b.logger.Debug("Engine invocation completed", "operation", operation, "duration_ms", elapsed.Milliseconds())
	return entity.Succeeded(payload)
}

// Teardown closes the session from any state and returns to Uninitialized.
// An in-flight initialization is cancelled and its waiters see TornDown.
func (b *Bridge) Teardown(ctx context.Context) error {
	b.mu.Lock()
	prev := b.state
	b.generation++
	cancel := b.cancelInit
	session := b.session
	b.cancelInit = nil
	b.session = nil
	b.inflight = nil
	b.state = entity.StateUninitialized
	b.lastErr = nil
	b.readyAt = time.Time{}
	b.failedAt = time.Time{}
	b.retryAt = time.Time{}
	b.retry.Reset()
	b.metrics.SetBridgeState(entity.StateUninitialized)
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	b.logger.Info("Bridge torn down", "previous_state", prev.String())

	if session == nil {
		return nil
	}
	if err := session.Close(); err != nil {
		b.logger.Warn("Failed to close host session", "error", err)
		return fmt.Errorf("close host session: %w", err)
	}
	return nil
}

func flightKey(gen uint64) string {
	return fmt.Sprintf("init-%d", gen)
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

type nopMetrics struct{}

func (nopMetrics) SetBridgeState(entity.SessionState)              {}
func (nopMetrics) ObserveInitialization(string, time.Duration)     {}
func (nopMetrics) ObserveInvocation(string, string, time.Duration) {}
