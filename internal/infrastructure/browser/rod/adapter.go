package rod

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"strings"
	"sync"
	"time"

	"webllm-bridge/internal/application/port/output"
	"webllm-bridge/internal/domain/entity"
	"webllm-bridge/internal/infrastructure/browser/pagedump"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
	"github.com/ysmood/gson"
)

var (
	_ output.RemoteHostPort = (*Host)(nil)
	_ output.HostSession    = (*Session)(nil)
)

const (
	defaultNavigationTimeout = 30 * time.Second
	screenshotQuality        = 80
)

type HostConfig struct {
	Headless  bool
	Bin       string
	NoSandbox bool
	// Trace enables rod's verbose CDP tracing.
	Trace             bool
	NavigationTimeout time.Duration
}

func DefaultConfig() HostConfig {
	return HostConfig{
		Headless:          true,
		NoSandbox:         false,
		NavigationTimeout: defaultNavigationTimeout,
	}
}

// Host launches one chromium process per session. WebGPU and file:// module
// imports need the relaxed flags set in newLauncher.
type Host struct {
	cfg    HostConfig
	logger output.LoggerPort
}

func NewHost(cfg HostConfig, logger output.LoggerPort) *Host {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = defaultNavigationTimeout
	}
	return &Host{
		cfg:    cfg,
		logger: logger.Named("rod"),
	}
}

func (h *Host) newLauncher() *launcher.Launcher {
	l := launcher.New().
		Headless(h.cfg.Headless).
		NoSandbox(h.cfg.NoSandbox).
		Delete("use-mock-keychain").
		Set("disable-web-security").
		Set("allow-file-access-from-files").
		Set("enable-unsafe-webgpu").
		Set("enable-features", "Vulkan").
		Set("disable-features", "VizDisplayCompositor")
	if h.cfg.Bin != "" {
		l = l.Bin(h.cfg.Bin)
	}
	return l
}

func (h *Host) Launch(ctx context.Context) (output.HostSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l := h.newLauncher()
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Trace(h.cfg.Trace)
	if err := browser.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = browser.Close()
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	sessionCtx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:                uuid.NewString(),
		browser:           browser,
		launcher:          l,
		page:              page,
		navigationTimeout: h.cfg.NavigationTimeout,
		cancel:            cancel,
	}
	s.logger = h.logger.WithField("session_id", s.id)

	go page.Context(sessionCtx).EachEvent(
		func(ev *proto.RuntimeConsoleAPICalled) {
			s.logger.Debug("Page console", "type", string(ev.Type), "message", stringifyConsoleArgs(ev.Args))
		},
		func(ev *proto.RuntimeExceptionThrown) {
			if ev.ExceptionDetails != nil {
				s.logger.Warn("Page exception", "message", ev.ExceptionDetails.Text)
			}
		},
	)()

	s.logger.Info("Browser session launched", "headless", h.cfg.Headless)
	return s, nil
}

// Session is one browser process with one page.
type Session struct {
	id                string
	browser           *rod.Browser
	launcher          *launcher.Launcher
	page              *rod.Page
	navigationTimeout time.Duration
	logger            output.LoggerPort
	cancel            context.CancelFunc

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) livePage() (*rod.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, output.ErrSessionClosed
	}
	return s.page, nil
}

func (s *Session) Open(ctx context.Context, url string) error {
	page, err := s.livePage()
	if err != nil {
		return err
	}

	p := page.Context(ctx).Timeout(s.navigationTimeout)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("wait for load failed: %w", err)
	}
	return nil
}

func (s *Session) Evaluate(ctx context.Context, fn string, args ...any) (json.RawMessage, error) {
	page, err := s.livePage()
	if err != nil {
		return nil, err
	}

	res, err := page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:           fn,
		JSArgs:       args,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		return nil, fmt.Errorf("evaluate failed: %w", err)
	}
	if res == nil {
		return json.RawMessage("null"), nil
	}

	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("decode evaluation result: %w", err)
	}
	return raw, nil
}

// WaitFor polls predicate via rod's Wait until it is truthy. Hitting the
// timeout while ctx is still live is reported as output.ErrPollTimeout.
func (s *Session) WaitFor(ctx context.Context, predicate string, timeout time.Duration) error {
	page, err := s.livePage()
	if err != nil {
		return err
	}

	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err = page.Context(pollCtx).Wait(rod.Eval(predicate))
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w after %s", output.ErrPollTimeout, timeout)
	default:
		return fmt.Errorf("predicate failed: %w", err)
	}
}

func (s *Session) Screenshot(ctx context.Context) (*entity.Screenshot, error) {
	page, err := s.livePage()
	if err != nil {
		return nil, err
	}

	data, err := page.Context(ctx).Screenshot(true, &proto.PageCaptureScreenshot{
		Format:  proto.PageCaptureScreenshotFormatJpeg,
		Quality: gson.Int(screenshotQuality),
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("image decode failed: %w", err)
	}

	return &entity.Screenshot{
		Data:   data,
		Format: "jpeg",
		Width:  cfg.Width,
		Height: cfg.Height,
	}, nil
}

func (s *Session) Markup(ctx context.Context) (string, error) {
	page, err := s.livePage()
	if err != nil {
		return "", err
	}

	raw, err := page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("read page html: %w", err)
	}
	return pagedump.Clean(raw, nil), nil
}

// Close tears down the browser and its process. Safe to call repeatedly.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		s.cancel()
		if s.browser != nil {
			err = s.browser.Close()
		}
		if s.launcher != nil {
			s.launcher.Kill()
			s.launcher.Cleanup()
		}
		s.logger.Info("Browser session closed")
	})
	return err
}

func stringifyConsoleArgs(args []*proto.RuntimeRemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		if a == nil {
			continue
		}
		if !a.Value.Nil() {
			parts = append(parts, a.Value.String())
			continue
		}
		if a.Description != "" {
			parts = append(parts, a.Description)
		}
	}
	return strings.Join(parts, " ")
}
