package bridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"webllm-bridge/internal/application/port/output"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

const (
	diagnosticsTimeout  = 10 * time.Second
	diagnosticsMaxWidth = 1024
)

// captureDiagnostics saves what the page looked like when initialization
// failed. Errors are logged and otherwise ignored.
func (b *Bridge) captureDiagnostics(session output.HostSession, gen uint64) {
	if b.cfg.DiagnosticsDir == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), diagnosticsTimeout)
	defer cancel()

	paths, err := writeDiagnostics(ctx, session, b.cfg.DiagnosticsDir, gen)
	if err != nil {
		b.logger.Warn("Failed to capture some diagnostics", "generation", gen, "error", err)
	}
	if len(paths) > 0 {
		b.logger.Info("Saved initialization diagnostics", "generation", gen, "paths", paths)
	}
}

// writeDiagnostics stores a downscaled screenshot and the sanitized page
// markup under dir. One artifact failing does not prevent the other.
func writeDiagnostics(ctx context.Context, session output.HostSession, dir string, gen uint64) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create diagnostics dir: %w", err)
	}

	base := filepath.Join(dir, fmt.Sprintf("init-failure-%d-%s", gen, uuid.NewString()))

	var (
		paths []string
		errs  []error
	)

	if path, err := writeScreenshot(ctx, session, base+".jpg"); err != nil {
		errs = append(errs, err)
	} else {
		paths = append(paths, path)
	}

	if path, err := writeMarkup(ctx, session, base+".html"); err != nil {
		errs = append(errs, err)
	} else {
		paths = append(paths, path)
	}

	return paths, errors.Join(errs...)
}

func writeScreenshot(ctx context.Context, session output.HostSession, path string) (string, error) {
	shot, err := session.Screenshot(ctx)
	if err != nil {
		return "", fmt.Errorf("screenshot: %w", err)
	}

	img, err := imaging.Decode(bytes.NewReader(shot.Data))
	if err != nil {
		return "", fmt.Errorf("decode screenshot: %w", err)
	}
	if img.Bounds().Dx() > diagnosticsMaxWidth {
		img = imaging.Resize(img, diagnosticsMaxWidth, 0, imaging.Lanczos)
	}

	if err := imaging.Save(img, path, imaging.JPEGQuality(80)); err != nil {
		return "", fmt.Errorf("save screenshot: %w", err)
	}
	return path, nil
}

func writeMarkup(ctx context.Context, session output.HostSession, path string) (string, error) {
	markup, err := session.Markup(ctx)
	if err != nil {
		return "", fmt.Errorf("markup: %w", err)
	}
	if err := os.WriteFile(path, []byte(markup), 0o644); err != nil {
		return "", fmt.Errorf("save markup: %w", err)
	}
	return path, nil
}
