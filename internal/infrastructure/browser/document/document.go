package document

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
)

const fileName = "webllm-bridge.html"

//go:embed bridge.html
var bridgeHTML []byte

// HTML returns the embedded bridge page that defines window.webllmProxy.
func HTML() []byte {
	return bridgeHTML
}

// Resolve returns the URL the browser should open. An operator-supplied path
// wins; otherwise the embedded page is written into dir.
func Resolve(path, dir string) (string, error) {
	if path != "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("resolve bridge document: %w", err)
		}
		if _, err := os.Stat(abs); err != nil {
			return "", fmt.Errorf("bridge document: %w", err)
		}
		return fileURL(abs), nil
	}
	return Write(dir)
}

// Write materializes the embedded page into dir and returns its file:// URL.
func Write(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create document dir: %w", err)
	}
	target := filepath.Join(dir, fileName)
	if err := os.WriteFile(target, bridgeHTML, 0o644); err != nil {
		return "", fmt.Errorf("write bridge document: %w", err)
	}
	abs, err := filepath.Abs(target)
	if err != nil {
		return "", fmt.Errorf("resolve bridge document: %w", err)
	}
	return fileURL(abs), nil
}

func fileURL(abs string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String()
}
