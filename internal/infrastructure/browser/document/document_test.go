package document

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTML_DefinesProxyContract(t *testing.T) {
	html := string(HTML())

	for _, method := range []string{"isReady", "getModel", "setModel", "initialize", "generateText"} {
		assert.Contains(t, html, method)
	}
	assert.Contains(t, html, "window.webllmProxy")
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()

	u, err := Write(dir)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(u, "file://"))
	data, err := os.ReadFile(filepath.Join(dir, fileName))
	require.NoError(t, err)
	assert.Equal(t, HTML(), data)
}

func TestResolve_OperatorPath(t *testing.T) {
	custom := filepath.Join(t.TempDir(), "custom.html")
	require.NoError(t, os.WriteFile(custom, []byte("<html></html>"), 0o644))

	u, err := Resolve(custom, t.TempDir())
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(u, "/custom.html"))

	_, err = Resolve(filepath.Join(t.TempDir(), "missing.html"), t.TempDir())
	assert.Error(t, err)
}
