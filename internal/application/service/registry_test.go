package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelRegistry_DefaultCatalog(t *testing.T) {
	r := NewDefaultModelRegistry()
	now := time.Unix(1735689600, 0)

	models := r.List(now)
	require.Len(t, models, len(DefaultModels))

	for i, m := range models {
		assert.Equal(t, DefaultModels[i], m.ID)
		assert.Equal(t, "model", m.Object)
		assert.Equal(t, "web-llm", m.OwnedBy)
		assert.Equal(t, now.Unix(), m.Created)
	}

	assert.True(t, r.Has("Llama-3.2-1B-Instruct-q4f32_1-MLC"))
	assert.False(t, r.Has("gpt-4o"))
}

func TestModelRegistry_RegisterIgnoresDuplicates(t *testing.T) {
	r := NewModelRegistry("a", "b", "a", "")
	r.Register("c")
	r.Register("b")

	ids := make([]string, 0)
	for _, m := range r.List(time.Now()) {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}
