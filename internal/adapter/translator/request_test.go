package translator

import (
	"testing"

	"webllm-bridge/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToInferenceRequest_PromptBecomesUserMessage(t *testing.T) {
	req, err := ToInferenceRequest([]byte(`{"prompt":"hi"}`))
	require.NoError(t, err)

	assert.Equal(t, entity.InferenceRequest{
		Messages: []entity.Message{{Role: entity.RoleUser, Content: "hi"}},
	}, req)
}

func TestToInferenceRequest_SystemPrepended(t *testing.T) {
	req, err := ToInferenceRequest([]byte(`{"messages":[{"role":"user","content":"hi"}],"system":"be terse"}`))
	require.NoError(t, err)

	assert.Equal(t, []entity.Message{
		{Role: entity.RoleSystem, Content: "be terse"},
		{Role: entity.RoleUser, Content: "hi"},
	}, req.Messages)
}

func TestToInferenceRequest_MessagesTakePrecedence(t *testing.T) {
	req, err := ToInferenceRequest([]byte(`{"messages":[{"role":"user","content":"from messages"}],"prompt":"from prompt"}`))
	require.NoError(t, err)

	require.Len(t, req.Messages, 1)
	assert.Equal(t, "from messages", req.Messages[0].Content)
}

func TestToInferenceRequest_EmptyMessagesFallBackToPrompt(t *testing.T) {
	req, err := ToInferenceRequest([]byte(`{"messages":[],"prompt":"hello","system":"sys"}`))
	require.NoError(t, err)

	assert.Equal(t, []entity.Message{
		{Role: entity.RoleSystem, Content: "sys"},
		{Role: entity.RoleUser, Content: "hello"},
	}, req.Messages)
}

func TestToInferenceRequest_OptionalFields(t *testing.T) {
	req, err := ToInferenceRequest([]byte(`{"prompt":"x","max_tokens":64,"temperature":0.7,"stream":true}`))
	require.NoError(t, err)

	require.NotNil(t, req.MaxTokens)
	require.NotNil(t, req.Temperature)
	require.NotNil(t, req.Stream)
	assert.Equal(t, 64, *req.MaxTokens)
	assert.InDelta(t, 0.7, *req.Temperature, 1e-9)
	assert.True(t, *req.Stream)
}

func TestToInferenceRequest_TextParts(t *testing.T) {
	req, err := ToInferenceRequest([]byte(`{"messages":[{"role":"user","content":[{"type":"text","text":"a"},{"type":"text","text":"b"}]}]}`))
	require.NoError(t, err)

	assert.Equal(t, "a\nb", req.Messages[0].Content)
}

func TestToInferenceRequest_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"Empty object", `{}`},
		{"Not JSON", `hello`},
		{"Array body", `[]`},
		{"Null body", `null`},
		{"Messages not array", `{"messages":"hi"}`},
		{"Messages not array with prompt", `{"messages":{"role":"user"},"prompt":"hi"}`},
		{"Empty messages without prompt", `{"messages":[]}`},
		{"Unknown role", `{"messages":[{"role":"tool","content":"x"}]}`},
		{"Missing content", `{"messages":[{"role":"user"}]}`},
		{"Image part", `{"messages":[{"role":"user","content":[{"type":"image_url"}]}]}`},
		{"Prompt not string", `{"prompt":42}`},
		{"System not string", `{"prompt":"x","system":["a"]}`},
		{"Zero max tokens", `{"prompt":"x","max_tokens":0}`},
		{"Fractional max tokens", `{"prompt":"x","max_tokens":1.5}`},
		{"Temperature too high", `{"prompt":"x","temperature":2.5}`},
		{"Negative temperature", `{"prompt":"x","temperature":-0.1}`},
		{"Stream not bool", `{"prompt":"x","stream":"yes"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ToInferenceRequest([]byte(tt.body))
			require.Error(t, err)
			assert.True(t, entity.IsFailureKind(err, entity.FailureInvalidRequest), "got %v", err)
		})
	}
}

func TestToInferenceRequest_NullFieldsAreAbsent(t *testing.T) {
	req, err := ToInferenceRequest([]byte(`{"messages":null,"prompt":"hi","system":null,"max_tokens":null}`))
	require.NoError(t, err)

	assert.Equal(t, []entity.Message{{Role: entity.RoleUser, Content: "hi"}}, req.Messages)
	assert.Nil(t, req.MaxTokens)
}

func TestToInferenceRequest_Pure(t *testing.T) {
	body := []byte(`{"messages":[{"role":"user","content":"hi"}],"system":"s","temperature":1}`)

	first, err := ToInferenceRequest(body)
	require.NoError(t, err)
	second, err := ToInferenceRequest(body)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, second.Messages, 2, "system must be prepended exactly once")
}
