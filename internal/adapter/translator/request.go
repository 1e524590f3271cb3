package translator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"webllm-bridge/internal/domain/entity"
)

const (
	minTemperature = 0.0
	maxTemperature = 2.0
)

type wireMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ToInferenceRequest validates a chat-completion body and normalizes it.
// A non-empty messages array wins over prompt, prompt becomes one user
// message, and system is prepended once. It has no side effects.
func ToInferenceRequest(body []byte) (entity.InferenceRequest, error) {
	var req entity.InferenceRequest

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return req, invalid("request body must be a JSON object")
	}

	messages, hasMessages, err := decodeMessages(fields["messages"])
	if err != nil {
		return req, err
	}
	prompt, hasPrompt, err := optionalString(fields["prompt"], "prompt")
	if err != nil {
		return req, err
	}
	if !hasMessages && !hasPrompt {
		return req, invalid("either messages or prompt is required")
	}

	if len(messages) == 0 && hasPrompt {
		messages = []entity.Message{{Role: entity.RoleUser, Content: prompt}}
	}
	if len(messages) == 0 {
		return req, invalid("messages must not be empty")
	}

	system, hasSystem, err := optionalString(fields["system"], "system")
	if err != nil {
		return req, err
	}
	if hasSystem && system != "" {
		messages = append([]entity.Message{{Role: entity.RoleSystem, Content: system}}, messages...)
	}
	req.Messages = messages

	if raw, ok := present(fields["max_tokens"]); ok {
		var n int
		if err := json.Unmarshal(raw, &n); err != nil {
			return req, invalid("max_tokens must be an integer")
		}
		if n <= 0 {
			return req, invalid("max_tokens must be a positive integer")
		}
		req.MaxTokens = &n
	}

	if raw, ok := present(fields["temperature"]); ok {
		var t float64
		if err := json.Unmarshal(raw, &t); err != nil {
			return req, invalid("temperature must be a number")
		}
		if t < minTemperature || t > maxTemperature {
			return req, invalid(fmt.Sprintf("temperature must be between %g and %g", minTemperature, maxTemperature))
		}
		req.Temperature = &t
	}

	if raw, ok := present(fields["stream"]); ok {
		var s bool
		if err := json.Unmarshal(raw, &s); err != nil {
			return req, invalid("stream must be a boolean")
		}
		req.Stream = &s
	}

	return req, nil
}

func decodeMessages(raw json.RawMessage) ([]entity.Message, bool, error) {
	raw, ok := present(raw)
	if !ok {
		return nil, false, nil
	}
	if raw[0] != '[' {
		return nil, true, invalid("messages must be an array")
	}

	var wire []wireMessage
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, true, invalid("messages must be an array of {role, content} objects")
	}

	messages := make([]entity.Message, 0, len(wire))
	for i, m := range wire {
		role := entity.MessageRole(m.Role)
		if !role.Valid() {
			return nil, true, invalid(fmt.Sprintf("messages[%d].role must be one of system, user, assistant", i))
		}
		content, err := decodeContent(m.Content)
		if err != nil {
			return nil, true, invalid(fmt.Sprintf("messages[%d].content %s", i, err))
		}
		messages = append(messages, entity.Message{Role: role, Content: content})
	}
	return messages, true, nil
}

// decodeContent accepts a string or an array of text parts.
func decodeContent(raw json.RawMessage) (string, error) {
	raw, ok := present(raw)
	if !ok {
		return "", fmt.Errorf("is required")
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}

	var parts []contentPart
	if err := json.Unmarshal(raw, &parts); err != nil {
		return "", fmt.Errorf("must be a string or an array of text parts")
	}
	texts := make([]string, 0, len(parts))
	for _, p := range parts {
		if p.Type != "text" {
			return "", fmt.Errorf("part type %q is not supported", p.Type)
		}
		texts = append(texts, p.Text)
	}
	return strings.Join(texts, "\n"), nil
}

func optionalString(raw json.RawMessage, field string) (string, bool, error) {
	raw, ok := present(raw)
	if !ok {
		return "", false, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", true, invalid(field + " must be a string")
	}
	return s, true, nil
}

// present treats a missing key and an explicit null the same way.
func present(raw json.RawMessage) (json.RawMessage, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, false
	}
	return raw, true
}

func invalid(message string) *entity.Failure {
	return entity.NewFailure(entity.FailureInvalidRequest, message)
}
