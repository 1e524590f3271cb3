package entity

import "encoding/json"

// InferenceRequest is a normalized chat-completion ask. It is built once per
// HTTP request and is not mutated afterwards.
type InferenceRequest struct {
	Messages    []Message `json:"messages"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
	Stream      *bool     `json:"stream,omitempty"`
}

// InferenceResult is either a page payload or a Failure, never both.
type InferenceResult struct {
	Payload json.RawMessage
	Failure *Failure
}

func Succeeded(payload json.RawMessage) InferenceResult {
	return InferenceResult{Payload: payload}
}

func Failed(f *Failure) InferenceResult {
	return InferenceResult{Failure: f}
}

func (r InferenceResult) OK() bool {
	return r.Failure == nil
}
