package service

import (
	"sync"
	"time"

	"webllm-bridge/internal/application/port/output"
	"webllm-bridge/internal/domain/entity"
)

const (
	modelObject = "model"
	modelOwner  = "web-llm"
)

// DefaultModels lists the prebuilt web-llm model ids advertised by /v1/models.
var DefaultModels = []string{
	// Llama
	"Llama-3-8B-Instruct-q4f32_1-MLC",
	"Llama-3.1-70B-Instruct-q4f16_1-MLC",
	"Llama-3.1-8B-q4f32_1-MLC",
	"Llama-3.1-8B-Instruct-q4f32_1-MLC",
	"Llama-3.2-1B-Instruct-q4f32_1-MLC",
	"Llama-3.2-3B-Instruct-q4f32_1-MLC",
	// Hermes
	"Hermes-2-Pro-Llama-3-8B-q4f16_1-MLC",
	"Hermes-2-Theta-Llama-3-70B-q4f16_1-MLC",
	"Hermes-2-Theta-Llama-3-8B-q4f16_1-MLC",
	"Hermes-3-Llama-3.1-8B-q4f16_1-MLC",
	"Hermes-3-Llama-3.2-3B-q4f16_1-MLC",
	// Phi
	"Phi-3-mini-128k-instruct-q4f16_1-MLC",
	"Phi-3.5-mini-instruct-q4f16_1-MLC",
	"Phi-3.5-vision-instruct-q4f16_1-MLC",
	// Qwen
	"Qwen1.5-0.5B-Chat-q4f16_1-MLC",
	"Qwen1.5-1.8B-Chat-q4f16_1-MLC",
	"Qwen1.5-4B-Chat-q4f16_1-MLC",
	"Qwen1.5-7B-Chat-q4f16_1-MLC",
	"Qwen2-0.5B-Instruct-q4f16_1-MLC",
	"Qwen2-1.5B-Instruct-q4f16_1-MLC",
	"Qwen2-7B-Instruct-q4f16_1-MLC",
	"Qwen2.5-0.5B-Instruct-q4f16_1-MLC",
	"Qwen2.5-1.5B-Instruct-q4f16_1-MLC",
	"Qwen2.5-3B-Instruct-q4f16_1-MLC",
	"Qwen2.5-7B-Instruct-q4f16_1-MLC",
	"Qwen3-0.5B-Instruct-q4f16_1-MLC",
	"Qwen2-Math-7B-Instruct-q4f16_1-MLC",
	"Qwen2.5-Coder-7B-Instruct-q4f16_1-MLC",
	// Mistral
	"Mistral-7B-Instruct-v0.3-q4f16_1-MLC",
	"Mixtral-8x7B-Instruct-q4f16_1-MLC",
	// DeepSeek
	"DeepSeek-R1-Distill-Qwen-1.5B-q4f16_1-MLC",
	"DeepSeek-R1-Distill-Qwen-7B-q4f16_1-MLC",
	// QwQ
	"QwQ-32B-Preview-q4f16_1-MLC",
	// SmolLM
	"SmolLM-135M-Instruct-q4f16_1-MLC",
	"SmolLM-360M-Instruct-q4f16_1-MLC",
	"SmolLM-1.7B-Instruct-q4f16_1-MLC",
	// Gemma
	"Gemma-2-2B-it-q4f16_1-MLC",
	"Gemma-2-9B-it-q4f16_1-MLC",
	// InternLM
	"InternLM2.5-7B-Chat-q4f16_1-MLC",
}

var _ output.ModelCatalog = (*ModelRegistryImpl)(nil)

// ModelRegistryImpl keeps registration order so listings are stable.
type ModelRegistryImpl struct {
	mu    sync.RWMutex
	ids   []string
	index map[string]struct{}
}

func NewModelRegistry(ids ...string) *ModelRegistryImpl {
	r := &ModelRegistryImpl{
		index: make(map[string]struct{}, len(ids)),
	}
	for _, id := range ids {
		r.Register(id)
	}
	return r
}

// NewDefaultModelRegistry returns a registry seeded with DefaultModels.
func NewDefaultModelRegistry() *ModelRegistryImpl {
	return NewModelRegistry(DefaultModels...)
}

func (r *ModelRegistryImpl) Register(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.index[id]; ok || id == "" {
		return
	}
	r.index[id] = struct{}{}
	r.ids = append(r.ids, id)
}

func (r *ModelRegistryImpl) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.index[id]
	return ok
}

// List stamps every entry with now as its creation time.
func (r *ModelRegistryImpl) List(now time.Time) []entity.ModelInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	created := now.Unix()
	result := make([]entity.ModelInfo, 0, len(r.ids))
	for _, id := range r.ids {
		result = append(result, entity.ModelInfo{
			ID:      id,
			Object:  modelObject,
			Created: created,
			OwnedBy: modelOwner,
		})
	}
	return result
}
