package input

import (
	"context"

	"webllm-bridge/internal/domain/entity"
)

// BridgePort is what the HTTP layer needs from the bridge.
type BridgePort interface {
	State() entity.SessionState
	Snapshot() entity.SessionSnapshot
	Initialize(ctx context.Context) error
	IsReady(ctx context.Context) bool
	Invoke(ctx context.Context, operation string, args any) entity.InferenceResult
	Teardown(ctx context.Context) error
}
