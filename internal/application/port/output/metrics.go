package output

import (
	"time"

	"webllm-bridge/internal/domain/entity"
)

type BridgeMetricsPort interface {
	SetBridgeState(state entity.SessionState)
	ObserveInitialization(outcome string, d time.Duration)
	ObserveInvocation(operation, outcome string, d time.Duration)
}
