package output

import (
	"time"

	"webllm-bridge/internal/domain/entity"
)

type ModelCatalog interface {
	List(now time.Time) []entity.ModelInfo
	Has(id string) bool
}
