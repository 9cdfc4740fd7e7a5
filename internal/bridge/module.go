package bridge

import (
	"context"
	"fmt"

	"github.com/finbridge/finbridge/internal/config"
	"go.uber.org/fx"
)

// NewStore builds the store selected by configuration. Which backend is
// active is configuration, not code duplication.
func NewStore(cfg *config.Config) (Store, error) {
	switch cfg.Store.Backend {
	case config.StoreBackendMemory:
		return NewMemoryStore(), nil
	case config.StoreBackendRedis:
		return NewRedisStore(context.Background(), &cfg.Store)
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.Store.Backend)
	}
}

// Module provides the bridge store dependencies
var Module = fx.Module("bridge",
	fx.Provide(
		NewStore,
	),
)
