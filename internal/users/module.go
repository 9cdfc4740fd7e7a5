package users

import (
	"github.com/finbridge/finbridge/internal/config"
	"go.uber.org/fx"
)

// NewStore opens the configured user database.
func NewStore(cfg *config.Config) (Store, error) {
	return OpenSQLite(cfg.Users.Path)
}

// Module provides the user store dependencies
var Module = fx.Module("users",
	fx.Provide(
		NewStore,
	),
)
