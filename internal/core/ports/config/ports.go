package configports

import (
	"context"

	configdomain "ytd.app/adminctl/internal/core/domain/config"
)

// Loader reads configuration entries from one source
type Loader interface {
	Load(ctx context.Context) (configdomain.Snapshot, error)
	Name() string
}

// Validator checks an effective configuration
type Validator interface {
	Validate(cfg configdomain.Config) error
}
