package ports

import (
	"context"

	"github.com/btcsuite/btcd/wire"
)

// OutpointLocker keeps outpoints spent by not yet confirmed transactions away
// from coin selection.
type OutpointLocker interface {
	Lock(ctx context.Context, outpoints ...wire.OutPoint) error
	Get(ctx context.Context) (map[wire.OutPoint]struct{}, error)
}
