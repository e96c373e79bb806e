package transfer

import (
	"context"
	"errors"
)

// ErrLoadInProgress is wrapped in a connect-stage Error when another run holds
// the load lease.
var ErrLoadInProgress = errors.New("another run is loading")

// Lease guarantees at most one holder. TryAcquire must not block waiting for
// another holder; it reports ok=false instead.
type Lease interface {
	TryAcquire(ctx context.Context) (release func(), ok bool, err error)
}
