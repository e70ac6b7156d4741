package inmemorylivestore

import (
	"context"
	"sync"
	"time"

	"github.com/arkade-os/colorcore/internal/core/ports"
	"github.com/btcsuite/btcd/wire"
)

type outpointLocker struct {
	lockFor         time.Duration
	lockedOutpoints map[wire.OutPoint]time.Time
	mu              sync.Mutex
}

// NewOutpointLocker keeps outpoints locked for the given duration, in memory
// of the running process only.
func NewOutpointLocker(lockFor time.Duration) ports.OutpointLocker {
	return &outpointLocker{
		lockFor:         lockFor,
		lockedOutpoints: make(map[wire.OutPoint]time.Time),
	}
}

func (l *outpointLocker) Lock(_ context.Context, outpoints ...wire.OutPoint) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	lockedUntil := time.Now().Add(l.lockFor)
	for _, outpoint := range outpoints {
		l.lockedOutpoints[outpoint] = lockedUntil
	}
	return nil
}

func (l *outpointLocker) Get(_ context.Context) (map[wire.OutPoint]struct{}, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	locked := make(map[wire.OutPoint]struct{}, len(l.lockedOutpoints))
	for outpoint, lockedUntil := range l.lockedOutpoints {
		if now.After(lockedUntil) {
			delete(l.lockedOutpoints, outpoint)
			continue
		}
		locked[outpoint] = struct{}{}
	}
	return locked, nil
}
