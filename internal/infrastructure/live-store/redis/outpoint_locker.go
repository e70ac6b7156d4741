package redislivestore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/arkade-os/colorcore/internal/core/ports"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const outpointLockerKeyPrefix = "outpointLocker:"

type outpointLocker struct {
	rdb          *redis.Client
	lockFor      time.Duration
	numOfRetries int
	retryDelay   time.Duration
}

// NewOutpointLocker shares locked outpoints among every process using rdb.
// Locks expire on their own after lockFor.
func NewOutpointLocker(
	rdb *redis.Client, lockFor time.Duration, numOfRetries int,
) ports.OutpointLocker {
	return &outpointLocker{
		rdb:          rdb,
		lockFor:      lockFor,
		numOfRetries: numOfRetries,
		retryDelay:   10 * time.Millisecond,
	}
}

func (l *outpointLocker) Lock(ctx context.Context, outpoints ...wire.OutPoint) error {
	if len(outpoints) <= 0 {
		return nil
	}

	var err error
	for range l.numOfRetries {
		_, err = l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, outpoint := range outpoints {
				pipe.Set(ctx, outpointLockerKeyPrefix+outpoint.String(), "", l.lockFor)
			}
			return nil
		})
		if err == nil {
			return nil
		}
		time.Sleep(l.retryDelay)
	}
	return fmt.Errorf("failed to lock outpoints: %w", err)
}

func (l *outpointLocker) Get(ctx context.Context) (map[wire.OutPoint]struct{}, error) {
	locked := make(map[wire.OutPoint]struct{})

	iter := l.rdb.Scan(ctx, 0, outpointLockerKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := strings.TrimPrefix(iter.Val(), outpointLockerKeyPrefix)
		outpoint, err := parseOutpoint(key)
		if err != nil {
			log.WithError(err).Warnf("ignoring invalid locked outpoint key %s", iter.Val())
			continue
		}
		locked[*outpoint] = struct{}{}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to get locked outpoints: %w", err)
	}
	return locked, nil
}

func parseOutpoint(s string) (*wire.OutPoint, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid outpoint %s", s)
	}
	hash, err := chainhash.NewHashFromStr(parts[0])
	if err != nil {
		return nil, err
	}
	var index uint32
	if _, err := fmt.Sscanf(parts[1], "%d", &index); err != nil {
		return nil, fmt.Errorf("invalid outpoint index %s", parts[1])
	}
	return wire.NewOutPoint(hash, index), nil
}
