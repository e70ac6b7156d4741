package redislivestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/arkade-os/colorcore/pkg/openassets"
	"github.com/btcsuite/btcd/wire"
	"github.com/redis/go-redis/v9"
)

const outputCacheKeyPrefix = "outputCache:"

type outputCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewOutputCache shares colored outputs among every process using rdb.
// A ttl of 0 keeps them forever.
func NewOutputCache(rdb *redis.Client, ttl time.Duration) openassets.OutputCache {
	return &outputCache{rdb, ttl}
}

func (c *outputCache) Get(
	ctx context.Context, outpoint wire.OutPoint,
) (*openassets.ColoredOutput, error) {
	buf, err := c.rdb.Get(ctx, outputCacheKeyPrefix+outpoint.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cached output: %w", err)
	}

	var out openassets.ColoredOutput
	if err := json.Unmarshal(buf, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached output %s: %w", outpoint, err)
	}
	return &out, nil
}

func (c *outputCache) Put(ctx context.Context, outputs ...openassets.ColoredOutput) error {
	_, err := c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, out := range outputs {
			// confirmations change with every block, they are never cached
			out.Confirmations = 0
			buf, err := json.Marshal(out)
			if err != nil {
				return fmt.Errorf("failed to marshal output %s: %w", out.Outpoint, err)
			}
			pipe.Set(ctx, outputCacheKeyPrefix+out.Outpoint.String(), buf, c.ttl)
		}
		return nil
	})
	return err
}

// Close leaves the client open, it is shared with the other stores.
func (c *outputCache) Close() {}
