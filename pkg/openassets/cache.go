package openassets

import (
	"context"
	"sync"

	"github.com/btcsuite/btcd/wire"
)

// OutputCache memoizes colored outputs. Get returns nil, nil on a miss.
type OutputCache interface {
	Get(ctx context.Context, outpoint wire.OutPoint) (*ColoredOutput, error)
	Put(ctx context.Context, outputs ...ColoredOutput) error
	Close()
}

type inmemoryOutputCache struct {
	lock    *sync.RWMutex
	outputs map[wire.OutPoint]ColoredOutput
}

// NewInMemoryOutputCache returns an OutputCache living in process memory.
func NewInMemoryOutputCache() OutputCache {
	return &inmemoryOutputCache{
		lock:    &sync.RWMutex{},
		outputs: make(map[wire.OutPoint]ColoredOutput),
	}
}

func (c *inmemoryOutputCache) Get(
	_ context.Context, outpoint wire.OutPoint,
) (*ColoredOutput, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	out, ok := c.outputs[outpoint]
	if !ok {
		return nil, nil
	}
	return &out, nil
}

func (c *inmemoryOutputCache) Put(_ context.Context, outputs ...ColoredOutput) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	for _, out := range outputs {
		out.Confirmations = 0
		c.outputs[out.Outpoint] = out
	}
	return nil
}

func (c *inmemoryOutputCache) Close() {}
