package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/arkade-os/colorcore/pkg/openassets"
	"github.com/btcsuite/btcd/wire"
	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"
)

const outputCacheDir = "outputs"

type coloredOutputDTO struct {
	Hash          [32]byte
	Index         uint32
	Value         uint64
	Script        []byte
	AssetId       []byte
	AssetQuantity uint64
}

type outputCache struct {
	store *badgerhold.Store
}

// NewOutputCache returns a persistent cache of colored outputs. It expects
// the base directory (empty for in-memory) and an optional badger logger.
func NewOutputCache(config ...interface{}) (openassets.OutputCache, error) {
	baseDir, logger, err := parseConfig(config...)
	if err != nil {
		return nil, err
	}

	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, outputCacheDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open output cache: %s", err)
	}

	return &outputCache{store}, nil
}

func (c *outputCache) Get(
	_ context.Context, outpoint wire.OutPoint,
) (*openassets.ColoredOutput, error) {
	var dto coloredOutputDTO
	if err := c.store.Get(outpoint.String(), &dto); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cached output: %w", err)
	}

	out := openassets.ColoredOutput{
		Outpoint:      wire.OutPoint{Hash: dto.Hash, Index: dto.Index},
		Value:         dto.Value,
		Script:        dto.Script,
		AssetQuantity: dto.AssetQuantity,
	}
	if len(dto.AssetId) > 0 {
		assetId, err := openassets.NewAssetIdFromBytes(dto.AssetId)
		if err != nil {
			return nil, fmt.Errorf("invalid cached output %s: %w", outpoint, err)
		}
		out.AssetId = assetId
	}
	return &out, nil
}

func (c *outputCache) Put(_ context.Context, outputs ...openassets.ColoredOutput) error {
	var err error
	for range maxRetries {
		err = func() error {
			tx := c.store.Badger().NewTransaction(true)
			defer tx.Discard()

			for _, out := range outputs {
				dto := coloredOutputDTO{
					Hash:          out.Outpoint.Hash,
					Index:         out.Outpoint.Index,
					Value:         out.Value,
					Script:        out.Script,
					AssetQuantity: out.AssetQuantity,
				}
				if out.AssetId != nil {
					dto.AssetId = out.AssetId.Bytes()
				}
				if err := c.store.TxUpsert(tx, out.Outpoint.String(), dto); err != nil {
					return err
				}
			}
			return tx.Commit()
		}()
		if err == nil || !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func (c *outputCache) Close() {
	// nolint:all
	c.store.Close()
}
