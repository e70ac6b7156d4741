package badgerdb_test

import (
	"context"
	"testing"

	badgerdb "github.com/arkade-os/colorcore/internal/infrastructure/db/badger"
	"github.com/arkade-os/colorcore/pkg/openassets"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

func TestOutputCache(t *testing.T) {
	ctx := context.Background()
	assetId := openassets.DeriveAssetId([]byte{0x76, 0xa9, 0x14})

	colored := openassets.ColoredOutput{
		Outpoint:      wire.OutPoint{Hash: chainhash.HashH([]byte("colored")), Index: 1},
		Value:         600,
		Script:        []byte{0x51},
		AssetId:       &assetId,
		AssetQuantity: 42,
	}
	uncolored := openassets.ColoredOutput{
		Outpoint: wire.OutPoint{Hash: chainhash.HashH([]byte("uncolored"))},
		Value:    10000,
		Script:   []byte{0x52},
	}

	for _, dir := range []string{"", t.TempDir()} {
		cache, err := badgerdb.NewOutputCache(dir, nil)
		require.NoError(t, err)

		got, err := cache.Get(ctx, colored.Outpoint)
		require.NoError(t, err)
		require.Nil(t, got)

		err = cache.Put(ctx, colored, uncolored)
		require.NoError(t, err)

		got, err = cache.Get(ctx, colored.Outpoint)
		require.NoError(t, err)
		require.NotNil(t, got)
		require.True(t, colored.Equal(*got))

		got, err = cache.Get(ctx, uncolored.Outpoint)
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Nil(t, got.AssetId)
		require.False(t, got.IsColored())

		cache.Close()
	}
}
