package openassets_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/arkade-os/colorcore/pkg/openassets"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

var (
	issuerScript = p2pkh(0x01)
	aliceScript  = p2pkh(0x02)
	bobScript    = p2pkh(0x03)

	assetA = openassets.DeriveAssetId(issuerScript)
	assetB = openassets.DeriveAssetId(aliceScript)
)

func p2pkh(seed byte) []byte {
	script := []byte{0x76, 0xa9, 0x14}
	for range 20 {
		script = append(script, seed)
	}
	return append(script, 0x88, 0xac)
}

func outpoint(txSeed string, index uint32) wire.OutPoint {
	return wire.OutPoint{Hash: chainhash.HashH([]byte(txSeed)), Index: index}
}

func uncoloredOutput(txSeed string, index uint32, value uint64, script []byte) openassets.ColoredOutput {
	return openassets.ColoredOutput{
		Outpoint: outpoint(txSeed, index),
		Value:    value,
		Script:   script,
	}
}

func coloredOutput(
	txSeed string, index uint32, value uint64, script []byte,
	assetId openassets.AssetId, quantity uint64,
) openassets.ColoredOutput {
	return uncoloredOutput(txSeed, index, value, script).WithAsset(assetId, quantity)
}

func mustMarkerOut(t *testing.T, quantities ...uint64) *wire.TxOut {
	marker, err := openassets.NewMarker(quantities, nil)
	require.NoError(t, err)
	out, err := marker.TxOut()
	require.NoError(t, err)
	return out
}

func newTx(prevouts []wire.OutPoint, outputs ...*wire.TxOut) *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	for _, prevout := range prevouts {
		prevout := prevout
		tx.AddTxIn(wire.NewTxIn(&prevout, nil, nil))
	}
	for _, out := range outputs {
		tx.AddTxOut(out)
	}
	return tx
}

// mockFetcher serves transactions from memory and counts lookups.
type mockFetcher struct {
	lock  sync.Mutex
	txs   map[string]*wire.MsgTx
	calls int
}

func newMockFetcher(txs ...*wire.MsgTx) *mockFetcher {
	f := &mockFetcher{txs: make(map[string]*wire.MsgTx)}
	for _, tx := range txs {
		f.txs[tx.TxID()] = tx
	}
	return f
}

func (f *mockFetcher) GetRawTransaction(_ context.Context, txid string) (*wire.MsgTx, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.calls++
	tx, ok := f.txs[txid]
	if !ok {
		return nil, fmt.Errorf("tx %s not found", txid)
	}
	return tx, nil
}

func (f *mockFetcher) numCalls() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.calls
}
