package openassets

import (
	"context"
	"fmt"
	"math"

	"github.com/arkade-os/colorcore/pkg/errors"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	log "github.com/sirupsen/logrus"
)

// TxFetcher retrieves transactions by id.
type TxFetcher interface {
	GetRawTransaction(ctx context.Context, txid string) (*wire.MsgTx, error)
}

// ColorOutputs assigns assets to the outputs of a transaction.
//
// inputs are the colored outputs spent by the transaction, in input order.
// beforeMarker and afterMarker are the outputs located before and after the
// marker output. Without a marker every output is uncolored. With a marker,
// the output at index i before it receives marker.Quantities[i]. If none of
// the inputs is colored the transaction is an issuance and the asset id is
// derived from the script of the first input; otherwise input quantities are
// consumed in order and every output takes the asset of the inputs it
// consumes. Outputs after the marker are always uncolored.
//
// The returned slice holds the outputs before the marker followed by the ones
// after it.
func ColorOutputs(
	inputs []ColoredOutput, marker *Marker, beforeMarker, afterMarker []ColoredOutput,
) ([]ColoredOutput, error) {
	result := make([]ColoredOutput, 0, len(beforeMarker)+len(afterMarker))

	if marker == nil {
		for _, out := range beforeMarker {
			result = append(result, out.Uncolored())
		}
		for _, out := range afterMarker {
			result = append(result, out.Uncolored())
		}
		return result, nil
	}

	if len(marker.Quantities) > len(beforeMarker) {
		return nil, errors.MALFORMED_MARKER.New(
			"marker declares %d quantities for %d outputs",
			len(marker.Quantities), len(beforeMarker),
		)
	}

	quantityAt := func(i int) uint64 {
		if i < len(marker.Quantities) {
			return marker.Quantities[i]
		}
		return 0
	}

	if isIssuance(inputs) {
		var assetId AssetId
		if len(inputs) > 0 {
			assetId = DeriveAssetId(inputs[0].Script)
		}
		for i, out := range beforeMarker {
			q := quantityAt(i)
			if q > 0 && len(inputs) <= 0 {
				return nil, errors.MALFORMED_MARKER.New("issuance without inputs")
			}
			result = append(result, out.WithAsset(assetId, q))
		}
	} else {
		cursor := newInputCursor(inputs)
		for i, out := range beforeMarker {
			q := quantityAt(i)
			if q == 0 {
				result = append(result, out.Uncolored())
				continue
			}
			assetId, err := cursor.consume(q)
			if err != nil {
				return nil, errors.ASSET_MISMATCH.New("output %d: %w", i, err).
					WithMetadata(errors.AssetMismatchMetadata{
						Txid:        out.Outpoint.Hash.String(),
						OutputIndex: i,
					})
			}
			result = append(result, out.WithAsset(assetId, q))
		}
	}

	for _, out := range afterMarker {
		result = append(result, out.Uncolored())
	}
	return result, nil
}

func isIssuance(inputs []ColoredOutput) bool {
	for _, in := range inputs {
		if in.IsColored() {
			return false
		}
	}
	return true
}

// inputCursor walks the colored inputs of a transfer consuming their quantities.
type inputCursor struct {
	inputs    []ColoredOutput
	index     int
	remaining uint64
}

func newInputCursor(inputs []ColoredOutput) *inputCursor {
	c := &inputCursor{inputs: inputs, index: -1}
	c.advance()
	return c
}

func (c *inputCursor) advance() {
	for c.index++; c.index < len(c.inputs); c.index++ {
		if c.inputs[c.index].IsColored() {
			c.remaining = c.inputs[c.index].AssetQuantity
			return
		}
	}
	c.remaining = 0
}

// consume takes quantity units from the inputs under the cursor. All the units
// must belong to the same asset.
func (c *inputCursor) consume(quantity uint64) (AssetId, error) {
	var assetId *AssetId
	for quantity > 0 {
		if c.index >= len(c.inputs) {
			return AssetId{}, fmt.Errorf("inputs exhausted, %d units missing", quantity)
		}
		in := c.inputs[c.index]
		if assetId == nil {
			assetId = in.AssetId
		} else if *assetId != *in.AssetId {
			return AssetId{}, fmt.Errorf("units of %s and %s mixed", assetId, in.AssetId)
		}
		taken := min(quantity, c.remaining)
		quantity -= taken
		c.remaining -= taken
		if c.remaining == 0 {
			c.advance()
		}
	}
	return *assetId, nil
}

// ColoringEngine colors transaction outputs by walking back the transaction
// graph through a TxFetcher. Results are memoized in an optional OutputCache.
type ColoringEngine struct {
	fetcher TxFetcher
	cache   OutputCache
}

// NewColoringEngine returns an engine backed by the given fetcher. cache may be nil.
func NewColoringEngine(fetcher TxFetcher, cache OutputCache) *ColoringEngine {
	return &ColoringEngine{fetcher, cache}
}

// GetOutput returns the colored output for the given outpoint.
func (e *ColoringEngine) GetOutput(
	ctx context.Context, outpoint wire.OutPoint,
) (*ColoredOutput, error) {
	if e.cache != nil {
		cached, err := e.cache.Get(ctx, outpoint)
		if err != nil {
			log.WithError(err).Warnf("failed to read cached output %s", outpoint)
		}
		if cached != nil {
			return cached, nil
		}
	}

	tx, err := e.fetcher.GetRawTransaction(ctx, outpoint.Hash.String())
	if err != nil {
		return nil, err
	}
	outputs, err := e.ColorTransaction(ctx, tx)
	if err != nil {
		return nil, err
	}
	if int(outpoint.Index) >= len(outputs) {
		return nil, fmt.Errorf(
			"output index %d out of range, tx %s has %d outputs",
			outpoint.Index, outpoint.Hash, len(outputs),
		)
	}
	out := outputs[outpoint.Index]
	return &out, nil
}

// ColorTransaction returns the colored outputs of tx in output order.
// A transaction with a malformed marker or inconsistent asset flows has all
// of its outputs uncolored.
func (e *ColoringEngine) ColorTransaction(
	ctx context.Context, tx *wire.MsgTx,
) ([]ColoredOutput, error) {
	outputs := outputsFromTx(tx)

	markerIndex, marker, err := findMarker(tx)
	if err != nil {
		log.WithField("txid", tx.TxID()).Debugf("treating tx as uncolored: %s", err)
		return e.store(ctx, uncolorAll(outputs))
	}
	if marker == nil || isCoinbase(tx) {
		return e.store(ctx, uncolorAll(outputs))
	}

	inputs := make([]ColoredOutput, 0, len(tx.TxIn))
	for _, in := range tx.TxIn {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		prevout, err := e.GetOutput(ctx, in.PreviousOutPoint)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, *prevout)
	}

	colored, err := ColorOutputs(
		inputs, marker, outputs[:markerIndex], outputs[markerIndex+1:],
	)
	if err != nil {
		if errors.MALFORMED_MARKER.Is(err) || errors.ASSET_MISMATCH.Is(err) {
			log.WithField("txid", tx.TxID()).Debugf("treating tx as uncolored: %s", err)
			return e.store(ctx, uncolorAll(outputs))
		}
		return nil, err
	}

	result := make([]ColoredOutput, 0, len(outputs))
	result = append(result, colored[:markerIndex]...)
	result = append(result, outputs[markerIndex])
	result = append(result, colored[markerIndex:]...)
	return e.store(ctx, result)
}

func (e *ColoringEngine) store(
	ctx context.Context, outputs []ColoredOutput,
) ([]ColoredOutput, error) {
	if e.cache != nil {
		if err := e.cache.Put(ctx, outputs...); err != nil {
			log.WithError(err).Warn("failed to cache colored outputs")
		}
	}
	return outputs, nil
}

// findMarker returns the marker output of the transaction, if any. Having
// more than one marker, or a marker that cannot be decoded, is an error.
func findMarker(tx *wire.MsgTx) (int, *Marker, error) {
	index := -1
	var marker *Marker
	for i, out := range tx.TxOut {
		if !hasMarkerTag(out.PkScript) {
			continue
		}
		if marker != nil {
			return -1, nil, errors.MALFORMED_MARKER.New(
				"found markers at outputs %d and %d", index, i,
			)
		}
		m, err := NewMarkerFromScript(out.PkScript)
		if err != nil {
			return -1, nil, err
		}
		index, marker = i, m
	}
	return index, marker, nil
}

func isCoinbase(tx *wire.MsgTx) bool {
	if len(tx.TxIn) != 1 {
		return false
	}
	prevout := tx.TxIn[0].PreviousOutPoint
	return prevout.Index == math.MaxUint32 && prevout.Hash == chainhash.Hash{}
}

func uncolorAll(outputs []ColoredOutput) []ColoredOutput {
	result := make([]ColoredOutput, 0, len(outputs))
	for _, out := range outputs {
		result = append(result, out.Uncolored())
	}
	return result
}
