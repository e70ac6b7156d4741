package openassets

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// ColoredOutput is a transaction output together with the asset it carries.
// A nil AssetId or a zero AssetQuantity means the output is uncolored.
type ColoredOutput struct {
	Outpoint      wire.OutPoint
	Value         uint64
	Script        []byte
	AssetId       *AssetId
	AssetQuantity uint64
	Confirmations int64
}

// IsColored returns whether the output carries a positive quantity of an asset.
func (o ColoredOutput) IsColored() bool {
	return o.AssetId != nil && o.AssetQuantity > 0
}

// HasAsset returns whether the output carries the given asset.
func (o ColoredOutput) HasAsset(id AssetId) bool {
	return o.IsColored() && *o.AssetId == id
}

// Uncolored returns a copy of the output stripped of any asset.
func (o ColoredOutput) Uncolored() ColoredOutput {
	o.AssetId = nil
	o.AssetQuantity = 0
	return o
}

// WithAsset returns a copy of the output carrying the given asset quantity.
// A zero quantity yields an uncolored output.
func (o ColoredOutput) WithAsset(id AssetId, quantity uint64) ColoredOutput {
	if quantity == 0 {
		return o.Uncolored()
	}
	o.AssetId = &id
	o.AssetQuantity = quantity
	return o
}

func (o ColoredOutput) Equal(other ColoredOutput) bool {
	if o.Outpoint != other.Outpoint || o.Value != other.Value ||
		o.AssetQuantity != other.AssetQuantity || !bytes.Equal(o.Script, other.Script) {
		return false
	}
	if o.AssetId == nil || other.AssetId == nil {
		return o.AssetId == other.AssetId
	}
	return *o.AssetId == *other.AssetId
}

type coloredOutputJSON struct {
	Txid          string   `json:"txid"`
	Vout          uint32   `json:"vout"`
	Value         uint64   `json:"value"`
	Script        string   `json:"script"`
	AssetId       *AssetId `json:"asset_id,omitempty"`
	AssetQuantity uint64   `json:"asset_quantity"`
	Confirmations int64    `json:"confirmations"`
}

func (o ColoredOutput) MarshalJSON() ([]byte, error) {
	return json.Marshal(coloredOutputJSON{
		Txid:          o.Outpoint.Hash.String(),
		Vout:          o.Outpoint.Index,
		Value:         o.Value,
		Script:        hex.EncodeToString(o.Script),
		AssetId:       o.AssetId,
		AssetQuantity: o.AssetQuantity,
		Confirmations: o.Confirmations,
	})
}

func (o *ColoredOutput) UnmarshalJSON(buf []byte) error {
	var v coloredOutputJSON
	if err := json.Unmarshal(buf, &v); err != nil {
		return err
	}
	hash, err := chainhash.NewHashFromStr(v.Txid)
	if err != nil {
		return fmt.Errorf("invalid txid: %w", err)
	}
	script, err := hex.DecodeString(v.Script)
	if err != nil {
		return fmt.Errorf("invalid script: %w", err)
	}
	*o = ColoredOutput{
		Outpoint:      wire.OutPoint{Hash: *hash, Index: v.Vout},
		Value:         v.Value,
		Script:        script,
		AssetId:       v.AssetId,
		AssetQuantity: v.AssetQuantity,
		Confirmations: v.Confirmations,
	}
	return nil
}

// outputsFromTx returns the uncolored outputs of the transaction.
func outputsFromTx(tx *wire.MsgTx) []ColoredOutput {
	txid := tx.TxHash()
	outputs := make([]ColoredOutput, 0, len(tx.TxOut))
	for i, out := range tx.TxOut {
		outputs = append(outputs, ColoredOutput{
			Outpoint: wire.OutPoint{Hash: txid, Index: uint32(i)},
			Value:    uint64(out.Value),
			Script:   out.PkScript,
		})
	}
	return outputs
}
