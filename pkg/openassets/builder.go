package openassets

import (
	"bytes"
	"fmt"

	"github.com/arkade-os/colorcore/pkg/errors"
	"github.com/btcsuite/btcd/wire"
)

const (
	// DefaultDustAmount is the value of every colored output.
	DefaultDustAmount uint64 = 600
	// DefaultMinChange is the smallest currency change worth an output.
	DefaultMinChange uint64 = 600
)

// IssuanceRequest issues Quantity units of the asset derived from From to To.
type IssuanceRequest struct {
	From     []byte
	To       []byte
	Quantity uint64
	Metadata []byte
	Fees     uint64
}

// TransferRequest moves Quantity units of AssetId from From to To.
type TransferRequest struct {
	From     []byte
	To       []byte
	AssetId  AssetId
	Quantity uint64
	Metadata []byte
	Fees     uint64
}

// SendRequest moves Amount satoshis from From to To.
type SendRequest struct {
	From   []byte
	To     []byte
	Amount uint64
	Fees   uint64
}

// BuildResult is an unsigned transaction together with what went into it.
type BuildResult struct {
	Tx *wire.MsgTx
	// Marker is nil for plain currency transactions.
	Marker *Marker
	// Inputs are the spent outputs, in input order.
	Inputs []ColoredOutput
	// Outputs are the colored outputs of Tx, in output order.
	Outputs []ColoredOutput
	// Fee is what is left to miners once every output is paid.
	Fee uint64
	// AssetId is the issued or transferred asset.
	AssetId *AssetId
}

// TransactionBuilder composes unsigned transactions. Outputs are always laid
// out as destination, colored change, marker, currency change.
// Currency change below MinChange is not created and goes to fees.
type TransactionBuilder struct {
	Selector   CoinSelector
	DustAmount uint64
	MinChange  uint64
}

func NewTransactionBuilder(
	selector CoinSelector, dustAmount, minChange uint64,
) *TransactionBuilder {
	if dustAmount == 0 {
		dustAmount = DefaultDustAmount
	}
	return &TransactionBuilder{selector, dustAmount, minChange}
}

// BuildIssuance creates a transaction issuing a new asset. The asset id is
// derived from From, the script of the first input.
func (b *TransactionBuilder) BuildIssuance(
	req IssuanceRequest, available []ColoredOutput,
) (*BuildResult, error) {
	if err := validateScripts(req.From, req.To); err != nil {
		return nil, err
	}
	if err := validateQuantity(req.Quantity); err != nil {
		return nil, err
	}

	selection, err := b.Selector.Select(
		uncoloredOnly(ownedBy(available, req.From)), nil, b.DustAmount, req.Fees,
	)
	if err != nil {
		return nil, err
	}

	marker, err := NewMarker([]uint64{req.Quantity}, req.Metadata)
	if err != nil {
		return nil, err
	}
	assetId := DeriveAssetId(selection.Inputs[0].Script)

	outputs := []*wire.TxOut{wire.NewTxOut(int64(b.DustAmount), req.To)}
	markerOut, err := marker.TxOut()
	if err != nil {
		return nil, err
	}
	outputs = append(outputs, markerOut)
	outputs = b.appendChange(outputs, req.From, selection.ChangeValue)

	return b.finalize(selection.Inputs, outputs, marker, &assetId)
}

// BuildTransfer creates a transaction moving units of an existing asset.
// Units selected beyond the requested quantity go back to From.
func (b *TransactionBuilder) BuildTransfer(
	req TransferRequest, available []ColoredOutput,
) (*BuildResult, error) {
	if err := validateScripts(req.From, req.To); err != nil {
		return nil, err
	}
	if err := validateQuantity(req.Quantity); err != nil {
		return nil, err
	}

	budget, err := addAmounts(req.Fees, b.DustAmount)
	if err != nil {
		return nil, err
	}
	owned := ownedBy(available, req.From)
	selection, err := b.Selector.Select(owned, &req.AssetId, req.Quantity, budget)
	if err != nil {
		return nil, err
	}
	// the colored inputs do not depend on the fee budget, only the uncolored ones do
	if selection.ChangeQuantity > 0 {
		if budget, err = addAmounts(budget, b.DustAmount); err != nil {
			return nil, err
		}
		selection, err = b.Selector.Select(owned, &req.AssetId, req.Quantity, budget)
		if err != nil {
			return nil, err
		}
	}

	quantities := []uint64{req.Quantity}
	outputs := []*wire.TxOut{wire.NewTxOut(int64(b.DustAmount), req.To)}
	if selection.ChangeQuantity > 0 {
		quantities = append(quantities, selection.ChangeQuantity)
		outputs = append(outputs, wire.NewTxOut(int64(b.DustAmount), req.From))
	}

	marker, err := NewMarker(quantities, req.Metadata)
	if err != nil {
		return nil, err
	}
	markerOut, err := marker.TxOut()
	if err != nil {
		return nil, err
	}
	outputs = append(outputs, markerOut)
	outputs = b.appendChange(outputs, req.From, selection.ChangeValue)

	assetId := req.AssetId
	return b.finalize(selection.Inputs, outputs, marker, &assetId)
}

// BuildSendCurrency creates a transaction moving plain currency. Colored
// outputs are never spent.
func (b *TransactionBuilder) BuildSendCurrency(
	req SendRequest, available []ColoredOutput,
) (*BuildResult, error) {
	if err := validateScripts(req.From, req.To); err != nil {
		return nil, err
	}
	if err := validateQuantity(req.Amount); err != nil {
		return nil, err
	}

	selection, err := b.Selector.Select(
		uncoloredOnly(ownedBy(available, req.From)), nil, req.Amount, req.Fees,
	)
	if err != nil {
		return nil, err
	}

	outputs := []*wire.TxOut{wire.NewTxOut(int64(req.Amount), req.To)}
	outputs = b.appendChange(outputs, req.From, selection.ChangeValue)

	return b.finalize(selection.Inputs, outputs, nil, nil)
}

func (b *TransactionBuilder) appendChange(
	outputs []*wire.TxOut, script []byte, change uint64,
) []*wire.TxOut {
	if change == 0 || change < b.MinChange {
		return outputs
	}
	return append(outputs, wire.NewTxOut(int64(change), script))
}

// finalize assembles the transaction and checks it colors as intended
// before handing it out.
func (b *TransactionBuilder) finalize(
	inputs []ColoredOutput, outputs []*wire.TxOut, marker *Marker, assetId *AssetId,
) (*BuildResult, error) {
	tx := wire.NewMsgTx(wire.TxVersion)
	for _, in := range inputs {
		outpoint := in.Outpoint
		tx.AddTxIn(wire.NewTxIn(&outpoint, nil, nil))
	}
	for _, out := range outputs {
		tx.AddTxOut(out)
	}

	colored := outputsFromTx(tx)
	if marker != nil {
		markerIndex := len(marker.Quantities)
		if markerIndex >= len(tx.TxOut) || !IsMarkerScript(tx.TxOut[markerIndex].PkScript) {
			return nil, errors.INTERNAL_ERROR.New("marker not found at output %d", markerIndex)
		}
		result, err := ColorOutputs(
			inputs, marker, colored[:markerIndex], colored[markerIndex+1:],
		)
		if err != nil {
			return nil, err
		}
		full := make([]ColoredOutput, 0, len(colored))
		full = append(full, result[:markerIndex]...)
		full = append(full, colored[markerIndex])
		full = append(full, result[markerIndex:]...)
		colored = full
	}

	fee, err := checkConservation(inputs, colored)
	if err != nil {
		return nil, err
	}

	return &BuildResult{
		Tx:      tx,
		Marker:  marker,
		Inputs:  inputs,
		Outputs: colored,
		Fee:     fee,
		AssetId: assetId,
	}, nil
}

// checkConservation verifies that no asset unit nor satoshi is created by the
// transaction and returns the fee. Issued units have no colored input.
func checkConservation(inputs, outputs []ColoredOutput) (uint64, error) {
	var valueIn, valueOut uint64
	quantityIn := make(map[AssetId]uint64)
	for _, in := range inputs {
		valueIn += in.Value
		if in.IsColored() {
			quantityIn[*in.AssetId] += in.AssetQuantity
		}
	}
	quantityOut := make(map[AssetId]uint64)
	for _, out := range outputs {
		valueOut += out.Value
		if out.IsColored() {
			quantityOut[*out.AssetId] += out.AssetQuantity
		}
	}

	issuance := len(quantityIn) == 0
	for assetId, out := range quantityOut {
		if issuance {
			continue
		}
		if quantityIn[assetId] < out {
			return 0, errors.ASSET_MISMATCH.New(
				"outputs carry %d units of %s, inputs only %d", out, assetId, quantityIn[assetId],
			)
		}
	}
	if valueIn < valueOut {
		return 0, errors.INSUFFICIENT_FUNDS.New(
			"outputs spend %d, inputs only %d", valueOut, valueIn,
		).WithMetadata(errors.InsufficientFundsMetadata{Requested: valueOut, Available: valueIn})
	}
	return valueIn - valueOut, nil
}

func validateQuantity(quantity uint64) error {
	if quantity == 0 || quantity > MaxAssetQuantity {
		return errors.INVALID_QUANTITY.New(
			"quantity must be in range [1, %d], got %d", MaxAssetQuantity, quantity,
		).WithMetadata(errors.QuantityMetadata{Quantity: quantity, Max: MaxAssetQuantity})
	}
	return nil
}

func validateScripts(from, to []byte) error {
	if len(from) <= 0 {
		return errors.INVALID_ADDRESS.New("missing source script")
	}
	if len(to) <= 0 {
		return errors.INVALID_ADDRESS.New("missing destination script")
	}
	return nil
}

func ownedBy(outputs []ColoredOutput, script []byte) []ColoredOutput {
	owned := make([]ColoredOutput, 0, len(outputs))
	for _, out := range outputs {
		if bytes.Equal(out.Script, script) {
			owned = append(owned, out)
		}
	}
	return owned
}

func uncoloredOnly(outputs []ColoredOutput) []ColoredOutput {
	result := make([]ColoredOutput, 0, len(outputs))
	for _, out := range outputs {
		if !out.IsColored() {
			result = append(result, out)
		}
	}
	return result
}

// String summarizes the result for logging.
func (r BuildResult) String() string {
	return fmt.Sprintf(
		"tx %s: %d inputs, %d outputs, fee %d", r.Tx.TxID(), len(r.Tx.TxIn), len(r.Tx.TxOut), r.Fee,
	)
}
