package openassets_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/arkade-os/colorcore/pkg/errors"
	"github.com/arkade-os/colorcore/pkg/openassets"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

const (
	dust = openassets.DefaultDustAmount
	fees = uint64(10000)
)

func newBuilder(minChange uint64) *openassets.TransactionBuilder {
	return openassets.NewTransactionBuilder(
		openassets.NewCoinSelector(openassets.OldestFirst), dust, minChange,
	)
}

// recolor colors the built transaction from scratch and checks that nothing
// is created out of thin air.
func recolor(t *testing.T, res *openassets.BuildResult) []openassets.ColoredOutput {
	t.Helper()

	tx := res.Tx
	require.Len(t, tx.TxIn, len(res.Inputs))
	for i, in := range tx.TxIn {
		require.Equal(t, res.Inputs[i].Outpoint, in.PreviousOutPoint)
	}

	outputs := make([]openassets.ColoredOutput, 0, len(tx.TxOut))
	markerIndex := -1
	var valueOut uint64
	for i, out := range tx.TxOut {
		outputs = append(outputs, openassets.ColoredOutput{
			Outpoint: wire.OutPoint{Hash: tx.TxHash(), Index: uint32(i)},
			Value:    uint64(out.Value),
			Script:   out.PkScript,
		})
		valueOut += uint64(out.Value)
		if openassets.IsMarkerScript(out.PkScript) {
			require.Equal(t, -1, markerIndex, "more than one marker")
			markerIndex = i
		}
	}
	require.Equal(t, sumValues(res.Inputs), valueOut+res.Fee)

	if markerIndex < 0 {
		require.Nil(t, res.Marker)
		for _, in := range res.Inputs {
			require.False(t, in.IsColored())
		}
		return outputs
	}

	marker, err := openassets.NewMarkerFromScript(tx.TxOut[markerIndex].PkScript)
	require.NoError(t, err)
	require.Equal(t, res.Marker.Quantities, marker.Quantities)
	require.Len(t, marker.Quantities, markerIndex)

	colored, err := openassets.ColorOutputs(
		res.Inputs, marker, outputs[:markerIndex], outputs[markerIndex+1:],
	)
	require.NoError(t, err)

	quantityIn := make(map[openassets.AssetId]uint64)
	for _, in := range res.Inputs {
		if in.IsColored() {
			quantityIn[*in.AssetId] += in.AssetQuantity
		}
	}
	quantityOut := make(map[openassets.AssetId]uint64)
	for _, out := range colored {
		if out.IsColored() {
			quantityOut[*out.AssetId] += out.AssetQuantity
		}
	}
	if len(quantityIn) > 0 {
		for assetId, quantity := range quantityOut {
			require.GreaterOrEqual(t, quantityIn[assetId], quantity)
		}
	}
	return colored
}

func TestBuildIssuance(t *testing.T) {
	available := []openassets.ColoredOutput{
		uncoloredOutput("funding", 0, 50000, issuerScript),
		coloredOutput("funding", 1, 600, issuerScript, assetB, 7),
		uncoloredOutput("foreign", 0, 90000, aliceScript),
	}

	res, err := newBuilder(dust).BuildIssuance(openassets.IssuanceRequest{
		From:     issuerScript,
		To:       aliceScript,
		Quantity: 1000,
		Metadata: []byte("u=https://example.com/asset"),
		Fees:     fees,
	}, available)
	require.NoError(t, err)
	require.NotNil(t, res)

	require.Len(t, res.Inputs, 1)
	require.Equal(t, available[0].Outpoint, res.Inputs[0].Outpoint)
	require.Equal(t, assetA, *res.AssetId)
	require.Equal(t, fees, res.Fee)

	require.Len(t, res.Tx.TxOut, 3)
	require.Equal(t, aliceScript, res.Tx.TxOut[0].PkScript)
	require.Equal(t, int64(dust), res.Tx.TxOut[0].Value)
	require.Equal(t, issuerScript, res.Tx.TxOut[2].PkScript)
	require.Equal(t, int64(50000-dust-fees), res.Tx.TxOut[2].Value)

	colored := recolor(t, res)
	require.True(t, colored[0].HasAsset(assetA))
	require.Equal(t, uint64(1000), colored[0].AssetQuantity)
	require.False(t, colored[1].IsColored())
	require.Equal(t, res.Outputs[0].AssetQuantity, colored[0].AssetQuantity)
	require.Equal(t, []byte("u=https://example.com/asset"), res.Marker.Metadata)
}

func TestBuildTransfer(t *testing.T) {
	oldest := coloredOutput("a", 0, 600, aliceScript, assetA, 10)
	oldest.Confirmations = 10
	newer := coloredOutput("b", 0, 600, aliceScript, assetA, 20)
	newer.Confirmations = 5
	available := []openassets.ColoredOutput{
		newer,
		oldest,
		coloredOutput("c", 0, 600, aliceScript, assetB, 50),
		uncoloredOutput("d", 0, 20000, aliceScript),
	}

	t.Run("with asset change", func(t *testing.T) {
		res, err := newBuilder(dust).BuildTransfer(openassets.TransferRequest{
			From:     aliceScript,
			To:       bobScript,
			AssetId:  assetA,
			Quantity: 25,
			Fees:     fees,
		}, available)
		require.NoError(t, err)

		require.Len(t, res.Inputs, 3)
		require.Equal(t, oldest.Outpoint, res.Inputs[0].Outpoint)
		require.Equal(t, newer.Outpoint, res.Inputs[1].Outpoint)
		require.Equal(t, []uint64{25, 5}, res.Marker.Quantities)
		require.Equal(t, fees, res.Fee)

		require.Len(t, res.Tx.TxOut, 4)
		require.Equal(t, bobScript, res.Tx.TxOut[0].PkScript)
		require.Equal(t, aliceScript, res.Tx.TxOut[1].PkScript)
		require.Equal(t, aliceScript, res.Tx.TxOut[3].PkScript)
		require.Equal(t, int64(21200-2*dust-fees), res.Tx.TxOut[3].Value)

		colored := recolor(t, res)
		require.True(t, colored[0].HasAsset(assetA))
		require.Equal(t, uint64(25), colored[0].AssetQuantity)
		require.True(t, colored[1].HasAsset(assetA))
		require.Equal(t, uint64(5), colored[1].AssetQuantity)
		require.False(t, colored[2].IsColored())
	})

	t.Run("exact quantity", func(t *testing.T) {
		res, err := newBuilder(dust).BuildTransfer(openassets.TransferRequest{
			From:     aliceScript,
			To:       bobScript,
			AssetId:  assetB,
			Quantity: 50,
			Fees:     fees,
		}, available)
		require.NoError(t, err)
		require.Equal(t, []uint64{50}, res.Marker.Quantities)
		require.Len(t, res.Tx.TxOut, 3)

		colored := recolor(t, res)
		require.True(t, colored[0].HasAsset(assetB))
		require.Equal(t, uint64(50), colored[0].AssetQuantity)
	})

	t.Run("insufficient units", func(t *testing.T) {
		res, err := newBuilder(dust).BuildTransfer(openassets.TransferRequest{
			From:     aliceScript,
			To:       bobScript,
			AssetId:  assetA,
			Quantity: 31,
			Fees:     fees,
		}, available)
		require.Error(t, err)
		require.True(t, errors.INSUFFICIENT_FUNDS.Is(err))
		require.Nil(t, res)
	})

	t.Run("outputs of other scripts are ignored", func(t *testing.T) {
		res, err := newBuilder(dust).BuildTransfer(openassets.TransferRequest{
			From:     bobScript,
			To:       aliceScript,
			AssetId:  assetA,
			Quantity: 1,
			Fees:     fees,
		}, available)
		require.Error(t, err)
		require.True(t, errors.INSUFFICIENT_FUNDS.Is(err))
		require.Nil(t, res)
	})
}

func TestBuildSendCurrency(t *testing.T) {
	available := []openassets.ColoredOutput{
		coloredOutput("a", 0, 50000, aliceScript, assetA, 10),
		uncoloredOutput("b", 0, 30000, aliceScript),
	}

	res, err := newBuilder(dust).BuildSendCurrency(openassets.SendRequest{
		From:   aliceScript,
		To:     bobScript,
		Amount: 15000,
		Fees:   fees,
	}, available)
	require.NoError(t, err)
	require.Nil(t, res.Marker)
	require.Len(t, res.Inputs, 1)
	require.False(t, res.Inputs[0].IsColored())
	require.Len(t, res.Tx.TxOut, 2)
	require.Equal(t, int64(15000), res.Tx.TxOut[0].Value)
	require.Equal(t, int64(30000-15000-fees), res.Tx.TxOut[1].Value)
	recolor(t, res)

	t.Run("colored value is not spendable", func(t *testing.T) {
		res, err := newBuilder(dust).BuildSendCurrency(openassets.SendRequest{
			From:   aliceScript,
			To:     bobScript,
			Amount: 25000,
			Fees:   fees,
		}, available)
		require.Error(t, err)
		require.True(t, errors.INSUFFICIENT_FUNDS.Is(err))
		require.Nil(t, res)
	})
}

func TestDustAbsorption(t *testing.T) {
	available := []openassets.ColoredOutput{
		uncoloredOutput("a", 0, 10700, aliceScript),
	}

	res, err := newBuilder(dust).BuildSendCurrency(openassets.SendRequest{
		From:   aliceScript,
		To:     bobScript,
		Amount: 600,
		Fees:   fees,
	}, available)
	require.NoError(t, err)
	require.Len(t, res.Tx.TxOut, 1)
	require.Equal(t, fees+100, res.Fee)
	recolor(t, res)

	// with no minimum the same change gets its own output
	res, err = newBuilder(0).BuildSendCurrency(openassets.SendRequest{
		From:   aliceScript,
		To:     bobScript,
		Amount: 600,
		Fees:   fees,
	}, available)
	require.NoError(t, err)
	require.Len(t, res.Tx.TxOut, 2)
	require.Equal(t, fees, res.Fee)
	recolor(t, res)
}

func TestBuildInvalidRequests(t *testing.T) {
	available := []openassets.ColoredOutput{
		uncoloredOutput("a", 0, 100000, issuerScript),
		coloredOutput("b", 0, 600, issuerScript, assetA, 10),
	}
	builder := newBuilder(dust)

	for _, quantity := range []uint64{0, openassets.MaxAssetQuantity + 1} {
		res, err := builder.BuildIssuance(openassets.IssuanceRequest{
			From: issuerScript, To: aliceScript, Quantity: quantity, Fees: fees,
		}, available)
		require.Error(t, err)
		require.True(t, errors.INVALID_QUANTITY.Is(err))
		require.Nil(t, res)

		res, err = builder.BuildTransfer(openassets.TransferRequest{
			From: issuerScript, To: aliceScript, AssetId: assetA, Quantity: quantity, Fees: fees,
		}, available)
		require.Error(t, err)
		require.True(t, errors.INVALID_QUANTITY.Is(err))
		require.Nil(t, res)
	}

	for _, amount := range []uint64{0, openassets.MaxAssetQuantity + 1, math.MaxUint64} {
		res, err := builder.BuildSendCurrency(openassets.SendRequest{
			From: issuerScript, To: aliceScript, Amount: amount, Fees: fees,
		}, available)
		require.Error(t, err)
		require.True(t, errors.INVALID_QUANTITY.Is(err))
		require.Nil(t, res)
	}

	// fee budgets wrapping around uint64
	res, err := builder.BuildIssuance(openassets.IssuanceRequest{
		From: issuerScript, To: aliceScript, Quantity: 10, Fees: math.MaxUint64,
	}, available)
	require.Error(t, err)
	require.True(t, errors.INVALID_QUANTITY.Is(err))
	require.Nil(t, res)

	res, err = builder.BuildTransfer(openassets.TransferRequest{
		From: issuerScript, To: aliceScript, AssetId: assetA, Quantity: 5,
		Fees: math.MaxUint64 - dust + 1,
	}, available)
	require.Error(t, err)
	require.True(t, errors.INVALID_QUANTITY.Is(err))
	require.Nil(t, res)

	res, err = builder.BuildSendCurrency(openassets.SendRequest{
		From: issuerScript, To: aliceScript, Amount: 1000, Fees: math.MaxUint64,
	}, available)
	require.Error(t, err)
	require.True(t, errors.INVALID_QUANTITY.Is(err))
	require.Nil(t, res)

	res, err = builder.BuildSendCurrency(openassets.SendRequest{
		From: issuerScript, Amount: 1000, Fees: fees,
	}, available)
	require.Error(t, err)
	require.True(t, errors.INVALID_ADDRESS.Is(err))
	require.Nil(t, res)
}

func TestBuildTransferConservation(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	builder := newBuilder(dust)

	for i := range 200 {
		available := make([]openassets.ColoredOutput, 0)
		var held uint64
		for j := range 1 + rnd.Intn(5) {
			quantity := uint64(1 + rnd.Intn(1000))
			held += quantity
			out := coloredOutput("colored", uint32(i*10+j), dust, aliceScript, assetA, quantity)
			out.Confirmations = int64(rnd.Intn(100))
			available = append(available, out)
		}
		for j := range 1 + rnd.Intn(3) {
			available = append(available, uncoloredOutput(
				"uncolored", uint32(i*10+j), uint64(5000+rnd.Intn(20000)), aliceScript,
			))
		}

		quantity := uint64(1 + rnd.Int63n(int64(held)))
		res, err := builder.BuildTransfer(openassets.TransferRequest{
			From:     aliceScript,
			To:       bobScript,
			AssetId:  assetA,
			Quantity: quantity,
			Fees:     1000,
		}, available)
		if errors.INSUFFICIENT_FUNDS.Is(err) {
			continue
		}
		require.NoError(t, err)

		colored := recolor(t, res)
		require.Equal(t, quantity, colored[0].AssetQuantity)
		require.Equal(t, sumQuantities(res.Inputs), sumQuantities(colored))
	}
}
