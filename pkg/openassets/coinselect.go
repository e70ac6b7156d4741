package openassets

import (
	"fmt"
	"sort"
	"strings"

	"github.com/arkade-os/colorcore/pkg/errors"
)

// SelectionPolicy is the order in which candidate outputs are accumulated.
type SelectionPolicy int

const (
	// OldestFirst spends the most confirmed outputs first.
	OldestFirst SelectionPolicy = iota
	// SmallestFirst spends the smallest outputs first to keep dust down.
	SmallestFirst
)

func (p SelectionPolicy) String() string {
	switch p {
	case OldestFirst:
		return "oldest"
	case SmallestFirst:
		return "smallest"
	default:
		return "unknown"
	}
}

// ParseSelectionPolicy returns the policy with the given name.
func ParseSelectionPolicy(s string) (SelectionPolicy, error) {
	switch strings.ToLower(s) {
	case "oldest", "":
		return OldestFirst, nil
	case "smallest":
		return SmallestFirst, nil
	default:
		return 0, fmt.Errorf("unknown selection policy %s", s)
	}
}

// Selection is the result of a coin selection.
type Selection struct {
	// Inputs are the selected outputs: outputs of the target asset first,
	// then the uncolored ones.
	Inputs []ColoredOutput
	// TotalValue is the sum of the currency values of the inputs.
	TotalValue uint64
	// ChangeQuantity is the asset quantity selected beyond the target.
	ChangeQuantity uint64
	// ChangeValue is the currency value left once the target (for currency
	// requests) and the fee budget are covered.
	ChangeValue uint64
}

// CoinSelector picks outputs to fund a transaction. It holds no state.
type CoinSelector struct {
	Policy SelectionPolicy
}

func NewCoinSelector(policy SelectionPolicy) CoinSelector {
	return CoinSelector{policy}
}

// Select chooses outputs from available so that their total covers
// targetQuantity units of targetAsset, or targetQuantity satoshis of currency
// when targetAsset is nil, plus feeBudget satoshis of currency.
// Outputs of other assets are never selected.
func (s CoinSelector) Select(
	available []ColoredOutput, targetAsset *AssetId, targetQuantity, feeBudget uint64,
) (*Selection, error) {
	if targetQuantity == 0 {
		return nil, errors.INVALID_QUANTITY.New("target quantity must be greater than 0").
			WithMetadata(errors.QuantityMetadata{Max: MaxAssetQuantity})
	}

	colored := make([]ColoredOutput, 0)
	uncolored := make([]ColoredOutput, 0)
	for _, out := range available {
		switch {
		case out.IsColored():
			if targetAsset != nil && *out.AssetId == *targetAsset {
				colored = append(colored, out)
			}
		case out.Value > 0:
			uncolored = append(uncolored, out.Uncolored())
		}
	}
	s.sort(colored, true)
	s.sort(uncolored, false)

	selection := &Selection{Inputs: make([]ColoredOutput, 0)}

	if targetAsset != nil {
		var total uint64
		for _, out := range colored {
			if total >= targetQuantity {
				break
			}
			selection.Inputs = append(selection.Inputs, out)
			selection.TotalValue += out.Value
			total += out.AssetQuantity
		}
		if total < targetQuantity {
			return nil, errors.INSUFFICIENT_FUNDS.New(
				"insufficient units of asset %s: have %d, need %d",
				targetAsset, total, targetQuantity,
			).WithMetadata(errors.InsufficientFundsMetadata{
				AssetId:   targetAsset.String(),
				Requested: targetQuantity,
				Available: total,
			})
		}
		selection.ChangeQuantity = total - targetQuantity
	}

	required := feeBudget
	if targetAsset == nil {
		var err error
		if required, err = addAmounts(targetQuantity, feeBudget); err != nil {
			return nil, err
		}
	}
	for _, out := range uncolored {
		if selection.TotalValue >= required {
			break
		}
		selection.Inputs = append(selection.Inputs, out)
		selection.TotalValue += out.Value
	}
	if selection.TotalValue < required {
		return nil, errors.INSUFFICIENT_FUNDS.New(
			"insufficient funds: have %d, need %d",
			selection.TotalValue, required,
		).WithMetadata(errors.InsufficientFundsMetadata{
			Requested: required,
			Available: selection.TotalValue,
		})
	}
	selection.ChangeValue = selection.TotalValue - required

	return selection, nil
}

// sort orders the candidates according to the policy, breaking ties by txid
// and output index so the result never depends on the input order.
func (s CoinSelector) sort(outputs []ColoredOutput, byQuantity bool) {
	amount := func(o ColoredOutput) uint64 {
		if byQuantity {
			return o.AssetQuantity
		}
		return o.Value
	}
	sort.SliceStable(outputs, func(i, j int) bool {
		a, b := outputs[i], outputs[j]
		switch s.Policy {
		case SmallestFirst:
			if amount(a) != amount(b) {
				return amount(a) < amount(b)
			}
		default:
			if a.Confirmations != b.Confirmations {
				return a.Confirmations > b.Confirmations
			}
		}
		if txidA, txidB := a.Outpoint.Hash.String(), b.Outpoint.Hash.String(); txidA != txidB {
			return txidA < txidB
		}
		return a.Outpoint.Index < b.Outpoint.Index
	})
}
