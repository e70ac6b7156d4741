package application

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/arkade-os/colorcore/internal/core/domain"
	"github.com/arkade-os/colorcore/pkg/errors"
	"github.com/arkade-os/colorcore/pkg/openassets"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	log "github.com/sirupsen/logrus"
)

// FinalizeFunc completes a built distribution (signing, broadcasting) and
// returns its txid and hex. An empty txid means the final one is not known
// yet, as for unsigned txs. A failure leaves the crowdsale untouched.
type FinalizeFunc func(ctx context.Context, res *openassets.BuildResult) (txid, txHex string, err error)

// CrowdsaleEngine is the only place where crowdsales are mutated. Every
// mutation runs under the same lock so issuance is linearizable.
type CrowdsaleEngine struct {
	lock    *sync.Mutex
	repo    domain.CrowdsaleRepository
	builder *openassets.TransactionBuilder
	fees    uint64
}

func NewCrowdsaleEngine(
	repo domain.CrowdsaleRepository, builder *openassets.TransactionBuilder, fees uint64,
) *CrowdsaleEngine {
	return &CrowdsaleEngine{&sync.Mutex{}, repo, builder, fees}
}

func (e *CrowdsaleEngine) Create(ctx context.Context, crowdsale domain.Crowdsale) error {
	e.lock.Lock()
	defer e.lock.Unlock()

	if err := crowdsale.Validate(); err != nil {
		return err
	}
	existing, err := e.repo.GetCrowdsale(ctx, crowdsale.Id)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("crowdsale %s already exists", crowdsale.Id)
	}
	return e.repo.AddCrowdsale(ctx, crowdsale)
}

func (e *CrowdsaleEngine) Close(ctx context.Context, crowdsaleId string) (*domain.Crowdsale, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	crowdsale, err := e.get(ctx, crowdsaleId)
	if err != nil {
		return nil, err
	}
	if !crowdsale.IsOpen() {
		return crowdsale, nil
	}
	crowdsale.Close()
	if err := e.repo.UpdateCrowdsale(ctx, *crowdsale); err != nil {
		return nil, err
	}
	return crowdsale, nil
}

// Process hands out units for every pledge not yet processed, in chain order.
//
// issuerScript must control the issuer's outputs in available. Inputs spent
// by a distribution are never offered to a later one; with reuseChange the
// change outputs of a distribution become available to the next ones.
// A pledge whose distribution fails is reported and left for a later run.
func (e *CrowdsaleEngine) Process(
	ctx context.Context, crowdsaleId string, issuerScript []byte,
	pledges []domain.Pledge, available []openassets.ColoredOutput,
	finalize FinalizeFunc, reuseChange bool,
) ([]PledgeResult, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	crowdsale, err := e.get(ctx, crowdsaleId)
	if err != nil {
		return nil, err
	}
	if !crowdsale.IsOpen() {
		return nil, errors.CROWDSALE_CLOSED.New("crowdsale %s is closed", crowdsaleId).
			WithMetadata(errors.CrowdsaleMetadata{CrowdsaleId: crowdsaleId})
	}
	assetId, err := openassets.NewAssetIdFromString(crowdsale.AssetId)
	if err != nil {
		return nil, err
	}

	sorted := append([]domain.Pledge(nil), pledges...)
	domain.SortPledges(sorted)
	available = append([]openassets.ColoredOutput(nil), available...)

	logger := log.WithField("crowdsale", crowdsaleId)
	results := make([]PledgeResult, 0, len(sorted))
	for _, pledge := range sorted {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if !crowdsale.IsOpen() {
			logger.Info("supply exhausted, crowdsale closed")
			break
		}

		processed, err := e.repo.GetDistribution(ctx, crowdsaleId, pledge.Outpoint)
		if err != nil {
			return results, err
		}
		if processed != nil {
			results = append(results, PledgeResult{
				Pledge: pledge, Quantity: processed.Quantity, Txid: processed.Txid, Skipped: true,
			})
			continue
		}

		result := PledgeResult{Pledge: pledge}
		next, spent, created, err := e.distribute(
			ctx, *crowdsale, *assetId, issuerScript, pledge, available, finalize, &result,
		)
		if err != nil {
			logger.WithError(err).Warnf("failed to distribute pledge %s", pledge.Outpoint)
			available = removeSpent(available, spent)
			result.Err = err
			results = append(results, result)
			continue
		}

		crowdsale = next
		available = removeSpent(available, spent)
		if reuseChange {
			available = append(available, created...)
		}
		logger.Infof(
			"pledge %s of %d sats: %d units, total issued %d",
			pledge.Outpoint, pledge.Value, result.Quantity, crowdsale.TotalIssued,
		)
		results = append(results, result)
	}
	return results, nil
}

// distribute builds, finalizes and records the distribution of one pledge.
// The returned crowdsale is a copy, the one passed in is never modified.
func (e *CrowdsaleEngine) distribute(
	ctx context.Context, crowdsale domain.Crowdsale, assetId openassets.AssetId,
	issuerScript []byte, pledge domain.Pledge, available []openassets.ColoredOutput,
	finalize FinalizeFunc, result *PledgeResult,
) (*domain.Crowdsale, map[wire.OutPoint]struct{}, []openassets.ColoredOutput, error) {
	quantity := crowdsale.Allocation(pledge.Value)
	distribution := domain.Distribution{
		CrowdsaleId: crowdsale.Id,
		Pledge:      pledge,
		Quantity:    quantity,
		CreatedAt:   time.Now().Unix(),
	}

	// too small to buy a unit, mark it processed and move on
	if quantity == 0 {
		if err := e.repo.CommitDistribution(ctx, crowdsale, distribution); err != nil {
			return nil, nil, nil, err
		}
		return &crowdsale, nil, nil, nil
	}

	payerScript, err := hex.DecodeString(pledge.PayerScript)
	if err != nil || len(payerScript) <= 0 {
		return nil, nil, nil, errors.INVALID_ADDRESS.New(
			"invalid payer script for pledge %s", pledge.Outpoint,
		)
	}

	res, err := e.builder.BuildTransfer(openassets.TransferRequest{
		From:     issuerScript,
		To:       payerScript,
		AssetId:  assetId,
		Quantity: quantity,
		Fees:     e.fees,
	}, available)
	if err != nil {
		return nil, nil, nil, err
	}

	txid, txHex := res.Tx.TxID(), ""
	if finalize != nil {
		txid, txHex, err = finalize(ctx, res)
		if err != nil {
			return nil, nil, nil, err
		}
	}

	// from here on the inputs are gone, even if recording fails
	spent := make(map[wire.OutPoint]struct{}, len(res.Inputs))
	for _, in := range res.Inputs {
		spent[in.Outpoint] = struct{}{}
	}

	next := crowdsale
	if err := next.Issue(quantity); err != nil {
		return nil, spent, nil, err
	}
	distribution.Txid = txid
	if err := e.repo.CommitDistribution(ctx, next, distribution); err != nil {
		log.WithError(err).Errorf(
			"distribution tx %s for pledge %s was finalized but could not be recorded",
			txid, pledge.Outpoint,
		)
		return nil, spent, nil, err
	}

	result.Quantity = quantity
	result.Txid = txid
	result.Hex = txHex

	// signing may change the txid, change outputs are re-keyed to the final one
	if len(txid) <= 0 {
		return &next, spent, nil, nil
	}
	finalTxid, err := chainhash.NewHashFromStr(txid)
	if err != nil {
		log.WithError(err).Warnf(
			"invalid txid %s for pledge %s, change will not be reused", txid, pledge.Outpoint,
		)
		return &next, spent, nil, nil
	}
	created := make([]openassets.ColoredOutput, 0)
	for _, out := range res.Outputs {
		if bytes.Equal(out.Script, issuerScript) {
			out.Outpoint.Hash = *finalTxid
			created = append(created, out)
		}
	}
	return &next, spent, created, nil
}

func (e *CrowdsaleEngine) Get(ctx context.Context, crowdsaleId string) (*domain.Crowdsale, error) {
	return e.get(ctx, crowdsaleId)
}

func (e *CrowdsaleEngine) get(ctx context.Context, crowdsaleId string) (*domain.Crowdsale, error) {
	crowdsale, err := e.repo.GetCrowdsale(ctx, crowdsaleId)
	if err != nil {
		return nil, err
	}
	if crowdsale == nil {
		return nil, errors.CROWDSALE_NOT_FOUND.New("crowdsale %s not found", crowdsaleId).
			WithMetadata(errors.CrowdsaleMetadata{CrowdsaleId: crowdsaleId})
	}
	return crowdsale, nil
}

func removeSpent(
	outputs []openassets.ColoredOutput, spent map[wire.OutPoint]struct{},
) []openassets.ColoredOutput {
	if len(spent) <= 0 {
		return outputs
	}
	result := make([]openassets.ColoredOutput, 0, len(outputs))
	for _, out := range outputs {
		if _, ok := spent[out.Outpoint]; !ok {
			result = append(result, out)
		}
	}
	return result
}
