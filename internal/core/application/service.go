package application

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/arkade-os/colorcore/internal/core/domain"
	"github.com/arkade-os/colorcore/internal/core/ports"
	"github.com/arkade-os/colorcore/pkg/errors"
	"github.com/arkade-os/colorcore/pkg/openassets"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type service struct {
	// services
	node        ports.NodeService
	repoManager ports.RepoManager
	locker      ports.OutpointLocker
	scheduler   ports.SchedulerService
	engine      *openassets.ColoringEngine
	builder     *openassets.TransactionBuilder
	crowdsales  *CrowdsaleEngine

	// config
	network *chaincfg.Params
	fees    uint64
	minConf int
	maxConf int

	// stop and watcher go routine handlers
	startOnce *sync.Once
	stop      func()
	ctx       context.Context
}

// NewService wires the colored-coin engine to the node. locker and scheduler
// are optional: without a locker outputs spent by unconfirmed transactions
// may be selected again, without a scheduler crowdsales cannot be watched.
func NewService(
	node ports.NodeService, repoManager ports.RepoManager,
	cache openassets.OutputCache, locker ports.OutpointLocker,
	scheduler ports.SchedulerService, builder *openassets.TransactionBuilder,
	network *chaincfg.Params, fees uint64, minConf, maxConf int,
) (Service, error) {
	if node == nil {
		return nil, fmt.Errorf("missing node service")
	}
	if repoManager == nil {
		return nil, fmt.Errorf("missing repo manager")
	}
	if builder == nil {
		return nil, fmt.Errorf("missing tx builder")
	}
	if network == nil {
		return nil, fmt.Errorf("missing network")
	}
	if minConf < 0 || maxConf < minConf {
		return nil, fmt.Errorf("invalid confirmation range [%d, %d]", minConf, maxConf)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &service{
		node:        node,
		repoManager: repoManager,
		locker:      locker,
		scheduler:   scheduler,
		engine:      openassets.NewColoringEngine(node, cache),
		builder:     builder,
		crowdsales:  NewCrowdsaleEngine(repoManager.Crowdsales(), builder, fees),
		network:     network,
		fees:        fees,
		minConf:     minConf,
		maxConf:     maxConf,
		startOnce:   &sync.Once{},
		stop:        cancel,
		ctx:         ctx,
	}, nil
}

func (s *service) Stop() {
	s.stop()
	if s.scheduler != nil {
		s.scheduler.Stop()
		log.Debug("stopped scheduler")
	}
	s.repoManager.Close()
	log.Debug("closed connection to db")
	s.node.Close()
	log.Debug("closed connection to node")
}

func (s *service) GetBalance(
	ctx context.Context, addresses []string, minConf, maxConf int,
) ([]AddressBalance, error) {
	outputs, err := s.ListUnspent(ctx, addresses, minConf, maxConf)
	if err != nil {
		return nil, err
	}

	balances := make(map[string]*AddressBalance)
	quantities := make(map[string]map[string]uint64)
	for _, out := range outputs {
		balance, ok := balances[out.Address]
		if !ok {
			balance = &AddressBalance{Address: out.Address, Assets: make([]AssetBalance, 0)}
			balances[out.Address] = balance
			quantities[out.Address] = make(map[string]uint64)
		}
		balance.Value += out.Output.Value
		if out.Output.IsColored() {
			quantities[out.Address][out.Output.AssetId.String()] += out.Output.AssetQuantity
		}
	}

	result := make([]AddressBalance, 0, len(balances))
	for address, balance := range balances {
		for assetId, quantity := range quantities[address] {
			balance.Assets = append(balance.Assets, AssetBalance{assetId, quantity})
		}
		sort.Slice(balance.Assets, func(i, j int) bool {
			return balance.Assets[i].AssetId < balance.Assets[j].AssetId
		})
		result = append(result, *balance)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Address < result[j].Address
	})
	return result, nil
}

func (s *service) ListUnspent(
	ctx context.Context, addresses []string, minConf, maxConf int,
) ([]UnspentOutput, error) {
	for _, address := range addresses {
		if _, err := addressScript(address, s.network); err != nil {
			return nil, err
		}
	}
	if minConf < 0 || maxConf < minConf {
		return nil, errors.INVALID_QUANTITY.New(
			"invalid confirmation range [%d, %d]", minConf, maxConf,
		)
	}

	utxos, err := s.node.ListUnspent(ctx, minConf, maxConf, addresses)
	if err != nil {
		return nil, err
	}

	var locked map[wire.OutPoint]struct{}
	if s.locker != nil {
		if locked, err = s.locker.Get(ctx); err != nil {
			return nil, err
		}
	}

	outputs := make([]UnspentOutput, 0, len(utxos))
	for _, utxo := range utxos {
		hash, err := chainhash.NewHashFromStr(utxo.Txid)
		if err != nil {
			return nil, fmt.Errorf("invalid txid %s returned by node: %w", utxo.Txid, err)
		}
		outpoint := wire.OutPoint{Hash: *hash, Index: utxo.VOut}
		if _, ok := locked[outpoint]; ok {
			continue
		}

		out, err := s.engine.GetOutput(ctx, outpoint)
		if err != nil {
			return nil, err
		}
		out.Confirmations = utxo.Confirmations
		if len(out.Script) <= 0 {
			out.Script = utxo.Script
		}

		address := utxo.Address
		if len(address) <= 0 {
			address = scriptAddress(out.Script, s.network)
		}
		outputs = append(outputs, UnspentOutput{Output: *out, Address: address})
	}
	return outputs, nil
}

func (s *service) SendBitcoin(ctx context.Context, req SendBitcoinRequest) (*TxResult, error) {
	from, to, err := s.parseAddresses(req.From, req.To)
	if err != nil {
		return nil, err
	}
	available, err := s.spendable(ctx, req.From)
	if err != nil {
		return nil, err
	}

	res, err := s.builder.BuildSendCurrency(openassets.SendRequest{
		From: from, To: to, Amount: req.Amount, Fees: s.fees,
	}, available)
	if err != nil {
		return nil, err
	}
	return s.complete(ctx, res, req.Mode)
}

func (s *service) SendAsset(ctx context.Context, req SendAssetRequest) (*TxResult, error) {
	from, to, err := s.parseAddresses(req.From, req.To)
	if err != nil {
		return nil, err
	}
	assetId, err := openassets.NewAssetIdFromString(req.AssetId)
	if err != nil {
		return nil, err
	}
	available, err := s.spendable(ctx, req.From)
	if err != nil {
		return nil, err
	}

	res, err := s.builder.BuildTransfer(openassets.TransferRequest{
		From: from, To: to, AssetId: *assetId, Quantity: req.Quantity, Fees: s.fees,
	}, available)
	if err != nil {
		return nil, err
	}
	return s.complete(ctx, res, req.Mode)
}

func (s *service) IssueAsset(ctx context.Context, req IssueAssetRequest) (*TxResult, error) {
	from, to, err := s.parseAddresses(req.From, req.To)
	if err != nil {
		return nil, err
	}
	available, err := s.spendable(ctx, req.From)
	if err != nil {
		return nil, err
	}

	res, err := s.builder.BuildIssuance(openassets.IssuanceRequest{
		From: from, To: to, Quantity: req.Quantity, Metadata: req.Metadata, Fees: s.fees,
	}, available)
	if err != nil {
		return nil, err
	}
	return s.complete(ctx, res, req.Mode)
}

func (s *service) CreateCrowdsale(
	ctx context.Context, req CreateCrowdsaleRequest,
) (*domain.Crowdsale, error) {
	if _, _, err := s.parseAddresses(req.IssuerAddress, req.PledgeAddress); err != nil {
		return nil, err
	}
	if _, err := openassets.NewAssetIdFromString(req.AssetId); err != nil {
		return nil, err
	}

	id := req.Id
	if len(id) <= 0 {
		id = uuid.New().String()
	}
	crowdsale, err := domain.NewCrowdsale(
		id, req.AssetId, req.IssuerAddress, req.PledgeAddress, req.SupplyCap, req.PriceSchedule,
	)
	if err != nil {
		return nil, err
	}
	if err := s.crowdsales.Create(ctx, *crowdsale); err != nil {
		return nil, err
	}

	log.WithField("crowdsale", id).Infof(
		"created crowdsale of %d units of %s", crowdsale.SupplyCap, crowdsale.AssetId,
	)
	return crowdsale, nil
}

func (s *service) CloseCrowdsale(
	ctx context.Context, crowdsaleId string,
) (*domain.Crowdsale, error) {
	crowdsale, err := s.crowdsales.Close(ctx, crowdsaleId)
	if err != nil {
		return nil, err
	}
	log.WithField("crowdsale", crowdsaleId).Info("closed crowdsale")
	return crowdsale, nil
}

func (s *service) GetCrowdsale(ctx context.Context, crowdsaleId string) (*CrowdsaleInfo, error) {
	crowdsale, err := s.crowdsales.Get(ctx, crowdsaleId)
	if err != nil {
		return nil, err
	}
	distributions, err := s.repoManager.Crowdsales().GetDistributions(ctx, crowdsaleId)
	if err != nil {
		return nil, err
	}
	return &CrowdsaleInfo{
		Crowdsale:     *crowdsale,
		CurrentPrice:  crowdsale.CurrentPrice(),
		Distributions: distributions,
	}, nil
}

func (s *service) Distribute(
	ctx context.Context, crowdsaleId string, mode TxMode,
) ([]PledgeResult, error) {
	crowdsale, err := s.crowdsales.Get(ctx, crowdsaleId)
	if err != nil {
		return nil, err
	}
	if !crowdsale.IsOpen() {
		return nil, errors.CROWDSALE_CLOSED.New("crowdsale %s is closed", crowdsaleId).
			WithMetadata(errors.CrowdsaleMetadata{CrowdsaleId: crowdsaleId})
	}
	issuerScript, err := addressScript(crowdsale.IssuerAddress, s.network)
	if err != nil {
		return nil, err
	}

	pledges, err := s.pledges(ctx, *crowdsale)
	if err != nil {
		return nil, err
	}
	if len(pledges) <= 0 {
		log.WithField("crowdsale", crowdsaleId).Debug("no pledges to process")
		return []PledgeResult{}, nil
	}

	available, err := s.spendable(ctx, crowdsale.IssuerAddress)
	if err != nil {
		return nil, err
	}

	finalize := func(ctx context.Context, res *openassets.BuildResult) (string, string, error) {
		result, err := s.complete(ctx, res, mode)
		if err != nil {
			return "", "", err
		}
		// the txid of an unsigned tx changes once its legacy inputs are signed
		if mode == TxModeUnsigned {
			return "", result.Hex, nil
		}
		return result.Txid, result.Hex, nil
	}
	return s.crowdsales.Process(
		ctx, crowdsaleId, issuerScript, pledges, available, finalize, mode == TxModeBroadcast,
	)
}

func (s *service) WatchCrowdsale(crowdsaleId string, mode TxMode) error {
	if s.scheduler == nil {
		return fmt.Errorf("no scheduler configured, cannot watch crowdsale")
	}
	if _, err := s.crowdsales.Get(s.ctx, crowdsaleId); err != nil {
		return err
	}

	logger := log.WithField("crowdsale", crowdsaleId)
	task := func() {
		if s.ctx.Err() != nil {
			return
		}
		results, err := s.Distribute(s.ctx, crowdsaleId, mode)
		if err != nil {
			if errors.CROWDSALE_CLOSED.Is(err) {
				logger.Debug("crowdsale closed, nothing to distribute")
				return
			}
			logger.WithError(err).Error("failed to distribute pledges")
			return
		}
		processed := 0
		for _, r := range results {
			if !r.Skipped && r.Err == nil {
				processed++
			}
		}
		if processed > 0 {
			logger.Infof("processed %d new pledges", processed)
		}
	}
	if err := s.scheduler.ScheduleRecurringTask(task); err != nil {
		return err
	}
	s.startOnce.Do(s.scheduler.Start)
	logger.Infof("watching crowdsale pledges, mode %s", mode)
	return nil
}

// pledges returns the uncolored outputs paid to the pledge address. The payer
// script is resolved only for pledges not processed yet.
func (s *service) pledges(ctx context.Context, crowdsale domain.Crowdsale) ([]domain.Pledge, error) {
	outputs, err := s.ListUnspent(
		ctx, []string{crowdsale.PledgeAddress}, s.minConf, s.maxConf,
	)
	if err != nil {
		return nil, err
	}

	repo := s.repoManager.Crowdsales()
	pledges := make([]domain.Pledge, 0, len(outputs))
	for _, out := range outputs {
		if out.Output.IsColored() {
			log.WithField("crowdsale", crowdsale.Id).Debugf(
				"ignoring colored output %s paid to pledge address", out.Output.Outpoint,
			)
			continue
		}
		pledge := domain.Pledge{
			Outpoint: domain.Outpoint{
				Txid: out.Output.Outpoint.Hash.String(),
				VOut: out.Output.Outpoint.Index,
			},
			Value:         out.Output.Value,
			Confirmations: out.Output.Confirmations,
		}

		processed, err := repo.GetDistribution(ctx, crowdsale.Id, pledge.Outpoint)
		if err != nil {
			return nil, err
		}
		if processed == nil {
			payerScript, err := s.payerScript(ctx, out.Output.Outpoint.Hash)
			if err != nil {
				return nil, err
			}
			pledge.PayerScript = payerScript
		}
		pledges = append(pledges, pledge)
	}
	return pledges, nil
}

// payerScript returns the script spent by the first input of the pledge tx,
// units are sent back there.
func (s *service) payerScript(ctx context.Context, txid chainhash.Hash) (string, error) {
	tx, err := s.node.GetRawTransaction(ctx, txid.String())
	if err != nil {
		return "", err
	}
	if len(tx.TxIn) <= 0 {
		return "", fmt.Errorf("pledge tx %s has no inputs", txid)
	}
	prevout, err := s.engine.GetOutput(ctx, tx.TxIn[0].PreviousOutPoint)
	if err != nil {
		return "", err
	}
	return scriptHex(prevout.Script), nil
}

// spendable returns the outputs of address that coin selection can use.
func (s *service) spendable(ctx context.Context, address string) ([]openassets.ColoredOutput, error) {
	unspent, err := s.ListUnspent(ctx, []string{address}, s.minConf, s.maxConf)
	if err != nil {
		return nil, err
	}
	outputs := make([]openassets.ColoredOutput, 0, len(unspent))
	for _, u := range unspent {
		outputs = append(outputs, u.Output)
	}
	return outputs, nil
}

// complete hands the built tx over to the node according to mode.
func (s *service) complete(
	ctx context.Context, res *openassets.BuildResult, mode TxMode,
) (*TxResult, error) {
	if len(mode) <= 0 {
		mode = TxModeBroadcast
	}
	result := &TxResult{Fee: res.Fee, Mode: mode}
	if res.AssetId != nil {
		result.AssetId = res.AssetId.String()
	}

	tx := res.Tx
	if mode != TxModeUnsigned {
		signed, err := s.node.SignTransaction(ctx, tx)
		if err != nil {
			return nil, err
		}
		tx = signed
	}

	txHex, err := serializeTx(tx)
	if err != nil {
		return nil, err
	}
	result.Txid = tx.TxID()
	result.Hex = txHex

	if mode != TxModeBroadcast {
		return result, nil
	}

	txid, err := s.node.BroadcastTransaction(ctx, tx)
	if err != nil {
		return nil, err
	}
	result.Txid = txid
	log.Infof("broadcasted tx %s", txid)

	if s.locker != nil {
		outpoints := make([]wire.OutPoint, 0, len(tx.TxIn))
		for _, in := range tx.TxIn {
			outpoints = append(outpoints, in.PreviousOutPoint)
		}
		if err := s.locker.Lock(ctx, outpoints...); err != nil {
			log.WithError(err).Warnf("failed to lock inputs of tx %s", txid)
		}
	}
	return result, nil
}

func (s *service) parseAddresses(from, to string) ([]byte, []byte, error) {
	fromScript, err := addressScript(from, s.network)
	if err != nil {
		return nil, nil, err
	}
	toScript, err := addressScript(to, s.network)
	if err != nil {
		return nil, nil, err
	}
	return fromScript, toScript, nil
}
