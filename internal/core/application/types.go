package application

import (
	"context"
	"fmt"

	"github.com/arkade-os/colorcore/internal/core/domain"
	"github.com/arkade-os/colorcore/pkg/openassets"
	"github.com/shopspring/decimal"
)

type Service interface {
	GetBalance(
		ctx context.Context, addresses []string, minConf, maxConf int,
	) ([]AddressBalance, error)
	ListUnspent(
		ctx context.Context, addresses []string, minConf, maxConf int,
	) ([]UnspentOutput, error)
	SendBitcoin(ctx context.Context, req SendBitcoinRequest) (*TxResult, error)
	SendAsset(ctx context.Context, req SendAssetRequest) (*TxResult, error)
	IssueAsset(ctx context.Context, req IssueAssetRequest) (*TxResult, error)
	CreateCrowdsale(ctx context.Context, req CreateCrowdsaleRequest) (*domain.Crowdsale, error)
	CloseCrowdsale(ctx context.Context, crowdsaleId string) (*domain.Crowdsale, error)
	GetCrowdsale(ctx context.Context, crowdsaleId string) (*CrowdsaleInfo, error)
	Distribute(ctx context.Context, crowdsaleId string, mode TxMode) ([]PledgeResult, error)
	// WatchCrowdsale distributes the crowdsale on every tick of the scheduler
	// until Stop is called.
	WatchCrowdsale(crowdsaleId string, mode TxMode) error
	Stop()
}

// TxMode tells what to do with a built transaction.
type TxMode string

const (
	TxModeBroadcast TxMode = "broadcast"
	TxModeSigned    TxMode = "signed"
	TxModeUnsigned  TxMode = "unsigned"
)

func ParseTxMode(s string) (TxMode, error) {
	switch mode := TxMode(s); mode {
	case TxModeBroadcast, TxModeSigned, TxModeUnsigned:
		return mode, nil
	case "":
		return TxModeBroadcast, nil
	default:
		return "", fmt.Errorf("unknown tx mode %s, must be one of broadcast, signed, unsigned", s)
	}
}

type SendBitcoinRequest struct {
	From   string
	To     string
	Amount uint64
	Mode   TxMode
}

type SendAssetRequest struct {
	From     string
	To       string
	AssetId  string
	Quantity uint64
	Mode     TxMode
}

type IssueAssetRequest struct {
	From     string
	To       string
	Quantity uint64
	Metadata []byte
	Mode     TxMode
}

type CreateCrowdsaleRequest struct {
	Id            string
	AssetId       string
	IssuerAddress string
	PledgeAddress string
	SupplyCap     uint64
	PriceSchedule []domain.PriceTier
}

type TxResult struct {
	Txid    string `json:"txid"`
	Hex     string `json:"hex"`
	Fee     uint64 `json:"fee"`
	AssetId string `json:"asset_id,omitempty"`
	Mode    TxMode `json:"mode"`
}

type AssetBalance struct {
	AssetId  string `json:"asset_id"`
	Quantity uint64 `json:"quantity"`
}

type AddressBalance struct {
	Address string         `json:"address"`
	Value   uint64         `json:"value"`
	Assets  []AssetBalance `json:"assets"`
}

type UnspentOutput struct {
	Output  openassets.ColoredOutput `json:"output"`
	Address string                   `json:"address"`
}

type CrowdsaleInfo struct {
	Crowdsale     domain.Crowdsale
	CurrentPrice  decimal.Decimal
	Distributions []domain.Distribution
}

// PledgeResult reports how a pledge was handled by a distribution run.
type PledgeResult struct {
	Pledge   domain.Pledge
	Quantity uint64
	Txid     string
	Hex      string
	Skipped  bool
	Err      error
}
