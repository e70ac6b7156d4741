package domain

import (
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/arkade-os/colorcore/pkg/errors"
	"github.com/shopspring/decimal"
)

type CrowdsaleStatus uint8

const (
	CrowdsaleOpen CrowdsaleStatus = iota
	CrowdsaleClosed
)

func (s CrowdsaleStatus) String() string {
	switch s {
	case CrowdsaleOpen:
		return "open"
	case CrowdsaleClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type Outpoint struct {
	Txid string
	VOut uint32
}

func (k *Outpoint) FromString(s string) error {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return fmt.Errorf("invalid outpoint string: %s", s)
	}
	k.Txid = parts[0]
	vout, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid vout string: %s", parts[1])
	}
	k.VOut = uint32(vout)
	return nil
}

func (k Outpoint) String() string {
	return fmt.Sprintf("%s:%d", k.Txid, k.VOut)
}

// PriceTier applies from the moment Threshold units have been issued.
// Price is expressed in satoshis per unit.
type PriceTier struct {
	Threshold uint64
	Price     decimal.Decimal
}

type Crowdsale struct {
	Id            string
	AssetId       string
	IssuerAddress string
	PledgeAddress string
	SupplyCap     uint64
	TotalIssued   uint64
	PriceSchedule []PriceTier
	Status        CrowdsaleStatus
	CreatedAt     int64
	UpdatedAt     int64
}

func NewCrowdsale(
	id, assetId, issuerAddress, pledgeAddress string,
	supplyCap uint64, priceSchedule []PriceTier,
) (*Crowdsale, error) {
	now := time.Now().Unix()
	c := &Crowdsale{
		Id:            id,
		AssetId:       assetId,
		IssuerAddress: issuerAddress,
		PledgeAddress: pledgeAddress,
		SupplyCap:     supplyCap,
		PriceSchedule: priceSchedule,
		Status:        CrowdsaleOpen,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Crowdsale) Validate() error {
	meta := errors.CrowdsaleMetadata{CrowdsaleId: c.Id}
	if len(c.Id) <= 0 {
		return errors.INVALID_PRICE_SCHEDULE.New("missing crowdsale id").WithMetadata(meta)
	}
	if len(c.AssetId) <= 0 {
		return errors.INVALID_PRICE_SCHEDULE.New("missing asset id").WithMetadata(meta)
	}
	if len(c.IssuerAddress) <= 0 || len(c.PledgeAddress) <= 0 {
		return errors.INVALID_PRICE_SCHEDULE.New("missing issuer or pledge address").
			WithMetadata(meta)
	}
	if c.IssuerAddress == c.PledgeAddress {
		return errors.INVALID_PRICE_SCHEDULE.New("pledge address must differ from issuer address").
			WithMetadata(meta)
	}
	if c.SupplyCap == 0 {
		return errors.INVALID_PRICE_SCHEDULE.New("supply cap must be greater than 0").
			WithMetadata(meta)
	}
	if c.TotalIssued > c.SupplyCap {
		return errors.INVALID_PRICE_SCHEDULE.New(
			"total issued %d exceeds supply cap %d", c.TotalIssued, c.SupplyCap,
		).WithMetadata(meta)
	}
	if len(c.PriceSchedule) <= 0 {
		return errors.INVALID_PRICE_SCHEDULE.New("missing price schedule").WithMetadata(meta)
	}
	if c.PriceSchedule[0].Threshold != 0 {
		return errors.INVALID_PRICE_SCHEDULE.New("first price tier must start at 0").
			WithMetadata(meta)
	}
	for i, tier := range c.PriceSchedule {
		if !tier.Price.IsPositive() {
			return errors.INVALID_PRICE_SCHEDULE.New(
				"price of tier %d must be positive", i,
			).WithMetadata(meta)
		}
		if i > 0 && tier.Threshold <= c.PriceSchedule[i-1].Threshold {
			return errors.INVALID_PRICE_SCHEDULE.New(
				"thresholds must be strictly increasing, tier %d", i,
			).WithMetadata(meta)
		}
	}
	return nil
}

func (c *Crowdsale) IsOpen() bool {
	return c.Status == CrowdsaleOpen
}

func (c *Crowdsale) Remaining() uint64 {
	return c.SupplyCap - c.TotalIssued
}

// CurrentPrice returns the price of the tier active at the current issuance.
func (c *Crowdsale) CurrentPrice() decimal.Decimal {
	price := c.PriceSchedule[0].Price
	for _, tier := range c.PriceSchedule {
		if tier.Threshold > c.TotalIssued {
			break
		}
		price = tier.Price
	}
	return price
}

// Allocation returns the units owed for a payment of the given value, at the
// current price and within the remaining supply.
func (c *Crowdsale) Allocation(paid uint64) uint64 {
	if !c.IsOpen() || paid == 0 {
		return 0
	}
	value := decimal.NewFromBigInt(new(big.Int).SetUint64(paid), 0)
	owed, _ := value.QuoRem(c.CurrentPrice(), 0)

	remaining := decimal.NewFromBigInt(new(big.Int).SetUint64(c.Remaining()), 0)
	if owed.GreaterThan(remaining) {
		return c.Remaining()
	}
	return owed.BigInt().Uint64()
}

// Issue records quantity units as distributed and closes the crowdsale once
// the supply is exhausted.
func (c *Crowdsale) Issue(quantity uint64) error {
	if !c.IsOpen() {
		return errors.CROWDSALE_CLOSED.New("crowdsale %s is closed", c.Id).
			WithMetadata(errors.CrowdsaleMetadata{CrowdsaleId: c.Id})
	}
	if quantity > c.Remaining() {
		return errors.INSUFFICIENT_FUNDS.New(
			"cannot issue %d units, only %d left", quantity, c.Remaining(),
		).WithMetadata(errors.InsufficientFundsMetadata{
			AssetId:   c.AssetId,
			Requested: quantity,
			Available: c.Remaining(),
		})
	}
	c.TotalIssued += quantity
	if c.TotalIssued == c.SupplyCap {
		c.Status = CrowdsaleClosed
	}
	c.UpdatedAt = time.Now().Unix()
	return nil
}

func (c *Crowdsale) Close() {
	c.Status = CrowdsaleClosed
	c.UpdatedAt = time.Now().Unix()
}

// Pledge is a payment received on the pledge address of a crowdsale.
type Pledge struct {
	Outpoint
	Value         uint64
	PayerScript   string
	Confirmations int64
}

// SortPledges orders pledges as they appeared on chain: most confirmed first,
// then by txid and output index.
func SortPledges(pledges []Pledge) {
	sort.SliceStable(pledges, func(i, j int) bool {
		a, b := pledges[i], pledges[j]
		if a.Confirmations != b.Confirmations {
			return a.Confirmations > b.Confirmations
		}
		if a.Txid != b.Txid {
			return a.Txid < b.Txid
		}
		return a.VOut < b.VOut
	})
}

// Distribution records the processing of a pledge. Quantity is 0 for pledges
// that were too small to buy a unit.
type Distribution struct {
	CrowdsaleId string
	Pledge      Pledge
	Quantity    uint64
	Txid        string
	CreatedAt   int64
}
