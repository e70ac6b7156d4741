package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/arkade-os/colorcore/internal/core/application"
	"github.com/arkade-os/colorcore/internal/core/domain"
	"github.com/shopspring/decimal"
)

type priceTierView struct {
	Threshold uint64 `json:"threshold"`
	Price     string `json:"price"`
}

type crowdsaleView struct {
	Id            string          `json:"id"`
	AssetId       string          `json:"asset_id"`
	IssuerAddress string          `json:"issuer_address"`
	PledgeAddress string          `json:"pledge_address"`
	SupplyCap     uint64          `json:"supply_cap"`
	TotalIssued   uint64          `json:"total_issued"`
	PriceSchedule []priceTierView `json:"price_schedule"`
	Status        string          `json:"status"`
	CreatedAt     string          `json:"created_at"`
	UpdatedAt     string          `json:"updated_at,omitempty"`
}

type distributionView struct {
	Pledge    string `json:"pledge"`
	Value     uint64 `json:"value"`
	Quantity  uint64 `json:"quantity"`
	Txid      string `json:"txid,omitempty"`
	CreatedAt string `json:"created_at"`
}

type crowdsaleInfoView struct {
	crowdsaleView
	CurrentPrice  string             `json:"current_price"`
	Distributions []distributionView `json:"distributions"`
}

type pledgeView struct {
	Pledge   string `json:"pledge"`
	Value    uint64 `json:"value"`
	Quantity uint64 `json:"quantity"`
	Txid     string `json:"txid,omitempty"`
	Hex      string `json:"hex,omitempty"`
	Skipped  bool   `json:"skipped,omitempty"`
	Error    string `json:"error,omitempty"`
}

func toCrowdsaleView(c domain.Crowdsale) crowdsaleView {
	schedule := make([]priceTierView, 0, len(c.PriceSchedule))
	for _, tier := range c.PriceSchedule {
		schedule = append(schedule, priceTierView{tier.Threshold, tier.Price.String()})
	}
	return crowdsaleView{
		Id:            c.Id,
		AssetId:       c.AssetId,
		IssuerAddress: c.IssuerAddress,
		PledgeAddress: c.PledgeAddress,
		SupplyCap:     c.SupplyCap,
		TotalIssued:   c.TotalIssued,
		PriceSchedule: schedule,
		Status:        c.Status.String(),
		CreatedAt:     formatTime(c.CreatedAt),
		UpdatedAt:     formatTime(c.UpdatedAt),
	}
}

func toCrowdsaleInfoView(info application.CrowdsaleInfo) crowdsaleInfoView {
	distributions := make([]distributionView, 0, len(info.Distributions))
	for _, d := range info.Distributions {
		distributions = append(distributions, distributionView{
			Pledge:    d.Pledge.Outpoint.String(),
			Value:     d.Pledge.Value,
			Quantity:  d.Quantity,
			Txid:      d.Txid,
			CreatedAt: formatTime(d.CreatedAt),
		})
	}
	return crowdsaleInfoView{
		crowdsaleView: toCrowdsaleView(info.Crowdsale),
		CurrentPrice:  info.CurrentPrice.String(),
		Distributions: distributions,
	}
}

func toPledgeViews(results []application.PledgeResult) []pledgeView {
	views := make([]pledgeView, 0, len(results))
	for _, r := range results {
		view := pledgeView{
			Pledge:   r.Pledge.Outpoint.String(),
			Value:    r.Pledge.Value,
			Quantity: r.Quantity,
			Txid:     r.Txid,
			Hex:      r.Hex,
			Skipped:  r.Skipped,
		}
		if r.Err != nil {
			view.Error = r.Err.Error()
		}
		views = append(views, view)
	}
	return views
}

// parsePriceSchedule parses tiers given as <threshold>:<price>.
func parsePriceSchedule(tiers []string) ([]domain.PriceTier, error) {
	schedule := make([]domain.PriceTier, 0, len(tiers))
	for _, tier := range tiers {
		parts := strings.Split(tier, ":")
		if len(parts) != 2 {
			return nil, fmt.Errorf(
				"invalid price tier %q, must be in the form <threshold>:<price>", tier,
			)
		}
		threshold, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf(
				"invalid threshold %q in price tier %q, must be a positive integer", parts[0], tier,
			)
		}
		price, err := decimal.NewFromString(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid price %q in price tier %q", parts[1], tier)
		}
		schedule = append(schedule, domain.PriceTier{Threshold: threshold, Price: price})
	}
	return schedule, nil
}

func formatTime(unix int64) string {
	if unix <= 0 {
		return ""
	}
	return time.Unix(unix, 0).UTC().Format(time.RFC3339)
}

func printJSON(resp interface{}) error {
	jsonBytes, err := json.MarshalIndent(resp, "", "\t")
	if err != nil {
		return err
	}
	fmt.Println(string(jsonBytes))
	return nil
}
