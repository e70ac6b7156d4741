package pgdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/arkade-os/colorcore/internal/core/domain"
	"github.com/arkade-os/colorcore/internal/infrastructure/db/postgres/sqlc/queries"
	colorerrors "github.com/arkade-os/colorcore/pkg/errors"
	"github.com/shopspring/decimal"
)

type crowdsaleRepository struct {
	db      *sql.DB
	querier *queries.Queries
}

func NewCrowdsaleRepository(config ...interface{}) (domain.CrowdsaleRepository, error) {
	if len(config) != 1 {
		return nil, fmt.Errorf("invalid config")
	}
	db, ok := config[0].(*sql.DB)
	if !ok {
		return nil, fmt.Errorf(
			"cannot open crowdsale repository: invalid config, expected db at 0",
		)
	}

	return &crowdsaleRepository{
		db:      db,
		querier: queries.New(db),
	}, nil
}

func (r *crowdsaleRepository) Close() {
	// nolint:all
	r.db.Close()
}

func (r *crowdsaleRepository) AddCrowdsale(ctx context.Context, crowdsale domain.Crowdsale) error {
	return execTx(ctx, r.db, func(querierWithTx *queries.Queries) error {
		if err := querierWithTx.InsertCrowdsale(ctx, queries.InsertCrowdsaleParams{
			ID:            crowdsale.Id,
			AssetID:       crowdsale.AssetId,
			IssuerAddress: crowdsale.IssuerAddress,
			PledgeAddress: crowdsale.PledgeAddress,
			SupplyCap:     int64(crowdsale.SupplyCap),
			TotalIssued:   int64(crowdsale.TotalIssued),
			Status:        int16(crowdsale.Status),
			CreatedAt:     crowdsale.CreatedAt,
			UpdatedAt:     crowdsale.UpdatedAt,
		}); err != nil {
			return fmt.Errorf("failed to insert crowdsale: %w", err)
		}
		for i, tier := range crowdsale.PriceSchedule {
			if err := querierWithTx.InsertPriceTier(ctx, queries.InsertPriceTierParams{
				CrowdsaleID: crowdsale.Id,
				Position:    int32(i),
				Threshold:   int64(tier.Threshold),
				Price:       tier.Price.String(),
			}); err != nil {
				return fmt.Errorf("failed to insert price tier: %w", err)
			}
		}
		return nil
	})
}

func (r *crowdsaleRepository) GetCrowdsale(
	ctx context.Context, id string,
) (*domain.Crowdsale, error) {
	row, err := r.querier.SelectCrowdsale(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get crowdsale: %w", err)
	}

	tiers, err := r.querier.SelectPriceTiers(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get price schedule: %w", err)
	}
	schedule := make([]domain.PriceTier, 0, len(tiers))
	for _, tier := range tiers {
		price, err := decimal.NewFromString(tier.Price)
		if err != nil {
			return nil, fmt.Errorf("invalid price %s for crowdsale %s: %w", tier.Price, id, err)
		}
		schedule = append(schedule, domain.PriceTier{
			Threshold: uint64(tier.Threshold),
			Price:     price,
		})
	}

	return &domain.Crowdsale{
		Id:            row.ID,
		AssetId:       row.AssetID,
		IssuerAddress: row.IssuerAddress,
		PledgeAddress: row.PledgeAddress,
		SupplyCap:     uint64(row.SupplyCap),
		TotalIssued:   uint64(row.TotalIssued),
		PriceSchedule: schedule,
		Status:        domain.CrowdsaleStatus(row.Status),
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}, nil
}

func (r *crowdsaleRepository) GetAllCrowdsales(ctx context.Context) ([]domain.Crowdsale, error) {
	ids, err := r.querier.SelectCrowdsaleIds(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get crowdsales: %w", err)
	}

	crowdsales := make([]domain.Crowdsale, 0, len(ids))
	for _, id := range ids {
		crowdsale, err := r.GetCrowdsale(ctx, id)
		if err != nil {
			return nil, err
		}
		if crowdsale != nil {
			crowdsales = append(crowdsales, *crowdsale)
		}
	}
	return crowdsales, nil
}

func (r *crowdsaleRepository) UpdateCrowdsale(
	ctx context.Context, crowdsale domain.Crowdsale,
) error {
	return execTx(ctx, r.db, func(querierWithTx *queries.Queries) error {
		return updateCrowdsale(ctx, querierWithTx, crowdsale)
	})
}

func (r *crowdsaleRepository) CommitDistribution(
	ctx context.Context, crowdsale domain.Crowdsale, distribution domain.Distribution,
) error {
	pledge := distribution.Pledge
	return execTx(ctx, r.db, func(querierWithTx *queries.Queries) error {
		count, err := querierWithTx.CountDistributions(ctx, queries.CountDistributionsParams{
			CrowdsaleID: distribution.CrowdsaleId,
			PledgeTxid:  pledge.Txid,
			PledgeVout:  int32(pledge.VOut),
		})
		if err != nil {
			return fmt.Errorf("failed to check distribution: %w", err)
		}
		if count > 0 {
			return colorerrors.PLEDGE_ALREADY_PROCESSED.New(
				"pledge %s already processed", pledge.Outpoint,
			).WithMetadata(colorerrors.PledgeMetadata{
				CrowdsaleId: distribution.CrowdsaleId,
				Outpoint:    pledge.Outpoint.String(),
			})
		}

		if err := querierWithTx.InsertDistribution(ctx, queries.InsertDistributionParams{
			CrowdsaleID:   distribution.CrowdsaleId,
			PledgeTxid:    pledge.Txid,
			PledgeVout:    int32(pledge.VOut),
			PledgeValue:   int64(pledge.Value),
			PayerScript:   pledge.PayerScript,
			Confirmations: pledge.Confirmations,
			Quantity:      int64(distribution.Quantity),
			Txid:          distribution.Txid,
			CreatedAt:     distribution.CreatedAt,
		}); err != nil {
			return fmt.Errorf("failed to insert distribution: %w", err)
		}
		return updateCrowdsale(ctx, querierWithTx, crowdsale)
	})
}

func (r *crowdsaleRepository) GetDistribution(
	ctx context.Context, crowdsaleId string, pledge domain.Outpoint,
) (*domain.Distribution, error) {
	row, err := r.querier.SelectDistribution(ctx, queries.SelectDistributionParams{
		CrowdsaleID: crowdsaleId,
		PledgeTxid:  pledge.Txid,
		PledgeVout:  int32(pledge.VOut),
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get distribution: %w", err)
	}
	distribution := toDistribution(row)
	return &distribution, nil
}

func (r *crowdsaleRepository) GetDistributions(
	ctx context.Context, crowdsaleId string,
) ([]domain.Distribution, error) {
	rows, err := r.querier.SelectDistributions(ctx, crowdsaleId)
	if err != nil {
		return nil, fmt.Errorf("failed to get distributions: %w", err)
	}

	distributions := make([]domain.Distribution, 0, len(rows))
	for _, row := range rows {
		distributions = append(distributions, toDistribution(row))
	}
	return distributions, nil
}

func updateCrowdsale(
	ctx context.Context, querier *queries.Queries, crowdsale domain.Crowdsale,
) error {
	affected, err := querier.UpdateCrowdsale(ctx, queries.UpdateCrowdsaleParams{
		TotalIssued: int64(crowdsale.TotalIssued),
		Status:      int16(crowdsale.Status),
		UpdatedAt:   crowdsale.UpdatedAt,
		ID:          crowdsale.Id,
	})
	if err != nil {
		return fmt.Errorf("failed to update crowdsale: %w", err)
	}
	if affected == 0 {
		return colorerrors.CROWDSALE_NOT_FOUND.New("crowdsale %s not found", crowdsale.Id).
			WithMetadata(colorerrors.CrowdsaleMetadata{CrowdsaleId: crowdsale.Id})
	}
	return nil
}

func toDistribution(row queries.Distribution) domain.Distribution {
	return domain.Distribution{
		CrowdsaleId: row.CrowdsaleID,
		Pledge: domain.Pledge{
			Outpoint:      domain.Outpoint{Txid: row.PledgeTxid, VOut: uint32(row.PledgeVout)},
			Value:         uint64(row.PledgeValue),
			PayerScript:   row.PayerScript,
			Confirmations: row.Confirmations,
		},
		Quantity:  uint64(row.Quantity),
		Txid:      row.Txid,
		CreatedAt: row.CreatedAt,
	}
}
