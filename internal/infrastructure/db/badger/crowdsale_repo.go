package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/arkade-os/colorcore/internal/core/domain"
	colorerrors "github.com/arkade-os/colorcore/pkg/errors"
	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"
)

const crowdsaleDir = "crowdsales"

type crowdsaleRepository struct {
	store *badgerhold.Store
}

// NewCrowdsaleRepository expects the base directory (empty for in-memory)
// and an optional badger logger.
func NewCrowdsaleRepository(config ...interface{}) (domain.CrowdsaleRepository, error) {
	baseDir, logger, err := parseConfig(config...)
	if err != nil {
		return nil, err
	}

	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, crowdsaleDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open crowdsale store: %s", err)
	}

	return &crowdsaleRepository{store}, nil
}

func (r *crowdsaleRepository) AddCrowdsale(ctx context.Context, crowdsale domain.Crowdsale) error {
	if err := r.store.Insert(crowdsale.Id, crowdsale); err != nil {
		if errors.Is(err, badgerhold.ErrKeyExists) {
			return fmt.Errorf("crowdsale %s already exists", crowdsale.Id)
		}
		return fmt.Errorf("failed to add crowdsale: %w", err)
	}
	return nil
}

func (r *crowdsaleRepository) GetCrowdsale(
	ctx context.Context, id string,
) (*domain.Crowdsale, error) {
	var crowdsale domain.Crowdsale
	if err := r.store.Get(id, &crowdsale); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get crowdsale: %w", err)
	}
	return &crowdsale, nil
}

func (r *crowdsaleRepository) GetAllCrowdsales(ctx context.Context) ([]domain.Crowdsale, error) {
	var crowdsales []domain.Crowdsale
	if err := r.store.Find(&crowdsales, nil); err != nil {
		return nil, fmt.Errorf("failed to get crowdsales: %w", err)
	}
	sort.Slice(crowdsales, func(i, j int) bool {
		return crowdsales[i].CreatedAt < crowdsales[j].CreatedAt
	})
	return crowdsales, nil
}

func (r *crowdsaleRepository) UpdateCrowdsale(
	ctx context.Context, crowdsale domain.Crowdsale,
) error {
	if err := r.store.Update(crowdsale.Id, crowdsale); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return colorerrors.CROWDSALE_NOT_FOUND.New("crowdsale %s not found", crowdsale.Id).
				WithMetadata(colorerrors.CrowdsaleMetadata{CrowdsaleId: crowdsale.Id})
		}
		return fmt.Errorf("failed to update crowdsale: %w", err)
	}
	return nil
}

func (r *crowdsaleRepository) CommitDistribution(
	ctx context.Context, crowdsale domain.Crowdsale, distribution domain.Distribution,
) error {
	key := distributionKey(distribution.CrowdsaleId, distribution.Pledge.Outpoint)

	var err error
	for range maxRetries {
		err = func() error {
			tx := r.store.Badger().NewTransaction(true)
			defer tx.Discard()

			var existing domain.Distribution
			if err := r.store.TxGet(tx, key, &existing); err == nil {
				return colorerrors.PLEDGE_ALREADY_PROCESSED.New(
					"pledge %s already processed", distribution.Pledge.Outpoint,
				).WithMetadata(colorerrors.PledgeMetadata{
					CrowdsaleId: distribution.CrowdsaleId,
					Outpoint:    distribution.Pledge.Outpoint.String(),
				})
			} else if !errors.Is(err, badgerhold.ErrNotFound) {
				return err
			}

			if err := r.store.TxInsert(tx, key, distribution); err != nil {
				return err
			}
			if err := r.store.TxUpdate(tx, crowdsale.Id, crowdsale); err != nil {
				return err
			}
			return tx.Commit()
		}()
		if err == nil {
			return nil
		}
		if errors.Is(err, badger.ErrConflict) {
			time.Sleep(100 * time.Millisecond)
			continue
		}
		return err
	}
	return err
}

func (r *crowdsaleRepository) GetDistribution(
	ctx context.Context, crowdsaleId string, pledge domain.Outpoint,
) (*domain.Distribution, error) {
	var distribution domain.Distribution
	if err := r.store.Get(distributionKey(crowdsaleId, pledge), &distribution); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get distribution: %w", err)
	}
	return &distribution, nil
}

func (r *crowdsaleRepository) GetDistributions(
	ctx context.Context, crowdsaleId string,
) ([]domain.Distribution, error) {
	var distributions []domain.Distribution
	query := badgerhold.Where("CrowdsaleId").Eq(crowdsaleId)
	if err := r.store.Find(&distributions, query); err != nil {
		return nil, fmt.Errorf("failed to get distributions: %w", err)
	}
	sortDistributions(distributions)
	return distributions, nil
}

func (r *crowdsaleRepository) Close() {
	// nolint:all
	r.store.Close()
}

func distributionKey(crowdsaleId string, pledge domain.Outpoint) string {
	return fmt.Sprintf("%s:%s", crowdsaleId, pledge)
}

// sortDistributions orders distributions by processing time, then in pledge
// order.
func sortDistributions(distributions []domain.Distribution) {
	sort.SliceStable(distributions, func(i, j int) bool {
		a, b := distributions[i], distributions[j]
		if a.CreatedAt != b.CreatedAt {
			return a.CreatedAt < b.CreatedAt
		}
		if a.Pledge.Confirmations != b.Pledge.Confirmations {
			return a.Pledge.Confirmations > b.Pledge.Confirmations
		}
		if a.Pledge.Txid != b.Pledge.Txid {
			return a.Pledge.Txid < b.Pledge.Txid
		}
		return a.Pledge.VOut < b.Pledge.VOut
	})
}
