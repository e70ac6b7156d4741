package db_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/arkade-os/colorcore/internal/core/domain"
	"github.com/arkade-os/colorcore/internal/core/ports"
	"github.com/arkade-os/colorcore/internal/infrastructure/db"
	"github.com/arkade-os/colorcore/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const (
	txida = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	txidb = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	txidc = "cccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccc"

	assetId = "ALn3aK1fSuG27N96UGYB1kUYUpGKRhBuBC"
)

func TestService(t *testing.T) {
	tests := []struct {
		name   string
		config db.ServiceConfig
	}{
		{
			name: "repo_manager_with_badger_stores",
			config: db.ServiceConfig{
				DataStoreType:   "badger",
				DataStoreConfig: []interface{}{"", nil},
			},
		},
		{
			name: "repo_manager_with_persistent_badger_stores",
			config: db.ServiceConfig{
				DataStoreType:   "badger",
				DataStoreConfig: []interface{}{t.TempDir(), nil},
			},
		},
		{
			name: "repo_manager_with_sqlite_stores",
			config: db.ServiceConfig{
				DataStoreType:   "sqlite",
				DataStoreConfig: []interface{}{t.TempDir()},
			},
		},
	}
	// postgres needs a running server, see docker-compose in the README
	if dsn := os.Getenv("COLORCORE_TEST_PG_DSN"); len(dsn) > 0 {
		tests = append(tests, struct {
			name   string
			config db.ServiceConfig
		}{
			name: "repo_manager_with_postgres_stores",
			config: db.ServiceConfig{
				DataStoreType:   "postgres",
				DataStoreConfig: []interface{}{dsn, true},
			},
		})
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := db.NewService(tt.config)
			require.NoError(t, err)
			require.NotNil(t, svc)

			testCrowdsaleRepository(t, svc)
			testDistributions(t, svc)
			testConcurrentCommits(t, svc)

			svc.Close()
		})
	}
}

func TestInvalidConfig(t *testing.T) {
	configs := []db.ServiceConfig{
		{DataStoreType: "leveldb"},
		{DataStoreType: "badger", DataStoreConfig: []interface{}{""}},
		{DataStoreType: "badger", DataStoreConfig: []interface{}{1, nil}},
		{DataStoreType: "sqlite", DataStoreConfig: []interface{}{}},
		{DataStoreType: "sqlite", DataStoreConfig: []interface{}{false}},
		{DataStoreType: "postgres", DataStoreConfig: []interface{}{"dsn"}},
		{DataStoreType: "postgres", DataStoreConfig: []interface{}{"dsn", "true"}},
	}
	for _, config := range configs {
		svc, err := db.NewService(config)
		require.Error(t, err, config)
		require.Nil(t, svc)
	}
}

func newCrowdsale(t *testing.T) domain.Crowdsale {
	crowdsale, err := domain.NewCrowdsale(
		uuid.New().String(), assetId, "issuer", "pledge", 1000, []domain.PriceTier{
			{Threshold: 0, Price: decimal.NewFromInt(100)},
			{Threshold: 500, Price: decimal.RequireFromString("250.5")},
		},
	)
	require.NoError(t, err)
	return *crowdsale
}

func testCrowdsaleRepository(t *testing.T, svc ports.RepoManager) {
	t.Run("test_crowdsale_repository", func(t *testing.T) {
		ctx := context.Background()
		repo := svc.Crowdsales()

		crowdsale := newCrowdsale(t)

		got, err := repo.GetCrowdsale(ctx, crowdsale.Id)
		require.NoError(t, err)
		require.Nil(t, got)

		err = repo.AddCrowdsale(ctx, crowdsale)
		require.NoError(t, err)

		err = repo.AddCrowdsale(ctx, crowdsale)
		require.Error(t, err)

		got, err = repo.GetCrowdsale(ctx, crowdsale.Id)
		require.NoError(t, err)
		requireCrowdsaleEqual(t, crowdsale, *got)

		crowdsale.Close()
		err = repo.UpdateCrowdsale(ctx, crowdsale)
		require.NoError(t, err)

		got, err = repo.GetCrowdsale(ctx, crowdsale.Id)
		require.NoError(t, err)
		require.Equal(t, domain.CrowdsaleClosed, got.Status)

		unknown := newCrowdsale(t)
		err = repo.UpdateCrowdsale(ctx, unknown)
		require.Error(t, err)

		all, err := repo.GetAllCrowdsales(ctx)
		require.NoError(t, err)
		found := false
		for _, c := range all {
			if c.Id == crowdsale.Id {
				found = true
				requireCrowdsaleEqual(t, crowdsale, c)
			}
		}
		require.True(t, found)
	})
}

func testDistributions(t *testing.T, svc ports.RepoManager) {
	t.Run("test_distributions", func(t *testing.T) {
		ctx := context.Background()
		repo := svc.Crowdsales()

		crowdsale := newCrowdsale(t)
		require.NoError(t, repo.AddCrowdsale(ctx, crowdsale))

		pledges := []domain.Pledge{
			{Outpoint: domain.Outpoint{Txid: txida, VOut: 0}, Value: 30000, PayerScript: "0014aa", Confirmations: 10},
			{Outpoint: domain.Outpoint{Txid: txidb, VOut: 1}, Value: 20000, PayerScript: "0014bb", Confirmations: 5},
			{Outpoint: domain.Outpoint{Txid: txidc, VOut: 2}, Value: 50, PayerScript: "0014cc", Confirmations: 1},
		}

		distributions, err := repo.GetDistributions(ctx, crowdsale.Id)
		require.NoError(t, err)
		require.Empty(t, distributions)

		now := time.Now().Unix()
		quantities := []uint64{300, 200, 0}
		for i, pledge := range pledges {
			require.NoError(t, crowdsale.Issue(quantities[i]))
			distribution := domain.Distribution{
				CrowdsaleId: crowdsale.Id,
				Pledge:      pledge,
				Quantity:    quantities[i],
				CreatedAt:   now,
			}
			if quantities[i] > 0 {
				distribution.Txid = fmt.Sprintf("%064d", i)
			}
			require.NoError(t, repo.CommitDistribution(ctx, crowdsale, distribution))

			got, err := repo.GetDistribution(ctx, crowdsale.Id, pledge.Outpoint)
			require.NoError(t, err)
			require.NotNil(t, got)
			require.Equal(t, distribution, *got)
		}

		got, err := repo.GetCrowdsale(ctx, crowdsale.Id)
		require.NoError(t, err)
		require.Equal(t, uint64(500), got.TotalIssued)

		// committing the same pledge again fails and leaves the crowdsale as is
		advanced := crowdsale
		require.NoError(t, advanced.Issue(100))
		err = repo.CommitDistribution(ctx, advanced, domain.Distribution{
			CrowdsaleId: crowdsale.Id, Pledge: pledges[0], Quantity: 100, CreatedAt: now,
		})
		require.Error(t, err)
		require.True(t, errors.PLEDGE_ALREADY_PROCESSED.Is(err))

		got, err = repo.GetCrowdsale(ctx, crowdsale.Id)
		require.NoError(t, err)
		require.Equal(t, uint64(500), got.TotalIssued)

		distributions, err = repo.GetDistributions(ctx, crowdsale.Id)
		require.NoError(t, err)
		require.Len(t, distributions, 3)
		for i, d := range distributions {
			require.Equal(t, pledges[i].Outpoint, d.Pledge.Outpoint)
			require.Equal(t, quantities[i], d.Quantity)
		}

		missing, err := repo.GetDistribution(ctx, crowdsale.Id, domain.Outpoint{Txid: txida, VOut: 9})
		require.NoError(t, err)
		require.Nil(t, missing)
	})
}

func testConcurrentCommits(t *testing.T, svc ports.RepoManager) {
	t.Run("test_concurrent_commits", func(t *testing.T) {
		ctx := context.Background()
		repo := svc.Crowdsales()

		crowdsale := newCrowdsale(t)
		require.NoError(t, repo.AddCrowdsale(ctx, crowdsale))
		require.NoError(t, crowdsale.Issue(10))

		pledge := domain.Pledge{
			Outpoint: domain.Outpoint{Txid: txida, VOut: 0}, Value: 1000, PayerScript: "0014aa",
		}

		var (
			wg        sync.WaitGroup
			lock      sync.Mutex
			succeeded int
		)
		for range 5 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := repo.CommitDistribution(ctx, crowdsale, domain.Distribution{
					CrowdsaleId: crowdsale.Id, Pledge: pledge, Quantity: 10,
					CreatedAt: time.Now().Unix(),
				})
				if err == nil {
					lock.Lock()
					succeeded++
					lock.Unlock()
				}
			}()
		}
		wg.Wait()
		require.Equal(t, 1, succeeded)

		distributions, err := repo.GetDistributions(ctx, crowdsale.Id)
		require.NoError(t, err)
		require.Len(t, distributions, 1)
	})
}

func requireCrowdsaleEqual(t *testing.T, expected, got domain.Crowdsale) {
	require.Equal(t, expected.Id, got.Id)
	require.Equal(t, expected.AssetId, got.AssetId)
	require.Equal(t, expected.IssuerAddress, got.IssuerAddress)
	require.Equal(t, expected.PledgeAddress, got.PledgeAddress)
	require.Equal(t, expected.SupplyCap, got.SupplyCap)
	require.Equal(t, expected.TotalIssued, got.TotalIssued)
	require.Equal(t, expected.Status, got.Status)
	require.Equal(t, expected.CreatedAt, got.CreatedAt)
	require.Len(t, got.PriceSchedule, len(expected.PriceSchedule))
	for i, tier := range expected.PriceSchedule {
		require.Equal(t, tier.Threshold, got.PriceSchedule[i].Threshold)
		require.True(t, tier.Price.Equal(got.PriceSchedule[i].Price))
	}
}
