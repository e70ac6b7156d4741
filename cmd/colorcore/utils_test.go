package main

import (
	"fmt"
	"testing"

	"github.com/arkade-os/colorcore/internal/core/application"
	"github.com/arkade-os/colorcore/internal/core/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestParsePriceSchedule(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		schedule, err := parsePriceSchedule([]string{"0:100", "500: 200", "1000:250.5"})
		require.NoError(t, err)
		require.Len(t, schedule, 3)

		require.Equal(t, uint64(0), schedule[0].Threshold)
		require.True(t, decimal.NewFromInt(100).Equal(schedule[0].Price))
		require.Equal(t, uint64(500), schedule[1].Threshold)
		require.True(t, decimal.NewFromInt(200).Equal(schedule[1].Price))
		require.Equal(t, uint64(1000), schedule[2].Threshold)
		require.Equal(t, "250.5", schedule[2].Price.String())
	})

	t.Run("invalid", func(t *testing.T) {
		fixtures := [][]string{
			{"100"},
			{"0:100:1"},
			{"abc:100"},
			{"-1:100"},
			{"0:one hundred"},
		}
		for _, f := range fixtures {
			schedule, err := parsePriceSchedule(f)
			require.Error(t, err, f)
			require.Nil(t, schedule)
		}
	})
}

func TestPledgeViews(t *testing.T) {
	results := []application.PledgeResult{
		{
			Pledge: domain.Pledge{
				Outpoint: domain.Outpoint{Txid: "aa", VOut: 1},
				Value:    30000,
			},
			Quantity: 300,
			Txid:     "bb",
		},
		{
			Pledge: domain.Pledge{Outpoint: domain.Outpoint{Txid: "cc", VOut: 0}},
			Err:    fmt.Errorf("insufficient funds"),
		},
	}

	views := toPledgeViews(results)
	require.Len(t, views, 2)
	require.Equal(t, "aa:1", views[0].Pledge)
	require.Equal(t, uint64(300), views[0].Quantity)
	require.Empty(t, views[0].Error)
	require.Equal(t, "insufficient funds", views[1].Error)
}
