package openassets_test

import (
	"encoding/hex"
	"encoding/json"
	"math/rand"
	"os"
	"testing"

	"github.com/arkade-os/colorcore/pkg/errors"
	"github.com/arkade-os/colorcore/pkg/openassets"
	"github.com/stretchr/testify/require"
)

func TestMarker(t *testing.T) {
	var fixtures markerFixtures
	buf, err := os.ReadFile("testdata/marker_fixtures.json")
	require.NoError(t, err)
	err = json.Unmarshal(buf, &fixtures)
	require.NoError(t, err)

	t.Run("valid", func(t *testing.T) {
		for _, v := range fixtures.Valid {
			t.Run(v.Name, func(t *testing.T) {
				metadata, err := hex.DecodeString(v.Metadata)
				require.NoError(t, err)

				marker, err := openassets.NewMarker(v.Quantities, metadata)
				require.NoError(t, err)

				payload, err := marker.Serialize()
				require.NoError(t, err)
				require.Equal(t, v.Payload, hex.EncodeToString(payload))

				script, err := marker.Script()
				require.NoError(t, err)
				require.Equal(t, v.Script, hex.EncodeToString(script))
				require.Equal(t, v.Script, marker.String())
				require.True(t, openassets.IsMarkerScript(script))

				got, err := openassets.NewMarkerFromString(v.Script)
				require.NoError(t, err)
				require.Equal(t, v.Quantities, got.Quantities)
				require.Equal(t, v.Metadata, hex.EncodeToString(got.Metadata))

				got, err = openassets.NewMarkerFromPayload(payload)
				require.NoError(t, err)
				require.Equal(t, v.Quantities, got.Quantities)
			})
		}
	})

	t.Run("invalid", func(t *testing.T) {
		for _, v := range fixtures.Invalid {
			t.Run(v.Name, func(t *testing.T) {
				got, err := openassets.NewMarkerFromString(v.Script)
				require.Error(t, err)
				require.Contains(t, err.Error(), v.ExpectedError)
				require.True(t, errors.MALFORMED_MARKER.Is(err))
				require.Nil(t, got)

				script, err := hex.DecodeString(v.Script)
				require.NoError(t, err)
				require.False(t, openassets.IsMarkerScript(script))
			})
		}
	})

	t.Run("quantity out of range", func(t *testing.T) {
		got, err := openassets.NewMarker([]uint64{1, openassets.MaxAssetQuantity + 1}, nil)
		require.Error(t, err)
		require.True(t, errors.INVALID_QUANTITY.Is(err))
		require.Nil(t, got)
	})
}

func TestMarkerRoundTrip(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))

	for range 500 {
		quantities := make([]uint64, rnd.Intn(20))
		for i := range quantities {
			switch rnd.Intn(3) {
			case 0:
				quantities[i] = 0
			case 1:
				quantities[i] = uint64(rnd.Intn(1000))
			default:
				quantities[i] = uint64(rnd.Int63())
			}
		}
		metadata := make([]byte, rnd.Intn(100))
		rnd.Read(metadata)

		marker, err := openassets.NewMarker(quantities, metadata)
		require.NoError(t, err)
		out, err := marker.TxOut()
		require.NoError(t, err)
		require.Zero(t, out.Value)

		got, err := openassets.NewMarkerFromScript(out.PkScript)
		require.NoError(t, err)
		require.Equal(t, quantities, got.Quantities)
		require.Equal(t, metadata, got.Metadata)
	}
}

type markerFixtures struct {
	Valid []struct {
		Name       string   `json:"name"`
		Quantities []uint64 `json:"quantities"`
		Metadata   string   `json:"metadata"`
		Payload    string   `json:"payload"`
		Script     string   `json:"script"`
	} `json:"valid"`
	Invalid []struct {
		Name          string `json:"name"`
		Script        string `json:"script"`
		ExpectedError string `json:"expectedError"`
	} `json:"invalid"`
}
