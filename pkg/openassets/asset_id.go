package openassets

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"
)

const (
	// AssetIdVersion is the base58check version byte of asset ids. It differs
	// from every address version byte so an asset id never decodes as an address.
	AssetIdVersion byte = 0x17
	// AssetIdSize is the size of an asset id in bytes.
	AssetIdSize = 20
)

// AssetId identifies an asset as the Hash160 of the script of the output
// spent by the first input of its issuance transaction.
type AssetId [AssetIdSize]byte

// DeriveAssetId computes the asset id issued by the given script.
func DeriveAssetId(issuingScript []byte) AssetId {
	var id AssetId
	copy(id[:], btcutil.Hash160(issuingScript))
	return id
}

// NewAssetIdFromString parses the base58check form of an asset id.
func NewAssetIdFromString(s string) (*AssetId, error) {
	if len(s) <= 0 {
		return nil, fmt.Errorf("missing asset id")
	}
	buf, version, err := base58.CheckDecode(s)
	if err != nil {
		return nil, fmt.Errorf("invalid asset id %s: %w", s, err)
	}
	if version != AssetIdVersion {
		return nil, fmt.Errorf(
			"invalid asset id version, got %d want %d", version, AssetIdVersion,
		)
	}
	return NewAssetIdFromBytes(buf)
}

// NewAssetIdFromBytes returns the asset id for the given raw hash.
func NewAssetIdFromBytes(buf []byte) (*AssetId, error) {
	if len(buf) != AssetIdSize {
		return nil, fmt.Errorf("invalid asset id length, got %d want %d", len(buf), AssetIdSize)
	}
	var id AssetId
	copy(id[:], buf)
	return &id, nil
}

// Bytes returns the raw hash.
func (a AssetId) Bytes() []byte {
	return append([]byte(nil), a[:]...)
}

// String returns the base58check encoding of the asset id.
func (a AssetId) String() string {
	return base58.CheckEncode(a[:], AssetIdVersion)
}

func (a AssetId) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *AssetId) UnmarshalText(text []byte) error {
	id, err := NewAssetIdFromString(string(text))
	if err != nil {
		return err
	}
	*a = *id
	return nil
}
