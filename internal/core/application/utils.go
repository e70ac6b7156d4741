package application

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/arkade-os/colorcore/pkg/errors"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

const unknownScript = "Unknown script"

func addressScript(address string, network *chaincfg.Params) ([]byte, error) {
	if len(address) <= 0 {
		return nil, errors.INVALID_ADDRESS.New("missing address")
	}
	addr, err := btcutil.DecodeAddress(address, network)
	if err != nil {
		return nil, errors.INVALID_ADDRESS.Wrap(err).
			WithMetadata(errors.AddressMetadata{Address: address})
	}
	if !addr.IsForNet(network) {
		return nil, errors.INVALID_ADDRESS.New(
			"address %s is not for network %s", address, network.Name,
		).WithMetadata(errors.AddressMetadata{Address: address})
	}
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, errors.INVALID_ADDRESS.Wrap(err).
			WithMetadata(errors.AddressMetadata{Address: address})
	}
	return script, nil
}

// scriptAddress renders the address paid by script, for the standard script
// types only.
func scriptAddress(script []byte, network *chaincfg.Params) string {
	_, addrs, _, err := txscript.ExtractPkScriptAddrs(script, network)
	if err != nil || len(addrs) != 1 {
		return unknownScript
	}
	return addrs[0].EncodeAddress()
}

func scriptHex(script []byte) string {
	return hex.EncodeToString(script)
}

func serializeTx(tx *wire.MsgTx) (string, error) {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return "", fmt.Errorf("failed to serialize tx: %w", err)
	}
	return hex.EncodeToString(buf.Bytes()), nil
}
