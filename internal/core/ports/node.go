package ports

import (
	"context"

	"github.com/arkade-os/colorcore/internal/core/domain"
	"github.com/btcsuite/btcd/wire"
)

// Utxo is an unspent output as reported by the node.
type Utxo struct {
	domain.Outpoint
	Address       string
	Script        []byte
	Value         uint64
	Confirmations int64
}

// NodeService is the blockchain node the application talks to. Signing is
// delegated to the node wallet.
type NodeService interface {
	ListUnspent(
		ctx context.Context, minConf, maxConf int, addresses []string,
	) ([]Utxo, error)
	GetRawTransaction(ctx context.Context, txid string) (*wire.MsgTx, error)
	SignTransaction(ctx context.Context, tx *wire.MsgTx) (*wire.MsgTx, error)
	BroadcastTransaction(ctx context.Context, tx *wire.MsgTx) (string, error)
	GetBlockCount(ctx context.Context) (int64, error)
	Close()
}
