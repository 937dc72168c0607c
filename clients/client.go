package clients

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	x402types "github.com/walrus-x402/x402/types"
)

// ErrNotFound is returned when the node does not (yet) know a transaction or receipt.
// It is distinct from an RPC failure, which is reported as a CHAIN_UNAVAILABLE X402Error.
var ErrNotFound = errors.New("not found")

// ChainReader is the read-only view of the chain the verifier and the
// authorization engine depend on. Nothing here mutates chain state.
type ChainReader interface {
	GetTransaction(ctx context.Context, hash common.Hash) (*ethtypes.Transaction, error)
	GetTransactionReceipt(ctx context.Context, hash common.Hash) (*ethtypes.Receipt, error)

	// CheckRental returns the rental expiry (Unix seconds) for wallet on
	// contentID; zero means no rental.
	CheckRental(ctx context.Context, wallet common.Address, contentID *big.Int) (*big.Int, error)
	CheckSubscription(ctx context.Context, wallet, creator common.Address) (bool, error)
	ReadContentRecord(ctx context.Context, contentID *big.Int) (*x402types.ContentRecord, error)

	ChainID() uint64
	Close()
}
