package clients

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	x402types "github.com/walrus-x402/x402/types"
)

var _ ChainReader = (*EVMClient)(nil)

// backend is the subset of *ethclient.Client the reader uses.
type backend interface {
	TransactionByHash(ctx context.Context, hash common.Hash) (*ethtypes.Transaction, bool, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	Close()
}

// EVMClient reads transactions and the content registry from an EVM node.
type EVMClient struct {
	chainID  uint64
	registry common.Address
	eth      backend

	// timeout bounds each RPC; zero leaves it to the caller's context.
	timeout time.Duration
}

// NewEVMClient dials the configured RPC endpoint. The chain id comes from the
// config, then the network table, then the node itself.
func NewEVMClient(ctx context.Context, cfg x402types.ClientConfig) (*EVMClient, error) {
	if cfg.RPCUrl == "" {
		return nil, &x402types.X402Error{Code: x402types.ErrConfigError, Message: "rpc url is required"}
	}
	if !common.IsHexAddress(cfg.RegistryAddress) {
		return nil, &x402types.X402Error{
			Code:    x402types.ErrConfigError,
			Message: fmt.Sprintf("invalid registry address %q", cfg.RegistryAddress),
		}
	}

	eth, err := ethclient.DialContext(ctx, cfg.RPCUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Ethereum RPC: %w", err)
	}

	chainID := cfg.ChainID
	if chainID == 0 {
		chainID = cfg.Network.ChainID()
	}
	if chainID == 0 {
		id, err := eth.ChainID(ctx)
		if err != nil {
			eth.Close()
			return nil, x402types.ChainUnavailable("chain id lookup", err)
		}
		chainID = id.Uint64()
	}

	c := newEVMClient(eth, chainID, common.HexToAddress(cfg.RegistryAddress))
	c.timeout = cfg.Timeout
	return c, nil
}

func newEVMClient(eth backend, chainID uint64, registry common.Address) *EVMClient {
	return &EVMClient{
		chainID:  chainID,
		registry: registry,
		eth:      eth,
	}
}

// ChainID implements ChainReader.
func (e *EVMClient) ChainID() uint64 {
	return e.chainID
}

// Close implements ChainReader.
func (e *EVMClient) Close() {
	e.eth.Close()
}

// GetTransaction implements ChainReader. Pending transactions are returned;
// the missing receipt keeps them from verifying.
func (e *EVMClient) GetTransaction(ctx context.Context, hash common.Hash) (*ethtypes.Transaction, error) {
	ctx, cancel := e.rpcContext(ctx)
	defer cancel()

	tx, _, err := e.eth.TransactionByHash(ctx, hash)
	if err != nil {
		return nil, classify("eth_getTransactionByHash", err)
	}
	return tx, nil
}

// GetTransactionReceipt implements ChainReader.
func (e *EVMClient) GetTransactionReceipt(ctx context.Context, hash common.Hash) (*ethtypes.Receipt, error) {
	ctx, cancel := e.rpcContext(ctx)
	defer cancel()

	receipt, err := e.eth.TransactionReceipt(ctx, hash)
	if err != nil {
		return nil, classify("eth_getTransactionReceipt", err)
	}
	return receipt, nil
}

// CheckRental implements ChainReader.
func (e *EVMClient) CheckRental(ctx context.Context, wallet common.Address, contentID *big.Int) (*big.Int, error) {
	out, err := e.call(ctx, "checkRental", wallet, contentID)
	if err != nil {
		return nil, err
	}
	return decodeRentalExpiry(out)
}

// CheckSubscription implements ChainReader.
func (e *EVMClient) CheckSubscription(ctx context.Context, wallet, creator common.Address) (bool, error) {
	out, err := e.call(ctx, "checkSubscription", wallet, creator)
	if err != nil {
		return false, err
	}
	return decodeSubscription(out)
}

// ReadContentRecord implements ChainReader.
func (e *EVMClient) ReadContentRecord(ctx context.Context, contentID *big.Int) (*x402types.ContentRecord, error) {
	out, err := e.call(ctx, "contents", contentID)
	if err != nil {
		return nil, err
	}
	return decodeContentRecord(out)
}

func (e *EVMClient) call(ctx context.Context, method string, args ...interface{}) ([]byte, error) {
	data, err := registryABI.Pack(method, args...)
	if err != nil {
		return nil, &x402types.X402Error{
			Code:    x402types.ErrInvalidInput,
			Message: fmt.Sprintf("failed to encode %s call", method),
			Err:     err,
		}
	}

	ctx, cancel := e.rpcContext(ctx)
	defer cancel()

	registry := e.registry
	out, err := e.eth.CallContract(ctx, ethereum.CallMsg{To: &registry, Data: data}, nil)
	if err != nil {
		return nil, x402types.ChainUnavailable(method, err)
	}
	return out, nil
}

func (e *EVMClient) rpcContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.timeout)
}

// classify separates "the node does not know this hash" from transport failures.
func classify(op string, err error) error {
	if errors.Is(err, ethereum.NotFound) {
		return ErrNotFound
	}
	return x402types.ChainUnavailable(op, err)
}
