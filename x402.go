// Package x402 wires the payment-proof verifier, the access engine and the
// fetch-instruction issuer into one gate over an EVM content registry.
package x402

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/walrus-x402/x402/access"
	"github.com/walrus-x402/x402/clients"
	"github.com/walrus-x402/x402/config"
	"github.com/walrus-x402/x402/logger"
	"github.com/walrus-x402/x402/metrics"
	"github.com/walrus-x402/x402/signing"
	"github.com/walrus-x402/x402/store"
	"github.com/walrus-x402/x402/types"
	"github.com/walrus-x402/x402/verification"
)

// X402 is the main struct that provides all x402 functionality
type X402 struct {
	reader   clients.ChainReader
	verifier *verification.VerificationService
	issuer   *signing.Issuer
	engine   *access.Engine
	proofs   store.ProofStore

	logger  logger.Logger
	metrics metrics.Recorder
	timeout time.Duration
}

// New dials the chain, opens the proof store and assembles the gate from cfg.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*X402, error) {
	chainCfg := cfg.Chain
	chainCfg.ChainID = cfg.ChainID()

	reader, err := clients.NewEVMClient(ctx, chainCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create EVM client for %s: %w", cfg.Chain.Network, err)
	}

	proofs, err := OpenProofStore(ctx, cfg.Store)
	if err != nil {
		reader.Close()
		return nil, err
	}

	x, err := assemble(reader, proofs, cfg, opts...)
	if err != nil {
		proofs.Close()
		reader.Close()
		return nil, err
	}
	return x, nil
}

func assemble(reader clients.ChainReader, proofs store.ProofStore, cfg *config.Config, opts ...Option) (*X402, error) {
	x := &X402{
		reader:  reader,
		proofs:  proofs,
		logger:  logger.NoopLogger{},
		metrics: metrics.NoopRecorder{},
		timeout: cfg.Verification.Timeout,
	}
	for _, opt := range opts {
		opt(x)
	}

	issuer, err := signing.NewIssuer(signing.Config{
		Secret:     cfg.Signing.Secret,
		Production: cfg.IsProduction(),
		TTL:        cfg.Signing.TTL,
	}, x.logger)
	if err != nil {
		return nil, err
	}

	fee, err := cfg.PlatformFee()
	if err != nil {
		return nil, err
	}

	x.issuer = issuer
	x.verifier = verification.NewVerificationService(reader,
		verification.WithRetry(cfg.Verification.MaxAttempts, cfg.Verification.BackoffUnit),
		verification.WithTimeout(x.timeout),
		verification.WithLogger(x.logger),
		verification.WithMetrics(x.metrics),
	)

	engineOpts := []access.Option{
		access.WithLogger(x.logger),
		access.WithMetrics(x.metrics),
	}
	if fee != nil {
		engineOpts = append(engineOpts, access.WithPlatformFee(fee))
	}
	x.engine = access.NewEngine(reader, x.verifier, issuer, proofs, engineOpts...)

	return x, nil
}

// OpenProofStore opens the replay store selected by cfg.Driver.
func OpenProofStore(ctx context.Context, cfg config.StoreConfig) (store.ProofStore, error) {
	switch cfg.Driver {
	case config.StoreMemory, "":
		return store.NewMemoryStore(), nil
	case config.StoreSQLite:
		return store.NewSQLiteStore(cfg.SQLitePath)
	case config.StoreRedis:
		return store.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.ClaimTTL)
	default:
		return nil, &config.ConfigError{Message: fmt.Sprintf("unknown store driver %q", cfg.Driver)}
	}
}

// VerifyPayment checks a single proof against a requirement.
func (x *X402) VerifyPayment(
	ctx context.Context,
	proof types.PaymentProof,
	req *types.PaymentRequirement,
) (*types.VerificationResult, error) {
	return x.verifier.VerifyPayment(ctx, proof, req)
}

// Authorize decides access for wallet on contentID, optionally redeeming proof.
func (x *X402) Authorize(
	ctx context.Context,
	wallet common.Address,
	contentID *big.Int,
	proof types.PaymentProof,
) (*types.AccessDecision, error) {
	return x.engine.Authorize(ctx, wallet, contentID, proof)
}

func (x *X402) UploadChallenge() (*types.PaymentChallenge, error) {
	return x.engine.UploadChallenge()
}

func (x *X402) AuthorizeUpload(ctx context.Context, uploadID string, proof types.PaymentProof) (*types.AccessDecision, error) {
	return x.engine.AuthorizeUpload(ctx, uploadID, proof)
}

// VerifyFetchInstruction is the check a delivery endpoint runs before
// releasing bytes: signature and freshness.
func (x *X402) VerifyFetchInstruction(fi *types.FetchInstruction) error {
	return x.issuer.Verify(fi, time.Now())
}

// ChainID is the chain every requirement is verified on.
func (x *X402) ChainID() uint64 {
	return x.reader.ChainID()
}

// Close closes the chain connection and the proof store.
func (x *X402) Close() error {
	x.reader.Close()
	return x.proofs.Close()
}

// Version information
const (
	Version         = "0.1.0"
	ProtocolVersion = types.X402Version1
)

// GetVersion returns version information
func GetVersion() map[string]interface{} {
	return map[string]interface{}{
		"library_version":  Version,
		"protocol_version": int(ProtocolVersion),
		"supported_networks": []string{
			types.NetworkBase.String(),
			types.NetworkBaseSepolia.String(),
			types.NetworkLocal.String(),
		},
		"supported_standards": []string{"erc20", "native"},
	}
}
