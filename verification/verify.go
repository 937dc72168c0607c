package verification

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/walrus-x402/x402/clients"
	"github.com/walrus-x402/x402/logger"
	"github.com/walrus-x402/x402/metrics"
	"github.com/walrus-x402/x402/types"
	"github.com/walrus-x402/x402/utils"
)

// Verifier interface defines the contract for payment verification
type Verifier interface {
	VerifyPayment(ctx context.Context, proof types.PaymentProof, req *types.PaymentRequirement) (*types.VerificationResult, error)
}

var _ Verifier = (*VerificationService)(nil)

// VerificationService checks a client-supplied transaction hash against a
// payment requirement by reading the chain. It holds no per-proof state:
// the same proof and requirement always produce the same result.
type VerificationService struct {
	reader      clients.ChainReader
	maxAttempts int
	backoffUnit time.Duration
	timeout     time.Duration
	sleep       Sleeper
	log         logger.Logger
	metrics     metrics.Recorder
}

type Option func(*VerificationService)

func WithLogger(l logger.Logger) Option {
	return func(s *VerificationService) {
		s.log = logger.OrNoop(l)
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(s *VerificationService) {
		s.metrics = metrics.OrNoop(r)
	}
}

// WithRetry sets the polling bound and the linear backoff unit.
func WithRetry(maxAttempts int, unit time.Duration) Option {
	return func(s *VerificationService) {
		s.maxAttempts = maxAttempts
		s.backoffUnit = unit
	}
}

// WithTimeout bounds a whole verification, polling included.
func WithTimeout(t time.Duration) Option {
	return func(s *VerificationService) {
		s.timeout = t
	}
}

func WithSleeper(fn Sleeper) Option {
	return func(s *VerificationService) {
		s.sleep = fn
	}
}

// NewVerificationService creates a new verification service
func NewVerificationService(reader clients.ChainReader, opts ...Option) *VerificationService {
	s := &VerificationService{
		reader:      reader,
		maxAttempts: DefaultMaxAttempts,
		backoffUnit: DefaultBackoffUnit,
		timeout:     30 * time.Second,
		sleep:       sleepContext,
		log:         logger.NoopLogger{},
		metrics:     metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// VerifyPayment decides whether proof satisfies req.
//
// A non-nil error means no decision could be made (chain unavailable,
// cancelled, invalid requirement); a rejected proof is a result with
// Authorized=false, never an error.
func (s *VerificationService) VerifyPayment(
	ctx context.Context,
	proof types.PaymentProof,
	req *types.PaymentRequirement,
) (*types.VerificationResult, error) {
	start := time.Now()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	result, err := s.verify(ctx, proof, req)

	s.metrics.ObserveLatency("verify_payment", time.Since(start), nil)
	switch {
	case err != nil:
		s.metrics.IncCounter("verify", map[string]string{"reason": "error"})
		s.log.Error("payment verification errored", map[string]any{"tx": proof.String(), "error": err})
	case result.Authorized:
		s.metrics.IncCounter("verify", map[string]string{"reason": string(result.Reason)})
		s.log.Info("payment verified", map[string]any{"tx": proof.String(), "reason": result.Reason, "amount": result.Amount})
	default:
		s.metrics.IncCounter("verify", map[string]string{"reason": string(result.Reason)})
		s.log.Warn("payment rejected", map[string]any{"tx": proof.String(), "reason": result.Reason})
	}
	return result, err
}

func (s *VerificationService) verify(
	ctx context.Context,
	proof types.PaymentProof,
	req *types.PaymentRequirement,
) (*types.VerificationResult, error) {
	if !utils.IsTxHash(proof.String()) {
		return types.Rejected(types.ReasonDecodeError), nil
	}

	if req == nil {
		return nil, &types.X402Error{Code: types.ErrInvalidInput, Message: "payment requirement is required"}
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.ChainID != 0 && req.ChainID != s.reader.ChainID() {
		return nil, &types.X402Error{
			Code:    types.ErrInvalidInput,
			Message: fmt.Sprintf("requirement chain %d does not match reader chain %d", req.ChainID, s.reader.ChainID()),
		}
	}

	hash := common.HexToHash(proof.String())

	tx, receipt, err := s.poll(ctx, hash)
	if errors.Is(err, clients.ErrNotFound) {
		return types.Rejected(types.ReasonTxNotFound), nil
	}
	if err != nil {
		return nil, err
	}

	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return types.Rejected(types.ReasonTxFailed), nil
	}

	if req.IsNative() {
		return s.checkNative(tx, req), nil
	}
	return s.checkERC20(tx, req), nil
}

// poll fetches the transaction and its receipt, retrying with linear backoff
// while the node has not indexed them yet. The returned error is
// clients.ErrNotFound if the last attempt found nothing, otherwise the last
// RPC failure.
func (s *VerificationService) poll(ctx context.Context, hash common.Hash) (*ethtypes.Transaction, *ethtypes.Receipt, error) {
	backoff := NewBackoff(s.maxAttempts, s.backoffUnit)

	for {
		tx, receipt, err := s.fetch(ctx, hash)
		if err == nil {
			return tx, receipt, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}

		delay, ok := backoff.Next()
		if !ok {
			s.log.Warn("transaction lookup exhausted", map[string]any{
				"tx":       hash.Hex(),
				"attempts": backoff.Attempts(),
				"waited":   backoff.Elapsed().String(),
				"error":    err,
			})
			return nil, nil, err
		}

		s.log.Debug("transaction not visible yet, retrying", map[string]any{
			"tx":      hash.Hex(),
			"attempt": backoff.Attempts(),
			"delay":   delay.String(),
		})
		if err := s.sleep(ctx, delay); err != nil {
			return nil, nil, err
		}
	}
}

func (s *VerificationService) fetch(ctx context.Context, hash common.Hash) (*ethtypes.Transaction, *ethtypes.Receipt, error) {
	tx, err := s.reader.GetTransaction(ctx, hash)
	if err != nil {
		return nil, nil, err
	}
	receipt, err := s.reader.GetTransactionReceipt(ctx, hash)
	if err != nil {
		return nil, nil, err
	}
	if tx == nil || receipt == nil {
		return nil, nil, clients.ErrNotFound
	}
	return tx, receipt, nil
}

func (s *VerificationService) checkNative(tx *ethtypes.Transaction, req *types.PaymentRequirement) *types.VerificationResult {
	to := tx.To()
	if to == nil || *to != req.Recipient {
		s.log.Debug("native recipient mismatch", map[string]any{"expected": req.Recipient.Hex(), "got": addrString(to)})
		return types.Rejected(types.ReasonRecipientMismatch)
	}
	if tx.Value().Cmp(req.Amount) < 0 {
		s.log.Debug("native amount insufficient", map[string]any{"expected": req.Amount.String(), "got": tx.Value().String()})
		return types.Rejected(types.ReasonAmountInsufficient)
	}
	return s.authorized(tx, types.ReasonNativeOK, tx.Value())
}

func (s *VerificationService) checkERC20(tx *ethtypes.Transaction, req *types.PaymentRequirement) *types.VerificationResult {
	to := tx.To()
	if to == nil || *to != req.Token {
		s.log.Debug("token contract mismatch", map[string]any{"expected": req.Token.Hex(), "got": addrString(to)})
		return types.Rejected(types.ReasonTokenMismatch)
	}

	transfer, err := clients.DecodeERC20Transfer(tx.Data())
	if err != nil {
		s.log.Debug("erc20 decode failed", map[string]any{"error": err})
		return types.Rejected(types.ReasonDecodeError)
	}
	if transfer.To != req.Recipient {
		s.log.Debug("erc20 recipient mismatch", map[string]any{"expected": req.Recipient.Hex(), "got": transfer.To.Hex()})
		return types.Rejected(types.ReasonRecipientMismatch)
	}
	if transfer.Amount.Cmp(req.Amount) < 0 {
		s.log.Debug("erc20 amount insufficient", map[string]any{"expected": req.Amount.String(), "got": transfer.Amount.String()})
		return types.Rejected(types.ReasonAmountInsufficient)
	}
	return s.authorized(tx, types.ReasonERC20OK, transfer.Amount)
}

func (s *VerificationService) authorized(tx *ethtypes.Transaction, reason types.Reason, paid *big.Int) *types.VerificationResult {
	result := &types.VerificationResult{
		Authorized: true,
		Reason:     reason,
		TxHash:     tx.Hash().Hex(),
		Amount:     paid.String(),
	}

	signer := ethtypes.LatestSignerForChainID(new(big.Int).SetUint64(s.reader.ChainID()))
	if from, err := ethtypes.Sender(signer, tx); err == nil {
		result.Payer = from.Hex()
	}
	return result
}

func addrString(a *common.Address) string {
	if a == nil {
		return "<contract creation>"
	}
	return a.Hex()
}
