// Package access decides whether a wallet may fetch a piece of content,
// composing on-chain entitlements with direct payment proofs.
package access

import (
	"context"
	"errors"
	"math"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/walrus-x402/x402/clients"
	"github.com/walrus-x402/x402/logger"
	"github.com/walrus-x402/x402/metrics"
	"github.com/walrus-x402/x402/store"
	"github.com/walrus-x402/x402/types"
	"github.com/walrus-x402/x402/utils"
	"github.com/walrus-x402/x402/verification"
)

// Issuer mints fetch instructions for granted content.
type Issuer interface {
	Issue(blobID, userWallet string) (*types.FetchInstruction, error)
}

type Engine struct {
	reader   clients.ChainReader
	verifier verification.Verifier
	issuer   Issuer
	proofs   store.ProofStore

	// platformFee gates uploads; nil disables upload gating.
	platformFee *types.PaymentRequirement

	now     func() time.Time
	log     logger.Logger
	metrics metrics.Recorder
}

type Option func(*Engine)

func WithLogger(l logger.Logger) Option {
	return func(e *Engine) { e.log = logger.OrNoop(l) }
}

func WithMetrics(r metrics.Recorder) Option {
	return func(e *Engine) { e.metrics = metrics.OrNoop(r) }
}

// WithPlatformFee sets what an upload costs. Recipient and Amount are
// required; ChainID defaults to the reader's chain.
func WithPlatformFee(fee *types.PaymentRequirement) Option {
	return func(e *Engine) { e.platformFee = fee }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(
	reader clients.ChainReader,
	verifier verification.Verifier,
	issuer Issuer,
	proofs store.ProofStore,
	opts ...Option,
) *Engine {
	e := &Engine{
		reader:   reader,
		verifier: verifier,
		issuer:   issuer,
		proofs:   proofs,
		now:      time.Now,
		log:      logger.NoopLogger{},
		metrics:  metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.platformFee != nil && e.platformFee.ChainID == 0 {
		fee := *e.platformFee
		fee.ChainID = reader.ChainID()
		e.platformFee = &fee
	}
	return e
}

// Authorize runs the access policy for wallet on contentID. The first
// matching rule wins:
//
//  1. inactive content is NOT_FOUND
//  2. free content
//  3. the creator
//  4. an active rental or subscription held by wallet
//  5. a payment proof that verifies against the content price
//  6. otherwise a payment challenge
//
// A zero wallet means the caller is anonymous. proof may be empty. A proof
// is bound to the content and the wallet that first redeems it, so
// anonymous callers cannot redeem one.
// Entitlements are always checked before a proof is trusted.
func (e *Engine) Authorize(
	ctx context.Context,
	wallet common.Address,
	contentID *big.Int,
	proof types.PaymentProof,
) (decision *types.AccessDecision, err error) {
	start := time.Now()
	defer func() {
		e.metrics.ObserveLatency("authorize", time.Since(start), nil)
		if err == nil {
			e.metrics.IncCounter("authorize", map[string]string{"reason": string(decision.Reason)})
		}
	}()

	if contentID == nil {
		return nil, &types.X402Error{Code: types.ErrInvalidInput, Message: "content id is required"}
	}

	rec, err := e.reader.ReadContentRecord(ctx, contentID)
	if err != nil {
		return nil, err
	}
	if !rec.Active {
		return nil, &types.X402Error{Code: types.ErrNotFound, Message: "content not found or inactive"}
	}

	fields := map[string]any{"content": contentID.String(), "wallet": walletString(wallet)}

	if rec.IsFree {
		return e.grant(rec, wallet, types.AccessFree, nil)
	}

	hasWallet := wallet != (common.Address{})
	if hasWallet && wallet == rec.Creator {
		return e.grant(rec, wallet, types.AccessOwner, nil)
	}

	if hasWallet {
		kind, err := e.entitlement(ctx, wallet, rec)
		if err != nil {
			return nil, err
		}
		switch kind {
		case types.EntitlementRental:
			return e.grant(rec, wallet, types.AccessRental, nil)
		case types.EntitlementSubscription:
			return e.grant(rec, wallet, types.AccessSubscription, nil)
		}
	}

	price := rec.Price()
	if price.Sign() == 0 {
		e.log.Warn("content has no price and is not free", fields)
		return &types.AccessDecision{Reason: types.AccessNotPurchasable}, nil
	}

	req := &types.PaymentRequirement{
		Recipient: rec.Creator,
		Amount:    price,
		Token:     rec.PaymentToken,
		ChainID:   e.reader.ChainID(),
	}

	if proof == "" {
		return challenge(req, types.AccessPaymentRequired, nil), nil
	}
	if !hasWallet {
		return nil, &types.X402Error{Code: types.ErrUnauthenticated, Message: "a wallet is required to redeem a payment proof"}
	}

	decision, err = e.redeem(ctx, proof, req, store.ContentBinding(contentID.String(), wallet.Hex()))
	if err != nil || !decision.Authorized {
		return decision, err
	}
	return e.grant(rec, wallet, types.AccessPayment, decision.Verification)
}

// entitlement reads rental and subscription state concurrently and returns
// the first active kind, or EntitlementNone.
func (e *Engine) entitlement(ctx context.Context, wallet common.Address, rec *types.ContentRecord) (types.EntitlementKind, error) {
	var (
		rentalExpiry *big.Int
		subscribed   bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rentalExpiry, err = e.reader.CheckRental(gctx, wallet, rec.ID)
		return err
	})
	g.Go(func() error {
		var err error
		subscribed, err = e.reader.CheckSubscription(gctx, wallet, rec.Creator)
		return err
	})
	if err := g.Wait(); err != nil {
		return types.EntitlementNone, err
	}

	if rental := rentalEntitlement(rentalExpiry); rental.Active(e.now().Unix()) {
		return types.EntitlementRental, nil
	}
	if subscribed {
		return types.EntitlementSubscription, nil
	}
	return types.EntitlementNone, nil
}

// rentalEntitlement converts an on-chain uint256 expiry. Expiries past the
// int64 range (e.g. max uint256 for a permanent rental) clamp to MaxInt64.
func rentalEntitlement(expiry *big.Int) types.Entitlement {
	rental := types.Entitlement{Kind: types.EntitlementRental}
	switch {
	case expiry == nil || expiry.Sign() <= 0:
	case expiry.IsInt64():
		rental.Expiry = expiry.Int64()
	default:
		rental.Expiry = math.MaxInt64
	}
	return rental
}

// redeem verifies proof against req and binds it to binding. A rejected or
// reused proof yields a challenge decision rather than an error.
func (e *Engine) redeem(ctx context.Context, proof types.PaymentProof, req *types.PaymentRequirement, binding string) (*types.AccessDecision, error) {
	result, err := e.verifier.VerifyPayment(ctx, proof, req)
	if err != nil {
		return nil, err
	}
	if !result.Authorized {
		return challenge(req, types.AccessProofRejected, result), nil
	}

	if err := e.proofs.Claim(ctx, proof.String(), binding); err != nil {
		if errors.Is(err, store.ErrProofReused) {
			e.log.Warn("payment proof reused", map[string]any{"tx": proof.String(), "binding": binding})
			return challenge(req, types.AccessProofReused, result), nil
		}
		return nil, err
	}

	return &types.AccessDecision{Authorized: true, Reason: types.AccessPayment, Verification: result}, nil
}

func (e *Engine) grant(rec *types.ContentRecord, wallet common.Address, reason types.AccessReason, result *types.VerificationResult) (*types.AccessDecision, error) {
	blobID, ok := utils.BlobIDFromMetadataURI(rec.MetadataURI)
	if !ok {
		blobID = rec.ID.String()
	}

	fi, err := e.issuer.Issue(blobID, walletString(wallet))
	if err != nil {
		return nil, err
	}

	e.log.Info("access granted", map[string]any{
		"content": rec.ID.String(),
		"wallet":  walletString(wallet),
		"reason":  reason,
	})
	return &types.AccessDecision{
		Authorized:       true,
		Reason:           reason,
		Verification:     result,
		FetchInstruction: fi,
	}, nil
}

func challenge(req *types.PaymentRequirement, reason types.AccessReason, result *types.VerificationResult) *types.AccessDecision {
	ch := req.Challenge()
	ch.Reason = string(reason)
	return &types.AccessDecision{
		Reason:       reason,
		Verification: result,
		Challenge:    ch,
	}
}

// UploadChallenge starts an upload: a fresh upload id and what must be
// paid before the upload is accepted.
func (e *Engine) UploadChallenge() (*types.PaymentChallenge, error) {
	if e.platformFee == nil {
		return nil, &types.X402Error{Code: types.ErrConfigError, Message: "upload platform fee is not configured"}
	}

	ch := e.platformFee.Challenge()
	ch.Error = "Payment Required for Upload"
	ch.UploadID = uuid.NewString()
	ch.Reason = string(types.AccessPaymentRequired)

	e.metrics.IncCounter("upload", map[string]string{"reason": ch.Reason})
	return ch, nil
}

// AuthorizeUpload checks that proof pays the platform fee and binds it to
// uploadID. No fetch instruction is issued.
func (e *Engine) AuthorizeUpload(ctx context.Context, uploadID string, proof types.PaymentProof) (*types.AccessDecision, error) {
	if e.platformFee == nil {
		return nil, &types.X402Error{Code: types.ErrConfigError, Message: "upload platform fee is not configured"}
	}
	if proof == "" || uploadID == "" {
		return nil, &types.X402Error{Code: types.ErrInvalidInput, Message: "missing payment proof or upload id"}
	}
	if _, err := uuid.Parse(uploadID); err != nil {
		return nil, &types.X402Error{Code: types.ErrInvalidInput, Message: "invalid upload id", Err: err}
	}

	decision, err := e.redeem(ctx, proof, e.platformFee, store.UploadBinding(uploadID))
	if err != nil {
		return nil, err
	}
	if decision.Authorized {
		decision.Reason = types.AccessUploadFee
	} else {
		decision.Challenge.UploadID = uploadID
	}

	e.metrics.IncCounter("upload", map[string]string{"reason": string(decision.Reason)})
	e.log.Info("upload payment checked", map[string]any{
		"upload":     uploadID,
		"authorized": decision.Authorized,
		"reason":     decision.Reason,
	})
	return decision, nil
}

func walletString(w common.Address) string {
	if w == (common.Address{}) {
		return ""
	}
	return w.Hex()
}
