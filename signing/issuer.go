// Package signing mints and checks fetch instructions: short-lived bearer
// capabilities that let a delivery endpoint release content bytes without
// re-running authorization.
package signing

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/walrus-x402/x402/logger"
	"github.com/walrus-x402/x402/types"
)

const (
	DefaultTTL = time.Hour

	nonceSize = 16
	devSecret = "dev-secret-only-for-local-testing"
)

var (
	ErrInvalidSignature = errors.New("fetch instruction signature mismatch")
	ErrExpired          = errors.New("fetch instruction expired")
)

type Config struct {
	Secret     string
	Production bool
	TTL        time.Duration
}

type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	rand   io.Reader
}

// NewIssuer fails with a CONFIG_ERROR when no secret is configured in
// production. Outside production the fixed development secret is used.
func NewIssuer(cfg Config, log logger.Logger) (*Issuer, error) {
	log = logger.OrNoop(log)

	secret := cfg.Secret
	if secret == "" {
		if cfg.Production {
			return nil, &types.X402Error{
				Code:    types.ErrConfigError,
				Message: "content signing secret is required in production",
			}
		}
		log.Warn("content signing secret not set, using development secret", nil)
		secret = devSecret
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Issuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
		rand:   rand.Reader,
	}, nil
}

// payload is the signed part of a FetchInstruction. Field order here is the
// canonical serialization order.
type payload struct {
	BlobID     string `json:"blobId"`
	UserWallet string `json:"userWallet"`
	IssuedAt   int64  `json:"issuedAt"`
	Expiry     int64  `json:"expiry"`
	Nonce      string `json:"nonce"`
}

func canonical(fi *types.FetchInstruction) ([]byte, error) {
	return json.Marshal(payload{
		BlobID:     fi.BlobID,
		UserWallet: fi.UserWallet,
		IssuedAt:   fi.IssuedAt,
		Expiry:     fi.Expiry,
		Nonce:      fi.Nonce,
	})
}

func (i *Issuer) sign(fi *types.FetchInstruction) ([]byte, error) {
	msg, err := canonical(fi)
	if err != nil {
		return nil, err
	}
	mac := hmac.New(sha256.New, i.secret)
	mac.Write(msg)
	return mac.Sum(nil), nil
}

// Issue mints a fresh instruction for blobID valid for the issuer's TTL.
func (i *Issuer) Issue(blobID, userWallet string) (*types.FetchInstruction, error) {
	if blobID == "" {
		return nil, &types.X402Error{Code: types.ErrInvalidInput, Message: "blob id is required"}
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(i.rand, nonce); err != nil {
		return nil, fmt.Errorf("read nonce: %w", err)
	}

	now := i.now()
	fi := &types.FetchInstruction{
		BlobID:     blobID,
		UserWallet: userWallet,
		IssuedAt:   now.UnixMilli(),
		Expiry:     now.Add(i.ttl).UnixMilli(),
		Nonce:      hexutil.Encode(nonce),
	}

	sig, err := i.sign(fi)
	if err != nil {
		return nil, err
	}
	fi.Signature = hexutil.Encode(sig)
	return fi, nil
}

// Verify recomputes the signature and checks freshness. Both must pass.
func (i *Issuer) Verify(fi *types.FetchInstruction, now time.Time) error {
	if fi == nil {
		return ErrInvalidSignature
	}

	got, err := hexutil.Decode(fi.Signature)
	if err != nil {
		return ErrInvalidSignature
	}
	want, err := i.sign(fi)
	if err != nil {
		return err
	}
	if !hmac.Equal(got, want) {
		return ErrInvalidSignature
	}

	if now.UnixMilli() >= fi.Expiry {
		return ErrExpired
	}
	return nil
}
