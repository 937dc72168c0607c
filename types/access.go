package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ContentRecord is the registry entry for a piece of content, decoded with
// named fields at the chain reader boundary.
type ContentRecord struct {
	ID           *big.Int
	Creator      common.Address
	ContentType  uint8
	MetadataURI  string
	IsFree       bool
	FullPrice    *big.Int
	RentPrice    *big.Int
	PaymentToken common.Address
	Active       bool
}

// Price returns the rent price when set, otherwise the full price.
func (c *ContentRecord) Price() *big.Int {
	if c.RentPrice != nil && c.RentPrice.Sign() > 0 {
		return new(big.Int).Set(c.RentPrice)
	}
	if c.FullPrice == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(c.FullPrice)
}

type EntitlementKind string

const (
	EntitlementNone         EntitlementKind = "none"
	EntitlementFree         EntitlementKind = "free"
	EntitlementOwner        EntitlementKind = "owner"
	EntitlementRental       EntitlementKind = "rental"
	EntitlementSubscription EntitlementKind = "subscription"
)

// Entitlement is a pre-existing on-chain right to access content.
// Expiry is a Unix timestamp in seconds; zero means no expiry.
type Entitlement struct {
	Kind   EntitlementKind `json:"kind"`
	Expiry int64           `json:"expiry,omitempty"`
}

// Active reports whether the entitlement grants access at now (Unix seconds).
// Windows are closed-open: valid strictly while now < Expiry.
func (e Entitlement) Active(now int64) bool {
	switch e.Kind {
	case EntitlementFree, EntitlementOwner:
		return true
	case EntitlementRental:
		return e.Expiry > 0 && now < e.Expiry
	case EntitlementSubscription:
		return e.Expiry == 0 || now < e.Expiry
	default:
		return false
	}
}

// AccessReason explains an access decision.
type AccessReason string

const (
	AccessFree         AccessReason = "free"
	AccessOwner        AccessReason = "owner"
	AccessRental       AccessReason = "rental"
	AccessSubscription AccessReason = "subscription"
	AccessPayment      AccessReason = "payment"
	AccessUploadFee    AccessReason = "upload_fee"

	AccessPaymentRequired AccessReason = "payment_required"
	AccessProofRejected   AccessReason = "proof_rejected"
	AccessProofReused     AccessReason = "proof_reused"
	AccessNotPurchasable  AccessReason = "not_purchasable"
)

// AccessDecision is the outcome of one authorization attempt.
// On success FetchInstruction is set (except for upload gating); on a
// payment-required failure Challenge is set.
type AccessDecision struct {
	Authorized       bool                `json:"authorized"`
	Reason           AccessReason        `json:"reason"`
	Verification     *VerificationResult `json:"verification,omitempty"`
	FetchInstruction *FetchInstruction   `json:"fetchInstruction,omitempty"`
	Challenge        *PaymentChallenge   `json:"challenge,omitempty"`
}

// FetchInstruction is a short-lived bearer capability for content retrieval.
// IssuedAt and Expiry are Unix milliseconds.
type FetchInstruction struct {
	BlobID     string `json:"blobId"`
	UserWallet string `json:"userWallet"`
	IssuedAt   int64  `json:"issuedAt"`
	Expiry     int64  `json:"expiry"`
	Nonce      string `json:"nonce"`
	Signature  string `json:"signature"`
}
