package types

import (
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// X402Version represents the version of the x402 protocol
type X402Version int

const (
	X402Version1 X402Version = 1
)

// NativeToken is the sentinel token address selecting a native-value transfer.
var NativeToken = common.Address{}

// PaymentProof is a transaction hash offered by a caller as evidence of payment.
// It carries no authority until verified.
type PaymentProof string

func (p PaymentProof) String() string {
	return string(p)
}

// PaymentRequirement describes what must have been paid on chain.
type PaymentRequirement struct {
	// Address that must have received the funds.
	Recipient common.Address `json:"recipient"`

	// Amount in the token's smallest unit.
	Amount *big.Int `json:"amount"`

	// NativeToken for native transfers, otherwise the ERC-20 contract.
	Token common.Address `json:"tokenAddress"`

	ChainID uint64 `json:"chainId"`
}

// IsNative reports whether the requirement is satisfied by a native transfer.
func (r *PaymentRequirement) IsNative() bool {
	return r.Token == NativeToken
}

// Validate checks that the requirement can be verified at all.
func (r *PaymentRequirement) Validate() error {
	if r.Recipient == (common.Address{}) {
		return &X402Error{Code: ErrInvalidInput, Message: "payment requirement recipient is required"}
	}
	if r.Amount == nil || r.Amount.Sign() < 0 {
		return &X402Error{Code: ErrInvalidInput, Message: "payment requirement amount must be a non-negative integer"}
	}
	return nil
}

// Challenge converts the requirement into the 402 body a caller uses to pay and retry.
func (r *PaymentRequirement) Challenge() *PaymentChallenge {
	return &PaymentChallenge{
		Error:        "Payment Required",
		Recipient:    r.Recipient.Hex(),
		Amount:       r.Amount.String(),
		TokenAddress: r.Token.Hex(),
		ChainID:      r.ChainID,
	}
}

// Reason is the outcome code of a single payment verification.
type Reason string

const (
	ReasonNativeOK           Reason = "native_ok"
	ReasonERC20OK            Reason = "erc20_ok"
	ReasonRecipientMismatch  Reason = "recipient_mismatch"
	ReasonAmountInsufficient Reason = "amount_insufficient"
	ReasonTxNotFound         Reason = "tx_not_found"
	ReasonTxFailed           Reason = "tx_failed"
	ReasonDecodeError        Reason = "decode_error"
	ReasonTokenMismatch      Reason = "token_mismatch"
)

// VerificationResult contains the result of payment verification
type VerificationResult struct {
	Authorized bool   `json:"authorized"`
	Reason     Reason `json:"reason"`
	TxHash     string `json:"txHash,omitempty"`
	Payer      string `json:"payer,omitempty"`
	Amount     string `json:"amount,omitempty"`
}

// Rejected builds an unauthorized result.
func Rejected(reason Reason) *VerificationResult {
	return &VerificationResult{Reason: reason}
}

// PaymentChallenge is the "payment required" body returned with HTTP 402.
type PaymentChallenge struct {
	Error        string `json:"error"`
	Recipient    string `json:"recipient"`
	Amount       string `json:"amount"`
	TokenAddress string `json:"tokenAddress"`
	ChainID      uint64 `json:"chainId"`
	UploadID     string `json:"uploadId,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

// ClientConfig contains configuration for the chain client
type ClientConfig struct {
	Network         Network       `json:"network" yaml:"network"`
	RPCUrl          string        `json:"rpcUrl" yaml:"rpc_url"`
	ChainID         uint64        `json:"chainId,omitempty" yaml:"chain_id"`
	RegistryAddress string        `json:"registryAddress" yaml:"registry_address"`
	Timeout         time.Duration `json:"timeout,omitempty" yaml:"timeout"`
}

// Error types
type X402Error struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Err     error       `json:"-"`
}

func (e *X402Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *X402Error) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error code onto the response status of the HTTP surface.
func (e *X402Error) HTTPStatus() int {
	switch e.Code {
	case ErrInvalidInput:
		return http.StatusBadRequest
	case ErrUnauthenticated:
		return http.StatusUnauthorized
	case ErrAccessDenied:
		return http.StatusForbidden
	case ErrPaymentRequired:
		return http.StatusPaymentRequired
	case ErrNotFound:
		return http.StatusNotFound
	case ErrChainUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Common error codes
const (
	ErrInvalidInput     = "INVALID_INPUT"
	ErrUnauthenticated  = "UNAUTHENTICATED"
	ErrAccessDenied     = "ACCESS_DENIED"
	ErrPaymentRequired  = "PAYMENT_REQUIRED"
	ErrNotFound         = "NOT_FOUND"
	ErrChainUnavailable = "CHAIN_UNAVAILABLE"
	ErrConfigError      = "CONFIG_ERROR"
)

// IsCode reports whether err carries an X402Error with the given code.
func IsCode(err error, code string) bool {
	var xe *X402Error
	if errors.As(err, &xe) {
		return xe.Code == code
	}
	return false
}

// ChainUnavailable wraps an RPC failure.
func ChainUnavailable(op string, err error) *X402Error {
	return &X402Error{
		Code:    ErrChainUnavailable,
		Message: fmt.Sprintf("chain unavailable during %s", op),
		Err:     err,
	}
}

// SameAddress compares two hex addresses ignoring checksum case.
func SameAddress(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
