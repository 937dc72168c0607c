// Package store records which authorization each payment proof was first
// used for, so a single transaction cannot unlock unrelated resources.
package store

import (
	"context"
	"errors"
	"strings"
)

// ErrProofReused is returned when a proof is already bound to a different resource.
var ErrProofReused = errors.New("payment proof already used for another resource")

// ProofStore binds a transaction hash to the resource it first paid for.
//
// Claim succeeds when the hash is unseen (binding it) or already bound to
// the same binding; the latter keeps client retries idempotent.
type ProofStore interface {
	Claim(ctx context.Context, txHash, binding string) error
	Close() error
}

// normalize makes hex-case variants of one hash the same key.
func normalize(txHash string) string {
	return strings.ToLower(strings.TrimSpace(txHash))
}

// ContentBinding scopes a proof to one content item and one wallet.
func ContentBinding(contentID, wallet string) string {
	return "content:" + contentID + ":" + strings.ToLower(wallet)
}

func UploadBinding(uploadID string) string {
	return "upload:" + uploadID
}
