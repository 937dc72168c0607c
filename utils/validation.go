package utils

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ipfs/go-cid"
)

var (
	txHashPattern    = regexp.MustCompile("^0x[0-9a-fA-F]{64}$")
	contentIDPattern = regexp.MustCompile("^[0-9]{1,78}$")
)

// IsTxHash reports whether s is a 0x-prefixed 32-byte hex transaction hash.
func IsTxHash(s string) bool {
	return txHashPattern.MatchString(s)
}

// IsAddress reports whether s is a 0x-prefixed 20-byte hex address.
// Checksum case is not enforced.
func IsAddress(s string) bool {
	return strings.HasPrefix(s, "0x") && common.IsHexAddress(s)
}

// ParseAddress validates and converts a hex address.
func ParseAddress(s string) (common.Address, error) {
	if !IsAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

// ParseContentID converts a registry content id path parameter.
func ParseContentID(s string) (*big.Int, error) {
	if !contentIDPattern.MatchString(s) {
		return nil, fmt.Errorf("invalid content id %q", s)
	}
	id, ok := new(big.Int).SetString(s, 10)
	if !ok || id.BitLen() > 256 {
		return nil, fmt.Errorf("invalid content id %q", s)
	}
	return id, nil
}

// BlobIDFromMetadataURI extracts the content-addressed id from a metadata URI
// (ipfs://<cid>[/path] or .../ipfs/<cid>). ok is false when no CID is present.
func BlobIDFromMetadataURI(uri string) (string, bool) {
	s := strings.TrimSpace(uri)
	switch {
	case strings.HasPrefix(s, "ipfs://"):
		s = strings.TrimPrefix(s, "ipfs://")
	case strings.Contains(s, "/ipfs/"):
		s = s[strings.Index(s, "/ipfs/")+len("/ipfs/"):]
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}

	c, err := cid.Decode(s)
	if err != nil {
		return "", false
	}
	return c.String(), true
}
