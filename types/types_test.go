package types

import (
	"math/big"
	"net/http"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToSmallestUnit(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		decimals int32
		want     string
		wantErr  bool
	}{
		{name: "usdc half", amount: "0.5", decimals: 6, want: "500000"},
		{name: "eth fee", amount: "0.0001", decimals: 18, want: "100000000000000"},
		{name: "whole", amount: "3", decimals: 0, want: "3"},
		{name: "too precise", amount: "0.0000001", decimals: 6, wantErr: true},
		{name: "negative", amount: "-1", decimals: 6, wantErr: true},
		{name: "garbage", amount: "abc", decimals: 6, wantErr: true},
		{name: "empty", amount: "", decimals: 6, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToSmallestUnit(tt.amount, tt.decimals)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestEntitlementActive(t *testing.T) {
	now := int64(1_700_000_000)

	assert.True(t, Entitlement{Kind: EntitlementFree}.Active(now))
	assert.True(t, Entitlement{Kind: EntitlementOwner}.Active(now))
	assert.True(t, Entitlement{Kind: EntitlementRental, Expiry: now + 1}.Active(now))
	assert.False(t, Entitlement{Kind: EntitlementRental, Expiry: now}.Active(now), "window is closed-open")
	assert.False(t, Entitlement{Kind: EntitlementRental, Expiry: now - 1}.Active(now))
	assert.False(t, Entitlement{Kind: EntitlementRental}.Active(now))
	assert.True(t, Entitlement{Kind: EntitlementSubscription}.Active(now))
	assert.False(t, Entitlement{Kind: EntitlementSubscription, Expiry: now}.Active(now))
	assert.False(t, Entitlement{Kind: EntitlementNone}.Active(now))
}

func TestContentRecordPrice(t *testing.T) {
	rec := &ContentRecord{FullPrice: big.NewInt(1000), RentPrice: big.NewInt(100)}
	assert.Equal(t, "100", rec.Price().String())

	rec.RentPrice = big.NewInt(0)
	assert.Equal(t, "1000", rec.Price().String())

	rec.RentPrice = nil
	rec.FullPrice = nil
	assert.Equal(t, "0", rec.Price().String())
}

func TestX402ErrorHTTPStatus(t *testing.T) {
	codes := map[string]int{
		ErrInvalidInput:     http.StatusBadRequest,
		ErrUnauthenticated:  http.StatusUnauthorized,
		ErrAccessDenied:     http.StatusForbidden,
		ErrPaymentRequired:  http.StatusPaymentRequired,
		ErrNotFound:         http.StatusNotFound,
		ErrChainUnavailable: http.StatusServiceUnavailable,
		ErrConfigError:      http.StatusInternalServerError,
	}
	for code, status := range codes {
		assert.Equal(t, status, (&X402Error{Code: code}).HTTPStatus(), code)
	}
}

func TestChallengeUsesDecimalStrings(t *testing.T) {
	amount, ok := new(big.Int).SetString("123456789012345678901234567890", 10)
	require.True(t, ok)

	req := &PaymentRequirement{
		Recipient: common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		Amount:    amount,
		Token:     NativeToken,
		ChainID:   NetworkBaseSepolia.ChainID(),
	}
	ch := req.Challenge()
	assert.Equal(t, "123456789012345678901234567890", ch.Amount)
	assert.Equal(t, uint64(84532), ch.ChainID)
	assert.True(t, SameAddress(ch.Recipient, "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"))
	assert.True(t, req.IsNative())
}

func TestParseAmount(t *testing.T) {
	n, err := ParseAmount("500000")
	require.NoError(t, err)
	assert.Equal(t, "500000", n.String())

	for _, bad := range []string{"", "0.5", "-1", "1e6"} {
		_, err := ParseAmount(bad)
		assert.Error(t, err, bad)
	}
}

func TestNetworkTable(t *testing.T) {
	assert.Equal(t, uint64(8453), NetworkBase.ChainID())
	assert.False(t, NetworkBase.IsTestnet())
	assert.True(t, NetworkBaseSepolia.IsTestnet())
	assert.False(t, Network("polygon").IsKnown())
	assert.Zero(t, Network("polygon").ChainID())
}
