package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walrus-x402/x402/types"
)

func TestIsTxHash(t *testing.T) {
	valid := "0x" + strings.Repeat("ab", 32)

	assert.True(t, IsTxHash(valid))
	assert.True(t, IsTxHash("0x"+strings.ToUpper(valid[2:])))
	assert.False(t, IsTxHash(valid[2:]), "missing prefix")
	assert.False(t, IsTxHash(valid[:65]), "short")
	assert.False(t, IsTxHash(valid+"00"), "long")
	assert.False(t, IsTxHash("0x"+strings.Repeat("zz", 32)), "not hex")
	assert.False(t, IsTxHash(""))
}

func TestParseContentID(t *testing.T) {
	id, err := ParseContentID("42")
	require.NoError(t, err)
	assert.Equal(t, "42", id.String())

	for _, bad := range []string{"", "-1", "0x2a", "abc", strings.Repeat("9", 79)} {
		_, err := ParseContentID(bad)
		assert.Error(t, err, bad)
	}
}

func TestBlobIDFromMetadataURI(t *testing.T) {
	const c = "bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi"

	tests := []struct {
		uri    string
		want   string
		wantOK bool
	}{
		{"ipfs://" + c, c, true},
		{"ipfs://" + c + "/metadata.json", c, true},
		{"https://gateway.lighthouse.storage/ipfs/" + c, c, true},
		{"https://example.com/meta.json", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := BlobIDFromMetadataURI(tt.uri)
		assert.Equal(t, tt.wantOK, ok, tt.uri)
		assert.Equal(t, tt.want, got, tt.uri)
	}
}

func TestParseAuthorizeRequest(t *testing.T) {
	req, err := ParseAuthorizeRequest(strings.NewReader(`{"userWallet":"0x70997970C51812dc3A010C7d01b50e0d17dc79C8"}`))
	require.NoError(t, err)
	assert.Equal(t, "0x70997970C51812dc3A010C7d01b50e0d17dc79C8", req.UserWallet)

	req, err = ParseAuthorizeRequest(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, req.UserWallet)

	_, err = ParseAuthorizeRequest(strings.NewReader(`{"creatorAddress":"not-an-address"}`))
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrInvalidInput))

	_, err = ParseAuthorizeRequest(strings.NewReader(`{`))
	assert.True(t, types.IsCode(err, types.ErrInvalidInput))
}
