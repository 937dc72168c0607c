package signing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/walrus-x402/x402/logger"
	"github.com/walrus-x402/x402/types"
)

const wallet = "0x3333333333333333333333333333333333333333"

func newTestIssuer(t *testing.T, secret string) *Issuer {
	t.Helper()
	iss, err := NewIssuer(Config{Secret: secret, Production: true}, nil)
	require.NoError(t, err)
	return iss
}

func TestIssuer_IssueAndVerify(t *testing.T) {
	iss := newTestIssuer(t, "s3cret")
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	iss.now = func() time.Time { return fixed }

	fi, err := iss.Issue("bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi", wallet)
	require.NoError(t, err)

	assert.Equal(t, fixed.UnixMilli(), fi.IssuedAt)
	assert.Equal(t, fixed.Add(time.Hour).UnixMilli(), fi.Expiry)
	assert.Len(t, fi.Nonce, 2+2*nonceSize)
	assert.NotEmpty(t, fi.Signature)

	assert.NoError(t, iss.Verify(fi, fixed.Add(59*time.Minute)))
	assert.ErrorIs(t, iss.Verify(fi, fixed.Add(time.Hour)), ErrExpired)
}

func TestIssuer_AnyFieldMutationInvalidates(t *testing.T) {
	iss := newTestIssuer(t, "s3cret")
	now := time.Now()

	mutations := map[string]func(fi *types.FetchInstruction){
		"blob id":   func(fi *types.FetchInstruction) { fi.BlobID = "other" },
		"wallet":    func(fi *types.FetchInstruction) { fi.UserWallet = "0x4444444444444444444444444444444444444444" },
		"issued at": func(fi *types.FetchInstruction) { fi.IssuedAt++ },
		"expiry":    func(fi *types.FetchInstruction) { fi.Expiry += int64(time.Hour / time.Millisecond) },
		"nonce":     func(fi *types.FetchInstruction) { fi.Nonce = "0x00" },
		"signature": func(fi *types.FetchInstruction) { fi.Signature = "0xdeadbeef" },
		"garbage":   func(fi *types.FetchInstruction) { fi.Signature = "not hex" },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			fi, err := iss.Issue("blob", wallet)
			require.NoError(t, err)
			mutate(fi)
			assert.ErrorIs(t, iss.Verify(fi, now), ErrInvalidSignature)
		})
	}
}

func TestIssuer_SecretSeparatesIssuers(t *testing.T) {
	a := newTestIssuer(t, "secret-a")
	b := newTestIssuer(t, "secret-b")
	sameA := newTestIssuer(t, "secret-a")

	fi, err := a.Issue("blob", wallet)
	require.NoError(t, err)

	assert.ErrorIs(t, b.Verify(fi, time.Now()), ErrInvalidSignature)
	assert.NoError(t, sameA.Verify(fi, time.Now()))
}

func TestIssuer_NoncesDiffer(t *testing.T) {
	iss := newTestIssuer(t, "s3cret")
	first, err := iss.Issue("blob", wallet)
	require.NoError(t, err)
	second, err := iss.Issue("blob", wallet)
	require.NoError(t, err)

	assert.NotEqual(t, first.Nonce, second.Nonce)
	assert.NotEqual(t, first.Signature, second.Signature)
}

func TestNewIssuer_ProductionRequiresSecret(t *testing.T) {
	_, err := NewIssuer(Config{Production: true}, nil)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrConfigError))
}

func TestNewIssuer_DevelopmentFallback(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	iss, err := NewIssuer(Config{}, logger.NewZapLoggerFrom(zap.New(core)))
	require.NoError(t, err)

	assert.Equal(t, 1, logs.FilterMessageSnippet("development secret").Len())
	assert.Equal(t, DefaultTTL, iss.ttl)

	fi, err := iss.Issue("blob", wallet)
	require.NoError(t, err)
	explicit := newTestIssuer(t, devSecret)
	assert.NoError(t, explicit.Verify(fi, time.Now()))
}

func TestIssuer_RejectsEmptyBlob(t *testing.T) {
	iss := newTestIssuer(t, "s3cret")
	_, err := iss.Issue("", wallet)
	assert.True(t, types.IsCode(err, types.ErrInvalidInput))
}
