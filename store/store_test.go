package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	hash    = "0x9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"
	walletA = "0x3333333333333333333333333333333333333333"
	walletB = "0x4444444444444444444444444444444444444444"
)

func newRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s := NewRedisStoreFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), ttl)
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func backends(t *testing.T) map[string]ProofStore {
	t.Helper()
	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "claims.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	redisStore, _ := newRedisStore(t, 0)

	return map[string]ProofStore{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
		"redis":  redisStore,
	}
}

func TestProofStore_FirstUseBinding(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, s.Claim(ctx, hash, ContentBinding("7", walletA)))
			assert.NoError(t, s.Claim(ctx, hash, ContentBinding("7", walletA)), "same binding is an idempotent retry")
			assert.NoError(t, s.Claim(ctx, hash, ContentBinding("7", strings.ToUpper(walletA))), "wallet case is ignored")
			assert.ErrorIs(t, s.Claim(ctx, hash, ContentBinding("7", walletB)), ErrProofReused)
			assert.ErrorIs(t, s.Claim(ctx, hash, ContentBinding("8", walletA)), ErrProofReused)
			assert.ErrorIs(t, s.Claim(ctx, hash, UploadBinding("7")), ErrProofReused)
		})
	}
}

func TestProofStore_HashCaseInsensitive(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, s.Claim(ctx, hash, ContentBinding("1", walletA)))
			upper := "0x" + strings.ToUpper(hash[2:])
			assert.ErrorIs(t, s.Claim(ctx, upper, ContentBinding("2", walletA)), ErrProofReused)
		})
	}
}

func TestProofStore_ConcurrentClaimsHaveOneWinner(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			var wins atomic.Int32
			var wg sync.WaitGroup
			for i := 0; i < 16; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					if err := s.Claim(context.Background(), hash, ContentBinding(fmt.Sprint(i), walletA)); err == nil {
						wins.Add(1)
					}
				}(i)
			}
			wg.Wait()
			assert.Equal(t, int32(1), wins.Load())
		})
	}
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "claims.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Claim(ctx, hash, ContentBinding("7", walletA)))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()
	assert.ErrorIs(t, reopened.Claim(ctx, hash, ContentBinding("8", walletA)), ErrProofReused)
}

func TestRedisStore_ClaimTTL(t *testing.T) {
	s, mr := newRedisStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, s.Claim(ctx, hash, ContentBinding("7", walletA)))
	assert.Equal(t, time.Minute, mr.TTL(redisKeyPrefix+hash))
	assert.ErrorIs(t, s.Claim(ctx, hash, ContentBinding("8", walletA)), ErrProofReused)

	mr.FastForward(2 * time.Minute)
	assert.NoError(t, s.Claim(ctx, hash, ContentBinding("8", walletA)), "expired claims are released")
}

func TestRedisStore_Unavailable(t *testing.T) {
	s, mr := newRedisStore(t, 0)
	mr.Close()

	err := s.Claim(context.Background(), hash, ContentBinding("7", walletA))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrProofReused)
}
