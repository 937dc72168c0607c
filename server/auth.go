package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"

	"github.com/walrus-x402/x402/types"
	"github.com/walrus-x402/x402/utils"
)

var (
	ErrMissingToken = errors.New("missing authorization token")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

type contextKey string

const identityContextKey contextKey = "identity"

// Identity is the caller as established by a verified bearer token.
type Identity struct {
	Subject string

	// Wallet is the zero address when the token names no wallet.
	Wallet common.Address
}

type identityClaims struct {
	Wallet string `json:"wallet,omitempty"`
	jwt.RegisteredClaims
}

// JWTAuthenticator validates HS256 identity tokens.
type JWTAuthenticator struct {
	secret []byte
}

func NewJWTAuthenticator(secret string) *JWTAuthenticator {
	return &JWTAuthenticator{secret: []byte(secret)}
}

// ValidateToken verifies the token and extracts the caller. The wallet is
// taken from the "wallet" claim, or from "sub" when that is an address.
func (j *JWTAuthenticator) ValidateToken(tokenString string) (*Identity, error) {
	var claims identityClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return j.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	id := &Identity{Subject: claims.Subject}
	switch {
	case claims.Wallet != "":
		w, err := utils.ParseAddress(claims.Wallet)
		if err != nil {
			return nil, ErrInvalidToken
		}
		id.Wallet = w
	case utils.IsAddress(claims.Subject):
		id.Wallet = common.HexToAddress(claims.Subject)
	}
	return id, nil
}

// Middleware rejects requests without a valid bearer token and stores the
// Identity in the request context.
func (j *JWTAuthenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, unauthenticated(ErrMissingToken))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeError(w, unauthenticated(ErrInvalidToken))
			return
		}

		id, err := j.ValidateToken(parts[1])
		if err != nil {
			writeError(w, unauthenticated(err))
			return
		}

		ctx := context.WithValue(r.Context(), identityContextKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IdentityFromContext returns the caller stored by Middleware.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(*Identity)
	return id, ok
}

func unauthenticated(err error) *types.X402Error {
	return &types.X402Error{Code: types.ErrUnauthenticated, Message: err.Error()}
}
