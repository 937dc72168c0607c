// Package server exposes the access gate over HTTP.
package server

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/walrus-x402/x402/logger"
	"github.com/walrus-x402/x402/types"
)

const (
	HeaderPayment  = "X-PAYMENT"
	HeaderUploadID = "X-UPLOAD-ID"
)

// Authorizer is the access engine as seen by the handlers.
type Authorizer interface {
	Authorize(ctx context.Context, wallet common.Address, contentID *big.Int, proof types.PaymentProof) (*types.AccessDecision, error)
	UploadChallenge() (*types.PaymentChallenge, error)
	AuthorizeUpload(ctx context.Context, uploadID string, proof types.PaymentProof) (*types.AccessDecision, error)
}

type Deps struct {
	Engine Authorizer
	Auth   *JWTAuthenticator

	// Limiter guards /api; nil disables rate limiting.
	Limiter *RateLimiter

	// Gatherer backs /metrics; nil leaves the route unmounted.
	Gatherer prometheus.Gatherer

	Logger logger.Logger

	// TrustBodyWallet lets the body's userWallet override the token's wallet.
	TrustBodyWallet bool
}

type Server struct {
	engine          Authorizer
	log             logger.Logger
	trustBodyWallet bool
	router          chi.Router
}

// ErrNoAuthenticator is returned by New when Deps.Auth is nil.
var ErrNoAuthenticator = errors.New("server: authenticator is required")

func New(d Deps) (*Server, error) {
	if d.Auth == nil {
		return nil, ErrNoAuthenticator
	}

	s := &Server{
		engine:          d.Engine,
		log:             logger.OrNoop(d.Logger),
		trustBodyWallet: d.TrustBodyWallet,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		if d.Limiter != nil {
			r.Use(d.Limiter.Middleware)
		}

		r.With(d.Auth.Middleware).Post("/content/{id}/authorize", s.handleAuthorize)

		r.Post("/upload/init", s.handleUploadInit)
		r.Post("/upload/complete", s.handleUploadComplete)
	})

	s.router = r
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.log.Info("http request", map[string]any{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
			"remote":     r.RemoteAddr,
		})
	})
}
