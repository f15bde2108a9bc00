// Package api serves the read-only publication surface: the current root,
// per-address claims with proofs, and vesting status.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jonboulle/clockwork"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"

	"github.com/unicornultrafoundation/go-u2u-distribution/claimledger"
	"github.com/unicornultrafoundation/go-u2u-distribution/distribution"
	"github.com/unicornultrafoundation/go-u2u-distribution/logger"
	"github.com/unicornultrafoundation/go-u2u-distribution/vesting"
)

// Config of the HTTP listener.
type Config struct {
	ListenAddr  string
	CorsOrigins []string
	// ShutdownTimeout bounds the graceful shutdown.
	ShutdownTimeout time.Duration
}

// DefaultConfig listens on localhost only.
func DefaultConfig() Config {
	return Config{
		ListenAddr:      "127.0.0.1:18545",
		CorsOrigins:     []string{"*"},
		ShutdownTimeout: 5 * time.Second,
	}
}

// Server exposes a ledger, its current commitment and an escrow over HTTP.
// Any of them may be nil; their routes then answer 404.
type Server struct {
	cfg    Config
	ledger *claimledger.Ledger
	escrow *vesting.Escrow
	clock  clockwork.Clock

	mu  sync.RWMutex
	com *distribution.Commitment

	logger.Instance
}

// New returns a server over the given components.
func New(cfg Config, ledger *claimledger.Ledger, escrow *vesting.Escrow, clock clockwork.Clock) *Server {
	return &Server{
		cfg:      cfg,
		ledger:   ledger,
		escrow:   escrow,
		clock:    clock,
		Instance: logger.New("api"),
	}
}

// SetCommitment replaces the commitment claims are served from.
func (s *Server) SetCommitment(com *distribution.Commitment) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.com = com
}

func (s *Server) commitment() *distribution.Commitment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.com
}

// Handler returns the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	router := httprouter.New()
	router.GET("/root", s.handleRoot)
	router.GET("/claims/:address", s.handleClaim)
	router.GET("/vesting", s.handleSupply)
	router.GET("/vesting/:address", s.handleVesting)
	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})

	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.CorsOrigins,
		AllowedMethods: []string{http.MethodGet},
		MaxAge:         600,
	})
	return c.Handler(router)
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(ln)
	}()
	s.Log.Info("HTTP server started", "endpoint", ln.Addr())

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.Log.Info("HTTP server stopped")
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func parseAddress(w http.ResponseWriter, ps httprouter.Params) (common.Address, bool) {
	raw := ps.ByName("address")
	if !common.IsHexAddress(raw) {
		writeError(w, http.StatusBadRequest, "invalid address")
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}
