package rpc

import (
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"crashvault/core/state"
	"crashvault/crypto"
	"crashvault/native/crash"
	"crashvault/observability/metrics"
)

const maxRequestBytes = 1 << 20 // 1 MiB

// Server exposes the settlement engine over HTTP/JSON. A single mutex
// serializes settlement operations, providing the per-operation atomicity
// and record locking the engine assumes of its host.
type Server struct {
	engine     *crash.Engine
	log        *slog.Logger
	adminToken string
	limiter    *rate.Limiter

	mu sync.Mutex
}

// NewServer wires an engine into an HTTP server. adminToken guards the
// admin route group; an empty token disables those routes.
func NewServer(engine *crash.Engine, log *slog.Logger, adminToken string, requestsPerMin int) *Server {
	if requestsPerMin <= 0 {
		requestsPerMin = 600
	}
	return &Server{
		engine:     engine,
		log:        log,
		adminToken: strings.TrimSpace(adminToken),
		limiter:    rate.NewLimiter(rate.Limit(float64(requestsPerMin)/60.0), requestsPerMin),
	}
}

// Router assembles the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(s.rateLimit)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/users", s.handleCreateUser)
		r.Post("/deposit", s.handleDeposit)
		r.Post("/withdraw", s.handleWithdraw)
		r.Post("/bets", s.handlePlaceBet)
		r.Post("/bets/{betID}/claim", s.handleClaimPayout)
		r.Get("/bets/{betID}", s.handleGetBet)
		r.Get("/users/{wallet}", s.handleGetUser)
		r.Get("/rounds", s.handleListRounds)
		r.Get("/rounds/{createdAt}", s.handleGetRound)
		r.Get("/balances", s.handleGetBalances)

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.requireAdminToken)
			r.Post("/rounds", s.handleCreateRound)
			r.Post("/rounds/{createdAt}/resolve", s.handleResolveRound)
			r.Post("/tax", s.handleSetTax)
			r.Post("/vault/withdraw", s.handleAdminWithdraw)
			r.Post("/vault/bounty", s.handleAdminDepositBounty)
			r.Post("/wallets/fund", s.handleAdminFundWallet)
			r.Post("/treasury/withdraw", s.handleAdminWithdrawTreasury)
		})
	})
	return r
}

// Start runs the HTTP server on addr.
func (s *Server) Start(addr string) error {
	s.log.Info("starting settlement RPC", "addr", addr)
	return http.ListenAndServe(addr, s.Router())
}

// --- middleware ---

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAdminToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.adminToken == "" {
			writeError(w, http.StatusForbidden, "admin_disabled", "admin RPC is not configured")
			return
		}
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}
		token := strings.TrimSpace(header[len(prefix):])
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.adminToken)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- helpers ---

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]errorBody{"error": {Code: code, Message: message}})
}

func writeResult(w http.ResponseWriter, status int, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(result)
}

func decodeBody(w http.ResponseWriter, r *http.Request, out interface{}) bool {
	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body: "+err.Error())
		return false
	}
	return true
}

func parseWallet(raw string) (crash.Address, error) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(raw))
	if err != nil {
		return crash.Address{}, err
	}
	return addr.Raw(), nil
}

func parseID(raw string) (crash.ID, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return crash.ID{}, err
	}
	if len(decoded) != 32 {
		return crash.ID{}, errors.New("record id must be 32 bytes")
	}
	var id crash.ID
	copy(id[:], decoded)
	return id, nil
}

// writeEngineError maps engine sentinels onto HTTP statuses with stable
// machine-readable codes.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"
	switch {
	case errors.Is(err, crash.ErrUnauthorized):
		status, code = http.StatusForbidden, "unauthorized"
	case errors.Is(err, crash.ErrInvalidAmount),
		errors.Is(err, crash.ErrInvalidMultiplier),
		errors.Is(err, crash.ErrInvalidName),
		errors.Is(err, crash.ErrNameTooLong),
		errors.Is(err, crash.ErrTaxTooHigh):
		status, code = http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, crash.ErrUserNotFound),
		errors.Is(err, crash.ErrRoundNotFound),
		errors.Is(err, crash.ErrBetNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, crash.ErrAlreadyInitialized),
		errors.Is(err, crash.ErrUserExists),
		errors.Is(err, crash.ErrRoundExists),
		errors.Is(err, crash.ErrBetExists),
		errors.Is(err, crash.ErrActiveBetExists),
		errors.Is(err, crash.ErrRoundNotActive),
		errors.Is(err, crash.ErrBetStillActive),
		errors.Is(err, crash.ErrAlreadyClaimed),
		errors.Is(err, crash.ErrNoPayout),
		errors.Is(err, crash.ErrInsufficientBalance),
		errors.Is(err, state.ErrInsufficientFunds):
		status, code = http.StatusConflict, "conflict"
	case errors.Is(err, crash.ErrMathOverflow):
		status, code = http.StatusUnprocessableEntity, "overflow"
	case errors.Is(err, crash.ErrInvalidAddress),
		errors.Is(err, crash.ErrInvalidChunk):
		status, code = http.StatusUnprocessableEntity, "address_integrity"
	case errors.Is(err, crash.ErrNotInitialized):
		status, code = http.StatusServiceUnavailable, "not_initialized"
	}
	if status >= http.StatusInternalServerError {
		s.log.Error("settlement operation failed", "err", err)
	}
	writeError(w, status, code, err.Error())
}

func (s *Server) refreshFundsMetrics() {
	balances, err := s.engine.GetBalances()
	if err != nil {
		return
	}
	metrics.Crash().SetFunds(balances.Vault, balances.Treasury)
}
