package rpc

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"crashvault/crypto"
	"crashvault/native/crash"
	"crashvault/observability/metrics"
)

type walletRequest struct {
	Wallet string `json:"wallet"`
}

type amountRequest struct {
	Wallet string `json:"wallet"`
	Amount uint64 `json:"amount"`
}

type placeBetRequest struct {
	Wallet  string `json:"wallet"`
	RoundID string `json:"roundId"`
	Amount  uint64 `json:"amount"`
}

type createRoundRequest struct {
	Multiplier uint64 `json:"multiplier"`
	Name       string `json:"name"`
	CreatedAt  uint32 `json:"createdAt"`
}

type resolveRoundRequest struct {
	Crashed bool     `json:"crashed"`
	Bets    []string `json:"bets"`
}

type setTaxRequest struct {
	TaxBps uint16 `json:"taxBps"`
}

type adminAmountRequest struct {
	Amount uint64 `json:"amount"`
}

type userResponse struct {
	Wallet       string `json:"wallet"`
	Balance      uint64 `json:"balance"`
	HasActiveBet bool   `json:"hasActiveBet"`
}

type betResponse struct {
	BetID   string `json:"betId"`
	Owner   string `json:"owner"`
	RoundID string `json:"roundId"`
	Amount  uint64 `json:"amount"`
	Status  string `json:"status"`
	Payout  uint64 `json:"payout"`
}

type roundResponse struct {
	RoundID     string `json:"roundId"`
	Name        string `json:"name"`
	Multiplier  uint64 `json:"multiplier"`
	Status      string `json:"status"`
	Crashed     bool   `json:"crashed"`
	CreatedAt   int64  `json:"createdAt"`
	ResolvedAt  int64  `json:"resolvedAt"`
	TotalBets   uint64 `json:"totalBets"`
	TotalVolume uint64 `json:"totalVolume"`
}

type roundSummaryResponse struct {
	RoundID    string `json:"roundId"`
	CreatedAt  uint32 `json:"createdAt"`
	Name       string `json:"name"`
	Multiplier uint64 `json:"multiplier"`
	Status     string `json:"status"`
	Crashed    bool   `json:"crashed"`
}

func formatAddr(addr crash.Address) string {
	return crypto.NewAddress(append([]byte(nil), addr[:]...)).String()
}

func roundToResponse(round *crash.Round) roundResponse {
	return roundResponse{
		RoundID:     round.ID.String(),
		Name:        round.Name,
		Multiplier:  round.Multiplier,
		Status:      round.Status.String(),
		Crashed:     round.Crashed,
		CreatedAt:   round.CreatedAt,
		ResolvedAt:  round.ResolvedAt,
		TotalBets:   round.TotalBets,
		TotalVolume: round.TotalVolume,
	}
}

func (s *Server) adminCaller(w http.ResponseWriter) (crash.Address, bool) {
	cfg, err := s.engine.GetConfig()
	if err != nil {
		s.writeEngineError(w, err)
		return crash.Address{}, false
	}
	return cfg.Admin, true
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req walletRequest
	if !decodeBody(w, r, &req) {
		return
	}
	wallet, err := parseWallet(req.Wallet)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
		return
	}
	s.mu.Lock()
	id, opErr := s.engine.CreateUser(wallet)
	s.mu.Unlock()
	if opErr != nil {
		s.writeEngineError(w, opErr)
		return
	}
	writeResult(w, http.StatusCreated, map[string]string{"userId": id.String()})
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	wallet, err := parseWallet(req.Wallet)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
		return
	}
	s.mu.Lock()
	opErr := s.engine.Deposit(wallet, req.Amount)
	s.mu.Unlock()
	if opErr != nil {
		s.writeEngineError(w, opErr)
		return
	}
	s.refreshFundsMetrics()
	writeResult(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	wallet, err := parseWallet(req.Wallet)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
		return
	}
	s.mu.Lock()
	opErr := s.engine.Withdraw(wallet, req.Amount)
	s.mu.Unlock()
	if opErr != nil {
		s.writeEngineError(w, opErr)
		return
	}
	s.refreshFundsMetrics()
	writeResult(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePlaceBet(w http.ResponseWriter, r *http.Request) {
	var req placeBetRequest
	if !decodeBody(w, r, &req) {
		return
	}
	wallet, err := parseWallet(req.Wallet)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
		return
	}
	roundID, err := parseID(req.RoundID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
		return
	}
	s.mu.Lock()
	betID, opErr := s.engine.PlaceBet(wallet, roundID, req.Amount)
	s.mu.Unlock()
	if opErr != nil {
		s.writeEngineError(w, opErr)
		return
	}
	metrics.Crash().BetPlaced()
	s.refreshFundsMetrics()
	writeResult(w, http.StatusCreated, map[string]string{"betId": betID.String()})
}

func (s *Server) handleClaimPayout(w http.ResponseWriter, r *http.Request) {
	var req walletRequest
	if !decodeBody(w, r, &req) {
		return
	}
	wallet, err := parseWallet(req.Wallet)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
		return
	}
	betID, err := parseID(chi.URLParam(r, "betID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
		return
	}
	s.mu.Lock()
	payout, opErr := s.engine.ClaimPayout(wallet, betID)
	s.mu.Unlock()
	if opErr != nil {
		s.writeEngineError(w, opErr)
		return
	}
	metrics.Crash().PayoutClaimed(payout)
	writeResult(w, http.StatusOK, map[string]uint64{"payout": payout})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	wallet, err := parseWallet(chi.URLParam(r, "wallet"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
		return
	}
	s.mu.Lock()
	user, opErr := s.engine.GetUser(wallet)
	s.mu.Unlock()
	if opErr != nil {
		s.writeEngineError(w, opErr)
		return
	}
	writeResult(w, http.StatusOK, userResponse{
		Wallet:       formatAddr(wallet),
		Balance:      user.Balance,
		HasActiveBet: user.HasActiveBet,
	})
}

func (s *Server) handleGetBet(w http.ResponseWriter, r *http.Request) {
	betID, err := parseID(chi.URLParam(r, "betID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
		return
	}
	s.mu.Lock()
	bet, opErr := s.engine.GetBet(betID)
	s.mu.Unlock()
	if opErr != nil {
		s.writeEngineError(w, opErr)
		return
	}
	writeResult(w, http.StatusOK, betResponse{
		BetID:   betID.String(),
		Owner:   formatAddr(bet.Owner),
		RoundID: bet.RoundID.String(),
		Amount:  bet.Amount,
		Status:  bet.Status.String(),
		Payout:  bet.Payout,
	})
}

func (s *Server) handleListRounds(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var offset uint64
	if raw := strings.TrimSpace(query.Get("offset")); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_argument", "offset must be a non-negative integer")
			return
		}
		offset = parsed
	}
	limit := 50
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid_argument", "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}
	if limit > 200 {
		limit = 200
	}
	s.mu.Lock()
	summaries, opErr := s.engine.ListRounds(offset, limit)
	total, totalErr := s.engine.TotalRounds()
	s.mu.Unlock()
	if opErr != nil {
		s.writeEngineError(w, opErr)
		return
	}
	if totalErr != nil {
		s.writeEngineError(w, totalErr)
		return
	}
	out := make([]roundSummaryResponse, 0, len(summaries))
	for _, summary := range summaries {
		out = append(out, roundSummaryResponse{
			RoundID:    summary.RoundID.String(),
			CreatedAt:  summary.CreatedAt,
			Name:       summary.Name,
			Multiplier: summary.Multiplier,
			Status:     summary.Status.String(),
			Crashed:    summary.Crashed,
		})
	}
	writeResult(w, http.StatusOK, map[string]interface{}{
		"total":  total,
		"offset": offset,
		"rounds": out,
	})
}

func (s *Server) handleGetRound(w http.ResponseWriter, r *http.Request) {
	createdAt, err := strconv.ParseUint(chi.URLParam(r, "createdAt"), 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", "createdAt must be a 32-bit timestamp")
		return
	}
	s.mu.Lock()
	round, opErr := s.engine.GetRound(uint32(createdAt))
	s.mu.Unlock()
	if opErr != nil {
		s.writeEngineError(w, opErr)
		return
	}
	writeResult(w, http.StatusOK, roundToResponse(round))
}

func (s *Server) handleGetBalances(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	balances, opErr := s.engine.GetBalances()
	s.mu.Unlock()
	if opErr != nil {
		s.writeEngineError(w, opErr)
		return
	}
	metrics.Crash().SetFunds(balances.Vault, balances.Treasury)
	writeResult(w, http.StatusOK, map[string]uint64{
		"vault":    balances.Vault,
		"treasury": balances.Treasury,
	})
}

// --- admin ---

func (s *Server) handleCreateRound(w http.ResponseWriter, r *http.Request) {
	var req createRoundRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, ok := s.adminCaller(w)
	if !ok {
		return
	}
	id, bump := crash.DeriveID(crash.NamespaceRound, crash.Uint32Seed(req.CreatedAt))
	s.mu.Lock()
	round, opErr := s.engine.CreateRound(caller, id, bump, req.Multiplier, req.Name, req.CreatedAt)
	s.mu.Unlock()
	if opErr != nil {
		s.writeEngineError(w, opErr)
		return
	}
	metrics.Crash().RoundCreated()
	writeResult(w, http.StatusCreated, roundToResponse(round))
}

func (s *Server) handleResolveRound(w http.ResponseWriter, r *http.Request) {
	var req resolveRoundRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, ok := s.adminCaller(w)
	if !ok {
		return
	}
	createdAt, err := strconv.ParseUint(chi.URLParam(r, "createdAt"), 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", "createdAt must be a 32-bit timestamp")
		return
	}
	batch := make([]crash.ID, 0, len(req.Bets))
	for _, raw := range req.Bets {
		id, err := parseID(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_argument", "bad bet id: "+err.Error())
			return
		}
		batch = append(batch, id)
	}
	roundID := crash.RoundID(uint32(createdAt))
	s.mu.Lock()
	settled, opErr := s.engine.ResolveRound(caller, roundID, req.Crashed, batch)
	s.mu.Unlock()
	if opErr != nil {
		s.writeEngineError(w, opErr)
		return
	}
	metrics.Crash().RoundResolved(req.Crashed, settled)
	writeResult(w, http.StatusOK, map[string]int{"settled": settled})
}

func (s *Server) handleSetTax(w http.ResponseWriter, r *http.Request) {
	var req setTaxRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, ok := s.adminCaller(w)
	if !ok {
		return
	}
	s.mu.Lock()
	opErr := s.engine.SetTax(caller, req.TaxBps)
	s.mu.Unlock()
	if opErr != nil {
		s.writeEngineError(w, opErr)
		return
	}
	writeResult(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAdminWithdraw(w http.ResponseWriter, r *http.Request) {
	var req adminAmountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, ok := s.adminCaller(w)
	if !ok {
		return
	}
	s.mu.Lock()
	opErr := s.engine.AdminWithdraw(caller, req.Amount)
	s.mu.Unlock()
	if opErr != nil {
		s.writeEngineError(w, opErr)
		return
	}
	s.refreshFundsMetrics()
	writeResult(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAdminDepositBounty(w http.ResponseWriter, r *http.Request) {
	var req adminAmountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, ok := s.adminCaller(w)
	if !ok {
		return
	}
	s.mu.Lock()
	opErr := s.engine.AdminDepositBounty(caller, req.Amount)
	s.mu.Unlock()
	if opErr != nil {
		s.writeEngineError(w, opErr)
		return
	}
	s.refreshFundsMetrics()
	writeResult(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAdminFundWallet(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	wallet, err := parseWallet(req.Wallet)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
		return
	}
	caller, ok := s.adminCaller(w)
	if !ok {
		return
	}
	s.mu.Lock()
	opErr := s.engine.AdminFundWallet(caller, wallet, req.Amount)
	s.mu.Unlock()
	if opErr != nil {
		s.writeEngineError(w, opErr)
		return
	}
	writeResult(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAdminWithdrawTreasury(w http.ResponseWriter, r *http.Request) {
	var req adminAmountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, ok := s.adminCaller(w)
	if !ok {
		return
	}
	s.mu.Lock()
	opErr := s.engine.AdminWithdrawTreasury(caller, req.Amount)
	s.mu.Unlock()
	if opErr != nil {
		s.writeEngineError(w, opErr)
		return
	}
	s.refreshFundsMetrics()
	writeResult(w, http.StatusOK, map[string]string{"status": "ok"})
}
