package crash

import (
	"time"

	"crashvault/core/events"
)

// engineState is the persistence surface the engine mutates. The host is
// expected to apply each engine call atomically: either every put and fund
// transfer commits, or none do.
type engineState interface {
	ConfigGet() (*Config, bool, error)
	ConfigPut(*Config) error
	IndexGet() (*RoundIndex, bool, error)
	IndexPut(*RoundIndex) error
	ChunkGet(chunkID uint64) (*IndexChunk, bool, error)
	ChunkPut(*IndexChunk) error
	UserGet(id ID) (*UserAccount, bool, error)
	UserPut(id ID, user *UserAccount) error
	RoundGet(id ID) (*Round, bool, error)
	RoundPut(round *Round) error
	BetGet(id ID) (*Bet, bool, error)
	BetPut(id ID, bet *Bet) error
	FundsBalance(addr Address) (uint64, error)
	FundsTransfer(from, to Address, amount uint64) error
}

// Engine implements the settlement operations: deposits and withdrawals
// against the vault, the round/bet lifecycle, payout claims and the admin
// treasury moves. Every operation validates fully before the first fund
// transfer or record mutation.
type Engine struct {
	state   engineState
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine creates a settlement engine with a no-op emitter. Callers can
// override the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter. Passing nil resets it to a
// no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source. Primarily intended for tests to
// provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) loadConfig() (*Config, error) {
	cfg, ok, err := e.state.ConfigGet()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotInitialized
	}
	return cfg, nil
}

func (e *Engine) requireAdmin(caller Address) (*Config, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	if caller != cfg.Admin {
		return nil, ErrUnauthorized
	}
	return cfg, nil
}

// Initialize creates the singleton config and the empty round index. It
// may be called exactly once per state.
func (e *Engine) Initialize(admin, vault, treasury Address, taxBps uint16) error {
	if taxBps > MaxTaxBps {
		return ErrTaxTooHigh
	}
	if _, ok, err := e.state.ConfigGet(); err != nil {
		return err
	} else if ok {
		return ErrAlreadyInitialized
	}
	if err := e.state.ConfigPut(&Config{
		Admin:    admin,
		Vault:    vault,
		Treasury: treasury,
		TaxBps:   taxBps,
	}); err != nil {
		return err
	}
	return e.state.IndexPut(&RoundIndex{TotalRounds: 0})
}

// CreateUser initializes a zeroed ledger record for the wallet.
func (e *Engine) CreateUser(wallet Address) (ID, error) {
	if _, err := e.loadConfig(); err != nil {
		return ID{}, err
	}
	id := UserID(wallet)
	if _, ok, err := e.state.UserGet(id); err != nil {
		return ID{}, err
	} else if ok {
		return ID{}, ErrUserExists
	}
	if err := e.state.UserPut(id, &UserAccount{}); err != nil {
		return ID{}, err
	}
	return id, nil
}

// Deposit moves funds from the wallet into the vault pool and credits the
// user's ledger balance.
func (e *Engine) Deposit(wallet Address, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	id := UserID(wallet)
	user, ok, err := e.state.UserGet(id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUserNotFound
	}
	newBalance, err := addChecked(user.Balance, amount)
	if err != nil {
		return err
	}
	if err := e.state.FundsTransfer(wallet, cfg.Vault, amount); err != nil {
		return err
	}
	user.Balance = newBalance
	if err := e.state.UserPut(id, user); err != nil {
		return err
	}
	e.emit(events.Deposited{Owner: wallet, Amount: amount})
	return nil
}

// Withdraw debits the user's ledger balance and moves funds from the vault
// pool back to the wallet. Refused while a bet is in flight so the stake
// backing cannot be pulled out from under an open round.
func (e *Engine) Withdraw(wallet Address, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	id := UserID(wallet)
	user, ok, err := e.state.UserGet(id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUserNotFound
	}
	if user.Balance < amount {
		return ErrInsufficientBalance
	}
	if e.hasActiveBet(user) {
		return ErrActiveBetExists
	}
	newBalance, err := subChecked(user.Balance, amount)
	if err != nil {
		return err
	}
	if err := e.state.FundsTransfer(cfg.Vault, wallet, amount); err != nil {
		return err
	}
	user.Balance = newBalance
	if err := e.state.UserPut(id, user); err != nil {
		return err
	}
	e.emit(events.Withdrawn{Owner: wallet, Amount: amount})
	return nil
}

// hasActiveBet reports whether the user still has a bet in BetPlaced. The
// stored flag is authoritative while the referenced bet is placed;
// resolution does not write the user record, so a flag pointing at a bet
// that has since left BetPlaced is treated as cleared.
func (e *Engine) hasActiveBet(user *UserAccount) bool {
	if !user.HasActiveBet {
		return false
	}
	if user.ActiveBet.IsZero() {
		return true
	}
	bet, ok, err := e.state.BetGet(user.ActiveBet)
	if err != nil || !ok {
		return true
	}
	return bet.Status == BetPlaced
}

// CreateRound opens a new crash round and appends it to the round index.
// The caller supplies the record identity it derived for createdAt; a
// mismatch against the engine's own derivation is fatal.
func (e *Engine) CreateRound(caller Address, id ID, bump uint8, multiplier uint64, name string, createdAt uint32) (*Round, error) {
	if _, err := e.requireAdmin(caller); err != nil {
		return nil, err
	}
	if multiplier < MinMultiplier || multiplier > MaxMultiplier {
		return nil, ErrInvalidMultiplier
	}
	if len(name) == 0 {
		return nil, ErrInvalidName
	}
	if len(name) > MaxRoundNameLen {
		return nil, ErrNameTooLong
	}
	if !VerifyID(id, bump, NamespaceRound, Uint32Seed(createdAt)) {
		return nil, ErrInvalidAddress
	}
	if _, ok, err := e.state.RoundGet(id); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrRoundExists
	}

	index, ok, err := e.state.IndexGet()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotInitialized
	}
	chunkID := index.TotalRounds / ChunkCapacity
	chunk, ok, err := e.state.ChunkGet(chunkID)
	if err != nil {
		return nil, err
	}
	if !ok {
		chunk = &IndexChunk{ChunkID: chunkID}
	}
	if chunk.ChunkID != chunkID {
		return nil, ErrInvalidChunk
	}
	if uint64(len(chunk.Entries)) != index.TotalRounds%ChunkCapacity {
		return nil, ErrInvalidChunk
	}
	newTotal, err := addChecked(index.TotalRounds, 1)
	if err != nil {
		return nil, err
	}

	round := &Round{
		ID:         id,
		Multiplier: multiplier,
		Status:     RoundActive,
		CreatedAt:  int64(createdAt),
		Name:       name,
		Admin:      caller,
	}
	if err := e.state.RoundPut(round); err != nil {
		return nil, err
	}
	chunk.Entries = append(chunk.Entries, IndexEntry{RoundID: id, CreatedAt: createdAt})
	if err := e.state.ChunkPut(chunk); err != nil {
		return nil, err
	}
	index.TotalRounds = newTotal
	if err := e.state.IndexPut(index); err != nil {
		return nil, err
	}
	e.emit(events.RoundCreated{
		RoundID:    id,
		Admin:      caller,
		Multiplier: multiplier,
		Name:       name,
		CreatedAt:  createdAt,
	})
	return round.Clone(), nil
}

// PlaceBet stakes amount from the user's ledger balance into the round.
// The tax share of the stake moves from the vault into the treasury; the
// recorded stake and round volume are net of tax.
func (e *Engine) PlaceBet(wallet Address, roundID ID, amount uint64) (ID, error) {
	if amount == 0 {
		return ID{}, ErrInvalidAmount
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return ID{}, err
	}
	userID := UserID(wallet)
	user, ok, err := e.state.UserGet(userID)
	if err != nil {
		return ID{}, err
	}
	if !ok {
		return ID{}, ErrUserNotFound
	}
	round, ok, err := e.state.RoundGet(roundID)
	if err != nil {
		return ID{}, err
	}
	if !ok {
		return ID{}, ErrRoundNotFound
	}
	if round.Status != RoundActive {
		return ID{}, ErrRoundNotActive
	}
	if user.Balance < amount {
		return ID{}, ErrInsufficientBalance
	}
	if e.hasActiveBet(user) {
		return ID{}, ErrActiveBetExists
	}
	betID := BetID(wallet, roundID)
	if _, ok, err := e.state.BetGet(betID); err != nil {
		return ID{}, err
	} else if ok {
		return ID{}, ErrBetExists
	}

	taxProduct, err := mulChecked(amount, uint64(cfg.TaxBps))
	if err != nil {
		return ID{}, err
	}
	tax := taxProduct / TaxDivisor
	netStake, err := subChecked(amount, tax)
	if err != nil {
		return ID{}, err
	}
	newBalance, err := subChecked(user.Balance, amount)
	if err != nil {
		return ID{}, err
	}
	newTotalBets, err := addChecked(round.TotalBets, 1)
	if err != nil {
		return ID{}, err
	}
	newVolume, err := addChecked(round.TotalVolume, netStake)
	if err != nil {
		return ID{}, err
	}

	if tax > 0 {
		if err := e.state.FundsTransfer(cfg.Vault, cfg.Treasury, tax); err != nil {
			return ID{}, err
		}
	}
	user.Balance = newBalance
	user.HasActiveBet = true
	user.ActiveBet = betID
	if err := e.state.UserPut(userID, user); err != nil {
		return ID{}, err
	}
	if err := e.state.BetPut(betID, &Bet{
		Owner:   wallet,
		Amount:  netStake,
		Status:  BetPlaced,
		RoundID: roundID,
	}); err != nil {
		return ID{}, err
	}
	round.TotalBets = newTotalBets
	round.TotalVolume = newVolume
	if err := e.state.RoundPut(round); err != nil {
		return ID{}, err
	}
	e.emit(events.BetPlaced{
		BetID:    betID,
		RoundID:  roundID,
		Owner:    wallet,
		Stake:    amount,
		Tax:      tax,
		NetStake: netStake,
	})
	return betID, nil
}

// ResolveRound finalizes the round outcome and fixes the payout owed on
// each bet in the caller-supplied batch. Handles that do not resolve to a
// placed bet of this round are skipped silently, so the caller may cover a
// large round across several calls and repeat batches without harm: the
// first call fixes the outcome, later calls carrying the same outcome
// settle whatever placed bets remain. Payouts are computed for the whole
// batch before anything is written, so a payout overflow rejects the call
// with no state change. The user ledgers are untouched; payouts move only
// at claim time.
func (e *Engine) ResolveRound(caller Address, roundID ID, crashed bool, batch []ID) (int, error) {
	if _, err := e.requireAdmin(caller); err != nil {
		return 0, err
	}
	round, ok, err := e.state.RoundGet(roundID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrRoundNotFound
	}
	switch round.Status {
	case RoundActive:
	case RoundResolved:
		// Continuation batch. The recorded outcome is immutable.
		if round.Crashed != crashed {
			return 0, ErrRoundNotActive
		}
	default:
		return 0, ErrRoundNotActive
	}

	// First pass computes every payout; nothing is persisted until the
	// whole batch is known to settle cleanly.
	type settlement struct {
		handle ID
		bet    *Bet
	}
	pending := make([]settlement, 0, len(batch))
	seen := make(map[ID]bool, len(batch))
	for _, handle := range batch {
		if seen[handle] {
			continue
		}
		bet, ok, err := e.state.BetGet(handle)
		if err != nil || !ok {
			continue
		}
		if BetID(bet.Owner, bet.RoundID) != handle {
			continue
		}
		if bet.Status != BetPlaced {
			continue
		}
		if bet.RoundID != round.ID {
			continue
		}
		if crashed {
			bet.Payout = 0
		} else {
			product, err := mulChecked(bet.Amount, round.Multiplier)
			if err != nil {
				return 0, err
			}
			bet.Payout = product / MultiplierDivisor
		}
		bet.Status = BetResolved
		seen[handle] = true
		pending = append(pending, settlement{handle: handle, bet: bet})
	}

	if round.Status == RoundActive {
		round.Status = RoundResolved
		round.Crashed = crashed
		round.ResolvedAt = e.now()
		if err := e.state.RoundPut(round); err != nil {
			return 0, err
		}
	}
	settled := 0
	for _, item := range pending {
		if err := e.state.BetPut(item.handle, item.bet); err != nil {
			return settled, err
		}
		settled++
	}
	e.emit(events.RoundResolved{
		RoundID:    roundID,
		Crashed:    crashed,
		ResolvedAt: round.ResolvedAt,
		Settled:    settled,
	})
	return settled, nil
}

// ClaimPayout credits a resolved bet's payout into the owner's ledger
// balance exactly once.
func (e *Engine) ClaimPayout(caller Address, betID ID) (uint64, error) {
	if _, err := e.loadConfig(); err != nil {
		return 0, err
	}
	bet, ok, err := e.state.BetGet(betID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrBetNotFound
	}
	if bet.Status == BetPlaced {
		return 0, ErrBetStillActive
	}
	if bet.Status == BetClaimed {
		return 0, ErrAlreadyClaimed
	}
	if bet.Payout == 0 {
		return 0, ErrNoPayout
	}
	if caller != bet.Owner {
		return 0, ErrUnauthorized
	}
	userID := UserID(bet.Owner)
	user, ok, err := e.state.UserGet(userID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrUserNotFound
	}
	newBalance, err := addChecked(user.Balance, bet.Payout)
	if err != nil {
		return 0, err
	}
	user.Balance = newBalance
	if user.ActiveBet == betID {
		user.HasActiveBet = false
		user.ActiveBet = ID{}
	}
	if err := e.state.UserPut(userID, user); err != nil {
		return 0, err
	}
	bet.Status = BetClaimed
	if err := e.state.BetPut(betID, bet); err != nil {
		return 0, err
	}
	e.emit(events.PayoutClaimed{BetID: betID, Owner: bet.Owner, Payout: bet.Payout})
	return bet.Payout, nil
}

// AdminWithdraw moves funds from the vault to the admin.
func (e *Engine) AdminWithdraw(caller Address, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	cfg, err := e.requireAdmin(caller)
	if err != nil {
		return err
	}
	return e.state.FundsTransfer(cfg.Vault, caller, amount)
}

// AdminDepositBounty moves funds from the admin into the vault, topping up
// the pool that backs payouts beyond collected stakes.
func (e *Engine) AdminDepositBounty(caller Address, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	cfg, err := e.requireAdmin(caller)
	if err != nil {
		return err
	}
	return e.state.FundsTransfer(caller, cfg.Vault, amount)
}

// AdminFundWallet moves funds from the admin to a user wallet. Wallets
// hold no funds of their own when the ledger boots, so this is how the
// operator seeds the balances users later deposit.
func (e *Engine) AdminFundWallet(caller, wallet Address, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	if _, err := e.requireAdmin(caller); err != nil {
		return err
	}
	return e.state.FundsTransfer(caller, wallet, amount)
}

// SetTax updates the stake tax rate.
func (e *Engine) SetTax(caller Address, taxBps uint16) error {
	cfg, err := e.requireAdmin(caller)
	if err != nil {
		return err
	}
	if taxBps > MaxTaxBps {
		return ErrTaxTooHigh
	}
	cfg.TaxBps = taxBps
	if err := e.state.ConfigPut(cfg); err != nil {
		return err
	}
	e.emit(events.TaxUpdated{Admin: caller, TaxBps: taxBps})
	return nil
}

// AdminWithdrawTreasury moves accumulated tax from the treasury to the
// admin.
func (e *Engine) AdminWithdrawTreasury(caller Address, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	cfg, err := e.requireAdmin(caller)
	if err != nil {
		return err
	}
	return e.state.FundsTransfer(cfg.Treasury, caller, amount)
}

// GetUser returns the ledger record for a wallet.
func (e *Engine) GetUser(wallet Address) (*UserAccount, error) {
	user, ok, err := e.state.UserGet(UserID(wallet))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUserNotFound
	}
	return user.Clone(), nil
}

// GetBet returns the wager record stored under betID.
func (e *Engine) GetBet(betID ID) (*Bet, error) {
	bet, ok, err := e.state.BetGet(betID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrBetNotFound
	}
	return bet.Clone(), nil
}

// GetConfig returns a copy of the administrative configuration.
func (e *Engine) GetConfig() (*Config, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	return cfg.Clone(), nil
}

// GetBalances reports the current vault and treasury fund levels.
func (e *Engine) GetBalances() (*Balances, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	vault, err := e.state.FundsBalance(cfg.Vault)
	if err != nil {
		return nil, err
	}
	treasury, err := e.state.FundsBalance(cfg.Treasury)
	if err != nil {
		return nil, err
	}
	return &Balances{Vault: vault, Treasury: treasury}, nil
}
