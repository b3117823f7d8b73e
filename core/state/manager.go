package state

import (
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"crashvault/native/crash"
	"crashvault/storage"
)

// ErrInsufficientFunds is returned when a fund transfer would overdraw the
// source account.
var ErrInsufficientFunds = errors.New("state: insufficient funds")

var (
	configKey   = ethcrypto.Keccak256([]byte("crash/config"))
	indexKey    = ethcrypto.Keccak256([]byte("crash/index"))
	chunkPrefix = []byte("crash/chunk/")
	userPrefix  = []byte("crash/user/")
	roundPrefix = []byte("crash/game/")
	betPrefix   = []byte("crash/bet/")
	fundsPrefix = []byte("funds/")
)

func prefixedKey(prefix, raw []byte) []byte {
	buf := make([]byte, len(prefix)+len(raw))
	copy(buf, prefix)
	copy(buf[len(prefix):], raw)
	return ethcrypto.Keccak256(buf)
}

// Manager persists settlement records in a key-value store. Records are
// RLP encoded under keccak-hashed prefixed keys; a record is never
// deleted, only overwritten.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func (m *Manager) load(key []byte, out interface{}) (bool, error) {
	data, err := m.db.Get(key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("state: decode record: %w", err)
	}
	return true, nil
}

func (m *Manager) store(key []byte, in interface{}) error {
	data, err := rlp.EncodeToBytes(in)
	if err != nil {
		return fmt.Errorf("state: encode record: %w", err)
	}
	return m.db.Put(key, data)
}

// --- stored record shapes ---
//
// RLP carries unsigned integers only, so signed timestamps are widened on
// the way in and narrowed on the way out.

type storedConfig struct {
	Admin    [20]byte
	Vault    [20]byte
	Treasury [20]byte
	TaxBps   uint16
}

type storedUser struct {
	Balance      uint64
	HasActiveBet bool
	ActiveBet    [32]byte
}

type storedRound struct {
	ID          [32]byte
	Multiplier  uint64
	Status      uint8
	Crashed     bool
	CreatedAt   uint64
	ResolvedAt  uint64
	TotalBets   uint64
	TotalVolume uint64
	Name        string
	Admin       [20]byte
}

type storedBet struct {
	Owner   [20]byte
	Amount  uint64
	Status  uint8
	RoundID [32]byte
	Payout  uint64
}

type storedIndex struct {
	TotalRounds uint64
}

type storedEntry struct {
	RoundID   [32]byte
	CreatedAt uint32
}

type storedChunk struct {
	ChunkID uint64
	Entries []storedEntry
}

// --- config ---

func (m *Manager) ConfigGet() (*crash.Config, bool, error) {
	var rec storedConfig
	ok, err := m.load(configKey, &rec)
	if err != nil || !ok {
		return nil, false, err
	}
	return &crash.Config{
		Admin:    rec.Admin,
		Vault:    rec.Vault,
		Treasury: rec.Treasury,
		TaxBps:   rec.TaxBps,
	}, true, nil
}

func (m *Manager) ConfigPut(cfg *crash.Config) error {
	if cfg == nil {
		return fmt.Errorf("state: nil config")
	}
	return m.store(configKey, &storedConfig{
		Admin:    cfg.Admin,
		Vault:    cfg.Vault,
		Treasury: cfg.Treasury,
		TaxBps:   cfg.TaxBps,
	})
}

// --- round index ---

func (m *Manager) IndexGet() (*crash.RoundIndex, bool, error) {
	var rec storedIndex
	ok, err := m.load(indexKey, &rec)
	if err != nil || !ok {
		return nil, false, err
	}
	return &crash.RoundIndex{TotalRounds: rec.TotalRounds}, true, nil
}

func (m *Manager) IndexPut(index *crash.RoundIndex) error {
	if index == nil {
		return fmt.Errorf("state: nil round index")
	}
	return m.store(indexKey, &storedIndex{TotalRounds: index.TotalRounds})
}

func chunkKey(chunkID uint64) []byte {
	id := crash.ChunkID(chunkID)
	return prefixedKey(chunkPrefix, id[:])
}

func (m *Manager) ChunkGet(chunkID uint64) (*crash.IndexChunk, bool, error) {
	var rec storedChunk
	ok, err := m.load(chunkKey(chunkID), &rec)
	if err != nil || !ok {
		return nil, false, err
	}
	chunk := &crash.IndexChunk{ChunkID: rec.ChunkID}
	for _, entry := range rec.Entries {
		chunk.Entries = append(chunk.Entries, crash.IndexEntry{
			RoundID:   entry.RoundID,
			CreatedAt: entry.CreatedAt,
		})
	}
	return chunk, true, nil
}

func (m *Manager) ChunkPut(chunk *crash.IndexChunk) error {
	if chunk == nil {
		return fmt.Errorf("state: nil index chunk")
	}
	rec := &storedChunk{ChunkID: chunk.ChunkID, Entries: make([]storedEntry, 0, len(chunk.Entries))}
	for _, entry := range chunk.Entries {
		rec.Entries = append(rec.Entries, storedEntry{
			RoundID:   entry.RoundID,
			CreatedAt: entry.CreatedAt,
		})
	}
	return m.store(chunkKey(chunk.ChunkID), rec)
}

// --- users ---

func (m *Manager) UserGet(id crash.ID) (*crash.UserAccount, bool, error) {
	var rec storedUser
	ok, err := m.load(prefixedKey(userPrefix, id[:]), &rec)
	if err != nil || !ok {
		return nil, false, err
	}
	return &crash.UserAccount{
		Balance:      rec.Balance,
		HasActiveBet: rec.HasActiveBet,
		ActiveBet:    rec.ActiveBet,
	}, true, nil
}

func (m *Manager) UserPut(id crash.ID, user *crash.UserAccount) error {
	if user == nil {
		return fmt.Errorf("state: nil user account")
	}
	return m.store(prefixedKey(userPrefix, id[:]), &storedUser{
		Balance:      user.Balance,
		HasActiveBet: user.HasActiveBet,
		ActiveBet:    user.ActiveBet,
	})
}

// --- rounds ---

func (m *Manager) RoundGet(id crash.ID) (*crash.Round, bool, error) {
	var rec storedRound
	ok, err := m.load(prefixedKey(roundPrefix, id[:]), &rec)
	if err != nil || !ok {
		return nil, false, err
	}
	return &crash.Round{
		ID:          rec.ID,
		Multiplier:  rec.Multiplier,
		Status:      crash.RoundStatus(rec.Status),
		Crashed:     rec.Crashed,
		CreatedAt:   int64(rec.CreatedAt),
		ResolvedAt:  int64(rec.ResolvedAt),
		TotalBets:   rec.TotalBets,
		TotalVolume: rec.TotalVolume,
		Name:        rec.Name,
		Admin:       rec.Admin,
	}, true, nil
}

func (m *Manager) RoundPut(round *crash.Round) error {
	if round == nil {
		return fmt.Errorf("state: nil round")
	}
	if !round.Status.Valid() {
		return fmt.Errorf("state: invalid round status: %d", round.Status)
	}
	return m.store(prefixedKey(roundPrefix, round.ID[:]), &storedRound{
		ID:          round.ID,
		Multiplier:  round.Multiplier,
		Status:      uint8(round.Status),
		Crashed:     round.Crashed,
		CreatedAt:   uint64(round.CreatedAt),
		ResolvedAt:  uint64(round.ResolvedAt),
		TotalBets:   round.TotalBets,
		TotalVolume: round.TotalVolume,
		Name:        round.Name,
		Admin:       round.Admin,
	})
}

// --- bets ---

func (m *Manager) BetGet(id crash.ID) (*crash.Bet, bool, error) {
	var rec storedBet
	ok, err := m.load(prefixedKey(betPrefix, id[:]), &rec)
	if err != nil || !ok {
		return nil, false, err
	}
	if !crash.BetStatus(rec.Status).Valid() {
		return nil, false, fmt.Errorf("state: invalid bet status: %d", rec.Status)
	}
	return &crash.Bet{
		Owner:   rec.Owner,
		Amount:  rec.Amount,
		Status:  crash.BetStatus(rec.Status),
		RoundID: rec.RoundID,
		Payout:  rec.Payout,
	}, true, nil
}

func (m *Manager) BetPut(id crash.ID, bet *crash.Bet) error {
	if bet == nil {
		return fmt.Errorf("state: nil bet")
	}
	if !bet.Status.Valid() {
		return fmt.Errorf("state: invalid bet status: %d", bet.Status)
	}
	return m.store(prefixedKey(betPrefix, id[:]), &storedBet{
		Owner:   bet.Owner,
		Amount:  bet.Amount,
		Status:  uint8(bet.Status),
		RoundID: bet.RoundID,
		Payout:  bet.Payout,
	})
}

// --- funds ---

func fundsKey(addr crash.Address) []byte {
	return prefixedKey(fundsPrefix, addr[:])
}

// FundsBalance returns the pooled fund level held by addr.
func (m *Manager) FundsBalance(addr crash.Address) (uint64, error) {
	var balance uint64
	ok, err := m.load(fundsKey(addr), &balance)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return balance, nil
}

// FundsTransfer atomically moves amount between fund accounts. The source
// must hold at least amount.
func (m *Manager) FundsTransfer(from, to crash.Address, amount uint64) error {
	if from == to {
		return nil
	}
	fromBalance, err := m.FundsBalance(from)
	if err != nil {
		return err
	}
	if fromBalance < amount {
		return ErrInsufficientFunds
	}
	toBalance, err := m.FundsBalance(to)
	if err != nil {
		return err
	}
	if toBalance > ^uint64(0)-amount {
		return fmt.Errorf("state: funds balance overflow")
	}
	if err := m.store(fundsKey(from), fromBalance-amount); err != nil {
		return err
	}
	return m.store(fundsKey(to), toBalance+amount)
}

// FundsMint credits newly issued funds to addr. Used by genesis seeding
// and test fixtures only; settlement operations move existing funds.
func (m *Manager) FundsMint(addr crash.Address, amount uint64) error {
	balance, err := m.FundsBalance(addr)
	if err != nil {
		return err
	}
	if balance > ^uint64(0)-amount {
		return fmt.Errorf("state: funds balance overflow")
	}
	return m.store(fundsKey(addr), balance+amount)
}
