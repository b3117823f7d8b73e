package crash

import (
	"encoding/hex"
	"strings"
)

// ID is the 32-byte derived identity of a settlement record.
type ID [32]byte

func (id ID) String() string {
	return "0x" + strings.ToLower(hex.EncodeToString(id[:]))
}

// IsZero reports whether the identity is unset.
func (id ID) IsZero() bool {
	return id == ID{}
}

// Address is a 20-byte account identity (admin, wallet, vault, treasury).
type Address = [20]byte

const (
	// MinMultiplier is 1.00x in the engine's fixed-point representation.
	MinMultiplier uint64 = 100
	// MaxMultiplier is 100.00x.
	MaxMultiplier uint64 = 10_000
	// MaxRoundNameLen bounds the human-readable round label.
	MaxRoundNameLen = 32
	// MaxTaxBps caps the stake tax at 10%.
	MaxTaxBps uint16 = 1000
	// TaxDivisor converts basis points into a fraction of the stake.
	TaxDivisor uint64 = 10_000
	// MultiplierDivisor converts the fixed-point multiplier into a payout.
	MultiplierDivisor uint64 = 100
	// ChunkCapacity is the fixed number of index entries per shard.
	ChunkCapacity = 200
)

// Config is the singleton administrative record: who may run rounds, where
// pooled funds live, and the stake tax skimmed into the treasury.
type Config struct {
	Admin    Address
	Vault    Address
	Treasury Address
	TaxBps   uint16
}

func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// UserAccount is the per-user ledger record. HasActiveBet is true exactly
// while one bet owned by the user is in BetPlaced; ActiveBet identifies
// that bet so the flag can be reconciled once the bet leaves BetPlaced
// without the resolver having to touch this record.
type UserAccount struct {
	Balance      uint64
	HasActiveBet bool
	ActiveBet    ID
}

func (u *UserAccount) Clone() *UserAccount {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}

// RoundStatus tracks the lifecycle of a crash round.
type RoundStatus uint8

const (
	RoundActive RoundStatus = iota
	RoundResolved
)

func (s RoundStatus) Valid() bool {
	switch s {
	case RoundActive, RoundResolved:
		return true
	default:
		return false
	}
}

func (s RoundStatus) String() string {
	switch s {
	case RoundActive:
		return "active"
	case RoundResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// Round is the per-round record. Multiplier is fixed-point scaled by 100
// (250 = 2.50x). Crashed is meaningful only once Status is RoundResolved.
type Round struct {
	ID          ID
	Multiplier  uint64
	Status      RoundStatus
	Crashed     bool
	CreatedAt   int64
	ResolvedAt  int64
	TotalBets   uint64
	TotalVolume uint64
	Name        string
	Admin       Address
}

func (r *Round) Clone() *Round {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}

// BetStatus tracks the lifecycle of a wager: placed, payout fixed, payout
// claimed. BetClaimed is terminal.
type BetStatus uint8

const (
	BetPlaced BetStatus = iota
	BetResolved
	BetClaimed
)

func (s BetStatus) Valid() bool {
	switch s {
	case BetPlaced, BetResolved, BetClaimed:
		return true
	default:
		return false
	}
}

func (s BetStatus) String() string {
	switch s {
	case BetPlaced:
		return "placed"
	case BetResolved:
		return "resolved"
	case BetClaimed:
		return "claimed"
	default:
		return "unknown"
	}
}

// Bet is the per-(user, round) wager record. Amount holds the post-tax
// stake. Payout is written exactly once, at resolution, and is the
// authoritative figure for claim.
type Bet struct {
	Owner   Address
	Amount  uint64
	Status  BetStatus
	RoundID ID
	Payout  uint64
}

func (b *Bet) Clone() *Bet {
	if b == nil {
		return nil
	}
	clone := *b
	return &clone
}

// RoundIndex is the append-only counter over every round ever created.
type RoundIndex struct {
	TotalRounds uint64
}

func (i *RoundIndex) Clone() *RoundIndex {
	if i == nil {
		return nil
	}
	clone := *i
	return &clone
}

// IndexEntry locates one round in creation order.
type IndexEntry struct {
	RoundID   ID
	CreatedAt uint32
}

// IndexChunk is one fixed-capacity shard of the round index. Entry at
// global position n lives in chunk n/ChunkCapacity at offset
// n%ChunkCapacity. Chunks are append-only and created lazily.
type IndexChunk struct {
	ChunkID uint64
	Entries []IndexEntry
}

func (c *IndexChunk) Clone() *IndexChunk {
	if c == nil {
		return nil
	}
	clone := &IndexChunk{ChunkID: c.ChunkID}
	if len(c.Entries) > 0 {
		clone.Entries = append([]IndexEntry(nil), c.Entries...)
	}
	return clone
}

// RoundSummary is the pagination row returned by ListRounds, the index
// entry joined with the round record it points at.
type RoundSummary struct {
	RoundID    ID
	CreatedAt  uint32
	Name       string
	Multiplier uint64
	Status     RoundStatus
	Crashed    bool
}

// Balances reports the pooled fund levels backing the ledger.
type Balances struct {
	Vault    uint64
	Treasury uint64
}
