package events

import (
	"encoding/hex"
	"strconv"
	"strings"

	"crashvault/crypto"
)

const (
	// TypeRoundCreated is emitted when the admin opens a new crash round.
	TypeRoundCreated = "crash.round.created"
	// TypeRoundResolved is emitted when a round is finalized.
	TypeRoundResolved = "crash.round.resolved"
	// TypeBetPlaced is emitted when a stake is accepted into a round.
	TypeBetPlaced = "crash.bet.placed"
	// TypePayoutClaimed is emitted when a resolved payout is credited.
	TypePayoutClaimed = "crash.bet.claimed"
	// TypeDeposited is emitted for wallet-to-vault deposits.
	TypeDeposited = "crash.ledger.deposited"
	// TypeWithdrawn is emitted for vault-to-wallet withdrawals.
	TypeWithdrawn = "crash.ledger.withdrawn"
	// TypeTaxUpdated is emitted when the admin changes the stake tax.
	TypeTaxUpdated = "crash.config.taxUpdated"
)

func formatID(id [32]byte) string {
	return "0x" + strings.ToLower(hex.EncodeToString(id[:]))
}

func formatAddr(addr [20]byte) string {
	return crypto.NewAddress(append([]byte(nil), addr[:]...)).String()
}

func formatAmount(v uint64) string {
	return strconv.FormatUint(v, 10)
}

type RoundCreated struct {
	RoundID    [32]byte
	Admin      [20]byte
	Multiplier uint64
	Name       string
	CreatedAt  uint32
}

func (RoundCreated) EventType() string { return TypeRoundCreated }

func (e RoundCreated) Event() *Record {
	return &Record{Type: TypeRoundCreated, Attributes: map[string]string{
		"roundId":    formatID(e.RoundID),
		"admin":      formatAddr(e.Admin),
		"multiplier": formatAmount(e.Multiplier),
		"name":       e.Name,
		"createdAt":  strconv.FormatUint(uint64(e.CreatedAt), 10),
	}}
}

type RoundResolved struct {
	RoundID    [32]byte
	Crashed    bool
	ResolvedAt int64
	Settled    int
}

func (RoundResolved) EventType() string { return TypeRoundResolved }

func (e RoundResolved) Event() *Record {
	return &Record{Type: TypeRoundResolved, Attributes: map[string]string{
		"roundId":    formatID(e.RoundID),
		"crashed":    strconv.FormatBool(e.Crashed),
		"resolvedAt": strconv.FormatInt(e.ResolvedAt, 10),
		"settled":    strconv.Itoa(e.Settled),
	}}
}

type BetPlaced struct {
	BetID    [32]byte
	RoundID  [32]byte
	Owner    [20]byte
	Stake    uint64
	Tax      uint64
	NetStake uint64
}

func (BetPlaced) EventType() string { return TypeBetPlaced }

func (e BetPlaced) Event() *Record {
	return &Record{Type: TypeBetPlaced, Attributes: map[string]string{
		"betId":    formatID(e.BetID),
		"roundId":  formatID(e.RoundID),
		"owner":    formatAddr(e.Owner),
		"stake":    formatAmount(e.Stake),
		"tax":      formatAmount(e.Tax),
		"netStake": formatAmount(e.NetStake),
	}}
}

type PayoutClaimed struct {
	BetID  [32]byte
	Owner  [20]byte
	Payout uint64
}

func (PayoutClaimed) EventType() string { return TypePayoutClaimed }

func (e PayoutClaimed) Event() *Record {
	return &Record{Type: TypePayoutClaimed, Attributes: map[string]string{
		"betId":  formatID(e.BetID),
		"owner":  formatAddr(e.Owner),
		"payout": formatAmount(e.Payout),
	}}
}

type Deposited struct {
	Owner  [20]byte
	Amount uint64
}

func (Deposited) EventType() string { return TypeDeposited }

func (e Deposited) Event() *Record {
	return &Record{Type: TypeDeposited, Attributes: map[string]string{
		"owner":  formatAddr(e.Owner),
		"amount": formatAmount(e.Amount),
	}}
}

type Withdrawn struct {
	Owner  [20]byte
	Amount uint64
}

func (Withdrawn) EventType() string { return TypeWithdrawn }

func (e Withdrawn) Event() *Record {
	return &Record{Type: TypeWithdrawn, Attributes: map[string]string{
		"owner":  formatAddr(e.Owner),
		"amount": formatAmount(e.Amount),
	}}
}

type TaxUpdated struct {
	Admin  [20]byte
	TaxBps uint16
}

func (TaxUpdated) EventType() string { return TypeTaxUpdated }

func (e TaxUpdated) Event() *Record {
	return &Record{Type: TypeTaxUpdated, Attributes: map[string]string{
		"admin":  formatAddr(e.Admin),
		"taxBps": strconv.FormatUint(uint64(e.TaxBps), 10),
	}}
}
