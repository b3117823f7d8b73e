package state

import (
	"testing"

	"github.com/stretchr/testify/require"

	"crashvault/native/crash"
	"crashvault/storage"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(storage.NewMemDB())
}

func testAddr(fill byte) crash.Address {
	var addr crash.Address
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func TestConfigRoundTrip(t *testing.T) {
	manager := newTestManager(t)

	_, ok, err := manager.ConfigGet()
	require.NoError(t, err)
	require.False(t, ok)

	cfg := &crash.Config{
		Admin:    testAddr(0xAA),
		Vault:    testAddr(0xBB),
		Treasury: testAddr(0xCC),
		TaxBps:   500,
	}
	require.NoError(t, manager.ConfigPut(cfg))

	loaded, ok, err := manager.ConfigGet()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, cfg, loaded)
}

func TestUserRoundTrip(t *testing.T) {
	manager := newTestManager(t)
	id := crash.UserID(testAddr(0x01))

	_, ok, err := manager.UserGet(id)
	require.NoError(t, err)
	require.False(t, ok)

	user := &crash.UserAccount{
		Balance:      12_345,
		HasActiveBet: true,
		ActiveBet:    crash.ID{0x42},
	}
	require.NoError(t, manager.UserPut(id, user))

	loaded, ok, err := manager.UserGet(id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, user, loaded)
}

func TestRoundRoundTrip(t *testing.T) {
	manager := newTestManager(t)
	round := &crash.Round{
		ID:          crash.RoundID(42),
		Multiplier:  250,
		Status:      crash.RoundResolved,
		Crashed:     true,
		CreatedAt:   42,
		ResolvedAt:  1_700_000_000,
		TotalBets:   3,
		TotalVolume: 2_850,
		Name:        "late night round",
		Admin:       testAddr(0xAA),
	}
	require.NoError(t, manager.RoundPut(round))

	loaded, ok, err := manager.RoundGet(round.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, round, loaded)
}

func TestBetRoundTrip(t *testing.T) {
	manager := newTestManager(t)
	owner := testAddr(0x01)
	roundID := crash.RoundID(7)
	betID := crash.BetID(owner, roundID)

	bet := &crash.Bet{
		Owner:   owner,
		Amount:  950,
		Status:  crash.BetResolved,
		RoundID: roundID,
		Payout:  2_375,
	}
	require.NoError(t, manager.BetPut(betID, bet))

	loaded, ok, err := manager.BetGet(betID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, bet, loaded)
}

func TestChunkRoundTrip(t *testing.T) {
	manager := newTestManager(t)

	_, ok, err := manager.ChunkGet(0)
	require.NoError(t, err)
	require.False(t, ok)

	chunk := &crash.IndexChunk{ChunkID: 2}
	for i := uint32(0); i < 10; i++ {
		chunk.Entries = append(chunk.Entries, crash.IndexEntry{
			RoundID:   crash.RoundID(i),
			CreatedAt: i,
		})
	}
	require.NoError(t, manager.ChunkPut(chunk))

	loaded, ok, err := manager.ChunkGet(2)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, chunk, loaded)

	// Chunks live under distinct derived keys.
	_, ok, err = manager.ChunkGet(3)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIndexRoundTrip(t *testing.T) {
	manager := newTestManager(t)
	require.NoError(t, manager.IndexPut(&crash.RoundIndex{TotalRounds: 450}))

	loaded, ok, err := manager.IndexGet()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(450), loaded.TotalRounds)
}

func TestFundsTransfer(t *testing.T) {
	manager := newTestManager(t)
	alice := testAddr(0x01)
	bob := testAddr(0x02)

	require.NoError(t, manager.FundsMint(alice, 1_000))

	balance, err := manager.FundsBalance(alice)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000), balance)

	require.NoError(t, manager.FundsTransfer(alice, bob, 400))

	balance, err = manager.FundsBalance(alice)
	require.NoError(t, err)
	require.Equal(t, uint64(600), balance)
	balance, err = manager.FundsBalance(bob)
	require.NoError(t, err)
	require.Equal(t, uint64(400), balance)

	err = manager.FundsTransfer(alice, bob, 601)
	require.ErrorIs(t, err, ErrInsufficientFunds)

	// Self transfers are a no-op, not a balance doubling.
	require.NoError(t, manager.FundsTransfer(alice, alice, 600))
	balance, err = manager.FundsBalance(alice)
	require.NoError(t, err)
	require.Equal(t, uint64(600), balance)
}
