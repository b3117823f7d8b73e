package crash

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveIDDeterministic(t *testing.T) {
	owner := newTestAddress(0x11)
	first, bump1 := DeriveID(NamespaceUser, owner[:])
	second, bump2 := DeriveID(NamespaceUser, owner[:])
	require.Equal(t, first, second)
	require.Equal(t, bump1, bump2)
}

func TestDeriveIDDistinct(t *testing.T) {
	owner := newTestAddress(0x11)
	other := newTestAddress(0x12)

	userID, _ := DeriveID(NamespaceUser, owner[:])
	otherID, _ := DeriveID(NamespaceUser, other[:])
	require.NotEqual(t, userID, otherID)

	// Same key material under different namespaces must not collide.
	betID, _ := DeriveID(NamespaceBet, owner[:])
	require.NotEqual(t, userID, betID)

	// Seed boundaries are part of the preimage: ("ab","c") != ("a","bc").
	left, _ := DeriveID(NamespaceBet, []byte("ab"), []byte("c"))
	right, _ := DeriveID(NamespaceBet, []byte("a"), []byte("bc"))
	require.NotEqual(t, left, right)
}

func TestVerifyID(t *testing.T) {
	id, bump := DeriveID(NamespaceRound, Uint32Seed(42))
	require.True(t, VerifyID(id, bump, NamespaceRound, Uint32Seed(42)))
	require.False(t, VerifyID(id, bump, NamespaceRound, Uint32Seed(43)))
	require.False(t, VerifyID(id, bump+1, NamespaceRound, Uint32Seed(42)))
	require.False(t, VerifyID(id, bump, NamespaceBet, Uint32Seed(42)))

	var tampered ID
	copy(tampered[:], id[:])
	tampered[0] ^= 0x01
	require.False(t, VerifyID(tampered, bump, NamespaceRound, Uint32Seed(42)))
}

func TestRecordIDHelpers(t *testing.T) {
	owner := newTestAddress(0x21)
	roundID := RoundID(99)

	expectedRound, _ := DeriveID(NamespaceRound, Uint32Seed(99))
	require.Equal(t, expectedRound, roundID)

	expectedBet, _ := DeriveID(NamespaceBet, owner[:], roundID[:])
	require.Equal(t, expectedBet, BetID(owner, roundID))

	expectedUser, _ := DeriveID(NamespaceUser, owner[:])
	require.Equal(t, expectedUser, UserID(owner))
}
