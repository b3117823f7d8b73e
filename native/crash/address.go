package crash

import (
	"encoding/binary"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Record namespaces. A record's identity is derived from its namespace plus
// ordered key material, so two records of different kinds (or different
// keys) can never collide.
const (
	NamespaceConfig     = "config"
	NamespaceIndex      = "game_index"
	NamespaceIndexChunk = "game_index_chunk"
	NamespaceUser       = "user_balance"
	NamespaceRound      = "game"
	NamespaceBet        = "bet"
)

var derivationDomain = []byte("crashvault/v1")

// DeriveID computes the deterministic identity for a record from its
// namespace and ordered seed components, along with a one-byte bump proof.
// The digest is keccak256 over the domain tag, the namespace and each seed
// with a length prefix, so distinct (namespace, seeds) tuples cannot
// produce the same preimage.
func DeriveID(namespace string, seeds ...[]byte) (ID, uint8) {
	buf := make([]byte, 0, len(derivationDomain)+len(namespace)+16)
	buf = append(buf, derivationDomain...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(namespace)))
	buf = append(buf, namespace...)
	for _, seed := range seeds {
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(seed)))
		buf = append(buf, seed...)
	}
	var id ID
	copy(id[:], ethcrypto.Keccak256(buf))
	return id, id[31]
}

// VerifyID reports whether the supplied identity and bump match the
// derivation for (namespace, seeds). Every operation that is handed a
// record from outside runs its handle through this check before trusting
// it.
func VerifyID(id ID, bump uint8, namespace string, seeds ...[]byte) bool {
	expected, expectedBump := DeriveID(namespace, seeds...)
	return id == expected && bump == expectedBump
}

// UserID derives the ledger record identity for a wallet.
func UserID(owner Address) ID {
	id, _ := DeriveID(NamespaceUser, owner[:])
	return id
}

// RoundID derives the round record identity from its creation key.
func RoundID(createdAt uint32) ID {
	id, _ := DeriveID(NamespaceRound, Uint32Seed(createdAt))
	return id
}

// BetID derives the wager record identity for a (user, round) pair.
func BetID(owner Address, roundID ID) ID {
	id, _ := DeriveID(NamespaceBet, owner[:], roundID[:])
	return id
}

// ChunkID derives the identity of one index shard.
func ChunkID(chunk uint64) ID {
	id, _ := DeriveID(NamespaceIndexChunk, Uint64Seed(chunk))
	return id
}

// Uint32Seed encodes a 32-bit key component in the canonical little-endian
// seed form.
func Uint32Seed(v uint32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return buf[:]
}

// Uint64Seed encodes a 64-bit key component in the canonical little-endian
// seed form.
func Uint64Seed(v uint64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return buf[:]
}
