package crash

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func createRounds(t *testing.T, engine *Engine, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		createdAt := uint32(10_000 + i)
		id, bump := DeriveID(NamespaceRound, Uint32Seed(createdAt))
		_, err := engine.CreateRound(adminAddr, id, bump, 200,
			fmt.Sprintf("round-%d", i), createdAt)
		require.NoError(t, err)
	}
}

func TestIndexChunkLayout(t *testing.T) {
	engine, state := newTestEngine(t, 0)
	createRounds(t, engine, 450)

	total, err := engine.TotalRounds()
	require.NoError(t, err)
	require.Equal(t, uint64(450), total)

	require.Len(t, state.chunks, 3)
	require.Len(t, state.chunks[0].Entries, 200)
	require.Len(t, state.chunks[1].Entries, 200)
	require.Len(t, state.chunks[2].Entries, 50)

	// Entry at global position n lives in chunk n/200 at offset n%200.
	require.Equal(t, RoundID(10_000+199), state.chunks[0].Entries[199].RoundID)
	require.Equal(t, RoundID(10_000+200), state.chunks[1].Entries[0].RoundID)
	require.Equal(t, RoundID(10_000+449), state.chunks[2].Entries[49].RoundID)
}

func TestListRoundsAcrossChunkBoundary(t *testing.T) {
	engine, _ := newTestEngine(t, 0)
	createRounds(t, engine, 450)

	rounds, err := engine.ListRounds(199, 3)
	require.NoError(t, err)
	require.Len(t, rounds, 3)
	for i, summary := range rounds {
		require.Equal(t, uint32(10_000+199+i), summary.CreatedAt)
		require.Equal(t, RoundID(summary.CreatedAt), summary.RoundID)
		require.Equal(t, fmt.Sprintf("round-%d", 199+i), summary.Name)
		require.Equal(t, RoundActive, summary.Status)
	}
}

func TestListRoundsBounds(t *testing.T) {
	engine, _ := newTestEngine(t, 0)
	createRounds(t, engine, 5)

	rounds, err := engine.ListRounds(0, 10)
	require.NoError(t, err)
	require.Len(t, rounds, 5, "limit beyond total truncates to total")

	rounds, err = engine.ListRounds(3, 10)
	require.NoError(t, err)
	require.Len(t, rounds, 2)
	require.Equal(t, uint32(10_003), rounds[0].CreatedAt)

	rounds, err = engine.ListRounds(5, 10)
	require.NoError(t, err)
	require.Empty(t, rounds, "offset at total yields an empty page")

	rounds, err = engine.ListRounds(1_000_000, 10)
	require.NoError(t, err)
	require.Empty(t, rounds)

	rounds, err = engine.ListRounds(0, 0)
	require.NoError(t, err)
	require.Empty(t, rounds)
}

func TestListRoundsEmptyIndex(t *testing.T) {
	engine, _ := newTestEngine(t, 0)
	rounds, err := engine.ListRounds(0, 10)
	require.NoError(t, err)
	require.Empty(t, rounds)
}

func TestGetRoundByKey(t *testing.T) {
	engine, _ := newTestEngine(t, 0)
	createTestRound(t, engine, 250, 777)

	round, err := engine.GetRound(777)
	require.NoError(t, err)
	require.Equal(t, uint64(250), round.Multiplier)
	require.Equal(t, int64(777), round.CreatedAt)

	_, err = engine.GetRound(778)
	require.ErrorIs(t, err, ErrRoundNotFound)
}

func TestCreateRoundRejectsStaleChunk(t *testing.T) {
	engine, state := newTestEngine(t, 0)
	createRounds(t, engine, 2)

	// A shard stored under the right key but carrying the wrong chunk id
	// must abort the append.
	state.chunks[0].ChunkID = 7
	createdAt := uint32(20_000)
	id, bump := DeriveID(NamespaceRound, Uint32Seed(createdAt))
	_, err := engine.CreateRound(adminAddr, id, bump, 200, "x", createdAt)
	require.ErrorIs(t, err, ErrInvalidChunk)
}
