package engine

import (
	"testing"

	"github.com/hailam/chessplay/internal/board"
)

func TestTTStoreProbeRoundTrip(t *testing.T) {
	tt := NewTranspositionTable(1)
	hash := uint64(0x123456789ABCDEF0)
	move := board.NewMove(board.E2, board.E4)

	tt.Store(hash, 8, 42, TTExact, move, true)

	entry, found := tt.Probe(hash)
	if !found {
		t.Fatal("stored entry not found")
	}
	if entry.Depth != 8 || entry.Score != 42 || entry.Flag != TTExact || !entry.IsPV {
		t.Errorf("entry fields mangled: %+v", entry)
	}
	if !entry.BestMove.Equals(move) {
		t.Errorf("best move %v, want %v", entry.BestMove, move)
	}

	// A different upper-key never matches, even in the same bucket.
	if _, found := tt.Probe(hash ^ 0xFFFF_0000_0000_0000); found {
		t.Error("probe matched an entry with a different partial key")
	}
}

func TestTTDepthZeroEntriesAreStored(t *testing.T) {
	tt := NewTranspositionTable(1)
	hash := uint64(0xCAFEBABE12345678)

	// Quiescence stores at depth 0; the entry must still be probeable.
	tt.Store(hash, 0, -30, TTUpperBound, board.NoMove, false)
	entry, found := tt.Probe(hash)
	if !found {
		t.Fatal("depth-0 entry invisible to Probe")
	}
	if entry.Flag != TTUpperBound || entry.Score != -30 {
		t.Errorf("depth-0 entry mangled: %+v", entry)
	}
}

func TestTTSameKeyReplacement(t *testing.T) {
	tt := NewTranspositionTable(1)
	hash := uint64(0x1111111122222222)

	tt.Store(hash, 4, 10, TTLowerBound, board.NoMove, false)
	tt.Store(hash, 9, 20, TTExact, board.NewMove(board.D2, board.D4), false)

	entry, found := tt.Probe(hash)
	if !found {
		t.Fatal("entry lost after same-key restore")
	}
	if entry.Depth != 9 || entry.Score != 20 {
		t.Errorf("same-key store did not replace in place: %+v", entry)
	}
}

func TestTTAgePreferredForReplacement(t *testing.T) {
	tt := NewTranspositionTable(1)

	// Fill one bucket with old-generation entries at varying depths: same
	// low bits (same bucket), distinct upper bits (distinct partial keys).
	base := uint64(0x40)
	for i := uint64(0); i < ttBucketSize; i++ {
		tt.Store(base|((i+1)<<32), int(4+i), 0, TTExact, board.NoMove, false)
	}

	tt.NewSearch()

	// A new-generation store must evict one of the stale entries rather
	// than be dropped.
	newHash := base | (99 << 32)
	tt.Store(newHash, 2, 7, TTLowerBound, board.NoMove, false)

	if _, found := tt.Probe(newHash); !found {
		t.Error("new-generation entry was not admitted into a stale bucket")
	}
}

func TestMateScoreAdjustment(t *testing.T) {
	// A mate found 5 plies into the search, stored from a node at ply 3,
	// must read back with the same distance from any other ply.
	rootScore := MateScore - 5

	stored := AdjustScoreToTT(rootScore, 3)
	if got := AdjustScoreFromTT(stored, 3); got != rootScore {
		t.Errorf("to/from TT at same ply: got %d, want %d", got, rootScore)
	}

	// Reused at a shallower ply the mate is closer to the root.
	if got := AdjustScoreFromTT(stored, 1); got != rootScore+2 {
		t.Errorf("reused at ply 1: got %d, want %d", got, rootScore+2)
	}

	// Ordinary scores pass through untouched.
	if got := AdjustScoreFromTT(AdjustScoreToTT(123, 7), 9); got != 123 {
		t.Errorf("ordinary score distorted: %d", got)
	}
}

func TestTTSnapshotRestoreRoundTrip(t *testing.T) {
	tt := NewTranspositionTable(1)
	hashes := []uint64{0xA1, 0xB2B2B2B2B2, 0xC3C3C3C3C3C3}
	for i, h := range hashes {
		tt.Store(h, 3+i, 100+i, TTExact, board.NoMove, false)
	}

	snap := tt.Snapshot()
	if len(snap) != len(hashes) {
		t.Fatalf("snapshot has %d entries, want %d", len(snap), len(hashes))
	}

	fresh := NewTranspositionTable(1)
	fresh.Restore(snap)
	for _, h := range hashes {
		if _, found := fresh.Probe(h); !found {
			t.Errorf("entry for %x lost across snapshot/restore", h)
		}
	}
}
