package ttstore

import (
	"path/filepath"
	"testing"

	"github.com/hailam/chessplay/internal/board"
	"github.com/hailam/chessplay/internal/engine"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "analysis"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	want := []engine.SnapshotEntry{
		{Index: 7, Entry: engine.TTEntry{Key: 0xAABBCCDD, Depth: 12, Flag: engine.TTExact}},
		{Index: 99, Entry: engine.TTEntry{Key: 0x11223344, Depth: 4, Flag: engine.TTLowerBound}},
	}

	if err := store.Save("session", want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, ok, err := store.Load("session")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !ok {
		t.Fatal("Load reported a miss for a key that was just saved")
	}
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestLoadMissIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "analysis"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	_, ok, err := store.Load("nonexistent")
	if err != nil {
		t.Fatalf("Load: unexpected error %v", err)
	}
	if ok {
		t.Fatal("Load reported a hit for a key that was never saved")
	}
}

func TestSnapshotRestoreRoundTripThroughStore(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "analysis"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	tt := engine.NewTranspositionTable(1)
	pos := board.NewPosition()
	tt.Store(pos.Hash, 10, 25, engine.TTExact, board.NoMove, true)

	if err := store.Save("session", tt.Snapshot()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	restored := engine.NewTranspositionTable(1)
	snap, ok, err := store.Load("session")
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	restored.Restore(snap)

	entry, found := restored.Probe(pos.Hash)
	if !found {
		t.Fatal("restored table missed the probed position")
	}
	if entry.Score != 25 || entry.Depth != 10 {
		t.Errorf("restored entry = %+v, want Score=25 Depth=10", entry)
	}
}
