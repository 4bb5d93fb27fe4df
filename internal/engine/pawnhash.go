package engine

import "math/bits"

// PawnTable caches pawn-structure evaluation keyed by the position's pawn
// hash. Pawn structure changes far less often than the full position, so
// hit rates stay high across a search tree. Always-replace single-probe
// scheme: an entry holds its full key, a mismatch is simply a miss.
type PawnTable struct {
	entries []pawnEntry
	mask    uint64
}

type pawnEntry struct {
	key     uint64
	mgScore int16
	egScore int16
}

// NewPawnTable creates a pawn hash table of the given size in MiB, rounded
// down to a power-of-two entry count.
func NewPawnTable(sizeMB int) *PawnTable {
	const entrySize = 12
	numEntries := sizeMB * 1024 * 1024 / entrySize
	if numEntries < 1 {
		numEntries = 1
	}
	size := 1 << (bits.Len(uint(numEntries)) - 1)

	return &PawnTable{
		entries: make([]pawnEntry, size),
		mask:    uint64(size - 1),
	}
}

// Probe returns the cached middlegame/endgame pawn-structure scores for
// key, if present.
func (pt *PawnTable) Probe(key uint64) (mg, eg int, found bool) {
	entry := &pt.entries[key&pt.mask]
	if entry.key != key {
		return 0, 0, false
	}
	return int(entry.mgScore), int(entry.egScore), true
}

// Store caches the pawn-structure scores for key, replacing whatever
// occupied the slot.
func (pt *PawnTable) Store(key uint64, mg, eg int) {
	pt.entries[key&pt.mask] = pawnEntry{key: key, mgScore: int16(mg), egScore: int16(eg)}
}

// Clear empties the table.
func (pt *PawnTable) Clear() {
	for i := range pt.entries {
		pt.entries[i] = pawnEntry{}
	}
}
