package engine

import (
	"github.com/hailam/chessplay/internal/board"
)

// corrTableSize is the number of correction buckets; a power of two so the
// position hash indexes with a mask.
const corrTableSize = 1 << 16

// corrLimit bounds a stored correction so one tactical outlier can't skew
// a bucket permanently.
const corrLimit = 16000

// CorrectionHistory nudges the static evaluation toward what the search
// actually found for positions hashing into the same bucket. Entries decay
// toward each new observation (gravity update) instead of being replaced,
// so the bias reflects a running consensus.
type CorrectionHistory struct {
	table [corrTableSize]int16
}

// NewCorrectionHistory creates an empty correction table.
func NewCorrectionHistory() *CorrectionHistory {
	return &CorrectionHistory{}
}

func corrIndex(pos *board.Position) uint64 {
	return pos.Hash & (corrTableSize - 1)
}

// Get returns the correction to add to the raw static evaluation.
func (ch *CorrectionHistory) Get(pos *board.Position) int {
	return int(ch.table[corrIndex(pos)])
}

// Update records how far the static evaluation missed the searched score.
// Deeper searches weigh more; the stored value moves a sixteenth of the
// way toward the new observation.
func (ch *CorrectionHistory) Update(pos *board.Position, searchScore, staticEval, depth int) {
	if depth < 1 {
		return
	}

	bonus := (searchScore - staticEval) * depth / 8
	if bonus > 256 {
		bonus = 256
	} else if bonus < -256 {
		bonus = -256
	}

	idx := corrIndex(pos)
	old := int(ch.table[idx])
	updated := old + (bonus-old)/16

	if updated > corrLimit {
		updated = corrLimit
	} else if updated < -corrLimit {
		updated = -corrLimit
	}
	ch.table[idx] = int16(updated)
}

// Clear resets all corrections.
func (ch *CorrectionHistory) Clear() {
	for i := range ch.table {
		ch.table[i] = 0
	}
}

// Age halves all corrections so stale biases fade instead of being carried
// wholesale into an unrelated opening. Nothing in the engine calls it;
// Engine.Clear zeroes the table when a new game starts.
func (ch *CorrectionHistory) Age() {
	for i := range ch.table {
		ch.table[i] /= 2
	}
}
