package engine

import (
	"github.com/hailam/chessplay/internal/board"
)

// TTFlag indicates the type of bound stored in the transposition table.
type TTFlag uint8

const (
	TTNone       TTFlag = iota // Empty slot; the zero value marks an unused entry
	TTExact                    // Exact score
	TTLowerBound               // Failed high (beta cutoff)
	TTUpperBound               // Failed low
)

// TTEntry represents an entry in the transposition table.
type TTEntry struct {
	Key      uint32     // Upper 32 bits of Zobrist hash for verification
	BestMove board.Move // Best move found
	Score    int16      // Score (bounded by flag)
	Depth    int8       // Search depth
	Flag     TTFlag     // Type of bound
	Age      uint8      // Generation for replacement
	IsPV     bool       // True if this entry was stored from a PV (exact-score) node
}

// ttBucketSize is the number of entries sharing a hash-indexed bucket. Bucketing
// gives a shallow entry somewhere else to live instead of being evicted outright
// by an unrelated position that happens to hash to the same slot.
const ttBucketSize = 4

// TranspositionTable is a hash table for storing search results. Positions
// are grouped into ttBucketSize-entry buckets; Store picks a replacement
// candidate from within the bucket rather than always overwriting index 0.
type TranspositionTable struct {
	entries    []TTEntry
	numBuckets uint64
	size       uint64 // total entry slots (numBuckets * ttBucketSize)
	mask       uint64 // bucket index mask
	age        uint8

	// Statistics
	hits   uint64
	probes uint64
}

// NewTranspositionTable creates a transposition table with the given size in MB.
func NewTranspositionTable(sizeMB int) *TranspositionTable {
	// Calculate number of entries
	entrySize := uint64(24) // Size of TTEntry: 22 bytes of fields, padded to 24
	numEntries := (uint64(sizeMB) * 1024 * 1024) / entrySize

	// Round down to power of 2 for fast modulo
	numEntries = roundDownToPowerOf2(numEntries)
	if numEntries < ttBucketSize {
		numEntries = ttBucketSize
	}

	numBuckets := numEntries / ttBucketSize

	return &TranspositionTable{
		entries:    make([]TTEntry, numBuckets*ttBucketSize),
		numBuckets: numBuckets,
		size:       numBuckets * ttBucketSize,
		mask:       numBuckets - 1,
	}
}

// roundDownToPowerOf2 rounds n down to the nearest power of 2.
func roundDownToPowerOf2(n uint64) uint64 {
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return (n + 1) >> 1
}

// bucketBase returns the slot index of the first entry in hash's bucket.
func (tt *TranspositionTable) bucketBase(hash uint64) uint64 {
	return (hash & tt.mask) * ttBucketSize
}

// Probe looks up a position in the transposition table.
// Returns the entry and true if found, otherwise returns empty entry and false.
func (tt *TranspositionTable) Probe(hash uint64) (TTEntry, bool) {
	tt.probes++

	base := tt.bucketBase(hash)
	key := uint32(hash >> 32)

	for i := uint64(0); i < ttBucketSize; i++ {
		entry := tt.entries[base+i]
		if entry.Key == key && entry.Flag != TTNone {
			tt.hits++
			return entry, true
		}
	}

	return TTEntry{}, false
}

// Store saves a position in the transposition table.
//
// Replacement within the bucket, in order of preference:
//  1. an empty slot, or one already holding the same key
//  2. the slot from the oldest generation
//  3. among equally-old slots, the one with the shallowest depth
//
// The chosen slot is only overwritten if it's empty, from a previous
// search generation, holds the same key, or the new entry is at least as
// deep - this keeps a deeper same-generation entry from being evicted by a
// shallower one that merely collided into the same bucket.
func (tt *TranspositionTable) Store(hash uint64, depth int, score int, flag TTFlag, bestMove board.Move, isPV bool) {
	base := tt.bucketBase(hash)
	key := uint32(hash >> 32)
	bucket := tt.entries[base : base+ttBucketSize]

	slot := -1
	for i := range bucket {
		if bucket[i].Flag == TTNone || bucket[i].Key == key {
			slot = i
			break
		}
	}
	if slot == -1 {
		best := 0
		bestStale := bucket[0].Age != tt.age
		for i := 1; i < len(bucket); i++ {
			stale := bucket[i].Age != tt.age
			switch {
			case stale && !bestStale:
				best, bestStale = i, true
			case stale == bestStale && bucket[i].Depth < bucket[best].Depth:
				best = i
			}
		}
		slot = best
	}

	entry := &bucket[slot]
	if entry.Key == key || entry.Age != tt.age || depth >= int(entry.Depth) {
		entry.Key = key
		entry.BestMove = bestMove
		entry.Score = int16(score)
		entry.Depth = int8(depth)
		entry.Flag = flag
		entry.Age = tt.age
		entry.IsPV = isPV
	}
}

// NewSearch increments the age counter for a new search.
// This helps with replacement decisions.
func (tt *TranspositionTable) NewSearch() {
	tt.age++
}

// Clear clears the transposition table.
func (tt *TranspositionTable) Clear() {
	for i := range tt.entries {
		tt.entries[i] = TTEntry{}
	}
	tt.age = 0
	tt.hits = 0
	tt.probes = 0
}

// HashFull returns the permille (parts per thousand) of the table that is used.
func (tt *TranspositionTable) HashFull() int {
	// Sample first 1000 entries
	used := 0
	sampleSize := 1000
	if uint64(sampleSize) > tt.size {
		sampleSize = int(tt.size)
	}

	for i := 0; i < sampleSize; i++ {
		if tt.entries[i].Flag != TTNone && tt.entries[i].Age == tt.age {
			used++
		}
	}

	return (used * 1000) / sampleSize
}

// HitRate returns the cache hit rate as a percentage.
func (tt *TranspositionTable) HitRate() float64 {
	if tt.probes == 0 {
		return 0
	}
	return float64(tt.hits) / float64(tt.probes) * 100
}

// Size returns the number of entry slots in the table.
func (tt *TranspositionTable) Size() uint64 {
	return tt.size
}

// SnapshotEntry pairs a populated table slot with its index, so a snapshot
// can be restored into a table of the same size without needing the full
// 64-bit Zobrist key (only the upper 32 bits are kept in TTEntry). Index
// addresses a flat slot (bucket*ttBucketSize + offset), not a bucket.
type SnapshotEntry struct {
	Index uint64
	Entry TTEntry
}

// Snapshot returns every populated entry along with its slot index. Used by
// internal/ttstore to persist analysis between searches in the same
// ucinewgame session.
func (tt *TranspositionTable) Snapshot() []SnapshotEntry {
	out := make([]SnapshotEntry, 0, tt.size/4)
	for i, e := range tt.entries {
		if e.Flag != TTNone {
			out = append(out, SnapshotEntry{Index: uint64(i), Entry: e})
		}
	}
	return out
}

// Restore repopulates the table from a snapshot taken against a table of the
// same Size(). Entries whose index is out of range for the current table
// (e.g. Hash option changed between snapshot and restore) are skipped.
func (tt *TranspositionTable) Restore(snap []SnapshotEntry) {
	for _, s := range snap {
		if s.Index >= tt.size {
			continue
		}
		tt.entries[s.Index] = s.Entry
	}
}

// AdjustScoreFromTT converts a score read from the transposition table
// back to the current ply.
// Mate scores need to be adjusted based on ply distance.
func AdjustScoreFromTT(score int, ply int) int {
	if score > MateScore-MaxPly {
		return score - ply
	}
	if score < -MateScore+MaxPly {
		return score + ply
	}
	return score
}

// AdjustScoreToTT adjusts a score for storage in the transposition table.
func AdjustScoreToTT(score int, ply int) int {
	if score > MateScore-MaxPly {
		return score + ply
	}
	if score < -MateScore+MaxPly {
		return score - ply
	}
	return score
}
