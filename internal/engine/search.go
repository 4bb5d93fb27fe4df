package engine

import (
	"time"

	"github.com/hailam/chessplay/internal/board"
)

// Search constants
const (
	Infinity  = 30000
	MateScore = 29000
	MaxPly    = 128
)

// PVTable stores the principal variation under construction: moves[ply]
// holds the best line found from that ply, extended by one move whenever
// a child raises alpha.
type PVTable struct {
	length [MaxPly]int
	moves  [MaxPly][MaxPly]board.Move
}

// SearchMultiPV finds the N best moves for analysis by running the worker
// repeatedly, excluding each discovered best move from the root on the
// following pass.
func (e *Engine) SearchMultiPV(pos *board.Position, limits SearchLimits) []SearchResult {
	numPV := limits.MultiPV
	if numPV <= 0 {
		numPV = 1
	}

	results := make([]SearchResult, 0, numPV)
	excluded := make([]board.Move, 0, numPV)

	for i := 0; i < numPV; i++ {
		move, score, pv, depth := e.searchWithExclusions(pos, limits, excluded)
		if move == board.NoMove {
			break
		}

		results = append(results, SearchResult{
			Move:  move,
			Score: score,
			PV:    pv,
			Depth: depth,
		})
		excluded = append(excluded, move)
	}

	// Rank lines best-first; exclusion order usually already is, but a
	// later pass can land on a better score after TT warm-up.
	for i := 0; i < len(results)-1; i++ {
		maxIdx := i
		for j := i + 1; j < len(results); j++ {
			if results[j].Score > results[maxIdx].Score {
				maxIdx = j
			}
		}
		if maxIdx != i {
			results[i], results[maxIdx] = results[maxIdx], results[i]
		}
	}

	return results
}

// searchWithExclusions runs one iterative-deepening search with the given
// root moves barred, returning the best permitted move, its score, PV and
// the depth it was found at.
func (e *Engine) searchWithExclusions(pos *board.Position, limits SearchLimits, excluded []board.Move) (board.Move, int, []board.Move, int) {
	e.stopFlag.Store(false)
	e.tt.NewSearch()
	e.worker.Reset()
	e.worker.InitSearch(pos)
	e.worker.SetRootMoves(limits.SearchMoves)
	e.worker.SetExcludedMoves(excluded)
	defer e.worker.SetExcludedMoves(nil)

	startTime := time.Now()
	var deadline time.Time
	if limits.MoveTime > 0 {
		deadline = startTime.Add(limits.MoveTime)
	}
	e.worker.SetBudgets(limits.Nodes, deadline)

	var bestMove board.Move
	var bestScore int
	var bestPV []board.Move
	var bestDepth int
	var prevScore int

	maxDepth := MaxPly
	if limits.Depth > 0 {
		maxDepth = limits.Depth
	}

	for depth := 1; depth <= maxDepth; depth++ {
		if !deadline.IsZero() && time.Now().After(deadline) {
			break
		}

		move, score := e.searchOneDepth(depth, prevScore)
		if abs(score) >= Interrupted || e.stopFlag.Load() {
			break
		}
		prevScore = score

		if move != board.NoMove {
			bestMove = move
			bestScore = score
			bestPV = e.worker.GetPV()
			bestDepth = depth
		}

		if mateFound(score, limits.MateIn) {
			break
		}
	}

	e.stopFlag.Store(true)
	return bestMove, bestScore, bestPV, bestDepth
}
