package engine

import (
	"sync/atomic"
	"time"

	"github.com/hailam/chessplay/internal/board"
	"github.com/hailam/chessplay/internal/config"
)

// SearchInfo contains information about the current search.
type SearchInfo struct {
	Depth    int
	SelDepth int // deepest ply reached, quiescence included
	Score    int
	Nodes    uint64
	Time     time.Duration
	PV       []board.Move
	HashFull int // Permille of hash table used
}

// SearchLimits specifies constraints on the search.
type SearchLimits struct {
	Depth       int           // Maximum depth (0 = no limit)
	Nodes       uint64        // Maximum nodes (0 = no limit)
	MoveTime    time.Duration // Time for this move (0 = no limit)
	MateIn      int           // Stop once a mate in at most this many moves is proven
	Infinite    bool          // Search until stopped
	MultiPV     int           // Number of principal variations to find (0 or 1 = single best move)
	SearchMoves []board.Move  // Restrict the root to these moves when non-empty
}

// SearchResult contains the result of a single PV search.
type SearchResult struct {
	Move  board.Move
	Score int
	PV    []board.Move
	Depth int
}

// Difficulty represents the AI difficulty level.
type Difficulty int

const (
	Easy   Difficulty = iota // ~2-3 ply, 500ms
	Medium                   // up to 7 ply, 1s
	Hard                     // Maximum strength: up to 40 ply, 3s
)

// DifficultySettings maps difficulty to search limits.
var DifficultySettings = map[Difficulty]SearchLimits{
	Easy:   {Depth: 3, MoveTime: 500 * time.Millisecond},
	Medium: {Depth: 7, MoveTime: 1 * time.Second},
	Hard:   {Depth: 40, MoveTime: 3 * time.Second}, // Max strength (time-limited)
}

// Engine is the chess AI engine. Its core runs on a single worker thread:
// the iterative-deepening loop below calls straight into one Worker, one
// depth at a time, with no concurrent search state. The only goroutine
// boundary in the system belongs to the caller (a UCI command loop running
// search on its own goroutine while the reader loop waits on `stop`/`quit`),
// never inside the search itself.
type Engine struct {
	worker   *Worker
	tt       *TranspositionTable
	stopFlag atomic.Bool

	difficulty Difficulty

	// Position history for repetition detection
	rootPosHashes []uint64

	// Limited-strength configuration; nil means full strength.
	strength *config.Config

	// Callbacks
	OnInfo     func(SearchInfo)
	OnCurrMove func(move board.Move, number int)
}

// NewEngine creates a new chess engine with the given transposition table size in MB.
func NewEngine(ttSizeMB int) *Engine {
	tt := NewTranspositionTable(ttSizeMB)

	e := &Engine{
		tt:         tt,
		difficulty: Medium,
	}
	e.worker = NewWorker(tt, NewPawnTable(1), &e.stopFlag)

	return e
}

// SetDifficulty sets the engine difficulty.
func (e *Engine) SetDifficulty(d Difficulty) {
	e.difficulty = d
}

// SetStrength installs a limited-strength configuration, propagating it to
// the worker. Passing cfg with LimitStrength false (or nil) restores full
// strength.
func (e *Engine) SetStrength(cfg *config.Config) {
	e.strength = cfg
	e.worker.SetStrength(cfg)
}

// TT returns the engine's transposition table, for callers (such as
// internal/ttstore) that snapshot or restore search state directly.
func (e *Engine) TT() *TranspositionTable {
	return e.tt
}

// Resize rebuilds the transposition table at the given size in MiB and
// re-points the worker at it. Any prior table contents are discarded,
// matching the UCI convention that changing Hash implies a fresh table
// rather than a resized-in-place one.
func (e *Engine) Resize(sizeMB int) {
	tt := NewTranspositionTable(sizeMB)
	e.tt = tt
	e.worker.tt = tt
}

// SetPositionHistory sets the position history for repetition detection.
// This should be called before Search() with hashes from the game's move history.
func (e *Engine) SetPositionHistory(hashes []uint64) {
	e.rootPosHashes = make([]uint64, len(hashes))
	copy(e.rootPosHashes, hashes)

	e.worker.SetRootHistory(hashes)
}

// Search finds the best move for the given position.
func (e *Engine) Search(pos *board.Position) board.Move {
	limits := DifficultySettings[e.difficulty]
	return e.SearchWithLimits(pos, limits)
}

// SearchWithLimits finds the best move with specific search limits, running
// plain iterative deepening on the single worker: depth 1, 2, 3, ... until
// the limit fires, each depth searched to completion (or interrupted)
// before the next begins.
func (e *Engine) SearchWithLimits(pos *board.Position, limits SearchLimits) board.Move {
	e.stopFlag.Store(false)
	e.tt.NewSearch()
	e.worker.Reset()
	e.worker.InitSearch(pos)
	e.worker.SetRootMoves(limits.SearchMoves)
	e.worker.OnRootMove = e.emitCurrMove

	startTime := time.Now()
	var deadline time.Time
	if limits.MoveTime > 0 {
		deadline = startTime.Add(limits.MoveTime)
	}
	e.worker.SetBudgets(limits.Nodes, deadline)

	var bestMove board.Move
	var bestScore int
	var prevScore int

	maxDepth := MaxPly
	if limits.Depth > 0 {
		maxDepth = limits.Depth
	}

	for depth := 1; depth <= maxDepth; depth++ {
		if e.stopFlag.Load() {
			break
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			break
		}

		move, score := e.searchOneDepth(depth, prevScore)
		if abs(score) >= Interrupted || e.stopFlag.Load() {
			// Budget ran out mid-iteration: keep the previous depth's move.
			break
		}
		prevScore = score

		if move != board.NoMove {
			bestMove = move
			bestScore = score

			if e.OnInfo != nil {
				e.OnInfo(SearchInfo{
					Depth:    depth,
					SelDepth: e.worker.SelDepth(),
					Score:    bestScore,
					Nodes:    e.worker.Nodes(),
					Time:     time.Since(startTime),
					PV:       e.worker.GetPV(),
					HashFull: e.tt.HashFull(),
				})
			}

			if mateFound(bestScore, limits.MateIn) {
				break
			}
		}

		if limits.Nodes > 0 && e.worker.Nodes() >= limits.Nodes {
			break
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			break
		}
	}

	e.stopFlag.Store(true)
	return bestMove
}

// mateFound reports whether score proves a mate tight enough to stop the
// iterative deepening loop: any mate when mateIn is 0, or one within the
// requested move count for "go mate N".
func mateFound(score, mateIn int) bool {
	if score < MateScore-MaxPly && score > -MateScore+MaxPly {
		return false
	}
	if mateIn <= 0 {
		return true
	}
	return score >= MateScore-2*mateIn
}

// emitCurrMove forwards the worker's root-move progress to the protocol
// callback, if one is installed.
func (e *Engine) emitCurrMove(move board.Move, number int) {
	if e.OnCurrMove != nil {
		e.OnCurrMove(move, number)
	}
}

// searchOneDepth runs one iterative-deepening iteration with an aspiration
// window derived from the previous iteration's score, widening and
// re-searching on a fail-high/fail-low.
func (e *Engine) searchOneDepth(depth, prevScore int) (board.Move, int) {
	if depth < 5 || prevScore == 0 {
		return e.worker.SearchDepth(depth, -Infinity, Infinity)
	}

	window := 50
	alpha := prevScore - window
	beta := prevScore + window

	for {
		move, score := e.worker.SearchDepth(depth, alpha, beta)
		if abs(score) >= Interrupted || e.stopFlag.Load() {
			return move, score
		}

		if score <= alpha {
			alpha = -Infinity
		} else if score >= beta {
			beta = Infinity
		} else {
			return move, score
		}

		if alpha == -Infinity && beta == Infinity {
			return e.worker.SearchDepth(depth, -Infinity, Infinity)
		}
	}
}

// SearchWithUCILimits finds the best move using UCI time controls.
// Supports wtime/btime/winc/binc for proper tournament time management.
func (e *Engine) SearchWithUCILimits(pos *board.Position, limits UCILimits, ply int) board.Move {
	tm := NewTimeManager()
	tm.Init(limits, pos.SideToMove, ply)

	e.stopFlag.Store(false)
	e.tt.NewSearch()
	e.worker.Reset()
	e.worker.InitSearch(pos)
	e.worker.SetRootMoves(limits.SearchMoves)
	e.worker.OnRootMove = e.emitCurrMove
	e.worker.SetBudgets(limits.Nodes, tm.HardDeadline())

	startTime := time.Now()
	var bestMove board.Move
	var bestScore int
	var prevScore int
	var lastBestMove board.Move
	var stabilityCount int

	maxDepth := MaxPly
	if limits.Depth > 0 {
		maxDepth = limits.Depth
	}

	for depth := 1; depth <= maxDepth; depth++ {
		// Soft budget: don't begin another iteration once spent. The hard
		// budget aborts mid-iteration via the worker's periodic probe.
		if depth > 1 && tm.PastOptimum() {
			break
		}
		if tm.ShouldStop() {
			break
		}

		move, score := e.searchOneDepth(depth, prevScore)
		if abs(score) >= Interrupted || e.stopFlag.Load() {
			break
		}
		prevScore = score

		if move != board.NoMove {
			if move.Equals(lastBestMove) {
				stabilityCount++
				tm.AdjustForStability(stabilityCount)
			} else {
				if lastBestMove != board.NoMove {
					tm.AdjustForInstability(1)
				}
				stabilityCount = 0
			}
			lastBestMove = move

			bestMove = move
			bestScore = score

			if e.OnInfo != nil {
				e.OnInfo(SearchInfo{
					Depth:    depth,
					SelDepth: e.worker.SelDepth(),
					Score:    bestScore,
					Nodes:    e.worker.Nodes(),
					Time:     time.Since(startTime),
					PV:       e.worker.GetPV(),
					HashFull: e.tt.HashFull(),
				})
			}

			if mateFound(bestScore, limits.MateIn) {
				break
			}
		}

		if limits.Nodes > 0 && e.worker.Nodes() >= limits.Nodes {
			break
		}
	}

	e.stopFlag.Store(true)
	return bestMove
}

// Stop stops the current search.
func (e *Engine) Stop() {
	e.stopFlag.Store(true)
}

// Clear clears the transposition table and other caches, for ucinewgame.
func (e *Engine) Clear() {
	e.tt.Clear()
	e.worker.orderer.Clear()
	e.worker.corrHistory.Clear()
	e.worker.pawnTable.Clear()
}

// Perft performs a perft test (for debugging move generation).
func (e *Engine) Perft(pos *board.Position, depth int) uint64 {
	if depth == 0 {
		return 1
	}

	moves := pos.GenerateLegalMoves()
	if depth == 1 {
		return uint64(moves.Len())
	}

	var nodes uint64
	for i := 0; i < moves.Len(); i++ {
		move := moves.Get(i)
		undo := pos.MakeMove(move)
		nodes += e.Perft(pos, depth-1)
		pos.UnmakeMove(move, undo)
	}

	return nodes
}

// Evaluate returns the static evaluation of a position.
func (e *Engine) Evaluate(pos *board.Position) int {
	return Evaluate(pos)
}

// ScoreToString converts a score to a human-readable string.
func ScoreToString(score int) string {
	if score > MateScore-100 {
		mateIn := (MateScore - score + 1) / 2
		return "Mate in " + itoa(mateIn)
	}
	if score < -MateScore+100 {
		mateIn := (MateScore + score + 1) / 2
		return "Mated in " + itoa(mateIn)
	}

	// Convert centipawns to pawns
	sign := ""
	if score < 0 {
		sign = "-"
		score = -score
	}
	pawns := score / 100
	centipawns := itoa(score % 100)
	if len(centipawns) < 2 {
		centipawns = "0" + centipawns
	}

	return sign + itoa(pawns) + "." + centipawns
}

// Simple integer to string (avoid fmt import)
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	if n < 0 {
		return "-" + itoa(-n)
	}
	s := ""
	for n > 0 {
		s = string('0'+byte(n%10)) + s
		n /= 10
	}
	return s
}
