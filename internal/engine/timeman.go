package engine

import (
	"time"

	"github.com/hailam/chessplay/internal/board"
)

// UCILimits contains UCI time control parameters.
type UCILimits struct {
	Time      [2]time.Duration // wtime, btime (remaining time for each color)
	Inc       [2]time.Duration // winc, binc (increment per move)
	MovesToGo int              // moves until next time control (0 = sudden death)
	MoveTime  time.Duration    // fixed time per move (overrides other time controls)
	Depth     int              // maximum search depth
	Nodes     uint64           // maximum nodes to search
	MateIn    int              // stop once a mate in at most this many moves is proven
	Infinite  bool             // search until stopped
	Ponder    bool             // ponder mode

	// SearchMoves restricts the root to these moves when non-empty.
	SearchMoves []board.Move
}

// clockReserve is held back from the remaining clock so the engine never
// flags on transmission latency the Move Overhead option didn't cover.
const clockReserve = 50 * time.Millisecond

// hardBudgetFactor relates the hard abort budget to the soft one: the soft
// budget gates starting another iteration, the hard budget aborts the
// iteration in progress.
const hardBudgetFactor = 4

// TimeManager turns a UCI clock state into a soft and a hard time budget
// for one search. Soft: don't begin another depth once exceeded. Hard:
// abort mid-depth.
type TimeManager struct {
	soft  time.Duration
	hard  time.Duration
	start time.Time
}

// NewTimeManager creates a new time manager.
func NewTimeManager() *TimeManager {
	return &TimeManager{}
}

// Init computes the budgets for the side to move at the given game ply.
func (tm *TimeManager) Init(limits UCILimits, us board.Color, ply int) {
	tm.start = time.Now()

	if limits.MoveTime > 0 {
		tm.soft = limits.MoveTime
		tm.hard = limits.MoveTime
		return
	}

	if limits.Infinite || limits.Time[us] == 0 {
		tm.soft = time.Hour
		tm.hard = time.Hour
		return
	}

	remaining := limits.Time[us]
	inc := limits.Inc[us]

	mtg := limits.MovesToGo
	if mtg == 0 {
		// Sudden death: assume the game still has a healthy number of
		// moves early on, fewer as it goes.
		mtg = 50 - ply/4
		if mtg < 10 {
			mtg = 10
		}
	}

	tm.soft = remaining/time.Duration(mtg) + inc*9/10
	tm.hard = tm.soft * hardBudgetFactor

	// Collapse rule: when the soft budget alone would eat the clock, both
	// budgets fall back to an even split of what is left.
	if tm.soft >= remaining-clockReserve {
		even := (remaining - clockReserve) / time.Duration(mtg)
		if even < 10*time.Millisecond {
			even = 10 * time.Millisecond
		}
		tm.soft = even
		tm.hard = even
		return
	}
	if tm.hard >= remaining-clockReserve {
		tm.hard = remaining - clockReserve
	}

	if tm.soft < 10*time.Millisecond {
		tm.soft = 10 * time.Millisecond
	}
	if tm.hard < tm.soft {
		tm.hard = tm.soft
	}
}

// Elapsed returns the time elapsed since search started.
func (tm *TimeManager) Elapsed() time.Duration {
	return time.Since(tm.start)
}

// SoftBudget returns the budget past which no new iteration starts.
func (tm *TimeManager) SoftBudget() time.Duration { return tm.soft }

// HardBudget returns the budget past which the search aborts mid-iteration.
func (tm *TimeManager) HardBudget() time.Duration { return tm.hard }

// ShouldStop reports whether the hard budget is exhausted.
func (tm *TimeManager) ShouldStop() bool {
	return tm.Elapsed() >= tm.hard
}

// PastOptimum reports whether the soft budget is exhausted: the iterative
// deepening loop should not begin another depth.
func (tm *TimeManager) PastOptimum() bool {
	return tm.Elapsed() >= tm.soft
}

// HardDeadline returns the wall-clock instant of the hard budget, for the
// search's periodic time probe.
func (tm *TimeManager) HardDeadline() time.Time {
	return tm.start.Add(tm.hard)
}

// AdjustForStability shrinks the soft budget when the best move has been
// stable for several consecutive depths.
func (tm *TimeManager) AdjustForStability(stability int) {
	switch {
	case stability >= 6:
		tm.soft = tm.soft * 40 / 100
	case stability >= 4:
		tm.soft = tm.soft * 60 / 100
	case stability >= 2:
		tm.soft = tm.soft * 80 / 100
	}
}

// AdjustForInstability grows the soft budget (bounded by the hard one)
// when the best move keeps changing between depths.
func (tm *TimeManager) AdjustForInstability(changes int) {
	switch {
	case changes >= 4:
		tm.soft = tm.soft * 2
	case changes >= 2:
		tm.soft = tm.soft * 3 / 2
	}
	if tm.soft > tm.hard {
		tm.soft = tm.hard
	}
}
