package engine

import (
	"testing"
	"time"

	"github.com/hailam/chessplay/internal/board"
)

func TestTimeManagerFixedMoveTime(t *testing.T) {
	tm := NewTimeManager()
	tm.Init(UCILimits{MoveTime: 500 * time.Millisecond}, board.White, 0)

	if tm.SoftBudget() != 500*time.Millisecond || tm.HardBudget() != 500*time.Millisecond {
		t.Errorf("movetime should pin both budgets: soft=%v hard=%v", tm.SoftBudget(), tm.HardBudget())
	}
}

func TestTimeManagerHardIsFourTimesSoft(t *testing.T) {
	tm := NewTimeManager()
	tm.Init(UCILimits{
		Time:      [2]time.Duration{5 * time.Minute, 5 * time.Minute},
		MovesToGo: 40,
	}, board.White, 10)

	if tm.HardBudget() != tm.SoftBudget()*hardBudgetFactor {
		t.Errorf("hard budget %v is not %dx soft budget %v",
			tm.HardBudget(), hardBudgetFactor, tm.SoftBudget())
	}
}

func TestTimeManagerCollapseOnShortClock(t *testing.T) {
	// With almost no time left, the soft budget alone would eat the
	// clock; both budgets must collapse to an even split.
	tm := NewTimeManager()
	tm.Init(UCILimits{
		Time:      [2]time.Duration{200 * time.Millisecond, 200 * time.Millisecond},
		Inc:       [2]time.Duration{time.Second, time.Second},
		MovesToGo: 1,
	}, board.Black, 60)

	if tm.SoftBudget() != tm.HardBudget() {
		t.Errorf("collapse rule not applied: soft=%v hard=%v", tm.SoftBudget(), tm.HardBudget())
	}
	if tm.HardBudget() >= 200*time.Millisecond {
		t.Errorf("collapsed budget %v would flag on a 200ms clock", tm.HardBudget())
	}
}

func TestTimeManagerInfinite(t *testing.T) {
	tm := NewTimeManager()
	tm.Init(UCILimits{Infinite: true}, board.White, 0)

	if tm.ShouldStop() || tm.PastOptimum() {
		t.Error("infinite search should never time out")
	}
}

func TestTimeManagerStabilityShrinksSoft(t *testing.T) {
	tm := NewTimeManager()
	tm.Init(UCILimits{
		Time:      [2]time.Duration{time.Minute, time.Minute},
		MovesToGo: 30,
	}, board.White, 4)

	before := tm.SoftBudget()
	tm.AdjustForStability(4)
	if tm.SoftBudget() >= before {
		t.Errorf("stable best move did not shrink the soft budget: %v -> %v", before, tm.SoftBudget())
	}
	if tm.HardBudget() < tm.SoftBudget() {
		t.Error("soft budget exceeded hard budget")
	}
}
