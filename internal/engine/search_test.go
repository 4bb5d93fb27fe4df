package engine

import (
	"testing"
	"time"

	"github.com/hailam/chessplay/internal/board"
)

// searchWithInfo runs a fixed-limit search and returns the best move plus
// the last info emitted.
func searchWithInfo(t *testing.T, fen string, limits SearchLimits) (board.Move, SearchInfo) {
	t.Helper()

	pos, err := board.ParseFEN(fen)
	if err != nil {
		t.Fatalf("%s: %v", fen, err)
	}

	eng := NewEngine(16)
	var last SearchInfo
	eng.OnInfo = func(info SearchInfo) { last = info }

	move := eng.SearchWithLimits(pos, limits)
	return move, last
}

func TestStartposDepthOne(t *testing.T) {
	move, info := searchWithInfo(t, board.StartFEN, SearchLimits{Depth: 1})

	pos := board.NewPosition()
	if !pos.GenerateLegalMoves().Contains(move) {
		t.Fatalf("depth-1 search returned non-legal move %v", move)
	}
	if info.Depth != 1 {
		t.Errorf("reported depth %d, want 1", info.Depth)
	}
	if info.Score < -200 || info.Score > 200 {
		t.Errorf("startpos depth-1 score %d outside +/-200cp", info.Score)
	}
}

func TestBareKingsIsDraw(t *testing.T) {
	_, info := searchWithInfo(t, "8/8/8/8/3k4/8/3K4/8 w - - 0 1", SearchLimits{Depth: 1})
	if info.Score != 0 {
		t.Errorf("K vs K scored %d, want 0", info.Score)
	}
}

func TestKQvKFindsWin(t *testing.T) {
	move, info := searchWithInfo(t, "4k3/8/4K3/4Q3/8/8/8/8 w - - 0 1",
		SearchLimits{Depth: 10, MoveTime: 2 * time.Second})

	if move == board.NoMove {
		t.Fatal("no move returned in a trivially won position")
	}
	if info.Score < knownWinScore {
		t.Errorf("KQ vs K scored %d, want at least %d", info.Score, knownWinScore)
	}
}

func TestLonePawnEndgameSearch(t *testing.T) {
	// Scenario: a lone black king and a black pawn about to promote, with no
	// White pieces at all; the search must complete without corrupting the
	// position.
	fen := "8/8/8/8/8/8/7p/7k w - - 0 1"
	pos, err := board.ParseFEN(fen)
	if err != nil {
		t.Fatal(err)
	}
	before := *pos

	eng := NewEngine(4)
	eng.SearchWithLimits(pos, SearchLimits{Depth: 10, MoveTime: time.Second})

	if *pos != before {
		t.Error("search modified the caller's position")
	}
}

func TestRuyLopezSearchDepthSix(t *testing.T) {
	// Position after 1.e4 e5 2.Nf3 Nc6 3.Bb5 a6 4.Ba4 Nf6 5.O-O Be7
	// 6.Re1 b5 7.Bb3.
	fen := "r1bqk2r/2ppbppp/p1n2n2/1p2p3/4P3/1B3N2/PPPP1PPP/RNBQR1K1 b kq - 1 7"
	move, info := searchWithInfo(t, fen, SearchLimits{Depth: 6, MoveTime: 5 * time.Second})

	pos, _ := board.ParseFEN(fen)
	if !pos.GenerateLegalMoves().Contains(move) {
		t.Fatalf("returned non-legal move %v", move)
	}
	if len(info.PV) < 3 {
		t.Errorf("PV length %d, want at least 3", len(info.PV))
	}

	// Every PV move must be legal when played in sequence.
	b, _ := board.NewBoardFromFEN(fen)
	for i, m := range info.PV {
		if !b.Pos().IsLegal(m) {
			t.Fatalf("PV move %d (%v) is illegal", i, m)
		}
		b.Play(m)
	}
}

func TestSearchDeterminism(t *testing.T) {
	fen := "r1bqkbnr/pppp1ppp/2n5/4p3/2B1P3/5N2/PPPP1PPP/RNBQK2R b KQkq - 3 3"
	limits := SearchLimits{Depth: 5}

	run := func() (board.Move, []board.Move) {
		pos, _ := board.ParseFEN(fen)
		eng := NewEngine(8)
		var pv []board.Move
		eng.OnInfo = func(info SearchInfo) { pv = info.PV }
		move := eng.SearchWithLimits(pos, limits)
		return move, pv
	}

	move1, pv1 := run()
	move2, pv2 := run()

	if !move1.Equals(move2) {
		t.Fatalf("same input, different moves: %v vs %v", move1, move2)
	}
	if len(pv1) != len(pv2) {
		t.Fatalf("same input, different PV lengths: %d vs %d", len(pv1), len(pv2))
	}
	for i := range pv1 {
		if !pv1[i].Equals(pv2[i]) {
			t.Errorf("PV diverges at %d: %v vs %v", i, pv1[i], pv2[i])
		}
	}
}

func TestSearchMovesRestriction(t *testing.T) {
	pos := board.NewPosition()
	only, err := board.ParseMove("a2a3", pos)
	if err != nil {
		t.Fatal(err)
	}

	move, _ := searchWithInfo(t, board.StartFEN, SearchLimits{
		Depth:       3,
		SearchMoves: []board.Move{only},
	})

	if !move.Equals(only) {
		t.Errorf("searchmoves restricted to a2a3, got %v", move)
	}
}

func TestNodeLimitStopsSearch(t *testing.T) {
	pos := board.NewPosition()
	eng := NewEngine(8)

	move := eng.SearchWithLimits(pos, SearchLimits{Depth: 64, Nodes: 20000})
	if move == board.NoMove {
		t.Fatal("node-limited search returned no move")
	}
	// Generous slack: the periodic probe fires every 2048 nodes.
	if n := eng.worker.Nodes(); n > 20000+65536 {
		t.Errorf("node limit 20000 overshot to %d", n)
	}
}

func TestMateScoreRelativity(t *testing.T) {
	// Back-rank mate in one: Ra8#.
	move, info := searchWithInfo(t, "6k1/5ppp/8/8/8/8/8/R3K3 w - - 0 1",
		SearchLimits{Depth: 6})

	if got := move.String(); got != "a1a8" {
		t.Errorf("mate in one not found: got %s", got)
	}
	if info.Score != MateScore-1 {
		t.Errorf("mate-in-one score %d, want %d", info.Score, MateScore-1)
	}
}

func TestRepeatedRootHistorySearchCompletes(t *testing.T) {
	// The search root has already occurred twice in the game history: any
	// line repeating it once more must score 0.
	pos := board.NewPosition()
	eng := NewEngine(4)
	eng.SetPositionHistory([]uint64{pos.Hash, 0xDEAD, pos.Hash})

	var last SearchInfo
	eng.OnInfo = func(info SearchInfo) { last = info }
	eng.SearchWithLimits(pos, SearchLimits{Depth: 4})

	// Not asserting a specific move, only that search completed sanely.
	if last.Depth == 0 {
		t.Error("no iteration completed")
	}
}
