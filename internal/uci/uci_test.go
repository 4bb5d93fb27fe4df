package uci

import (
	"strings"
	"testing"
	"time"

	"github.com/hailam/chessplay/internal/board"
	"github.com/hailam/chessplay/internal/engine"
)

func newTestUCI() *UCI {
	return New(engine.NewEngine(1))
}

func TestHandlePositionStartposWithMoves(t *testing.T) {
	u := newTestUCI()
	u.handlePosition([]string{"startpos", "moves", "e2e4", "e7e5", "g1f3"})

	if u.position.SideToMove != board.Black {
		t.Errorf("side to move %v, want Black", u.position.SideToMove)
	}
	if len(u.positionHashes) != 4 {
		t.Errorf("recorded %d hashes, want 4 (start + 3 moves)", len(u.positionHashes))
	}
	if u.position.Hash != u.position.ComputeHash() {
		t.Error("incremental hash diverged while applying the move list")
	}
}

func TestHandlePositionFEN(t *testing.T) {
	u := newTestUCI()
	fen := "r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq -"
	u.handlePosition(append([]string{"fen"}, strings.Fields(fen)...))

	if got := u.position.ToFEN(); !strings.HasPrefix(got, fen) {
		t.Errorf("position FEN %q does not match input %q", got, fen)
	}
}

func TestHandlePositionRejectsIllegalMove(t *testing.T) {
	u := newTestUCI()
	u.handlePosition([]string{"startpos", "moves", "e2e5"})

	// The illegal move and everything after it are dropped; as it is the
	// first move, only the starting position's hash stays recorded.
	if len(u.positionHashes) > 1 {
		t.Errorf("illegal move list still recorded %d hashes", len(u.positionHashes))
	}
}

func TestParseGoOptions(t *testing.T) {
	u := newTestUCI()
	u.handlePosition([]string{"startpos"})

	opts := u.parseGoOptions(strings.Fields(
		"wtime 60000 btime 55000 winc 1000 binc 1000 movestogo 20 depth 12 mate 3 searchmoves e2e4 d2d4"))

	if opts.WTime != 60*time.Second || opts.BTime != 55*time.Second {
		t.Errorf("clock parse wrong: %v / %v", opts.WTime, opts.BTime)
	}
	if opts.MovesToGo != 20 || opts.Depth != 12 || opts.Mate != 3 {
		t.Errorf("numeric options wrong: %+v", opts)
	}
	if len(opts.SearchMoves) != 2 {
		t.Fatalf("searchmoves parsed %d moves, want 2", len(opts.SearchMoves))
	}
	if opts.SearchMoves[0].String() != "e2e4" || opts.SearchMoves[1].String() != "d2d4" {
		t.Errorf("searchmoves wrong: %v %v", opts.SearchMoves[0], opts.SearchMoves[1])
	}
}

func TestUCILimitsDeductsOverhead(t *testing.T) {
	u := newTestUCI()
	u.moveOverhead = 30 * time.Millisecond

	limits := u.uciLimits(GoOptions{WTime: time.Second, BTime: 40 * time.Millisecond})
	if limits.Time[board.White] != time.Second-30*time.Millisecond {
		t.Errorf("white clock after overhead: %v", limits.Time[board.White])
	}
	if limits.Time[board.Black] != 10*time.Millisecond {
		t.Errorf("black clock after overhead: %v", limits.Time[board.Black])
	}

	// A clock smaller than the overhead still leaves a positive sliver.
	limits = u.uciLimits(GoOptions{WTime: 5 * time.Millisecond})
	if limits.Time[board.White] <= 0 {
		t.Errorf("tiny clock collapsed to %v", limits.Time[board.White])
	}
}
