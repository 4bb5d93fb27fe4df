package board

import "testing"

// playSequence applies the given long-algebraic moves to a fresh board,
// failing the test on any parse or legality problem.
func playSequence(t *testing.T, b *Board, moves ...string) {
	t.Helper()
	for _, s := range moves {
		m, err := ParseMove(s, b.Pos())
		if err != nil {
			t.Fatalf("parse %q: %v", s, err)
		}
		if !b.Pos().IsLegal(m) {
			t.Fatalf("move %q is not legal in\n%s", s, b.Pos())
		}
		if !b.Play(m) {
			t.Fatalf("ring refused move %q", s)
		}
	}
}

func TestZobristIncrementalMatchesRecomputed(t *testing.T) {
	b := NewBoard()

	// A line touching every incremental-update path: double pushes, an en
	// passant capture, castling, an ordinary capture.
	moves := []string{
		"e2e4", "d7d5", "e4e5", "f7f5", "e5f6", "g8f6",
		"g1f3", "b8c6", "f1b5", "c8d7", "e1g1", "e7e5",
		"b5c6", "d7c6",
	}

	for _, s := range moves {
		m, err := ParseMove(s, b.Pos())
		if err != nil {
			t.Fatalf("parse %q: %v", s, err)
		}
		if !b.Play(m) {
			t.Fatalf("play %q", s)
		}

		pos := b.Pos()
		if pos.Hash != pos.ComputeHash() {
			t.Fatalf("after %s: incremental hash %016x != recomputed %016x", s, pos.Hash, pos.ComputeHash())
		}
		if pos.PawnKey != pos.ComputePawnKey() {
			t.Fatalf("after %s: incremental pawn key %016x != recomputed %016x", s, pos.PawnKey, pos.ComputePawnKey())
		}
	}

	for range moves {
		b.Undo()
		pos := b.Pos()
		if pos.Hash != pos.ComputeHash() {
			t.Fatalf("after undo: incremental hash %016x != recomputed %016x", pos.Hash, pos.ComputeHash())
		}
	}
}

func TestZobristPromotionAndRights(t *testing.T) {
	pos, err := ParseFEN("r3k3/1P6/8/8/8/8/8/4K3 w q - 0 1")
	if err != nil {
		t.Fatal(err)
	}

	// Promotion capturing the rook also extinguishes black's queenside
	// castling right; all three keys change in one move.
	m := NewPromotion(B7, A8, Queen, Rook)
	undo := pos.MakeMove(m)
	if !undo.Valid {
		t.Fatal("promotion capture rejected")
	}

	if pos.Hash != pos.ComputeHash() {
		t.Errorf("hash mismatch after promotion capture")
	}
	if pos.PawnKey != pos.ComputePawnKey() {
		t.Errorf("pawn key mismatch after promotion capture")
	}
	if pos.CastlingRights != NoCastling {
		t.Errorf("castling rights not extinguished: %v", pos.CastlingRights)
	}

	pos.UnmakeMove(m, undo)
	if pos.Hash != pos.ComputeHash() {
		t.Errorf("hash mismatch after unmake")
	}
}

func TestPlayUndoRestoresSlotExactly(t *testing.T) {
	b, err := NewBoardFromFEN("r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq -")
	if err != nil {
		t.Fatal(err)
	}

	before := *b.Pos()
	moves := b.Pos().GenerateLegalMoves()
	for i := 0; i < moves.Len(); i++ {
		if !b.Play(moves.Get(i)) {
			t.Fatalf("ring refused %v", moves.Get(i))
		}
		b.Undo()
		if *b.Pos() != before {
			t.Fatalf("slot state changed across Play/Undo of %v", moves.Get(i))
		}
	}
}

func TestIsLegalLeavesStateUntouched(t *testing.T) {
	fens := []string{
		StartFEN,
		"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq -",
		"8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - -",
		"8/8/8/8/k2Pp2R/8/8/4K3 b - d3 0 1",
	}

	for _, fen := range fens {
		pos, err := ParseFEN(fen)
		if err != nil {
			t.Fatalf("%s: %v", fen, err)
		}

		before := *pos
		pseudo := pos.GeneratePseudoLegalMoves()
		for i := 0; i < pseudo.Len(); i++ {
			pos.IsLegal(pseudo.Get(i))
			if *pos != before {
				t.Fatalf("%s: IsLegal(%v) modified the position", fen, pseudo.Get(i))
			}
		}
	}
}

func TestRingRepetitionDetection(t *testing.T) {
	b := NewBoard()
	playSequence(t, b, "g1f3", "g8f6", "f3g1", "f6g8")

	if !b.IsRepetition() {
		t.Error("knight shuffle back to the start was not flagged as a repetition")
	}

	// A pawn push resets the reach of the repetition scan.
	playSequence(t, b, "e2e4")
	if b.IsRepetition() {
		t.Error("fresh position after a pawn push flagged as repetition")
	}
}

func TestNullMoveRoundTrip(t *testing.T) {
	b, err := NewBoardFromFEN("r1bqkbnr/pppp1ppp/2n5/4p3/2B1P3/5N2/PPPP1PPP/RNBQK2R b KQkq - 3 3")
	if err != nil {
		t.Fatal(err)
	}

	before := *b.Pos()
	if !b.PlayNull() {
		t.Fatal("PlayNull refused")
	}
	if b.Pos().SideToMove != before.SideToMove.Other() {
		t.Error("null move did not flip the side to move")
	}
	if b.Pos().EnPassant != NoSquare {
		t.Error("null move did not clear the en passant square")
	}
	b.Undo()
	if *b.Pos() != before {
		t.Error("ring slot changed across PlayNull/Undo")
	}
}

func TestRingMoveLegality(t *testing.T) {
	// White king on e1 is in check from the rook on e8; only moves
	// resolving the check may pass IsMoveLegal.
	b, err := NewBoardFromFEN("4r2k/8/8/8/8/8/3P1P2/4K3 w - - 0 1")
	if err != nil {
		t.Fatal(err)
	}

	pseudo := b.Pos().GeneratePseudoLegalMoves()
	legalCount := 0
	for i := 0; i < pseudo.Len(); i++ {
		before := b.Ply()
		if b.IsMoveLegal(pseudo.Get(i)) {
			legalCount++
			b.Undo()
		}
		if b.Ply() != before {
			t.Fatalf("IsMoveLegal(%v) left the ring at ply %d, want %d", pseudo.Get(i), b.Ply(), before)
		}
	}

	want := b.Pos().GenerateLegalMoves().Len()
	if legalCount != want {
		t.Errorf("IsMoveLegal accepted %d moves, GenerateLegalMoves found %d", legalCount, want)
	}
}

func TestFENOptionalCounters(t *testing.T) {
	pos, err := ParseFEN("8/8/8/8/3k4/8/3K4/8 w - -")
	if err != nil {
		t.Fatalf("four-field FEN rejected: %v", err)
	}
	if pos.HalfMoveClock != 0 || pos.FullMoveNumber != 1 {
		t.Errorf("omitted counters should default to 0 and 1, got %d and %d", pos.HalfMoveClock, pos.FullMoveNumber)
	}
}

func TestMoveEqualityIgnoresOrderingBits(t *testing.T) {
	m := NewMove(E2, E4)
	stamped := m.WithKillerRank(2).WithHistoryValue(123456)

	if !m.Equals(stamped) {
		t.Error("ordering bits leaked into move equality")
	}
	if m == stamped {
		t.Error("stamping should have changed the raw word")
	}
	if stamped.KillerRank() != 2 || stamped.HistoryValue() != 123456 {
		t.Errorf("ordering fields lost: rank=%d hist=%d", stamped.KillerRank(), stamped.HistoryValue())
	}
}
