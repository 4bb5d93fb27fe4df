package engine

import (
	"testing"

	"github.com/hailam/chessplay/internal/board"
)

// mirrorPosition swaps colors and mirrors every square vertically, flips
// the side to move, mirrors the en passant square and swaps the castling
// rights. eval(P) must equal -eval(mirror(P)).
func mirrorPosition(pos *board.Position) *board.Position {
	m := &board.Position{
		SideToMove:     pos.SideToMove.Other(),
		EnPassant:      board.NoSquare,
		HalfMoveClock:  pos.HalfMoveClock,
		FullMoveNumber: pos.FullMoveNumber,
	}

	for c := board.White; c <= board.Black; c++ {
		for pt := board.Pawn; pt <= board.King; pt++ {
			bb := pos.Pieces[c][pt]
			for bb != 0 {
				sq := bb.PopLSB()
				mirrored := sq.Mirror()
				m.Pieces[c.Other()][pt] = m.Pieces[c.Other()][pt].Set(mirrored)
				m.Occupied[c.Other()] = m.Occupied[c.Other()].Set(mirrored)
				m.AllOccupied = m.AllOccupied.Set(mirrored)
				if pt == board.King {
					m.KingSquare[c.Other()] = mirrored
				}
			}
		}
	}

	if pos.EnPassant != board.NoSquare {
		m.EnPassant = pos.EnPassant.Mirror()
	}

	cr := pos.CastlingRights
	if cr.CanCastle(board.White, true) {
		m.CastlingRights |= board.BlackKingSideCastle
	}
	if cr.CanCastle(board.White, false) {
		m.CastlingRights |= board.BlackQueenSideCastle
	}
	if cr.CanCastle(board.Black, true) {
		m.CastlingRights |= board.WhiteKingSideCastle
	}
	if cr.CanCastle(board.Black, false) {
		m.CastlingRights |= board.WhiteQueenSideCastle
	}

	m.UpdateCheckers()
	return m
}

func TestEvaluationSymmetry(t *testing.T) {
	fens := []string{
		board.StartFEN,
		"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq -",
		"r1bqkbnr/pppp1ppp/2n5/4p3/2B1P3/5N2/PPPP1PPP/RNBQK2R b KQkq - 3 3",
		"8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - -",
		"4rrk1/pp3ppp/2p5/3p4/3P4/2P1R3/PP3PPP/4R1K1 w - - 0 20",
	}

	for _, fen := range fens {
		pos, err := board.ParseFEN(fen)
		if err != nil {
			t.Fatalf("%s: %v", fen, err)
		}
		mirrored := mirrorPosition(pos)

		// From the side to move's perspective, the mover's prospects are
		// identical in the mirrored position, so the scores must agree
		// exactly (the white-perspective scores are each other's negation).
		got := Evaluate(pos)
		want := Evaluate(mirrored)
		if got != want {
			t.Errorf("%s: eval %d, mirrored eval %d", fen, got, want)
		}
	}
}

func TestEvaluateTempoFavorsSideToMove(t *testing.T) {
	// Same placement, only the side to move differs: both sides should
	// see the tempo bonus from their own perspective.
	white, _ := board.ParseFEN("4k3/pppp4/8/8/8/8/PPPP4/4K3 w - - 0 1")
	black, _ := board.ParseFEN("4k3/pppp4/8/8/8/8/PPPP4/4K3 b - - 0 1")

	if Evaluate(white) != Evaluate(black) {
		t.Errorf("mirror-symmetric placement should evaluate identically for either side to move: %d vs %d",
			Evaluate(white), Evaluate(black))
	}
}

func TestEndgameRecognizerDraws(t *testing.T) {
	draws := []string{
		"8/8/8/8/3k4/8/3K4/8 w - - 0 1",    // K vs K
		"8/8/8/8/3k4/8/3KB3/8 w - - 0 1",   // K+B vs K
		"8/8/8/8/3k4/8/3KN3/8 b - - 0 1",   // K+N vs K
		"8/8/8/8/3k4/8/2NKN3/8 w - - 0 1",  // K+2N vs K
	}

	for _, fen := range draws {
		pos, err := board.ParseFEN(fen)
		if err != nil {
			t.Fatal(err)
		}
		score, drawn := EvaluateDetail(pos, nil)
		if !drawn {
			t.Errorf("%s: not classified as drawn", fen)
		}
		if score != 0 {
			t.Errorf("%s: drawn endgame scored %d, want 0", fen, score)
		}
	}
}

func TestEndgameRecognizerKQvK(t *testing.T) {
	pos, err := board.ParseFEN("4k3/8/4K3/4Q3/8/8/8/8 w - - 0 1")
	if err != nil {
		t.Fatal(err)
	}

	score, drawn := EvaluateDetail(pos, nil)
	if drawn {
		t.Fatal("KQ vs K classified as drawn")
	}
	if score < knownWinScore {
		t.Errorf("KQ vs K scored %d, want at least the known-win base %d", score, knownWinScore)
	}

	// From the defender's perspective the same position is lost.
	posB, _ := board.ParseFEN("4k3/8/4K3/4Q3/8/8/8/8 b - - 0 1")
	scoreB, _ := EvaluateDetail(posB, nil)
	if scoreB > -knownWinScore {
		t.Errorf("defender sees %d, want at most %d", scoreB, -knownWinScore)
	}
}

func TestEndgameRecognizerKBNCornerDrive(t *testing.T) {
	// Defender in the wrong-colored corner vs near the right corner: the
	// drive score must prefer the defender closer to a mating corner.
	// The bishop on d3 is light-squared, so the mating corners are a8/h1.
	nearCorner, _ := board.ParseFEN("k7/8/2K5/8/8/3B4/2N5/8 w - - 0 1") // black king a8 (light)
	farCorner, _ := board.ParseFEN("7k/8/5K2/8/8/3B4/2N5/8 w - - 0 1")  // black king h8 (dark)

	nearScore, drawn := EvaluateDetail(nearCorner, nil)
	if drawn {
		t.Fatal("KBN vs K classified as drawn")
	}
	farScore, _ := EvaluateDetail(farCorner, nil)

	if nearScore <= farScore {
		t.Errorf("corner drive not rewarded: near-corner %d <= far-corner %d", nearScore, farScore)
	}
	if nearScore < knownWinScore {
		t.Errorf("KBN vs K scored %d, below known-win base", nearScore)
	}
}

func TestKPKRuleOfTheSquare(t *testing.T) {
	// Black king on h1 is outside the square of the d5 pawn with White to
	// move: the pawn runs.
	won, _ := board.ParseFEN("8/8/8/3P4/8/8/3K4/7k w - - 0 1")
	score, drawn := EvaluateDetail(won, nil)
	if drawn {
		t.Fatal("winning KP vs K classified as drawn")
	}
	if score < knownWinScore {
		t.Errorf("unstoppable pawn scored %d, want at least %d", score, knownWinScore)
	}

	// Defender planted on the stop square with the attacking king behind
	// the pawn: drawn.
	drawnPos, _ := board.ParseFEN("8/8/8/3k4/3P4/8/3K4/8 w - - 0 1")
	score, isDrawn := EvaluateDetail(drawnPos, nil)
	if !isDrawn {
		t.Fatal("blocked KP vs K defensive shape not classified as drawn")
	}
	if score != 0 {
		t.Errorf("drawn KP vs K scored %d", score)
	}
}

func TestEndgameScaleDampsPawnlessEdges(t *testing.T) {
	// R vs R+B without pawns: nominal minor-piece edge, heavily damped.
	pos, _ := board.ParseFEN("4k3/8/8/8/8/8/r7/R2BK3 w - - 0 1")
	scale := endgameScale(pos)
	if scale >= fullEndgameScale {
		t.Errorf("pawnless R+B vs R not damped: scale %d", scale)
	}

	// Same material with pawns on the board: no damping.
	withPawns, _ := board.ParseFEN("4k3/pppppppp/8/8/8/8/rPPPPPPP/R2BK3 w - - 0 1")
	if s := endgameScale(withPawns); s != fullEndgameScale {
		t.Errorf("position with pawns damped to %d", s)
	}
}

func TestSEEBasics(t *testing.T) {
	// Queen takes a pawn defended by a pawn: loses the queen for a pawn.
	pos, err := board.ParseFEN("4k3/3p4/2p5/8/4Q3/8/8/4K3 w - - 0 1")
	if err != nil {
		t.Fatal(err)
	}
	qxc6 := board.NewCapture(board.E4, board.C6, board.Pawn)
	if see := SEE(pos, qxc6); see >= 0 {
		t.Errorf("QxP defended by pawn has SEE %d, want negative", see)
	}

	// Pawn takes a pawn, recaptured by a pawn: even trade.
	pos2, _ := board.ParseFEN("4k3/8/2p5/3p4/4P3/8/8/4K3 w - - 0 1")
	exd5 := board.NewCapture(board.E4, board.D5, board.Pawn)
	if see := SEE(pos2, exd5); see != 0 {
		t.Errorf("PxP recaptured by pawn has SEE %d, want 0", see)
	}
}
