package board

import "testing"

// drainGenerator pulls every move out of g, recording the stage each one
// arrived in.
func drainGenerator(g *Generator) (moves []Move, stages []GenerationStage) {
	for {
		m, stage, ok := g.NextMove()
		if !ok {
			return moves, stages
		}
		moves = append(moves, m)
		stages = append(stages, stage)
	}
}

func TestGeneratorPhaseOrder(t *testing.T) {
	pos, err := ParseFEN("r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq -")
	if err != nil {
		t.Fatal(err)
	}

	best, err := ParseMove("e2a6", pos) // bishop takes a6: a known capture
	if err != nil {
		t.Fatal(err)
	}

	g := NewGenerator(pos, best)
	moves, stages := drainGenerator(g)

	if len(moves) == 0 {
		t.Fatal("generator yielded nothing")
	}
	if stages[0] != StageBest || !moves[0].Equals(best) {
		t.Fatalf("first yield = %v in stage %v, want best move %v", moves[0], stages[0], best)
	}
	if !moves[0].IsBest() {
		t.Error("best move not stamped with the best-move flag")
	}

	// Stages must be monotone: best, captures, quiets.
	lastStage := StageBest
	for i, st := range stages {
		if st < lastStage {
			t.Fatalf("yield %d regressed from stage %v to %v", i, lastStage, st)
		}
		lastStage = st
	}

	// The best move must not be yielded a second time.
	for i := 1; i < len(moves); i++ {
		if moves[i].Equals(best) {
			t.Error("best move yielded twice")
		}
	}

	// Coverage: the generator must yield exactly the legal move set.
	legal := pos.GenerateLegalMoves()
	if len(moves) != legal.Len() {
		t.Errorf("generator yielded %d moves, legal move count is %d", len(moves), legal.Len())
	}
	for _, m := range moves {
		if !legal.Contains(m) {
			t.Errorf("generator yielded non-legal move %v", m)
		}
	}
}

func TestGeneratorCapturesSortedByVictim(t *testing.T) {
	// White queen can take a pawn, a knight or a rook.
	pos, err := ParseFEN("4k3/8/1r6/2p5/1Q1n4/8/8/4K3 w - - 0 1")
	if err != nil {
		t.Fatal(err)
	}

	g := NewGenerator(pos, NoMove)
	var captures []Move
	for {
		m, stage, ok := g.NextMove()
		if !ok || stage != StageCaptures {
			break
		}
		captures = append(captures, m)
	}

	if len(captures) < 3 {
		t.Fatalf("expected at least 3 captures, got %d", len(captures))
	}
	for i := 1; i < len(captures); i++ {
		prev := PieceValue[captures[i-1].Victim()]
		cur := PieceValue[captures[i].Victim()]
		if cur > prev {
			t.Errorf("captures out of MVV order: %v (victim %d) before %v (victim %d)",
				captures[i-1], prev, captures[i], cur)
		}
	}
}

func TestCaptureGeneratorSkipsQuiets(t *testing.T) {
	pos, err := ParseFEN("r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq -")
	if err != nil {
		t.Fatal(err)
	}

	g := NewCaptureGenerator(pos)
	moves, _ := drainGenerator(g)

	if len(moves) == 0 {
		t.Fatal("capture generator yielded nothing in a tactical position")
	}
	for _, m := range moves {
		if !m.IsCapture() && !m.IsPromotion() {
			t.Errorf("capture generator yielded quiet move %v", m)
		}
	}
}

func TestGeneratorStampsChecks(t *testing.T) {
	// Rook lift to e8 is check; king moves are not.
	pos, err := ParseFEN("3k4/8/8/8/8/8/8/4R1K1 w - - 0 1")
	if err != nil {
		t.Fatal(err)
	}

	g := NewGenerator(pos, NoMove)
	moves, _ := drainGenerator(g)

	sawCheck := false
	for _, m := range moves {
		if m.From() == E1 && m.To() == E8 {
			if !m.GivesCheck() {
				t.Error("Re8+ not stamped as a checking move")
			}
			sawCheck = true
		}
		if m.From() == G1 && m.GivesCheck() {
			t.Errorf("king move %v stamped as check", m)
		}
	}
	if !sawCheck {
		t.Error("Re8 never generated")
	}
}

func TestGeneratorTriedTracksYields(t *testing.T) {
	pos := NewPosition()
	var g Generator
	g.Reset(pos, NoMove)

	var yielded []Move
	for i := 0; i < 5; i++ {
		m, _, ok := g.NextMove()
		if !ok {
			break
		}
		yielded = append(yielded, m)
	}

	tried := g.Tried()
	if len(tried) != len(yielded) {
		t.Fatalf("Tried() has %d moves, yielded %d", len(tried), len(yielded))
	}
	for i := range tried {
		if !tried[i].Equals(yielded[i]) {
			t.Errorf("Tried()[%d] = %v, yielded %v", i, tried[i], yielded[i])
		}
	}
}
