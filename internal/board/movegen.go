package board

// GenerationStage enumerates the phased order the search wants moves in:
// the transposition table's remembered best move first, then captures
// (so the ones most likely to refute can prune the rest early), then
// quiet moves. Generator walks through these phases lazily.
type GenerationStage int

const (
	StageBest GenerationStage = iota
	StageCaptures
	StageQuiets
	StageDone
)

// Generator produces moves for a position one phase at a time (best move,
// then captures, then quiets)
// instead of generating and sorting everything up front. Search asks for
// NextMove repeatedly; Generator only pays the cost of generating a phase
// the search actually reaches (a beta cutoff on the first capture never
// touches quiet generation at all).
type Generator struct {
	pos          *Position
	stage        GenerationStage
	best         Move
	hasBest      bool
	capturesOnly bool

	// Optional per-phase stampers installed via OrderBy. Each takes a raw
	// generated move and returns it with its ordering fields (killer rank,
	// history value) filled in; the generator then sorts the phase by the
	// history value alone, which keeps the sort comparison branch-light.
	captureStamp func(Move) Move
	quietStamp   func(Move) Move

	captures  MoveList
	quiets    MoveList
	tried     MoveList
	capIdx    int
	quietIdx  int
	generated bool
}

// NewGenerator starts a phased generator for pos. best is the
// transposition table's remembered move for this position, if any
// (NoMove if there isn't one); it is tried first and skipped again when
// the capture/quiet phases reach it.
func NewGenerator(pos *Position, best Move) *Generator {
	g := &Generator{pos: pos}
	if !best.Equals(NoMove) {
		g.best = best
		g.hasBest = true
		g.stage = StageBest
	} else {
		g.stage = StageCaptures
	}
	return g
}

// NewCaptureGenerator starts a generator restricted to the capture phase:
// quiescence search's universe. It skips straight to StageDone once the
// captures are exhausted.
func NewCaptureGenerator(pos *Position) *Generator {
	return &Generator{pos: pos, stage: StageCaptures, capturesOnly: true}
}

// Reset reinitializes g in place for a new node, so per-ply generators can
// live in a fixed array instead of being allocated per node.
func (g *Generator) Reset(pos *Position, best Move) {
	*g = Generator{pos: pos, stage: StageCaptures}
	if !best.Equals(NoMove) {
		g.best = best
		g.hasBest = true
		g.stage = StageBest
	}
}

// ResetCaptures reinitializes g in place restricted to the capture phase.
// A remembered best move is only tried first when it is itself a capture
// or promotion; a quiet best move has no place in this move universe.
func (g *Generator) ResetCaptures(pos *Position, best Move) {
	*g = Generator{pos: pos, stage: StageCaptures, capturesOnly: true}
	if !best.Equals(NoMove) && (best.IsCapture() || best.IsPromotion()) {
		g.best = best
		g.hasBest = true
		g.stage = StageBest
	}
}

// Tried returns the moves yielded so far, in yield order. Search uses it
// to penalize the quiet moves tried before a beta cutoff.
func (g *Generator) Tried() []Move {
	return g.tried.Slice()
}

// OrderBy installs per-phase ordering stampers. A nil stamper leaves that
// phase in MVV/LVA order for captures and generation order for quiets.
func (g *Generator) OrderBy(captures, quiets func(Move) Move) {
	g.captureStamp = captures
	g.quietStamp = quiets
}

// sortByOrderingFields stamps every move in ml with stamp (if any) and
// sorts the list in descending order of history value; killer rank does
// not enter the comparison. Insertion
// sort: phase lists are short and often nearly sorted already.
func sortByOrderingFields(ml *MoveList, stamp func(Move) Move) {
	if stamp != nil {
		for i := 0; i < ml.Len(); i++ {
			ml.Set(i, stamp(ml.Get(i)))
		}
	}
	for i := 1; i < ml.Len(); i++ {
		m := ml.Get(i)
		j := i - 1
		for j >= 0 && ml.Get(j).HistoryValue() < m.HistoryValue() {
			ml.Set(j+1, ml.Get(j))
			j--
		}
		ml.Set(j+1, m)
	}
}

// mvvLvaStamp writes a default capture ordering value: most valuable
// victim first, least valuable attacker breaking ties, promotions rated by
// the promoted piece.
func (p *Position) mvvLvaStamp(m Move) Move {
	score := int32(0)
	if v := m.Victim(); v != NoPieceType {
		attacker := p.PieceAt(m.From()).Type()
		score = int32(PieceValue[v])*8 - int32(PieceValue[attacker]/100)
	}
	if m.IsPromotion() {
		score += int32(PieceValue[m.Promotion()])
	}
	return m.WithHistoryValue(score)
}

// NextMove returns the next legal move in phase order with its stage, or
// (NoMove, StageDone, false) once the generator is exhausted.
func (g *Generator) NextMove() (Move, GenerationStage, bool) {
	for {
		switch g.stage {
		case StageBest:
			g.stage = StageCaptures
			if g.hasBest && g.pos.IsLegal(g.best) {
				m := g.pos.stampCheck(g.best.WithFlags(FlagBest))
				g.tried.Add(m)
				return m, StageBest, true
			}
		case StageCaptures:
			if !g.generated {
				g.pos.generateCaptures(&g.captures)
				stamp := g.captureStamp
				if stamp == nil {
					stamp = g.pos.mvvLvaStamp
				}
				sortByOrderingFields(&g.captures, stamp)
				g.generated = true
			}
			for g.capIdx < g.captures.Len() {
				m := g.captures.Get(g.capIdx)
				g.capIdx++
				if g.hasBest && m.Equals(g.best) {
					continue
				}
				if g.pos.IsLegal(m) {
					m = g.pos.stampCheck(m)
					g.tried.Add(m)
					return m, StageCaptures, true
				}
			}
			if g.capturesOnly {
				g.stage = StageDone
				continue
			}
			g.stage = StageQuiets
			g.generated = false
		case StageQuiets:
			if !g.generated {
				g.pos.generateQuiets(&g.quiets)
				sortByOrderingFields(&g.quiets, g.quietStamp)
				g.generated = true
			}
			for g.quietIdx < g.quiets.Len() {
				m := g.quiets.Get(g.quietIdx)
				g.quietIdx++
				if g.hasBest && m.Equals(g.best) {
					continue
				}
				if g.pos.IsLegal(m) {
					m = g.pos.stampCheck(m)
					g.tried.Add(m)
					return m, StageQuiets, true
				}
			}
			g.stage = StageDone
		case StageDone:
			return NoMove, StageDone, false
		}
	}
}

// GenerateLegalMoves generates all legal moves for the position.
func (p *Position) GenerateLegalMoves() *MoveList {
	ml := NewMoveList()
	p.generateAllMoves(ml)
	return p.filterLegalMoves(ml)
}

// GeneratePseudoLegalMoves generates all pseudo-legal moves (may leave king in check).
func (p *Position) GeneratePseudoLegalMoves() *MoveList {
	ml := NewMoveList()
	p.generateAllMoves(ml)
	return ml
}

// GenerateCaptures generates all legal capture moves.
func (p *Position) GenerateCaptures() *MoveList {
	ml := NewMoveList()
	p.generateCaptures(ml)
	return p.filterLegalMoves(ml)
}

// generateAllMoves generates all pseudo-legal moves (captures then quiets).
func (p *Position) generateAllMoves(ml *MoveList) {
	p.generateCaptures(ml)
	p.generateQuiets(ml)
}

// generateQuiets generates all pseudo-legal non-capturing moves: pushes,
// knight/bishop/rook/queen/king moves to empty squares, and castling.
// Promotions are generated in generateCaptures instead, even the
// non-capturing ones, since a queening push is as forcing as a capture
// and search wants to try it in the same early phase.
func (p *Position) generateQuiets(ml *MoveList) {
	us := p.SideToMove
	occupied := p.AllOccupied
	empty := ^occupied

	pawns := p.Pieces[us][Pawn]
	var push1, push2 Bitboard
	var promotionRank Bitboard
	var pushDir int
	if us == White {
		push1 = pawns.North() & empty
		push2 = (push1 & Rank3).North() & empty
		promotionRank = Rank8
		pushDir = 8
	} else {
		push1 = pawns.South() & empty
		push2 = (push1 & Rank6).South() & empty
		promotionRank = Rank1
		pushDir = -8
	}

	nonPromo := push1 & ^promotionRank
	for nonPromo != 0 {
		to := nonPromo.PopLSB()
		from := Square(int(to) - pushDir)
		ml.Add(NewMoveRaw(from, to, NoPieceType, NoPieceType, FlagPawnMove))
	}
	for push2 != 0 {
		to := push2.PopLSB()
		from := Square(int(to) - 2*pushDir)
		ml.Add(NewMoveRaw(from, to, NoPieceType, NoPieceType, FlagPawnMove|FlagDoublePush))
	}

	knights := p.Pieces[us][Knight]
	for knights != 0 {
		from := knights.PopLSB()
		attacks := KnightAttacks(from) & empty
		for attacks != 0 {
			to := attacks.PopLSB()
			ml.Add(NewMove(from, to))
		}
	}

	bishops := p.Pieces[us][Bishop]
	for bishops != 0 {
		from := bishops.PopLSB()
		attacks := BishopAttacks(from, occupied) & empty
		for attacks != 0 {
			to := attacks.PopLSB()
			ml.Add(NewMove(from, to))
		}
	}

	rooks := p.Pieces[us][Rook]
	for rooks != 0 {
		from := rooks.PopLSB()
		attacks := RookAttacks(from, occupied) & empty
		for attacks != 0 {
			to := attacks.PopLSB()
			ml.Add(NewMove(from, to))
		}
	}

	queens := p.Pieces[us][Queen]
	for queens != 0 {
		from := queens.PopLSB()
		attacks := QueenAttacks(from, occupied) & empty
		for attacks != 0 {
			to := attacks.PopLSB()
			ml.Add(NewMove(from, to))
		}
	}

	from := p.KingSquare[us]
	if !from.IsValid() {
		return // no king of this side on the board
	}
	attacks := KingAttacks(from) & empty
	for attacks != 0 {
		to := attacks.PopLSB()
		ml.Add(NewMoveRaw(from, to, NoPieceType, NoPieceType, FlagKingMove))
	}

	p.generateCastlingMoves(ml, us)
}

// addPromotions adds all four promotion moves (queen first: the one the
// generator and every heuristic should try before the others).
func addPromotions(ml *MoveList, from, to Square, victim PieceType) {
	ml.Add(NewPromotion(from, to, Queen, victim))
	ml.Add(NewPromotion(from, to, Rook, victim))
	ml.Add(NewPromotion(from, to, Bishop, victim))
	ml.Add(NewPromotion(from, to, Knight, victim))
}

// generateCastlingMoves generates castling moves.
func (p *Position) generateCastlingMoves(ml *MoveList, us Color) {
	them := us.Other()

	if us == White {
		if p.CastlingRights&WhiteKingSideCastle != 0 {
			if p.AllOccupied&((1<<F1)|(1<<G1)) == 0 {
				if !p.IsSquareAttacked(E1, them) && !p.IsSquareAttacked(F1, them) && !p.IsSquareAttacked(G1, them) {
					ml.Add(NewCastling(E1, G1))
				}
			}
		}
		if p.CastlingRights&WhiteQueenSideCastle != 0 {
			if p.AllOccupied&((1<<B1)|(1<<C1)|(1<<D1)) == 0 {
				if !p.IsSquareAttacked(E1, them) && !p.IsSquareAttacked(D1, them) && !p.IsSquareAttacked(C1, them) {
					ml.Add(NewCastling(E1, C1))
				}
			}
		}
	} else {
		if p.CastlingRights&BlackKingSideCastle != 0 {
			if p.AllOccupied&((1<<F8)|(1<<G8)) == 0 {
				if !p.IsSquareAttacked(E8, them) && !p.IsSquareAttacked(F8, them) && !p.IsSquareAttacked(G8, them) {
					ml.Add(NewCastling(E8, G8))
				}
			}
		}
		if p.CastlingRights&BlackQueenSideCastle != 0 {
			if p.AllOccupied&((1<<B8)|(1<<C8)|(1<<D8)) == 0 {
				if !p.IsSquareAttacked(E8, them) && !p.IsSquareAttacked(D8, them) && !p.IsSquareAttacked(C8, them) {
					ml.Add(NewCastling(E8, C8))
				}
			}
		}
	}
}

// generateCaptures generates capture moves and promotions (quiescence
// search's universe, and the first real phase of the full generator).
func (p *Position) generateCaptures(ml *MoveList) {
	us := p.SideToMove
	them := us.Other()
	enemies := p.Occupied[them]
	occupied := p.AllOccupied

	pawns := p.Pieces[us][Pawn]
	var attackL, attackR Bitboard
	var promotionRank Bitboard
	var pushDir int

	if us == White {
		attackL = pawns.NorthWest() & enemies
		attackR = pawns.NorthEast() & enemies
		promotionRank = Rank8
		pushDir = 8
	} else {
		attackL = pawns.SouthWest() & enemies
		attackR = pawns.SouthEast() & enemies
		promotionRank = Rank1
		pushDir = -8
	}

	nonPromoL := attackL & ^promotionRank
	for nonPromoL != 0 {
		to := nonPromoL.PopLSB()
		from := Square(int(to) - pushDir + 1)
		ml.Add(NewMoveRaw(from, to, NoPieceType, p.PieceAt(to).Type(), FlagPawnMove))
	}
	nonPromoR := attackR & ^promotionRank
	for nonPromoR != 0 {
		to := nonPromoR.PopLSB()
		from := Square(int(to) - pushDir - 1)
		ml.Add(NewMoveRaw(from, to, NoPieceType, p.PieceAt(to).Type(), FlagPawnMove))
	}

	promoL := attackL & promotionRank
	for promoL != 0 {
		to := promoL.PopLSB()
		from := Square(int(to) - pushDir + 1)
		addPromotions(ml, from, to, p.PieceAt(to).Type())
	}
	promoR := attackR & promotionRank
	for promoR != 0 {
		to := promoR.PopLSB()
		from := Square(int(to) - pushDir - 1)
		addPromotions(ml, from, to, p.PieceAt(to).Type())
	}

	// Pawn push promotions: not captures, but tried alongside them since a
	// queening push is as forcing as a capture.
	empty := ^occupied
	var push1 Bitboard
	if us == White {
		push1 = pawns.North() & empty & Rank8
	} else {
		push1 = pawns.South() & empty & Rank1
	}
	for push1 != 0 {
		to := push1.PopLSB()
		from := Square(int(to) - pushDir)
		addPromotions(ml, from, to, NoPieceType)
	}

	if p.EnPassant != NoSquare {
		epBB := SquareBB(p.EnPassant)
		var epAttackers Bitboard
		if us == White {
			epAttackers = (epBB.SouthWest() | epBB.SouthEast()) & pawns
		} else {
			epAttackers = (epBB.NorthWest() | epBB.NorthEast()) & pawns
		}
		for epAttackers != 0 {
			from := epAttackers.PopLSB()
			ml.Add(NewEnPassant(from, p.EnPassant))
		}
	}

	knights := p.Pieces[us][Knight]
	for knights != 0 {
		from := knights.PopLSB()
		attacks := KnightAttacks(from) & enemies
		for attacks != 0 {
			to := attacks.PopLSB()
			ml.Add(NewCapture(from, to, p.PieceAt(to).Type()))
		}
	}

	bishops := p.Pieces[us][Bishop]
	for bishops != 0 {
		from := bishops.PopLSB()
		attacks := BishopAttacks(from, occupied) & enemies
		for attacks != 0 {
			to := attacks.PopLSB()
			ml.Add(NewCapture(from, to, p.PieceAt(to).Type()))
		}
	}

	rooks := p.Pieces[us][Rook]
	for rooks != 0 {
		from := rooks.PopLSB()
		attacks := RookAttacks(from, occupied) & enemies
		for attacks != 0 {
			to := attacks.PopLSB()
			ml.Add(NewCapture(from, to, p.PieceAt(to).Type()))
		}
	}

	queens := p.Pieces[us][Queen]
	for queens != 0 {
		from := queens.PopLSB()
		attacks := QueenAttacks(from, occupied) & enemies
		for attacks != 0 {
			to := attacks.PopLSB()
			ml.Add(NewCapture(from, to, p.PieceAt(to).Type()))
		}
	}

	from := p.KingSquare[us]
	if !from.IsValid() {
		return // no king of this side on the board
	}
	attacks := KingAttacks(from) & enemies
	for attacks != 0 {
		to := attacks.PopLSB()
		ml.Add(NewMoveRaw(from, to, NoPieceType, p.PieceAt(to).Type(), FlagKingMove))
	}
}

// filterLegalMoves filters out illegal moves (those that leave king in
// check), and stamps the survivors with is_check when they attack the
// opponent's king.
func (p *Position) filterLegalMoves(ml *MoveList) *MoveList {
	result := NewMoveList()

	for i := 0; i < ml.Len(); i++ {
		m := ml.Get(i)
		if !p.IsLegal(m) {
			continue
		}
		result.Add(p.stampCheck(m))
	}

	return result
}

// stampCheck sets is_check on m if playing it attacks the opponent's king.
// It uses a VBoard rather than the full MakeMove/UnmakeMove pair: check
// detection only needs piece placement and king squares, not the hash or
// castling/en passant bookkeeping a real move application updates, so the
// lighter simulation is enough and skips a Zobrist update per candidate.
func (p *Position) stampCheck(m Move) Move {
	us := p.SideToMove
	them := us.Other()
	vb := NewVBoard(p)
	vb.ApplyMove(m, us)
	if vb.IsKingAttacked(vb.KingSquare[them], us) {
		return m.WithFlags(FlagCheck)
	}
	return m
}

// IsLegal reports whether the move is legal (doesn't leave the mover's
// king in check). For king moves it checks the destination directly; for
// everything else it plays the move on a self-contained scratch basis
// (MakeMove/UnmakeMove, not the search ring) and checks the king square
// afterwards, restoring the position regardless of the outcome.
func (p *Position) IsLegal(m Move) bool {
	us := p.SideToMove
	them := us.Other()
	from := m.From()
	ksq := p.KingSquare[us]

	if from == ksq {
		if m.IsCastling() {
			return true // already validated during generation
		}
		occ := p.AllOccupied &^ SquareBB(from)
		return p.AttackersByColor(m.To(), them, occ) == 0
	}

	undo := p.MakeMove(m)
	if !undo.Valid {
		return false
	}
	attacked := p.IsSquareAttacked(ksq, them)
	p.UnmakeMove(m, undo)

	return !attacked
}

// PseudoLegal reports whether m could still be a pseudo-legal move in the
// current position: a piece of the side to move sits on m.From() and the
// move reappears among the pseudo-legal moves generated now. The
// transposition table stores moves keyed by a partial hash, so a
// collision can hand back a move from a different position entirely;
// callers probing the TT must check this before trusting the move.
func (p *Position) PseudoLegal(m Move) bool {
	if m.Equals(NoMove) {
		return false
	}
	piece := p.PieceAt(m.From())
	if piece == NoPiece || piece.Color() != p.SideToMove {
		return false
	}
	return p.GeneratePseudoLegalMoves().Contains(m)
}

// IsMoveLegal plays m on the given board's ring, verifies it doesn't leave
// the mover's king attacked, and reports the king-safety-adjusted
// legality. On success the board is left with m played (ply advanced);
// on failure the board is restored to its prior state before returning.
// This is the ring-buffered counterpart to IsLegal, used when the search
// is already walking the board forward rather than probing a detached
// position.
func (b *Board) IsMoveLegal(m Move) bool {
	us := b.Pos().SideToMove
	if !b.Play(m) {
		return false
	}
	// The king may itself have moved, so re-read its square from the new slot.
	if b.Pos().IsSquareAttacked(b.Pos().KingSquare[us], us.Other()) {
		b.Undo()
		return false
	}
	return true
}

// HasLegalMoves, IsCheckmate, IsStalemate, IsDraw, IsInsufficientMaterial,
// GameOver live in position.go alongside the other terminal-state
// queries; they depend only on IsLegal above.
