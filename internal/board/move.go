package board

import "fmt"

// Move encodes a chess move as a single 64-bit word:
//
//	bits 0-5:   from square (0-63)
//	bits 6-11:  to square (0-63)
//	bits 12-15: promoted piece type (PieceType, NoPieceType if none)
//	bits 16-19: victim piece type on capture (PieceType, NoPieceType if none)
//	bits 20-27: flags (isCastling, isEnPassant, isDoublePush, isPawnMove,
//	            isKingMove, isCheck, isBest, isPlayed)
//	bits 28-29: killer rank (0, 1, 2) set by the move orderer
//	bits 30-63: history ordering value set by the move orderer
//
// Equality of two moves is equality of the positional bits (from, to,
// promoted piece, structural flags) only; the ordering fields in the high bits are
// scratch space the orderer mutates in place and must never affect
// identity. Use Equals, not ==, whenever a move's chess meaning matters.
type Move uint64

const (
	moveFromShift   = 0
	moveToShift     = 6
	movePromoShift  = 12
	moveVictimShift = 16
	moveFlagShift   = 20
	moveKillerShift = 28
	moveHistShift   = 30

	moveSquareMask = 0x3F
	movePieceMask  = 0xF
	moveKillerMask = 0x3

	// positionalMask covers the bits that determine chess meaning: from,
	// to, promoted piece and the structural flags (castling, en passant,
	// double push, pawn move, king move). The victim field and the dynamic
	// flags (is_check, is_best, is_played) are derived or stamped after
	// the fact - a transposition table move carrying is_best must still
	// equal the same move freshly generated - and the ordering scratch
	// bits never affect identity.
	structuralFlags = FlagCastling | FlagEnPassant | FlagDoublePush | FlagPawnMove | FlagKingMove
	positionalMask  = Move(1)<<moveVictimShift - 1 | Move(structuralFlags)<<moveFlagShift
)

// Flag bits, each a single bit within the flags field.
const (
	FlagCastling uint64 = 1 << iota
	FlagEnPassant
	FlagDoublePush
	FlagPawnMove
	FlagKingMove
	FlagCheck
	FlagBest
	FlagPlayed
)

// NoMove represents an invalid or null move (from == to == A1, which no
// legal move ever produces).
const NoMove Move = 0

// NewMoveRaw builds a move with explicit promoted/victim piece types and
// flags. Used by the generator, which has this information on hand while
// producing the move; other constructors are thin convenience wrappers.
func NewMoveRaw(from, to Square, promoted, victim PieceType, flags uint64) Move {
	return Move(from)<<moveFromShift |
		Move(to)<<moveToShift |
		Move(promoted)<<movePromoShift |
		Move(victim)<<moveVictimShift |
		Move(flags)<<moveFlagShift
}

// NewMove creates a quiet, non-special move.
func NewMove(from, to Square) Move {
	return NewMoveRaw(from, to, NoPieceType, NoPieceType, 0)
}

// NewCapture creates a capture move recording the victim's piece type.
func NewCapture(from, to Square, victim PieceType) Move {
	return NewMoveRaw(from, to, NoPieceType, victim, 0)
}

// NewPromotion creates a (possibly capturing) promotion move.
func NewPromotion(from, to Square, promo, victim PieceType) Move {
	return NewMoveRaw(from, to, promo, victim, FlagPawnMove)
}

// NewEnPassant creates an en passant capture move.
func NewEnPassant(from, to Square) Move {
	return NewMoveRaw(from, to, NoPieceType, Pawn, FlagEnPassant|FlagPawnMove)
}

// NewCastling creates a castling move (the king's two-square jump).
func NewCastling(from, to Square) Move {
	return NewMoveRaw(from, to, NoPieceType, NoPieceType, FlagCastling|FlagKingMove)
}

// From returns the origin square.
func (m Move) From() Square { return Square((uint64(m) >> moveFromShift) & moveSquareMask) }

// To returns the destination square.
func (m Move) To() Square { return Square((uint64(m) >> moveToShift) & moveSquareMask) }

// Promotion returns the promoted-to piece type, or NoPieceType.
func (m Move) Promotion() PieceType {
	return PieceType((uint64(m) >> movePromoShift) & movePieceMask)
}

// Victim returns the captured piece's type, or NoPieceType if this move
// is not a capture.
func (m Move) Victim() PieceType {
	return PieceType((uint64(m) >> moveVictimShift) & movePieceMask)
}

func (m Move) flag(bit uint64) bool {
	return (uint64(m)>>moveFlagShift)&bit != 0
}

// IsPromotion reports whether this move promotes a pawn.
func (m Move) IsPromotion() bool { return m.Promotion() != NoPieceType }

// IsCastling reports whether this move is a castle.
func (m Move) IsCastling() bool { return m.flag(FlagCastling) }

// IsEnPassant reports whether this move is an en passant capture.
func (m Move) IsEnPassant() bool { return m.flag(FlagEnPassant) }

// IsDoublePush reports whether this move is a two-square pawn push.
func (m Move) IsDoublePush() bool { return m.flag(FlagDoublePush) }

// IsPawnMove reports whether the moving piece is a pawn.
func (m Move) IsPawnMove() bool { return m.flag(FlagPawnMove) }

// IsKingMove reports whether the moving piece is a king.
func (m Move) IsKingMove() bool { return m.flag(FlagKingMove) }

// GivesCheck reports whether the move was flagged as a checking move by
// stampCheck, which legal-move generation applies after the legality test.
func (m Move) GivesCheck() bool { return m.flag(FlagCheck) }

// IsBest reports whether the move was flagged as the transposition
// table's best move for this position.
func (m Move) IsBest() bool { return m.flag(FlagBest) }

// IsCapture reports whether this move captures a piece (en passant
// counts; the victim field is populated by the generator in both cases).
func (m Move) IsCapture() bool {
	return m.flag(FlagEnPassant) || m.Victim() != NoPieceType
}

// IsQuiet reports whether the move is neither a capture nor a promotion.
func (m Move) IsQuiet() bool {
	return !m.IsCapture() && !m.IsPromotion()
}

// WithFlags returns a copy of m with the given flag bits set, used to
// stamp is_check/is_best/is_played after the move integer already exists.
func (m Move) WithFlags(bits uint64) Move {
	return m | Move(bits)<<moveFlagShift
}

// KillerRank returns the ordering tag (0, 1 or 2) set by the move
// orderer; it is not part of the move's chess identity.
func (m Move) KillerRank() int {
	return int((uint64(m) >> moveKillerShift) & moveKillerMask)
}

// WithKillerRank returns a copy of m carrying the given killer rank.
func (m Move) WithKillerRank(rank int) Move {
	cleared := m &^ (Move(moveKillerMask) << moveKillerShift)
	return cleared | Move(rank&int(moveKillerMask))<<moveKillerShift
}

// HistoryValue returns the ordering score set by the move orderer.
func (m Move) HistoryValue() int32 {
	return int32(uint64(m) >> moveHistShift)
}

// WithHistoryValue returns a copy of m carrying the given ordering score.
// The value is truncated to 34 bits; callers keep history scores well
// within that range (see ordering.go's clamp).
func (m Move) WithHistoryValue(v int32) Move {
	allOnes := ^Move(0)
	cleared := m &^ (allOnes << moveHistShift)
	return cleared | Move(uint64(v))<<moveHistShift
}

// Equals reports whether two moves have the same chess meaning, ignoring
// ordering scratch bits. Always use this (not ==) once a move may have
// passed through the orderer.
func (m Move) Equals(other Move) bool {
	return m&positionalMask == other&positionalMask
}

// String returns the long-algebraic form of the move (e.g. "e2e4",
// "e7e8q").
func (m Move) String() string {
	if m.Equals(NoMove) {
		return "0000"
	}

	s := m.From().String() + m.To().String()

	if m.IsPromotion() {
		s += string("-nbrq-"[m.Promotion()])
	}

	return s
}

// ParseMove parses a long-algebraic move string against pos, filling in
// victim/flags from the current position so the result is a well-formed
// Move rather than a bare from/to pair.
func ParseMove(s string, pos *Position) (Move, error) {
	if len(s) < 4 {
		return NoMove, fmt.Errorf("invalid move string: %q", s)
	}

	from, err := ParseSquare(s[0:2])
	if err != nil {
		return NoMove, err
	}
	to, err := ParseSquare(s[2:4])
	if err != nil {
		return NoMove, err
	}

	piece := pos.PieceAt(from)
	if piece == NoPiece {
		return NoMove, fmt.Errorf("no piece at %s", from)
	}
	pt := piece.Type()
	victim := NoPieceType
	if v := pos.PieceAt(to); v != NoPiece {
		victim = v.Type()
	}

	if len(s) == 5 {
		var promo PieceType
		switch s[4] {
		case 'n':
			promo = Knight
		case 'b':
			promo = Bishop
		case 'r':
			promo = Rook
		case 'q':
			promo = Queen
		default:
			return NoMove, fmt.Errorf("invalid promotion piece: %c", s[4])
		}
		return NewPromotion(from, to, promo, victim), nil
	}

	if pt == King && abs(int(to)-int(from)) == 2 {
		return NewCastling(from, to), nil
	}
	if pt == Pawn && to == pos.EnPassant {
		return NewEnPassant(from, to), nil
	}

	flags := uint64(0)
	if pt == Pawn {
		flags |= FlagPawnMove
		if abs(int(to)-int(from)) == 16 {
			flags |= FlagDoublePush
		}
	}
	if pt == King {
		flags |= FlagKingMove
	}
	return NewMoveRaw(from, to, NoPieceType, victim, flags), nil
}

// MoveList is a fixed-capacity list of moves sized for the largest legal
// position (256 is a generous upper bound); it never allocates.
type MoveList struct {
	moves [256]Move
	count int
}

// NewMoveList creates an empty move list.
func NewMoveList() *MoveList { return &MoveList{} }

// Add appends a move to the list.
func (ml *MoveList) Add(m Move) {
	ml.moves[ml.count] = m
	ml.count++
}

// Len returns the number of moves in the list.
func (ml *MoveList) Len() int { return ml.count }

// Get returns the move at index i.
func (ml *MoveList) Get(i int) Move { return ml.moves[i] }

// Set overwrites the move at index i, used by the orderer to stamp
// ordering fields in place.
func (ml *MoveList) Set(i int, m Move) { ml.moves[i] = m }

// Swap exchanges two entries.
func (ml *MoveList) Swap(i, j int) { ml.moves[i], ml.moves[j] = ml.moves[j], ml.moves[i] }

// Clear empties the list without releasing its backing array.
func (ml *MoveList) Clear() { ml.count = 0 }

// Contains reports whether the list holds a move with the same chess
// meaning as m.
func (ml *MoveList) Contains(m Move) bool {
	for i := 0; i < ml.count; i++ {
		if ml.moves[i].Equals(m) {
			return true
		}
	}
	return false
}

// Slice returns the moves as a slice sharing the list's backing array.
func (ml *MoveList) Slice() []Move { return ml.moves[:ml.count] }

// UndoInfo holds everything MakeMove must save so UnmakeMove can restore
// the position bit-for-bit. The search recursion itself does not use this
// pair (the Board ring undoes by stepping its slot index back); it exists
// for callers that need a self-contained check-and-revert on a detached
// position: the legality filter, SEE simulation and perft.
type UndoInfo struct {
	CapturedPiece   Piece
	CastlingRights  CastlingRights
	EnPassant       Square
	HalfMoveClock   int
	Hash            uint64
	PawnKey         uint64
	Checkers        Bitboard
	PlayedMove      Move
	StaticEval      int32
	StaticEvalValid bool
	Valid           bool
}
