package engine

import (
	"github.com/hailam/chessplay/internal/board"
)

// knownWinScore is the base score for endgames the recognizer classifies as
// won. It sits well above any positional evaluation but below the mate band,
// so search still prefers a proven mate over a recognized win.
const knownWinScore = 15000

// fullEndgameScale is the no-damping value of the endgame scale. A scale of
// 0 signals a forced draw; values between damp the tapered score for
// material constellations that are drawish despite a nominal advantage.
const fullEndgameScale = 128

// nonKingMaterial sums the conventional piece values of everything except
// the king for one side.
func nonKingMaterial(pos *board.Position, c board.Color) int {
	total := 0
	for pt := board.Pawn; pt < board.King; pt++ {
		total += pos.Pieces[c][pt].PopCount() * pieceValues[pt]
	}
	return total
}

// recognizeEndgame classifies positions where at most one side has anything
// beyond the bare king. It returns a score from the side to move's
// perspective, whether the position is a (near-)certain draw, and whether
// the recognizer handled the position at all. Unhandled positions fall
// through to the full evaluation.
func recognizeEndgame(pos *board.Position) (score int, drawn bool, handled bool) {
	whiteMat := nonKingMaterial(pos, board.White)
	blackMat := nonKingMaterial(pos, board.Black)

	if whiteMat != 0 && blackMat != 0 {
		return 0, false, false
	}
	if whiteMat == 0 && blackMat == 0 {
		return 0, true, true // K vs K
	}

	strong := board.White
	if blackMat != 0 {
		strong = board.Black
	}
	weak := strong.Other()

	pawns := pos.Pieces[strong][board.Pawn].PopCount()
	knights := pos.Pieces[strong][board.Knight].PopCount()
	bishops := pos.Pieces[strong][board.Bishop].PopCount()
	majors := pos.Pieces[strong][board.Rook].PopCount() + pos.Pieces[strong][board.Queen].PopCount()

	if pawns == 0 && majors == 0 {
		switch {
		case knights+bishops <= 1:
			return 0, true, true // K+minor vs K
		case knights == 2 && bishops == 0:
			return 0, true, true // K+2N vs K: no forced mate
		case bishops >= 1 && knights >= 1:
			s := kbnMateDrive(pos, strong, weak)
			return fromPerspective(s, strong, pos.SideToMove), false, true
		case bishops >= 2:
			s := cornerMateDrive(pos, strong, weak)
			return fromPerspective(s, strong, pos.SideToMove), false, true
		}
	}

	if majors > 0 && pawns == 0 && knights == 0 && bishops == 0 {
		// K+major vs K: drive the defender to any corner.
		s := cornerMateDrive(pos, strong, weak)
		return fromPerspective(s, strong, pos.SideToMove), false, true
	}

	if pawns == 1 && majors == 0 && knights == 0 && bishops == 0 {
		return recognizeKPK(pos, strong, weak)
	}

	return 0, false, false
}

// fromPerspective converts a strong-side score into a side-to-move score.
func fromPerspective(score int, strong, stm board.Color) int {
	if stm == strong {
		return score
	}
	return -score
}

// cornerMateDrive scores a generic mating drive: reward shrinking the
// distance between the kings and pushing the defender toward the board
// edge, on top of the known-win base and the attacker's material.
func cornerMateDrive(pos *board.Position, strong, weak board.Color) int {
	strongK := pos.KingSquare[strong]
	weakK := pos.KingSquare[weak]

	score := knownWinScore + nonKingMaterial(pos, strong)
	score += 8 * (7 - chebyshevDistance(strongK, weakK))
	score += 12 * edgeDistancePenalty(weakK)
	return score
}

// kbnMateDrive scores the bishop-and-knight mate, which only works in a
// corner of the bishop's square color. The defender's distance to the
// nearest correct-colored corner replaces the generic edge drive.
func kbnMateDrive(pos *board.Position, strong, weak board.Color) int {
	strongK := pos.KingSquare[strong]
	weakK := pos.KingSquare[weak]

	var corners [2]board.Square
	if lightSquares.IsSet(pos.Pieces[strong][board.Bishop].LSB()) {
		corners = [2]board.Square{board.A8, board.H1}
	} else {
		corners = [2]board.Square{board.A1, board.H8}
	}

	cornerDist := chebyshevDistance(weakK, corners[0])
	if d := chebyshevDistance(weakK, corners[1]); d < cornerDist {
		cornerDist = d
	}

	score := knownWinScore + nonKingMaterial(pos, strong)
	score += 8 * (7 - chebyshevDistance(strongK, weakK))
	score += 16 * (7 - cornerDist)
	return score
}

// edgeDistancePenalty grows as sq approaches an edge or corner: 0 in the
// center, 6 in a corner.
func edgeDistancePenalty(sq board.Square) int {
	f, r := sq.File(), sq.Rank()
	df := minInt(f, 7-f)
	dr := minInt(r, 7-r)
	return (3 - df) + (3 - dr)
}

// recognizeKPK applies the key-square rule to king-and-pawn versus king.
// Clear wins and clear draws are classified; anything in between falls
// through to the full evaluation, which already handles passed-pawn races.
func recognizeKPK(pos *board.Position, strong, weak board.Color) (int, bool, bool) {
	pawnSq := pos.Pieces[strong][board.Pawn].LSB()
	strongK := pos.KingSquare[strong]
	weakK := pos.KingSquare[weak]

	file := pawnSq.File()
	relRank := pawnSq.RelativeRank(strong)

	var promoSq board.Square
	if strong == board.White {
		promoSq = board.NewSquare(file, 7)
	} else {
		promoSq = board.NewSquare(file, 0)
	}

	// A defender with no king on the board cannot stop the pawn.
	if !weakK.IsValid() {
		return fromPerspective(knownWinScore+PawnValue+50*relRank, strong, pos.SideToMove), false, true
	}

	// Rook pawns: if the defender reaches the promotion corner first, the
	// game is drawn no matter what the attacker does.
	if file == 0 || file == 7 {
		defDist := chebyshevDistance(weakK, promoSq)
		attDist := chebyshevDistance(strongK, promoSq)
		if defDist <= 1 || defDist < attDist {
			return 0, true, true
		}
	}

	// Rule of the square: a defender that cannot enter the pawn's square
	// loses to the straight run.
	stepsToPromo := 7 - relRank
	defenderDist := chebyshevDistance(weakK, pawnSq)
	tempo := 0
	if pos.SideToMove == strong {
		tempo = 1
	}
	if defenderDist > stepsToPromo+1-tempo {
		return fromPerspective(knownWinScore+PawnValue+50*relRank, strong, pos.SideToMove), false, true
	}

	// Key squares: with the attacking king on one, the pawn promotes by
	// force. Up to the fourth rank the key squares sit two ranks ahead of
	// the pawn; from the fifth on, directly ahead.
	keyRankAhead := 2
	if relRank >= 4 {
		keyRankAhead = 1
	}
	keyRank := relRank + keyRankAhead
	if keyRank <= 7 {
		for df := -1; df <= 1; df++ {
			kf := file + df
			if kf < 0 || kf > 7 {
				continue
			}
			var keySq board.Square
			if strong == board.White {
				keySq = board.NewSquare(kf, keyRank)
			} else {
				keySq = board.NewSquare(kf, 7-keyRank)
			}
			if strongK == keySq {
				return fromPerspective(knownWinScore+PawnValue+50*relRank, strong, pos.SideToMove), false, true
			}
		}
	}

	// Defender planted directly in front of the pawn with the attacking
	// king still behind it: textbook draw shape.
	var frontSq board.Square
	if strong == board.White {
		frontSq = pawnSq + 8
	} else {
		frontSq = pawnSq - 8
	}
	if frontSq.IsValid() && weakK == frontSq && strongK.RelativeRank(strong) <= relRank {
		return 0, true, true
	}

	return 0, false, false
}

// endgameScale damps the tapered evaluation for material constellations
// that are drawish despite a nominal advantage. 0 means forced draw,
// fullEndgameScale means no damping.
func endgameScale(pos *board.Position) int {
	if pos.IsInsufficientMaterial() {
		return 0
	}

	wPawns := pos.Pieces[board.White][board.Pawn].PopCount()
	bPawns := pos.Pieces[board.Black][board.Pawn].PopCount()
	if wPawns != 0 || bPawns != 0 {
		return fullEndgameScale
	}

	// Pawnless draw tables: Q vs 2R, R vs R+minor and friends. Without
	// pawns a material edge below a rook rarely converts.
	diff := abs(nonKingMaterial(pos, board.White) - nonKingMaterial(pos, board.Black))
	switch {
	case diff < PawnValue:
		return 16
	case diff <= BishopValue:
		return 48
	case diff < RookValue:
		return 96
	}
	return fullEndgameScale
}
