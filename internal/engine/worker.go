package engine

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/hailam/chessplay/internal/board"
	"github.com/hailam/chessplay/internal/config"
)

// LMR reduction table, precomputed logarithmic reductions indexed by
// remaining depth and move count.
var lmrReductions [64][64]int

func init() {
	for d := 1; d < 64; d++ {
		for m := 1; m < 64; m++ {
			lmrReductions[d][m] = int(21.46 * math.Log(float64(d)) * math.Log(float64(m)) / 1024.0)
		}
	}
}

// SearchStack stores per-ply search state the position ring doesn't carry:
// continuation-history plumbing and reduction bookkeeping.
type SearchStack struct {
	// Current move at this ply
	currentMove board.Move

	// Piece that moved at this ply
	movedPiece board.Piece

	// Destination square of the move
	moveTo board.Square

	// Pointer to continuation history table for this move's piece/to.
	// Child nodes look their replies up against it.
	continuationHistory *PieceToHistory

	// Statistical score for history-based decisions
	statScore int

	// Reduction applied at this ply (for hindsight depth adjustment)
	reduction int

	// Count of beta cutoffs at this ply (for LMR scaling)
	cutoffCnt int
}

// Worker runs the single-threaded iterative-deepening negamax search that
// backs an Engine. There is exactly one Worker per Engine; it owns all
// position, history and stack state the search touches.
//
// The worker walks a fixed ring of position slots (board.Board): playing a
// move copies the current slot forward and mutates the copy, undoing steps
// the ring index back. Ring slots and per-ply generators are reused, so the
// main move loop and quiescence do not allocate; the probcut and multi-cut
// probes build their own move lists.
type Worker struct {
	// Position ring; pos always points at the current slot.
	ring *board.Board
	pos  *board.Position

	// Move ordering state (killers, histories)
	orderer *MoveOrderer

	// Per-search counters
	nodes    uint64
	seldepth int
	pv       PVTable

	// Per-ply phased generators and continuation-history stack, reused
	// across nodes so the recursion never allocates.
	gens        [board.MaxPly + 1]board.Generator
	searchStack [MaxPly]SearchStack

	// Game history before the search root, for repetition detection that
	// reaches past the ring.
	rootPosHashes []uint64

	// Root restrictions: Multi-PV exclusions and "go searchmoves".
	excludedRootMoves []board.Move
	rootMoves         []board.Move

	// Shared resources (owned by the Engine)
	tt          *TranspositionTable
	pawnTable   *PawnTable
	corrHistory *CorrectionHistory
	stopFlag    *atomic.Bool

	// Budgets checked by the periodic probe. Zero values disable them.
	nodeLimit    uint64
	hardDeadline time.Time

	// Current search depth (for result reporting)
	depth int

	// Root delta for LMR scaling: width of the aspiration window at the
	// root, used to scale reductions.
	rootDelta int

	// OnRootMove, when set, is invoked for each root move as the search
	// starts examining it (the UCI "currmove" feed), in iterations of depth
	// 8 or more.
	OnRootMove func(move board.Move, number int)

	// Limited-strength mode: nil disables it. Scales evaluation terms and
	// adds a bounded, seeded perturbation rather than altering search
	// structure.
	strength *config.Config
}

// NewWorker creates a new search worker.
func NewWorker(tt *TranspositionTable, pawnTable *PawnTable, stopFlag *atomic.Bool) *Worker {
	return &Worker{
		ring:        board.NewBoard(),
		orderer:     NewMoveOrderer(),
		tt:          tt,
		pawnTable:   pawnTable,
		corrHistory: NewCorrectionHistory(),
		stopFlag:    stopFlag,
	}
}

// Nodes returns the number of nodes searched by this worker.
func (w *Worker) Nodes() uint64 {
	return w.nodes
}

// SelDepth returns the deepest ply the last search reached, quiescence
// included.
func (w *Worker) SelDepth() int {
	return w.seldepth
}

// Reset resets the worker for a new search.
func (w *Worker) Reset() {
	w.nodes = 0
	w.seldepth = 0
	w.orderer.Clear()
}

// SetBudgets installs the node limit and hard time deadline the periodic
// probe enforces. Zero values disable the respective check.
func (w *Worker) SetBudgets(nodeLimit uint64, hardDeadline time.Time) {
	w.nodeLimit = nodeLimit
	w.hardDeadline = hardDeadline
}

// SetRootHistory sets the position history from the game (for repetition detection).
func (w *Worker) SetRootHistory(hashes []uint64) {
	w.rootPosHashes = make([]uint64, len(hashes))
	copy(w.rootPosHashes, hashes)
}

// SetExcludedMoves sets the moves to exclude at root (for Multi-PV).
func (w *Worker) SetExcludedMoves(moves []board.Move) {
	w.excludedRootMoves = moves
}

// SetRootMoves restricts the root to the given moves ("go searchmoves").
// nil restores the full move set.
func (w *Worker) SetRootMoves(moves []board.Move) {
	w.rootMoves = moves
}

// InitSearch points the worker's position ring at the search root.
func (w *Worker) InitSearch(pos *board.Position) {
	w.ring.Reset(pos)
	w.pos = w.ring.Pos()
}

// SearchDepth searches the current position to the given depth and returns
// the best move found along with its score. A returned score with absolute
// value >= Interrupted means the budget ran out and the result must not be
// committed.
func (w *Worker) SearchDepth(depth, alpha, beta int) (board.Move, int) {
	w.depth = depth
	w.rootDelta = beta - alpha

	score := w.negamax(depth, 0, alpha, beta, false, board.NoMove, false)

	var bestMove board.Move
	if w.pv.length[0] > 0 {
		bestMove = w.pv.moves[0][0]
	}

	// Fallback: interrupted before the first root move completed, or a
	// TT-cutoff path produced no PV. Any permitted legal move beats
	// resigning.
	if bestMove == board.NoMove && abs(score) < Interrupted {
		moves := w.pos.GenerateLegalMoves()
		for i := 0; i < moves.Len(); i++ {
			if !w.isExcludedRootMove(moves.Get(i)) {
				bestMove = moves.Get(i)
				break
			}
		}
	}

	return bestMove, score
}

// SetStrength installs or clears the limited-strength configuration. A nil
// cfg, or one with LimitStrength false, restores full-strength evaluation.
func (w *Worker) SetStrength(cfg *config.Config) {
	w.strength = cfg
}

// scaleForStrength shrinks the evaluation toward zero as Elo drops below
// DefaultElo and adds a small deterministic perturbation seeded by the
// position hash, so the same position always perturbs the same way within
// a single process run. This weakens play without touching search
// structure (pruning/extension logic is unaffected).
func scaleForStrength(score, elo int, hash uint64) int {
	if elo > config.DefaultElo {
		elo = config.DefaultElo
	}
	if elo < config.MinElo {
		elo = config.MinElo
	}

	// Linear scale: MinElo -> 40%, DefaultElo -> 100%.
	span := config.DefaultElo - config.MinElo
	scaleNum := int64(40*span + 60*(elo-config.MinElo))
	scaledScore := int64(score) * scaleNum / int64(100*span)

	// Bounded perturbation: up to +/- (DefaultElo-elo)/10 centipawns,
	// deterministic from the position hash so repeated analysis of the
	// same position at the same Elo is reproducible.
	maxNoise := (config.DefaultElo - elo) / 10
	if maxNoise > 0 {
		noise := int(hash%uint64(2*maxNoise+1)) - maxNoise
		scaledScore += int64(noise)
	}

	return int(scaledScore)
}

// staticEval returns the static evaluation of the current slot, cached on
// the slot itself so repeated probes at the same node (razoring, RFP,
// improving) don't recompute it. The drawn flag marks recognized dead
// draws; it is not cached because it is only consulted once per node.
func (w *Worker) staticEval() (int, bool) {
	if w.pos.StaticEvalValid {
		_, drawn := recognizedDrawFast(w.pos)
		return int(w.pos.StaticEval), drawn
	}

	score, drawn := EvaluateDetail(w.pos, w.pawnTable)
	if w.strength != nil && w.strength.LimitStrength {
		score = scaleForStrength(score, w.strength.Elo, w.pos.Hash)
	}
	w.pos.StaticEval = int32(score)
	w.pos.StaticEvalValid = true
	return score, drawn
}

// recognizedDrawFast re-derives only the drawn flag for a slot whose score
// is already cached.
func recognizedDrawFast(pos *board.Position) (int, bool) {
	if _, drawn, handled := recognizeEndgame(pos); handled {
		return 0, drawn
	}
	return 0, endgameScale(pos) == 0
}

// stopped returns true if search should stop.
func (w *Worker) stopped() bool {
	return w.stopFlag.Load()
}

// probeBudgets is the periodic time/node probe. It runs every 2048 nodes;
// on exhaustion it latches the stop flag so the whole tree unwinds.
func (w *Worker) probeBudgets() bool {
	if w.stopFlag.Load() {
		return true
	}
	if w.nodes&2047 != 0 {
		return false
	}
	if w.nodeLimit > 0 && w.nodes >= w.nodeLimit {
		w.stopFlag.Store(true)
		return true
	}
	if !w.hardDeadline.IsZero() && time.Now().After(w.hardDeadline) {
		w.stopFlag.Store(true)
		return true
	}
	return false
}

// GetPV returns the principal variation from the last search.
func (w *Worker) GetPV() []board.Move {
	pv := make([]board.Move, w.pv.length[0])
	for i := 0; i < w.pv.length[0]; i++ {
		pv[i] = w.pv.moves[0][i]
	}
	return pv
}

// isExcludedRootMove checks if a move is barred from the root: either
// explicitly excluded (Multi-PV) or outside a "searchmoves" restriction.
func (w *Worker) isExcludedRootMove(move board.Move) bool {
	for _, excluded := range w.excludedRootMoves {
		if move.Equals(excluded) {
			return true
		}
	}
	if w.rootMoves != nil {
		for _, allowed := range w.rootMoves {
			if move.Equals(allowed) {
				return false
			}
		}
		return true
	}
	return false
}

// isDraw checks for draw by repetition, the 50-move rule or insufficient
// material. Repetition looks through the ring for the in-search line and
// through the game history for positions before the root.
func (w *Worker) isDraw() bool {
	if w.pos.HalfMoveClock >= 100 {
		return true
	}
	if w.pos.IsInsufficientMaterial() {
		return true
	}
	if w.ring.IsRepetition() {
		return true
	}

	hash := w.pos.Hash
	for _, h := range w.rootPosHashes {
		if h == hash {
			return true
		}
	}
	return false
}

// verifyRingInvariants is the debug-mode consistency assertion run at node
// entry: occupancy sums, king presence, incremental-vs-recomputed keys.
func (w *Worker) verifyRingInvariants() {
	var wSum, bSum board.Bitboard
	for pt := board.Pawn; pt <= board.King; pt++ {
		wSum |= w.pos.Pieces[board.White][pt]
		bSum |= w.pos.Pieces[board.Black][pt]
	}
	switch {
	case wSum != w.pos.Occupied[board.White],
		bSum != w.pos.Occupied[board.Black],
		wSum|bSum != w.pos.AllOccupied:
		panic("search: occupancy bitboards out of sync")
	case w.pos.Pieces[board.White][board.King].PopCount() != 1,
		w.pos.Pieces[board.Black][board.King].PopCount() != 1:
		panic("search: king count invariant violated")
	case w.pos.Hash != w.pos.ComputeHash(),
		w.pos.PawnKey != w.pos.ComputePawnKey():
		panic("search: incremental key diverged from recomputation")
	}
}

// negamax is the principal-variation search. excludedMove, when set, is
// skipped at this node (singular-extension verification). allowNull gates
// null-move pruning so two null moves are never played in a row. cutNode
// marks nodes where a beta cutoff is expected.
func (w *Worker) negamax(depth, ply, alpha, beta int, allowNull bool, excludedMove board.Move, cutNode bool) int {
	// The PV copy below reads pv.length[ply+1]; stop one short of the array.
	if ply >= MaxPly-1 {
		score, _ := w.staticEval()
		return score
	}

	if w.probeBudgets() {
		return Interrupted
	}

	w.nodes++
	if ply > w.seldepth {
		w.seldepth = ply
	}

	if board.DebugMoveValidation {
		w.verifyRingInvariants()
	}

	w.pv.length[ply] = ply

	if ply > 0 && w.isDraw() {
		return 0
	}

	isPvNode := alpha < beta-1

	// Transposition table probe.
	var ttMove board.Move
	ttPv := false
	ttEntry, found := w.tt.Probe(w.pos.Hash)
	if found {
		ttMove = ttEntry.BestMove
		ttPv = ttEntry.IsPV

		// A partial-key collision can hand back a move from an unrelated
		// position; never trust it without a pseudo-legality check.
		if ttMove != board.NoMove && !w.pos.PseudoLegal(ttMove) {
			ttMove = board.NoMove
		}

		ttCutoffAllowed := ply > 0 || !w.isExcludedRootMove(ttMove)

		if int(ttEntry.Depth) >= depth && ttCutoffAllowed && excludedMove == board.NoMove {
			score := AdjustScoreFromTT(int(ttEntry.Score), ply)
			switch ttEntry.Flag {
			case TTExact:
				if ply == 0 && ttMove != board.NoMove {
					w.pv.moves[0][0] = ttMove
					w.pv.length[0] = 1
				}
				return score
			case TTLowerBound:
				if score > alpha {
					alpha = score
				}
			case TTUpperBound:
				if score < beta {
					beta = score
				}
			}
			if alpha >= beta {
				if ply == 0 && ttMove != board.NoMove {
					w.pv.moves[0][0] = ttMove
					w.pv.length[0] = 1
				}
				return score
			}
		}
	}

	// Horizon: drop into quiescence.
	if depth <= 0 {
		return w.quiescence(ply, alpha, beta)
	}

	inCheck := w.pos.InCheck()
	prevMove := w.pos.PlayedMove

	// Internal iterative reduction: with no remembered move at meaningful
	// depth, a shallower search will populate the TT for the re-visit.
	if depth >= 4 && ttMove == board.NoMove && !inCheck {
		depth -= 2
	}

	extension := 0

	// Threat extension: a hanging major piece or a threatened queen/rook
	// makes the position too volatile to trust a shallow verdict.
	if EnableThreatExt && depth >= threatExtensionMinDepth && ply > 0 && !inCheck {
		if w.detectSeriousThreats() {
			extension = 1
		}
	}

	// Static evaluation, cached on the ring slot. In check the static
	// score is meaningless; every pruning block below is gated on !inCheck.
	var staticEval int
	drawnEndgame := false
	if !inCheck {
		rawEval, drawn := w.staticEval()
		drawnEndgame = drawn
		staticEval = rawEval + w.corrHistory.Get(w.pos)
	} else {
		staticEval = -Infinity
	}

	// Improving: compare against the slot two plies back in the ring.
	improving := false
	if !inCheck && ply >= 2 {
		prior := w.ring.SlotAt(2)
		if prior.StaticEvalValid {
			improving = staticEval > int(prior.StaticEval)
		}
	}

	// Opponent worsening: our eval improved relative to their last slot.
	opponentWorsening := false
	if !inCheck && ply >= 1 {
		prior := w.ring.SlotAt(1)
		if prior.StaticEvalValid {
			opponentWorsening = staticEval > -int(prior.StaticEval)
		}
	}

	// Hindsight depth adjustment: revisit the previous ply's reduction
	// decision now that this node's eval is known.
	if EnableHindsightDepth && ply >= 1 && !inCheck {
		priorReduction := w.searchStack[ply-1].reduction
		if priorReduction >= 3 && !opponentWorsening {
			depth++
		}
		if priorReduction >= 2 && depth >= 2 {
			prior := w.ring.SlotAt(1)
			if prior.StaticEvalValid && staticEval+int(prior.StaticEval) > 173 {
				depth--
			}
		}
	}

	if ply+2 < MaxPly {
		w.searchStack[ply+2].cutoffCnt = 0
	}

	nearMate := abs(beta) >= MateScore-MaxPly

	// Reverse futility pruning: a static eval this far above beta at
	// shallow depth almost never comes back down.
	if EnableRFP && !inCheck && !drawnEndgame && !nearMate && depth <= 6 && ply > 0 && !ttPv {
		rfpMargin := 80 * depth
		if !improving {
			rfpMargin -= 20
		}
		if staticEval-rfpMargin >= beta {
			return beta
		}
	}

	// Razoring: hopeless static eval at shallow depth, confirm with a
	// quiescence probe before giving up on the node.
	if EnableRazoring && depth <= 5 && !inCheck && !drawnEndgame && ply > 0 && !ttPv {
		razorMargin := 485 + 281*depth*depth
		if staticEval+razorMargin <= alpha {
			score := w.quiescence(ply, alpha, beta)
			if abs(score) >= Interrupted {
				return Interrupted
			}
			if score <= alpha {
				return score
			}
		}
	}

	// Null move pruning: hand the opponent a free move; if the position
	// still beats beta the real move loop will too. Skipped in check, in
	// zugzwang-prone pawn endings and in recognized-drawn endings. The
	// reduction starts at 3 and grows when the static eval clears beta by
	// a wide margin.
	if EnableNMP && allowNull && !inCheck && !drawnEndgame && depth >= 3 && ply > 0 && !ttPv &&
		staticEval >= beta && w.pos.HasNonPawnMaterial() {
		reduction := 3
		if staticEval-beta > 200 {
			reduction++
		}
		if staticEval-beta > 500 {
			reduction++
		}
		if reduction > depth-1 {
			reduction = depth - 1
		}

		if w.ring.PlayNull() {
			w.pos = w.ring.Pos()
			nullScore := -w.negamax(depth-1-reduction, ply+1, -beta, -beta+1, false, board.NoMove, !cutNode)
			w.ring.Undo()
			w.pos = w.ring.Pos()

			if abs(nullScore) >= Interrupted {
				return Interrupted
			}
			if nullScore >= beta {
				return beta
			}
		}
	}

	// ProbCut: a shallow capture search clearing beta by a margin is
	// strong evidence the full-depth search would too.
	if EnableProbcut && depth >= probcutDepth && !inCheck && ply > 0 && !nearMate {
		probcutMargin := 235
		if improving {
			probcutMargin -= 63
		}
		probcutBeta := beta + probcutMargin

		probcutSearchDepth := depth - 5 - (staticEval-beta)/315
		if probcutSearchDepth < 1 {
			probcutSearchDepth = 1
		}
		if probcutSearchDepth > depth {
			probcutSearchDepth = depth
		}

		captures := w.pos.GenerateCaptures()
		for i := 0; i < captures.Len(); i++ {
			capture := captures.Get(i)
			if SEE(w.pos, capture) < 0 {
				continue
			}

			if !w.ring.Play(capture) {
				continue
			}
			w.pos = w.ring.Pos()
			score := -w.negamax(probcutSearchDepth, ply+1, -probcutBeta, -probcutBeta+1, true, board.NoMove, !cutNode)
			w.ring.Undo()
			w.pos = w.ring.Pos()

			if abs(score) >= Interrupted {
				return Interrupted
			}
			if score >= probcutBeta {
				return score
			}
		}
	}

	// Multi-cut: several moves failing high at reduced depth justify a
	// cutoff without the full-depth confirmation.
	if EnableMulticut && depth >= multicutDepth && !inCheck && ply > 0 && !nearMate {
		mcMoves := w.pos.GenerateLegalMoves()
		mcScores := w.orderer.ScoreMovesWithCounter(w.pos, mcMoves, ply, ttMove, prevMove)

		mcCutoffs := 0
		mcSearched := 0
		mcSearchDepth := depth - 4
		if mcSearchDepth < 1 {
			mcSearchDepth = 1
		}

		for i := 0; i < mcMoves.Len() && mcSearched < multicutMoves; i++ {
			PickMove(mcMoves, mcScores, i)
			move := mcMoves.Get(i)

			if !w.ring.Play(move) {
				continue
			}
			w.pos = w.ring.Pos()
			mcSearched++
			score := -w.negamax(mcSearchDepth, ply+1, -beta, -beta+1, true, board.NoMove, !cutNode)
			w.ring.Undo()
			w.pos = w.ring.Pos()

			if abs(score) >= Interrupted {
				return Interrupted
			}
			if score >= beta {
				mcCutoffs++
				if mcCutoffs >= multicutRequired {
					return beta
				}
			}
		}
	}

	// Node-level futility flag: with the static eval this far under
	// alpha, quiet moves at shallow depth cannot recover.
	pruneQuietMoves := false
	if EnableFutilityPruning && depth <= 5 && !inCheck && ply > 0 {
		futilityMargin := [6]int{0, 200, 300, 500, 700, 900}
		if staticEval+futilityMargin[depth] <= alpha {
			pruneQuietMoves = true
		}
	}

	// Singular extension: when the TT move's cached lower bound towers
	// over everything else, verify no other move comes close at reduced
	// depth; a singular move earns extra depth, a non-singular TT move at
	// a cut node earns a reduction instead.
	singularExtension := 0
	if EnableSingularExt && depth >= 6 && ttMove != board.NoMove && excludedMove == board.NoMove && found {
		if int(ttEntry.Depth) >= depth-3 && (ttEntry.Flag == TTLowerBound || ttEntry.Flag == TTExact) {
			margin := 53
			if ttPv && !isPvNode {
				margin = 128
			}
			ttValue := AdjustScoreFromTT(int(ttEntry.Score), ply)
			singularBeta := ttValue - margin*depth/60

			singularDepth := (depth - 1) / 2
			singularScore := w.negamax(singularDepth, ply, singularBeta-1, singularBeta, false, ttMove, cutNode)
			if abs(singularScore) >= Interrupted {
				return Interrupted
			}

			if singularScore < singularBeta {
				ttCapture := ttMove.IsCapture()

				doubleMargin := -4
				if isPvNode {
					doubleMargin += 199
				}
				if !ttCapture {
					doubleMargin -= 201
				}

				tripleMargin := 73
				if isPvNode {
					tripleMargin += 302
				}
				if !ttCapture {
					tripleMargin -= 248
				}
				if ttPv {
					tripleMargin += 90
				}

				singularExtension = 1
				if singularScore < singularBeta-doubleMargin {
					singularExtension = 2
				}
				if singularScore < singularBeta-tripleMargin {
					singularExtension = 3
				}
			} else if ttValue >= beta {
				singularExtension = -3
			} else if cutNode {
				singularExtension = -2
			}
		}
	}

	// Move loop, phase order: TT best move, captures by MVV/LVA, quiets by
	// killer rank and history. The generator validates legality lazily, so
	// a cutoff on an early capture never pays for quiet generation.
	gen := &w.gens[ply]
	gen.Reset(w.pos, ttMove)
	gen.OrderBy(w.orderer.CaptureStamp(w.pos), w.orderer.QuietStamp(w.pos, ply, prevMove))

	bestScore := -Infinity
	bestMove := board.NoMove
	flag := TTUpperBound
	legalMoves := 0
	movesSearched := 0

	for {
		move, _, ok := gen.NextMove()
		if !ok {
			break
		}
		legalMoves++

		if ply == 0 && w.isExcludedRootMove(move) {
			continue
		}
		if move.Equals(excludedMove) {
			continue
		}

		if ply == 0 && w.OnRootMove != nil && w.depth >= 8 {
			w.OnRootMove(move, legalMoves)
		}

		isCapture := move.IsCapture()
		isPromotion := move.IsPromotion()
		givesCheck := move.GivesCheck()
		advancedPush := isAdvancedPawnPush(move, w.pos)
		isQuiet := !isCapture && !isPromotion

		// Futility pruning. A pawn push already on rank 6 or beyond is
		// exempt: one or two moves from promoting, it can be tactically
		// decisive despite counting as quiet.
		if pruneQuietMoves && isQuiet && !givesCheck && !advancedPush && bestMove != board.NoMove {
			continue
		}

		// SEE pruning: losing captures at shallow depth.
		if EnableSEEPruning && isCapture && depth <= 7 && !inCheck && movesSearched > 0 {
			if SEE(w.pos, move) < -20*depth {
				continue
			}
		}

		// Late move pruning: past a per-depth quiet-move budget, the rest
		// of the quiets are noise.
		if EnableLMP && depth <= 7 && !inCheck && movesSearched > 0 && isQuiet && !givesCheck && !advancedPush && !move.Equals(ttMove) {
			threshold := lmpThreshold[depth]
			if !improving {
				threshold = threshold * 2 / 3
			}
			if movesSearched >= threshold {
				continue
			}
		}

		// History pruning: a quiet move this unpopular at shallow depth
		// has earned the skip.
		if EnableHistoryPruning && depth <= 3 && !inCheck && movesSearched > 0 && isQuiet && !move.Equals(ttMove) {
			if w.orderer.GetHistoryScore(move) < historyPruningThreshold {
				continue
			}
		}

		movingPiece := w.pos.PieceAt(move.From())
		moveTo := move.To()

		if !w.ring.Play(move) {
			continue
		}
		w.pos = w.ring.Pos()

		w.searchStack[ply].currentMove = move
		w.searchStack[ply].movedPiece = movingPiece
		w.searchStack[ply].moveTo = moveTo
		w.searchStack[ply].continuationHistory = w.orderer.GetContinuationHistoryTable(movingPiece, moveTo)
		w.searchStack[ply].reduction = 0
		movesSearched++

		var score int
		newDepth := depth - 1 + extension
		if move.Equals(ttMove) && singularExtension != 0 {
			newDepth += singularExtension
		}

		// Late move reduction. Checking moves are never reduced: the check
		// flag on the move inhibits the reduction instead of an explicit
		// check extension.
		if movesSearched > 4 && depth >= 3 && !inCheck && isQuiet && !givesCheck {
			d := depth
			if d > 63 {
				d = 63
			}
			m := movesSearched
			if m > 63 {
				m = 63
			}
			reduction := lmrReductions[d][m]

			// Scale inversely with the aspiration window: confident,
			// narrow windows reduce less.
			if w.rootDelta > 0 && w.rootDelta < Infinity {
				reduction -= (beta - alpha) * 608 / w.rootDelta
			}

			if !improving {
				reduction++
			}
			if move.Equals(ttMove) {
				reduction -= 2
			}
			if ttPv {
				reduction--
			}

			if cutNode {
				extra := 3372
				if ttMove == board.NoMove {
					extra += 997
				}
				reduction += extra / 1024
			}

			allNode := !isPvNode && !cutNode
			if allNode && depth > 2 {
				reduction += reduction / (depth + 1)
			}

			if ply+1 < MaxPly {
				cutoffCnt := w.searchStack[ply+1].cutoffCnt
				if cutoffCnt > 1 {
					extra := 120
					if cutoffCnt > 2 {
						extra += 1024
					}
					if cutoffCnt > 3 {
						extra += 100
					}
					if allNode {
						extra += 1024
					}
					reduction += extra / 1024
				}
			}

			// Blend main history with the continuation histories one and
			// two plies back into a stat score steering the reduction.
			mainHist := w.orderer.history[move.From()][moveTo]
			contHist0 := 0
			contHist1 := 0
			if ply >= 1 && w.searchStack[ply-1].continuationHistory != nil {
				contHist0 = w.searchStack[ply-1].continuationHistory[movingPiece][moveTo]
			}
			if ply >= 2 && w.searchStack[ply-2].continuationHistory != nil {
				contHist1 = w.searchStack[ply-2].continuationHistory[movingPiece][moveTo]
			}
			statScore := 2*mainHist + contHist0 + contHist1
			w.searchStack[ply].statScore = statScore

			reduction -= statScore * 850 / 8192
			reduction -= movesSearched * 73 / 1024

			if reduction < 1 {
				reduction = 1
			}

			reducedDepth := newDepth - reduction
			if reducedDepth < 1 {
				reducedDepth = 1
			}
			w.searchStack[ply].reduction = reduction

			score = -w.negamax(reducedDepth, ply+1, -alpha-1, -alpha, true, board.NoMove, !cutNode)
			if abs(score) < Interrupted && score > alpha {
				score = -w.negamax(newDepth, ply+1, -beta, -alpha, true, board.NoMove, false)
			}
		} else if movesSearched == 1 {
			// First move: full window.
			score = -w.negamax(newDepth, ply+1, -beta, -alpha, true, board.NoMove, false)
		} else {
			// PVS: zero window, full re-search on an inside fail-high.
			score = -w.negamax(newDepth, ply+1, -alpha-1, -alpha, true, board.NoMove, !cutNode)
			if abs(score) < Interrupted && score > alpha && score < beta {
				score = -w.negamax(newDepth, ply+1, -beta, -alpha, true, board.NoMove, false)
			}
		}

		w.ring.Undo()
		w.pos = w.ring.Pos()

		if abs(score) >= Interrupted {
			return Interrupted
		}

		if score > bestScore {
			bestScore = score
			bestMove = move

			if score > alpha {
				alpha = score
				flag = TTExact

				w.pv.moves[ply][ply] = move
				for j := ply + 1; j < w.pv.length[ply+1]; j++ {
					w.pv.moves[ply][j] = w.pv.moves[ply+1][j]
				}
				w.pv.length[ply] = w.pv.length[ply+1]
			}
		}

		if score >= beta {
			if extension < 2 || isPvNode {
				w.searchStack[ply].cutoffCnt++
			}

			if ply == 0 && bestMove != board.NoMove {
				w.pv.moves[0][0] = bestMove
				w.pv.length[0] = 1
			}

			if excludedMove == board.NoMove {
				w.tt.Store(w.pos.Hash, depth, AdjustScoreToTT(score, ply), TTLowerBound, bestMove, false)
			}

			if isCapture {
				w.orderer.UpdateCaptureHistory(movingPiece, moveTo, move.Victim(), depth, true)
			} else {
				w.orderer.UpdateKillers(move, ply)
				w.orderer.UpdateHistory(move, depth, true)
				w.orderer.UpdateLowPlyHistory(move, ply, depth, true)
				w.orderer.UpdateCounterMove(prevMove, move, w.pos)

				if prevMove != board.NoMove {
					prevPiece := w.pos.PieceAt(prevMove.To())
					w.orderer.UpdateCountermoveHistory(prevMove, move, prevPiece, movingPiece, depth, true)
				}

				w.updateContinuationHistories(ply, movingPiece, moveTo, depth, true)

				// Earlier quiets at this node failed to cut; charge them.
				w.penalizeTriedQuiets(ply, move, depth)
			}

			return score
		}
	}

	// No legal moves: checkmate (distance-adjusted) or stalemate. A node
	// whose only legal move was the excluded one counts the same way a
	// singular verification expects: fail low.
	if legalMoves == 0 {
		if inCheck {
			return -MateScore + ply
		}
		return 0
	}
	if bestMove == board.NoMove {
		// Every legal move was pruned or excluded; fail low on the static
		// bound rather than inventing a mate score.
		return alpha
	}

	// Correction history: an exact score teaches us how far the static
	// eval missed.
	if flag == TTExact && !inCheck && depth >= 2 {
		rawEval := int(w.ring.Pos().StaticEval)
		w.corrHistory.Update(w.pos, bestScore, rawEval, depth)
	}

	if excludedMove == board.NoMove {
		w.tt.Store(w.pos.Hash, depth, AdjustScoreToTT(bestScore, ply), flag, bestMove, flag == TTExact)
	}

	return bestScore
}

// penalizeTriedQuiets decrements the history of the quiet moves tried
// before the one that finally cut.
func (w *Worker) penalizeTriedQuiets(ply int, cutMove board.Move, depth int) {
	gen := &w.gens[ply]
	for _, m := range gen.Tried() {
		if m.Equals(cutMove) || m.IsCapture() || m.IsPromotion() {
			continue
		}
		w.orderer.UpdateHistory(m, depth, false)
		w.orderer.UpdateLowPlyHistory(m, ply, depth, false)
	}
}

// quiescence resolves captures (and evasions while in check) past the
// horizon so the leaf evaluation isn't taken mid-exchange.
func (w *Worker) quiescence(ply, alpha, beta int) int {
	return w.quiescenceInternal(ply, 0, alpha, beta)
}

func (w *Worker) quiescenceInternal(ply, qPly, alpha, beta int) int {
	const maxQuiescencePly = 32
	if ply >= board.MaxPly || qPly > maxQuiescencePly {
		score, _ := w.staticEval()
		return score
	}

	if w.probeBudgets() {
		return Interrupted
	}

	w.nodes++
	if ply > w.seldepth {
		w.seldepth = ply
	}
	originalAlpha := alpha

	// TT probe: quiescence entries are stored at depth 0 and satisfy any
	// quiescence node.
	var ttMove board.Move
	ttEntry, ttHit := w.tt.Probe(w.pos.Hash)
	if ttHit {
		ttMove = ttEntry.BestMove
		if ttMove != board.NoMove && !w.pos.PseudoLegal(ttMove) {
			ttMove = board.NoMove
		}
		if ttEntry.Depth >= 0 {
			score := AdjustScoreFromTT(int(ttEntry.Score), ply)
			switch ttEntry.Flag {
			case TTExact:
				return score
			case TTLowerBound:
				if score >= beta {
					return score
				}
			case TTUpperBound:
				if score <= alpha {
					return score
				}
			}
		}
	}

	inCheck := w.pos.InCheck()

	var standPat, bestValue int
	var bestMove board.Move

	if inCheck {
		// In check there is no standing pat; every evasion is searched and
		// finding none is checkmate.
		bestValue = -MateScore + ply
		standPat = bestValue
	} else {
		// Material-only early out before paying for the full evaluation.
		lazyEval := EvaluateMaterial(w.pos)
		if lazyEval-lazyEvalMargin >= beta {
			return beta
		}
		if lazyEval+lazyEvalMargin <= alpha {
			return alpha
		}

		standPat, _ = w.staticEval()
		bestValue = standPat

		if standPat >= beta {
			w.tt.Store(w.pos.Hash, 0, AdjustScoreToTT(standPat, ply), TTLowerBound, board.NoMove, false)
			return beta
		}
		if standPat > alpha {
			alpha = standPat
		}

		// Even a queen capture can't lift this position to alpha.
		if standPat+QueenValue < alpha {
			return alpha
		}
	}

	// Phased generation: full evasion set in check, captures only
	// otherwise. Deep in quiescence only recaptures on the previous
	// destination square are considered.
	prevTo := board.NoSquare
	if !w.pos.PlayedMove.Equals(board.NoMove) {
		prevTo = w.pos.PlayedMove.To()
	}
	recapturesOnly := !inCheck && qPly > qsRecaptureDepth

	gen := &w.gens[ply]
	if inCheck {
		gen.Reset(w.pos, ttMove)
		gen.OrderBy(w.orderer.CaptureStamp(w.pos), w.orderer.QuietStamp(w.pos, ply, w.pos.PlayedMove))
	} else {
		gen.ResetCaptures(w.pos, ttMove)
		gen.OrderBy(w.orderer.CaptureStamp(w.pos), nil)
	}

	for {
		move, _, ok := gen.NextMove()
		if !ok {
			break
		}

		if recapturesOnly && move.To() != prevTo {
			continue
		}

		if !inCheck && move.IsCapture() {
			captureValue := qsCaptureValue(w.pos, move)
			futilityBase := standPat + 351

			// Delta pruning: this capture can't reach alpha.
			if standPat+captureValue+200 < alpha && !move.IsPromotion() {
				if captureValue+futilityBase > bestValue {
					bestValue = captureValue + futilityBase
				}
				continue
			}

			seeValue := SEE(w.pos, move)
			if seeValue < 0 {
				continue
			}

			if futilityBase+seeValue <= alpha {
				if futilityBase > bestValue {
					bestValue = futilityBase
				}
				continue
			}
		}

		if !w.ring.Play(move) {
			continue
		}
		w.pos = w.ring.Pos()
		score := -w.quiescenceInternal(ply+1, qPly+1, -beta, -alpha)
		w.ring.Undo()
		w.pos = w.ring.Pos()

		if abs(score) >= Interrupted {
			return Interrupted
		}

		if score > bestValue {
			bestValue = score
			bestMove = move

			if score > alpha {
				alpha = score
				if score >= beta {
					break
				}
			}
		}
	}

	var ttFlag TTFlag
	switch {
	case bestValue >= beta:
		ttFlag = TTLowerBound
	case bestValue > originalAlpha:
		ttFlag = TTExact
	default:
		ttFlag = TTUpperBound
	}
	w.tt.Store(w.pos.Hash, 0, AdjustScoreToTT(bestValue, ply), ttFlag, bestMove, false)

	return bestValue
}

// qsCaptureValue returns the material swing of a capture for quiescence
// pruning, promotions included.
func qsCaptureValue(pos *board.Position, move board.Move) int {
	value := 0
	if v := move.Victim(); v != board.NoPieceType {
		value = pieceValues[v]
	}
	if move.IsPromotion() {
		value += pieceValues[move.Promotion()] - PawnValue
	}
	return value
}

// isAdvancedPawnPush reports whether move pushes a pawn to rank 6 or
// beyond (from the mover's perspective) without capturing. Pushes this
// close to promotion are exempt from quiet-move futility/LMP pruning.
func isAdvancedPawnPush(move board.Move, pos *board.Position) bool {
	if !move.IsPawnMove() || move.IsCapture() {
		return false
	}
	to := move.To()
	if pos.SideToMove == board.White {
		return to.Rank() >= 5
	}
	return to.Rank() <= 2
}

// detectSeriousThreats checks if the opponent has serious threats against
// our pieces: a hanging rook-or-better, or a queen/rook attacked by a
// cheaper piece.
func (w *Worker) detectSeriousThreats() bool {
	pos := w.pos
	us := pos.SideToMove
	them := us.Other()
	occupied := pos.AllOccupied

	enemyPawnAttacks := computePawnAttacksBB(pos, them)
	enemyKnightAttacks := computeKnightAttacksBB(pos, them)
	enemyBishopAttacks := computeBishopAttacksBB(pos, them, occupied)
	enemyRookAttacks := computeRookAttacksBB(pos, them, occupied)
	enemyQueenAttacks := computeQueenAttacksBB(pos, them, occupied)

	enemyAttacks := enemyPawnAttacks | enemyKnightAttacks | enemyBishopAttacks |
		enemyRookAttacks | enemyQueenAttacks

	ourPawnAttacks := computePawnAttacksBB(pos, us)
	ourKnightAttacks := computeKnightAttacksBB(pos, us)
	ourBishopAttacks := computeBishopAttacksBB(pos, us, occupied)
	ourRookAttacks := computeRookAttacksBB(pos, us, occupied)
	ourQueenAttacks := computeQueenAttacksBB(pos, us, occupied)
	ourKingAttacks := board.KingAttacks(pos.KingSquare[us])

	ourDefenses := ourPawnAttacks | ourKnightAttacks | ourBishopAttacks |
		ourRookAttacks | ourQueenAttacks | ourKingAttacks

	ourPieces := pos.Occupied[us] &^ board.SquareBB(pos.KingSquare[us])

	hangingPieces := ourPieces & enemyAttacks & ^ourDefenses

	for hangingPieces != 0 {
		sq := hangingPieces.PopLSB()
		piece := pos.PieceAt(sq)
		if piece != board.NoPiece && pieceValues[piece.Type()] >= threatExtensionThreshold {
			return true
		}
	}

	queens := pos.Pieces[us][board.Queen]
	if queens&(enemyPawnAttacks|enemyKnightAttacks|enemyBishopAttacks|enemyRookAttacks) != 0 {
		return true
	}

	rooks := pos.Pieces[us][board.Rook]
	if rooks&(enemyPawnAttacks|enemyKnightAttacks|enemyBishopAttacks) != 0 {
		return true
	}

	return false
}

// updateContinuationHistories records a good quiet move against the moves
// played one to six plies back, so sibling subtrees order the same reply
// earlier.
func (w *Worker) updateContinuationHistories(ply int, piece board.Piece, toSq board.Square, depth int, isGood bool) {
	for plyBack := 1; plyBack <= 6; plyBack++ {
		targetPly := ply - plyBack
		if targetPly < 0 {
			break
		}

		ss := &w.searchStack[targetPly]
		if ss.currentMove == board.NoMove || ss.movedPiece == board.NoPiece {
			continue
		}

		w.orderer.UpdateContinuationHistory(
			ss.movedPiece,
			ss.moveTo,
			piece,
			toSq,
			depth,
			plyBack,
			isGood,
		)
	}
}
