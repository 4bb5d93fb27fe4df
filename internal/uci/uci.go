package uci

import (
	"bufio"
	"fmt"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hailam/chessplay/internal/board"
	"github.com/hailam/chessplay/internal/config"
	"github.com/hailam/chessplay/internal/engine"
	"github.com/hailam/chessplay/internal/ttstore"
)

// analysisFlushInterval is how often the background analysis cache, when
// enabled via the AnalysisLog option, snapshots the transposition table.
const analysisFlushInterval = 5 * time.Second

// analysisSessionTag keys the single snapshot kept per AnalysisLog file.
// The engine only ever tracks one active game at a time, so one tag per
// database file is sufficient.
const analysisSessionTag = "session"

// UCI implements the Universal Chess Interface protocol.
type UCI struct {
	engine   *engine.Engine
	position *board.Position

	// Position history for repetition detection
	positionHashes []uint64

	// Engine configuration accumulated via setoption, mirrored into the
	// engine at the point each option takes effect.
	multiPV      int
	truncatePV   bool
	moveOverhead time.Duration
	strength     config.Config

	// Optional persistent analysis cache (off unless AnalysisLog is set).
	analysisStore *ttstore.Store
	analysisPath  string

	// Search state
	searching     bool
	searchDone    chan struct{}
	stopRequested atomic.Bool

	// CPU profiling
	profileFile *os.File
}

// New creates a new UCI protocol handler.
func New(eng *engine.Engine) *UCI {
	return &UCI{
		engine:       eng,
		position:     board.NewPosition(),
		multiPV:      1,
		truncatePV:   false,
		moveOverhead: 30 * time.Millisecond,
		strength:     config.Default(),
	}
}

// Run starts the UCI main loop.
func (u *UCI) Run() {
	scanner := bufio.NewScanner(os.Stdin)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "uci":
			u.handleUCI()
		case "isready":
			fmt.Println("readyok")
		case "ucinewgame":
			u.handleNewGame()
		case "position":
			if board.DebugMoveValidation {
				fmt.Fprintf(os.Stderr, "info string DEBUG: position %s\n", strings.Join(args, " "))
			}
			u.handlePosition(args)
		case "go":
			u.handleGo(args)
		case "stop":
			u.handleStop()
		case "quit":
			u.handleQuit()
		case "setoption":
			u.handleSetOption(args)
		// Debug commands
		case "d":
			fmt.Println(u.position.String())
		case "perft":
			u.handlePerft(args)
		}
	}
}

// handleUCI responds to the "uci" command.
func (u *UCI) handleUCI() {
	fmt.Println("id name ChessPlay")
	fmt.Println("id author ChessPlay Team")
	fmt.Println()
	fmt.Println("option name Hash type spin default 64 min 1 max 4096")
	fmt.Println("option name ClearHash type button")
	fmt.Println("option name MultiPV type spin default 1 min 1 max 32")
	fmt.Println("option name UCI_LimitStrength type check default false")
	fmt.Println("option name UCI_Elo type spin default 1500 min 500 max 3000")
	fmt.Println("option name TruncatePV type check default false")
	fmt.Println("option name Threads type spin default 1 min 1 max 1")
	fmt.Println("option name Move Overhead type spin default 30 min 0 max 5000")
	fmt.Println("option name AnalysisLog type string default <empty>")
	fmt.Println("uciok")
}

// handleNewGame resets the engine for a new game.
func (u *UCI) handleNewGame() {
	u.engine.Clear()
	u.position = board.NewPosition()
	u.positionHashes = []uint64{u.position.Hash}

	if u.analysisStore != nil {
		if snap, ok, err := u.analysisStore.Load(analysisSessionTag); err == nil && ok {
			u.engine.TT().Restore(snap)
			fmt.Fprintf(os.Stderr, "info string Restored %d cached transposition entries\n", len(snap))
		}
		u.analysisStore.StartBackgroundFlush(u.engine.TT(), analysisSessionTag, analysisFlushInterval)
	}
}

// handlePosition parses and sets up a position.
// Formats:
//   - position startpos
//   - position startpos moves e2e4 e7e5
//   - position fen <fen>
//   - position fen <fen> moves e2e4
func (u *UCI) handlePosition(args []string) {
	if len(args) == 0 {
		return
	}

	u.positionHashes = nil
	var moveStart int

	if args[0] == "startpos" {
		u.position = board.NewPosition()
		moveStart = 1
		// Find "moves" keyword
		for i, arg := range args {
			if arg == "moves" {
				moveStart = i + 1
				break
			}
		}
	} else if args[0] == "fen" {
		// Find where FEN ends (at "moves" or end of args)
		fenEnd := len(args)
		for i, arg := range args[1:] {
			if arg == "moves" {
				fenEnd = i + 1
				break
			}
		}

		fenStr := strings.Join(args[1:fenEnd], " ")
		pos, err := board.ParseFEN(fenStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "info string Invalid FEN: %v\n", err)
			return
		}
		u.position = pos

		// Find "moves" keyword
		moveStart = len(args)
		for i, arg := range args {
			if arg == "moves" {
				moveStart = i + 1
				break
			}
		}
	} else {
		return
	}

	// Record initial position hash
	u.positionHashes = append(u.positionHashes, u.position.Hash)

	// Apply moves
	if moveStart < len(args) {
		for _, moveStr := range args[moveStart:] {
			move := u.parseMove(moveStr)
			if move == board.NoMove {
				fmt.Fprintf(os.Stderr, "info string Invalid move: %s\n", moveStr)
				return
			}
			u.position.MakeMove(move)
			u.position.UpdateCheckers()
			u.positionHashes = append(u.positionHashes, u.position.Hash)
		}
	}

	// Debug: log position state after setup
	if board.DebugMoveValidation {
		legal := u.position.GenerateLegalMoves()
		var legalStrs []string
		for i := 0; i < legal.Len() && i < 8; i++ {
			legalStrs = append(legalStrs, legal.Get(i).String())
		}
		fmt.Fprintf(os.Stderr, "info string DEBUG: After position setup - hash=%016x inCheck=%v legal=%v...\n",
			u.position.Hash, u.position.InCheck(), legalStrs)
	}
}

// parseMove converts a UCI move string to a board.Move.
func (u *UCI) parseMove(moveStr string) board.Move {
	if len(moveStr) < 4 {
		return board.NoMove
	}

	fromFile := int(moveStr[0] - 'a')
	fromRank := int(moveStr[1] - '1')
	toFile := int(moveStr[2] - 'a')
	toRank := int(moveStr[3] - '1')

	if fromFile < 0 || fromFile > 7 || fromRank < 0 || fromRank > 7 ||
		toFile < 0 || toFile > 7 || toRank < 0 || toRank > 7 {
		return board.NoMove
	}

	from := board.NewSquare(fromFile, fromRank)
	to := board.NewSquare(toFile, toRank)

	// Check for promotion
	var promo board.PieceType
	if len(moveStr) == 5 {
		switch moveStr[4] {
		case 'q':
			promo = board.Queen
		case 'r':
			promo = board.Rook
		case 'b':
			promo = board.Bishop
		case 'n':
			promo = board.Knight
		}
	}

	// Find matching legal move
	moves := u.position.GenerateLegalMoves()
	for i := 0; i < moves.Len(); i++ {
		m := moves.Get(i)
		if m.From() == from && m.To() == to {
			if promo != 0 {
				if m.IsPromotion() && m.Promotion() == promo {
					return m
				}
			} else if !m.IsPromotion() {
				return m
			}
		}
	}

	return board.NoMove
}

// GoOptions holds parsed "go" command options.
type GoOptions struct {
	Depth       int
	Nodes       uint64
	MoveTime    time.Duration
	Mate        int
	Infinite    bool
	WTime       time.Duration
	BTime       time.Duration
	WInc        time.Duration
	BInc        time.Duration
	MovesToGo   int
	SearchMoves []board.Move
}

// handleGo starts a search with the given parameters.
func (u *UCI) handleGo(args []string) {
	opts := u.parseGoOptions(args)

	// Set up position history for repetition detection
	u.engine.SetPositionHistory(u.positionHashes)

	// Configure info callbacks
	u.engine.OnInfo = func(info engine.SearchInfo) {
		u.sendInfo(info)
	}
	u.engine.OnCurrMove = func(move board.Move, number int) {
		fmt.Printf("info hashfull %d currmove %s currmovenumber %d\n",
			u.engine.TT().HashFull(), move.String(), number)
	}

	// Start search in goroutine
	u.searching = true
	u.stopRequested.Store(false)
	u.searchDone = make(chan struct{})

	pos := u.position.Copy()
	gamePly := len(u.positionHashes) - 1
	if gamePly < 0 {
		gamePly = 0
	}

	go func() {
		defer close(u.searchDone)

		var bestMove board.Move
		if u.multiPV > 1 {
			mpvLimits := u.calculateLimits(opts)
			mpvLimits.MultiPV = u.multiPV
			results := u.engine.SearchMultiPV(pos, mpvLimits)
			for i, r := range results {
				u.sendMultiPVInfo(i+1, r)
			}
			if len(results) > 0 {
				bestMove = results[0].Move
			}
		} else {
			bestMove = u.engine.SearchWithUCILimits(pos, u.uciLimits(opts), gamePly)
		}

		u.searching = false

		// Validate the move against a fresh copy of the root position
		// before committing it to the GUI.
		validationPos := u.position.Copy()
		if bestMove != board.NoMove {
			legal := validationPos.GenerateLegalMoves()
			for i := 0; i < legal.Len(); i++ {
				if legal.Get(i).Equals(bestMove) {
					fmt.Printf("bestmove %s\n", bestMove.String())
					return
				}
			}
			fmt.Fprintf(os.Stderr, "info string search returned illegal move %s\n", bestMove.String())
		}

		// Fallback: return first legal move if available
		legal := validationPos.GenerateLegalMoves()
		if legal.Len() > 0 {
			fmt.Printf("bestmove %s\n", legal.Get(0).String())
		} else {
			// Only send 0000 for checkmate/stalemate (no legal moves)
			fmt.Println("bestmove 0000")
		}
	}()
}

// uciLimits translates parsed go options into the engine's time-managed
// limits, with the configured move overhead already deducted from both
// clocks.
func (u *UCI) uciLimits(opts GoOptions) engine.UCILimits {
	clock := func(d time.Duration) time.Duration {
		if d <= 0 {
			return 0
		}
		if d > u.moveOverhead {
			return d - u.moveOverhead
		}
		return time.Millisecond
	}

	return engine.UCILimits{
		Time:        [2]time.Duration{clock(opts.WTime), clock(opts.BTime)},
		Inc:         [2]time.Duration{opts.WInc, opts.BInc},
		MovesToGo:   opts.MovesToGo,
		MoveTime:    opts.MoveTime,
		Depth:       opts.Depth,
		Nodes:       opts.Nodes,
		MateIn:      opts.Mate,
		Infinite:    opts.Infinite,
		SearchMoves: opts.SearchMoves,
	}
}

// parseGoOptions parses "go" command arguments.
func (u *UCI) parseGoOptions(args []string) GoOptions {
	opts := GoOptions{}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "depth":
			if i+1 < len(args) {
				opts.Depth, _ = strconv.Atoi(args[i+1])
				i++
			}
		case "nodes":
			if i+1 < len(args) {
				n, _ := strconv.ParseUint(args[i+1], 10, 64)
				opts.Nodes = n
				i++
			}
		case "movetime":
			if i+1 < len(args) {
				ms, _ := strconv.Atoi(args[i+1])
				opts.MoveTime = time.Duration(ms) * time.Millisecond
				i++
			}
		case "infinite":
			opts.Infinite = true
		case "wtime":
			if i+1 < len(args) {
				ms, _ := strconv.Atoi(args[i+1])
				opts.WTime = time.Duration(ms) * time.Millisecond
				i++
			}
		case "btime":
			if i+1 < len(args) {
				ms, _ := strconv.Atoi(args[i+1])
				opts.BTime = time.Duration(ms) * time.Millisecond
				i++
			}
		case "winc":
			if i+1 < len(args) {
				ms, _ := strconv.Atoi(args[i+1])
				opts.WInc = time.Duration(ms) * time.Millisecond
				i++
			}
		case "binc":
			if i+1 < len(args) {
				ms, _ := strconv.Atoi(args[i+1])
				opts.BInc = time.Duration(ms) * time.Millisecond
				i++
			}
		case "movestogo":
			if i+1 < len(args) {
				opts.MovesToGo, _ = strconv.Atoi(args[i+1])
				i++
			}
		case "mate":
			if i+1 < len(args) {
				opts.Mate, _ = strconv.Atoi(args[i+1])
				i++
			}
		case "searchmoves":
			// Consume move tokens until the next keyword.
			for i+1 < len(args) {
				if m := u.parseMove(args[i+1]); m != board.NoMove {
					opts.SearchMoves = append(opts.SearchMoves, m)
					i++
				} else {
					break
				}
			}
		}
	}

	return opts
}

// calculateLimits converts GoOptions to engine.SearchLimits.
func (u *UCI) calculateLimits(opts GoOptions) engine.SearchLimits {
	limits := engine.SearchLimits{}

	if opts.Infinite {
		limits.Infinite = true
		return limits
	}

	if opts.Depth > 0 {
		limits.Depth = opts.Depth
	}

	if opts.Nodes > 0 {
		limits.Nodes = opts.Nodes
	}

	if opts.MoveTime > 0 {
		limits.MoveTime = opts.MoveTime
	} else if opts.WTime > 0 || opts.BTime > 0 {
		// Time control - calculate time for this move
		limits.MoveTime = u.calculateTimeForMove(opts)
	}

	return limits
}

// calculateTimeForMove determines how much time to spend on this move.
func (u *UCI) calculateTimeForMove(opts GoOptions) time.Duration {
	var ourTime, ourInc time.Duration

	if u.position.SideToMove == board.White {
		ourTime = opts.WTime
		ourInc = opts.WInc
	} else {
		ourTime = opts.BTime
		ourInc = opts.BInc
	}

	// Estimate moves remaining
	movesRemaining := opts.MovesToGo
	if movesRemaining == 0 {
		movesRemaining = u.estimateMovesRemaining()
	}

	// Base time allocation
	baseTime := ourTime / time.Duration(movesRemaining)

	// Add increment (use 90%)
	moveTime := baseTime + (ourInc * 90 / 100)

	// Safety: never use more than 90% of remaining time
	maxTime := ourTime * 90 / 100
	if moveTime > maxTime {
		moveTime = maxTime
	}

	// Reserve the configured move overhead (network/GUI latency margin).
	if moveTime > u.moveOverhead {
		moveTime -= u.moveOverhead
	}

	// Minimum time
	if moveTime < 10*time.Millisecond {
		moveTime = 10 * time.Millisecond
	}

	// Debug logging for time management diagnosis
	fmt.Printf("info string time_allocated=%dms moves_remaining=%d our_time=%dms our_inc=%dms\n",
		moveTime.Milliseconds(), movesRemaining, ourTime.Milliseconds(), ourInc.Milliseconds())

	return moveTime
}

// estimateMovesRemaining estimates remaining moves based on piece count.
func (u *UCI) estimateMovesRemaining() int {
	totalPieces := u.position.AllOccupied.PopCount()

	if totalPieces > 24 {
		return 40 // Opening/early middlegame
	} else if totalPieces > 12 {
		return 30 // Middlegame
	}
	return 20 // Endgame
}

// sendInfo outputs search info in UCI format.
func (u *UCI) sendInfo(info engine.SearchInfo) {
	u.sendInfoMultiPV(info, 0)
}

// sendInfoMultiPV outputs search info, including a "multipv N" field when
// multiPVIndex > 0 (rank of this PV line, 1-based).
func (u *UCI) sendInfoMultiPV(info engine.SearchInfo, multiPVIndex int) {
	var parts []string

	parts = append(parts, fmt.Sprintf("depth %d", info.Depth))
	if info.SelDepth > 0 {
		parts = append(parts, fmt.Sprintf("seldepth %d", info.SelDepth))
	}

	if multiPVIndex > 0 {
		parts = append(parts, fmt.Sprintf("multipv %d", multiPVIndex))
	}

	// Score
	if info.Score > engine.MateScore-100 {
		mateIn := (engine.MateScore - info.Score + 1) / 2
		parts = append(parts, fmt.Sprintf("score mate %d", mateIn))
	} else if info.Score < -engine.MateScore+100 {
		mateIn := -(engine.MateScore + info.Score + 1) / 2
		parts = append(parts, fmt.Sprintf("score mate %d", mateIn))
	} else {
		parts = append(parts, fmt.Sprintf("score cp %d", info.Score))
	}

	parts = append(parts, fmt.Sprintf("nodes %d", info.Nodes))
	parts = append(parts, fmt.Sprintf("time %d", info.Time.Milliseconds()))

	// NPS
	if info.Time > 0 {
		nps := uint64(float64(info.Nodes) / info.Time.Seconds())
		parts = append(parts, fmt.Sprintf("nps %d", nps))
	}

	// Hash fullness
	if info.HashFull > 0 {
		parts = append(parts, fmt.Sprintf("hashfull %d", info.HashFull))
	}

	// PV - validate moves to prevent outputting illegal sequences
	if len(info.PV) > 0 {
		validPV := make([]string, 0, len(info.PV))
		testPos := u.position.Copy()
		for _, move := range info.PV {
			// Validate move is legal in current test position
			legal := testPos.GenerateLegalMoves()
			isLegal := false
			for i := 0; i < legal.Len(); i++ {
				if legal.Get(i).Equals(move) {
					isLegal = true
					break
				}
			}
			if !isLegal {
				break // Stop at first illegal move
			}
			validPV = append(validPV, move.String())
			testPos.MakeMove(move)
		}
		if u.truncatePV && len(validPV) > info.Depth {
			validPV = validPV[:info.Depth]
		}
		if len(validPV) > 0 {
			parts = append(parts, "pv "+strings.Join(validPV, " "))
		}
	}

	fmt.Printf("info %s\n", strings.Join(parts, " "))
}

// sendMultiPVInfo outputs one line of a Multi-PV search result.
func (u *UCI) sendMultiPVInfo(rank int, r engine.SearchResult) {
	u.sendInfoMultiPV(engine.SearchInfo{
		Depth: r.Depth,
		Score: r.Score,
		PV:    r.PV,
	}, rank)
}

// handleStop stops the current search.
func (u *UCI) handleStop() {
	if u.searching {
		u.stopRequested.Store(true)
		u.engine.Stop()
		<-u.searchDone // Wait for search to finish
	}
}

// handleQuit exits the program.
func (u *UCI) handleQuit() {
	u.handleStop()
	// Stop profiling if active
	if u.profileFile != nil {
		pprof.StopCPUProfile()
		u.profileFile.Close()
		fmt.Fprintf(os.Stderr, "info string CPU profile saved\n")
	}
	if u.analysisStore != nil {
		u.analysisStore.Close()
	}
	os.Exit(0)
}

// handleSetOption processes "setoption" commands.
func (u *UCI) handleSetOption(args []string) {
	// Format: setoption name <name> value <value>
	var name, value string
	readingName := false
	readingValue := false

	for _, arg := range args {
		switch arg {
		case "name":
			readingName = true
			readingValue = false
		case "value":
			readingName = false
			readingValue = true
		default:
			if readingName {
				if name != "" {
					name += " "
				}
				name += arg
			} else if readingValue {
				if value != "" {
					value += " "
				}
				value += arg
			}
		}
	}

	// Handle options
	switch strings.ToLower(name) {
	case "hash":
		mb, err := strconv.Atoi(value)
		if err == nil && mb >= 1 {
			u.strength.HashMB = mb
			u.engine.Resize(mb)
		}
	case "clearhash":
		u.engine.Clear()
	case "multipv":
		n, err := strconv.Atoi(value)
		if err == nil && n >= 1 {
			u.multiPV = n
		}
	case "truncatepv":
		u.truncatePV = strings.ToLower(value) == "true"
	case "uci_limitstrength":
		u.strength.LimitStrength = strings.ToLower(value) == "true"
		u.applyStrength()
	case "uci_elo":
		elo, err := strconv.Atoi(value)
		if err == nil {
			u.strength.Elo = elo
			u.strength.Clamp()
			u.applyStrength()
		}
	case "threads":
		// Single-worker search only; accepted for UCI compliance and
		// silently clamped rather than rejected.
	case "move overhead":
		ms, err := strconv.Atoi(value)
		if err == nil && ms >= 0 {
			u.strength.MoveOverhead = ms
			u.moveOverhead = time.Duration(ms) * time.Millisecond
		}
	case "analysislog":
		u.setAnalysisLog(value)
	case "debug":
		enabled := strings.ToLower(value) == "true"
		board.DebugMoveValidation = enabled
		if enabled {
			fmt.Fprintf(os.Stderr, "info string Debug mode enabled\n")
		}
	case "cpuprofile":
		// Stop existing profile if any
		if u.profileFile != nil {
			pprof.StopCPUProfile()
			u.profileFile.Close()
			fmt.Fprintf(os.Stderr, "info string CPU profile stopped\n")
			u.profileFile = nil
		}
		// Start new profile if path provided
		if value != "" && value != "stop" {
			f, err := os.Create(value)
			if err != nil {
				fmt.Fprintf(os.Stderr, "info string Failed to create profile: %v\n", err)
				return
			}
			if err := pprof.StartCPUProfile(f); err != nil {
				f.Close()
				fmt.Fprintf(os.Stderr, "info string Failed to start profile: %v\n", err)
				return
			}
			u.profileFile = f
			fmt.Fprintf(os.Stderr, "info string CPU profiling to %s\n", value)
		}
	}
}

// applyStrength mirrors the accumulated strength configuration into the
// engine. Called whenever UCI_LimitStrength or UCI_Elo changes.
func (u *UCI) applyStrength() {
	cfg := u.strength
	u.engine.SetStrength(&cfg)
}

// setAnalysisLog opens (or closes) the persistent analysis cache backing
// the "AnalysisLog" option. An empty value disables it.
func (u *UCI) setAnalysisLog(path string) {
	if u.analysisStore != nil {
		u.analysisStore.StopBackgroundFlush()
		u.analysisStore.Close()
		u.analysisStore = nil
	}

	u.analysisPath = path
	if path == "" {
		return
	}

	store, err := ttstore.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "info string Failed to open analysis log at %s: %v\n", path, err)
		return
	}

	u.analysisStore = store
	fmt.Fprintf(os.Stderr, "info string Analysis log opened at %s\n", path)

	if snap, ok, err := store.Load(analysisSessionTag); err == nil && ok {
		u.engine.TT().Restore(snap)
		fmt.Fprintf(os.Stderr, "info string Restored %d cached transposition entries\n", len(snap))
	}
	store.StartBackgroundFlush(u.engine.TT(), analysisSessionTag, analysisFlushInterval)
}

// handlePerft runs a perft test.
func (u *UCI) handlePerft(args []string) {
	depth := 5
	if len(args) > 0 {
		depth, _ = strconv.Atoi(args[0])
	}

	start := time.Now()
	nodes := u.engine.Perft(u.position, depth)
	elapsed := time.Since(start)

	fmt.Printf("Nodes: %d\n", nodes)
	fmt.Printf("Time: %v\n", elapsed)
	if elapsed > 0 {
		nps := float64(nodes) / elapsed.Seconds()
		fmt.Printf("NPS: %.0f\n", nps)
	}
}
