package main

import (
	"flag"
	"log"
	"os"
	"runtime/pprof"

	"github.com/dustin/go-humanize"

	"github.com/hailam/chessplay/internal/engine"
	"github.com/hailam/chessplay/internal/uci"
)

const defaultHashMB = 64

var cpuprofile = flag.String("cpuprofile", "", "write cpu profile to file")

func main() {
	flag.Parse()

	// Start CPU profiling if requested (via flag or environment variable)
	profilePath := *cpuprofile
	if profilePath == "" {
		profilePath = os.Getenv("CPUPROFILE")
	}
	if profilePath != "" {
		f, err := os.Create(profilePath)
		if err != nil {
			log.Fatal("could not create CPU profile: ", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal("could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
		log.Printf("CPU profiling enabled, writing to %s", profilePath)
	}

	// Create engine with the default hash table size; "setoption name Hash"
	// rebuilds the table live.
	eng := engine.NewEngine(defaultHashMB)
	log.Printf("Transposition table allocated: %s", humanize.Bytes(uint64(defaultHashMB)*1024*1024))

	// Create and run UCI protocol handler
	protocol := uci.New(eng)
	protocol.Run()
}
