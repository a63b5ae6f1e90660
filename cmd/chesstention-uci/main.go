package main

import (
	"flag"
	"log"
	"os"
	"runtime/pprof"

	"github.com/MatinHoseiny/ChesstensionOnline/internal/book"
	"github.com/MatinHoseiny/ChesstensionOnline/internal/engine"
	"github.com/MatinHoseiny/ChesstensionOnline/internal/uci"
)

var (
	cpuprofile = flag.String("cpuprofile", "", "write cpu profile to file")
	hash       = flag.Int("hash", 256, "transposition table size in thousands of entries")
	threads    = flag.Int("threads", 1, "search threads")
	noBook     = flag.Bool("nobook", false, "disable the opening book")
)

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

	cfg := engine.DefaultConfig()
	cfg.TTEntries = *hash * 1024
	cfg.Threads = *threads
	cfg.UseBook = !*noBook

	var ob engine.OpeningBook
	if !*noBook {
		openings, err := book.Default()
		if err != nil {
			log.Printf("Warning: opening book not loaded: %v", err)
		} else {
			ob = openings
		}
	}

	eng := engine.NewEngine(cfg, ob)
	defer eng.Close()

	protocol := uci.New(eng, os.Stdout)
	if err := protocol.Run(os.Stdin); err != nil {
		log.Printf("uci: %v", err)
	}
}
