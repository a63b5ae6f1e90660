// Chesstention - a chess game against the built-in engine, in the terminal.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"

	"github.com/MatinHoseiny/ChesstensionOnline/internal/book"
	"github.com/MatinHoseiny/ChesstensionOnline/internal/console"
	"github.com/MatinHoseiny/ChesstensionOnline/internal/engine"
	"github.com/MatinHoseiny/ChesstensionOnline/internal/storage"
)

var (
	threads   = flag.Int("threads", 1, "search threads")
	noStorage = flag.Bool("nostore", false, "do not load or save games and preferences")
	dbDir     = flag.String("db", "", "database directory (default: per-user data directory)")
)

func main() {
	flag.Parse()

	cfg := engine.DefaultConfig()
	cfg.Threads = *threads

	openings, err := book.Default()
	if err != nil {
		log.Printf("[BOOK] Warning: opening book not loaded: %v", err)
	}
	var ob engine.OpeningBook
	if openings != nil {
		ob = openings
	}
	eng := engine.NewEngine(cfg, ob)
	defer eng.Close()

	var store *storage.Store
	if !*noStorage {
		if *dbDir != "" {
			store, err = storage.Open(*dbDir)
		} else {
			store, err = storage.OpenDefault()
		}
		if err != nil {
			log.Printf("[STORE] Warning: Failed to initialize storage: %v", err)
			store = nil
		} else {
			defer store.Close()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	g := console.NewGame(eng, store, os.Stdout)
	if err := g.Run(ctx, os.Stdin); err != nil && ctx.Err() == nil {
		log.Fatal(err)
	}
}
