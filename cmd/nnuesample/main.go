// Command nnuesample streams training positions out of a directory of
// fixed-record position files, applying the sampling pipeline's rejection
// filters, and prints a summary line per accepted record.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os/signal"
	"syscall"

	"github.com/arkchess/nnueval/internal/codec"
	"github.com/arkchess/nnueval/internal/nnue"
	"github.com/arkchess/nnueval/internal/sampling"
)

var (
	dataDir    = flag.String("data", "", "directory of fixed-record position files (required)")
	weightsOut = flag.String("weights", "", "optional NNUE weights file to score sampled positions with")
	checkptDir = flag.String("checkpoint", "", "optional badger directory for resumable cursor persistence")
	workers    = flag.Int("workers", 4, "number of concurrent sampling loaders")
	count      = flag.Int("count", 10000, "total number of accepted records to draw")
	kingBucket = flag.Int("king-bucket", -1, "restrict sampling to one king bucket (0-31); -1 uses the king-rank filter instead")
	seed       = flag.Int64("seed", 1, "base RNG seed; each worker offsets from this")
)

func main() {
	flag.Parse()

	if *dataDir == "" {
		log.Fatal("nnuesample: -data is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var net *nnue.Network
	if *weightsOut != "" {
		net = nnue.NewNetwork()
		if err := net.LoadWeights(*weightsOut); err != nil {
			log.Fatalf("nnuesample: load weights: %v", err)
		}
	}

	var checkpoint *sampling.CheckpointStore
	if *checkptDir != "" {
		var err error
		checkpoint, err = sampling.OpenCheckpointStore(*checkptDir)
		if err != nil {
			log.Fatalf("nnuesample: open checkpoint store: %v", err)
		}
		defer checkpoint.Close()
	}

	loaders := make([]*sampling.TrainingDataLoader, 0, *workers)
	for i := 0; i < *workers; i++ {
		loader := sampling.NewTrainingDataLoader()
		initRng := rand.New(rand.NewSource(*seed + int64(i)))

		admitted, err := loader.Init(*dataDir, initRng)
		if err != nil {
			log.Fatalf("nnuesample: init loader %d: %v", i, err)
		}
		if !admitted {
			log.Fatalf("nnuesample: no file in %s exceeds %d bytes", *dataDir, codec.EntrySize)
		}
		if checkpoint != nil {
			if err := checkpoint.Resume(loader); err != nil {
				log.Fatalf("nnuesample: resume loader %d: %v", i, err)
			}
		}
		loaders = append(loaders, loader)
	}

	pool := sampling.NewPool(loaders, *kingBucket, checkpoint)
	defer pool.Close()

	out, wait := pool.Run(ctx, *count, *seed)

	var evaluator *nnue.Evaluator
	if net != nil {
		evaluator = nnue.NewEvaluator(net)
	}

	accepted := 0
	for rec := range out {
		accepted++
		log.Print(summarize(rec, evaluator))
	}

	if err := wait(); err != nil && err != context.Canceled {
		log.Fatalf("nnuesample: sampling pool failed: %v", err)
	}
	log.Printf("nnuesample: accepted %d/%d records", accepted, *count)
}

func summarize(rec sampling.Record, evaluator *nnue.Evaluator) string {
	entry := rec.Entry
	base := fmt.Sprintf("score=%d wdl=%d move=%d", entry.Score, entry.WDL, entry.MoveCount)
	if evaluator == nil {
		return base
	}
	score := evaluator.EvaluatePosition(entry.Position)
	return fmt.Sprintf("%s nnue=%d", base, score)
}
