package sampling

import (
	"context"
	"log"
	"math/rand"

	"golang.org/x/sync/errgroup"

	"github.com/arkchess/nnueval/internal/codec"
)

// Pool runs several TrainingDataLoaders concurrently, each with its own
// goroutine and its own *rand.Rand, funnelling accepted records onto a
// single channel for one consumer to drain. No loader instance is ever
// touched by more than one goroutine, so the per-InputFileContext mutex
// fetch_next's spec calls for is unnecessary here by construction.
type Pool struct {
	loaders    []*TrainingDataLoader
	kingBucket int
	checkpoint *CheckpointStore // optional; nil disables persistence
}

// NewPool builds a pool over pre-initialised loaders. kingBucket is passed
// through to every FetchNext call; pass a negative value to use the
// king-rank filter instead of the king-bucket filter.
func NewPool(loaders []*TrainingDataLoader, kingBucket int, checkpoint *CheckpointStore) *Pool {
	return &Pool{loaders: loaders, kingBucket: kingBucket, checkpoint: checkpoint}
}

// Record pairs a decoded entry with the loader index it came from, so a
// consumer can attribute records back to their source file if needed.
type Record struct {
	Entry     codec.PositionEntry
	LoaderIdx int
}

// Run drains `count` accepted records across all loaders into the returned
// channel, closing it when done or when ctx is cancelled. Run itself returns
// at once; the returned function blocks until every worker goroutine has
// exited and reports the first one that failed outside of a recovered
// corruption panic.
func (p *Pool) Run(ctx context.Context, count int, seed int64) (<-chan Record, func() error) {
	out := make(chan Record, len(p.loaders))
	g, ctx := errgroup.WithContext(ctx)

	perWorker := count / len(p.loaders)
	remainder := count % len(p.loaders)

	for i, loader := range p.loaders {
		i, loader := i, loader
		target := perWorker
		if i < remainder {
			target++
		}

		g.Go(func() (err error) {
			rng := rand.New(rand.NewSource(seed + int64(i)))
			defer func() {
				if r := recover(); r != nil {
					log.Printf("sampling: worker %d recovered from corrupt input: %v", i, r)
					err = nil
				}
			}()

			for n := 0; n < target; n++ {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}

				entry, ok := loader.FetchNext(rng, p.kingBucket)
				if !ok {
					log.Printf("sampling: worker %d exhausted its input", i)
					break
				}

				select {
				case out <- Record{Entry: entry, LoaderIdx: i}:
				case <-ctx.Done():
					return ctx.Err()
				}

				if p.checkpoint != nil && n%256 == 0 {
					p.saveCursors(loader)
				}
			}
			p.saveCursors(loader)
			return nil
		})
	}

	go func() {
		g.Wait()
		close(out)
	}()

	return out, g.Wait
}

func (p *Pool) saveCursors(loader *TrainingDataLoader) {
	if p.checkpoint == nil {
		return
	}
	for _, fc := range loader.Files() {
		if err := p.checkpoint.SaveCursor(fc.Path(), fc.Cursor()); err != nil {
			log.Printf("sampling: checkpoint save failed for %s: %v", fc.Path(), err)
		}
	}
}

// Close releases every loader's file handles.
func (p *Pool) Close() error {
	var firstErr error
	for _, loader := range p.loaders {
		if err := loader.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
