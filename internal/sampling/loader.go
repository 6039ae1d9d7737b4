// Package sampling implements the training-data sampling pipeline: a
// rejection-sampling stream over fixed-record position files, weighted by
// file size, plus the ambient concurrency and persistence layers that turn
// one loader into a resumable multi-worker pool.
package sampling

import (
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"

	"github.com/arkchess/nnueval/internal/board"
	"github.com/arkchess/nnueval/internal/classical"
	"github.com/arkchess/nnueval/internal/codec"
	"github.com/arkchess/nnueval/internal/nnue"
)

// CheckmateValue is the score magnitude at or above which a PositionEntry
// records a forced mate rather than a material evaluation; such positions
// carry no useful training signal and are always rejected.
const CheckmateValue = 29000

// InputFileContext is one file the loader draws records from: its handle,
// its current read cursor, and the per-stream jitter that thins it out
// independently of the other filters.
type InputFileContext struct {
	path                string
	file                *os.File
	size                int64
	cursor              int64
	skippingProbability float64
}

// Path reports the file this context reads from, for logging and
// checkpointing.
func (fc *InputFileContext) Path() string {
	return fc.path
}

// Cursor reports the current read offset, for checkpointing.
func (fc *InputFileContext) Cursor() int64 {
	return fc.cursor
}

// SeekTo repositions the cursor, e.g. to resume from a saved checkpoint.
func (fc *InputFileContext) SeekTo(offset int64) error {
	if offset < 0 || offset > fc.size {
		return fmt.Errorf("sampling: offset %d out of range for %s (size %d)", offset, fc.path, fc.size)
	}
	fc.cursor = offset - offset%codec.EntrySize
	return nil
}

func (fc *InputFileContext) readEntry() ([codec.EntrySize]byte, bool) {
	var buf [codec.EntrySize]byte
	if fc.cursor+codec.EntrySize > fc.size {
		return buf, false
	}
	n, err := fc.file.ReadAt(buf[:], fc.cursor)
	if err != nil && err != io.EOF {
		return buf, false
	}
	if n != codec.EntrySize {
		return buf, false
	}
	fc.cursor += codec.EntrySize
	return buf, true
}

// TrainingDataLoader owns a set of InputFileContexts and the CDF used to
// pick one weighted by file size.
type TrainingDataLoader struct {
	files []*InputFileContext
	cdf   []float64
}

// NewTrainingDataLoader constructs an empty loader; call Init to scan a
// directory and populate it.
func NewTrainingDataLoader() *TrainingDataLoader {
	return &TrainingDataLoader{}
}

// Init scans dir for regular files larger than codec.EntrySize bytes, opens
// each, seeks its cursor to a uniformly random 32-byte-aligned offset,
// draws a per-stream skipping probability from [0, 0.1), and builds the
// size-weighted CDF. Returns false if no file qualified.
func (l *TrainingDataLoader) Init(dir string, rng *rand.Rand) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, fmt.Errorf("sampling: read training directory %s: %w", dir, err)
	}

	var total int64
	l.files = l.files[:0]
	for _, de := range entries {
		if de.IsDir() {
			continue
		}
		info, err := de.Info()
		if err != nil {
			return false, fmt.Errorf("sampling: stat %s: %w", de.Name(), err)
		}
		if info.Size() <= codec.EntrySize {
			continue
		}

		path := filepath.Join(dir, de.Name())
		f, err := os.Open(path)
		if err != nil {
			return false, fmt.Errorf("sampling: open %s: %w", path, err)
		}

		numRecords := info.Size() / codec.EntrySize
		startRecord := rng.Int63n(numRecords)

		fc := &InputFileContext{
			path:                path,
			file:                f,
			size:                info.Size(),
			cursor:              startRecord * codec.EntrySize,
			skippingProbability: rng.Float64() * 0.1,
		}
		l.files = append(l.files, fc)
		total += info.Size()
	}

	if len(l.files) == 0 {
		return false, nil
	}

	l.cdf = make([]float64, len(l.files)+1)
	var running int64
	for i, fc := range l.files {
		running += fc.size
		l.cdf[i+1] = float64(running) / float64(total)
	}
	l.cdf[len(l.cdf)-1] = 1.0

	return true, nil
}

// Close releases every open file handle.
func (l *TrainingDataLoader) Close() error {
	var firstErr error
	for _, fc := range l.files {
		if err := fc.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Files exposes the loader's file contexts, for the checkpoint store to
// persist cursors against.
func (l *TrainingDataLoader) Files() []*InputFileContext {
	return l.files
}

// sampleFileIndex binary-searches the CDF for the largest i with
// CDF[i] <= u, weighting file selection by size.
func (l *TrainingDataLoader) sampleFileIndex(u float64) int {
	// cdf[0] == 0 always satisfies cdf[i] <= u, so the search always finds
	// a valid file index even for u == 0.
	i := sort.Search(len(l.cdf), func(i int) bool { return l.cdf[i] > u })
	return i - 1
}

// FetchNext draws one accepted (entry, position) pair. kingBucket < 0
// disables the king-bucket filter in favour of the king-rank filter;
// kingBucket >= 0 does the reverse. Never blocks: it either returns a
// record or reports failure (exhausted/corrupt input).
//
// Corruption in a fetched record is treated as fatal, per the on-disk
// format's binary contract — it panics rather than silently skipping.
// Pool recovers from this panic by ending that loader's worker, so the
// other workers keep running; the loader yields no further records in that
// run, and the corrupt file is not removed from its rotation.
func (l *TrainingDataLoader) FetchNext(rng *rand.Rand, kingBucket int) (codec.PositionEntry, bool) {
	for {
		idx := l.sampleFileIndex(rng.Float64())
		fc := l.files[idx]

		buf, ok := fc.readEntry()
		if !ok && fc.cursor > 0 {
			fc.cursor = 0
			buf, ok = fc.readEntry()
		}
		if !ok {
			return codec.PositionEntry{}, false
		}

		entry, ok := codec.Decode(buf)
		if !ok {
			panic(fmt.Sprintf("sampling: corrupt position entry in %s at offset %d", fc.path, fc.cursor-codec.EntrySize))
		}

		if l.reject(entry, fc, rng, kingBucket) {
			continue
		}
		return entry, true
	}
}

func (l *TrainingDataLoader) reject(entry codec.PositionEntry, fc *InputFileContext, rng *rand.Rand, kingBucket int) bool {
	pos := entry.Position

	if abs16(entry.Score) >= CheckmateValue {
		return true
	}

	if rng.Float64() < fc.skippingProbability {
		return true
	}

	if entry.WDL == codec.Draw && bernoulli(rng, float64(entry.HalfMoveCount)/200) {
		return true
	}

	if entry.MoveCount < 10 {
		p := 0.5 * float64(10-int(entry.MoveCount)-1) / 10
		if bernoulli(rng, p) {
			return true
		}
	}

	numPieces := pos.NumPieces()
	if numPieces <= 3 {
		return true
	}
	if numPieces == 4 && bernoulli(rng, 0.9) {
		return true
	}

	if crowded := float64(numPieces-26) / 25; crowded > 0 {
		if bernoulli(rng, crowded*crowded) {
			return true
		}
	}

	if kingBucket < 0 {
		whiteKingRank := float64(pos.KingSquare[board.White].Rank())
		blackKingRank := float64(pos.KingSquare[board.Black].Rank())
		whiteKingProb := 1 - whiteKingRank/7
		blackKingProb := blackKingRank / 7
		minProb := whiteKingProb
		if blackKingProb < minProb {
			minProb = blackKingProb
		}
		if bernoulli(rng, 0.25*minProb*minProb) {
			return true
		}
	} else {
		whiteBucket := nnue.KingBucket(pos.KingSquare[board.White])
		blackBucket := nnue.KingBucket(pos.KingSquare[board.Black])
		if whiteBucket != kingBucket && blackBucket != kingBucket {
			return true
		}
	}

	ply := 2 * int(entry.MoveCount)
	p := winProbability(entry.Score, ply)
	actual := outcomeProbability(p, entry.WDL, pos.SideToMove)
	if bernoulli(rng, 0.25*(1-actual)) {
		return true
	}

	s := expectedScore(float64(entry.Score) / 100)
	e := expectedScore(float64(classical.Evaluate(pos)) / 100)
	diff := s - e
	if diff < 0 {
		diff = -diff
	}
	extreme := 4 * (s - 0.5) * (s - 0.5) * max0(1-6*diff)
	if bernoulli(rng, extreme) {
		return true
	}

	return false
}

// outcomeProbability reconciles a 2-outcome win-probability estimate with
// the 3-way recorded result (White/Draw/Black), from sideToMove's point of
// view. A draw's probability is read off the same curve as how close to
// even it predicts the game to be.
func outcomeProbability(winProb float64, actual codec.WDL, sideToMove board.Color) float64 {
	switch actual {
	case codec.Draw:
		d := 2*winProb - 1
		if d < 0 {
			d = -d
		}
		return 1 - d
	case codec.WhiteWins:
		if sideToMove == board.White {
			return winProb
		}
		return 1 - winProb
	case codec.BlackWins:
		if sideToMove == board.Black {
			return winProb
		}
		return 1 - winProb
	default:
		return winProb
	}
}

func bernoulli(rng *rand.Rand, p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return rng.Float64() < p
}

func abs16(v int16) int16 {
	if v < 0 {
		return -v
	}
	return v
}

func max0(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
