package sampling

import (
	"encoding/binary"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// CheckpointStore persists each InputFileContext's read cursor in an
// embedded key-value database, keyed by file path, so a Pool can resume a
// long sampling run without re-reading every file from its start. Adapted
// from the host engine's badger-backed preferences store, repurposed from
// game-state persistence to per-file cursor persistence.
type CheckpointStore struct {
	db *badger.DB
}

// OpenCheckpointStore opens (creating if absent) a badger database at dir.
func OpenCheckpointStore(dir string) (*CheckpointStore, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("sampling: open checkpoint store at %s: %w", dir, err)
	}
	return &CheckpointStore{db: db}, nil
}

// Close releases the underlying database handle.
func (c *CheckpointStore) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// SaveCursor records path's current byte offset.
func (c *CheckpointStore) SaveCursor(path string, offset int64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(offset))

	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(path), buf[:])
	})
}

// LoadCursor returns path's last saved offset, or ok=false if none exists.
func (c *CheckpointStore) LoadCursor(path string) (offset int64, ok bool, err error) {
	err = c.db.View(func(txn *badger.Txn) error {
		item, getErr := txn.Get([]byte(path))
		if getErr == badger.ErrKeyNotFound {
			return nil
		}
		if getErr != nil {
			return getErr
		}
		return item.Value(func(val []byte) error {
			if len(val) != 8 {
				return fmt.Errorf("sampling: corrupt checkpoint record for %s", path)
			}
			offset = int64(binary.LittleEndian.Uint64(val))
			ok = true
			return nil
		})
	})
	if err != nil {
		return 0, false, fmt.Errorf("sampling: load checkpoint for %s: %w", path, err)
	}
	return offset, ok, nil
}

// Resume seeks every file in loader to its checkpointed cursor, leaving
// files with no saved checkpoint at whatever offset Init drew for them.
func (c *CheckpointStore) Resume(loader *TrainingDataLoader) error {
	for _, fc := range loader.Files() {
		offset, ok, err := c.LoadCursor(fc.Path())
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := fc.SeekTo(offset); err != nil {
			return fmt.Errorf("sampling: resume %s: %w", fc.Path(), err)
		}
	}
	return nil
}
