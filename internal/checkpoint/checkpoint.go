// Package checkpoint stores periodic best-genome snapshots in an embedded
// BadgerDB so a run can resume (or simply be inspected) without waiting for
// the final archive.
//
// Keys are "<cycle>/<domainIndex>", zero-padded so BadgerDB's native
// lexicographic iteration order matches cycle/domain order. Values are the
// gob encoding of a wire.GenomeFrame, the same frame type the transport
// layer already moves genomes around in.
package checkpoint

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/distcgp/distcgp/internal/ga"
	"github.com/distcgp/distcgp/internal/wire"
)

// Config holds configuration for the checkpoint store's BadgerDB instance.
type Config struct {
	// Path is the directory for BadgerDB files. Required unless InMemory.
	Path string

	// InMemory enables in-memory mode (no disk persistence); useful for
	// testing and for runs that only want checkpointing within the process.
	InMemory bool

	// SyncWrites enables synchronous writes for durability. Default true.
	SyncWrites bool

	// Logger receives BadgerDB's internal log output. If nil, BadgerDB's
	// internal logging is disabled.
	Logger *slog.Logger
}

// DefaultConfig returns production defaults: durable, synchronous writes.
func DefaultConfig() Config {
	return Config{SyncWrites: true}
}

// InMemoryConfig returns configuration suited to tests: no disk I/O, no
// sync overhead.
func InMemoryConfig() Config {
	return Config{InMemory: true, SyncWrites: false}
}

type badgerLogger struct{ logger *slog.Logger }

func (l *badgerLogger) Errorf(format string, args ...interface{})   { l.logger.Error(fmt.Sprintf(format, args...)) }
func (l *badgerLogger) Warningf(format string, args ...interface{}) { l.logger.Warn(fmt.Sprintf(format, args...)) }
func (l *badgerLogger) Infof(format string, args ...interface{})    { l.logger.Info(fmt.Sprintf(format, args...)) }
func (l *badgerLogger) Debugf(format string, args ...interface{})   { l.logger.Debug(fmt.Sprintf(format, args...)) }

// Store is a periodic best-genome snapshot store backed by BadgerDB.
type Store struct {
	db *badger.DB
}

// Open opens (creating if necessary) a checkpoint store at cfg's path, or
// an in-memory one if cfg.InMemory is set.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("checkpoint: path is required for a persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("checkpoint: create directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open badger database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func snapshotKey(cycle uint64, domainIndex uint32) []byte {
	return []byte(fmt.Sprintf("%020d/%010d", cycle, domainIndex))
}

// SaveBestGenomes snapshots the best genome of every island local to this
// process, all in a single transaction so a reader never sees a partial
// cycle's worth of snapshots.
func (s *Store) SaveBestGenomes(ctx context.Context, cycle uint64, islands []*ga.Island) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}

	txn := s.db.NewTransaction(true)
	defer txn.Discard()

	for _, isl := range islands {
		if !isl.IsLocal() {
			continue
		}
		frame := isl.BestGenome().Frame()
		data, err := encodeFrame(frame)
		if err != nil {
			return fmt.Errorf("checkpoint: encode domain index %d: %w", isl.DomainIndex, err)
		}
		if err := txn.Set(snapshotKey(cycle, isl.DomainIndex), data); err != nil {
			return fmt.Errorf("checkpoint: set domain index %d: %w", isl.DomainIndex, err)
		}
	}
	return txn.Commit()
}

// LoadBestGenome retrieves the snapshot taken for domainIndex at cycle.
func (s *Store) LoadBestGenome(ctx context.Context, cycle uint64, domainIndex uint32) (wire.GenomeFrame, error) {
	if err := ctx.Err(); err != nil {
		return wire.GenomeFrame{}, fmt.Errorf("checkpoint: %w", err)
	}

	var frame wire.GenomeFrame
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey(cycle, domainIndex))
		if err != nil {
			return err
		}
		return item.Value(func(data []byte) error {
			return decodeFrame(data, &frame)
		})
	})
	if err != nil {
		return wire.GenomeFrame{}, fmt.Errorf("checkpoint: load cycle %d domain index %d: %w", cycle, domainIndex, err)
	}
	return frame, nil
}

// LatestCycle scans the store for the highest cycle number with at least
// one snapshot, for resuming a run that was interrupted.
func (s *Store) LatestCycle(ctx context.Context) (cycle uint64, found bool, err error) {
	if err := ctx.Err(); err != nil {
		return 0, false, fmt.Errorf("checkpoint: %w", err)
	}

	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().Key()
			var c uint64
			var d uint32
			if _, scanErr := fmt.Sscanf(string(key), "%020d/%010d", &c, &d); scanErr != nil {
				continue
			}
			if !found || c > cycle {
				cycle = c
				found = true
			}
		}
		return nil
	})
	if err != nil {
		return 0, false, fmt.Errorf("checkpoint: scan: %w", err)
	}
	return cycle, found, nil
}

func encodeFrame(frame wire.GenomeFrame) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(frame); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeFrame(data []byte, frame *wire.GenomeFrame) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(frame)
}
