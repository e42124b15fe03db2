package repositories

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// Options configures the document store.
type Options struct {
	// Path is the badger directory. Empty opens an in-memory store.
	Path string
	// OptimisticLocking makes post saves compare versions.
	OptimisticLocking bool
	Logger            *slog.Logger
}

// Repository owns the badger DB and the collections stored in it.
type Repository struct {
	db       *badger.DB
	mutex    sync.Mutex
	dbPath   string
	inMemory bool

	Posts    *BadgerPostRepository
	Comments *BadgerCommentRepository
	Imports  *BadgerImportLedger
}

// NewRepository opens the document store described by opts.
func NewRepository(opts Options) (*Repository, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var bopts badger.Options
	if opts.Path == "" {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(opts.Path, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		bopts = badger.DefaultOptions(opts.Path)
	}
	bopts = bopts.
		WithLogger(badgerLogger{logger: logger.With("component", "badger")}).
		WithNumVersionsToKeep(1)

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at %q: %w", opts.Path, err)
	}

	return &Repository{
		db:       db,
		dbPath:   opts.Path,
		inMemory: opts.Path == "",
		Posts:    NewBadgerPostRepository(db, opts.OptimisticLocking),
		Comments: NewBadgerCommentRepository(db),
		Imports:  NewBadgerImportLedger(db),
	}, nil
}

// DB exposes the underlying badger handle for maintenance commands.
func (r *Repository) DB() *badger.DB {
	return r.db
}

// Path returns the badger directory, or "" for an in-memory store.
func (r *Repository) Path() string {
	if r.inMemory {
		return ""
	}
	return r.dbPath
}

// Counts is the number of documents per collection.
type Counts struct {
	Posts    int
	Comments int
	Imports  int
}

// Stats counts keys per collection without reading values.
func (r *Repository) Stats() (Counts, error) {
	var counts Counts
	err := r.db.View(func(txn *badger.Txn) error {
		for _, c := range []struct {
			prefix string
			n      *int
		}{
			{PostKeyPrefix, &counts.Posts},
			{CommentKeyPrefix, &counts.Comments},
			{ImportKeyPrefix, &counts.Imports},
		} {
			*c.n = countPrefix(txn, []byte(c.prefix))
		}
		return nil
	})
	if err != nil {
		return Counts{}, translate("stats", err)
	}
	return counts, nil
}

func countPrefix(txn *badger.Txn, prefix []byte) int {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	n := 0
	for it.Rewind(); it.Valid(); it.Next() {
		n++
	}
	return n
}

// Close closes the database.
func (r *Repository) Close() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.db.Close()
}

// Clear drops every document in every collection.
func (r *Repository) Clear() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.db.DropAll()
}

// badgerLogger routes badger's internal logging through slog.
type badgerLogger struct {
	logger *slog.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
