// Package engine provides the relational store behind a configuration
// lattice.
//
// It implements lattice.Store on top of GORM: nodes are deduplicated by
// their quantized pose key with insert-or-ignore semantics, bulk
// ingestion is chunked into per-chunk transactions, and the 12
// adjacency slots live as nullable columns on the node row itself.
//
// Basic usage:
//
//	opts := engine.DefaultOptions("./lattice.db")
//	store, err := engine.Open(opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
package engine

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sanonone/latticedb/pkg/lattice"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DefaultBatchSize is the number of rows per bulk chunk when Options
// does not override it.
const DefaultBatchSize = 500

// Options configures the behavior of the Engine: which database backs
// it and how bulk work is chunked and reported.
type Options struct {
	// Driver selects the backend, DriverSQLite or DriverPostgres.
	Driver string

	// DSN is the driver connection string: a file path for SQLite, a
	// connection URL for Postgres.
	DSN string

	// BatchSize is the maximum number of rows per bulk chunk. Each
	// chunk commits in its own transaction. Values < 1 fall back to
	// DefaultBatchSize.
	BatchSize int

	// Logger receives structured progress and diagnostics. Nil means
	// silent (zap.NewNop).
	Logger *zap.Logger

	// OnProgress, if set, is invoked after every committed bulk chunk.
	OnProgress func(Progress)
}

// DefaultOptions returns a standard configuration suitable for most use
// cases: an SQLite database at the given path, chunks of
// DefaultBatchSize, no logging.
func DefaultOptions(dsn string) Options {
	return Options{
		Driver:    DriverSQLite,
		DSN:       dsn,
		BatchSize: DefaultBatchSize,
	}
}

// Engine is a lattice.Store backed by a relational database.
//
// Use Open() to initialize an Engine and Close() to shut it down. All
// methods are safe for concurrent use; the underlying *gorm.DB pools
// connections.
type Engine struct {
	db   *gorm.DB
	log  *zap.Logger
	opts Options

	closeOnce sync.Once
}

var _ lattice.Store = (*Engine)(nil)

// Open connects to the configured database, migrates the nodes table
// and returns a ready Engine.
//
// Migration is additive: it creates the table, the composite unique
// index over the six pose columns and the 12 direction columns if they
// are missing, and never drops existing data.
func Open(opts Options) (*Engine, error) {
	if opts.Driver == "" {
		opts.Driver = DriverSQLite
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	var dialector gorm.Dialector
	switch opts.Driver {
	case DriverSQLite:
		dialector = sqlite.Open(opts.DSN)
	case DriverPostgres:
		dialector = postgres.Open(opts.DSN)
	default:
		return nil, fmt.Errorf("unknown driver %q", opts.Driver)
	}

	// GORM's own logger stays silent; diagnostics go through zap.
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w: %w", opts.Driver, lattice.ErrStorageUnavailable, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w: %w", opts.Driver, lattice.ErrStorageUnavailable, err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping %s store: %w: %w", opts.Driver, lattice.ErrStorageUnavailable, err)
	}

	if err := db.AutoMigrate(&nodeRow{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate nodes table: %w: %w", lattice.ErrStorageUnavailable, err)
	}

	e := &Engine{
		db:   db,
		log:  opts.Logger,
		opts: opts,
	}
	e.log.Info("lattice store ready",
		zap.String("driver", opts.Driver),
		zap.Int("batch_size", opts.BatchSize),
	)
	return e, nil
}

// Close releases the underlying connection pool. It is safe to call
// more than once; only the first call does work.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		sqlDB, dbErr := e.db.DB()
		if dbErr != nil {
			err = dbErr
			return
		}
		err = sqlDB.Close()
	})
	return err
}
