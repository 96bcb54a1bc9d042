// Package indexer wires the checkpoint source, processor, dispatcher, store and
// ingestion loop into one service.
package indexer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/longcipher/sui-indexer/internal/common"
	"github.com/longcipher/sui-indexer/internal/db"
	"github.com/longcipher/sui-indexer/internal/dispatcher"
	"github.com/longcipher/sui-indexer/internal/filter"
	"github.com/longcipher/sui-indexer/internal/ingester"
	"github.com/longcipher/sui-indexer/internal/logger"
	"github.com/longcipher/sui-indexer/internal/metrics"
	"github.com/longcipher/sui-indexer/internal/migrations"
	"github.com/longcipher/sui-indexer/internal/notify"
	"github.com/longcipher/sui-indexer/internal/retry"
	"github.com/longcipher/sui-indexer/internal/source"
	"github.com/longcipher/sui-indexer/internal/store"
	"github.com/longcipher/sui-indexer/pkg/config"
	pkgindexer "github.com/longcipher/sui-indexer/pkg/indexer"
	"github.com/longcipher/sui-indexer/pkg/processor"
	"github.com/longcipher/sui-indexer/pkg/types"
)

// Compile-time check to ensure Indexer implements pkgindexer.Indexer interface.
var _ pkgindexer.Indexer = (*Indexer)(nil)

var (
	ErrNotInitialized = errors.New("indexer is not initialized")
	ErrAlreadyStarted = errors.New("indexer is already started")
)

// Indexer owns every component of the pipeline and their connections.
type Indexer struct {
	cfg *config.Config
	log *logger.Logger

	mu          sync.Mutex
	initialized bool
	started     bool
	stopped     bool
	processor   processor.Processor

	sqlDB       *sql.DB
	maintenance db.Maintenance
	writer      *store.Writer
	source      *source.Client
	publisher   *notify.Publisher
	dispatcher  *dispatcher.Dispatcher
	ingester    *ingester.Ingester
	runErr      error
}

// New creates an indexer for a validated configuration.
func New(cfg *config.Config) *Indexer {
	x := &Indexer{cfg: cfg}
	x.log = x.componentLogger(common.ComponentIndexer)
	return x
}

func (x *Indexer) componentLogger(component string) *logger.Logger {
	if x.cfg.Logging == nil {
		return logger.NewComponentLoggerFromConfig(component, nil)
	}
	return logger.NewComponentLoggerFromConfig(component, x.cfg.Logging)
}

// SetProcessor replaces the processor selected in the configuration. It must be called
// before Start.
func (x *Indexer) SetProcessor(p processor.Processor) error {
	if p == nil {
		return errors.New("processor must not be nil")
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.started {
		return ErrAlreadyStarted
	}
	x.processor = p
	return nil
}

// Initialize opens the database, applies migrations, seeds the progress row and
// connects to the full node.
func (x *Indexer) Initialize(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.initialized {
		return nil
	}

	sqlDB, driver, err := db.Open(ctx, x.cfg.Database)
	if err != nil {
		return err
	}
	x.sqlDB = sqlDB

	if x.cfg.Database.MigrationsEnabled() {
		x.log.Info("running database migrations")
		if err := migrations.Run(x.componentLogger(common.ComponentStore), sqlDB, driver); err != nil {
			x.closeLocked()
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	_, dbPath, _ := x.cfg.Database.Driver()
	x.maintenance = db.NewMaintenance(driver, dbPath, sqlDB, x.cfg.Database.Maintenance,
		x.componentLogger(common.ComponentStore))

	policy := retry.NewPolicy(x.cfg.Network.Retry)

	x.writer = store.New(sqlDB, driver, x.cfg.Events.Stream, policy, x.componentLogger(common.ComponentStore))
	if err := x.writer.Initialize(ctx, x.cfg.Events.InitialProgress); err != nil {
		x.closeLocked()
		return err
	}

	x.source, err = source.NewClient(ctx, x.cfg.Network, policy, x.componentLogger(common.ComponentSource))
	if err != nil {
		x.closeLocked()
		return err
	}
	if err := x.source.Ping(ctx); err != nil {
		x.closeLocked()
		return err
	}
	metrics.ComponentHealthSet(common.ComponentSource, true)

	if x.cfg.Notify != nil && x.cfg.Notify.Enabled {
		x.publisher, err = notify.New(ctx, *x.cfg.Notify, x.componentLogger(common.ComponentNotifier))
		if err != nil {
			x.closeLocked()
			return err
		}
	}

	x.initialized = true
	x.log.Infow("indexer initialized",
		"network", x.cfg.Network.Network,
		"node", x.cfg.Network.GRPCURL,
		"database", driver,
		"stream", x.cfg.Events.Stream)

	return nil
}

// Start runs the ingestion loop until Shutdown is called, ctx is cancelled or a fatal
// error occurs. A fatal error is returned as *ingester.FatalError.
func (x *Indexer) Start(ctx context.Context) error {
	ing, maintenance, err := x.prepare()
	if err != nil {
		return err
	}
	if ing == nil {
		// shut down before start
		return nil
	}

	if err := maintenance.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := maintenance.Stop(); err != nil {
			x.log.Warnf("failed to stop database maintenance: %v", err)
		}
	}()

	err = ing.Run(ctx)

	x.mu.Lock()
	x.runErr = err
	x.mu.Unlock()

	metrics.ComponentHealthSet(common.ComponentIngester, false)
	return err
}

func (x *Indexer) prepare() (*ingester.Ingester, db.Maintenance, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if !x.initialized {
		return nil, nil, ErrNotInitialized
	}
	if x.started {
		return nil, nil, ErrAlreadyStarted
	}
	x.started = true

	if x.stopped {
		return nil, nil, nil
	}

	proc := x.processor
	if proc == nil {
		created, err := processor.Create(x.cfg.Events.Processor, x.componentLogger(common.ComponentProcessor))
		if err != nil {
			return nil, nil, err
		}
		proc = created
	}

	engine := filter.New(x.cfg.Events.Filters)
	stats := engine.Stats()
	x.log.Infow("event filters loaded",
		"filters", stats.Total,
		"by_package", stats.Package,
		"by_module", stats.Module,
		"by_event_type", stats.EventType,
		"by_sender", stats.Sender,
		"processor", x.cfg.Events.Processor.Name)

	x.dispatcher = dispatcher.New(proc,
		x.cfg.Events.BatchSize,
		x.cfg.Events.MaxConcurrentBatches,
		x.componentLogger(common.ComponentDispatcher))

	x.ingester = ingester.New(x.source, x.writer, engine, x.dispatcher, ingester.Config{
		Stream:       x.cfg.Events.Stream,
		PollInterval: x.cfg.Events.PollInterval.Duration,
		RetryDelay:   x.cfg.Events.RetryDelay.Duration,
	}, x.componentLogger(common.ComponentIngester))

	if x.publisher != nil {
		x.ingester.OnCommit(x.publisher.Observer())
	}

	metrics.ComponentHealthSet(common.ComponentIngester, true)
	return x.ingester, x.maintenance, nil
}

// Shutdown asks the ingestion loop to stop after the checkpoint in flight, if any.
// Start returns once it has.
func (x *Indexer) Shutdown() {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.stopped = true
	if x.ingester != nil {
		x.ingester.Shutdown()
	}
}

// Health reports whether the indexer can make progress.
func (x *Indexer) Health(ctx context.Context) error {
	x.mu.Lock()
	writer, runErr := x.writer, x.runErr
	x.mu.Unlock()

	if runErr != nil {
		return runErr
	}
	if writer == nil {
		return ErrNotInitialized
	}
	return writer.Ping(ctx)
}

// Store returns the checkpoint store, or nil before Initialize.
func (x *Indexer) Store() *store.Writer {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.writer
}

// Close releases every connection. It must be called after Start has returned.
func (x *Indexer) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.closeLocked()
}

func (x *Indexer) closeLocked() error {
	var errs []error

	if x.dispatcher != nil {
		x.dispatcher.Close()
		x.dispatcher = nil
	}
	if x.source != nil {
		x.source.Close()
		x.source = nil
	}
	if x.publisher != nil {
		if err := x.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close notifier: %w", err))
		}
		x.publisher = nil
	}
	if x.sqlDB != nil {
		if err := x.sqlDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
		x.sqlDB = nil
	}

	x.writer = nil
	x.maintenance = nil
	x.initialized = false
	return errors.Join(errs...)
}

// Status is a point-in-time view of the indexer.
type Status struct {
	Progress     types.CheckpointProgress `json:"progress"`
	Latest       uint64                   `json:"latest"`
	Lag          uint64                   `json:"lag"`
	Events       int64                    `json:"events"`
	Transactions int64                    `json:"transactions"`
	State        string                   `json:"state,omitempty"`
	Rate         float64                  `json:"rate,omitempty"`
	ETA          string                   `json:"eta,omitempty"`
}

// Status reads progress and row counts from the store and the latest checkpoint from
// the full node. It requires Initialize.
func (x *Indexer) Status(ctx context.Context) (Status, error) {
	x.mu.Lock()
	writer, src, ing := x.writer, x.source, x.ingester
	x.mu.Unlock()

	if writer == nil || src == nil {
		return Status{}, ErrNotInitialized
	}

	var (
		st  Status
		err error
	)

	st.Progress, err = writer.Progress(ctx)
	if err != nil {
		return Status{}, err
	}

	st.Events, st.Transactions, err = writer.Counts(ctx)
	if err != nil {
		return Status{}, err
	}

	st.Latest, err = src.LatestSequence(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("failed to get latest checkpoint: %w", err)
	}
	if st.Latest > st.Progress.Sequence {
		st.Lag = st.Latest - st.Progress.Sequence
	}

	if ing != nil {
		stats := ing.Stats()
		st.State = stats.State.String()
		st.Rate = stats.Rate
		if stats.ETA > 0 {
			st.ETA = stats.ETA.Round(time.Second).String()
		}
	}

	return st, nil
}
