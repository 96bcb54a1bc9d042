package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/longcipher/sui-indexer/internal/logger"
	"github.com/longcipher/sui-indexer/pkg/config"
)

type Maintenance interface {
	// Start begins background maintenance if enabled.
	Start(ctx context.Context) error
	// Stop stops background maintenance and waits for completion.
	Stop() error
	// RunMaintenance performs one maintenance pass (for manual invocation).
	RunMaintenance(ctx context.Context) error
	// GetMetrics returns current maintenance metrics.
	GetMetrics() MaintenanceMetrics
}

// NoOpMaintenance is a no-operation implementation of the Maintenance interface.
type NoOpMaintenance struct{}

func (m *NoOpMaintenance) Start(context.Context) error          { return nil }
func (m *NoOpMaintenance) Stop() error                          { return nil }
func (m *NoOpMaintenance) RunMaintenance(context.Context) error { return nil }
func (m *NoOpMaintenance) GetMetrics() MaintenanceMetrics       { return MaintenanceMetrics{} }

// WALMaintainer periodically folds the SQLite write-ahead log back into the main
// database file, so the WAL does not grow without bound under a steady write load.
// It only ever runs checkpoints, which SQLite serializes against writers itself.
type WALMaintainer struct {
	db     *sql.DB
	config config.MaintenanceConfig
	dbPath string
	log    *logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	lastRun time.Time
	runs    uint64
	lastErr error
}

// NewMaintenance returns a WALMaintainer for an SQLite database with maintenance
// enabled, and a no-op otherwise.
func NewMaintenance(driver, dbPath string, db *sql.DB, cfg *config.MaintenanceConfig, log *logger.Logger) Maintenance {
	if cfg == nil || !cfg.Enabled || driver != config.DriverSQLite {
		return &NoOpMaintenance{}
	}

	return newWALMaintainer(dbPath, db, *cfg, log)
}

func newWALMaintainer(dbPath string, db *sql.DB, cfg config.MaintenanceConfig, log *logger.Logger) *WALMaintainer {
	return &WALMaintainer{
		db:     db,
		config: cfg,
		dbPath: dbPath,
		log:    log.WithComponent("db-maintenance"),
	}
}

// Start launches the background worker.
func (m *WALMaintainer) Start(ctx context.Context) error {
	if m.cancel != nil {
		return errors.New("maintenance already started")
	}

	var workerCtx context.Context
	workerCtx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go m.worker(workerCtx, m.config.CheckInterval.Duration)

	m.log.Infow("background maintenance started",
		"interval", m.config.CheckInterval.Duration,
		"checkpoint_mode", m.config.WALCheckpointMode)

	return nil
}

// Stop stops the background worker and waits for it to exit.
func (m *WALMaintainer) Stop() error {
	if m.cancel == nil {
		return nil
	}

	m.cancel()
	m.wg.Wait()
	m.cancel = nil
	m.log.Info("background maintenance stopped")

	return nil
}

func (m *WALMaintainer) worker(ctx context.Context, interval time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.RunMaintenance(ctx); err != nil && ctx.Err() == nil {
				m.log.Warnf("periodic maintenance failed: %v", err)
			}
		}
	}
}

// RunMaintenance runs a WAL checkpoint and records the database size.
func (m *WALMaintainer) RunMaintenance(ctx context.Context) error {
	start := time.Now()

	err := m.walCheckpoint(ctx)
	duration := time.Since(start)

	m.mu.Lock()
	m.lastRun = time.Now().UTC()
	m.runs++
	m.lastErr = err
	m.mu.Unlock()

	WALRunObserve(duration, err)
	if err != nil {
		return err
	}

	size, sizeErr := DBTotalSize(m.dbPath)
	if sizeErr != nil {
		m.log.Warnf("failed to get database size: %v", sizeErr)
	} else {
		DBSizeLog(size)
	}

	m.log.Debugw("maintenance completed", "duration", duration, "size_bytes", size)
	return nil
}

func (m *WALMaintainer) walCheckpoint(ctx context.Context) error {
	var mode string
	if err := m.db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode); err != nil {
		return fmt.Errorf("failed to check journal mode: %w", err)
	}
	if !strings.EqualFold(mode, "wal") {
		m.log.Debugf("journal mode is %s, skipping WAL checkpoint", mode)
		return nil
	}

	checkpointMode := strings.ToUpper(m.config.WALCheckpointMode)
	query := fmt.Sprintf("PRAGMA wal_checkpoint(%s)", checkpointMode)

	var busy, logFrames, checkpointed int
	if err := m.db.QueryRowContext(ctx, query).Scan(&busy, &logFrames, &checkpointed); err != nil {
		return fmt.Errorf("failed to execute WAL checkpoint: %w", err)
	}

	WALCheckpointLog(strings.ToLower(checkpointMode), busy > 0, logFrames, checkpointed)
	if busy > 0 {
		m.log.Warnf("WAL checkpoint was blocked by a concurrent reader or writer (log_frames=%d checkpointed=%d)",
			logFrames, checkpointed)
	}

	return nil
}

// GetMetrics returns current maintenance metrics.
func (m *WALMaintainer) GetMetrics() MaintenanceMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	return MaintenanceMetrics{
		LastMaintenanceTime:  m.lastRun,
		MaintenanceCount:     m.runs,
		LastMaintenanceError: m.lastErr,
	}
}

// MaintenanceMetrics provides visibility into maintenance operations.
type MaintenanceMetrics struct {
	LastMaintenanceTime  time.Time
	MaintenanceCount     uint64
	LastMaintenanceError error
}

// DBTotalSize returns the combined size of an SQLite database file and its -wal and
// -shm companions. Missing companions count as zero.
func DBTotalSize(dbPath string) (int64, error) {
	var total int64
	for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		info, err := os.Stat(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return 0, err
		}
		total += info.Size()
	}
	return total, nil
}
