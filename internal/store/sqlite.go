// Package store provides the persistence backends behind the
// interfaces.SettingsStore and interfaces.TenantStateStore contracts:
// SQLite (default) or Postgres for channel settings, memory or Redis for
// volatile tenant state.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"modwatch/pkg/interfaces"
	"modwatch/pkg/types"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS channel_settings (
	channel_id        TEXT PRIMARY KEY,
	tenant_id         TEXT NOT NULL,
	min_slowmode      INTEGER NOT NULL DEFAULT 0,
	max_slowmode      INTEGER NOT NULL DEFAULT 0,
	sensitivity       INTEGER NOT NULL DEFAULT 0,
	monitored         INTEGER NOT NULL DEFAULT 0,
	filtered          INTEGER NOT NULL DEFAULT 0,
	manipulated_count INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_channel_settings_tenant
	ON channel_settings(tenant_id, monitored);
`

// writeOperation queues one write for the single-writer goroutine.
type writeOperation struct {
	operation func(db *sql.DB) error
	result    chan error
}

// SQLiteStore implements interfaces.SettingsStore on a local SQLite file.
// All writes funnel through one goroutine; SQLite handles concurrent reads
// fine but contends badly on concurrent writers.
type SQLiteStore struct {
	db           *sql.DB
	writeChannel chan writeOperation
	shutdown     chan struct{}
	wg           sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore opens (creating if needed) the settings database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open settings database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to bootstrap schema: %w", err)
	}

	s := &SQLiteStore{
		db:           db,
		writeChannel: make(chan writeOperation, 100),
		shutdown:     make(chan struct{}),
	}
	s.wg.Add(1)
	go s.writeLoop()
	return s, nil
}

// writeLoop serializes all writes. A failed write is retried once after a
// short pause before the error is handed back.
func (s *SQLiteStore) writeLoop() {
	defer s.wg.Done()

	for {
		select {
		case op := <-s.writeChannel:
			err := op.operation(s.db)
			if err != nil {
				log.Printf("settings write failed, retrying: err=%v", err)
				time.Sleep(time.Second)
				err = op.operation(s.db)
			}
			op.result <- err
		case <-s.shutdown:
			return
		}
	}
}

func (s *SQLiteStore) executeWrite(ctx context.Context, operation func(db *sql.DB) error) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrStoreClosed
	}
	s.mu.RUnlock()

	result := make(chan error, 1)
	select {
	case s.writeChannel <- writeOperation{operation: operation, result: result}:
		select {
		case err := <-result:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	case <-ctx.Done():
		return ctx.Err()
	case <-s.shutdown:
		return ErrStoreClosed
	}
}

// MonitoredChannels returns the channel ids a tenant currently monitors.
func (s *SQLiteStore) MonitoredChannels(ctx context.Context, tenantID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT channel_id FROM channel_settings WHERE tenant_id = ? AND monitored = 1`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list monitored channels: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ChannelSettings loads one channel's settings row.
func (s *SQLiteStore) ChannelSettings(ctx context.Context, channelID string) (*types.ChannelSettings, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT channel_id, tenant_id, min_slowmode, max_slowmode, sensitivity,
		        monitored, filtered, manipulated_count
		 FROM channel_settings WHERE channel_id = ?`, channelID)

	var cs types.ChannelSettings
	err := row.Scan(&cs.ChannelID, &cs.TenantID, &cs.MinSlowmode, &cs.MaxSlowmode,
		&cs.Sensitivity, &cs.Monitored, &cs.Filtered, &cs.ManipulatedCount)
	if err == sql.ErrNoRows {
		return nil, interfaces.ErrChannelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load channel settings: %w", err)
	}
	return &cs, nil
}

// SaveChannelSettings upserts a channel's settings row.
func (s *SQLiteStore) SaveChannelSettings(ctx context.Context, cs *types.ChannelSettings) error {
	return s.executeWrite(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO channel_settings
				(channel_id, tenant_id, min_slowmode, max_slowmode, sensitivity,
				 monitored, filtered, manipulated_count)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(channel_id) DO UPDATE SET
				tenant_id = excluded.tenant_id,
				min_slowmode = excluded.min_slowmode,
				max_slowmode = excluded.max_slowmode,
				sensitivity = excluded.sensitivity,
				monitored = excluded.monitored,
				filtered = excluded.filtered`,
			cs.ChannelID, cs.TenantID, cs.MinSlowmode, cs.MaxSlowmode,
			cs.Sensitivity, cs.Monitored, cs.Filtered, cs.ManipulatedCount)
		return err
	})
}

// SetMonitored flips a channel's monitored flag, creating the row when
// missing.
func (s *SQLiteStore) SetMonitored(ctx context.Context, tenantID, channelID string, monitored bool) error {
	return s.executeWrite(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO channel_settings (channel_id, tenant_id, monitored)
			VALUES (?, ?, ?)
			ON CONFLICT(channel_id) DO UPDATE SET monitored = excluded.monitored`,
			channelID, tenantID, monitored)
		return err
	})
}

// IncrementManipulated bumps the reporting counter.
func (s *SQLiteStore) IncrementManipulated(ctx context.Context, channelID string) error {
	return s.executeWrite(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`UPDATE channel_settings SET manipulated_count = manipulated_count + 1
			 WHERE channel_id = ?`, channelID)
		return err
	})
}

// DeleteChannel removes a channel's row.
func (s *SQLiteStore) DeleteChannel(ctx context.Context, tenantID, channelID string) error {
	return s.executeWrite(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`DELETE FROM channel_settings WHERE tenant_id = ? AND channel_id = ?`,
			tenantID, channelID)
		return err
	})
}

// DeleteTenant removes every row for a tenant.
func (s *SQLiteStore) DeleteTenant(ctx context.Context, tenantID string) error {
	return s.executeWrite(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`DELETE FROM channel_settings WHERE tenant_id = ?`, tenantID)
		return err
	})
}

// HealthCheck pings the database.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close stops the writer goroutine and closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.shutdown)
	s.mu.Unlock()

	s.wg.Wait()
	return s.db.Close()
}
