package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"modwatch/pkg/interfaces"
	"modwatch/pkg/types"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS channel_settings (
	channel_id        TEXT PRIMARY KEY,
	tenant_id         TEXT NOT NULL,
	min_slowmode      INTEGER NOT NULL DEFAULT 0,
	max_slowmode      INTEGER NOT NULL DEFAULT 0,
	sensitivity       INTEGER NOT NULL DEFAULT 0,
	monitored         BOOLEAN NOT NULL DEFAULT FALSE,
	filtered          BOOLEAN NOT NULL DEFAULT FALSE,
	manipulated_count BIGINT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_channel_settings_tenant
	ON channel_settings(tenant_id, monitored);
`

// PostgresStore implements interfaces.SettingsStore on Postgres, for
// deployments where several bot nodes share one settings database.
// Postgres takes concurrent writers natively, so no single-writer funnel.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects with a pgx connection string.
func NewPostgresStore(connString string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open settings database: %w", err)
	}
	if _, err := db.Exec(postgresSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to bootstrap schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) MonitoredChannels(ctx context.Context, tenantID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT channel_id FROM channel_settings WHERE tenant_id = $1 AND monitored`, tenantID)
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

func (s *PostgresStore) ChannelSettings(ctx context.Context, channelID string) (*types.ChannelSettings, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT channel_id, tenant_id, min_slowmode, max_slowmode, sensitivity,
		        monitored, filtered, manipulated_count
		 FROM channel_settings WHERE channel_id = $1`, channelID)

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

func (s *PostgresStore) SaveChannelSettings(ctx context.Context, cs *types.ChannelSettings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO channel_settings
			(channel_id, tenant_id, min_slowmode, max_slowmode, sensitivity,
			 monitored, filtered, manipulated_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (channel_id) DO UPDATE SET
			tenant_id = EXCLUDED.tenant_id,
			min_slowmode = EXCLUDED.min_slowmode,
			max_slowmode = EXCLUDED.max_slowmode,
			sensitivity = EXCLUDED.sensitivity,
			monitored = EXCLUDED.monitored,
			filtered = EXCLUDED.filtered`,
		cs.ChannelID, cs.TenantID, cs.MinSlowmode, cs.MaxSlowmode,
		cs.Sensitivity, cs.Monitored, cs.Filtered, cs.ManipulatedCount)
	return err
}

func (s *PostgresStore) SetMonitored(ctx context.Context, tenantID, channelID string, monitored bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO channel_settings (channel_id, tenant_id, monitored)
		VALUES ($1, $2, $3)
		ON CONFLICT (channel_id) DO UPDATE SET monitored = EXCLUDED.monitored`,
		channelID, tenantID, monitored)
	return err
}

func (s *PostgresStore) IncrementManipulated(ctx context.Context, channelID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE channel_settings SET manipulated_count = manipulated_count + 1
		 WHERE channel_id = $1`, channelID)
	return err
}

func (s *PostgresStore) DeleteChannel(ctx context.Context, tenantID, channelID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM channel_settings WHERE tenant_id = $1 AND channel_id = $2`,
		tenantID, channelID)
	return err
}

func (s *PostgresStore) DeleteTenant(ctx context.Context, tenantID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM channel_settings WHERE tenant_id = $1`, tenantID)
	return err
}

func (s *PostgresStore) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
