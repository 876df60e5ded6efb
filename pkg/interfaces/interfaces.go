// Package interfaces defines the contracts between the control loop and
// its external collaborators: persistence, the chat platform, and result
// reporting. Components depend on these interfaces so tests can substitute
// mocks and deployments can swap backends.
package interfaces

import (
	"context"

	"modwatch/pkg/types"
)

// SettingsStore is the tabular store for per-channel moderation settings.
type SettingsStore interface {
	// MonitoredChannels returns the ids of a tenant's channels whose
	// monitored flag is set.
	MonitoredChannels(ctx context.Context, tenantID string) ([]string, error)

	// ChannelSettings returns the settings row for a channel, or
	// ErrChannelNotFound if none exists.
	ChannelSettings(ctx context.Context, channelID string) (*types.ChannelSettings, error)

	// SaveChannelSettings inserts or replaces a channel's settings row.
	SaveChannelSettings(ctx context.Context, settings *types.ChannelSettings) error

	// SetMonitored flips a channel's monitored flag, creating the row with
	// defaults when it does not exist yet.
	SetMonitored(ctx context.Context, tenantID, channelID string, monitored bool) error

	// IncrementManipulated bumps a channel's manipulated counter by one.
	IncrementManipulated(ctx context.Context, channelID string) error

	// DeleteChannel removes a channel's row, typically because the channel
	// no longer exists on the platform.
	DeleteChannel(ctx context.Context, tenantID, channelID string) error

	// DeleteTenant removes every row belonging to a tenant.
	DeleteTenant(ctx context.Context, tenantID string) error

	HealthCheck(ctx context.Context) error
	Close() error
}

// TenantStateStore is the key/value store for tenant-scoped state that is
// cheap to lose: command prefix and message-window caching size. Lookups
// for tenants that never stored a value return ErrNotFound; callers fall
// back to defaults.
type TenantStateStore interface {
	Prefix(ctx context.Context, tenantID string) (string, error)
	SetPrefix(ctx context.Context, tenantID, prefix string) error

	CachingSize(ctx context.Context, tenantID string) (int, error)
	SetCachingSize(ctx context.Context, tenantID string, size int) error

	// DeleteTenant drops all keys for a tenant.
	DeleteTenant(ctx context.Context, tenantID string) error

	Close() error
}

// Platform is the narrow view of the chat platform the control loop needs.
type Platform interface {
	// ListWatchableChannels returns the ids of channels that currently
	// exist on the platform for a tenant and can carry a slowmode.
	ListWatchableChannels(ctx context.Context, tenantID string) (map[string]struct{}, error)

	// SetChannelSlowmode applies a slowmode value in seconds.
	SetChannelSlowmode(ctx context.Context, channelID string, seconds int) error

	// DeleteMessage removes a message, best effort.
	DeleteMessage(ctx context.Context, channelID, messageID string) error

	// Notify posts a payload to a channel and returns the id of the
	// created message.
	Notify(ctx context.Context, channelID string, payload map[string]interface{}) (string, error)
}

// Command is an admitted unit of administrative work. Implementations are
// executed exactly once by a dispatcher worker.
type Command interface {
	Name() string
	TenantID() string
	ChannelID() string
	Requirements() types.CommandRequirements

	// Execute runs the command and returns a human-readable payload for
	// the success report.
	Execute(ctx context.Context) (string, error)
}

// Reporter receives command outcomes. Rendering is outside the control
// loop; implementations decide how (or whether) users see results.
type Reporter interface {
	ReportSuccess(ctx context.Context, cmd Command, payload string)
	ReportFailure(ctx context.Context, cmd Command, err error)
}
