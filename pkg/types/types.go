package types

import (
	"time"
)

// Platform-wide limits for slowmode values and message-window sizing.
const (
	PlatformMaxSlowmode = 21600 // seconds, the platform's hard cap per channel

	MinCachingSize     = 5
	MaxCachingSize     = 100
	DefaultCachingSize = 25

	MinSensitivity = -10
	MaxSensitivity = 10
)

// DefaultPrefix is the command prefix used by tenants that never set one.
const DefaultPrefix = "!"

// ChannelSettings holds the persisted tuning for a single watched channel.
// MinSlowmode and MaxSlowmode are seconds; Sensitivity is the user-facing
// offset in [-10, 10], converted to a threshold multiplier at decision time.
type ChannelSettings struct {
	ChannelID        string `json:"channel_id" db:"channel_id"`
	TenantID         string `json:"tenant_id" db:"tenant_id"`
	MinSlowmode      int    `json:"min_slowmode" db:"min_slowmode"`
	MaxSlowmode      int    `json:"max_slowmode" db:"max_slowmode"`
	Sensitivity      int    `json:"sensitivity" db:"sensitivity"`
	Monitored        bool   `json:"monitored" db:"monitored"`
	Filtered         bool   `json:"filtered" db:"filtered"`
	ManipulatedCount int64  `json:"manipulated_count" db:"manipulated_count"`
}

// Event kinds accepted by the gateway ingest endpoint.
const (
	EventMessage       = "message"
	EventMessageDelete = "message_delete"
	EventInteraction   = "interaction"
	EventTenantJoin    = "tenant_join"
	EventTenantLeave   = "tenant_leave"
)

// Event is a decoded chat-platform gateway event.
type Event struct {
	Kind       string     `json:"kind"`
	TenantID   string     `json:"tenant_id"`
	ChannelID  string     `json:"channel_id"`
	MessageID  string     `json:"message_id"`
	AuthorID   string     `json:"author_id"`
	Content    string     `json:"content"`
	Timestamp  time.Time  `json:"timestamp"`
	ActorPerms Permission `json:"actor_perms"`
	BotPerms   Permission `json:"bot_perms"`
}

// MenuKind identifies the flavor of an interactive menu prompt.
type MenuKind string

const (
	// MenuConfirmUnwatchAll asks for confirmation before monitoring is
	// dropped for every channel of a tenant.
	MenuConfirmUnwatchAll MenuKind = "confirm_unwatch_all"
	// MenuStatusPager pages through a tenant's watched-channel report.
	MenuStatusPager MenuKind = "status_pager"
)

// Destructive reports whether missing this menu's prompt warrants a
// follow-up notification when the menu times out.
func (k MenuKind) Destructive() bool {
	return k == MenuConfirmUnwatchAll
}
