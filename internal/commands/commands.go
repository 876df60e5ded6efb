// Package commands implements the administrative commands moderators issue
// in chat to control which channels are watched and how the controller is
// tuned.
package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"modwatch/internal/menu"
	"modwatch/internal/registry"
	"modwatch/pkg/interfaces"
	"modwatch/pkg/types"
)

// Env bundles the collaborators every command needs. One Env is shared by
// all commands; commands carry per-invocation state themselves.
type Env struct {
	Registry *registry.Registry
	Settings interfaces.SettingsStore
	Platform interfaces.Platform
	Menus    *menu.Registry
}

// base carries the invocation context common to all commands.
type base struct {
	env       *Env
	name      string
	tenantID  string
	channelID string
	actorID   string
}

func (b *base) Name() string      { return b.name }
func (b *base) TenantID() string  { return b.tenantID }
func (b *base) ChannelID() string { return b.channelID }

// channelAdmin is the requirement profile for commands that reconfigure a
// single channel. The bot needs manage-channels to apply slowmode.
func channelAdmin() types.CommandRequirements {
	return types.CommandRequirements{
		Actor: types.PermManageChannels,
		Bot:   types.PermSendMessages | types.PermManageChannels,
	}
}

// tenantAdmin is the requirement profile for tenant-wide commands.
func tenantAdmin() types.CommandRequirements {
	return types.CommandRequirements{
		Actor: types.PermManageGuild,
		Bot:   types.PermSendMessages | types.PermManageChannels,
	}
}

// watchCommand starts monitoring the channel it was issued in.
type watchCommand struct {
	base
}

func (c *watchCommand) Requirements() types.CommandRequirements { return channelAdmin() }

func (c *watchCommand) Execute(ctx context.Context) (string, error) {
	syn, err := c.env.Registry.Get(ctx, c.tenantID)
	if err != nil {
		return "", err
	}
	if syn.Watches(c.channelID) {
		return "", ErrAlreadyWatched
	}

	live, err := c.env.Platform.ListWatchableChannels(ctx, c.tenantID)
	if err != nil {
		return "", err
	}
	if _, ok := live[c.channelID]; !ok {
		return "", ErrChannelNotWatchable
	}

	if err := c.env.Settings.SetMonitored(ctx, c.tenantID, c.channelID, true); err != nil {
		return "", err
	}
	syn.AddChannel(c.channelID)
	return "Now watching this channel.", nil
}

// unwatchCommand stops monitoring the channel it was issued in. The applied
// slowmode is reset so the channel is not left throttled.
type unwatchCommand struct {
	base
}

func (c *unwatchCommand) Requirements() types.CommandRequirements { return channelAdmin() }

func (c *unwatchCommand) Execute(ctx context.Context) (string, error) {
	syn, err := c.env.Registry.Get(ctx, c.tenantID)
	if err != nil {
		return "", err
	}
	if !syn.Watches(c.channelID) {
		return "", ErrNotWatched
	}

	if err := c.env.Settings.SetMonitored(ctx, c.tenantID, c.channelID, false); err != nil {
		return "", err
	}
	syn.RemoveChannel(c.channelID)
	if err := c.env.Platform.SetChannelSlowmode(ctx, c.channelID, 0); err != nil {
		return "", fmt.Errorf("channel unwatched but slowmode reset failed: %w", err)
	}
	return "Stopped watching this channel and cleared slowmode.", nil
}

// boundsCommand sets the slowmode floor and ceiling for the channel.
type boundsCommand struct {
	base
	min, max int
}

func (c *boundsCommand) Requirements() types.CommandRequirements { return channelAdmin() }

func (c *boundsCommand) Execute(ctx context.Context) (string, error) {
	if err := types.ValidateSlowmodeBounds(c.min, c.max); err != nil {
		return "", err
	}
	cs, err := c.loadOrInit(ctx)
	if err != nil {
		return "", err
	}
	cs.MinSlowmode = c.min
	cs.MaxSlowmode = c.max
	if err := c.env.Settings.SaveChannelSettings(ctx, cs); err != nil {
		return "", err
	}
	if c.max == 0 {
		return fmt.Sprintf("Slowmode bounds set: min %ds, no ceiling.", c.min), nil
	}
	return fmt.Sprintf("Slowmode bounds set: min %ds, max %ds.", c.min, c.max), nil
}

func (b *base) loadOrInit(ctx context.Context) (*types.ChannelSettings, error) {
	cs, err := b.env.Settings.ChannelSettings(ctx, b.channelID)
	if errors.Is(err, interfaces.ErrChannelNotFound) {
		return &types.ChannelSettings{ChannelID: b.channelID, TenantID: b.tenantID}, nil
	}
	return cs, err
}

// sensitivityCommand sets the controller sensitivity offset for the channel.
type sensitivityCommand struct {
	base
	offset int
}

func (c *sensitivityCommand) Requirements() types.CommandRequirements { return channelAdmin() }

func (c *sensitivityCommand) Execute(ctx context.Context) (string, error) {
	if err := types.ValidateSensitivity(c.offset); err != nil {
		return "", err
	}
	cs, err := c.loadOrInit(ctx)
	if err != nil {
		return "", err
	}
	cs.Sensitivity = c.offset
	if err := c.env.Settings.SaveChannelSettings(ctx, cs); err != nil {
		return "", err
	}
	return fmt.Sprintf("Sensitivity set to %+d.", c.offset), nil
}

// cachesizeCommand resizes the tenant's message rate windows.
type cachesizeCommand struct {
	base
	size int
}

func (c *cachesizeCommand) Requirements() types.CommandRequirements { return tenantAdmin() }

func (c *cachesizeCommand) Execute(ctx context.Context) (string, error) {
	if err := c.env.Registry.SetCacheSize(ctx, c.tenantID, c.size); err != nil {
		return "", err
	}
	return fmt.Sprintf("Message window size set to %d.", c.size), nil
}

// prefixCommand changes the tenant's command prefix.
type prefixCommand struct {
	base
	prefix string
}

func (c *prefixCommand) Requirements() types.CommandRequirements { return tenantAdmin() }

func (c *prefixCommand) Execute(ctx context.Context) (string, error) {
	if err := c.env.Registry.SetPrefix(ctx, c.tenantID, c.prefix); err != nil {
		return "", err
	}
	return fmt.Sprintf("Command prefix changed to %q.", c.prefix), nil
}

// statusCommand posts a summary of the tenant's watched channels as an
// interactive pager owned by the issuing moderator.
type statusCommand struct {
	base
}

func (c *statusCommand) Requirements() types.CommandRequirements { return channelAdmin() }

func (c *statusCommand) Execute(ctx context.Context) (string, error) {
	syn, err := c.env.Registry.Get(ctx, c.tenantID)
	if err != nil {
		return "", err
	}

	channels := syn.Channels()
	sort.Strings(channels)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Monitor %s, %d watched channel(s).\n", syn.State(), len(channels))
	for _, id := range channels {
		cs, err := c.env.Settings.ChannelSettings(ctx, id)
		if err != nil {
			fmt.Fprintf(&sb, "- %s: settings unavailable\n", id)
			continue
		}
		fmt.Fprintf(&sb, "- %s: bounds [%d, %d], sensitivity %+d, adjusted %d time(s)\n",
			id, cs.MinSlowmode, cs.MaxSlowmode, cs.Sensitivity, cs.ManipulatedCount)
	}

	payload := map[string]interface{}{
		"type":    "status",
		"content": sb.String(),
	}
	messageID, err := c.env.Platform.Notify(ctx, c.channelID, payload)
	if err != nil {
		return "", err
	}
	if err := c.env.Menus.Add(types.MenuStatusPager, messageID, c.channelID, c.actorID); err != nil {
		return "", err
	}
	return "", nil
}

// unwatchAllCommand posts a confirmation prompt; the destructive work only
// happens when the owner confirms through the menu.
type unwatchAllCommand struct {
	base
}

func (c *unwatchAllCommand) Requirements() types.CommandRequirements { return tenantAdmin() }

func (c *unwatchAllCommand) Execute(ctx context.Context) (string, error) {
	syn, err := c.env.Registry.Get(ctx, c.tenantID)
	if err != nil {
		return "", err
	}
	n := len(syn.Channels())
	if n == 0 {
		return "", ErrNotWatched
	}

	payload := map[string]interface{}{
		"type":    "confirm_unwatch_all",
		"content": fmt.Sprintf("Stop watching all %d channel(s)? Confirm within the time limit.", n),
	}
	messageID, err := c.env.Platform.Notify(ctx, c.channelID, payload)
	if err != nil {
		return "", err
	}
	if err := c.env.Menus.Add(types.MenuConfirmUnwatchAll, messageID, c.channelID, c.actorID); err != nil {
		return "", err
	}
	return "", nil
}

// UnwatchAll stops watching every channel of a tenant and clears their
// slowmode. Called when a confirm-unwatch-all menu is confirmed. It returns
// how many channels were released.
func UnwatchAll(ctx context.Context, env *Env, tenantID string) (int, error) {
	syn, err := env.Registry.Get(ctx, tenantID)
	if err != nil {
		return 0, err
	}

	released := 0
	for _, id := range syn.Channels() {
		if err := env.Settings.SetMonitored(ctx, tenantID, id, false); err != nil {
			return released, err
		}
		syn.RemoveChannel(id)
		released++
		if err := env.Platform.SetChannelSlowmode(ctx, id, 0); err != nil {
			// The channel is already released; a failed reset is not fatal.
			continue
		}
	}
	return released, nil
}
