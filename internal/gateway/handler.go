// Package gateway ingests chat-platform events over a websocket feed.
// Message arrivals feed the rate monitors; prefixed command lines are
// admitted to the dispatcher.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"modwatch/internal/commands"
	"modwatch/internal/dispatch"
	"modwatch/pkg/types"
)

const (
	// dedupCapacity covers several minutes of a busy feed before rotation.
	dedupCapacity  = 100000
	dedupFPRate    = 0.001
	eventDeadline  = 10 * time.Second
	maxMessageSize = 64 * 1024
)

// Handler terminates gateway websocket connections and fans events out.
type Handler struct {
	env        *commands.Env
	dispatcher *dispatch.Dispatcher
	dedup      *Dedup
	upgrader   websocket.Upgrader
}

// NewHandler wires the event fan-out.
func NewHandler(env *commands.Env, dispatcher *dispatch.Dispatcher) *Handler {
	return &Handler{
		env:        env,
		dispatcher: dispatcher,
		dedup:      NewDedup(dedupCapacity, dedupFPRate),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the connection and reads events until the feed closes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("gateway upgrade failed: remote=%s err=%v", r.RemoteAddr, err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)

	log.Printf("gateway feed connected: remote=%s", r.RemoteAddr)
	for {
		var event types.Event
		if err := conn.ReadJSON(&event); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("gateway feed closed unexpectedly: remote=%s err=%v", r.RemoteAddr, err)
			}
			return
		}
		h.handleEvent(r.Context(), &event)
	}
}

// handleEvent routes one event. Failures are contained per event; the read
// loop keeps going.
func (h *Handler) handleEvent(parent context.Context, event *types.Event) {
	ctx, cancel := context.WithTimeout(parent, eventDeadline)
	defer cancel()

	var err error
	switch event.Kind {
	case types.EventMessage:
		err = h.handleMessage(ctx, event)
	case types.EventMessageDelete:
		h.env.Menus.Remove(event.MessageID)
	case types.EventInteraction:
		err = h.handleInteraction(ctx, event)
	case types.EventTenantJoin:
		// Warm the tenant's monitor so the first tick has state.
		_, err = h.env.Registry.Get(ctx, event.TenantID)
	case types.EventTenantLeave:
		err = h.env.Registry.Purge(ctx, event.TenantID)
	default:
		log.Printf("unknown gateway event dropped: kind=%s", event.Kind)
	}

	if err != nil {
		log.Printf("gateway event failed: kind=%s tenant=%s err=%v", event.Kind, event.TenantID, err)
	}
}

// handleMessage records the arrival for rate sampling and, when the content
// starts with the tenant's prefix, admits it as a command.
func (h *Handler) handleMessage(ctx context.Context, event *types.Event) error {
	if !types.IsValidID(event.TenantID) || !types.IsValidID(event.ChannelID) {
		return fmt.Errorf("malformed event ids: tenant=%q channel=%q", event.TenantID, event.ChannelID)
	}
	if event.MessageID != "" && h.dedup.Seen(event.MessageID) {
		return nil
	}

	syn, err := h.env.Registry.Get(ctx, event.TenantID)
	if err != nil {
		return err
	}

	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	syn.AddMessage(event.ChannelID, ts)

	prefix, err := h.env.Registry.Prefix(ctx, event.TenantID)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(event.Content, prefix) {
		return nil
	}

	line := strings.TrimPrefix(event.Content, prefix)
	cmd, err := commands.Parse(h.env, event.TenantID, event.ChannelID, event.AuthorID, line)
	if errors.Is(err, commands.ErrUnknownCommand) {
		// Prefixed chatter that is not a command; stay quiet.
		return nil
	}
	if err != nil {
		_, notifyErr := h.env.Platform.Notify(ctx, event.ChannelID, map[string]interface{}{
			"type":    "command_error",
			"content": err.Error(),
		})
		return notifyErr
	}

	// Submit reports denials and interruptions itself.
	_ = h.dispatcher.Submit(ctx, cmd, event.ActorPerms, event.BotPerms)
	return nil
}

// handleInteraction resolves a menu interaction. Content carries the action
// id from the platform component.
func (h *Handler) handleInteraction(ctx context.Context, event *types.Event) error {
	entry, ok := h.env.Menus.Get(event.MessageID)
	if !ok {
		return nil
	}

	switch event.Content {
	case "confirm":
		if entry.Kind != types.MenuConfirmUnwatchAll {
			h.env.Menus.Interact(event.MessageID, event.AuthorID, "")
			return nil
		}
		// Ownership is enforced by the menu registry; a non-owner click
		// neither confirms nor resets the clock.
		if !h.env.Menus.Interact(event.MessageID, event.AuthorID, "") {
			return nil
		}
		h.env.Menus.Remove(event.MessageID)

		released, err := commands.UnwatchAll(ctx, h.env, event.TenantID)
		if err != nil {
			return err
		}
		_ = h.env.Platform.DeleteMessage(ctx, entry.ChannelID, entry.MessageID)
		_, err = h.env.Platform.Notify(ctx, entry.ChannelID, map[string]interface{}{
			"type":    "command_result",
			"content": fmt.Sprintf("Stopped watching %d channel(s).", released),
		})
		return err

	case "cancel":
		if !h.env.Menus.Interact(event.MessageID, event.AuthorID, "") {
			return nil
		}
		h.env.Menus.Remove(event.MessageID)
		return h.env.Platform.DeleteMessage(ctx, entry.ChannelID, entry.MessageID)

	default:
		// Pager navigation and anything else just keeps the menu alive.
		h.env.Menus.Interact(event.MessageID, event.AuthorID, "")
		return nil
	}
}
