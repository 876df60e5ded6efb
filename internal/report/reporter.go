// Package report renders command outcomes back into the channel the
// command was issued in.
package report

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"modwatch/internal/dispatch"
	"modwatch/pkg/interfaces"
)

// ChannelReporter implements interfaces.Reporter by posting a message to
// the command's channel. Posting is best effort; a failed report is logged
// and dropped rather than retried.
type ChannelReporter struct {
	platform interfaces.Platform
}

func New(platform interfaces.Platform) *ChannelReporter {
	return &ChannelReporter{platform: platform}
}

func (r *ChannelReporter) ReportSuccess(ctx context.Context, cmd interfaces.Command, payload string) {
	// Commands that render their own output return an empty payload.
	if payload == "" {
		return
	}
	r.post(ctx, cmd, map[string]interface{}{
		"type":    "command_result",
		"content": payload,
	})
}

func (r *ChannelReporter) ReportFailure(ctx context.Context, cmd interfaces.Command, err error) {
	r.post(ctx, cmd, map[string]interface{}{
		"type":    "command_error",
		"content": renderFailure(cmd, err),
	})
}

// renderFailure maps internal error shapes to the moderator-facing text.
// Execution errors show only the correlation id; internals stay in the log.
func renderFailure(cmd interfaces.Command, err error) string {
	var permErr *dispatch.PermissionError
	if errors.As(err, &permErr) {
		if len(permErr.MissingActor) > 0 {
			return fmt.Sprintf("You need %s to run %s.",
				strings.Join(permErr.MissingActor, ", "), cmd.Name())
		}
		return fmt.Sprintf("I need %s to run %s.",
			strings.Join(permErr.MissingBot, ", "), cmd.Name())
	}

	if errors.Is(err, dispatch.ErrSubmitInterrupted) {
		return fmt.Sprintf("Could not queue %s right now, please try again.", cmd.Name())
	}

	var execErr *dispatch.ExecutionError
	if errors.As(err, &execErr) {
		return fmt.Sprintf("Command %s failed (reference %s).", cmd.Name(), execErr.CorrelationID)
	}

	return fmt.Sprintf("Command %s failed: %v", cmd.Name(), err)
}

func (r *ChannelReporter) post(ctx context.Context, cmd interfaces.Command, payload map[string]interface{}) {
	if _, err := r.platform.Notify(ctx, cmd.ChannelID(), payload); err != nil {
		log.Printf("result report failed: command=%s channel=%s err=%v", cmd.Name(), cmd.ChannelID(), err)
	}
}
