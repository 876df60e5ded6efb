package report

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"modwatch/internal/dispatch"
	"modwatch/pkg/types"
)

type mockPlatform struct {
	mu       sync.Mutex
	notified []map[string]interface{}
	fail     bool
}

func (m *mockPlatform) ListWatchableChannels(ctx context.Context, tenantID string) (map[string]struct{}, error) {
	return nil, nil
}

func (m *mockPlatform) SetChannelSlowmode(ctx context.Context, channelID string, seconds int) error {
	return nil
}

func (m *mockPlatform) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return nil
}

func (m *mockPlatform) Notify(ctx context.Context, channelID string, payload map[string]interface{}) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return "", errors.New("network down")
	}
	m.notified = append(m.notified, payload)
	return "m-1", nil
}

func (m *mockPlatform) last(t *testing.T) map[string]interface{} {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.notified) == 0 {
		t.Fatal("no message posted")
	}
	return m.notified[len(m.notified)-1]
}

type fakeCommand struct{ name string }

func (c *fakeCommand) Name() string                            { return c.name }
func (c *fakeCommand) TenantID() string                        { return "t1" }
func (c *fakeCommand) ChannelID() string                       { return "c1" }
func (c *fakeCommand) Requirements() types.CommandRequirements { return types.CommandRequirements{} }
func (c *fakeCommand) Execute(ctx context.Context) (string, error) {
	return "", nil
}

func TestReportSuccess_PostsPayload(t *testing.T) {
	platform := &mockPlatform{}
	r := New(platform)

	r.ReportSuccess(context.Background(), &fakeCommand{name: "watch"}, "Now watching this channel.")

	msg := platform.last(t)
	if msg["type"] != "command_result" || msg["content"] != "Now watching this channel." {
		t.Errorf("unexpected payload: %v", msg)
	}
}

func TestReportSuccess_SkipsEmptyPayload(t *testing.T) {
	platform := &mockPlatform{}
	r := New(platform)

	r.ReportSuccess(context.Background(), &fakeCommand{name: "status"}, "")

	platform.mu.Lock()
	defer platform.mu.Unlock()
	if len(platform.notified) != 0 {
		t.Error("empty payload should not post anything")
	}
}

func TestReportFailure_PermissionNamesBits(t *testing.T) {
	platform := &mockPlatform{}
	r := New(platform)

	err := &dispatch.PermissionError{Command: "watch", MissingActor: []string{"MANAGE_CHANNELS"}}
	r.ReportFailure(context.Background(), &fakeCommand{name: "watch"}, err)

	content := platform.last(t)["content"].(string)
	if !strings.Contains(content, "MANAGE_CHANNELS") || !strings.Contains(content, "You need") {
		t.Errorf("permission message should name the missing bits, got %q", content)
	}

	err = &dispatch.PermissionError{Command: "watch", MissingBot: []string{"MANAGE_CHANNELS"}}
	r.ReportFailure(context.Background(), &fakeCommand{name: "watch"}, err)
	content = platform.last(t)["content"].(string)
	if !strings.Contains(content, "I need") {
		t.Errorf("bot permission message should be first person, got %q", content)
	}
}

func TestReportFailure_BackpressureAsksRetry(t *testing.T) {
	platform := &mockPlatform{}
	r := New(platform)

	err := dispatch.ErrSubmitInterrupted
	r.ReportFailure(context.Background(), &fakeCommand{name: "bounds"}, err)

	content := platform.last(t)["content"].(string)
	if !strings.Contains(content, "try again") {
		t.Errorf("backpressure message should ask to retry, got %q", content)
	}
}

func TestReportFailure_ExecutionShowsOnlyCorrelationID(t *testing.T) {
	platform := &mockPlatform{}
	r := New(platform)

	err := &dispatch.ExecutionError{CorrelationID: "abc-123", Err: errors.New("database exploded")}
	r.ReportFailure(context.Background(), &fakeCommand{name: "bounds"}, err)

	content := platform.last(t)["content"].(string)
	if !strings.Contains(content, "abc-123") {
		t.Errorf("execution failure should carry the reference id, got %q", content)
	}
	if strings.Contains(content, "exploded") {
		t.Errorf("internal error detail must not leak, got %q", content)
	}
}

func TestReport_PostFailureIsSwallowed(t *testing.T) {
	platform := &mockPlatform{fail: true}
	r := New(platform)

	// Must not panic or block.
	r.ReportSuccess(context.Background(), &fakeCommand{name: "watch"}, "ok")
	r.ReportFailure(context.Background(), &fakeCommand{name: "watch"}, errors.New("boom"))
}
