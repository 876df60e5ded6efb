package gateway

import (
	"context"
	"sync"
	"testing"
	"time"

	"modwatch/internal/commands"
	"modwatch/internal/dispatch"
	"modwatch/internal/menu"
	"modwatch/internal/registry"
	"modwatch/pkg/interfaces"
	"modwatch/pkg/types"
)

type mockSettings struct {
	mu   sync.Mutex
	rows map[string]*types.ChannelSettings
}

func newMockSettings() *mockSettings {
	return &mockSettings{rows: make(map[string]*types.ChannelSettings)}
}

func (m *mockSettings) MonitoredChannels(ctx context.Context, tenantID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, cs := range m.rows {
		if cs.TenantID == tenantID && cs.Monitored {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *mockSettings) ChannelSettings(ctx context.Context, channelID string) (*types.ChannelSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cs, ok := m.rows[channelID]
	if !ok {
		return nil, interfaces.ErrChannelNotFound
	}
	out := *cs
	return &out, nil
}

func (m *mockSettings) SaveChannelSettings(ctx context.Context, cs *types.ChannelSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *cs
	m.rows[cs.ChannelID] = &stored
	return nil
}

func (m *mockSettings) SetMonitored(ctx context.Context, tenantID, channelID string, monitored bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cs, ok := m.rows[channelID]
	if !ok {
		cs = &types.ChannelSettings{ChannelID: channelID, TenantID: tenantID}
		m.rows[channelID] = cs
	}
	cs.Monitored = monitored
	return nil
}

func (m *mockSettings) IncrementManipulated(ctx context.Context, channelID string) error { return nil }

func (m *mockSettings) DeleteChannel(ctx context.Context, tenantID, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, channelID)
	return nil
}

func (m *mockSettings) DeleteTenant(ctx context.Context, tenantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, cs := range m.rows {
		if cs.TenantID == tenantID {
			delete(m.rows, id)
		}
	}
	return nil
}

func (m *mockSettings) HealthCheck(ctx context.Context) error { return nil }
func (m *mockSettings) Close() error                          { return nil }

type mockState struct {
	mu       sync.Mutex
	prefixes map[string]string
}

func newMockState() *mockState {
	return &mockState{prefixes: make(map[string]string)}
}

func (m *mockState) Prefix(ctx context.Context, tenantID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prefixes[tenantID]
	if !ok {
		return "", interfaces.ErrNotFound
	}
	return p, nil
}

func (m *mockState) SetPrefix(ctx context.Context, tenantID, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefixes[tenantID] = prefix
	return nil
}

func (m *mockState) CachingSize(ctx context.Context, tenantID string) (int, error) {
	return 0, interfaces.ErrNotFound
}

func (m *mockState) SetCachingSize(ctx context.Context, tenantID string, size int) error { return nil }
func (m *mockState) DeleteTenant(ctx context.Context, tenantID string) error             { return nil }
func (m *mockState) Close() error                                                        { return nil }

type mockPlatform struct {
	mu        sync.Mutex
	live      map[string]struct{}
	slowmodes map[string]int
	notified  []map[string]interface{}
	deleted   []string
}

func newMockPlatform(liveChannels ...string) *mockPlatform {
	live := make(map[string]struct{})
	for _, id := range liveChannels {
		live[id] = struct{}{}
	}
	return &mockPlatform{live: live, slowmodes: make(map[string]int)}
}

func (m *mockPlatform) ListWatchableChannels(ctx context.Context, tenantID string) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]struct{}, len(m.live))
	for id := range m.live {
		out[id] = struct{}{}
	}
	return out, nil
}

func (m *mockPlatform) SetChannelSlowmode(ctx context.Context, channelID string, seconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slowmodes[channelID] = seconds
	return nil
}

func (m *mockPlatform) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, messageID)
	return nil
}

func (m *mockPlatform) Notify(ctx context.Context, channelID string, payload map[string]interface{}) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notified = append(m.notified, payload)
	return "m-notify", nil
}

type mockReporter struct {
	mu        sync.Mutex
	successes []string
	failures  []error
}

func (m *mockReporter) ReportSuccess(ctx context.Context, cmd interfaces.Command, payload string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.successes = append(m.successes, cmd.Name())
}

func (m *mockReporter) ReportFailure(ctx context.Context, cmd interfaces.Command, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, err)
}

func (m *mockReporter) successCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.successes)
}

type fixture struct {
	handler  *Handler
	env      *commands.Env
	settings *mockSettings
	platform *mockPlatform
	reporter *mockReporter
}

func newFixture(t *testing.T, liveChannels ...string) *fixture {
	t.Helper()
	settings := newMockSettings()
	platform := newMockPlatform(liveChannels...)
	reg := registry.New(settings, newMockState(), platform)
	env := &commands.Env{
		Registry: reg,
		Settings: settings,
		Platform: platform,
		Menus:    menu.New(platform, time.Hour),
	}

	reporter := &mockReporter{}
	dispatcher := dispatch.New(10, 2, reporter)
	if err := dispatcher.Start(context.Background()); err != nil {
		t.Fatalf("dispatcher start failed: %v", err)
	}
	t.Cleanup(func() { _ = dispatcher.Stop() })

	return &fixture{
		handler:  NewHandler(env, dispatcher),
		env:      env,
		settings: settings,
		platform: platform,
		reporter: reporter,
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func messageEvent(msgID, content string) *types.Event {
	return &types.Event{
		Kind:       types.EventMessage,
		TenantID:   "t1",
		ChannelID:  "c1",
		MessageID:  msgID,
		AuthorID:   "u1",
		Content:    content,
		Timestamp:  time.Now(),
		ActorPerms: types.PermAdministrator,
		BotPerms:   types.PermAdministrator,
	}
}

func TestHandleMessage_FeedsRateWindow(t *testing.T) {
	f := newFixture(t, "c1")
	ctx := context.Background()

	_ = f.settings.SetMonitored(ctx, "t1", "c1", true)

	for i := 0; i < 3; i++ {
		f.handler.handleEvent(ctx, messageEvent("", "hello"))
	}

	syn, err := f.env.Registry.Get(ctx, "t1")
	if err != nil {
		t.Fatalf("registry get failed: %v", err)
	}
	samples := syn.Sample(time.Now())
	if len(samples) != 1 || samples[0].Samples != 3 {
		t.Errorf("expected 3 recorded arrivals, got %+v", samples)
	}
}

func TestHandleMessage_DuplicateDropped(t *testing.T) {
	f := newFixture(t, "c1")
	ctx := context.Background()

	_ = f.settings.SetMonitored(ctx, "t1", "c1", true)

	f.handler.handleEvent(ctx, messageEvent("m1", "hello"))
	f.handler.handleEvent(ctx, messageEvent("m1", "hello"))

	syn, _ := f.env.Registry.Get(ctx, "t1")
	samples := syn.Sample(time.Now())
	if samples[0].Samples != 1 {
		t.Errorf("redelivered event must not count twice, got %d", samples[0].Samples)
	}
}

func TestHandleMessage_PrefixedCommandDispatched(t *testing.T) {
	f := newFixture(t, "c1")
	ctx := context.Background()

	f.handler.handleEvent(ctx, messageEvent("m1", "!watch"))

	waitFor(t, time.Second, func() bool { return f.reporter.successCount() == 1 })
	if !f.settings.monitoredChannel("c1") {
		t.Error("dispatched watch command should have run")
	}
}

func (m *mockSettings) monitoredChannel(channelID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	cs, ok := m.rows[channelID]
	return ok && cs.Monitored
}

func TestHandleMessage_CustomPrefixRespected(t *testing.T) {
	f := newFixture(t, "c1")
	ctx := context.Background()

	if err := f.env.Registry.SetPrefix(ctx, "t1", "?"); err != nil {
		t.Fatalf("set prefix failed: %v", err)
	}

	// Old prefix is plain chatter now.
	f.handler.handleEvent(ctx, messageEvent("m1", "!watch"))
	time.Sleep(50 * time.Millisecond)
	if f.settings.monitoredChannel("c1") {
		t.Fatal("old prefix must not trigger commands")
	}

	f.handler.handleEvent(ctx, messageEvent("m2", "?watch"))
	waitFor(t, time.Second, func() bool { return f.settings.monitoredChannel("c1") })
}

func TestHandleMessage_UnknownCommandSilent(t *testing.T) {
	f := newFixture(t, "c1")
	ctx := context.Background()

	f.handler.handleEvent(ctx, messageEvent("m1", "!frobnicate"))

	time.Sleep(50 * time.Millisecond)
	f.platform.mu.Lock()
	defer f.platform.mu.Unlock()
	if len(f.platform.notified) != 0 {
		t.Error("unknown commands must not produce a reply")
	}
}

func TestHandleMessage_BadArgumentsAnswered(t *testing.T) {
	f := newFixture(t, "c1")
	ctx := context.Background()

	f.handler.handleEvent(ctx, messageEvent("m1", "!bounds nope"))

	f.platform.mu.Lock()
	defer f.platform.mu.Unlock()
	if len(f.platform.notified) != 1 {
		t.Fatalf("malformed arguments should produce one reply, got %d", len(f.platform.notified))
	}
}

func TestHandleEvent_TenantLeavePurges(t *testing.T) {
	f := newFixture(t, "c1")
	ctx := context.Background()

	_ = f.settings.SetMonitored(ctx, "t1", "c1", true)
	if _, err := f.env.Registry.Get(ctx, "t1"); err != nil {
		t.Fatalf("registry get failed: %v", err)
	}

	f.handler.handleEvent(ctx, &types.Event{Kind: types.EventTenantLeave, TenantID: "t1"})

	if f.env.Registry.Len() != 0 {
		t.Error("tenant leave should evict the monitor")
	}
	if f.settings.monitoredChannel("c1") {
		t.Error("tenant leave should delete persisted rows")
	}
}

func TestHandleEvent_MessageDeleteDropsMenu(t *testing.T) {
	f := newFixture(t, "c1")
	ctx := context.Background()

	_ = f.env.Menus.Add(types.MenuStatusPager, "m1", "c1", "u1")
	f.handler.handleEvent(ctx, &types.Event{Kind: types.EventMessageDelete, TenantID: "t1", MessageID: "m1"})

	if _, ok := f.env.Menus.Get("m1"); ok {
		t.Error("deleting the prompt message should drop its menu")
	}
}

func TestHandleInteraction_ConfirmUnwatchAll(t *testing.T) {
	f := newFixture(t, "c1", "c2")
	ctx := context.Background()

	_ = f.settings.SetMonitored(ctx, "t1", "c1", true)
	_ = f.settings.SetMonitored(ctx, "t1", "c2", true)
	_ = f.env.Menus.Add(types.MenuConfirmUnwatchAll, "m1", "c1", "u1")

	// A non-owner confirm changes nothing.
	f.handler.handleEvent(ctx, &types.Event{
		Kind: types.EventInteraction, TenantID: "t1", MessageID: "m1",
		AuthorID: "intruder", Content: "confirm",
	})
	if !f.settings.monitoredChannel("c1") {
		t.Fatal("non-owner confirm must not release channels")
	}

	f.handler.handleEvent(ctx, &types.Event{
		Kind: types.EventInteraction, TenantID: "t1", MessageID: "m1",
		AuthorID: "u1", Content: "confirm",
	})

	if f.settings.monitoredChannel("c1") || f.settings.monitoredChannel("c2") {
		t.Error("owner confirm should release every channel")
	}
	if _, ok := f.env.Menus.Get("m1"); ok {
		t.Error("confirmed menu should be removed")
	}
}

func TestHandleInteraction_CancelRemovesPrompt(t *testing.T) {
	f := newFixture(t, "c1")
	ctx := context.Background()

	_ = f.settings.SetMonitored(ctx, "t1", "c1", true)
	_ = f.env.Menus.Add(types.MenuConfirmUnwatchAll, "m1", "c1", "u1")

	f.handler.handleEvent(ctx, &types.Event{
		Kind: types.EventInteraction, TenantID: "t1", MessageID: "m1",
		AuthorID: "u1", Content: "cancel",
	})

	if !f.settings.monitoredChannel("c1") {
		t.Error("cancel must not release channels")
	}
	if _, ok := f.env.Menus.Get("m1"); ok {
		t.Error("canceled menu should be removed")
	}
	f.platform.mu.Lock()
	defer f.platform.mu.Unlock()
	if len(f.platform.deleted) != 1 {
		t.Errorf("cancel should delete the prompt message, deleted=%v", f.platform.deleted)
	}
}
