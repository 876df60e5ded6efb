package monitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"modwatch/internal/control"
	"modwatch/internal/ratewindow"
	"modwatch/pkg/interfaces"
	"modwatch/pkg/types"
)

// SynapseSource yields the monitors that should be evaluated on a tick.
// Implemented by the tenant registry.
type SynapseSource interface {
	ActiveSynapses() []*Synapse
}

// SchedulerConfig carries the tick timing knobs.
type SchedulerConfig struct {
	// Period between evaluation ticks. A tick always runs to completion
	// before the next one is scheduled.
	Period time.Duration
	// MinSamples is the number of retained timestamps a channel needs
	// before it is evaluated at all.
	MinSamples int
	// ForceFloorAfter is the inactivity span beyond which a channel is
	// pinned back to its minimum slowmode.
	ForceFloorAfter time.Duration
	// ApplyTimeout bounds each fire-and-forget slowmode call.
	ApplyTimeout time.Duration
}

// DefaultSchedulerConfig returns the reference timings.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Period:          8 * time.Second,
		MinSamples:      10,
		ForceFloorAfter: 60 * time.Second,
		ApplyTimeout:    10 * time.Second,
	}
}

// Scheduler drives periodic slowmode re-evaluation across all active
// tenants. Failures are isolated per tenant and per channel; one broken
// channel never stops its siblings from being evaluated.
type Scheduler struct {
	source   SynapseSource
	settings interfaces.SettingsStore
	platform interfaces.Platform
	rules    control.Rules
	cfg      SchedulerConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	applyWG sync.WaitGroup
}

// NewScheduler creates a scheduler. Zero config fields fall back to the
// reference timings.
func NewScheduler(source SynapseSource, settings interfaces.SettingsStore, platform interfaces.Platform, rules control.Rules, cfg SchedulerConfig) *Scheduler {
	def := DefaultSchedulerConfig()
	if cfg.Period <= 0 {
		cfg.Period = def.Period
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = def.MinSamples
	}
	if cfg.ForceFloorAfter <= 0 {
		cfg.ForceFloorAfter = def.ForceFloorAfter
	}
	if cfg.ApplyTimeout <= 0 {
		cfg.ApplyTimeout = def.ApplyTimeout
	}
	return &Scheduler{
		source:   source,
		settings: settings,
		platform: platform,
		rules:    rules,
		cfg:      cfg,
	}
}

// Start begins ticking in the background.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrSchedulerRunning
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go s.run(ctx)
	return nil
}

// Stop halts ticking. An in-flight tick finishes first; outstanding
// fire-and-forget applies are waited for as well.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.running = false
	close(s.stopCh)
	done := s.doneCh
	s.mu.Unlock()

	<-done
	s.applyWG.Wait()
	return nil
}

// run schedules the next tick only after the previous one completed, so
// ticks for one scheduler never overlap.
func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	timer := time.NewTimer(s.cfg.Period)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			s.tick(ctx, time.Now())
			timer.Reset(s.cfg.Period)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// tick evaluates every active tenant once.
func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	for _, syn := range s.source.ActiveSynapses() {
		if err := s.evaluateTenant(ctx, syn, now); err != nil {
			log.Printf("monitor tick failed: tenant=%s err=%v", syn.TenantID(), err)
		}
	}
}

// evaluateTenant runs one evaluation pass over a tenant's channels and
// updates the tenant's activity state from the qualifying count.
func (s *Scheduler) evaluateTenant(ctx context.Context, syn *Synapse, now time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tenant evaluation panic: %v", r)
		}
	}()

	qualifying := 0
	for _, sample := range syn.Sample(now) {
		qualified, chErr := s.evaluateChannel(ctx, syn, sample)
		if chErr != nil {
			log.Printf("channel evaluation skipped: tenant=%s channel=%s err=%v",
				syn.TenantID(), sample.ChannelID, chErr)
			continue
		}
		if qualified {
			qualifying++
		}
	}
	syn.FinishTick(qualifying)
	return nil
}

// evaluateChannel decides and applies a slowmode change for one channel.
// It returns whether the channel produced a real (non-floor) evaluation.
func (s *Scheduler) evaluateChannel(ctx context.Context, syn *Synapse, sample ChannelSample) (bool, error) {
	if sample.Samples < s.cfg.MinSamples {
		log.Printf("channel below sample floor: tenant=%s channel=%s samples=%d need=%d",
			syn.TenantID(), sample.ChannelID, sample.Samples, s.cfg.MinSamples)
		return false, nil
	}

	settings, err := s.settings.ChannelSettings(ctx, sample.ChannelID)
	if err != nil {
		if errors.Is(err, interfaces.ErrChannelNotFound) {
			// Row vanished under us; the registry will prune the channel on
			// its next rebuild.
			return false, nil
		}
		return false, fmt.Errorf("load settings: %w", err)
	}

	idle := sample.SinceOldest != ratewindow.UnknownAge && sample.SinceOldest > s.cfg.ForceFloorAfter
	var target int
	if idle {
		target = control.Clamp(sample.Slowmode, control.ForceFloor,
			settings.MinSlowmode, settings.MaxSlowmode, types.PlatformMaxSlowmode)
	} else {
		delta := s.rules.Decide(sample.AverageDelayMs,
			float64(sample.SinceOldest)/float64(time.Millisecond),
			control.Multiplier(settings.Sensitivity))
		target = control.Clamp(sample.Slowmode, delta,
			settings.MinSlowmode, settings.MaxSlowmode, types.PlatformMaxSlowmode)
	}

	if target != sample.Slowmode {
		if sample.Slowmode == settings.MinSlowmode && target > settings.MinSlowmode {
			if err := s.settings.IncrementManipulated(ctx, sample.ChannelID); err != nil {
				log.Printf("manipulated counter update failed: channel=%s err=%v", sample.ChannelID, err)
			}
		}
		syn.RecordSlowmode(sample.ChannelID, target)
		s.apply(sample.ChannelID, target)
	}

	return !idle, nil
}

// apply fires the platform call in the background. Failures are logged,
// never retried; the next tick supersedes the value anyway.
func (s *Scheduler) apply(channelID string, seconds int) {
	s.applyWG.Add(1)
	go func() {
		defer s.applyWG.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ApplyTimeout)
		defer cancel()

		if err := s.platform.SetChannelSlowmode(ctx, channelID, seconds); err != nil {
			log.Printf("slowmode apply failed: channel=%s value=%d err=%v", channelID, seconds, err)
			return
		}
		log.Printf("slowmode applied: channel=%s value=%d", channelID, seconds)
	}()
}
