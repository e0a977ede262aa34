// Package jobs runs the periodic warmup maintenance loop: the metrics-gated
// daily advance, the emergency auto-pause sweep, the cooldown sweep and the
// nightly engagement tier recalculation.
package jobs

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ignite/warmup-engine/internal/domain"
	"github.com/ignite/warmup-engine/internal/engagement"
	"github.com/ignite/warmup-engine/internal/pkg/distlock"
	"github.com/ignite/warmup-engine/internal/warmup"
)

// Runner drives the periodic jobs from a single ticker. Only one process
// runs the jobs at a time: every tick takes a cross-host lock first, so
// multiple replicas can all run a Runner safely.
type Runner struct {
	controller *warmup.Controller
	engagement *engagement.Service
	lock       distlock.DistLock
	serverID   string
	interval   time.Duration

	// recalcHour is the UTC hour of the nightly tier recalculation.
	recalcHour int

	// Now is the clock used for day-boundary decisions. Tests override it.
	Now func() time.Time

	lastRecalcDate string

	running bool
	mu      sync.Mutex
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewRunner creates a jobs runner. lock may be nil when the deployment has
// a single process.
func NewRunner(
	controller *warmup.Controller,
	engagementSvc *engagement.Service,
	lock distlock.DistLock,
	serverID string,
	interval time.Duration,
	recalcHourUTC int,
) *Runner {
	if serverID == "" {
		serverID = domain.MarketingServerID
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &Runner{
		controller: controller,
		engagement: engagementSvc,
		lock:       lock,
		serverID:   serverID,
		interval:   interval,
		recalcHour: recalcHourUTC,
		Now:        time.Now,
		stopCh:     make(chan struct{}),
	}
}

// Start starts the runner
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("jobs runner already running")
	}
	r.running = true
	r.mu.Unlock()

	log.Printf("[jobs.Runner] starting, tick every %s", r.interval)

	r.wg.Add(1)
	go r.run(ctx)
	return nil
}

// Stop stops the runner and waits for the in-flight tick to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	log.Println("[jobs.Runner] stopping...")
	close(r.stopCh)
	r.wg.Wait()

	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
}

func (r *Runner) run(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick runs one maintenance pass. Exported so operators can trigger a pass
// out of band.
func (r *Runner) Tick(ctx context.Context) {
	if r.lock != nil {
		ok, err := r.lock.Acquire(ctx)
		if err != nil {
			log.Printf("[jobs.Runner] lock acquire failed: %v", err)
			return
		}
		if !ok {
			return // another replica holds the tick
		}
		defer func() {
			if err := r.lock.Release(ctx); err != nil {
				log.Printf("[jobs.Runner] lock release failed: %v", err)
			}
		}()
	}

	r.autoPauseSweep(ctx)
	r.advanceIfDue(ctx)
	r.cooldownSweep(ctx)
	r.recalcIfDue(ctx)
}

// autoPauseSweep pauses the warmup when a critical deliverability threshold
// is breached. It runs before the advance check so a bad day never advances.
func (r *Runner) autoPauseSweep(ctx context.Context) {
	cfg, err := r.controller.Config(ctx, r.serverID)
	if err != nil {
		log.Printf("[jobs.Runner] auto-pause: load config: %v", err)
		return
	}
	if cfg.Status != domain.WarmupWarmingUp {
		return
	}

	decision, err := r.controller.ShouldAutoPause(ctx)
	if err != nil {
		log.Printf("[jobs.Runner] auto-pause: metrics check: %v", err)
		return
	}
	if !decision.ShouldPause {
		return
	}

	if _, err := r.controller.Pause(ctx, r.serverID, decision.Reason); err != nil {
		log.Printf("[jobs.Runner] auto-pause failed: %v", err)
		return
	}
	log.Printf("[jobs.Runner] %s: auto-paused: %s", r.serverID, decision.Reason)
}

// advanceIfDue closes out the warmup day once per UTC day, and only when
// the metrics gate agrees. "Can we progress" and "progress now" stay two
// separate calls so the gate can be inspected through the API.
func (r *Runner) advanceIfDue(ctx context.Context) {
	cfg, err := r.controller.Config(ctx, r.serverID)
	if err != nil {
		log.Printf("[jobs.Runner] advance: load config: %v", err)
		return
	}
	if cfg.Status != domain.WarmupWarmingUp {
		return
	}

	advanced, err := r.advancedToday(ctx)
	if err != nil {
		log.Printf("[jobs.Runner] advance: check last log: %v", err)
		return
	}
	if advanced {
		return
	}

	decision, err := r.controller.Progress(ctx)
	if err != nil {
		log.Printf("[jobs.Runner] advance: metrics gate: %v", err)
		return
	}
	if !decision.CanProgress {
		log.Printf("[jobs.Runner] %s: holding at day %d: %s", r.serverID, cfg.CurrentDay, decision.Reason)
		return
	}

	if _, err := r.controller.AdvanceDay(ctx, r.serverID); err != nil {
		log.Printf("[jobs.Runner] advance failed: %v", err)
	}
}

// advancedToday reports whether a completed-day log row was already written
// during the current UTC day.
func (r *Runner) advancedToday(ctx context.Context) (bool, error) {
	logs, err := r.controller.Logs(ctx, r.serverID, 1)
	if err != nil {
		return false, err
	}
	if len(logs) == 0 {
		return false, nil
	}
	today := r.Now().UTC().Format("2006-01-02")
	return logs[0].Date.UTC().Format("2006-01-02") == today, nil
}

func (r *Runner) cooldownSweep(ctx context.Context) {
	applied, err := r.controller.ApplyCooldownIfNeeded(ctx, r.serverID)
	if err != nil {
		log.Printf("[jobs.Runner] cooldown sweep: %v", err)
		return
	}
	if applied {
		log.Printf("[jobs.Runner] %s: cooldown regression applied", r.serverID)
	}
}

// recalcIfDue runs the full engagement recalculation once per UTC day, on
// the first tick at or after the configured hour.
func (r *Runner) recalcIfDue(ctx context.Context) {
	now := r.Now().UTC()
	if now.Hour() < r.recalcHour {
		return
	}
	date := now.Format("2006-01-02")
	if date == r.lastRecalcDate {
		return
	}

	result, err := r.engagement.RecalculateAll(ctx)
	if err != nil {
		log.Printf("[jobs.Runner] tier recalculation failed: %v", err)
		return
	}
	r.lastRecalcDate = date
	log.Printf("[jobs.Runner] tier recalculation done: %d scanned, %d changed", result.Scanned, result.Changed)
}
