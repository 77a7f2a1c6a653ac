// Package scheduler runs drawings automatically on a weekly schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/logger"
	"github.com/robfig/cron/v3"
	"worldlotto/internal/metrics"
	"worldlotto/internal/models"
)

// Drawer performs drawings. It is implemented by services.LotteryService.
type Drawer interface {
	PerformDrawing(ctx context.Context, manual *models.DrawNumbers) (*models.Drawing, error)
	CurrentDrawing(ctx context.Context) (*models.Drawing, error)
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Config describes when drawings happen.
type Config struct {
	Enabled       bool
	Weekday       time.Weekday
	Hour          int
	Minute        int
	Location      *time.Location
	CheckInterval time.Duration
}

// DefaultConfig draws every Friday at 21:00 local time and checks once per minute.
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		Weekday:       time.Friday,
		Hour:          21,
		Minute:        0,
		Location:      time.Local,
		CheckInterval: time.Minute,
	}
}

// Countdown is the time left until the next scheduled drawing.
type Countdown struct {
	Days    int   `json:"days"`
	Hours   int   `json:"hours"`
	Minutes int   `json:"minutes"`
	Seconds int   `json:"seconds"`
	TotalMs int64 `json:"totalMs"`
}

// Status is a snapshot of the scheduler.
type Status struct {
	Enabled           bool         `json:"enabled"`
	NextScheduledTime time.Time    `json:"nextScheduledTime"`
	Weekday           time.Weekday `json:"dayOfWeek"`
	Hour              int          `json:"hour"`
	Minute            int          `json:"minute"`
	Countdown         Countdown    `json:"countdown"`
}

// AutoDrawing fires a drawing when the scheduled time is reached.
type AutoDrawing struct {
	mu       sync.Mutex
	drawer   Drawer
	clock    Clock
	cfg      Config
	schedule cron.Schedule

	enabled bool
	next    time.Time

	baseCtx context.Context
	stop    chan struct{}
	done    chan struct{}
}

// New creates an AutoDrawing. A nil clock uses the system clock.
func New(drawer Drawer, cfg Config, clock Clock) (*AutoDrawing, error) {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = time.Minute
	}
	if clock == nil {
		clock = systemClock{}
	}

	expr := fmt.Sprintf("%d %d * * %d", cfg.Minute, cfg.Hour, int(cfg.Weekday))
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("parse drawing schedule %q: %w", expr, err)
	}

	a := &AutoDrawing{
		drawer:   drawer,
		clock:    clock,
		cfg:      cfg,
		schedule: schedule,
		enabled:  cfg.Enabled,
	}
	a.next = a.NextOccurrence(clock.Now())
	return a, nil
}

// NextOccurrence returns the first scheduled drawing time after now: today if the drawing
// time has not passed yet, otherwise the next matching weekday.
func (a *AutoDrawing) NextOccurrence(now time.Time) time.Time {
	return a.schedule.Next(now.In(a.cfg.Location))
}

// Start runs the periodic check until ctx is cancelled or Stop is called.
// The check loop only runs while the scheduler is enabled. After ctx is cancelled the
// scheduler can be started again with a new context.
func (a *AutoDrawing) Start(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.baseCtx = ctx
	if a.enabled {
		a.next = a.NextOccurrence(a.clock.Now())
		a.startLoopLocked()
		logger.Infof("Next automatic drawing scheduled for %s", a.next.Format(time.RFC1123))
	}
}

// Stop halts the periodic check and waits for it to exit.
func (a *AutoDrawing) Stop() {
	a.mu.Lock()
	done := a.stopLoopLocked()
	a.mu.Unlock()

	if done != nil {
		<-done
	}
}

// SetEnabled arms or disables the scheduler. Enabling recomputes the next drawing time.
// Disabling keeps the last computed time, but it no longer fires.
func (a *AutoDrawing) SetEnabled(enabled bool) {
	a.mu.Lock()
	a.enabled = enabled
	var done chan struct{}
	if enabled {
		a.next = a.NextOccurrence(a.clock.Now())
		if a.baseCtx != nil {
			a.startLoopLocked()
		}
		logger.Infof("Auto-drawing enabled, next drawing at %s", a.next.Format(time.RFC1123))
	} else {
		done = a.stopLoopLocked()
		logger.Infof("Auto-drawing disabled")
	}
	a.mu.Unlock()

	if done != nil {
		<-done
	}
}

// Status returns the scheduler state and the countdown to the next drawing.
func (a *AutoDrawing) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()

	return Status{
		Enabled:           a.enabled,
		NextScheduledTime: a.next,
		Weekday:           a.cfg.Weekday,
		Hour:              a.cfg.Hour,
		Minute:            a.cfg.Minute,
		Countdown:         countdown(a.next, a.clock.Now()),
	}
}

// TriggerManualDrawing performs a drawing immediately without touching the schedule.
// It returns false when there is no active drawing or the drawing fails.
func (a *AutoDrawing) TriggerManualDrawing(ctx context.Context) bool {
	if _, err := a.drawer.CurrentDrawing(ctx); err != nil {
		logger.Warningf("No current drawing available for manual trigger: %v", err)
		return false
	}

	logger.Infof("Manual drawing triggered by admin")
	drawing, err := a.drawer.PerformDrawing(ctx, nil)
	if err != nil {
		logger.Errorf("Manual drawing failed: %v", err)
		return false
	}
	logger.Infof("Manual drawing %s completed: main %v, world %v", drawing.ID, drawing.MainNumbers, drawing.WorldNumbers)
	return true
}

// Tick is the periodic check. It performs a drawing if the scheduler is enabled and the
// scheduled time has been reached, then schedules the following week regardless of the outcome.
// It reports whether a drawing was attempted.
func (a *AutoDrawing) Tick(ctx context.Context) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.clock.Now()
	if !a.enabled || a.next.IsZero() || now.Before(a.next) {
		return false
	}

	logger.Infof("Scheduled drawing time %s reached", a.next.Format(time.RFC1123))
	err := a.fire(ctx)
	metrics.ObserveSchedulerRun(err == nil)
	if err != nil {
		logger.Errorf("Automatic drawing failed: %v", err)
	}

	a.next = a.NextOccurrence(now)
	logger.Infof("Next automatic drawing scheduled for %s", a.next.Format(time.RFC1123))
	return true
}

// fire runs the drawing and turns a panic into an error so the loop keeps going.
func (a *AutoDrawing) fire(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("drawing panicked: %v", r)
		}
	}()

	drawing, err := a.drawer.PerformDrawing(ctx, nil)
	if err != nil {
		return err
	}
	logger.Infof("Automatic drawing %s completed: main %v, world %v", drawing.ID, drawing.MainNumbers, drawing.WorldNumbers)
	return nil
}

func (a *AutoDrawing) startLoopLocked() {
	if a.stop != nil {
		return
	}
	if a.baseCtx.Err() != nil {
		logger.Warningf("Auto-drawing loop not started: %v", a.baseCtx.Err())
		return
	}
	a.stop = make(chan struct{})
	a.done = make(chan struct{})
	go a.run(a.baseCtx, a.stop, a.done)
}

func (a *AutoDrawing) stopLoopLocked() chan struct{} {
	if a.stop == nil {
		return nil
	}
	close(a.stop)
	done := a.done
	a.stop = nil
	a.done = nil
	return done
}

func (a *AutoDrawing) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(a.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if !errors.Is(ctx.Err(), context.Canceled) {
				logger.Warningf("Auto-drawing loop stopped: %v", ctx.Err())
			}
			a.mu.Lock()
			if a.stop == stop {
				a.stop = nil
				a.done = nil
			}
			a.mu.Unlock()
			return
		case <-stop:
			return
		case <-ticker.C:
			a.Tick(ctx)
		}
	}
}

func countdown(next, now time.Time) Countdown {
	if next.IsZero() {
		return Countdown{}
	}
	diff := next.Sub(now)
	if diff <= 0 {
		return Countdown{}
	}

	return Countdown{
		Days:    int(diff / (24 * time.Hour)),
		Hours:   int(diff % (24 * time.Hour) / time.Hour),
		Minutes: int(diff % time.Hour / time.Minute),
		Seconds: int(diff % time.Minute / time.Second),
		TotalMs: diff.Milliseconds(),
	}
}
