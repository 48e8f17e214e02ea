package sleep

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/agentmem/somnia/internal/core/model"
)

// AutoSleepConfig schedules one sleep cycle per day at the given local time.
type AutoSleepConfig struct {
	Hour    int
	Minute  int
	Target  model.SleepTarget
	Options model.SleepOptions

	// Optional callbacks, invoked after each run. Panics in callbacks are
	// recovered so they cannot kill the schedule.
	OnComplete func(*model.SleepReport)
	OnError    func(error)
}

// Scheduler triggers daily sleep cycles on an Engine. At most one schedule is
// active per Scheduler and the Engine itself serialises runs, so an overdue
// cycle can never overlap the next one.
type Scheduler struct {
	engine *Engine

	mu     sync.Mutex
	timer  *time.Timer
	active bool
	cfg    AutoSleepConfig
}

func NewScheduler(engine *Engine) *Scheduler {
	return &Scheduler{engine: engine}
}

// Start installs the schedule. Fails when one is already active.
func (s *Scheduler) Start(cfg AutoSleepConfig) error {
	if cfg.Hour < 0 || cfg.Hour > 23 {
		return fmt.Errorf("schedule hour must be in 0..23, got %d", cfg.Hour)
	}
	if cfg.Minute < 0 || cfg.Minute > 59 {
		return fmt.Errorf("schedule minute must be in 0..59, got %d", cfg.Minute)
	}
	if cfg.Target.Tiered() == (cfg.Target.GroupID != "") {
		return fmt.Errorf("schedule target requires either group_id or both stm_group_id and ltm_group_id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return fmt.Errorf("auto sleep already scheduled")
	}
	s.active = true
	s.cfg = cfg
	s.scheduleLocked()
	return nil
}

// Stop cancels the schedule. A run already in flight finishes.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.active = false
}

// Active reports whether a schedule is installed, and its configuration.
func (s *Scheduler) Active() (AutoSleepConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg, s.active
}

func (s *Scheduler) scheduleLocked() {
	wait := untilNext(s.engine.Now(), s.cfg.Hour, s.cfg.Minute)
	s.timer = time.AfterFunc(wait, s.run)
}

func (s *Scheduler) run() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	cfg := s.cfg
	s.mu.Unlock()

	report, err := s.engine.Sleep(context.Background(), cfg.Target, cfg.Options)
	if err != nil {
		log.Printf("auto sleep failed: %v", err)
		notifyError(cfg.OnError, err)
	} else {
		notifyComplete(cfg.OnComplete, report)
	}

	// Recompute from the clock after the run so a cycle that ran long still
	// lands on the next wall-clock slot.
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		s.scheduleLocked()
	}
}

func notifyComplete(fn func(*model.SleepReport), report *model.SleepReport) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("auto sleep OnComplete panicked: %v", r)
		}
	}()
	fn(report)
}

func notifyError(fn func(error), err error) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("auto sleep OnError panicked: %v", r)
		}
	}()
	fn(err)
}

// untilNext is the duration from now to the next occurrence of hh:mm, always
// positive: a slot matching the current instant schedules tomorrow.
func untilNext(now time.Time, hour, minute int) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next.Sub(now)
}
