package scheduler

import (
	"context"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"riskplane/model"
)

// Runner refreshes the marketplace catalog and returns the fetched entries.
type Runner func(ctx context.Context) ([]model.CatalogEntry, error)

// Scheduler runs catalog refreshes on interval or daily schedules.
type Scheduler struct {
	mu         sync.Mutex
	schedules  []model.Schedule
	lastRun    map[string]time.Time
	runner     Runner
	onUpdate   func()
	onComplete func([]model.CatalogEntry)
}

func New(runner Runner, initial []model.Schedule, lastRun map[string]time.Time) *Scheduler {
	if lastRun == nil {
		lastRun = make(map[string]time.Time)
	}
	return &Scheduler{
		schedules: append([]model.Schedule(nil), initial...),
		lastRun:   lastRun,
		runner:    runner,
	}
}

// SetOnUpdate registers a hook fired after schedule or last-run state
// changes, used to persist them.
func (s *Scheduler) SetOnUpdate(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onUpdate = fn
}

// SetOnComplete registers a hook fired with the entries of every completed
// refresh.
func (s *Scheduler) SetOnComplete(fn func([]model.CatalogEntry)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onComplete = fn
}

func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		log.Println("[scheduler] started")
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Println("[scheduler] stopped")
				return
			case now := <-ticker.C:
				s.check(ctx, now)
			}
		}
	}()
}

func (s *Scheduler) check(ctx context.Context, now time.Time) {
	s.mu.Lock()
	scheds := make([]model.Schedule, len(s.schedules))
	copy(scheds, s.schedules)
	last := make(map[string]time.Time, len(s.lastRun))
	for k, v := range s.lastRun {
		last[k] = v
	}
	s.mu.Unlock()

	for _, sc := range scheds {
		if !sc.Enabled || sc.ID == "" {
			continue
		}
		if !shouldRun(sc, last[sc.ID], now) {
			continue
		}

		id := sc.ID
		go s.runOnce(ctx, id, now)
	}
}

func (s *Scheduler) runOnce(ctx context.Context, id string, now time.Time) {
	entries, err := s.runner(ctx)
	if err != nil {
		log.Printf("[scheduler] refresh %s failed: %v", id, err)
		return
	}

	s.mu.Lock()
	s.lastRun[id] = now
	onUpdate := s.onUpdate
	onComplete := s.onComplete
	s.mu.Unlock()

	if onUpdate != nil {
		onUpdate()
	}
	if onComplete != nil {
		onComplete(entries)
	}
}

func shouldRun(sc model.Schedule, lastRun time.Time, now time.Time) bool {
	switch sc.Type {
	case model.ScheduleInterval:
		if sc.Every == "" {
			return false
		}
		dur, err := time.ParseDuration(sc.Every)
		if err != nil || dur <= 0 {
			return false
		}
		if lastRun.IsZero() {
			return true
		}
		return now.Sub(lastRun) >= dur

	case model.ScheduleDaily:
		if sc.TimeOfDay == "" {
			return false
		}
		parts := strings.Split(sc.TimeOfDay, ":")
		if len(parts) < 2 {
			return false
		}
		hour, err1 := strconv.Atoi(parts[0])
		min, err2 := strconv.Atoi(parts[1])
		if err1 != nil || err2 != nil || hour < 0 || hour > 23 || min < 0 || min > 59 {
			return false
		}

		loc := now.Location()
		target := time.Date(now.Year(), now.Month(), now.Day(), hour, min, 0, 0, loc)

		if now.Before(target) {
			return false
		}
		if !lastRun.IsZero() && sameDay(lastRun.In(loc), now) {
			return false
		}
		return true
	}

	return false
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// Schedules returns a copy of the configured schedules.
func (s *Scheduler) Schedules() []model.Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Schedule, len(s.schedules))
	copy(out, s.schedules)
	return out
}

// SetSchedules replaces the schedule list.
func (s *Scheduler) SetSchedules(schedules []model.Schedule) {
	s.mu.Lock()
	s.schedules = append([]model.Schedule(nil), schedules...)
	onUpdate := s.onUpdate
	s.mu.Unlock()
	if onUpdate != nil {
		onUpdate()
	}
}

// LastRun returns a copy of the per-schedule last-run map.
func (s *Scheduler) LastRun() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]time.Time, len(s.lastRun))
	for k, v := range s.lastRun {
		out[k] = v
	}
	return out
}
