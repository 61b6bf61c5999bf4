package job

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"crypto-herald/internal/metrics"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type clock struct {
	hour   int
	minute int
}

// Schedule is either a list of wall-clock times in a location or a fixed
// interval.
type Schedule struct {
	loc      *time.Location
	clocks   []clock
	interval time.Duration
}

// DailyAt fires once per listed "HH:MM" time in loc.
func DailyAt(loc *time.Location, times ...string) (Schedule, error) {
	if loc == nil {
		loc = time.UTC
	}
	s := Schedule{loc: loc}
	for _, t := range times {
		parsed, err := time.Parse("15:04", strings.TrimSpace(t))
		if err != nil {
			return Schedule{}, fmt.Errorf("invalid time of day %q: %w", t, err)
		}
		s.clocks = append(s.clocks, clock{hour: parsed.Hour(), minute: parsed.Minute()})
	}
	if len(s.clocks) == 0 {
		return Schedule{}, fmt.Errorf("no time of day given")
	}
	sort.Slice(s.clocks, func(i, j int) bool {
		if s.clocks[i].hour != s.clocks[j].hour {
			return s.clocks[i].hour < s.clocks[j].hour
		}
		return s.clocks[i].minute < s.clocks[j].minute
	})
	return s, nil
}

// Every fires on activation, then every d.
func Every(d time.Duration) Schedule {
	return Schedule{interval: d}
}

// First returns the first fire time for a task activated at now. Interval
// schedules fire immediately; daily schedules wait for their next slot.
func (s Schedule) First(now time.Time) time.Time {
	if s.interval > 0 || len(s.clocks) == 0 {
		return now
	}
	return s.Next(now)
}

// Next returns the first fire time strictly after now. Occurrences that
// passed while nothing was running are not replayed.
func (s Schedule) Next(now time.Time) time.Time {
	if s.interval > 0 || len(s.clocks) == 0 {
		return now.Add(s.interval)
	}
	local := now.In(s.loc)
	for day := 0; day < 2; day++ {
		y, m, d := local.AddDate(0, 0, day).Date()
		for _, c := range s.clocks {
			at := time.Date(y, m, d, c.hour, c.minute, 0, 0, s.loc)
			if at.After(now) {
				return at
			}
		}
	}
	y, m, d := local.AddDate(0, 0, 2).Date()
	return time.Date(y, m, d, s.clocks[0].hour, s.clocks[0].minute, 0, 0, s.loc)
}

func (s Schedule) String() string {
	if s.interval > 0 || len(s.clocks) == 0 {
		return "every " + s.interval.String()
	}
	parts := make([]string, len(s.clocks))
	for i, c := range s.clocks {
		parts[i] = fmt.Sprintf("%02d:%02d", c.hour, c.minute)
	}
	return "daily at " + strings.Join(parts, ",") + " " + s.loc.String()
}

type State string

const (
	StateIdle    State = "IDLE"
	StateRunning State = "RUNNING"
)

// Task is one scheduled cycle. Timeout bounds a single run when set.
type Task struct {
	Name     string
	Schedule Schedule
	Timeout  time.Duration
	Run      func(ctx context.Context) error
}

type TaskStatus struct {
	Name     string    `json:"name"`
	Cadence  string    `json:"cadence"`
	State    State     `json:"state"`
	Next     time.Time `json:"next,omitempty"`
	Last     time.Time `json:"last,omitempty"`
	Runs     int       `json:"runs"`
	Failures int       `json:"failures"`
	LastErr  string    `json:"last_error,omitempty"`
}

type entry struct {
	task Task

	mu       sync.Mutex
	state    State
	next     time.Time
	last     time.Time
	runs     int
	failures int
	lastErr  string
}

func (e *entry) status() TaskStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return TaskStatus{
		Name:     e.task.Name,
		Cadence:  e.task.Schedule.String(),
		State:    e.state,
		Next:     e.next,
		Last:     e.last,
		Runs:     e.runs,
		Failures: e.failures,
		LastErr:  e.lastErr,
	}
}

// Scheduler runs each task in its own loop once the ready gate opens. A
// failing or panicking run is recorded and the task keeps its cadence.
type Scheduler struct {
	tracer  trace.Tracer
	metrics *metrics.Metrics
	now     func() time.Time

	mu    sync.Mutex
	tasks []*entry
	wg    sync.WaitGroup
}

func NewScheduler(tracer trace.Tracer, m *metrics.Metrics) *Scheduler {
	return &Scheduler{tracer: tracer, metrics: m, now: time.Now}
}

// Add registers a task. Tasks added after Start are not run.
func (s *Scheduler) Add(t Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, &entry{task: t, state: StateIdle})
	log.Info().Str("component", "scheduler").Str("task", t.Name).Str("cadence", t.Schedule.String()).Msg("task registered")
}

// Start blocks until ctx is cancelled. Task loops begin only after ready
// is closed; a nil ready channel starts them immediately.
func (s *Scheduler) Start(ctx context.Context, ready <-chan struct{}) {
	if ready != nil {
		select {
		case <-ctx.Done():
			return
		case <-ready:
		}
	}

	s.mu.Lock()
	tasks := append([]*entry(nil), s.tasks...)
	s.mu.Unlock()

	log.Info().Str("component", "scheduler").Int("tasks", len(tasks)).Msg("scheduler starting")
	for _, e := range tasks {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.loop(ctx, e)
		}()
	}

	<-ctx.Done()
	s.wg.Wait()
	log.Info().Str("component", "scheduler").Msg("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, e *entry) {
	next := e.task.Schedule.First(s.now())
	e.mu.Lock()
	e.state = StateRunning
	e.next = next
	e.mu.Unlock()

	for {
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		fired := s.now()
		s.runOnce(ctx, e)

		next = e.task.Schedule.Next(fired)
		if now := s.now(); !next.After(now) {
			next = e.task.Schedule.Next(now)
		}
		e.mu.Lock()
		e.next = next
		e.mu.Unlock()
	}
}

func (s *Scheduler) runOnce(ctx context.Context, e *entry) {
	ctx, span := s.tracer.Start(ctx, "scheduler.run")
	defer span.End()
	span.SetAttributes(attribute.String("task.name", e.task.Name))

	if e.task.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.task.Timeout)
		defer cancel()
	}

	started := s.now()
	err := s.call(ctx, e.task)
	took := s.now().Sub(started)

	e.mu.Lock()
	e.last = started
	e.runs++
	if err != nil {
		e.failures++
		e.lastErr = err.Error()
	} else {
		e.lastErr = ""
	}
	e.mu.Unlock()

	s.metrics.TaskRun(e.task.Name, err == nil)
	if err != nil {
		span.RecordError(err)
		log.Error().Str("component", "scheduler").Str("task", e.task.Name).Dur("took", took).Err(err).Msg("task run failed")
		return
	}
	log.Debug().Str("component", "scheduler").Str("task", e.task.Name).Dur("took", took).Msg("task run complete")
}

func (s *Scheduler) call(ctx context.Context, t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if t.Run == nil {
		return fmt.Errorf("task %s has no run function", t.Name)
	}
	return t.Run(ctx)
}

// Tasks reports every registered task in registration order.
func (s *Scheduler) Tasks() []TaskStatus {
	s.mu.Lock()
	tasks := append([]*entry(nil), s.tasks...)
	s.mu.Unlock()

	out := make([]TaskStatus, len(tasks))
	for i, e := range tasks {
		out[i] = e.status()
	}
	return out
}
