package job

import (
	"context"
	"strings"
	"testing"
	"time"

	"crypto-herald/internal/pipeline"
)

type stubRunner struct {
	calls   []string
	trigger pipeline.Trigger
	force   bool
	errs    []string
}

func (s *stubRunner) RunGlobalUpdate(ctx context.Context, trigger pipeline.Trigger) pipeline.CycleResult {
	s.calls = append(s.calls, "global")
	s.trigger = trigger
	return pipeline.CycleResult{Kind: pipeline.KindGlobalUpdate, Published: 9}
}

func (s *stubRunner) RunNewsCheck(ctx context.Context) pipeline.CycleResult {
	s.calls = append(s.calls, "news")
	return pipeline.CycleResult{Kind: pipeline.KindNewsCheck, Errors: s.errs}
}

func (s *stubRunner) RunPriceCheck(ctx context.Context) pipeline.CycleResult {
	s.calls = append(s.calls, "prices")
	return pipeline.CycleResult{Kind: pipeline.KindPriceCheck}
}

func (s *stubRunner) RunOpportunitiesCheck(ctx context.Context, force bool) pipeline.CycleResult {
	s.calls = append(s.calls, "opportunities")
	s.force = force
	return pipeline.CycleResult{Kind: pipeline.KindOpportunities}
}

func defaultCadences() Cadences {
	return Cadences{
		Location:      time.UTC,
		DailyTimes:    []string{"08:00", "12:00", "18:00"},
		News:          45 * time.Minute,
		Prices:        15 * time.Minute,
		Opportunities: 2 * time.Hour,
	}
}

func TestCycleTasks(t *testing.T) {
	runner := &stubRunner{}
	tasks, err := CycleTasks(runner, defaultCadences())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tasks) != 4 {
		t.Fatalf("expected 4 tasks, got %d", len(tasks))
	}
	for _, task := range tasks {
		if err := task.Run(context.Background()); err != nil {
			t.Fatalf("%s: unexpected error: %v", task.Name, err)
		}
	}
	if strings.Join(runner.calls, ",") != "global,news,prices,opportunities" {
		t.Fatalf("unexpected calls %v", runner.calls)
	}
	if runner.trigger != pipeline.TriggerScheduled || runner.force {
		t.Fatalf("scheduled runs must not be forced: trigger=%s force=%v", runner.trigger, runner.force)
	}
	if tasks[1].Schedule.String() != "every 45m0s" {
		t.Fatalf("unexpected news cadence %s", tasks[1].Schedule)
	}
}

func TestCycleTaskReportsErrors(t *testing.T) {
	runner := &stubRunner{errs: []string{"no news"}}
	tasks, err := CycleTasks(runner, defaultCadences())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err = tasks[1].Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "no news") {
		t.Fatalf("expected cycle errors to surface, got %v", err)
	}
}

func TestCycleTasksValidation(t *testing.T) {
	c := defaultCadences()
	c.DailyTimes = nil
	if _, err := CycleTasks(&stubRunner{}, c); err == nil {
		t.Fatal("expected error without daily times")
	}
	c = defaultCadences()
	c.Prices = 0
	if _, err := CycleTasks(&stubRunner{}, c); err == nil {
		t.Fatal("expected error for zero interval")
	}
}
