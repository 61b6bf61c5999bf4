package job

import (
	"context"
	"fmt"
	"strings"
	"time"

	"crypto-herald/internal/pipeline"

	"github.com/rs/zerolog/log"
)

// CycleRunner is the part of the pipeline driven on a cadence.
type CycleRunner interface {
	RunGlobalUpdate(ctx context.Context, trigger pipeline.Trigger) pipeline.CycleResult
	RunNewsCheck(ctx context.Context) pipeline.CycleResult
	RunPriceCheck(ctx context.Context) pipeline.CycleResult
	RunOpportunitiesCheck(ctx context.Context, force bool) pipeline.CycleResult
}

type Cadences struct {
	Location      *time.Location
	DailyTimes    []string
	News          time.Duration
	Prices        time.Duration
	Opportunities time.Duration
	Timeout       time.Duration
}

// CycleTasks builds the four recurring pipeline tasks.
func CycleTasks(r CycleRunner, c Cadences) ([]Task, error) {
	daily, err := DailyAt(c.Location, c.DailyTimes...)
	if err != nil {
		return nil, fmt.Errorf("daily schedule: %w", err)
	}
	for name, d := range map[string]time.Duration{"news": c.News, "prices": c.Prices, "opportunities": c.Opportunities} {
		if d <= 0 {
			return nil, fmt.Errorf("%s interval must be positive", name)
		}
	}
	return []Task{
		{Name: pipeline.KindGlobalUpdate, Schedule: daily, Timeout: c.Timeout, Run: cycle(func(ctx context.Context) pipeline.CycleResult {
			return r.RunGlobalUpdate(ctx, pipeline.TriggerScheduled)
		})},
		{Name: pipeline.KindNewsCheck, Schedule: Every(c.News), Timeout: c.Timeout, Run: cycle(r.RunNewsCheck)},
		{Name: pipeline.KindPriceCheck, Schedule: Every(c.Prices), Timeout: c.Timeout, Run: cycle(r.RunPriceCheck)},
		{Name: pipeline.KindOpportunities, Schedule: Every(c.Opportunities), Timeout: c.Timeout, Run: cycle(func(ctx context.Context) pipeline.CycleResult {
			return r.RunOpportunitiesCheck(ctx, false)
		})},
	}, nil
}

// cycle adapts a pipeline run to a task. Sub-step errors fail the run so
// they show up in the task status.
func cycle(run func(ctx context.Context) pipeline.CycleResult) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		res := run(ctx)
		if res.Published > 0 {
			log.Info().
				Str("component", "job").
				Str("kind", res.Kind).
				Int("published", res.Published).
				Int("skipped", res.Skipped).
				Msg("cycle published")
		}
		if len(res.Errors) > 0 {
			return fmt.Errorf("%s: %s", res.Kind, strings.Join(res.Errors, "; "))
		}
		return nil
	}
}
