// Package cron runs aura's periodic background work, today the memory
// compaction sweep over every session.
package cron

import (
	"context"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// Off disables a configured schedule.
const Off = "off"

// Job is a named task run on a cron schedule.
type Job interface {
	// Name identifies the job in logs and in RunNow. Unique per scheduler.
	Name() string

	// Schedule is a five-field expression or a descriptor such as
	// "@hourly".
	Schedule() string

	// Run must return promptly once ctx is cancelled.
	Run(ctx context.Context) error
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule parses expr with the grammar the scheduler uses.
func ParseSchedule(expr string) (cron.Schedule, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, fmt.Errorf("cron: empty schedule")
	}
	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("cron: schedule %q: %w", expr, err)
	}
	return sched, nil
}
