// Package crontest provides test doubles for the cron package.
package crontest

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/flemzord/aura/internal/cron"
	"github.com/flemzord/aura/internal/memory"
)

var (
	_ cron.Job              = (*Job)(nil)
	_ cron.SessionCompactor = (*Compactor)(nil)
)

// Job is a cron.Job whose behaviour is a plain function. A nil Fn succeeds.
type Job struct {
	ID   string
	Spec string
	Fn   func(ctx context.Context) error

	runs atomic.Int64
}

func (j *Job) Name() string     { return j.ID }
func (j *Job) Schedule() string { return j.Spec }

func (j *Job) Run(ctx context.Context) error {
	j.runs.Add(1)
	if j.Fn == nil {
		return nil
	}
	return j.Fn(ctx)
}

// Runs reports how many times Run was entered.
func (j *Job) Runs() int { return int(j.runs.Load()) }

// Compactor records CompactPending calls. Sessions named in Updated report
// a memory update; those in Failing return Err.
type Compactor struct {
	List    []memory.Session
	Updated map[string]bool
	Failing map[string]bool
	Err     error

	mu   sync.Mutex
	seen []string
}

func (c *Compactor) Sessions(context.Context, string) ([]memory.Session, error) {
	return c.List, nil
}

func (c *Compactor) CompactPending(_ context.Context, id string) (bool, error) {
	c.mu.Lock()
	c.seen = append(c.seen, id)
	c.mu.Unlock()
	if c.Failing[id] {
		return false, c.Err
	}
	return c.Updated[id], nil
}

// Compacted returns the session IDs passed to CompactPending, in call order.
func (c *Compactor) Compacted() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.seen...)
}
