package cron_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/flemzord/aura/internal/cron"
	"github.com/flemzord/aura/internal/cron/crontest"
	"github.com/flemzord/aura/internal/memory"
)

func TestScheduler_RegisterJob(t *testing.T) {
	t.Parallel()

	s := cron.NewScheduler(nil)
	if err := s.RegisterJob(&crontest.Job{ID: "sweep", Spec: "@hourly"}); err != nil {
		t.Fatalf("first RegisterJob: %v", err)
	}
	if err := s.RegisterJob(&crontest.Job{ID: "sweep", Spec: "@daily"}); err == nil {
		t.Fatal("duplicate name accepted")
	}
}

func TestScheduler_Start(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		specs   []string
		wantErr bool
	}{
		{"no jobs", nil, false},
		{"five fields", []string{"*/10 * * * *"}, false},
		{"descriptor", []string{"@every 30m"}, false},
		{"one bad among good", []string{"@hourly", "invalid"}, true},
		{"blank", []string{""}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := cron.NewScheduler(nil)
			for i, spec := range tt.specs {
				_ = s.RegisterJob(&crontest.Job{ID: string(rune('a' + i)), Spec: spec})
			}
			err := s.Start()
			t.Cleanup(func() { _ = s.Stop(context.Background()) })
			if (err != nil) != tt.wantErr {
				t.Errorf("Start() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	t.Parallel()

	if err := cron.NewScheduler(nil).Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestScheduler_RunNowHonoursCancel(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	job := &crontest.Job{ID: "long", Spec: "@hourly", Fn: func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}}
	s := cron.NewScheduler(nil)
	_ = s.RegisterJob(job)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.RunNow(ctx, "long") }()
	<-started
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("job ignored cancellation")
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestScheduler_RunNow(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	job := &crontest.Job{ID: "once", Spec: "0 * * * *", Fn: func(context.Context) error { return boom }}
	s := cron.NewScheduler(nil)
	if err := s.RegisterJob(job); err != nil {
		t.Fatalf("RegisterJob: %v", err)
	}
	if err := s.RunNow(context.Background(), "once"); !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
	if job.Runs() != 1 {
		t.Errorf("runs = %d, want 1", job.Runs())
	}
	if err := s.RunNow(context.Background(), "missing"); !errors.Is(err, cron.ErrUnknownJob) {
		t.Errorf("unknown job err = %v, want ErrUnknownJob", err)
	}
}

func TestScheduler_RunNowSerialises(t *testing.T) {
	t.Parallel()

	var inFlight, peak atomic.Int32
	job := &crontest.Job{ID: "slow", Spec: "@hourly", Fn: func(context.Context) error {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	}}
	s := cron.NewScheduler(nil)
	_ = s.RegisterJob(job)

	var wg sync.WaitGroup
	for range 4 {
		wg.Go(func() { _ = s.RunNow(context.Background(), "slow") })
	}
	wg.Wait()

	if peak.Load() != 1 || job.Runs() != 4 {
		t.Errorf("peak = %d runs = %d, want 1 and 4", peak.Load(), job.Runs())
	}
}

func TestScheduler_CompactionSweep(t *testing.T) {
	t.Parallel()

	mc := &crontest.Compactor{
		List:    []memory.Session{{ID: "s1"}, {ID: "s2"}, {ID: "s3"}},
		Updated: map[string]bool{"s2": true},
		Failing: map[string]bool{"s3": true},
		Err:     errors.New("model down"),
	}
	s := cron.NewScheduler(nil)
	_ = s.RegisterJob(&cron.MemoryCompactionJob{Chat: mc})
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	err := s.RunNow(context.Background(), "memory_compaction")
	if !errors.Is(err, mc.Err) {
		t.Errorf("err = %v, want the failing session's error", err)
	}
	if got := mc.Compacted(); !slices.Equal(got, []string{"s1", "s2", "s3"}) {
		t.Errorf("compacted = %v", got)
	}
}
