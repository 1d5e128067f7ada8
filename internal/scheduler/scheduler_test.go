package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/flipcheck/flipcheck/internal/budget"
	"github.com/flipcheck/flipcheck/pkg/config"
)

func TestScheduler_Add(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		wantErr bool
	}{
		{"descriptor", "@monthly", false},
		{"every", "@every 1h", false},
		{"five fields", "0 3 * * *", false},
		{"garbage", "whenever", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			_, err := s.Add("test", tt.spec, func(context.Context) {})
			if (err != nil) != tt.wantErr {
				t.Errorf("Add(%q) error = %v, wantErr %v", tt.spec, err, tt.wantErr)
			}
		})
	}
}

func TestScheduler_BudgetResetJob(t *testing.T) {
	tracker := budget.New(&config.BudgetConfig{Ceiling: 100, WarningPercent: 80})
	if err := tracker.RecordSpend(90); err != nil {
		t.Fatalf("RecordSpend() error: %v", err)
	}

	s := New()
	id, err := s.Add("budget-reset", "@monthly", func(context.Context) { tracker.Reset() })
	if err != nil {
		t.Fatalf("Add() error: %v", err)
	}

	if !s.Run(id) {
		t.Fatal("Run() did not find the job")
	}

	status := tracker.Status()
	if status.Spend != 0 || status.Ceiling != 100 || status.WarningPercent != 80 {
		t.Errorf("unexpected status after scheduled reset: %+v", status)
	}
}

func TestScheduler_RecoversFromPanics(t *testing.T) {
	s := New()
	id, _ := s.Add("explodes", "@hourly", func(context.Context) { panic("boom") })

	// Recover is part of the job chain, so a panicking job must not escape
	s.Run(id)
}

func TestScheduler_StartStop(t *testing.T) {
	s := New()
	id, _ := s.Add("noop", "@hourly", func(context.Context) {})

	if !s.Next(id).IsZero() {
		t.Error("Next should be zero before Start")
	}

	s.Start()
	if next := s.Next(id); next.IsZero() || next.Before(time.Now()) {
		t.Errorf("Next = %v, want a future time", next)
	}

	var jobCtx context.Context
	id, _ = s.Add("capture", "@hourly", func(ctx context.Context) { jobCtx = ctx })
	s.Run(id)

	s.Stop()
	if jobCtx == nil || jobCtx.Err() == nil {
		t.Error("job context should be cancelled after Stop")
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
}
