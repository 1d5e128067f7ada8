package budget

import (
	"errors"
	"sync"
	"testing"

	"github.com/flipcheck/flipcheck/pkg/config"
)

func TestTracker_WarningAndReset(t *testing.T) {
	tracker := New(&config.BudgetConfig{})
	tracker.Configure(100, 80)

	if err := tracker.RecordSpend(85); err != nil {
		t.Fatalf("RecordSpend() error: %v", err)
	}

	status := tracker.Status()
	if !status.IsWarning {
		t.Error("expected warning at 85%")
	}
	if status.Percentage != 85 {
		t.Errorf("Percentage = %v, want 85", status.Percentage)
	}
	if status.Remaining != 15 {
		t.Errorf("Remaining = %v, want 15", status.Remaining)
	}

	tracker.Reset()
	status = tracker.Status()
	if status.Spend != 0 {
		t.Errorf("Spend after reset = %v, want 0", status.Spend)
	}
	if status.Ceiling != 100 || status.WarningPercent != 80 {
		t.Errorf("reset should keep ceiling and threshold, got %+v", status)
	}
	if status.IsWarning {
		t.Error("no warning expected after reset")
	}
}

func TestTracker_Status(t *testing.T) {
	tests := []struct {
		name        string
		ceiling     float64
		warning     float64
		spend       []float64
		wantPercent float64
		wantWarning bool
	}{
		{"below threshold", 100, 80, []float64{10, 20}, 30, false},
		{"exactly at threshold", 100, 80, []float64{80}, 80, true},
		{"default threshold", 10, 0, []float64{8}, 80, true},
		{"over ceiling", 10, 80, []float64{15}, 150, true},
		{"no ceiling", 0, 80, []float64{5}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := New(&config.BudgetConfig{Ceiling: tt.ceiling, WarningPercent: tt.warning})
			for _, amount := range tt.spend {
				if err := tracker.RecordSpend(amount); err != nil {
					t.Fatalf("RecordSpend(%v) error: %v", amount, err)
				}
			}

			status := tracker.Status()
			if status.Percentage != tt.wantPercent {
				t.Errorf("Percentage = %v, want %v", status.Percentage, tt.wantPercent)
			}
			if status.IsWarning != tt.wantWarning {
				t.Errorf("IsWarning = %v, want %v", status.IsWarning, tt.wantWarning)
			}
		})
	}
}

func TestTracker_ConfigureStartsNewPeriod(t *testing.T) {
	tracker := New(&config.BudgetConfig{Ceiling: 10})
	_ = tracker.RecordSpend(5)

	tracker.Configure(20, 50)

	status := tracker.Status()
	if status.Spend != 0 || status.Ceiling != 20 || status.WarningPercent != 50 {
		t.Errorf("unexpected status after Configure: %+v", status)
	}
}

func TestTracker_RejectsNegativeSpend(t *testing.T) {
	tracker := New(&config.BudgetConfig{Ceiling: 10})
	_ = tracker.RecordSpend(4)

	if err := tracker.RecordSpend(-1); !errors.Is(err, ErrNegativeSpend) {
		t.Fatalf("RecordSpend(-1) error = %v, want ErrNegativeSpend", err)
	}
	if got := tracker.Status().Spend; got != 4 {
		t.Errorf("Spend = %v, want 4", got)
	}
}

func TestTracker_ConcurrentSpend(t *testing.T) {
	tracker := New(&config.BudgetConfig{Ceiling: 1000})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = tracker.RecordSpend(0.25)
			}
		}()
	}
	wg.Wait()

	if got := tracker.Status().Spend; got != 1250 {
		t.Errorf("Spend = %v, want 1250", got)
	}
}
