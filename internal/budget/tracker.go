package budget

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/flipcheck/flipcheck/pkg/config"
	"github.com/flipcheck/flipcheck/pkg/logging"
	"github.com/flipcheck/flipcheck/pkg/telemetry"
)

// DefaultWarningPercent is used when no warning threshold is configured
const DefaultWarningPercent = 80.0

// ErrNegativeSpend is returned when a negative amount is recorded
var ErrNegativeSpend = errors.New("spend amount must not be negative")

// Status is a snapshot of the budget
type Status struct {
	Spend          float64 `json:"spend"`
	Ceiling        float64 `json:"ceiling"`
	Remaining      float64 `json:"remaining"`
	Percentage     float64 `json:"percentage"`
	WarningPercent float64 `json:"warningPercent"`
	IsWarning      bool    `json:"isWarning"`
}

// Tracker accumulates scoring spend against a ceiling. It is safe for concurrent use.
type Tracker struct {
	mu             sync.Mutex
	ceiling        float64
	warningPercent float64
	spend          float64
	logger         *zap.Logger
}

// New creates a tracker from configuration
func New(cfg *config.BudgetConfig) *Tracker {
	t := &Tracker{logger: logging.WithComponent("budget")}
	t.Configure(cfg.Ceiling, cfg.WarningPercent)
	return t
}

// Configure sets a new ceiling and warning threshold and starts a fresh period.
// A non-positive warningPercent selects DefaultWarningPercent.
func (t *Tracker) Configure(ceiling, warningPercent float64) {
	if warningPercent <= 0 {
		warningPercent = DefaultWarningPercent
	}

	t.mu.Lock()
	t.ceiling = ceiling
	t.warningPercent = warningPercent
	t.spend = 0
	t.mu.Unlock()

	t.logger.Info("Budget configured",
		zap.Float64("ceiling", ceiling),
		zap.Float64("warning_percent", warningPercent))
}

// RecordSpend adds amount to the cumulative spend
func (t *Tracker) RecordSpend(amount float64) error {
	if amount < 0 {
		return fmt.Errorf("%w: %v", ErrNegativeSpend, amount)
	}

	t.mu.Lock()
	t.spend += amount
	status := t.statusLocked()
	t.mu.Unlock()

	if status.IsWarning {
		t.logger.Warn("Budget warning threshold reached",
			zap.Float64("spend", status.Spend),
			zap.Float64("ceiling", status.Ceiling),
			zap.Float64("percentage", status.Percentage))
	}
	return nil
}

// Status returns the current budget snapshot
func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.statusLocked()
}

// Reset zeroes spend and keeps the ceiling and threshold
func (t *Tracker) Reset() {
	t.mu.Lock()
	previous := t.spend
	t.spend = 0
	t.mu.Unlock()

	t.logger.Info("Budget reset", zap.Float64("previous_spend", previous))
}

// RegisterMetrics exports spend and percentage as observable gauges
func (t *Tracker) RegisterMetrics() error {
	return telemetry.RegisterGauges(func() map[string]float64 {
		s := t.Status()
		return map[string]float64{
			"budget.spend":      s.Spend,
			"budget.ceiling":    s.Ceiling,
			"budget.percentage": s.Percentage,
		}
	}, "budget.spend", "budget.ceiling", "budget.percentage")
}

func (t *Tracker) statusLocked() Status {
	var percentage float64
	if t.ceiling > 0 {
		percentage = t.spend * 100 / t.ceiling
	}
	return Status{
		Spend:          t.spend,
		Ceiling:        t.ceiling,
		Remaining:      max(t.ceiling-t.spend, 0),
		Percentage:     percentage,
		WarningPercent: t.warningPercent,
		IsWarning:      t.ceiling > 0 && percentage >= t.warningPercent,
	}
}
