package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/flipcheck/flipcheck/internal/budget"
	"github.com/flipcheck/flipcheck/internal/cache"
	"github.com/flipcheck/flipcheck/internal/models"
	"github.com/flipcheck/flipcheck/internal/scoring"
	"github.com/flipcheck/flipcheck/pkg/config"
	"github.com/flipcheck/flipcheck/pkg/logging"
	"github.com/flipcheck/flipcheck/pkg/telemetry"
)

// DefaultRequester identifies callers that did not say who they are
const DefaultRequester = "anonymous"

// Source provides the user data an analysis runs on
type Source interface {
	FetchUserData(ctx context.Context, username string) (*models.UserData, error)
	GetUserPreview(ctx context.Context, username string) models.Preview
}

// ValidationError reports unusable input. It is raised before any network call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Request describes one analysis
type Request struct {
	Username    string
	RequesterID string
	Verbose     bool
}

// Result is the outcome of an analysis. Analysis is always set; Err holds the
// reason when the analysis failed.
type Result struct {
	Analysis *models.Analysis
	Err      error
}

// Completed reports whether the analysis succeeded
func (r Result) Completed() bool {
	return r.Err == nil && r.Analysis != nil && r.Analysis.Status == models.StatusCompleted
}

// Failed reports whether the analysis failed
func (r Result) Failed() bool {
	return !r.Completed()
}

// Analyzer coordinates ingestion, scoring, budget and cache for user analyses
type Analyzer struct {
	source     Source
	pipeline   scoring.Pipeline
	budget     *budget.Tracker
	cache      cache.Store
	timeout    time.Duration
	batchDelay time.Duration
	runs       *telemetry.Counter
	logger     *zap.Logger
	now        func() time.Time
}

// New creates an analyzer. store may be nil to disable caching.
func New(cfg *config.AnalysisConfig, source Source, pipeline scoring.Pipeline, tracker *budget.Tracker, store cache.Store) *Analyzer {
	return &Analyzer{
		source:     source,
		pipeline:   pipeline,
		budget:     tracker,
		cache:      store,
		timeout:    cfg.Timeout,
		batchDelay: cfg.BatchDelay,
		runs:       telemetry.NewCounter("analysis.runs", "Analyses run, by status"),
		logger:     logging.WithComponent("analyzer"),
		now:        time.Now,
	}
}

// AnalyzeUser analyses one user. Failures are returned as a failed analysis, never as a panic
// or a missing result.
func (a *Analyzer) AnalyzeUser(ctx context.Context, req Request) Result {
	return a.run(ctx, req, nil)
}

// Preview returns the cheap account summary for username
func (a *Analyzer) Preview(ctx context.Context, username string) models.Preview {
	return a.source.GetUserPreview(ctx, NormalizeUsername(username))
}

// Cached returns the cached analysis for username, or cache.ErrMiss
func (a *Analyzer) Cached(ctx context.Context, username string) (*models.Analysis, error) {
	if a.cache == nil {
		return nil, cache.ErrMiss
	}
	return a.cache.Get(ctx, username)
}

// NormalizeUsername trims space and a leading "u/" prefix
func NormalizeUsername(username string) string {
	name := strings.TrimSpace(username)
	name = strings.TrimPrefix(name, "/")
	if len(name) >= 2 && strings.EqualFold(name[:2], "u/") {
		name = name[2:]
	}
	return strings.TrimSpace(name)
}

func (a *Analyzer) run(ctx context.Context, req Request, emit emitFunc) Result {
	// Only progress consumers see the preview, so plain runs skip its request
	withPreview := emit != nil
	if emit == nil {
		emit = func(Progress) {}
	}
	if req.RequesterID == "" {
		req.RequesterID = DefaultRequester
	}
	if req.Verbose {
		ctx = logging.WithVerbose(ctx)
	}
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	ctx, span := telemetry.StartSpan(ctx, "analysis.analyze_user")
	defer span.End()

	username := NormalizeUsername(req.Username)
	span.SetAttributes(
		attribute.String("analysis.username", username),
		attribute.String("analysis.requester", req.RequesterID),
	)
	logger := a.logger.With(zap.String("username", username), zap.String("requester", req.RequesterID))

	analysis, err := a.analyze(ctx, username, req, emit, withPreview, logger)
	if err != nil {
		span.RecordError(err)
		logger.Warn("Analysis failed", zap.Error(err))
		a.runs.Add(ctx, 1, "status", string(models.StatusFailed))

		emit(Progress{Stage: StageError, Progress: 0, Message: err.Error()})
		return Result{Analysis: a.failed(username, req.RequesterID, err), Err: err}
	}

	a.runs.Add(ctx, 1, "status", string(models.StatusCompleted))
	a.store(ctx, username, analysis, logger)

	emit(Progress{Stage: StageComplete, Progress: 100, Data: analysis})
	return Result{Analysis: analysis}
}

func (a *Analyzer) analyze(ctx context.Context, username string, req Request, emit emitFunc, withPreview bool, logger *zap.Logger) (*models.Analysis, error) {
	emit(Progress{Stage: StageValidation, Progress: 0})
	if username == "" {
		return nil, &ValidationError{Field: "username", Message: "username is required"}
	}
	emit(Progress{Stage: StageValidation, Progress: 100})

	if a.budget != nil {
		// Warnings are advisory; analyses keep running past the threshold
		if status := a.budget.Status(); status.IsWarning {
			logger.Warn("Budget warning threshold reached",
				zap.Float64("spend", status.Spend),
				zap.Float64("ceiling", status.Ceiling),
				zap.Float64("percentage", status.Percentage))
		}
	}

	fetching := Progress{Stage: StageFetching, Progress: 0}
	if withPreview {
		fetching.Data = a.source.GetUserPreview(ctx, username)
	}
	emit(fetching)
	data, err := a.source.FetchUserData(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch data for %s: %w", username, err)
	}
	emit(Progress{Stage: StageFetching, Progress: 100})

	logging.Detail(logger, logging.IsVerbose(ctx), "Fetched history",
		zap.Int("comments", len(data.Comments)),
		zap.Int("posts", len(data.Posts)))

	emit(Progress{Stage: StageAnalyzing, Progress: 0})
	report, err := a.pipeline.Analyze(ctx, scoring.Input{
		Comments: data.Comments,
		Posts:    data.Posts,
		Username: username,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to score history for %s: %w", username, err)
	}
	if report.Contradictions == nil {
		report.Contradictions = []models.Finding{}
	}
	emit(Progress{Stage: StageAnalyzing, Progress: 100, Data: report})

	now := a.now().UTC()
	analysis := &models.Analysis{
		ID:                 models.AnalysisID(now, username),
		Username:           username,
		RequesterID:        req.RequesterID,
		ContradictionCount: len(report.Contradictions),
		ConfidenceScore:    AggregateConfidence(report.Contradictions, now),
		AnalyzedAt:         now,
		Report:             *report,
		Status:             models.StatusCompleted,
	}

	logger.Info("Analysis completed",
		zap.String("id", analysis.ID),
		zap.Int("contradictions", analysis.ContradictionCount),
		zap.Int("confidence", analysis.ConfidenceScore),
		zap.Float64("cost", report.Usage.Cost))

	return analysis, nil
}

// store records spend and caches a completed analysis. Neither failure affects the result.
func (a *Analyzer) store(ctx context.Context, username string, analysis *models.Analysis, logger *zap.Logger) {
	if a.budget != nil {
		if err := a.budget.RecordSpend(analysis.Report.Usage.Cost); err != nil {
			logger.Error("Failed to record spend", zap.Error(err))
		}
	}
	if a.cache != nil {
		// The run's deadline may be nearly spent; caching gets its own
		cacheCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := a.cache.Put(cacheCtx, username, analysis); err != nil {
			logger.Error("Failed to cache analysis", zap.Error(err))
		}
	}
}

func (a *Analyzer) failed(username, requesterID string, err error) *models.Analysis {
	now := a.now().UTC()
	return &models.Analysis{
		ID:          models.AnalysisID(now, username),
		Username:    username,
		RequesterID: requesterID,
		AnalyzedAt:  now,
		Report: models.Report{
			Summary:        fmt.Sprintf("Analysis failed: %v", err),
			Contradictions: []models.Finding{},
			Timeline:       []models.Event{},
			Stats:          models.Stats{TopSubreddits: []string{}},
		},
		Status: models.StatusFailed,
	}
}

// AnalyzeBatch analyses usernames one after another with a fixed delay between them.
// Failed analyses are logged and skipped; cancelling ctx returns the completed analyses so far.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, usernames []string, requesterID string) []*models.Analysis {
	completed := make([]*models.Analysis, 0, len(usernames))

	for i, username := range usernames {
		if i > 0 {
			if err := a.wait(ctx, a.batchDelay); err != nil {
				a.logger.Info("Batch interrupted", zap.Int("completed", len(completed)), zap.Int("remaining", len(usernames)-i))
				return completed
			}
		}

		result := a.AnalyzeUser(ctx, Request{Username: username, RequesterID: requesterID})
		if result.Failed() {
			a.logger.Warn("Skipping failed batch entry", zap.String("username", username), zap.Error(result.Err))
			continue
		}
		completed = append(completed, result.Analysis)
	}

	a.logger.Info("Batch finished", zap.Int("requested", len(usernames)), zap.Int("completed", len(completed)))
	return completed
}

// wait waits for d or until ctx is cancelled
func (a *Analyzer) wait(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
