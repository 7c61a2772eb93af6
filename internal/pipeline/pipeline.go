package pipeline

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/opspilot/opspilot/internal/detector"
	"github.com/opspilot/opspilot/internal/errors"
	"github.com/opspilot/opspilot/internal/forecast"
	"github.com/opspilot/opspilot/internal/graph"
	"github.com/opspilot/opspilot/internal/llm"
	"github.com/opspilot/opspilot/internal/logging"
	"github.com/opspilot/opspilot/internal/recommend"
	"github.com/opspilot/opspilot/internal/task"
)

// Analyzer runs analysis pipelines. It holds no per-run state and may be
// reused concurrently.
type Analyzer struct {
	settings  task.Settings
	generator llm.Generator
	logger    *logging.Logger
	now       func() time.Time
	parallel  bool
	newRunID  func(time.Time) string
	stageHook func(Stage)
}

// New creates an Analyzer with default settings, no generator, a no-op
// logger and parallel stages.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		settings:  task.DefaultSettings(),
		generator: llm.Noop{},
		logger:    logging.NopLogger(),
		now:       time.Now,
		parallel:  true,
		newRunID:  NewRunID,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewRunID returns an identifier of the form run-YYYYMMDD-HHMMSS-xxxxxx.
func NewRunID(ts time.Time) string {
	b := make([]byte, 3)
	_, _ = rand.Read(b)
	return fmt.Sprintf("run-%s-%s", ts.UTC().Format("20060102-150405"), hex.EncodeToString(b))
}

// Run analyzes tasks. Stage failures degrade to empty output and never
// fail the run; the only error returned is cancellation of ctx.
func (a *Analyzer) Run(ctx context.Context, tasks []task.Task) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := a.now()
	res := &Result{
		RunID:     a.newRunID(now),
		Timestamp: now,
		Settings:  a.settings,
		Tasks:     tasks,
	}
	if res.Tasks == nil {
		res.Tasks = []task.Task{}
	}
	log := a.logger.WithRun(res.RunID)
	log.Info("analysis started", "tasks", len(tasks), "parallel", a.parallel)
	start := time.Now()

	var mu sync.Mutex
	degrade := func(s Stage) {
		mu.Lock()
		res.Degraded = append(res.Degraded, string(s))
		mu.Unlock()
	}

	type built struct {
		g *graph.Graph
		m *graph.Metrics
	}
	b := runStage(a, log, res.RunID, StageGraph, degrade, built{graph.Build(nil), &graph.Metrics{}}, func() built {
		g := graph.Build(tasks)
		return built{g, graph.ComputeMetrics(g, tasks, a.settings, now)}
	}, func(v built) []any {
		return []any{"nodes", v.g.NodeCount(), "edges", v.g.EdgeCount(), "degraded_groups", len(v.m.Degraded)}
	})
	res.Graph, res.Metrics, res.Edges = b.g, b.m, b.g.Edges()
	for _, group := range b.m.Degraded {
		log.Warn("metric group degraded", "group", group)
	}

	detectAndRecommend := func(ctx context.Context) {
		res.Bottlenecks = runStage(a, log, res.RunID, StageDetect, degrade, []detector.Bottleneck{}, func() []detector.Bottleneck {
			return detector.Detect(b.g, tasks, b.m, a.settings)
		}, countAttr[detector.Bottleneck]("bottlenecks"))

		engine := recommend.New(a.generator, log)
		res.Recommendations = runStage(a, log, res.RunID, StageRecommend, degrade, []recommend.Group{}, func() []recommend.Group {
			return engine.Recommend(ctx, res.Bottlenecks, b.g, tasks, b.m)
		}, countAttr[recommend.Group]("groups"))
	}
	runForecast := func() {
		res.Risks = runStage(a, log, res.RunID, StageForecast, degrade, []forecast.Risk{}, func() []forecast.Risk {
			return forecast.Forecast(b.g, tasks, b.m, a.settings, now)
		}, countAttr[forecast.Risk]("risks"))
	}

	if a.parallel {
		eg, egCtx := errgroup.WithContext(ctx)
		eg.Go(func() error {
			detectAndRecommend(egCtx)
			return egCtx.Err()
		})
		eg.Go(func() error {
			runForecast()
			return nil
		})
		if err := eg.Wait(); err != nil {
			return nil, err
		}
	} else {
		detectAndRecommend(ctx)
		runForecast()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res.BottleneckSummary = detector.Summarize(res.Bottlenecks)
	res.RiskSummary = forecast.Summarize(res.Risks)
	res.RecommendationSummary = recommend.Summarize(res.Recommendations)

	log.Info("analysis finished",
		"bottlenecks", len(res.Bottlenecks),
		"risks", len(res.Risks),
		"recommendation_groups", len(res.Recommendations),
		"degraded", res.Degraded,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// runStage executes fn behind a recover boundary. A panic is converted to a
// StageError, logged at WARN, recorded through degrade, and replaced by
// empty.
func runStage[T any](a *Analyzer, log *logging.Logger, runID string, stage Stage, degrade func(Stage), empty T, fn func() T, attrs func(T) []any) (out T) {
	stageLog := log.WithStage(stage.String())
	start := time.Now()
	stageLog.Debug("stage started")

	defer func() {
		if r := recover(); r != nil {
			err := errors.NewStageError(fmt.Sprintf("stage panicked: %v", r), errors.ErrStageFailed).
				WithStage(stage.String()).
				WithRunID(runID)
			stageLog.Warn("stage degraded to empty output", "error", err.Error(),
				"duration_ms", time.Since(start).Milliseconds())
			degrade(stage)
			out = empty
		}
	}()

	if a.stageHook != nil {
		a.stageHook(stage)
	}
	out = fn()
	args := append(attrs(out), "duration_ms", time.Since(start).Milliseconds())
	stageLog.Info("stage finished", args...)
	return out
}

func countAttr[T any](name string) func([]T) []any {
	return func(v []T) []any {
		return []any{name, len(v)}
	}
}
