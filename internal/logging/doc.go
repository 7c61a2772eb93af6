// Package logging provides structured JSON logging for OpsPilot analysis runs.
//
// It wraps log/slog so that every entry produced while analyzing a task list
// can carry the run ID and pipeline stage that produced it:
//
//	logger, err := logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)
//	if err != nil {
//		return err
//	}
//	defer logger.Close()
//
//	stageLog := logger.WithRun(runID).WithStage("detect")
//	stageLog.Info("stage complete", "bottlenecks", len(found), "duration_ms", ms)
//
// Child loggers share the parent's writer. Use [NopLogger] in tests.
package logging
