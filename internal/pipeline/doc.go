// Package pipeline runs a full analysis over one task list.
//
// # Stages
//
// A run proceeds through four stages:
//
//   - graph: build the dependency graph and its metrics bundle
//   - detect: score bottleneck heuristics against the metrics
//   - forecast: score schedule risk for open tasks
//   - recommend: propose actions for each detected bottleneck
//
// The graph stage completes before anything else starts. Detect and forecast
// are independent read-only passes and run concurrently; recommend starts as
// soon as detect finishes and may overlap forecast.
//
// # Degradation
//
// Every stage runs behind a recover boundary. A stage that panics is logged
// at WARN as an [errors.StageError] and contributes an empty output; later
// stages still run. The stage names are listed in [Result.Degraded].
//
// # Usage
//
//	a := pipeline.New(
//	    pipeline.WithSettings(settings),
//	    pipeline.WithGenerator(gen),
//	    pipeline.WithLogger(logger),
//	)
//	result, err := a.Run(ctx, tasks)
package pipeline
