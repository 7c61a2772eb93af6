package ingest

import (
	"github.com/gobwas/glob"

	"github.com/opspilot/opspilot/internal/errors"
	"github.com/opspilot/opspilot/internal/task"
)

// Filter keeps tasks whose owner matches the glob pattern. An empty pattern
// keeps everything.
func Filter(tasks []task.Task, ownerPattern string) ([]task.Task, error) {
	if ownerPattern == "" {
		return tasks, nil
	}
	g, err := glob.Compile(ownerPattern)
	if err != nil {
		return nil, errors.NewValidationError("invalid owner pattern: "+err.Error()).
			WithField("only-owner").WithValue(ownerPattern)
	}
	out := make([]task.Task, 0, len(tasks))
	for _, t := range tasks {
		if g.Match(t.Owner) {
			out = append(out, t)
		}
	}
	return out, nil
}
