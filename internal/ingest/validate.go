package ingest

import (
	"github.com/opspilot/opspilot/internal/logging"
	"github.com/opspilot/opspilot/internal/task"
)

// Validate drops records with missing identifying fields or out-of-range
// values. Dropped rows are logged at DEBUG and never reported as errors.
func Validate(tasks []task.Task, logger *logging.Logger) []task.Task {
	if logger == nil {
		logger = logging.NopLogger()
	}
	out := make([]task.Task, 0, len(tasks))
	for _, t := range tasks {
		if reason := invalidReason(t); reason != "" {
			logger.Debug("skipping invalid row", "task_id", t.ID, "reason", reason)
			continue
		}
		out = append(out, t)
	}
	return out
}

func invalidReason(t task.Task) string {
	switch {
	case !t.Valid():
		return "missing task_id, title or owner"
	case !t.Status.IsValid():
		return "unknown status"
	case !t.Priority.IsValid():
		return "unknown priority"
	case t.Effort < task.MinEffort || t.Effort > task.MaxEffort:
		return "effort out of range"
	}
	return ""
}
