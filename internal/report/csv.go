package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/opspilot/opspilot/internal/detector"
	"github.com/opspilot/opspilot/internal/forecast"
	"github.com/opspilot/opspilot/internal/pipeline"
	"github.com/opspilot/opspilot/internal/recommend"
)

// Export file names written by ExportAll.
const (
	BottlenecksFile     = "bottlenecks.csv"
	RecommendationsFile = "recommendations.csv"
	RisksFile           = "risks.csv"
	ReportFile          = "report.md"
)

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// WriteBottlenecksCSV writes one row per bottleneck.
func WriteBottlenecksCSV(w io.Writer, bs []detector.Bottleneck) error {
	rows := [][]string{{"task_id", "title", "owner", "type", "score", "reason"}}
	for _, b := range bs {
		rows = append(rows, []string{b.TaskID, b.Title, b.Owner, string(b.Type), formatScore(b.Score), b.Reason})
	}
	return writeCSV(w, rows)
}

// WriteRecommendationsCSV flattens groups into one row per recommendation.
func WriteRecommendationsCSV(w io.Writer, groups []recommend.Group) error {
	rows := [][]string{{
		"task_id", "task_title", "owner", "bottleneck_type", "bottleneck_score",
		"recommendation_title", "rationale", "expected_effect", "type", "priority",
	}}
	for _, g := range groups {
		for _, r := range g.Recommendations {
			rows = append(rows, []string{
				g.TaskID, g.Title, g.Owner, string(g.BottleneckType), formatScore(g.BottleneckScore),
				r.Title, r.Rationale, r.ExpectedEffect, string(r.Type), string(r.Priority),
			})
		}
	}
	return writeCSV(w, rows)
}

// WriteRisksCSV writes one row per risk with reasons joined by "; ".
func WriteRisksCSV(w io.Writer, risks []forecast.Risk) error {
	rows := [][]string{{"task_id", "title", "owner", "status", "risk_score", "risk_level", "due_date", "reasons"}}
	for _, r := range risks {
		rows = append(rows, []string{
			r.TaskID, r.Title, r.Owner, string(r.Status), formatScore(r.Score), string(r.Level),
			r.DueDate, strings.Join(r.Reasons, "; "),
		})
	}
	return writeCSV(w, rows)
}

func writeCSV(w io.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}

// ExportAll writes the three CSV exports and the markdown report into dir,
// creating it if needed. It returns the written paths.
func ExportAll(dir string, res *pipeline.Result) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}

	writers := []struct {
		name  string
		write func(io.Writer) error
	}{
		{BottlenecksFile, func(w io.Writer) error { return WriteBottlenecksCSV(w, res.Bottlenecks) }},
		{RecommendationsFile, func(w io.Writer) error { return WriteRecommendationsCSV(w, res.Recommendations) }},
		{RisksFile, func(w io.Writer) error { return WriteRisksCSV(w, res.Risks) }},
		{ReportFile, func(w io.Writer) error {
			_, err := io.WriteString(w, Markdown(res))
			return err
		}},
	}

	paths := make([]string, 0, len(writers))
	for _, wr := range writers {
		path := filepath.Join(dir, wr.name)
		if err := writeFile(path, wr.write); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Base(path), err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", filepath.Base(path), cerr)
		}
	}()
	return write(f)
}
