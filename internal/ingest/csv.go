// Package ingest turns external task descriptions (CSV exports or free-form
// status text) into validated task records.
package ingest

import (
	"encoding/csv"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/opspilot/opspilot/internal/errors"
	"github.com/opspilot/opspilot/internal/logging"
	"github.com/opspilot/opspilot/internal/task"
)

const (
	// slugMaxLen bounds identifiers derived from titles.
	slugMaxLen = 50
	// DefaultOwner is assigned to rows without an owner.
	DefaultOwner = "unknown"
)

// columnAliases maps alternative header names onto canonical fields.
var columnAliases = map[string]string{
	"name":        "title",
	"assignee":    "owner",
	"description": "notes",
	"id":          "task_id",
	"depends_on":  "dependency_ids",
}

// dateLayouts are tried in order when normalising dates.
var dateLayouts = []string{
	task.DateLayout,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"02-Jan-2006",
	"2 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

var (
	depSeparators = regexp.MustCompile(`[,;|\s]+`)
	slugStrip     = regexp.MustCompile(`[^\w\s-]`)
	slugCollapse  = regexp.MustCompile(`[-\s]+`)
)

// Row is one raw record keyed by normalised column name.
type Row map[string]string

// get returns the first non-empty value among keys.
func (r Row) get(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(r[k]); v != "" {
			return v
		}
	}
	return ""
}

// NormalizeHeader lower-cases and trims a column name, replaces spaces with
// underscores, and resolves aliases.
func NormalizeHeader(h string) string {
	h = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(h)), " ", "_")
	h = strings.TrimPrefix(h, "\ufeff")
	if canonical, ok := columnAliases[h]; ok {
		return canonical
	}
	return h
}

// ParseCSV reads a CSV export with a header row. Malformed rows and rows
// without a title are dropped and logged at DEBUG. Only an unreadable source
// or header is returned, as *errors.IngestError.
func ParseCSV(r io.Reader, logger *logging.Logger) ([]task.Task, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return []task.Task{}, nil
	}
	if err != nil {
		return nil, errors.NewIngestError("failed to read CSV header", err).WithLine(1)
	}
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = NormalizeHeader(h)
	}

	tasks := []task.Task{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			logger.Debug("skipping malformed CSV row", "line", parseErr.StartLine, "error", parseErr.Err.Error())
			continue
		}
		if err != nil {
			return nil, errors.NewIngestError("failed to read CSV input", err)
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			if i < len(record) {
				if _, dup := row[col]; !dup || row[col] == "" {
					row[col] = record[i]
				}
			}
		}
		if t, ok := ParseRow(row); ok {
			tasks = append(tasks, t)
		}
	}
	return tasks, nil
}

// ParseRow normalises one record. It reports false when the row cannot
// identify a task.
func ParseRow(row Row) (task.Task, bool) {
	title := row.get("title", "name")
	if title == "" {
		return task.Task{}, false
	}
	id := row.get("task_id")
	if id == "" {
		id = Slugify(title)
	}
	if id == "" {
		return task.Task{}, false
	}

	owner := row.get("owner", "assignee")
	if owner == "" {
		owner = DefaultOwner
	}

	return task.Task{
		ID:            id,
		Title:         title,
		Owner:         owner,
		Status:        task.ParseStatus(row.get("status")),
		Priority:      task.ParsePriority(row.get("priority")),
		Effort:        parseEffort(row.get("effort")),
		StartDate:     NormalizeDate(row.get("start_date")),
		DueDate:       NormalizeDate(row.get("due_date")),
		DependencyIDs: SplitDependencies(row.get("dependency_ids")),
		Notes:         row.get("notes", "description"),
	}, true
}

func parseEffort(s string) int {
	if s == "" {
		return task.DefaultEffort
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return task.DefaultEffort
		}
		n = int(f)
	}
	return task.ClampEffort(n)
}

// NormalizeDate parses s in any supported layout and returns it as
// YYYY-MM-DD. Unparseable input yields "".
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(task.DateLayout)
		}
	}
	return ""
}

// SplitDependencies splits a dependency list on commas, semicolons, pipes
// and whitespace.
func SplitDependencies(s string) []string {
	var out []string
	for _, d := range depSeparators.Split(s, -1) {
		if d = strings.TrimSpace(d); d != "" {
			out = append(out, d)
		}
	}
	return out
}

// Slugify derives a lower-case, dash-separated identifier from text.
func Slugify(text string) string {
	slug := slugStrip.ReplaceAllString(strings.ToLower(text), "")
	slug = slugCollapse.ReplaceAllString(strings.TrimSpace(slug), "-")
	if len(slug) > slugMaxLen {
		slug = slug[:slugMaxLen]
	}
	return slug
}
