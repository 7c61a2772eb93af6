// Package storage persists completed analysis runs. Runs are append-only:
// a saved run is never overwritten, only listed, loaded or deleted.
//
// Backends:
//   - FileStore: one JSON document per run in a local directory
//   - PostgresStore: normalized tables through database/sql and pgx
//   - CachedStore: LRU read-through cache over any Store
//
// Archive optionally mirrors snapshots and reports to S3-compatible object
// storage.
package storage

import (
	"context"
	"sort"
	"time"
)

// Store persists run snapshots.
type Store interface {
	// Save stores s and returns its run ID. Saving an existing ID fails
	// with errors.ErrRunExists.
	Save(ctx context.Context, s *Snapshot) (string, error)
	// Load returns the run with id, or an error matching errors.ErrRunNotFound.
	Load(ctx context.Context, id string) (*Snapshot, error)
	// List returns every run, newest first.
	List(ctx context.Context) ([]RunInfo, error)
	// Delete removes a run.
	Delete(ctx context.Context, id string) error
	// Stats aggregates counts across all runs.
	Stats(ctx context.Context) (Stats, error)
	// Close releases backend resources.
	Close() error
}

// RunInfo describes a stored run without its payload.
type RunInfo struct {
	ID                   string    `json:"run_id"`
	Timestamp            time.Time `json:"timestamp"`
	Tasks                int       `json:"tasks"`
	Bottlenecks          int       `json:"bottlenecks"`
	Risks                int       `json:"risks"`
	RecommendationGroups int       `json:"recommendation_groups"`
}

// Stats aggregates stored runs.
type Stats struct {
	Runs                 int            `json:"runs"`
	Tasks                int            `json:"tasks"`
	Bottlenecks          int            `json:"bottlenecks"`
	Risks                int            `json:"risks"`
	RecommendationGroups int            `json:"recommendation_groups"`
	ByBottleneckType     map[string]int `json:"by_bottleneck_type"`
	ByRiskLevel          map[string]int `json:"by_risk_level"`
	First                time.Time      `json:"first,omitempty"`
	Last                 time.Time      `json:"last,omitempty"`
}

func newStats() Stats {
	return Stats{
		ByBottleneckType: make(map[string]int),
		ByRiskLevel:      make(map[string]int),
	}
}

// add folds one snapshot into the stats.
func (st *Stats) add(s *Snapshot) {
	st.Runs++
	st.Tasks += len(s.Tasks)
	st.Bottlenecks += len(s.Bottlenecks)
	st.Risks += len(s.Risks)
	st.RecommendationGroups += len(s.Recommendations)
	for _, b := range s.Bottlenecks {
		st.ByBottleneckType[string(b.Type)]++
	}
	for _, r := range s.Risks {
		st.ByRiskLevel[string(r.Level)]++
	}
	if st.First.IsZero() || s.Timestamp.Before(st.First) {
		st.First = s.Timestamp
	}
	if s.Timestamp.After(st.Last) {
		st.Last = s.Timestamp
	}
}

// sortRuns orders runs newest first, then by ID.
func sortRuns(runs []RunInfo) {
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].Timestamp.Equal(runs[j].Timestamp) {
			return runs[i].Timestamp.After(runs[j].Timestamp)
		}
		return runs[i].ID < runs[j].ID
	})
}
