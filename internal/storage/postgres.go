package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"sync"

	// Registers the "pgx" database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/opspilot/opspilot/internal/detector"
	"github.com/opspilot/opspilot/internal/errors"
	"github.com/opspilot/opspilot/internal/forecast"
	"github.com/opspilot/opspilot/internal/graph"
	"github.com/opspilot/opspilot/internal/recommend"
	"github.com/opspilot/opspilot/internal/task"
)

const backendPostgres = "postgres"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
  run_id TEXT PRIMARY KEY,
  created_at TIMESTAMP WITH TIME ZONE NOT NULL,
  settings JSONB NOT NULL,
  degraded_stages JSONB NOT NULL DEFAULT '[]',
  degraded_metrics JSONB NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS tasks (
  id BIGSERIAL PRIMARY KEY,
  run_id TEXT NOT NULL REFERENCES runs (run_id) ON DELETE CASCADE,
  task_id TEXT NOT NULL,
  owner TEXT NOT NULL,
  status TEXT NOT NULL,
  payload JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS dependencies (
  id BIGSERIAL PRIMARY KEY,
  run_id TEXT NOT NULL REFERENCES runs (run_id) ON DELETE CASCADE,
  from_id TEXT NOT NULL,
  to_id TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS bottlenecks (
  id BIGSERIAL PRIMARY KEY,
  run_id TEXT NOT NULL REFERENCES runs (run_id) ON DELETE CASCADE,
  task_id TEXT NOT NULL,
  type TEXT NOT NULL,
  score DOUBLE PRECISION NOT NULL,
  payload JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS risks (
  id BIGSERIAL PRIMARY KEY,
  run_id TEXT NOT NULL REFERENCES runs (run_id) ON DELETE CASCADE,
  task_id TEXT NOT NULL,
  level TEXT NOT NULL,
  score DOUBLE PRECISION NOT NULL,
  payload JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS recommendations (
  id BIGSERIAL PRIMARY KEY,
  run_id TEXT NOT NULL REFERENCES runs (run_id) ON DELETE CASCADE,
  task_id TEXT NOT NULL,
  bottleneck_type TEXT NOT NULL,
  payload JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS metrics (
  id BIGSERIAL PRIMARY KEY,
  run_id TEXT NOT NULL REFERENCES runs (run_id) ON DELETE CASCADE,
  metric_group TEXT NOT NULL,
  name TEXT NOT NULL,
  value JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_run_id ON tasks (run_id);
CREATE INDEX IF NOT EXISTS idx_dependencies_run_id ON dependencies (run_id);
CREATE INDEX IF NOT EXISTS idx_bottlenecks_run_id ON bottlenecks (run_id);
CREATE INDEX IF NOT EXISTS idx_risks_run_id ON risks (run_id);
CREATE INDEX IF NOT EXISTS idx_recommendations_run_id ON recommendations (run_id);
CREATE INDEX IF NOT EXISTS idx_metrics_run_id ON metrics (run_id);
`

// statement is one parameterized write.
type statement struct {
	query string
	args  []any
}

// PostgresStore keeps runs in normalized Postgres tables.
type PostgresStore struct {
	db *sql.DB

	schemaMu    sync.Mutex
	schemaReady bool
}

// NewPostgresStore connects to dsn and verifies the connection.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.NewValidationError("postgres dsn is required").WithField("storage.postgres_dsn")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, errors.NewStorageError("open postgres", err).WithBackend(backendPostgres)
	}
	err = retry(ctx, retryAttempts, retryBaseDelay, func() error {
		if err := db.PingContext(ctx); err != nil {
			return errors.NewStorageError("connect postgres", errors.Join(errors.ErrStorageUnavailable, err)).
				WithBackend(backendPostgres).WithRetryable(ctx.Err() == nil)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

// ensureSchema creates the tables on first use. A failed attempt, for
// example one cut short by a cancelled context, is retried on the next call.
func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()
	if s.schemaReady {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return errors.NewStorageError("ensure schema", err).WithBackend(backendPostgres)
	}
	s.schemaReady = true
	return nil
}

func (s *PostgresStore) storageErr(msg, id string, err error) error {
	return errors.NewStorageError(msg, err).WithBackend(backendPostgres).WithRunID(id)
}

// Save writes the run and all of its rows in one transaction.
func (s *PostgresStore) Save(ctx context.Context, snap *Snapshot) (string, error) {
	if err := ValidateRunID(snap.RunID); err != nil {
		return "", err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return "", err
	}
	stmts, err := insertPlan(snap)
	if err != nil {
		return "", s.storageErr("encode run", snap.RunID, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", s.storageErr("begin transaction", snap.RunID, err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM runs WHERE run_id = $1)`, snap.RunID).Scan(&exists); err != nil {
		return "", s.storageErr("check run", snap.RunID, err)
	}
	if exists {
		return "", s.storageErr("save run", snap.RunID, errors.ErrRunExists)
	}

	for _, st := range stmts {
		if _, err := tx.ExecContext(ctx, st.query, st.args...); err != nil {
			return "", s.storageErr("insert run", snap.RunID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", s.storageErr("commit run", snap.RunID, err)
	}
	return snap.RunID, nil
}

// insertPlan maps a snapshot to the inserts that store it. The runs row
// comes first so child rows satisfy their foreign keys.
func insertPlan(snap *Snapshot) ([]statement, error) {
	settings, err := json.Marshal(snap.Settings)
	if err != nil {
		return nil, err
	}
	stages, err := json.Marshal(nonNil(snap.DegradedStages))
	if err != nil {
		return nil, err
	}
	metricsDegraded, err := json.Marshal(nonNil(snap.DegradedMetrics))
	if err != nil {
		return nil, err
	}

	id := snap.RunID
	stmts := []statement{{
		query: `INSERT INTO runs (run_id, created_at, settings, degraded_stages, degraded_metrics) VALUES ($1, $2, $3, $4, $5)`,
		args:  []any{id, snap.Timestamp.UTC(), string(settings), string(stages), string(metricsDegraded)},
	}}

	for _, t := range snap.Tasks {
		payload, err := json.Marshal(t)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, statement{
			query: `INSERT INTO tasks (run_id, task_id, owner, status, payload) VALUES ($1, $2, $3, $4, $5)`,
			args:  []any{id, t.ID, t.Owner, string(t.Status), string(payload)},
		})
	}
	for _, e := range snap.Edges {
		stmts = append(stmts, statement{
			query: `INSERT INTO dependencies (run_id, from_id, to_id) VALUES ($1, $2, $3)`,
			args:  []any{id, e.From, e.To},
		})
	}
	for _, b := range snap.Bottlenecks {
		payload, err := json.Marshal(b)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, statement{
			query: `INSERT INTO bottlenecks (run_id, task_id, type, score, payload) VALUES ($1, $2, $3, $4, $5)`,
			args:  []any{id, b.TaskID, string(b.Type), b.Score, string(payload)},
		})
	}
	for _, r := range snap.Risks {
		payload, err := json.Marshal(r)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, statement{
			query: `INSERT INTO risks (run_id, task_id, level, score, payload) VALUES ($1, $2, $3, $4, $5)`,
			args:  []any{id, r.TaskID, string(r.Level), r.Score, string(payload)},
		})
	}
	for _, g := range snap.Recommendations {
		payload, err := json.Marshal(g)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, statement{
			query: `INSERT INTO recommendations (run_id, task_id, bottleneck_type, payload) VALUES ($1, $2, $3, $4)`,
			args:  []any{id, g.TaskID, string(g.BottleneckType), string(payload)},
		})
	}
	for _, m := range snap.Metrics {
		stmts = append(stmts, statement{
			query: `INSERT INTO metrics (run_id, metric_group, name, value) VALUES ($1, $2, $3, $4)`,
			args:  []any{id, m.Group, m.Name, string(m.Value)},
		})
	}
	return stmts, nil
}

// Load reads a run and its rows in insertion order.
func (s *PostgresStore) Load(ctx context.Context, id string) (*Snapshot, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}

	snap := &Snapshot{RunID: id}
	var settings, stages, metricsDegraded []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT created_at, settings, degraded_stages, degraded_metrics FROM runs WHERE run_id = $1`, id,
	).Scan(&snap.Timestamp, &settings, &stages, &metricsDegraded)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("run", id)
	}
	if err != nil {
		return nil, s.storageErr("load run", id, err)
	}
	snap.Timestamp = snap.Timestamp.UTC()
	if err := errors.Join(
		decodeInto(settings, &snap.Settings),
		decodeInto(stages, &snap.DegradedStages),
		decodeInto(metricsDegraded, &snap.DegradedMetrics),
	); err != nil {
		return nil, s.storageErr("decode run", id, err)
	}
	if len(snap.DegradedStages) == 0 {
		snap.DegradedStages = nil
	}
	if len(snap.DegradedMetrics) == 0 {
		snap.DegradedMetrics = nil
	}

	if snap.Tasks, err = queryPayloads[task.Task](ctx, s.db,
		`SELECT payload FROM tasks WHERE run_id = $1 ORDER BY id`, id); err != nil {
		return nil, s.storageErr("load tasks", id, err)
	}
	if snap.Edges, err = s.loadEdges(ctx, id); err != nil {
		return nil, s.storageErr("load dependencies", id, err)
	}
	if snap.Bottlenecks, err = queryPayloads[detector.Bottleneck](ctx, s.db,
		`SELECT payload FROM bottlenecks WHERE run_id = $1 ORDER BY id`, id); err != nil {
		return nil, s.storageErr("load bottlenecks", id, err)
	}
	if snap.Risks, err = queryPayloads[forecast.Risk](ctx, s.db,
		`SELECT payload FROM risks WHERE run_id = $1 ORDER BY id`, id); err != nil {
		return nil, s.storageErr("load risks", id, err)
	}
	if snap.Recommendations, err = queryPayloads[recommend.Group](ctx, s.db,
		`SELECT payload FROM recommendations WHERE run_id = $1 ORDER BY id`, id); err != nil {
		return nil, s.storageErr("load recommendations", id, err)
	}
	if snap.Metrics, err = s.loadMetrics(ctx, id); err != nil {
		return nil, s.storageErr("load metrics", id, err)
	}
	return snap, nil
}

func decodeInto(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func queryPayloads[T any](ctx context.Context, db *sql.DB, query string, args ...any) ([]T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []T{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *PostgresStore) loadEdges(ctx context.Context, id string) ([]graph.Edge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT from_id, to_id FROM dependencies WHERE run_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	edges := []graph.Edge{}
	for rows.Next() {
		var e graph.Edge
		if err := rows.Scan(&e.From, &e.To); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

func (s *PostgresStore) loadMetrics(ctx context.Context, id string) ([]MetricRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT metric_group, name, value FROM metrics WHERE run_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []MetricRow
	for rows.Next() {
		var row MetricRow
		var value []byte
		if err := rows.Scan(&row.Group, &row.Name, &value); err != nil {
			return nil, err
		}
		row.Value = json.RawMessage(value)
		out = append(out, row)
	}
	return out, rows.Err()
}

const listSQL = `
SELECT r.run_id, r.created_at,
  (SELECT count(*) FROM tasks t WHERE t.run_id = r.run_id),
  (SELECT count(*) FROM bottlenecks b WHERE b.run_id = r.run_id),
  (SELECT count(*) FROM risks k WHERE k.run_id = r.run_id),
  (SELECT count(*) FROM recommendations c WHERE c.run_id = r.run_id)
FROM runs r
ORDER BY r.created_at DESC, r.run_id`

// List returns every run, newest first.
func (s *PostgresStore) List(ctx context.Context) ([]RunInfo, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, listSQL)
	if err != nil {
		return nil, s.storageErr("list runs", "", err)
	}
	defer func() { _ = rows.Close() }()

	runs := []RunInfo{}
	for rows.Next() {
		var info RunInfo
		if err := rows.Scan(&info.ID, &info.Timestamp, &info.Tasks, &info.Bottlenecks, &info.Risks, &info.RecommendationGroups); err != nil {
			return nil, s.storageErr("scan run", "", err)
		}
		info.Timestamp = info.Timestamp.UTC()
		runs = append(runs, info)
	}
	if err := rows.Err(); err != nil {
		return nil, s.storageErr("list runs", "", err)
	}
	return runs, nil
}

// Delete removes a run; child rows cascade.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE run_id = $1`, id)
	if err != nil {
		return s.storageErr("delete run", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.NewNotFoundError("run", id)
	}
	return nil
}

// Stats aggregates counts across every stored run.
func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return Stats{}, err
	}
	st := newStats()

	var first, last sql.NullTime
	err := s.db.QueryRowContext(ctx, `
SELECT
  (SELECT count(*) FROM runs),
  (SELECT count(*) FROM tasks),
  (SELECT count(*) FROM bottlenecks),
  (SELECT count(*) FROM risks),
  (SELECT count(*) FROM recommendations),
  (SELECT min(created_at) FROM runs),
  (SELECT max(created_at) FROM runs)`,
	).Scan(&st.Runs, &st.Tasks, &st.Bottlenecks, &st.Risks, &st.RecommendationGroups, &first, &last)
	if err != nil {
		return Stats{}, s.storageErr("aggregate runs", "", err)
	}
	if first.Valid {
		st.First = first.Time.UTC()
	}
	if last.Valid {
		st.Last = last.Time.UTC()
	}

	if err := s.countBy(ctx, `SELECT type, count(*) FROM bottlenecks GROUP BY type`, st.ByBottleneckType); err != nil {
		return Stats{}, s.storageErr("aggregate bottlenecks", "", err)
	}
	if err := s.countBy(ctx, `SELECT level, count(*) FROM risks GROUP BY level`, st.ByRiskLevel); err != nil {
		return Stats{}, s.storageErr("aggregate risks", "", err)
	}
	return st, nil
}

func (s *PostgresStore) countBy(ctx context.Context, query string, into map[string]int) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		into[key] = n
	}
	return rows.Err()
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// String describes the store for logs.
func (s *PostgresStore) String() string {
	return backendPostgres
}
