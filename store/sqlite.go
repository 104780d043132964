// Package store persists training runs, their parameters and evaluation
// metrics in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bio-ontology-research-group/OntoML/evaluation"
	"github.com/bio-ontology-research-group/OntoML/model"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"gonum.org/v1/gonum/mat"
)

var ErrRunNotFound = errors.New("run not found")

// Run describes one stored checkpoint.
type Run struct {
	ID        string       `json:"id"`
	CreatedAt time.Time    `json:"created_at"`
	Config    model.Config `json:"config"`
	Epochs    int          `json:"epochs"`
	Classes   int          `json:"classes"`
	Roles     int          `json:"roles"`
}

// MetricRecord is one named evaluation value of a run.
type MetricRecord struct {
	ID         int64     `json:"id"`
	RunID      string    `json:"run_id"`
	Relation   string    `json:"relation"`
	Name       string    `json:"name"`
	Filtered   bool      `json:"filtered"`
	Value      float64   `json:"value"`
	RecordedAt time.Time `json:"recorded_at"`
}

// MetricFilter narrows GetMetrics. Zero fields match everything.
type MetricFilter struct {
	RunID    string
	Name     string
	Filtered *bool
	Limit    int
	Offset   int
}

// ExportFormat selects the ExportMetrics encoding.
type ExportFormat string

const (
	ExportFormatJSON ExportFormat = "json"
	ExportFormatCSV  ExportFormat = "csv"
)

// SQLiteStore implements run persistence on SQLite
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at dbPath
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	s := &SQLiteStore{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create tables")
	}
	return s, nil
}

func (s *SQLiteStore) createTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL,
		config TEXT NOT NULL,
		epochs INTEGER NOT NULL,
		classes TEXT NOT NULL,
		roles TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS parameters (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		data BLOB NOT NULL,
		PRIMARY KEY (run_id, name)
	);

	CREATE TABLE IF NOT EXISTS metrics (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		relation TEXT NOT NULL,
		name TEXT NOT NULL,
		filtered INTEGER NOT NULL,
		value REAL NOT NULL,
		recorded_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_metrics_run ON metrics(run_id);
	CREATE INDEX IF NOT EXISTS idx_metrics_name ON metrics(name);
	`

	_, err := s.db.Exec(query)
	return err
}

// SaveCheckpoint stores cp under a new run ID and returns it.
func (s *SQLiteStore) SaveCheckpoint(ctx context.Context, cp *model.Checkpoint) (string, error) {
	runID := uuid.NewString()
	if err := s.SaveCheckpointAs(ctx, runID, cp); err != nil {
		return "", err
	}
	return runID, nil
}

// SaveCheckpointAs stores cp under runID, which must not exist yet.
func (s *SQLiteStore) SaveCheckpointAs(ctx context.Context, runID string, cp *model.Checkpoint) error {
	if cp == nil {
		return errors.New("checkpoint is nil")
	}
	cfg, err := json.Marshal(cp.Config)
	if err != nil {
		return errors.Wrap(err, "failed to encode config")
	}
	classes, err := json.Marshal(cp.Classes)
	if err != nil {
		return errors.Wrap(err, "failed to encode classes")
	}
	roles, err := json.Marshal(cp.Roles)
	if err != nil {
		return errors.Wrap(err, "failed to encode roles")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, config, epochs, classes, roles) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, time.Now().UTC(), string(cfg), cp.Epochs, string(classes), string(roles),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to insert run %s", runID)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO parameters (run_id, name, data) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for name, p := range cp.Parameters {
		blob, err := p.MarshalBinary()
		if err != nil {
			return errors.Wrapf(err, "failed to encode parameter %s", name)
		}
		if _, err := stmt.ExecContext(ctx, runID, name, blob); err != nil {
			return errors.Wrapf(err, "failed to insert parameter %s", name)
		}
	}

	return tx.Commit()
}

// LoadCheckpoint reads back the checkpoint of runID.
func (s *SQLiteStore) LoadCheckpoint(ctx context.Context, runID string) (*model.Checkpoint, error) {
	var cfg, classes, roles string
	cp := &model.Checkpoint{Parameters: make(map[string]*mat.Dense)}
	err := s.db.QueryRowContext(ctx,
		`SELECT config, epochs, classes, roles FROM runs WHERE id = ?`, runID,
	).Scan(&cfg, &cp.Epochs, &classes, &roles)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrRunNotFound, "%s", runID)
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(cfg), &cp.Config); err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}
	if err := json.Unmarshal([]byte(classes), &cp.Classes); err != nil {
		return nil, errors.Wrap(err, "failed to decode classes")
	}
	if err := json.Unmarshal([]byte(roles), &cp.Roles); err != nil {
		return nil, errors.Wrap(err, "failed to decode roles")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT name, data FROM parameters WHERE run_id = ?`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		var blob []byte
		if err := rows.Scan(&name, &blob); err != nil {
			return nil, err
		}
		var d mat.Dense
		if err := d.UnmarshalBinary(blob); err != nil {
			return nil, errors.Wrapf(err, "failed to decode parameter %s", name)
		}
		cp.Parameters[name] = &d
	}
	return cp, rows.Err()
}

// ListRuns returns stored runs, newest first. limit <= 0 returns all.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, created_at, config, epochs, classes, roles FROM runs ORDER BY created_at DESC, id`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var cfg, classes, roles string
		if err := rows.Scan(&run.ID, &run.CreatedAt, &cfg, &run.Epochs, &classes, &roles); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(cfg), &run.Config); err != nil {
			return nil, errors.Wrapf(err, "failed to decode config of %s", run.ID)
		}
		var names []string
		if err := json.Unmarshal([]byte(classes), &names); err != nil {
			return nil, err
		}
		run.Classes = len(names)
		if err := json.Unmarshal([]byte(roles), &names); err != nil {
			return nil, err
		}
		run.Roles = len(names)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// LatestRun returns the ID of the most recent run.
func (s *SQLiteStore) LatestRun(ctx context.Context) (string, error) {
	runs, err := s.ListRuns(ctx, 1)
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", ErrRunNotFound
	}
	return runs[0].ID, nil
}

// DeleteRun removes a run with its parameters and metrics.
func (s *SQLiteStore) DeleteRun(ctx context.Context, runID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, runID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrapf(ErrRunNotFound, "%s", runID)
	}
	return nil
}

// RecordMetric stores one metric value.
func (s *SQLiteStore) RecordMetric(ctx context.Context, record MetricRecord) error {
	if record.RecordedAt.IsZero() {
		record.RecordedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO metrics (run_id, relation, name, filtered, value, recorded_at) VALUES (?, ?, ?, ?, ?, ?)`,
		record.RunID, record.Relation, record.Name, record.Filtered, record.Value, record.RecordedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to record metric %s", record.Name)
	}
	return nil
}

// RecordEvaluation stores the raw and filtered metrics of res for runID.
func (s *SQLiteStore) RecordEvaluation(ctx context.Context, runID string, res *evaluation.Result) error {
	now := time.Now().UTC()
	for _, filtered := range []bool{false, true} {
		m := res.Raw
		if filtered {
			m = res.Filtered
		}
		values := []struct {
			name  string
			value float64
		}{
			{"mean_rank", m.MeanRank},
			{"hits_1", float64(m.Hits1)},
			{"hits_10", float64(m.Hits10)},
			{"hits_100", float64(m.Hits100)},
			{"auc", m.AUC},
		}
		for _, v := range values {
			err := s.RecordMetric(ctx, MetricRecord{
				RunID:      runID,
				Relation:   res.Relation,
				Name:       v.name,
				Filtered:   filtered,
				Value:      v.value,
				RecordedAt: now,
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// GetMetrics retrieves metrics with filters, oldest first.
func (s *SQLiteStore) GetMetrics(ctx context.Context, filter MetricFilter) ([]MetricRecord, error) {
	whereClause, args := buildWhereClause(filter)
	query := fmt.Sprintf(`
		SELECT id, run_id, relation, name, filtered, value, recorded_at
		FROM metrics
		%s
		ORDER BY id
	`, whereClause)

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []MetricRecord
	for rows.Next() {
		var r MetricRecord
		if err := rows.Scan(&r.ID, &r.RunID, &r.Relation, &r.Name, &r.Filtered, &r.Value, &r.RecordedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func buildWhereClause(filter MetricFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if filter.RunID != "" {
		conditions = append(conditions, "run_id = ?")
		args = append(args, filter.RunID)
	}
	if filter.Name != "" {
		conditions = append(conditions, "name = ?")
		args = append(args, filter.Name)
	}
	if filter.Filtered != nil {
		conditions = append(conditions, "filtered = ?")
		args = append(args, *filter.Filtered)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

// ExportMetrics exports metrics in the given format
func (s *SQLiteStore) ExportMetrics(ctx context.Context, filter MetricFilter, format ExportFormat) ([]byte, error) {
	records, err := s.GetMetrics(ctx, filter)
	if err != nil {
		return nil, err
	}

	switch format {
	case ExportFormatJSON:
		return json.MarshalIndent(records, "", "  ")
	case ExportFormatCSV:
		return exportCSV(records)
	default:
		return nil, errors.Newf("unsupported export format: %s", format)
	}
}

func exportCSV(records []MetricRecord) ([]byte, error) {
	var buf strings.Builder
	writer := csv.NewWriter(&buf)

	header := []string{"ID", "Run", "Relation", "Name", "Filtered", "Value", "Recorded At"}
	if err := writer.Write(header); err != nil {
		return nil, err
	}
	for _, r := range records {
		row := []string{
			strconv.FormatInt(r.ID, 10),
			r.RunID,
			r.Relation,
			r.Name,
			strconv.FormatBool(r.Filtered),
			strconv.FormatFloat(r.Value, 'g', -1, 64),
			r.RecordedAt.Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			return nil, err
		}
	}

	writer.Flush()
	return []byte(buf.String()), writer.Error()
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
