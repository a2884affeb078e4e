// Package store is the embedded, append-oriented log of completed test
// cycles, backed by SQLite with WAL journaling and synchronous=NORMAL
// durability. All writes and queries are serialized through a
// database/sql pool capped at one open connection, so at most one
// statement runs against the database at a time.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ldpj/backend/internal/errs"
)

const schema = `
CREATE TABLE IF NOT EXISTS test_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	batch_id TEXT,
	cavity_id INTEGER NOT NULL,
	timestamp TEXT NOT NULL,
	pressure_data TEXT NOT NULL,
	angle_data TEXT,
	ai_data TEXT,
	position_data TEXT,
	features TEXT,
	label INTEGER,
	probability REAL,
	confidence REAL,
	model_version TEXT,
	duration_s REAL,
	point_count INTEGER,
	created_at TEXT DEFAULT (datetime('now', 'localtime'))
);
CREATE INDEX IF NOT EXISTS idx_test_records_timestamp ON test_records(timestamp);
CREATE INDEX IF NOT EXISTS idx_test_records_cavity_id ON test_records(cavity_id);
CREATE INDEX IF NOT EXISTS idx_test_records_label ON test_records(label);
`

// Record is one fully-populated row to persist. Raw series and features
// are marshaled to JSON text columns.
type Record struct {
	BatchID       string
	CavityID      int
	Timestamp     string
	Pressures     []float64
	Angles        []float64
	Analog        []float64
	Positions     []float64
	Features      map[string]float64
	Label         int
	Probability   float64
	Confidence    float64
	ModelVersion  string
	DurationS     float64
	PointCount    int
}

// Summary is a query_records row: everything but the raw series.
type Summary struct {
	ID           int64
	BatchID      string
	CavityID     int
	Timestamp    string
	Label        int
	Probability  float64
	Confidence   float64
	ModelVersion string
	DurationS    float64
	PointCount   int
	CreatedAt    string
}

// Detail is the full row returned by query_record_detail.
type Detail struct {
	Summary
	Pressures []float64
	Angles    []float64
	Analog    []float64
	Positions []float64
	Features  map[string]float64
}

// Filters narrows query_records results. Zero values mean "no filter"
// except Limit/Offset: Offset always applies, and a Limit <= 0 means the
// default of 100 (any Limit is capped at 10000).
type Filters struct {
	StartTime string
	EndTime   string
	CavityID  *int
	Label     *int
	Limit     int
	Offset    int
}

// Store is the single-connection handle over the SQLite database.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates the schema if absent, applies WAL + synchronous=NORMAL
// pragmas, and returns a ready Store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening store at %s: %w", path, errs.ErrStorage)
	}
	db.SetMaxOpenConns(1) // the driver does not support concurrent writers

	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		return nil, fmt.Errorf("setting WAL journal mode: %w", errs.ErrStorage)
	}
	if _, err := db.Exec(`PRAGMA synchronous=NORMAL;`); err != nil {
		return nil, fmt.Errorf("setting synchronous=NORMAL: %w", errs.ErrStorage)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("applying schema: %w", errs.ErrStorage)
	}

	return &Store{db: db, path: path}, nil
}

// LogRecord inserts a full record and returns the new id. Record ids are
// strictly increasing because all writes are serialized by the database's
// single-connection pool.
func (s *Store) LogRecord(r Record) (int64, error) {
	pressures, err := json.Marshal(r.Pressures)
	if err != nil {
		return 0, fmt.Errorf("marshaling pressures: %w", errs.ErrStorage)
	}
	angles, _ := json.Marshal(r.Angles)
	analog, _ := json.Marshal(r.Analog)
	positions, _ := json.Marshal(r.Positions)
	features, err := json.Marshal(r.Features)
	if err != nil {
		return 0, fmt.Errorf("marshaling features: %w", errs.ErrStorage)
	}

	res, err := s.db.Exec(
		`INSERT INTO test_records
			(batch_id, cavity_id, timestamp, pressure_data, angle_data, ai_data,
			 position_data, features, label, probability, confidence,
			 model_version, duration_s, point_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.BatchID, r.CavityID, r.Timestamp, string(pressures), string(angles),
		string(analog), string(positions), string(features), r.Label,
		r.Probability, r.Confidence, r.ModelVersion, r.DurationS, r.PointCount,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting record: %w", errs.ErrStorage)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading inserted id: %w", errs.ErrStorage)
	}
	return id, nil
}

// QueryRecords returns summary rows (no raw series) ordered by id
// descending, honoring Filters.
func (s *Store) QueryRecords(f Filters) ([]Summary, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > 10000 {
		limit = 10000
	}

	query := `SELECT id, batch_id, cavity_id, timestamp, label, probability,
		confidence, model_version, duration_s, point_count, created_at
		FROM test_records WHERE 1=1`
	args := make([]interface{}, 0, 6)

	if f.StartTime != "" {
		query += " AND timestamp >= ?"
		args = append(args, f.StartTime)
	}
	if f.EndTime != "" {
		query += " AND timestamp <= ?"
		args = append(args, f.EndTime)
	}
	if f.CavityID != nil {
		query += " AND cavity_id = ?"
		args = append(args, *f.CavityID)
	}
	if f.Label != nil {
		query += " AND label = ?"
		args = append(args, *f.Label)
	}
	query += " ORDER BY id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, f.Offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", errs.ErrStorage)
	}
	defer rows.Close()

	out := make([]Summary, 0)
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.BatchID, &s.CavityID, &s.Timestamp, &s.Label,
			&s.Probability, &s.Confidence, &s.ModelVersion, &s.DurationS,
			&s.PointCount, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning record row: %w", errs.ErrStorage)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// QueryRecordDetail returns the full row including raw series, or an error
// wrapping ErrStorage if id does not exist or the row cannot be read.
func (s *Store) QueryRecordDetail(id int64) (Detail, error) {
	row := s.db.QueryRow(
		`SELECT id, batch_id, cavity_id, timestamp, pressure_data, angle_data,
			ai_data, position_data, features, label, probability, confidence,
			model_version, duration_s, point_count, created_at
		 FROM test_records WHERE id = ?`, id)

	var d Detail
	var pressures, angles, analog, positions, features string
	if err := row.Scan(&d.ID, &d.BatchID, &d.CavityID, &d.Timestamp, &pressures,
		&angles, &analog, &positions, &features, &d.Label, &d.Probability,
		&d.Confidence, &d.ModelVersion, &d.DurationS, &d.PointCount, &d.CreatedAt); err != nil {
		return Detail{}, fmt.Errorf("querying record %d: %w", id, errs.ErrStorage)
	}

	_ = json.Unmarshal([]byte(pressures), &d.Pressures)
	_ = json.Unmarshal([]byte(angles), &d.Angles)
	_ = json.Unmarshal([]byte(analog), &d.Analog)
	_ = json.Unmarshal([]byte(positions), &d.Positions)
	_ = json.Unmarshal([]byte(features), &d.Features)
	return d, nil
}

// CountRecords returns the total row count.
func (s *Store) CountRecords() (int64, error) {
	var count int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM test_records`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting records: %w", errs.ErrStorage)
	}
	return count, nil
}

// GetDBSizeMB returns the current on-disk size in megabytes, or 0 on error.
func (s *Store) GetDBSizeMB() float64 {
	info, err := os.Stat(s.path)
	if err != nil {
		return 0
	}
	return float64(info.Size()) / (1024 * 1024)
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// NowLocalISO8601 returns the current local time formatted the way
// TestRecord.timestamp expects.
func NowLocalISO8601() string {
	return time.Now().Format("2006-01-02T15:04:05")
}
