package store

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/lossgate/internal/decision"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS selections (
	selection_id  TEXT PRIMARY KEY,
	parent_id     TEXT,
	problem       TEXT NOT NULL,
	probabilities BLOB NOT NULL,
	loss_table    TEXT NOT NULL,
	chosen        TEXT NOT NULL,
	tie_break     TEXT NOT NULL,
	epsilon       REAL NOT NULL,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (parent_id) REFERENCES selections(selection_id)
);

CREATE INDEX IF NOT EXISTS selections_problem ON selections(problem);

CREATE TABLE IF NOT EXISTS selection_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	selection_id  TEXT,
	problem       TEXT NOT NULL,
	trigger_type  TEXT NOT NULL,
	inputs_json   TEXT,
	outcome       TEXT NOT NULL,
	reason        TEXT,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (selection_id) REFERENCES selections(selection_id)
);

CREATE TABLE IF NOT EXISTS latest_selection (
	problem       TEXT PRIMARY KEY,
	selection_id  TEXT NOT NULL,
	FOREIGN KEY (selection_id) REFERENCES selections(selection_id)
);
`

// #endregion schema

// ErrNotFound is returned when a selection or problem has no stored record.
var ErrNotFound = errors.New("not found")

// #region store-struct
// Store keeps a versioned history of selections in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// pragmas are per connection; one connection keeps foreign_keys in force
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion db-accessor

// #region commit
// Commit stores a successful selection as the newest version for problem.
// The previous latest selection, if any, becomes its parent.
func (s *Store) Commit(problem string, probabilities []float64, res decision.SelectionResult) (Record, error) {
	rec := Record{
		SelectionID:   uuid.New().String(),
		Problem:       problem,
		Probabilities: append([]float64(nil), probabilities...),
		Table:         append([]decision.ExpectedLoss(nil), res.Table...),
		Chosen:        res.ChosenIndices(),
		TieBreak:      res.TieBreak,
		Epsilon:       res.Epsilon,
		CreatedAt:     time.Now().UTC(),
	}

	tableJSON, err := json.Marshal(rec.Table)
	if err != nil {
		return Record{}, fmt.Errorf("marshal loss table: %w", err)
	}
	chosenJSON, err := json.Marshal(rec.Chosen)
	if err != nil {
		return Record{}, fmt.Errorf("marshal chosen: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return Record{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var parent sql.NullString
	err = tx.QueryRow(`SELECT selection_id FROM latest_selection WHERE problem = ?`, problem).Scan(&parent)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("get latest: %w", err)
	}
	rec.ParentID = parent.String

	_, err = tx.Exec(
		`INSERT INTO selections (selection_id, parent_id, problem, probabilities, loss_table, chosen, tie_break, epsilon, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SelectionID, parent, problem, encodeVector(rec.Probabilities), string(tableJSON),
		string(chosenJSON), string(rec.TieBreak), rec.Epsilon, rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Record{}, fmt.Errorf("insert selection: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO latest_selection (problem, selection_id) VALUES (?, ?)
		 ON CONFLICT(problem) DO UPDATE SET selection_id = excluded.selection_id`,
		problem, rec.SelectionID,
	)
	if err != nil {
		return Record{}, fmt.Errorf("set latest: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Record{}, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

// #endregion commit

// #region get-latest
// Latest returns the newest selection recorded for problem.
func (s *Store) Latest(problem string) (Record, error) {
	var id string
	err := s.db.QueryRow(`SELECT selection_id FROM latest_selection WHERE problem = ?`, problem).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("latest for %s: %w", problem, ErrNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("get latest: %w", err)
	}
	return s.Get(id)
}

// #endregion get-latest

// #region get
const selectColumns = `s.selection_id, s.parent_id, s.problem, s.probabilities, s.loss_table,
	s.chosen, s.tie_break, s.epsilon, s.created_at`

// Get retrieves a selection by ID.
func (s *Store) Get(id string) (Record, error) {
	row := s.db.QueryRow(`SELECT `+selectColumns+` FROM selections s WHERE s.selection_id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("selection %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("get selection %s: %w", id, err)
	}
	return rec, nil
}

// #endregion get

// #region list
// List returns the most recent selections, newest first. An empty problem
// lists every problem.
func (s *Store) List(problem string, limit int) ([]Record, error) {
	q := `SELECT ` + selectColumns + ` FROM selections s`
	var args []interface{}
	if problem != "" {
		q += ` WHERE s.problem = ?`
		args = append(args, problem)
	}
	q += ` ORDER BY s.rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list selections: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ListWithProvenance is List joined with the selection_log row that recorded
// each selection. Selections logged without provenance have empty fields.
func (s *Store) ListWithProvenance(problem string, limit int) ([]RecordWithProvenance, error) {
	q := `SELECT ` + selectColumns + `, l.trigger_type, l.outcome, l.reason
		  FROM selections s
		  LEFT JOIN selection_log l ON l.selection_id = s.selection_id`
	var args []interface{}
	if problem != "" {
		q += ` WHERE s.problem = ?`
		args = append(args, problem)
	}
	q += ` ORDER BY s.rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list with provenance: %w", err)
	}
	defer rows.Close()

	var out []RecordWithProvenance
	for rows.Next() {
		var rp RecordWithProvenance
		var trigger, outcome, reason sql.NullString
		rec, err := scanRecord(rows, &trigger, &outcome, &reason)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		rp.Record = rec
		rp.TriggerType = trigger.String
		rp.Outcome = outcome.String
		rp.Reason = reason.String
		out = append(out, rp)
	}
	return out, rows.Err()
}

// #endregion list

// #region scan
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(sc scanner, extra ...interface{}) (Record, error) {
	var rec Record
	var parentID sql.NullString
	var vecBlob []byte
	var tableJSON, chosenJSON, tieBreak, createdStr string

	dest := []interface{}{
		&rec.SelectionID, &parentID, &rec.Problem, &vecBlob, &tableJSON,
		&chosenJSON, &tieBreak, &rec.Epsilon, &createdStr,
	}
	if err := sc.Scan(append(dest, extra...)...); err != nil {
		return Record{}, err
	}

	rec.ParentID = parentID.String
	rec.Probabilities = decodeVector(vecBlob)
	rec.TieBreak = decision.TieBreak(tieBreak)
	if err := json.Unmarshal([]byte(tableJSON), &rec.Table); err != nil {
		return Record{}, fmt.Errorf("unmarshal loss table: %w", err)
	}
	if err := json.Unmarshal([]byte(chosenJSON), &rec.Chosen); err != nil {
		return Record{}, fmt.Errorf("unmarshal chosen: %w", err)
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return rec, nil
}

// #endregion scan

// #region vector-encoding
func encodeVector(v []float64) []byte {
	buf := make([]byte, len(v)*8)
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float64 {
	v := make([]float64, len(b)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return v
}

// #endregion vector-encoding
