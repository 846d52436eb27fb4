package logging

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/danielpatrickdp/lossgate/internal/decision"
)

// #region log-selection
// LogSelection writes a provenance entry to the selection_log table.
func LogSelection(db *sql.DB, entry ProvenanceEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO selection_log (selection_id, problem, trigger_type, inputs_json, outcome, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		nullIfEmpty(entry.SelectionID),
		entry.Problem,
		entry.TriggerType,
		nullIfEmpty(entry.InputsJSON),
		entry.Outcome,
		nullIfEmpty(entry.Reason),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log selection: %w", err)
	}
	return nil
}

// #endregion log-selection

// #region entries
// Entries returns logged attempts in insertion order. An empty triggerType
// returns every trigger.
func Entries(db *sql.DB, triggerType string) ([]ProvenanceEntry, error) {
	q := `SELECT id, selection_id, problem, trigger_type, inputs_json, outcome, reason, created_at
		  FROM selection_log`
	var args []interface{}
	if triggerType != "" {
		q += ` WHERE trigger_type = ?`
		args = append(args, triggerType)
	}
	q += ` ORDER BY id ASC`

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query selection log: %w", err)
	}
	defer rows.Close()

	var entries []ProvenanceEntry
	for rows.Next() {
		var e ProvenanceEntry
		var selID, inputs, reason sql.NullString
		var createdStr string
		if err := rows.Scan(&e.ID, &selID, &e.Problem, &e.TriggerType, &inputs, &e.Outcome, &reason, &createdStr); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		e.SelectionID = selID.String
		e.InputsJSON = inputs.String
		e.Reason = reason.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// #endregion entries

// #region outcome
// Outcome classifies a selector error for the log.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSelected
	case errors.Is(err, decision.ErrAmbiguousSelection):
		return OutcomeAmbiguous
	}
	return OutcomeInvalid
}

// #endregion outcome

// #region inputs-json
// EncodeInputs serializes an InputsRecord for inputs_json.
func EncodeInputs(rec InputsRecord) (string, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("marshal inputs: %w", err)
	}
	return string(b), nil
}

// AttachInputs stores rec as entry.InputsJSON. When rec cannot be encoded
// (NaN or infinite values from a rejected attempt) entry is left without
// inputs and the error is returned, so the attempt can still be logged.
func AttachInputs(entry *ProvenanceEntry, rec InputsRecord) error {
	js, err := EncodeInputs(rec)
	if err != nil {
		entry.InputsJSON = ""
		return err
	}
	entry.InputsJSON = js
	return nil
}

// DecodeInputs parses inputs_json back into an InputsRecord.
func DecodeInputs(s string) (*InputsRecord, error) {
	var rec InputsRecord
	if err := json.Unmarshal([]byte(s), &rec); err != nil {
		return nil, fmt.Errorf("unmarshal inputs: %w", err)
	}
	return &rec, nil
}

// #endregion inputs-json

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
