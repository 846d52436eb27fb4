package store

import (
	"time"

	"github.com/danielpatrickdp/lossgate/internal/decision"
)

// #region selection-record
// Record is a stored selection: the belief it was made under, the full
// expected-loss table, and which decisions were chosen.
type Record struct {
	SelectionID   string
	ParentID      string // previous selection for the same problem
	Problem       string
	Probabilities []float64
	Table         []decision.ExpectedLoss
	Chosen        []int
	TieBreak      decision.TieBreak
	Epsilon       float64
	CreatedAt     time.Time
}

// #endregion selection-record

// #region record-with-provenance
// RecordWithProvenance pairs a selection with its provenance row fields.
type RecordWithProvenance struct {
	Record
	TriggerType string
	Outcome     string
	Reason      string
}

// #endregion record-with-provenance
