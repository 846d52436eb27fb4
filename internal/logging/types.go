package logging

import (
	"time"

	"github.com/danielpatrickdp/lossgate/internal/decision"
)

// #region outcomes
const (
	OutcomeSelected  = "selected"
	OutcomeAmbiguous = "ambiguous"
	OutcomeInvalid   = "invalid"
)

// #endregion outcomes

// #region provenance-entry
// ProvenanceEntry is a single row in the selection_log table.
type ProvenanceEntry struct {
	ID          int64
	SelectionID string // empty when the attempt failed
	Problem     string
	TriggerType string // "cli" | "rpc" | "replay"
	InputsJSON  string
	Outcome     string // "selected" | "ambiguous" | "invalid"
	Reason      string
	CreatedAt   time.Time
}

// #endregion provenance-entry

// #region inputs-record
// InputsRecord captures the exact selector inputs for one attempt.
// Serialized as JSON into selection_log.inputs_json for deterministic replay.
type InputsRecord struct {
	Problem       string           `json:"problem"`
	Probabilities []float64        `json:"probabilities"`
	Decisions     []InputsDecision `json:"decisions"`
	TieBreak      string           `json:"tie_break"`
	Epsilon       float64          `json:"epsilon"`

	// Selector output, absent on failure
	Chosen []int `json:"chosen,omitempty"`
}

// InputsDecision is one decision inside an InputsRecord.
type InputsDecision struct {
	Name   string    `json:"name,omitempty"`
	Losses []float64 `json:"losses"`
}

// #endregion inputs-record

// NewInputsRecord snapshots the selector inputs.
func NewInputsRecord(problem string, decisions []decision.Decision, probabilities []float64, opts decision.Options) InputsRecord {
	rec := InputsRecord{
		Problem:       problem,
		Probabilities: append([]float64(nil), probabilities...),
		Decisions:     make([]InputsDecision, len(decisions)),
		TieBreak:      string(opts.TieBreak),
		Epsilon:       opts.Epsilon,
	}
	for i, d := range decisions {
		rec.Decisions[i] = InputsDecision{Name: d.Name, Losses: append([]float64(nil), d.Losses...)}
	}
	return rec
}

// ToDecisions converts the recorded decisions back to selector inputs.
func (r InputsRecord) ToDecisions() []decision.Decision {
	out := make([]decision.Decision, len(r.Decisions))
	for i, d := range r.Decisions {
		out[i] = decision.Decision{Name: d.Name, Losses: d.Losses}
	}
	return out
}

// Options returns the recorded tie-break policy and tolerance.
func (r InputsRecord) Options() decision.Options {
	return decision.Options{TieBreak: decision.TieBreak(r.TieBreak), Epsilon: r.Epsilon}
}
