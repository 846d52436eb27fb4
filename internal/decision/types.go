package decision

import (
	"fmt"
	"strings"
)

// #region tie-break
// TieBreak names the policy applied when several decisions share the
// minimum expected loss within Epsilon.
type TieBreak string

const (
	TieBreakFirst TieBreak = "first" // lowest-index tying decision
	TieBreakAll   TieBreak = "all"   // every tying decision
	TieBreakError TieBreak = "error" // fail with ErrAmbiguousSelection
)

// ParseTieBreak maps a flag or file value to a TieBreak.
// The empty string selects TieBreakFirst.
func ParseTieBreak(s string) (TieBreak, error) {
	switch TieBreak(strings.ToLower(strings.TrimSpace(s))) {
	case "", TieBreakFirst:
		return TieBreakFirst, nil
	case TieBreakAll:
		return TieBreakAll, nil
	case TieBreakError:
		return TieBreakError, nil
	}
	return "", fmt.Errorf("%w: unknown tie-break %q (want first, all or error)", ErrInvalidOptions, s)
}

// #endregion tie-break

// #region options
// DefaultEpsilon is the tolerance used for the probability sum check and for
// tie detection when Options.Epsilon is zero.
const DefaultEpsilon = 1e-6

// Options configures a selection. The zero value is usable.
type Options struct {
	TieBreak TieBreak
	Epsilon  float64
}

// DefaultOptions returns first-wins tie-breaking with DefaultEpsilon.
func DefaultOptions() Options {
	return Options{
		TieBreak: TieBreakFirst,
		Epsilon:  DefaultEpsilon,
	}
}

// #endregion options

// #region decision
// Decision is one alternative action. Losses[i] is the loss incurred when
// this decision is taken and hypothesis i turns out to be true.
type Decision struct {
	Name   string
	Losses []float64
}

// #endregion decision

// #region expected-loss
// ExpectedLoss is the probability-weighted loss of the decision at Index.
type ExpectedLoss struct {
	Index int     `json:"index"`
	Name  string  `json:"name,omitempty"`
	Value float64 `json:"expected_loss"`
}

// #endregion expected-loss

// #region selection-result
// SelectionResult is the output of SelectMinimumExpectedLoss.
type SelectionResult struct {
	TieBreak TieBreak       `json:"tie_break"`
	Epsilon  float64        `json:"epsilon"`
	Chosen   []ExpectedLoss `json:"chosen"` // one entry unless TieBreakAll found a tie
	Table    []ExpectedLoss `json:"table"`  // every decision, input order
}

// ChosenIndex returns the index of the first chosen decision.
func (r SelectionResult) ChosenIndex() int {
	if len(r.Chosen) == 0 {
		return -1
	}
	return r.Chosen[0].Index
}

// ChosenIndices returns the indices of all chosen decisions in input order.
func (r SelectionResult) ChosenIndices() []int {
	out := make([]int, len(r.Chosen))
	for i, c := range r.Chosen {
		out[i] = c.Index
	}
	return out
}

// IsChosen reports whether the decision at index was selected.
func (r SelectionResult) IsChosen(index int) bool {
	for _, c := range r.Chosen {
		if c.Index == index {
			return true
		}
	}
	return false
}

// MinExpectedLoss returns the algebraically smallest expected loss in the table.
func (r SelectionResult) MinExpectedLoss() float64 {
	if len(r.Table) == 0 {
		return 0
	}
	min := r.Table[0].Value
	for _, e := range r.Table[1:] {
		if e.Value < min {
			min = e.Value
		}
	}
	return min
}

// #endregion selection-result
