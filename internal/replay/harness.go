package replay

import (
	"fmt"

	"github.com/danielpatrickdp/lossgate/internal/decision"
	"github.com/danielpatrickdp/lossgate/internal/logging"
)

// #region types
// Epoch is one belief snapshot to run through the selector.
type Epoch struct {
	ID            string
	Decisions     []decision.Decision
	Probabilities []float64
	Options       decision.Options

	// Expected holds the decision names the selection should choose, or the
	// single outcome "ambiguous" / "invalid". Empty means unchecked.
	Expected []string
}

// EpochResult captures the outcome of replaying one epoch.
type EpochResult struct {
	EpochID   string
	Action    string // "selected" | "ambiguous" | "invalid"
	Reason    string
	Chosen    []string
	Selection *decision.SelectionResult // nil unless selected
	Err       error

	Expected []string
	Checked  bool
	Match    bool
}

// Summary provides aggregate stats from a replay run.
type Summary struct {
	TotalEpochs int
	Selected    int
	Ambiguous   int
	Invalid     int
	Checked     int
	Matches     int
	Diverged    int
}

// #endregion types

// #region replay
// Replay runs each epoch through SelectMinimumExpectedLoss independently.
// Epochs never share state, so a failing epoch does not affect later ones.
func Replay(epochs []Epoch) []EpochResult {
	results := make([]EpochResult, 0, len(epochs))

	for _, ep := range epochs {
		r := EpochResult{
			EpochID:  ep.ID,
			Expected: ep.Expected,
			Checked:  len(ep.Expected) > 0,
		}

		sel, err := decision.SelectMinimumExpectedLoss(ep.Decisions, ep.Probabilities, ep.Options)
		r.Action = logging.Outcome(err)
		if err != nil {
			r.Err = err
			r.Reason = err.Error()
		} else {
			r.Selection = &sel
			r.Chosen = ChosenNames(ep.Decisions, sel)
			r.Reason = fmt.Sprintf("chosen expected loss %g", sel.Chosen[0].Value)
		}

		if r.Checked {
			r.Match = outcomeMatches(ep.Expected, r)
		}
		results = append(results, r)
	}

	return results
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []EpochResult) Summary {
	s := Summary{TotalEpochs: len(results)}
	for _, r := range results {
		switch r.Action {
		case logging.OutcomeSelected:
			s.Selected++
		case logging.OutcomeAmbiguous:
			s.Ambiguous++
		case logging.OutcomeInvalid:
			s.Invalid++
		}
		if !r.Checked {
			continue
		}
		s.Checked++
		if r.Match {
			s.Matches++
		} else {
			s.Diverged++
		}
	}
	return s
}

// #endregion replay

// #region helpers
// ChosenNames returns the names of the chosen decisions, falling back to
// "#index" for unnamed ones.
func ChosenNames(decisions []decision.Decision, sel decision.SelectionResult) []string {
	names := make([]string, len(sel.Chosen))
	for i, c := range sel.Chosen {
		names[i] = DecisionName(decisions, c.Index)
	}
	return names
}

// DecisionName returns the decision's name or "#index".
func DecisionName(decisions []decision.Decision, index int) string {
	if index >= 0 && index < len(decisions) && decisions[index].Name != "" {
		return decisions[index].Name
	}
	return fmt.Sprintf("#%d", index)
}

func outcomeMatches(expected []string, r EpochResult) bool {
	if len(expected) == 1 && (expected[0] == logging.OutcomeAmbiguous || expected[0] == logging.OutcomeInvalid) {
		return r.Action == expected[0]
	}
	if r.Action != logging.OutcomeSelected || len(expected) != len(r.Chosen) {
		return false
	}
	for i := range expected {
		if expected[i] != r.Chosen[i] {
			return false
		}
	}
	return true
}

// #endregion helpers
