package replay

import (
	"fmt"

	"github.com/danielpatrickdp/lossgate/internal/logging"
)

// #region log-extract

// FromLog rebuilds epochs from provenance entries so recorded selections can
// be re-run. Each epoch expects what was originally logged: the chosen names
// for a selection, otherwise the outcome itself. Entries without inputs are
// skipped and counted.
func FromLog(entries []logging.ProvenanceEntry) ([]Epoch, int, error) {
	var epochs []Epoch
	skipped := 0
	for _, e := range entries {
		if e.InputsJSON == "" {
			skipped++
			continue
		}
		in, err := logging.DecodeInputs(e.InputsJSON)
		if err != nil {
			return nil, skipped, fmt.Errorf("entry %d: %w", e.ID, err)
		}
		decisions := in.ToDecisions()

		ep := Epoch{
			ID:            fmt.Sprintf("%d:%s", e.ID, e.Problem),
			Decisions:     decisions,
			Probabilities: in.Probabilities,
			Options:       in.Options(),
		}
		if e.Outcome == logging.OutcomeSelected {
			for _, idx := range in.Chosen {
				ep.Expected = append(ep.Expected, DecisionName(decisions, idx))
			}
		} else {
			ep.Expected = []string{e.Outcome}
		}
		epochs = append(epochs, ep)
	}
	return epochs, skipped, nil
}

// #endregion log-extract
