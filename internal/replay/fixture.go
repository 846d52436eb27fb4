package replay

import (
	"fmt"

	"github.com/danielpatrickdp/lossgate/internal/problem"
)

// #region fixture-loader

// LoadFixture reads a problem file and builds its replay epochs.
func LoadFixture(path string) (*problem.File, []Epoch, error) {
	f, err := problem.Load(path)
	if err != nil {
		return nil, nil, err
	}
	epochs, err := FromProblem(f)
	if err != nil {
		return nil, nil, fmt.Errorf("fixture %s: %w", path, err)
	}
	return f, epochs, nil
}

// FromProblem converts a problem file into epochs sharing its decisions and
// options. A file without epochs yields one epoch, "initial", built from the
// top-level distribution.
func FromProblem(f *problem.File) ([]Epoch, error) {
	opts, err := f.Options()
	if err != nil {
		return nil, err
	}
	decisions := f.DecisionSet()

	if len(f.Epochs) == 0 {
		p, err := f.Distribution()
		if err != nil {
			return nil, fmt.Errorf("initial distribution: %w", err)
		}
		return []Epoch{{ID: "initial", Decisions: decisions, Probabilities: p, Options: opts}}, nil
	}

	epochs := make([]Epoch, len(f.Epochs))
	for i := range f.Epochs {
		es := &f.Epochs[i]
		p, err := es.Distribution()
		if err != nil {
			return nil, fmt.Errorf("epoch %s distribution: %w", es.ID, err)
		}
		epochs[i] = Epoch{
			ID:            es.ID,
			Decisions:     decisions,
			Probabilities: p,
			Options:       opts,
			Expected:      es.Expected,
		}
	}
	return epochs, nil
}

// #endregion fixture-loader
