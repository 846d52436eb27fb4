package problem

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/lossgate/internal/decision"
	"github.com/danielpatrickdp/lossgate/internal/hypothesis"
)

// #region file-types

// File is the on-disk description of a decision problem, in JSON or YAML.
type File struct {
	Name          string         `json:"name" yaml:"name"`
	Description   string         `json:"description,omitempty" yaml:"description,omitempty"`
	Hypotheses    []string       `json:"hypotheses,omitempty" yaml:"hypotheses,omitempty"`
	Probabilities []float64      `json:"probabilities,omitempty" yaml:"probabilities,omitempty"`
	Beta          *BetaSource    `json:"beta,omitempty" yaml:"beta,omitempty"`
	TieBreak      string         `json:"tie_break,omitempty" yaml:"tie_break,omitempty"`
	Epsilon       float64        `json:"epsilon,omitempty" yaml:"epsilon,omitempty"`
	Decisions     []DecisionSpec `json:"decisions" yaml:"decisions"`
	Epochs        []EpochSpec    `json:"epochs,omitempty" yaml:"epochs,omitempty"`
}

// BetaSource describes a belief given as a Beta density cut at Edges.
type BetaSource struct {
	Alpha float64   `json:"alpha" yaml:"alpha"`
	Beta  float64   `json:"beta" yaml:"beta"`
	Edges []float64 `json:"edges" yaml:"edges"`
}

// DecisionSpec is one alternative and its loss per hypothesis.
type DecisionSpec struct {
	Name   string    `json:"name" yaml:"name"`
	Losses []float64 `json:"losses" yaml:"losses"`
}

// EpochSpec is a later belief snapshot over the same decisions.
// Expected lists the decision names the selection should produce, or the
// single outcome "ambiguous" or "invalid".
type EpochSpec struct {
	ID            string      `json:"id" yaml:"id"`
	Probabilities []float64   `json:"probabilities,omitempty" yaml:"probabilities,omitempty"`
	Beta          *BetaSource `json:"beta,omitempty" yaml:"beta,omitempty"`
	Expected      []string    `json:"expected,omitempty" yaml:"expected,omitempty"`
}

// Format selects the decoder for Parse.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

var ErrInvalidProblem = errors.New("invalid problem")

// #endregion file-types

// #region loader

// FormatFor picks YAML for .yaml/.yml paths and JSON otherwise.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// Load reads, parses and validates a problem file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read problem %s: %w", path, err)
	}
	f, err := Parse(data, FormatFor(path))
	if err != nil {
		return nil, fmt.Errorf("problem %s: %w", path, err)
	}
	return f, nil
}

// Parse decodes data in the given format and validates the result.
func Parse(data []byte, format Format) (*File, error) {
	var f File
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// #endregion loader

// #region validate

// Validate checks the file's shape. Numeric preconditions (probability sums,
// loss vector lengths) are left to the selector so they fail the same way
// whichever surface the problem arrives through.
func (f *File) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidProblem)
	}
	if err := checkSource(f.Probabilities, f.Beta); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProblem, err)
	}
	if _, err := decision.ParseTieBreak(f.TieBreak); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProblem, err)
	}
	if f.Hypotheses != nil && f.Probabilities != nil && len(f.Hypotheses) != len(f.Probabilities) {
		return fmt.Errorf("%w: %d hypothesis labels for %d probabilities",
			ErrInvalidProblem, len(f.Hypotheses), len(f.Probabilities))
	}
	seen := make(map[string]bool, len(f.Epochs))
	for i, e := range f.Epochs {
		if e.ID == "" {
			return fmt.Errorf("%w: epoch %d has no id", ErrInvalidProblem, i)
		}
		if seen[e.ID] {
			return fmt.Errorf("%w: duplicate epoch id %q", ErrInvalidProblem, e.ID)
		}
		seen[e.ID] = true
		if err := checkSource(e.Probabilities, e.Beta); err != nil {
			return fmt.Errorf("%w: epoch %s: %v", ErrInvalidProblem, e.ID, err)
		}
	}
	return nil
}

func checkSource(p []float64, b *BetaSource) error {
	switch {
	case p != nil && b != nil:
		return errors.New("both probabilities and beta given")
	case p == nil && b == nil:
		return errors.New("one of probabilities or beta is required")
	}
	return nil
}

// #endregion validate

// #region conversion

// Distribution returns the problem's probability vector.
func (f *File) Distribution() ([]float64, error) {
	return resolve(f.Probabilities, f.Beta)
}

// Distribution returns the epoch's probability vector.
func (e *EpochSpec) Distribution() ([]float64, error) {
	return resolve(e.Probabilities, e.Beta)
}

// DecisionSet converts the decision specs to selector inputs.
func (f *File) DecisionSet() []decision.Decision {
	out := make([]decision.Decision, len(f.Decisions))
	for i, d := range f.Decisions {
		out[i] = decision.Decision{Name: d.Name, Losses: d.Losses}
	}
	return out
}

// Options returns the tie-break policy and tolerance named in the file.
func (f *File) Options() (decision.Options, error) {
	tb, err := decision.ParseTieBreak(f.TieBreak)
	if err != nil {
		return decision.Options{}, err
	}
	return decision.Options{TieBreak: tb, Epsilon: f.Epsilon}, nil
}

func resolve(p []float64, b *BetaSource) ([]float64, error) {
	if b != nil {
		return hypothesis.FromBeta(b.Alpha, b.Beta, b.Edges)
	}
	out := make([]float64, len(p))
	copy(out, p)
	return out, nil
}

// #endregion conversion
