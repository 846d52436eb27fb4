package decision

import (
	"fmt"
	"math"
	"strings"
)

// #region compute
// ComputeExpectedLosses returns E[L(d_k)] = sum_i probabilities[i] * losses_k[i]
// for every decision, in input order.
//
// Summation runs left to right in hypothesis order, so identical inputs give
// bit-identical results. Reordering hypotheses may change the last bits.
// An epsilon of zero means DefaultEpsilon.
func ComputeExpectedLosses(decisions []Decision, probabilities []float64, epsilon float64) ([]ExpectedLoss, error) {
	eps, err := resolveEpsilon(epsilon)
	if err != nil {
		return nil, err
	}
	if err := ValidateDistribution(probabilities, eps); err != nil {
		return nil, err
	}
	if len(decisions) == 0 {
		return nil, ErrEmptyDecisionSet
	}

	n := len(probabilities)
	table := make([]ExpectedLoss, len(decisions))
	for k, d := range decisions {
		if len(d.Losses) != n {
			return nil, fmt.Errorf("%w: decision %s has %d losses, want %d",
				ErrDimensionMismatch, label(k, d.Name), len(d.Losses), n)
		}
		var sum float64
		for i, w := range d.Losses {
			if math.IsNaN(w) || math.IsInf(w, 0) {
				return nil, fmt.Errorf("%w: decision %s loss %d is %g",
					ErrInvalidLoss, label(k, d.Name), i, w)
			}
			// explicit conversion keeps the compiler from fusing into an FMA
			sum += float64(probabilities[i] * w)
		}
		// a sum within epsilon of 1 can still push huge losses past MaxFloat64
		if math.IsInf(sum, 0) || math.IsNaN(sum) {
			return nil, fmt.Errorf("%w: expected loss of decision %s overflows",
				ErrInvalidLoss, label(k, d.Name))
		}
		table[k] = ExpectedLoss{Index: k, Name: d.Name, Value: sum}
	}
	return table, nil
}

// #endregion compute

// #region select
// SelectMinimumExpectedLoss computes every decision's expected loss and picks
// the minimum. Decisions within opts.Epsilon of the minimum tie, and
// opts.TieBreak decides among them. Errors from ComputeExpectedLosses are
// returned unchanged.
func SelectMinimumExpectedLoss(decisions []Decision, probabilities []float64, opts Options) (SelectionResult, error) {
	tb, err := ParseTieBreak(string(opts.TieBreak))
	if err != nil {
		return SelectionResult{}, err
	}
	eps, err := resolveEpsilon(opts.Epsilon)
	if err != nil {
		return SelectionResult{}, err
	}

	table, err := ComputeExpectedLosses(decisions, probabilities, eps)
	if err != nil {
		return SelectionResult{}, err
	}

	min := table[0].Value
	for _, e := range table[1:] {
		if e.Value < min {
			min = e.Value
		}
	}

	var ties []ExpectedLoss
	for _, e := range table {
		if e.Value == min || e.Value-min <= eps {
			ties = append(ties, e)
		}
	}

	result := SelectionResult{
		TieBreak: tb,
		Epsilon:  eps,
		Table:    table,
	}

	switch tb {
	case TieBreakAll:
		result.Chosen = ties
	case TieBreakError:
		if len(ties) > 1 {
			return SelectionResult{}, fmt.Errorf("%w: decisions %s share expected loss %g within %g",
				ErrAmbiguousSelection, tieLabels(ties, decisions), min, eps)
		}
		result.Chosen = ties[:1]
	default:
		result.Chosen = ties[:1]
	}
	return result, nil
}

// #endregion select

// #region validation
// ValidateDistribution checks that probabilities is a non-empty vector of
// values in [0, 1] whose sum is within epsilon of 1. It never rescales.
func ValidateDistribution(probabilities []float64, epsilon float64) error {
	if len(probabilities) == 0 {
		return fmt.Errorf("%w: no hypotheses", ErrInvalidDistribution)
	}
	var sum float64
	for i, p := range probabilities {
		if !(p >= 0 && p <= 1) {
			return fmt.Errorf("%w: probability %d is %g, outside [0, 1]", ErrInvalidDistribution, i, p)
		}
		sum += p
	}
	if math.Abs(sum-1) > epsilon {
		return fmt.Errorf("%w: probabilities sum to %g, want 1 within %g", ErrInvalidDistribution, sum, epsilon)
	}
	return nil
}

// #endregion validation

// #region helpers
func resolveEpsilon(eps float64) (float64, error) {
	if eps == 0 {
		return DefaultEpsilon, nil
	}
	if !(eps > 0) || math.IsInf(eps, 1) {
		return 0, fmt.Errorf("%w: epsilon %g must be positive and finite", ErrInvalidOptions, eps)
	}
	return eps, nil
}

func label(index int, name string) string {
	if name == "" {
		return fmt.Sprintf("#%d", index)
	}
	return fmt.Sprintf("#%d (%s)", index, name)
}

func tieLabels(ties []ExpectedLoss, decisions []Decision) string {
	parts := make([]string, len(ties))
	for i, t := range ties {
		parts[i] = label(t.Index, decisions[t.Index].Name)
	}
	return strings.Join(parts, ", ")
}

// #endregion helpers
