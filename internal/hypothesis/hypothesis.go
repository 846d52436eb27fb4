// Package hypothesis materializes probability vectors over a finite set of
// hypotheses from outside sources: uniform or certain beliefs, raw weights,
// or a Beta density split into bins. The selector only consumes the vectors.
package hypothesis

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	ErrNoHypotheses = errors.New("no hypotheses")
	ErrBadWeights   = errors.New("bad weights")
	ErrBadBeta      = errors.New("bad beta parameters")
)

// Uniform returns n equal probabilities.
func Uniform(n int) ([]float64, error) {
	if n < 1 {
		return nil, ErrNoHypotheses
	}
	p := make([]float64, n)
	for i := range p {
		p[i] = 1 / float64(n)
	}
	return p, nil
}

// Certain returns a point mass on hypothesis i of n.
func Certain(n, i int) ([]float64, error) {
	if n < 1 {
		return nil, ErrNoHypotheses
	}
	if i < 0 || i >= n {
		return nil, fmt.Errorf("hypothesis %d out of range [0, %d)", i, n)
	}
	p := make([]float64, n)
	p[i] = 1
	return p, nil
}

// Normalize scales non-negative weights so they sum to 1. The input is not
// modified. Callers opt in explicitly; the selector rejects unnormalized input.
func Normalize(weights []float64) ([]float64, error) {
	if len(weights) == 0 {
		return nil, ErrNoHypotheses
	}
	for i, w := range weights {
		if !(w >= 0) || math.IsInf(w, 1) {
			return nil, fmt.Errorf("%w: weight %d is %g", ErrBadWeights, i, w)
		}
	}
	sum := floats.Sum(weights)
	if sum <= 0 || math.IsInf(sum, 1) {
		return nil, fmt.Errorf("%w: weights sum to %g", ErrBadWeights, sum)
	}
	p := make([]float64, len(weights))
	copy(p, weights)
	floats.Scale(1/sum, p)
	return p, nil
}

// #region beta
// FromBeta splits a Beta(alpha, beta) distribution on [0, 1] into
// len(edges)-1 hypotheses. Hypothesis i is "the rate lies in
// [edges[i], edges[i+1])" and gets CDF(edges[i+1]) - CDF(edges[i]).
// edges must start at 0, end at 1 and strictly increase.
func FromBeta(alpha, beta float64, edges []float64) ([]float64, error) {
	if !(alpha > 0) || !(beta > 0) || math.IsInf(alpha, 1) || math.IsInf(beta, 1) {
		return nil, fmt.Errorf("%w: alpha=%g beta=%g", ErrBadBeta, alpha, beta)
	}
	if len(edges) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 edges, got %d", ErrBadBeta, len(edges))
	}
	if edges[0] != 0 || edges[len(edges)-1] != 1 {
		return nil, fmt.Errorf("%w: edges must span [0, 1], got [%g, %g]", ErrBadBeta, edges[0], edges[len(edges)-1])
	}
	for i := 1; i < len(edges); i++ {
		if !(edges[i] > edges[i-1]) {
			return nil, fmt.Errorf("%w: edges not increasing at %d", ErrBadBeta, i)
		}
	}

	dist := distuv.Beta{Alpha: alpha, Beta: beta}
	p := make([]float64, len(edges)-1)
	prev := 0.0
	for i := range p {
		cdf := 1.0
		if i+1 < len(edges)-1 {
			cdf = dist.CDF(edges[i+1])
		}
		// CDF is monotone, but clamp rounding noise below zero
		p[i] = math.Max(0, cdf-prev)
		prev = cdf
	}
	return p, nil
}

// Threshold is the two-hypothesis case of FromBeta: the rate is below t,
// or at/above t.
func Threshold(alpha, beta, t float64) ([]float64, error) {
	if !(t > 0 && t < 1) {
		return nil, fmt.Errorf("%w: threshold %g outside (0, 1)", ErrBadBeta, t)
	}
	return FromBeta(alpha, beta, []float64{0, t, 1})
}

// #endregion beta
