package drift

import (
	"math"
	"sort"
)

// psiBins is the number of quantile bins used for the population stability
// index. Ten deciles is the conventional choice.
const psiBins = 10

// psiEpsilon floors bin proportions so the log ratio stays finite when a bin
// is empty on one side.
const psiEpsilon = 1e-6

// populationStabilityIndex computes the PSI between a baseline and a current
// value distribution. Bin edges are the baseline deciles, so the baseline
// proportions are uniform by construction and the index measures how far the
// current distribution has moved away from them.
//
// PSI < 0.1 is conventionally "no shift", 0.1–0.25 "moderate", > 0.25
// "significant".
func populationStabilityIndex(baseline, current []float64) float64 {
	edges := quantileEdges(baseline, psiBins)

	baseProps := binProportions(baseline, edges)
	currProps := binProportions(current, edges)

	var psi float64
	for i := range baseProps {
		b := math.Max(baseProps[i], psiEpsilon)
		c := math.Max(currProps[i], psiEpsilon)
		psi += (c - b) * math.Log(c/b)
	}
	return psi
}

// quantileEdges returns the interior bin edges (bins-1 values) taken from the
// sorted baseline values.
func quantileEdges(values []float64, bins int) []float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	edges := make([]float64, 0, bins-1)
	for i := 1; i < bins; i++ {
		rank := int(math.Ceil(float64(i)/float64(bins)*float64(len(sorted)))) - 1
		if rank < 0 {
			rank = 0
		}
		edges = append(edges, sorted[rank])
	}
	return edges
}

// binProportions returns the fraction of values falling into each bin defined
// by the interior edges. Values equal to an edge go to the lower bin.
func binProportions(values []float64, edges []float64) []float64 {
	counts := make([]int, len(edges)+1)
	for _, v := range values {
		// SearchFloat64s returns the first edge >= v, so values equal to an
		// edge land in the lower bin.
		idx := sort.SearchFloat64s(edges, v)
		counts[idx]++
	}

	props := make([]float64, len(counts))
	for i, c := range counts {
		props[i] = float64(c) / float64(len(values))
	}
	return props
}
