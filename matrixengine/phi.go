package matrixengine

import "math"

// phi evaluates Φ(i,j,l,t), the inverse Laplace transform of
// 1 / ∏_k (s + l_k) for l = rates, at time t. When every rate is distinct
// this reduces algebraically to the plain Bateman residue sum; when two or
// more coincide (within DegeneracyTolerance) it falls back to the
// repeated-pole partial-fraction expansion, folding each
// group of coincident poles into its t^p*e^{-lambda*t} family. The two
// described branches are therefore a single numerically-equivalent
// routine here: distinct rates are just the degree-1 case of the general
// partial-fraction expansion.
//
// inclusiveLoop is accepted to match the three-way adaptive choice
// describes (Bateman / Laplace-inversion / Laplace-expansion for loops);
// this module does not special-case loop intervals beyond using the same
// general partial-fraction machinery, since a loop only changes which
// rates may coincide, not the shape of the transform. See DESIGN.md for
// why a distinct eigen-decomposition path was not built for true cycles.
func phi(rates []float64, t float64, inclusiveLoop bool) (float64, error) {
	_ = inclusiveLoop
	groups := groupRates(rates)

	var total float64
	for _, g := range groups {
		contribution := groupContribution(groups, g, rates, t)
		total += contribution
	}
	return total, nil
}

// rateGroup is one set of indices into `rates` sharing (within tolerance)
// the same rate constant.
type rateGroup struct {
	value   float64
	indices []int
}

func groupRates(rates []float64) []rateGroup {
	var groups []rateGroup
	for i, v := range rates {
		placed := false
		for g := range groups {
			if closeEnough(groups[g].value, v) {
				groups[g].indices = append(groups[g].indices, i)
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, rateGroup{value: v, indices: []int{i}})
		}
	}
	return groups
}

func closeEnough(a, b float64) bool {
	d := math.Abs(a - b)
	scale := math.Max(math.Abs(a), math.Abs(b))
	return d <= DegeneracyTolerance*scale
}

// groupContribution returns group g's term in Φ(t): e^{-λ_m t} times a
// polynomial in t of degree μ-1, whose coefficients come from the Taylor
// series (around s=-λ_m) of the product of all OTHER groups' factors
// 1/(s+λ_k)^{multiplicity}.
func groupContribution(groups []rateGroup, g rateGroup, rates []float64, t float64) float64 {
	mu := len(g.indices)
	lambda := g.value

	// series holds the Taylor coefficients (in Δ = s+λ_m) of the product
	// of every other group's factor, truncated to degree mu-1.
	series := make([]float64, mu)
	series[0] = 1
	for _, other := range groups {
		if sameGroup(other, g) {
			continue
		}
		c := other.value - lambda // != 0 by construction of groupRates
		factor := make([]float64, mu)
		pow := 1.0 / c
		for n := 0; n < mu; n++ {
			factor[n] = pow
			pow *= -1.0 / c
		}
		// Other's factor 1/(s+other.value) appears once per member of
		// its group, i.e. raised to its multiplicity.
		for range other.indices {
			series = polyMulTruncate(series, factor, mu)
		}
	}

	// Φ contribution = e^{-λt} * Σ_p series[p] * t^(mu-1-p) / (mu-1-p)!
	var sum float64
	for p := 0; p < mu; p++ {
		power := mu - 1 - p
		sum += series[p] * math.Pow(t, float64(power)) / factorial(power)
	}
	return sum * safeExp(-lambda*t)
}

func sameGroup(a, b rateGroup) bool {
	if len(a.indices) != len(b.indices) {
		return false
	}
	for i := range a.indices {
		if a.indices[i] != b.indices[i] {
			return false
		}
	}
	return true
}

// polyMulTruncate multiplies two power series (low-order-first
// coefficients) and truncates the result to maxLen terms.
func polyMulTruncate(a, b []float64, maxLen int) []float64 {
	out := make([]float64, maxLen)
	for i := 0; i < len(a) && i < maxLen; i++ {
		if a[i] == 0 {
			continue
		}
		for j := 0; j < len(b) && i+j < maxLen; j++ {
			out[i+j] += a[i] * b[j]
		}
	}
	return out
}

func factorial(n int) float64 {
	f := 1.0
	for i := 2; i <= n; i++ {
		f *= float64(i)
	}
	return f
}
