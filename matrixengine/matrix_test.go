package matrixengine

import "testing"

func within(a, b, tol float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tol
}

func TestPhiDistinctRatesMatchesResidueFormula(t *testing.T) {
	rates := []float64{0.1, 0.3, 0.7}
	t0 := 2.0

	var want float64
	for m, lm := range rates {
		denom := 1.0
		for k, lk := range rates {
			if k == m {
				continue
			}
			denom *= lk - lm
		}
		want += safeExp(-lm*t0) / denom
	}

	got, err := phi(rates, t0, false)
	if err != nil {
		t.Fatalf("phi: %v", err)
	}
	if !within(got, want, 1e-9) {
		t.Fatalf("phi() = %v, want %v", got, want)
	}
}

func TestPhiSinglePoleIsExponentialDecay(t *testing.T) {
	// For a single rate l, Φ = e^{-l t} (the trivial one-term chain).
	got, err := phi([]float64{0.5}, 1.0, false)
	if err != nil {
		t.Fatalf("phi: %v", err)
	}
	want := safeExp(-0.5)
	if !within(got, want, 1e-12) {
		t.Fatalf("phi() = %v, want %v", got, want)
	}
}

func TestPhiRepeatedRootReducesToTPowerFamily(t *testing.T) {
	// Two coincident poles at lambda: Phi = t*e^{-lambda t}.
	lambda := 0.4
	got, err := phi([]float64{lambda, lambda}, 3.0, false)
	if err != nil {
		t.Fatalf("phi: %v", err)
	}
	want := 3.0 * safeExp(-lambda*3.0)
	if !within(got, want, 1e-9) {
		t.Fatalf("phi() = %v, want %v (t*e^-lt)", got, want)
	}
}

func TestFillDecayDiagonalIsExponential(t *testing.T) {
	lambda := []float64{0.1, 0.2, 0.3}
	branch := []float64{1, 0.5, 0.25}
	m := NewMatrix(3)
	if err := Fill(m, 0, lambda, branch, 1.0, nil); err != nil {
		t.Fatalf("Fill: %v", err)
	}
	for i, l := range lambda {
		want := safeExp(-l)
		if !within(m.Get(i, i), want, 1e-12) {
			t.Fatalf("diag[%d] = %v, want %v", i, m.Get(i, i), want)
		}
	}
}

func TestResizePreservesUnchangedRows(t *testing.T) {
	lambda := []float64{0.1, 0.2}
	branch := []float64{1, 1}
	m := NewMatrix(2)
	if err := Fill(m, 0, lambda, branch, 1.0, nil); err != nil {
		t.Fatalf("Fill: %v", err)
	}
	before := m.Get(1, 0)

	grown := Resize(m, 3, 2)
	lambda3 := []float64{0.1, 0.2, 0.3}
	branch3 := []float64{1, 1, 1}
	if err := Fill(grown, 2, lambda3, branch3, 1.0, nil); err != nil {
		t.Fatalf("Fill on grown matrix: %v", err)
	}
	if grown.Get(1, 0) != before {
		t.Fatalf("Resize did not preserve row 1: got %v, want %v", grown.Get(1, 0), before)
	}
	if grown.Dim != 3 {
		t.Fatalf("Dim = %d, want 3", grown.Dim)
	}
}

// TestFillLoopIntervalMatchesTwoMemberBatemanClosedForm runs Fill with
// loopRanks marking the interval (hasLoopInRange reports true; phi's result
// does not depend on that flag) on a rank-2 chain A -> B with distinct
// rates, the interval a loop closure would span. The
// off-diagonal entry must still match the textbook two-member Bateman
// solution: N_B(t) = lambda_A/(lambda_B-lambda_A) * (e^-lA*t - e^-lB*t).
func TestFillLoopIntervalMatchesTwoMemberBatemanClosedForm(t *testing.T) {
	lambdaA, lambdaB := 0.3, 0.9
	rates := []float64{lambdaA, lambdaB}
	branch := []float64{1, lambdaA}
	loopRanks := []int{0, 0} // marks rank 0 as the loop's closing ancestor

	m := NewMatrix(2)
	if err := Fill(m, 0, rates, branch, 2.0, loopRanks); err != nil {
		t.Fatalf("Fill: %v", err)
	}

	tVal := 2.0
	want := lambdaA / (lambdaB - lambdaA) * (safeExp(-lambdaA*tVal) - safeExp(-lambdaB*tVal))
	if !within(m.Get(1, 0), want, 1e-9) {
		t.Fatalf("loop-interval entry = %v, want %v (two-member Bateman closed form)", m.Get(1, 0), want)
	}
}

func TestMultiplyComposesTriangularProduct(t *testing.T) {
	a := Identity(2)
	a.Set(1, 0, 0.5)
	b := Identity(2)
	b.Set(1, 0, 0.25)

	c := NewMatrix(2)
	if err := Multiply(c, a, b, 0); err != nil {
		t.Fatalf("Multiply: %v", err)
	}
	// C = A*B; C[1][0] = A[1][0]*B[0][0] + A[1][1]*B[1][0] = 0.5*1 + 1*0.25
	if !within(c.Get(1, 0), 0.75, 1e-12) {
		t.Fatalf("C[1][0] = %v, want 0.75", c.Get(1, 0))
	}
	if c.Get(0, 0) != 1 || c.Get(1, 1) != 1 {
		t.Fatalf("diagonal should remain identity: %v %v", c.Get(0, 0), c.Get(1, 1))
	}
}
