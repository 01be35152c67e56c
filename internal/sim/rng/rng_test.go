package rng

import "testing"

func TestStream_Deterministic(t *testing.T) {
	a := New(42, 3, StreamClick)
	b := New(42, 3, StreamClick)
	for i := 0; i < 1000; i++ {
		if a.Uint64() != b.Uint64() {
			t.Fatalf("streams diverged at draw %d", i)
		}
	}
}

func TestStream_IndependentPerID(t *testing.T) {
	a := New(42, 3, StreamClick)
	b := New(42, 3, StreamConversion)
	same := 0
	for i := 0; i < 1000; i++ {
		if a.Uint64() == b.Uint64() {
			same++
		}
	}
	if same > 0 {
		t.Fatalf("distinct stream ids collided %d times", same)
	}
}

func TestStream_SeedDecorrelation(t *testing.T) {
	a := New(1, 1, StreamDemand)
	b := New(2, 1, StreamDemand)
	same := 0
	for i := 0; i < 1000; i++ {
		if a.Uint64() == b.Uint64() {
			same++
		}
	}
	if same > 0 {
		t.Fatalf("adjacent seeds collided %d times", same)
	}
}

func TestStream_SaltChangesSequence(t *testing.T) {
	a := NewSalted(7, 1, StreamClick, 1)
	b := NewSalted(7, 1, StreamClick, 2)
	if a.Uint64() == b.Uint64() && a.Uint64() == b.Uint64() {
		t.Fatalf("salts produced identical draws")
	}
}

func TestFloat64_Range(t *testing.T) {
	s := New(99, 1, StreamNoiseCTR)
	for i := 0; i < 10000; i++ {
		v := s.Float64()
		if v < 0 || v >= 1 {
			t.Fatalf("Float64 out of [0,1): %v", v)
		}
	}
}

func TestIntN_Range(t *testing.T) {
	s := New(5, 2, StreamQueryText)
	seen := map[int]bool{}
	for i := 0; i < 1000; i++ {
		v := s.IntN(7)
		if v < 0 || v >= 7 {
			t.Fatalf("IntN(7) out of range: %d", v)
		}
		seen[v] = true
	}
	if len(seen) != 7 {
		t.Fatalf("IntN(7) only produced %d distinct values", len(seen))
	}
}

func TestBernoulli_Extremes(t *testing.T) {
	s := New(11, 1, StreamFraud)
	for i := 0; i < 100; i++ {
		if s.Bernoulli(0) {
			t.Fatalf("Bernoulli(0) returned true")
		}
		if !s.Bernoulli(1) {
			t.Fatalf("Bernoulli(1) returned false")
		}
	}
}

func TestBernoulli_Rate(t *testing.T) {
	s := New(123, 1, StreamClick)
	hits := 0
	const n = 100000
	for i := 0; i < n; i++ {
		if s.Bernoulli(0.3) {
			hits++
		}
	}
	rate := float64(hits) / n
	if rate < 0.28 || rate > 0.32 {
		t.Fatalf("Bernoulli(0.3) rate %.4f outside tolerance", rate)
	}
}

func TestUniform_Bounds(t *testing.T) {
	s := New(8, 4, StreamCompetitorBid)
	for i := 0; i < 1000; i++ {
		v := s.Uniform(2.5, 6.0)
		if v < 2.5 || v >= 6.0 {
			t.Fatalf("Uniform(2.5, 6.0) out of range: %v", v)
		}
	}
}

func TestWeightedPick_Distribution(t *testing.T) {
	s := New(77, 1, StreamCompetitorBid)
	weights := []float64{0.7, 0.2, 0.1}
	counts := make([]int, 3)
	const n = 50000
	for i := 0; i < n; i++ {
		idx := s.WeightedPick(weights)
		if idx < 0 || idx >= 3 {
			t.Fatalf("WeightedPick index out of range: %d", idx)
		}
		counts[idx]++
	}
	first := float64(counts[0]) / n
	if first < 0.67 || first > 0.73 {
		t.Fatalf("WeightedPick heavy band share %.3f, want ~0.70", first)
	}
	if counts[2] == 0 {
		t.Fatalf("WeightedPick never chose the light band")
	}
}

func TestNoise_CentersOnBase(t *testing.T) {
	s := New(31, 2, StreamNoiseCVR)
	sum := 0.0
	const n = 20000
	for i := 0; i < n; i++ {
		sum += s.Noise(0.05, 0.1)
	}
	mean := sum / n
	if mean < 0.049 || mean > 0.051 {
		t.Fatalf("Noise mean %.5f drifted from base 0.05", mean)
	}
}
