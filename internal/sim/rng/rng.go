// Package rng provides the deterministic random streams used by the
// simulation engine. A stream is keyed by (seed, day, stream index) and is
// bit-identical across processes and platforms: re-simulating the same day of
// the same run reproduces the exact sequence.
//
// Each logical quantity (demand, query text, competitor bids, clicks,
// conversions, ...) draws from its own stream index so that adding or removing
// draws for one quantity never shifts another.
package rng

import "math"

// Stream indices. One per logical quantity; never reuse an index for a second
// purpose within the same day.
type StreamID uint64

const (
	StreamDemand StreamID = iota + 1
	StreamQueryText
	StreamCompetitorBid
	StreamPosition
	StreamClick
	StreamConversion
	StreamFraud
	StreamTracking
	StreamNoiseCTR
	StreamNoiseCVR
	StreamRevenue
	StreamCausal
)

// SplitMix64 constants (Steele, Lea, Flood 2014).
const (
	gamma = 0x9E3779B97F4A7C15
	mixA  = 0xBF58476D1CE4E5B9
	mixB  = 0x94D049BB133111EB
)

func mix(z uint64) uint64 {
	z = (z ^ (z >> 30)) * mixA
	z = (z ^ (z >> 27)) * mixB
	return z ^ (z >> 31)
}

// Stream is a SplitMix64 generator positioned by its key. Not safe for
// concurrent use; every goroutine derives its own streams.
type Stream struct {
	state uint64
}

// New derives a stream for (seed, day, id). All three components go through
// the finalizer so nearby seeds and consecutive days decorrelate globally.
func New(seed int64, day int, id StreamID) *Stream {
	s := mix(uint64(seed) + gamma)
	s = mix(s ^ (uint64(day) * mixA))
	s = mix(s ^ (uint64(id) * mixB))
	return &Stream{state: s}
}

// NewSalted derives a stream for (seed, day, id) plus an extra salt, used to
// give every segment its own independent copy of a logical stream.
func NewSalted(seed int64, day int, id StreamID, salt uint64) *Stream {
	s := New(seed, day, id)
	s.state = mix(s.state ^ (salt * gamma))
	return s
}

func (s *Stream) Uint64() uint64 {
	s.state += gamma
	return mix(s.state)
}

// Float64 returns a uniform value in [0, 1).
func (s *Stream) Float64() float64 {
	return float64(s.Uint64()>>11) / (1 << 53)
}

// IntN returns a uniform integer in [0, n). n must be > 0.
func (s *Stream) IntN(n int) int {
	if n <= 0 {
		return 0
	}
	return int(s.Float64() * float64(n))
}

// Int31 returns a non-negative 31-bit integer.
func (s *Stream) Int31() int64 {
	return int64(s.Uint64() >> 33)
}

// Bernoulli returns true with probability p.
func (s *Stream) Bernoulli(p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return s.Float64() < p
}

// Uniform returns a value in [a, b).
func (s *Stream) Uniform(a, b float64) float64 {
	return a + (b-a)*s.Float64()
}

// Noise applies multiplicative noise: base * (1 + u) with u in
// [-variance, variance].
func (s *Stream) Noise(base, variance float64) float64 {
	return base * (1 + s.Uniform(-variance, variance))
}

// WeightedPick returns an index drawn proportionally to weights. Zero or
// negative weights are treated as zero; an all-zero slice picks uniformly.
func (s *Stream) WeightedPick(weights []float64) int {
	if len(weights) == 0 {
		return 0
	}
	total := 0.0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return s.IntN(len(weights))
	}
	target := s.Float64() * total
	acc := 0.0
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		acc += w
		if target < acc {
			return i
		}
	}
	return len(weights) - 1
}

// Gaussian returns a normal draw via Box-Muller. Consumes two values.
func (s *Stream) Gaussian(mu, sigma float64) float64 {
	u1 := s.Float64()
	for u1 == 0 {
		u1 = s.Float64()
	}
	u2 := s.Float64()
	z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
	return mu + sigma*z
}
