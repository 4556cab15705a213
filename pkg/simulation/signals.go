package simulation

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/marmos91/daserver/pkg/variant"
)

// Generator produces the next value of a synthetic signal. Generators are
// only called from the refresh goroutine.
type Generator interface {
	Next(ctx context.Context) (variant.Value, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context) (variant.Value, error)

func (f GeneratorFunc) Next(ctx context.Context) (variant.Value, error) { return f(ctx) }

// Ramp counts up by one per call from Min to Max and wraps back to Min.
type Ramp struct {
	Min, Max int32
	cur      int32
	started  bool
}

func NewRamp(min, max int32) *Ramp { return &Ramp{Min: min, Max: max} }

func (r *Ramp) Next(context.Context) (variant.Value, error) {
	switch {
	case !r.started:
		r.cur, r.started = r.Min, true
	case r.cur >= r.Max:
		r.cur = r.Min
	default:
		r.cur++
	}
	return variant.Must(r.cur), nil
}

// Sine walks one period of a sine wave in Steps calls.
type Sine struct {
	Steps     int
	Amplitude float64
	step      int
}

func NewSine(steps int, amplitude float64) *Sine {
	if steps <= 0 {
		steps = 40
	}
	return &Sine{Steps: steps, Amplitude: amplitude}
}

func (s *Sine) Next(context.Context) (variant.Value, error) {
	v := s.Amplitude * math.Sin(2*math.Pi*float64(s.step)/float64(s.Steps))
	s.step = (s.step + 1) % s.Steps
	return variant.Must(v), nil
}

// Random draws uniformly from [0, Max).
type Random struct {
	Max int32

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandom seeds from the clock when seed is zero.
func NewRandom(max int32, seed int64) *Random {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if max <= 0 {
		max = math.MaxInt32
	}
	return &Random{Max: max, rng: rand.New(rand.NewSource(seed))}
}

func (r *Random) Next(context.Context) (variant.Value, error) {
	r.mu.Lock()
	v := r.rng.Int31n(r.Max)
	r.mu.Unlock()
	return variant.Must(v), nil
}

// ItemCount reports the number of live items as an i4.
func ItemCount(c interface{ Count() int }) Generator {
	return GeneratorFunc(func(context.Context) (variant.Value, error) {
		return variant.Must(int32(c.Count())), nil
	})
}
