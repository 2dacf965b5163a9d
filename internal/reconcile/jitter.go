package reconcile

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Jitter produces the random offsets applied to automatic stamps.
type Jitter struct {
	mu       sync.Mutex
	rng      *rand.Rand
	min, max time.Duration
}

// NewJitter returns offsets with a magnitude uniform in [min, max] at second
// granularity and a random sign. A zero seed draws from the runtime source.
func NewJitter(seed uint64, min, max time.Duration) *Jitter {
	if seed == 0 {
		seed = rand.Uint64()
	}
	if max < min {
		max = min
	}
	return &Jitter{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), min: min, max: max}
}

// Offset returns the next jitter.
func (j *Jitter) Offset() time.Duration {
	j.mu.Lock()
	defer j.mu.Unlock()
	span := int64((j.max - j.min) / time.Second)
	d := j.min + time.Duration(j.rng.Int64N(span+1))*time.Second
	if j.rng.IntN(2) == 0 {
		d = -d
	}
	return d
}

// Max is the largest possible magnitude.
func (j *Jitter) Max() time.Duration { return j.max }
