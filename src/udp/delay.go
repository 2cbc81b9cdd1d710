package udp

import (
	"math"
	"sync"
)

// delayStats is a numerically stable online mean/variance estimator
// (Welford's method) over the inter-arrival interval of valid
// packets. It is updated outside the data lock since it is not part
// of the invariant set that GetStatus/GetLatest need to observe
// atomically with the payload.
type delayStats struct {
	mu   sync.Mutex
	n    uint64
	mean float64
	m2   float64
	min  float64
	max  float64
}

func (d *delayStats) update(interval float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.n++
	delta := interval - d.mean
	d.mean += delta / float64(d.n)
	d.m2 += delta * (interval - d.mean)
	if d.n == 1 || interval < d.min {
		d.min = interval
	}
	if d.n == 1 || interval > d.max {
		d.max = interval
	}
}

func (d *delayStats) snapshot() DelaySnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	var variance float64
	if d.n > 1 {
		variance = d.m2 / float64(d.n-1)
	}
	return DelaySnapshot{
		Count:  d.n,
		Mean:   d.mean,
		StdDev: math.Sqrt(variance),
		Min:    d.min,
		Max:    d.max,
	}
}
