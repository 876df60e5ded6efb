package gateway

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// Dedup suppresses redelivered gateway events by message id. Two bloom
// filters rotate: the active filter takes inserts, and when it fills up it
// becomes the standby so recently seen ids survive one rotation. False
// positives drop a fresh event, which for rate sampling is harmless.
type Dedup struct {
	capacity uint
	fpRate   float64

	mu      sync.Mutex
	active  *bloom.BloomFilter
	standby *bloom.BloomFilter
	count   uint
}

// NewDedup sizes both filters for capacity ids at the given false-positive
// rate.
func NewDedup(capacity uint, fpRate float64) *Dedup {
	return &Dedup{
		capacity: capacity,
		fpRate:   fpRate,
		active:   bloom.NewWithEstimates(capacity, fpRate),
		standby:  bloom.NewWithEstimates(capacity, fpRate),
	}
}

// Seen records id and reports whether it was already present.
func (d *Dedup) Seen(id string) bool {
	data := []byte(id)

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.standby.Test(data) {
		return true
	}
	if d.active.TestAndAdd(data) {
		return true
	}

	d.count++
	if d.count >= d.capacity {
		d.standby = d.active
		d.active = bloom.NewWithEstimates(d.capacity, d.fpRate)
		d.count = 0
	}
	return false
}
