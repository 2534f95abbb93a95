package collector

import (
	"context"
	"sync"
	"time"

	"focus-pipeline/models"
)

// Retention is how far behind the newest sample a MemorySource keeps data.
// It covers the longest window served, a calendar month.
const Retention = 32 * 24 * time.Hour

// MemorySource keeps ingested samples in process. It stands in for the
// device health store when samples are pushed over HTTP, and like that
// store it belongs to a single user.
type MemorySource struct {
	mu        sync.RWMutex
	samples   map[models.Metric][]models.RawSample
	available bool
	newest    time.Time
	now       func() time.Time
}

func NewMemorySource() *MemorySource {
	return &MemorySource{
		samples:   make(map[models.Metric][]models.RawSample),
		available: true,
		now:       time.Now,
	}
}

// Add stores samples and drops those that start more than Retention before
// the newest sample seen. Samples dated in the future are kept but do not
// move the cutoff.
func (ms *MemorySource) Add(samples ...models.RawSample) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	now := ms.now()
	advanced := false
	for _, s := range samples {
		if !s.Start.After(now) && s.Start.After(ms.newest) {
			ms.newest = s.Start
			advanced = true
		}
	}
	cutoff := ms.newest.Add(-Retention)
	if advanced {
		ms.prune(cutoff)
	}
	for _, s := range samples {
		if !s.Start.Before(cutoff) {
			ms.samples[s.Metric] = append(ms.samples[s.Metric], s)
		}
	}
}

func (ms *MemorySource) prune(cutoff time.Time) {
	for m, list := range ms.samples {
		kept := list[:0]
		for _, s := range list {
			if !s.Start.Before(cutoff) {
				kept = append(kept, s)
			}
		}
		clear(list[len(kept):])
		ms.samples[m] = kept
	}
}

// SetAvailable toggles whether the store can be read at all.
func (ms *MemorySource) SetAvailable(ok bool) {
	ms.mu.Lock()
	ms.available = ok
	ms.mu.Unlock()
}

func (ms *MemorySource) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	n := 0
	for _, s := range ms.samples {
		n += len(s)
	}
	return n
}

func (ms *MemorySource) GetSamples(ctx context.Context, metric models.Metric, window models.PeriodWindow) ([]models.RawSample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	if !ms.available {
		return nil, models.ErrSourceUnavailable
	}

	var out []models.RawSample
	for _, s := range ms.samples[metric] {
		if window.Contains(s.Start) {
			out = append(out, s)
		}
	}
	return out, nil
}
