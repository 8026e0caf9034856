package mcrouter

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/filipenf/mcrouter/ap"
	"github.com/filipenf/mcrouter/reply"
)

// TkoTracker tracks destination health from observed replies.  A hard tko
// error trips the destination immediately; soft tko errors trip it after a
// configurable number of consecutive occurrences.  Any non-error reply
// resets the destination.
//
// Tripped destinations are skipped by the transport gate, which fabricates
// tko replies for them without contacting the backend.
type TkoTracker struct {
	mu        sync.Mutex
	threshold int
	soft      map[string]int
	tko       map[string]bool
}

// NewTkoTracker creates a tracker tripping destinations after threshold
// consecutive soft errors.
func NewTkoTracker(threshold int) *TkoTracker {
	return &TkoTracker{
		threshold: threshold,
		soft:      make(map[string]int),
		tko:       make(map[string]bool),
	}
}

// IsTko returns whether the destination is currently tripped.
func (t *TkoTracker) IsTko(a *ap.AccessPoint) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tko[a.String()]
}

// Observe feeds one reply into the tracker.  Replies without a destination,
// and synthetic tko replies, are ignored: they carry no new health signal.
func (t *TkoTracker) Observe(r *reply.Reply) {
	d := r.Destination()
	if d == nil || r.IsTko() {
		return
	}
	key := d.String()

	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case r.IsHardTkoError():
		if !t.tko[key] {
			t.tko[key] = true
			logrus.WithFields(logrus.Fields{
				"dest":   key,
				"result": r.Result().String(),
			}).Warn("destination marked tko (hard)")
		}

	case r.IsSoftTkoError():
		t.soft[key]++
		if t.soft[key] >= t.threshold && !t.tko[key] {
			t.tko[key] = true
			logrus.WithFields(logrus.Fields{
				"dest":     key,
				"failures": t.soft[key],
			}).Warn("destination marked tko (soft)")
		}

	case !r.IsError():
		if t.tko[key] {
			logrus.WithField("dest", key).Info("destination recovered")
		}
		t.soft[key] = 0
		delete(t.tko, key)
	}
}

// Reset clears the destination's state, e.g. after an out-of-band health
// probe succeeds.
func (t *TkoTracker) Reset(a *ap.AccessPoint) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := a.String()
	t.soft[key] = 0
	delete(t.tko, key)
}

// Snapshot returns the current soft-failure counts and tripped set for the
// admin surface.
func (t *TkoTracker) Snapshot() map[string]interface{} {
	t.mu.Lock()
	defer t.mu.Unlock()

	tripped := make([]string, 0, len(t.tko))
	for k := range t.tko {
		tripped = append(tripped, k)
	}
	failures := make(map[string]int, len(t.soft))
	for k, v := range t.soft {
		if v > 0 {
			failures[k] = v
		}
	}

	return map[string]interface{}{
		"threshold": t.threshold,
		"tripped":   tripped,
		"failures":  failures,
	}
}
