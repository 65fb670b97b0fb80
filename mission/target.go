package mission

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"debris-capture-core/guidance"
)

// DebrisCandidate is one catalog entry handed to target selection.
type DebrisCandidate struct {
	ID              uuid.UUID
	Name            string
	EstimatedMassKg float64
	State           guidance.RelativeState
}

// TargetDebris is the locked capture target. Selected once at mission
// start; replaced only when its state estimate goes stale.
type TargetDebris struct {
	DebrisCandidate
	Score      float64
	SelectedAt time.Time
}

// ErrEmptyCatalog is returned when selection runs on an empty catalog.
var ErrEmptyCatalog = errors.New("mission: debris catalog is empty")

// tieBreakWindowM is the range band inside which two candidates count
// as equally near and the lighter one wins (easier capture).
const tieBreakWindowM = 1.0

// SelectTarget picks the nearest candidate; near-ties go to the lower
// estimated mass. The score recorded on the target is the selection
// range in meters.
func SelectTarget(catalog []DebrisCandidate, now time.Time) (*TargetDebris, error) {
	if len(catalog) == 0 {
		return nil, ErrEmptyCatalog
	}

	best := catalog[0]
	bestRange := best.State.Range()
	for _, c := range catalog[1:] {
		r := c.State.Range()
		switch {
		case r < bestRange-tieBreakWindowM:
			best, bestRange = c, r
		case r < bestRange+tieBreakWindowM && c.EstimatedMassKg < best.EstimatedMassKg:
			best, bestRange = c, r
		}
	}

	return &TargetDebris{
		DebrisCandidate: best,
		Score:           bestRange,
		SelectedAt:      now,
	}, nil
}

// Stale reports whether the target's last known state is older than the
// timeout at the given tick time.
func (t *TargetDebris) Stale(now time.Time, timeout time.Duration) bool {
	if t == nil {
		return true
	}
	return now.Sub(t.State.Timestamp) > timeout
}
