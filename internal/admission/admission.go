// Package admission decides whether a dispatch may run given the current
// resource usage and its priority.
package admission

import (
	"fmt"

	"github.com/ppiankov/hookroute/internal/model"
)

// Band names the circuit-breaker state for a usage level.
type Band string

const (
	BandNormal   Band = "normal"
	BandElevated Band = "elevated"
	BandCritical Band = "critical"
	BandHardStop Band = "hard_stop"
)

// Bands are the usage percentages where the breaker tightens.
//
//	usage <  Elevated          admit all
//	Elevated <= usage < Critical  admit HIGH and MEDIUM
//	Critical <= usage < HardStop  admit HIGH
//	usage >= HardStop          admit nothing
type Bands struct {
	Elevated float64
	Critical float64
	HardStop float64
}

// DefaultBands returns 70/85/95.
func DefaultBands() Bands {
	return Bands{Elevated: 70, Critical: 85, HardStop: 95}
}

// Validate checks that the bands are ordered within [0,100].
func (b Bands) Validate() error {
	if !(0 <= b.Elevated && b.Elevated <= b.Critical && b.Critical <= b.HardStop && b.HardStop <= 100) {
		return fmt.Errorf("bands must satisfy 0 <= elevated <= critical <= hard_stop <= 100 (got %v/%v/%v)",
			b.Elevated, b.Critical, b.HardStop)
	}
	return nil
}

// BandFor returns the band that usage falls in.
func (b Bands) BandFor(usage float64) Band {
	switch {
	case usage >= b.HardStop:
		return BandHardStop
	case usage >= b.Critical:
		return BandCritical
	case usage >= b.Elevated:
		return BandElevated
	default:
		return BandNormal
	}
}

// MinPriority is the lowest priority admitted in band. ok is false when the
// band admits nothing.
func MinPriority(band Band) (p model.Priority, ok bool) {
	switch band {
	case BandNormal:
		return model.PriorityLow, true
	case BandElevated:
		return model.PriorityMedium, true
	case BandCritical:
		return model.PriorityHigh, true
	default:
		return "", false
	}
}

// Verdict is the outcome of an admission check.
type Verdict struct {
	Decision model.Decision
	Band     Band
	Usage    float64
	Priority model.Priority
	Reason   string
}

// Allowed reports whether the verdict admits the dispatch.
func (v Verdict) Allowed() bool {
	return v.Decision == model.Allow
}

// Admit is a pure function of usage and priority. It never mutates state.
func Admit(usage float64, p model.Priority, b Bands) Verdict {
	band := b.BandFor(usage)
	v := Verdict{Band: band, Usage: usage, Priority: p}

	min, ok := MinPriority(band)
	switch {
	case !ok:
		v.Decision = model.Block
		v.Reason = fmt.Sprintf("usage %.2f%% >= %.0f%% hard stop: all dispatches blocked", usage, b.HardStop)
	case p.AtLeast(min):
		v.Decision = model.Allow
		v.Reason = fmt.Sprintf("usage %.2f%% in %s band admits %s", usage, band, p)
	default:
		v.Decision = model.Block
		v.Reason = fmt.Sprintf("usage %.2f%% in %s band requires %s or higher, got %s", usage, band, min, p)
	}
	return v
}
