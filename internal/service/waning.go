package service

import (
	"math"

	"github.com/vaxburden-server/internal/domain"
)

// WaningModel converts the age of a vaccinated cohort into a residual
// protection multiplier in [0, 1].
type WaningModel struct{}

// NewWaningModel creates a new waning model
func NewWaningModel() *WaningModel {
	return &WaningModel{}
}

// Protection returns the residual protection multiplier for a cohort
// vaccinated age years ago under a program conferring duration years of
// immunity.
//
//   - NONE: full protection while age <= duration, none after (step)
//   - LINEAR: 1 - age/duration, floored at 0
//   - EXPONENTIAL: exp(-age/duration), floored at 0
func (w *WaningModel) Protection(kind domain.WaningKind, age float64, duration float64) float64 {
	switch kind {
	case domain.WANING_LINEAR:
		return math.Max(0, 1-age/duration)
	case domain.WANING_EXPONENTIAL:
		return math.Max(0, math.Exp(-age/duration))
	default: // WANING_NONE
		if age <= duration {
			return 1
		}
		return 0
	}
}

// halfYearDoseAges are the age indexes whose protection is halved because
// dosing happens at the half-year point of those years of life (age 0 for
// the 6-month dose, age 10 for the booster-age offset). The halving is
// applied by the simulator after the waning multiplier, before combining
// with efficacy and coverage, independent of waning kind.
var halfYearDoseAges = map[int]bool{0: true, 10: true}

// HalfYearDose reports whether the given age index carries the
// half-year-of-life dosing offset.
func HalfYearDose(age int) bool {
	return halfYearDoseAges[age]
}
