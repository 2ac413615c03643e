package domain

// Core Enums and Types

// WaningKind selects how vaccine-induced protection declines with
// the age of the vaccinated cohort.
type WaningKind string

const (
	WANING_NONE        WaningKind = "NONE"
	WANING_LINEAR      WaningKind = "LINEAR"
	WANING_EXPONENTIAL WaningKind = "EXPONENTIAL"
)

// String returns the string representation of the waning kind
func (w WaningKind) String() string {
	return string(w)
}

// Valid reports whether the waning kind is one of the supported models
func (w WaningKind) Valid() bool {
	switch w {
	case WANING_NONE, WANING_LINEAR, WANING_EXPONENTIAL:
		return true
	}
	return false
}

// NumQuintiles is the number of wealth quintiles a national population
// is split into. Quintiles are equal-sized by definition, so every
// population cell is divided by this constant.
const NumQuintiles = 5

// Quintile identifies a wealth quintile, 1 (poorest) through 5 (richest)
type Quintile int

// Valid reports whether the quintile index is in range
func (q Quintile) Valid() bool {
	return q >= 1 && q <= NumQuintiles
}

// Index returns the zero-based array index for the quintile
func (q Quintile) Index() int {
	return int(q) - 1
}

// Quintiles returns all quintiles in ascending order
func Quintiles() [NumQuintiles]Quintile {
	return [NumQuintiles]Quintile{1, 2, 3, 4, 5}
}

// Bounded is a three-point (low, central, high) description of an
// uncertain quantity. PSA draws from the implied PERT distribution;
// deterministic runs use Central unchanged.
type Bounded struct {
	Central float64 `json:"central"`
	Low     float64 `json:"low"`
	High    float64 `json:"high"`
}

// Fixed returns a Bounded with all three points set to v
func Fixed(v float64) Bounded {
	return Bounded{Central: v, Low: v, High: v}
}

// Degenerate reports whether the bounds collapse to a single point
func (b Bounded) Degenerate() bool {
	return b.Low == b.High
}

// Validate checks the low <= central <= high ordering
func (b Bounded) Validate(field string) error {
	if b.Low > b.High {
		return NewValidationError(field, "low bound exceeds high bound", b)
	}
	if b.Central < b.Low || b.Central > b.High {
		return NewValidationError(field, "central value outside [low, high]", b)
	}
	return nil
}

// ValidateUnit checks the ordering and that all three points are probabilities
func (b Bounded) ValidateUnit(field string) error {
	if err := b.Validate(field); err != nil {
		return err
	}
	if b.Low < 0 || b.High > 1 {
		return NewValidationError(field, "value outside [0, 1]", b)
	}
	return nil
}

// ValidateNonNegative checks the ordering and that the low bound is >= 0
func (b Bounded) ValidateNonNegative(field string) error {
	if err := b.Validate(field); err != nil {
		return err
	}
	if b.Low < 0 {
		return NewValidationError(field, "value must be non-negative", b)
	}
	return nil
}
