package service

// CoverageRampModel scales down the achieved coverage of cohorts
// vaccinated during the program's build-up years.
type CoverageRampModel struct {
	// floor is the lower clamp of the ramp numerator. The value 0.2 is
	// an empirical constant with no structural derivation; it is kept
	// configurable rather than fixed.
	floor float64
}

// NewCoverageRampModel creates a new ramp model with the given floor
func NewCoverageRampModel(floor float64) *CoverageRampModel {
	return &CoverageRampModel{floor: floor}
}

// RampFactor returns the achieved-coverage scaling factor for the cohort
// of age ageIndex at time currentTime, given buildYears of program
// scale-up. A cohort vaccinated t-age+1 >= buildYears years into the
// program gets the full factor of 1.
func (r *CoverageRampModel) RampFactor(currentTime, ageIndex, buildYears int) float64 {
	years := float64(currentTime-ageIndex) + 1
	if years < r.floor {
		years = r.floor
	}
	if years > float64(buildYears) {
		years = float64(buildYears)
	}
	return years / float64(buildYears)
}
