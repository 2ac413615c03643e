package service

// EligibilityModel determines whether an age/time combination falls
// inside the vaccination program's active window.
type EligibilityModel struct{}

// NewEligibilityModel creates a new eligibility model
func NewEligibilityModel() *EligibilityModel {
	return &EligibilityModel{}
}

// IsUnvaccinated reports whether the cohort of age ageIndex at time
// currentTime never had a chance at vaccination. A cohort is eligible
// when its vaccination time falls within [currentTime - programLength,
// currentTime]: born before the program started, or born after it ended,
// means no vaccine effect regardless of coverage.
func (e *EligibilityModel) IsUnvaccinated(currentTime, ageIndex, programLength int) bool {
	eligible := currentTime >= ageIndex && ageIndex >= currentTime-programLength
	return !eligible
}
