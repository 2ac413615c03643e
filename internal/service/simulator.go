package service

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/vaxburden-server/internal/domain"
)

// BurdenSimulator runs the time x age nested burden computation for one
// (country, PSA-iteration, quintile) unit, producing pre- and
// post-vaccination totals.
type BurdenSimulator struct {
	logger      *logrus.Logger
	waning      *WaningModel
	ramp        *CoverageRampModel
	eligibility *EligibilityModel
}

// NewBurdenSimulator creates a simulator wired to the three helper models
func NewBurdenSimulator(logger *logrus.Logger, rampFloor float64) *BurdenSimulator {
	return &BurdenSimulator{
		logger:      logger,
		waning:      NewWaningModel(),
		ramp:        NewCoverageRampModel(rampFloor),
		eligibility: NewEligibilityModel(),
	}
}

// QuintileInput bundles everything one quintile simulation needs. The
// tables are read-only; the run context carries the iteration's sampled
// globals and is never mutated.
type QuintileInput struct {
	Run            domain.RunContext
	Quintile       domain.Quintile
	Coverage       float64
	LifeExpectancy float64
	Cohorts        []domain.CohortValues // resolved draws, ordered by age 0..max
	Population     *domain.PopulationTable
}

// accumulator holds one quintile's running totals. A fresh accumulator is
// created per simulation and discarded once folded into the immutable
// QuintileResult, so no reset-between-loops discipline is needed.
type accumulator struct {
	preCases, postCases   float64
	preDeaths, postDeaths float64
	preCost, postCost     float64
	preDALYs, postDALYs   float64
	vaccinated            float64
	averted               []domain.TimePoint
}

// SimulateQuintile runs the sequential fold over time steps t = 1..horizon
// and all age cohorts, per the burden model:
//
//	protection = efficacy x coverage x waning x ramp   (halved at dose-offset ages)
//	deaths     = cases x treatProp x cfr x (1-treatEffect) + cases x (1-treatProp) x cfr
//	cost       = cases x treatProp x caseCost x discount
//	dalys      = (cases x disabilityWeight + deaths x residualLife) x discount
//
// The discount factor starts at 1 and decays by the annual rate after each
// time step, so it is monotonically non-increasing across the run.
func (s *BurdenSimulator) SimulateQuintile(in QuintileInput) (*domain.QuintileResult, error) {
	if in.Coverage < 0 || in.Coverage > 1 {
		return nil, domain.NewValidationError("coverage", "coverage outside [0, 1]", in.Coverage).
			WithContext(in.Run.Country, in.Quintile)
	}
	if in.LifeExpectancy < 0 {
		return nil, domain.NewValidationError("life_expectancy", "life expectancy must be non-negative",
			in.LifeExpectancy).WithContext(in.Run.Country, in.Quintile)
	}
	for _, c := range in.Cohorts {
		if c.Incidence < 0 {
			return nil, domain.NewValidationError("incidence", "incidence must be non-negative",
				c.Incidence).WithContext(in.Run.Country, in.Quintile)
		}
		if c.CFR < 0 || c.CFR > 1 {
			return nil, domain.NewValidationError("cfr", "case-fatality rate outside [0, 1]",
				c.CFR).WithContext(in.Run.Country, in.Quintile)
		}
		if c.TreatProp < 0 || c.TreatProp > 1 {
			return nil, domain.NewValidationError("treat_prop", "treatment proportion outside [0, 1]",
				c.TreatProp).WithContext(in.Run.Country, in.Quintile)
		}
	}

	run := in.Run
	impact := run.Efficacy * in.Coverage

	acc := &accumulator{averted: make([]domain.TimePoint, run.Horizon)}
	discount := 1.0

	for t := 1; t <= run.Horizon; t++ {
		// This quintile's one-fifth share of the birth cohort reached by
		// the program this year.
		acc.vaccinated += in.Population.At(t, 0) / domain.NumQuintiles * in.Coverage

		avertedAtT := 0.0
		for i, cohort := range in.Cohorts {
			pop := in.Population.At(t, i) / domain.NumQuintiles

			unvaccinated := s.eligibility.IsUnvaccinated(t, i, run.ProgramLength)
			ramp := s.ramp.RampFactor(t, i, run.BuildYears)
			wane := s.waning.Protection(run.Waning, float64(i), run.ImmunityDuration)

			protection := impact * wane * ramp
			if HalfYearDose(i) {
				protection /= 2
			}

			casesPre := pop * cohort.Incidence
			var casesPost float64
			if unvaccinated {
				casesPost = casesPre
			} else {
				casesPost = pop * (1 - protection) * cohort.Incidence
			}

			deathsPre := deaths(casesPre, cohort, run.TreatmentEffect)
			deathsPost := deaths(casesPost, cohort, run.TreatmentEffect)

			residualLife := math.Max(0, in.LifeExpectancy-float64(i))

			acc.preCases += casesPre
			acc.postCases += casesPost
			acc.preDeaths += deathsPre
			acc.postDeaths += deathsPost
			acc.preCost += casesPre * cohort.TreatProp * cohort.CaseCost * discount
			acc.postCost += casesPost * cohort.TreatProp * cohort.CaseCost * discount
			acc.preDALYs += (casesPre*run.DisabilityWeight + deathsPre*residualLife) * discount
			acc.postDALYs += (casesPost*run.DisabilityWeight + deathsPost*residualLife) * discount

			avertedAtT += casesPre - casesPost
		}
		acc.averted[t-1] = domain.TimePoint{Step: t, Averted: avertedAtT}

		discount *= 1 - run.DiscountRate
	}

	result := &domain.QuintileResult{
		Country:       run.Country,
		Iteration:     run.Iteration,
		Quintile:      in.Quintile,
		PreCases:      acc.preCases,
		PostCases:     acc.postCases,
		PreDeaths:     acc.preDeaths,
		PostDeaths:    acc.postDeaths,
		PreCost:       acc.preCost,
		PostCost:      acc.postCost,
		PreDALYs:      acc.preDALYs,
		PostDALYs:     acc.postDALYs,
		Vaccinated:    acc.vaccinated,
		AvertedSeries: acc.averted,
	}

	s.logger.WithFields(logrus.Fields{
		"country":    run.Country,
		"iteration":  run.Iteration,
		"quintile":   in.Quintile,
		"pre_cases":  result.PreCases,
		"post_cases": result.PostCases,
		"vaccinated": result.Vaccinated,
	}).Debug("Quintile simulation completed")

	return result, nil
}

// deaths applies the case-fatality split between treated and untreated
// cases: treatment reduces fatality by the treatment-effectiveness factor
// for the treated share only.
func deaths(cases float64, c domain.CohortValues, treatEffect float64) float64 {
	return cases*c.TreatProp*c.CFR*(1-treatEffect) + cases*(1-c.TreatProp)*c.CFR
}
