package domain

import (
	"fmt"
	"time"
)

// Input Tables
//
// All tables are loaded once per country before the parallel region and
// treated as read-only from then on.

// PopulationTable holds population counts by calendar-year index and age
// index for one country. Year indexes are 1-based (t = 1..Years); age
// indexes are 0-based.
type PopulationTable struct {
	Country string
	counts  [][]float64 // [year][age]
}

// NewPopulationTable builds a population table, rejecting negative counts
// and ragged rows.
func NewPopulationTable(country string, counts [][]float64) (*PopulationTable, error) {
	if len(counts) == 0 {
		return nil, NewValidationError("population", "table has no year rows", nil)
	}
	ages := len(counts[0])
	for y, row := range counts {
		if len(row) != ages {
			return nil, NewValidationError("population",
				fmt.Sprintf("year %d has %d age cells, expected %d", y+1, len(row), ages), nil)
		}
		for a, v := range row {
			if v < 0 {
				return nil, NewValidationError("population",
					fmt.Sprintf("negative population at year %d, age %d", y+1, a), v)
			}
		}
	}
	return &PopulationTable{Country: country, counts: counts}, nil
}

// Years returns the number of calendar-year rows
func (p *PopulationTable) Years() int { return len(p.counts) }

// Ages returns the number of age indexes per year
func (p *PopulationTable) Ages() int {
	if len(p.counts) == 0 {
		return 0
	}
	return len(p.counts[0])
}

// At returns the population at 1-based year t and 0-based age index
func (p *PopulationTable) At(t, age int) float64 {
	return p.counts[t-1][age]
}

// QuintileSeries is a per-quintile vector indexed by Quintile.Index().
// A fixed-size array keeps quintile lookups statically typed instead of
// assembling keys by string concatenation.
type QuintileSeries [NumQuintiles]float64

// For returns the value for the given quintile
func (s QuintileSeries) For(q Quintile) float64 { return s[q.Index()] }

// CohortParams carries the disease parameters for one (quintile, age)
// cohort, each with its PSA bounds.
type CohortParams struct {
	Quintile  Quintile `json:"quintile"`
	Age       int      `json:"age"`
	Incidence Bounded  `json:"incidence"`   // cases per person per year
	CFR       Bounded  `json:"cfr"`         // case-fatality rate
	CaseCost  Bounded  `json:"case_cost"`   // currency per treated case
	TreatProp Bounded  `json:"treat_prop"`  // treatment-seeking proportion
}

// Validate checks every field against its documented domain
func (c CohortParams) Validate() error {
	if !c.Quintile.Valid() {
		return NewValidationError("quintile", "quintile out of range", c.Quintile)
	}
	if c.Age < 0 {
		return NewValidationError("age", "age index must be non-negative", c.Age)
	}
	if err := c.Incidence.ValidateNonNegative("incidence"); err != nil {
		return err
	}
	if err := c.CFR.ValidateUnit("cfr"); err != nil {
		return err
	}
	if err := c.CaseCost.ValidateNonNegative("case_cost"); err != nil {
		return err
	}
	return c.TreatProp.ValidateUnit("treat_prop")
}

// CountryTables bundles the four parsed input tables for one country.
type CountryTables struct {
	Country        string           `json:"country"`
	Population     *PopulationTable `json:"-"`
	Coverage       QuintileSeries   `json:"coverage"`        // vaccine coverage fraction per quintile
	LifeExpectancy QuintileSeries   `json:"life_expectancy"` // residual life expectancy at birth per quintile
	Cohorts        []CohortParams   `json:"cohorts"`         // ordered by (quintile, age)
}

// CohortsFor returns the cohort rows for one quintile, ordered by age 0..max.
func (ct *CountryTables) CohortsFor(q Quintile) []CohortParams {
	out := make([]CohortParams, 0, len(ct.Cohorts)/NumQuintiles)
	for _, row := range ct.Cohorts {
		if row.Quintile == q {
			out = append(out, row)
		}
	}
	return out
}

// Validate fails fast on missing or out-of-domain data so an invalid
// country is skipped before any simulation work.
func (ct *CountryTables) Validate(horizon int) error {
	if ct.Country == "" {
		return NewValidationError("country", "country code is empty", nil)
	}
	if ct.Population == nil {
		return NewValidationError("population", "population table missing", nil).WithContext(ct.Country, 0)
	}
	if ct.Population.Years() < horizon {
		return NewValidationError("population",
			fmt.Sprintf("population table covers %d years, horizon is %d", ct.Population.Years(), horizon),
			nil).WithContext(ct.Country, 0)
	}
	for _, q := range Quintiles() {
		cov := ct.Coverage.For(q)
		if cov < 0 || cov > 1 {
			return NewValidationError("coverage", "coverage outside [0, 1]", cov).WithContext(ct.Country, q)
		}
		if ct.LifeExpectancy.For(q) < 0 {
			return NewValidationError("life_expectancy", "life expectancy must be non-negative",
				ct.LifeExpectancy.For(q)).WithContext(ct.Country, q)
		}
		rows := ct.CohortsFor(q)
		if len(rows) == 0 {
			return NewValidationError("cohorts", "no cohort parameter rows", nil).WithContext(ct.Country, q)
		}
		for i, row := range rows {
			if row.Age != i {
				return NewValidationError("cohorts",
					fmt.Sprintf("cohort ages not contiguous: row %d has age %d", i, row.Age),
					nil).WithContext(ct.Country, q)
			}
			if err := row.Validate(); err != nil {
				if ve, ok := err.(*ValidationError); ok {
					return ve.WithContext(ct.Country, q)
				}
				return err
			}
		}
		if len(rows) > ct.Population.Ages() {
			return NewValidationError("population",
				fmt.Sprintf("population table has %d age cells, cohort table needs %d",
					ct.Population.Ages(), len(rows)), nil).WithContext(ct.Country, q)
		}
	}
	return nil
}

// Global Parameters

// GlobalParameters holds the run-wide vaccine and accounting inputs.
// Logically immutable once a run starts; PSA never mutates these in
// place but derives a fresh RunContext per iteration.
type GlobalParameters struct {
	Efficacy         Bounded    `json:"efficacy"`
	DisabilityWeight Bounded    `json:"disability_weight"`
	TreatmentEffect  Bounded    `json:"treatment_effect"`
	ImmunityDuration float64    `json:"immunity_duration"` // years of protection
	ProgramLength    int        `json:"program_length"`    // years the program vaccinates
	BuildYears       int        `json:"build_years"`       // coverage ramp-up period
	DiscountRate     float64    `json:"discount_rate"`     // per annual time step
	VaccineUnitCost  float64    `json:"vaccine_unit_cost"`
	Horizon          int        `json:"horizon"` // simulated time steps
	Waning           WaningKind `json:"waning"`
	RampFloor        float64    `json:"ramp_floor"` // lower clamp of the coverage ramp, tunable
}

// Validate surfaces configuration errors before any simulation begins.
func (g GlobalParameters) Validate() error {
	if err := g.Efficacy.ValidateUnit("efficacy"); err != nil {
		return NewConfigError("efficacy", err.Error())
	}
	if err := g.DisabilityWeight.ValidateUnit("disability_weight"); err != nil {
		return NewConfigError("disability_weight", err.Error())
	}
	if err := g.TreatmentEffect.ValidateUnit("treatment_effect"); err != nil {
		return NewConfigError("treatment_effect", err.Error())
	}
	if g.ImmunityDuration <= 0 {
		return NewConfigError("immunity_duration", "must be positive")
	}
	if g.ProgramLength < 0 {
		return NewConfigError("program_length", "must be non-negative")
	}
	if g.BuildYears < 1 {
		return NewConfigError("build_years", "must be at least 1")
	}
	if g.DiscountRate < 0 || g.DiscountRate >= 1 {
		return NewConfigError("discount_rate", "must be in [0, 1)")
	}
	if g.VaccineUnitCost < 0 {
		return NewConfigError("vaccine_unit_cost", "must be non-negative")
	}
	if g.Horizon < 1 {
		return NewConfigError("horizon", "must be at least 1")
	}
	if !g.Waning.Valid() {
		return NewConfigError("waning", fmt.Sprintf("unknown waning kind %q", g.Waning))
	}
	if g.RampFloor <= 0 || g.RampFloor > float64(g.BuildYears) {
		return NewConfigError("ramp_floor", "must be in (0, build_years]")
	}
	return nil
}

// RunContext is the immutable set of resolved global values for one PSA
// iteration. It is constructed once per iteration from sampled draws and
// passed into the simulator, never mutated.
type RunContext struct {
	Country          string
	Iteration        int
	Efficacy         float64
	DisabilityWeight float64
	TreatmentEffect  float64
	ImmunityDuration float64
	ProgramLength    int
	BuildYears       int
	DiscountRate     float64
	Horizon          int
	Waning           WaningKind
	RampFloor        float64
}

// CohortValues is one cohort row with its PSA draws resolved to scalars.
type CohortValues struct {
	Age       int
	Incidence float64
	CFR       float64
	CaseCost  float64
	TreatProp float64
}

// Results

// TimePoint is one cell of the cases-averted time series.
type TimePoint struct {
	Step    int     `json:"step"`
	Averted float64 `json:"averted"`
}

// QuintileResult is the immutable outcome of simulating one quintile for
// one (country, iteration). Appended to the run's results, never mutated.
type QuintileResult struct {
	Country   string   `json:"country"`
	Iteration int      `json:"iteration"`
	Quintile  Quintile `json:"quintile"`

	PreCases   float64 `json:"pre_cases"`
	PostCases  float64 `json:"post_cases"`
	PreDeaths  float64 `json:"pre_deaths"`
	PostDeaths float64 `json:"post_deaths"`
	PreCost    float64 `json:"pre_cost"`
	PostCost   float64 `json:"post_cost"`
	PreDALYs   float64 `json:"pre_dalys"`
	PostDALYs  float64 `json:"post_dalys"`
	Vaccinated float64 `json:"vaccinated"`

	AvertedSeries []TimePoint `json:"averted_series,omitempty"`
}

// QuintileMetrics carries the derived cost-effectiveness metrics for one
// quintile of one iteration.
type QuintileMetrics struct {
	Quintile          Quintile `json:"quintile"`
	SharePre          float64  `json:"share_pre"`
	SharePost         float64  `json:"share_post"`
	ImpactPercent     float64  `json:"impact_percent"`
	IncrementalCost   float64  `json:"incremental_cost"`
	IncrementalHealth float64  `json:"incremental_health"`
	// ICER is meaningful only when ICERDefined is true; when incremental
	// health is zero the ratio has no value and is reported as a sentinel
	// instead of a division by zero.
	ICER        float64 `json:"icer,omitempty"`
	ICERDefined bool    `json:"icer_defined"`
}

// BurdenDistribution is the per-quintile share of total national burden.
// Shares sum to 1 across quintiles for each direction.
type BurdenDistribution struct {
	Pre  QuintileSeries `json:"pre"`
	Post QuintileSeries `json:"post"`
}

// ShareInterval is the PSA summary of one quintile's burden share.
type ShareInterval struct {
	Mean  float64 `json:"mean"`
	Lower float64 `json:"lower"` // 2.5th percentile
	Upper float64 `json:"upper"` // 97.5th percentile
}

// ShareUncertainty holds the cross-iteration interval per quintile and
// direction. Present only when more than one PSA iteration ran.
type ShareUncertainty struct {
	Pre  [NumQuintiles]ShareInterval `json:"pre"`
	Post [NumQuintiles]ShareInterval `json:"post"`
}

// CountrySummary joins a country's quintile results with derived metrics
// and, for multi-iteration runs, the burden-share uncertainty intervals.
type CountrySummary struct {
	Country     string             `json:"country"`
	Iterations  int                `json:"iterations"`
	Results     []QuintileResult   `json:"results"`
	Metrics     [][]QuintileMetrics `json:"metrics"` // [iteration][quintile]
	Uncertainty *ShareUncertainty  `json:"uncertainty,omitempty"`
}

// RunRecord is the persisted metadata of one engine invocation.
type RunRecord struct {
	ID         string    `json:"id"`
	Country    string    `json:"country"`
	Iterations int       `json:"iterations"`
	Seed       int64     `json:"seed"`
	PSAEnabled bool      `json:"psa_enabled"`
	CreatedAt  time.Time `json:"created_at"`
}

// RunOutput is everything the engine hands to its reporting collaborators.
type RunOutput struct {
	Summaries map[string]*CountrySummary `json:"summaries"`
	// Skipped maps country codes to the validation error that excluded them.
	Skipped map[string]string `json:"skipped,omitempty"`
}
