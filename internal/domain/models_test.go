package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBounded_Validate(t *testing.T) {
	tests := []struct {
		name    string
		b       Bounded
		wantErr bool
	}{
		{"ordered", Bounded{Central: 0.5, Low: 0.1, High: 0.9}, false},
		{"degenerate", Fixed(0.5), false},
		{"low above high", Bounded{Central: 0.5, Low: 0.9, High: 0.1}, true},
		{"central below low", Bounded{Central: 0.05, Low: 0.1, High: 0.9}, true},
		{"central above high", Bounded{Central: 0.95, Low: 0.1, High: 0.9}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.b.Validate("field")
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBounded_ValidateUnit(t *testing.T) {
	assert.NoError(t, Bounded{Central: 0.5, Low: 0, High: 1}.ValidateUnit("f"))
	assert.Error(t, Bounded{Central: 0.5, Low: -0.1, High: 1}.ValidateUnit("f"))
	assert.Error(t, Bounded{Central: 0.5, Low: 0, High: 1.1}.ValidateUnit("f"))
}

func TestBounded_ValidateNonNegative(t *testing.T) {
	assert.NoError(t, Bounded{Central: 30, Low: 20, High: 50}.ValidateNonNegative("f"))
	assert.Error(t, Bounded{Central: 30, Low: -1, High: 50}.ValidateNonNegative("f"))
}

func TestQuintile(t *testing.T) {
	for _, q := range Quintiles() {
		assert.True(t, q.Valid())
		assert.Equal(t, int(q)-1, q.Index())
	}
	assert.False(t, Quintile(0).Valid())
	assert.False(t, Quintile(6).Valid())
}

func TestWaningKind_Valid(t *testing.T) {
	assert.True(t, WANING_NONE.Valid())
	assert.True(t, WANING_LINEAR.Valid())
	assert.True(t, WANING_EXPONENTIAL.Valid())
	assert.False(t, WaningKind("STEPWISE").Valid())
	assert.False(t, WaningKind("").Valid())
}

func TestNewPopulationTable(t *testing.T) {
	table, err := NewPopulationTable("GHA", [][]float64{{100, 200}, {110, 210}})
	require.NoError(t, err)
	assert.Equal(t, 2, table.Years())
	assert.Equal(t, 2, table.Ages())
	assert.Equal(t, 210.0, table.At(2, 1))

	_, err = NewPopulationTable("GHA", nil)
	assert.Error(t, err)

	_, err = NewPopulationTable("GHA", [][]float64{{100, 200}, {110}})
	assert.Error(t, err)

	_, err = NewPopulationTable("GHA", [][]float64{{100, -1}})
	assert.Error(t, err)
}

func validTables(country string) *CountryTables {
	counts := make([][]float64, 5)
	for y := range counts {
		counts[y] = []float64{1000, 1000, 1000}
	}
	population, _ := NewPopulationTable(country, counts)

	var cohorts []CohortParams
	for _, q := range Quintiles() {
		for age := 0; age < 3; age++ {
			cohorts = append(cohorts, CohortParams{
				Quintile:  q,
				Age:       age,
				Incidence: Fixed(0.05),
				CFR:       Fixed(0.1),
				CaseCost:  Fixed(30),
				TreatProp: Fixed(0.6),
			})
		}
	}
	return &CountryTables{
		Country:        country,
		Population:     population,
		Coverage:       QuintileSeries{0.3, 0.45, 0.6, 0.75, 0.9},
		LifeExpectancy: QuintileSeries{55, 58, 61, 64, 67},
		Cohorts:        cohorts,
	}
}

func TestCountryTables_Validate(t *testing.T) {
	assert.NoError(t, validTables("GHA").Validate(5))

	t.Run("empty country", func(t *testing.T) {
		ct := validTables("")
		assert.Error(t, ct.Validate(5))
	})

	t.Run("population shorter than horizon", func(t *testing.T) {
		ct := validTables("GHA")
		err := ct.Validate(6)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "population")
	})

	t.Run("coverage out of range", func(t *testing.T) {
		ct := validTables("GHA")
		ct.Coverage[1] = 1.2
		err := ct.Validate(5)
		require.Error(t, err)
		ve := err.(*ValidationError)
		assert.Equal(t, "coverage", ve.Field)
		assert.Equal(t, Quintile(2), ve.Quintile)
	})

	t.Run("missing cohort rows", func(t *testing.T) {
		ct := validTables("GHA")
		ct.Cohorts = ct.Cohorts[:6]
		assert.Error(t, ct.Validate(5))
	})

	t.Run("non-contiguous cohort ages", func(t *testing.T) {
		ct := validTables("GHA")
		ct.Cohorts[1].Age = 5
		err := ct.Validate(5)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "contiguous")
	})
}

func TestGlobalParameters_Validate(t *testing.T) {
	valid := GlobalParameters{
		Efficacy:         Fixed(0.8),
		DisabilityWeight: Fixed(0.1),
		TreatmentEffect:  Fixed(0.5),
		ImmunityDuration: 10,
		ProgramLength:    10,
		BuildYears:       5,
		DiscountRate:     0.03,
		Horizon:          39,
		Waning:           WANING_NONE,
		RampFloor:        0.2,
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*GlobalParameters)
		field  string
	}{
		{"efficacy above one", func(g *GlobalParameters) { g.Efficacy = Fixed(1.2) }, "efficacy"},
		{"zero immunity duration", func(g *GlobalParameters) { g.ImmunityDuration = 0 }, "immunity_duration"},
		{"negative program length", func(g *GlobalParameters) { g.ProgramLength = -1 }, "program_length"},
		{"zero build years", func(g *GlobalParameters) { g.BuildYears = 0 }, "build_years"},
		{"discount rate of one", func(g *GlobalParameters) { g.DiscountRate = 1 }, "discount_rate"},
		{"negative unit cost", func(g *GlobalParameters) { g.VaccineUnitCost = -1 }, "vaccine_unit_cost"},
		{"zero horizon", func(g *GlobalParameters) { g.Horizon = 0 }, "horizon"},
		{"unknown waning", func(g *GlobalParameters) { g.Waning = "STEPWISE" }, "waning"},
		{"ramp floor above build years", func(g *GlobalParameters) { g.RampFloor = 6 }, "ramp_floor"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := valid
			tt.mutate(&g)
			err := g.Validate()
			require.Error(t, err)
			ce := err.(*ConfigError)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestValidationError_WithContext(t *testing.T) {
	base := NewValidationError("coverage", "coverage outside [0, 1]", 1.2)
	annotated := base.WithContext("GHA", 3)

	assert.Empty(t, base.Country, "WithContext must not mutate the original")
	assert.Equal(t, "GHA", annotated.Country)
	assert.Equal(t, Quintile(3), annotated.Quintile)
	assert.Contains(t, annotated.Error(), "country=GHA")
	assert.Contains(t, annotated.Error(), "quintile=3")
}
