package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaxburden-server/internal/domain"
)

func testGlobals() domain.GlobalParameters {
	return domain.GlobalParameters{
		Efficacy:         domain.Bounded{Central: 0.8, Low: 0.6, High: 0.95},
		DisabilityWeight: domain.Bounded{Central: 0.1, Low: 0.05, High: 0.2},
		TreatmentEffect:  domain.Bounded{Central: 0.5, Low: 0.3, High: 0.7},
		ImmunityDuration: 10,
		ProgramLength:    10,
		BuildYears:       5,
		DiscountRate:     0.03,
		VaccineUnitCost:  2.5,
		Horizon:          10,
		Waning:           domain.WANING_NONE,
		RampFloor:        0.2,
	}
}

func testTables(t *testing.T, country string) *domain.CountryTables {
	t.Helper()
	ages := 6
	cohorts := make([]domain.CohortParams, 0, domain.NumQuintiles*ages)
	for _, q := range domain.Quintiles() {
		for a := 0; a < ages; a++ {
			cohorts = append(cohorts, domain.CohortParams{
				Quintile:  q,
				Age:       a,
				Incidence: domain.Bounded{Central: 0.05, Low: 0.02, High: 0.1},
				CFR:       domain.Bounded{Central: 0.1, Low: 0.05, High: 0.2},
				CaseCost:  domain.Bounded{Central: 30, Low: 20, High: 50},
				TreatProp: domain.Bounded{Central: 0.6, Low: 0.4, High: 0.8},
			})
		}
	}
	return &domain.CountryTables{
		Country:        country,
		Population:     flatPopulation(t, 10, ages, 10000),
		Coverage:       domain.QuintileSeries{0.3, 0.45, 0.6, 0.75, 0.9},
		LifeExpectancy: domain.QuintileSeries{55, 58, 61, 64, 67},
		Cohorts:        cohorts,
	}
}

func TestRunner_DeterministicAcrossWorkerCounts(t *testing.T) {
	globals := testGlobals()
	ctx := context.Background()

	run := func(workers int) *domain.RunOutput {
		runner := NewRunner(testLogger(), globals, RunnerOptions{
			Iterations: 4,
			PSAEnabled: true,
			BaseSeed:   42,
			Workers:    workers,
		})
		out, err := runner.Run(ctx, globals, []*domain.CountryTables{
			testTables(t, "GHA"), testTables(t, "KEN"),
		})
		require.NoError(t, err)
		return out
	}

	serial := run(1)
	parallel := run(8)

	require.Len(t, serial.Summaries, 2)
	assert.Equal(t, serial.Summaries, parallel.Summaries)
}

func TestRunner_PSADrawsVaryAcrossIterations(t *testing.T) {
	globals := testGlobals()
	runner := NewRunner(testLogger(), globals, RunnerOptions{
		Iterations: 3,
		PSAEnabled: true,
		BaseSeed:   7,
		Workers:    2,
	})

	out, err := runner.Run(context.Background(), globals, []*domain.CountryTables{testTables(t, "GHA")})
	require.NoError(t, err)

	summary := out.Summaries["GHA"]
	require.NotNil(t, summary)
	require.Len(t, summary.Results, 3*domain.NumQuintiles)
	require.NotNil(t, summary.Uncertainty)

	// Different draws must produce different burdens for the same quintile.
	byIteration := make(map[int]float64)
	for _, r := range summary.Results {
		if r.Quintile == 1 {
			byIteration[r.Iteration] = r.PostCases
		}
	}
	require.Len(t, byIteration, 3)
	assert.NotEqual(t, byIteration[1], byIteration[2])
}

func TestRunner_DegenerateBoundsCollapsePSA(t *testing.T) {
	globals := testGlobals()
	globals.Efficacy = domain.Fixed(0.8)
	globals.DisabilityWeight = domain.Fixed(0.1)
	globals.TreatmentEffect = domain.Fixed(0.5)

	tables := testTables(t, "GHA")
	for i := range tables.Cohorts {
		c := &tables.Cohorts[i]
		c.Incidence = domain.Fixed(c.Incidence.Central)
		c.CFR = domain.Fixed(c.CFR.Central)
		c.CaseCost = domain.Fixed(c.CaseCost.Central)
		c.TreatProp = domain.Fixed(c.TreatProp.Central)
	}

	runner := NewRunner(testLogger(), globals, RunnerOptions{
		Iterations: 2,
		PSAEnabled: true,
		BaseSeed:   42,
		Workers:    2,
	})
	out, err := runner.Run(context.Background(), globals, []*domain.CountryTables{tables})
	require.NoError(t, err)

	summary := out.Summaries["GHA"]
	require.NotNil(t, summary)

	// With every bound collapsed the two iterations are the same run.
	first := make(map[domain.Quintile]domain.QuintileResult)
	for _, r := range summary.Results {
		if r.Iteration == 1 {
			first[r.Quintile] = r
		}
	}
	for _, r := range summary.Results {
		if r.Iteration != 2 {
			continue
		}
		want := first[r.Quintile]
		assert.Equal(t, want.PreCases, r.PreCases)
		assert.Equal(t, want.PostCases, r.PostCases)
		assert.Equal(t, want.PreDALYs, r.PreDALYs)
		assert.Equal(t, want.PostDALYs, r.PostDALYs)
	}
}

func TestRunner_InvalidGlobalsFailFast(t *testing.T) {
	globals := testGlobals()
	globals.DiscountRate = 1.5

	runner := NewRunner(testLogger(), globals, RunnerOptions{Iterations: 1, Workers: 1})
	_, err := runner.Run(context.Background(), globals, []*domain.CountryTables{testTables(t, "GHA")})
	require.Error(t, err)
	assert.IsType(t, &domain.ConfigError{}, err)
}

func TestRunner_InvalidCountrySkipped(t *testing.T) {
	globals := testGlobals()

	bad := testTables(t, "BAD")
	bad.Coverage[2] = 1.4

	runner := NewRunner(testLogger(), globals, RunnerOptions{Iterations: 1, Workers: 2})
	out, err := runner.Run(context.Background(), globals, []*domain.CountryTables{
		testTables(t, "GHA"), bad,
	})
	require.NoError(t, err)

	assert.Contains(t, out.Summaries, "GHA")
	assert.NotContains(t, out.Summaries, "BAD")
	assert.Contains(t, out.Skipped["BAD"], "coverage")
}

func TestRunner_ShortPopulationTableSkipped(t *testing.T) {
	globals := testGlobals()

	short := testTables(t, "SHT")
	short.Population = flatPopulation(t, globals.Horizon-1, 6, 10000)

	runner := NewRunner(testLogger(), globals, RunnerOptions{Iterations: 1, Workers: 1})
	out, err := runner.Run(context.Background(), globals, []*domain.CountryTables{short})
	require.NoError(t, err)
	assert.Empty(t, out.Summaries)
	assert.Contains(t, out.Skipped["SHT"], "population")
}
