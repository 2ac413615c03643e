package loader

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaxburden-server/internal/domain"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// writeCountry lays out a valid country directory, then applies overrides
// keyed by file name so each test can corrupt exactly one table.
func writeCountry(t *testing.T, root, country string, overrides map[string]string) {
	t.Helper()

	var population strings.Builder
	population.WriteString("year,age,population\n")
	for year := 1; year <= 5; year++ {
		for age := 0; age < 3; age++ {
			fmt.Fprintf(&population, "%d,%d,%d\n", year, age, 1000+10*age)
		}
	}

	var cohorts strings.Builder
	cohorts.WriteString("quintile,age,incidence,incidence_low,incidence_high,cfr,cfr_low,cfr_high,case_cost,case_cost_low,case_cost_high,treat_prop,treat_prop_low,treat_prop_high\n")
	for q := 1; q <= 5; q++ {
		for age := 0; age < 3; age++ {
			fmt.Fprintf(&cohorts, "%d,%d,0.05,0.02,0.1,0.1,0.05,0.2,30,20,50,0.6,0.4,0.8\n", q, age)
		}
	}

	files := map[string]string{
		"population.csv":      population.String(),
		"coverage.csv":        "quintile,coverage\n1,0.3\n2,0.45\n3,0.6\n4,0.75\n5,0.9\n",
		"life_expectancy.csv": "quintile,years\n1,55\n2,58\n3,61\n4,64\n5,67\n",
		"cohort_params.csv":   cohorts.String(),
	}
	for name, content := range overrides {
		files[name] = content
	}

	dir := filepath.Join(root, country)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
}

func TestCSVLoader_LoadCountry(t *testing.T) {
	root := t.TempDir()
	writeCountry(t, root, "GHA", nil)

	l, err := NewCSVLoader(root, 4, testLogger())
	require.NoError(t, err)

	tables, err := l.LoadCountry(context.Background(), "GHA")
	require.NoError(t, err)

	assert.Equal(t, "GHA", tables.Country)
	assert.Equal(t, 5, tables.Population.Years())
	assert.Equal(t, 3, tables.Population.Ages())
	assert.InDelta(t, 1020.0, tables.Population.At(1, 2), 1e-9)
	assert.InDelta(t, 0.45, tables.Coverage.For(2), 1e-9)
	assert.InDelta(t, 67.0, tables.LifeExpectancy.For(5), 1e-9)
	require.Len(t, tables.Cohorts, 15)

	rows := tables.CohortsFor(3)
	require.Len(t, rows, 3)
	assert.Equal(t, 0, rows[0].Age)
	assert.InDelta(t, 0.05, rows[0].Incidence.Central, 1e-9)
	assert.InDelta(t, 0.02, rows[0].Incidence.Low, 1e-9)
	assert.InDelta(t, 0.1, rows[0].Incidence.High, 1e-9)

	require.NoError(t, tables.Validate(5))
}

func TestCSVLoader_CacheHitReturnsSameTables(t *testing.T) {
	root := t.TempDir()
	writeCountry(t, root, "GHA", nil)

	l, err := NewCSVLoader(root, 4, testLogger())
	require.NoError(t, err)

	first, err := l.LoadCountry(context.Background(), "GHA")
	require.NoError(t, err)

	// Deleting the files proves the second load never touches disk.
	require.NoError(t, os.RemoveAll(filepath.Join(root, "GHA")))

	second, err := l.LoadCountry(context.Background(), "GHA")
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestCSVLoader_MissingCountry(t *testing.T) {
	l, err := NewCSVLoader(t.TempDir(), 4, testLogger())
	require.NoError(t, err)

	_, err = l.LoadCountry(context.Background(), "XXX")
	require.Error(t, err)
	ee, ok := err.(*domain.EngineError)
	require.True(t, ok, "expected EngineError, got %T", err)
	assert.Equal(t, domain.ErrDataSource, ee.Code)
}

func TestCSVLoader_InvalidTables(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]string
		wantField string
	}{
		{
			name:      "non-numeric population count",
			overrides: map[string]string{"population.csv": "year,age,population\n1,0,abc\n"},
			wantField: "population.count",
		},
		{
			name:      "zero year index",
			overrides: map[string]string{"population.csv": "year,age,population\n0,0,100\n"},
			wantField: "population",
		},
		{
			name:      "negative population",
			overrides: map[string]string{"population.csv": "year,age,population\n1,0,-5\n"},
			wantField: "population",
		},
		{
			name:      "missing coverage quintile",
			overrides: map[string]string{"coverage.csv": "quintile,coverage\n1,0.3\n2,0.45\n3,0.6\n4,0.75\n"},
			wantField: "coverage",
		},
		{
			name:      "duplicate coverage quintile",
			overrides: map[string]string{"coverage.csv": "quintile,coverage\n1,0.3\n1,0.4\n2,0.45\n3,0.6\n4,0.75\n5,0.9\n"},
			wantField: "coverage",
		},
		{
			name:      "life expectancy quintile out of range",
			overrides: map[string]string{"life_expectancy.csv": "quintile,years\n1,55\n2,58\n3,61\n4,64\n6,67\n"},
			wantField: "life_expectancy",
		},
		{
			name: "cohort row too short",
			overrides: map[string]string{
				"cohort_params.csv": "quintile,age,incidence\n1,0,0.05\n",
			},
			wantField: "cohorts",
		},
		{
			name: "cohort bounds inverted",
			overrides: map[string]string{
				"cohort_params.csv": "1,0,0.05,0.1,0.02,0.1,0.05,0.2,30,20,50,0.6,0.4,0.8\n",
			},
			wantField: "incidence",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			writeCountry(t, root, "GHA", tt.overrides)

			l, err := NewCSVLoader(root, 4, testLogger())
			require.NoError(t, err)

			_, err = l.LoadCountry(context.Background(), "GHA")
			require.Error(t, err)
			ve, ok := err.(*domain.ValidationError)
			require.True(t, ok, "expected ValidationError, got %T", err)
			assert.Equal(t, tt.wantField, ve.Field)
		})
	}
}
