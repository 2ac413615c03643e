// Package loader reads the per-country CSV input tables and validates
// them before they reach the engine. Parsed table sets are cached in an
// LRU so repeated runs over the same countries skip the filesystem.
package loader

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/vaxburden-server/internal/domain"
)

// Expected files inside each country directory.
const (
	populationFile = "population.csv"      // year_index, age_index, population
	coverageFile   = "coverage.csv"        // quintile, coverage
	lifeExpFile    = "life_expectancy.csv" // quintile, years
	cohortFile     = "cohort_params.csv"   // quintile, age, 4 x (central, low, high)
)

// CSVLoader loads country table sets from a directory tree laid out as
// <dir>/<country>/<table>.csv.
type CSVLoader struct {
	dir    string
	logger *logrus.Logger
	cache  *lru.Cache[string, *domain.CountryTables]
}

// NewCSVLoader creates a loader rooted at dir with an LRU cache of
// cacheSize country table sets.
func NewCSVLoader(dir string, cacheSize int, logger *logrus.Logger) (*CSVLoader, error) {
	if cacheSize < 1 {
		cacheSize = 1
	}
	cache, err := lru.New[string, *domain.CountryTables](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create table cache: %w", err)
	}
	return &CSVLoader{dir: dir, logger: logger, cache: cache}, nil
}

// LoadCountry returns the parsed and validated table set for a country.
func (l *CSVLoader) LoadCountry(ctx context.Context, country string) (*domain.CountryTables, error) {
	if tables, ok := l.cache.Get(country); ok {
		l.logger.WithField("country", country).Debug("Table cache hit")
		return tables, nil
	}

	dir := filepath.Join(l.dir, country)
	if _, err := os.Stat(dir); err != nil {
		return nil, domain.NewEngineError(domain.ErrDataSource,
			fmt.Sprintf("no table directory for country %s", country), err.Error(), "")
	}

	population, err := l.loadPopulation(filepath.Join(dir, populationFile), country)
	if err != nil {
		return nil, err
	}
	coverage, err := l.loadQuintileSeries(filepath.Join(dir, coverageFile), "coverage")
	if err != nil {
		return nil, err
	}
	lifeExp, err := l.loadQuintileSeries(filepath.Join(dir, lifeExpFile), "life_expectancy")
	if err != nil {
		return nil, err
	}
	cohorts, err := l.loadCohorts(filepath.Join(dir, cohortFile))
	if err != nil {
		return nil, err
	}

	tables := &domain.CountryTables{
		Country:        country,
		Population:     population,
		Coverage:       coverage,
		LifeExpectancy: lifeExp,
		Cohorts:        cohorts,
	}

	l.cache.Add(country, tables)
	l.logger.WithFields(logrus.Fields{
		"country": country,
		"years":   population.Years(),
		"ages":    population.Ages(),
		"cohorts": len(cohorts),
	}).Info("Country tables loaded")

	return tables, nil
}

// readRecords opens a CSV file and returns its data rows, skipping a
// header row when the first field is not numeric.
func readRecords(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	if len(records) > 0 {
		if _, err := strconv.ParseFloat(records[0][0], 64); err != nil {
			records = records[1:]
		}
	}
	return records, nil
}

func parseFloat(field, value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, domain.NewValidationError(field, fmt.Sprintf("not a number: %q", value), value)
	}
	return v, nil
}

func parseInt(field, value string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, domain.NewValidationError(field, fmt.Sprintf("not an integer: %q", value), value)
	}
	return v, nil
}

// loadPopulation reads (year_index, age_index, population) triples into a
// dense year x age table. Indexes are 1-based for years, 0-based for ages.
func (l *CSVLoader) loadPopulation(path, country string) (*domain.PopulationTable, error) {
	records, err := readRecords(path)
	if err != nil {
		return nil, err
	}

	type cell struct {
		year, age int
		count     float64
	}
	cells := make([]cell, 0, len(records))
	maxYear, maxAge := 0, -1
	for _, rec := range records {
		if len(rec) < 3 {
			return nil, domain.NewValidationError("population", "row needs year, age, population", rec)
		}
		year, err := parseInt("population.year", rec[0])
		if err != nil {
			return nil, err
		}
		age, err := parseInt("population.age", rec[1])
		if err != nil {
			return nil, err
		}
		count, err := parseFloat("population.count", rec[2])
		if err != nil {
			return nil, err
		}
		if year < 1 || age < 0 {
			return nil, domain.NewValidationError("population",
				fmt.Sprintf("year must be >= 1 and age >= 0, got year=%d age=%d", year, age), rec)
		}
		if year > maxYear {
			maxYear = year
		}
		if age > maxAge {
			maxAge = age
		}
		cells = append(cells, cell{year, age, count})
	}
	if maxYear == 0 || maxAge < 0 {
		return nil, domain.NewValidationError("population", "table is empty", nil)
	}

	counts := make([][]float64, maxYear)
	for y := range counts {
		counts[y] = make([]float64, maxAge+1)
	}
	for _, c := range cells {
		counts[c.year-1][c.age] = c.count
	}
	return domain.NewPopulationTable(country, counts)
}

// loadQuintileSeries reads (quintile, value) pairs; every quintile must
// appear exactly once.
func (l *CSVLoader) loadQuintileSeries(path, field string) (domain.QuintileSeries, error) {
	var series domain.QuintileSeries
	records, err := readRecords(path)
	if err != nil {
		return series, err
	}

	seen := make(map[domain.Quintile]bool)
	for _, rec := range records {
		if len(rec) < 2 {
			return series, domain.NewValidationError(field, "row needs quintile, value", rec)
		}
		qi, err := parseInt(field+".quintile", rec[0])
		if err != nil {
			return series, err
		}
		q := domain.Quintile(qi)
		if !q.Valid() {
			return series, domain.NewValidationError(field, "quintile out of range", qi)
		}
		if seen[q] {
			return series, domain.NewValidationError(field, fmt.Sprintf("duplicate quintile %d", qi), qi)
		}
		v, err := parseFloat(field+".value", rec[1])
		if err != nil {
			return series, err
		}
		series[q.Index()] = v
		seen[q] = true
	}
	for _, q := range domain.Quintiles() {
		if !seen[q] {
			return series, domain.NewValidationError(field, fmt.Sprintf("missing quintile %d", q), nil)
		}
	}
	return series, nil
}

// loadCohorts reads the cohort parameter table: quintile, age, then
// central/low/high triples for incidence, cfr, case cost and treatment
// proportion. Rows are returned ordered by (quintile, age).
func (l *CSVLoader) loadCohorts(path string) ([]domain.CohortParams, error) {
	records, err := readRecords(path)
	if err != nil {
		return nil, err
	}

	rows := make([]domain.CohortParams, 0, len(records))
	for _, rec := range records {
		if len(rec) < 14 {
			return nil, domain.NewValidationError("cohorts",
				"row needs quintile, age and 4 bounded parameters", rec)
		}
		qi, err := parseInt("cohorts.quintile", rec[0])
		if err != nil {
			return nil, err
		}
		age, err := parseInt("cohorts.age", rec[1])
		if err != nil {
			return nil, err
		}
		row := domain.CohortParams{Quintile: domain.Quintile(qi), Age: age}

		fields := []struct {
			name string
			dst  *domain.Bounded
		}{
			{"incidence", &row.Incidence},
			{"cfr", &row.CFR},
			{"case_cost", &row.CaseCost},
			{"treat_prop", &row.TreatProp},
		}
		for fi, f := range fields {
			base := 2 + fi*3
			if f.dst.Central, err = parseFloat("cohorts."+f.name, rec[base]); err != nil {
				return nil, err
			}
			if f.dst.Low, err = parseFloat("cohorts."+f.name+"_low", rec[base+1]); err != nil {
				return nil, err
			}
			if f.dst.High, err = parseFloat("cohorts."+f.name+"_high", rec[base+2]); err != nil {
				return nil, err
			}
		}
		if err := row.Validate(); err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Quintile != rows[j].Quintile {
			return rows[i].Quintile < rows[j].Quintile
		}
		return rows[i].Age < rows[j].Age
	})
	return rows, nil
}
