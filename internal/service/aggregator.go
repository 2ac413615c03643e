package service

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/vaxburden-server/internal/domain"
)

// AggregationEngine combines per-quintile totals into burden-distribution
// shares, impact percentages, incremental cost/health and ICERs, and
// summarizes burden shares across PSA iterations.
type AggregationEngine struct {
	logger          *logrus.Logger
	vaccineUnitCost float64
}

// NewAggregationEngine creates a new aggregation engine
func NewAggregationEngine(logger *logrus.Logger, vaccineUnitCost float64) *AggregationEngine {
	return &AggregationEngine{logger: logger, vaccineUnitCost: vaccineUnitCost}
}

// Distribution computes the per-quintile share of total national burden
// for one iteration's five results. Shares sum to 1 per direction; with a
// zero national total the shares are all zero.
func (a *AggregationEngine) Distribution(results []domain.QuintileResult) domain.BurdenDistribution {
	var dist domain.BurdenDistribution
	var totalPre, totalPost float64
	for _, r := range results {
		totalPre += r.PreCases
		totalPost += r.PostCases
	}
	for _, r := range results {
		i := r.Quintile.Index()
		if totalPre > 0 {
			dist.Pre[i] = r.PreCases / totalPre
		}
		if totalPost > 0 {
			dist.Post[i] = r.PostCases / totalPost
		}
	}
	return dist
}

// Metrics derives the cost-effectiveness metrics for one iteration's five
// quintile results. The ICER is reported with an explicit defined flag:
// zero incremental health yields the sentinel, never a division by zero.
func (a *AggregationEngine) Metrics(results []domain.QuintileResult) ([]domain.QuintileMetrics, error) {
	if len(results) != domain.NumQuintiles {
		return nil, fmt.Errorf("expected %d quintile results, got %d", domain.NumQuintiles, len(results))
	}

	dist := a.Distribution(results)
	metrics := make([]domain.QuintileMetrics, domain.NumQuintiles)
	for _, r := range results {
		i := r.Quintile.Index()
		m := domain.QuintileMetrics{
			Quintile:  r.Quintile,
			SharePre:  dist.Pre[i],
			SharePost: dist.Post[i],
		}
		if r.PreCases > 0 {
			m.ImpactPercent = 100 * (1 - r.PostCases/r.PreCases)
		}
		m.IncrementalCost = a.vaccineUnitCost*r.Vaccinated - (r.PreCost - r.PostCost)
		m.IncrementalHealth = r.PreDALYs - r.PostDALYs
		if m.IncrementalHealth != 0 {
			m.ICER = m.IncrementalCost / m.IncrementalHealth
			m.ICERDefined = true
		}
		metrics[i] = m
	}
	return metrics, nil
}

// Summarize joins a country's results across all PSA iterations into a
// CountrySummary. With more than one iteration it adds the mean and
// 2.5th/97.5th percentile of the burden shares per quintile and direction.
func (a *AggregationEngine) Summarize(country string, results []domain.QuintileResult) (*domain.CountrySummary, error) {
	byIteration := make(map[int][]domain.QuintileResult)
	for _, r := range results {
		byIteration[r.Iteration] = append(byIteration[r.Iteration], r)
	}
	iterations := len(byIteration)
	if iterations == 0 {
		return nil, fmt.Errorf("no results for country %s", country)
	}

	summary := &domain.CountrySummary{
		Country:    country,
		Iterations: iterations,
		Results:    results,
		Metrics:    make([][]domain.QuintileMetrics, 0, iterations),
	}

	// Iterations in ascending order so the summary is deterministic.
	iterKeys := make([]int, 0, iterations)
	for it := range byIteration {
		iterKeys = append(iterKeys, it)
	}
	sort.Ints(iterKeys)

	// Per-iteration shares, collected per quintile for the interval summary.
	var sharesPre, sharesPost [domain.NumQuintiles][]float64
	for _, it := range iterKeys {
		iterResults := byIteration[it]
		metrics, err := a.Metrics(iterResults)
		if err != nil {
			return nil, fmt.Errorf("aggregating iteration %d: %w", it, err)
		}
		summary.Metrics = append(summary.Metrics, metrics)

		dist := a.Distribution(iterResults)
		for i := 0; i < domain.NumQuintiles; i++ {
			sharesPre[i] = append(sharesPre[i], dist.Pre[i])
			sharesPost[i] = append(sharesPost[i], dist.Post[i])
		}
	}

	if iterations > 1 {
		unc := &domain.ShareUncertainty{}
		for i := 0; i < domain.NumQuintiles; i++ {
			unc.Pre[i] = interval(sharesPre[i])
			unc.Post[i] = interval(sharesPost[i])
		}
		summary.Uncertainty = unc
	}

	a.logger.WithFields(logrus.Fields{
		"country":    country,
		"iterations": iterations,
		"results":    len(results),
	}).Info("Country summary completed")

	return summary, nil
}

// interval computes the mean and empirical 2.5/97.5 percentiles of the
// per-iteration share samples.
func interval(samples []float64) domain.ShareInterval {
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)
	return domain.ShareInterval{
		Mean:  stat.Mean(sorted, nil),
		Lower: stat.Quantile(0.025, stat.Empirical, sorted, nil),
		Upper: stat.Quantile(0.975, stat.Empirical, sorted, nil),
	}
}
