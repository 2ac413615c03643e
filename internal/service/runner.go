package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/vaxburden-server/internal/domain"
)

// Runner orchestrates a full engine run: validation, PSA sampling and the
// parallel simulation of every (country, iteration) unit, followed by
// per-country aggregation.
type Runner struct {
	logger     *logrus.Logger
	simulator  *BurdenSimulator
	aggregator *AggregationEngine

	iterations int
	psaEnabled bool
	baseSeed   int64
	workers    int
}

// RunnerOptions configures a Runner
type RunnerOptions struct {
	Iterations int
	PSAEnabled bool
	BaseSeed   int64
	Workers    int
}

// NewRunner creates a new engine runner
func NewRunner(logger *logrus.Logger, globals domain.GlobalParameters, opts RunnerOptions) *Runner {
	if opts.Iterations < 1 {
		opts.Iterations = 1
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Runner{
		logger:     logger,
		simulator:  NewBurdenSimulator(logger, globals.RampFloor),
		aggregator: NewAggregationEngine(logger, globals.VaccineUnitCost),
		iterations: opts.Iterations,
		psaEnabled: opts.PSAEnabled,
		baseSeed:   opts.BaseSeed,
		workers:    opts.Workers,
	}
}

// unitKey identifies one independent work unit
type unitKey struct {
	country   string
	iteration int
}

// Run executes the engine over the given countries. Countries failing
// validation are skipped with their error recorded; a failure inside one
// unit aborts only that country. Work units run concurrently behind a
// buffered-channel semaphore, each with its own seeded stream and
// accumulators, so the output is bit-reproducible for any worker count.
func (r *Runner) Run(ctx context.Context, globals domain.GlobalParameters, countries []*domain.CountryTables) (*domain.RunOutput, error) {
	// Configuration errors invalidate every draw; fail before any work.
	if err := globals.Validate(); err != nil {
		return nil, err
	}

	output := &domain.RunOutput{
		Summaries: make(map[string]*domain.CountrySummary),
		Skipped:   make(map[string]string),
	}

	// Fail-fast validation per country, before the parallel region.
	valid := make([]*domain.CountryTables, 0, len(countries))
	for _, ct := range countries {
		if err := ct.Validate(globals.Horizon); err != nil {
			r.logger.WithError(err).WithField("country", ct.Country).Warn("Skipping country: validation failed")
			output.Skipped[ct.Country] = err.Error()
			continue
		}
		valid = append(valid, ct)
	}

	results := make(map[unitKey][]domain.QuintileResult)
	failed := make(map[string]string)
	var mu sync.Mutex
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, r.workers)

	r.logger.WithFields(logrus.Fields{
		"countries":  len(valid),
		"iterations": r.iterations,
		"workers":    r.workers,
		"psa":        r.psaEnabled,
	}).Info("Starting burden simulation run")

	for _, ct := range valid {
		for it := 1; it <= r.iterations; it++ {
			wg.Add(1)
			go func(ct *domain.CountryTables, iteration int) {
				defer wg.Done()

				select {
				case semaphore <- struct{}{}:
					defer func() { <-semaphore }()
				case <-ctx.Done():
					mu.Lock()
					failed[ct.Country] = ctx.Err().Error()
					mu.Unlock()
					return
				}

				unit, err := r.runUnit(globals, ct, iteration)
				mu.Lock()
				if err != nil {
					failed[ct.Country] = err.Error()
				} else {
					// Write-once: a unit's results become visible only as a
					// completed set.
					results[unitKey{ct.Country, iteration}] = unit
				}
				mu.Unlock()
			}(ct, it)
		}
	}

	wg.Wait()

	for _, ct := range valid {
		if msg, ok := failed[ct.Country]; ok {
			r.logger.WithFields(logrus.Fields{
				"country": ct.Country,
				"error":   msg,
			}).Warn("Country aborted during simulation")
			output.Skipped[ct.Country] = msg
			continue
		}
		var all []domain.QuintileResult
		for it := 1; it <= r.iterations; it++ {
			all = append(all, results[unitKey{ct.Country, it}]...)
		}
		summary, err := r.aggregator.Summarize(ct.Country, all)
		if err != nil {
			return nil, fmt.Errorf("summarizing country %s: %w", ct.Country, err)
		}
		output.Summaries[ct.Country] = summary
	}

	r.logger.WithFields(logrus.Fields{
		"completed": len(output.Summaries),
		"skipped":   len(output.Skipped),
	}).Info("Burden simulation run completed")

	return output, nil
}

// runUnit simulates all five quintiles of one (country, iteration) unit.
// The unit owns its sampler stream and run context; nothing here is
// shared with other units except the read-only tables.
func (r *Runner) runUnit(globals domain.GlobalParameters, ct *domain.CountryTables, iteration int) ([]domain.QuintileResult, error) {
	sampler := NewUnitSampler(r.psaEnabled, r.baseSeed, ct.Country, iteration)

	run, err := r.sampleContext(sampler, globals, ct.Country, iteration)
	if err != nil {
		return nil, err
	}

	unit := make([]domain.QuintileResult, 0, domain.NumQuintiles)
	for _, q := range domain.Quintiles() {
		rows := ct.CohortsFor(q)
		cohorts := make([]domain.CohortValues, 0, len(rows))
		for _, row := range rows {
			v, err := sampler.SampleCohort(row)
			if err != nil {
				return nil, fmt.Errorf("sampling quintile %d cohort age %d: %w", q, row.Age, err)
			}
			cohorts = append(cohorts, v)
		}

		result, err := r.simulator.SimulateQuintile(QuintileInput{
			Run:            run,
			Quintile:       q,
			Coverage:       ct.Coverage.For(q),
			LifeExpectancy: ct.LifeExpectancy.For(q),
			Cohorts:        cohorts,
			Population:     ct.Population,
		})
		if err != nil {
			return nil, err
		}
		unit = append(unit, *result)
	}
	return unit, nil
}

// sampleContext resolves the PSA-varied globals into the iteration's
// immutable run context. Globals are copied, never overwritten in place.
func (r *Runner) sampleContext(sampler *ParameterSampler, globals domain.GlobalParameters, country string, iteration int) (domain.RunContext, error) {
	run := domain.RunContext{
		Country:          country,
		Iteration:        iteration,
		ImmunityDuration: globals.ImmunityDuration,
		ProgramLength:    globals.ProgramLength,
		BuildYears:       globals.BuildYears,
		DiscountRate:     globals.DiscountRate,
		Horizon:          globals.Horizon,
		Waning:           globals.Waning,
		RampFloor:        globals.RampFloor,
	}
	var err error
	if run.Efficacy, err = sampler.Sample(globals.Efficacy); err != nil {
		return run, fmt.Errorf("sampling efficacy: %w", err)
	}
	if run.DisabilityWeight, err = sampler.Sample(globals.DisabilityWeight); err != nil {
		return run, fmt.Errorf("sampling disability weight: %w", err)
	}
	if run.TreatmentEffect, err = sampler.Sample(globals.TreatmentEffect); err != nil {
		return run, fmt.Errorf("sampling treatment effectiveness: %w", err)
	}
	return run, nil
}
