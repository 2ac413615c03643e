// Command simulate runs the burden engine in batch mode over a set of
// countries and writes the country summaries as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vaxburden-server/internal/config"
	"github.com/vaxburden-server/internal/database"
	"github.com/vaxburden-server/internal/domain"
	"github.com/vaxburden-server/internal/loader"
	"github.com/vaxburden-server/internal/repository"
	"github.com/vaxburden-server/internal/service"
)

func main() {
	var (
		countriesFlag = flag.String("countries", "", "comma-separated country codes (required)")
		efficacy      = flag.Float64("efficacy", 0.8, "central vaccine efficacy")
		efficacyLow   = flag.Float64("efficacy-low", -1, "low efficacy bound (defaults to central)")
		efficacyHigh  = flag.Float64("efficacy-high", -1, "high efficacy bound (defaults to central)")
		disability    = flag.Float64("disability-weight", 0.1, "central disability weight")
		treatEffect   = flag.Float64("treatment-effect", 0.5, "central treatment effectiveness")
		unitCost      = flag.Float64("unit-cost", 0, "vaccine unit cost")
		iterations    = flag.Int("iterations", 0, "PSA iterations (0 uses configured default)")
		psa           = flag.Bool("psa", false, "enable probabilistic sensitivity analysis")
		seed          = flag.Int64("seed", 0, "base random seed (0 uses configured default)")
		outPath       = flag.String("out", "", "output JSON path (default stdout)")
		noPersist     = flag.Bool("no-persist", false, "skip writing results to the result database")
	)
	flag.Parse()

	if *countriesFlag == "" {
		fmt.Fprintln(os.Stderr, "usage: simulate -countries GHA,KEN [flags]")
		flag.PrintDefaults()
		os.Exit(2)
	}
	countries := strings.Split(*countriesFlag, ",")

	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := configManager.GetConfig()
	logger := config.NewLogger(&cfg.Logging)

	globals := configManager.Globals()
	globals.Efficacy = bounded(*efficacy, *efficacyLow, *efficacyHigh)
	globals.DisabilityWeight = domain.Fixed(*disability)
	globals.TreatmentEffect = domain.Fixed(*treatEffect)
	globals.VaccineUnitCost = *unitCost

	opts := service.RunnerOptions{
		Iterations: cfg.Simulation.Iterations,
		PSAEnabled: cfg.Simulation.PSAEnabled || *psa,
		BaseSeed:   cfg.Simulation.Seed,
		Workers:    cfg.Simulation.Workers,
	}
	if *iterations > 0 {
		opts.Iterations = *iterations
	}
	if *seed != 0 {
		opts.BaseSeed = *seed
	}

	ctx := context.Background()

	tableLoader, err := loader.NewCSVLoader(cfg.Data.Dir, cfg.Data.CacheSize, logger)
	if err != nil {
		log.Fatalf("Failed to create table loader: %v", err)
	}

	tables := make([]*domain.CountryTables, 0, len(countries))
	for _, country := range countries {
		country = strings.TrimSpace(country)
		ct, err := tableLoader.LoadCountry(ctx, country)
		if err != nil {
			logger.WithError(err).WithField("country", country).Warn("Skipping country: tables unavailable")
			continue
		}
		tables = append(tables, ct)
	}

	runner := service.NewRunner(logger, globals, opts)
	output, err := runner.Run(ctx, globals, tables)
	if err != nil {
		log.Fatalf("Simulation failed: %v", err)
	}

	if !*noPersist {
		db, err := database.NewConnection(ctx, cfg.Database.Path, logger)
		if err != nil {
			log.Fatalf("Failed to open result database: %v", err)
		}
		defer db.Close()
		store := repository.NewStore(db.SQL)
		for country, summary := range output.Summaries {
			run := &domain.RunRecord{
				ID:         uuid.New().String(),
				Country:    country,
				Iterations: opts.Iterations,
				Seed:       opts.BaseSeed,
				PSAEnabled: opts.PSAEnabled,
				CreatedAt:  time.Now().UTC(),
			}
			if err := store.SaveRun(ctx, run, summary.Results); err != nil {
				log.Fatalf("Failed to persist run for %s: %v", country, err)
			}
		}
	}

	out := os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			log.Fatalf("Failed to create output file: %v", err)
		}
		defer f.Close()
		out = f
	}
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(output); err != nil {
		log.Fatalf("Failed to encode output: %v", err)
	}
}

// bounded builds a Bounded from flag values, defaulting missing bounds
// to the central estimate.
func bounded(central, low, high float64) domain.Bounded {
	b := domain.Bounded{Central: central, Low: central, High: central}
	if low >= 0 {
		b.Low = low
	}
	if high >= 0 {
		b.High = high
	}
	return b
}
