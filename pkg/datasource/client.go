// Package datasource provides a client for fetching country input tables
// from a remote demographic table service, with rate limiting and a
// circuit breaker around the upstream.
package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/vaxburden-server/internal/domain"
)

// Config represents the table-service client configuration
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64 // requests per second
	RateBurst int
}

// Client fetches country table sets over HTTP. It satisfies
// domain.TableSource so the engine can consume remote and local tables
// interchangeably.
type Client struct {
	baseURL    string
	httpClient *http.Client
	rateLimit  *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	logger     *logrus.Logger
}

// countryPayload is the wire format of the table service. Population
// rows are flat (year, age, count) triples, like the CSV layout.
type countryPayload struct {
	Country        string                `json:"country"`
	Population     []populationCell      `json:"population"`
	Coverage       domain.QuintileSeries `json:"coverage"`
	LifeExpectancy domain.QuintileSeries `json:"life_expectancy"`
	Cohorts        []domain.CohortParams `json:"cohorts"`
}

type populationCell struct {
	Year  int     `json:"year"`
	Age   int     `json:"age"`
	Count float64 `json:"count"`
}

// NewClient creates a new table-service client
func NewClient(config Config, logger *logrus.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 5
	}
	if config.RateBurst == 0 {
		config.RateBurst = 1
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "TableService",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &Client{
		baseURL:    config.BaseURL,
		httpClient: &http.Client{Timeout: config.Timeout},
		rateLimit:  rate.NewLimiter(rate.Limit(config.RateLimit), config.RateBurst),
		breaker:    breaker,
		logger:     logger,
	}
}

// LoadCountry fetches and validates the table set for one country.
func (c *Client) LoadCountry(ctx context.Context, country string) (*domain.CountryTables, error) {
	if err := c.rateLimit.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, country)
	})
	if err != nil {
		return nil, domain.NewEngineError(domain.ErrDataSource,
			fmt.Sprintf("failed to fetch tables for country %s", country), err.Error(), "")
	}

	payload := result.(*countryPayload)
	tables, err := payload.toTables()
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"country": country,
		"cohorts": len(tables.Cohorts),
	}).Info("Country tables fetched from table service")

	return tables, nil
}

func (c *Client) fetch(ctx context.Context, country string) (*countryPayload, error) {
	url := fmt.Sprintf("%s/countries/%s/tables", c.baseURL, country)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("table service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("country %s not found in table service", country)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("table service returned status %d", resp.StatusCode)
	}

	var payload countryPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding table service response: %w", err)
	}
	return &payload, nil
}

// toTables converts the wire payload into the engine's table model.
func (p *countryPayload) toTables() (*domain.CountryTables, error) {
	maxYear, maxAge := 0, -1
	for _, cell := range p.Population {
		if cell.Year < 1 || cell.Age < 0 {
			return nil, domain.NewValidationError("population",
				fmt.Sprintf("year must be >= 1 and age >= 0, got year=%d age=%d", cell.Year, cell.Age), cell)
		}
		if cell.Year > maxYear {
			maxYear = cell.Year
		}
		if cell.Age > maxAge {
			maxAge = cell.Age
		}
	}
	if maxYear == 0 || maxAge < 0 {
		return nil, domain.NewValidationError("population", "table is empty", nil)
	}

	counts := make([][]float64, maxYear)
	for y := range counts {
		counts[y] = make([]float64, maxAge+1)
	}
	for _, cell := range p.Population {
		counts[cell.Year-1][cell.Age] = cell.Count
	}
	population, err := domain.NewPopulationTable(p.Country, counts)
	if err != nil {
		return nil, err
	}

	return &domain.CountryTables{
		Country:        p.Country,
		Population:     population,
		Coverage:       p.Coverage,
		LifeExpectancy: p.LifeExpectancy,
		Cohorts:        p.Cohorts,
	}, nil
}
