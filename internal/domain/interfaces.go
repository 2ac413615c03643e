package domain

import "context"

// TableSource provides the parsed input tables for a country. The CSV
// loader and the remote data-source client both satisfy it.
type TableSource interface {
	LoadCountry(ctx context.Context, country string) (*CountryTables, error)
}

// ResultStore persists run metadata and quintile results for reporting.
type ResultStore interface {
	SaveRun(ctx context.Context, run *RunRecord, results []QuintileResult) error
	GetRun(ctx context.Context, id string) (*RunRecord, error)
	ListRuns(ctx context.Context, limit, offset int) ([]*RunRecord, error)
	GetRunResults(ctx context.Context, id string) ([]QuintileResult, error)
	Close() error
}
