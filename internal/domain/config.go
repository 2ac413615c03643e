package domain

import "time"

// Configuration Models

// Config represents the main application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Data       DataConfig       `mapstructure:"data"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	RateLimit    float64       `mapstructure:"rate_limit"` // requests per second
	RateBurst    int           `mapstructure:"rate_burst"`
}

// DatabaseConfig represents the embedded result-store configuration
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// DataConfig locates the input tables, locally or via the table service
type DataConfig struct {
	Dir            string        `mapstructure:"dir"`          // CSV table directory
	ServiceURL     string        `mapstructure:"service_url"`  // remote table service, optional
	ServiceRate    float64       `mapstructure:"service_rate"` // requests per second
	ServiceBurst   int           `mapstructure:"service_burst"`
	ServiceTimeout time.Duration `mapstructure:"service_timeout"`
	CacheSize      int           `mapstructure:"cache_size"` // countries kept in the LRU cache
}

// SimulationConfig represents engine defaults; per-request values override
type SimulationConfig struct {
	Horizon          int     `mapstructure:"horizon"`
	DiscountRate     float64 `mapstructure:"discount_rate"`
	ProgramLength    int     `mapstructure:"program_length"`
	BuildYears       int     `mapstructure:"build_years"`
	ImmunityDuration float64 `mapstructure:"immunity_duration"`
	Waning           string  `mapstructure:"waning"`
	RampFloor        float64 `mapstructure:"ramp_floor"`
	VaccineUnitCost  float64 `mapstructure:"vaccine_unit_cost"`
	Iterations       int     `mapstructure:"iterations"`
	PSAEnabled       bool    `mapstructure:"psa_enabled"`
	Seed             int64   `mapstructure:"seed"`
	Workers          int     `mapstructure:"workers"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
