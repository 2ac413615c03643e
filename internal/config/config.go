package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/vaxburden-server/internal/domain"
)

// Manager loads and validates application configuration using Viper
type Manager struct {
	config *domain.Config
}

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from file, environment and defaults
func (m *Manager) loadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/vaxburden/")

	viper.SetEnvPrefix("VAXBURDEN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	m.setDefaults()

	// Config file is optional; defaults and env vars suffice for batch runs
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "120s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.rate_limit", 10.0)
	viper.SetDefault("server.rate_burst", 20)

	// Database defaults
	viper.SetDefault("database.path", "./data/vaxburden.db")

	// Data source defaults
	viper.SetDefault("data.dir", "./data/tables")
	viper.SetDefault("data.service_url", "")
	viper.SetDefault("data.service_rate", 5.0)
	viper.SetDefault("data.service_burst", 5)
	viper.SetDefault("data.service_timeout", "30s")
	viper.SetDefault("data.cache_size", 64)

	// Simulation defaults. The horizon and discount rate are the standard
	// multi-decade settings; the ramp floor is an empirical constant kept
	// tunable rather than hard-coded.
	viper.SetDefault("simulation.horizon", 39)
	viper.SetDefault("simulation.discount_rate", 0.03)
	viper.SetDefault("simulation.program_length", 10)
	viper.SetDefault("simulation.build_years", 5)
	viper.SetDefault("simulation.immunity_duration", 10.0)
	viper.SetDefault("simulation.waning", string(domain.WANING_NONE))
	viper.SetDefault("simulation.ramp_floor", 0.2)
	viper.SetDefault("simulation.vaccine_unit_cost", 0.0)
	viper.SetDefault("simulation.iterations", 1)
	viper.SetDefault("simulation.psa_enabled", false)
	viper.SetDefault("simulation.seed", 1)
	viper.SetDefault("simulation.workers", 4)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetSimulationConfig returns engine default configuration
func (m *Manager) GetSimulationConfig() *domain.SimulationConfig {
	return &m.config.Simulation
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	if config.Data.Dir == "" && config.Data.ServiceURL == "" {
		return fmt.Errorf("either data.dir or data.service_url is required")
	}
	if config.Data.CacheSize < 1 {
		return fmt.Errorf("data.cache_size must be at least 1")
	}

	sim := config.Simulation
	if sim.Horizon < 1 {
		return fmt.Errorf("simulation.horizon must be at least 1")
	}
	if sim.DiscountRate < 0 || sim.DiscountRate >= 1 {
		return fmt.Errorf("simulation.discount_rate must be in [0, 1)")
	}
	if sim.Iterations < 1 {
		return fmt.Errorf("simulation.iterations must be at least 1")
	}
	if sim.Workers < 1 {
		return fmt.Errorf("simulation.workers must be at least 1")
	}
	if !domain.WaningKind(sim.Waning).Valid() {
		return fmt.Errorf("invalid simulation.waning: %s", sim.Waning)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// Globals builds the engine's GlobalParameters from the configured
// simulation defaults. Efficacy, disability weight and treatment effect
// have no configured defaults and must come from the request or table set.
func (m *Manager) Globals() domain.GlobalParameters {
	sim := m.config.Simulation
	return domain.GlobalParameters{
		ImmunityDuration: sim.ImmunityDuration,
		ProgramLength:    sim.ProgramLength,
		BuildYears:       sim.BuildYears,
		DiscountRate:     sim.DiscountRate,
		VaccineUnitCost:  sim.VaccineUnitCost,
		Horizon:          sim.Horizon,
		Waning:           domain.WaningKind(sim.Waning),
		RampFloor:        sim.RampFloor,
	}
}
