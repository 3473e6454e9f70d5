package config

import (
	"fmt"
	"time"
)

// Config holds all configuration for the CACO planner agents.
type Config struct {
	Agents       AgentsConfig       `yaml:"agents"`
	Upstream     UpstreamConfig     `yaml:"upstream"`
	Optimization OptimizationConfig `yaml:"optimization"`
	Oracle       OracleConfig       `yaml:"oracle"`
	Compute      ComputeConfig      `yaml:"compute"`
	History      HistoryConfig      `yaml:"history"`
	Telemetry    TelemetryConfig    `yaml:"telemetry"`
}

// AgentsConfig holds the service endpoints of the three agents.
type AgentsConfig struct {
	CoordinationURL string `yaml:"coordinationUrl"`
	ComputeURL      string `yaml:"computeUrl"`
	GridURL         string `yaml:"gridUrl"`
}

// UpstreamConfig holds settings for the external grid data providers.
type UpstreamConfig struct {
	CarbonIntensityURL string        `yaml:"carbonIntensityUrl"`
	BMRSURL            string        `yaml:"bmrsUrl"`
	BMRSAPIKey         string        `yaml:"bmrsApiKey"`
	Timeout            time.Duration `yaml:"timeout"`
	CacheTTL           time.Duration `yaml:"cacheTTL"`
	CacheMaxAge        time.Duration `yaml:"cacheMaxAge"`
}

// OptimizationConfig holds the default scheduling weights. Payload
// overrides and the weight oracle are applied on top per planning cycle.
type OptimizationConfig struct {
	CarbonPenaltyWeight float64 `yaml:"carbonPenaltyWeight"`
	SLAPenaltyWeight    float64 `yaml:"slaPenaltyWeight"`
	MaxPowerKW          float64 `yaml:"maxPowerKw"`
}

// OracleConfig holds settings for the optional weight oracle. The oracle is
// disabled unless both Provider and Model are set.
type OracleConfig struct {
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	BaseURL     string `yaml:"baseUrl"`
	APIKey      string `yaml:"apiKey"`
	CodeVersion string `yaml:"codeVersion"`
}

// ComputeConfig holds settings for the compute ledger.
type ComputeConfig struct {
	BootstrapJobsPath string `yaml:"bootstrapJobsPath"`
}

// HistoryConfig holds settings for the optional grid series recorder.
type HistoryConfig struct {
	DatabasePath string `yaml:"databasePath"`
}

// TelemetryConfig holds settings for CSV event logging.
type TelemetryConfig struct {
	EventCSVPath string `yaml:"eventCsvPath"`
}

// Enabled reports whether the oracle is configured.
func (o OracleConfig) Enabled() bool {
	return o.Provider != "" && o.Model != ""
}

// Validate performs validation of the configuration.
func (c *Config) Validate() error {
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("upstream timeout must be positive")
	}
	if c.Optimization.CarbonPenaltyWeight < 0 || c.Optimization.CarbonPenaltyWeight > 10 {
		return fmt.Errorf("carbon penalty weight must be within [0, 10]")
	}
	if c.Optimization.SLAPenaltyWeight < 0 || c.Optimization.SLAPenaltyWeight > 10 {
		return fmt.Errorf("SLA penalty weight must be within [0, 10]")
	}
	if c.Optimization.MaxPowerKW < 1000 {
		return fmt.Errorf("max power cap must be at least 1000 kW")
	}
	return nil
}
