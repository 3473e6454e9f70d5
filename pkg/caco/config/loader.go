package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
	"k8s.io/klog/v2"
)

// LoadFromEnv loads configuration from environment variables. If
// CACO_CONFIG_PATH points at a YAML file it is loaded first and the
// environment overrides it.
func LoadFromEnv() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CACO_CONFIG_PATH"); path != "" {
		if err := loadYAML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load config file: %v", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %v", err)
	}

	klog.V(2).InfoS("Loaded configuration",
		"computeURL", cfg.Agents.ComputeURL,
		"gridURL", cfg.Agents.GridURL,
		"carbonPenaltyWeight", cfg.Optimization.CarbonPenaltyWeight,
		"slaPenaltyWeight", cfg.Optimization.SLAPenaltyWeight,
		"maxPowerKw", cfg.Optimization.MaxPowerKW,
		"oracleEnabled", cfg.Oracle.Enabled())

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Agents: AgentsConfig{
			CoordinationURL: "http://localhost:9001",
			ComputeURL:      "http://localhost:9002",
			GridURL:         "http://localhost:9003",
		},
		Upstream: UpstreamConfig{
			CarbonIntensityURL: "https://api.carbonintensity.org.uk",
			BMRSURL:            "https://data.elexon.co.uk/bmrs/api/v1",
			Timeout:            10 * time.Second,
			CacheTTL:           5 * time.Minute,
			CacheMaxAge:        time.Hour,
		},
		Optimization: OptimizationConfig{
			CarbonPenaltyWeight: 0.5,
			SLAPenaltyWeight:    1.0,
			MaxPowerKW:          10000,
		},
		Oracle: OracleConfig{
			BaseURL:     "https://api.openai.com/v1",
			CodeVersion: "coord-1.0.0",
		},
		Telemetry: TelemetryConfig{
			EventCSVPath: "logs/events.csv",
		},
	}
}

func applyEnv(cfg *Config) {
	cfg.Agents.CoordinationURL = getEnvOrDefault("COORDINATION_AGENT_URL", cfg.Agents.CoordinationURL)
	cfg.Agents.ComputeURL = getEnvOrDefault("COMPUTE_AGENT_URL", cfg.Agents.ComputeURL)
	cfg.Agents.GridURL = getEnvOrDefault("GRID_AGENT_URL", cfg.Agents.GridURL)

	cfg.Upstream.CarbonIntensityURL = getEnvOrDefault("CARBON_INTENSITY_API_URL", cfg.Upstream.CarbonIntensityURL)
	cfg.Upstream.BMRSURL = getEnvOrDefault("BMRS_API_URL", cfg.Upstream.BMRSURL)
	cfg.Upstream.BMRSAPIKey = getEnvOrDefault("BMRS_API_KEY", cfg.Upstream.BMRSAPIKey)
	cfg.Upstream.Timeout = getDurationOrDefault("UPSTREAM_TIMEOUT", cfg.Upstream.Timeout)
	cfg.Upstream.CacheTTL = getDurationOrDefault("GRID_CACHE_TTL", cfg.Upstream.CacheTTL)
	cfg.Upstream.CacheMaxAge = getDurationOrDefault("GRID_CACHE_MAX_AGE", cfg.Upstream.CacheMaxAge)

	cfg.Optimization.CarbonPenaltyWeight = getFloatOrDefault("CARBON_PENALTY_WEIGHT", cfg.Optimization.CarbonPenaltyWeight)
	cfg.Optimization.SLAPenaltyWeight = getFloatOrDefault("SLA_PENALTY_WEIGHT", cfg.Optimization.SLAPenaltyWeight)
	cfg.Optimization.MaxPowerKW = getFloatOrDefault("MAX_POWER_KW", cfg.Optimization.MaxPowerKW)

	cfg.Oracle.Provider = getEnvOrDefault("STRATEGY_LLM_PROVIDER", cfg.Oracle.Provider)
	cfg.Oracle.Model = getEnvOrDefault("STRATEGY_LLM_MODEL", cfg.Oracle.Model)
	cfg.Oracle.BaseURL = getEnvOrDefault("STRATEGY_LLM_BASE_URL", cfg.Oracle.BaseURL)
	cfg.Oracle.APIKey = getEnvOrDefault("STRATEGY_LLM_API_KEY", cfg.Oracle.APIKey)
	cfg.Oracle.CodeVersion = getEnvOrDefault("COORDINATION_AGENT_VERSION", cfg.Oracle.CodeVersion)

	cfg.Compute.BootstrapJobsPath = getEnvOrDefault("COMPUTE_AGENT_JOBS_PATH", cfg.Compute.BootstrapJobsPath)
	cfg.History.DatabasePath = getEnvOrDefault("GRID_HISTORY_DB_PATH", cfg.History.DatabasePath)
	cfg.Telemetry.EventCSVPath = getEnvOrDefault("EVENT_CSV_PATH", cfg.Telemetry.EventCSVPath)
}

func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %v", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse %s: %v", path, err)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if strValue := os.Getenv(key); strValue != "" {
		if value, err := strconv.ParseFloat(strValue, 64); err == nil {
			return value
		}
		klog.V(2).InfoS("Invalid float value, using default",
			"key", key,
			"value", strValue,
			"default", defaultValue)
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if strValue := os.Getenv(key); strValue != "" {
		if value, err := time.ParseDuration(strValue); err == nil {
			return value
		}
		klog.V(2).InfoS("Invalid duration value, using default",
			"key", key,
			"value", strValue,
			"default", defaultValue)
	}
	return defaultValue
}
