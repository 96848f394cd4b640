// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir string // Base directory for the snapshot database and model files (always absolute)

	// Input datasets
	ZonesPath      string // Zone feature CSV
	RespondersPath string // Responder roster CSV
	PriorPath      string // Prior device allocation CSV (optional, empty = no baseline)

	// Allocation
	TotalUnits int // Device units to distribute
	Floor      int // Minimum units per zone
	Ceiling    int // Maximum units per zone, 0 = uncapped

	// Assignment
	DMaxMeters    float64       // Reachability threshold for responder-zone pairs
	ZoneCap       int           // Responders per zone, 0 = uncapped
	SolverTimeout time.Duration // Budget for one assignment solve

	// Priority
	Amplifier       float64 // Multiplier applied to top-quantile risk zones
	AmplifyQuantile float64 // Quantile above which the amplifier applies

	RunOnStart   bool   // Execute the pipeline once at startup
	PipelineCron string // Cron expression for scheduled re-runs, empty = disabled

	// Snapshot backup to S3, disabled when bucket is empty
	S3Bucket            string
	S3Prefix            string
	S3Region            string
	BackupCron          string // Cron expression for scheduled backups
	BackupRetentionDays int    // 0 = keep all backups

	LogLevel string
	Port     int
	DevMode  bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("COVERPLAN_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:        absDataDir,
		ZonesPath:      getEnv("COVERPLAN_ZONES_CSV", filepath.Join(absDataDir, "zones.csv")),
		RespondersPath: getEnv("COVERPLAN_RESPONDERS_CSV", filepath.Join(absDataDir, "responders.csv")),
		PriorPath:      getEnv("COVERPLAN_PRIOR_CSV", ""),

		TotalUnits: getEnvAsInt("COVERPLAN_TOTAL_UNITS", 0),
		Floor:      getEnvAsInt("COVERPLAN_FLOOR", 1),
		Ceiling:    getEnvAsInt("COVERPLAN_CEILING", 0),

		DMaxMeters:    getEnvAsFloat("COVERPLAN_DMAX_METERS", 1000),
		ZoneCap:       getEnvAsInt("COVERPLAN_ZONE_CAP", 0),
		SolverTimeout: time.Duration(getEnvAsInt("COVERPLAN_SOLVER_TIMEOUT_SECONDS", 30)) * time.Second,

		Amplifier:       getEnvAsFloat("COVERPLAN_AMPLIFIER", 1.0),
		AmplifyQuantile: getEnvAsFloat("COVERPLAN_AMPLIFY_QUANTILE", 0.80),

		RunOnStart:   getEnvAsBool("COVERPLAN_RUN_ON_START", true),
		PipelineCron: getEnv("COVERPLAN_PIPELINE_CRON", ""),

		S3Bucket:            getEnv("COVERPLAN_S3_BUCKET", ""),
		S3Prefix:            getEnv("COVERPLAN_S3_PREFIX", "snapshots"),
		S3Region:            getEnv("COVERPLAN_S3_REGION", ""),
		BackupCron:          getEnv("COVERPLAN_BACKUP_CRON", "0 0 3 * * *"),
		BackupRetentionDays: getEnvAsInt("COVERPLAN_BACKUP_RETENTION_DAYS", 30),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		Port:     getEnvAsInt("GO_PORT", 8001),
		DevMode:  getEnvAsBool("DEV_MODE", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DatabasePath returns the snapshot database location under DataDir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "snapshots.db")
}

// ModelPath returns where the trained risk model is persisted.
func (c *Config) ModelPath() string {
	return filepath.Join(c.DataDir, "risk_model.msgpack")
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.TotalUnits < 0 {
		return fmt.Errorf("COVERPLAN_TOTAL_UNITS must be non-negative, got %d", c.TotalUnits)
	}
	if c.Floor < 0 {
		return fmt.Errorf("COVERPLAN_FLOOR must be non-negative, got %d", c.Floor)
	}
	if c.Ceiling < 0 {
		return fmt.Errorf("COVERPLAN_CEILING must be non-negative, got %d", c.Ceiling)
	}
	if c.Ceiling > 0 && c.Ceiling < c.Floor {
		return fmt.Errorf("COVERPLAN_CEILING (%d) must be at least COVERPLAN_FLOOR (%d)", c.Ceiling, c.Floor)
	}
	if c.DMaxMeters <= 0 {
		return fmt.Errorf("COVERPLAN_DMAX_METERS must be positive, got %f", c.DMaxMeters)
	}
	if c.AmplifyQuantile < 0 || c.AmplifyQuantile > 1 {
		return fmt.Errorf("COVERPLAN_AMPLIFY_QUANTILE must be in [0, 1], got %f", c.AmplifyQuantile)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
