// Package config loads pipeline tuning from a JSON file and MMW_* environment
// variables. File values override built-in defaults; environment variables
// override both, so a deployed unit can be nudged without editing files.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/radian-data/presence.report/internal/presence"
)

// TuningConfig represents the root configuration for tuning parameters.
// All fields are pointers so a partial JSON file only overrides what it
// names; the Get* methods supply defaults for everything else.
type TuningConfig struct {
	// Output shaping
	MaxPoints *int `json:"max_points,omitempty"`

	// Plausibility bounds
	MaxAbsX *float64 `json:"max_abs_x,omitempty"`
	MinY    *float64 `json:"min_y,omitempty"`
	MaxY    *float64 `json:"max_y,omitempty"`
	MaxAbsZ *float64 `json:"max_abs_z,omitempty"`
	MaxAbsV *float64 `json:"max_abs_v,omitempty"`
	MinSNR  *int     `json:"min_snr,omitempty"`

	// Density clustering
	ClusterEps        *float64 `json:"cluster_eps,omitempty"`
	ClusterMinSamples *int     `json:"cluster_min_samples,omitempty"`

	// Cluster selection and gating
	MinPersonPoints *int     `json:"min_person_points,omitempty"`
	MaxMedianRadius *float64 `json:"max_median_radius,omitempty"`
	PrefYMax        *float64 `json:"pref_y_max,omitempty"`
	MinMedianSpeed  *float64 `json:"min_median_speed,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Every Get* method then answers with its built-in default.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. Fields omitted from
// the JSON file retain their default values, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Environment variable names honored by ApplyEnv. They predate the JSON file
// and remain the primary knob on deployed units.
const (
	EnvMaxPoints         = "MMW_MAX_POINTS"
	EnvMaxAbsX           = "MMW_MAX_ABS_X"
	EnvMinY              = "MMW_MIN_Y"
	EnvMaxY              = "MMW_MAX_Y"
	EnvMaxAbsZ           = "MMW_MAX_ABS_Z"
	EnvMaxAbsV           = "MMW_MAX_ABS_V"
	EnvMinSNR            = "MMW_MIN_SNR"
	EnvClusterEps        = "MMW_CLUSTER_EPS"
	EnvClusterMinSamples = "MMW_CLUSTER_MIN_SAMPLES"
	EnvMinPersonPoints   = "MMW_MIN_PERSON_POINTS"
	EnvMaxMedianRadius   = "MMW_MAX_MEDIAN_RADIUS_M"
	EnvPrefYMax          = "MMW_PREF_Y_MAX"
	EnvMinMedianSpeed    = "MMW_MIN_MEDIAN_SPEED"
)

// ApplyEnv overlays MMW_* environment variables onto the config. Unparseable
// values are rejected rather than silently ignored so a typo in a unit file
// fails loudly at startup.
func (c *TuningConfig) ApplyEnv() error {
	if err := envInt(EnvMaxPoints, &c.MaxPoints); err != nil {
		return err
	}
	if err := envFloat(EnvMaxAbsX, &c.MaxAbsX); err != nil {
		return err
	}
	if err := envFloat(EnvMinY, &c.MinY); err != nil {
		return err
	}
	if err := envFloat(EnvMaxY, &c.MaxY); err != nil {
		return err
	}
	if err := envFloat(EnvMaxAbsZ, &c.MaxAbsZ); err != nil {
		return err
	}
	if err := envFloat(EnvMaxAbsV, &c.MaxAbsV); err != nil {
		return err
	}
	if err := envInt(EnvMinSNR, &c.MinSNR); err != nil {
		return err
	}
	if err := envFloat(EnvClusterEps, &c.ClusterEps); err != nil {
		return err
	}
	if err := envInt(EnvClusterMinSamples, &c.ClusterMinSamples); err != nil {
		return err
	}
	if err := envInt(EnvMinPersonPoints, &c.MinPersonPoints); err != nil {
		return err
	}
	if err := envFloat(EnvMaxMedianRadius, &c.MaxMedianRadius); err != nil {
		return err
	}
	if err := envFloat(EnvPrefYMax, &c.PrefYMax); err != nil {
		return err
	}
	if err := envFloat(EnvMinMedianSpeed, &c.MinMedianSpeed); err != nil {
		return err
	}
	return c.Validate()
}

func envFloat(name string, dst **float64) error {
	raw, ok := os.LookupEnv(name)
	if !ok || raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid %s=%q: %w", name, raw, err)
	}
	*dst = &v
	return nil
}

func envInt(name string, dst **int) error {
	raw, ok := os.LookupEnv(name)
	if !ok || raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid %s=%q: %w", name, raw, err)
	}
	*dst = &v
	return nil
}

// Validate checks that the configuration values are usable.
func (c *TuningConfig) Validate() error {
	if c.MaxPoints != nil && *c.MaxPoints < 1 {
		return fmt.Errorf("max_points must be positive, got %d", *c.MaxPoints)
	}
	if c.ClusterEps != nil && *c.ClusterEps <= 0 {
		return fmt.Errorf("cluster_eps must be positive, got %f", *c.ClusterEps)
	}
	if c.ClusterMinSamples != nil && *c.ClusterMinSamples < 1 {
		return fmt.Errorf("cluster_min_samples must be positive, got %d", *c.ClusterMinSamples)
	}
	if c.MinPersonPoints != nil && *c.MinPersonPoints < 1 {
		return fmt.Errorf("min_person_points must be positive, got %d", *c.MinPersonPoints)
	}
	if c.MaxMedianRadius != nil && *c.MaxMedianRadius <= 0 {
		return fmt.Errorf("max_median_radius must be positive, got %f", *c.MaxMedianRadius)
	}
	if c.MinMedianSpeed != nil && *c.MinMedianSpeed < 0 {
		return fmt.Errorf("min_median_speed must be non-negative, got %f", *c.MinMedianSpeed)
	}
	if c.MinY != nil && c.MaxY != nil && *c.MinY >= *c.MaxY {
		return fmt.Errorf("min_y %f must be below max_y %f", *c.MinY, *c.MaxY)
	}
	return nil
}

// GetMaxPoints returns the max_points value or the default.
func (c *TuningConfig) GetMaxPoints() int {
	if c.MaxPoints == nil {
		return 50
	}
	return *c.MaxPoints
}

// GetMaxAbsX returns the max_abs_x value or the default.
func (c *TuningConfig) GetMaxAbsX() float64 {
	if c.MaxAbsX == nil {
		return 6.0
	}
	return *c.MaxAbsX
}

// GetMinY returns the min_y value or the default.
func (c *TuningConfig) GetMinY() float64 {
	if c.MinY == nil {
		return 1.0
	}
	return *c.MinY
}

// GetMaxY returns the max_y value or the default.
func (c *TuningConfig) GetMaxY() float64 {
	if c.MaxY == nil {
		return 8.0
	}
	return *c.MaxY
}

// GetMaxAbsZ returns the max_abs_z value or the default.
func (c *TuningConfig) GetMaxAbsZ() float64 {
	if c.MaxAbsZ == nil {
		return 3.0
	}
	return *c.MaxAbsZ
}

// GetMaxAbsV returns the max_abs_v value or the default.
func (c *TuningConfig) GetMaxAbsV() float64 {
	if c.MaxAbsV == nil {
		return 6.0
	}
	return *c.MaxAbsV
}

// GetMinSNR returns the min_snr value or the default.
func (c *TuningConfig) GetMinSNR() int {
	if c.MinSNR == nil {
		return 70
	}
	return *c.MinSNR
}

// GetClusterEps returns the cluster_eps value or the default.
func (c *TuningConfig) GetClusterEps() float64 {
	if c.ClusterEps == nil {
		return 0.7
	}
	return *c.ClusterEps
}

// GetClusterMinSamples returns the cluster_min_samples value or the default.
func (c *TuningConfig) GetClusterMinSamples() int {
	if c.ClusterMinSamples == nil {
		return 3
	}
	return *c.ClusterMinSamples
}

// GetMinPersonPoints returns the min_person_points value or the default.
func (c *TuningConfig) GetMinPersonPoints() int {
	if c.MinPersonPoints == nil {
		return 4
	}
	return *c.MinPersonPoints
}

// GetMaxMedianRadius returns the max_median_radius value or the default.
func (c *TuningConfig) GetMaxMedianRadius() float64 {
	if c.MaxMedianRadius == nil {
		return 0.85
	}
	return *c.MaxMedianRadius
}

// GetPrefYMax returns the pref_y_max value or the default.
func (c *TuningConfig) GetPrefYMax() float64 {
	if c.PrefYMax == nil {
		return 3.5
	}
	return *c.PrefYMax
}

// GetMinMedianSpeed returns the min_median_speed value or the default.
func (c *TuningConfig) GetMinMedianSpeed() float64 {
	if c.MinMedianSpeed == nil {
		return 0.0
	}
	return *c.MinMedianSpeed
}

// Params materializes the pipeline parameter set from the config.
func (c *TuningConfig) Params() presence.Params {
	return presence.Params{
		MaxPoints:         c.GetMaxPoints(),
		MaxAbsX:           c.GetMaxAbsX(),
		MinY:              c.GetMinY(),
		MaxY:              c.GetMaxY(),
		MaxAbsZ:           c.GetMaxAbsZ(),
		MaxAbsV:           c.GetMaxAbsV(),
		MinSNR:            c.GetMinSNR(),
		ClusterEps:        c.GetClusterEps(),
		ClusterMinSamples: c.GetClusterMinSamples(),
		MinPersonPoints:   c.GetMinPersonPoints(),
		MaxMedianRadius:   c.GetMaxMedianRadius(),
		PrefYMax:          c.GetPrefYMax(),
		MinMedianSpeed:    c.GetMinMedianSpeed(),
	}
}
