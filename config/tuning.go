package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"localizer-go/fusion"
)

// TuningConfig is the estimator tuning file. Every field is optional; the
// Get* methods fall back to the deployed defaults for anything omitted.
type TuningConfig struct {
	// Buffer and window
	BufferCapacity  *int     `json:"buffer_capacity,omitempty"`
	EstimationSpanM *float64 `json:"estimation_span_m,omitempty"`

	// Alignment
	SpeedThresholdMps         *float64 `json:"speed_threshold_mps,omitempty"`
	PositionOutlierThresholdM *float64 `json:"position_outlier_threshold_m,omitempty"`
	GiveUpFraction            *float64 `json:"giveup_fraction,omitempty"`
	MinAnchorFraction         *float64 `json:"min_anchor_fraction,omitempty"`
	GNSSDecimation            *int     `json:"gnss_decimation,omitempty"`

	// Rates
	VelocityRateHz *float64 `json:"velocity_rate_hz,omitempty"`
	TickRateHz     *float64 `json:"tick_rate_hz,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields unset.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field set to the
// deployed default.
func DefaultTuningConfig() *TuningConfig {
	return &TuningConfig{
		BufferCapacity:            ptrInt(fusion.DefaultBufferCapacity),
		EstimationSpanM:           ptrFloat64(fusion.DefaultEstimationSpan),
		SpeedThresholdMps:         ptrFloat64(fusion.DefaultSpeedThreshold),
		PositionOutlierThresholdM: ptrFloat64(fusion.DefaultPositionOutlierThreshold),
		GiveUpFraction:            ptrFloat64(fusion.DefaultGiveUpFraction),
		MinAnchorFraction:         ptrFloat64(fusion.DefaultMinAnchorFraction),
		GNSSDecimation:            ptrInt(fusion.DefaultGNSSDecimation),
		VelocityRateHz:            ptrFloat64(fusion.DefaultVelocityRateHz),
		TickRateHz:                ptrFloat64(fusion.DefaultTickRateHz),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file must have a .json extension and be at most 1MB. Fields omitted
// from the file keep their defaults, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
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

// Validate checks the effective values, including defaults for unset fields.
func (c *TuningConfig) Validate() error {
	if v := c.GetBufferCapacity(); v < 2 {
		return fmt.Errorf("buffer_capacity must be at least 2, got %d", v)
	}
	if v := c.GetEstimationSpanM(); v <= 0 {
		return fmt.Errorf("estimation_span_m must be positive, got %f", v)
	}
	if v := c.GetSpeedThresholdMps(); v < 0 {
		return fmt.Errorf("speed_threshold_mps must be non-negative, got %f", v)
	}
	if v := c.GetPositionOutlierThresholdM(); v < 0 {
		return fmt.Errorf("position_outlier_threshold_m must be non-negative, got %f", v)
	}
	if v := c.GetGiveUpFraction(); v < 0 || v > 1 {
		return fmt.Errorf("giveup_fraction must be between 0 and 1, got %f", v)
	}
	if v := c.GetMinAnchorFraction(); v < 0 || v > 1 {
		return fmt.Errorf("min_anchor_fraction must be between 0 and 1, got %f", v)
	}
	if v := c.GetGNSSDecimation(); v < 1 {
		return fmt.Errorf("gnss_decimation must be at least 1, got %d", v)
	}
	vel, tick := c.GetVelocityRateHz(), c.GetTickRateHz()
	if vel <= 0 || tick <= 0 {
		return fmt.Errorf("velocity_rate_hz and tick_rate_hz must be positive, got %f and %f", vel, tick)
	}
	if tick > vel {
		return fmt.Errorf("tick_rate_hz %f exceeds velocity_rate_hz %f", tick, vel)
	}
	return nil
}

// Params converts the configuration into estimator parameters.
func (c *TuningConfig) Params() fusion.Params {
	return fusion.Params{
		BufferCapacity:           c.GetBufferCapacity(),
		EstimationSpan:           c.GetEstimationSpanM(),
		SpeedThreshold:           c.GetSpeedThresholdMps(),
		PositionOutlierThreshold: c.GetPositionOutlierThresholdM(),
		GiveUpFraction:           c.GetGiveUpFraction(),
		MinAnchorFraction:        c.GetMinAnchorFraction(),
		GNSSDecimation:           c.GetGNSSDecimation(),
		VelocityRateHz:           c.GetVelocityRateHz(),
		TickRateHz:               c.GetTickRateHz(),
	}
}

// GetBufferCapacity returns the buffer_capacity value or the default.
func (c *TuningConfig) GetBufferCapacity() int {
	if c.BufferCapacity == nil {
		return fusion.DefaultBufferCapacity
	}
	return *c.BufferCapacity
}

// GetEstimationSpanM returns the estimation_span_m value or the default.
func (c *TuningConfig) GetEstimationSpanM() float64 {
	if c.EstimationSpanM == nil {
		return fusion.DefaultEstimationSpan
	}
	return *c.EstimationSpanM
}

// GetSpeedThresholdMps returns the speed_threshold_mps value or the default.
func (c *TuningConfig) GetSpeedThresholdMps() float64 {
	if c.SpeedThresholdMps == nil {
		return fusion.DefaultSpeedThreshold
	}
	return *c.SpeedThresholdMps
}

// GetPositionOutlierThresholdM returns the position_outlier_threshold_m value or the default.
func (c *TuningConfig) GetPositionOutlierThresholdM() float64 {
	if c.PositionOutlierThresholdM == nil {
		return fusion.DefaultPositionOutlierThreshold
	}
	return *c.PositionOutlierThresholdM
}

// GetGiveUpFraction returns the giveup_fraction value or the default.
func (c *TuningConfig) GetGiveUpFraction() float64 {
	if c.GiveUpFraction == nil {
		return fusion.DefaultGiveUpFraction
	}
	return *c.GiveUpFraction
}

// GetMinAnchorFraction returns the min_anchor_fraction value or the default.
func (c *TuningConfig) GetMinAnchorFraction() float64 {
	if c.MinAnchorFraction == nil {
		return fusion.DefaultMinAnchorFraction
	}
	return *c.MinAnchorFraction
}

// GetGNSSDecimation returns the gnss_decimation value or the default.
func (c *TuningConfig) GetGNSSDecimation() int {
	if c.GNSSDecimation == nil {
		return fusion.DefaultGNSSDecimation
	}
	return *c.GNSSDecimation
}

func (c *TuningConfig) GetVelocityRateHz() float64 {
	if c.VelocityRateHz == nil {
		return fusion.DefaultVelocityRateHz
	}
	return *c.VelocityRateHz
}

func (c *TuningConfig) GetTickRateHz() float64 {
	if c.TickRateHz == nil {
		return fusion.DefaultTickRateHz
	}
	return *c.TickRateHz
}
