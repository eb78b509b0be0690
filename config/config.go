package config

import (
	"encoding/json"
	"os"
	"time"
)

// Config holds runtime configuration for the scroll-capture engine.
// Fields may be loaded from a JSON file and overridden programmatically.
//
// The timing and distance values are empirically tuned; they shape when a
// frame counts as settled or duplicate but the capture pipeline does not
// depend on any particular value for correctness.
type Config struct {
	Debug bool `json:"debug"`

	// Session timing
	PollIntervalMs   int `json:"poll_interval_ms"`
	StabilizeDelayMs int `json:"stabilize_delay_ms"`

	// Frame acceptance
	ChangeDistance    int `json:"change_distance"`
	DuplicateDistance int `json:"duplicate_distance"`
	BlankStreakLimit  int `json:"blank_streak_limit"`

	// Overlap search
	MinOverlapPx     int     `json:"min_overlap_px"`
	OverlapStepPx    int     `json:"overlap_step_px"`
	CompareRowCap    int     `json:"compare_row_cap"`
	SearchHeightCap  int     `json:"search_height_cap"`
	PixelTolerance   int     `json:"pixel_tolerance"`
	RowMatchRatio    float64 `json:"row_match_ratio"`
	EdgeMarginFrac   float64 `json:"edge_margin_frac"`
	MinConfidencePct int     `json:"min_confidence_pct"`
	TieMarginPct     int     `json:"tie_margin_pct"`

	// Selection rectangle persistence
	SelectionX int `json:"selection_x"`
	SelectionY int `json:"selection_y"`
	SelectionW int `json:"selection_w"`
	SelectionH int `json:"selection_h"`

	// Output
	OutputPath string `json:"output_path"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		Debug:             false,
		PollIntervalMs:    50,
		StabilizeDelayMs:  250,
		ChangeDistance:    1,
		DuplicateDistance: 1,
		BlankStreakLimit:  3,
		MinOverlapPx:      20,
		OverlapStepPx:     2,
		CompareRowCap:     200,
		SearchHeightCap:   1200,
		PixelTolerance:    20,
		RowMatchRatio:     0.80,
		EdgeMarginFrac:    0.20,
		MinConfidencePct:  50,
		TieMarginPct:      5,
		OutputPath:        "capture.png",
	}
}

// Validate clamps/normalizes values to safe ranges.
func (c *Config) Validate() error {
	if c.PollIntervalMs <= 0 {
		c.PollIntervalMs = 50
	}
	if c.StabilizeDelayMs <= 0 {
		c.StabilizeDelayMs = 250
	}
	if c.ChangeDistance <= 0 {
		c.ChangeDistance = 1
	}
	if c.DuplicateDistance < 0 {
		c.DuplicateDistance = 1
	}
	if c.BlankStreakLimit <= 0 {
		c.BlankStreakLimit = 3
	}
	if c.MinOverlapPx <= 0 {
		c.MinOverlapPx = 20
	}
	if c.OverlapStepPx <= 0 {
		c.OverlapStepPx = 2
	}
	if c.CompareRowCap <= 0 {
		c.CompareRowCap = 200
	}
	if c.SearchHeightCap <= 0 {
		c.SearchHeightCap = 1200
	}
	if c.PixelTolerance <= 0 {
		c.PixelTolerance = 20
	}
	if c.RowMatchRatio <= 0 || c.RowMatchRatio > 1 {
		c.RowMatchRatio = 0.80
	}
	if c.EdgeMarginFrac < 0 || c.EdgeMarginFrac >= 0.5 {
		c.EdgeMarginFrac = 0.20
	}
	if c.MinConfidencePct <= 0 || c.MinConfidencePct > 100 {
		c.MinConfidencePct = 50
	}
	if c.TieMarginPct < 0 || c.TieMarginPct > 100 {
		c.TieMarginPct = 5
	}
	if c.OutputPath == "" {
		c.OutputPath = "capture.png"
	}
	return nil
}

// PollInterval returns the sampling period as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// StabilizeDelay returns how long content must stay unchanged before a
// frame is eligible for capture.
func (c *Config) StabilizeDelay() time.Duration {
	return time.Duration(c.StabilizeDelayMs) * time.Millisecond
}

// Load attempts to read configuration from the given JSON file path. If the file does not
// exist it returns DefaultConfig(). On JSON error it returns defaults with the error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	if err := dec.Decode(cfg); err != nil {
		return cfg, err
	}
	_ = cfg.Validate()
	return cfg, nil
}

// Save writes the configuration to the given path in JSON format.
func (c *Config) Save(path string) error {
	_ = c.Validate()
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}
