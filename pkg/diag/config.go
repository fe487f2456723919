package diag

import (
	"fmt"
	"time"
)

// Config controls timing and the statistical thresholds used to confirm
// faults. The thresholds were chosen empirically on real boards and are
// tunable per board profile.
type Config struct {
	// Timing
	SettleDelay  time.Duration // Wait after driving a line before sampling (default: 5ms)
	ConfirmDelay time.Duration // Wait between confirmation samples (default: 1ms)
	ConfirmLoops int           // Samples taken to confirm a candidate fault (default: 200)

	// Thresholds, as the fraction of confirmation samples that must agree
	StuckThreshold     float64 // Stuck-high confirmation (default: 0.95)
	CrosstalkThreshold float64 // Crosstalk confirmation (default: 0.80)
	OwnershipThreshold float64 // TEST activation and release (default: 0.90)
}

// DefaultConfig returns the timing and thresholds used on a TRS-80 class
// board.
func DefaultConfig() *Config {
	return &Config{
		SettleDelay:        5 * time.Millisecond,
		ConfirmDelay:       time.Millisecond,
		ConfirmLoops:       200,
		StuckThreshold:     0.95,
		CrosstalkThreshold: 0.80,
		OwnershipThreshold: 0.90,
	}
}

// Validate checks the configuration, filling in defaults for unset loop
// counts.
func (c *Config) Validate() error {
	if c.ConfirmLoops < 1 {
		c.ConfirmLoops = 1
	}
	if c.SettleDelay < 0 || c.ConfirmDelay < 0 {
		return fmt.Errorf("diag: negative delay (settle %v, confirm %v)", c.SettleDelay, c.ConfirmDelay)
	}

	for name, v := range map[string]float64{
		"stuck":     c.StuckThreshold,
		"crosstalk": c.CrosstalkThreshold,
		"ownership": c.OwnershipThreshold,
	} {
		if v <= 0 || v > 1 {
			return fmt.Errorf("diag: %s threshold %.2f out of range (0, 1]", name, v)
		}
	}

	return nil
}

// confirmed reports whether hits out of the configured loop count reach the
// given threshold.
func (c *Config) confirmed(hits int, threshold float64) bool {
	return ratio(hits, c.ConfirmLoops) >= threshold-1e-9
}

func ratio(hits, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
