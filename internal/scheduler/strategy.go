package scheduler

import (
	"fmt"
	"time"
)

// Strategy names accepted by New and the configuration file.
const (
	StrategyNone     = "none"
	StrategyBatch    = "batch"
	StrategyDebounce = "debounce"
	StrategyAdaptive = "adaptive"
	StrategyEMA      = "ema"
)

// Strategies lists every strategy name New accepts.
var Strategies = []string{StrategyNone, StrategyBatch, StrategyDebounce, StrategyAdaptive, StrategyEMA}

// Settings selects and tunes a strategy.
type Settings struct {
	Strategy  string
	Budget    time.Duration // adaptive and ema only
	Smoothing float64       // ema only
}

// New builds the scheduler named by s.Strategy. An empty name means
// StrategyNone.
func New(s Settings, frames FrameRequester, clock Clock) (Scheduler, error) {
	switch s.Strategy {
	case "", StrategyNone:
		return Immediate{}, nil
	case StrategyBatch:
		return NewBatch(frames), nil
	case StrategyDebounce:
		return NewDebounce(frames), nil
	case StrategyAdaptive, StrategyEMA:
		var opts []AdaptiveOption
		if s.Budget > 0 {
			opts = append(opts, WithBudget(s.Budget))
		}
		if s.Strategy == StrategyEMA {
			if s.Smoothing <= 0 || s.Smoothing > 1 {
				return nil, fmt.Errorf("scheduler %q: smoothing must be in (0, 1], got %v", s.Strategy, s.Smoothing)
			}
			opts = append(opts, WithSmoothing(s.Smoothing))
		}
		return NewAdaptive(frames, clock, opts...), nil
	default:
		return nil, fmt.Errorf("unknown scheduler strategy %q", s.Strategy)
	}
}
