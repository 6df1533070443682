package retry

import (
	"math/rand/v2"
	"time"
)

// backoff returns the delay before retry attempt (0-indexed): BaseDelay
// doubled per attempt, capped at MaxDelay (zero means uncapped), with
// optional symmetric jitter.
func backoff(cfg Config, attempt int) time.Duration {
	delay := cfg.BaseDelay << attempt
	if delay < cfg.BaseDelay {
		// Shift overflow.
		delay = cfg.MaxDelay
	}
	if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	if cfg.Jitter > 0 {
		f := float64(delay)
		f += f * cfg.Jitter * (rand.Float64()*2 - 1)
		delay = time.Duration(f)
	}
	if delay < 0 {
		delay = 0
	}
	return delay
}
