package stats

import "fmt"

// Health status values.
const (
	StatusHealthy = "healthy"
	StatusWarning = "warning"
)

// Thresholds for the health evaluation.
const (
	memoryPressureRatio = 0.8
	minSessionHitRate   = 0.7
)

// HealthReport summarizes cache health. Recommendations are advisory text;
// nothing blocks on a warning.
type HealthReport struct {
	Status          string
	MemoryUsed      int64
	MemoryMax       int64
	SessionHitRate  float64
	Recommendations []string
}

// Evaluate derives a health report from a snapshot and the memory tier's
// current footprint. The cache is healthy when memory usage is under 80% of
// its maximum and the session tier hit-rate is above 70%.
func Evaluate(s Snapshot, memUsed, memMax int64) HealthReport {
	r := HealthReport{
		Status:     StatusHealthy,
		MemoryUsed: memUsed,
		MemoryMax:  memMax,
	}

	session, sessionProbed := s.Tiers["session"]
	if sessionProbed {
		r.SessionHitRate = session.HitRate
	}

	if memMax > 0 && float64(memUsed) >= float64(memMax)*memoryPressureRatio {
		r.Status = StatusWarning
		r.Recommendations = append(r.Recommendations,
			fmt.Sprintf("memory tier at %d of %d bytes; consider raising MaxMemorySize or lowering TTLs", memUsed, memMax))
	}
	if sessionProbed && session.Probes > 0 && session.HitRate <= minSessionHitRate {
		r.Status = StatusWarning
		r.Recommendations = append(r.Recommendations,
			fmt.Sprintf("session tier hit-rate %.0f%% is low; warming frequently used keys may help", session.HitRate*100))
	}
	if s.Errors > 0 && s.Errors*10 > s.Hits+s.Misses {
		r.Status = StatusWarning
		r.Recommendations = append(r.Recommendations,
			"elevated tier error rate; check durable backend availability")
	}
	return r
}
