package guidance

import (
	"time"

	"github.com/banshee-data/wayfinder/internal/config"
	"github.com/banshee-data/wayfinder/internal/perception"
)

// Severity orders warnings; higher values win arbitration.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "critical"
	case SeverityWarning:
		return "warning"
	default:
		return "info"
	}
}

// MarshalText renders the severity by name in JSON.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Warning is a single announcement selected by the Arbiter.
type Warning struct {
	Severity  Severity            `json:"severity"`
	Obstacle  perception.Obstacle `json:"obstacle"`
	Message   string              `json:"message"`
	EmittedAt time.Time           `json:"emitted_at"`
}

// WarningConfig holds the arbiter's distance bands and cooldown.
type WarningConfig struct {
	CriticalDistance float64 // meters, inclusive
	WarningDistance  float64 // meters, inclusive
	Cooldown         time.Duration
}

// DefaultWarningConfig returns the built-in arbiter thresholds.
func DefaultWarningConfig() WarningConfig {
	return WarningConfigFromDetection(config.EmptyDetectionConfig())
}

// WarningConfigFromDetection builds a WarningConfig from a loaded DetectionConfig.
func WarningConfigFromDetection(cfg *config.DetectionConfig) WarningConfig {
	return WarningConfig{
		CriticalDistance: cfg.GetCriticalDistanceMeters(),
		WarningDistance:  cfg.GetWarningDistanceMeters(),
		Cooldown:         cfg.GetWarningCooldown(),
	}
}

// Arbiter rate-limits warnings. It is not safe for concurrent use; the
// detection controller calls it under its own lock.
type Arbiter struct {
	cfg  WarningConfig
	last time.Time
}

// NewArbiter creates an Arbiter that has never warned.
func NewArbiter(cfg WarningConfig) *Arbiter {
	return &Arbiter{cfg: cfg}
}

// LastWarningAt returns the time of the most recent emission, zero if none.
func (a *Arbiter) LastWarningAt() time.Time {
	return a.last
}

// Reset forgets the last emission.
func (a *Arbiter) Reset() {
	a.last = time.Time{}
}

// Arbitrate picks at most one warning for this tick. Inside the cooldown it
// returns nil without looking at the obstacles. Otherwise the highest
// severity candidate wins, the nearest among equals.
func (a *Arbiter) Arbitrate(obstacles []perception.Obstacle, now time.Time) *Warning {
	if !a.last.IsZero() && now.Sub(a.last) < a.cfg.Cooldown {
		return nil
	}

	var best *Warning
	for _, o := range obstacles {
		sev, ok := a.severityFor(o.Distance)
		if !ok {
			continue
		}
		if best == nil || sev > best.Severity || (sev == best.Severity && o.Distance < best.Obstacle.Distance) {
			best = &Warning{Severity: sev, Obstacle: o}
		}
	}
	if best == nil {
		return nil
	}

	best.Message = RenderMessage(best.Severity, best.Obstacle)
	best.EmittedAt = now
	a.last = now
	return best
}

func (a *Arbiter) severityFor(distance float64) (Severity, bool) {
	switch {
	case distance <= a.cfg.CriticalDistance:
		return SeverityCritical, true
	case distance <= a.cfg.WarningDistance:
		return SeverityWarning, true
	default:
		return SeverityInfo, false
	}
}
