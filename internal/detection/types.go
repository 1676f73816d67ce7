package detection

import (
	"time"

	"github.com/banshee-data/wayfinder/internal/config"
	"github.com/banshee-data/wayfinder/internal/guidance"
	"github.com/banshee-data/wayfinder/internal/perception"
	"github.com/banshee-data/wayfinder/internal/sensors"
)

// State is the controller lifecycle state.
type State int

const (
	StateIdle State = iota
	StateActive
)

func (s State) String() string {
	if s == StateActive {
		return "active"
	}
	return "idle"
}

// MarshalText renders the state by name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Event names what caused a Result to be published.
type Event string

const (
	EventStarted Event = "started"
	EventTick    Event = "tick"
	EventStopped Event = "stopped"
)

// Result is one published detection outcome. Direction and Evaluation are
// nil when no obstacles were found; Warning is nil unless one was emitted
// on this tick.
type Result struct {
	Event      Event                 `json:"event"`
	SessionID  string                `json:"session_id"`
	Strategy   sensors.Kind          `json:"strategy"`
	Timestamp  time.Time             `json:"timestamp"`
	Obstacles  []perception.Obstacle `json:"obstacles"`
	Evaluation *guidance.Evaluation  `json:"evaluation"`
	Direction  *guidance.Direction   `json:"direction"`
	Warning    *guidance.Warning     `json:"warning"`
	// Stats is set on stopped results and covers only the ended session.
	Stats *Stats `json:"stats,omitempty"`
}

// Session is the state owned by one Start..Stop span.
type Session struct {
	ID            string                `json:"id"`
	Strategy      sensors.Kind          `json:"strategy"`
	StartedAt     time.Time             `json:"started_at"`
	LastWarningAt time.Time             `json:"last_warning_at"`
	Obstacles     []perception.Obstacle `json:"obstacles"`
	Direction     *guidance.Direction   `json:"direction"`
}

// Stats are cumulative controller counters.
type Stats struct {
	Ticks            uint64        `json:"ticks"`
	FrameMisses      uint64        `json:"frame_misses"`
	SkippedTicks     uint64        `json:"skipped_ticks"`
	DiscardedResults uint64        `json:"discarded_results"`
	Warnings         uint64        `json:"warnings"`
	LastTickDuration time.Duration `json:"last_tick_duration_ns"`
	FramesStored     uint64        `json:"frames_stored"`
	FramesDropped    uint64        `json:"frames_dropped"`

	// Source diagnostics, filled in when the active source reports them.
	DatagramsReceived uint64         `json:"datagrams_received,omitempty"`
	DatagramsRejected uint64         `json:"datagrams_rejected,omitempty"`
	SnapshotFailures  uint64         `json:"snapshot_failures,omitempty"`
	DeviceStatus      map[string]any `json:"device_status,omitempty"`
}

// Sub returns the counters accumulated since base.
func (s Stats) Sub(base Stats) Stats {
	return Stats{
		Ticks:            s.Ticks - base.Ticks,
		FrameMisses:      s.FrameMisses - base.FrameMisses,
		SkippedTicks:     s.SkippedTicks - base.SkippedTicks,
		DiscardedResults: s.DiscardedResults - base.DiscardedResults,
		Warnings:         s.Warnings - base.Warnings,
		LastTickDuration: s.LastTickDuration,
	}
}

// Config collects the thresholds for every pipeline stage.
type Config struct {
	Perception   perception.Config
	Path         guidance.PathConfig
	Warning      guidance.WarningConfig
	TickInterval time.Duration
}

// DefaultConfig returns the built-in pipeline thresholds.
func DefaultConfig() Config {
	return ConfigFromDetection(config.EmptyDetectionConfig())
}

// ConfigFromDetection builds a Config from a loaded DetectionConfig.
func ConfigFromDetection(cfg *config.DetectionConfig) Config {
	return Config{
		Perception:   perception.ConfigFromDetection(cfg),
		Path:         guidance.PathConfigFromDetection(cfg),
		Warning:      guidance.WarningConfigFromDetection(cfg),
		TickInterval: cfg.GetTickInterval(),
	}
}
