package serialmux

import (
	"encoding/json"
	"fmt"
	"maps"
	"sync"
)

// DeviceStatus holds the latest status values reported by the sensor.
type DeviceStatus struct {
	mu     sync.Mutex
	values map[string]any
}

// Update merges a JSON status line into the stored values.
func (d *DeviceStatus) Update(line string) error {
	var values map[string]any
	if err := json.Unmarshal([]byte(line), &values); err != nil {
		return fmt.Errorf("failed to unmarshal status line: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.values == nil {
		d.values = make(map[string]any)
	}
	maps.Copy(d.values, values)
	return nil
}

// Snapshot returns a copy of the stored values.
func (d *DeviceStatus) Snapshot() map[string]any {
	d.mu.Lock()
	defer d.mu.Unlock()
	return maps.Clone(d.values)
}
