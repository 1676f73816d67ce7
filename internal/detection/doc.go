// Package detection owns the obstacle detection session lifecycle.
//
// Responsibilities: selecting a sensing strategy when a session starts,
// driving the fixed-period tick that runs perception, path evaluation and
// warning arbitration over the latest frame, and publishing each outcome as
// a Result to subscribers.
//
// Key types: Controller (Idle/Active state machine), Result (one published
// event), Session (per-start state) and Stats (counters).
//
// Dependency rule: detection may import perception, guidance, sensors,
// timeutil and monitoring. Nothing below it imports detection.
package detection
