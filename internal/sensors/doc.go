// Package sensors owns the depth sensing strategies that feed the detection
// loop.
//
// Responsibilities: probing which strategies are usable at session start,
// pumping frames from the chosen device into a single-slot holder, and
// handing the most recent frame to the tick on request.
//
// Key types: Kind (the strategy tag), Source (the uniform pump interface),
// and Registry (priority selection). Concrete sources are RangeSensor
// (serial line protocol), UDPCamera (binary datagrams), PCAPReplay (recorded
// datagrams) and VisionEstimator (JPEG snapshots with a ground-plane model).
//
// Dependency rule: sensors depends on depth, serialmux, config and
// monitoring. It must not import detection or guidance.
package sensors
