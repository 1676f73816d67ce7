// Package perception turns a depth frame into classified obstacles.
//
// Responsibilities: grid partitioning with per-cell depth statistics,
// projection of qualifying cells into world-space obstacles with a
// heuristic confidence, and coarse (depth, size) classification.
// Key types: GridCell, Obstacle, Config.
//
// Dependency rule: perception depends on depth and config only; it never
// imports guidance or detection. The obstacle set it returns is a fresh
// snapshot per call: there is no tracking across frames.
package perception
