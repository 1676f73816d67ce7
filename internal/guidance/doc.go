// Package guidance scores candidate headings against the current obstacle
// set, picks a direction of travel, and decides when a warning should be
// announced. Everything here is a pure function of its inputs except the
// Arbiter, which carries the cooldown timestamp.
package guidance
