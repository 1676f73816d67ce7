package depth

import "sync"

// LatestFrame is a single-slot handoff between a sensor goroutine and the
// detection tick. Writers overwrite, readers take; nothing ever queues.
type LatestFrame struct {
	mu      sync.Mutex
	frame   *Frame
	stored  uint64
	dropped uint64
}

// Store replaces the held frame. A frame that was never taken counts as dropped.
func (l *LatestFrame) Store(f *Frame) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.frame != nil {
		l.dropped++
	}
	l.frame = f
	l.stored++
}

// Take returns the held frame and empties the slot. It never blocks: if a
// writer holds the lock, or no frame arrived since the last Take, ok is false.
func (l *LatestFrame) Take() (f *Frame, ok bool) {
	if !l.mu.TryLock() {
		return nil, false
	}
	defer l.mu.Unlock()
	f = l.frame
	l.frame = nil
	return f, f != nil
}

// Counts returns how many frames were stored and how many were overwritten
// before a tick could take them.
func (l *LatestFrame) Counts() (stored, dropped uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stored, l.dropped
}

// Reset empties the slot.
func (l *LatestFrame) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.frame = nil
}
