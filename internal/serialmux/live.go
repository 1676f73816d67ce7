package serialmux

import (
	"net/http"
	"sync"
)

// Live routes admin requests to the serial mux that is currently open. The
// range sensor is opened per detection session, so the routes are mounted
// once here and follow the device as sessions come and go. With no device
// open, tail streams from a DisabledSerialMux and commands are refused.
type Live struct {
	mu       sync.RWMutex
	cur      SerialMuxInterface
	disabled *DisabledSerialMux
}

func NewLive() *Live {
	return &Live{disabled: NewDisabledSerialMux()}
}

// Set makes m the current mux.
func (l *Live) Set(m SerialMuxInterface) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cur = m
}

// Clear drops m if it is still the current mux.
func (l *Live) Clear(m SerialMuxInterface) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cur == m {
		l.cur = nil
	}
}

// Current returns the open mux, or the disabled mux and false.
func (l *Live) Current() (SerialMuxInterface, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.cur == nil {
		return l.disabled, false
	}
	return l.cur, true
}

func (l *Live) AttachAdminRoutes(mux *http.ServeMux) {
	attachRoutes(mux, l.Current)
}
