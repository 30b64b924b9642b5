// Package appstate holds the small set of mutable values shared between the
// control surface and the alert pipeline. One State is constructed at
// startup and passed by reference; each field is guarded individually.
package appstate

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// SecurityMode selects how aggressively detections become alerts.
type SecurityMode int32

const (
	// ModeStandard alerts only on primary-threat classes.
	ModeStandard SecurityMode = iota
	// ModeFull additionally alerts on person-class detections.
	ModeFull
)

func (m SecurityMode) String() string {
	if m == ModeFull {
		return "full"
	}
	return "standard"
}

// ParseSecurityMode converts the wire form ("standard", "full") back to
// a mode.
func ParseSecurityMode(s string) (SecurityMode, error) {
	switch s {
	case "standard":
		return ModeStandard, nil
	case "full":
		return ModeFull, nil
	}
	return ModeStandard, fmt.Errorf("unknown security mode %q", s)
}

// State is the process-wide mutable application state.
type State struct {
	mode atomic.Int32

	recipientMu sync.RWMutex
	recipient   string // empty means no email recipient
}

func NewState() *State {
	return &State{}
}

// SecurityMode returns the instantaneous mode. Last write wins; callers
// read it once per decision rather than holding it across one.
func (s *State) SecurityMode() SecurityMode {
	return SecurityMode(s.mode.Load())
}

func (s *State) SetSecurityMode(m SecurityMode) {
	s.mode.Store(int32(m))
}

// Recipient returns the current alert email recipient, empty if none.
func (s *State) Recipient() string {
	s.recipientMu.RLock()
	defer s.recipientMu.RUnlock()
	return s.recipient
}

// SetRecipient updates the alert email recipient. Empty clears it.
func (s *State) SetRecipient(addr string) {
	s.recipientMu.Lock()
	s.recipient = addr
	s.recipientMu.Unlock()
}
