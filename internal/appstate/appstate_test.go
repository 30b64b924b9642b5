package appstate

import (
	"sync"
	"testing"
)

func TestSecurityModeDefaultsToStandard(t *testing.T) {
	s := NewState()
	if s.SecurityMode() != ModeStandard {
		t.Fatalf("expected standard mode, got %v", s.SecurityMode())
	}
}

func TestSecurityModeToggle(t *testing.T) {
	s := NewState()
	s.SetSecurityMode(ModeFull)
	if s.SecurityMode() != ModeFull {
		t.Fatal("expected full mode after set")
	}
	s.SetSecurityMode(ModeStandard)
	if s.SecurityMode() != ModeStandard {
		t.Fatal("expected standard mode after reset")
	}
}

func TestRecipient(t *testing.T) {
	s := NewState()
	if s.Recipient() != "" {
		t.Fatal("expected empty recipient initially")
	}
	s.SetRecipient("ops@example.com")
	if got := s.Recipient(); got != "ops@example.com" {
		t.Fatalf("got recipient %q", got)
	}
	s.SetRecipient("")
	if s.Recipient() != "" {
		t.Fatal("expected cleared recipient")
	}
}

func TestConcurrentModeAccess(t *testing.T) {
	s := NewState()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				s.SetSecurityMode(ModeFull)
				s.SetSecurityMode(ModeStandard)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				_ = s.SecurityMode()
			}
		}()
	}
	wg.Wait()
}
