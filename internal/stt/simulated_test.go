package stt

import (
	"context"
	"testing"
	"time"
)

func TestSimulatedRecognizer_DeliversFlaggedTranscript(t *testing.T) {
	s := NewSimulatedRecognizer()
	defer s.Close()

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	select {
	case r := <-s.Results():
		if !r.Final || !r.Simulated {
			t.Fatalf("expected a final simulated result, got %+v", r)
		}
		if r.Text == "" {
			t.Fatalf("expected placeholder text")
		}
	case <-time.After(simulatedDelay + 2*time.Second):
		t.Fatalf("no result delivered")
	}
}

func TestSimulatedRecognizer_StopCancelsPendingResult(t *testing.T) {
	s := NewSimulatedRecognizer()
	defer s.Close()

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	select {
	case r := <-s.Results():
		t.Fatalf("stopped recognizer delivered %q", r.Text)
	case <-time.After(simulatedDelay + 500*time.Millisecond):
	}
}

// A pending timer firing while Close runs must not hit a closed channel.
func TestSimulatedRecognizer_CloseRacesPendingDelivery(t *testing.T) {
	for i := 0; i < 50; i++ {
		s := NewSimulatedRecognizer()
		if err := s.Start(context.Background()); err != nil {
			t.Fatalf("start: %v", err)
		}
		s.mu.Lock()
		s.timer.Reset(0)
		s.mu.Unlock()
		if err := s.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}
}

func TestNewRecognizer_ProbesCapability(t *testing.T) {
	if _, ok := NewRecognizer("").(*SimulatedRecognizer); !ok {
		t.Fatalf("expected the simulated recognizer without a key")
	}
	r := NewRecognizer("key")
	sr, ok := r.(*StreamRecognizer)
	if !ok {
		t.Fatalf("expected the streaming recognizer with a key")
	}
	_ = sr.Close()
}
