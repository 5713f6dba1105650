package stt

import (
	"context"
	"sync"
	"time"

	"github.com/mugo2m/hugos-ai-interview/internal/interview"
)

// simulatedDelay is how long the simulated recognizer "listens" before it
// produces its placeholder transcript.
const simulatedDelay = 1500 * time.Millisecond

// simulatedTranscript is clearly distinguishable from captured speech; it is
// additionally flagged Simulated on every result.
const simulatedTranscript = "This is a simulated answer; no speech capture is available in this environment."

// SimulatedRecognizer is the degraded-mode speech input: after a fixed delay
// it delivers a placeholder transcript so integration tests and demos can run
// without microphone support.
type SimulatedRecognizer struct {
	results chan interview.Result
	notices chan interview.Notice

	mu     sync.Mutex
	timer  *time.Timer
	closed bool
}

func NewSimulatedRecognizer() *SimulatedRecognizer {
	return &SimulatedRecognizer{
		results: make(chan interview.Result, 4),
		notices: make(chan interview.Notice, 1),
	}
}

func (s *SimulatedRecognizer) Results() <-chan interview.Result { return s.results }
func (s *SimulatedRecognizer) Notices() <-chan interview.Notice { return s.notices }

func (s *SimulatedRecognizer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return interview.ErrDeviceUnavailable
	}
	if s.timer != nil {
		_ = s.timer.Stop()
	}
	s.timer = time.AfterFunc(simulatedDelay, func() {
		// Send while holding the mutex so Close cannot shut the channel
		// between the closed check and the delivery.
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed || ctx.Err() != nil {
			return
		}
		select {
		case s.results <- interview.Result{Text: simulatedTranscript, Final: true, Simulated: true}:
		default:
		}
	})
	return nil
}

func (s *SimulatedRecognizer) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		_ = s.timer.Stop()
	}
	return nil
}

func (s *SimulatedRecognizer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if s.timer != nil {
		_ = s.timer.Stop()
	}
	s.closed = true
	close(s.results)
	close(s.notices)
	return nil
}
