package tts

import "context"

// SimulatedSpeaker is the degraded-mode speech output: it produces no audio
// and instead blocks for a delay proportional to the text length, so the
// dialogue still progresses on hosts without a synthesis capability.
type SimulatedSpeaker struct {
	opts Options
}

func NewSimulatedSpeaker(opts Options) *SimulatedSpeaker {
	return &SimulatedSpeaker{opts: opts}
}

func (s *SimulatedSpeaker) Speak(ctx context.Context, text string) error {
	simulatePlayback(ctx, text, s.opts)
	return nil
}
