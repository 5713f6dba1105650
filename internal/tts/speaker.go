package tts

import (
	"context"
	"encoding/binary"
	"log"
	"strings"
	"time"

	"github.com/mugo2m/hugos-ai-interview/internal/interview"
)

// AudioSink consumes linear16 PCM bytes and performs delivery (e.g. framed
// WebSocket push to the browser). Implementations should buffer internally
// and pace delivery.
type AudioSink interface {
	WritePCM(pcm []byte)
	FlushTail()
	// Reset drops any queued audio immediately (used on cancellation).
	Reset()
}

type nopSink struct{}

func (nopSink) WritePCM(_ []byte) {}
func (nopSink) FlushTail()        {}
func (nopSink) Reset()            {}

// Options carry per-session speech settings.
type Options struct {
	Rate   float64 // playback rate multiplier; 0 means 1.0
	Volume float64 // linear gain applied to the PCM stream; 0 means 1.0
}

func (o Options) rate() float64 {
	if o.Rate <= 0 {
		return 1.0
	}
	return o.Rate
}

func (o Options) gain() float64 {
	if o.Volume <= 0 {
		return 1.0
	}
	return o.Volume
}

// applyGain scales linear16 samples in place. Gain 1.0 is a no-op.
func applyGain(pcm []byte, gain float64) {
	if gain == 1.0 {
		return
	}
	for i := 0; i+1 < len(pcm); i += 2 {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i:]))) * gain
		if s > 32767 {
			s = 32767
		} else if s < -32768 {
			s = -32768
		}
		binary.LittleEndian.PutUint16(pcm[i:], uint16(int16(s)))
	}
}

// NewSpeaker probes the synthesis capability once at construction and picks
// the real or the simulated implementation. Business logic never branches on
// which one it got.
func NewSpeaker(apiKey, model string, sink AudioSink, opts Options) interview.Speaker {
	if apiKey == "" {
		log.Printf("tts: no synthesis key configured, speech output runs simulated")
		return NewSimulatedSpeaker(opts)
	}
	return NewDeepgramSpeaker(apiKey, model, sink, opts)
}

// simulatePlayback blocks for a delay proportional to the text length so the
// dialogue keeps its cadence without a synthesis engine. Cancelable via ctx.
func simulatePlayback(ctx context.Context, text string, opts Options) {
	words := len(strings.Fields(text))
	if words == 0 {
		return
	}
	// ~165 words per minute at rate 1.0
	d := time.Duration(float64(words) * float64(360*time.Millisecond) / opts.rate())
	if d > maxSpeakDuration {
		d = maxSpeakDuration
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// maxSpeakDuration is the hard safety timeout for a single utterance: a hung
// engine must not stall the dialogue forever.
const maxSpeakDuration = 10 * time.Second
