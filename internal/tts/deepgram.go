package tts

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/pkg/api/speak/v1/websocket/interfaces"
	clientinterfaces "github.com/deepgram/deepgram-go-sdk/pkg/client/interfaces/v1"
	"github.com/deepgram/deepgram-go-sdk/pkg/client/speak"
)

// DeepgramSpeaker streams Deepgram Aura synthesis into an AudioSink as
// 48kHz linear16 PCM. Synthesis failures degrade to simulated playback and
// never propagate as dialogue failures.
type DeepgramSpeaker struct {
	apiKey     string
	model      string
	sampleRate int
	encoding   string
	sink       AudioSink
	opts       Options
}

func NewDeepgramSpeaker(apiKey, model string, sink AudioSink, opts Options) *DeepgramSpeaker {
	if model == "" {
		model = "aura-2-thalia-en"
	}
	if sink == nil {
		sink = nopSink{}
	}
	return &DeepgramSpeaker{
		apiKey:     apiKey,
		model:      model,
		sampleRate: 48000,
		encoding:   "linear16",
		sink:       sink,
		opts:       opts,
	}
}

// Speak renders the text and returns when playback has been fully handed to
// the sink or ctx is canceled. Cancellation and synthesis failure are both
// successful completions from the dialogue's point of view.
func (d *DeepgramSpeaker) Speak(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if err := d.stream(ctx, text); err != nil {
		if ctx.Err() != nil {
			d.sink.Reset()
			return nil
		}
		log.Printf("tts: synthesis failed, simulating playback: %v", err)
		simulatePlayback(ctx, text, d.opts)
	}
	return nil
}

func (d *DeepgramSpeaker) stream(ctx context.Context, text string) error {
	if d.apiKey == "" {
		return fmt.Errorf("deepgram: API key missing")
	}

	options := &clientinterfaces.WSSpeakOptions{
		Model:      d.model,
		Encoding:   d.encoding,
		SampleRate: d.sampleRate,
	}

	var lastRecvUnix int64
	var seenAudio int32

	cb := &speakCallback{onBinary: func(data []byte) error {
		if len(data) == 0 {
			return nil
		}
		atomic.StoreInt64(&lastRecvUnix, time.Now().UnixNano())
		atomic.StoreInt32(&seenAudio, 1)
		if ctx.Err() == nil {
			b := make([]byte, len(data))
			copy(b, data)
			applyGain(b, d.opts.gain())
			d.sink.WritePCM(b)
		}
		return nil
	}}

	dg, err := speak.NewWSUsingCallback(ctx, d.apiKey, &clientinterfaces.ClientOptions{}, options, cb)
	if err != nil {
		return fmt.Errorf("deepgram: create ws client: %w", err)
	}

	stopped := false
	stopClient := func() {
		if !stopped {
			stopped = true
			dg.Stop()
		}
	}
	defer stopClient()

	if ok := dg.Connect(); !ok {
		return fmt.Errorf("deepgram: connect failed")
	}
	if err := dg.SpeakWithText(text); err != nil {
		return fmt.Errorf("deepgram: speak text: %w", err)
	}
	if err := dg.Flush(); err != nil {
		log.Printf("tts: deepgram flush error: %v", err)
	}

	// Drain until the audio stream goes idle, the hard safety deadline
	// expires, or the caller cancels.
	idleWindow := 400 * time.Millisecond
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.Now().Add(maxSpeakDuration)
	for {
		select {
		case <-ctx.Done():
			stopClient()
			d.sink.Reset()
			return nil
		case <-ticker.C:
			if atomic.LoadInt32(&seenAudio) == 1 {
				last := time.Unix(0, atomic.LoadInt64(&lastRecvUnix))
				if time.Since(last) > idleWindow {
					stopClient()
					d.sink.FlushTail()
					return nil
				}
			}
			if time.Now().After(deadline) {
				stopClient()
				if atomic.LoadInt32(&seenAudio) == 1 {
					d.sink.FlushTail()
					return nil
				}
				return fmt.Errorf("deepgram: no audio before deadline")
			}
		}
	}
}

type speakCallback struct{ onBinary func([]byte) error }

func (s *speakCallback) Open(*msginterfaces.OpenResponse) error         { return nil }
func (s *speakCallback) Metadata(*msginterfaces.MetadataResponse) error { return nil }
func (s *speakCallback) Flush(*msginterfaces.FlushedResponse) error     { return nil }
func (s *speakCallback) Clear(*msginterfaces.ClearedResponse) error     { return nil }
func (s *speakCallback) Close(*msginterfaces.CloseResponse) error       { return nil }
func (s *speakCallback) Warning(*msginterfaces.WarningResponse) error   { return nil }
func (s *speakCallback) Error(*msginterfaces.ErrorResponse) error       { return nil }
func (s *speakCallback) UnhandledEvent([]byte) error                    { return nil }
func (s *speakCallback) Binary(byMsg []byte) error {
	if s.onBinary != nil {
		return s.onBinary(byMsg)
	}
	return nil
}
