package httpserver

import (
	"sync"
	"time"
)

// sinkFrameBytes is 20ms of 48kHz mono 16-bit PCM.
const sinkFrameBytes = 1920

type frameWriter interface {
	sendBinary(frame []byte) error
}

// wsAudioSink chunks synthesized PCM into fixed 20ms frames and writes them
// to the WebSocket paced at realtime, so the client can play as it receives
// and a cancellation stops audio almost immediately.
type wsAudioSink struct {
	out     frameWriter
	frames  chan []byte
	stopCh  chan struct{}
	mu      sync.Mutex
	buf     []byte
	stopped bool
}

func newWSAudioSink(out frameWriter) *wsAudioSink {
	w := &wsAudioSink{
		out:    out,
		frames: make(chan []byte, 512),
		stopCh: make(chan struct{}),
	}
	go w.pacer()
	return w
}

// WritePCM buffers PCM and emits full frames to the pacer.
func (w *wsAudioSink) WritePCM(pcm []byte) {
	if len(pcm) == 0 {
		return
	}
	w.mu.Lock()
	w.buf = append(w.buf, pcm...)
	var ready [][]byte
	for len(w.buf) >= sinkFrameBytes {
		frame := make([]byte, sinkFrameBytes)
		copy(frame, w.buf[:sinkFrameBytes])
		w.buf = w.buf[sinkFrameBytes:]
		ready = append(ready, frame)
	}
	w.mu.Unlock()
	for _, frame := range ready {
		w.pushFrame(frame)
	}
}

// FlushTail pads the remaining PCM to a full frame and adds a short silence
// tail to avoid clipping the end of an utterance.
func (w *wsAudioSink) FlushTail() {
	w.mu.Lock()
	var tail []byte
	if len(w.buf) > 0 {
		tail = make([]byte, sinkFrameBytes)
		copy(tail, w.buf)
		w.buf = w.buf[:0]
	}
	w.mu.Unlock()
	if tail != nil {
		w.pushFrame(tail)
	}
	// ~200ms of silence (10 frames)
	for i := 0; i < 10; i++ {
		w.pushFrame(make([]byte, sinkFrameBytes))
	}
}

// Reset drops buffered PCM and queued frames so playback stops now.
func (w *wsAudioSink) Reset() {
	w.mu.Lock()
	w.buf = w.buf[:0]
	w.mu.Unlock()
	for {
		select {
		case <-w.frames:
		default:
			return
		}
	}
}

// Close stops the pacer goroutine.
func (w *wsAudioSink) Close() {
	w.mu.Lock()
	if !w.stopped {
		w.stopped = true
		close(w.stopCh)
	}
	w.mu.Unlock()
}

func (w *wsAudioSink) pacer() {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			select {
			case frame := <-w.frames:
				if err := w.out.sendBinary(frame); err != nil {
					return
				}
			default:
			}
		}
	}
}

// pushFrame enqueues a frame, blocking until space is available or stopped.
func (w *wsAudioSink) pushFrame(frame []byte) {
	select {
	case <-w.stopCh:
	case w.frames <- frame:
	}
}
