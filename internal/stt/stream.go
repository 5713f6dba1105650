package stt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/gorilla/websocket"

	"github.com/mugo2m/hugos-ai-interview/internal/interview"
)

// silenceThreshold is the base inactivity window before an utterance is
// considered complete. Conservative, to avoid cutting the candidate off
// mid-sentence.
const silenceThreshold = 700 * time.Millisecond

// continuationExtension is added when the last word suggests the speaker will
// keep going ("and", "if", "about", ...).
const continuationExtension = 1200 * time.Millisecond

// advisoryWindow is the soft silence timeout: after this much continuous
// no-voice input a silence notice is emitted. Advisory only, the dialogue
// never advances on it.
const advisoryWindow = 10 * time.Second

// StreamRecognizer captures 16kHz PCM audio fed by the transport and streams
// it to a realtime recognition service over WebSocket. Interim transcripts
// flow out as non-final results; end-of-utterance is detected by inactivity
// and commits a final result for the same text.
type StreamRecognizer struct {
	apiKey  string
	results chan interview.Result
	notices chan interview.Notice
	audio   chan []byte
	stopCh  chan struct{}

	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool
	capturing bool
	closed    bool

	// sendMu serializes delivery-channel sends with their close, so a
	// timer or read-loop delivery racing Close cannot hit a closed channel.
	sendMu   sync.Mutex
	sendDone bool

	// utterance accumulation
	accMu         sync.Mutex
	latest        string
	lastUpdate    time.Time
	lastVoice     time.Time
	silenceTimer  *time.Timer
	advisoryTimer *time.Timer
}

// Wire messages of the streaming recognition protocol.
type turnMessage struct {
	Type       string `json:"type"`
	Transcript string `json:"transcript"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func NewStreamRecognizer(apiKey string) *StreamRecognizer {
	return &StreamRecognizer{
		apiKey:  apiKey,
		results: make(chan interview.Result, 100),
		notices: make(chan interview.Notice, 10),
		audio:   make(chan []byte, 1000),
		stopCh:  make(chan struct{}),
	}
}

func (s *StreamRecognizer) Results() <-chan interview.Result { return s.results }
func (s *StreamRecognizer) Notices() <-chan interview.Notice { return s.notices }

// Start connects on first use and (re)opens capture for one listening phase.
// The connection is kept across turns; Stop only pauses capture.
func (s *StreamRecognizer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("%w: recognizer closed", interview.ErrDeviceUnavailable)
	}
	if !s.connected {
		if err := s.connectLocked(ctx); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	s.capturing = true
	s.mu.Unlock()

	now := time.Now()
	s.accMu.Lock()
	s.latest = ""
	s.lastUpdate = now
	s.lastVoice = now
	if s.advisoryTimer == nil {
		s.advisoryTimer = time.AfterFunc(advisoryWindow, s.checkSilenceAdvisory)
	} else {
		s.advisoryTimer.Reset(advisoryWindow)
	}
	s.accMu.Unlock()
	return nil
}

func (s *StreamRecognizer) connectLocked(ctx context.Context) error {
	if s.apiKey == "" {
		return interview.ErrUnsupportedEnvironment
	}

	params := url.Values{}
	params.Set("sample_rate", "16000")
	params.Set("format_turns", "false")
	params.Set("encoding", "pcm_s16le")
	wsURL := fmt.Sprintf("wss://streaming.assemblyai.com/v3/ws?%s", params.Encode())

	headers := map[string][]string{"Authorization": {s.apiKey}}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil && (resp.StatusCode == 401 || resp.StatusCode == 403) {
			return fmt.Errorf("%w: recognition service rejected credentials", interview.ErrPermissionDenied)
		}
		return fmt.Errorf("%w: %v", interview.ErrDeviceUnavailable, err)
	}
	s.conn = conn
	s.connected = true
	go s.readLoop()
	go s.sendLoop()
	return nil
}

// Stop pauses capture. Idempotent; the connection stays open for the next
// turn and the result channels stay open until Close.
func (s *StreamRecognizer) Stop() error {
	s.mu.Lock()
	s.capturing = false
	s.mu.Unlock()

	s.accMu.Lock()
	if s.silenceTimer != nil {
		_ = s.silenceTimer.Stop()
	}
	if s.advisoryTimer != nil {
		_ = s.advisoryTimer.Stop()
	}
	s.latest = ""
	s.accMu.Unlock()
	return nil
}

// Close tears the connection down and closes the delivery channels.
func (s *StreamRecognizer) Close() error {
	_ = s.Stop()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.stopCh)
	if s.conn != nil {
		_ = s.conn.WriteJSON(map[string]string{"type": "Terminate"})
		_ = s.conn.Close()
	}
	s.connected = false
	s.conn = nil
	s.mu.Unlock()

	// The audio channel stays open; sendLoop exits via stopCh and FeedPCM16
	// drops everything once closed is set.
	s.sendMu.Lock()
	s.sendDone = true
	close(s.results)
	close(s.notices)
	s.sendMu.Unlock()
	return nil
}

// FeedPCM16 queues 16kHz little-endian mono PCM captured by the transport.
// Audio arriving while capture is paused is dropped.
func (s *StreamRecognizer) FeedPCM16(pcm []byte) error {
	s.mu.RLock()
	capturing := s.capturing && s.connected && !s.closed
	s.mu.RUnlock()
	if !capturing {
		return nil
	}
	s.detectVoiceActivity(pcm)
	select {
	case s.audio <- pcm:
	default:
		// buffer full, drop the packet rather than stall the transport
	}
	return nil
}

// detectVoiceActivity updates lastVoice when the buffer carries voice energy
// above a conservative RMS threshold. Expects 16-bit LE PCM mono at 16kHz.
func (s *StreamRecognizer) detectVoiceActivity(pcm []byte) {
	const minSamples = 160 // 10ms at 16kHz
	if len(pcm) < minSamples*2 {
		return
	}
	step := 2
	if len(pcm) > 3200 {
		step = 4
	}
	var sumSquares float64
	count := 0
	for i := 0; i+1 < len(pcm); i += 2 * step {
		v := int16(binary.LittleEndian.Uint16(pcm[i : i+2]))
		sumSquares += float64(v) * float64(v)
		count++
	}
	if count == 0 {
		return
	}
	const voiceRMS = 250.0
	if math.Sqrt(sumSquares/float64(count)) >= voiceRMS {
		s.accMu.Lock()
		s.lastVoice = time.Now()
		s.accMu.Unlock()
	}
}

func (s *StreamRecognizer) sendLoop() {
	for {
		select {
		case <-s.stopCh:
			return
		case pcm, ok := <-s.audio:
			if !ok {
				return
			}
			s.mu.RLock()
			conn := s.conn
			s.mu.RUnlock()
			if conn == nil {
				return
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, pcm); err != nil {
				s.notify(interview.Notice{Err: &interview.TransientError{Err: err}})
				return
			}
		}
	}
}

func (s *StreamRecognizer) readLoop() {
	for {
		s.mu.RLock()
		conn := s.conn
		closed := s.closed
		s.mu.RUnlock()
		if conn == nil || closed {
			return
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-s.stopCh:
			default:
				s.notify(interview.Notice{Err: &interview.TransientError{Err: err}})
			}
			return
		}
		s.processMessage(message)
	}
}

func (s *StreamRecognizer) processMessage(message []byte) {
	var base map[string]interface{}
	if err := json.Unmarshal(message, &base); err != nil {
		return
	}
	msgType, _ := base["type"].(string)
	switch msgType {
	case "Turn":
		var msg turnMessage
		if err := json.Unmarshal(message, &msg); err != nil || msg.Transcript == "" {
			return
		}
		s.mu.RLock()
		capturing := s.capturing
		s.mu.RUnlock()
		if !capturing {
			return
		}
		s.accMu.Lock()
		s.latest = msg.Transcript
		s.lastUpdate = time.Now()
		if s.silenceTimer == nil {
			s.silenceTimer = time.AfterFunc(silenceThreshold, s.finalizeDueToSilence)
		} else {
			_ = s.silenceTimer.Stop()
			s.silenceTimer.Reset(silenceThreshold)
		}
		s.accMu.Unlock()
		s.deliver(interview.Result{Text: msg.Transcript, Final: false})
	case "Error":
		var msg errorMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return
		}
		s.notify(interview.Notice{Err: &interview.TransientError{Err: fmt.Errorf("recognition service: %s", msg.Error)}})
	}
}

// finalizeDueToSilence fires after the inactivity threshold and commits the
// accumulated utterance as a final result. When the last word looks like a
// continuation the threshold is extended and the timer rescheduled.
func (s *StreamRecognizer) finalizeDueToSilence() {
	select {
	case <-s.stopCh:
		return
	default:
	}

	s.accMu.Lock()
	now := time.Now()
	threshold := silenceThreshold
	if isContinuationLikely(s.latest) {
		threshold += continuationExtension
	}
	sinceText := now.Sub(s.lastUpdate)
	sinceVoice := now.Sub(s.lastVoice)
	if sinceText < threshold || sinceVoice < threshold {
		wait := threshold
		if rem := threshold - sinceText; sinceText < threshold && rem < wait {
			wait = rem
		}
		if rem := threshold - sinceVoice; sinceVoice < threshold && rem < wait {
			wait = rem
		}
		if wait < 10*time.Millisecond {
			wait = 10 * time.Millisecond
		}
		if s.silenceTimer == nil {
			s.silenceTimer = time.AfterFunc(wait, s.finalizeDueToSilence)
		} else {
			_ = s.silenceTimer.Stop()
			s.silenceTimer.Reset(wait)
		}
		s.accMu.Unlock()
		return
	}
	text := strings.TrimSpace(s.latest)
	s.accMu.Unlock()

	if text == "" {
		return
	}
	s.mu.RLock()
	capturing := s.capturing
	s.mu.RUnlock()
	if !capturing {
		return
	}
	s.deliver(interview.Result{Text: text, Final: true})
}

// checkSilenceAdvisory emits the soft silence notice when no voice energy has
// been seen for a full advisory window, then re-arms.
func (s *StreamRecognizer) checkSilenceAdvisory() {
	select {
	case <-s.stopCh:
		return
	default:
	}
	s.mu.RLock()
	capturing := s.capturing
	s.mu.RUnlock()
	if !capturing {
		return
	}

	s.accMu.Lock()
	elapsed := time.Since(s.lastVoice)
	next := advisoryWindow - elapsed
	if elapsed >= advisoryWindow {
		s.lastVoice = time.Now() // re-baseline so the advisory repeats, not spams
		next = advisoryWindow
	}
	if s.advisoryTimer != nil {
		s.advisoryTimer.Reset(next)
	}
	s.accMu.Unlock()

	if elapsed >= advisoryWindow {
		s.notify(interview.Notice{Silence: elapsed})
	}
}

func (s *StreamRecognizer) deliver(r interview.Result) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.sendDone {
		return
	}
	select {
	case s.results <- r:
	default:
	}
}

func (s *StreamRecognizer) notify(n interview.Notice) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.sendDone {
		return
	}
	select {
	case s.notices <- n:
	default:
	}
}

// isContinuationLikely returns true if the last meaningful word indicates the
// speaker is likely to continue (conjunctions, prepositions, fillers).
func isContinuationLikely(text string) bool {
	w := lastWord(text)
	if w == "" {
		return false
	}
	_, ok := continuationWords[w]
	return ok
}

func lastWord(text string) string {
	trim := strings.TrimSpace(text)
	if trim == "" {
		return ""
	}
	fields := strings.FieldsFunc(trim, func(r rune) bool { return !unicode.IsLetter(r) })
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[len(fields)-1])
}

var continuationWords = map[string]struct{}{
	// Coordinating conjunctions
	"and": {}, "or": {}, "but": {}, "nor": {}, "yet": {}, "so": {},
	// Subordinating conjunctions / conditionals
	"if": {}, "when": {}, "while": {}, "though": {}, "although": {},
	"because": {}, "since": {}, "unless": {}, "until": {}, "whereas": {},
	// Discourse markers / fillers
	"also": {}, "plus": {}, "um": {}, "uh": {}, "like": {},
	// Prepositions that are awkward sentence endings
	"about": {}, "with": {}, "to": {}, "of": {}, "for": {}, "on": {}, "in": {}, "at": {},
}
