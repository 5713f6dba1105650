package interview

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"
)

// Controller drives one interview session from start to completion or early
// termination. It owns all session state and is its sole mutator; the speech
// ports only report events upward. At most one port operation is in flight
// at any moment: output (speaking) fully finishes before input (listening)
// opens, and vice versa.
type Controller struct {
	id         string
	speaker    Speaker
	recognizer Recognizer

	pumpOnce sync.Once

	mu         sync.Mutex
	state      State
	gen        int // bumped on Start/Stop/fail so stale goroutines bail out
	questions  []string
	index      int
	records    []TurnRecord
	pending    Result
	cancelTurn context.CancelFunc

	onState      func(StateFlags)
	onTranscript func(Result)
	onTurn       func(TurnRecord)
	onComplete   func(Completion)
	onError      func(error)
}

// New constructs a controller bound to the given ports. One controller per
// session; construct a fresh one for each interview view rather than sharing
// an ambient instance.
func New(id string, speaker Speaker, recognizer Recognizer) *Controller {
	return &Controller{id: id, speaker: speaker, recognizer: recognizer, state: StateIdle}
}

// Callback registration. Last registration wins: each concern has at most
// one subscriber, matching the single-controller-per-session design.

func (c *Controller) OnStateChange(fn func(StateFlags)) {
	c.mu.Lock()
	c.onState = fn
	c.mu.Unlock()
}

func (c *Controller) OnTranscript(fn func(Result)) {
	c.mu.Lock()
	c.onTranscript = fn
	c.mu.Unlock()
}

func (c *Controller) OnTurn(fn func(TurnRecord)) {
	c.mu.Lock()
	c.onTurn = fn
	c.mu.Unlock()
}

func (c *Controller) OnComplete(fn func(Completion)) {
	c.mu.Lock()
	c.onComplete = fn
	c.mu.Unlock()
}

func (c *Controller) OnError(fn func(error)) {
	c.mu.Lock()
	c.onError = fn
	c.mu.Unlock()
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Transcript returns a copy of the transcript log so far.
func (c *Controller) Transcript() []TurnRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]TurnRecord, len(c.records))
	copy(out, c.records)
	return out
}

// Start begins a session over the given questions. It resets all session
// state, speaks the first question and opens listening when playback ends.
// Calling Start while a session is active is a programming error.
func (c *Controller) Start(questions []string) error {
	c.mu.Lock()
	if c.state != StateIdle && !c.state.Terminal() {
		c.mu.Unlock()
		return ErrInvalidState
	}
	if len(questions) == 0 {
		c.mu.Unlock()
		return ErrEmptyQuestionSet
	}
	c.gen++
	gen := c.gen
	c.questions = append([]string(nil), questions...)
	c.index = 0
	c.records = nil
	c.pending = Result{}
	fire := c.setStateLocked(StateAwaitingSpeech)
	c.mu.Unlock()

	for _, f := range fire {
		f()
	}
	c.pumpOnce.Do(func() { go c.pump() })
	go c.runTurn(gen)
	return nil
}

// SubmitAnswer commits the pending transcript as the answer to the current
// question. Outside Listening, or with an empty pending transcript, it is a
// logged no-op: answers are confirmed explicitly, never inferred.
func (c *Controller) SubmitAnswer() {
	c.mu.Lock()
	if c.state != StateListening {
		state := c.state
		c.mu.Unlock()
		log.Printf("interview[%s]: submit ignored in state %s", c.id, state)
		return
	}
	answer := strings.TrimSpace(c.pending.Text)
	if answer == "" {
		c.mu.Unlock()
		log.Printf("interview[%s]: submit ignored, no pending transcript", c.id)
		return
	}
	c.closeTurn(answer)
}

// SkipQuestion records the skip sentinel for the current question, discarding
// any pending transcript. Valid only while Listening.
func (c *Controller) SkipQuestion() {
	c.mu.Lock()
	if c.state != StateListening {
		state := c.state
		c.mu.Unlock()
		log.Printf("interview[%s]: skip ignored in state %s", c.id, state)
		return
	}
	c.closeTurn(SkippedAnswer)
}

// closeTurn appends the turn record and advances to the next question or to
// completion. Caller must hold c.mu; closeTurn releases it.
func (c *Controller) closeTurn(answer string) {
	gen := c.gen
	cancel := c.cancelTurn
	c.cancelTurn = nil
	rec := TurnRecord{
		QuestionIndex: c.index,
		QuestionText:  c.questions[c.index],
		AnswerText:    answer,
		Timestamp:     time.Now(),
	}
	c.records = append(c.records, rec)
	c.pending = Result{}
	c.index++
	fire := c.setStateLocked(StateProcessing)
	done := c.index == len(c.questions)
	var completion Completion
	if done {
		answers := 0
		for _, r := range c.records {
			if !r.Skipped() {
				answers++
			}
		}
		completion = Completion{
			InterviewID:    c.id,
			QuestionsAsked: len(c.questions),
			AnswersGiven:   answers,
			Transcript:     append([]TurnRecord(nil), c.records...),
			Timestamp:      time.Now(),
		}
		fire = append(fire, c.setStateLocked(StateCompleted)...)
	} else {
		fire = append(fire, c.setStateLocked(StateAwaitingSpeech)...)
	}
	onTurn := c.onTurn
	onComplete := c.onComplete
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	_ = c.recognizer.Stop()
	if onTurn != nil {
		onTurn(rec)
	}
	for _, f := range fire {
		f()
	}
	if done {
		if onComplete != nil {
			onComplete(completion)
		}
		return
	}
	go c.runTurn(gen)
}

// Stop cancels any in-flight port operation and ends the session without a
// completion event. It is idempotent and a no-op in Idle and terminal states.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.state == StateIdle || c.state.Terminal() {
		c.mu.Unlock()
		return
	}
	c.gen++
	cancel := c.cancelTurn
	c.cancelTurn = nil
	c.pending = Result{}
	fire := c.setStateLocked(StateStopped)
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	_ = c.recognizer.Stop()
	for _, f := range fire {
		f()
	}
}

// Destroy stops the session, releases the input port and clears all
// subscriptions. The controller must not be reused afterwards.
func (c *Controller) Destroy() {
	c.Stop()
	_ = c.recognizer.Close()
	c.mu.Lock()
	c.onState = nil
	c.onTranscript = nil
	c.onTurn = nil
	c.onComplete = nil
	c.onError = nil
	c.mu.Unlock()
}

// runTurn speaks the current question, then opens listening. Output errors
// never fail the dialogue; the port degrades internally and we proceed.
func (c *Controller) runTurn(gen int) {
	c.mu.Lock()
	if c.gen != gen || c.state != StateAwaitingSpeech {
		c.mu.Unlock()
		return
	}
	question := c.questions[c.index]
	ctx, cancel := context.WithCancel(context.Background())
	c.cancelTurn = cancel
	c.mu.Unlock()

	if err := c.speaker.Speak(ctx, question); err != nil {
		log.Printf("interview[%s]: speech output error (continuing): %v", c.id, err)
	}

	c.mu.Lock()
	if c.gen != gen || c.state != StateAwaitingSpeech {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if err := c.recognizer.Start(ctx); err != nil {
		c.fail(gen, err)
		return
	}

	c.mu.Lock()
	if c.gen != gen || c.state != StateAwaitingSpeech {
		c.mu.Unlock()
		_ = c.recognizer.Stop()
		return
	}
	fire := c.setStateLocked(StateListening)
	c.mu.Unlock()
	for _, f := range fire {
		f()
	}
}

// pump forwards recognizer deliveries into session state for the lifetime of
// the controller. Deliveries outside Listening are dropped: transcript events
// populate the pending answer, they never advance the dialogue.
func (c *Controller) pump() {
	results := c.recognizer.Results()
	notices := c.recognizer.Notices()
	for results != nil || notices != nil {
		select {
		case r, ok := <-results:
			if !ok {
				results = nil
				continue
			}
			c.mu.Lock()
			if c.state != StateListening {
				c.mu.Unlock()
				continue
			}
			c.pending = r
			fn := c.onTranscript
			c.mu.Unlock()
			if fn != nil {
				fn(r)
			}
		case n, ok := <-notices:
			if !ok {
				notices = nil
				continue
			}
			c.mu.Lock()
			gen := c.gen
			active := c.state != StateIdle && !c.state.Terminal()
			fn := c.onError
			c.mu.Unlock()
			if !active {
				continue
			}
			switch {
			case n.Err != nil && IsFatalInputError(n.Err):
				c.fail(gen, n.Err)
			case n.Err != nil:
				log.Printf("interview[%s]: recognition error, turn can be retried: %v", c.id, n.Err)
				if fn != nil {
					fn(n.Err)
				}
			case n.Silence > 0:
				// Advisory only. The user decides whether to submit, skip or stop.
				log.Printf("interview[%s]: no speech detected for %s", c.id, n.Silence)
				if fn != nil {
					fn(silenceNotice(n.Silence))
				}
			}
		}
	}
}

type silenceError time.Duration

func silenceNotice(d time.Duration) error { return silenceError(d) }

func (e silenceError) Error() string {
	return "no speech detected for " + time.Duration(e).String()
}

// fail moves the session to Failed and reports the error exactly once. A
// stale generation or an already-terminal state makes it a no-op.
func (c *Controller) fail(gen int, err error) {
	c.mu.Lock()
	if c.gen != gen || c.state.Terminal() {
		c.mu.Unlock()
		return
	}
	c.gen++
	cancel := c.cancelTurn
	c.cancelTurn = nil
	fire := c.setStateLocked(StateFailed)
	fn := c.onError
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	_ = c.recognizer.Stop()
	for _, f := range fire {
		f()
	}
	if fn != nil {
		fn(err)
	}
}

// setStateLocked mutates state and returns the deferred subscriber
// notification. Caller must hold c.mu and invoke the returned funcs after
// unlocking, in order, so event delivery preserves transition order.
func (c *Controller) setStateLocked(s State) []func() {
	if c.state == s {
		return nil
	}
	c.state = s
	if c.onState == nil {
		return nil
	}
	fn := c.onState
	flags := s.Flags()
	return []func(){func() { fn(flags) }}
}
