package interview

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeSpeaker struct {
	delay    time.Duration
	spoken   []string
	ctxs     []context.Context
	canceled int32
	mu       sync.Mutex
}

func (f *fakeSpeaker) Speak(ctx context.Context, text string) error {
	f.mu.Lock()
	f.spoken = append(f.spoken, text)
	f.ctxs = append(f.ctxs, ctx)
	f.mu.Unlock()
	select {
	case <-ctx.Done():
		atomic.AddInt32(&f.canceled, 1)
		return nil
	case <-time.After(f.delay):
		return nil
	}
}

type fakeRecognizer struct {
	results  chan Result
	notices  chan Notice
	startErr error
	starts   int32
	stops    int32
	closed   int32
}

func newFakeRecognizer() *fakeRecognizer {
	return &fakeRecognizer{
		results: make(chan Result, 16),
		notices: make(chan Notice, 16),
	}
}

func (f *fakeRecognizer) Start(ctx context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	atomic.AddInt32(&f.starts, 1)
	return nil
}
func (f *fakeRecognizer) Results() <-chan Result  { return f.results }
func (f *fakeRecognizer) Notices() <-chan Notice  { return f.notices }
func (f *fakeRecognizer) Stop() error             { atomic.AddInt32(&f.stops, 1); return nil }
func (f *fakeRecognizer) Close() error            { atomic.AddInt32(&f.closed, 1); return nil }

type eventLog struct {
	mu        sync.Mutex
	flags     []StateFlags
	turns     []TurnRecord
	completes []Completion
	errs      []error
}

func (l *eventLog) attach(c *Controller) {
	c.OnStateChange(func(f StateFlags) { l.mu.Lock(); l.flags = append(l.flags, f); l.mu.Unlock() })
	c.OnTurn(func(r TurnRecord) { l.mu.Lock(); l.turns = append(l.turns, r); l.mu.Unlock() })
	c.OnComplete(func(cp Completion) { l.mu.Lock(); l.completes = append(l.completes, cp); l.mu.Unlock() })
	c.OnError(func(err error) { l.mu.Lock(); l.errs = append(l.errs, err); l.mu.Unlock() })
}

func (l *eventLog) completions() []Completion {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Completion(nil), l.completes...)
}

func (l *eventLog) errors() []error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]error(nil), l.errs...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// Each turn's context is released when the turn closes, not only on Stop.
func TestController_TurnContextReleasedOnClose(t *testing.T) {
	sp := &fakeSpeaker{delay: time.Millisecond}
	rec := newFakeRecognizer()
	c := New("iv-ctx", sp, rec)

	if err := c.Start([]string{"Q1", "Q2"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, "listening on Q1", func() bool { return c.State() == StateListening })

	rec.results <- Result{Text: "first answer"}
	waitFor(t, "pending transcript", func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.pending.Text == "first answer"
	})
	c.SubmitAnswer()
	waitFor(t, "listening on Q2", func() bool { return c.State() == StateListening && len(c.Transcript()) == 1 })

	sp.mu.Lock()
	first := sp.ctxs[0]
	sp.mu.Unlock()
	waitFor(t, "first turn context release", func() bool { return first.Err() != nil })
}

func TestController_TwoQuestionsCompleteInOrder(t *testing.T) {
	sp := &fakeSpeaker{delay: 5 * time.Millisecond}
	rec := newFakeRecognizer()
	c := New("iv-1", sp, rec)
	events := &eventLog{}
	events.attach(c)

	if err := c.Start([]string{"Q1", "Q2"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, "listening on Q1", func() bool { return c.State() == StateListening })

	rec.results <- Result{Text: "answer one"}
	waitFor(t, "pending transcript", func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.pending.Text == "answer one"
	})
	c.SubmitAnswer()
	waitFor(t, "listening on Q2", func() bool { return c.State() == StateListening && len(c.Transcript()) == 1 })

	rec.results <- Result{Text: "answer two", Final: true}
	waitFor(t, "second pending transcript", func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.pending.Text == "answer two"
	})
	c.SubmitAnswer()
	waitFor(t, "completion", func() bool { return c.State() == StateCompleted })

	done := events.completions()
	if len(done) != 1 {
		t.Fatalf("expected exactly one completion, got %d", len(done))
	}
	if done[0].QuestionsAsked != 2 || done[0].AnswersGiven != 2 {
		t.Fatalf("unexpected counts: asked=%d given=%d", done[0].QuestionsAsked, done[0].AnswersGiven)
	}
	if len(done[0].Transcript) != 2 {
		t.Fatalf("expected 2 turn records, got %d", len(done[0].Transcript))
	}
	for i, r := range done[0].Transcript {
		if r.QuestionIndex != i {
			t.Fatalf("record %d has index %d", i, r.QuestionIndex)
		}
	}

	// Mutual exclusion: speaking and listening are never flagged together.
	events.mu.Lock()
	for _, f := range events.flags {
		if f.IsSpeaking && f.IsListening {
			events.mu.Unlock()
			t.Fatalf("speaking and listening flagged simultaneously")
		}
	}
	events.mu.Unlock()
}

func TestController_SkipRecordsSentinel(t *testing.T) {
	sp := &fakeSpeaker{delay: time.Millisecond}
	rec := newFakeRecognizer()
	c := New("iv-skip", sp, rec)
	events := &eventLog{}
	events.attach(c)

	if err := c.Start([]string{"Q1"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, "listening", func() bool { return c.State() == StateListening })
	c.SkipQuestion()
	waitFor(t, "completion", func() bool { return c.State() == StateCompleted })

	done := events.completions()
	if len(done) != 1 {
		t.Fatalf("expected one completion, got %d", len(done))
	}
	if done[0].AnswersGiven != 0 {
		t.Fatalf("expected answersGiven=0, got %d", done[0].AnswersGiven)
	}
	if done[0].Transcript[0].AnswerText != SkippedAnswer {
		t.Fatalf("expected skip sentinel, got %q", done[0].Transcript[0].AnswerText)
	}
}

func TestController_SkipIgnoresPendingTranscript(t *testing.T) {
	sp := &fakeSpeaker{delay: time.Millisecond}
	rec := newFakeRecognizer()
	c := New("iv-skip2", sp, rec)

	if err := c.Start([]string{"Q1"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, "listening", func() bool { return c.State() == StateListening })
	rec.results <- Result{Text: "half an answer"}
	waitFor(t, "pending", func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.pending.Text != ""
	})
	c.SkipQuestion()
	waitFor(t, "completion", func() bool { return c.State() == StateCompleted })
	if got := c.Transcript()[0].AnswerText; got != SkippedAnswer {
		t.Fatalf("skip must record the sentinel regardless of pending text, got %q", got)
	}
}

func TestController_SubmitOutsideListeningIsNoOp(t *testing.T) {
	c := New("iv-noop", &fakeSpeaker{}, newFakeRecognizer())
	c.SubmitAnswer()
	if c.State() != StateIdle {
		t.Fatalf("expected state to remain IDLE, got %s", c.State())
	}
	if len(c.Transcript()) != 0 {
		t.Fatalf("expected no turn records")
	}
}

func TestController_NoAutoAdvanceOnTranscript(t *testing.T) {
	sp := &fakeSpeaker{delay: time.Millisecond}
	rec := newFakeRecognizer()
	c := New("iv-pending", sp, rec)

	if err := c.Start([]string{"Q1", "Q2"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, "listening", func() bool { return c.State() == StateListening })
	rec.results <- Result{Text: "partial"}
	rec.results <- Result{Text: "partial answer", Final: true}
	waitFor(t, "final pending", func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.pending.Final
	})
	if c.State() != StateListening {
		t.Fatalf("transcript delivery must not change state, got %s", c.State())
	}
	if len(c.Transcript()) != 0 {
		t.Fatalf("transcript delivery must not append turn records")
	}
}

func TestController_FatalStartErrorFailsSession(t *testing.T) {
	sp := &fakeSpeaker{delay: time.Millisecond}
	rec := newFakeRecognizer()
	rec.startErr = ErrPermissionDenied
	c := New("iv-perm", sp, rec)
	events := &eventLog{}
	events.attach(c)

	if err := c.Start([]string{"Q1"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, "failed state", func() bool { return c.State() == StateFailed })
	errs := events.errors()
	if len(errs) != 1 {
		t.Fatalf("expected exactly one error event, got %d", len(errs))
	}
	if len(events.completions()) != 0 {
		t.Fatalf("failed session must not complete")
	}
}

func TestController_FatalNoticeFailsSession(t *testing.T) {
	sp := &fakeSpeaker{delay: time.Millisecond}
	rec := newFakeRecognizer()
	c := New("iv-dev", sp, rec)
	events := &eventLog{}
	events.attach(c)

	if err := c.Start([]string{"Q1"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, "listening", func() bool { return c.State() == StateListening })
	rec.notices <- Notice{Err: ErrDeviceUnavailable}
	waitFor(t, "failed state", func() bool { return c.State() == StateFailed })
	if len(events.errors()) != 1 {
		t.Fatalf("expected exactly one error event, got %d", len(events.errors()))
	}
}

func TestController_TransientNoticeKeepsListening(t *testing.T) {
	sp := &fakeSpeaker{delay: time.Millisecond}
	rec := newFakeRecognizer()
	c := New("iv-transient", sp, rec)
	events := &eventLog{}
	events.attach(c)

	if err := c.Start([]string{"Q1"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, "listening", func() bool { return c.State() == StateListening })
	rec.notices <- Notice{Err: &TransientError{Err: context.DeadlineExceeded}}
	waitFor(t, "error reported", func() bool { return len(events.errors()) == 1 })
	if c.State() != StateListening {
		t.Fatalf("transient error must leave the controller listening, got %s", c.State())
	}
}

func TestController_StopMidSpeechCancelsPlayback(t *testing.T) {
	sp := &fakeSpeaker{delay: time.Second}
	rec := newFakeRecognizer()
	c := New("iv-stop", sp, rec)
	events := &eventLog{}
	events.attach(c)

	if err := c.Start([]string{"Q1"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, "speaking", func() bool {
		sp.mu.Lock()
		defer sp.mu.Unlock()
		return len(sp.spoken) == 1
	})
	c.Stop()
	if c.State() != StateStopped {
		t.Fatalf("expected STOPPED, got %s", c.State())
	}
	waitFor(t, "playback canceled", func() bool { return atomic.LoadInt32(&sp.canceled) == 1 })
	if len(events.completions()) != 0 {
		t.Fatalf("stopped session must not complete")
	}
}

func TestController_StopIsIdempotent(t *testing.T) {
	sp := &fakeSpeaker{delay: time.Millisecond}
	rec := newFakeRecognizer()
	c := New("iv-idem", sp, rec)
	events := &eventLog{}
	events.attach(c)

	if err := c.Start([]string{"Q1"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, "listening", func() bool { return c.State() == StateListening })
	c.Stop()
	events.mu.Lock()
	flagsAfterFirst := len(events.flags)
	events.mu.Unlock()

	c.Stop()
	c.Stop()
	events.mu.Lock()
	flagsAfterMore := len(events.flags)
	events.mu.Unlock()
	if flagsAfterMore != flagsAfterFirst {
		t.Fatalf("repeated stop emitted additional state events: %d -> %d", flagsAfterFirst, flagsAfterMore)
	}
	if c.State() != StateStopped {
		t.Fatalf("expected STOPPED, got %s", c.State())
	}
}

func TestController_StartValidation(t *testing.T) {
	sp := &fakeSpeaker{delay: 50 * time.Millisecond}
	rec := newFakeRecognizer()
	c := New("iv-validate", sp, rec)

	if err := c.Start(nil); err != ErrEmptyQuestionSet {
		t.Fatalf("expected ErrEmptyQuestionSet, got %v", err)
	}
	if err := c.Start([]string{"Q1"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := c.Start([]string{"Q2"}); err != ErrInvalidState {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	c.Stop()
}

func TestController_RestartAfterTerminalState(t *testing.T) {
	sp := &fakeSpeaker{delay: time.Millisecond}
	rec := newFakeRecognizer()
	c := New("iv-restart", sp, rec)

	if err := c.Start([]string{"Q1"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, "listening", func() bool { return c.State() == StateListening })
	c.Stop()
	if err := c.Start([]string{"Q1", "Q2"}); err != nil {
		t.Fatalf("restart after stop: %v", err)
	}
	waitFor(t, "listening again", func() bool { return c.State() == StateListening })
	if len(c.Transcript()) != 0 {
		t.Fatalf("restart must reset the transcript log")
	}
	c.Stop()
}
