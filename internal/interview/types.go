package interview

import (
	"context"
	"time"
)

// State is the dialogue controller's lifecycle state. Exactly one state is
// active at a time, which is what guarantees speech output and speech input
// are never live together.
type State int

const (
	StateIdle State = iota
	StateAwaitingSpeech
	StateListening
	StateProcessing
	StateCompleted
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateAwaitingSpeech:
		return "AWAITING_SPEECH"
	case StateListening:
		return "LISTENING"
	case StateProcessing:
		return "PROCESSING"
	case StateCompleted:
		return "COMPLETED"
	case StateStopped:
		return "STOPPED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transition is possible without a fresh Start.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateStopped || s == StateFailed
}

// StateFlags is the UI-facing projection of State.
type StateFlags struct {
	IsSpeaking   bool `json:"isSpeaking"`
	IsListening  bool `json:"isListening"`
	IsProcessing bool `json:"isProcessing"`
}

// Flags projects the state for UI consumers.
func (s State) Flags() StateFlags {
	return StateFlags{
		IsSpeaking:   s == StateAwaitingSpeech,
		IsListening:  s == StateListening,
		IsProcessing: s == StateProcessing,
	}
}

// SkippedAnswer is the sentinel recorded when a question is skipped.
const SkippedAnswer = "[SKIPPED]"

// TurnRecord is one question/answer pair of the transcript log.
type TurnRecord struct {
	QuestionIndex int       `json:"questionIndex"`
	QuestionText  string    `json:"questionText"`
	AnswerText    string    `json:"answerText"`
	Timestamp     time.Time `json:"timestamp"`
}

// Skipped reports whether the turn was skipped rather than answered.
func (t TurnRecord) Skipped() bool { return t.AnswerText == SkippedAnswer }

// Completion is the payload delivered exactly once when a session finishes
// all of its questions.
type Completion struct {
	InterviewID    string       `json:"interviewId"`
	QuestionsAsked int          `json:"questionsAsked"`
	AnswersGiven   int          `json:"answersGiven"`
	Transcript     []TurnRecord `json:"transcript"`
	Timestamp      time.Time    `json:"timestamp"`
}

// Result is one speech-to-text delivery. Non-final results are live updates
// and may be superseded; the controller accepts the latest text regardless
// of finality, since answers are confirmed manually.
type Result struct {
	Text      string `json:"text"`
	Final     bool   `json:"final"`
	Simulated bool   `json:"simulated,omitempty"`
}

// Notice is an advisory from the speech input port: either a silence window
// elapsed without detected voice, or a recognition error occurred. Notices
// never advance the dialogue on their own.
type Notice struct {
	Silence time.Duration
	Err     error
}

// Speaker renders text as audible speech. Speak returns once playback ends
// or ctx is canceled; cancellation is normal completion, not an error. A
// returned error is advisory only and must never block the dialogue.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Recognizer captures spoken audio and reports transcripts upward. Start is
// valid again after Stop; Results and Notices stay open until Close. Stop is
// idempotent.
type Recognizer interface {
	Start(ctx context.Context) error
	Results() <-chan Result
	Notices() <-chan Notice
	Stop() error
	Close() error
}
