package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/mugo2m/hugos-ai-interview/internal/interview"
	"github.com/mugo2m/hugos-ai-interview/internal/llm"
	"github.com/mugo2m/hugos-ai-interview/internal/store"
	"github.com/mugo2m/hugos-ai-interview/internal/stt"
	"github.com/mugo2m/hugos-ai-interview/internal/tts"
)

var sessionUpgrader = websocket.Upgrader{
	ReadBufferSize:  65536,
	WriteBufferSize: 65536,
	CheckOrigin: func(r *http.Request) bool {
		// Allow any origin for demo use; restrict in production
		return true
	},
}

// wsSession serializes writes to one WebSocket connection. Control events go
// out as JSON text frames, synthesized audio as binary PCM frames.
type wsSession struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (s *wsSession) sendJSON(v interface{}) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(v)
}

func (s *wsSession) sendBinary(frame []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.BinaryMessage, frame)
}

// Client commands. Binary frames carry 16kHz PCM microphone audio and have
// no JSON envelope.
type sessionCommand struct {
	Type string `json:"type"`
}

type stateEvent struct {
	Type  string               `json:"type"`
	State string               `json:"state"`
	Flags interview.StateFlags `json:"flags"`
}

type questionEvent struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
	Total int    `json:"total"`
	Text  string `json:"text"`
}

type transcriptEvent struct {
	Type string           `json:"type"`
	Data interview.Result `json:"data"`
}

type turnEvent struct {
	Type string               `json:"type"`
	Turn interview.TurnRecord `json:"turn"`
}

type completeEvent struct {
	Type       string               `json:"type"`
	Completion interview.Completion `json:"completion"`
}

type errorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Fatal   bool   `json:"fatal"`
}

func (s *Server) serveSession(c echo.Context) error {
	user, err := s.resolveUser(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	id := c.QueryParam("interview")
	if id == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "interview query parameter required"})
	}
	rec, err := s.deps.Store.GetInterview(c.Request().Context(), id)
	if err != nil || rec.UserID != user.ID {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "interview not found"})
	}
	if rec.Status == store.StatusCompleted {
		return c.JSON(http.StatusConflict, echo.Map{"error": "interview already completed"})
	}

	opts := tts.Options{}
	if v := c.QueryParam("speech_rate"); v != "" {
		if f, perr := strconv.ParseFloat(v, 64); perr == nil && f > 0 {
			opts.Rate = f
		}
	}
	if v := c.QueryParam("speech_volume"); v != "" {
		if f, perr := strconv.ParseFloat(v, 64); perr == nil && f > 0 && f <= 1 {
			opts.Volume = f
		}
	}

	conn, err := sessionUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("session ws upgrade: %v", err)
		return nil
	}
	defer func() { _ = conn.Close() }()

	sess := &wsSession{conn: conn}
	sink := newWSAudioSink(sess)
	defer sink.Close()

	speaker := tts.NewSpeaker(s.deps.DeepgramKey, s.deps.DeepgramModel, sink, opts)
	recognizer := stt.NewRecognizer(s.deps.AssemblyAIKey)
	ctrl := interview.New(rec.ID, speaker, recognizer)
	defer ctrl.Destroy()

	questions := rec.Questions

	ctrl.OnStateChange(func(f interview.StateFlags) {
		_ = sess.sendJSON(stateEvent{Type: "state", State: ctrl.State().String(), Flags: f})
	})
	ctrl.OnTranscript(func(r interview.Result) {
		_ = sess.sendJSON(transcriptEvent{Type: "transcript", Data: r})
	})
	ctrl.OnTurn(func(t interview.TurnRecord) {
		_ = sess.sendJSON(turnEvent{Type: "turn", Turn: t})
		if next := t.QuestionIndex + 1; next < len(questions) {
			_ = sess.sendJSON(questionEvent{Type: "question", Index: next, Total: len(questions), Text: questions[next]})
		}
	})
	ctrl.OnComplete(func(done interview.Completion) {
		_ = sess.sendJSON(completeEvent{Type: "complete", Completion: done})
		go s.finishInterview(rec, done)
	})
	ctrl.OnError(func(err error) {
		_ = sess.sendJSON(errorEvent{Type: "error", Message: err.Error(), Fatal: interview.IsFatalInputError(err)})
	})

	// Only the streaming recognizer consumes microphone audio; in simulated
	// mode binary frames are dropped.
	feeder, _ := recognizer.(*stt.StreamRecognizer)

	for {
		mt, data, rerr := conn.ReadMessage()
		if rerr != nil {
			break
		}
		switch mt {
		case websocket.BinaryMessage:
			if feeder != nil {
				_ = feeder.FeedPCM16(data)
			}
		case websocket.TextMessage:
			var cmd sessionCommand
			if jerr := json.Unmarshal(data, &cmd); jerr != nil {
				continue
			}
			switch cmd.Type {
			case "start":
				if serr := ctrl.Start(questions); serr != nil {
					_ = sess.sendJSON(errorEvent{Type: "error", Message: serr.Error()})
					continue
				}
				s.markStatus(rec.ID, store.StatusInProgress)
				_ = sess.sendJSON(questionEvent{Type: "question", Index: 0, Total: len(questions), Text: questions[0]})
			case "submit":
				ctrl.SubmitAnswer()
			case "skip":
				ctrl.SkipQuestion()
			case "stop":
				ctrl.Stop()
			}
		}
	}

	// Socket gone. Reconcile the stored status with where the dialogue ended.
	switch ctrl.State() {
	case interview.StateCompleted:
		// finishInterview already handled it
	case interview.StateFailed:
		s.markStatus(rec.ID, store.StatusFailed)
	case interview.StateIdle:
		// never started, leave as created
	default:
		ctrl.Stop()
		s.markStatus(rec.ID, store.StatusStopped)
	}
	return nil
}

func (s *Server) markStatus(id, status string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.deps.Store.UpdateInterviewStatus(ctx, id, status); err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Printf("session: update status %s=%s: %v", id, status, err)
	}
}

// finishInterview persists the completion and scores the transcript. Runs in
// its own goroutine; a scoring failure leaves the interview completed but
// without feedback, which the API reports as feedback not ready.
func (s *Server) finishInterview(rec *store.InterviewRecord, done interview.Completion) {
	s.markStatus(rec.ID, store.StatusCompleted)

	if s.deps.Scorer == nil {
		return
	}
	transcript := make([]llm.QA, 0, len(done.Transcript))
	for _, t := range done.Transcript {
		transcript = append(transcript, llm.QA{Question: t.QuestionText, Answer: t.AnswerText})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	fb, err := s.deps.Scorer.Score(ctx, llm.ScoreSpec{
		Role:       rec.Role,
		Categories: s.deps.Library.Categories,
		Transcript: transcript,
	})
	if err != nil {
		log.Printf("session: score interview %s: %v", rec.ID, err)
		return
	}
	payload, err := json.Marshal(fb)
	if err != nil {
		log.Printf("session: encode feedback %s: %v", rec.ID, err)
		return
	}
	if err := s.deps.Store.CreateFeedback(ctx, &store.FeedbackRecord{
		ID:          uuid.NewString(),
		InterviewID: rec.ID,
		UserID:      rec.UserID,
		TotalScore:  fb.TotalScore,
		Payload:     payload,
		CreatedAt:   time.Now().UTC(),
	}); err != nil {
		log.Printf("session: persist feedback %s: %v", rec.ID, err)
	}
}
