// Package phone runs interviews over a Twilio voice call. Questions are
// spoken with TwiML Say verbs, answers are captured with Record and arrive
// as transcription callbacks.
package phone

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"github.com/twilio/twilio-go/twiml"

	"github.com/mugo2m/hugos-ai-interview/internal/interview"
	"github.com/mugo2m/hugos-ai-interview/internal/llm"
	"github.com/mugo2m/hugos-ai-interview/internal/middleware"
	"github.com/mugo2m/hugos-ai-interview/internal/store"
)

// maxCallDuration bounds a phone interview; calls running longer are hung up
// when the next webhook arrives.
const maxCallDuration = 30 * time.Minute

// finalizeGrace is how long to wait for trailing transcription callbacks
// after the last question before scoring with what arrived.
const finalizeGrace = 90 * time.Second

// Scorer grades a finished transcript.
type Scorer interface {
	Score(ctx context.Context, spec llm.ScoreSpec) (*llm.Feedback, error)
}

type Config struct {
	AccountSID string
	AuthToken  string
}

// Service holds the per-call session registry and its collaborators.
type Service struct {
	config     Config
	store      store.RecordStore
	scorer     Scorer
	categories []string
	client     *twilio.RestClient

	mu       sync.Mutex
	sessions map[string]*callSession // keyed by CallSid
}

type callSession struct {
	interviewID string
	userID      string
	role        string
	questions   []string
	answers     []string
	index       int
	finished    bool
	finalized   bool
	started     time.Time
}

func New(cfg Config, recordStore store.RecordStore, scorer Scorer, categories []string) *Service {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &Service{
		config:     cfg,
		store:      recordStore,
		scorer:     scorer,
		categories: categories,
		client:     client,
		sessions:   make(map[string]*callSession),
	}
}

func (s *Service) RegisterHandlers(e *echo.Echo) {
	g := e.Group("/twilio", middleware.TwilioAuth(s.config.AuthToken))
	g.POST("/voice", s.handleVoice)
	g.POST("/answer", s.handleAnswer)
	g.POST("/transcription", s.handleTranscription)
	g.POST("/status", s.handleStatus)
}

func twilioParams(c echo.Context) (map[string]string, error) {
	params, ok := middleware.TwilioParams(c)
	if !ok {
		return nil, c.String(http.StatusInternalServerError, "webhook parameters missing")
	}
	return params, nil
}

func xmlResponse(c echo.Context, elems []twiml.Element) error {
	response, err := twiml.Voice(elems)
	if err != nil {
		return c.String(http.StatusInternalServerError, "failed to build TwiML")
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/xml")
	return c.String(http.StatusOK, response)
}

// askTwiML speaks one question and records the answer.
func askTwiML(question string) []twiml.Element {
	say := &twiml.VoiceSay{Message: question}
	record := &twiml.VoiceRecord{
		Action:             "/twilio/answer",
		Method:             "POST",
		MaxLength:          "180",
		Timeout:            "6",
		PlayBeep:           "true",
		Transcribe:         "true",
		TranscribeCallback: "/twilio/transcription",
	}
	return []twiml.Element{say, record}
}

func (s *Service) handleVoice(c echo.Context) error {
	params, err := twilioParams(c)
	if params == nil {
		return err
	}
	callSid := params["CallSid"]
	interviewID := c.QueryParam("interview")
	if callSid == "" || interviewID == "" {
		return xmlResponse(c, []twiml.Element{
			&twiml.VoiceSay{Message: "This number is not configured for an interview. Goodbye."},
			&twiml.VoiceHangup{},
		})
	}

	rec, gerr := s.store.GetInterview(c.Request().Context(), interviewID)
	if gerr != nil {
		log.Printf("phone: interview %s: %v", interviewID, gerr)
		return xmlResponse(c, []twiml.Element{
			&twiml.VoiceSay{Message: "Sorry, this interview could not be found. Goodbye."},
			&twiml.VoiceHangup{},
		})
	}
	if rec.Status == store.StatusCompleted || len(rec.Questions) == 0 {
		return xmlResponse(c, []twiml.Element{
			&twiml.VoiceSay{Message: "This interview has already finished. Goodbye."},
			&twiml.VoiceHangup{},
		})
	}

	s.mu.Lock()
	s.sessions[callSid] = &callSession{
		interviewID: rec.ID,
		userID:      rec.UserID,
		role:        rec.Role,
		questions:   rec.Questions,
		answers:     make([]string, len(rec.Questions)),
		started:     time.Now(),
	}
	s.mu.Unlock()

	s.markStatus(rec.ID, store.StatusInProgress)
	log.Printf("phone: call %s started interview %s from %s", callSid, rec.ID, params["From"])

	intro := fmt.Sprintf("Welcome to your mock interview for the %s position. You will hear %d questions. Answer after the beep; stay silent to move on. First question.", rec.Role, len(rec.Questions))
	elems := append([]twiml.Element{&twiml.VoiceSay{Message: intro}}, askTwiML(rec.Questions[0])...)
	return xmlResponse(c, elems)
}

func (s *Service) handleAnswer(c echo.Context) error {
	params, err := twilioParams(c)
	if params == nil {
		return err
	}
	callSid := params["CallSid"]

	s.mu.Lock()
	sess, ok := s.sessions[callSid]
	if !ok {
		s.mu.Unlock()
		return xmlResponse(c, []twiml.Element{&twiml.VoiceHangup{}})
	}
	if time.Since(sess.started) > maxCallDuration {
		s.mu.Unlock()
		s.hangup(callSid)
		return xmlResponse(c, []twiml.Element{
			&twiml.VoiceSay{Message: "The interview time limit was reached. Goodbye."},
			&twiml.VoiceHangup{},
		})
	}
	sess.index++
	done := sess.index >= len(sess.questions)
	var next string
	if !done {
		next = sess.questions[sess.index]
	} else {
		sess.finished = true
	}
	s.mu.Unlock()

	if !done {
		return xmlResponse(c, askTwiML(next))
	}

	// trailing transcriptions may still be in flight
	time.AfterFunc(finalizeGrace, func() { s.finalize(callSid, true) })
	s.finalize(callSid, false)
	return xmlResponse(c, []twiml.Element{
		&twiml.VoiceSay{Message: "That was the last question. Thank you, your feedback will be ready shortly. Goodbye."},
		&twiml.VoiceHangup{},
	})
}

func (s *Service) handleTranscription(c echo.Context) error {
	params, err := twilioParams(c)
	if params == nil {
		return err
	}
	callSid := params["CallSid"]
	text := strings.TrimSpace(params["TranscriptionText"])
	status := params["TranscriptionStatus"]
	if status != "completed" || text == "" {
		text = interview.SkippedAnswer
	}

	s.mu.Lock()
	sess, ok := s.sessions[callSid]
	if ok {
		// recordings are sequential per call, so the first open slot is the
		// question this transcription belongs to
		for i := 0; i < len(sess.answers); i++ {
			if sess.answers[i] == "" {
				sess.answers[i] = text
				break
			}
		}
	}
	s.mu.Unlock()
	if !ok {
		return c.String(http.StatusOK, "no session")
	}

	s.finalize(callSid, false)
	return c.String(http.StatusOK, "ok")
}

// handleStatus handles call status callbacks; a hangup mid-interview scores
// whatever was answered so far.
func (s *Service) handleStatus(c echo.Context) error {
	params, err := twilioParams(c)
	if params == nil {
		return err
	}
	if params["CallStatus"] != "completed" {
		return c.String(http.StatusOK, "ok")
	}
	callSid := params["CallSid"]

	s.mu.Lock()
	sess, ok := s.sessions[callSid]
	if ok && !sess.finished {
		sess.finished = true
		sess.questions = sess.questions[:sess.index]
		sess.answers = sess.answers[:sess.index]
	}
	s.mu.Unlock()
	if ok {
		time.AfterFunc(finalizeGrace, func() { s.finalize(callSid, true) })
	}
	return c.String(http.StatusOK, "ok")
}

// finalize scores the session once every answer slot is filled, or
// unconditionally when force is set after the grace period.
func (s *Service) finalize(callSid string, force bool) {
	s.mu.Lock()
	sess, ok := s.sessions[callSid]
	if !ok || sess.finalized || !sess.finished {
		s.mu.Unlock()
		return
	}
	complete := true
	for _, a := range sess.answers {
		if a == "" {
			complete = false
			break
		}
	}
	if !complete && !force {
		s.mu.Unlock()
		return
	}
	sess.finalized = true
	snapshot := *sess
	snapshot.answers = append([]string(nil), sess.answers...)
	delete(s.sessions, callSid)
	s.mu.Unlock()

	if len(snapshot.questions) == 0 {
		s.markStatus(snapshot.interviewID, store.StatusStopped)
		return
	}

	transcript := make([]llm.QA, len(snapshot.questions))
	for i, q := range snapshot.questions {
		a := snapshot.answers[i]
		if a == "" {
			a = interview.SkippedAnswer
		}
		transcript[i] = llm.QA{Question: q, Answer: a}
	}

	s.markStatus(snapshot.interviewID, store.StatusCompleted)
	if s.scorer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	fb, err := s.scorer.Score(ctx, llm.ScoreSpec{
		Role:       snapshot.role,
		Categories: s.categories,
		Transcript: transcript,
	})
	if err != nil {
		log.Printf("phone: score interview %s: %v", snapshot.interviewID, err)
		return
	}
	payload, err := json.Marshal(fb)
	if err != nil {
		log.Printf("phone: encode feedback %s: %v", snapshot.interviewID, err)
		return
	}
	if err := s.store.CreateFeedback(ctx, &store.FeedbackRecord{
		ID:          uuid.NewString(),
		InterviewID: snapshot.interviewID,
		UserID:      snapshot.userID,
		TotalScore:  fb.TotalScore,
		Payload:     payload,
		CreatedAt:   time.Now().UTC(),
	}); err != nil {
		log.Printf("phone: persist feedback %s: %v", snapshot.interviewID, err)
	}
}

func (s *Service) markStatus(id, status string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.store.UpdateInterviewStatus(ctx, id, status); err != nil {
		log.Printf("phone: update status %s=%s: %v", id, status, err)
	}
}

// hangup ends a call from the server side.
func (s *Service) hangup(callSid string) {
	params := &twilioApi.UpdateCallParams{}
	params.SetStatus("completed")
	if _, err := s.client.Api.UpdateCall(callSid, params); err != nil {
		log.Printf("phone: hangup %s: %v", callSid, err)
	}
	s.mu.Lock()
	delete(s.sessions, callSid)
	s.mu.Unlock()
}
