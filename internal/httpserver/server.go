// Package httpserver exposes the REST API and the WebSocket voice session.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/mugo2m/hugos-ai-interview/internal/auth"
	"github.com/mugo2m/hugos-ai-interview/internal/llm"
	"github.com/mugo2m/hugos-ai-interview/internal/prompts"
	"github.com/mugo2m/hugos-ai-interview/internal/store"
)

// QuestionGenerator produces the question list for a new interview.
type QuestionGenerator interface {
	GenerateQuestions(ctx context.Context, spec llm.QuestionSpec) ([]string, error)
}

// Scorer grades a finished interview transcript.
type Scorer interface {
	Score(ctx context.Context, spec llm.ScoreSpec) (*llm.Feedback, error)
}

// Deps are the collaborators the server routes requests to.
type Deps struct {
	Store     store.RecordStore
	Identity  auth.Identity
	Questions QuestionGenerator
	Scorer    Scorer
	Library   *prompts.Library

	AssemblyAIKey string
	DeepgramKey   string
	DeepgramModel string
}

// Server bundles the echo router and dependencies.
type Server struct {
	echo *echo.Echo
	deps Deps
}

// New constructs the HTTP server with routes.
func New(deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	s := &Server{echo: e, deps: deps}

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	api := e.Group("/api", s.requireUser)
	api.GET("/templates", s.listTemplates)
	api.POST("/interviews", s.createInterview)
	api.GET("/interviews", s.listInterviews)
	api.GET("/interviews/:id", s.getInterview)
	api.GET("/interviews/:id/feedback", s.getFeedback)
	api.POST("/interviews/:id/feedback", s.scoreInterview)

	// The session endpoint authenticates inside the handler so browser
	// WebSocket clients can pass the token as a query parameter.
	e.GET("/ws/session", s.serveSession)

	return s
}

// PhoneChannel registers webhook routes on the server's router.
type PhoneChannel interface {
	RegisterHandlers(e *echo.Echo)
}

// RegisterPhone mounts the telephony webhook routes.
func (s *Server) RegisterPhone(p PhoneChannel) { p.RegisterHandlers(s.echo) }

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler { return s.echo }

func (s *Server) Start(addr string) error { return s.echo.Start(addr) }

func (s *Server) Shutdown(ctx context.Context) error { return s.echo.Shutdown(ctx) }

const userKey = "user"

func (s *Server) requireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, err := s.resolveUser(c)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
		}
		c.Set(userKey, user)
		return next(c)
	}
}

func (s *Server) resolveUser(c echo.Context) (*auth.User, error) {
	token := auth.TokenFromRequest(c.Request())
	return s.deps.Identity.Resolve(c.Request().Context(), token)
}

func currentUser(c echo.Context) *auth.User {
	u, _ := c.Get(userKey).(*auth.User)
	return u
}

type createInterviewRequest struct {
	Role          string   `json:"role"`
	Level         string   `json:"level"`
	QuestionCount int      `json:"questionCount"`
	FocusAreas    []string `json:"focusAreas"`
}

const (
	defaultQuestionCount = 5
	maxQuestionCount     = 10
)

func (s *Server) createInterview(c echo.Context) error {
	user := currentUser(c)

	var req createInterviewRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.Role == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "role is required"})
	}
	if req.QuestionCount <= 0 {
		req.QuestionCount = defaultQuestionCount
	}
	if req.QuestionCount > maxQuestionCount {
		req.QuestionCount = maxQuestionCount
	}
	if tpl := s.deps.Library.Find(req.Role); tpl != nil {
		if len(req.FocusAreas) == 0 {
			req.FocusAreas = tpl.FocusAreas
		}
		if req.Level == "" {
			req.Level = tpl.Level
		}
	}

	ctx := c.Request().Context()
	questions, err := s.deps.Questions.GenerateQuestions(ctx, llm.QuestionSpec{
		Role:       req.Role,
		Level:      req.Level,
		Count:      req.QuestionCount,
		FocusAreas: req.FocusAreas,
	})
	if err != nil {
		c.Logger().Errorf("generate questions: %v", err)
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "question generation failed"})
	}

	rec := &store.InterviewRecord{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Role:      req.Role,
		Level:     req.Level,
		Questions: questions,
		Status:    store.StatusCreated,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.deps.Store.CreateInterview(ctx, rec); err != nil {
		c.Logger().Errorf("create interview: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "persist failed"})
	}
	return c.JSON(http.StatusCreated, rec)
}

func (s *Server) listInterviews(c echo.Context) error {
	user := currentUser(c)
	recs, err := s.deps.Store.ListInterviews(c.Request().Context(), user.ID)
	if err != nil {
		c.Logger().Errorf("list interviews: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}
	if recs == nil {
		recs = []store.InterviewRecord{}
	}
	return c.JSON(http.StatusOK, recs)
}

// loadOwned fetches an interview and enforces ownership. Records of other
// users read as not found, never as forbidden.
func (s *Server) loadOwned(c echo.Context, id string) (*store.InterviewRecord, error) {
	rec, err := s.deps.Store.GetInterview(c.Request().Context(), id)
	if err != nil {
		return nil, err
	}
	if rec.UserID != currentUser(c).ID {
		return nil, store.ErrNotFound
	}
	return rec, nil
}

func (s *Server) getInterview(c echo.Context) error {
	rec, err := s.loadOwned(c, c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "interview not found"})
	}
	if err != nil {
		c.Logger().Errorf("get interview: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}
	return c.JSON(http.StatusOK, rec)
}

func (s *Server) getFeedback(c echo.Context) error {
	if _, err := s.loadOwned(c, c.Param("id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "interview not found"})
		}
		c.Logger().Errorf("get interview: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}
	fb, err := s.deps.Store.GetFeedbackByInterview(c.Request().Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "feedback not ready"})
	}
	if err != nil {
		c.Logger().Errorf("get feedback: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}
	return c.JSON(http.StatusOK, fb)
}

type scoreRequest struct {
	Transcript []llm.QA `json:"transcript"`
}

// scoreInterview grades a submitted transcript on demand. The live session
// scores automatically on completion; this route serves clients that ran the
// dialogue elsewhere or want a re-score.
func (s *Server) scoreInterview(c echo.Context) error {
	rec, err := s.loadOwned(c, c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "interview not found"})
	}
	if err != nil {
		c.Logger().Errorf("get interview: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}

	var req scoreRequest
	if err := c.Bind(&req); err != nil || len(req.Transcript) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "transcript is required"})
	}

	ctx := c.Request().Context()
	fb, err := s.deps.Scorer.Score(ctx, llm.ScoreSpec{
		Role:       rec.Role,
		Categories: s.deps.Library.Categories,
		Transcript: req.Transcript,
	})
	if err != nil {
		c.Logger().Errorf("score interview: %v", err)
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "scoring failed"})
	}
	payload, err := json.Marshal(fb)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "encode failed"})
	}
	fbRec := &store.FeedbackRecord{
		ID:          uuid.NewString(),
		InterviewID: rec.ID,
		UserID:      rec.UserID,
		TotalScore:  fb.TotalScore,
		Payload:     payload,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.deps.Store.CreateFeedback(ctx, fbRec); err != nil {
		c.Logger().Errorf("persist feedback: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "persist failed"})
	}
	if rec.Status != store.StatusCompleted {
		if err := s.deps.Store.UpdateInterviewStatus(ctx, rec.ID, store.StatusCompleted); err != nil {
			c.Logger().Errorf("update status: %v", err)
		}
	}
	return c.JSON(http.StatusCreated, fbRec)
}

func (s *Server) listTemplates(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"templates":  s.deps.Library.Templates,
		"categories": s.deps.Library.Categories,
	})
}
