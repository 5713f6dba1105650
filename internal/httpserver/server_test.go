package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mugo2m/hugos-ai-interview/internal/auth"
	"github.com/mugo2m/hugos-ai-interview/internal/llm"
	"github.com/mugo2m/hugos-ai-interview/internal/prompts"
	"github.com/mugo2m/hugos-ai-interview/internal/store"
)

type fakeQuestions struct {
	qs  []string
	err error
}

func (f *fakeQuestions) GenerateQuestions(ctx context.Context, spec llm.QuestionSpec) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.qs) > 0 {
		return f.qs, nil
	}
	qs := make([]string, spec.Count)
	for i := range qs {
		qs[i] = "question"
	}
	return qs, nil
}

type fakeScorer struct {
	fb  *llm.Feedback
	err error
}

func (f *fakeScorer) Score(ctx context.Context, spec llm.ScoreSpec) (*llm.Feedback, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.fb != nil {
		return f.fb, nil
	}
	scores := make([]llm.CategoryScore, len(spec.Categories))
	for i, c := range spec.Categories {
		scores[i] = llm.CategoryScore{Name: c, Score: 70, Comment: "ok"}
	}
	return &llm.Feedback{TotalScore: 70, CategoryScores: scores, FinalAssessment: "fine"}, nil
}

func newTestServer(t *testing.T) (*Server, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	s := New(Deps{
		Store:     mem,
		Identity:  &auth.Static{UserID: "user-1"},
		Questions: &fakeQuestions{},
		Scorer:    &fakeScorer{},
		Library:   prompts.Defaults(),
	})
	return s, mem
}

func doJSON(t *testing.T, s *Server, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("unexpected health response %d %q", rec.Code, rec.Body.String())
	}
}

func TestAPI_RequiresAuth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/api/interviews", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCreateInterview(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s, http.MethodPost, "/api/interviews", "tok", `{"role":"Software Engineer"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rec.Code, rec.Body.String())
	}
	var iv store.InterviewRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &iv); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if iv.ID == "" || iv.UserID != "user-1" || iv.Status != store.StatusCreated {
		t.Fatalf("unexpected record %+v", iv)
	}
	if len(iv.Questions) != defaultQuestionCount {
		t.Fatalf("expected %d default questions, got %d", defaultQuestionCount, len(iv.Questions))
	}
	// level pulled from the matching template
	if iv.Level == "" {
		t.Fatalf("expected template level to fill in")
	}
}

func TestCreateInterview_Validation(t *testing.T) {
	s, _ := newTestServer(t)
	if rec := doJSON(t, s, http.MethodPost, "/api/interviews", "tok", `{"role":""}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing role, got %d", rec.Code)
	}
	if rec := doJSON(t, s, http.MethodPost, "/api/interviews", "tok", `not-json`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad json, got %d", rec.Code)
	}
}

func TestCreateInterview_ClampsQuestionCount(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s, http.MethodPost, "/api/interviews", "tok", `{"role":"Software Engineer","questionCount":50}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var iv store.InterviewRecord
	_ = json.Unmarshal(rec.Body.Bytes(), &iv)
	if len(iv.Questions) != maxQuestionCount {
		t.Fatalf("expected clamp to %d, got %d", maxQuestionCount, len(iv.Questions))
	}
}

func TestGetInterview_OwnershipAndNotFound(t *testing.T) {
	s, mem := newTestServer(t)
	other := &store.InterviewRecord{ID: "other-iv", UserID: "someone-else", Status: store.StatusCreated, CreatedAt: time.Now()}
	if err := mem.CreateInterview(context.Background(), other); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if rec := doJSON(t, s, http.MethodGet, "/api/interviews/other-iv", "tok", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("foreign interview must read as 404, got %d", rec.Code)
	}
	if rec := doJSON(t, s, http.MethodGet, "/api/interviews/missing", "tok", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestListInterviews_EmptyIsArray(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/api/interviews", "tok", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("expected empty array, got %s", rec.Body.String())
	}
}

func TestGetFeedback(t *testing.T) {
	s, mem := newTestServer(t)
	ctx := context.Background()
	iv := &store.InterviewRecord{ID: "iv-1", UserID: "user-1", Status: store.StatusCompleted, CreatedAt: time.Now()}
	_ = mem.CreateInterview(ctx, iv)

	if rec := doJSON(t, s, http.MethodGet, "/api/interviews/iv-1/feedback", "tok", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before scoring, got %d", rec.Code)
	}

	_ = mem.CreateFeedback(ctx, &store.FeedbackRecord{ID: "fb-1", InterviewID: "iv-1", UserID: "user-1", TotalScore: 81, Payload: json.RawMessage(`{}`)})
	rec := doJSON(t, s, http.MethodGet, "/api/interviews/iv-1/feedback", "tok", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var fb store.FeedbackRecord
	_ = json.Unmarshal(rec.Body.Bytes(), &fb)
	if fb.TotalScore != 81 {
		t.Fatalf("unexpected feedback %+v", fb)
	}
}

func TestScoreInterview_OnDemand(t *testing.T) {
	s, mem := newTestServer(t)
	ctx := context.Background()
	iv := &store.InterviewRecord{ID: "iv-score", UserID: "user-1", Role: "Software Engineer", Status: store.StatusStopped, CreatedAt: time.Now()}
	_ = mem.CreateInterview(ctx, iv)

	body := `{"transcript":[{"question":"Why us?","answer":"Because."}]}`
	rec := doJSON(t, s, http.MethodPost, "/api/interviews/iv-score/feedback", "tok", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rec.Code, rec.Body.String())
	}
	var fb store.FeedbackRecord
	_ = json.Unmarshal(rec.Body.Bytes(), &fb)
	if fb.TotalScore != 70 || fb.InterviewID != "iv-score" {
		t.Fatalf("unexpected feedback %+v", fb)
	}
	got, _ := mem.GetInterview(ctx, "iv-score")
	if got.Status != store.StatusCompleted {
		t.Fatalf("expected completed after scoring, got %s", got.Status)
	}

	if rec := doJSON(t, s, http.MethodPost, "/api/interviews/iv-score/feedback", "tok", `{"transcript":[]}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty transcript, got %d", rec.Code)
	}
	if rec := doJSON(t, s, http.MethodPost, "/api/interviews/missing/feedback", "tok", body); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestListTemplates(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/api/templates", "tok", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Templates  []prompts.Template `json:"templates"`
		Categories []string           `json:"categories"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Templates) == 0 || len(body.Categories) != 5 {
		t.Fatalf("unexpected library %+v", body)
	}
}

func TestFinishInterview_PersistsFeedback(t *testing.T) {
	s, mem := newTestServer(t)
	ctx := context.Background()
	iv := &store.InterviewRecord{ID: "iv-2", UserID: "user-1", Role: "Software Engineer", Status: store.StatusInProgress, CreatedAt: time.Now()}
	_ = mem.CreateInterview(ctx, iv)

	s.finishInterview(iv, completionFixture("iv-2"))

	got, err := mem.GetInterview(ctx, "iv-2")
	if err != nil || got.Status != store.StatusCompleted {
		t.Fatalf("expected completed status, got %+v %v", got, err)
	}
	fb, err := mem.GetFeedbackByInterview(ctx, "iv-2")
	if err != nil {
		t.Fatalf("expected feedback persisted: %v", err)
	}
	if fb.TotalScore != 70 {
		t.Fatalf("unexpected feedback %+v", fb)
	}
}
