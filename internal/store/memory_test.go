package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestMemory_InterviewLifecycle(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	rec := &InterviewRecord{
		ID:        uuid.NewString(),
		UserID:    "user-1",
		Role:      "Software Engineer",
		Questions: []string{"q1", "q2"},
		Status:    StatusCreated,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.CreateInterview(ctx, rec); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := m.GetInterview(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Role != rec.Role || len(got.Questions) != 2 {
		t.Fatalf("unexpected record %+v", got)
	}

	if err := m.UpdateInterviewStatus(ctx, rec.ID, StatusCompleted); err != nil {
		t.Fatalf("update status: %v", err)
	}
	got, _ = m.GetInterview(ctx, rec.ID)
	if got.Status != StatusCompleted {
		t.Fatalf("status not updated: %s", got.Status)
	}

	list, err := m.ListInterviews(ctx, "user-1")
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v %v", list, err)
	}
	list, _ = m.ListInterviews(ctx, "someone-else")
	if len(list) != 0 {
		t.Fatalf("expected empty list for other user")
	}
}

func TestMemory_NotFound(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	if _, err := m.GetInterview(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := m.UpdateInterviewStatus(ctx, "nope", StatusFailed); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := m.GetFeedbackByInterview(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemory_Feedback(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	fb := &FeedbackRecord{
		ID:          uuid.NewString(),
		InterviewID: "iv-1",
		UserID:      "user-1",
		TotalScore:  82,
		Payload:     json.RawMessage(`{"finalAssessment":"solid"}`),
		CreatedAt:   time.Now().UTC(),
	}
	if err := m.CreateFeedback(ctx, fb); err != nil {
		t.Fatalf("create feedback: %v", err)
	}
	got, err := m.GetFeedbackByInterview(ctx, "iv-1")
	if err != nil {
		t.Fatalf("get feedback: %v", err)
	}
	if got.TotalScore != 82 {
		t.Fatalf("unexpected feedback %+v", got)
	}
}
