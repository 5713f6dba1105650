// Package store persists interview sessions and their feedback.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Interview lifecycle statuses as persisted.
const (
	StatusCreated    = "created"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusStopped    = "stopped"
	StatusFailed     = "failed"
)

var ErrNotFound = errors.New("store: not found")

// InterviewRecord is one configured interview session.
type InterviewRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	Level     string    `json:"level"`
	Questions []string  `json:"questions"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// FeedbackRecord is the stored assessment of a finished interview. Payload
// carries the full structured feedback as produced by the scorer.
type FeedbackRecord struct {
	ID          string          `json:"id"`
	InterviewID string          `json:"interview_id"`
	UserID      string          `json:"user_id"`
	TotalScore  int             `json:"total_score"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"created_at"`
}

// RecordStore is the persistence port the HTTP layer and the phone channel
// depend on.
type RecordStore interface {
	CreateInterview(ctx context.Context, rec *InterviewRecord) error
	GetInterview(ctx context.Context, id string) (*InterviewRecord, error)
	ListInterviews(ctx context.Context, userID string) ([]InterviewRecord, error)
	UpdateInterviewStatus(ctx context.Context, id, status string) error
	CreateFeedback(ctx context.Context, rec *FeedbackRecord) error
	GetFeedbackByInterview(ctx context.Context, interviewID string) (*FeedbackRecord, error)
}
