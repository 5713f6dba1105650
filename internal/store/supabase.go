package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/supabase-community/supabase-go"
)

const (
	interviewsTable = "interviews"
	feedbackTable   = "interview_feedback"
)

// Supabase persists records in Supabase Postgres via the PostgREST API.
type Supabase struct {
	client *supabase.Client
}

func NewSupabase(url, serviceRoleKey string) (*Supabase, error) {
	client, err := supabase.NewClient(url, serviceRoleKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("store: create supabase client: %w", err)
	}
	return &Supabase{client: client}, nil
}

func (s *Supabase) CreateInterview(ctx context.Context, rec *InterviewRecord) error {
	_, _, err := s.client.From(interviewsTable).Insert(rec, false, "", "", "").ExecuteWithContext(ctx)
	if err != nil {
		return fmt.Errorf("store: insert interview: %w", err)
	}
	return nil
}

func (s *Supabase) GetInterview(ctx context.Context, id string) (*InterviewRecord, error) {
	data, _, err := s.client.From(interviewsTable).Select("*", "", false).Eq("id", id).ExecuteWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: select interview: %w", err)
	}
	var recs []InterviewRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("store: decode interview: %w", err)
	}
	if len(recs) == 0 {
		return nil, ErrNotFound
	}
	return &recs[0], nil
}

func (s *Supabase) ListInterviews(ctx context.Context, userID string) ([]InterviewRecord, error) {
	data, _, err := s.client.From(interviewsTable).Select("*", "", false).Eq("user_id", userID).ExecuteWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: list interviews: %w", err)
	}
	var recs []InterviewRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("store: decode interviews: %w", err)
	}
	return recs, nil
}

func (s *Supabase) UpdateInterviewStatus(ctx context.Context, id, status string) error {
	_, _, err := s.client.From(interviewsTable).
		Update(map[string]string{"status": status}, "", "").
		Eq("id", id).
		ExecuteWithContext(ctx)
	if err != nil {
		return fmt.Errorf("store: update interview status: %w", err)
	}
	return nil
}

func (s *Supabase) CreateFeedback(ctx context.Context, rec *FeedbackRecord) error {
	_, _, err := s.client.From(feedbackTable).Insert(rec, false, "", "", "").ExecuteWithContext(ctx)
	if err != nil {
		return fmt.Errorf("store: insert feedback: %w", err)
	}
	return nil
}

func (s *Supabase) GetFeedbackByInterview(ctx context.Context, interviewID string) (*FeedbackRecord, error) {
	data, _, err := s.client.From(feedbackTable).Select("*", "", false).Eq("interview_id", interviewID).ExecuteWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: select feedback: %w", err)
	}
	var recs []FeedbackRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("store: decode feedback: %w", err)
	}
	if len(recs) == 0 {
		return nil, ErrNotFound
	}
	return &recs[0], nil
}
