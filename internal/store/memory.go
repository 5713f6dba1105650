package store

import (
	"context"
	"sync"
)

// Memory is the in-process store used when Supabase is not configured, and by
// tests. Records do not survive a restart.
type Memory struct {
	mu         sync.RWMutex
	interviews map[string]InterviewRecord
	feedback   map[string]FeedbackRecord // keyed by interview id
}

func NewMemory() *Memory {
	return &Memory{
		interviews: make(map[string]InterviewRecord),
		feedback:   make(map[string]FeedbackRecord),
	}
}

func (m *Memory) CreateInterview(ctx context.Context, rec *InterviewRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interviews[rec.ID] = *rec
	return nil
}

func (m *Memory) GetInterview(ctx context.Context, id string) (*InterviewRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.interviews[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (m *Memory) ListInterviews(ctx context.Context, userID string) ([]InterviewRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []InterviewRecord
	for _, rec := range m.interviews {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *Memory) UpdateInterviewStatus(ctx context.Context, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.interviews[id]
	if !ok {
		return ErrNotFound
	}
	rec.Status = status
	m.interviews[id] = rec
	return nil
}

func (m *Memory) CreateFeedback(ctx context.Context, rec *FeedbackRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feedback[rec.InterviewID] = *rec
	return nil
}

func (m *Memory) GetFeedbackByInterview(ctx context.Context, interviewID string) (*FeedbackRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.feedback[interviewID]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}
