package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var ErrUnauthorized = errors.New("auth: unauthorized")

// SupabaseIdentity verifies access tokens against the Supabase auth endpoint.
type SupabaseIdentity struct {
	HTTPClient *http.Client
	BaseURL    string
	AnonKey    string
}

func NewSupabaseIdentity(baseURL, anonKey string) *SupabaseIdentity {
	return &SupabaseIdentity{
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		BaseURL:    strings.TrimRight(baseURL, "/"),
		AnonKey:    anonKey,
	}
}

type supabaseUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (s *SupabaseIdentity) Resolve(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", s.AnonKey)

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: verify token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("auth: verify token: status=%d", resp.StatusCode)
	}
	var u supabaseUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, fmt.Errorf("auth: decode user: %w", err)
	}
	if u.ID == "" {
		return nil, ErrUnauthorized
	}
	return &User{ID: u.ID, Email: u.Email}, nil
}
