package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/kliiq/kliiq/internal/config"
	"github.com/kliiq/kliiq/internal/models"
)

var (
	// ErrInvalidToken indicates a missing, malformed or expired bearer token.
	ErrInvalidToken = errors.New("invalid token")
	// ErrIdentityUnavailable indicates the identity provider could not be reached.
	ErrIdentityUnavailable = errors.New("identity provider unavailable")
)

// supabaseUser is the subset of GET /auth/v1/user the service relies on.
type supabaseUser struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	AppMetadata struct {
		Plan string `json:"plan"`
	} `json:"app_metadata"`
}

// IdentityService verifies bearer tokens against the Supabase auth API.
type IdentityService struct {
	client *resty.Client
}

// NewIdentityService creates an IdentityService for the configured project.
func NewIdentityService(cfg config.SupabaseConfig) *IdentityService {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.URL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("apikey", cfg.AnonKey).
		SetHeader("Accept", "application/json")

	return &IdentityService{client: client}
}

// VerifyToken resolves token to an account. Every call reaches the provider;
// nothing is cached.
func (s *IdentityService) VerifyToken(ctx context.Context, token string) (*models.Account, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	var user supabaseUser
	resp, err := s.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&user).
		Get("/auth/v1/user")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIdentityUnavailable, err)
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return nil, ErrInvalidToken
	case resp.IsError():
		return nil, fmt.Errorf("%w: HTTP %d", ErrIdentityUnavailable, code)
	}

	if user.ID == "" || user.Role == "anon" {
		return nil, ErrInvalidToken
	}

	plan := config.PlanFree
	if user.AppMetadata.Plan == config.PlanPro {
		plan = config.PlanPro
	}

	return &models.Account{
		ID:    user.ID,
		Email: user.Email,
		Plan:  plan,
	}, nil
}
