package client

import (
	"context"
	"net/http"

	"ekaai-backend/internal/models"
)

// GoogleSignIn exchanges a verified Google ID token for EkaAI tokens.
func (c *Client) GoogleSignIn(ctx context.Context, credential string) (*models.TokenAuthResult, error) {
	var out models.TokenAuthResult
	if _, err := c.call(ctx, http.MethodPost, "/auth/google", models.GoogleCredentialRequest{Credential: credential}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AuthProfile(ctx context.Context) (*models.User, error) {
	var out models.User
	if _, err := c.call(ctx, http.MethodGet, "/auth/profile", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateAuthProfile(ctx context.Context, updates map[string]any) (*models.User, error) {
	var out models.User
	if _, err := c.call(ctx, http.MethodPut, "/auth/profile", updates, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// NotifyOnboarding tells the personalization service a profile changed.
// The endpoint does not use the envelope; any 2xx is success.
func (c *Client) NotifyOnboarding(ctx context.Context, n models.OnboardingNotification) error {
	req, err := newJSONRequest(ctx, http.MethodPost, c.baseURL+"/api/user/onboarding", n)
	if err != nil {
		return err
	}
	return c.sendNoEnvelope(req, "/api/user/onboarding")
}
