package client

import (
	"context"
	"net/http"

	"ekaai-backend/internal/models"
)

func (c *Client) RegisterStudent(ctx context.Context, r *models.StudentRegistration) (*models.WaitlistResult, error) {
	return c.register(ctx, "/waitlist/student", r)
}

func (c *Client) RegisterInstructor(ctx context.Context, r *models.InstructorRegistration) (*models.WaitlistResult, error) {
	return c.register(ctx, "/waitlist/instructor", r)
}

func (c *Client) RegisterUniversity(ctx context.Context, r *models.UniversityRegistration) (*models.WaitlistResult, error) {
	return c.register(ctx, "/waitlist/university", r)
}

func (c *Client) register(ctx context.Context, path string, body any) (*models.WaitlistResult, error) {
	env, err := c.call(ctx, http.MethodPost, path, body, nil)
	if err != nil {
		return nil, err
	}
	msg := env.Message
	if msg == "" {
		msg = "Successfully joined the waitlist!"
	}
	return &models.WaitlistResult{Success: true, Message: msg}, nil
}
