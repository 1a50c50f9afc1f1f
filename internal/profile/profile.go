// Package profile loads and writes learner profiles. A missing profile is a
// normal state (the learner has not onboarded yet), not an error.
package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"ekaai-backend/internal/logger"
	"ekaai-backend/internal/metrics"
	"ekaai-backend/internal/models"
	"ekaai-backend/internal/services"
)

// Repository is the persisted profiles table.
type Repository interface {
	GetByID(ctx context.Context, userID string) (*models.ProfileRow, error)
	Upsert(ctx context.Context, userID string, u *models.ProfileUpdate) error
	Delete(ctx context.Context, userID string) error
}

type Fetcher struct {
	repo Repository
	sf   singleflight.Group
	rec  metrics.Recorder
	log  *zap.Logger
}

func NewFetcher(repo Repository, rec metrics.Recorder) *Fetcher {
	if rec == nil {
		rec = metrics.Noop{}
	}
	return &Fetcher{repo: repo, rec: rec, log: logger.Named("profile")}
}

// FetchProfile returns (nil, nil) when no profile exists. Other failures are
// logged and returned so the caller can decide what to keep.
func (f *Fetcher) FetchProfile(ctx context.Context, userID string) (*models.Profile, error) {
	v, err, _ := f.sf.Do(userID, func() (any, error) {
		return f.load(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	p, _ := v.(*models.Profile)
	if p == nil {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

// Refresh fetches without joining a read that started before a write.
func (f *Fetcher) Refresh(ctx context.Context, userID string) (*models.Profile, error) {
	f.sf.Forget(userID)
	return f.FetchProfile(ctx, userID)
}

func (f *Fetcher) load(ctx context.Context, userID string) (*models.Profile, error) {
	row, err := f.repo.GetByID(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		f.rec.RecordProfileFetch("not_found")
		return nil, nil
	}
	if err != nil {
		f.rec.RecordProfileFetch("error")
		f.log.Error("fetch profile", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	if row.ID != userID {
		f.rec.RecordProfileFetch("error")
		f.log.Error("profile id does not match owner", zap.String("user_id", userID), zap.String("row_id", row.ID))
		return nil, fmt.Errorf("fetch profile: row %s does not belong to %s", row.ID, userID)
	}
	f.rec.RecordProfileFetch("found")
	return row.ToProfile(), nil
}

// Save validates and upserts a partial profile. Unset fields are left alone.
func (f *Fetcher) Save(ctx context.Context, userID string, u *models.ProfileUpdate) error {
	if err := ValidateUpdate(u); err != nil {
		return err
	}
	if err := f.repo.Upsert(ctx, userID, u); err != nil {
		f.log.Error("upsert profile", zap.String("user_id", userID), zap.Error(err))
		return fmt.Errorf("save profile: %w", err)
	}
	f.sf.Forget(userID)
	return nil
}

// Delete returns services.ErrNotFound when the user has no profile row.
func (f *Fetcher) Delete(ctx context.Context, userID string) error {
	err := f.repo.Delete(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		f.sf.Forget(userID)
		return fmt.Errorf("delete profile %s: %w", userID, services.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	f.sf.Forget(userID)
	return nil
}

// OnboardingNotification builds the payload for the personalization service.
func OnboardingNotification(userID string, u *models.ProfileUpdate, now time.Time) models.OnboardingNotification {
	return models.OnboardingNotification{
		UserID:      userID,
		ProfileData: u,
		Timestamp:   now.UTC().Format(time.RFC3339Nano),
	}
}
