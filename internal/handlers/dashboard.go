package handlers

import (
	"errors"
	"net/http"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ekaai-backend/internal/client"
	"ekaai-backend/internal/logger"
	"ekaai-backend/internal/middleware"
	"ekaai-backend/internal/models"
	"ekaai-backend/internal/services"
)

type DashboardHandler struct {
	api *client.Client
	log *zap.Logger
}

func NewDashboardHandler(api *client.Client) *DashboardHandler {
	return &DashboardHandler{api: api, log: logger.Named("dashboard")}
}

// Summary gathers what the dashboard renders on first paint. Each part that
// fails is replaced by empty data and listed under "degraded".
func (h *DashboardHandler) Summary(w http.ResponseWriter, r *http.Request) {
	api, err := authorized(r, h.api)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	summary := models.DashboardSummary{
		Profile:     middleware.GetAuth(r.Context()).State().Profile,
		Recommended: []models.LearningSession{},
		Decks:       []models.FlashcardDeck{},
		Analytics:   &models.ProgressAnalytics{},
	}

	var mu sync.Mutex
	degrade := func(part string, err error) {
		h.log.Warn("dashboard part degraded",
			zap.String("part", part),
			zap.String("request_id", r.Header.Get("X-Request-ID")),
			zap.Error(err),
		)
		mu.Lock()
		summary.Degraded = append(summary.Degraded, part)
		mu.Unlock()
	}

	ctx := r.Context()
	var g errgroup.Group
	g.Go(func() error {
		sessions, err := api.RecommendedSessions(ctx)
		if err != nil {
			degrade("recommended", err)
			return nil
		}
		if sessions != nil {
			summary.Recommended = sessions
		}
		return nil
	})
	g.Go(func() error {
		decks, err := api.FlashcardDecks(ctx)
		if err != nil {
			degrade("decks", err)
			return nil
		}
		if decks != nil {
			summary.Decks = decks
		}
		return nil
	})
	g.Go(func() error {
		analytics, err := api.ProgressAnalytics(ctx, "7d")
		if err != nil {
			degrade("analytics", err)
			return nil
		}
		summary.Analytics = analytics
		return nil
	})
	g.Wait()

	sort.Strings(summary.Degraded)
	writeJSON(w, http.StatusOK, summary)
}

// authorized returns the backend client acting as the request's user.
func authorized(r *http.Request, api *client.Client) (*client.Client, error) {
	ac := middleware.GetAuth(r.Context())
	if ac == nil {
		return nil, services.ErrNoUser
	}
	token, err := ac.AccessToken(r.Context())
	if err != nil {
		if errors.Is(err, services.ErrNoUser) {
			return nil, err
		}
		logger.L().Warn("access token unavailable",
			zap.String("visitor_id", middleware.GetVisitorID(r.Context())),
			zap.Error(err),
		)
		return nil, &services.UnauthorizedError{Message: "Session expired, please sign in again"}
	}
	return api.WithBearer(token), nil
}

// writeList answers a list read. A backend failure is logged and answered
// with an empty, degraded list.
func writeList[T any](w http.ResponseWriter, r *http.Request, what string, items []T, err error) {
	if err != nil {
		logger.L().Warn("list degraded",
			zap.String("list", what),
			zap.String("request_id", r.Header.Get("X-Request-ID")),
			zap.Error(err),
		)
		writeJSON(w, http.StatusOK, models.Degraded[[]T]{Data: []T{}, Degraded: true})
		return
	}
	if items == nil {
		items = []T{}
	}
	writeJSON(w, http.StatusOK, models.Degraded[[]T]{Data: items})
}
