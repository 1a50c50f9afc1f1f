package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"ekaai-backend/internal/handlers"
	"ekaai-backend/internal/middleware"
	"ekaai-backend/internal/websocket"
)

func New(
	visitors *middleware.Visitors,
	gate *middleware.Gate,
	waitlistLimiter *middleware.RateLimiter,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	waitlistHandler *handlers.WaitlistHandler,
	dashboardHandler *handlers.DashboardHandler,
	studySessionHandler *handlers.StudySessionHandler,
	flashcardHandler *handlers.FlashcardHandler,
	contentHandler *handlers.ContentHandler,
	chatHandler *handlers.ChatHandler,
	wsHub *websocket.Hub,
	metricsHandler http.Handler,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(frontendURL))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	// ──── OAuth browser round trip ────
	r.Route("/auth", func(r chi.Router) {
		r.Use(visitors.Middleware)
		r.Get("/google", authHandler.GoogleRedirect)
		r.Get("/callback", authHandler.CallbackRedirect)
		r.Post("/callback", authHandler.Callback)
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Waitlist Routes (public) ────
		r.Route("/waitlist", func(r chi.Router) {
			r.Use(waitlistLimiter.Middleware)
			r.Post("/student", waitlistHandler.Student)
			r.Post("/instructor", waitlistHandler.Instructor)
			r.Post("/university", waitlistHandler.University)
		})

		r.Group(func(r chi.Router) {
			r.Use(visitors.Middleware)

			// ──── Auth State Routes ────
			r.Route("/auth", func(r chi.Router) {
				r.Get("/state", authHandler.State)
				r.Post("/signout", authHandler.SignOut)
				r.Get("/ws", wsHub.HandleWebSocket)
			})

			// ──── Onboarding (signed in, no profile yet) ────
			r.Group(func(r chi.Router) {
				r.Use(gate.RequireUser)
				r.Post("/onboarding", userHandler.Onboard)
			})

			// ──── Everything else needs a completed profile ────
			r.Group(func(r chi.Router) {
				r.Use(gate.RequireProfile)

				r.Get("/profile", userHandler.GetProfile)
				r.Put("/profile", userHandler.UpdateProfile)
				r.Delete("/account", userHandler.DeleteAccount)

				r.Get("/dashboard", dashboardHandler.Summary)
				r.Get("/analytics", studySessionHandler.Analytics)

				r.Route("/sessions", func(r chi.Router) {
					r.Get("/", studySessionHandler.List)
					r.Get("/recommended", studySessionHandler.Recommended)
					r.Get("/{id}", studySessionHandler.Get)
					r.Put("/{id}/progress", studySessionHandler.UpdateProgress)
					r.Post("/{id}/answers", studySessionHandler.SubmitAnswer)
				})

				r.Route("/flashcards", func(r chi.Router) {
					r.Get("/decks", flashcardHandler.ListDecks)
					r.Get("/decks/{id}/cards", flashcardHandler.DeckCards)
					r.Post("/cards/{id}/review", flashcardHandler.ReviewCard)
				})

				r.Route("/content", func(r chi.Router) {
					r.Get("/", contentHandler.List)
					r.Post("/notes", contentHandler.CreateNote)
					r.Post("/upload", contentHandler.Upload)
					r.Post("/validate-youtube", contentHandler.ValidateYouTube)
				})

				r.Route("/chat", func(r chi.Router) {
					r.Post("/sessions", chatHandler.CreateSession)
					r.Get("/sessions", chatHandler.ListSessions)
					r.Get("/sessions/{id}", chatHandler.GetSession)
					r.Post("/sessions/{id}/messages", chatHandler.Ask)
					r.Post("/sessions/{id}/follow-ups/{index}", chatHandler.AskFollowUp)
					r.Get("/messages/{id}/follow-ups", chatHandler.FollowUps)
					r.Post("/explain", chatHandler.Explain)
					r.Post("/analyze-work", chatHandler.AnalyzeWork)
				})

				r.Route("/doubts", func(r chi.Router) {
					r.Post("/", chatHandler.SubmitDoubt)
					r.Get("/history", chatHandler.DoubtHistory)
					r.Post("/history", chatHandler.SaveDoubtHistory)
				})
			})
		})
	})

	return r
}
