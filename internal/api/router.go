package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/phrazzld/scry-decks/internal/api/middleware"
	"github.com/phrazzld/scry-decks/internal/api/shared"
	"github.com/phrazzld/scry-decks/internal/config"
	"github.com/phrazzld/scry-decks/internal/service/auth"
	"github.com/phrazzld/scry-decks/internal/store"
)

// RouterDeps are the services the HTTP routes are built on.
type RouterDeps struct {
	Generator  DeckGenerator
	Decks      store.DeckStore
	Profiles   store.ProfileStore
	JWTService auth.JWTService
	Config     *config.Config
	Logger     *slog.Logger
}

// NewRouter creates the application router with all routes and middleware.
func NewRouter(deps RouterDeps) (http.Handler, error) {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	maxUpload, err := deps.Config.Extract.MaxDocumentBytes()
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.NewTraceMiddleware(log))
	if origins := deps.Config.Server.CORSAllowedOrigins; len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{middleware.TraceIDHeader, "Retry-After"},
			AllowCredentials: false,
			MaxAge:           int((5 * time.Minute).Seconds()),
		}))
	}

	authMiddleware := middleware.NewAuthMiddleware(deps.JWTService)
	limiter := middleware.NewUserRateLimiter(deps.Config.RateLimit)

	deckHandler := NewDeckHandler(deps.Generator, deps.Decks, DeckHandlerConfig{
		ExposeErrorDetails: deps.Config.Server.ExposeErrorDetails,
		MaxUploadBytes:     maxUpload,
	}, log)
	profileHandler := NewProfileHandler(deps.Profiles, log)

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		r.With(limiter.Limit).Post("/generate-deck", deckHandler.GenerateDeck)

		r.Get("/decks", deckHandler.ListDecks)
		r.Post("/decks", deckHandler.CreateDeck)
		r.Get("/decks/{id}", deckHandler.GetDeck)
		r.Delete("/decks/{id}", deckHandler.DeleteDeck)

		r.Get("/profile", profileHandler.GetProfile)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r, nil
}
