package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/phrazzld/scry-decks/internal/api/shared"
	"github.com/phrazzld/scry-decks/internal/domain"
	"github.com/phrazzld/scry-decks/internal/store"
)

// ProfileHandler reports the caller's usage balance.
type ProfileHandler struct {
	profiles store.ProfileStore
	logger   *slog.Logger
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(profiles store.ProfileStore, logger *slog.Logger) *ProfileHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileHandler{profiles: profiles, logger: logger.With("component", "profile_handler")}
}

// GetProfile handles GET /api/profile.
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	profile, err := h.profiles.GetProfile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrProfileNotFound) {
			shared.RespondWithError(w, r, http.StatusNotFound, "Profile not found",
				shared.WithKind(string(domain.KindProfileNotFound)))
			return
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to load profile", err,
			shared.WithKind(string(domain.KindProfileLookupFailed)))
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, ProfileResponse{
		TokenCount:         profile.TokenCount,
		SubscriptionStatus: string(profile.SubscriptionStatus),
	})
}
