package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sakif/careercoach/internal/apperror"
	"github.com/sakif/careercoach/internal/auth"
	"github.com/sakif/careercoach/internal/model"
)

const maxProfileBody = 64 << 10

// ProfileUpdater applies the profile form. *service.ProfileService
// implements it.
type ProfileUpdater interface {
	UpdateProfile(ctx context.Context, subjectID string, update model.ProfileUpdate) (*model.User, error)
}

// ProfileHandler serves the profile form submission.
type ProfileHandler struct {
	updater ProfileUpdater
	logger  *slog.Logger
}

func NewProfileHandler(updater ProfileUpdater, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{updater: updater, logger: logger}
}

// HandleUpdate saves the signed-in user's profile.
//
// HTTP: PUT /api/profile
// Auth: required.
// REQUEST BODY: {"industry": "tech-software-development", "experience": 4, "bio": "...", "skills": ["Go"]}
//
// Responds with the updated user. Validation problems are 400 with the
// offending field; a failed transaction is 500 and nothing was saved.
func (h *ProfileHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	subjectID, _ := auth.SubjectFromContext(r.Context())

	var update model.ProfileUpdate
	r.Body = http.MaxBytesReader(w, r.Body, maxProfileBody)
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.logger.Warn("invalid profile JSON", slog.String("error", err.Error()))
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	user, err := h.updater.UpdateProfile(r.Context(), subjectID, update)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}
