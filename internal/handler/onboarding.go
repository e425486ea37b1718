package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/careercoach/internal/auth"
	"github.com/sakif/careercoach/internal/model"
	"github.com/sakif/careercoach/internal/service"
)

// StatusResolver answers "is the current visitor onboarded?".
// *service.OnboardingService implements it.
type StatusResolver interface {
	ResolveOnboardingStatus(ctx context.Context, subjectID string) (*service.OnboardingStatus, error)
}

// InsightReader returns the insight for the signed-in user's industry.
// *service.InsightService implements it.
type InsightReader interface {
	GetIndustryInsights(ctx context.Context, subjectID string) (*model.IndustryInsight, error)
}

// OnboardingHandler exposes the resolver and the dashboard built on it.
type OnboardingHandler struct {
	resolver StatusResolver
	insights InsightReader
	logger   *slog.Logger
}

func NewOnboardingHandler(resolver StatusResolver, insights InsightReader, logger *slog.Logger) *OnboardingHandler {
	return &OnboardingHandler{resolver: resolver, insights: insights, logger: logger}
}

// HandleStatus reports whether the visitor has completed onboarding.
//
// HTTP: GET /api/onboarding
// Auth: optional. Anonymous visitors get {"isOnboarded": false, "user": null}.
//
// The first call for a new session provisions (or links) the local user.
func (h *OnboardingHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	subjectID, _ := auth.SubjectFromContext(r.Context())

	status, err := h.resolver.ResolveOnboardingStatus(r.Context(), subjectID)
	if err != nil {
		h.logger.Warn("onboarding status failed",
			slog.String("subject", subjectID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// DashboardResponse is the body of GET /.
type DashboardResponse struct {
	IsOnboarded bool                   `json:"isOnboarded"`
	User        *model.User            `json:"user"`
	Insight     *model.IndustryInsight `json:"insight"`
}

// HandleDashboard renders the signed-in user's dashboard: onboarding status
// plus, once onboarded, the insight for their industry.
//
// HTTP: GET /
// Auth: optional. The response is page-cached per subject and dropped when
// the profile changes.
func (h *OnboardingHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	subjectID, _ := auth.SubjectFromContext(r.Context())

	status, err := h.resolver.ResolveOnboardingStatus(r.Context(), subjectID)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := DashboardResponse{IsOnboarded: status.IsOnboarded, User: status.User}
	if status.IsOnboarded {
		resp.Insight, err = h.insights.GetIndustryInsights(r.Context(), subjectID)
		if err != nil {
			h.logger.Error("dashboard insights failed",
				slog.String("subject", subjectID),
				slog.String("error", err.Error()),
			)
			writeError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleInsights returns the insight for the signed-in user's industry.
//
// HTTP: GET /api/insights
// Auth: required.
func (h *OnboardingHandler) HandleInsights(w http.ResponseWriter, r *http.Request) {
	subjectID, _ := auth.SubjectFromContext(r.Context())

	ins, err := h.insights.GetIndustryInsights(r.Context(), subjectID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ins)
}
