package handler

import (
	"context"
	"net/http"
	"strconv"

	logger "github.com/sirupsen/logrus"

	"github.com/mrsteinmetz/follow-the-goat-sub005/src/model"
)

type candidateLister interface {
	ListRecent(ctx context.Context, limit int) ([]model.TradeCandidate, error)
}

type miningRunLister interface {
	ListRuns(ctx context.Context, limit int) ([]model.MiningRun, error)
}

type activeFilterReader interface {
	EnabledProjects(ctx context.Context) ([]model.FilterProject, error)
	GetCombination(ctx context.Context, id uint) (*model.FilterCombination, []model.FilterSuggestion, error)
}

// ListCandidatesHandler returns recent candidates with their decisions and
// outcomes, newest first. Supports a limit query parameter.
func ListCandidatesHandler(repo candidateLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, ok := limitParam(w, r)
		if !ok {
			return
		}

		candidates, err := repo.ListRecent(r.Context(), limit)
		if err != nil {
			logger.WithError(err).Error("failed to list candidates")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, candidates)
	}
}

// ListMiningRunsHandler returns recent mining runs, newest first.
func ListMiningRunsHandler(repo miningRunLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, ok := limitParam(w, r)
		if !ok {
			return
		}

		runs, err := repo.ListRuns(r.Context(), limit)
		if err != nil {
			logger.WithError(err).Error("failed to list mining runs")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, runs)
	}
}

type activeFilterView struct {
	Project     model.FilterProject      `json:"project"`
	Combination *model.FilterCombination `json:"combination,omitempty"`
	Filters     []model.FilterSuggestion `json:"filters,omitempty"`
}

// ActiveFiltersHandler returns every enabled project with its active
// combination resolved into member filters.
func ActiveFiltersHandler(repo activeFilterReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projects, err := repo.EnabledProjects(r.Context())
		if err != nil {
			logger.WithError(err).Error("failed to list filter projects")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		views := make([]activeFilterView, 0, len(projects))
		for _, project := range projects {
			view := activeFilterView{Project: project}
			if project.ActiveCombinationID != nil {
				combo, members, err := repo.GetCombination(r.Context(), *project.ActiveCombinationID)
				if err != nil {
					logger.WithError(err).Error("failed to load combination")
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
					return
				}
				view.Combination = combo
				view.Filters = members
			}
			views = append(views, view)
		}

		writeJSON(w, http.StatusOK, views)
	}
}

func limitParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return 0, false
		}
		limit = parsed
	}
	return limit, true
}
