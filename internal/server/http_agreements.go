package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/alfredjeanlab/agreements/internal/model"
)

const (
	defaultPageSize = 20
	maxPageSize     = 500
)

// pageLimit clamps a requested page size to maxPageSize. Zero selects the
// default, since the stores read a zero limit as "everything".
func pageLimit(n int) int {
	switch {
	case n <= 0:
		return defaultPageSize
	case n > maxPageSize:
		return maxPageSize
	default:
		return n
	}
}

// handleListAgreements handles GET /v1/agreements.
func (s *AgreementServer) handleListAgreements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.AgreementFilter{
		Search: q.Get("search"),
		Limit:  defaultPageSize,
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = pageLimit(n)
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		filter.Offset = n
	}

	agreements, total, err := s.store.ListAgreements(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list agreements")
		return
	}

	// Ensure agreements is never null in JSON output.
	if agreements == nil {
		agreements = []*model.Agreement{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"agreements": agreements,
		"total":      total,
	})
}

// handleGetAgreement handles GET /v1/agreements/{code}.
func (s *AgreementServer) handleGetAgreement(w http.ResponseWriter, r *http.Request) {
	a, err := s.store.GetAgreementByCode(r.Context(), r.PathValue("code"))
	if err != nil {
		if errorStatus(err) == http.StatusNotFound {
			writeError(w, http.StatusNotFound, "agreement not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get agreement")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// handleStats handles GET /v1/stats.
func (s *AgreementServer) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count agreements")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// stats counts agreements over the fixed windows.
func (s *AgreementServer) stats(ctx context.Context) (model.Stats, error) {
	today, week, month := model.StatsWindows(s.now())

	var stats model.Stats
	for _, c := range []struct {
		dst    *int
		filter model.AgreementFilter
	}{
		{&stats.Total, model.AgreementFilter{Limit: 1}},
		{&stats.Today, model.AgreementFilter{Since: &today, Limit: 1}},
		{&stats.Week, model.AgreementFilter{Since: &week, Limit: 1}},
		{&stats.Month, model.AgreementFilter{Since: &month, Limit: 1}},
	} {
		_, n, err := s.store.ListAgreements(ctx, c.filter)
		if err != nil {
			return model.Stats{}, fmt.Errorf("count agreements: %w", err)
		}
		*c.dst = n
	}
	return stats, nil
}
