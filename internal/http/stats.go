package httpserver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/Clark-Hu/watchstats/internal/domain"
	"github.com/Clark-Hu/watchstats/internal/metadata"
	"github.com/Clark-Hu/watchstats/internal/repository"
	"github.com/Clark-Hu/watchstats/internal/stats"
)

type errorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type overviewResponse struct {
	UserID          string                `json:"userId"`
	MediaType       domain.MediaType      `json:"mediaType"`
	Count           int                   `json:"count"`
	EpisodesWatched int                   `json:"episodesWatched"`
	DaysWatched     float64               `json:"daysWatched"`
	DaysPlanned     float64               `json:"daysPlanned"`
	MeanScore       float64               `json:"meanScore"`
	Score           []domain.Distribution `json:"score"`
	Status          []domain.Distribution `json:"status"`
	Country         []domain.Distribution `json:"country"`
	ReleaseYear     []domain.Distribution `json:"releaseYear"`
	WatchYear       []domain.Distribution `json:"watchYear"`
	UpdatedAt       time.Time             `json:"updatedAt"`
}

type rankedResponse struct {
	StatTypeID  string               `json:"statTypeId"`
	Rank        int                  `json:"rank"`
	Title       string               `json:"title"`
	ProfilePath string               `json:"profilePath,omitempty"`
	Count       int                  `json:"count"`
	MeanScore   float64              `json:"meanScore"`
	TimeWatched float64              `json:"timeWatched"`
	List        []domain.SampleTitle `json:"list"`
}

type rankedListResponse struct {
	Items      []rankedResponse `json:"items"`
	Total      int              `json:"total"`
	NextCursor *string          `json:"nextCursor,omitempty"`
}

type refreshResponse struct {
	Message  string          `json:"message"`
	Metadata metadata.Report `json:"metadata"`
}

func (s *Server) handleGetOverview(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	mediaType, err := domain.ParseMediaType(chi.URLParam(r, "mediaType"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	overview, err := s.repo.Stats.GetOverview(r.Context(), userID, mediaType)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
			return
		}
		s.logger.Printf("get overview error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch overview")
		return
	}
	s.respondJSON(w, http.StatusOK, toOverviewResponse(overview))
}

func (s *Server) handleListRanked(w http.ResponseWriter, r *http.Request) {
	filters, err := buildRankedFilters(chi.URLParam(r, "statKind"), chi.URLParam(r, "userID"), chi.URLParam(r, "mediaType"), r.URL.Query())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	result, err := s.repo.Stats.ListRanked(r.Context(), filters)
	if err != nil {
		s.logger.Printf("list ranked error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list stats")
		return
	}
	total, err := s.repo.Stats.CountRanked(r.Context(), filters.UserID, filters.MediaType, filters.Kind)
	if err != nil {
		s.logger.Printf("count ranked error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list stats")
		return
	}

	items := make([]rankedResponse, 0, len(result.Items))
	for _, item := range result.Items {
		items = append(items, toRankedResponse(item))
	}
	s.respondJSON(w, http.StatusOK, rankedListResponse{
		Items:      items,
		Total:      total,
		NextCursor: result.NextCursor,
	})
}

func buildRankedFilters(rawKind, rawUser, rawMediaType string, query url.Values) (repository.RankedListFilters, error) {
	var filters repository.RankedListFilters

	kind, err := domain.ParseStatKind(rawKind)
	if err != nil {
		return filters, err
	}
	filters.Kind = kind
	if filters.UserID, err = parseUserID(rawUser); err != nil {
		return filters, err
	}
	if filters.MediaType, err = domain.ParseMediaType(rawMediaType); err != nil {
		return filters, err
	}
	if val := strings.TrimSpace(query.Get("limit")); val != "" {
		limit, err := strconv.Atoi(val)
		if err != nil || limit < 1 {
			return filters, fmt.Errorf("invalid limit value")
		}
		filters.Limit = limit
	}
	if val := strings.TrimSpace(query.Get("cursor")); val != "" {
		cursor, err := repository.DecodeRankCursor(val)
		if err != nil {
			return filters, fmt.Errorf("invalid cursor")
		}
		filters.Cursor = cursor
	}
	return filters, nil
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if raw == "" {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
		return
	}
	userID, err := parseUserID(raw)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	wait, err := parseWait(r.URL.Query(), true)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	if !wait {
		s.goBackground("recompute "+userID, func(ctx context.Context) error {
			return s.engine.Recompute(ctx, userID)
		})
		s.respondJSON(w, http.StatusAccepted, messageResponse{Message: "Accepted"})
		return
	}

	ctx, cancel := s.syncContext(r)
	defer cancel()
	if err := s.engine.Recompute(ctx, userID); err != nil {
		s.respondRecomputeError(w, userID, err)
		return
	}
	s.respondJSON(w, http.StatusOK, messageResponse{Message: "Updated"})
}

func (s *Server) handleUpdateAll(w http.ResponseWriter, r *http.Request) {
	if !s.verifyBearer(r.Header.Get("Authorization")) {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
		return
	}
	wait, err := parseWait(r.URL.Query(), false)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	if !wait {
		s.goBackground("recompute-all", func(ctx context.Context) error {
			_, err := s.engine.RecomputeAll(ctx)
			return err
		})
		s.respondJSON(w, http.StatusAccepted, messageResponse{Message: "Accepted"})
		return
	}

	ctx, cancel := s.syncContext(r)
	defer cancel()
	report, err := s.engine.RecomputeAll(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		s.logger.Printf("recompute all did not finish within the write timeout: %v", err)
		s.respondTimeout(w)
		return
	}
	if err != nil {
		s.logger.Printf("recompute all error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update stats")
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleRefreshMetadata(w http.ResponseWriter, r *http.Request) {
	if !s.verifyBearer(r.Header.Get("Authorization")) {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
		return
	}
	userID, err := parseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	if s.refresher == nil {
		s.respondError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Metadata refresh is not configured")
		return
	}

	ctx, cancel := s.syncContext(r)
	defer cancel()
	report, err := s.refresher.Refresh(ctx, userID)
	if err != nil {
		s.respondRecomputeError(w, userID, err)
		return
	}
	if err := s.engine.Recompute(ctx, userID); err != nil {
		s.respondRecomputeError(w, userID, err)
		return
	}
	s.respondJSON(w, http.StatusOK, refreshResponse{Message: "Updated", Metadata: report})
}

// syncContext bounds work done while the client waits, leaving a tenth of the
// write timeout to send the response before the server drops the connection.
func (s *Server) syncContext(r *http.Request) (context.Context, context.CancelFunc) {
	budget := time.Duration(s.cfg.WriteTimeoutSecs) * time.Second
	if budget <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), budget-budget/10)
}

func (s *Server) respondTimeout(w http.ResponseWriter) {
	s.respondError(w, http.StatusGatewayTimeout, "TIMEOUT", "Update did not finish in time; retry with wait=false")
}

func (s *Server) respondRecomputeError(w http.ResponseWriter, userID string, err error) {
	if errors.Is(err, domain.ErrUserNotFound) {
		s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
		return
	}
	if errors.Is(err, context.DeadlineExceeded) {
		s.logger.Printf("recompute user %s did not finish within the write timeout: %v", userID, err)
		s.respondTimeout(w)
		return
	}
	var persistErr *stats.PersistError
	if errors.As(err, &persistErr) {
		s.logger.Printf("persist stats for user %s: %v", userID, persistErr.Err)
	} else {
		s.logger.Printf("recompute user %s error: %v", userID, err)
	}
	s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update stats")
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			s.logger.Printf("failed to encode response: %v", err)
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, code, message string) {
	s.respondJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

func toOverviewResponse(o domain.OverviewStat) overviewResponse {
	return overviewResponse{
		UserID:          o.UserID,
		MediaType:       o.MediaType,
		Count:           o.Count,
		EpisodesWatched: o.EpisodesWatched,
		DaysWatched:     roundTo(o.DaysWatched, 2),
		DaysPlanned:     roundTo(o.DaysPlanned, 2),
		MeanScore:       roundTo(o.MeanScore, 1),
		Score:           roundDistribution(o.ScoreDist),
		Status:          roundDistribution(o.StatusDist),
		Country:         roundDistribution(o.CountryDist),
		ReleaseYear:     roundDistribution(o.ReleaseYear),
		WatchYear:       roundDistribution(o.WatchYear),
		UpdatedAt:       o.UpdatedAt,
	}
}

func toRankedResponse(o domain.OtherStat) rankedResponse {
	list := o.List
	if list == nil {
		list = []domain.SampleTitle{}
	}
	return rankedResponse{
		StatTypeID:  o.EntityID,
		Rank:        o.Rank,
		Title:       o.Title,
		ProfilePath: o.ProfilePath,
		Count:       o.Count,
		MeanScore:   roundTo(o.MeanScore, 1),
		TimeWatched: roundTo(o.TimeWatched, 2),
		List:        list,
	}
}

func roundDistribution(in []domain.Distribution) []domain.Distribution {
	out := make([]domain.Distribution, 0, len(in))
	for _, d := range in {
		d.HoursWatched = roundTo(d.HoursWatched, 2)
		d.MeanScore = roundTo(d.MeanScore, 1)
		out = append(out, d)
	}
	return out
}

func parseUserID(raw string) (string, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid user id")
	}
	return id.String(), nil
}

func parseWait(query url.Values, fallback bool) (bool, error) {
	val := strings.TrimSpace(query.Get("wait"))
	if val == "" {
		return fallback, nil
	}
	wait, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("invalid wait value")
	}
	return wait, nil
}

func (s *Server) verifyBearer(header string) bool {
	if header == "" {
		return false
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return token != "" && token == s.cfg.AuthToken
}

func roundTo(value float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(value*scale) / scale
}
