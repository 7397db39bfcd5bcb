package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/clanhub/achievement-engine/internal/application/command"
	"github.com/clanhub/achievement-engine/internal/application/query"
	"github.com/clanhub/achievement-engine/internal/domain/shared"
	"github.com/clanhub/achievement-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":    "Achievement Engine API",
		"version": "v1",
		"endpoints": map[string]string{
			"health":      "/health",
			"events":      "/api/v1/events",
			"leaderboard": "/api/v1/groups/{group_id}/leaderboard",
			"profile":     "/api/v1/groups/{group_id}/users/{user_id}/profile",
		},
	}

	writeJSON(w, http.StatusOK, info)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	// Default health response
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": "v1",
	})
}

// handleReady handles the readiness probe endpoint (for Kubernetes).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// handleMetrics exposes basic runtime counters as JSON.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics := map[string]interface{}{
		"uptime_seconds": s.Uptime().Seconds(),
		"running":        s.IsRunning(),
	}

	if s.deps.StatsSource != nil {
		dropped, rejected := s.deps.StatsSource.Stats()
		metrics["queue"] = map[string]interface{}{
			"depth":      s.deps.StatsSource.Len(),
			"dedup_size": s.deps.StatsSource.DedupSize(),
			"dropped":    dropped,
			"rejected":   rejected,
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENT INGESTION
// ══════════════════════════════════════════════════════════════════════════════

// trackEventRequest is the wire form of POST /api/v1/events.
type trackEventRequest struct {
	UserID  int64                  `json:"user_id"`
	GroupID int64                  `json:"group_id"`
	Type    string                 `json:"type"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// handleTrackEvent handles POST /api/v1/events
func (s *Server) handleTrackEvent(w http.ResponseWriter, r *http.Request) {
	if s.deps.TrackEventHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Event ingestion not configured")
		return
	}

	var req trackEventRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	cmd := command.TrackEventCommand{
		UserID:  shared.UserID(req.UserID),
		GroupID: shared.GroupID(req.GroupID),
		Type:    shared.EventType(req.Type),
		Data:    req.Data,
	}

	result, err := s.deps.TrackEventHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to track event")
		return
	}

	writeJSON(w, http.StatusAccepted, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// CLAIM REWARDS
// ══════════════════════════════════════════════════════════════════════════════

// claimRewardsRequest is the wire form of the claim endpoint body.
type claimRewardsRequest struct {
	UserID  int64 `json:"user_id"`
	GroupID int64 `json:"group_id"`
}

// handleClaimRewards handles POST /api/v1/achievements/{id}/claim
func (s *Server) handleClaimRewards(w http.ResponseWriter, r *http.Request) {
	if s.deps.ClaimRewardsHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Claiming not configured")
		return
	}

	achievementID := r.PathValue("id")
	if achievementID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Achievement ID is required")
		return
	}

	var req claimRewardsRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	cmd := command.ClaimRewardsCommand{
		UserID:        shared.UserID(req.UserID),
		GroupID:       shared.GroupID(req.GroupID),
		AchievementID: achievementID,
	}

	result, err := s.deps.ClaimRewardsHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to claim rewards")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetProgress handles GET /api/v1/groups/{group_id}/users/{user_id}/achievements/{id}
func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetProgressHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Progress queries not configured")
		return
	}

	userID, groupID, ok := s.pathKey(w, r)
	if !ok {
		return
	}

	q := query.GetProgressQuery{
		UserID:        userID,
		GroupID:       groupID,
		AchievementID: r.PathValue("id"),
	}

	result, err := s.deps.GetProgressHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to get progress")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetAllProgress handles GET /api/v1/groups/{group_id}/users/{user_id}/achievements
func (s *Server) handleGetAllProgress(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetAllProgressHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Progress queries not configured")
		return
	}

	userID, groupID, ok := s.pathKey(w, r)
	if !ok {
		return
	}

	q := query.GetAllProgressQuery{
		UserID:        userID,
		GroupID:       groupID,
		Category:      getQueryParam(r, "category", ""),
		IncludeHidden: getQueryParamBool(r, "include_hidden"),
	}

	result, err := s.deps.GetAllProgressHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to get progress list")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE & SUMMARY HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetProfile handles GET /api/v1/groups/{group_id}/users/{user_id}/profile
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetProfileHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Profile queries not configured")
		return
	}

	userID, groupID, ok := s.pathKey(w, r)
	if !ok {
		return
	}

	q := query.GetProfileQuery{
		UserID:       userID,
		GroupID:      groupID,
		HistoryLimit: getQueryParamInt(r, "history", 0),
	}

	result, err := s.deps.GetProfileHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to get profile")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetSummary handles GET /api/v1/groups/{group_id}/users/{user_id}/summary
func (s *Server) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetSummaryHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Summary queries not configured")
		return
	}

	userID, groupID, ok := s.pathKey(w, r)
	if !ok {
		return
	}

	q := query.GetSummaryQuery{
		UserID:  userID,
		GroupID: groupID,
	}

	result, err := s.deps.GetSummaryHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to get summary")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// handleGetLeaderboard handles GET /api/v1/groups/{group_id}/leaderboard
func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetLeaderboardHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Leaderboard queries not configured")
		return
	}

	groupID, ok := s.pathGroupID(w, r)
	if !ok {
		return
	}

	q := query.GetLeaderboardQuery{
		GroupID:   groupID,
		Metric:    getQueryParam(r, "metric", ""),
		Limit:     getQueryParamInt(r, "limit", 0),
		ForUserID: shared.UserID(int64(getQueryParamInt(r, "for_user", 0))),
	}

	result, err := s.deps.GetLeaderboardHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to get leaderboard")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// syncStatsRequest is the wire form of the stats sync endpoint body.
type syncStatsRequest struct {
	Stats map[string]interface{} `json:"stats"`
}

// handleSyncStats handles POST /api/v1/groups/{group_id}/users/{user_id}/stats
// Game-data sync services push statistics snapshots here; the snapshot flows
// through the queue as a player_stats_updated event.
func (s *Server) handleSyncStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.SyncUserStatsHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Stats sync not configured")
		return
	}

	userID, groupID, ok := s.pathKey(w, r)
	if !ok {
		return
	}

	var req syncStatsRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	cmd := command.SyncUserStatsCommand{
		UserID:  userID,
		GroupID: groupID,
		Stats:   req.Stats,
	}

	result, err := s.deps.SyncUserStatsHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to sync stats")
		return
	}

	writeJSON(w, http.StatusAccepted, result)
}

// handleRecheck handles POST /api/v1/groups/{group_id}/users/{user_id}/recheck
func (s *Server) handleRecheck(w http.ResponseWriter, r *http.Request) {
	if s.deps.RecheckAchievementsHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Recheck not configured")
		return
	}

	userID, groupID, ok := s.pathKey(w, r)
	if !ok {
		return
	}

	cmd := command.RecheckAchievementsCommand{
		UserID:  userID,
		GroupID: groupID,
	}

	result, err := s.deps.RecheckAchievementsHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to recheck achievements")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// decodeBody decodes a JSON request body, writing a 400 on failure.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1MB limit
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Failed to read request body")
		return false
	}
	defer r.Body.Close()

	if err := json.Unmarshal(body, dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return false
	}
	return true
}

// pathKey parses the {user_id} and {group_id} path values.
func (s *Server) pathKey(w http.ResponseWriter, r *http.Request) (shared.UserID, shared.GroupID, bool) {
	groupID, ok := s.pathGroupID(w, r)
	if !ok {
		return 0, 0, false
	}

	userID, err := strconv.ParseInt(r.PathValue("user_id"), 10, 64)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "user_id must be an integer")
		return 0, 0, false
	}

	return shared.UserID(userID), groupID, true
}

// pathGroupID parses the {group_id} path value. Group IDs are negative for
// chat groups, so plain ParseInt handles the leading minus.
func (s *Server) pathGroupID(w http.ResponseWriter, r *http.Request) (shared.GroupID, bool) {
	groupID, err := strconv.ParseInt(r.PathValue("group_id"), 10, 64)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "group_id must be an integer")
		return 0, false
	}
	return shared.GroupID(groupID), true
}

// writeDomainError maps a domain error onto an HTTP status and logs it.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error, message string) {
	switch {
	case shared.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
	case shared.IsValidation(err):
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, shared.ErrAlreadyProcessed):
		writeJSONError(w, http.StatusConflict, "already_claimed", err.Error())
	case errors.Is(err, shared.ErrInvalidState):
		writeJSONError(w, http.StatusConflict, "invalid_state", err.Error())
	case errors.Is(err, shared.ErrQueueFull):
		w.Header().Set("Retry-After", "1")
		writeJSONError(w, http.StatusServiceUnavailable, "queue_full", "Event queue is at capacity, retry later")
	default:
		s.logger.Error(message, logger.Err(err), logger.String("request_id", getRequestID(r.Context())))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", message)
	}
}
