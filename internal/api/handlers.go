// Shoprank - Marketplace Recommendation and User Behavior Modeling
// Copyright 2026 David Kim (dkim815)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dkim815/shoprank

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/dkim815/shoprank/internal/catalog"
	"github.com/dkim815/shoprank/internal/eventlog"
	"github.com/dkim815/shoprank/internal/feedbackbus"
	"github.com/dkim815/shoprank/internal/logging"
	"github.com/dkim815/shoprank/internal/recommend"
)

// validate is the shared request validator.
var validate = validator.New()

// Handler serves the Shoprank API endpoints.
type Handler struct {
	engine    *recommend.Engine
	bus       *feedbackbus.Bus
	events    *eventlog.Store
	catalog   *catalog.Store
	startedAt time.Time
}

// NewHandler creates the API handler.
func NewHandler(engine *recommend.Engine, bus *feedbackbus.Bus, events *eventlog.Store, cat *catalog.Store) *Handler {
	return &Handler{
		engine:    engine,
		bus:       bus,
		events:    events,
		catalog:   cat,
		startedAt: time.Now(),
	}
}

// GetRecommendations handles GET /api/v1/recommendations.
// Query parameters: user_id (required), k, category, last_category.
func (h *Handler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		rw.BadRequest("user_id is required")
		return
	}

	k := 0
	if kStr := r.URL.Query().Get("k"); kStr != "" {
		parsed, err := strconv.Atoi(kStr)
		if err != nil || parsed < 1 {
			rw.BadRequest("k must be a positive integer")
			return
		}
		k = parsed
	}

	req := recommend.Request{
		UserID:    userID,
		K:         k,
		Category:  r.URL.Query().Get("category"),
		RequestID: requestID(r),
	}
	if last := r.URL.Query().Get("last_category"); last != "" {
		now := time.Now()
		req.Context = &recommend.RequestContext{
			TimeOfDay:    now.Hour(),
			DayOfWeek:    int(now.Weekday()),
			LastCategory: last,
		}
	}

	resp, err := h.engine.Recommend(r.Context(), req)
	if err != nil {
		logging.Error().Err(err).Str("user_id", userID).Msg("Recommendation failed")
		rw.InternalError("Failed to generate recommendations")
		return
	}

	rw.Success(resp)
}

// FeedbackRequest is the wire format for POST /api/v1/feedback.
type FeedbackRequest struct {
	// EventID is optional; the bus assigns one when missing.
	EventID string `json:"event_id"`

	// Kind is impression, click, or purchase.
	Kind string `json:"kind" validate:"required,oneof=impression click purchase"`

	// UserID is the acting user.
	UserID string `json:"user_id" validate:"required,max=128"`

	// ProductID is the product the event refers to.
	ProductID string `json:"product_id" validate:"required,max=128"`

	// Category is the product's category identifier.
	Category string `json:"category" validate:"max=128"`

	// Price is the product price in minor currency units.
	Price float64 `json:"price" validate:"gte=0"`

	// Timestamp defaults to now when omitted.
	Timestamp time.Time `json:"timestamp"`
}

// PostFeedback handles POST /api/v1/feedback.
// The event is validated, published to the feedback bus, and processed
// asynchronously; the response is 202 Accepted.
func (h *Handler) PostFeedback(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var body FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		rw.BadRequest("Invalid JSON body")
		return
	}

	if err := validate.Struct(body); err != nil {
		rw.ValidationError("Invalid feedback event", validationDetails(err))
		return
	}

	kind, err := recommend.ParseEventKind(body.Kind)
	if err != nil {
		rw.BadRequest("Unknown event kind: " + body.Kind)
		return
	}

	ev := recommend.Event{
		ID:        body.EventID,
		Kind:      kind,
		UserID:    body.UserID,
		ProductID: body.ProductID,
		Category:  body.Category,
		Price:     body.Price,
		Timestamp: body.Timestamp,
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	if err := h.bus.Publish(r.Context(), ev); err != nil {
		logging.Error().Err(err).Str("user_id", ev.UserID).Msg("Feedback publish failed")
		rw.ServiceUnavailable("Feedback pipeline unavailable")
		return
	}

	rw.Accepted(map[string]string{
		"event_id": ev.ID,
		"status":   "queued",
	})
}

// GetUserCluster handles GET /api/v1/users/{userID}/cluster.
func (h *Handler) GetUserCluster(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	userID := chi.URLParam(r, "userID")
	if userID == "" {
		rw.BadRequest("userID is required")
		return
	}

	asg, err := h.engine.AssignmentFor(r.Context(), userID)
	if err != nil {
		logging.Error().Err(err).Str("user_id", userID).Msg("Cluster lookup failed")
		rw.InternalError("Failed to resolve cluster assignment")
		return
	}

	rw.Success(map[string]interface{}{
		"user_id":    asg.UserID,
		"cluster":    asg.Cluster.String(),
		"confidence": asg.Confidence,
		"features":   asg.Features,
		"updated_at": asg.UpdatedAt,
	})
}

// GetUserEvents handles GET /api/v1/users/{userID}/events.
// Returns the most recent feedback events for a user, newest first.
func (h *Handler) GetUserEvents(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	userID := chi.URLParam(r, "userID")
	if userID == "" {
		rw.BadRequest("userID is required")
		return
	}

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 || parsed > 500 {
			rw.BadRequest("limit must be between 1 and 500")
			return
		}
		limit = parsed
	}

	events, err := h.events.RecentByUser(r.Context(), userID, limit)
	if err != nil {
		logging.Error().Err(err).Str("user_id", userID).Msg("Event lookup failed")
		rw.InternalError("Failed to load user events")
		return
	}
	if events == nil {
		events = []recommend.Event{}
	}

	rw.Success(map[string]interface{}{
		"user_id": userID,
		"events":  events,
		"count":   len(events),
	})
}

// GetDailyStats handles GET /api/v1/stats/daily.
// Query parameter date (YYYY-MM-DD) defaults to today.
func (h *Handler) GetDailyStats(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", date); err != nil {
		rw.BadRequest("date must be YYYY-MM-DD")
		return
	}

	stats, err := h.events.Daily(r.Context(), date)
	if err != nil {
		logging.Error().Err(err).Str("date", date).Msg("Daily stats lookup failed")
		rw.InternalError("Failed to load daily stats")
		return
	}

	rw.Success(stats)
}

// GetModelStatus handles GET /api/v1/model/status.
// Returns the cluster model version and learner dedup counters.
func (h *Handler) GetModelStatus(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	hits, misses, size := h.engine.DedupStats()

	rw.Success(map[string]interface{}{
		"model_version": h.engine.ClusterModel().Version(),
		"users":         h.engine.Assignments().Len(),
		"dedup": map[string]interface{}{
			"hits":   hits,
			"misses": misses,
			"size":   size,
		},
	})
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	rw.Success(map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	})
}

// requestID returns the inbound request ID header, if any.
func requestID(r *http.Request) string {
	return r.Header.Get("X-Request-ID")
}

// validationDetails flattens validator errors into field/tag pairs.
func validationDetails(err error) interface{} {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	details := make([]map[string]string, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, map[string]string{
			"field": fe.Field(),
			"tag":   fe.Tag(),
		})
	}
	return details
}
