package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/indiec/internal/server/models"
	"github.com/go-chi/chi/v5"
)

type eventRequest struct {
	EntityType string             `json:"entity_type" validate:"required,oneof=user artist album song sale contract"`
	EntityID   int64              `json:"entity_id" validate:"required,gt=0"`
	EventType  string             `json:"event_type" validate:"required,oneof=play download social sale view"`
	Metrics    map[string]float64 `json:"metrics"`
	SessionID  string             `json:"session_id" validate:"max=100"`
	Platform   string             `json:"platform" validate:"max=50"`
	Location   map[string]any     `json:"location"`
	Device     map[string]any     `json:"device"`
}

func (s *Server) recordEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ident, _ := identityFrom(ctx)

	var req eventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(s.logger, w, r, err)
		return
	}

	ev := models.AnalyticsEvent{
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
		EventType:  req.EventType,
		Metrics:    req.Metrics,
		UserID:     &ident.UserID,
		SessionID:  req.SessionID,
		Platform:   req.Platform,
		Location:   req.Location,
		Device:     req.Device,
	}
	if err := s.Analytics.RecordEvent(ctx, ev); err != nil {
		writeError(s.logger, w, r, err)
		return
	}
	writeCreated(w, "event recorded", nil)
}

// entityAnalytics reports aggregates for one entity. The window defaults to
// the last 30 days.
func (s *Server) entityAnalytics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "entityId")
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}

	from, to, err := queryRange(r)
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}
	end := time.Now().UTC()
	if to != nil {
		end = *to
	}
	start := end.AddDate(0, 0, -30)
	if from != nil {
		start = *from
	}

	res, err := s.Analytics.EntityAnalytics(ctx, chi.URLParam(r, "entityType"), id, start, end)
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}
	writeOK(w, res)
}
