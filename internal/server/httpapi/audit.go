package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/indiec/internal/common"
	"github.com/dmitrijs2005/indiec/internal/server/models"
	"github.com/go-chi/chi/v5"
)

func (s *Server) listCatalog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "name")

	switch name {
	case models.CatalogStates, models.CatalogRoles, models.CatalogSexes, models.CatalogCountries, models.CatalogGenres:
	default:
		writeFailure(w, http.StatusNotFound, "unknown catalog")
		return
	}

	items, err := s.Catalogs.List(ctx, name)
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}
	if items == nil {
		items = []models.CatalogItem{}
	}
	writeOK(w, items)
}

// ownAuditLog lists the caller's own security events.
func (s *Server) ownAuditLog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ident, _ := identityFrom(ctx)

	from, to, err := queryRange(r)
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}

	filter := models.AuditFilter{
		UserID:    &ident.UserID,
		Action:    models.AuditAction(r.URL.Query().Get("action")),
		RiskLevel: models.RiskLevel(r.URL.Query().Get("risk_level")),
		From:      from,
		To:        to,
	}

	page := pageRequest(r)
	entries, total, err := s.Audit.List(ctx, filter, page)
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}
	writePage(w, entries, page, total)
}

// auditMetrics summarises security events for administrators. The window
// defaults to the last 24 hours.
func (s *Server) auditMetrics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.requireAdmin(ctx); err != nil {
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
	start := end.Add(-24 * time.Hour)
	if from != nil {
		start = *from
	}
	if !start.Before(end) {
		writeError(s.logger, w, r, common.NewValidationError(common.FieldError{Field: "from", Message: "must be before to"}))
		return
	}

	m, err := s.Audit.Metrics(ctx, start, end)
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}
	writeOK(w, m)
}
