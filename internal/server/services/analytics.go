package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/dmitrijs2005/indiec/internal/common"
	"github.com/dmitrijs2005/indiec/internal/logging"
	"github.com/dmitrijs2005/indiec/internal/server/documents"
	"github.com/dmitrijs2005/indiec/internal/server/models"
)

const dayLayout = "2006-01-02"

var (
	eventTypes  = mapset.NewSet(models.EventPlay, models.EventDownload, models.EventSocial, models.EventSale, models.EventView)
	entityTypes = mapset.NewSet("user", "artist", "album", "song", "sale", "contract")
)

// AnalyticsService appends metric events and keeps per-day realtime
// counters for each entity.
type AnalyticsService struct {
	store  documents.Store
	logger logging.Logger
	now    func() time.Time
}

func NewAnalyticsService(store documents.Store, logger logging.Logger) *AnalyticsService {
	return &AnalyticsService{
		store:  store,
		logger: logger.With("module", "analytics"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func validateEvent(ev models.AnalyticsEvent) error {
	var errs []common.FieldError
	if !entityTypes.Contains(ev.EntityType) {
		errs = append(errs, common.FieldError{Field: "entity_type", Message: "is not supported"})
	}
	if ev.EntityID <= 0 {
		errs = append(errs, common.FieldError{Field: "entity_id", Message: "must be positive"})
	}
	if !eventTypes.Contains(ev.EventType) {
		errs = append(errs, common.FieldError{Field: "event_type", Message: "is not supported"})
	}
	for k := range ev.Metrics {
		if k == "" || strings.ContainsAny(k, ".$") {
			errs = append(errs, common.FieldError{Field: "metrics", Message: fmt.Sprintf("invalid metric name %q", k)})
		}
	}
	if len(errs) > 0 {
		return common.NewValidationError(errs...)
	}
	return nil
}

// RecordEvent appends ev to the analytics collection and folds it into the
// entity's realtime counters for the current day.
func (s *AnalyticsService) RecordEvent(ctx context.Context, ev models.AnalyticsEvent) error {
	if err := validateEvent(ev); err != nil {
		return err
	}
	ev.CreatedAt = nil

	doc, err := documents.ToFields(ev)
	if err != nil {
		return err
	}
	if err := s.store.Append(ctx, documents.Analytics, doc); err != nil {
		return err
	}

	counters := map[string]float64{
		"events":                  1,
		"by_type." + ev.EventType: 1,
	}
	for k, v := range ev.Metrics {
		counters["totals."+k] += v
	}
	key := documents.Fields{
		"entity_type": ev.EntityType,
		"entity_id":   ev.EntityID,
		"day":         s.now().Format(dayLayout),
	}
	if err := s.store.IncrementCounters(ctx, documents.RealtimeStats, key, counters); err != nil {
		s.logger.Warn(ctx, "failed to update realtime stats", "entity_type", ev.EntityType, "entity_id", ev.EntityID, "error", err)
	}
	return nil
}

// EntityAnalytics aggregates the events of one entity in [from, to).
func (s *AnalyticsService) EntityAnalytics(ctx context.Context, entityType string, entityID int64, from, to time.Time) (*models.EntityAnalytics, error) {
	if !entityTypes.Contains(entityType) {
		return nil, common.NewValidationError(common.FieldError{Field: "entity_type", Message: "is not supported"})
	}
	if !from.Before(to) {
		return nil, common.NewValidationError(common.FieldError{Field: "from", Message: "must be before to"})
	}

	events, total, err := s.store.Find(ctx, documents.Analytics, documents.Query{
		Equals: documents.Fields{"entity_type": entityType, "entity_id": entityID},
		From:   &from,
		To:     &to,
	})
	if err != nil {
		return nil, err
	}

	out := &models.EntityAnalytics{
		EntityType:  entityType,
		EntityID:    entityID,
		From:        from,
		To:          to,
		Events:      total,
		ByEventType: map[string]int64{},
		Totals:      map[string]float64{},
	}
	users := mapset.NewThreadUnsafeSet[int64]()
	for _, d := range events {
		var ev models.AnalyticsEvent
		if err := documents.FromFields(d, &ev); err != nil {
			s.logger.Warn(ctx, "skipping malformed analytics event", "id", d[documents.FieldID], "error", err)
			continue
		}
		out.ByEventType[ev.EventType]++
		for k, v := range ev.Metrics {
			out.Totals[k] += v
		}
		if ev.UserID != nil {
			users.Add(*ev.UserID)
		}
	}
	out.UniqueUsers = users.Cardinality()

	today, _, err := s.store.Find(ctx, documents.RealtimeStats, documents.Query{
		Equals: documents.Fields{"entity_type": entityType, "entity_id": entityID, "day": s.now().Format(dayLayout)},
		Limit:  1,
	})
	if err != nil {
		return nil, err
	}
	if len(today) > 0 {
		out.Realtime = today[0]
	}
	return out, nil
}
