package services

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/indiec/internal/common"
	"github.com/dmitrijs2005/indiec/internal/logging"
	"github.com/dmitrijs2005/indiec/internal/server/documents"
	"github.com/dmitrijs2005/indiec/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyticsService_RecordEvent_Validation(t *testing.T) {
	s := NewAnalyticsService(documents.NewMemoryStore(), logging.Nop())
	ctx := context.Background()

	tests := []models.AnalyticsEvent{
		{EntityType: "planet", EntityID: 1, EventType: models.EventPlay},
		{EntityType: "song", EntityID: 0, EventType: models.EventPlay},
		{EntityType: "song", EntityID: 1, EventType: "teleport"},
		{EntityType: "song", EntityID: 1, EventType: models.EventPlay, Metrics: map[string]float64{"a.b": 1}},
	}
	for _, ev := range tests {
		assert.ErrorIs(t, s.RecordEvent(ctx, ev), common.ErrorValidation)
	}
}

func TestAnalyticsService_Aggregates(t *testing.T) {
	store := documents.NewMemoryStore()
	s := NewAnalyticsService(store, logging.Nop())
	ctx := context.Background()
	u1, u2 := int64(1), int64(2)

	require.NoError(t, s.RecordEvent(ctx, models.AnalyticsEvent{EntityType: "album", EntityID: 3, EventType: models.EventView, UserID: &u1}))
	require.NoError(t, s.RecordEvent(ctx, models.AnalyticsEvent{EntityType: "album", EntityID: 3, EventType: models.EventSale, UserID: &u2,
		Metrics: map[string]float64{"total": 20}}))
	require.NoError(t, s.RecordEvent(ctx, models.AnalyticsEvent{EntityType: "album", EntityID: 3, EventType: models.EventSale, UserID: &u2,
		Metrics: map[string]float64{"total": 5.5}}))
	require.NoError(t, s.RecordEvent(ctx, models.AnalyticsEvent{EntityType: "album", EntityID: 4, EventType: models.EventView}))

	now := time.Now().UTC()
	agg, err := s.EntityAnalytics(ctx, "album", 3, now.Add(-time.Minute), now.Add(time.Minute))
	require.NoError(t, err)

	assert.Equal(t, int64(3), agg.Events)
	assert.Equal(t, int64(2), agg.ByEventType[models.EventSale])
	assert.Equal(t, 25.5, agg.Totals["total"])
	assert.Equal(t, 2, agg.UniqueUsers)
	require.NotNil(t, agg.Realtime)
	assert.Equal(t, now.Format(dayLayout), agg.Realtime["day"])

	_, err = s.EntityAnalytics(ctx, "album", 3, now, now.Add(-time.Minute))
	assert.ErrorIs(t, err, common.ErrorValidation)
}
