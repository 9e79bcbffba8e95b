package services

import (
	"context"

	"github.com/dmitrijs2005/indiec/internal/dbx"
	"github.com/dmitrijs2005/indiec/internal/logging"
	"github.com/dmitrijs2005/indiec/internal/server/documents"
	"github.com/dmitrijs2005/indiec/internal/server/hybrid"
	"github.com/dmitrijs2005/indiec/internal/server/models"
)

// SongView is a song row joined with its content document.
type SongView struct {
	*models.Song
	Content *models.SongContent `json:"content,omitempty"`
}

// PlayInput describes one play or download of a song.
type PlayInput struct {
	UserID    *int64
	SessionID string
	Platform  string
	Download  bool
	Seconds   float64
}

type SongService struct {
	Deps
	contents  documents.Collection[models.SongContent]
	analytics *AnalyticsService
	logger    logging.Logger
}

func NewSongService(d Deps, analytics *AnalyticsService) *SongService {
	return &SongService{
		Deps:      d,
		contents:  documents.NewCollection[models.SongContent](d.Docs, documents.SongsContent),
		analytics: analytics,
		logger:    d.Logger.With("module", "songs"),
	}
}

func (s *SongService) Create(ctx context.Context, song *models.Song, content *models.SongContent) (*SongView, error) {
	if content == nil {
		content = &models.SongContent{}
	}
	if content.Stats == nil {
		var zero int64
		content.Stats = &models.PlayStats{Plays: &zero, Downloads: &zero, Likes: &zero}
	}

	plan := hybrid.NewPlan().
		Relational("song", func(ctx context.Context, tx dbx.DBTX, _ hybrid.Results) (any, error) {
			return s.Repos.Songs(tx).Create(ctx, song)
		}).
		Compensate("song", func(ctx context.Context, tx dbx.DBTX, rel hybrid.Results) error {
			created, _ := hybrid.Get[*models.Song](rel, "song")
			_, err := s.Repos.Songs(tx).Delete(ctx, created.ID)
			return err
		}).
		Document("content", func(ctx context.Context, rel hybrid.Results) (any, error) {
			created, _ := hybrid.Get[*models.Song](rel, "song")
			return s.contents.Upsert(ctx, created.ID, content)
		})

	res, err := s.Hybrid.Execute(ctx, plan)
	if err != nil {
		return nil, err
	}
	created, _ := hybrid.Get[*models.Song](res.Relational, "song")
	stored, _ := hybrid.Get[*models.SongContent](res.Document, "content")
	return &SongView{Song: created, Content: stored}, nil
}

func (s *SongService) Get(ctx context.Context, id int64) (*SongView, error) {
	song, err := s.Repos.Songs(s.DB).FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	content, err := s.contents.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &SongView{Song: song, Content: content}, nil
}

func (s *SongService) Update(ctx context.Context, id int64, patch models.SongPatch, content *models.SongContent) (*SongView, error) {
	plan := hybrid.NewPlan().
		Relational("song", func(ctx context.Context, tx dbx.DBTX, _ hybrid.Results) (any, error) {
			return s.Repos.Songs(tx).Update(ctx, id, patch)
		}).
		Document("content", func(ctx context.Context, _ hybrid.Results) (any, error) {
			if content == nil {
				return s.contents.Get(ctx, id)
			}
			return s.contents.Upsert(ctx, id, content)
		})

	res, err := s.Hybrid.Execute(ctx, plan)
	if err != nil {
		return nil, err
	}
	song, _ := hybrid.Get[*models.Song](res.Relational, "song")
	stored, _ := hybrid.Get[*models.SongContent](res.Document, "content")
	return &SongView{Song: song, Content: stored}, nil
}

func (s *SongService) Delete(ctx context.Context, id int64) error {
	plan := hybrid.NewPlan().
		Relational("song", deleteOp(id, func(tx dbx.DBTX) deleter { return s.Repos.Songs(tx) })).
		Document("content", func(ctx context.Context, _ hybrid.Results) (any, error) {
			return s.contents.Delete(ctx, id)
		})
	_, err := s.Hybrid.Execute(ctx, plan)
	return bestEffort(ctx, s.logger, err, "song_id", id)
}

func (s *SongService) List(ctx context.Context, filter models.SongFilter, page models.PageRequest) ([]models.Song, int64, error) {
	return s.Repos.Songs(s.DB).FindMany(ctx, filter, page)
}

// RecordPlay bumps the play (or download) counter on the content document
// and appends an analytics event. Only the document store is written.
func (s *SongService) RecordPlay(ctx context.Context, id int64, in PlayInput) (*models.SongContent, error) {
	if _, err := s.Repos.Songs(s.DB).FindByID(ctx, id); err != nil {
		return nil, err
	}

	counter, event := "stats.plays", models.EventPlay
	if in.Download {
		counter, event = "stats.downloads", models.EventDownload
	}

	key := documents.Fields{"song_id": id}
	if err := s.Docs.IncrementCounters(ctx, documents.SongsContent, key, map[string]float64{counter: 1}); err != nil {
		return nil, err
	}

	metrics := map[string]float64{"count": 1}
	if in.Seconds > 0 {
		metrics["seconds"] = in.Seconds
	}
	if err := s.analytics.RecordEvent(ctx, models.AnalyticsEvent{
		EntityType: "song",
		EntityID:   id,
		EventType:  event,
		Metrics:    metrics,
		UserID:     in.UserID,
		SessionID:  in.SessionID,
		Platform:   in.Platform,
	}); err != nil {
		s.logger.Warn(ctx, "failed to record play event", "song_id", id, "error", err)
	}

	return s.contents.Get(ctx, id)
}
