package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/indiec/internal/dbx"
	"github.com/dmitrijs2005/indiec/internal/logging"
	"github.com/dmitrijs2005/indiec/internal/server/documents"
	"github.com/dmitrijs2005/indiec/internal/server/hybrid"
	"github.com/dmitrijs2005/indiec/internal/server/models"
)

// ArtistView is an artist row joined with its profile document.
type ArtistView struct {
	*models.Artist
	Profile *models.ArtistProfile `json:"profile,omitempty"`
}

type ArtistService struct {
	Deps
	profiles documents.Collection[models.ArtistProfile]
	logger   logging.Logger
}

func NewArtistService(d Deps) *ArtistService {
	return &ArtistService{
		Deps:     d,
		profiles: documents.NewCollection[models.ArtistProfile](d.Docs, documents.ArtistsProfile),
		logger:   d.Logger.With("module", "artists"),
	}
}

// Create inserts the artist and its profile document.
func (s *ArtistService) Create(ctx context.Context, artist *models.Artist, profile *models.ArtistProfile) (*ArtistView, error) {
	if profile == nil {
		profile = &models.ArtistProfile{}
	}
	if profile.Stats == nil {
		var zero int64
		profile.Stats = &models.ArtistStats{Followers: &zero, MonthlyPlays: &zero, TotalPlays: &zero, AlbumsReleased: &zero}
	}

	plan := hybrid.NewPlan().
		Relational("artist", func(ctx context.Context, tx dbx.DBTX, _ hybrid.Results) (any, error) {
			return s.Repos.Artists(tx).Create(ctx, artist)
		}).
		Compensate("artist", func(ctx context.Context, tx dbx.DBTX, rel hybrid.Results) error {
			created, _ := hybrid.Get[*models.Artist](rel, "artist")
			_, err := s.Repos.Artists(tx).Delete(ctx, created.ID)
			return err
		}).
		Document("profile", func(ctx context.Context, rel hybrid.Results) (any, error) {
			created, _ := hybrid.Get[*models.Artist](rel, "artist")
			return s.profiles.Upsert(ctx, created.ID, profile)
		})

	res, err := s.Hybrid.Execute(ctx, plan)
	if err != nil {
		return nil, err
	}
	created, _ := hybrid.Get[*models.Artist](res.Relational, "artist")
	stored, _ := hybrid.Get[*models.ArtistProfile](res.Document, "profile")
	return &ArtistView{Artist: created, Profile: stored}, nil
}

func (s *ArtistService) Get(ctx context.Context, id int64) (*ArtistView, error) {
	artist, err := s.Repos.Artists(s.DB).FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	profile, err := s.profiles.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ArtistView{Artist: artist, Profile: profile}, nil
}

// Update changes the artist row and, when profile is set, merges it into the
// profile document.
func (s *ArtistService) Update(ctx context.Context, id int64, patch models.ArtistPatch, profile *models.ArtistProfile) (*ArtistView, error) {
	plan := hybrid.NewPlan().
		Relational("artist", func(ctx context.Context, tx dbx.DBTX, _ hybrid.Results) (any, error) {
			return s.Repos.Artists(tx).Update(ctx, id, patch)
		}).
		Document("profile", func(ctx context.Context, _ hybrid.Results) (any, error) {
			if profile == nil {
				return s.profiles.Get(ctx, id)
			}
			return s.profiles.Upsert(ctx, id, profile)
		})

	res, err := s.Hybrid.Execute(ctx, plan)
	if err != nil {
		return nil, err
	}
	artist, _ := hybrid.Get[*models.Artist](res.Relational, "artist")
	stored, _ := hybrid.Get[*models.ArtistProfile](res.Document, "profile")
	return &ArtistView{Artist: artist, Profile: stored}, nil
}

// UpdateStats replaces the stats counters that are set in stats. Only the
// profile document changes.
func (s *ArtistService) UpdateStats(ctx context.Context, id int64, stats models.ArtistStats) (*models.ArtistProfile, error) {
	if _, err := s.Repos.Artists(s.DB).FindByID(ctx, id); err != nil {
		return nil, err
	}

	current, err := s.profiles.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	merged := models.ArtistStats{}
	if current != nil && current.Stats != nil {
		merged = *current.Stats
	}
	if stats.Followers != nil {
		merged.Followers = stats.Followers
	}
	if stats.MonthlyPlays != nil {
		merged.MonthlyPlays = stats.MonthlyPlays
	}
	if stats.TotalPlays != nil {
		merged.TotalPlays = stats.TotalPlays
	}
	if stats.AlbumsReleased != nil {
		merged.AlbumsReleased = stats.AlbumsReleased
	}
	return s.profiles.Upsert(ctx, id, &models.ArtistProfile{Stats: &merged})
}

// Delete removes the artist, then its profile document best-effort.
func (s *ArtistService) Delete(ctx context.Context, id int64) error {
	plan := hybrid.NewPlan().
		Relational("artist", deleteOp(id, func(tx dbx.DBTX) deleter { return s.Repos.Artists(tx) })).
		Document("profile", func(ctx context.Context, _ hybrid.Results) (any, error) {
			return s.profiles.Delete(ctx, id)
		})
	_, err := s.Hybrid.Execute(ctx, plan)
	return bestEffort(ctx, s.logger, err, "artist_id", id)
}

func (s *ArtistService) List(ctx context.Context, filter models.ArtistFilter, page models.PageRequest) ([]models.Artist, int64, error) {
	items, total, err := s.Repos.Artists(s.DB).FindMany(ctx, filter, page)
	if err != nil {
		return nil, 0, fmt.Errorf("list artists: %w", err)
	}
	return items, total, nil
}
