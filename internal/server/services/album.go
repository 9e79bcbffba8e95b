package services

import (
	"context"

	"github.com/dmitrijs2005/indiec/internal/dbx"
	"github.com/dmitrijs2005/indiec/internal/logging"
	"github.com/dmitrijs2005/indiec/internal/server/documents"
	"github.com/dmitrijs2005/indiec/internal/server/hybrid"
	"github.com/dmitrijs2005/indiec/internal/server/models"
)

// AlbumView is an album row joined with its content document.
type AlbumView struct {
	*models.Album
	Content *models.AlbumContent `json:"content,omitempty"`
}

type AlbumService struct {
	Deps
	contents documents.Collection[models.AlbumContent]
	logger   logging.Logger
}

func NewAlbumService(d Deps) *AlbumService {
	return &AlbumService{
		Deps:     d,
		contents: documents.NewCollection[models.AlbumContent](d.Docs, documents.AlbumsContent),
		logger:   d.Logger.With("module", "albums"),
	}
}

// Create inserts the album row and then its content document. When the
// document store fails after commit the album row stays and the returned
// error matches hybrid.ErrPartialHybridFailure.
func (s *AlbumService) Create(ctx context.Context, album *models.Album, content *models.AlbumContent) (*AlbumView, error) {
	if content == nil {
		content = &models.AlbumContent{}
	}
	if content.Metadata == nil {
		content.Metadata = models.DefaultAlbumMetadata()
	}

	plan := hybrid.NewPlan().
		Relational("album", func(ctx context.Context, tx dbx.DBTX, _ hybrid.Results) (any, error) {
			return s.Repos.Albums(tx).Create(ctx, album)
		}).
		Compensate("album", func(ctx context.Context, tx dbx.DBTX, rel hybrid.Results) error {
			created, _ := hybrid.Get[*models.Album](rel, "album")
			_, err := s.Repos.Albums(tx).Delete(ctx, created.ID)
			return err
		}).
		Document("content", func(ctx context.Context, rel hybrid.Results) (any, error) {
			created, _ := hybrid.Get[*models.Album](rel, "album")
			return s.contents.Upsert(ctx, created.ID, content)
		})

	res, err := s.Hybrid.Execute(ctx, plan)
	if err != nil {
		return nil, err
	}
	created, _ := hybrid.Get[*models.Album](res.Relational, "album")
	stored, _ := hybrid.Get[*models.AlbumContent](res.Document, "content")
	return &AlbumView{Album: created, Content: stored}, nil
}

func (s *AlbumService) Get(ctx context.Context, id int64) (*AlbumView, error) {
	album, err := s.Repos.Albums(s.DB).FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	content, err := s.contents.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &AlbumView{Album: album, Content: content}, nil
}

func (s *AlbumService) Update(ctx context.Context, id int64, patch models.AlbumPatch, content *models.AlbumContent) (*AlbumView, error) {
	plan := hybrid.NewPlan().
		Relational("album", func(ctx context.Context, tx dbx.DBTX, _ hybrid.Results) (any, error) {
			return s.Repos.Albums(tx).Update(ctx, id, patch)
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
	album, _ := hybrid.Get[*models.Album](res.Relational, "album")
	stored, _ := hybrid.Get[*models.AlbumContent](res.Document, "content")
	return &AlbumView{Album: album, Content: stored}, nil
}

// SetCover records an uploaded cover image on the content document.
func (s *AlbumService) SetCover(ctx context.Context, id int64, path string) (*models.AlbumContent, error) {
	if _, err := s.Repos.Albums(s.DB).FindByID(ctx, id); err != nil {
		return nil, err
	}
	return s.contents.Upsert(ctx, id, &models.AlbumContent{CoverPath: path})
}

func (s *AlbumService) Delete(ctx context.Context, id int64) error {
	plan := hybrid.NewPlan().
		Relational("album", deleteOp(id, func(tx dbx.DBTX) deleter { return s.Repos.Albums(tx) })).
		Document("content", func(ctx context.Context, _ hybrid.Results) (any, error) {
			return s.contents.Delete(ctx, id)
		})
	_, err := s.Hybrid.Execute(ctx, plan)
	return bestEffort(ctx, s.logger, err, "album_id", id)
}

func (s *AlbumService) List(ctx context.Context, filter models.AlbumFilter, page models.PageRequest) ([]models.Album, int64, error) {
	return s.Repos.Albums(s.DB).FindMany(ctx, filter, page)
}
