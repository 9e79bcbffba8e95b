package artists

import (
	"context"

	"github.com/dmitrijs2005/indiec/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, artist *models.Artist) (*models.Artist, error)
	FindByID(ctx context.Context, id int64) (*models.Artist, error)
	Update(ctx context.Context, id int64, patch models.ArtistPatch) (*models.Artist, error)
	Delete(ctx context.Context, id int64) (bool, error)
	FindMany(ctx context.Context, filter models.ArtistFilter, page models.PageRequest) ([]models.Artist, int64, error)
}
