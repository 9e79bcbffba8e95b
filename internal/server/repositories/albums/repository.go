package albums

import (
	"context"

	"github.com/dmitrijs2005/indiec/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, album *models.Album) (*models.Album, error)
	FindByID(ctx context.Context, id int64) (*models.Album, error)
	Update(ctx context.Context, id int64, patch models.AlbumPatch) (*models.Album, error)
	Delete(ctx context.Context, id int64) (bool, error)
	FindMany(ctx context.Context, filter models.AlbumFilter, page models.PageRequest) ([]models.Album, int64, error)
}
