package songs

import (
	"context"

	"github.com/dmitrijs2005/indiec/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, song *models.Song) (*models.Song, error)
	FindByID(ctx context.Context, id int64) (*models.Song, error)
	Update(ctx context.Context, id int64, patch models.SongPatch) (*models.Song, error)
	Delete(ctx context.Context, id int64) (bool, error)
	FindMany(ctx context.Context, filter models.SongFilter, page models.PageRequest) ([]models.Song, int64, error)
}
