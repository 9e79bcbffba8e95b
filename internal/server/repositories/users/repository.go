package users

import (
	"context"

	"github.com/dmitrijs2005/indiec/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	FindByID(ctx context.Context, id int64) (*models.User, error)
	// FindByEmail matches case-insensitively through the email search hash.
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, id int64, patch models.UserPatch) (*models.User, error)
	Delete(ctx context.Context, id int64) (bool, error)
	FindMany(ctx context.Context, filter models.UserFilter, page models.PageRequest) ([]models.User, int64, error)
	// FindLegacy returns up to limit rows still stored at encryption_version 0.
	FindLegacy(ctx context.Context, limit int) ([]models.User, error)
	// AdoptLegacy rewrites a legacy row at the current encryption version.
	AdoptLegacy(ctx context.Context, user *models.User) error
}
