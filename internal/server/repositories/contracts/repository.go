package contracts

import (
	"context"

	"github.com/dmitrijs2005/indiec/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, contract *models.Contract) (*models.Contract, error)
	FindByID(ctx context.Context, id int64) (*models.Contract, error)
	Update(ctx context.Context, id int64, patch models.ContractPatch) (*models.Contract, error)
	Delete(ctx context.Context, id int64) (bool, error)
	FindMany(ctx context.Context, filter models.ContractFilter, page models.PageRequest) ([]models.Contract, int64, error)
}
