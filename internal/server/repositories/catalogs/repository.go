package catalogs

import (
	"context"

	"github.com/dmitrijs2005/indiec/internal/server/models"
)

// Repository reads the reference catalogs (states, roles, sexes, countries,
// genres). Unknown catalog names yield common.ErrorNotFound.
type Repository interface {
	List(ctx context.Context, catalog string) ([]models.CatalogItem, error)
	Exists(ctx context.Context, catalog string, id int64) (bool, error)
}
