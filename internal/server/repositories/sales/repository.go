package sales

import (
	"context"

	"github.com/dmitrijs2005/indiec/internal/server/models"
)

type Repository interface {
	// Create inserts the sale and its lines. Run it inside a transaction.
	Create(ctx context.Context, sale *models.Sale) (*models.Sale, error)
	FindByID(ctx context.Context, id int64) (*models.Sale, error)
	UpdatePayment(ctx context.Context, id int64, status models.PaymentStatus, method, reference *string) (*models.Sale, error)
	FindMany(ctx context.Context, filter models.SaleFilter, page models.PageRequest) ([]models.Sale, int64, error)
}
