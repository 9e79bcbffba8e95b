package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/indiec/internal/common"
	"github.com/dmitrijs2005/indiec/internal/dbx"
	"github.com/dmitrijs2005/indiec/internal/logging"
	"github.com/dmitrijs2005/indiec/internal/server/hybrid"
	"github.com/dmitrijs2005/indiec/internal/server/models"
)

type SaleLineInput struct {
	ProductID   int64
	ProductType models.ProductType
	Quantity    int
	UnitPrice   *float64
}

type SaleInput struct {
	Lines         []SaleLineInput
	TaxPercent    float64
	Discount      float64
	PaymentMethod *string
}

type SaleService struct {
	Deps
	analytics *AnalyticsService
	logger    logging.Logger
}

func NewSaleService(d Deps, analytics *AnalyticsService) *SaleService {
	return &SaleService{Deps: d, analytics: analytics, logger: d.Logger.With("module", "sales")}
}

// Create records a direct sale. Lines without a unit price are priced from
// the album or song row inside the transaction.
func (s *SaleService) Create(ctx context.Context, userID int64, in SaleInput) (*models.Sale, error) {
	if len(in.Lines) == 0 {
		return nil, common.NewValidationError(common.FieldError{Field: "lines", Message: "must not be empty"})
	}
	var errs []common.FieldError
	for i, l := range in.Lines {
		if l.Quantity < 1 {
			errs = append(errs, common.FieldError{Field: fmt.Sprintf("lines[%d].quantity", i), Message: "must be at least 1"})
		}
		if !l.ProductType.Valid() {
			errs = append(errs, common.FieldError{Field: fmt.Sprintf("lines[%d].product_type", i), Message: "is not supported"})
		}
	}
	if len(errs) > 0 {
		return nil, common.NewValidationError(errs...)
	}
	if err := validateTotals(in.TaxPercent, in.Discount); err != nil {
		return nil, err
	}

	plan := hybrid.NewPlan().
		Relational("sale", func(ctx context.Context, tx dbx.DBTX, _ hybrid.Results) (any, error) {
			lines := make([]models.SaleLine, 0, len(in.Lines))
			for _, l := range in.Lines {
				var price float64
				if l.UnitPrice != nil && l.ProductType != models.ProductMerchandising {
					price = *l.UnitPrice
				} else {
					p, err := s.unitPrice(ctx, tx, l.ProductType, l.ProductID, l.UnitPrice)
					if err != nil {
						return nil, err
					}
					price = p
				}
				lines = append(lines, models.SaleLine{
					ProductID:   l.ProductID,
					ProductType: l.ProductType,
					Quantity:    l.Quantity,
					UnitPrice:   price,
				})
			}
			sale, err := newSale(userID, lines, in.TaxPercent, in.Discount, in.PaymentMethod)
			if err != nil {
				return nil, err
			}
			return s.Repos.Sales(tx).Create(ctx, sale)
		}).
		Document("analytics", func(ctx context.Context, rel hybrid.Results) (any, error) {
			sale, _ := hybrid.Get[*models.Sale](rel, "sale")
			return nil, s.analytics.RecordEvent(ctx, saleEvent(sale))
		})

	res, err := s.Hybrid.Execute(ctx, plan)
	if err = bestEffort(ctx, s.logger, err, "user_id", userID); err != nil {
		return nil, err
	}
	sale, _ := hybrid.Get[*models.Sale](res.Relational, "sale")
	return sale, nil
}

// Get returns a sale to its buyer or to an administrator.
func (s *SaleService) Get(ctx context.Context, actorID, id int64) (*models.Sale, error) {
	sale, err := s.Repos.Sales(s.DB).FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sale.UserID == actorID {
		return sale, nil
	}
	admin, err := s.isAdmin(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !admin {
		return nil, common.ErrorForbidden
	}
	return sale, nil
}

// List returns the actor's sales. Administrators may list any user's sales
// through filter.UserID.
func (s *SaleService) List(ctx context.Context, actorID int64, filter models.SaleFilter, page models.PageRequest) ([]models.Sale, int64, error) {
	if filter.UserID != actorID {
		admin, err := s.isAdmin(ctx, actorID)
		if err != nil {
			return nil, 0, err
		}
		if !admin {
			filter.UserID = actorID
		}
	}
	return s.Repos.Sales(s.DB).FindMany(ctx, filter, page)
}

func (s *SaleService) UpdatePayment(ctx context.Context, id int64, status models.PaymentStatus, method, reference *string) (*models.Sale, error) {
	if !status.Valid() {
		return nil, common.NewValidationError(common.FieldError{Field: "payment_status", Message: "is not supported"})
	}
	sale, err := s.Repos.Sales(s.DB).UpdatePayment(ctx, id, status, method, reference)
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "sale payment updated", "sale_id", id, "payment_status", status)
	return sale, nil
}
