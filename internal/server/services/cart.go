package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/indiec/internal/common"
	"github.com/dmitrijs2005/indiec/internal/dbx"
	"github.com/dmitrijs2005/indiec/internal/logging"
	"github.com/dmitrijs2005/indiec/internal/server/hybrid"
	"github.com/dmitrijs2005/indiec/internal/server/models"
)

type CartItemInput struct {
	ProductID   int64
	ProductType models.ProductType
	Quantity    int
	// UnitPrice is only used for merchandising.
	UnitPrice *float64
}

type CheckoutInput struct {
	TaxPercent    float64
	Discount      float64
	PaymentMethod *string
}

// CartService manages the single active cart of each user.
type CartService struct {
	Deps
	analytics *AnalyticsService
	logger    logging.Logger
}

func NewCartService(d Deps, analytics *AnalyticsService) *CartService {
	return &CartService{Deps: d, analytics: analytics, logger: d.Logger.With("module", "carts")}
}

// Get returns the active cart with its items and total, creating an empty
// cart when the user has none.
func (s *CartService) Get(ctx context.Context, userID int64) (*models.Cart, error) {
	repo := s.Repos.Carts(s.DB)
	cart, err := repo.GetOrCreateActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	items, err := repo.Items(ctx, cart.ID)
	if err != nil {
		return nil, err
	}
	cart.Items = items
	cart.Total = models.CartTotal(items)
	return cart, nil
}

// AddItem adds in to the active cart. Adding a product already in the cart
// increases its quantity.
func (s *CartService) AddItem(ctx context.Context, userID int64, in CartItemInput) (*models.Cart, error) {
	if in.Quantity < 1 {
		return nil, common.NewValidationError(common.FieldError{Field: "quantity", Message: "must be at least 1"})
	}
	if !in.ProductType.Valid() {
		return nil, common.NewValidationError(common.FieldError{Field: "product_type", Message: "is not supported"})
	}

	price, err := s.unitPrice(ctx, s.DB, in.ProductType, in.ProductID, in.UnitPrice)
	if err != nil {
		return nil, err
	}

	repo := s.Repos.Carts(s.DB)
	cart, err := repo.GetOrCreateActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, err := repo.AddItem(ctx, &models.CartItem{
		CartID:      cart.ID,
		UserID:      userID,
		ProductID:   in.ProductID,
		ProductType: in.ProductType,
		Quantity:    in.Quantity,
		UnitPrice:   price,
	}); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

func (s *CartService) UpdateItem(ctx context.Context, userID, itemID int64, quantity int) (*models.Cart, error) {
	if quantity < 1 {
		return nil, common.NewValidationError(common.FieldError{Field: "quantity", Message: "must be at least 1"})
	}
	if _, err := s.Repos.Carts(s.DB).UpdateItemQuantity(ctx, userID, itemID, quantity); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

func (s *CartService) RemoveItem(ctx context.Context, userID, itemID int64) (*models.Cart, error) {
	ok, err := s.Repos.Carts(s.DB).RemoveItem(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.ErrorNotFound
	}
	return s.Get(ctx, userID)
}

// Clear empties the active cart and returns the number of removed items.
func (s *CartService) Clear(ctx context.Context, userID int64) (int64, error) {
	repo := s.Repos.Carts(s.DB)
	cart, err := repo.FindActive(ctx, userID)
	if errors.Is(err, common.ErrorNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return repo.Clear(ctx, cart.ID)
}

// Checkout turns the active cart into a pending sale and marks the cart
// processed in one transaction, then records a sale event. A failure to
// record the event does not undo the sale.
func (s *CartService) Checkout(ctx context.Context, userID int64, in CheckoutInput) (*models.Sale, error) {
	if err := validateTotals(in.TaxPercent, in.Discount); err != nil {
		return nil, err
	}

	plan := hybrid.NewPlan().
		Relational("cart", func(ctx context.Context, tx dbx.DBTX, _ hybrid.Results) (any, error) {
			repo := s.Repos.Carts(tx)
			cart, err := repo.FindActive(ctx, userID)
			if errors.Is(err, common.ErrorNotFound) {
				return nil, common.NewValidationError(common.FieldError{Field: "cart", Message: "is empty"})
			}
			if err != nil {
				return nil, err
			}
			items, err := repo.Items(ctx, cart.ID)
			if err != nil {
				return nil, err
			}
			if len(items) == 0 {
				return nil, common.NewValidationError(common.FieldError{Field: "cart", Message: "is empty"})
			}
			cart.Items = items
			return cart, nil
		}).
		Relational("sale", func(ctx context.Context, tx dbx.DBTX, rel hybrid.Results) (any, error) {
			cart, _ := hybrid.Get[*models.Cart](rel, "cart")
			lines := make([]models.SaleLine, 0, len(cart.Items))
			for _, it := range cart.Items {
				lines = append(lines, models.SaleLine{
					ProductID:   it.ProductID,
					ProductType: it.ProductType,
					Quantity:    it.Quantity,
					UnitPrice:   it.UnitPrice,
				})
			}
			sale, err := newSale(userID, lines, in.TaxPercent, in.Discount, in.PaymentMethod)
			if err != nil {
				return nil, err
			}
			return s.Repos.Sales(tx).Create(ctx, sale)
		}).
		Relational("status", func(ctx context.Context, tx dbx.DBTX, rel hybrid.Results) (any, error) {
			cart, _ := hybrid.Get[*models.Cart](rel, "cart")
			return nil, s.Repos.Carts(tx).SetStatus(ctx, cart.ID, models.CartProcessed)
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

func validateTotals(taxPercent, discount float64) error {
	var errs []common.FieldError
	if taxPercent < 0 || taxPercent > 100 {
		errs = append(errs, common.FieldError{Field: "tax_percent", Message: "must be between 0 and 100"})
	}
	if discount < 0 {
		errs = append(errs, common.FieldError{Field: "discount", Message: "must not be negative"})
	}
	if len(errs) > 0 {
		return common.NewValidationError(errs...)
	}
	return nil
}

// newSale prices lines and builds a pending sale. The discount may not
// exceed subtotal plus tax.
func newSale(userID int64, lines []models.SaleLine, taxPercent, discount float64, method *string) (*models.Sale, error) {
	totals := models.ComputeSaleTotals(lines, taxPercent, discount)
	if totals.Total < 0 {
		return nil, common.NewValidationError(common.FieldError{
			Field:   "discount",
			Message: fmt.Sprintf("exceeds order amount %.2f", totals.Subtotal+totals.Tax),
		})
	}
	return &models.Sale{
		UserID:        userID,
		Subtotal:      totals.Subtotal,
		Tax:           totals.Tax,
		Discount:      totals.Discount,
		Total:         totals.Total,
		PaymentStatus: models.PaymentPending,
		PaymentMethod: method,
		StateID:       models.StateActive,
		Lines:         lines,
	}, nil
}

func saleEvent(sale *models.Sale) models.AnalyticsEvent {
	items := 0
	for _, l := range sale.Lines {
		items += l.Quantity
	}
	return models.AnalyticsEvent{
		EntityType: "sale",
		EntityID:   sale.ID,
		EventType:  models.EventSale,
		UserID:     &sale.UserID,
		Metrics: map[string]float64{
			"subtotal": sale.Subtotal,
			"tax":      sale.Tax,
			"discount": sale.Discount,
			"total":    sale.Total,
			"items":    float64(items),
		},
	}
}
