package carts

import (
	"context"

	"github.com/dmitrijs2005/indiec/internal/server/models"
)

// Repository manages shopping carts. A user has at most one active cart.
type Repository interface {
	FindActive(ctx context.Context, userID int64) (*models.Cart, error)
	GetOrCreateActive(ctx context.Context, userID int64) (*models.Cart, error)
	Items(ctx context.Context, cartID int64) ([]models.CartItem, error)
	AddItem(ctx context.Context, item *models.CartItem) (*models.CartItem, error)
	UpdateItemQuantity(ctx context.Context, userID, itemID int64, quantity int) (*models.CartItem, error)
	RemoveItem(ctx context.Context, userID, itemID int64) (bool, error)
	Clear(ctx context.Context, cartID int64) (int64, error)
	SetStatus(ctx context.Context, cartID int64, status models.CartStatus) error
}
