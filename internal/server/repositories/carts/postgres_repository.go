package carts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/indiec/internal/common"
	"github.com/dmitrijs2005/indiec/internal/dbx"
	"github.com/dmitrijs2005/indiec/internal/server/models"
)

const (
	cartColumns = `id, user_id, status, created_at, updated_at`
	itemColumns = `id, cart_id, user_id, product_id, product_type, quantity, unit_price, added_at`
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCart(row scanner) (*models.Cart, error) {
	c := &models.Cart{}
	var status string
	err := row.Scan(&c.ID, &c.UserID, &status, &c.CreatedAt, &c.UpdatedAt)
	c.Status = models.CartStatus(status)
	return c, err
}

func scanItem(row scanner) (*models.CartItem, error) {
	it := &models.CartItem{}
	var typ string
	err := row.Scan(&it.ID, &it.CartID, &it.UserID, &it.ProductID, &typ, &it.Quantity, &it.UnitPrice, &it.AddedAt)
	it.ProductType = models.ProductType(typ)
	return it, err
}

func (r *PostgresRepository) FindActive(ctx context.Context, userID int64) (*models.Cart, error) {
	c, err := scanCart(r.db.QueryRowContext(ctx,
		`SELECT `+cartColumns+` FROM carts WHERE user_id = $1 AND status = $2`, userID, string(models.CartActive)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

// GetOrCreateActive returns the user's active cart, creating one if needed.
// A concurrent creator losing the race on the partial unique index re-reads.
func (r *PostgresRepository) GetOrCreateActive(ctx context.Context, userID int64) (*models.Cart, error) {
	c, err := r.FindActive(ctx, userID)
	if err == nil || !errors.Is(err, common.ErrorNotFound) {
		return c, err
	}

	c, err = scanCart(r.db.QueryRowContext(ctx,
		`INSERT INTO carts (user_id, status) VALUES ($1, $2) RETURNING `+cartColumns, userID, string(models.CartActive)))
	if err != nil {
		err = dbx.TranslateError(err)
		if errors.Is(err, common.ErrorConflict) {
			return r.FindActive(ctx, userID)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) Items(ctx context.Context, cartID int64) ([]models.CartItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM cart_items WHERE cart_id = $1 ORDER BY added_at, id`, cartID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.CartItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, *it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

// AddItem inserts a line, or adds to the quantity of an existing line for the
// same product and refreshes its unit price.
func (r *PostgresRepository) AddItem(ctx context.Context, item *models.CartItem) (*models.CartItem, error) {
	query :=
		`INSERT INTO cart_items (cart_id, user_id, product_id, product_type, quantity, unit_price)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (cart_id, product_id, product_type)
		 DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, unit_price = EXCLUDED.unit_price
		 RETURNING ` + itemColumns

	it, err := scanItem(r.db.QueryRowContext(ctx, query,
		item.CartID, item.UserID, item.ProductID, string(item.ProductType), item.Quantity, item.UnitPrice))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", dbx.TranslateError(err))
	}
	return it, nil
}

func (r *PostgresRepository) UpdateItemQuantity(ctx context.Context, userID, itemID int64, quantity int) (*models.CartItem, error) {
	it, err := scanItem(r.db.QueryRowContext(ctx,
		`UPDATE cart_items SET quantity = $1 WHERE id = $2 AND user_id = $3 RETURNING `+itemColumns,
		quantity, itemID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", dbx.TranslateError(err))
	}
	return it, nil
}

func (r *PostgresRepository) RemoveItem(ctx context.Context, userID, itemID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE id = $1 AND user_id = $2`, itemID, userID)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) Clear(ctx context.Context, cartID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) SetStatus(ctx context.Context, cartID int64, status models.CartStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE carts SET status = $1, updated_at = NOW() WHERE id = $2`, string(status), cartID)
	if err != nil {
		return fmt.Errorf("db error: %w", dbx.TranslateError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
