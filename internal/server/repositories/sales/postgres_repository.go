package sales

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
	saleColumns = `id, user_id, subtotal, tax, discount, total, payment_status, payment_method, payment_reference, state_id, created_at, updated_at`
	lineColumns = `id, sale_id, product_id, product_type, quantity, unit_price, line_total`
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

func scanSale(row scanner) (*models.Sale, error) {
	s := &models.Sale{}
	var status string
	err := row.Scan(&s.ID, &s.UserID, &s.Subtotal, &s.Tax, &s.Discount, &s.Total, &status,
		&s.PaymentMethod, &s.PaymentReference, &s.StateID, &s.CreatedAt, &s.UpdatedAt)
	s.PaymentStatus = models.PaymentStatus(status)
	return s, err
}

func scanLine(row scanner) (*models.SaleLine, error) {
	l := &models.SaleLine{}
	var typ string
	err := row.Scan(&l.ID, &l.SaleID, &l.ProductID, &typ, &l.Quantity, &l.UnitPrice, &l.LineTotal)
	l.ProductType = models.ProductType(typ)
	return l, err
}

func (r *PostgresRepository) Create(ctx context.Context, sale *models.Sale) (*models.Sale, error) {
	if sale.StateID == 0 {
		sale.StateID = models.StateActive
	}
	if sale.PaymentStatus == "" {
		sale.PaymentStatus = models.PaymentPending
	}

	query :=
		`INSERT INTO sales (user_id, subtotal, tax, discount, total, payment_status, payment_method, payment_reference, state_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING ` + saleColumns

	created, err := scanSale(r.db.QueryRowContext(ctx, query,
		sale.UserID, sale.Subtotal, sale.Tax, sale.Discount, sale.Total, string(sale.PaymentStatus),
		sale.PaymentMethod, sale.PaymentReference, sale.StateID))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", dbx.TranslateError(err))
	}

	for _, line := range sale.Lines {
		l, err := scanLine(r.db.QueryRowContext(ctx,
			`INSERT INTO sale_lines (sale_id, product_id, product_type, quantity, unit_price, line_total)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING `+lineColumns,
			created.ID, line.ProductID, string(line.ProductType), line.Quantity, line.UnitPrice, line.LineTotal))
		if err != nil {
			return nil, fmt.Errorf("db error: %w", dbx.TranslateError(err))
		}
		created.Lines = append(created.Lines, *l)
	}

	return created, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id int64) (*models.Sale, error) {
	s, err := scanSale(r.db.QueryRowContext(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	s.Lines, err = r.lines(ctx, id)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *PostgresRepository) lines(ctx context.Context, saleID int64) ([]models.SaleLine, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+lineColumns+` FROM sale_lines WHERE sale_id = $1 ORDER BY id`, saleID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.SaleLine
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) UpdatePayment(ctx context.Context, id int64, status models.PaymentStatus, method, reference *string) (*models.Sale, error) {
	var set dbx.Assignments
	set.Set("payment_status", string(status))
	dbx.SetIf(&set, "payment_method", method)
	dbx.SetIf(&set, "payment_reference", reference)

	assignments, args := set.SQL()
	query := fmt.Sprintf(`UPDATE sales SET %s, updated_at = NOW() WHERE id = $%d RETURNING %s`, assignments, len(args)+1, saleColumns)

	s, err := scanSale(r.db.QueryRowContext(ctx, query, append(args, id)...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", dbx.TranslateError(err))
	}
	return s, nil
}

// FindMany lists sale headers, newest first. Lines are not loaded.
func (r *PostgresRepository) FindMany(ctx context.Context, filter models.SaleFilter, page models.PageRequest) ([]models.Sale, int64, error) {
	var w dbx.Where
	if filter.UserID != 0 {
		w.Add("user_id = $%d", filter.UserID)
	}
	if filter.PaymentStatus != "" {
		w.Add("payment_status = $%d", string(filter.PaymentStatus))
	}
	if filter.From != nil {
		w.Add("created_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		w.Add("created_at < $%d", *filter.To)
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sales`+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	limit, args := w.Page(page.Limit, page.Offset())
	rows, err := r.db.QueryContext(ctx, `SELECT `+saleColumns+` FROM sales`+w.SQL()+` ORDER BY created_at DESC, id DESC`+limit, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("db error: %w", err)
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}
	return out, total, nil
}
