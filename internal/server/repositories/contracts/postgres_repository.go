package contracts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/indiec/internal/common"
	"github.com/dmitrijs2005/indiec/internal/dbx"
	"github.com/dmitrijs2005/indiec/internal/server/models"
)

const contractColumns = `id, artist_id, type, start_date, end_date, cost, state_id, manager_id, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanContract(row scanner) (*models.Contract, error) {
	c := &models.Contract{}
	var typ string
	err := row.Scan(&c.ID, &c.ArtistID, &typ, &c.StartDate, &c.EndDate, &c.Cost, &c.StateID, &c.ManagerID,
		&c.CreatedAt, &c.UpdatedAt)
	c.Type = models.ContractType(typ)
	return c, err
}

func (r *PostgresRepository) Create(ctx context.Context, contract *models.Contract) (*models.Contract, error) {
	if contract.StateID == 0 {
		contract.StateID = models.StateActive
	}

	query :=
		`INSERT INTO contracts (artist_id, type, start_date, end_date, cost, state_id, manager_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING ` + contractColumns

	created, err := scanContract(r.db.QueryRowContext(ctx, query,
		contract.ArtistID, string(contract.Type), contract.StartDate, contract.EndDate, contract.Cost,
		contract.StateID, contract.ManagerID))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", dbx.TranslateError(err))
	}
	return created, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id int64) (*models.Contract, error) {
	c, err := scanContract(r.db.QueryRowContext(ctx, `SELECT `+contractColumns+` FROM contracts WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) Update(ctx context.Context, id int64, patch models.ContractPatch) (*models.Contract, error) {
	var set dbx.Assignments
	if patch.Type != nil {
		set.Set("type", string(*patch.Type))
	}
	dbx.SetIf(&set, "start_date", patch.StartDate)
	dbx.SetIf(&set, "end_date", patch.EndDate)
	dbx.SetIf(&set, "cost", patch.Cost)
	dbx.SetIf(&set, "state_id", patch.StateID)
	dbx.SetIf(&set, "manager_id", patch.ManagerID)

	if set.Empty() {
		return r.FindByID(ctx, id)
	}
	set.Set("updated_at", time.Now().UTC())

	assignments, args := set.SQL()
	query := fmt.Sprintf(`UPDATE contracts SET %s WHERE id = $%d RETURNING %s`, assignments, len(args)+1, contractColumns)

	c, err := scanContract(r.db.QueryRowContext(ctx, query, append(args, id)...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", dbx.TranslateError(err))
	}
	return c, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM contracts WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("db error: %w", dbx.TranslateError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) FindMany(ctx context.Context, filter models.ContractFilter, page models.PageRequest) ([]models.Contract, int64, error) {
	var w dbx.Where
	if filter.ArtistID != 0 {
		w.Add("artist_id = $%d", filter.ArtistID)
	}
	if filter.Type != "" {
		w.Add("type = $%d", string(filter.Type))
	}
	if filter.StateID != 0 {
		w.Add("state_id = $%d", filter.StateID)
	}
	if filter.ManagerID != 0 {
		w.Add("manager_id = $%d", filter.ManagerID)
	}
	order := ` ORDER BY start_date DESC, id DESC`
	if filter.EndingBefore != nil {
		w.AddRaw("end_date >= CURRENT_DATE")
		w.Add("end_date <= $%d", *filter.EndingBefore)
		order = ` ORDER BY end_date, id`
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contracts`+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	limit, args := w.Page(page.Limit, page.Offset())
	rows, err := r.db.QueryContext(ctx, `SELECT `+contractColumns+` FROM contracts`+w.SQL()+order+limit, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("db error: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}
	return out, total, nil
}
