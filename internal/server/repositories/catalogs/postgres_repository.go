package catalogs

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/indiec/internal/common"
	"github.com/dmitrijs2005/indiec/internal/dbx"
	"github.com/dmitrijs2005/indiec/internal/server/models"
)

// listQueries is also the allow-list of catalog table names.
var listQueries = map[string]string{
	models.CatalogStates:    `SELECT id, name, description, NULL FROM states ORDER BY id`,
	models.CatalogRoles:     `SELECT id, name, description, NULL FROM roles ORDER BY id`,
	models.CatalogSexes:     `SELECT id, name, description, NULL FROM sexes ORDER BY id`,
	models.CatalogCountries: `SELECT id, name, NULL, iso_code FROM countries WHERE state_id = 1 ORDER BY name`,
	models.CatalogGenres:    `SELECT id, name, description, NULL FROM genres WHERE state_id = 1 ORDER BY name`,
}

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) List(ctx context.Context, catalog string) ([]models.CatalogItem, error) {
	query, ok := listQueries[catalog]
	if !ok {
		return nil, common.ErrorNotFound
	}

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := []models.CatalogItem{}
	for rows.Next() {
		var it models.CatalogItem
		if err := rows.Scan(&it.ID, &it.Name, &it.Description, &it.Code); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Exists(ctx context.Context, catalog string, id int64) (bool, error) {
	if _, ok := listQueries[catalog]; !ok {
		return false, common.ErrorNotFound
	}

	var exists bool
	// catalog is from the allow-list above
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM `+catalog+` WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}
