package artists

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/indiec/internal/common"
	"github.com/dmitrijs2005/indiec/internal/dbx"
	"github.com/dmitrijs2005/indiec/internal/server/models"
)

const artistColumns = `id, name, stage_name, genre_id, country_id, state_id, manager_id, registered_on, verified, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArtist(row scanner) (*models.Artist, error) {
	a := &models.Artist{}
	err := row.Scan(&a.ID, &a.Name, &a.StageName, &a.GenreID, &a.CountryID, &a.StateID, &a.ManagerID,
		&a.RegisteredOn, &a.Verified, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *PostgresRepository) Create(ctx context.Context, artist *models.Artist) (*models.Artist, error) {
	if artist.StateID == 0 {
		artist.StateID = models.StateActive
	}

	query :=
		`INSERT INTO artists (name, stage_name, genre_id, country_id, state_id, manager_id, verified)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING ` + artistColumns

	created, err := scanArtist(r.db.QueryRowContext(ctx, query,
		artist.Name, artist.StageName, artist.GenreID, artist.CountryID, artist.StateID, artist.ManagerID, artist.Verified))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", dbx.TranslateError(err))
	}
	return created, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id int64) (*models.Artist, error) {
	a, err := scanArtist(r.db.QueryRowContext(ctx, `SELECT `+artistColumns+` FROM artists WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) Update(ctx context.Context, id int64, patch models.ArtistPatch) (*models.Artist, error) {
	var set dbx.Assignments
	dbx.SetIf(&set, "name", patch.Name)
	dbx.SetIf(&set, "stage_name", patch.StageName)
	dbx.SetIf(&set, "genre_id", patch.GenreID)
	dbx.SetIf(&set, "country_id", patch.CountryID)
	dbx.SetIf(&set, "state_id", patch.StateID)
	dbx.SetIf(&set, "manager_id", patch.ManagerID)
	dbx.SetIf(&set, "verified", patch.Verified)

	if set.Empty() {
		return r.FindByID(ctx, id)
	}
	set.Set("updated_at", time.Now().UTC())

	assignments, args := set.SQL()
	query := fmt.Sprintf(`UPDATE artists SET %s WHERE id = $%d RETURNING %s`, assignments, len(args)+1, artistColumns)

	a, err := scanArtist(r.db.QueryRowContext(ctx, query, append(args, id)...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", dbx.TranslateError(err))
	}
	return a, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM artists WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("db error: %w", dbx.TranslateError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) FindMany(ctx context.Context, filter models.ArtistFilter, page models.PageRequest) ([]models.Artist, int64, error) {
	var w dbx.Where
	if filter.Name != "" {
		w.Add("(LOWER(name) LIKE $%[1]d OR LOWER(stage_name) LIKE $%[1]d)", "%"+strings.ToLower(filter.Name)+"%")
	}
	if filter.GenreID != 0 {
		w.Add("genre_id = $%d", filter.GenreID)
	}
	if filter.CountryID != 0 {
		w.Add("country_id = $%d", filter.CountryID)
	}
	if filter.StateID != 0 {
		w.Add("state_id = $%d", filter.StateID)
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM artists`+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	limit, args := w.Page(page.Limit, page.Offset())
	rows, err := r.db.QueryContext(ctx, `SELECT `+artistColumns+` FROM artists`+w.SQL()+` ORDER BY name, id`+limit, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.Artist
	for rows.Next() {
		a, err := scanArtist(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("db error: %w", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}
	return out, total, nil
}
