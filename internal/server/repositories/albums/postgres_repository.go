package albums

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

const albumColumns = `id, title, artist_id, year, genre_id, state_id, release_date, price, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAlbum(row scanner) (*models.Album, error) {
	a := &models.Album{}
	err := row.Scan(&a.ID, &a.Title, &a.ArtistID, &a.Year, &a.GenreID, &a.StateID, &a.ReleaseDate,
		&a.Price, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *PostgresRepository) Create(ctx context.Context, album *models.Album) (*models.Album, error) {
	if album.StateID == 0 {
		album.StateID = models.StateActive
	}

	query :=
		`INSERT INTO albums (title, artist_id, year, genre_id, state_id, release_date, price)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING ` + albumColumns

	created, err := scanAlbum(r.db.QueryRowContext(ctx, query,
		album.Title, album.ArtistID, album.Year, album.GenreID, album.StateID, album.ReleaseDate, album.Price))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", dbx.TranslateError(err))
	}
	return created, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id int64) (*models.Album, error) {
	a, err := scanAlbum(r.db.QueryRowContext(ctx, `SELECT `+albumColumns+` FROM albums WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) Update(ctx context.Context, id int64, patch models.AlbumPatch) (*models.Album, error) {
	var set dbx.Assignments
	dbx.SetIf(&set, "title", patch.Title)
	dbx.SetIf(&set, "year", patch.Year)
	dbx.SetIf(&set, "genre_id", patch.GenreID)
	dbx.SetIf(&set, "state_id", patch.StateID)
	dbx.SetIf(&set, "release_date", patch.ReleaseDate)
	dbx.SetIf(&set, "price", patch.Price)

	if set.Empty() {
		return r.FindByID(ctx, id)
	}
	set.Set("updated_at", time.Now().UTC())

	assignments, args := set.SQL()
	query := fmt.Sprintf(`UPDATE albums SET %s WHERE id = $%d RETURNING %s`, assignments, len(args)+1, albumColumns)

	a, err := scanAlbum(r.db.QueryRowContext(ctx, query, append(args, id)...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", dbx.TranslateError(err))
	}
	return a, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM albums WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("db error: %w", dbx.TranslateError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) FindMany(ctx context.Context, filter models.AlbumFilter, page models.PageRequest) ([]models.Album, int64, error) {
	var w dbx.Where
	if filter.Title != "" {
		w.Add("LOWER(title) LIKE $%d", "%"+strings.ToLower(filter.Title)+"%")
	}
	if filter.ArtistID != 0 {
		w.Add("artist_id = $%d", filter.ArtistID)
	}
	if filter.GenreID != 0 {
		w.Add("genre_id = $%d", filter.GenreID)
	}
	if filter.Year != 0 {
		w.Add("year = $%d", filter.Year)
	}
	if filter.StateID != 0 {
		w.Add("state_id = $%d", filter.StateID)
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM albums`+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	limit, args := w.Page(page.Limit, page.Offset())
	rows, err := r.db.QueryContext(ctx, `SELECT `+albumColumns+` FROM albums`+w.SQL()+` ORDER BY created_at DESC, id DESC`+limit, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.Album
	for rows.Next() {
		a, err := scanAlbum(rows)
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
