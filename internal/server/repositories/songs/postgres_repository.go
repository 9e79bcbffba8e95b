package songs

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

const songColumns = `id, title, album_id, artist_id, duration_seconds, year, genre_id, state_id, track_number, price, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSong(row scanner) (*models.Song, error) {
	s := &models.Song{}
	err := row.Scan(&s.ID, &s.Title, &s.AlbumID, &s.ArtistID, &s.DurationSeconds, &s.Year, &s.GenreID,
		&s.StateID, &s.TrackNumber, &s.Price, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (r *PostgresRepository) Create(ctx context.Context, song *models.Song) (*models.Song, error) {
	if song.StateID == 0 {
		song.StateID = models.StateActive
	}

	query :=
		`INSERT INTO songs (title, album_id, artist_id, duration_seconds, year, genre_id, state_id, track_number, price)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING ` + songColumns

	created, err := scanSong(r.db.QueryRowContext(ctx, query,
		song.Title, song.AlbumID, song.ArtistID, song.DurationSeconds, song.Year, song.GenreID,
		song.StateID, song.TrackNumber, song.Price))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", dbx.TranslateError(err))
	}
	return created, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id int64) (*models.Song, error) {
	s, err := scanSong(r.db.QueryRowContext(ctx, `SELECT `+songColumns+` FROM songs WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) Update(ctx context.Context, id int64, patch models.SongPatch) (*models.Song, error) {
	var set dbx.Assignments
	dbx.SetIf(&set, "title", patch.Title)
	dbx.SetIf(&set, "album_id", patch.AlbumID)
	dbx.SetIf(&set, "duration_seconds", patch.DurationSeconds)
	dbx.SetIf(&set, "year", patch.Year)
	dbx.SetIf(&set, "genre_id", patch.GenreID)
	dbx.SetIf(&set, "state_id", patch.StateID)
	dbx.SetIf(&set, "track_number", patch.TrackNumber)
	dbx.SetIf(&set, "price", patch.Price)

	if set.Empty() {
		return r.FindByID(ctx, id)
	}
	set.Set("updated_at", time.Now().UTC())

	assignments, args := set.SQL()
	query := fmt.Sprintf(`UPDATE songs SET %s WHERE id = $%d RETURNING %s`, assignments, len(args)+1, songColumns)

	s, err := scanSong(r.db.QueryRowContext(ctx, query, append(args, id)...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", dbx.TranslateError(err))
	}
	return s, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM songs WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("db error: %w", dbx.TranslateError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

// FindMany lists songs. When filtering by album the result is in track order.
func (r *PostgresRepository) FindMany(ctx context.Context, filter models.SongFilter, page models.PageRequest) ([]models.Song, int64, error) {
	var w dbx.Where
	if filter.Title != "" {
		w.Add("LOWER(title) LIKE $%d", "%"+strings.ToLower(filter.Title)+"%")
	}
	if filter.AlbumID != 0 {
		w.Add("album_id = $%d", filter.AlbumID)
	}
	if filter.ArtistID != 0 {
		w.Add("artist_id = $%d", filter.ArtistID)
	}
	if filter.GenreID != 0 {
		w.Add("genre_id = $%d", filter.GenreID)
	}
	if filter.StateID != 0 {
		w.Add("state_id = $%d", filter.StateID)
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM songs`+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	order := ` ORDER BY created_at DESC, id DESC`
	if filter.AlbumID != 0 {
		order = ` ORDER BY track_number NULLS LAST, id`
	}

	limit, args := w.Page(page.Limit, page.Offset())
	rows, err := r.db.QueryContext(ctx, `SELECT `+songColumns+` FROM songs`+w.SQL()+order+limit, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.Song
	for rows.Next() {
		s, err := scanSong(rows)
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
