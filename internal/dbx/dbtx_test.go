package dbx

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openGenres(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE genres (id INTEGER PRIMARY KEY, name TEXT NOT NULL UNIQUE)`)
	require.NoError(t, err)
	return db
}

func genreCount(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM genres`).Scan(&n))
	return n
}

func insertGenre(ctx context.Context, tx DBTX, name string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO genres(name) VALUES (?)`, name)
	return err
}

func TestWithTx(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name    string
		fn      func(ctx context.Context, tx DBTX) error
		wantErr error
		rows    int
	}{
		{
			name: "commits every statement",
			fn: func(ctx context.Context, tx DBTX) error {
				if err := insertGenre(ctx, tx, "Rock"); err != nil {
					return err
				}
				return insertGenre(ctx, tx, "Jazz")
			},
			rows: 2,
		},
		{
			name: "rolls back on error",
			fn: func(ctx context.Context, tx DBTX) error {
				if err := insertGenre(ctx, tx, "Rock"); err != nil {
					return err
				}
				return boom
			},
			wantErr: boom,
		},
		{
			name: "constraint failure undoes earlier statements",
			fn: func(ctx context.Context, tx DBTX) error {
				if err := insertGenre(ctx, tx, "Pop"); err != nil {
					return err
				}
				return insertGenre(ctx, tx, "Pop")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := openGenres(t)
			err := WithTx(context.Background(), db, nil, tt.fn)
			if tt.rows > 0 {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Equal(t, tt.rows, genreCount(t, db))
		})
	}
}

func TestWithTx_PanicRollsBackAndPropagates(t *testing.T) {
	db := openGenres(t)

	assert.PanicsWithValue(t, "kaput", func() {
		_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
			require.NoError(t, insertGenre(ctx, tx, "Folk"))
			panic("kaput")
		})
	})
	assert.Equal(t, 0, genreCount(t, db))
}

func TestWithTx_BeginError(t *testing.T) {
	db := openGenres(t)
	require.NoError(t, db.Close())

	err := WithTx(context.Background(), db, nil, func(context.Context, DBTX) error { return nil })
	assert.ErrorContains(t, err, "begin tx")
}
