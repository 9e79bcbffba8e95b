package dbx

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/dmitrijs2005/indiec/internal/common"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateError_Postgres(t *testing.T) {
	tests := []struct {
		name       string
		pgErr      *pgconn.PgError
		wantKind   common.ConstraintKind
		wantFields []string
		conflict   bool
	}{
		{
			name:       "unique from detail",
			pgErr:      &pgconn.PgError{Code: "23505", ConstraintName: "users_email_hash_key", Detail: "Key (email_hash)=(abc) already exists."},
			wantKind:   common.ConstraintUnique,
			wantFields: []string{"email_hash"},
			conflict:   true,
		},
		{
			name:       "composite unique",
			pgErr:      &pgconn.PgError{Code: "23505", Detail: "Key (cart_id, product_id)=(1, 2) already exists."},
			wantKind:   common.ConstraintUnique,
			wantFields: []string{"cart_id", "product_id"},
			conflict:   true,
		},
		{
			name:       "foreign key",
			pgErr:      &pgconn.PgError{Code: "23503", Detail: "Key (genre_id)=(99) is not present in table \"genres\"."},
			wantKind:   common.ConstraintForeignKey,
			wantFields: []string{"genre_id"},
		},
		{
			name:       "not null uses column name",
			pgErr:      &pgconn.PgError{Code: "23502", ColumnName: "title"},
			wantKind:   common.ConstraintNotNull,
			wantFields: []string{"title"},
		},
		{
			name:     "check",
			pgErr:    &pgconn.PgError{Code: "23514", ConstraintName: "sale_lines_quantity_check"},
			wantKind: common.ConstraintCheck,
		},
		{
			name:     "enum",
			pgErr:    &pgconn.PgError{Code: "22P02"},
			wantKind: common.ConstraintEnum,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := TranslateError(fmt.Errorf("exec: %w", tt.pgErr))

			var cv *common.ConstraintViolation
			require.ErrorAs(t, err, &cv)
			assert.Equal(t, tt.wantKind, cv.Kind)
			assert.Equal(t, tt.wantFields, cv.Fields)
			assert.ErrorIs(t, err, common.ErrorConstraint)
			assert.Equal(t, tt.conflict, errors.Is(err, common.ErrorConflict))
		})
	}
}

func TestTranslateError_Passthrough(t *testing.T) {
	assert.NoError(t, TranslateError(nil))

	plain := errors.New("connection reset")
	assert.Same(t, plain, TranslateError(plain))

	other := &pgconn.PgError{Code: "40001"}
	assert.Same(t, other, TranslateError(other))
}

func TestTranslateError_Sqlite(t *testing.T) {
	db := openGenres(t)
	_, err := db.Exec(`CREATE TABLE uniq (id INTEGER PRIMARY KEY, email TEXT UNIQUE NOT NULL)`)
	require.NoError(t, err)

	err = WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO uniq(email) VALUES ('a@x')`); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO uniq(email) VALUES ('a@x')`)
		return TranslateError(err)
	})

	var cv *common.ConstraintViolation
	require.ErrorAs(t, err, &cv)
	assert.Equal(t, common.ConstraintUnique, cv.Kind)
	assert.Equal(t, []string{"email"}, cv.Fields)
}

func TestTranslateError_SqliteMessages(t *testing.T) {
	tests := []struct {
		msg    string
		kind   common.ConstraintKind
		fields []string
	}{
		{msg: "UNIQUE constraint failed: users.email (2067)", kind: common.ConstraintUnique, fields: []string{"email"}},
		{msg: "UNIQUE constraint failed: cart_items.cart_id, cart_items.product_id (2067)", kind: common.ConstraintUnique, fields: []string{"cart_id", "product_id"}},
		{msg: "NOT NULL constraint failed: albums.title (1299)", kind: common.ConstraintNotNull, fields: []string{"title"}},
		{msg: "FOREIGN KEY constraint failed (787)", kind: common.ConstraintForeignKey},
		{msg: "CHECK constraint failed: price_positive", kind: common.ConstraintCheck, fields: []string{"price_positive"}},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			var cv *common.ConstraintViolation
			require.ErrorAs(t, TranslateError(errors.New(tt.msg)), &cv)
			assert.Equal(t, tt.kind, cv.Kind)
			assert.Equal(t, tt.fields, cv.Fields)
		})
	}
}
