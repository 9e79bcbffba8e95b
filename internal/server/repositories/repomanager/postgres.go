// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/indiec/internal/dbx"
	"github.com/dmitrijs2005/indiec/internal/server/migrations"
	"github.com/dmitrijs2005/indiec/internal/server/repositories/albums"
	"github.com/dmitrijs2005/indiec/internal/server/repositories/artists"
	"github.com/dmitrijs2005/indiec/internal/server/repositories/carts"
	"github.com/dmitrijs2005/indiec/internal/server/repositories/catalogs"
	"github.com/dmitrijs2005/indiec/internal/server/repositories/contracts"
	"github.com/dmitrijs2005/indiec/internal/server/repositories/sales"
	"github.com/dmitrijs2005/indiec/internal/server/repositories/songs"
	"github.com/dmitrijs2005/indiec/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook. The users codec is shared by every
// users repository it hands out.
type PostgresRepositoryManager struct {
	codec *users.Codec
}

// Users returns a users.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db, m.codec)
}

func (m *PostgresRepositoryManager) Artists(db dbx.DBTX) artists.Repository {
	return artists.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Albums(db dbx.DBTX) albums.Repository {
	return albums.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Songs(db dbx.DBTX) songs.Repository {
	return songs.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Carts(db dbx.DBTX) carts.Repository {
	return carts.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Sales(db dbx.DBTX) sales.Repository {
	return sales.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Contracts(db dbx.DBTX) contracts.Repository {
	return contracts.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Catalogs(db dbx.DBTX) catalogs.Repository {
	return catalogs.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
// A nil codec stores user fields in plaintext.
func NewPostgresRepositoryManager(codec *users.Codec) RepositoryManager {
	if codec == nil {
		codec = users.NewCodec(nil, nil)
	}
	return &PostgresRepositoryManager{codec: codec}
}
