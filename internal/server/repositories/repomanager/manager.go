package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/indiec/internal/dbx"
	"github.com/dmitrijs2005/indiec/internal/server/repositories/albums"
	"github.com/dmitrijs2005/indiec/internal/server/repositories/artists"
	"github.com/dmitrijs2005/indiec/internal/server/repositories/carts"
	"github.com/dmitrijs2005/indiec/internal/server/repositories/catalogs"
	"github.com/dmitrijs2005/indiec/internal/server/repositories/contracts"
	"github.com/dmitrijs2005/indiec/internal/server/repositories/sales"
	"github.com/dmitrijs2005/indiec/internal/server/repositories/songs"
	"github.com/dmitrijs2005/indiec/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Artists(db dbx.DBTX) artists.Repository
	Albums(db dbx.DBTX) albums.Repository
	Songs(db dbx.DBTX) songs.Repository
	Carts(db dbx.DBTX) carts.Repository
	Sales(db dbx.DBTX) sales.Repository
	Contracts(db dbx.DBTX) contracts.Repository
	Catalogs(db dbx.DBTX) catalogs.Repository
}
