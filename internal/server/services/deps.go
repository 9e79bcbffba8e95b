// Package services contains server-side business logic. Services combine
// relational repositories, document collections and the hybrid coordinator
// into the operations exposed by the HTTP layer.
package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dmitrijs2005/indiec/internal/common"
	"github.com/dmitrijs2005/indiec/internal/dbx"
	"github.com/dmitrijs2005/indiec/internal/logging"
	"github.com/dmitrijs2005/indiec/internal/server/documents"
	"github.com/dmitrijs2005/indiec/internal/server/hybrid"
	"github.com/dmitrijs2005/indiec/internal/server/models"
	"github.com/dmitrijs2005/indiec/internal/server/repositories/repomanager"
)

// Deps are the collaborators shared by every service.
type Deps struct {
	DB     *sql.DB
	Repos  repomanager.RepositoryManager
	Docs   documents.Store
	Hybrid *hybrid.Coordinator
	Audit  *AuditService
	Logger logging.Logger
}

// bestEffort swallows a document failure after commit. Callers use it where
// the relational change is what matters and a stale or orphaned document is
// only logged.
func bestEffort(ctx context.Context, logger logging.Logger, err error, args ...any) error {
	var perr *hybrid.PartialFailureError
	if errors.As(err, &perr) {
		logger.Warn(ctx, "document step failed after relational commit", append(args, "error", perr.Err)...)
		return nil
	}
	return err
}

type deleter interface {
	Delete(ctx context.Context, id int64) (bool, error)
}

// deleteOp is a relational step that deletes id and fails with
// common.ErrorNotFound when no row was removed.
func deleteOp(id int64, repo func(tx dbx.DBTX) deleter) hybrid.RelationalOp {
	return func(ctx context.Context, tx dbx.DBTX, _ hybrid.Results) (any, error) {
		ok, err := repo(tx).Delete(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, common.ErrorNotFound
		}
		return ok, nil
	}
}

func (d Deps) isAdmin(ctx context.Context, userID int64) (bool, error) {
	u, err := d.Repos.Users(d.DB).FindByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return u.RoleID == models.RoleAdmin, nil
}

// unitPrice returns the catalog price of an album or song. Merchandising has
// no relational price and must be priced by the caller.
func (d Deps) unitPrice(ctx context.Context, db dbx.DBTX, productType models.ProductType, productID int64, explicit *float64) (float64, error) {
	switch productType {
	case models.ProductAlbum:
		a, err := d.Repos.Albums(db).FindByID(ctx, productID)
		if err != nil {
			return 0, err
		}
		return a.Price, nil
	case models.ProductSong:
		s, err := d.Repos.Songs(db).FindByID(ctx, productID)
		if err != nil {
			return 0, err
		}
		return s.Price, nil
	case models.ProductMerchandising:
		if explicit == nil || *explicit < 0 {
			return 0, common.NewValidationError(common.FieldError{Field: "unit_price", Message: "is required for merchandising"})
		}
		return *explicit, nil
	}
	return 0, common.NewValidationError(common.FieldError{Field: "product_type", Message: "is not supported"})
}
