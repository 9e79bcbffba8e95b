package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/indiec/internal/common"
	"github.com/dmitrijs2005/indiec/internal/dbx"
	"github.com/dmitrijs2005/indiec/internal/logging"
	"github.com/dmitrijs2005/indiec/internal/server/documents"
	"github.com/dmitrijs2005/indiec/internal/server/hybrid"
	"github.com/dmitrijs2005/indiec/internal/server/models"
)

// ContractView is a contract row joined with its document.
type ContractView struct {
	*models.Contract
	Document *models.ContractDocument `json:"document,omitempty"`
}

type ContractService struct {
	Deps
	docs   documents.Collection[models.ContractDocument]
	logger logging.Logger
	now    func() time.Time
}

func NewContractService(d Deps) *ContractService {
	return &ContractService{
		Deps:   d,
		docs:   documents.NewCollection[models.ContractDocument](d.Docs, documents.Contracts),
		logger: d.Logger.With("module", "contracts"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func validateContract(c *models.Contract) error {
	var errs []common.FieldError
	if !c.Type.Valid() {
		errs = append(errs, common.FieldError{Field: "type", Message: "is not supported"})
	}
	if c.Cost < 0 {
		errs = append(errs, common.FieldError{Field: "cost", Message: "must not be negative"})
	}
	if c.EndDate != nil && c.EndDate.Before(c.StartDate) {
		errs = append(errs, common.FieldError{Field: "end_date", Message: "must not be before start_date"})
	}
	if len(errs) > 0 {
		return common.NewValidationError(errs...)
	}
	return nil
}

// Create inserts the contract row and its document. The document history
// starts with a creation entry.
func (s *ContractService) Create(ctx context.Context, actorID int64, contract *models.Contract, doc *models.ContractDocument) (*ContractView, error) {
	if err := validateContract(contract); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = &models.ContractDocument{}
	}
	doc.History = []models.ContractChange{{At: s.now(), ByUserID: actorID, Description: "contract created"}}

	plan := hybrid.NewPlan().
		Relational("contract", func(ctx context.Context, tx dbx.DBTX, _ hybrid.Results) (any, error) {
			return s.Repos.Contracts(tx).Create(ctx, contract)
		}).
		Compensate("contract", func(ctx context.Context, tx dbx.DBTX, rel hybrid.Results) error {
			created, _ := hybrid.Get[*models.Contract](rel, "contract")
			_, err := s.Repos.Contracts(tx).Delete(ctx, created.ID)
			return err
		}).
		Document("document", func(ctx context.Context, rel hybrid.Results) (any, error) {
			created, _ := hybrid.Get[*models.Contract](rel, "contract")
			return s.docs.Upsert(ctx, created.ID, doc)
		})

	res, err := s.Hybrid.Execute(ctx, plan)
	if err != nil {
		return nil, err
	}
	created, _ := hybrid.Get[*models.Contract](res.Relational, "contract")
	stored, _ := hybrid.Get[*models.ContractDocument](res.Document, "document")
	return &ContractView{Contract: created, Document: stored}, nil
}

func (s *ContractService) Get(ctx context.Context, id int64) (*ContractView, error) {
	c, err := s.Repos.Contracts(s.DB).FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	doc, err := s.docs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ContractView{Contract: c, Document: doc}, nil
}

// Update applies patch and doc, appending a history entry that names the
// changed fields.
func (s *ContractService) Update(ctx context.Context, actorID, id int64, patch models.ContractPatch, doc *models.ContractDocument) (*ContractView, error) {
	if patch.Type != nil && !patch.Type.Valid() {
		return nil, common.NewValidationError(common.FieldError{Field: "type", Message: "is not supported"})
	}
	if patch.Cost != nil && *patch.Cost < 0 {
		return nil, common.NewValidationError(common.FieldError{Field: "cost", Message: "must not be negative"})
	}

	plan := hybrid.NewPlan().
		Relational("contract", func(ctx context.Context, tx dbx.DBTX, _ hybrid.Results) (any, error) {
			return s.Repos.Contracts(tx).Update(ctx, id, patch)
		}).
		Document("document", func(ctx context.Context, _ hybrid.Results) (any, error) {
			current, err := s.docs.Get(ctx, id)
			if err != nil {
				return nil, err
			}
			next := &models.ContractDocument{}
			if doc != nil {
				*next = *doc
			}
			if current != nil {
				next.History = current.History
			}
			next.History = append(next.History, models.ContractChange{
				At:          s.now(),
				ByUserID:    actorID,
				Description: describeContractChange(patch, doc),
			})
			return s.docs.Upsert(ctx, id, next)
		})

	res, err := s.Hybrid.Execute(ctx, plan)
	if err != nil {
		return nil, err
	}
	c, _ := hybrid.Get[*models.Contract](res.Relational, "contract")
	stored, _ := hybrid.Get[*models.ContractDocument](res.Document, "document")
	return &ContractView{Contract: c, Document: stored}, nil
}

func describeContractChange(p models.ContractPatch, doc *models.ContractDocument) string {
	var fields []string
	add := func(set bool, name string) {
		if set {
			fields = append(fields, name)
		}
	}
	add(p.Type != nil, "type")
	add(p.StartDate != nil, "start_date")
	add(p.EndDate != nil, "end_date")
	add(p.Cost != nil, "cost")
	add(p.StateID != nil, "state_id")
	add(p.ManagerID != nil, "manager_id")
	add(doc != nil, "document")
	if len(fields) == 0 {
		return "contract touched"
	}
	return "updated " + strings.Join(fields, ", ")
}

func (s *ContractService) List(ctx context.Context, filter models.ContractFilter, page models.PageRequest) ([]models.Contract, int64, error) {
	return s.Repos.Contracts(s.DB).FindMany(ctx, filter, page)
}

// Expiring lists contracts ending within the next days days.
func (s *ContractService) Expiring(ctx context.Context, days int, page models.PageRequest) ([]models.Contract, int64, error) {
	if days < 1 || days > 3650 {
		return nil, 0, common.NewValidationError(common.FieldError{Field: "days", Message: fmt.Sprintf("must be between 1 and %d", 3650)})
	}
	until := s.now().AddDate(0, 0, days)
	return s.Repos.Contracts(s.DB).FindMany(ctx, models.ContractFilter{EndingBefore: &until}, page)
}
