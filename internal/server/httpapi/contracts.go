package httpapi

import (
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/indiec/internal/common"
	"github.com/dmitrijs2005/indiec/internal/server/models"
)

const defaultExpiringDays = 30

type contractRequest struct {
	ArtistID  int64                    `json:"artist_id" validate:"required,gt=0"`
	Type      string                   `json:"type" validate:"required,oneof=Contrato Licencia Exclusivo Colaboracion"`
	StartDate string                   `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   *string                  `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	Cost      float64                  `json:"cost" validate:"gte=0"`
	StateID   int64                    `json:"state_id" validate:"omitempty,gt=0"`
	ManagerID *int64                   `json:"manager_id" validate:"omitempty,gt=0"`
	Document  *models.ContractDocument `json:"document"`
}

type contractPatchRequest struct {
	Type      *string                  `json:"type" validate:"omitempty,oneof=Contrato Licencia Exclusivo Colaboracion"`
	StartDate *string                  `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate   *string                  `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	Cost      *float64                 `json:"cost" validate:"omitempty,gte=0"`
	StateID   *int64                   `json:"state_id" validate:"omitempty,gt=0"`
	ManagerID *int64                   `json:"manager_id" validate:"omitempty,gt=0"`
	Document  *models.ContractDocument `json:"document"`
}

func (s *Server) createContract(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ident, _ := identityFrom(ctx)

	var req contractRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(s.logger, w, r, err)
		return
	}

	contract := &models.Contract{
		ArtistID:  req.ArtistID,
		Type:      models.ContractType(req.Type),
		EndDate:   parseDate(req.EndDate),
		Cost:      models.RoundMoney(req.Cost),
		StateID:   req.StateID,
		ManagerID: req.ManagerID,
	}
	if start := parseDate(&req.StartDate); start != nil {
		contract.StartDate = *start
	}
	// Contracts are managed by the caller unless another manager is named.
	if contract.ManagerID == nil {
		contract.ManagerID = &ident.UserID
	}

	view, err := s.Contracts.Create(ctx, ident.UserID, contract, req.Document)
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}
	writeCreated(w, "contract created", view)
}

func (s *Server) getContract(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}

	view, err := s.Contracts.Get(ctx, id)
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}
	writeOK(w, view)
}

func (s *Server) updateContract(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ident, _ := identityFrom(ctx)
	id, err := pathID(r, "id")
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}

	var req contractPatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(s.logger, w, r, err)
		return
	}

	patch := models.ContractPatch{
		StartDate: parseDate(req.StartDate),
		EndDate:   parseDate(req.EndDate),
		Cost:      req.Cost,
		StateID:   req.StateID,
		ManagerID: req.ManagerID,
	}
	if req.Type != nil {
		t := models.ContractType(*req.Type)
		patch.Type = &t
	}

	view, err := s.Contracts.Update(ctx, ident.UserID, id, patch, req.Document)
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}
	writeOK(w, view)
}

func (s *Server) listContracts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter := models.ContractFilter{Type: models.ContractType(r.URL.Query().Get("type"))}
	if filter.Type != "" && !filter.Type.Valid() {
		writeError(s.logger, w, r, common.NewValidationError(
			common.FieldError{Field: "type", Message: "is not a known contract type"}))
		return
	}
	err := queryInt64s(r, map[string]*int64{
		"artist_id":  &filter.ArtistID,
		"state_id":   &filter.StateID,
		"manager_id": &filter.ManagerID,
	})
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}

	page := pageRequest(r)
	contracts, total, err := s.Contracts.List(ctx, filter, page)
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}
	writePage(w, contracts, page, total)
}

func (s *Server) expiringContracts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	days := defaultExpiringDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			writeError(s.logger, w, r, common.NewValidationError(
				common.FieldError{Field: "days", Message: "must be an integer"}))
			return
		}
		days = v
	}

	page := pageRequest(r)
	contracts, total, err := s.Contracts.Expiring(ctx, days, page)
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}
	writePage(w, contracts, page, total)
}
