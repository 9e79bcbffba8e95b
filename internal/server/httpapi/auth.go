package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/indiec/internal/common"
	"github.com/dmitrijs2005/indiec/internal/server/models"
	"github.com/dmitrijs2005/indiec/internal/server/services"
)

const dateLayout = "2006-01-02"

type registerRequest struct {
	FirstName string              `json:"first_name" validate:"required,max=100"`
	LastName  string              `json:"last_name" validate:"required,max=100"`
	Email     string              `json:"email" validate:"required,email,max=255"`
	Password  string              `json:"password" validate:"required,min=8,max=128"`
	Phone     *string             `json:"phone" validate:"omitempty,max=30"`
	BirthDate *string             `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	SexID     *int64              `json:"sex_id" validate:"omitempty,gt=0"`
	CountryID *int64              `json:"country_id" validate:"omitempty,gt=0"`
	RoleID    int64               `json:"role_id" validate:"omitempty,oneof=2 3 4"`
	Profile   *models.UserProfile `json:"profile"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=128"`
}

// parseDate parses an optional yyyy-mm-dd value already checked by the
// validator.
func parseDate(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, *s)
	if err != nil {
		return nil
	}
	return &t
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(s.logger, w, r, err)
		return
	}

	user, err := s.Users.Register(ctx, services.RegisterInput{
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Email:     strings.TrimSpace(req.Email),
		Password:  req.Password,
		Phone:     req.Phone,
		BirthDate: parseDate(req.BirthDate),
		SexID:     req.SexID,
		CountryID: req.CountryID,
		RoleID:    req.RoleID,
		Profile:   req.Profile,
	})
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}

	writeCreated(w, "user registered", user)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(s.logger, w, r, err)
		return
	}

	res, err := s.Users.Login(ctx, strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "login successful", Data: res})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, _ := identityFrom(ctx)

	user, err := s.Users.Get(ctx, id.UserID, id.UserID)
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}
	writeOK(w, user)
}

func (s *Server) changePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, _ := identityFrom(ctx)

	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(s.logger, w, r, err)
		return
	}
	if req.CurrentPassword == req.NewPassword {
		writeError(s.logger, w, r, common.NewValidationError(
			common.FieldError{Field: "new_password", Message: "must differ from the current password"}))
		return
	}

	if err := s.Users.ChangePassword(ctx, id.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		writeError(s.logger, w, r, err)
		return
	}
	writeMessage(w, "password changed")
}
