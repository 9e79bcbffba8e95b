package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/indiec/internal/common"
	"github.com/dmitrijs2005/indiec/internal/server/models"
	"github.com/dmitrijs2005/indiec/internal/server/services"
	"github.com/dmitrijs2005/indiec/internal/server/uploads"
)

type profileRequest struct {
	FirstName *string             `json:"first_name" validate:"omitempty,min=1,max=100"`
	LastName  *string             `json:"last_name" validate:"omitempty,min=1,max=100"`
	Email     *string             `json:"email" validate:"omitempty,email,max=255"`
	Phone     *string             `json:"phone" validate:"omitempty,max=30"`
	BirthDate *string             `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	SexID     *int64              `json:"sex_id" validate:"omitempty,gt=0"`
	CountryID *int64              `json:"country_id" validate:"omitempty,gt=0"`
	Profile   *models.UserProfile `json:"profile"`
}

func (s *Server) requireAdmin(ctx context.Context) error {
	id, _ := identityFrom(ctx)
	ok, err := s.Users.IsAdmin(ctx, id.UserID)
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrorForbidden
	}
	return nil
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.requireAdmin(ctx); err != nil {
		writeError(s.logger, w, r, err)
		return
	}

	var filter models.UserFilter
	err := queryInt64s(r, map[string]*int64{
		"state_id":   &filter.StateID,
		"role_id":    &filter.RoleID,
		"country_id": &filter.CountryID,
	})
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}

	page := pageRequest(r)
	users, total, err := s.Users.List(ctx, filter, page)
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}
	writePage(w, users, page, total)
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}
	actor, _ := identityFrom(ctx)

	user, err := s.Users.Get(ctx, actor.UserID, id)
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}
	writeOK(w, user)
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}
	actor, _ := identityFrom(ctx)

	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(s.logger, w, r, err)
		return
	}

	user, err := s.Users.UpdateProfile(ctx, actor.UserID, id, services.ProfileUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		BirthDate: parseDate(req.BirthDate),
		SexID:     req.SexID,
		CountryID: req.CountryID,
		Profile:   req.Profile,
	})
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "profile updated", Data: user})
}

func (s *Server) uploadPhoto(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}
	actor, _ := identityFrom(ctx)

	upload, err := s.saveUpload(w, r, "users")
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}

	profile, err := s.Users.SetPhoto(ctx, actor.UserID, id, upload.Key)
	if err != nil {
		s.discardUpload(ctx, upload)
		writeError(s.logger, w, r, err)
		return
	}
	writeOK(w, map[string]any{"upload": upload, "profile": profile})
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}
	actor, _ := identityFrom(ctx)

	if err := s.Users.Delete(ctx, actor.UserID, id); err != nil {
		writeError(s.logger, w, r, err)
		return
	}
	writeMessage(w, "user deleted")
}

// saveUpload stores the multipart "file" field as an image under prefix.
func (s *Server) saveUpload(w http.ResponseWriter, r *http.Request, prefix string) (*uploads.Upload, error) {
	if s.Uploads == nil {
		return nil, errors.New("uploads are not configured")
	}

	// Room for the multipart framing around the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, s.UploadMaxBytes+64<<10)
	file, _, err := r.FormFile("file")
	if err != nil {
		var mbe *http.MaxBytesError
		switch {
		case errors.As(err, &mbe):
			return nil, uploads.ErrTooLarge
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
			return nil, common.NewValidationError(common.FieldError{Field: "file", Message: "is required"})
		}
		return nil, common.NewValidationError(common.FieldError{Field: "file", Message: "malformed multipart body"})
	}
	defer file.Close()

	return uploads.SaveImage(r.Context(), s.Uploads, prefix, file, s.UploadMaxBytes)
}

// discardUpload removes an upload whose owning record could not be updated.
func (s *Server) discardUpload(ctx context.Context, u *uploads.Upload) {
	if err := s.Uploads.Delete(ctx, u.Key); err != nil {
		s.logger.Warn(ctx, "failed to remove orphaned upload", "key", u.Key, "error", err)
	}
}
