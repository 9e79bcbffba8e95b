package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"

	"github.com/dmitrijs2005/indiec/internal/common"
	"github.com/dmitrijs2005/indiec/internal/logging"
	"github.com/dmitrijs2005/indiec/internal/server/hybrid"
	"github.com/dmitrijs2005/indiec/internal/server/models"
	"github.com/dmitrijs2005/indiec/internal/server/uploads"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// maxJSONBody caps JSON request bodies.
const maxJSONBody = 1 << 20

// envelope is the shape of every API response.
type envelope struct {
	Success    bool                `json:"success"`
	Message    string              `json:"message,omitempty"`
	Data       any                 `json:"data,omitempty"`
	Pagination *models.Pagination  `json:"pagination,omitempty"`
	Errors     []common.FieldError `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

func writeCreated(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusCreated, envelope{Success: true, Message: message, Data: data})
}

func writeMessage(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: message})
}

func writePage[T any](w http.ResponseWriter, items []T, page models.PageRequest, total int64) {
	if items == nil {
		items = []T{}
	}
	p := models.NewPagination(page, total)
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: items, Pagination: &p})
}

func writeFailure(w http.ResponseWriter, status int, message string, fields ...common.FieldError) {
	writeJSON(w, status, envelope{Success: false, Message: message, Errors: fields})
}

// writeError maps a service error onto a status code and a client-safe
// message. Anything unrecognised is logged with the request line and client
// address and reported as a 500 without internal detail.
func writeError(logger logging.Logger, w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve *common.ValidationError
		cv *common.ConstraintViolation
		pf *hybrid.PartialFailureError
	)

	switch {
	case errors.As(err, &ve):
		writeFailure(w, http.StatusBadRequest, "validation failed", ve.Fields...)
	case errors.As(err, &cv):
		fields := make([]common.FieldError, 0, len(cv.Fields))
		for _, f := range cv.Fields {
			fields = append(fields, common.FieldError{Field: f, Message: string(cv.Kind) + " constraint violated"})
		}
		if cv.Kind == common.ConstraintUnique {
			writeFailure(w, http.StatusConflict, "resource already exists", fields...)
			return
		}
		writeFailure(w, http.StatusBadRequest, "constraint violation", fields...)
	case errors.Is(err, common.ErrorConflict):
		writeFailure(w, http.StatusConflict, "resource already exists")
	case errors.Is(err, common.ErrorValidation):
		writeFailure(w, http.StatusBadRequest, "validation failed")
	case errors.Is(err, common.ErrMissingToken), errors.Is(err, common.ErrTokenExpired):
		writeFailure(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, common.ErrInvalidToken):
		writeFailure(w, http.StatusForbidden, err.Error())
	case errors.Is(err, common.ErrorUnauthorized):
		writeFailure(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, common.ErrorForbidden):
		writeFailure(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, common.ErrorNotFound):
		writeFailure(w, http.StatusNotFound, "not found")
	case errors.Is(err, uploads.ErrTooLarge):
		writeFailure(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, uploads.ErrUnsupportedType), errors.Is(err, uploads.ErrEmpty):
		writeFailure(w, http.StatusBadRequest, err.Error(), common.FieldError{Field: "file", Message: err.Error()})
	default:
		ctx := r.Context()
		args := []any{
			"error", err,
			"method", r.Method,
			"url", r.URL.String(),
			"ip", clientIP(r),
			"request_id", middleware.GetReqID(ctx),
		}
		if errors.As(err, &pf) {
			args = append(args, "operation", pf.Operation, "compensated", pf.Compensated)
		}
		logger.Error(ctx, "request failed", args...)
		writeFailure(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeJSON reads a JSON body into dst and validates it.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return common.NewValidationError(common.FieldError{Field: "body", Message: "too large"})
		}
		return common.NewValidationError(common.FieldError{Field: "body", Message: "malformed JSON"})
	}
	return validateStruct(dst)
}

// pathID parses a positive integer URL parameter.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, common.NewValidationError(common.FieldError{Field: name, Message: "must be a positive integer"})
	}
	return id, nil
}

// queryInt64 returns 0 for an absent parameter.
func queryInt64(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, common.NewValidationError(common.FieldError{Field: name, Message: "must be a non-negative integer"})
	}
	return v, nil
}

// queryInt64s reads several optional integer parameters into their
// destinations and reports every malformed one.
func queryInt64s(r *http.Request, params map[string]*int64) error {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var fields []common.FieldError
	for _, name := range names {
		v, err := queryInt64(r, name)
		if err != nil {
			fields = append(fields, common.FieldError{Field: name, Message: "must be a non-negative integer"})
			continue
		}
		*params[name] = v
	}
	if len(fields) > 0 {
		return common.NewValidationError(fields...)
	}
	return nil
}

// pageRequest reads page and limit, clamping them into range.
func pageRequest(r *http.Request) models.PageRequest {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return models.NewPageRequest(page, limit)
}
