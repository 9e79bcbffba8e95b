package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/indiec/internal/common"
	"github.com/dmitrijs2005/indiec/internal/logging"
	"github.com/dmitrijs2005/indiec/internal/server/auth"
	"github.com/dmitrijs2005/indiec/internal/server/models"
	"github.com/dmitrijs2005/indiec/internal/server/services"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

// Each fake embeds its interface so unexercised methods panic loudly.

type fakeUsers struct {
	UserService
	admins   map[int64]bool
	existing map[string]bool
	photos   map[int64]string
	lastList models.UserFilter
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{admins: map[int64]bool{}, existing: map[string]bool{}, photos: map[int64]string{}}
}

func (f *fakeUsers) Register(_ context.Context, in services.RegisterInput) (*services.UserView, error) {
	if f.existing[in.Email] {
		return nil, common.ErrorConflict
	}
	f.existing[in.Email] = true
	return &services.UserView{User: &models.User{ID: 7, Email: in.Email, FirstName: in.FirstName, RoleID: models.RoleCustomer}}, nil
}

func (f *fakeUsers) Login(_ context.Context, email, password string) (*services.LoginResult, error) {
	if !f.existing[email] || password != "correct-horse" {
		return nil, common.ErrorUnauthorized
	}
	return &services.LoginResult{Token: "tok", ExpiresAt: time.Now().Add(time.Hour), User: &models.User{ID: 7, Email: email}}, nil
}

func (f *fakeUsers) IsAdmin(_ context.Context, id int64) (bool, error) { return f.admins[id], nil }

func (f *fakeUsers) Get(_ context.Context, actorID, id int64) (*services.UserView, error) {
	if actorID != id && !f.admins[actorID] {
		return nil, common.ErrorForbidden
	}
	return &services.UserView{User: &models.User{ID: id, Email: "someone@example.com"}}, nil
}

func (f *fakeUsers) SetPhoto(_ context.Context, actorID, id int64, path string) (*models.UserProfile, error) {
	if actorID != id {
		return nil, common.ErrorForbidden
	}
	f.photos[id] = path
	return &models.UserProfile{UserID: id, PhotoPath: path}, nil
}

func (f *fakeUsers) List(_ context.Context, filter models.UserFilter, _ models.PageRequest) ([]models.User, int64, error) {
	f.lastList = filter
	return []models.User{{ID: 1}, {ID: 2}}, 12, nil
}

type fakeArtists struct {
	ArtistService
	created *models.Artist
}

func (f *fakeArtists) Create(_ context.Context, a *models.Artist, p *models.ArtistProfile) (*services.ArtistView, error) {
	a.ID = 3
	f.created = a
	return &services.ArtistView{Artist: a, Profile: p}, nil
}

func (f *fakeArtists) List(_ context.Context, _ models.ArtistFilter, _ models.PageRequest) ([]models.Artist, int64, error) {
	return nil, 0, nil
}

type fakeCarts struct {
	CartService
	checkoutIn services.CheckoutInput
}

func (f *fakeCarts) Checkout(_ context.Context, userID int64, in services.CheckoutInput) (*models.Sale, error) {
	f.checkoutIn = in
	return &models.Sale{ID: 11, UserID: userID, Total: 24.37, PaymentStatus: models.PaymentPending}, nil
}

type fakeSongs struct {
	SongService
	play services.PlayInput
}

func (f *fakeSongs) RecordPlay(_ context.Context, id int64, in services.PlayInput) (*models.SongContent, error) {
	f.play = in
	plays := int64(1)
	return &models.SongContent{SongID: id, Stats: &models.PlayStats{Plays: &plays}}, nil
}

type fakeCatalogs struct{}

func (fakeCatalogs) List(_ context.Context, name string) ([]models.CatalogItem, error) {
	return []models.CatalogItem{{ID: 1, Name: name + "-1"}}, nil
}

type fakeAudit struct {
	AuditService
	filter models.AuditFilter
}

func (f *fakeAudit) List(_ context.Context, filter models.AuditFilter, _ models.PageRequest) ([]models.AuditEntry, int64, error) {
	f.filter = filter
	return []models.AuditEntry{{Action: models.AuditLoginSuccess, RiskLevel: models.RiskLow}}, 1, nil
}

func (f *fakeAudit) Metrics(_ context.Context, from, to time.Time) (*models.SecurityMetrics, error) {
	return &models.SecurityMetrics{From: from, To: to, Total: 4}, nil
}

// --- helpers ---

type testAPI struct {
	srv     *Server
	handler http.Handler
	users   *fakeUsers
	artists *fakeArtists
	carts   *fakeCarts
	songs   *fakeSongs
	audit   *fakeAudit
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	api := &testAPI{
		users:   newFakeUsers(),
		artists: &fakeArtists{},
		carts:   &fakeCarts{},
		songs:   &fakeSongs{},
		audit:   &fakeAudit{},
	}
	srv := NewServer(testSecret, logging.Nop())
	srv.Users = api.users
	srv.Artists = api.artists
	srv.Carts = api.carts
	srv.Songs = api.songs
	srv.Catalogs = fakeCatalogs{}
	srv.Audit = api.audit
	srv.CORSOrigins = []string{"*"}
	api.srv = srv
	api.handler = srv.Handler(nil)
	return api
}

func token(t *testing.T, userID int64, validity time.Duration) string {
	t.Helper()
	tok, err := auth.GenerateToken(userID, "user@example.com", testSecret, validity)
	require.NoError(t, err)
	return tok
}

func (a *testAPI) do(t *testing.T, method, path, tok string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+tok)
	}
	return a.serve(t, req)
}

func (a *testAPI) serve(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}
