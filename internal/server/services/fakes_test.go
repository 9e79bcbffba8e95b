package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/indiec/internal/common"
	"github.com/dmitrijs2005/indiec/internal/cryptox"
	"github.com/dmitrijs2005/indiec/internal/dbx"
	"github.com/dmitrijs2005/indiec/internal/logging"
	"github.com/dmitrijs2005/indiec/internal/server/documents"
	"github.com/dmitrijs2005/indiec/internal/server/hybrid"
	"github.com/dmitrijs2005/indiec/internal/server/models"
	"github.com/dmitrijs2005/indiec/internal/server/repositories/albums"
	"github.com/dmitrijs2005/indiec/internal/server/repositories/artists"
	"github.com/dmitrijs2005/indiec/internal/server/repositories/carts"
	"github.com/dmitrijs2005/indiec/internal/server/repositories/catalogs"
	"github.com/dmitrijs2005/indiec/internal/server/repositories/contracts"
	"github.com/dmitrijs2005/indiec/internal/server/repositories/sales"
	"github.com/dmitrijs2005/indiec/internal/server/repositories/songs"
	"github.com/dmitrijs2005/indiec/internal/server/repositories/users"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- in-memory repositories; the transaction handle is ignored ---

type fakeStore struct {
	mu     sync.Mutex
	nextID int64

	users     map[int64]*models.User
	artists   map[int64]*models.Artist
	albums    map[int64]*models.Album
	songs     map[int64]*models.Song
	contracts map[int64]*models.Contract
	carts     map[int64]*models.Cart
	items     map[int64]*models.CartItem
	sales     map[int64]*models.Sale
	catalogs  map[string][]models.CatalogItem

	catalogCalls int
	failCreate   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:     map[int64]*models.User{},
		artists:   map[int64]*models.Artist{},
		albums:    map[int64]*models.Album{},
		songs:     map[int64]*models.Song{},
		contracts: map[int64]*models.Contract{},
		carts:     map[int64]*models.Cart{},
		items:     map[int64]*models.CartItem{},
		sales:     map[int64]*models.Sale{},
		catalogs: map[string][]models.CatalogItem{
			models.CatalogGenres: {{ID: 1, Name: "Rock"}, {ID: 2, Name: "Jazz"}},
		},
	}
}

func (s *fakeStore) id() int64 {
	s.nextID++
	return s.nextID
}

func page[T any](all []T, p models.PageRequest) ([]T, int64) {
	total := int64(len(all))
	off := p.Offset()
	if off >= len(all) {
		return []T{}, total
	}
	end := off + p.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[off:end], total
}

type fakeUsers struct{ s *fakeStore }

func (r fakeUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failCreate != nil {
		return nil, r.s.failCreate
	}
	for _, existing := range r.s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return nil, &common.ConstraintViolation{Kind: common.ConstraintUnique, Fields: []string{"email"}}
		}
	}
	c := *u
	c.ID = r.s.id()
	if c.StateID == 0 {
		c.StateID = models.StateActive
	}
	c.CreatedAt = time.Now().UTC()
	r.s.users[c.ID] = &c
	out := c
	return &out, nil
}

func (r fakeUsers) FindByID(_ context.Context, id int64) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := *u
	return &out, nil
}

func (r fakeUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			out := *u
			return &out, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r fakeUsers) Update(_ context.Context, id int64, p models.UserPatch) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if p.FirstName != nil {
		u.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		u.LastName = *p.LastName
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.PasswordHash != nil {
		u.PasswordHash = *p.PasswordHash
	}
	if p.Phone != nil {
		u.Phone = p.Phone
	}
	if p.StateID != nil {
		u.StateID = *p.StateID
	}
	if p.RoleID != nil {
		u.RoleID = *p.RoleID
	}
	if p.LastAccessAt != nil {
		u.LastAccessAt = p.LastAccessAt
	}
	out := *u
	return &out, nil
}

func (r fakeUsers) Delete(_ context.Context, id int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.users[id]
	delete(r.s.users, id)
	return ok, nil
}

func (r fakeUsers) FindMany(_ context.Context, _ models.UserFilter, p models.PageRequest) ([]models.User, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []models.User
	for _, u := range r.s.users {
		all = append(all, *u)
	}
	items, total := page(all, p)
	return items, total, nil
}

func (r fakeUsers) FindLegacy(_ context.Context, limit int) ([]models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.User
	for _, u := range r.s.users {
		if u.EncryptionVersion == models.EncryptionNone && len(out) < limit {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r fakeUsers) AdoptLegacy(_ context.Context, u *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.users[u.ID].EncryptionVersion = models.EncryptionAESv1
	return nil
}

type fakeArtists struct{ s *fakeStore }

func (r fakeArtists) Create(_ context.Context, a *models.Artist) (*models.Artist, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *a
	c.ID = r.s.id()
	r.s.artists[c.ID] = &c
	out := c
	return &out, nil
}

func (r fakeArtists) FindByID(_ context.Context, id int64) (*models.Artist, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.artists[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := *a
	return &out, nil
}

func (r fakeArtists) Update(_ context.Context, id int64, p models.ArtistPatch) (*models.Artist, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.artists[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.StageName != nil {
		a.StageName = p.StageName
	}
	out := *a
	return &out, nil
}

func (r fakeArtists) Delete(_ context.Context, id int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.artists[id]
	delete(r.s.artists, id)
	return ok, nil
}

func (r fakeArtists) FindMany(context.Context, models.ArtistFilter, models.PageRequest) ([]models.Artist, int64, error) {
	return nil, 0, nil
}

type fakeAlbums struct{ s *fakeStore }

func (r fakeAlbums) Create(_ context.Context, a *models.Album) (*models.Album, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failCreate != nil {
		return nil, r.s.failCreate
	}
	c := *a
	c.ID = r.s.id()
	r.s.albums[c.ID] = &c
	out := c
	return &out, nil
}

func (r fakeAlbums) FindByID(_ context.Context, id int64) (*models.Album, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.albums[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := *a
	return &out, nil
}

func (r fakeAlbums) Update(_ context.Context, id int64, p models.AlbumPatch) (*models.Album, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.albums[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if p.Title != nil {
		a.Title = *p.Title
	}
	if p.Price != nil {
		a.Price = *p.Price
	}
	out := *a
	return &out, nil
}

func (r fakeAlbums) Delete(_ context.Context, id int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.albums[id]
	delete(r.s.albums, id)
	return ok, nil
}

func (r fakeAlbums) FindMany(_ context.Context, _ models.AlbumFilter, p models.PageRequest) ([]models.Album, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []models.Album
	for _, a := range r.s.albums {
		all = append(all, *a)
	}
	items, total := page(all, p)
	return items, total, nil
}

type fakeSongs struct{ s *fakeStore }

func (r fakeSongs) Create(_ context.Context, song *models.Song) (*models.Song, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *song
	c.ID = r.s.id()
	r.s.songs[c.ID] = &c
	out := c
	return &out, nil
}

func (r fakeSongs) FindByID(_ context.Context, id int64) (*models.Song, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	song, ok := r.s.songs[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := *song
	return &out, nil
}

func (r fakeSongs) Update(_ context.Context, id int64, p models.SongPatch) (*models.Song, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	song, ok := r.s.songs[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if p.Title != nil {
		song.Title = *p.Title
	}
	out := *song
	return &out, nil
}

func (r fakeSongs) Delete(_ context.Context, id int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.songs[id]
	delete(r.s.songs, id)
	return ok, nil
}

func (r fakeSongs) FindMany(context.Context, models.SongFilter, models.PageRequest) ([]models.Song, int64, error) {
	return nil, 0, nil
}

type fakeContracts struct{ s *fakeStore }

func (r fakeContracts) Create(_ context.Context, c *models.Contract) (*models.Contract, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *c
	cp.ID = r.s.id()
	r.s.contracts[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r fakeContracts) FindByID(_ context.Context, id int64) (*models.Contract, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.contracts[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := *c
	return &out, nil
}

func (r fakeContracts) Update(_ context.Context, id int64, p models.ContractPatch) (*models.Contract, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.contracts[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if p.Cost != nil {
		c.Cost = *p.Cost
	}
	if p.EndDate != nil {
		c.EndDate = p.EndDate
	}
	out := *c
	return &out, nil
}

func (r fakeContracts) Delete(_ context.Context, id int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.contracts[id]
	delete(r.s.contracts, id)
	return ok, nil
}

func (r fakeContracts) FindMany(_ context.Context, f models.ContractFilter, p models.PageRequest) ([]models.Contract, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now().UTC()
	var all []models.Contract
	for _, c := range r.s.contracts {
		if f.EndingBefore != nil {
			if c.EndDate == nil || c.EndDate.Before(now) || c.EndDate.After(*f.EndingBefore) {
				continue
			}
		}
		all = append(all, *c)
	}
	items, total := page(all, p)
	return items, total, nil
}

type fakeCarts struct{ s *fakeStore }

func (r fakeCarts) FindActive(_ context.Context, userID int64) (*models.Cart, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.carts {
		if c.UserID == userID && c.Status == models.CartActive {
			out := *c
			return &out, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r fakeCarts) GetOrCreateActive(ctx context.Context, userID int64) (*models.Cart, error) {
	c, err := r.FindActive(ctx, userID)
	if !errors.Is(err, common.ErrorNotFound) {
		return c, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	nc := &models.Cart{ID: r.s.id(), UserID: userID, Status: models.CartActive}
	r.s.carts[nc.ID] = nc
	out := *nc
	return &out, nil
}

func (r fakeCarts) Items(_ context.Context, cartID int64) ([]models.CartItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.CartItem{}
	for id := int64(1); id <= r.s.nextID; id++ {
		if it, ok := r.s.items[id]; ok && it.CartID == cartID {
			out = append(out, *it)
		}
	}
	return out, nil
}

func (r fakeCarts) AddItem(_ context.Context, item *models.CartItem) (*models.CartItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, it := range r.s.items {
		if it.CartID == item.CartID && it.ProductID == item.ProductID && it.ProductType == item.ProductType {
			it.Quantity += item.Quantity
			it.UnitPrice = item.UnitPrice
			out := *it
			return &out, nil
		}
	}
	c := *item
	c.ID = r.s.id()
	r.s.items[c.ID] = &c
	out := c
	return &out, nil
}

func (r fakeCarts) UpdateItemQuantity(_ context.Context, userID, itemID int64, quantity int) (*models.CartItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	it, ok := r.s.items[itemID]
	if !ok || it.UserID != userID {
		return nil, common.ErrorNotFound
	}
	it.Quantity = quantity
	out := *it
	return &out, nil
}

func (r fakeCarts) RemoveItem(_ context.Context, userID, itemID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	it, ok := r.s.items[itemID]
	if !ok || it.UserID != userID {
		return false, nil
	}
	delete(r.s.items, itemID)
	return true, nil
}

func (r fakeCarts) Clear(_ context.Context, cartID int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, it := range r.s.items {
		if it.CartID == cartID {
			delete(r.s.items, id)
			n++
		}
	}
	return n, nil
}

func (r fakeCarts) SetStatus(_ context.Context, cartID int64, status models.CartStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.carts[cartID]
	if !ok {
		return common.ErrorNotFound
	}
	c.Status = status
	return nil
}

type fakeSales struct{ s *fakeStore }

func (r fakeSales) Create(_ context.Context, sale *models.Sale) (*models.Sale, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *sale
	c.ID = r.s.id()
	c.Lines = nil
	for _, l := range sale.Lines {
		l.ID = r.s.id()
		l.SaleID = c.ID
		c.Lines = append(c.Lines, l)
	}
	r.s.sales[c.ID] = &c
	out := c
	return &out, nil
}

func (r fakeSales) FindByID(_ context.Context, id int64) (*models.Sale, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sale, ok := r.s.sales[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := *sale
	return &out, nil
}

func (r fakeSales) UpdatePayment(_ context.Context, id int64, status models.PaymentStatus, method, reference *string) (*models.Sale, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sale, ok := r.s.sales[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	sale.PaymentStatus = status
	if method != nil {
		sale.PaymentMethod = method
	}
	if reference != nil {
		sale.PaymentReference = reference
	}
	out := *sale
	return &out, nil
}

func (r fakeSales) FindMany(_ context.Context, f models.SaleFilter, p models.PageRequest) ([]models.Sale, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []models.Sale
	for _, sale := range r.s.sales {
		if f.UserID != 0 && sale.UserID != f.UserID {
			continue
		}
		all = append(all, *sale)
	}
	items, total := page(all, p)
	return items, total, nil
}

type fakeCatalogs struct{ s *fakeStore }

func (r fakeCatalogs) List(_ context.Context, name string) ([]models.CatalogItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.catalogCalls++
	items, ok := r.s.catalogs[name]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return items, nil
}

func (r fakeCatalogs) Exists(ctx context.Context, name string, id int64) (bool, error) {
	items, err := r.List(ctx, name)
	if err != nil {
		return false, err
	}
	for _, it := range items {
		if it.ID == id {
			return true, nil
		}
	}
	return false, nil
}

type fakeRepoManager struct{ s *fakeStore }

func (m fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m fakeRepoManager) Users(dbx.DBTX) users.Repository              { return fakeUsers{m.s} }
func (m fakeRepoManager) Artists(dbx.DBTX) artists.Repository          { return fakeArtists{m.s} }
func (m fakeRepoManager) Albums(dbx.DBTX) albums.Repository            { return fakeAlbums{m.s} }
func (m fakeRepoManager) Songs(dbx.DBTX) songs.Repository              { return fakeSongs{m.s} }
func (m fakeRepoManager) Carts(dbx.DBTX) carts.Repository              { return fakeCarts{m.s} }
func (m fakeRepoManager) Sales(dbx.DBTX) sales.Repository              { return fakeSales{m.s} }
func (m fakeRepoManager) Contracts(dbx.DBTX) contracts.Repository      { return fakeContracts{m.s} }
func (m fakeRepoManager) Catalogs(dbx.DBTX) catalogs.Repository        { return fakeCatalogs{m.s} }

// --- document store that can be switched off ---

var errDocumentsDown = errors.New("document store unavailable")

type flakyDocs struct {
	documents.Store
	mu   sync.Mutex
	down bool
}

func (f *flakyDocs) setDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = down
}

func (f *flakyDocs) err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return errDocumentsDown
	}
	return nil
}

func (f *flakyDocs) UpsertByForeignID(ctx context.Context, coll string, id int64, patch documents.Fields) (documents.Fields, error) {
	if err := f.err(); err != nil {
		return nil, err
	}
	return f.Store.UpsertByForeignID(ctx, coll, id, patch)
}

func (f *flakyDocs) DeleteByForeignID(ctx context.Context, coll string, id int64) (bool, error) {
	if err := f.err(); err != nil {
		return false, err
	}
	return f.Store.DeleteByForeignID(ctx, coll, id)
}

func (f *flakyDocs) Append(ctx context.Context, coll string, doc documents.Fields) error {
	if err := f.err(); err != nil {
		return err
	}
	return f.Store.Append(ctx, coll, doc)
}

// --- environment ---

type testEnv struct {
	db    *sql.DB
	mock  sqlmock.Sqlmock
	store *fakeStore
	docs  *flakyDocs
	deps  Deps
}

func newTestEnv(t *testing.T, opts ...hybrid.Option) *testEnv {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := newFakeStore()
	docs := &flakyDocs{Store: documents.NewMemoryStore()}
	logger := logging.Nop()

	return &testEnv{
		db:    db,
		mock:  mock,
		store: store,
		docs:  docs,
		deps: Deps{
			DB:     db,
			Repos:  fakeRepoManager{store},
			Docs:   docs,
			Hybrid: hybrid.New(db, logger, opts...),
			Audit:  NewAuditService(docs, logger),
			Logger: logger,
		},
	}
}

// expectTx registers n committed transactions.
func (e *testEnv) expectTx(n int) {
	for i := 0; i < n; i++ {
		e.mock.ExpectBegin()
		e.mock.ExpectCommit()
	}
}

func (e *testEnv) verify(t *testing.T) {
	t.Helper()
	require.NoError(t, e.mock.ExpectationsWereMet())
}

// auditActions lists recorded audit actions in insertion order.
func (e *testEnv) auditActions(t *testing.T) []models.AuditAction {
	t.Helper()
	docs, _, err := e.docs.Find(context.Background(), documents.SecurityAudit, documents.Query{})
	require.NoError(t, err)
	out := make([]models.AuditAction, 0, len(docs))
	for _, d := range docs {
		out = append(out, models.AuditAction(d["action"].(string)))
	}
	return out
}

func testHasher() *cryptox.PasswordHasher {
	return cryptox.NewPasswordHasher(bcrypt.MinCost)
}
