// Package httpapi exposes the INDIEC services over a JSON REST API built on
// chi. Handlers translate requests into service calls and service errors
// into the standard response envelope.
package httpapi

import (
	"context"
	"time"

	"github.com/dmitrijs2005/indiec/internal/logging"
	"github.com/dmitrijs2005/indiec/internal/server/models"
	"github.com/dmitrijs2005/indiec/internal/server/services"
	"github.com/dmitrijs2005/indiec/internal/server/uploads"
)

type UserService interface {
	Register(ctx context.Context, in services.RegisterInput) (*services.UserView, error)
	Login(ctx context.Context, email, password string) (*services.LoginResult, error)
	IsAdmin(ctx context.Context, userID int64) (bool, error)
	Get(ctx context.Context, actorID, id int64) (*services.UserView, error)
	UpdateProfile(ctx context.Context, actorID, id int64, in services.ProfileUpdate) (*services.UserView, error)
	SetPhoto(ctx context.Context, actorID, id int64, path string) (*models.UserProfile, error)
	ChangePassword(ctx context.Context, id int64, current, next string) error
	Delete(ctx context.Context, actorID, id int64) error
	List(ctx context.Context, filter models.UserFilter, page models.PageRequest) ([]models.User, int64, error)
}

type ArtistService interface {
	Create(ctx context.Context, artist *models.Artist, profile *models.ArtistProfile) (*services.ArtistView, error)
	Get(ctx context.Context, id int64) (*services.ArtistView, error)
	Update(ctx context.Context, id int64, patch models.ArtistPatch, profile *models.ArtistProfile) (*services.ArtistView, error)
	UpdateStats(ctx context.Context, id int64, stats models.ArtistStats) (*models.ArtistProfile, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter models.ArtistFilter, page models.PageRequest) ([]models.Artist, int64, error)
}

type AlbumService interface {
	Create(ctx context.Context, album *models.Album, content *models.AlbumContent) (*services.AlbumView, error)
	Get(ctx context.Context, id int64) (*services.AlbumView, error)
	Update(ctx context.Context, id int64, patch models.AlbumPatch, content *models.AlbumContent) (*services.AlbumView, error)
	SetCover(ctx context.Context, id int64, path string) (*models.AlbumContent, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter models.AlbumFilter, page models.PageRequest) ([]models.Album, int64, error)
}

type SongService interface {
	Create(ctx context.Context, song *models.Song, content *models.SongContent) (*services.SongView, error)
	Get(ctx context.Context, id int64) (*services.SongView, error)
	Update(ctx context.Context, id int64, patch models.SongPatch, content *models.SongContent) (*services.SongView, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter models.SongFilter, page models.PageRequest) ([]models.Song, int64, error)
	RecordPlay(ctx context.Context, id int64, in services.PlayInput) (*models.SongContent, error)
}

type CartService interface {
	Get(ctx context.Context, userID int64) (*models.Cart, error)
	AddItem(ctx context.Context, userID int64, in services.CartItemInput) (*models.Cart, error)
	UpdateItem(ctx context.Context, userID, itemID int64, quantity int) (*models.Cart, error)
	RemoveItem(ctx context.Context, userID, itemID int64) (*models.Cart, error)
	Clear(ctx context.Context, userID int64) (int64, error)
	Checkout(ctx context.Context, userID int64, in services.CheckoutInput) (*models.Sale, error)
}

type SaleService interface {
	Create(ctx context.Context, userID int64, in services.SaleInput) (*models.Sale, error)
	Get(ctx context.Context, actorID, id int64) (*models.Sale, error)
	List(ctx context.Context, actorID int64, filter models.SaleFilter, page models.PageRequest) ([]models.Sale, int64, error)
	UpdatePayment(ctx context.Context, id int64, status models.PaymentStatus, method, reference *string) (*models.Sale, error)
}

type ContractService interface {
	Create(ctx context.Context, actorID int64, contract *models.Contract, doc *models.ContractDocument) (*services.ContractView, error)
	Get(ctx context.Context, id int64) (*services.ContractView, error)
	Update(ctx context.Context, actorID, id int64, patch models.ContractPatch, doc *models.ContractDocument) (*services.ContractView, error)
	List(ctx context.Context, filter models.ContractFilter, page models.PageRequest) ([]models.Contract, int64, error)
	Expiring(ctx context.Context, days int, page models.PageRequest) ([]models.Contract, int64, error)
}

type AnalyticsService interface {
	RecordEvent(ctx context.Context, ev models.AnalyticsEvent) error
	EntityAnalytics(ctx context.Context, entityType string, entityID int64, from, to time.Time) (*models.EntityAnalytics, error)
}

type CatalogService interface {
	List(ctx context.Context, name string) ([]models.CatalogItem, error)
}

type AuditService interface {
	List(ctx context.Context, filter models.AuditFilter, page models.PageRequest) ([]models.AuditEntry, int64, error)
	Metrics(ctx context.Context, from, to time.Time) (*models.SecurityMetrics, error)
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a function, such as (*sql.DB).PingContext, to Pinger.
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	Users     UserService
	Artists   ArtistService
	Albums    AlbumService
	Songs     SongService
	Carts     CartService
	Sales     SaleService
	Contracts ContractService
	Analytics AnalyticsService
	Catalogs  CatalogService
	Audit     AuditService

	Uploads        uploads.Store
	UploadMaxBytes int64
	// UploadDir is served at /uploads when set.
	UploadDir string

	// Health lists the stores checked by GET /health, by name.
	Health map[string]Pinger

	RateLimitRPS   float64
	RateLimitBurst int
	CORSOrigins    []string

	jwtSecret []byte
	logger    logging.Logger
}

// NewServer returns a Server that verifies bearer tokens with secret.
// Services are assigned on the returned value.
func NewServer(secret []byte, logger logging.Logger) *Server {
	return &Server{
		jwtSecret:      secret,
		logger:         logger.With("module", "http"),
		UploadMaxBytes: 5 << 20,
		Health:         map[string]Pinger{},
	}
}
