// Package models defines the relational entities, document shapes and API
// value types shared by repositories, services and the HTTP layer.
package models

// Reference catalog tables.
const (
	CatalogStates    = "states"
	CatalogRoles     = "roles"
	CatalogSexes     = "sexes"
	CatalogCountries = "countries"
	CatalogGenres    = "genres"
)

// Well-known catalog ids seeded by the initial migration.
const (
	StateActive   int64 = 1
	StateInactive int64 = 2

	RoleAdmin    int64 = 1
	RoleArtist   int64 = 2
	RoleManager  int64 = 3
	RoleCustomer int64 = 4
)

// CatalogItem is one row of a reference catalog. Code is the ISO code for
// countries and empty elsewhere.
type CatalogItem struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Code        *string `json:"code,omitempty"`
}
