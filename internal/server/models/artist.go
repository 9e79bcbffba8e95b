package models

import "time"

type Artist struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	StageName    *string   `json:"stage_name,omitempty"`
	GenreID      *int64    `json:"genre_id,omitempty"`
	CountryID    *int64    `json:"country_id,omitempty"`
	StateID      int64     `json:"state_id"`
	ManagerID    *int64    `json:"manager_id,omitempty"`
	RegisteredOn time.Time `json:"registered_on"`
	Verified     bool      `json:"verified"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type ArtistPatch struct {
	Name      *string
	StageName *string
	GenreID   *int64
	CountryID *int64
	StateID   *int64
	ManagerID *int64
	Verified  *bool
}

// ArtistFilter narrows FindMany. Name matches name or stage name,
// case-insensitively.
type ArtistFilter struct {
	Name      string
	GenreID   int64
	CountryID int64
	StateID   int64
}
