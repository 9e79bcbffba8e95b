package models

import "time"

type Album struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	ArtistID    int64      `json:"artist_id"`
	Year        int        `json:"year"`
	GenreID     *int64     `json:"genre_id,omitempty"`
	StateID     int64      `json:"state_id"`
	ReleaseDate *time.Time `json:"release_date,omitempty"`
	Price       float64    `json:"price"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type AlbumPatch struct {
	Title       *string
	Year        *int
	GenreID     *int64
	StateID     *int64
	ReleaseDate *time.Time
	Price       *float64
}

type AlbumFilter struct {
	Title    string
	ArtistID int64
	GenreID  int64
	Year     int
	StateID  int64
}
