package models

import "time"

type Song struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	AlbumID         *int64    `json:"album_id,omitempty"`
	ArtistID        int64     `json:"artist_id"`
	DurationSeconds *int      `json:"duration_seconds,omitempty"`
	Year            *int      `json:"year,omitempty"`
	GenreID         *int64    `json:"genre_id,omitempty"`
	StateID         int64     `json:"state_id"`
	TrackNumber     *int      `json:"track_number,omitempty"`
	Price           float64   `json:"price"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type SongPatch struct {
	Title           *string
	AlbumID         *int64
	DurationSeconds *int
	Year            *int
	GenreID         *int64
	StateID         *int64
	TrackNumber     *int
	Price           *float64
}

type SongFilter struct {
	Title    string
	AlbumID  int64
	ArtistID int64
	GenreID  int64
	StateID  int64
}
