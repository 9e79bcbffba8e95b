package models

import "time"

// Document shapes. Every field is omitempty so a partially filled value can be
// used directly as an upsert patch; CreatedAt and UpdatedAt are maintained by
// the document store.

type NotificationPreferences struct {
	Email *bool `json:"email,omitempty"`
	Push  *bool `json:"push,omitempty"`
	SMS   *bool `json:"sms,omitempty"`
}

type UserPreferences struct {
	Language       string                   `json:"language,omitempty"`
	Theme          string                   `json:"theme,omitempty"`
	Notifications  *NotificationPreferences `json:"notifications,omitempty"`
	FavoriteGenres []int64                  `json:"favorite_genres,omitempty"`
}

// DefaultUserPreferences is applied when a profile document is first created.
func DefaultUserPreferences() *UserPreferences {
	on, off := true, false
	return &UserPreferences{
		Language: "es",
		Theme:    "light",
		Notifications: &NotificationPreferences{
			Email: &on,
			Push:  &on,
			SMS:   &off,
		},
	}
}

type SocialLink struct {
	Platform string `json:"platform"`
	URL      string `json:"url"`
}

// UserProfile lives in users_profile, keyed by user_id.
type UserProfile struct {
	UserID      int64            `json:"user_id,omitempty"`
	PhotoPath   string           `json:"photo_path,omitempty"`
	Location    string           `json:"location,omitempty"`
	Bio         string           `json:"bio,omitempty"`
	Preferences *UserPreferences `json:"preferences,omitempty"`
	SocialLinks []SocialLink     `json:"social_links,omitempty"`
	CreatedAt   *time.Time       `json:"created_at,omitempty"`
	UpdatedAt   *time.Time       `json:"updated_at,omitempty"`
}

type ArtistStats struct {
	Followers      *int64 `json:"followers,omitempty"`
	MonthlyPlays   *int64 `json:"monthly_plays,omitempty"`
	TotalPlays     *int64 `json:"total_plays,omitempty"`
	AlbumsReleased *int64 `json:"albums_released,omitempty"`
}

// ArtistProfile lives in artists_profile, keyed by artist_id.
type ArtistProfile struct {
	ArtistID    int64        `json:"artist_id,omitempty"`
	Biography   string       `json:"biography,omitempty"`
	PhotoPath   string       `json:"photo_path,omitempty"`
	Website     string       `json:"website,omitempty"`
	SocialLinks []SocialLink `json:"social_links,omitempty"`
	Influences  []string     `json:"influences,omitempty"`
	Stats       *ArtistStats `json:"stats,omitempty"`
	CreatedAt   *time.Time   `json:"created_at,omitempty"`
	UpdatedAt   *time.Time   `json:"updated_at,omitempty"`
}

type Credit struct {
	Role string `json:"role"`
	Name string `json:"name"`
}

type StreamingLink struct {
	Platform string `json:"platform"`
	URL      string `json:"url"`
}

type AlbumMetadata struct {
	Format       string   `json:"format,omitempty"`
	AudioQuality string   `json:"audio_quality,omitempty"`
	Language     string   `json:"language,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	Label        string   `json:"label,omitempty"`
}

// DefaultAlbumMetadata is applied when an album content document is created.
func DefaultAlbumMetadata() *AlbumMetadata {
	return &AlbumMetadata{Format: "Digital", AudioQuality: "HD", Language: "es"}
}

// AlbumContent lives in albums_content, keyed by album_id.
type AlbumContent struct {
	AlbumID         int64           `json:"album_id,omitempty"`
	CoverPath       string          `json:"cover_path,omitempty"`
	Description     string          `json:"description,omitempty"`
	ProductionNotes string          `json:"production_notes,omitempty"`
	Credits         []Credit        `json:"credits,omitempty"`
	StreamingLinks  []StreamingLink `json:"streaming_links,omitempty"`
	Metadata        *AlbumMetadata  `json:"metadata,omitempty"`
	CreatedAt       *time.Time      `json:"created_at,omitempty"`
	UpdatedAt       *time.Time      `json:"updated_at,omitempty"`
}

type PlayStats struct {
	Plays     *int64 `json:"plays,omitempty"`
	Downloads *int64 `json:"downloads,omitempty"`
	Likes     *int64 `json:"likes,omitempty"`
}

// SongContent lives in songs_content, keyed by song_id.
type SongContent struct {
	SongID      int64      `json:"song_id,omitempty"`
	Lyrics      string     `json:"lyrics,omitempty"`
	AudioPath   string     `json:"audio_path,omitempty"`
	Description string     `json:"description,omitempty"`
	Credits     []Credit   `json:"credits,omitempty"`
	Stats       *PlayStats `json:"stats,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

type FinancialTerms struct {
	RoyaltyPercent *float64 `json:"royalty_percent,omitempty"`
	Advance        *float64 `json:"advance,omitempty"`
	Bonuses        []string `json:"bonuses,omitempty"`
	Currency       string   `json:"currency,omitempty"`
}

type ContractChange struct {
	At          time.Time `json:"at"`
	ByUserID    int64     `json:"by_user_id,omitempty"`
	Description string    `json:"description"`
}

// ContractDocument lives in contracts, keyed by contract_id.
type ContractDocument struct {
	ContractID        int64            `json:"contract_id,omitempty"`
	Clauses           []string         `json:"clauses,omitempty"`
	FinancialTerms    *FinancialTerms  `json:"financial_terms,omitempty"`
	Obligations       []string         `json:"obligations,omitempty"`
	TerritorialRights []string         `json:"territorial_rights,omitempty"`
	RenewalTerms      string           `json:"renewal_terms,omitempty"`
	Attachments       []string         `json:"attachments,omitempty"`
	History           []ContractChange `json:"history,omitempty"`
	CreatedAt         *time.Time       `json:"created_at,omitempty"`
	UpdatedAt         *time.Time       `json:"updated_at,omitempty"`
}
