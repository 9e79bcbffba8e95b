package models

import "time"

// Encryption versions stored per user row.
const (
	EncryptionNone  = 0
	EncryptionAESv1 = 1
)

// User is a user account. Email, FirstName, LastName and Phone hold
// plaintext in memory; the repository encodes them at the store boundary.
type User struct {
	ID                int64      `json:"id"`
	FirstName         string     `json:"first_name"`
	LastName          string     `json:"last_name"`
	Email             string     `json:"email"`
	EmailHash         string     `json:"-"`
	PasswordHash      string     `json:"-"`
	Phone             *string    `json:"phone,omitempty"`
	BirthDate         *time.Time `json:"birth_date,omitempty"`
	StateID           int64      `json:"state_id"`
	RoleID            int64      `json:"role_id"`
	SexID             *int64     `json:"sex_id,omitempty"`
	CountryID         *int64     `json:"country_id,omitempty"`
	LastAccessAt      *time.Time `json:"last_access_at,omitempty"`
	EmailVerified     bool       `json:"email_verified"`
	PhoneVerified     bool       `json:"phone_verified"`
	EncryptionVersion int        `json:"-"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// UserPatch lists the user columns an update may change. Nil means keep.
type UserPatch struct {
	FirstName     *string
	LastName      *string
	Email         *string
	PasswordHash  *string
	Phone         *string
	BirthDate     *time.Time
	StateID       *int64
	RoleID        *int64
	SexID         *int64
	CountryID     *int64
	LastAccessAt  *time.Time
	EmailVerified *bool
	PhoneVerified *bool
}

// UserFilter narrows FindMany. Zero values are ignored.
type UserFilter struct {
	StateID   int64
	RoleID    int64
	CountryID int64
}
