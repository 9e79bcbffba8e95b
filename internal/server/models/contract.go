package models

import "time"

type ContractType string

const (
	ContractStandard      ContractType = "Contrato"
	ContractLicense       ContractType = "Licencia"
	ContractExclusive     ContractType = "Exclusivo"
	ContractCollaboration ContractType = "Colaboracion"
)

func (t ContractType) Valid() bool {
	switch t {
	case ContractStandard, ContractLicense, ContractExclusive, ContractCollaboration:
		return true
	}
	return false
}

// Contract is an artist acquisition.
type Contract struct {
	ID        int64        `json:"id"`
	ArtistID  int64        `json:"artist_id"`
	Type      ContractType `json:"type"`
	StartDate time.Time    `json:"start_date"`
	EndDate   *time.Time   `json:"end_date,omitempty"`
	Cost      float64      `json:"cost"`
	StateID   int64        `json:"state_id"`
	ManagerID *int64       `json:"manager_id,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

type ContractPatch struct {
	Type      *ContractType
	StartDate *time.Time
	EndDate   *time.Time
	Cost      *float64
	StateID   *int64
	ManagerID *int64
}

type ContractFilter struct {
	ArtistID  int64
	Type      ContractType
	StateID   int64
	ManagerID int64
	// EndingBefore selects contracts whose end date falls in [now, EndingBefore].
	EndingBefore *time.Time
}
