package models

import "github.com/google/uuid"

// District is the top of the location hierarchy.
type District struct {
	ID   uuid.UUID `json:"id" yaml:"-"`
	Name string    `json:"district_name" yaml:"name"`
}

// Tehsil belongs to exactly one district.
type Tehsil struct {
	ID         uuid.UUID `json:"id" yaml:"-"`
	DistrictID uuid.UUID `json:"district_id" yaml:"-"`
	Name       string    `json:"tehsil_name" yaml:"name"`
}

// Village belongs to exactly one tehsil.
type Village struct {
	ID         uuid.UUID `json:"id" yaml:"-"`
	TehsilID   uuid.UUID `json:"tehsil_id" yaml:"-"`
	Name       string    `json:"village_name" yaml:"name"`
	Population int       `json:"population,omitempty" yaml:"population"`
}

// VillageLocation is a village resolved up to its district.
type VillageLocation struct {
	VillageID  uuid.UUID
	TehsilID   uuid.UUID
	DistrictID uuid.UUID
}
