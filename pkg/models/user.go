package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is a portal role. Only the numeric level matters to the workflow.
type Role string

// Role constants, lowest to highest.
const (
	RoleCitizen  Role = "citizen"
	RoleSarpanch Role = "sarpanch"
	RoleTehsil   Role = "tehsil"
	RoleDistrict Role = "district"
	RoleAdmin    Role = "admin"
)

// ValidRoles contains all valid role values, ordered by hierarchy level.
var ValidRoles = []Role{RoleCitizen, RoleSarpanch, RoleTehsil, RoleDistrict, RoleAdmin}

// IsValidRole checks if the given role is valid.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if string(r) == role {
			return true
		}
	}
	return false
}

// Level returns the hierarchy level: citizen=0 ... admin=4.
// Unknown roles map to -1 so they never outrank anything.
func (r Role) Level() int {
	for i, v := range ValidRoles {
		if v == r {
			return i
		}
	}
	return -1
}

// IsOfficial returns true for every role that participates in approvals.
func (r Role) IsOfficial() bool {
	return r.Level() > 0
}

// User is a portal account. Officials carry a jurisdiction matching their level.
type User struct {
	ID           uuid.UUID  `json:"id"`
	LoginID      string     `json:"login_id"`
	DisplayName  string     `json:"display_name"`
	Email        *string    `json:"email,omitempty"`
	Role         Role       `json:"role"`
	PasswordHash string     `json:"-"`
	DistrictID   *uuid.UUID `json:"district_id,omitempty"`
	TehsilID     *uuid.UUID `json:"tehsil_id,omitempty"`
	VillageID    *uuid.UUID `json:"village_id,omitempty"`
	Active       bool       `json:"active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
