package models

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// GrievanceCodePrefix prefixes every public grievance code.
const GrievanceCodePrefix = "GRV"

// GrievanceStatus is the handling state of a grievance.
type GrievanceStatus string

const (
	GrievanceOpen       GrievanceStatus = "open"
	GrievanceInProgress GrievanceStatus = "in_progress"
	GrievanceResolved   GrievanceStatus = "resolved"
	GrievanceClosed     GrievanceStatus = "closed"
)

// ValidGrievanceStatuses contains all valid grievance statuses.
var ValidGrievanceStatuses = []GrievanceStatus{GrievanceOpen, GrievanceInProgress, GrievanceResolved, GrievanceClosed}

// IsValidGrievanceStatus checks if the given status is valid.
func IsValidGrievanceStatus(s string) bool {
	for _, v := range ValidGrievanceStatuses {
		if string(v) == s {
			return true
		}
	}
	return false
}

// CanTransitionTo returns true if moving from s to target is allowed.
// Closed grievances stay closed; resolved ones may be reopened.
func (s GrievanceStatus) CanTransitionTo(target GrievanceStatus) bool {
	if s == target {
		return false
	}
	switch s {
	case GrievanceOpen:
		return target == GrievanceInProgress || target == GrievanceResolved || target == GrievanceClosed
	case GrievanceInProgress:
		return target == GrievanceResolved || target == GrievanceClosed
	case GrievanceResolved:
		return target == GrievanceOpen || target == GrievanceClosed
	default:
		return false
	}
}

// Grievance priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// IsValidPriority checks if the given priority is valid.
func IsValidPriority(p string) bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// Grievance is a citizen complaint, optionally about a specific project.
type Grievance struct {
	ID            uuid.UUID       `json:"id"`
	Code          string          `json:"grievance_id"`
	UserID        *uuid.UUID      `json:"user_id,omitempty"`
	ProjectID     *uuid.UUID      `json:"project_id,omitempty"`
	Name          string          `json:"name"`
	Email         string          `json:"email"`
	Phone         string          `json:"phone"`
	DistrictID    *uuid.UUID      `json:"district_id,omitempty"`
	TehsilID      *uuid.UUID      `json:"tehsil_id,omitempty"`
	VillageID     *uuid.UUID      `json:"village_id,omitempty"`
	Title         string          `json:"title"`
	Message       string          `json:"message"`
	AttachmentRef *string         `json:"attachment_ref,omitempty"`
	Status        GrievanceStatus `json:"status"`
	Priority      string          `json:"priority"`
	AssignedTo    *uuid.UUID      `json:"assigned_to,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// NewGrievanceCode returns GRV followed by the unix millisecond timestamp.
func NewGrievanceCode(now time.Time) string {
	return fmt.Sprintf("%s%d", GrievanceCodePrefix, now.UnixMilli())
}

// RetryGrievanceCode returns a code for a submission whose timestamp code was
// taken: the timestamp code plus a random three digit suffix.
func RetryGrievanceCode(now time.Time) string {
	n, err := rand.Int(rand.Reader, big.NewInt(1000))
	if err != nil {
		return fmt.Sprintf("%s-%03d", NewGrievanceCode(now), time.Now().UnixNano()%1000)
	}
	return fmt.Sprintf("%s-%03d", NewGrievanceCode(now), n.Int64())
}

// GrievanceFilter narrows grievance listings.
type GrievanceFilter struct {
	Status     *GrievanceStatus
	DistrictID *uuid.UUID
	VillageID  *uuid.UUID
	Limit      int
}

// MaxGrievanceListLimit caps grievance listings.
const MaxGrievanceListLimit = 200
