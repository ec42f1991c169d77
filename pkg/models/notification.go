package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification types.
const (
	NotificationTypeApproval  = "approval"
	NotificationTypeGrievance = "grievance"
)

// Notification is a per-user inbox row.
type Notification struct {
	ID               uuid.UUID  `json:"id"`
	UserID           uuid.UUID  `json:"user_id"`
	Title            string     `json:"title"`
	Message          string     `json:"message"`
	Type             string     `json:"notification_type"`
	RelatedProjectID *uuid.UUID `json:"related_project_id,omitempty"`
	Read             bool       `json:"read"`
	CreatedAt        time.Time  `json:"created_at"`
}

// RoleNotice addresses every active holder of a role.
type RoleNotice struct {
	Role      Role
	Title     string
	Message   string
	Type      string
	ProjectID *uuid.UUID
}

// UserNotice addresses a single user, e.g. the officer assigned to a grievance.
type UserNotice struct {
	UserID    uuid.UUID
	Title     string
	Message   string
	Type      string
	ProjectID *uuid.UUID
}
