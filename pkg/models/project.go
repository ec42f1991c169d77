// Package models contains domain types for fiscal-engine.
package models

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// ProjectCodePrefix prefixes every generated project code.
const ProjectCodePrefix = "PFT"

// Project is a development project requesting funds.
// Amounts are in paise. Status mirrors the workflow and is never set directly.
type Project struct {
	ID          uuid.UUID      `json:"id"`
	Code        string         `json:"project_code"`
	Name        string         `json:"project_name"`
	Description string         `json:"description,omitempty"`
	VillageID   *uuid.UUID     `json:"village_id,omitempty"`
	TehsilID    *uuid.UUID     `json:"tehsil_id,omitempty"`
	DistrictID  *uuid.UUID     `json:"district_id,omitempty"`
	Budget      Budget         `json:"budget"`
	Status      WorkflowStatus `json:"status"`
	CreatedBy   *uuid.UUID     `json:"created_by,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`

	// Denormalized display fields filled by list queries.
	VillageName  string `json:"village_name,omitempty"`
	DistrictName string `json:"district_name,omitempty"`
}

// Budget holds the three money figures of a project.
type Budget struct {
	Total     int64 `json:"total"`
	Allocated int64 `json:"allocated"`
	Utilized  int64 `json:"utilized"`
}

// Validate enforces 0 <= utilized <= allocated <= total.
func (b Budget) Validate() error {
	if b.Total < 0 || b.Allocated < 0 || b.Utilized < 0 {
		return fmt.Errorf("amounts must be non-negative")
	}
	if b.Allocated > b.Total {
		return fmt.Errorf("allocated %d exceeds total %d", b.Allocated, b.Total)
	}
	if b.Utilized > b.Allocated {
		return fmt.Errorf("utilized %d exceeds allocated %d", b.Utilized, b.Allocated)
	}
	return nil
}

// NewProjectCode returns a code of the form PFT0000 through PFT9999.
func NewProjectCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		// crypto/rand does not fail on supported platforms
		return fmt.Sprintf("%s%04d", ProjectCodePrefix, time.Now().UnixNano()%10000)
	}
	return fmt.Sprintf("%s%04d", ProjectCodePrefix, n.Int64())
}

// ProjectFilter narrows project listings. Nil fields are not applied.
type ProjectFilter struct {
	Status     *WorkflowStatus
	DistrictID *uuid.UUID
	TehsilID   *uuid.UUID
	VillageID  *uuid.UUID
	Limit      int
	Offset     int
}

// Default and maximum page sizes for project listings.
const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

// Normalize clamps Limit and Offset into their accepted ranges.
func (f *ProjectFilter) Normalize() {
	if f.Limit <= 0 {
		f.Limit = DefaultPageLimit
	}
	if f.Limit > MaxPageLimit {
		f.Limit = MaxPageLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// Pagination describes a page of results.
type Pagination struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Pages  int `json:"pages"`
}

// NewPagination computes the page count for total rows.
func NewPagination(total, limit, offset int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Total: total, Limit: limit, Offset: offset, Pages: pages}
}

// ProjectPage is one page of a project listing.
type ProjectPage struct {
	Projects   []*Project `json:"projects"`
	Pagination Pagination `json:"pagination"`
}

// DistrictBudgetSummary aggregates project budgets for one district.
type DistrictBudgetSummary struct {
	DistrictID   uuid.UUID              `json:"district_id"`
	DistrictName string                 `json:"district_name"`
	ProjectCount int                    `json:"project_count"`
	Total        int64                  `json:"total"`
	Allocated    int64                  `json:"allocated"`
	Utilized     int64                  `json:"utilized"`
	StatusCounts map[WorkflowStatus]int `json:"status_counts"`
}

// BudgetSummary is the portal-wide budget overview.
type BudgetSummary struct {
	Districts     []*DistrictBudgetSummary `json:"districts"`
	Total         int64                    `json:"total"`
	Allocated     int64                    `json:"allocated"`
	Utilized      int64                    `json:"utilized"`
	StatusCounts  map[WorkflowStatus]int   `json:"status_counts"`
	StatusAmounts map[WorkflowStatus]int64 `json:"status_amounts"`
	GeneratedAt   time.Time                `json:"generated_at"`
}

// AllocationPercent returns allocated as a percentage of total.
func (s *BudgetSummary) AllocationPercent() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Allocated) * 100 / float64(s.Total)
}

// UtilizationPercent returns utilized as a percentage of allocated.
func (s *BudgetSummary) UtilizationPercent() float64 {
	if s.Allocated == 0 {
		return 0
	}
	return float64(s.Utilized) * 100 / float64(s.Allocated)
}
