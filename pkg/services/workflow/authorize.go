package workflow

import (
	"github.com/fiscal-tracker/fiscal-engine/pkg/models"
)

// Decision is the result of an authorization check.
type Decision struct {
	Allowed bool
	// Escalation is true when a higher level acts on a lower stage.
	Escalation bool
	Reason     string
}

// Policy configures the authorization rule.
type Policy struct {
	// AllowEscalation lets a role above the current stage act on it.
	AllowEscalation bool
}

// Authorize decides whether role may act on a workflow at stage under the
// default policy, where only the matching level acts.
func Authorize(role models.Role, stage models.Stage) Decision {
	return Policy{}.Authorize(role, stage)
}

// Authorize decides whether role may act on a workflow at stage.
// Matching levels act normally, higher levels act only with AllowEscalation,
// lower levels and citizens never act.
func (p Policy) Authorize(role models.Role, stage models.Stage) Decision {
	if !role.IsOfficial() {
		return Decision{Reason: "role " + string(role) + " has no part in approvals"}
	}
	if !models.IsValidStage(string(stage)) {
		return Decision{Reason: "unknown stage " + string(stage)}
	}
	switch {
	case role.Level() == stage.Level():
		return Decision{Allowed: true}
	case role.Level() > stage.Level() && p.AllowEscalation:
		return Decision{Allowed: true, Escalation: true}
	case role.Level() > stage.Level():
		return Decision{Reason: "role " + string(role) + " does not act at stage " + string(stage)}
	default:
		return Decision{Reason: "role " + string(role) + " is below stage " + string(stage)}
	}
}

// Jurisdiction is the area an official is responsible for.
type Jurisdiction struct {
	DistrictID string
	TehsilID   string
	VillageID  string
}

// InJurisdiction reports whether a project located at loc falls under an
// official of role with jurisdiction j. Admins cover everything. An empty
// jurisdiction field for the role's level never matches.
func InJurisdiction(role models.Role, j Jurisdiction, loc Jurisdiction) bool {
	switch role {
	case models.RoleAdmin:
		return true
	case models.RoleDistrict:
		return j.DistrictID != "" && j.DistrictID == loc.DistrictID
	case models.RoleTehsil:
		return j.TehsilID != "" && j.TehsilID == loc.TehsilID
	case models.RoleSarpanch:
		return j.VillageID != "" && j.VillageID == loc.VillageID
	default:
		return false
	}
}
