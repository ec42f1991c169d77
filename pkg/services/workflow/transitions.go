// Package workflow holds the project approval state machine: the transition
// table and the role-to-stage authorization rule. Nothing here touches
// persistence, so every transition can be enumerated and tested directly.
package workflow

import (
	"fmt"

	"github.com/fiscal-tracker/fiscal-engine/pkg/apperrors"
	"github.com/fiscal-tracker/fiscal-engine/pkg/models"
)

// Transition is the outcome of applying an action at a stage.
type Transition struct {
	From   models.Stage
	Action models.Action
	To     models.Stage
	Status models.WorkflowStatus
	// NotifyRole is the role that must act next, nil when nobody is waiting.
	NotifyRole *models.Role
}

// IsTerminal returns true if the resulting status closes the workflow.
func (t Transition) IsTerminal() bool {
	return t.Status.IsTerminal()
}

// NextStage returns the stage the caller should act on next, nil when terminal.
func (t Transition) NextStage() *models.Stage {
	if t.IsTerminal() {
		return nil
	}
	s := t.To
	return &s
}

type key struct {
	stage  models.Stage
	action models.Action
}

// table is built once from the rules below and never mutated.
var table = buildTable()

func buildTable() map[key]Transition {
	t := make(map[key]Transition)
	for _, stage := range models.ValidStages {
		// approve/forward move one level up; approve at the top finishes.
		if next, ok := stage.Next(); ok {
			notify := next.Role()
			for _, a := range []models.Action{models.ActionApprove, models.ActionForward} {
				t[key{stage, a}] = Transition{From: stage, Action: a, To: next, Status: models.StatusPending, NotifyRole: &notify}
			}
		} else {
			t[key{stage, models.ActionApprove}] = Transition{From: stage, Action: models.ActionApprove, To: stage, Status: models.StatusApproved}
		}

		t[key{stage, models.ActionReject}] = Transition{From: stage, Action: models.ActionReject, To: stage, Status: models.StatusRejected}

		// object sends the project back to the level that submitted it.
		back := stage.Previous().Role()
		t[key{stage, models.ActionObject}] = Transition{From: stage, Action: models.ActionObject, To: stage, Status: models.StatusObjection, NotifyRole: &back}
	}
	return t
}

// Next looks up the transition for action at stage. The current status must
// not be terminal. Unknown pairs (forward at admin) are validation errors.
func Next(stage models.Stage, status models.WorkflowStatus, action models.Action) (Transition, error) {
	if status.IsTerminal() {
		return Transition{}, fmt.Errorf("%w: status is %s", apperrors.ErrTerminalState, status)
	}
	tr, ok := table[key{stage, action}]
	if !ok {
		return Transition{}, fmt.Errorf("%w: action %q is not allowed at stage %q", apperrors.ErrValidation, action, stage)
	}
	return tr, nil
}

// All returns every defined transition, for inspection and tests.
func All() []Transition {
	out := make([]Transition, 0, len(table))
	for _, stage := range models.ValidStages {
		for _, action := range models.ValidActions {
			if tr, ok := table[key{stage, action}]; ok {
				out = append(out, tr)
			}
		}
	}
	return out
}
