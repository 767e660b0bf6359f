package approval

import (
	"reqflow/domain"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
)

var LocateActingStepFunc = LocateActingStep

// RequestContext the request attributes step location depends on.
type RequestContext struct {
	DepartmentID  types.ID
	RequestorID   types.ID
	CurrentStepID types.ID
}

// LocateActingStep the step of the definition the acting user is authorized to
// act on right now, nil when none.
//
// The stored step pointer is the authoritative path. Requests persisted
// before the pointer existed carry a zero current_step_id and are resolved by
// inference from the request status.
func LocateActingStep(tx *gorm.DB, def *domain.WorkflowDetail, actorID types.ID,
	requestStatus string, ctx RequestContext) (*domain.WorkflowStep, error) {

	approverCtx := ApproverContext{DepartmentID: ctx.DepartmentID, RequestorID: ctx.RequestorID}

	// primary: explicit pointer
	if ctx.CurrentStepID != 0 {
		if step := def.FindStep(ctx.CurrentStepID); step != nil {
			users, err := ResolveStepApproversFunc(tx, step, approverCtx)
			if err != nil {
				return nil, err
			}
			if containsUser(users, actorID) {
				return step, nil
			}
		}
	}

	// fallback: inference from status
	if requestStatus == domain.StatusSubmitted || requestStatus == domain.StatusReturned {
		step := def.FirstStep()
		if step == nil {
			return nil, nil
		}
		users, err := ResolveStepApproversFunc(tx, step, approverCtx)
		if err != nil {
			return nil, err
		}
		if containsUser(users, actorID) {
			return step, nil
		}
		return nil, nil
	}

	for i := range def.Steps {
		if def.Steps[i].StatusOnApproval != requestStatus {
			continue
		}
		// candidate is the step after the one that produced the status;
		// keep scanning forward for skip or parallel configurations, never regress
		for j := i + 1; j < len(def.Steps); j++ {
			candidate := &def.Steps[j]
			users, err := ResolveStepApproversFunc(tx, candidate, approverCtx)
			if err != nil {
				return nil, err
			}
			if containsUser(users, actorID) {
				return candidate, nil
			}
		}
		return nil, nil
	}

	return nil, nil
}
