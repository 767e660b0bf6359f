package approval

import (
	"reqflow/account"
	"reqflow/domain"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
)

var ResolveStepApproversFunc = ResolveStepApprovers

// ApproverContext the request attributes approver resolution depends on.
type ApproverContext struct {
	DepartmentID types.ID
	RequestorID  types.ID
}

// ResolveStepApprovers the concrete users who may act on the step.
// An empty result is a valid answer, not an error; callers decide whether the
// operation they run can proceed without an approver.
func ResolveStepApprovers(tx *gorm.DB, step *domain.WorkflowStep, ctx ApproverContext) ([]account.User, error) {
	var users []account.User

	switch step.ApproverStrategy {
	case domain.StrategyByRole:
		q := tx.Model(&account.User{}).Where("role = ? AND is_active = ?", step.ApproverRole, true)
		if step.RequiresSameDepartment {
			q = q.Where("department_id = ?", ctx.DepartmentID)
		}
		if err := q.Scan(&users).Error; err != nil {
			return nil, err
		}

	case domain.StrategyBySpecificUsers:
		ids := append(domain.IDList{}, step.SpecificUserIDs...)
		if step.ApproverUserID != 0 && !ids.Contains(step.ApproverUserID) {
			ids = append(ids, step.ApproverUserID)
		}
		if len(ids) == 0 {
			return []account.User{}, nil
		}
		if err := tx.Model(&account.User{}).
			Where("id in (?) AND is_active = ?", []types.ID(ids), true).
			Scan(&users).Error; err != nil {
			return nil, err
		}

	case domain.StrategyByDepartment:
		departmentID := step.ApproverDepartmentID
		if departmentID == 0 && step.RequiresSameDepartment {
			departmentID = ctx.DepartmentID
		}
		q := tx.Model(&account.User{}).
			Where("role = ? AND is_active = ?", account.RoleDepartmentApprover, true)
		if departmentID != 0 {
			q = q.Where("department_id = ?", departmentID)
		}
		if err := q.Scan(&users).Error; err != nil {
			return nil, err
		}

	case domain.StrategyByRequestor:
		requestor := account.User{}
		err := tx.Model(&account.User{}).Where("id = ?", ctx.RequestorID).Scan(&requestor).Error
		if err == gorm.ErrRecordNotFound {
			return []account.User{}, nil
		}
		if err != nil {
			return nil, err
		}
		users = append(users, requestor)
	}

	if users == nil {
		users = []account.User{}
	}
	return users, nil
}

func approverIds(users []account.User) domain.IDList {
	ids := domain.IDList{}
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids
}

func containsUser(users []account.User, id types.ID) bool {
	for _, u := range users {
		if u.ID == id {
			return true
		}
	}
	return false
}
