package approval

import (
	"reqflow/account"
	"reqflow/domain"

	"github.com/fundwit/go-commons/types"
)

// Hardcoded legacy pipelines, used whenever no workflow definition is
// configured for a form kind. Expressed as ordinary WorkflowDetail values so
// the engine runs the exact same code path for both sources; requests created
// before any definition existed stay drivable through these indefinitely.

var legacyEpoch = types.Timestamp{}

var LegacyItemWorkflow = domain.WorkflowDetail{
	WorkflowDefinition: domain.WorkflowDefinition{
		ID:         1,
		FormKind:   domain.FormKindItemRequest,
		Name:       "legacy-item-approval",
		IsActive:   true,
		IsDefault:  true,
		Builtin:    true,
		CreateTime: legacyEpoch,
	},
	Steps: []domain.WorkflowStep{
		{
			ID: 11, DefinitionID: 1, Order: 1, Name: "department approval",
			ApproverStrategy: domain.StrategyByDepartment, RequiresSameDepartment: true,
			ApprovalLogic: domain.LogicAny, StatusOnApproval: "department_approved",
			CreateTime: legacyEpoch,
		},
		{
			ID: 12, DefinitionID: 1, Order: 2, Name: "manager approval",
			ApproverStrategy: domain.StrategyByRole, ApproverRole: account.RoleManager,
			ApprovalLogic: domain.LogicAny, StatusOnApproval: "manager_approved",
			CreateTime: legacyEpoch,
		},
		{
			ID: 13, DefinitionID: 1, Order: 3, Name: "processing",
			ApproverStrategy: domain.StrategyByRole, ApproverRole: account.RoleProcessor,
			ApprovalLogic: domain.LogicAny, StatusOnCompletion: domain.StatusCompleted,
			CreateTime: legacyEpoch,
		},
	},
}

// the vehicle pipeline evolved without a processing stage
var LegacyVehicleWorkflow = domain.WorkflowDetail{
	WorkflowDefinition: domain.WorkflowDefinition{
		ID:         2,
		FormKind:   domain.FormKindVehicleRequest,
		Name:       "legacy-vehicle-approval",
		IsActive:   true,
		IsDefault:  true,
		Builtin:    true,
		CreateTime: legacyEpoch,
	},
	Steps: []domain.WorkflowStep{
		{
			ID: 21, DefinitionID: 2, Order: 1, Name: "department approval",
			ApproverStrategy: domain.StrategyByDepartment, RequiresSameDepartment: true,
			ApprovalLogic: domain.LogicAny, StatusOnApproval: "department_approved",
			CreateTime: legacyEpoch,
		},
		{
			ID: 22, DefinitionID: 2, Order: 2, Name: "manager approval",
			ApproverStrategy: domain.StrategyByRole, ApproverRole: account.RoleManager,
			ApprovalLogic: domain.LogicAny, StatusOnCompletion: domain.StatusCompleted,
			CreateTime: legacyEpoch,
		},
	},
}

func LegacyWorkflowOf(kind domain.FormKind) *domain.WorkflowDetail {
	switch kind {
	case domain.FormKindItemRequest:
		return &LegacyItemWorkflow
	case domain.FormKindVehicleRequest:
		return &LegacyVehicleWorkflow
	}
	return nil
}
