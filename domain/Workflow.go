package domain

import (
	"strings"

	"github.com/fundwit/go-commons/types"
)

type ApproverStrategy string

const (
	StrategyByRole          ApproverStrategy = "byRole"
	StrategyBySpecificUsers ApproverStrategy = "bySpecificUsers"
	StrategyByDepartment    ApproverStrategy = "byDepartment"
	StrategyByRequestor     ApproverStrategy = "byRequestor"
)

type ApprovalLogic string

const (
	LogicAny ApprovalLogic = "any"
	LogicAll ApprovalLogic = "all"
)

type WorkflowDefinition struct {
	ID       types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	FormKind FormKind `json:"formKind"`
	Name     string   `json:"name"`

	IsActive  bool `json:"isActive"`
	IsDefault bool `json:"isDefault"`

	// Builtin marks the hardcoded legacy pipelines. Never persisted.
	Builtin bool `json:"builtin" gorm:"-"`

	CreatorID  types.ID        `json:"creatorId"`
	CreateTime types.Timestamp `json:"createTime" sql:"type:DATETIME(6)"`
}

type WorkflowStep struct {
	ID           types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	DefinitionID types.ID `json:"definitionId"`
	Order        int      `json:"order"`
	Name         string   `json:"name"`

	ApproverStrategy ApproverStrategy `json:"approverStrategy"`
	ApproverRole     string           `json:"approverRole"`
	SpecificUserIDs  IDList           `json:"specificUserIds" sql:"type:TEXT"`
	// ApproverUserID legacy single-approver field, merged with SpecificUserIDs on resolution
	ApproverUserID         types.ID `json:"approverUserId"`
	ApproverDepartmentID   types.ID `json:"approverDepartmentId"`
	RequiresSameDepartment bool     `json:"requiresSameDepartment"`

	ApprovalLogic      ApprovalLogic `json:"approvalLogic"`
	StatusOnApproval   string        `json:"statusOnApproval"`
	StatusOnCompletion string        `json:"statusOnCompletion"`

	CreateTime types.Timestamp `json:"createTime" sql:"type:DATETIME(6)"`
}

type WorkflowDetail struct {
	WorkflowDefinition

	Steps []WorkflowStep `json:"steps"`
}

// ApprovalType the tag stored on approval records of this step,
// derived from the step name: lowercased, spaces to underscores.
func (s *WorkflowStep) ApprovalType() string {
	return strings.ReplaceAll(strings.ToLower(s.Name), " ", "_")
}

func (s *WorkflowStep) DeclinedStatus() string {
	return s.ApprovalType() + "_declined"
}

func (d *WorkflowDetail) FirstStep() *WorkflowStep {
	if len(d.Steps) == 0 {
		return nil
	}
	return &d.Steps[0]
}

func (d *WorkflowDetail) FindStep(id types.ID) *WorkflowStep {
	for i := range d.Steps {
		if d.Steps[i].ID == id {
			return &d.Steps[i]
		}
	}
	return nil
}

// NextStep the step after the given one in order, nil when the given step is terminal.
func (d *WorkflowDetail) NextStep(step *WorkflowStep) *WorkflowStep {
	for i := range d.Steps {
		if d.Steps[i].Order > step.Order {
			return &d.Steps[i]
		}
	}
	return nil
}

// StatusSet the closed set of statuses requests governed by this definition may carry.
func (d *WorkflowDetail) StatusSet() []string {
	statuses := []string{StatusDraft, StatusSubmitted, StatusReturned, StatusDeclined,
		StatusCompleted, StatusCancelled}
	for i := range d.Steps {
		if d.Steps[i].StatusOnApproval != "" {
			statuses = append(statuses, d.Steps[i].StatusOnApproval)
		}
		if d.Steps[i].StatusOnCompletion != "" {
			statuses = append(statuses, d.Steps[i].StatusOnCompletion)
		}
		statuses = append(statuses, d.Steps[i].DeclinedStatus())
	}
	return statuses
}

func (d *WorkflowDetail) IsKnownStatus(status string) bool {
	for _, s := range d.StatusSet() {
		if s == status {
			return true
		}
	}
	return false
}
