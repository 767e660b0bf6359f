package domain

import (
	"github.com/fundwit/go-commons/types"
)

type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusDeclined ApprovalStatus = "declined"
	ApprovalStatusReturned ApprovalStatus = "returned"
)

// ApprovalRecord one approver's pending or finished action on one step of a request.
// Under "all" logic a record exists per eligible approver; under "any" logic a
// single record is owned by the first resolved approver. Records are reset to
// pending on resubmission instead of duplicated, and retained as history.
type ApprovalRecord struct {
	ID types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`

	RequestID    types.ID `json:"requestId"`
	FormKind     FormKind `json:"formKind"`
	ApprovalType string   `json:"approvalType"`

	ApproverID   types.ID `json:"approverId"`
	ApproverName string   `json:"approverName"`

	Status   ApprovalStatus `json:"status"`
	Comments string         `json:"comments" sql:"type:TEXT"`

	EstimatedCompletionTime types.Timestamp `json:"estimatedCompletionTime" sql:"type:DATETIME(6)"`
	Signature               string          `json:"signature"`

	CreateTime types.Timestamp `json:"createTime" sql:"type:DATETIME(6)"`
	ActionTime types.Timestamp `json:"actionTime" sql:"type:DATETIME(6)"`
}
