package domain

import (
	"github.com/fundwit/go-commons/types"
)

const (
	StatusDraft     = "draft"
	StatusSubmitted = "submitted"
	StatusReturned  = "returned"
	StatusDeclined  = "declined"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// RequestRecord the shared shape of both request kinds.
// Each kind keeps its own table; generic engine code reads and writes
// rows through FormKind.RequestTable().
type RequestRecord struct {
	ID       types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	FormKind FormKind `json:"formKind"`
	Title    string   `json:"title"`

	Status        string   `json:"status"`
	DepartmentID  types.ID `json:"departmentId"`
	RequestorID   types.ID `json:"requestorId"`
	RequestorName string   `json:"requestorName"`

	// CurrentStepID the workflow step awaiting action, zero when none.
	CurrentStepID types.ID `json:"currentStepId"`
	// PendingApproverIDs denormalized set of users who may act now.
	PendingApproverIDs IDList `json:"pendingApproverIds" sql:"type:TEXT"`

	CreateTime   types.Timestamp `json:"createTime" sql:"type:DATETIME(6)"`
	SubmitTime   types.Timestamp `json:"submitTime" sql:"type:DATETIME(6)"`
	CompleteTime types.Timestamp `json:"completeTime" sql:"type:DATETIME(6)"`
}

func (r *RequestRecord) IsTerminalStatus() bool {
	return r.Status == StatusCompleted || r.Status == StatusCancelled || r.Status == StatusDeclined
}

type ItemRequest struct {
	RequestRecord
}

func (ItemRequest) TableName() string {
	return "item_requests"
}

type VehicleRequest struct {
	RequestRecord

	VehicleType    string          `json:"vehicleType"`
	Destination    string          `json:"destination"`
	PassengerCount int             `json:"passengerCount"`
	DepartTime     types.Timestamp `json:"departTime" sql:"type:DATETIME(6)"`
	ReturnTime     types.Timestamp `json:"returnTime" sql:"type:DATETIME(6)"`
}

func (VehicleRequest) TableName() string {
	return "vehicle_requests"
}

type RequestLineItem struct {
	ID        types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	RequestID types.ID `json:"requestId"`

	Name          string `json:"name"`
	Specification string `json:"specification"`
	Quantity      int    `json:"quantity"`

	CreateTime types.Timestamp `json:"createTime" sql:"type:DATETIME(6)"`
}
