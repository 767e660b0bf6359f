package bizerror

import (
	"errors"
	"net/http"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidPassword = errors.New("invalid password")

	ErrInvalidState    = errors.New("operation is not allowed in current status")
	ErrNoApproverFound = errors.New("no approver found for this request")
	ErrEmptyLineItems  = errors.New("request has no line items")

	ErrStepOrderInvalid     = errors.New("step orders must be contiguous from 1")
	ErrStepMisconfigured    = errors.New("step approver strategy parameter is missing")
	ErrStepStatusMissing    = errors.New("non-terminal step must declare status on approval")
	ErrWorkflowIsReferenced = errors.New("workflow definition is referenced")
	ErrUnknownApprovalLogic = errors.New("unknown approval logic")
	ErrUnknownFormKind      = errors.New("unknown form kind")
	ErrReturnTargetUnknown  = errors.New("unknown return target")
)

type BizError interface {
	Respond() *BizErrorDetail
}

type BizErrorDetail struct {
	Status  int
	Code    string
	Message string

	Data  interface{}
	Cause error
}

type ErrBadParam struct {
	Cause error
}

func (e *ErrBadParam) Unwrap() error {
	return e.Cause
}
func (e *ErrBadParam) Error() string {
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return "common.bad_param"
}
func (e *ErrBadParam) Respond() *BizErrorDetail {
	message := "common.bad_param"
	if e.Cause != nil {
		message = e.Cause.Error()
	}
	return &BizErrorDetail{Status: http.StatusBadRequest, Code: "common.bad_param", Message: message, Data: nil}
}
