package approval

import (
	"strings"

	"reqflow/account"
	"reqflow/auditlog"
	"reqflow/bizerror"
	"reqflow/domain"
	"reqflow/domain/flow"
	"reqflow/idgen"
	"reqflow/indices"
	"reqflow/notification"
	"reqflow/persistence"
	"reqflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

var (
	approvalIdWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	SubmitRequestFunc  = SubmitRequest
	ApproveRequestFunc = ApproveRequest
	DeclineRequestFunc = DeclineRequest
	ReturnRequestFunc  = ReturnRequest
	CancelRequestFunc  = CancelRequest
)

type ApprovalReview struct {
	Comments  string `json:"comments"`
	Signature string `json:"signature"`

	EstimatedCompletionTime types.Timestamp `json:"estimatedCompletionTime"`
}

const (
	ReturnToRequestor = "requestor"
	ReturnToFirstStep = "first_step"
)

type ReturnDirective struct {
	Reason   string `json:"reason"`
	ReturnTo string `json:"returnTo"`
}

// SubmitRequest move a draft or returned request into the first approval step.
func SubmitRequest(kind domain.FormKind, id types.ID, s *session.Session) (*domain.RequestRecord, error) {
	var rec *domain.RequestRecord
	var approvers []account.User

	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		r, err := loadRequestForUpdate(tx, kind, id)
		if err != nil {
			return err
		}
		if r.RequestorID != s.Identity.ID && !s.Perms.HasRole(account.RoleSystemAdmin) {
			return bizerror.ErrForbidden
		}
		if r.Status != domain.StatusDraft && r.Status != domain.StatusReturned {
			return bizerror.ErrInvalidState
		}
		if kind == domain.FormKindItemRequest {
			count := 0
			if err := tx.Model(&domain.RequestLineItem{}).Where("request_id = ?", r.ID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return bizerror.ErrEmptyLineItems
			}
		}

		def, err := effectiveWorkflow(tx, kind)
		if err != nil {
			return err
		}
		first := def.FirstStep()

		approvers, err = ResolveStepApproversFunc(tx, first, ApproverContext{DepartmentID: r.DepartmentID, RequestorID: r.RequestorID})
		if err != nil {
			return err
		}
		if len(approvers) == 0 {
			return bizerror.ErrNoApproverFound
		}
		if err := materializeStepRecords(tx, r, first, approvers); err != nil {
			return err
		}

		now := types.CurrentTimestamp()
		pending := approverIds(approvers)
		if err := tx.Table(kind.RequestTable()).Where("id = ?", r.ID).Updates(map[string]interface{}{
			"status": domain.StatusSubmitted, "current_step_id": first.ID,
			"pending_approver_ids": pending, "submit_time": now,
		}).Error; err != nil {
			return err
		}

		r.Status = domain.StatusSubmitted
		r.CurrentStepID = first.ID
		r.PendingApproverIDs = pending
		r.SubmitTime = now
		rec = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	notification.NotifySubmittedFunc(rec, approvers[0].ID)
	for _, approver := range approvers {
		notification.NotifyApprovalRequiredFunc(rec, approver.ID)
	}
	auditlog.RecordFunc(&s.Identity, auditlog.ActionSubmit, string(kind), rec.ID,
		auditlog.Details{"status": rec.Status})
	indices.SyncRequestIndex(rec)
	return rec, nil
}

// ApproveRequest record the acting user's approval on the step they are
// authorized for, and advance the request when the step completes.
func ApproveRequest(kind domain.FormKind, id types.ID, review *ApprovalReview, s *session.Session) (*domain.RequestRecord, error) {
	var rec *domain.RequestRecord
	var completedStep *domain.WorkflowStep
	var nextApprovers []account.User

	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		r, err := loadRequestForUpdate(tx, kind, id)
		if err != nil {
			return err
		}
		if !isAwaitingApproval(r) {
			return bizerror.ErrInvalidState
		}

		def, step, err := locateWithLegacyFallback(tx, kind, r, s.Identity.ID)
		if err != nil {
			return err
		}
		if step == nil {
			return bizerror.ErrForbidden
		}

		approvalRecord, err := findOrCreateApprovalRecord(tx, r, step, &s.Identity)
		if err != nil {
			return err
		}
		now := types.CurrentTimestamp()
		if err := tx.Model(&domain.ApprovalRecord{}).Where("id = ?", approvalRecord.ID).Updates(map[string]interface{}{
			"status": domain.ApprovalStatusApproved, "comments": review.Comments,
			"signature": review.Signature, "estimated_completion_time": review.EstimatedCompletionTime,
			"approver_id": s.Identity.ID, "approver_name": s.Identity.Nickname,
			"action_time": now,
		}).Error; err != nil {
			return err
		}

		complete := true
		if step.ApprovalLogic == domain.LogicAll {
			pendingCount := 0
			if err := tx.Model(&domain.ApprovalRecord{}).
				Where("request_id = ? AND approval_type = ? AND status = ?",
					r.ID, step.ApprovalType(), domain.ApprovalStatusPending).
				Count(&pendingCount).Error; err != nil {
				return err
			}
			complete = pendingCount == 0
		}

		if !complete {
			pending := r.PendingApproverIDs.Remove(s.Identity.ID)
			if err := tx.Table(kind.RequestTable()).Where("id = ?", r.ID).
				Update("pending_approver_ids", pending).Error; err != nil {
				return err
			}
			r.PendingApproverIDs = pending
			rec = r
			return nil
		}

		completedStep = step
		next := def.NextStep(step)
		if next != nil {
			nextApprovers, err = ResolveStepApproversFunc(tx, next, ApproverContext{DepartmentID: r.DepartmentID, RequestorID: r.RequestorID})
			if err != nil {
				return err
			}
			if len(nextApprovers) == 0 {
				return bizerror.ErrNoApproverFound
			}
			if err := materializeStepRecords(tx, r, next, nextApprovers); err != nil {
				return err
			}

			if step.StatusOnApproval == "" {
				return bizerror.ErrStepStatusMissing
			}
			pending := approverIds(nextApprovers)
			if err := tx.Table(kind.RequestTable()).Where("id = ?", r.ID).Updates(map[string]interface{}{
				"status": step.StatusOnApproval, "current_step_id": next.ID,
				"pending_approver_ids": pending,
			}).Error; err != nil {
				return err
			}
			r.Status = step.StatusOnApproval
			r.CurrentStepID = next.ID
			r.PendingApproverIDs = pending
		} else {
			finalStatus := step.StatusOnCompletion
			if finalStatus == "" {
				finalStatus = domain.StatusCompleted
			}
			if err := tx.Table(kind.RequestTable()).Where("id = ?", r.ID).Updates(map[string]interface{}{
				"status": finalStatus, "current_step_id": 0,
				"pending_approver_ids": domain.IDList{}, "complete_time": now,
			}).Error; err != nil {
				return err
			}
			r.Status = finalStatus
			r.CurrentStepID = 0
			r.PendingApproverIDs = domain.IDList{}
			r.CompleteTime = now
		}
		rec = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	auditlog.RecordFunc(&s.Identity, auditlog.ActionApprove, string(kind), rec.ID,
		auditlog.Details{"status": rec.Status})
	if completedStep != nil {
		notification.NotifyApprovedFunc(rec, s.Identity.ID, completedStep.Name)
		for _, approver := range nextApprovers {
			notification.NotifyApprovalRequiredFunc(rec, approver.ID)
		}
	}
	indices.SyncRequestIndex(rec)
	return rec, nil
}

// DeclineRequest record a decline. A decline ends the step immediately:
// remaining pending approval records of the step are discarded instead of
// left dangling.
func DeclineRequest(kind domain.FormKind, id types.ID, review *ApprovalReview, s *session.Session) (*domain.RequestRecord, error) {
	var rec *domain.RequestRecord
	var stageLabel string

	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		r, err := loadRequestForUpdate(tx, kind, id)
		if err != nil {
			return err
		}
		if !isAwaitingApproval(r) {
			return bizerror.ErrInvalidState
		}

		def, step, err := locateWithLegacyFallback(tx, kind, r, s.Identity.ID)
		if err != nil {
			return err
		}
		if step == nil {
			return bizerror.ErrForbidden
		}
		stageLabel = step.Name

		approvalRecord, err := findOrCreateApprovalRecord(tx, r, step, &s.Identity)
		if err != nil {
			return err
		}
		now := types.CurrentTimestamp()
		if err := tx.Model(&domain.ApprovalRecord{}).Where("id = ?", approvalRecord.ID).Updates(map[string]interface{}{
			"status": domain.ApprovalStatusDeclined, "comments": review.Comments,
			"signature": review.Signature, "approver_id": s.Identity.ID,
			"approver_name": s.Identity.Nickname, "action_time": now,
		}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&domain.ApprovalRecord{},
			"request_id = ? AND approval_type = ? AND status = ? AND id != ?",
			r.ID, step.ApprovalType(), domain.ApprovalStatusPending, approvalRecord.ID).Error; err != nil {
			return err
		}

		declinedStatus := step.DeclinedStatus()
		if def.Builtin {
			declinedStatus = domain.StatusDeclined
		}
		if err := tx.Table(kind.RequestTable()).Where("id = ?", r.ID).Updates(map[string]interface{}{
			"status": declinedStatus, "current_step_id": 0, "pending_approver_ids": domain.IDList{},
		}).Error; err != nil {
			return err
		}
		r.Status = declinedStatus
		r.CurrentStepID = 0
		r.PendingApproverIDs = domain.IDList{}
		rec = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	notification.NotifyDeclinedFunc(rec, s.Identity.ID, stageLabel)
	auditlog.RecordFunc(&s.Identity, auditlog.ActionDecline, string(kind), rec.ID,
		auditlog.Details{"status": rec.Status})
	indices.SyncRequestIndex(rec)
	return rec, nil
}

// ReturnRequest rewind the request: fully to the requestor (returned, may be
// resubmitted) or to the first approval step (submitted).
func ReturnRequest(kind domain.FormKind, id types.ID, directive *ReturnDirective, s *session.Session) (*domain.RequestRecord, error) {
	if directive.ReturnTo != "" && directive.ReturnTo != ReturnToRequestor && directive.ReturnTo != ReturnToFirstStep {
		return nil, bizerror.ErrReturnTargetUnknown
	}

	var rec *domain.RequestRecord

	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		r, err := loadRequestForUpdate(tx, kind, id)
		if err != nil {
			return err
		}
		if !isAwaitingApproval(r) {
			return bizerror.ErrInvalidState
		}

		_, step, err := locateWithLegacyFallback(tx, kind, r, s.Identity.ID)
		if err != nil {
			return err
		}
		if step == nil {
			return bizerror.ErrForbidden
		}

		approvalRecord, err := findOrCreateApprovalRecord(tx, r, step, &s.Identity)
		if err != nil {
			return err
		}
		now := types.CurrentTimestamp()
		if err := tx.Model(&domain.ApprovalRecord{}).Where("id = ?", approvalRecord.ID).Updates(map[string]interface{}{
			"status": domain.ApprovalStatusReturned, "comments": directive.Reason,
			"approver_id": s.Identity.ID, "approver_name": s.Identity.Nickname, "action_time": now,
		}).Error; err != nil {
			return err
		}

		changes := map[string]interface{}{
			"current_step_id": 0, "pending_approver_ids": domain.IDList{},
		}
		if directive.ReturnTo == ReturnToFirstStep {
			changes["status"] = domain.StatusSubmitted
			r.Status = domain.StatusSubmitted
		} else {
			changes["status"] = domain.StatusReturned
			changes["submit_time"] = types.Timestamp{}
			r.Status = domain.StatusReturned
			r.SubmitTime = types.Timestamp{}
		}
		if err := tx.Table(kind.RequestTable()).Where("id = ?", r.ID).Updates(changes).Error; err != nil {
			return err
		}
		r.CurrentStepID = 0
		r.PendingApproverIDs = domain.IDList{}
		rec = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	notification.NotifyReturnedFunc(rec, s.Identity.ID, directive.Reason)
	auditlog.RecordFunc(&s.Identity, auditlog.ActionReturn, string(kind), rec.ID,
		auditlog.Details{"status": rec.Status, "returnTo": directive.ReturnTo})
	indices.SyncRequestIndex(rec)
	return rec, nil
}

// CancelRequest owner or administrator only; approval records are left untouched.
func CancelRequest(kind domain.FormKind, id types.ID, s *session.Session) (*domain.RequestRecord, error) {
	var rec *domain.RequestRecord

	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		r, err := loadRequestForUpdate(tx, kind, id)
		if err != nil {
			return err
		}
		if r.RequestorID != s.Identity.ID && !s.Perms.HasRole(account.RoleSystemAdmin) {
			return bizerror.ErrForbidden
		}
		if r.IsTerminalStatus() || strings.HasSuffix(r.Status, "_declined") {
			return bizerror.ErrInvalidState
		}

		if err := tx.Table(kind.RequestTable()).Where("id = ?", r.ID).Updates(map[string]interface{}{
			"status": domain.StatusCancelled, "current_step_id": 0, "pending_approver_ids": domain.IDList{},
		}).Error; err != nil {
			return err
		}
		r.Status = domain.StatusCancelled
		r.CurrentStepID = 0
		r.PendingApproverIDs = domain.IDList{}
		rec = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	auditlog.RecordFunc(&s.Identity, auditlog.ActionCancel, string(kind), rec.ID,
		auditlog.Details{"status": rec.Status})
	indices.SyncRequestIndex(rec)
	return rec, nil
}

func isAwaitingApproval(r *domain.RequestRecord) bool {
	if r.Status == domain.StatusDraft || r.Status == domain.StatusReturned {
		return false
	}
	if r.IsTerminalStatus() || strings.HasSuffix(r.Status, "_declined") {
		return false
	}
	return true
}

// loadRequestForUpdate read the request row under a row lock; the whole
// read-evaluate-write of a transition happens inside one transaction so
// concurrent approvers serialize on the row.
func loadRequestForUpdate(tx *gorm.DB, kind domain.FormKind, id types.ID) (*domain.RequestRecord, error) {
	if kind.RequestTable() == "" {
		return nil, bizerror.ErrUnknownFormKind
	}
	rec := domain.RequestRecord{}
	err := tx.Table(kind.RequestTable()).Set("gorm:query_option", "FOR UPDATE").
		Where("id = ?", id).Scan(&rec).Error
	if err != nil {
		return nil, err
	}
	rec.FormKind = kind
	return &rec, nil
}

// effectiveWorkflow the configured active definition, or the legacy pipeline
// when none (or an empty one) is configured.
func effectiveWorkflow(tx *gorm.DB, kind domain.FormKind) (*domain.WorkflowDetail, error) {
	def, err := flow.ActiveDefinitionFunc(tx, kind)
	if err != nil {
		return nil, err
	}
	if def == nil || len(def.Steps) == 0 {
		return LegacyWorkflowOf(kind), nil
	}
	return def, nil
}

func locateWithLegacyFallback(tx *gorm.DB, kind domain.FormKind, r *domain.RequestRecord,
	actorID types.ID) (*domain.WorkflowDetail, *domain.WorkflowStep, error) {

	reqCtx := RequestContext{DepartmentID: r.DepartmentID, RequestorID: r.RequestorID, CurrentStepID: r.CurrentStepID}

	def, err := effectiveWorkflow(tx, kind)
	if err != nil {
		return nil, nil, err
	}
	step, err := LocateActingStepFunc(tx, def, actorID, r.Status, reqCtx)
	if err != nil {
		return nil, nil, err
	}
	if step != nil {
		return def, step, nil
	}

	// requests that predate the configured definition keep following the
	// legacy pipeline
	if !def.Builtin {
		legacy := LegacyWorkflowOf(kind)
		step, err = LocateActingStepFunc(tx, legacy, actorID, r.Status, reqCtx)
		if err != nil {
			return nil, nil, err
		}
		if step != nil {
			return legacy, step, nil
		}
	}
	return def, nil, nil
}

func findOrCreateApprovalRecord(tx *gorm.DB, r *domain.RequestRecord, step *domain.WorkflowStep,
	identity *session.Identity) (*domain.ApprovalRecord, error) {

	approvalType := step.ApprovalType()
	record := domain.ApprovalRecord{}
	err := tx.Where("request_id = ? AND approval_type = ? AND approver_id = ?",
		r.ID, approvalType, identity.ID).First(&record).Error
	if err == nil {
		return &record, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	// under "any" logic the single generic record may be owned by another
	// eligible approver
	if step.ApprovalLogic == domain.LogicAny {
		err = tx.Where("request_id = ? AND approval_type = ?", r.ID, approvalType).
			First(&record).Error
		if err == nil {
			return &record, nil
		}
		if err != gorm.ErrRecordNotFound {
			return nil, err
		}
	}

	record = domain.ApprovalRecord{
		ID:           idgen.NextID(approvalIdWorker),
		RequestID:    r.ID,
		FormKind:     r.FormKind,
		ApprovalType: approvalType,
		ApproverID:   identity.ID,
		ApproverName: identity.Nickname,
		Status:       domain.ApprovalStatusPending,
		CreateTime:   types.CurrentTimestamp(),
	}
	if err := tx.Create(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// materializeStepRecords create or reset the approval records of a step that
// just became active: one per approver under "all" logic, a single record
// owned by the first approver under "any" logic. Existing records of the step
// are reset to pending in place instead of duplicated.
func materializeStepRecords(tx *gorm.DB, r *domain.RequestRecord, step *domain.WorkflowStep,
	approvers []account.User) error {

	approvalType := step.ApprovalType()
	var existing []domain.ApprovalRecord
	if err := tx.Where("request_id = ? AND approval_type = ?", r.ID, approvalType).
		Find(&existing).Error; err != nil {
		return err
	}

	targets := approvers
	if step.ApprovalLogic == domain.LogicAny {
		targets = approvers[:1]
	}

	now := types.CurrentTimestamp()
	reused := map[types.ID]bool{}
	for _, approver := range targets {
		var reuse *domain.ApprovalRecord
		if step.ApprovalLogic == domain.LogicAny && len(existing) > 0 {
			reuse = &existing[0]
		} else {
			for i := range existing {
				if existing[i].ApproverID == approver.ID {
					reuse = &existing[i]
					break
				}
			}
		}

		if reuse != nil {
			reused[reuse.ID] = true
			if err := tx.Model(&domain.ApprovalRecord{}).Where("id = ?", reuse.ID).Updates(map[string]interface{}{
				"status": domain.ApprovalStatusPending, "approver_id": approver.ID,
				"approver_name": approver.DisplayName(), "comments": "", "signature": "",
				"action_time": types.Timestamp{},
			}).Error; err != nil {
				return err
			}
			continue
		}

		record := domain.ApprovalRecord{
			ID:           idgen.NextID(approvalIdWorker),
			RequestID:    r.ID,
			FormKind:     r.FormKind,
			ApprovalType: approvalType,
			ApproverID:   approver.ID,
			ApproverName: approver.DisplayName(),
			Status:       domain.ApprovalStatusPending,
			CreateTime:   now,
		}
		if err := tx.Create(&record).Error; err != nil {
			return err
		}
	}

	for i := range existing {
		if !reused[existing[i].ID] {
			if err := tx.Delete(&domain.ApprovalRecord{}, "id = ?", existing[i].ID).Error; err != nil {
				return err
			}
		}
	}
	return nil
}
