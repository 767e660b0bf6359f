package approval_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"reqflow/account"
	"reqflow/auditlog"
	"reqflow/bizerror"
	"reqflow/domain"
	"reqflow/domain/approval"
	"reqflow/domain/flow"
	"reqflow/domain/request"
	"reqflow/persistence"
	"reqflow/session"
	"reqflow/testinfra"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/assert"
)

func setup(t *testing.T, testDatabase **testinfra.TestDatabase) {
	db := testinfra.StartMysqlTestDatabase("reqflow")
	assert.Nil(t, db.DS.GormDB(context.Background()).AutoMigrate(
		&account.User{}, &account.Department{},
		&domain.WorkflowDefinition{}, &domain.WorkflowStep{},
		&domain.ItemRequest{}, &domain.VehicleRequest{}, &domain.RequestLineItem{},
		&domain.ApprovalRecord{}, &auditlog.AuditRecord{}).Error)
	persistence.ActiveDataSourceManager = db.DS
	flow.FlushDefinitionCache()
	*testDatabase = db
}

func teardown(t *testing.T, testDatabase *testinfra.TestDatabase) {
	if testDatabase != nil {
		testinfra.StopMysqlTestDatabase(testDatabase)
	}
}

func createUser(db *gorm.DB, id types.ID, role string, departmentID types.ID, active bool) {
	Expect(db.Create(&account.User{ID: id, Name: fmt.Sprintf("user%d", id),
		Nickname: fmt.Sprintf("User %d", id), Role: role, DepartmentID: departmentID,
		IsActive: active}).Error).To(BeNil())
}

// the cast of the legacy pipeline scenarios
func createDirectory(db *gorm.DB) {
	createUser(db, 10, "", 1, true)                              // requestor
	createUser(db, 21, account.RoleDepartmentApprover, 1, true)  // same department
	createUser(db, 22, account.RoleDepartmentApprover, 2, true)  // other department
	createUser(db, 31, account.RoleManager, 1, true)             //
	createUser(db, 32, account.RoleManager, 2, true)             //
	createUser(db, 41, account.RoleProcessor, 1, true)           //
	createUser(db, 23, account.RoleDepartmentApprover, 1, false) // inactive, never resolved
}

func createDraftItemRequest(s *session.Session) *domain.ItemRequest {
	record, err := request.CreateItemRequest(&request.ItemRequestCreation{
		Title:     "two laptops",
		LineItems: []request.LineItemCreation{{Name: "laptop", Specification: "16G", Quantity: 2}},
	}, s)
	Expect(err).To(BeNil())
	Expect(record.Status).To(Equal(domain.StatusDraft))
	return record
}

func approvalRecordsOf(db *gorm.DB, requestID types.ID) []domain.ApprovalRecord {
	var records []domain.ApprovalRecord
	Expect(db.Where("request_id = ?", requestID).Order("create_time ASC, id ASC").
		Find(&records).Error).To(BeNil())
	return records
}

func TestSubmitRequest(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase
	requestor := testinfra.BuildSession(10, 1)

	t.Run("should run the legacy pipeline when nothing is configured", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)
		db := testDatabase.DS.GormDB(context.Background())
		createDirectory(db)

		draft := createDraftItemRequest(requestor)
		submitted, err := approval.SubmitRequest(domain.FormKindItemRequest, draft.ID, requestor)
		Expect(err).To(BeNil())
		Expect(submitted.Status).To(Equal(domain.StatusSubmitted))
		Expect(submitted.CurrentStepID).To(Equal(approval.LegacyItemWorkflow.Steps[0].ID))
		Expect(submitted.PendingApproverIDs).To(Equal(domain.IDList{21}))
		Expect(submitted.SubmitTime).ToNot(BeZero())

		records := approvalRecordsOf(db, draft.ID)
		Expect(len(records)).To(Equal(1))
		Expect(records[0].ApprovalType).To(Equal("department_approval"))
		Expect(records[0].ApproverID).To(Equal(types.ID(21)))
		Expect(records[0].Status).To(Equal(domain.ApprovalStatusPending))
	})

	t.Run("should reject item requests without line items", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)
		db := testDatabase.DS.GormDB(context.Background())
		createDirectory(db)

		record, err := request.CreateItemRequest(&request.ItemRequestCreation{Title: "empty"}, requestor)
		Expect(err).To(BeNil())

		submitted, err := approval.SubmitRequest(domain.FormKindItemRequest, record.ID, requestor)
		Expect(submitted).To(BeNil())
		Expect(err).To(Equal(bizerror.ErrEmptyLineItems))
	})

	t.Run("should fail and stay draft when no approver can be resolved", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)
		db := testDatabase.DS.GormDB(context.Background())
		// department 3 has no approver at all
		createUser(db, 10, "", 3, true)

		orphan := testinfra.BuildSession(10, 3)
		draft := createDraftItemRequest(orphan)

		submitted, err := approval.SubmitRequest(domain.FormKindItemRequest, draft.ID, orphan)
		Expect(submitted).To(BeNil())
		Expect(err).To(Equal(bizerror.ErrNoApproverFound))

		loaded := domain.ItemRequest{}
		Expect(db.Where("id = ?", draft.ID).First(&loaded).Error).To(BeNil())
		Expect(loaded.Status).To(Equal(domain.StatusDraft))
		Expect(len(approvalRecordsOf(db, draft.ID))).To(BeZero())
	})

	t.Run("should forbid submitting another user's request", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)
		db := testDatabase.DS.GormDB(context.Background())
		createDirectory(db)

		draft := createDraftItemRequest(requestor)
		_, err := approval.SubmitRequest(domain.FormKindItemRequest, draft.ID, testinfra.BuildSession(21, 1))
		Expect(err).To(Equal(bizerror.ErrForbidden))
	})

	t.Run("should reject submit of a request already in flight", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)
		db := testDatabase.DS.GormDB(context.Background())
		createDirectory(db)

		draft := createDraftItemRequest(requestor)
		_, err := approval.SubmitRequest(domain.FormKindItemRequest, draft.ID, requestor)
		Expect(err).To(BeNil())
		_, err = approval.SubmitRequest(domain.FormKindItemRequest, draft.ID, requestor)
		Expect(err).To(Equal(bizerror.ErrInvalidState))
	})
}

func TestApproveRequestLegacyPipeline(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase
	requestor := testinfra.BuildSession(10, 1)

	t.Run("should walk the whole item pipeline stage by stage", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)
		db := testDatabase.DS.GormDB(context.Background())
		createDirectory(db)

		draft := createDraftItemRequest(requestor)
		_, err := approval.SubmitRequest(domain.FormKindItemRequest, draft.ID, requestor)
		Expect(err).To(BeNil())

		// department stage, any logic: one approval completes it
		record, err := approval.ApproveRequest(domain.FormKindItemRequest, draft.ID,
			&approval.ApprovalReview{Comments: "ok"}, testinfra.BuildSession(21, 1))
		Expect(err).To(BeNil())
		Expect(record.Status).To(Equal("department_approved"))
		Expect(record.CurrentStepID).To(Equal(approval.LegacyItemWorkflow.Steps[1].ID))
		Expect(record.PendingApproverIDs).To(Equal(domain.IDList{31, 32}))

		// manager stage: any manager may act, not only the record owner
		record, err = approval.ApproveRequest(domain.FormKindItemRequest, draft.ID,
			&approval.ApprovalReview{}, testinfra.BuildSession(32, 2))
		Expect(err).To(BeNil())
		Expect(record.Status).To(Equal("manager_approved"))
		Expect(record.PendingApproverIDs).To(Equal(domain.IDList{41}))

		// processing stage is terminal
		record, err = approval.ApproveRequest(domain.FormKindItemRequest, draft.ID,
			&approval.ApprovalReview{EstimatedCompletionTime: types.CurrentTimestamp()}, testinfra.BuildSession(41, 1))
		Expect(err).To(BeNil())
		Expect(record.Status).To(Equal(domain.StatusCompleted))
		Expect(record.CurrentStepID).To(BeZero())
		Expect(record.PendingApproverIDs).To(Equal(domain.IDList{}))
		Expect(record.CompleteTime).ToNot(BeZero())

		records := approvalRecordsOf(db, draft.ID)
		Expect(len(records)).To(Equal(3))
		for _, r := range records {
			Expect(r.Status).To(Equal(domain.ApprovalStatusApproved))
		}
		// the manager record was taken over by the acting manager
		Expect(records[1].ApproverID).To(Equal(types.ID(32)))
	})

	t.Run("should forbid users outside the acting step", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)
		db := testDatabase.DS.GormDB(context.Background())
		createDirectory(db)

		draft := createDraftItemRequest(requestor)
		_, err := approval.SubmitRequest(domain.FormKindItemRequest, draft.ID, requestor)
		Expect(err).To(BeNil())

		// manager may not act while the department stage is pending
		_, err = approval.ApproveRequest(domain.FormKindItemRequest, draft.ID,
			&approval.ApprovalReview{}, testinfra.BuildSession(31, 1))
		Expect(err).To(Equal(bizerror.ErrForbidden))

		// the other department's approver may not act either
		_, err = approval.ApproveRequest(domain.FormKindItemRequest, draft.ID,
			&approval.ApprovalReview{}, testinfra.BuildSession(22, 2))
		Expect(err).To(Equal(bizerror.ErrForbidden))
	})

	t.Run("should reject approval of drafts and finished requests", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)
		db := testDatabase.DS.GormDB(context.Background())
		createDirectory(db)

		draft := createDraftItemRequest(requestor)
		_, err := approval.ApproveRequest(domain.FormKindItemRequest, draft.ID,
			&approval.ApprovalReview{}, testinfra.BuildSession(21, 1))
		Expect(err).To(Equal(bizerror.ErrInvalidState))
	})

	t.Run("should abort the whole approval when the next stage has no approver", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)
		db := testDatabase.DS.GormDB(context.Background())
		createUser(db, 10, "", 1, true)
		createUser(db, 21, account.RoleDepartmentApprover, 1, true)
		// no manager exists anywhere

		draft := createDraftItemRequest(requestor)
		_, err := approval.SubmitRequest(domain.FormKindItemRequest, draft.ID, requestor)
		Expect(err).To(BeNil())

		_, err = approval.ApproveRequest(domain.FormKindItemRequest, draft.ID,
			&approval.ApprovalReview{}, testinfra.BuildSession(21, 1))
		Expect(err).To(Equal(bizerror.ErrNoApproverFound))

		loaded := domain.ItemRequest{}
		Expect(db.Where("id = ?", draft.ID).First(&loaded).Error).To(BeNil())
		Expect(loaded.Status).To(Equal(domain.StatusSubmitted))
		Expect(loaded.PendingApproverIDs).To(Equal(domain.IDList{21}))
	})
}

func TestApproveRequestConfiguredWorkflow(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase
	requestor := testinfra.BuildSession(10, 1)
	admin := testinfra.BuildSession(1, 1, account.RoleSystemAdmin)

	t.Run("should complete an all step only after every approver acted", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)
		db := testDatabase.DS.GormDB(context.Background())
		createDirectory(db)

		detail, err := flow.CreateWorkflowDefinition(&flow.WorkflowDefinitionCreation{
			FormKind: domain.FormKindVehicleRequest, Name: "vehicle v2", IsActive: true, IsDefault: true,
			Steps: []flow.StepCreation{
				{Order: 1, Name: "management review", ApproverStrategy: domain.StrategyBySpecificUsers,
					SpecificUserIDs: domain.IDList{31, 32}, ApprovalLogic: domain.LogicAll,
					StatusOnApproval: "management_reviewed"},
				{Order: 2, Name: "dispatch", ApproverStrategy: domain.StrategyByRole,
					ApproverRole: account.RoleProcessor, ApprovalLogic: domain.LogicAny,
					StatusOnCompletion: "dispatched"},
			},
		}, admin)
		Expect(err).To(BeNil())

		vehicle, err := request.CreateVehicleRequest(&request.VehicleRequestCreation{
			Title: "airport trip", VehicleType: "van", Destination: "airport", PassengerCount: 5,
		}, requestor)
		Expect(err).To(BeNil())

		submitted, err := approval.SubmitRequest(domain.FormKindVehicleRequest, vehicle.ID, requestor)
		Expect(err).To(BeNil())
		Expect(submitted.CurrentStepID).To(Equal(detail.Steps[0].ID))
		Expect(submitted.PendingApproverIDs).To(Equal(domain.IDList{31, 32}))
		Expect(len(approvalRecordsOf(db, vehicle.ID))).To(Equal(2))

		// first of two approvals keeps the stage open
		record, err := approval.ApproveRequest(domain.FormKindVehicleRequest, vehicle.ID,
			&approval.ApprovalReview{}, testinfra.BuildSession(31, 1))
		Expect(err).To(BeNil())
		Expect(record.Status).To(Equal(domain.StatusSubmitted))
		Expect(record.CurrentStepID).To(Equal(detail.Steps[0].ID))
		Expect(record.PendingApproverIDs).To(Equal(domain.IDList{32}))

		// acting twice changes nothing but is forbidden once removed from pending
		record, err = approval.ApproveRequest(domain.FormKindVehicleRequest, vehicle.ID,
			&approval.ApprovalReview{}, testinfra.BuildSession(32, 2))
		Expect(err).To(BeNil())
		Expect(record.Status).To(Equal("management_reviewed"))
		Expect(record.CurrentStepID).To(Equal(detail.Steps[1].ID))
		Expect(record.PendingApproverIDs).To(Equal(domain.IDList{41}))

		record, err = approval.ApproveRequest(domain.FormKindVehicleRequest, vehicle.ID,
			&approval.ApprovalReview{}, testinfra.BuildSession(41, 1))
		Expect(err).To(BeNil())
		Expect(record.Status).To(Equal("dispatched"))
		Expect(record.CompleteTime).ToNot(BeZero())
	})

	t.Run("should materialize every approver of an all step reached mid flow", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)
		db := testDatabase.DS.GormDB(context.Background())
		createDirectory(db)

		detail, err := flow.CreateWorkflowDefinition(&flow.WorkflowDefinitionCreation{
			FormKind: domain.FormKindVehicleRequest, Name: "vehicle v3", IsActive: true, IsDefault: true,
			Steps: []flow.StepCreation{
				{Order: 1, Name: "dispatch check", ApproverStrategy: domain.StrategyByRole,
					ApproverRole: account.RoleProcessor, ApprovalLogic: domain.LogicAny,
					StatusOnApproval: "dispatch_checked"},
				{Order: 2, Name: "management review", ApproverStrategy: domain.StrategyBySpecificUsers,
					SpecificUserIDs: domain.IDList{31, 32}, ApprovalLogic: domain.LogicAll,
					StatusOnCompletion: "reviewed"},
			},
		}, admin)
		Expect(err).To(BeNil())

		vehicle, err := request.CreateVehicleRequest(&request.VehicleRequestCreation{
			Title: "station run", VehicleType: "car", Destination: "station", PassengerCount: 3,
		}, requestor)
		Expect(err).To(BeNil())
		_, err = approval.SubmitRequest(domain.FormKindVehicleRequest, vehicle.ID, requestor)
		Expect(err).To(BeNil())
		Expect(len(approvalRecordsOf(db, vehicle.ID))).To(Equal(1))

		// completing the any step fans the all step out to both approvers
		record, err := approval.ApproveRequest(domain.FormKindVehicleRequest, vehicle.ID,
			&approval.ApprovalReview{}, testinfra.BuildSession(41, 1))
		Expect(err).To(BeNil())
		Expect(record.Status).To(Equal("dispatch_checked"))
		Expect(record.CurrentStepID).To(Equal(detail.Steps[1].ID))
		Expect(record.PendingApproverIDs).To(Equal(domain.IDList{31, 32}))

		records := approvalRecordsOf(db, vehicle.ID)
		Expect(len(records)).To(Equal(3))
		pendingReviews := 0
		for _, r := range records {
			if r.ApprovalType == "management_review" {
				Expect(r.Status).To(Equal(domain.ApprovalStatusPending))
				pendingReviews++
			}
		}
		Expect(pendingReviews).To(Equal(2))

		// one of two approvals keeps the status and the step pointer
		record, err = approval.ApproveRequest(domain.FormKindVehicleRequest, vehicle.ID,
			&approval.ApprovalReview{}, testinfra.BuildSession(31, 1))
		Expect(err).To(BeNil())
		Expect(record.Status).To(Equal("dispatch_checked"))
		Expect(record.CurrentStepID).To(Equal(detail.Steps[1].ID))
		Expect(record.PendingApproverIDs).To(Equal(domain.IDList{32}))

		record, err = approval.ApproveRequest(domain.FormKindVehicleRequest, vehicle.ID,
			&approval.ApprovalReview{}, testinfra.BuildSession(32, 2))
		Expect(err).To(BeNil())
		Expect(record.Status).To(Equal("reviewed"))
		Expect(record.CurrentStepID).To(BeZero())
		Expect(record.CompleteTime).ToNot(BeZero())
	})

	t.Run("should complete an all step exactly once under concurrent approvals", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)
		db := testDatabase.DS.GormDB(context.Background())
		createDirectory(db)

		detail, err := flow.CreateWorkflowDefinition(&flow.WorkflowDefinitionCreation{
			FormKind: domain.FormKindVehicleRequest, Name: "vehicle v2", IsActive: true, IsDefault: true,
			Steps: []flow.StepCreation{
				{Order: 1, Name: "management review", ApproverStrategy: domain.StrategyBySpecificUsers,
					SpecificUserIDs: domain.IDList{31, 32}, ApprovalLogic: domain.LogicAll,
					StatusOnApproval: "management_reviewed"},
				{Order: 2, Name: "dispatch", ApproverStrategy: domain.StrategyByRole,
					ApproverRole: account.RoleProcessor, ApprovalLogic: domain.LogicAny,
					StatusOnCompletion: "dispatched"},
			},
		}, admin)
		Expect(err).To(BeNil())

		vehicle, err := request.CreateVehicleRequest(&request.VehicleRequestCreation{
			Title: "airport trip", VehicleType: "van", Destination: "airport", PassengerCount: 5,
		}, requestor)
		Expect(err).To(BeNil())
		_, err = approval.SubmitRequest(domain.FormKindVehicleRequest, vehicle.ID, requestor)
		Expect(err).To(BeNil())

		// both approvers act at the same time; the row lock serializes the two
		// transactions so exactly one of them observes step completion
		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i, approver := range []*session.Session{testinfra.BuildSession(31, 1), testinfra.BuildSession(32, 2)} {
			wg.Add(1)
			go func(i int, approver *session.Session) {
				defer wg.Done()
				_, errs[i] = approval.ApproveRequest(domain.FormKindVehicleRequest, vehicle.ID,
					&approval.ApprovalReview{}, approver)
			}(i, approver)
		}
		wg.Wait()
		Expect(errs[0]).To(BeNil())
		Expect(errs[1]).To(BeNil())

		loaded := domain.VehicleRequest{}
		Expect(db.Where("id = ?", vehicle.ID).First(&loaded).Error).To(BeNil())
		Expect(loaded.Status).To(Equal("management_reviewed"))
		Expect(loaded.CurrentStepID).To(Equal(detail.Steps[1].ID))
		Expect(loaded.PendingApproverIDs).To(Equal(domain.IDList{41}))

		records := approvalRecordsOf(db, vehicle.ID)
		Expect(len(records)).To(Equal(3))
		dispatchRecords := 0
		for _, r := range records {
			if r.ApprovalType == "dispatch" {
				Expect(r.Status).To(Equal(domain.ApprovalStatusPending))
				dispatchRecords++
			} else {
				Expect(r.Status).To(Equal(domain.ApprovalStatusApproved))
			}
		}
		Expect(dispatchRecords).To(Equal(1))
	})

	t.Run("should keep driving old requests through the legacy pipeline", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)
		db := testDatabase.DS.GormDB(context.Background())
		createDirectory(db)

		// submitted under the legacy pipeline
		draft := createDraftItemRequest(requestor)
		_, err := approval.SubmitRequest(domain.FormKindItemRequest, draft.ID, requestor)
		Expect(err).To(BeNil())

		// a definition configured afterwards with an unrelated approver set
		_, err = flow.CreateWorkflowDefinition(&flow.WorkflowDefinitionCreation{
			FormKind: domain.FormKindItemRequest, Name: "item v2", IsActive: true, IsDefault: true,
			Steps: []flow.StepCreation{
				{Order: 1, Name: "direct dispatch", ApproverStrategy: domain.StrategyByRole,
					ApproverRole: account.RoleProcessor, ApprovalLogic: domain.LogicAny,
					StatusOnCompletion: domain.StatusCompleted},
			},
		}, admin)
		Expect(err).To(BeNil())

		record, err := approval.ApproveRequest(domain.FormKindItemRequest, draft.ID,
			&approval.ApprovalReview{}, testinfra.BuildSession(21, 1))
		Expect(err).To(BeNil())
		Expect(record.Status).To(Equal("department_approved"))
	})
}

func TestDeclineRequest(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase
	requestor := testinfra.BuildSession(10, 1)

	t.Run("should decline and clear the pending state", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)
		db := testDatabase.DS.GormDB(context.Background())
		createDirectory(db)

		draft := createDraftItemRequest(requestor)
		_, err := approval.SubmitRequest(domain.FormKindItemRequest, draft.ID, requestor)
		Expect(err).To(BeNil())

		record, err := approval.DeclineRequest(domain.FormKindItemRequest, draft.ID,
			&approval.ApprovalReview{Comments: "over budget"}, testinfra.BuildSession(21, 1))
		Expect(err).To(BeNil())
		Expect(record.Status).To(Equal(domain.StatusDeclined))
		Expect(record.CurrentStepID).To(BeZero())
		Expect(record.PendingApproverIDs).To(Equal(domain.IDList{}))

		records := approvalRecordsOf(db, draft.ID)
		Expect(len(records)).To(Equal(1))
		Expect(records[0].Status).To(Equal(domain.ApprovalStatusDeclined))
		Expect(records[0].Comments).To(Equal("over budget"))

		// a declined request is finished
		_, err = approval.ApproveRequest(domain.FormKindItemRequest, draft.ID,
			&approval.ApprovalReview{}, testinfra.BuildSession(21, 1))
		Expect(err).To(Equal(bizerror.ErrInvalidState))
	})

	t.Run("should discard sibling pending records of an all step", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)
		db := testDatabase.DS.GormDB(context.Background())
		createDirectory(db)
		admin := testinfra.BuildSession(1, 1, account.RoleSystemAdmin)

		detail, err := flow.CreateWorkflowDefinition(&flow.WorkflowDefinitionCreation{
			FormKind: domain.FormKindVehicleRequest, Name: "vehicle v2", IsActive: true, IsDefault: true,
			Steps: []flow.StepCreation{
				{Order: 1, Name: "management review", ApproverStrategy: domain.StrategyBySpecificUsers,
					SpecificUserIDs: domain.IDList{31, 32}, ApprovalLogic: domain.LogicAll,
					StatusOnCompletion: "reviewed"},
			},
		}, admin)
		Expect(err).To(BeNil())

		vehicle, err := request.CreateVehicleRequest(&request.VehicleRequestCreation{
			Title: "trip", VehicleType: "car", Destination: "hq", PassengerCount: 2,
		}, requestor)
		Expect(err).To(BeNil())
		_, err = approval.SubmitRequest(domain.FormKindVehicleRequest, vehicle.ID, requestor)
		Expect(err).To(BeNil())

		record, err := approval.DeclineRequest(domain.FormKindVehicleRequest, vehicle.ID,
			&approval.ApprovalReview{Comments: "no"}, testinfra.BuildSession(31, 1))
		Expect(err).To(BeNil())
		Expect(record.Status).To(Equal(detail.Steps[0].DeclinedStatus()))
		Expect(record.Status).To(Equal("management_review_declined"))

		records := approvalRecordsOf(db, vehicle.ID)
		Expect(len(records)).To(Equal(1))
		Expect(records[0].ApproverID).To(Equal(types.ID(31)))
		Expect(records[0].Status).To(Equal(domain.ApprovalStatusDeclined))
	})
}

func TestReturnRequest(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase
	requestor := testinfra.BuildSession(10, 1)

	t.Run("should return to the requestor and allow resubmission", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)
		db := testDatabase.DS.GormDB(context.Background())
		createDirectory(db)

		draft := createDraftItemRequest(requestor)
		_, err := approval.SubmitRequest(domain.FormKindItemRequest, draft.ID, requestor)
		Expect(err).To(BeNil())

		record, err := approval.ReturnRequest(domain.FormKindItemRequest, draft.ID,
			&approval.ReturnDirective{Reason: "missing specification"}, testinfra.BuildSession(21, 1))
		Expect(err).To(BeNil())
		Expect(record.Status).To(Equal(domain.StatusReturned))
		Expect(record.CurrentStepID).To(BeZero())
		Expect(record.PendingApproverIDs).To(Equal(domain.IDList{}))
		Expect(record.SubmitTime).To(BeZero())

		// resubmission resets the existing record in place instead of duplicating
		resubmitted, err := approval.SubmitRequest(domain.FormKindItemRequest, draft.ID, requestor)
		Expect(err).To(BeNil())
		Expect(resubmitted.Status).To(Equal(domain.StatusSubmitted))

		records := approvalRecordsOf(db, draft.ID)
		Expect(len(records)).To(Equal(1))
		Expect(records[0].Status).To(Equal(domain.ApprovalStatusPending))
		Expect(records[0].Comments).To(BeZero())
	})

	t.Run("should return to the first step when directed", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)
		db := testDatabase.DS.GormDB(context.Background())
		createDirectory(db)

		draft := createDraftItemRequest(requestor)
		_, err := approval.SubmitRequest(domain.FormKindItemRequest, draft.ID, requestor)
		Expect(err).To(BeNil())
		_, err = approval.ApproveRequest(domain.FormKindItemRequest, draft.ID,
			&approval.ApprovalReview{}, testinfra.BuildSession(21, 1))
		Expect(err).To(BeNil())

		record, err := approval.ReturnRequest(domain.FormKindItemRequest, draft.ID,
			&approval.ReturnDirective{Reason: "redo", ReturnTo: approval.ReturnToFirstStep},
			testinfra.BuildSession(31, 1))
		Expect(err).To(BeNil())
		Expect(record.Status).To(Equal(domain.StatusSubmitted))
		Expect(record.CurrentStepID).To(BeZero())

		// the department approver is acting again via status inference
		approved, err := approval.ApproveRequest(domain.FormKindItemRequest, draft.ID,
			&approval.ApprovalReview{}, testinfra.BuildSession(21, 1))
		Expect(err).To(BeNil())
		Expect(approved.Status).To(Equal("department_approved"))
	})

	t.Run("should reject unknown return targets", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)
		db := testDatabase.DS.GormDB(context.Background())
		createDirectory(db)

		draft := createDraftItemRequest(requestor)
		_, err := approval.SubmitRequest(domain.FormKindItemRequest, draft.ID, requestor)
		Expect(err).To(BeNil())

		_, err = approval.ReturnRequest(domain.FormKindItemRequest, draft.ID,
			&approval.ReturnDirective{ReturnTo: "somewhere"}, testinfra.BuildSession(21, 1))
		Expect(err).To(Equal(bizerror.ErrReturnTargetUnknown))
	})
}

func TestCancelRequest(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase
	requestor := testinfra.BuildSession(10, 1)

	t.Run("should cancel without touching approval records", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)
		db := testDatabase.DS.GormDB(context.Background())
		createDirectory(db)

		draft := createDraftItemRequest(requestor)
		_, err := approval.SubmitRequest(domain.FormKindItemRequest, draft.ID, requestor)
		Expect(err).To(BeNil())

		record, err := approval.CancelRequest(domain.FormKindItemRequest, draft.ID, requestor)
		Expect(err).To(BeNil())
		Expect(record.Status).To(Equal(domain.StatusCancelled))
		Expect(record.PendingApproverIDs).To(Equal(domain.IDList{}))

		records := approvalRecordsOf(db, draft.ID)
		Expect(len(records)).To(Equal(1))
		Expect(records[0].Status).To(Equal(domain.ApprovalStatusPending))
	})

	t.Run("should forbid strangers and refuse finished requests", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)
		db := testDatabase.DS.GormDB(context.Background())
		createDirectory(db)

		draft := createDraftItemRequest(requestor)
		_, err := approval.CancelRequest(domain.FormKindItemRequest, draft.ID, testinfra.BuildSession(21, 1))
		Expect(err).To(Equal(bizerror.ErrForbidden))

		_, err = approval.CancelRequest(domain.FormKindItemRequest, draft.ID, requestor)
		Expect(err).To(BeNil())
		_, err = approval.CancelRequest(domain.FormKindItemRequest, draft.ID, requestor)
		Expect(err).To(Equal(bizerror.ErrInvalidState))
	})
}
