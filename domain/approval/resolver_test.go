package approval_test

import (
	"context"
	"testing"

	"reqflow/account"
	"reqflow/domain"
	"reqflow/domain/approval"
	"reqflow/testinfra"

	"github.com/fundwit/go-commons/types"
	. "github.com/onsi/gomega"
)

func TestResolveStepApprovers(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase

	t.Run("should resolve by role", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)
		db := testDatabase.DS.GormDB(context.Background())
		createDirectory(db)

		step := &domain.WorkflowStep{ApproverStrategy: domain.StrategyByRole, ApproverRole: account.RoleManager}
		users, err := approval.ResolveStepApprovers(db, step, approval.ApproverContext{DepartmentID: 1})
		Expect(err).To(BeNil())
		Expect(len(users)).To(Equal(2))

		step.RequiresSameDepartment = true
		users, err = approval.ResolveStepApprovers(db, step, approval.ApproverContext{DepartmentID: 2})
		Expect(err).To(BeNil())
		Expect(len(users)).To(Equal(1))
		Expect(users[0].ID).To(Equal(types.ID(32)))
	})

	t.Run("should resolve by specific users and skip inactive accounts", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)
		db := testDatabase.DS.GormDB(context.Background())
		createDirectory(db)

		step := &domain.WorkflowStep{ApproverStrategy: domain.StrategyBySpecificUsers,
			SpecificUserIDs: domain.IDList{21, 23}, ApproverUserID: 41}
		users, err := approval.ResolveStepApprovers(db, step, approval.ApproverContext{})
		Expect(err).To(BeNil())
		// 23 is inactive, the legacy single approver field is merged in
		Expect(len(users)).To(Equal(2))

		empty := &domain.WorkflowStep{ApproverStrategy: domain.StrategyBySpecificUsers}
		users, err = approval.ResolveStepApprovers(db, empty, approval.ApproverContext{})
		Expect(err).To(BeNil())
		Expect(users).To(Equal([]account.User{}))
	})

	t.Run("should resolve by department", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)
		db := testDatabase.DS.GormDB(context.Background())
		createDirectory(db)

		fixed := &domain.WorkflowStep{ApproverStrategy: domain.StrategyByDepartment, ApproverDepartmentID: 2}
		users, err := approval.ResolveStepApprovers(db, fixed, approval.ApproverContext{DepartmentID: 1})
		Expect(err).To(BeNil())
		Expect(len(users)).To(Equal(1))
		Expect(users[0].ID).To(Equal(types.ID(22)))

		// without a fixed department the request's own department decides
		same := &domain.WorkflowStep{ApproverStrategy: domain.StrategyByDepartment, RequiresSameDepartment: true}
		users, err = approval.ResolveStepApprovers(db, same, approval.ApproverContext{DepartmentID: 1})
		Expect(err).To(BeNil())
		Expect(len(users)).To(Equal(1))
		Expect(users[0].ID).To(Equal(types.ID(21)))
	})

	t.Run("should resolve by requestor", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)
		db := testDatabase.DS.GormDB(context.Background())
		createDirectory(db)

		step := &domain.WorkflowStep{ApproverStrategy: domain.StrategyByRequestor}
		users, err := approval.ResolveStepApprovers(db, step, approval.ApproverContext{RequestorID: 10})
		Expect(err).To(BeNil())
		Expect(len(users)).To(Equal(1))
		Expect(users[0].ID).To(Equal(types.ID(10)))

		users, err = approval.ResolveStepApprovers(db, step, approval.ApproverContext{RequestorID: 9999})
		Expect(err).To(BeNil())
		Expect(users).To(Equal([]account.User{}))
	})
}
