package approval_test

import (
	"testing"

	"reqflow/domain"
	"reqflow/domain/approval"

	. "github.com/onsi/gomega"
)

func TestLegacyWorkflows(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should map each form kind to its pipeline", func(t *testing.T) {
		Expect(approval.LegacyWorkflowOf(domain.FormKindItemRequest)).To(Equal(&approval.LegacyItemWorkflow))
		Expect(approval.LegacyWorkflowOf(domain.FormKindVehicleRequest)).To(Equal(&approval.LegacyVehicleWorkflow))
		Expect(approval.LegacyWorkflowOf("unknown")).To(BeNil())
	})

	t.Run("item pipeline runs department, manager, processing", func(t *testing.T) {
		def := approval.LegacyWorkflowOf(domain.FormKindItemRequest)
		Expect(def.Builtin).To(BeTrue())
		Expect(len(def.Steps)).To(Equal(3))

		first := def.FirstStep()
		Expect(first.ApprovalType()).To(Equal("department_approval"))
		Expect(first.StatusOnApproval).To(Equal("department_approved"))

		second := def.NextStep(first)
		Expect(second.ApprovalType()).To(Equal("manager_approval"))
		Expect(second.StatusOnApproval).To(Equal("manager_approved"))

		third := def.NextStep(second)
		Expect(third.ApprovalType()).To(Equal("processing"))
		Expect(third.StatusOnCompletion).To(Equal(domain.StatusCompleted))
		Expect(def.NextStep(third)).To(BeNil())
	})

	t.Run("vehicle pipeline has no processing stage", func(t *testing.T) {
		def := approval.LegacyWorkflowOf(domain.FormKindVehicleRequest)
		Expect(def.Builtin).To(BeTrue())
		Expect(len(def.Steps)).To(Equal(2))

		last := def.NextStep(def.FirstStep())
		Expect(last.ApprovalType()).To(Equal("manager_approval"))
		Expect(last.StatusOnCompletion).To(Equal(domain.StatusCompleted))
		Expect(def.NextStep(last)).To(BeNil())
	})

	t.Run("pipeline status sets cover the intermediate statuses", func(t *testing.T) {
		def := approval.LegacyWorkflowOf(domain.FormKindItemRequest)
		Expect(def.IsKnownStatus("department_approved")).To(BeTrue())
		Expect(def.IsKnownStatus("manager_approved")).To(BeTrue())
		Expect(def.IsKnownStatus(domain.StatusCompleted)).To(BeTrue())
		Expect(def.IsKnownStatus("dispatched")).To(BeFalse())
	})
}
