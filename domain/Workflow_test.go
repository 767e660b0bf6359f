package domain_test

import (
	"reqflow/domain"

	"github.com/fundwit/go-commons/types"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("WorkflowDetail", func() {
	var (
		detail *domain.WorkflowDetail
	)

	BeforeEach(func() {
		detail = &domain.WorkflowDetail{
			WorkflowDefinition: domain.WorkflowDefinition{ID: 100, FormKind: domain.FormKindItemRequest, Name: "item approval"},
			Steps: []domain.WorkflowStep{
				{ID: 101, DefinitionID: 100, Order: 1, Name: "Department Approval",
					ApproverStrategy: domain.StrategyByDepartment, RequiresSameDepartment: true,
					ApprovalLogic: domain.LogicAny, StatusOnApproval: "department_approved"},
				{ID: 102, DefinitionID: 100, Order: 2, Name: "Management Review",
					ApproverStrategy: domain.StrategyByRole, ApproverRole: "manager",
					ApprovalLogic: domain.LogicAll, StatusOnApproval: "management_approved"},
				{ID: 103, DefinitionID: 100, Order: 3, Name: "Fulfilment",
					ApproverStrategy: domain.StrategyByRole, ApproverRole: "processor",
					ApprovalLogic: domain.LogicAny, StatusOnCompletion: "completed"},
			},
		}
	})

	Describe("FirstStep", func() {
		It("should return the step with the lowest order", func() {
			Expect(detail.FirstStep().ID).To(Equal(types.ID(101)))
		})
		It("should return nil when the definition has no steps", func() {
			empty := &domain.WorkflowDetail{}
			Expect(empty.FirstStep()).To(BeNil())
		})
	})

	Describe("FindStep", func() {
		It("should locate a step by id", func() {
			Expect(detail.FindStep(102).Name).To(Equal("Management Review"))
			Expect(detail.FindStep(999)).To(BeNil())
		})
	})

	Describe("NextStep", func() {
		It("should return the following step in order", func() {
			Expect(detail.NextStep(detail.FindStep(101)).ID).To(Equal(types.ID(102)))
			Expect(detail.NextStep(detail.FindStep(102)).ID).To(Equal(types.ID(103)))
		})
		It("should return nil after the last step", func() {
			Expect(detail.NextStep(detail.FindStep(103))).To(BeNil())
		})
	})

	Describe("ApprovalType", func() {
		It("should lowercase the step name and replace spaces with underscores", func() {
			Expect(detail.Steps[0].ApprovalType()).To(Equal("department_approval"))
			Expect(detail.Steps[1].DeclinedStatus()).To(Equal("management_review_declined"))
		})
	})

	Describe("StatusSet", func() {
		It("should contain the shared statuses and every step status", func() {
			statuses := detail.StatusSet()
			Expect(statuses).To(ContainElements(domain.StatusDraft, domain.StatusSubmitted,
				domain.StatusReturned, domain.StatusDeclined, domain.StatusCompleted, domain.StatusCancelled))
			Expect(statuses).To(ContainElements("department_approved", "management_approved", "completed"))
			Expect(statuses).To(ContainElements("department_approval_declined", "management_review_declined", "fulfilment_declined"))

			Expect(detail.IsKnownStatus("management_approved")).To(BeTrue())
			Expect(detail.IsKnownStatus("archived")).To(BeFalse())
		})
	})
})

var _ = Describe("RequestRecord", func() {
	Describe("IsTerminalStatus", func() {
		It("should treat completed, cancelled and declined as terminal", func() {
			for _, status := range []string{domain.StatusCompleted, domain.StatusCancelled, domain.StatusDeclined} {
				r := domain.RequestRecord{Status: status}
				Expect(r.IsTerminalStatus()).To(BeTrue())
			}
			for _, status := range []string{domain.StatusDraft, domain.StatusSubmitted, domain.StatusReturned, "department_approved"} {
				r := domain.RequestRecord{Status: status}
				Expect(r.IsTerminalStatus()).To(BeFalse())
			}
		})
	})
})

var _ = Describe("FormKind", func() {
	It("should accept only the two known kinds", func() {
		Expect(domain.FormKindItemRequest.IsValid()).To(BeTrue())
		Expect(domain.FormKindVehicleRequest.IsValid()).To(BeTrue())
		Expect(domain.FormKind("purchase_order").IsValid()).To(BeFalse())
	})

	It("should map each kind to its request table", func() {
		Expect(domain.FormKindItemRequest.RequestTable()).To(Equal("item_requests"))
		Expect(domain.FormKindVehicleRequest.RequestTable()).To(Equal("vehicle_requests"))
		Expect(domain.FormKind("purchase_order").RequestTable()).To(BeEmpty())
	})
})

var _ = Describe("IDList", func() {
	It("should persist as a JSON array of string ids", func() {
		value, err := domain.IDList{10, 21}.Value()
		Expect(err).To(BeNil())
		Expect(value).To(Equal(`["10","21"]`))
	})

	It("should scan back from string or bytes", func() {
		l := domain.IDList{}
		Expect(l.Scan(`["10","21"]`)).To(BeNil())
		Expect(l).To(Equal(domain.IDList{10, 21}))

		Expect(l.Scan([]byte(``))).To(BeNil())
		Expect(l).To(Equal(domain.IDList{}))

		Expect(l.Scan(42)).ToNot(BeNil())
	})

	It("should support membership checks and removal", func() {
		l := domain.IDList{10, 21, 32}
		Expect(l.Contains(21)).To(BeTrue())
		Expect(l.Contains(99)).To(BeFalse())
		Expect(l.Remove(21)).To(Equal(domain.IDList{10, 32}))
		Expect(l.Remove(99)).To(Equal(domain.IDList{10, 21, 32}))
	})
})
