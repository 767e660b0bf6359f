package flow

import (
	"sort"
	"time"

	"reqflow/account"
	"reqflow/bizerror"
	"reqflow/domain"
	"reqflow/idgen"
	"reqflow/persistence"
	"reqflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/patrickmn/go-cache"
	"github.com/sony/sonyflake"
)

var (
	idWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	// active definitions are read on every transition and mutated only by
	// administrative CRUD; a short TTL keeps edits visible without a
	// cross-instance invalidation channel
	definitionCache = cache.New(30*time.Second, time.Minute)

	CreateWorkflowDefinitionFunc = CreateWorkflowDefinition
	DetailWorkflowDefinitionFunc = DetailWorkflowDefinition
	QueryWorkflowDefinitionsFunc = QueryWorkflowDefinitions
	UpdateWorkflowDefinitionFunc = UpdateWorkflowDefinitionBase
	DeleteWorkflowDefinitionFunc = DeleteWorkflowDefinition
	ActiveDefinitionFunc         = ActiveDefinition
)

type WorkflowDefinitionCreation struct {
	FormKind domain.FormKind `json:"formKind" validate:"required"`
	Name     string          `json:"name" validate:"required"`

	IsActive  bool `json:"isActive"`
	IsDefault bool `json:"isDefault"`

	Steps []StepCreation `json:"steps" validate:"required,min=1,dive"`
}

type StepCreation struct {
	Order int    `json:"order" validate:"required,min=1"`
	Name  string `json:"name" validate:"required"`

	ApproverStrategy       domain.ApproverStrategy `json:"approverStrategy" validate:"required"`
	ApproverRole           string                  `json:"approverRole"`
	SpecificUserIDs        domain.IDList           `json:"specificUserIds"`
	ApproverUserID         types.ID                `json:"approverUserId"`
	ApproverDepartmentID   types.ID                `json:"approverDepartmentId"`
	RequiresSameDepartment bool                    `json:"requiresSameDepartment"`

	ApprovalLogic      domain.ApprovalLogic `json:"approvalLogic" validate:"required"`
	StatusOnApproval   string               `json:"statusOnApproval"`
	StatusOnCompletion string               `json:"statusOnCompletion"`
}

type WorkflowDefinitionBaseUpdation struct {
	Name      string `json:"name"`
	IsActive  *bool  `json:"isActive"`
	IsDefault *bool  `json:"isDefault"`
}

type WorkflowDefinitionQuery struct {
	FormKind domain.FormKind `json:"formKind" form:"formKind"`
	Name     string          `json:"name" form:"name"`
}

func CreateWorkflowDefinition(c *WorkflowDefinitionCreation, s *session.Session) (*domain.WorkflowDetail, error) {
	if !s.Perms.HasRole(account.RoleSystemAdmin) {
		return nil, bizerror.ErrForbidden
	}
	if !c.FormKind.IsValid() {
		return nil, bizerror.ErrUnknownFormKind
	}
	if err := validateSteps(c.Steps); err != nil {
		return nil, err
	}

	now := types.CurrentTimestamp()
	detail := &domain.WorkflowDetail{
		WorkflowDefinition: domain.WorkflowDefinition{
			ID:        idgen.NextID(idWorker),
			FormKind:  c.FormKind,
			Name:      c.Name,
			IsActive:  c.IsActive,
			IsDefault: c.IsDefault,

			CreatorID:  s.Identity.ID,
			CreateTime: now,
		},
	}

	steps := append([]StepCreation{}, c.Steps...)
	sort.Slice(steps, func(i, j int) bool { return steps[i].Order < steps[j].Order })
	for _, sc := range steps {
		detail.Steps = append(detail.Steps, domain.WorkflowStep{
			ID:           idgen.NextID(idWorker),
			DefinitionID: detail.ID,
			Order:        sc.Order,
			Name:         sc.Name,

			ApproverStrategy:       sc.ApproverStrategy,
			ApproverRole:           sc.ApproverRole,
			SpecificUserIDs:        sc.SpecificUserIDs,
			ApproverUserID:         sc.ApproverUserID,
			ApproverDepartmentID:   sc.ApproverDepartmentID,
			RequiresSameDepartment: sc.RequiresSameDepartment,

			ApprovalLogic:      sc.ApprovalLogic,
			StatusOnApproval:   sc.StatusOnApproval,
			StatusOnCompletion: sc.StatusOnCompletion,

			CreateTime: now,
		})
	}

	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		// only one active default definition may exist per form kind
		if detail.IsDefault {
			if err := tx.Model(&domain.WorkflowDefinition{}).
				Where("form_kind = ? AND is_default = ?", c.FormKind, true).
				Update("is_default", false).Error; err != nil {
				return err
			}
		}
		if err := tx.Create(&detail.WorkflowDefinition).Error; err != nil {
			return err
		}
		for i := range detail.Steps {
			if err := tx.Create(&detail.Steps[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	definitionCache.Delete(string(c.FormKind))
	return detail, nil
}

func validateSteps(steps []StepCreation) error {
	if len(steps) == 0 {
		return bizerror.ErrStepOrderInvalid
	}

	orders := make([]int, 0, len(steps))
	for _, s := range steps {
		orders = append(orders, s.Order)
	}
	sort.Ints(orders)
	for i, order := range orders {
		if order != i+1 {
			return bizerror.ErrStepOrderInvalid
		}
	}

	lastOrder := orders[len(orders)-1]
	for _, s := range steps {
		if s.ApprovalLogic != domain.LogicAny && s.ApprovalLogic != domain.LogicAll {
			return bizerror.ErrUnknownApprovalLogic
		}
		switch s.ApproverStrategy {
		case domain.StrategyByRole:
			if s.ApproverRole == "" {
				return bizerror.ErrStepMisconfigured
			}
		case domain.StrategyBySpecificUsers:
			if len(s.SpecificUserIDs) == 0 && s.ApproverUserID == 0 {
				return bizerror.ErrStepMisconfigured
			}
		case domain.StrategyByDepartment:
			if s.ApproverDepartmentID == 0 && !s.RequiresSameDepartment {
				return bizerror.ErrStepMisconfigured
			}
		case domain.StrategyByRequestor:
			// resolved from the request context, no parameter
		default:
			return bizerror.ErrStepMisconfigured
		}
		if s.Order != lastOrder && s.StatusOnApproval == "" {
			return bizerror.ErrStepStatusMissing
		}
	}
	return nil
}

func DetailWorkflowDefinition(id types.ID, s *session.Session) (*domain.WorkflowDetail, error) {
	detail := domain.WorkflowDetail{}
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(&domain.WorkflowDefinition{ID: id}).First(&detail.WorkflowDefinition).Error; err != nil {
			return err
		}
		return tx.Where(domain.WorkflowStep{DefinitionID: id}).Order("`order` ASC").Find(&detail.Steps).Error
	})
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

func QueryWorkflowDefinitions(query *WorkflowDefinitionQuery, s *session.Session) (*[]domain.WorkflowDefinition, error) {
	var definitions []domain.WorkflowDefinition
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)

	q := db.Model(&domain.WorkflowDefinition{})
	if query.FormKind != "" {
		q = q.Where("form_kind = ?", query.FormKind)
	}
	if query.Name != "" {
		q = q.Where("name like ?", "%"+query.Name+"%")
	}
	if err := q.Scan(&definitions).Error; err != nil {
		return nil, err
	}
	return &definitions, nil
}

func UpdateWorkflowDefinitionBase(id types.ID, u *WorkflowDefinitionBaseUpdation, s *session.Session) (*domain.WorkflowDefinition, error) {
	if !s.Perms.HasRole(account.RoleSystemAdmin) {
		return nil, bizerror.ErrForbidden
	}

	definition := domain.WorkflowDefinition{}
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(&domain.WorkflowDefinition{ID: id}).First(&definition).Error; err != nil {
			return err
		}

		changes := map[string]interface{}{}
		if u.Name != "" {
			changes["name"] = u.Name
		}
		if u.IsActive != nil {
			changes["is_active"] = *u.IsActive
		}
		if u.IsDefault != nil {
			if *u.IsDefault {
				if err := tx.Model(&domain.WorkflowDefinition{}).
					Where("form_kind = ? AND is_default = ? AND id != ?", definition.FormKind, true, id).
					Update("is_default", false).Error; err != nil {
					return err
				}
			}
			changes["is_default"] = *u.IsDefault
		}
		if len(changes) == 0 {
			return nil
		}
		if err := tx.Model(&domain.WorkflowDefinition{}).Where("id = ?", id).Updates(changes).Error; err != nil {
			return err
		}
		return tx.Where(&domain.WorkflowDefinition{ID: id}).First(&definition).Error
	})
	if err != nil {
		return nil, err
	}

	definitionCache.Delete(string(definition.FormKind))
	return &definition, nil
}

func DeleteWorkflowDefinition(id types.ID, s *session.Session) error {
	if !s.Perms.HasRole(account.RoleSystemAdmin) {
		return bizerror.ErrForbidden
	}

	definition := domain.WorkflowDefinition{}
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(&domain.WorkflowDefinition{ID: id}).First(&definition).Error; err != nil {
			return err
		}

		if err := isDefinitionReferenced(tx, id); err != nil {
			return err
		}

		if err := tx.Delete(&domain.WorkflowDefinition{}, "id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&domain.WorkflowStep{}, "definition_id = ?", id).Error
	})
	if err != nil {
		return err
	}

	definitionCache.Delete(string(definition.FormKind))
	return nil
}

func isDefinitionReferenced(tx *gorm.DB, definitionID types.ID) error {
	var steps []domain.WorkflowStep
	if err := tx.Where(domain.WorkflowStep{DefinitionID: definitionID}).Find(&steps).Error; err != nil {
		return err
	}
	if len(steps) == 0 {
		return nil
	}
	stepIds := make([]types.ID, 0, len(steps))
	for _, step := range steps {
		stepIds = append(stepIds, step.ID)
	}

	for _, kind := range []domain.FormKind{domain.FormKindItemRequest, domain.FormKindVehicleRequest} {
		count := 0
		if err := tx.Table(kind.RequestTable()).
			Where("current_step_id in (?)", stepIds).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return bizerror.ErrWorkflowIsReferenced
		}
	}
	return nil
}

// ActiveDefinition the active default definition governing the form kind,
// nil when none is configured (callers then run the legacy pipeline).
func ActiveDefinition(tx *gorm.DB, kind domain.FormKind) (*domain.WorkflowDetail, error) {
	if cached, found := definitionCache.Get(string(kind)); found {
		return cached.(*domain.WorkflowDetail), nil
	}

	definition := domain.WorkflowDefinition{}
	err := tx.Where("form_kind = ? AND is_active = ? AND is_default = ?", kind, true, true).
		First(&definition).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	detail := domain.WorkflowDetail{WorkflowDefinition: definition}
	if err := tx.Where(domain.WorkflowStep{DefinitionID: definition.ID}).
		Order("`order` ASC").Find(&detail.Steps).Error; err != nil {
		return nil, err
	}

	definitionCache.Set(string(kind), &detail, cache.DefaultExpiration)
	return &detail, nil
}

func FlushDefinitionCache() {
	definitionCache.Flush()
}
