package request

import (
	"reqflow/account"
	"reqflow/auditlog"
	"reqflow/bizerror"
	"reqflow/domain"
	"reqflow/idgen"
	"reqflow/indices"
	"reqflow/persistence"
	"reqflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

var (
	idWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	CreateItemRequestFunc    = CreateItemRequest
	UpdateItemRequestFunc    = UpdateItemRequest
	DetailItemRequestFunc    = DetailItemRequest
	CreateVehicleRequestFunc = CreateVehicleRequest
	UpdateVehicleRequestFunc = UpdateVehicleRequest
	DetailVehicleRequestFunc = DetailVehicleRequest
	QueryRequestsFunc        = QueryRequests
	DeleteRequestFunc        = DeleteRequest
)

type LineItemCreation struct {
	Name          string `json:"name" validate:"required"`
	Specification string `json:"specification"`
	Quantity      int    `json:"quantity" validate:"required,min=1"`
}

type ItemRequestCreation struct {
	Title     string             `json:"title" validate:"required"`
	LineItems []LineItemCreation `json:"lineItems" validate:"dive"`
}

type ItemRequestUpdating struct {
	Title string `json:"title" validate:"required"`
	// nil leaves the line items alone, a non-nil slice replaces them
	LineItems *[]LineItemCreation `json:"lineItems" validate:"omitempty,dive"`
}

type VehicleRequestCreation struct {
	Title string `json:"title" validate:"required"`

	VehicleType    string          `json:"vehicleType" validate:"required"`
	Destination    string          `json:"destination" validate:"required"`
	PassengerCount int             `json:"passengerCount" validate:"required,min=1"`
	DepartTime     types.Timestamp `json:"departTime"`
	ReturnTime     types.Timestamp `json:"returnTime"`
}

type VehicleRequestUpdating struct {
	Title string `json:"title" validate:"required"`

	VehicleType    string          `json:"vehicleType" validate:"required"`
	Destination    string          `json:"destination" validate:"required"`
	PassengerCount int             `json:"passengerCount" validate:"required,min=1"`
	DepartTime     types.Timestamp `json:"departTime"`
	ReturnTime     types.Timestamp `json:"returnTime"`
}

type RequestQuery struct {
	Status            string   `json:"status" form:"status"`
	RequestorID       types.ID `json:"requestorId" form:"requestorId"`
	DepartmentID      types.ID `json:"departmentId" form:"departmentId"`
	PendingApproverID types.ID `json:"pendingApproverId" form:"pendingApproverId"`
}

type ItemRequestDetail struct {
	domain.ItemRequest

	LineItems []domain.RequestLineItem `json:"lineItems"`
	Approvals []domain.ApprovalRecord  `json:"approvals"`
}

type VehicleRequestDetail struct {
	domain.VehicleRequest

	Approvals []domain.ApprovalRecord `json:"approvals"`
}

func CreateItemRequest(creation *ItemRequestCreation, s *session.Session) (*domain.ItemRequest, error) {
	now := types.CurrentTimestamp()
	record := domain.ItemRequest{RequestRecord: domain.RequestRecord{
		ID:       idgen.NextID(idWorker),
		FormKind: domain.FormKindItemRequest,
		Title:    creation.Title,
		Status:   domain.StatusDraft,

		DepartmentID:  s.Identity.DepartmentID,
		RequestorID:   s.Identity.ID,
		RequestorName: s.Identity.Nickname,

		PendingApproverIDs: domain.IDList{},
		CreateTime:         now,
	}}

	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&record).Error; err != nil {
			return err
		}
		return createLineItems(tx, record.ID, creation.LineItems, now)
	})
	if err != nil {
		return nil, err
	}

	auditlog.RecordFunc(&s.Identity, auditlog.ActionCreate, string(domain.FormKindItemRequest), record.ID,
		auditlog.Details{"title": record.Title})
	indices.SyncRequestIndex(&record.RequestRecord)
	return &record, nil
}

func UpdateItemRequest(id types.ID, updating *ItemRequestUpdating, s *session.Session) (*domain.ItemRequest, error) {
	record := domain.ItemRequest{}
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&record).Error; err != nil {
			return err
		}
		if err := assertEditable(&record.RequestRecord, s); err != nil {
			return err
		}

		if err := tx.Model(&domain.ItemRequest{}).Where("id = ?", id).
			Update("title", updating.Title).Error; err != nil {
			return err
		}
		record.Title = updating.Title

		if updating.LineItems != nil {
			if err := tx.Delete(&domain.RequestLineItem{}, "request_id = ?", id).Error; err != nil {
				return err
			}
			return createLineItems(tx, id, *updating.LineItems, types.CurrentTimestamp())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	auditlog.RecordFunc(&s.Identity, auditlog.ActionUpdate, string(domain.FormKindItemRequest), id,
		auditlog.Details{"title": record.Title})
	indices.SyncRequestIndex(&record.RequestRecord)
	return &record, nil
}

func DetailItemRequest(id types.ID, s *session.Session) (*ItemRequestDetail, error) {
	detail := ItemRequestDetail{}
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&detail.ItemRequest).Error; err != nil {
			return err
		}
		detail.FormKind = domain.FormKindItemRequest
		if err := loadApprovals(tx, id, &detail.Approvals); err != nil {
			return err
		}
		if err := assertViewable(&detail.RequestRecord, detail.Approvals, s); err != nil {
			return err
		}
		return tx.Where("request_id = ?", id).Order("create_time ASC").Find(&detail.LineItems).Error
	})
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

func CreateVehicleRequest(creation *VehicleRequestCreation, s *session.Session) (*domain.VehicleRequest, error) {
	now := types.CurrentTimestamp()
	record := domain.VehicleRequest{
		RequestRecord: domain.RequestRecord{
			ID:       idgen.NextID(idWorker),
			FormKind: domain.FormKindVehicleRequest,
			Title:    creation.Title,
			Status:   domain.StatusDraft,

			DepartmentID:  s.Identity.DepartmentID,
			RequestorID:   s.Identity.ID,
			RequestorName: s.Identity.Nickname,

			PendingApproverIDs: domain.IDList{},
			CreateTime:         now,
		},
		VehicleType:    creation.VehicleType,
		Destination:    creation.Destination,
		PassengerCount: creation.PassengerCount,
		DepartTime:     creation.DepartTime,
		ReturnTime:     creation.ReturnTime,
	}

	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	if err := db.Create(&record).Error; err != nil {
		return nil, err
	}

	auditlog.RecordFunc(&s.Identity, auditlog.ActionCreate, string(domain.FormKindVehicleRequest), record.ID,
		auditlog.Details{"title": record.Title})
	indices.SyncRequestIndex(&record.RequestRecord)
	return &record, nil
}

func UpdateVehicleRequest(id types.ID, updating *VehicleRequestUpdating, s *session.Session) (*domain.VehicleRequest, error) {
	record := domain.VehicleRequest{}
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&record).Error; err != nil {
			return err
		}
		if err := assertEditable(&record.RequestRecord, s); err != nil {
			return err
		}

		changes := map[string]interface{}{
			"title": updating.Title, "vehicle_type": updating.VehicleType,
			"destination": updating.Destination, "passenger_count": updating.PassengerCount,
			"depart_time": updating.DepartTime, "return_time": updating.ReturnTime,
		}
		if err := tx.Model(&domain.VehicleRequest{}).Where("id = ?", id).Updates(changes).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).First(&record).Error
	})
	if err != nil {
		return nil, err
	}

	auditlog.RecordFunc(&s.Identity, auditlog.ActionUpdate, string(domain.FormKindVehicleRequest), id,
		auditlog.Details{"title": record.Title})
	indices.SyncRequestIndex(&record.RequestRecord)
	return &record, nil
}

func DetailVehicleRequest(id types.ID, s *session.Session) (*VehicleRequestDetail, error) {
	detail := VehicleRequestDetail{}
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&detail.VehicleRequest).Error; err != nil {
			return err
		}
		detail.FormKind = domain.FormKindVehicleRequest
		if err := loadApprovals(tx, id, &detail.Approvals); err != nil {
			return err
		}
		return assertViewable(&detail.RequestRecord, detail.Approvals, s)
	})
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

// QueryRequests list requests of one kind. Regular users only see requests
// they created or are currently expected to act on; administrators see all.
func QueryRequests(kind domain.FormKind, query *RequestQuery, s *session.Session) (*[]domain.RequestRecord, error) {
	if !kind.IsValid() {
		return nil, bizerror.ErrUnknownFormKind
	}

	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	q := db.Table(kind.RequestTable())
	if !s.Perms.HasRole(account.RoleSystemAdmin) {
		q = q.Where("requestor_id = ? OR pending_approver_ids LIKE ?",
			s.Identity.ID, pendingApproverPattern(s.Identity.ID))
	}
	if query.Status != "" {
		q = q.Where("status = ?", query.Status)
	}
	if query.RequestorID != 0 {
		q = q.Where("requestor_id = ?", query.RequestorID)
	}
	if query.DepartmentID != 0 {
		q = q.Where("department_id = ?", query.DepartmentID)
	}
	if query.PendingApproverID != 0 {
		q = q.Where("pending_approver_ids LIKE ?", pendingApproverPattern(query.PendingApproverID))
	}

	var records []domain.RequestRecord
	if err := q.Order("create_time DESC").Scan(&records).Error; err != nil {
		return nil, err
	}
	for i := range records {
		records[i].FormKind = kind
	}
	return &records, nil
}

// DeleteRequest drop a draft together with its line items. Submitted
// requests are withdrawn through cancellation instead.
func DeleteRequest(kind domain.FormKind, id types.ID, s *session.Session) error {
	if !kind.IsValid() {
		return bizerror.ErrUnknownFormKind
	}

	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		record := domain.RequestRecord{}
		if err := tx.Table(kind.RequestTable()).Where("id = ?", id).Scan(&record).Error; err != nil {
			return err
		}
		if record.RequestorID != s.Identity.ID && !s.Perms.HasRole(account.RoleSystemAdmin) {
			return bizerror.ErrForbidden
		}
		if record.Status != domain.StatusDraft {
			return bizerror.ErrInvalidState
		}

		if err := tx.Table(kind.RequestTable()).Where("id = ?", id).Delete(nil).Error; err != nil {
			return err
		}
		if kind == domain.FormKindItemRequest {
			if err := tx.Delete(&domain.RequestLineItem{}, "request_id = ?", id).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&domain.ApprovalRecord{}, "request_id = ?", id).Error
	})
	if err != nil {
		return err
	}

	auditlog.RecordFunc(&s.Identity, auditlog.ActionDelete, string(kind), id, auditlog.Details{})
	indices.RemoveRequestIndex(id)
	return nil
}

func createLineItems(tx *gorm.DB, requestID types.ID, items []LineItemCreation, now types.Timestamp) error {
	for _, item := range items {
		record := domain.RequestLineItem{
			ID:        idgen.NextID(idWorker),
			RequestID: requestID,

			Name:          item.Name,
			Specification: item.Specification,
			Quantity:      item.Quantity,

			CreateTime: now,
		}
		if err := tx.Create(&record).Error; err != nil {
			return err
		}
	}
	return nil
}

func loadApprovals(tx *gorm.DB, requestID types.ID, approvals *[]domain.ApprovalRecord) error {
	return tx.Where("request_id = ?", requestID).Order("create_time ASC").Find(approvals).Error
}

func assertEditable(r *domain.RequestRecord, s *session.Session) error {
	if r.RequestorID != s.Identity.ID && !s.Perms.HasRole(account.RoleSystemAdmin) {
		return bizerror.ErrForbidden
	}
	if r.Status != domain.StatusDraft && r.Status != domain.StatusReturned {
		return bizerror.ErrInvalidState
	}
	return nil
}

func assertViewable(r *domain.RequestRecord, approvals []domain.ApprovalRecord, s *session.Session) error {
	if r.RequestorID == s.Identity.ID || s.Perms.HasRole(account.RoleSystemAdmin) {
		return nil
	}
	if r.PendingApproverIDs.Contains(s.Identity.ID) {
		return nil
	}
	for i := range approvals {
		if approvals[i].ApproverID == s.Identity.ID {
			return nil
		}
	}
	return bizerror.ErrForbidden
}

// pendingApproverPattern the denormalized set is a JSON array of string ids,
// so membership can be matched with a LIKE on the quoted value.
func pendingApproverPattern(id types.ID) string {
	return `%"` + id.String() + `"%`
}
