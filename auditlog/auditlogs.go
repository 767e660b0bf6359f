package auditlog

import (
	"context"

	"reqflow/idgen"
	"reqflow/persistence"
	"reqflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/sirupsen/logrus"
	"github.com/sony/sonyflake"
)

var (
	auditIdWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	RecordFunc = Record
)

// Record append an audit entry for a finished state transition.
// Invoked after commit; a persistence failure is logged for operator
// visibility but never rolls back or fails the transition itself.
func Record(identity *session.Identity, action, entityType string, entityID types.ID, details Details) {
	record := AuditRecord{
		ID:        idgen.NextID(auditIdWorker),
		ActorID:   identity.ID,
		ActorName: identity.Name,

		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    details,

		Timestamp: types.CurrentTimestamp(),
	}

	db := persistence.ActiveDataSourceManager.GormDB(context.Background())
	if err := db.Create(&record).Error; err != nil {
		logrus.Warnf("failed to record audit entry %s %s %d: %v", action, entityType, entityID, err)
	}
}

func QueryAuditRecords(entityType string, entityID types.ID, s *session.Session) (*[]AuditRecord, error) {
	var records []AuditRecord
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	if err := db.Where(&AuditRecord{EntityType: entityType, EntityID: entityID}).
		Order("timestamp ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	return &records, nil
}
