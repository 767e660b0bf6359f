package auditlog

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/fundwit/go-commons/types"
)

const (
	ActionCreate  = "CREATE"
	ActionUpdate  = "UPDATE"
	ActionSubmit  = "SUBMIT"
	ActionApprove = "APPROVE"
	ActionDecline = "DECLINE"
	ActionReturn  = "RETURN"
	ActionCancel  = "CANCEL"
	ActionDelete  = "DELETE"
)

type AuditRecord struct {
	ID types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`

	ActorID   types.ID `json:"actorId"`
	ActorName string   `json:"actorName"`

	Action     string   `json:"action"`
	EntityType string   `json:"entityType"`
	EntityID   types.ID `json:"entityId"`

	Details Details `json:"details" sql:"type:TEXT"`

	Timestamp types.Timestamp `json:"timestamp" sql:"type:DATETIME(6)"`
}

func (r *AuditRecord) TableName() string {
	return "audit_records"
}

type Details map[string]string

func (t Details) Value() (driver.Value, error) {
	jsonBytes, err := json.Marshal(&t)
	if err != nil {
		return nil, err
	}
	return string(jsonBytes), nil
}

func (c *Details) Scan(v interface{}) error {
	jsonString, ok := v.(string)
	if !ok {
		jsonByte, ok := v.([]byte)
		if !ok {
			return fmt.Errorf("type is neither string nor []byte: %T %v", v, v)
		}
		jsonString = string(jsonByte)
	}
	return json.Unmarshal([]byte(jsonString), c)
}
