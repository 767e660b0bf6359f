package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/fundwit/go-commons/types"
)

// IDList a set of user ids persisted as a JSON array in a TEXT column.
type IDList []types.ID

func (l IDList) Value() (driver.Value, error) {
	jsonBytes, err := json.Marshal(&l)
	if err != nil {
		return nil, err
	}
	return string(jsonBytes), nil
}

func (l *IDList) Scan(v interface{}) error {
	jsonString, ok := v.(string)
	if !ok {
		jsonByte, ok := v.([]byte)
		if !ok {
			return fmt.Errorf("type is neither string nor []byte: %T %v", v, v)
		}
		jsonString = string(jsonByte)
	}
	if jsonString == "" {
		*l = IDList{}
		return nil
	}
	return json.Unmarshal([]byte(jsonString), l)
}

func (l IDList) Contains(id types.ID) bool {
	for _, v := range l {
		if v == id {
			return true
		}
	}
	return false
}

func (l IDList) Remove(id types.ID) IDList {
	r := IDList{}
	for _, v := range l {
		if v != id {
			r = append(r, v)
		}
	}
	return r
}
