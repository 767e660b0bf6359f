package session

import (
	"context"
	"time"

	"reqflow/authority"

	"github.com/fundwit/go-commons/types"
)

type Session struct {
	Token    string                `json:"token"`
	Identity Identity              `json:"identity"`
	Perms    authority.Permissions `json:"perms"`

	SigningTime time.Time `json:"-"`

	Context context.Context `json:"-"`
}

type Identity struct {
	ID       types.ID `json:"id"`
	Name     string   `json:"name"`
	Nickname string   `json:"nickname"`

	DepartmentID types.ID `json:"departmentId"`
}

func (s *Session) Clone() Session {
	c := Session{Token: s.Token, Identity: s.Identity, SigningTime: s.SigningTime, Context: s.Context}
	c.Perms = append(authority.Permissions{}, s.Perms...)
	return c
}
