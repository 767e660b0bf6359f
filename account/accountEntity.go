package account

import "github.com/fundwit/go-commons/types"

const (
	RoleSystemAdmin        = "system_admin"
	RoleDepartmentApprover = "department_approver"
	RoleManager            = "manager"
	RoleProcessor          = "processor"
)

// User a directory account. Rows are maintained by the external directory
// synchronization; this service only reads them (plus local secrets).
type User struct {
	ID     types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	Name   string   `json:"name"`
	Secret string   `json:"secret"`

	Nickname     string   `json:"nickname"`
	Role         string   `json:"role"`
	DepartmentID types.ID `json:"departmentId"`
	IsActive     bool     `json:"isActive"`
}

type Department struct {
	ID   types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	Name string   `json:"name"`

	ManagerID types.ID `json:"managerId"`
}

type UserInfo struct {
	ID       types.ID `json:"id"`
	Name     string   `json:"name"`
	Nickname string   `json:"nickname"`

	Role         string   `json:"role"`
	DepartmentID types.ID `json:"departmentId"`
	IsActive     bool     `json:"isActive"`
}

type BasicAuthUpdating struct {
	OriginalSecret string `json:"originalSecret"`
	NewSecret      string `json:"newSecret" binding:"required,gte=6,lte=32"`
}

type UserCreation struct {
	Name         string   `json:"name" binding:"required,lte=32"`
	Secret       string   `json:"secret" binding:"required,gte=6,lte=32"`
	Nickname     string   `json:"nickname" binding:"omitempty,gte=1,lte=32"`
	Role         string   `json:"role"`
	DepartmentID types.ID `json:"departmentId"`
}

func (u User) DisplayName() string {
	if u.Nickname != "" {
		return u.Nickname
	}
	return u.Name
}
