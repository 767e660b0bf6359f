package account

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"

	"reqflow/authority"
	"reqflow/bizerror"
	"reqflow/idgen"
	"reqflow/persistence"
	"reqflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

var (
	userIdWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	LoadPermFunc = loadPerms
)

func LoadPermFuncReset() {
	LoadPermFunc = loadPerms
}

func HashSha256(raw string) string {
	h := sha256.New()
	h.Write([]byte(raw))
	sum := h.Sum(nil)
	return hex.EncodeToString(sum)
}

func loadPerms(userId types.ID) (authority.Permissions, error) {
	user := User{}
	db := persistence.ActiveDataSourceManager.GormDB(context.Background())
	if err := db.Model(&User{}).Where(&User{ID: userId}).Scan(&user).Error; err != nil {
		return authority.Permissions{}, err
	}
	if user.Role == "" {
		return authority.Permissions{}, nil
	}
	return authority.Permissions{user.Role}, nil
}

// DefaultSecurityConfiguration ensure the bootstrap administrator exists.
func DefaultSecurityConfiguration() error {
	db := persistence.ActiveDataSourceManager.GormDB(context.Background())
	return db.Transaction(func(tx *gorm.DB) error {
		admin := User{}
		err := tx.Model(&User{}).Where(&User{ID: 1}).First(&admin).Error
		if err != nil && errors.Is(err, gorm.ErrRecordNotFound) {
			initialAdminPassword := os.ExpandEnv("${INITIAL_ADMIN_PASSWORD}")
			if initialAdminPassword == "" {
				initialAdminPassword = "admin123"
			}
			return tx.Create(&User{ID: 1, Name: "admin", Nickname: "Administrator",
				Secret: HashSha256(initialAdminPassword), Role: RoleSystemAdmin, IsActive: true}).Error
		}
		return err
	})
}

func QueryUsers(s *session.Session) (*[]UserInfo, error) {
	var users []UserInfo
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	if err := db.Model(&User{}).Scan(&users).Error; err != nil {
		return nil, err
	}
	return &users, nil
}

func CreateUser(c *UserCreation, s *session.Session) (*UserInfo, error) {
	if !s.Perms.HasRole(RoleSystemAdmin) {
		return nil, bizerror.ErrForbidden
	}

	user := User{ID: idgen.NextID(userIdWorker), Name: c.Name, Nickname: c.Nickname,
		Secret: HashSha256(c.Secret), Role: c.Role, DepartmentID: c.DepartmentID, IsActive: true}
	if err := persistence.ActiveDataSourceManager.GormDB(s.Context).Save(&user).Error; err != nil {
		return nil, err
	}
	return &UserInfo{ID: user.ID, Name: user.Name, Nickname: user.Nickname,
		Role: user.Role, DepartmentID: user.DepartmentID, IsActive: user.IsActive}, nil
}

func UpdateBasicAuthSecret(u *BasicAuthUpdating, s *session.Session) error {
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	user := User{}
	if err := db.Model(&User{}).Where(&User{ID: s.Identity.ID, Secret: HashSha256(u.OriginalSecret)}).
		Scan(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return bizerror.ErrInvalidPassword
		}
		return err
	}

	return db.Model(&User{}).Where(&User{ID: s.Identity.ID, Secret: HashSha256(u.OriginalSecret)}).
		Update(&User{Secret: HashSha256(u.NewSecret)}).Error
}
