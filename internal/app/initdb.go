package app

import (
	"errors"
	"strings"
	"time"

	"github.com/talkincode/wadesk/internal/domain"
	"github.com/talkincode/wadesk/pkg/common"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	superUsername   = "admin"
	defaultPassword = "wadesk"
)

// checkSystemTenant makes sure tenant 1 exists; legacy operators resolve to it
func (a *Application) checkSystemTenant() {
	var count int64
	a.gormDB.Model(&domain.Tenant{}).Where("id = ?", domain.SystemTenantID).Count(&count)
	if count > 0 {
		return
	}
	now := time.Now()
	if err := a.gormDB.Create(&domain.Tenant{
		ID:         domain.SystemTenantID,
		Name:       "system",
		Slug:       "system",
		Status:     common.ENABLED,
		Plan:       "internal",
		PlanStatus: "active",
		CreatedAt:  now,
		UpdatedAt:  now,
	}).Error; err != nil {
		zap.L().Error("failed to create system tenant", zap.Error(err))
		return
	}
	zap.L().Info("initialized system tenant")
}

func (a *Application) checkSuper() {
	var user domain.SysUser
	err := a.gormDB.Where("username = ?", superUsername).First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		hashed, herr := bcrypt.GenerateFromPassword([]byte(defaultPassword), bcrypt.DefaultCost)
		if herr != nil {
			zap.L().Error("failed to hash default password", zap.Error(herr))
			return
		}
		if err := a.gormDB.Create(&domain.SysUser{
			ID:        common.UUIDint64(),
			TenantID:  domain.SystemTenantID,
			Username:  superUsername,
			Password:  string(hashed),
			Name:      "administrator",
			Role:      domain.RoleSuper,
			Status:    common.ENABLED,
			LastLogin: time.Now(),
		}).Error; err != nil {
			zap.L().Error("failed to create default super admin", zap.Error(err))
		} else {
			zap.L().Info("initialized default super admin account", zap.String("username", superUsername))
		}
		return
	case err != nil:
		zap.L().Error("failed to query super admin", zap.Error(err))
		return
	}

	resetRole := user.Role != domain.RoleSuper
	resetStatus := !strings.EqualFold(user.Status, common.ENABLED)
	if !resetRole && !resetStatus {
		return
	}

	updates := map[string]interface{}{
		"updated_at": time.Now(),
	}
	if resetRole {
		updates["role"] = domain.RoleSuper
	}
	if resetStatus {
		updates["status"] = common.ENABLED
	}
	if err := a.gormDB.Model(&domain.SysUser{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
		zap.L().Error("failed to repair super admin account", zap.Error(err))
		return
	}

	zap.L().Warn("repaired default super admin account",
		zap.String("username", superUsername),
		zap.Bool("roleReset", resetRole),
		zap.Bool("statusEnabled", resetStatus))
}
