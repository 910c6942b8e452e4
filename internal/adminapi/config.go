package adminapi

import (
	"net/http"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/wadesk/internal/domain"
	"github.com/talkincode/wadesk/internal/repository"
	"github.com/talkincode/wadesk/internal/webserver"
	"github.com/talkincode/wadesk/pkg/common"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxConfigKeyLen = 100

func registerConfigRoutes() {
	webserver.ApiGET("/config", getBotConfig)
	webserver.ApiPUT("/config", updateBotConfig, requireAdmin)
}

// getBotConfig returns the tenant's bot settings as a flat name -> value map
func getBotConfig(c echo.Context) error {
	var rows []domain.BotConfig
	if err := GetTenantDB(c).Model(&domain.BotConfig{}).Order("name ASC").Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load configuration", err.Error())
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[row.Name] = row.Value
	}
	return ok(c, out)
}

// updateBotConfig upserts every key of the body in one transaction
func updateBotConfig(c echo.Context) error {
	var values map[string]string
	if err := c.Bind(&values); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	if len(values) == 0 {
		return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "No configuration values supplied", nil)
	}
	invalid := map[string]string{}
	for name := range values {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" || len(trimmed) > maxConfigKeyLen {
			invalid[name] = "invalid key"
		}
	}
	if len(invalid) > 0 {
		return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid configuration keys", invalid)
	}

	tenantID := GetTenantDB(c).TenantID()
	err := GetDB(c).Transaction(func(tx *gorm.DB) error {
		tdb := repository.ForTenant(tx, tenantID)
		for name, value := range values {
			name = strings.TrimSpace(name)
			res := tdb.Model(&domain.BotConfig{}).Where("name = ?", name).Update("value", value)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected > 0 {
				continue
			}
			if err := tdb.Create(&domain.BotConfig{ID: common.UUIDint64(), Name: name, Value: value}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		zap.L().Error("adminapi: update bot config failed", zap.Int64("tenant_id", tenantID), zap.Error(err))
		return fail(c, http.StatusInternalServerError, "UPDATE_FAILED", "Failed to save configuration", err.Error())
	}
	recordAudit(c, "config.update", strings.Join(sortedKeys(values), ","))
	return getBotConfig(c)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
