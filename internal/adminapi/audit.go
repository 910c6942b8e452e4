package adminapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/wadesk/internal/domain"
	"github.com/talkincode/wadesk/internal/webserver"
)

func registerAuditRoutes() {
	webserver.ApiGET("/audit-logs", listAuditLogs, requireAdmin)
}

func listAuditLogs(c echo.Context) error {
	page, pageSize := parsePagination(c)
	query := GetTenantDB(c).Model(&domain.AuditLog{})
	if action := strings.TrimSpace(c.QueryParam("action")); action != "" {
		query = query.Where("action = ?", action)
	}
	if username := strings.TrimSpace(c.QueryParam("username")); username != "" {
		query = query.Where("username = ?", username)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query audit logs", err.Error())
	}
	var rows []domain.AuditLog
	if err := query.Order("created_at DESC, id DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query audit logs", err.Error())
	}
	return paged(c, rows, total, page, pageSize)
}
