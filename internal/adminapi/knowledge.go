package adminapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/wadesk/internal/domain"
	"github.com/talkincode/wadesk/internal/webserver"
	"github.com/talkincode/wadesk/pkg/common"
)

func registerKnowledgeRoutes() {
	webserver.ApiGET("/knowledge", listKnowledge)
	webserver.ApiPOST("/knowledge", createKnowledge, requireAdmin)
	webserver.ApiDELETE("/knowledge/:id", deleteKnowledge, requireAdmin)
}

type knowledgePayload struct {
	Title   string `json:"title" validate:"required,max=200"`
	Content string `json:"content" validate:"required"`
	Tags    string `json:"tags"`
}

func listKnowledge(c echo.Context) error {
	page, pageSize := parsePagination(c)
	query := GetTenantDB(c).Model(&domain.KnowledgeEntry{})
	if q := strings.TrimSpace(c.QueryParam("q")); q != "" {
		like := "%" + q + "%"
		query = query.Where("title LIKE ? OR tags LIKE ?", like, like)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query knowledge base", err.Error())
	}
	var rows []domain.KnowledgeEntry
	if err := query.Order("updated_at DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query knowledge base", err.Error())
	}
	return paged(c, rows, total, page, pageSize)
}

func createKnowledge(c echo.Context) error {
	var in knowledgePayload
	if valid, err := bindAndValidate(c, &in); !valid {
		return err
	}
	entry := &domain.KnowledgeEntry{
		ID:      common.UUIDint64(),
		Title:   strings.TrimSpace(in.Title),
		Content: in.Content,
		Tags:    strings.TrimSpace(in.Tags),
	}
	if err := GetTenantDB(c).Create(entry); err != nil {
		return fail(c, http.StatusInternalServerError, "CREATE_FAILED", "Failed to create entry", err.Error())
	}
	recordAudit(c, "knowledge.create", entry.Title)
	return created(c, entry)
}

func deleteKnowledge(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid entry id", nil)
	}
	n, err := GetTenantDB(c).Delete(&domain.KnowledgeEntry{}, "id = ?", id)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DELETE_FAILED", "Failed to delete entry", err.Error())
	}
	if n == 0 {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Entry not found", nil)
	}
	recordAudit(c, "knowledge.delete", c.Param("id"))
	return ok(c, map[string]bool{"deleted": true})
}
