package adminapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/wadesk/internal/repository"
	"github.com/talkincode/wadesk/internal/webserver"
	"github.com/talkincode/wadesk/pkg/common"
	"go.uber.org/zap"
)

func registerConversationRoutes() {
	webserver.ApiGET("/conversations", listConversations)
	webserver.ApiGET("/conversations/:id/messages", listConversationMessages)
}

// visibleInstances intersects the requested instance filter with the
// session allow list. A nil result means no restriction.
func visibleInstances(c echo.Context, requested []int64) []int64 {
	claims := currentClaims(c)
	if claims == nil || len(claims.AllowedInstances) == 0 {
		return requested
	}
	if len(requested) == 0 {
		return claims.AllowedInstances
	}
	out := make([]int64, 0, len(requested))
	for _, id := range requested {
		if claims.CanUseInstance(id) {
			out = append(out, id)
		}
	}
	if len(out) == 0 {
		// nothing the session may see
		return []int64{0}
	}
	return out
}

func listConversations(c echo.Context) error {
	page, pageSize := parsePagination(c)
	tdb := GetTenantDB(c)
	repo := repository.NewGormConversationRepository(GetAppContext(c).DB())
	rows, total, err := repo.List(c.Request().Context(), tdb.TenantID(), repository.ConversationFilter{
		Status:      c.QueryParam("status"),
		InstanceIDs: visibleInstances(c, common.SplitIDs(c.QueryParam("instances"))),
		Page:        page,
		PageSize:    pageSize,
		Sort:        c.QueryParam("sort"),
		Order:       c.QueryParam("order"),
	})
	if err != nil {
		zap.L().Error("adminapi: list conversations failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query conversations", err.Error())
	}
	return paged(c, rows, total, page, pageSize)
}

func listConversationMessages(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid conversation id", nil)
	}
	ctx := c.Request().Context()
	db := GetAppContext(c).DB()
	tenantID := GetTenantDB(c).TenantID()

	conv, err := repository.NewGormConversationRepository(db).Get(ctx, tenantID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Conversation not found", nil)
	}
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load conversation", err.Error())
	}
	if claims := currentClaims(c); claims != nil && !claims.CanUseInstance(conv.InstanceID) {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Conversation not found", nil)
	}

	page, pageSize := parsePagination(c)
	rows, total, err := repository.NewGormMessageRepository(db).ListByConversation(ctx, tenantID, conv.ID, page, pageSize)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query messages", err.Error())
	}
	c.Response().Header().Set("X-Conversation-Status", conv.Status)
	c.Response().Header().Set("X-Unread-Count", strconv.Itoa(conv.UnreadCount))
	return paged(c, rows, total, page, pageSize)
}
