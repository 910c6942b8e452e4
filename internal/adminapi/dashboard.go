package adminapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/wadesk/internal/dashboard"
	"github.com/talkincode/wadesk/internal/webserver"
	"go.uber.org/zap"
)

func registerDashboardRoutes() {
	webserver.ApiGET("/dashboard", getDashboardSummary)
	webserver.ApiGET("/dashboard/operational-stats", getOperationalStats)
	webserver.ApiGET("/dashboard/detail/:type", getDashboardDetail)
}

func dashboardUnavailable(c echo.Context) error {
	return fail(c, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Dashboard service not initialized", nil)
}

func getDashboardSummary(c echo.Context) error {
	if deps.Dashboard == nil {
		return dashboardUnavailable(c)
	}
	summary, err := deps.Dashboard.Summary(c.Request().Context(), GetTenantDB(c).TenantID())
	if err != nil {
		zap.L().Error("adminapi: dashboard summary failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to compute dashboard", err.Error())
	}
	return ok(c, summary)
}

func getOperationalStats(c echo.Context) error {
	if deps.Dashboard == nil {
		return dashboardUnavailable(c)
	}
	stats, err := deps.Dashboard.OperationalStats(c.Request().Context(), GetTenantDB(c).TenantID())
	if err != nil {
		zap.L().Error("adminapi: operational stats failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to compute statistics", err.Error())
	}
	return ok(c, stats)
}

func getDashboardDetail(c echo.Context) error {
	if deps.Dashboard == nil {
		return dashboardUnavailable(c)
	}
	rng, err := dashboard.ParseRange(c.QueryParam("from"), c.QueryParam("to"), location(c))
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_RANGE", "Invalid date range", err.Error())
	}
	rows, err := deps.Dashboard.Detail(c.Request().Context(), GetTenantDB(c).TenantID(), c.Param("type"), rng)
	if errors.Is(err, dashboard.ErrUnknownDetailType) {
		return fail(c, http.StatusBadRequest, "UNKNOWN_DETAIL_TYPE", "Unknown detail type", deps.Dashboard.DetailTypes())
	}
	if err != nil {
		zap.L().Error("adminapi: dashboard detail failed", zap.String("type", c.Param("type")), zap.Error(err))
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load detail", err.Error())
	}
	return ok(c, rows)
}
