package adminapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/wadesk/internal/webserver"
)

var startedAt = time.Now()

func registerHealthRoutes() {
	webserver.ApiGET("/health", getHealth)
}

func getHealth(c echo.Context) error {
	status := http.StatusOK
	dbState := "ok"
	if sqlDB, err := GetAppContext(c).DB().DB(); err != nil || sqlDB.PingContext(c.Request().Context()) != nil {
		dbState = "unreachable"
		status = http.StatusServiceUnavailable
	}
	svc := GetAppContext(c).Services()
	return c.JSON(status, map[string]interface{}{
		"status":    dbState,
		"uptime":    time.Since(startedAt).Round(time.Second).String(),
		"transport": svc.Transport != nil,
		"payments":  svc.Payment != nil,
		"mailer":    svc.Mailer != nil,
		"cache":     svc.Cache != nil,
	})
}
