package adminapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/wadesk/internal/app"
	"github.com/talkincode/wadesk/internal/domain"
	"github.com/talkincode/wadesk/internal/webserver"
)

func registerJobRoutes() {
	webserver.ApiGET("/system/jobs", listJobs, requireSuper)
	webserver.ApiPOST("/system/jobs/:name/run", runJob, requireSuper)
}

// requireSuper limits a route to the platform operator
func requireSuper(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims := currentClaims(c)
		if claims == nil || claims.Role != domain.RoleSuper {
			return fail(c, http.StatusForbidden, "FORBIDDEN", "Super user role required", nil)
		}
		return next(c)
	}
}

func listJobs(c echo.Context) error {
	return ok(c, GetAppContext(c).Jobs())
}

// runJob triggers the job immediately
func runJob(c echo.Context) error {
	name := c.Param("name")
	if err := GetAppContext(c).RunJobNow(name); err != nil {
		if errors.Is(err, app.ErrUnknownJob) {
			return fail(c, http.StatusNotFound, "NOT_FOUND", "Unknown job", name)
		}
		return fail(c, http.StatusInternalServerError, "RUN_FAILED", "Failed to run job", err.Error())
	}
	recordAudit(c, "job.run", name)
	return c.NoContent(http.StatusAccepted)
}
