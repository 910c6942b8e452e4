package adminapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/talkincode/wadesk/internal/app"
	"github.com/talkincode/wadesk/internal/auth"
	"github.com/talkincode/wadesk/internal/chat"
	"github.com/talkincode/wadesk/internal/dashboard"
	"github.com/talkincode/wadesk/internal/domain"
	"github.com/talkincode/wadesk/internal/repository"
	"github.com/talkincode/wadesk/internal/webserver"
	"github.com/talkincode/wadesk/internal/whatsapp"
	"gorm.io/gorm"
)

// Deps are the services handlers call into. WhatsApp may be nil when the
// transport is disabled.
type Deps struct {
	Verifier  *auth.Verifier
	Chat      *chat.Service
	Dashboard *dashboard.Service
	WhatsApp  *whatsapp.Manager
}

var deps Deps

// Init registers every admin route on the webserver
func Init(d Deps) {
	deps = d
	registerAuthRoutes()
	registerConfigRoutes()
	registerCourseRoutes()
	registerFaqRoutes()
	registerKnowledgeRoutes()
	registerKeywordRoutes()
	registerConversationRoutes()
	registerExportRoutes()
	registerDashboardRoutes()
	registerAuditRoutes()
	registerTenantRoutes()
	registerInstanceRoutes()
	registerRatingRoutes()
	registerWebhookRoutes()
	registerJobRoutes()
	registerHealthRoutes()
	registerSocketRoutes()
}

type Response struct {
	Data interface{} `json:"data"`
}

type PagedResponse struct {
	Data     interface{} `json:"data"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"pageSize"`
}

func ok(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, Response{Data: data})
}

func created(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusCreated, Response{Data: data})
}

func fail(c echo.Context, status int, code, message string, details interface{}) error {
	return c.JSON(status, webserver.ErrorBody{Error: code, Message: message, Details: details})
}

func paged(c echo.Context, rows interface{}, total int64, page, pageSize int) error {
	return c.JSON(http.StatusOK, PagedResponse{Data: rows, Total: total, Page: page, PageSize: pageSize})
}

// bindAndValidate decodes the body and runs struct validation. It writes
// the error response itself and reports false on failure.
func bindAndValidate(c echo.Context, payload interface{}) (bool, error) {
	if err := c.Bind(payload); err != nil {
		return false, fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	if err := c.Validate(payload); err != nil {
		return false, fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request data", webserver.FieldErrors(err))
	}
	return true, nil
}

func parsePagination(c echo.Context) (int, int) {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.QueryParam("pageSize"))
	if pageSize <= 0 {
		pageSize, _ = strconv.Atoi(c.QueryParam("perPage"))
	}
	if pageSize <= 0 || pageSize > 500 {
		pageSize = 20
	}
	return page, pageSize
}

func parseIDParam(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Param(name)), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

func GetAppContext(c echo.Context) app.AppContext {
	return c.Get(webserver.AppContextKey).(app.AppContext)
}

func GetDB(c echo.Context) *gorm.DB {
	return GetAppContext(c).DB().WithContext(c.Request().Context())
}

// currentClaims returns the verified session claims, nil on public routes
func currentClaims(c echo.Context) *auth.Claims {
	token, ok := c.Get(webserver.UserContextKey).(*jwt.Token)
	if !ok || token == nil {
		return nil
	}
	claims, _ := token.Claims.(*auth.Claims)
	return claims
}

// GetTenantDB scopes queries to the session's tenant; the tenant id never
// comes from request input.
func GetTenantDB(c echo.Context) *repository.TenantDB {
	claims := currentClaims(c)
	if claims == nil {
		return nil
	}
	return repository.ForTenant(GetAppContext(c).DB(), claims.TenantID).WithContext(c.Request().Context())
}

func recordAudit(c echo.Context, action, detail string) {
	claims := currentClaims(c)
	if claims == nil {
		return
	}
	GetAppContext(c).Services().RecordAudit(claims.TenantID, claims.UserID, claims.Username, action, c.RealIP(), detail)
}

// requireAdmin limits a route to tenant admins and the super user
func requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims := currentClaims(c)
		if claims == nil || (claims.Role != domain.RoleAdmin && claims.Role != domain.RoleSuper) {
			return fail(c, http.StatusForbidden, "FORBIDDEN", "Administrator role required", nil)
		}
		return next(c)
	}
}
