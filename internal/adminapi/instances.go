package adminapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/wadesk/internal/domain"
	"github.com/talkincode/wadesk/internal/repository"
	"github.com/talkincode/wadesk/internal/webserver"
	"github.com/talkincode/wadesk/internal/whatsapp"
	"github.com/talkincode/wadesk/pkg/common"
	"go.uber.org/zap"
)

func registerInstanceRoutes() {
	webserver.ApiGET("/instances", listInstances)
	webserver.ApiPOST("/instances", createInstance, requireAdmin)
	webserver.ApiGET("/instances/:id/qr", getInstanceQR)
	webserver.ApiGET("/instances/:id/status", getInstanceStatus)
	webserver.ApiPOST("/instances/:id/provision", provisionInstance, requireAdmin)
	webserver.ApiPOST("/instances/:id/connect", connectInstance, requireAdmin)
	webserver.ApiPOST("/instances/:id/disconnect", disconnectInstance, requireAdmin)
	webserver.ApiDELETE("/instances/:id", deleteInstance, requireAdmin)
}

type instancePayload struct {
	Name  string `json:"name" validate:"required,max=100"`
	Phone string `json:"phone" validate:"omitempty,max=30"`
}

// loadInstance resolves :id inside the session tenant and writes the error
// response itself when it cannot.
func loadInstance(c echo.Context) (*domain.Instance, error) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return nil, fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid instance id", nil)
	}
	var inst domain.Instance
	if err := GetTenantDB(c).First(&inst, "id = ?", id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fail(c, http.StatusNotFound, "NOT_FOUND", "Instance not found", nil)
		}
		return nil, fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load instance", err.Error())
	}
	return &inst, nil
}

// transportError maps manager errors to responses
func transportError(c echo.Context, op string, id int64, err error) error {
	switch {
	case errors.Is(err, whatsapp.ErrNotInitialized):
		return fail(c, http.StatusServiceUnavailable, "WA_NOT_INITIALIZED", "WhatsApp service not initialized", nil)
	case errors.Is(err, whatsapp.ErrInstanceNotFound):
		return fail(c, http.StatusConflict, "NOT_PROVISIONED", "Instance has not been provisioned", nil)
	case errors.Is(err, whatsapp.ErrAlreadyProvisioned):
		return fail(c, http.StatusConflict, "ALREADY_PROVISIONED", "Instance is already paired", nil)
	}
	zap.L().Warn("adminapi: instance operation failed", zap.String("op", op), zap.Int64("id", id), zap.Error(err))
	return fail(c, http.StatusInternalServerError, strings.ToUpper(op)+"_FAILED", "WhatsApp operation failed", err.Error())
}

func listInstances(c echo.Context) error {
	query := GetTenantDB(c).Model(&domain.Instance{})
	if claims := currentClaims(c); claims != nil && len(claims.AllowedInstances) > 0 {
		query = query.Where("id IN ?", claims.AllowedInstances)
	}
	var rows []domain.Instance
	if err := query.Order("id DESC").Find(&rows).Error; err != nil {
		zap.L().Warn("adminapi: list instances failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "LIST_FAILED", "Failed to list instances", err.Error())
	}
	return ok(c, rows)
}

func createInstance(c echo.Context) error {
	var in instancePayload
	if valid, err := bindAndValidate(c, &in); !valid {
		return err
	}
	inst := &domain.Instance{
		ID:     common.UUIDint64(),
		Name:   strings.TrimSpace(in.Name),
		Phone:  strings.TrimSpace(in.Phone),
		Status: whatsapp.StatusCreated,
	}
	if err := GetTenantDB(c).Create(inst); err != nil {
		return fail(c, http.StatusInternalServerError, "CREATE_FAILED", "Failed to create instance", err.Error())
	}
	recordAudit(c, "instance.create", inst.Name)
	return created(c, inst)
}

func getInstanceQR(c echo.Context) error {
	inst, err := loadInstance(c)
	if inst == nil {
		return err
	}
	code := deps.WhatsApp.QRCode(inst.ID)
	return ok(c, map[string]interface{}{"code": code, "has_qr": code != ""})
}

func getInstanceStatus(c echo.Context) error {
	inst, err := loadInstance(c)
	if inst == nil {
		return err
	}
	return ok(c, map[string]interface{}{
		"initialized": deps.WhatsApp != nil,
		"status":      inst.Status,
		"state":       deps.WhatsApp.State(inst.ID),
	})
}

func provisionInstance(c echo.Context) error {
	inst, err := loadInstance(c)
	if inst == nil {
		return err
	}
	if err := deps.WhatsApp.Provision(c.Request().Context(), inst); err != nil {
		return transportError(c, "provision", inst.ID, err)
	}
	recordAudit(c, "instance.provision", inst.Name)
	return ok(c, map[string]interface{}{"started": true})
}

func connectInstance(c echo.Context) error {
	inst, err := loadInstance(c)
	if inst == nil {
		return err
	}
	if err := deps.WhatsApp.Connect(inst.ID); err != nil {
		return transportError(c, "connect", inst.ID, err)
	}
	return ok(c, map[string]interface{}{"started": true})
}

func disconnectInstance(c echo.Context) error {
	inst, err := loadInstance(c)
	if inst == nil {
		return err
	}
	if err := deps.WhatsApp.Disconnect(inst.ID); err != nil {
		return transportError(c, "disconnect", inst.ID, err)
	}
	return ok(c, map[string]interface{}{"disconnected": true})
}

// deleteInstance drops the paired device first, then the row
func deleteInstance(c echo.Context) error {
	inst, err := loadInstance(c)
	if inst == nil {
		return err
	}
	if deps.WhatsApp != nil {
		if err := deps.WhatsApp.Remove(c.Request().Context(), inst.ID); err != nil {
			return transportError(c, "remove", inst.ID, err)
		}
	}
	if _, err := GetTenantDB(c).Delete(&domain.Instance{}, "id = ?", inst.ID); err != nil {
		return fail(c, http.StatusInternalServerError, "REMOVE_FAILED", "Failed to remove instance", err.Error())
	}
	zap.L().Info("adminapi: instance removed", zap.Int64("id", inst.ID), zap.String("remote_addr", c.RealIP()))
	recordAudit(c, "instance.delete", inst.Name)
	return ok(c, map[string]interface{}{"removed": true})
}
