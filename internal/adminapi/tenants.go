package adminapi

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/talkincode/wadesk/internal/domain"
	"github.com/talkincode/wadesk/internal/webserver"
	"go.uber.org/zap"
)

const maxLogoSize = 2 << 20

var logoTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
}

func registerTenantRoutes() {
	webserver.ApiGET("/tenants/me", getCurrentTenant)
	webserver.ApiPOST("/tenants/me/logo", uploadTenantLogo, requireAdmin)
}

func getCurrentTenant(c echo.Context) error {
	var tenant domain.Tenant
	if err := GetDB(c).Where("id = ?", GetTenantDB(c).TenantID()).First(&tenant).Error; err != nil {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Tenant not found", nil)
	}
	return ok(c, tenant)
}

// uploadTenantLogo accepts the multipart field "logo". The type is sniffed
// from content, the client supplied name and header are ignored.
func uploadTenantLogo(c echo.Context) error {
	fh, err := c.FormFile("logo")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Logo file is required", err.Error())
	}
	if fh.Size > maxLogoSize {
		return fail(c, http.StatusBadRequest, "FILE_TOO_LARGE", "Logo must be at most 2 MiB", nil)
	}
	f, err := fh.Open()
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to read file", err.Error())
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxLogoSize+1))
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to read file", err.Error())
	}
	if len(data) > maxLogoSize {
		return fail(c, http.StatusBadRequest, "FILE_TOO_LARGE", "Logo must be at most 2 MiB", nil)
	}
	mtype := mimetype.Detect(data)
	ext, allowed := logoTypes[mtype.String()]
	if !allowed {
		return fail(c, http.StatusBadRequest, "INVALID_FILE_TYPE", "Logo must be PNG, JPEG or WebP", mtype.String())
	}

	tenantID := GetTenantDB(c).TenantID()
	dir := path.Join(GetAppContext(c).Config().GetUploadDir(), "logos")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fail(c, http.StatusInternalServerError, "UPLOAD_FAILED", "Failed to store logo", err.Error())
	}
	name := fmt.Sprintf("%d-%s%s", tenantID, uuid.NewString(), ext)
	if err := os.WriteFile(path.Join(dir, name), data, 0o644); err != nil {
		zap.L().Error("adminapi: write logo failed", zap.Int64("tenant_id", tenantID), zap.Error(err))
		return fail(c, http.StatusInternalServerError, "UPLOAD_FAILED", "Failed to store logo", err.Error())
	}

	logoPath := "/uploads/logos/" + name
	if err := GetDB(c).Model(&domain.Tenant{}).Where("id = ?", tenantID).Update("logo_path", logoPath).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "UPDATE_FAILED", "Failed to update tenant", err.Error())
	}
	recordAudit(c, "tenant.logo", logoPath)
	return ok(c, map[string]string{"logo_path": logoPath})
}
