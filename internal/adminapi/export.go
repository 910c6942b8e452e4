package adminapi

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/wadesk/internal/dashboard"
	"github.com/talkincode/wadesk/internal/domain"
	"github.com/talkincode/wadesk/internal/export"
	"github.com/talkincode/wadesk/internal/webserver"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	maxExportRows = 50000
	mimeXLSX      = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type exportQuery func(q *gorm.DB) ([]export.Row, error)

// exportKinds maps the path discriminator to its model, date column and
// row builder.
var exportKinds = map[string]struct {
	model  interface{}
	column string
	rows   exportQuery
}{
	"conversations": {&domain.Conversation{}, "created_at", func(q *gorm.DB) ([]export.Row, error) {
		var items []domain.Conversation
		err := q.Order("created_at DESC").Find(&items).Error
		return export.ConversationRows(items), err
	}},
	"leads": {&domain.Lead{}, "created_at", func(q *gorm.DB) ([]export.Row, error) {
		var items []domain.Lead
		err := q.Order("created_at DESC").Find(&items).Error
		return export.LeadRows(items), err
	}},
	"appointments": {&domain.Appointment{}, "scheduled_at", func(q *gorm.DB) ([]export.Row, error) {
		var items []domain.Appointment
		err := q.Order("scheduled_at ASC").Find(&items).Error
		return export.AppointmentRows(items), err
	}},
}

func registerExportRoutes() {
	webserver.ApiGET("/export/:kind", exportData)
}

// exportData streams a CSV (default) or XLSX file of one tenant dataset
func exportData(c echo.Context) error {
	kind := c.Param("kind")
	spec, found := exportKinds[kind]
	if !found {
		return fail(c, http.StatusBadRequest, "UNKNOWN_EXPORT", "Unknown export type", kind)
	}
	rng, err := dashboard.ParseRange(c.QueryParam("from"), c.QueryParam("to"), location(c))
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_RANGE", "Invalid date range", err.Error())
	}

	q := GetTenantDB(c).Model(spec.model)
	if !rng.From.IsZero() {
		q = q.Where(spec.column+" >= ?", rng.From)
	}
	if !rng.To.IsZero() {
		q = q.Where(spec.column+" <= ?", rng.To)
	}
	rows, err := spec.rows(q.Limit(maxExportRows))
	if err != nil {
		zap.L().Error("adminapi: export query failed", zap.String("kind", kind), zap.Error(err))
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to export data", err.Error())
	}

	stamp := time.Now().Format("20060102150405")
	recordAudit(c, "export."+kind, fmt.Sprintf("%d rows", len(rows)))
	if c.QueryParam("format") == "xlsx" {
		var buf bytes.Buffer
		if err := export.WriteXLSX(&buf, kind, rows); err != nil {
			return fail(c, http.StatusInternalServerError, "EXPORT_FAILED", "Failed to render workbook", err.Error())
		}
		c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%s-%s.xlsx", kind, stamp))
		return c.Blob(http.StatusOK, mimeXLSX, buf.Bytes())
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%s-%s.csv", kind, stamp))
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", []byte(export.FormatCSV(rows)))
}

// location is the configured business timezone, UTC when it cannot load
func location(c echo.Context) *time.Location {
	loc, err := time.LoadLocation(GetAppContext(c).Config().System.Location)
	if err != nil {
		return time.UTC
	}
	return loc
}
