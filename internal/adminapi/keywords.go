package adminapi

import (
	"net/http"
	"net/url"
	"strings"
	"unicode"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/wadesk/internal/domain"
	"github.com/talkincode/wadesk/internal/export"
	"github.com/talkincode/wadesk/internal/repository"
	"github.com/talkincode/wadesk/internal/webserver"
	"github.com/talkincode/wadesk/pkg/common"
	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxKeywordImport = 5000

func registerKeywordRoutes() {
	webserver.ApiGET("/keywords", listKeywords)
	webserver.ApiPOST("/keywords", createKeyword, requireAdmin)
	webserver.ApiPOST("/keywords/import", importKeywords, requireAdmin)
	webserver.ApiDELETE("/keywords/:keyword", deleteKeyword, requireAdmin)
}

type keywordPayload struct {
	Keyword  string `json:"keyword" validate:"required,max=100"`
	Response string `json:"response" validate:"required"`
}

// NormalizeKeyword folds accents and case so "Matrícula" and "matricula"
// trigger the same response.
func NormalizeKeyword(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.Join(strings.Fields(folded), " "))
}

func listKeywords(c echo.Context) error {
	var rows []domain.Keyword
	if err := GetTenantDB(c).Model(&domain.Keyword{}).Order("keyword ASC").Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query keywords", err.Error())
	}
	return ok(c, rows)
}

// upsertKeyword reports whether a new row was created
func upsertKeyword(tdb *repository.TenantDB, keyword, response string) (bool, error) {
	res := tdb.Model(&domain.Keyword{}).Where("keyword = ?", keyword).Update("response", response)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return false, nil
	}
	return true, tdb.Create(&domain.Keyword{ID: common.UUIDint64(), Keyword: keyword, Response: response})
}

func createKeyword(c echo.Context) error {
	var in keywordPayload
	if valid, err := bindAndValidate(c, &in); !valid {
		return err
	}
	keyword := NormalizeKeyword(in.Keyword)
	if keyword == "" {
		return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request data", map[string]string{"keyword": "required"})
	}
	tdb := GetTenantDB(c)
	isNew, err := upsertKeyword(tdb, keyword, in.Response)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "CREATE_FAILED", "Failed to save keyword", err.Error())
	}
	var row domain.Keyword
	if err := tdb.First(&row, "keyword = ?", keyword); err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load keyword", err.Error())
	}
	recordAudit(c, "keyword.save", keyword)
	if isNew {
		return created(c, row)
	}
	return ok(c, row)
}

func deleteKeyword(c echo.Context) error {
	raw, err := url.PathUnescape(c.Param("keyword"))
	if err != nil {
		raw = c.Param("keyword")
	}
	keyword := NormalizeKeyword(raw)
	n, err := GetTenantDB(c).Delete(&domain.Keyword{}, "keyword = ?", keyword)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DELETE_FAILED", "Failed to delete keyword", err.Error())
	}
	if n == 0 {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Keyword not found", nil)
	}
	recordAudit(c, "keyword.delete", keyword)
	return ok(c, map[string]bool{"deleted": true})
}

// importKeywords reads a keyword,response CSV from the multipart field "file"
func importKeywords(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "CSV file is required", err.Error())
	}
	f, err := fh.Open()
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to read file", err.Error())
	}
	defer f.Close()

	records, err := export.ReadKeywords(f)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_CSV", "Unable to parse CSV", err.Error())
	}
	if len(records) > maxKeywordImport {
		return fail(c, http.StatusBadRequest, "TOO_MANY_ROWS", "Too many keywords in one import", map[string]int{"max": maxKeywordImport})
	}

	tdb := GetTenantDB(c)
	var inserted, updated, skipped int
	for _, rec := range records {
		keyword := NormalizeKeyword(rec.Keyword)
		if keyword == "" || strings.TrimSpace(rec.Response) == "" || len(keyword) > 100 {
			skipped++
			continue
		}
		isNew, err := upsertKeyword(tdb, keyword, rec.Response)
		if err != nil {
			zap.L().Warn("adminapi: keyword import row failed", zap.String("keyword", keyword), zap.Error(err))
			skipped++
			continue
		}
		if isNew {
			inserted++
		} else {
			updated++
		}
	}
	recordAudit(c, "keyword.import", fh.Filename)
	return ok(c, map[string]int{"inserted": inserted, "updated": updated, "skipped": skipped})
}
