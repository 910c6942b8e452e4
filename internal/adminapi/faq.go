package adminapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/wadesk/internal/domain"
	"github.com/talkincode/wadesk/internal/webserver"
	"github.com/talkincode/wadesk/pkg/common"
	"gorm.io/gorm"
)

func registerFaqRoutes() {
	webserver.ApiGET("/faq", listFaq)
	webserver.ApiPOST("/faq", createFaq, requireAdmin)
	webserver.ApiGET("/faq/questions", listFaqQuestions)
	webserver.ApiPOST("/faq/questions", recordFaqQuestion)
}

type faqPayload struct {
	Question string `json:"question" validate:"required"`
	Answer   string `json:"answer" validate:"required"`
	Category string `json:"category" validate:"max=100"`
}

type faqQuestionPayload struct {
	Question string `json:"question" validate:"required,max=500"`
}

func listFaq(c echo.Context) error {
	query := GetTenantDB(c).Model(&domain.FaqEntry{})
	if category := strings.TrimSpace(c.QueryParam("category")); category != "" {
		query = query.Where("category = ?", category)
	}
	var rows []domain.FaqEntry
	if err := query.Order("category ASC, id ASC").Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query faq", err.Error())
	}
	return ok(c, rows)
}

func createFaq(c echo.Context) error {
	var in faqPayload
	if valid, err := bindAndValidate(c, &in); !valid {
		return err
	}
	entry := &domain.FaqEntry{
		ID:       common.UUIDint64(),
		Question: strings.TrimSpace(in.Question),
		Answer:   strings.TrimSpace(in.Answer),
		Category: strings.TrimSpace(in.Category),
	}
	if err := GetTenantDB(c).Create(entry); err != nil {
		return fail(c, http.StatusInternalServerError, "CREATE_FAILED", "Failed to create faq entry", err.Error())
	}
	recordAudit(c, "faq.create", entry.Question)
	return created(c, entry)
}

// listFaqQuestions returns the customer question log, most asked first
func listFaqQuestions(c echo.Context) error {
	page, pageSize := parsePagination(c)
	query := GetTenantDB(c).Model(&domain.FaqQuestion{})
	if c.QueryParam("unanswered") == "true" {
		query = query.Where("answered = ?", false)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query questions", err.Error())
	}
	var rows []domain.FaqQuestion
	if err := query.Order("hits DESC, id ASC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query questions", err.Error())
	}
	return paged(c, rows, total, page, pageSize)
}

// recordFaqQuestion counts one more occurrence of a question, creating the
// row on first sight. Questions are matched case-insensitively.
func recordFaqQuestion(c echo.Context) error {
	var in faqQuestionPayload
	if valid, err := bindAndValidate(c, &in); !valid {
		return err
	}
	question := strings.ToLower(strings.Join(strings.Fields(in.Question), " "))
	tdb := GetTenantDB(c)
	res := tdb.Model(&domain.FaqQuestion{}).
		Where("question = ?", question).
		Update("hits", gorm.Expr("hits + 1"))
	if res.Error != nil {
		return fail(c, http.StatusInternalServerError, "UPDATE_FAILED", "Failed to record question", res.Error.Error())
	}
	if res.RowsAffected == 0 {
		row := &domain.FaqQuestion{ID: common.UUIDint64(), Question: question, Hits: 1}
		if err := tdb.Create(row); err != nil {
			return fail(c, http.StatusInternalServerError, "CREATE_FAILED", "Failed to record question", err.Error())
		}
	}
	var row domain.FaqQuestion
	if err := tdb.First(&row, "question = ?", question); err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load question", err.Error())
	}
	return ok(c, row)
}
