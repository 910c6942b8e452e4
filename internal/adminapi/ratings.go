package adminapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/wadesk/internal/chat"
	"github.com/talkincode/wadesk/internal/domain"
	"github.com/talkincode/wadesk/internal/repository"
	"github.com/talkincode/wadesk/internal/webserver"
	"go.uber.org/zap"
)

func registerRatingRoutes() {
	webserver.ApiGET("/public/ratings/:token", getPublicRating)
	webserver.ApiPOST("/public/ratings/:token", submitPublicRating)
	webserver.ApiGET("/ratings", listRatings)
}

type ratingPayload struct {
	Score   int    `json:"score" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=1000"`
}

func getPublicRating(c echo.Context) error {
	var rating domain.Rating
	err := GetDB(c).Where("token = ?", c.Param("token")).First(&rating).Error
	if err != nil {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Rating link not found", nil)
	}
	var tenant domain.Tenant
	_ = GetDB(c).Where("id = ?", rating.TenantID).First(&tenant).Error
	return ok(c, map[string]interface{}{
		"tenant":   tenant.Name,
		"logo":     tenant.LogoPath,
		"answered": rating.AnsweredAt != nil,
		"expired":  time.Now().After(rating.ExpiresAt),
	})
}

func submitPublicRating(c echo.Context) error {
	var in ratingPayload
	if valid, err := bindAndValidate(c, &in); !valid {
		return err
	}
	if deps.Chat == nil {
		return fail(c, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Ratings unavailable", nil)
	}
	_, err := deps.Chat.SubmitPublicRating(c.Request().Context(), GetAppContext(c).Bus(), c.Param("token"), in.Score, in.Comment)
	switch {
	case err == nil:
		return ok(c, map[string]bool{"saved": true})
	case errors.Is(err, repository.ErrNotFound):
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Rating link not found", nil)
	case errors.Is(err, repository.ErrRatingClosed):
		return fail(c, http.StatusConflict, "RATING_CLOSED", "Rating already answered or expired", nil)
	case errors.Is(err, chat.ErrInvalidPayload):
		return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "Score must be between 1 and 5", nil)
	default:
		zap.L().Error("rating submit failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to save rating", nil)
	}
}

func listRatings(c echo.Context) error {
	page, pageSize := parsePagination(c)
	q := GetTenantDB(c).Model(&domain.Rating{}).Where("answered_at IS NOT NULL")
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query ratings", err.Error())
	}
	var rows []domain.Rating
	if err := q.Order("answered_at DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query ratings", err.Error())
	}
	return paged(c, rows, total, page, pageSize)
}
