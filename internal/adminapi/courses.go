package adminapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/wadesk/internal/domain"
	"github.com/talkincode/wadesk/internal/repository"
	"github.com/talkincode/wadesk/internal/webserver"
	"github.com/talkincode/wadesk/pkg/common"
)

var courseSortColumns = map[string]string{
	"name":       "name",
	"price":      "price",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

func registerCourseRoutes() {
	webserver.ApiGET("/courses", listCourses)
	webserver.ApiGET("/courses/:id", getCourse)
	webserver.ApiPOST("/courses", createCourse, requireAdmin)
	webserver.ApiPUT("/courses/:id", updateCourse, requireAdmin)
}

type coursePayload struct {
	Name        string  `json:"name" validate:"required,max=200"`
	Description string  `json:"description"`
	Price       float64 `json:"price" validate:"gte=0"`
	Duration    string  `json:"duration" validate:"max=100"`
	Modality    string  `json:"modality" validate:"omitempty,oneof=online presencial hibrido"`
	Active      *bool   `json:"active"`
}

func listCourses(c echo.Context) error {
	page, pageSize := parsePagination(c)
	query := GetTenantDB(c).Model(&domain.Course{})
	if q := strings.TrimSpace(c.QueryParam("q")); q != "" {
		query = query.Where("name LIKE ?", "%"+q+"%")
	}
	if active := c.QueryParam("active"); active != "" {
		query = query.Where("active = ?", active == "true" || active == "1")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query courses", err.Error())
	}
	var rows []domain.Course
	err := query.
		Order(repository.SortClause(c.QueryParam("sort"), c.QueryParam("order"), courseSortColumns, "name")).
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query courses", err.Error())
	}
	return paged(c, rows, total, page, pageSize)
}

func loadCourse(c echo.Context) (*domain.Course, error) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return nil, fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid course id", nil)
	}
	var course domain.Course
	if err := GetTenantDB(c).First(&course, "id = ?", id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fail(c, http.StatusNotFound, "NOT_FOUND", "Course not found", nil)
		}
		return nil, fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load course", err.Error())
	}
	return &course, nil
}

func getCourse(c echo.Context) error {
	course, err := loadCourse(c)
	if course == nil {
		return err
	}
	return ok(c, course)
}

func createCourse(c echo.Context) error {
	var in coursePayload
	if valid, err := bindAndValidate(c, &in); !valid {
		return err
	}
	course := &domain.Course{
		ID:          common.UUIDint64(),
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Price:       in.Price,
		Duration:    in.Duration,
		Modality:    in.Modality,
		Active:      in.Active == nil || *in.Active,
	}
	if err := GetTenantDB(c).Create(course); err != nil {
		return fail(c, http.StatusInternalServerError, "CREATE_FAILED", "Failed to create course", err.Error())
	}
	recordAudit(c, "course.create", course.Name)
	return created(c, course)
}

func updateCourse(c echo.Context) error {
	course, err := loadCourse(c)
	if course == nil {
		return err
	}
	var in coursePayload
	if valid, err := bindAndValidate(c, &in); !valid {
		return err
	}
	values := map[string]interface{}{
		"name":        strings.TrimSpace(in.Name),
		"description": in.Description,
		"price":       in.Price,
		"duration":    in.Duration,
		"modality":    in.Modality,
	}
	if in.Active != nil {
		values["active"] = *in.Active
	}
	if err := GetTenantDB(c).Model(&domain.Course{}).Where("id = ?", course.ID).Updates(values).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "UPDATE_FAILED", "Failed to update course", err.Error())
	}
	recordAudit(c, "course.update", course.Name)
	course, err = loadCourse(c)
	if course == nil {
		return err
	}
	return ok(c, course)
}
