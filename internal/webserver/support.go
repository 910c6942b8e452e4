package webserver

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrorBody is the JSON shape of every error response
type ErrorBody struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// JSONSerializer plugs jsoniter into echo
type JSONSerializer struct{}

func (JSONSerializer) Serialize(c echo.Context, i interface{}, indent string) error {
	enc := json.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(i)
}

func (JSONSerializer) Deserialize(c echo.Context, i interface{}) error {
	err := json.NewDecoder(c.Request().Body).Decode(i)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err)).SetInternal(err)
	}
	return nil
}

// Validator adapts validator/v10 to echo
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return &Validator{v: v}
}

func (cv *Validator) Validate(i interface{}) error {
	return cv.v.Struct(i)
}

// FieldErrors maps validation failures to field -> rule
func FieldErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		out[fe.Field()] = rule
	}
	return out
}

func httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status := http.StatusInternalServerError
	body := ErrorBody{Error: "INTERNAL_ERROR", Message: "internal server error"}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		body.Message = fmt.Sprint(he.Message)
		switch status {
		case http.StatusNotFound:
			body.Error = "NOT_FOUND"
		case http.StatusMethodNotAllowed:
			body.Error = "METHOD_NOT_ALLOWED"
		case http.StatusBadRequest:
			body.Error = "INVALID_REQUEST"
		case http.StatusRequestEntityTooLarge:
			body.Error = "PAYLOAD_TOO_LARGE"
		case http.StatusUnauthorized:
			body.Error = "UNAUTHORIZED"
		default:
			body.Error = strings.ToUpper(strings.ReplaceAll(http.StatusText(status), " ", "_"))
		}
	} else {
		zap.L().Error("unhandled request error", zap.String("path", c.Request().URL.Path), zap.Error(err))
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	_ = c.JSON(status, body)
}
