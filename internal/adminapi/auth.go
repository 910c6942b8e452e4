package adminapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/wadesk/internal/app"
	"github.com/talkincode/wadesk/internal/auth"
	"github.com/talkincode/wadesk/internal/webserver"
	"go.uber.org/zap"
)

func registerAuthRoutes() {
	webserver.ApiPOST("/login", login)
	webserver.ApiGET("/me", getMe)
	webserver.ApiGET("/auth/2fa/status", getTwoFactorStatus)
	webserver.ApiPOST("/auth/2fa/setup", setupTwoFactor)
	webserver.ApiPOST("/auth/2fa/enable", enableTwoFactor)
	webserver.ApiPOST("/auth/2fa/disable", disableTwoFactor)
}

func login(c echo.Context) error {
	var in auth.LoginInput
	if valid, err := bindAndValidate(c, &in); !valid {
		return err
	}
	in.RemoteIP = c.RealIP()

	res, err := deps.Verifier.Login(c.Request().Context(), in)
	switch {
	case err == nil:
		return ok(c, res)
	case errors.Is(err, auth.ErrMissingCredentials):
		return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidCode):
		return fail(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", err.Error(), nil)
	case errors.Is(err, app.ErrServiceUnavailable):
		return fail(c, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Two-factor service unavailable", nil)
	default:
		zap.L().Error("login failed", zap.String("username", in.Username), zap.Error(err))
		return fail(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Login failed", nil)
	}
}

func getMe(c echo.Context) error {
	return ok(c, currentClaims(c))
}

type twoFactorCode struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

func twoFactorError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, auth.ErrInvalidCode):
		return fail(c, http.StatusUnauthorized, "INVALID_CODE", err.Error(), nil)
	case errors.Is(err, auth.ErrTwoFactorState):
		return fail(c, http.StatusConflict, "TWO_FACTOR_STATE", err.Error(), nil)
	case errors.Is(err, auth.ErrUnknownUser):
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Account not found", nil)
	case errors.Is(err, app.ErrServiceUnavailable):
		return fail(c, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Two-factor service unavailable", nil)
	}
	zap.L().Error("two-factor operation failed", zap.Error(err))
	return fail(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Two-factor operation failed", nil)
}

func getTwoFactorStatus(c echo.Context) error {
	enabled, err := deps.Verifier.TwoFactorStatus(c.Request().Context(), currentClaims(c).UserID)
	if err != nil {
		return twoFactorError(c, err)
	}
	return ok(c, map[string]bool{"enabled": enabled})
}

func setupTwoFactor(c echo.Context) error {
	secret, url, err := deps.Verifier.SetupTwoFactor(c.Request().Context(), currentClaims(c).UserID)
	if err != nil {
		return twoFactorError(c, err)
	}
	return ok(c, map[string]string{"secret": secret, "otpauthUrl": url})
}

func enableTwoFactor(c echo.Context) error {
	var in twoFactorCode
	if valid, err := bindAndValidate(c, &in); !valid {
		return err
	}
	if err := deps.Verifier.EnableTwoFactor(c.Request().Context(), currentClaims(c).UserID, in.Code, c.RealIP()); err != nil {
		return twoFactorError(c, err)
	}
	return ok(c, map[string]bool{"enabled": true})
}

func disableTwoFactor(c echo.Context) error {
	var in twoFactorCode
	if valid, err := bindAndValidate(c, &in); !valid {
		return err
	}
	if err := deps.Verifier.DisableTwoFactor(c.Request().Context(), currentClaims(c).UserID, in.Code, c.RealIP()); err != nil {
		return twoFactorError(c, err)
	}
	return ok(c, map[string]bool{"enabled": false})
}
