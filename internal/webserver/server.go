package webserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"
	"github.com/talkincode/wadesk/internal/app"
	"github.com/talkincode/wadesk/internal/auth"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	_ "github.com/talkincode/wadesk/docs"
)

const (
	// AppContextKey holds the app.AppContext in every request context
	AppContextKey = "appctx"
	// UserContextKey holds the verified *jwt.Token
	UserContextKey = "user"

	apiPrefix  = "/api"
	bodyLimit  = "4M"
	loginPath  = apiPrefix + "/login"
	publicPath = apiPrefix + "/public/"
)

type AdminServer struct {
	root   *echo.Echo
	api    *echo.Group
	appCtx app.AppContext
}

var (
	server   *AdminServer
	serverMu sync.RWMutex
)

// publicAPI lists /api routes reachable without a session token
func publicAPI(path string) bool {
	return path == loginPath ||
		path == apiPrefix+"/health" ||
		strings.HasPrefix(path, publicPath)
}

// Init builds the echo instance and makes it the package server. Routes are
// added afterwards through the ApiX and RootX helpers.
func Init(appCtx app.AppContext) *AdminServer {
	cfg := appCtx.Config()
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = JSONSerializer{}
	e.Validator = NewValidator()
	e.HTTPErrorHandler = httpErrorHandler

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			zap.L().Error("request panic", zap.String("path", c.Request().URL.Path), zap.Error(err), zap.ByteString("stack", stack))
			return err
		},
	}))
	e.Use(requestLogger())
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		HSTSMaxAge:         31536000,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
	}))
	allowOrigins := cfg.Web.AllowOrigins
	if len(allowOrigins) == 0 {
		allowOrigins = []string{"*"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(middleware.BodyLimit(bodyLimit))
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(AppContextKey, appCtx)
			return next(c)
		}
	})

	e.Static("/uploads", cfg.GetUploadDir())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	api := e.Group(apiPrefix)
	api.Use(loginRateLimiter(cfg.Web.LoginRateLimit))
	api.Use(echojwt.WithConfig(echojwt.Config{
		SigningKey:    []byte(cfg.Web.Secret),
		SigningMethod: "HS256",
		ContextKey:    UserContextKey,
		TokenLookup:   "header:Authorization:Bearer ",
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(auth.Claims)
		},
		Skipper: func(c echo.Context) bool {
			return publicAPI(c.Path())
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusUnauthorized, ErrorBody{Error: "UNAUTHORIZED", Message: "invalid or expired token"})
		},
	}))

	s := &AdminServer{root: e, api: api, appCtx: appCtx}
	serverMu.Lock()
	server = s
	serverMu.Unlock()
	return s
}

func (s *AdminServer) Echo() *echo.Echo {
	return s.root
}

// Start blocks serving on the configured address
func (s *AdminServer) Start() error {
	cfg := s.appCtx.Config()
	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	zap.S().Infof("admin server listening on %s", addr)
	err := s.root.Start(addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *AdminServer) Shutdown(ctx context.Context) error {
	return s.root.Shutdown(ctx)
}

// loginRateLimiter throttles the login route per client IP
func loginRateLimiter(perSecond float64) echo.MiddlewareFunc {
	if perSecond <= 0 {
		perSecond = 1
	}
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: func(c echo.Context) bool {
			return c.Path() != loginPath
		},
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(perSecond),
			Burst:     5,
			ExpiresIn: 3 * time.Minute,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			zap.L().Warn("login rate limited", zap.String("ip", identifier))
			return c.JSON(http.StatusTooManyRequests, ErrorBody{Error: "RATE_LIMITED", Message: "too many login attempts"})
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusForbidden, ErrorBody{Error: "FORBIDDEN", Message: "unable to identify client"})
		},
	})
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogUserAgent: false,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("ip", v.RemoteIP),
			}
			if v.Error != nil {
				zap.L().Warn("request", append(fields, zap.Error(v.Error))...)
				return nil
			}
			zap.L().Debug("request", fields...)
			return nil
		},
	})
}

func current() *AdminServer {
	serverMu.RLock()
	defer serverMu.RUnlock()
	if server == nil {
		panic("webserver not initialized")
	}
	return server
}

func ApiGET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	current().api.GET(path, h, m...)
}

func ApiPOST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	current().api.POST(path, h, m...)
}

func ApiPUT(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	current().api.PUT(path, h, m...)
}

func ApiDELETE(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	current().api.DELETE(path, h, m...)
}

// RootGET registers outside /api, without the session token gate
func RootGET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	current().root.GET(path, h, m...)
}

func RootPOST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	current().root.POST(path, h, m...)
}
