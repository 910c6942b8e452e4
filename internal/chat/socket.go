package chat

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/talkincode/wadesk/internal/auth"
	"github.com/talkincode/wadesk/internal/realtime"
	"github.com/talkincode/wadesk/pkg/common"
	"go.uber.org/zap"
)

const maxFrameSize = 64 << 10

// originChecker accepts the origins the CORS middleware accepts: everything
// when the list is empty or holds "*", otherwise exact matches. Requests
// without an Origin header are not from a browser and pass.
func originChecker(allowOrigins []string) func(r *http.Request) bool {
	allowed := make(map[string]bool, len(allowOrigins))
	for _, o := range allowOrigins {
		o = strings.ToLower(strings.TrimRight(strings.TrimSpace(o), "/"))
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		if o != "" {
			allowed[o] = true
		}
	}
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return allowed[strings.ToLower(strings.TrimRight(origin, "/"))]
	}
}

// SocketHandler serves GET /socket?token=...&instances=1,2. The token is
// verified before the upgrade; a bad token gets a plain 401 and a foreign
// browser origin a 403.
func SocketHandler(secret string, allowOrigins []string, svc *Service) echo.HandlerFunc {
	checkOrigin := originChecker(allowOrigins)
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     checkOrigin,
	}
	return func(c echo.Context) error {
		token := strings.TrimSpace(c.QueryParam("token"))
		if token == "" {
			token = strings.TrimPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
		}
		claims, err := auth.ParseToken(secret, token)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, map[string]interface{}{
				"error":   "UNAUTHORIZED",
				"message": "invalid or expired token",
			})
		}
		if !checkOrigin(c.Request()) {
			zap.L().Warn("socket origin rejected",
				zap.String("origin", c.Request().Header.Get("Origin")),
				zap.Int64("user_id", claims.UserID))
			return c.JSON(http.StatusForbidden, map[string]interface{}{
				"error":   "FORBIDDEN_ORIGIN",
				"message": "origin not allowed",
			})
		}

		ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			zap.L().Warn("socket upgrade failed", zap.Error(err))
			return nil
		}
		ws.SetReadLimit(maxFrameSize)

		conn := realtime.NewConnection(claims.UserID, claims.TenantID, ws)
		conn.Start()
		joined, err := svc.Connect(c.Request().Context(), conn, claims, common.SplitIDs(c.QueryParam("instances")))
		if err != nil {
			zap.L().Error("socket connect failed", zap.Error(err))
			conn.Close(websocket.CloseInternalServerErr, "connect failed")
			return nil
		}
		if payload, err := svc.encode(EventConnected, map[string]interface{}{
			"connId":    conn.ID(),
			"instances": joined,
		}); err == nil {
			_ = conn.Send(payload)
		}

		sess := Session{ConnID: conn.ID(), Claims: claims}
		readLoop(svc, conn, sess)
		return nil
	}
}

func readLoop(svc *Service, conn *realtime.Connection, sess Session) {
	defer func() {
		svc.Disconnect(conn, sess.Claims)
		conn.Close(websocket.CloseNormalClosure, "")
	}()
	for {
		msgType, raw, err := conn.ReadFrame()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				zap.L().Debug("socket read ended", zap.String("conn_id", sess.ConnID), zap.Error(err))
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		svc.HandleFrame(sess, raw)
	}
}
