package adminapi

import (
	"github.com/labstack/echo/v4"
	"github.com/talkincode/wadesk/internal/chat"
	"github.com/talkincode/wadesk/internal/webserver"
)

// The socket authenticates with its own token check before upgrading, so it
// is mounted outside the /api token gate.
func registerSocketRoutes() {
	if deps.Chat == nil {
		return
	}
	webserver.RootGET("/socket", func(c echo.Context) error {
		web := GetAppContext(c).Config().Web
		return chat.SocketHandler(web.Secret, web.AllowOrigins, deps.Chat)(c)
	})
}
