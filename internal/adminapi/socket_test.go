package adminapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/wadesk/config"
	"github.com/talkincode/wadesk/internal/domain"
)

func TestSocketRejectsBadTokenBeforeUpgrade(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/socket?token=garbage", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", decode(t, rec)["error"])
}

func TestSocketConnectJoinsOwnedInstances(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.db.Create(&domain.Instance{ID: 100, TenantID: tenantA, Name: "a"}).Error)
	require.NoError(t, env.db.Create(&domain.Instance{ID: 200, TenantID: tenantB, Name: "b"}).Error)

	srv := httptest.NewServer(env.e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/socket?instances=100,200&token=" + env.agent
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, raw, err := ws.ReadMessage()
	require.NoError(t, err)

	var frame struct {
		Event string `json:"event"`
		Data  struct {
			ConnID    string  `json:"connId"`
			Instances []int64 `json:"instances"`
		} `json:"data"`
	}
	require.NoError(t, webhookJSON.Unmarshal(raw, &frame))
	assert.Equal(t, "connected", frame.Event)
	assert.NotEmpty(t, frame.Data.ConnID)
	assert.Equal(t, []int64{100}, frame.Data.Instances)
}

func TestSocketHonoursAllowedOrigins(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.AppConfig) {
		cfg.Web.AllowOrigins = []string{"https://desk.example.com"}
	})
	srv := httptest.NewServer(env.e)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/socket?token=" + env.agent

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://evil.example.net"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	ws, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://desk.example.com"}})
	require.NoError(t, err)
	defer ws.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
}
