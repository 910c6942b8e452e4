package realtime

import (
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serveConnection upgrades one request into a Connection with the given
// read window and ping interval and reports the first ReadFrame error.
func serveConnection(t *testing.T, readWait, pingEvery time.Duration) (string, <-chan error) {
	t.Helper()
	errs := make(chan error, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			errs <- err
			return
		}
		conn := NewConnection(1, 1, ws)
		conn.readWait = readWait
		conn.pingEvery = pingEvery
		conn.Start()
		defer conn.Close(websocket.CloseNormalClosure, "")
		for {
			if _, _, err := conn.ReadFrame(); err != nil {
				errs <- err
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http"), errs
}

func TestSilentPeerTimesOut(t *testing.T) {
	url, errs := serveConnection(t, 200*time.Millisecond, time.Hour)

	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	select {
	case err := <-errs:
		var netErr net.Error
		require.ErrorAs(t, err, &netErr)
		assert.True(t, netErr.Timeout())
	case <-time.After(3 * time.Second):
		t.Fatal("silent peer was never dropped")
	}
}

func TestPongsKeepPeerAlive(t *testing.T) {
	url, errs := serveConnection(t, 300*time.Millisecond, 50*time.Millisecond)

	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	// reading lets the default ping handler answer with pongs
	go func() {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case err := <-errs:
		t.Fatalf("peer answering pings was dropped: %v", err)
	case <-time.After(time.Second):
	}
	require.NoError(t, ws.Close())
}
