package controller

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// dialTestConn stands up a real websocket pair and wraps the client end
// in a wsConn; the server end drains inbound frames until disconnect.
func dialTestConn(t *testing.T) *wsConn {
	t.Helper()
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	c := newWSConn("alice", ws)
	c.Start()
	t.Cleanup(func() { c.Close(websocket.CloseNormalClosure, "test over") })
	return c
}

func TestWSConnSendAfterClose(t *testing.T) {
	c := dialTestConn(t)
	require.NoError(t, c.Send([]byte(`{"type":"ready"}`)))

	c.Close(websocket.CloseNormalClosure, "done")
	<-c.Done()
	require.Error(t, c.Send([]byte(`{"type":"ready"}`)))
}

func TestWSConnConcurrentSendAndClose(t *testing.T) {
	c := dialTestConn(t)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		// Hammer Send until the close below lands; must never panic.
		for {
			if err := c.Send([]byte(`{"type":"threads","threads":[]}`)); err != nil {
				return
			}
		}
	}()

	time.Sleep(time.Millisecond)
	c.Close(websocket.CloseGoingAway, "client gone")
	wg.Wait()
}
