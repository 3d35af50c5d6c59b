package ws

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/GriffinCanCode/widgetshell/internal/bridge"
	"github.com/GriffinCanCode/widgetshell/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) (*httptest.Server, *session.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m := session.NewManager(session.Options{})
	router := gin.New()
	router.GET("/bridge", NewHandler(m, nil, nil).HandleConnection)

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		srv.Close()
		_ = m.Close()
	})
	return srv, m
}

func dial(t *testing.T, srv *httptest.Server, subprotocol string) *websocket.Conn {
	t.Helper()
	dialer := websocket.Dialer{HandshakeTimeout: 2 * time.Second}
	if subprotocol != "" {
		dialer.Subprotocols = []string{subprotocol}
	}
	conn, _, err := dialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/bridge", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, codec bridge.Codec, msg bridge.Message) bridge.Message {
	t.Helper()
	data, err := codec.Marshal(msg)
	require.NoError(t, err)
	frame := websocket.TextMessage
	if codec.Binary() {
		frame = websocket.BinaryMessage
	}
	require.NoError(t, conn.WriteMessage(frame, data))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		kind, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, frame, kind)

		var got bridge.Message
		require.NoError(t, codec.Unmarshal(raw, &got))
		if got.ResponseID == msg.CallbackID {
			return got
		}
	}
}

func TestBridgeOverWebSocket(t *testing.T) {
	for _, subprotocol := range []string{"", bridge.SubprotocolJSON, bridge.SubprotocolCBOR} {
		t.Run("subprotocol="+subprotocol, func(t *testing.T) {
			srv, m := newServer(t)
			m.Current().SetUserData("queued")

			conn := dial(t, srv, subprotocol)
			assert.Equal(t, subprotocol, conn.Subprotocol())
			codec, err := bridge.CodecFor(conn.Subprotocol())
			require.NoError(t, err)

			reply := roundTrip(t, conn, codec, bridge.Message{
				HandlerName: session.HandleGetClaimedRewards,
				CallbackID:  "cb-1",
			})
			assert.Equal(t, "[]", reply.ResponseData)

			roundTrip(t, conn, codec, bridge.Message{
				HandlerName: session.HandleInitialized,
				CallbackID:  "cb-2",
			})
			assert.True(t, m.Current().Initialized())
		})
	}
}

func TestSecondConnectionReplacesSession(t *testing.T) {
	srv, m := newServer(t)

	dial(t, srv, "")
	require.Eventually(t, func() bool {
		return m.Current().Endpoint().Bound()
	}, 2*time.Second, 10*time.Millisecond)
	first := m.Current()

	dial(t, srv, "")
	require.Eventually(t, func() bool {
		return m.Current() != first
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, first.Endpoint().Closed())
}
