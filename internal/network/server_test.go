package network

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/arena-server/internal/arena"
	"github.com/annel0/arena-server/internal/auth"
	"github.com/annel0/arena-server/internal/protocol"
)

// testClient — минимальный клиент протокола для тестов
type testClient struct {
	conn  net.Conn
	codec *protocol.Codec
}

func dialTestServer(t *testing.T, addr string) *testClient {
	t.Helper()

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)

	codec, err := protocol.NewCodec()
	require.NoError(t, err)

	c := &testClient{conn: conn, codec: codec}
	t.Cleanup(func() {
		c.conn.Close()
		c.codec.Close()
	})
	return c
}

func (c *testClient) send(t *testing.T, msgType protocol.MessageType, v interface{}) {
	t.Helper()
	require.NoError(t, c.codec.WriteMessage(c.conn, msgType, v))
}

func (c *testClient) sendRaw(t *testing.T, msgType protocol.MessageType, payload []byte) {
	t.Helper()
	require.NoError(t, c.codec.WriteFrame(c.conn, msgType, payload))
}

func (c *testClient) read(t *testing.T) protocol.Frame {
	t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	frame, err := c.codec.ReadFrame(c.conn)
	require.NoError(t, err)
	return frame
}

func startTestServer(t *testing.T) (*GameServer, string) {
	t.Helper()

	world := arena.NewWorld(arena.Options{
		TickInterval: 16 * time.Millisecond,
		Bounds:       arena.Bounds{Width: 2000, Height: 2000},
	})

	repo, err := auth.NewMemoryUserRepo()
	require.NoError(t, err)
	gameAuth := auth.NewGameAuthenticator(repo, []byte("0123456789abcdef0123456789abcdef"),
		&protocol.ServerInfo{Version: "test", TickRate: 60})

	gs := NewGameServer(world, gameAuth)
	tcpServer, err := NewTCPServer("127.0.0.1:0", gs)
	require.NoError(t, err)
	tcpServer.Start()

	t.Cleanup(func() {
		tcpServer.Stop()
		gs.Stop()
	})

	return gs, tcpServer.Addr().String()
}

func authenticate(t *testing.T, c *testClient) protocol.AuthResponse {
	t.Helper()

	c.send(t, protocol.MsgAuth, protocol.AuthRequest{Username: "test", Password: "test"})
	frame := c.read(t)
	require.Equal(t, protocol.MsgAuthResponse, frame.Type)

	var resp protocol.AuthResponse
	require.NoError(t, frame.Decode(&resp))
	return resp
}

func TestGameServer_Handshake(t *testing.T) {
	_, addr := startTestServer(t)
	c := dialTestServer(t, addr)

	resp := authenticate(t, c)

	assert.True(t, resp.Success, "валидные учетные данные должны проходить")
	assert.NotZero(t, resp.PlayerID)
	assert.NotEmpty(t, resp.JwtToken)
}

func TestGameServer_RejectsWrongPassword(t *testing.T) {
	_, addr := startTestServer(t)
	c := dialTestServer(t, addr)

	c.send(t, protocol.MsgAuth, protocol.AuthRequest{Username: "test", Password: "wrong"})
	frame := c.read(t)
	require.Equal(t, protocol.MsgAuthResponse, frame.Type)

	var resp protocol.AuthResponse
	require.NoError(t, frame.Decode(&resp))
	assert.False(t, resp.Success)
}

func TestGameServer_FirstMessageMustBeAuth(t *testing.T) {
	_, addr := startTestServer(t)
	c := dialTestServer(t, addr)

	c.send(t, protocol.MsgMove, protocol.MoveInput{DX: 1})
	frame := c.read(t)

	require.Equal(t, protocol.MsgError, frame.Type)
	var msg protocol.ErrorMessage
	require.NoError(t, frame.Decode(&msg))
	assert.Equal(t, "auth_required", msg.Code)
}

func TestGameServer_RejectsNonFiniteInput(t *testing.T) {
	_, addr := startTestServer(t)
	c := dialTestServer(t, addr)
	authenticate(t, c)

	// Inf не проходит через json.Unmarshal в float64 — intent отклоняется
	c.sendRaw(t, protocol.MsgMove, []byte(`{"dx":1e999,"dy":0}`))
	frame := c.read(t)

	require.Equal(t, protocol.MsgError, frame.Type)
	var msg protocol.ErrorMessage
	require.NoError(t, frame.Decode(&msg))
	assert.Equal(t, "invalid_input", msg.Code)
}

func TestGameServer_MoveIntentReachesWorld(t *testing.T) {
	gs, addr := startTestServer(t)
	c := dialTestServer(t, addr)
	resp := authenticate(t, c)

	c.send(t, protocol.MsgMove, protocol.MoveInput{DX: 1, DY: 0})
	c.send(t, protocol.MsgFire, protocol.FireInput{Direction: 0})

	// Intent'ы применяются на границе тика
	deadline := time.Now().Add(2 * time.Second)
	var joined bool
	for time.Now().Before(deadline) {
		gs.world.Step(time.Now())
		if _, ok := gs.world.Registry().Get(arena.PlayerID(resp.PlayerID)); ok {
			joined = true
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.True(t, joined, "intent входа должен дойти до мира")
}

func TestGameServer_SnapshotBroadcast(t *testing.T) {
	gs, addr := startTestServer(t)

	broadcaster, err := NewSnapshotBroadcaster(gs)
	require.NoError(t, err)
	defer broadcaster.Close()

	c := dialTestServer(t, addr)
	authenticate(t, c)

	snap := &arena.Snapshot{
		Tick:    7,
		TimeMs:  123456,
		Players: []arena.PlayerState{{ID: 1, Name: "test", X: 100, Y: 200, HP: 100}},
	}
	broadcaster.BroadcastSnapshot(snap)

	frame := c.read(t)
	require.Equal(t, protocol.MsgSnapshot, frame.Type)

	var got arena.Snapshot
	require.NoError(t, frame.Decode(&got))
	assert.Equal(t, uint64(7), got.Tick)
	require.Len(t, got.Players, 1)
	assert.Equal(t, "test", got.Players[0].Name)
}

func TestGameServer_PingPong(t *testing.T) {
	_, addr := startTestServer(t)
	c := dialTestServer(t, addr)
	authenticate(t, c)

	c.send(t, protocol.MsgPing, protocol.PingMessage{ClientTime: 42})
	frame := c.read(t)

	require.Equal(t, protocol.MsgPong, frame.Type)
	var pong protocol.PingMessage
	require.NoError(t, frame.Decode(&pong))
	assert.Equal(t, int64(42), pong.ClientTime)
}
