package network

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bnema/screeps-cli/internal/adapters/notify"
	"github.com/bnema/screeps-cli/internal/adapters/screepsapi"
	"github.com/bnema/screeps-cli/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

const (
	loginToken  = "login-token"
	socketToken = "socket-token"
	eventWait   = 5 * time.Second
)

type fakeServer struct {
	server   *httptest.Server
	upgrader websocket.Upgrader

	myInfoDelay  time.Duration
	refreshToken string
	rateLimited  atomic.Int32
	rejectSocket atomic.Bool
	signins      atomic.Int32
	myInfoCalls  atomic.Int32
	terrainCalls atomic.Int32
	inFlight     atomic.Int32
	maxInFlight  atomic.Int32
	myInfoTokens chan string
	authTokens   chan string
	pongs        chan string
	commands     chan string
	connections  chan *fakeSocket
}

type fakeSocket struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *fakeSocket) send(t *testing.T, messages ...string) {
	t.Helper()

	data, err := json.Marshal(messages)
	require.NoError(t, err)

	s.mu.Lock()
	defer s.mu.Unlock()
	require.NoError(t, s.conn.WriteMessage(websocket.TextMessage, append([]byte("a"), data...)))
}

func (s *fakeSocket) sendRaw(t *testing.T, frame string) {
	t.Helper()

	s.mu.Lock()
	defer s.mu.Unlock()
	require.NoError(t, s.conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func (s *fakeSocket) ping(t *testing.T, data string) {
	t.Helper()

	s.mu.Lock()
	defer s.mu.Unlock()
	require.NoError(t, s.conn.WriteControl(websocket.PingMessage, []byte(data), time.Now().Add(time.Second)))
}

func (s *fakeSocket) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.Close()
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()

	f := &fakeServer{
		myInfoTokens: make(chan string, 64),
		authTokens:   make(chan string, 8),
		pongs:        make(chan string, 8),
		commands:     make(chan string, 64),
		connections:  make(chan *fakeSocket, 8),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/signin", func(w http.ResponseWriter, _ *http.Request) {
		f.signins.Add(1)
		_, _ = w.Write([]byte(`{"ok":1,"token":"` + loginToken + `"}`))
	})
	mux.HandleFunc("GET /api/auth/me", f.handleMyInfo)
	mux.HandleFunc("GET /api/game/shards/info", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ok":1,"shards":[{"name":"shard0","rooms":10,"users":2,"tick":3000}]}`))
	})
	mux.HandleFunc("GET /api/game/room-terrain", func(w http.ResponseWriter, r *http.Request) {
		f.terrainCalls.Add(1)
		terrain := strings.Repeat("2", domain.RoomSize*domain.RoomSize)
		_, _ = w.Write([]byte(`{"ok":1,"terrain":[{"room":"` + r.URL.Query().Get("room") + `","terrain":"` + terrain + `"}]}`))
	})
	mux.HandleFunc("/socket/", f.handleSocket)

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeServer) handleMyInfo(w http.ResponseWriter, r *http.Request) {
	f.myInfoCalls.Add(1)
	current := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxInFlight.Load()
		if current <= seen || f.maxInFlight.CompareAndSwap(seen, current) {
			break
		}
	}

	token := r.Header.Get("X-Token")
	select {
	case f.myInfoTokens <- token:
	default:
	}

	if f.myInfoDelay > 0 {
		time.Sleep(f.myInfoDelay)
	}

	if token == "" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if f.rateLimited.Load() > 0 {
		f.rateLimited.Add(-1)
		w.WriteHeader(http.StatusTooManyRequests)
		return
	}

	if f.refreshToken != "" {
		w.Header().Set("X-Token", f.refreshToken)
	}
	_, _ = w.Write([]byte(`{"ok":1,"_id":"u1","username":"alice","cpu":20,"gcl":100}`))
}

func (f *fakeServer) handleSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	socket := &fakeSocket{conn: conn}
	defer socket.close()
	conn.SetPongHandler(func(data string) error {
		select {
		case f.pongs <- data:
		default:
		}
		return nil
	})

	socket.mu.Lock()
	_ = conn.WriteMessage(websocket.TextMessage, []byte("o"))
	socket.mu.Unlock()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var commands []string
		if err := json.Unmarshal(data, &commands); err != nil {
			return
		}

		for _, command := range commands {
			if token, ok := strings.CutPrefix(command, "auth "); ok {
				select {
				case f.authTokens <- token:
				default:
				}
				reply := `a["auth ok ` + socketToken + `"]`
				if f.rejectSocket.Load() {
					reply = `a["auth failed"]`
				}
				socket.mu.Lock()
				_ = conn.WriteMessage(websocket.TextMessage, []byte(`a["protocol 14"]`))
				_ = conn.WriteMessage(websocket.TextMessage, []byte(reply))
				socket.mu.Unlock()
				if !f.rejectSocket.Load() {
					f.connections <- socket
				}
				continue
			}
			f.commands <- command
		}
	}
}

func (f *fakeServer) settings(t *testing.T) domain.ConnectionSettings {
	t.Helper()

	settings, err := domain.NewConnectionSettings(f.server.URL+"/api/", "alice", "hunter2", "shard0")
	require.NoError(t, err)
	return settings
}

func newTestHandler(t *testing.T, f *fakeServer, cache *fakeTerrainCache, token string) *Handler {
	t.Helper()

	tokens := &screepsapi.TokenStore{}
	tokens.Set(token)

	cfg := Config{
		Settings:         f.settings(t),
		Notify:           notify.NewChannel(),
		HTTPClient:       f.server.Client(),
		Tokens:           tokens,
		RateLimitBackoff: 20 * time.Millisecond,
		HandshakeTimeout: 2 * time.Second,
	}
	if cache != nil {
		cfg.Cache = cache
	}

	h := NewHandler(cfg)
	t.Cleanup(func() { h.kill() })
	return h
}

func nextEvent(t *testing.T, h *Handler) domain.NetworkEvent {
	t.Helper()

	deadline := time.Now().Add(eventWait)
	for time.Now().Before(deadline) {
		if evt, ok := h.Poll(); ok {
			return evt
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for network event")
	return nil
}

func expectCommand(t *testing.T, f *fakeServer, want string) {
	t.Helper()

	select {
	case got := <-f.commands:
		require.Equal(t, want, got)
	case <-time.After(eventWait):
		t.Fatalf("timed out waiting for command %q", want)
	}
}

func expectNoCommand(t *testing.T, f *fakeServer) {
	t.Helper()

	select {
	case got := <-f.commands:
		t.Fatalf("unexpected command %q", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func nextSocket(t *testing.T, f *fakeServer) *fakeSocket {
	t.Helper()

	select {
	case socket := <-f.connections:
		return socket
	case <-time.After(eventWait):
		t.Fatal("timed out waiting for websocket connection")
		return nil
	}
}

type fakeTerrainCache struct {
	mu      sync.Mutex
	entries map[string]domain.TerrainGrid
	written chan domain.RoomName
	panics  atomic.Int32
}

func newFakeTerrainCache() *fakeTerrainCache {
	return &fakeTerrainCache{
		entries: map[string]domain.TerrainGrid{},
		written: make(chan domain.RoomName, 16),
	}
}

func (c *fakeTerrainCache) GetTerrain(_ context.Context, server string, shard string, room domain.RoomName) (domain.TerrainGrid, bool, error) {
	if c.panics.Load() > 0 {
		c.panics.Add(-1)
		panic("terrain cache exploded")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	grid, ok := c.entries[server+"|"+shard+"|"+room.String()]
	return grid, ok, nil
}

func (c *fakeTerrainCache) SetTerrain(_ context.Context, server string, shard string, room domain.RoomName, grid domain.TerrainGrid) error {
	c.mu.Lock()
	c.entries[server+"|"+shard+"|"+room.String()] = grid
	c.mu.Unlock()

	c.written <- room
	return nil
}
