package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lawnchairsociety/statcalc/internal/calc"
	"github.com/lawnchairsociety/statcalc/internal/config"
	"github.com/lawnchairsociety/statcalc/internal/stats"
	"github.com/lawnchairsociety/statcalc/internal/store"
	"github.com/lawnchairsociety/statcalc/internal/text"
)

func testServerConfig() config.ServerConfig {
	return config.DefaultConfig().Server
}

func startServer(t *testing.T, cfg config.ServerConfig) (*Server, *httptest.Server) {
	t.Helper()
	st, err := store.OpenJSON(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)

	srv := NewServer(cfg, calc.NewService(st, nil, false), text.New(text.English))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readResponse(t *testing.T, conn *websocket.Conn) Response {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var resp Response
	require.NoError(t, conn.ReadJSON(&resp))
	return resp
}

func roundTrip(t *testing.T, conn *websocket.Conn, req string) Response {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(req)))
	return readResponse(t, conn)
}

func TestResolveOverWebSocket(t *testing.T) {
	_, ts := startServer(t, testServerConfig())
	conn := dial(t, ts)

	resp := roundTrip(t, conn, `{"id":"1","op":"save_character","character":"Alice","values":[{"name":"strength","value":250}]}`)
	require.True(t, resp.OK, resp.Error)
	assert.Equal(t, "1", resp.ID)
	assert.Equal(t, "Character Alice saved", resp.Message)
	require.NotNil(t, resp.Record)
	assert.Equal(t, []StatValue{{Name: "strength", Value: "250"}}, resp.Record.Stats)

	resp = roundTrip(t, conn, `{"id":"2","op":"resolve","character":"Alice",
		"item_stats":{"physical_attack":"100"},"stats":["physical_attack","strength","hp"]}`)
	require.True(t, resp.OK, resp.Error)
	assert.Equal(t, OpResolve, resp.Op)
	assert.Equal(t, []ResultRow{
		{Key: "physical_attack", Label: "Physical Attack Power", Value: "200", Available: true},
		{Key: "strength", Label: "Strength", Value: "250", Available: true},
		{Key: "hp", Label: "HP", Value: "0", Available: true},
	}, resp.Results)
}

func TestResolveUnavailable(t *testing.T) {
	_, ts := startServer(t, testServerConfig())
	conn := dial(t, ts)

	resp := roundTrip(t, conn, `{"op":"resolve","stats":["attack_speed"]}`)
	require.True(t, resp.OK, resp.Error)
	require.Len(t, resp.Results, 1)
	assert.False(t, resp.Results[0].Available)
	assert.Equal(t, stats.Unavailable, resp.Results[0].Value)
}

func TestFormulas(t *testing.T) {
	_, ts := startServer(t, testServerConfig())
	conn := dial(t, ts)

	tests := []struct {
		req   string
		ok    bool
		value string
		err   string
	}{
		{`{"op":"crit","base":100,"bonus":"20"}`, true, "170.00", ""},
		{`{"op":"diff","damage1":"120","damage2":"100"}`, true, "20.00%", ""},
		{`{"op":"diff","damage1":"0","damage2":"0"}`, true, "N/A", ""},
		{`{"op":"diff","damage1":"50","damage2":"0"}`, true, "∞", ""},
		{`{"op":"crit","base":"abc","bonus":"20"}`, false, "", "Invalid input"},
	}

	for _, tt := range tests {
		resp := roundTrip(t, conn, tt.req)
		assert.Equal(t, tt.ok, resp.OK, tt.req)
		assert.Equal(t, tt.value, resp.Value, tt.req)
		assert.Equal(t, tt.err, resp.Error, tt.req)
	}
}

func TestSaveItemAndSearch(t *testing.T) {
	_, ts := startServer(t, testServerConfig())
	conn := dial(t, ts)

	resp := roundTrip(t, conn, `{"op":"save_item","item":"1001","class":"Warrior","values":[{"name":"hp","value":"10"},{"name":"mp","value":""}]}`)
	require.True(t, resp.OK, resp.Error)
	assert.Equal(t, "Item 1001 saved", resp.Message)
	assert.Equal(t, &RecordView{ID: "1001", Class: "Warrior", Stats: []StatValue{{Name: "hp", Value: "10"}}}, resp.Record)

	resp = roundTrip(t, conn, `{"op":"item","item":"1001"}`)
	require.True(t, resp.OK, resp.Error)
	assert.Equal(t, "Warrior", resp.Record.Class)

	resp = roundTrip(t, conn, `{"op":"search","stats":["HP"],"class":"Warrior"}`)
	require.True(t, resp.OK, resp.Error)
	assert.Equal(t, []ItemRow{{ID: "1001", Class: "Warrior"}}, resp.Items)

	resp = roundTrip(t, conn, `{"op":"search","stats":["hp"],"class":"Mage"}`)
	require.True(t, resp.OK, resp.Error)
	assert.Empty(t, resp.Items)
	assert.Equal(t, "No matching items", resp.Message)
}

func TestSaveThrottle(t *testing.T) {
	cfg := testServerConfig()
	cfg.SaveLimit.MaxSaves = 2
	cfg.SaveLimit.Window = time.Minute
	_, ts := startServer(t, cfg)
	conn := dial(t, ts)

	save := `{"op":"save_character","character":"Alice","values":[{"name":"hp","value":"1"}]}`
	for i := 0; i < 2; i++ {
		resp := roundTrip(t, conn, save)
		require.True(t, resp.OK, resp.Error)
	}

	resp := roundTrip(t, conn, `{"id":"3","op":"save_item","item":"1","values":[{"name":"hp","value":"1"}]}`)
	assert.False(t, resp.OK)
	assert.Equal(t, "3", resp.ID)
	assert.Regexp(t, `^Saving too often, try again in \d+ seconds$`, resp.Error)

	// Reads are not throttled.
	resp = roundTrip(t, conn, `{"op":"character","character":"Alice"}`)
	assert.True(t, resp.OK, resp.Error)

	// Each connection has its own window.
	other := dial(t, ts)
	resp = roundTrip(t, other, save)
	assert.True(t, resp.OK, resp.Error)
}

func TestErrors(t *testing.T) {
	_, ts := startServer(t, testServerConfig())
	conn := dial(t, ts)

	tests := []struct {
		req  string
		want string
	}{
		{`{"op":"item","item":"404"}`, "Item 404 not found"},
		{`{"op":"character","character":"Nobody"}`, "Character Nobody not found"},
		{`{"op":"resolve","character":"Nobody"}`, "Character Nobody not found"},
		{`{"op":"save_item","values":[]}`, "Please enter an item index"},
		{`{"op":"save_character"}`, "Please enter a character name"},
		{`{"op":"dance"}`, `unknown op "dance"`},
	}

	for _, tt := range tests {
		resp := roundTrip(t, conn, tt.req)
		assert.False(t, resp.OK, tt.req)
		assert.Equal(t, tt.want, resp.Error, tt.req)
	}

	resp := roundTrip(t, conn, `{not json`)
	assert.False(t, resp.OK)
	assert.Contains(t, resp.Error, "malformed request")
}

func TestStrictUnknownStat(t *testing.T) {
	st, err := store.OpenJSON(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	srv := NewServer(testServerConfig(), calc.NewService(st, nil, true), text.New(text.English))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	conn := dial(t, ts)

	resp := roundTrip(t, conn, `{"op":"resolve","stats":["luck"]}`)
	assert.False(t, resp.OK)
	assert.Equal(t, "Unknown stat luck", resp.Error)
}

func TestCatalog(t *testing.T) {
	_, ts := startServer(t, testServerConfig())
	conn := dial(t, ts)

	resp := roundTrip(t, conn, `{"op":"catalog"}`)
	require.True(t, resp.OK, resp.Error)
	require.Len(t, resp.Catalog, stats.DefaultCatalog().Len())
	assert.Equal(t, CatalogRow{Key: "hp", Label: "HP", LabelZH: "生命值", LabelEN: "HP", Category: "additive"}, resp.Catalog[0])

	var derived *CatalogRow
	for i := range resp.Catalog {
		if resp.Catalog[i].Key == "physical_attack" {
			derived = &resp.Catalog[i]
		}
	}
	require.NotNil(t, derived)
	assert.Equal(t, "derived", derived.Category)
	assert.Equal(t, "strength", derived.Source)
}

func TestBlankMessagesIgnored(t *testing.T) {
	_, ts := startServer(t, testServerConfig())
	conn := dial(t, ts)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("   ")))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("\n")))
	resp := roundTrip(t, conn, `{"id":"after-blank","op":"catalog"}`)
	assert.Equal(t, "after-blank", resp.ID)
}

func TestNotifyReload(t *testing.T) {
	srv, ts := startServer(t, testServerConfig())
	conn := dial(t, ts)

	// A reply means the connection is registered.
	roundTrip(t, conn, `{"op":"catalog"}`)
	assert.Equal(t, 1, srv.ClientCount())

	srv.NotifyReload()
	resp := readResponse(t, conn)
	assert.Equal(t, OpReload, resp.Op)
	assert.True(t, resp.OK)
}

func TestConnectionLimit(t *testing.T) {
	cfg := testServerConfig()
	cfg.Connections.MaxTotal = 1
	_, ts := startServer(t, cfg)

	dial(t, ts)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestOriginRejected(t *testing.T) {
	cfg := testServerConfig()
	cfg.WebSocket.AllowedOrigins = []string{"https://good.example"}
	_, ts := startServer(t, cfg)

	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header = http.Header{"Origin": []string{"https://good.example"}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), header)
	require.NoError(t, err)
	conn.Close()
}

func TestMessageSizeLimit(t *testing.T) {
	cfg := testServerConfig()
	cfg.WebSocket.MaxMessageSize = 64
	_, ts := startServer(t, cfg)
	conn := dial(t, ts)

	big := `{"op":"catalog","id":"` + strings.Repeat("x", 128) + `"}`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(big)))

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	_, ts := startServer(t, testServerConfig())

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(string(body), "ok clients=0"))
}

func TestServeStopsOnCancel(t *testing.T) {
	st, err := store.OpenJSON(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	srv := NewServer(testServerConfig(), calc.NewService(st, nil, false), text.New(text.English))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	url := "ws://" + ln.Addr().String() + "/ws"
	var conn *websocket.Conn
	require.Eventually(t, func() bool {
		conn, _, err = websocket.DefaultDialer.Dial(url, nil)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"op":"catalog"}`)))
	readResponse(t, conn)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err, "client connection should be closed on shutdown")
}

func TestConnectionAfterShutdownIsClosed(t *testing.T) {
	srv, ts := startServer(t, testServerConfig())

	srv.closeClients()
	assert.False(t, srv.register(&Client{id: "late"}))

	conn := dial(t, ts)
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "connection upgraded during shutdown should be closed")
	assert.Equal(t, 0, srv.ClientCount())
	assert.Eventually(t, func() bool {
		total, _ := srv.connLimiter.Stats()
		return total == 0
	}, 5*time.Second, 10*time.Millisecond)
}
