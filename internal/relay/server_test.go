package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medhya/medhya/internal/config"
	"github.com/medhya/medhya/internal/platform/auth"
	"github.com/medhya/medhya/internal/platform/eventbus"
	"github.com/medhya/medhya/internal/platform/realtime"
)

const testSecret = "relay-test-secret-that-is-long-enough"

func testConfig() *config.Config {
	return &config.Config{
		Env:            "development",
		RelayPort:      "0",
		RelayJWTSecret: testSecret,
		EventSource:    config.SourceNone,
		RateLimitRPS:   100,
		RateLimitBurst: 100,
	}
}

func token(t *testing.T, sub string, roles ...string) string {
	t.Helper()
	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Roles: roles,
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http") + "/ws"
}

// collector records events received by a channel.
type collector struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (c *collector) add(ev realtime.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func (c *collector) first() realtime.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events[0]
}

func connect(t *testing.T, url, tok, event string) (*realtime.Channel, *collector) {
	t.Helper()
	ch := realtime.NewChannel(url)
	col := &collector{}
	ch.On(event, col.add)
	require.NoError(t, ch.Connect(context.Background(), tok))
	t.Cleanup(ch.Disconnect)
	return ch, col
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 10*time.Millisecond)
}

func publish(t *testing.T, srvURL, tok string, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srvURL+"/api/v1/events", bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealth(t *testing.T) {
	s := New(testConfig(), nil, zerolog.Nop())
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "none", body["source"])

	resp2, err := http.Get(srv.URL + "/health/db")
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestPublishEvent_Auth(t *testing.T) {
	s := New(testConfig(), nil, zerolog.Nop())
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	body := `{"event":"order:updated","recipients":["u-1"]}`
	assert.Equal(t, http.StatusUnauthorized, publish(t, srv.URL, "", body).StatusCode)
	assert.Equal(t, http.StatusForbidden, publish(t, srv.URL, token(t, "u-1", "User"), body).StatusCode)
	assert.Equal(t, http.StatusBadRequest, publish(t, srv.URL, token(t, "backend", ServiceRole), `{"recipients":["u-1"]}`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, publish(t, srv.URL, token(t, "backend", ServiceRole), `{not json`).StatusCode)
}

func TestPublishEvent_RoutesToRecipient(t *testing.T) {
	s := New(testConfig(), nil, zerolog.Nop())
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	_, alice := connect(t, wsURL(srv.URL), token(t, "alice", "User"), realtime.EventOrderUpdated)
	_, bob := connect(t, wsURL(srv.URL), token(t, "bob", "User"), realtime.EventOrderUpdated)
	waitFor(t, func() bool { return s.Hub().ClientCount() == 2 })

	resp := publish(t, srv.URL, token(t, "backend", ServiceRole),
		`{"event":"order:updated","recipients":["alice"],"data":{"id":"o-1","status":"shipped"}}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var out struct {
		Data struct {
			Delivered int `json:"delivered"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 1, out.Data.Delivered)

	waitFor(t, func() bool { return alice.len() == 1 })
	ev := alice.first()
	assert.NotEmpty(t, ev.ID)
	assert.Contains(t, string(ev.Data), `"shipped"`)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, bob.len())

	assert.Equal(t, int64(1), s.Metrics().EventCount("http", "order:updated"))
	assert.Equal(t, int64(1), s.Metrics().DeliveryCount("http"))

	mresp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer mresp.Body.Close()
	body, err := io.ReadAll(mresp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "relay_sessions 2")
	assert.Contains(t, string(body), `relay_events_total{origin="http",event="order:updated"} 1`)
}

type fakeSource struct {
	envs []eventbus.Envelope
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Run(ctx context.Context, sink eventbus.Sink) error {
	for _, env := range f.envs {
		if err := sink.Deliver(ctx, env); err != nil {
			return err
		}
	}
	<-ctx.Done()
	return nil
}

func TestRun_ServesAndStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	src := &fakeSource{envs: []eventbus.Envelope{{Event: realtime.EventOrderUpdated, Recipients: []string{"nobody"}}}}
	s := New(testConfig(), &Transport{Source: src}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, ln) }()

	base := "http://" + ln.Addr().String()
	waitFor(t, func() bool {
		resp, err := http.Get(base + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	})

	waitFor(t, func() bool { return s.Metrics().EventCount("bus", realtime.EventOrderUpdated) == 1 })

	ch, col := connect(t, wsURL(base), token(t, "c-1", "Counselor"), realtime.EventMessageNew)
	waitFor(t, func() bool { return s.Hub().ClientCount() == 1 })

	require.NoError(t, s.Hub().Deliver(ctx, eventbus.Envelope{Event: realtime.EventMessageNew, Roles: []string{"Counselor"}}))
	waitFor(t, func() bool { return col.len() == 1 })

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	select {
	case <-ch.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session was not closed on shutdown")
	}
	assert.Equal(t, 0, s.Hub().ClientCount())
}

func TestRun_SourceErrorStopsRelay(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	// An envelope without an event name makes Deliver fail, which the fake
	// source returns.
	src := &fakeSource{envs: []eventbus.Envelope{{}}}
	s := New(testConfig(), &Transport{Source: src}, zerolog.Nop())

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background(), ln) }()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after source failure")
	}
}
