package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medhya/medhya/internal/platform/auth"
)

type fakePlatform struct {
	mu      sync.Mutex
	marked  []string
	sent    []map[string]interface{}
	deleted []string
}

func signedToken(t *testing.T, sub, role string) string {
	t.Helper()
	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: role,
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("platform-secret"))
	require.NoError(t, err)
	return s
}

func startPlatform(t *testing.T, token string) (*fakePlatform, string) {
	t.Helper()
	fp := &fakePlatform{}
	e := echo.New()

	e.POST("/api/auth/login", func(c echo.Context) error {
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := c.Bind(&body); err != nil || body.Password != "s3cret" {
			return c.JSON(http.StatusUnauthorized, map[string]string{"message": "invalid credentials"})
		}
		return c.JSON(http.StatusOK, map[string]string{"token": token, "refreshToken": "r-1"})
	})
	e.GET("/api/medicine/orders", func(c echo.Context) error {
		return c.JSONBlob(http.StatusOK, []byte(`{"orders":[
			{"id":"o-1","status":"processing","deliveryAddress":"Hostel B","durationInDays":14},
			{"id":"o-2","status":"delivered","deliveryAddress":"Hostel C","durationInDays":7}
		]}`))
	})
	e.GET("/api/messages", func(c echo.Context) error {
		return c.JSONBlob(http.StatusOK, []byte(`[
			{"id":"m-1","sender":"c-9","senderRole":"Counselor","recipient":"u-1","recipientRole":"User","content":"How are you?","messageType":"text","isRead":false,"createdAt":"2026-03-01T10:00:00Z"},
			{"id":"m-2","sender":"u-1","senderRole":"User","recipient":"c-9","recipientRole":"Counselor","content":"Better","messageType":"text","isRead":true,"createdAt":"2026-03-01T10:05:00Z"}
		]`))
	})
	e.PATCH("/api/messages/:id/read", func(c echo.Context) error {
		fp.mu.Lock()
		fp.marked = append(fp.marked, c.Param("id"))
		fp.mu.Unlock()
		return c.NoContent(http.StatusNoContent)
	})
	e.POST("/api/messages", func(c echo.Context) error {
		var body map[string]interface{}
		if err := c.Bind(&body); err != nil {
			return err
		}
		fp.mu.Lock()
		fp.sent = append(fp.sent, body)
		fp.mu.Unlock()
		return c.JSON(http.StatusCreated, map[string]interface{}{"id": "m-3", "sender": "u-1", "content": body["content"]})
	})
	e.GET("/api/journal/today", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, map[string]string{"message": "no entry"})
	})
	e.DELETE("/api/journal/:id", func(c echo.Context) error {
		fp.mu.Lock()
		fp.deleted = append(fp.deleted, c.Param("id"))
		fp.mu.Unlock()
		return c.NoContent(http.StatusNoContent)
	})

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return fp, srv.URL
}

func useClient(t *testing.T, baseURL string) {
	t.Helper()
	t.Setenv("ENV", "test")
	t.Setenv("API_BASE_URL", baseURL)
	t.Setenv("CREDENTIALS_FILE", filepath.Join(t.TempDir(), "credentials.json"))
	t.Setenv("MEDHYA_PASSWORD", "")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := rootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestLoginWhoamiLogout(t *testing.T) {
	_, url := startPlatform(t, signedToken(t, "u-1", "user"))
	useClient(t, url)

	out, err := run(t, "login", "--email", "a@b.c", "--password", "s3cret")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as u-1 (User)")

	out, err = run(t, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "user: u-1")
	assert.Contains(t, out, "expires:")

	_, err = run(t, "logout")
	require.NoError(t, err)

	_, err = run(t, "whoami")
	assert.ErrorIs(t, err, auth.ErrNoCredentials)
}

func TestLogin_WrongPassword(t *testing.T) {
	_, url := startPlatform(t, signedToken(t, "u-1", "user"))
	useClient(t, url)

	_, err := run(t, "login", "--email", "a@b.c", "--password", "nope")
	assert.Error(t, err)
}

func TestLogin_PasswordFromEnv(t *testing.T) {
	_, url := startPlatform(t, signedToken(t, "c-9", "counselor"))
	useClient(t, url)
	t.Setenv("MEDHYA_PASSWORD", "s3cret")

	out, err := run(t, "login", "--email", "c@b.c")
	require.NoError(t, err)
	assert.Contains(t, out, "(Counselor)")
}

func TestOrdersList_Tab(t *testing.T) {
	_, url := startPlatform(t, signedToken(t, "u-1", "user"))
	useClient(t, url)
	_, err := run(t, "login", "--email", "a@b.c", "--password", "s3cret")
	require.NoError(t, err)

	out, err := run(t, "orders", "list", "--tab", "active")
	require.NoError(t, err)
	assert.Contains(t, out, "o-1")
	assert.NotContains(t, out, "o-2")

	_, err = run(t, "orders", "list", "--tab", "archived")
	assert.Error(t, err)
}

func TestThreadOpen_MarksRead(t *testing.T) {
	fp, url := startPlatform(t, signedToken(t, "u-1", "user"))
	useClient(t, url)
	_, err := run(t, "login", "--email", "a@b.c", "--password", "s3cret")
	require.NoError(t, err)

	out, err := run(t, "threads")
	require.NoError(t, err)
	assert.Contains(t, out, "c-9")

	out, err = run(t, "thread", "open", "c-9")
	require.NoError(t, err)
	assert.Contains(t, out, "them: How are you?")
	assert.Contains(t, out, "you: Better")
	assert.Contains(t, out, "(1 marked read)")

	fp.mu.Lock()
	assert.Equal(t, []string{"m-1"}, fp.marked)
	fp.mu.Unlock()

	_, err = run(t, "thread", "open", "nobody")
	assert.Error(t, err)
}

func TestSend_PicksCounselorRecipient(t *testing.T) {
	fp, url := startPlatform(t, signedToken(t, "u-1", "user"))
	useClient(t, url)
	_, err := run(t, "login", "--email", "a@b.c", "--password", "s3cret")
	require.NoError(t, err)

	out, err := run(t, "send", "c-9", "see", "you", "tomorrow")
	require.NoError(t, err)
	assert.Contains(t, out, "Sent m-3")

	fp.mu.Lock()
	defer fp.mu.Unlock()
	require.Len(t, fp.sent, 1)
	assert.Equal(t, "see you tomorrow", fp.sent[0]["content"])
	assert.Equal(t, "Counselor", fp.sent[0]["recipientRole"])
}

func TestJournal(t *testing.T) {
	fp, url := startPlatform(t, signedToken(t, "u-1", "user"))
	useClient(t, url)
	_, err := run(t, "login", "--email", "a@b.c", "--password", "s3cret")
	require.NoError(t, err)

	out, err := run(t, "journal", "today")
	require.NoError(t, err)
	assert.Contains(t, out, "No entry today.")

	_, err = run(t, "journal", "delete", "j-4")
	require.NoError(t, err)
	fp.mu.Lock()
	assert.Equal(t, []string{"j-4"}, fp.deleted)
	fp.mu.Unlock()
}

func TestRelayPublish_Validation(t *testing.T) {
	t.Setenv("EVENT_SOURCE", "none")

	_, err := run(t, "relay", "publish", "--to", "u-1")
	assert.Error(t, err, "missing event")

	_, err = run(t, "relay", "publish", "--event", "order:updated", "--to", "u-1", "--data", "{not json")
	assert.Error(t, err)

	// a valid envelope still needs a bus to publish to
	_, err = run(t, "relay", "publish", "--event", "order:updated", "--to", "u-1")
	assert.Error(t, err)
}

func TestRelayServe_RequiresSecret(t *testing.T) {
	t.Setenv("RELAY_JWT_SECRET", "")
	_, err := run(t, "relay", "serve")
	assert.Error(t, err)
}
