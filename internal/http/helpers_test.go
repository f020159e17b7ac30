package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"sweetshop/internal/config"
	"sweetshop/internal/http/handlers"
	"sweetshop/internal/repos"
)

const (
	testSecret    = "test-secret"
	adminEmail    = "admin@sweetshop.test"
	adminPassword = "Passw0rd!"
)

func testConfig() config.Config {
	return config.Config{JWTSecret: testSecret, TokenTTL: time.Hour}
}

// newTestApp wires the real routes over an in-memory database with a
// seeded admin.
func newTestApp(t *testing.T, opts handlers.AppOptions) *fiber.App {
	t.Helper()
	db, err := repos.OpenDB("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := repos.SeedAdmin(context.Background(), db, "Admin", adminEmail, adminPassword); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	if opts.RateMax == 0 {
		opts.RateMax = 10000
	}
	if opts.AuthRateMax == 0 {
		opts.AuthRateMax = 1000
	}
	return handlers.NewApp(handlers.NewDeps(db, testConfig()), opts)
}

func do(t *testing.T, app *fiber.App, method, path, token string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	raw, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode %T from %q: %v", v, raw, err)
	}
	return v
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected %d, got %d body=%s", want, resp.StatusCode, body)
	}
}

type sessionBody struct {
	Token string `json:"token"`
	User  struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Role  string `json:"role"`
	} `json:"user"`
}

type sweetBody struct {
	ID        string  `json:"id"`
	LegacyID  string  `json:"_id"`
	Name      string  `json:"name"`
	Category  string  `json:"category"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	CreatedAt string  `json:"createdAt"`
}

type messageBody struct {
	Message string `json:"message"`
}

func adminToken(t *testing.T, app *fiber.App) string {
	t.Helper()
	resp := do(t, app, "POST", "/api/auth/login", "", map[string]string{"email": adminEmail, "password": adminPassword})
	expectStatus(t, resp, http.StatusOK)
	return decode[sessionBody](t, resp).Token
}

func userToken(t *testing.T, app *fiber.App, email string) string {
	t.Helper()
	resp := do(t, app, "POST", "/api/auth/register", "", map[string]string{"name": "Shopper", "email": email, "password": "secret1"})
	expectStatus(t, resp, http.StatusCreated)
	return decode[sessionBody](t, resp).Token
}

func createSweet(t *testing.T, app *fiber.App, token string, body map[string]any) sweetBody {
	t.Helper()
	resp := do(t, app, "POST", "/api/sweets", token, body)
	expectStatus(t, resp, http.StatusCreated)
	return decode[sweetBody](t, resp)
}

type logEntry struct {
	Level  string         `json:"level"`
	Action string         `json:"action"`
	UserID string         `json:"user_id"`
	Role   string         `json:"role"`
	Status int            `json:"status"`
	Err    string         `json:"err"`
	Fields map[string]any `json:"fields"`
}

type lockedBuf struct {
	b  *bytes.Buffer
	mu *sync.Mutex
}

func (l *lockedBuf) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Write(p)
}

func captureLogs(t *testing.T, fn func()) []logEntry {
	t.Helper()
	var buf bytes.Buffer
	var mu sync.Mutex
	oldW := log.Writer()
	oldFlags := log.Flags()
	log.SetOutput(&lockedBuf{b: &buf, mu: &mu})
	log.SetFlags(0)
	defer func() {
		log.SetOutput(oldW)
		log.SetFlags(oldFlags)
	}()

	fn()

	var entries []logEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var e logEntry
		if err := json.Unmarshal([]byte(line), &e); err == nil {
			entries = append(entries, e)
		}
	}
	return entries
}

func findAction(entries []logEntry, action string) (logEntry, bool) {
	for _, e := range entries {
		if e.Action == action {
			return e, true
		}
	}
	return logEntry{}, false
}

func handlersOpts() handlers.AppOptions { return handlers.AppOptions{} }

func newRequest(method, path string, body io.Reader) *http.Request {
	return httptest.NewRequest(method, path, body)
}

func authed(method, path, token string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}
