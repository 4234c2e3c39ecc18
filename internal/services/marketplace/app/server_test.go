package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	platformgrpc "github.com/louisbranch/rebazzar/internal/platform/grpc"
	"github.com/louisbranch/rebazzar/internal/services/marketplace/seed"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		HTTPAddr:      "127.0.0.1:0",
		Storage:       StorageMemory,
		Seed:          true,
		SessionKey:    bytes.Repeat([]byte("s"), 32),
		SessionIssuer: "rebazzar-test",
		SessionTTL:    time.Hour,
		BcryptCost:    bcrypt.MinCost,
		Locale:        "en",
	}
}

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	srv, err := New(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, client *http.Client, url, bearer string, payload any) (*http.Response, []byte) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return do(t, client, req)
}

func get(t *testing.T, client *http.Client, url, bearer string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return do(t, client, req)
}

func do(t *testing.T, client *http.Client, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, body
}

func TestNewRejectsShortSessionKey(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	cfg.SessionKey = []byte("short")
	if _, err := New(context.Background(), cfg, zerolog.Nop()); err == nil {
		t.Fatal("expected error for short session key")
	}
}

func TestNewRejectsUnknownStorage(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	cfg.Storage = "postgres"
	_, err := New(context.Background(), cfg, zerolog.Nop())
	if err == nil || !strings.Contains(err.Error(), "unknown storage") {
		t.Fatalf("err = %v, want unknown storage", err)
	}
}

func TestHandlerServesHealthAndMetrics(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, testConfig(t))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	resp, body := get(t, ts.Client(), ts.URL+"/healthz", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"ok"`) {
		t.Fatalf("healthz = %d %s", resp.StatusCode, body)
	}

	get(t, ts.Client(), ts.URL+"/api/listings", "")
	resp, body = get(t, ts.Client(), ts.URL+"/metrics", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), `route="/api/listings"`) {
		t.Fatalf("metrics missing listings route:\n%s", body)
	}
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	cfg.CORSOrigins = []string{"https://rebazzar.example"}
	srv := newTestServer(t, cfg)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/listings", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Origin", "https://rebazzar.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, _ := do(t, ts.Client(), req)
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://rebazzar.example" {
		t.Fatalf("allow origin = %q", got)
	}
}

func TestSignupCreatesWelcomeNotification(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, testConfig(t))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	resp, body := postJSON(t, ts.Client(), ts.URL+"/api/auth/signup", "", map[string]string{
		"name":     "Alex Rivera",
		"email":    "alex@example.com",
		"password": "correct-horse",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup = %d %s", resp.StatusCode, body)
	}
	var session struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}

	resp, body = get(t, ts.Client(), ts.URL+"/api/notifications", session.Token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("notifications = %d %s", resp.StatusCode, body)
	}
	var inbox struct {
		Notifications []struct {
			Type  string `json:"type"`
			Title string `json:"title"`
		} `json:"notifications"`
		UnreadCount int `json:"unread_count"`
	}
	if err := json.Unmarshal(body, &inbox); err != nil {
		t.Fatalf("decode inbox: %v", err)
	}
	if len(inbox.Notifications) != 1 || inbox.Notifications[0].Type != "system" || inbox.Notifications[0].Title != "Welcome to Rebazzar!" || inbox.UnreadCount != 1 {
		t.Fatalf("inbox = %+v", inbox)
	}
}

func TestBidNotifiesSeller(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, testConfig(t))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	login := func(email string) string {
		resp, body := postJSON(t, ts.Client(), ts.URL+"/api/auth/login", "", map[string]string{"email": email, "password": seed.DefaultPassword})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("login %s = %d %s", email, resp.StatusCode, body)
		}
		var session struct {
			Token string `json:"token"`
		}
		if err := json.Unmarshal(body, &session); err != nil {
			t.Fatalf("decode session: %v", err)
		}
		return session.Token
	}
	jane := login("jane@example.com")
	mike := login("mike@example.com")

	resp, body := postJSON(t, ts.Client(), ts.URL+"/api/listings/3/bids", jane, map[string]int64{"amount_cents": 62000})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("bid = %d %s", resp.StatusCode, body)
	}

	resp, body = get(t, ts.Client(), ts.URL+"/api/notifications/unread", mike)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"unread_count":1`) {
		t.Fatalf("seller unread = %d %s", resp.StatusCode, body)
	}
}

func TestSQLiteStorageKeepsSeedAcrossRestarts(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	cfg.Storage = StorageSQLite
	cfg.DBPath = filepath.Join(t.TempDir(), "data", "rebazzar.db")

	first, err := New(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("first server: %v", err)
	}
	first.Close()

	second := newTestServer(t, cfg)
	ts := httptest.NewServer(second.Handler())
	t.Cleanup(ts.Close)
	resp, body := get(t, ts.Client(), ts.URL+"/api/listings", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("listings = %d %s", resp.StatusCode, body)
	}
	var page struct {
		Listings []json.RawMessage `json:"listings"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(page.Listings) != 4 {
		t.Fatalf("listings = %d, want 4", len(page.Listings))
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	cfg.GRPCAddr = "127.0.0.1:0"
	srv := newTestServer(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	conn, err := grpc.NewClient(srv.HealthAddr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial health: %v", err)
	}
	defer conn.Close()
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	if err := platformgrpc.WaitForHealth(waitCtx, conn, HealthService, zerolog.Nop()); err != nil {
		t.Fatalf("wait for health: %v", err)
	}

	resp, body := get(t, http.DefaultClient, "http://"+srv.Addr()+"/healthz", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz = %d %s", resp.StatusCode, body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop")
	}
}
