package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"slices"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/jaego/internal/auth"
	"github.com/erazemk/jaego/internal/blob"
	"github.com/erazemk/jaego/internal/db"
	"github.com/erazemk/jaego/internal/model"
	"github.com/erazemk/jaego/internal/nara"
	"github.com/erazemk/jaego/internal/ratelimit"
	"github.com/erazemk/jaego/internal/report"
	"github.com/erazemk/jaego/internal/store"
)

const testJWTSecret = "test-secret"

type testEnv struct {
	server *httptest.Server
	db     *sqlx.DB
	token  string
}

func newTestEnv(t *testing.T, mutate func(*Deps)) *testEnv {
	t.Helper()
	database := db.NewTestDB(t)
	deps := Deps{
		DB:        database,
		JWTSecret: testJWTSecret,
		TokenTTL:  time.Hour,
		Blobs:     blob.NewDBStore(database),
		Monitor:   nara.NewMonitor(database, nil, nil, nil),
	}
	if mutate != nil {
		mutate(&deps)
	}

	server := httptest.NewServer(NewRouter(deps))
	t.Cleanup(server.Close)

	env := &testEnv{server: server, db: database}
	env.createUser(t, "admin", model.LevelAdmin)
	env.token = env.login(t, "admin")
	return env
}

func setupTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	env := newTestEnv(t, nil)
	return env.server, env.token
}

func (e *testEnv) createUser(t *testing.T, username, level string) *model.User {
	t.Helper()
	hash, err := auth.HashPassword("password")
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	u, err := store.CreateUser(context.Background(), e.db, model.UserInput{Username: username, Level: level}, hash)
	if err != nil {
		t.Fatalf("creating user %s: %v", username, err)
	}
	return u
}

func (e *testEnv) login(t *testing.T, username string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": "password"})
	resp, err := http.Post(e.server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: %d", resp.StatusCode)
	}

	var login loginResponse
	decodeData(t, resp, &login)
	if login.Token == "" {
		t.Fatal("empty token from login")
	}
	return login.Token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	req, err := authRequest(method, e.server.URL+path, token, body)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func authRequest(method, url, token string, body any) (*http.Request, error) {
	var bodyReader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(data)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// decodeData unwraps the success envelope into v and closes the body.
func decodeData(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	var env struct {
		OK   bool            `json:"ok"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decoding envelope: %v", err)
	}
	if !env.OK {
		t.Fatalf("expected ok envelope, got %s", env.Data)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("decoding data: %v", err)
	}
}

func decodeErr(t *testing.T, resp *http.Response) errorEnvelope {
	t.Helper()
	defer resp.Body.Close()
	var env errorEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decoding error envelope: %v", err)
	}
	return env
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("expected %d, got %d: %s", want, resp.StatusCode, body)
	}
}

func TestLoginEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "wrong"})
	resp, err := http.Post(env.server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad password, got %d", resp.StatusCode)
	}
	if got := decodeErr(t, resp).Code; got != model.CodeUnauthenticated {
		t.Errorf("expected code %s, got %s", model.CodeUnauthenticated, got)
	}

	logs, err := store.ListAudit(context.Background(), env.db, model.AuditFilter{Action: "login_failed"})
	if err != nil {
		t.Fatalf("listing audit: %v", err)
	}
	if len(logs) != 1 || logs[0].Username != "admin" {
		t.Errorf("expected one login_failed entry for admin, got %+v", logs)
	}
}

func postLogin(t *testing.T, env *testEnv, username, password, forwardedFor string) *http.Response {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	req, err := http.NewRequest("POST", env.server.URL+"/api/auth/login", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("building login request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", forwardedFor)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	return resp
}

func TestLoginRateLimit(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) {
		d.LoginLimiter = ratelimit.NewMemory(3, 15*time.Minute)
	})
	env.createUser(t, "kim", model.Level2)

	// Successful logins are not counted.
	for i := 0; i < 5; i++ {
		env.login(t, "kim")
	}

	for i := 0; i < 3; i++ {
		resp := postLogin(t, env, "admin", "wrong", "")
		expectStatus(t, resp, http.StatusUnauthorized)
		resp.Body.Close()
	}

	resp := postLogin(t, env, "admin", "wrong", "")
	expectStatus(t, resp, http.StatusTooManyRequests)
	if resp.Header.Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	if got := resp.Header.Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("expected X-RateLimit-Remaining 0, got %q", got)
	}
	resp.Body.Close()

	// A valid login from the same address does not reopen the window.
	resp = postLogin(t, env, "kim", "password", "")
	expectStatus(t, resp, http.StatusTooManyRequests)
	resp.Body.Close()
}

func TestLoginRateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) {
		d.LoginLimiter = ratelimit.NewMemory(3, 15*time.Minute)
	})

	statuses := make([]int, 0, 6)
	for i := 0; i < 6; i++ {
		resp := postLogin(t, env, "admin", "wrong", fmt.Sprintf("203.0.113.%d", i+1))
		statuses = append(statuses, resp.StatusCode)
		resp.Body.Close()
	}

	want := []int{401, 401, 401, 429, 429, 429}
	if !slices.Equal(statuses, want) {
		t.Errorf("statuses = %v, want %v", statuses, want)
	}
}

func TestLoginRateLimitBehindTrustedProxy(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) {
		d.LoginLimiter = ratelimit.NewMemory(1, 15*time.Minute)
		d.TrustedProxies = []netip.Prefix{netip.MustParsePrefix("127.0.0.0/8"), netip.MustParsePrefix("::1/128")}
	})

	// Each forwarded client has its own window.
	for _, client := range []string{"203.0.113.1", "203.0.113.2"} {
		resp := postLogin(t, env, "admin", "wrong", client)
		expectStatus(t, resp, http.StatusUnauthorized)
		resp.Body.Close()
	}

	resp := postLogin(t, env, "admin", "wrong", "203.0.113.1")
	expectStatus(t, resp, http.StatusTooManyRequests)
	resp.Body.Close()
}

func TestResolveClientIP(t *testing.T) {
	trusted := []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}

	tests := []struct {
		name    string
		remote  string
		xff     string
		realIP  string
		trusted []netip.Prefix
		want    string
	}{
		{"no proxies configured", "198.51.100.7:5000", "203.0.113.1", "", nil, "198.51.100.7"},
		{"untrusted peer", "198.51.100.7:5000", "203.0.113.1", "203.0.113.9", trusted, "198.51.100.7"},
		{"trusted peer", "10.0.0.2:5000", "203.0.113.1", "", trusted, "203.0.113.1"},
		{"client prepends fake hop", "10.0.0.2:5000", "1.1.1.1, 203.0.113.1", "", trusted, "203.0.113.1"},
		{"proxy chain", "10.0.0.2:5000", "203.0.113.1, 10.0.0.3", "", trusted, "203.0.113.1"},
		{"real ip header", "10.0.0.2:5000", "", "203.0.113.4", trusted, "203.0.113.4"},
		{"trusted peer without headers", "10.0.0.2:5000", "", "", trusted, "10.0.0.2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				r.Header.Set("X-Real-IP", tt.realIP)
			}
			if got := resolveClientIP(r, tt.trusted); got != tt.want {
				t.Errorf("resolveClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGeneralRateLimit(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) {
		d.Limiter = ratelimit.NewMemory(2, time.Minute)
	})

	// The setup login consumed one request.
	resp := env.do(t, "GET", "/api/auth/me", env.token, nil)
	expectStatus(t, resp, http.StatusOK)
	if got := resp.Header.Get("X-RateLimit-Limit"); got != "2" {
		t.Errorf("expected X-RateLimit-Limit 2, got %q", got)
	}
	resp.Body.Close()

	resp = env.do(t, "GET", "/api/auth/me", env.token, nil)
	expectStatus(t, resp, http.StatusTooManyRequests)
	resp.Body.Close()
}

func TestLogoutRevokesToken(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, "POST", "/api/auth/logout", env.token, nil)
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = env.do(t, "GET", "/api/auth/me", env.token, nil)
	expectStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()
}

func TestMeReturnsPermissionsAndMenu(t *testing.T) {
	env := newTestEnv(t, nil)
	env.createUser(t, "viewer", model.Level1)
	token := env.login(t, "viewer")

	resp := env.do(t, "GET", "/api/auth/me", token, nil)
	expectStatus(t, resp, http.StatusOK)

	var me struct {
		User        model.User         `json:"user"`
		Permissions []model.Permission `json:"permissions"`
		Menu        []model.MenuItem   `json:"menu"`
	}
	decodeData(t, resp, &me)

	if me.User.Username != "viewer" {
		t.Errorf("expected viewer, got %s", me.User.Username)
	}
	if len(me.Menu) != 1 || me.Menu[0].Key != "stock_view" {
		t.Errorf("expected only the stock menu, got %+v", me.Menu)
	}
	if len(me.Permissions) != 2 {
		t.Errorf("expected 2 permissions, got %v", me.Permissions)
	}
}

func TestUnauthenticatedAccess(t *testing.T) {
	server, _ := setupTestServer(t)

	resp, err := http.Get(server.URL + "/api/items")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	req, _ := authRequest("GET", server.URL+"/api/items", "not-a-token", nil)
	resp, _ = http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for invalid token, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestDeletedUserTokenRejected(t *testing.T) {
	env := newTestEnv(t, nil)
	u := env.createUser(t, "leaver", model.Level2)
	token := env.login(t, "leaver")

	if err := store.DeleteUser(context.Background(), env.db, u.ID); err != nil {
		t.Fatalf("deleting user: %v", err)
	}

	resp := env.do(t, "GET", "/api/items", token, nil)
	expectStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()
}

func TestLevelBasedAccess(t *testing.T) {
	env := newTestEnv(t, nil)
	env.createUser(t, "viewer", model.Level1)
	viewer := env.login(t, "viewer")

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"viewer reads items", "GET", "/api/items", nil, http.StatusOK},
		{"viewer cannot create items", "POST", "/api/items", map[string]any{"name": "Cable"}, http.StatusForbidden},
		{"viewer cannot list users", "GET", "/api/users", nil, http.StatusForbidden},
		{"viewer cannot close stock", "GET", "/api/stock/closing", nil, http.StatusForbidden},
		{"viewer cannot read audit", "GET", "/api/audit-logs", nil, http.StatusForbidden},
		{"viewer cannot control monitoring", "POST", "/api/nara-monitoring/stop", nil, http.StatusForbidden},
		{"viewer reads own leave", "GET", "/api/leave-requests", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, tt.method, tt.path, viewer, tt.body)
			defer resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("expected %d, got %d", tt.want, resp.StatusCode)
			}
		})
	}

	logs, err := store.ListAudit(context.Background(), env.db, model.AuditFilter{Action: "permission_denied"})
	if err != nil {
		t.Fatalf("listing audit: %v", err)
	}
	if len(logs) != 5 {
		t.Errorf("expected 5 permission_denied entries, got %d", len(logs))
	}
}

func TestUsersAPIFlow(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, "POST", "/api/users", env.token, map[string]string{
		"username": "kim",
		"name":     "Kim",
		"level":    model.Level3,
	})
	expectStatus(t, resp, http.StatusCreated)
	var created createUserResponse
	decodeData(t, resp, &created)
	if created.GeneratedPassword == "" {
		t.Fatal("expected a generated password")
	}

	resp = env.do(t, "POST", "/api/users", env.token, map[string]string{"username": "kim", "level": model.Level1})
	expectStatus(t, resp, http.StatusConflict)
	resp.Body.Close()

	resp = env.do(t, "POST", "/api/users", env.token, map[string]string{"username": "lee", "level": "9"})
	expectStatus(t, resp, http.StatusBadRequest)
	if invalid := decodeErr(t, resp); invalid.Details == nil {
		t.Error("expected validation details")
	}

	resp = env.do(t, "DELETE", "/api/users/"+created.User.ID, env.token, nil)
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = env.do(t, "GET", "/api/users/"+created.User.ID, env.token, nil)
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}

func TestStockAPIFlow(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, "POST", "/api/stock/in", env.token, map[string]any{
		"item_name":     "Cable",
		"specification": "3C",
		"quantity":      10,
		"unit_price":    "1000",
	})
	expectStatus(t, resp, http.StatusCreated)
	var in model.StockInResult
	decodeData(t, resp, &in)
	if !in.ItemCreated || in.NewQuantity != 10 {
		t.Fatalf("expected new item with 10 units, got %+v", in)
	}

	resp = env.do(t, "POST", "/api/stock/transaction", env.token, map[string]any{
		"type":     "out",
		"item_id":  in.Item.ID,
		"quantity": 11,
	})
	expectStatus(t, resp, http.StatusBadRequest)
	if got := decodeErr(t, resp).Code; got != model.CodeInsufficientStock {
		t.Errorf("expected %s, got %s", model.CodeInsufficientStock, got)
	}

	resp = env.do(t, "POST", "/api/stock/transaction", env.token, map[string]any{
		"type":     "out",
		"item_id":  in.Item.ID,
		"quantity": 4,
	})
	expectStatus(t, resp, http.StatusCreated)
	var out model.StockOutResult
	decodeData(t, resp, &out)
	if out.NewQuantity != 6 {
		t.Errorf("expected 6 left, got %d", out.NewQuantity)
	}

	resp = env.do(t, "POST", "/api/stock/transaction", env.token, map[string]any{"type": "move"})
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	resp = env.do(t, "GET", "/api/stock/history?item_id="+in.Item.ID, env.token, nil)
	expectStatus(t, resp, http.StatusOK)
	var history []model.StockHistory
	decodeData(t, resp, &history)
	if len(history) != 2 {
		t.Errorf("expected 2 history rows, got %d", len(history))
	}

	resp = env.do(t, "POST", "/api/search", env.token, map[string]any{"query": "cab"})
	expectStatus(t, resp, http.StatusOK)
	var found struct {
		Stats model.SearchStats `json:"stats"`
	}
	decodeData(t, resp, &found)
	if found.Stats.ResultCount != 1 || found.Stats.TotalQuantity != 6 {
		t.Errorf("unexpected search stats %+v", found.Stats)
	}
}

func TestBulkAndDisposalStatus(t *testing.T) {
	env := newTestEnv(t, nil)
	missing := "00000000-0000-4000-8000-000000000000"

	resp := env.do(t, "POST", "/api/stock/bulk", env.token, map[string]any{
		"operation_type": model.BulkStockOut,
		"operations":     []map[string]any{{"item_id": missing, "quantity": 1}},
	})
	expectStatus(t, resp, http.StatusBadRequest)
	failed := decodeErr(t, resp)
	if details, ok := failed.Details.(map[string]any); !ok || details["failure_count"] != float64(1) {
		t.Errorf("expected 1 failure in details, got %+v", failed.Details)
	}

	resp = env.do(t, "POST", "/api/stock/bulk", env.token, map[string]any{
		"operation_type": model.BulkStockIn,
		"operations": []map[string]any{
			{"item_name": "Fuse", "quantity": 5},
			{"item_name": "Fuse", "quantity": 0},
		},
	})
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	resp = env.do(t, "POST", "/api/stock/disposal", env.token, map[string]any{
		"items": []map[string]any{{"id": missing, "quantity": 1}},
	})
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()
}

func TestClosingAPIFlow(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, "POST", "/api/stock/in", env.token, map[string]any{"item_name": "Relay", "quantity": 2, "unit_price": "50"})
	expectStatus(t, resp, http.StatusCreated)
	resp.Body.Close()

	resp = env.do(t, "POST", "/api/stock/closing", env.token, map[string]any{"year": 2025, "quarter": 1})
	expectStatus(t, resp, http.StatusCreated)
	var run model.ClosingRun
	decodeData(t, resp, &run)

	resp = env.do(t, "POST", "/api/stock/closing", env.token, map[string]any{"year": 2025, "quarter": 1})
	expectStatus(t, resp, http.StatusConflict)
	resp.Body.Close()

	resp = env.do(t, "GET", "/api/reports/closing/"+run.ID+".xlsx", env.token, nil)
	expectStatus(t, resp, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); ct != report.ContentType {
		t.Errorf("unexpected content type %q", ct)
	}
	resp.Body.Close()

	resp = env.do(t, "DELETE", "/api/stock/closing/"+run.ID, env.token, map[string]string{})
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	resp = env.do(t, "DELETE", "/api/stock/closing/"+run.ID, env.token, map[string]string{"reason": "wrong count"})
	expectStatus(t, resp, http.StatusOK)
	var rolled model.ClosingRun
	decodeData(t, resp, &rolled)
	if rolled.Status != model.ClosingRolledBack {
		t.Errorf("expected rolled back, got %s", rolled.Status)
	}
}

func TestLeaveVisibilityAndApproval(t *testing.T) {
	env := newTestEnv(t, nil)
	env.createUser(t, "worker", model.Level2)
	env.createUser(t, "other", model.Level2)
	env.createUser(t, "lead", model.Level4)
	worker, other, lead := env.login(t, "worker"), env.login(t, "other"), env.login(t, "lead")

	resp := env.do(t, "POST", "/api/leave-requests", worker, map[string]any{
		"leave_type": model.LeaveAnnual,
		"start_date": "2025-05-01",
		"end_date":   "2025-05-02",
		"total_days": 2,
	})
	expectStatus(t, resp, http.StatusCreated)
	var leave model.LeaveRequest
	decodeData(t, resp, &leave)

	resp = env.do(t, "GET", "/api/leave-requests", other, nil)
	expectStatus(t, resp, http.StatusOK)
	var seen []model.LeaveRequest
	decodeData(t, resp, &seen)
	if len(seen) != 0 {
		t.Errorf("expected other user to see no requests, got %d", len(seen))
	}

	resp = env.do(t, "GET", "/api/leave-requests/"+leave.ID, other, nil)
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()

	resp = env.do(t, "PUT", "/api/leave-requests/"+leave.ID+"/status", worker, map[string]string{"status": model.StatusApproved})
	expectStatus(t, resp, http.StatusForbidden)
	resp.Body.Close()

	resp = env.do(t, "PUT", "/api/leave-requests/"+leave.ID+"/status", lead, map[string]string{"status": model.StatusApproved})
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = env.do(t, "PUT", "/api/leave-requests/"+leave.ID+"/status", lead, map[string]string{"status": model.StatusRejected, "rejection_reason": "late"})
	expectStatus(t, resp, http.StatusConflict)
	resp.Body.Close()

	resp = env.do(t, "DELETE", "/api/leave-requests/"+leave.ID, worker, nil)
	expectStatus(t, resp, http.StatusConflict)
	resp.Body.Close()

	resp = env.do(t, "GET", "/api/schedule?startDate=2025-05-01&endDate=2025-05-31", other, nil)
	expectStatus(t, resp, http.StatusOK)
	var cal calendarResponse
	decodeData(t, resp, &cal)
	if len(cal.Entries) != 1 || cal.Entries[0].Source != model.CalendarLeave {
		t.Errorf("expected the approved leave on the calendar, got %+v", cal.Entries)
	}
}

func TestWorkDiaryScope(t *testing.T) {
	env := newTestEnv(t, nil)
	env.createUser(t, "junior", model.Level2)
	junior := env.login(t, "junior")

	for _, token := range []string{env.token, junior} {
		resp := env.do(t, "POST", "/api/work-diary", token, map[string]string{
			"work_date":    "2025-03-10",
			"project_name": "Substation",
			"work_content": "inspection",
		})
		expectStatus(t, resp, http.StatusCreated)
		resp.Body.Close()
	}

	resp := env.do(t, "POST", "/api/projects", env.token, map[string]string{
		"project_name":   "Line 2",
		"project_number": "CNCWL-2025-02",
	})
	expectStatus(t, resp, http.StatusCreated)
	var line model.Project
	decodeData(t, resp, &line)

	// The project number makes this a WSMS entry even though the name does not say so.
	resp = env.do(t, "POST", "/api/work-diary", junior, map[string]string{
		"work_date":    "2025-03-11",
		"project_id":   line.ID,
		"work_content": "wiring",
		"work_type":    "점검",
	})
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"admin sees all", env.token, 2},
		{"junior sees own", junior, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, "GET", "/api/work-diary?page=1&limit=10", tt.token, nil)
			expectStatus(t, resp, http.StatusOK)
			var page model.DiaryPage
			decodeData(t, resp, &page)
			if page.Total != tt.want {
				t.Errorf("expected %d entries, got %d", tt.want, page.Total)
			}
		})
	}

	resp = env.do(t, "GET", "/api/work-diary/stats", junior, nil)
	expectStatus(t, resp, http.StatusForbidden)
	resp.Body.Close()
}

func TestNaraConfigRedaction(t *testing.T) {
	env := newTestEnv(t, nil)

	cfg := nara.DefaultConfig()
	cfg.TelegramEnabled = true
	cfg.TelegramChatID = "42"
	cfg.TelegramBotToken = "secret-token"

	resp := env.do(t, "PUT", "/api/nara-monitoring/config", env.token, cfg)
	expectStatus(t, resp, http.StatusOK)
	var got nara.Config
	decodeData(t, resp, &got)
	if got.TelegramBotToken != nara.RedactedToken {
		t.Errorf("expected redacted token, got %q", got.TelegramBotToken)
	}

	// Echoing the redacted config back keeps the stored token.
	got.Keywords = []string{"변압기"}
	resp = env.do(t, "PUT", "/api/nara-monitoring/config", env.token, got)
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	saved, err := nara.LoadConfig(context.Background(), env.db)
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}
	if saved.TelegramBotToken != "secret-token" || len(saved.Keywords) != 1 {
		t.Errorf("unexpected saved config %+v", saved)
	}

	resp = env.do(t, "PUT", "/api/nara-monitoring/config", env.token, map[string]any{"telegram_chat_id": ""})
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	resp = env.do(t, "GET", "/api/nara-monitoring/status", env.token, nil)
	expectStatus(t, resp, http.StatusOK)
	var st nara.Status
	decodeData(t, resp, &st)
	if st.Enabled {
		t.Error("expected monitoring to be stopped")
	}
}

func TestItemImageUpload(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, "POST", "/api/items", env.token, map[string]any{"name": "Breaker"})
	expectStatus(t, resp, http.StatusCreated)
	var item model.Item
	decodeData(t, resp, &item)

	img := image.NewRGBA(image.Rect(0, 0, 64, 32))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, img); err != nil {
		t.Fatalf("encoding png: %v", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("image", "breaker.png")
	part.Write(pngBuf.Bytes())
	mw.Close()

	req, _ := http.NewRequest("PUT", env.server.URL+"/api/items/"+item.ID+"/image", &body)
	req.Header.Set("Authorization", "Bearer "+env.token)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = env.do(t, "GET", "/api/items/"+item.ID+"/image?thumb=true", env.token, nil)
	expectStatus(t, resp, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %q", ct)
	}
	resp.Body.Close()
}

func TestStockImport(t *testing.T) {
	env := newTestEnv(t, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("file", "items.csv")
	io.WriteString(part, "품명,규격,수량,단가\nCable,3C,5,100\n,,2,1\n")
	mw.Close()

	req, _ := http.NewRequest("POST", env.server.URL+"/api/stock/import", &body)
	req.Header.Set("Authorization", "Bearer "+env.token)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	expectStatus(t, resp, http.StatusOK)

	var res struct {
		SuccessCount int `json:"success_count"`
		FailureCount int `json:"failure_count"`
	}
	decodeData(t, resp, &res)
	if res.SuccessCount != 1 || res.FailureCount != 1 {
		t.Errorf("expected 1 success and 1 failure, got %+v", res)
	}
}

func TestProjectsAndMotors(t *testing.T) {
	env := newTestEnv(t, nil)
	env.createUser(t, "viewer", model.Level2)
	viewer := env.login(t, "viewer")

	resp := env.do(t, "POST", "/api/projects", viewer, map[string]string{
		"project_name":   "Tandem mill",
		"project_number": "TD-01",
	})
	expectStatus(t, resp, http.StatusForbidden)
	resp.Body.Close()

	resp = env.do(t, "POST", "/api/projects", env.token, map[string]string{
		"project_name":   "Tandem mill",
		"project_number": "TD-01",
		"client_name":    "Steelworks",
	})
	expectStatus(t, resp, http.StatusCreated)
	var project model.Project
	decodeData(t, resp, &project)
	if project.Status != model.ProjectManufacturing {
		t.Errorf("expected default status %s, got %s", model.ProjectManufacturing, project.Status)
	}

	resp = env.do(t, "POST", "/api/projects", env.token, map[string]string{
		"project_name":   "Duplicate",
		"project_number": "TD-01",
	})
	expectStatus(t, resp, http.StatusConflict)
	resp.Body.Close()

	resp = env.do(t, "POST", "/api/projects/"+project.ID+"/motors", env.token, map[string]any{
		"motor_type": "Main drive",
		"power_kw":   75.5,
		"quantity":   2,
	})
	expectStatus(t, resp, http.StatusCreated)
	var motor model.Motor
	decodeData(t, resp, &motor)

	resp = env.do(t, "POST", "/api/projects/"+project.ID+"/motors", env.token, map[string]any{
		"motor_type": "Pump",
		"quantity":   0,
	})
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	resp = env.do(t, "PUT", "/api/projects/"+project.ID+"/motors/"+motor.ID, env.token, map[string]any{
		"motor_type": "Main drive",
		"power_kw":   90,
		"quantity":   2,
	})
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = env.do(t, "GET", "/api/projects/"+project.ID, viewer, nil)
	expectStatus(t, resp, http.StatusOK)
	var detail struct {
		model.Project
		Motors []model.Motor `json:"motors"`
	}
	decodeData(t, resp, &detail)
	if detail.ProjectNumber != "TD-01" || len(detail.Motors) != 1 || detail.Motors[0].PowerKW != 90 {
		t.Errorf("unexpected project detail %+v", detail)
	}

	resp = env.do(t, "GET", "/api/projects?q=td-", viewer, nil)
	expectStatus(t, resp, http.StatusOK)
	var found []model.Project
	decodeData(t, resp, &found)
	if len(found) != 1 {
		t.Errorf("expected 1 project matching the number, got %d", len(found))
	}

	resp = env.do(t, "DELETE", "/api/projects/"+project.ID, env.token, nil)
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = env.do(t, "GET", "/api/projects/"+project.ID+"/motors", viewer, nil)
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}

func TestTodosAreScopedToOwner(t *testing.T) {
	env := newTestEnv(t, nil)
	env.createUser(t, "ann", model.Level1)
	env.createUser(t, "ben", model.Level1)
	ann := env.login(t, "ann")
	ben := env.login(t, "ben")

	resp := env.do(t, "POST", "/api/todos", ann, map[string]string{"title": "Order breakers", "due_date": "2025-06-01"})
	expectStatus(t, resp, http.StatusCreated)
	var todo model.Todo
	decodeData(t, resp, &todo)
	if todo.Priority != model.PriorityMedium || todo.Completed {
		t.Errorf("unexpected new todo %+v", todo)
	}

	resp = env.do(t, "GET", "/api/todos", ben, nil)
	expectStatus(t, resp, http.StatusOK)
	var others []model.Todo
	decodeData(t, resp, &others)
	if len(others) != 0 {
		t.Errorf("ben should not see ann's todos, got %d", len(others))
	}

	resp = env.do(t, "PUT", "/api/todos/"+todo.ID, ben, map[string]bool{"completed": true})
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()

	resp = env.do(t, "DELETE", "/api/todos/"+todo.ID, ben, nil)
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()

	resp = env.do(t, "PUT", "/api/todos/"+todo.ID, ann, map[string]bool{"completed": true})
	expectStatus(t, resp, http.StatusOK)
	decodeData(t, resp, &todo)
	if !todo.Completed || todo.Title != "Order breakers" {
		t.Errorf("unexpected updated todo %+v", todo)
	}

	resp = env.do(t, "DELETE", "/api/todos/"+todo.ID, ann, nil)
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()
}
