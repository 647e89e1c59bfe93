package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"controlroom/internal/config"
	"controlroom/internal/db"
	"controlroom/internal/domain"
	"controlroom/internal/engine"
	"controlroom/internal/engine/auth"
	"controlroom/internal/migrate"
	"controlroom/internal/pipeline"
	"controlroom/internal/scheduler"
)

const testSecret = "test-secret"

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

type fakeRefresher struct {
	calls int
}

func (f *fakeRefresher) RefreshNow(ctx context.Context) (scheduler.Outcome, error) {
	f.calls++
	return scheduler.Outcome{Epoch: uint64(f.calls)}, nil
}

func newTestServer(t *testing.T, refresher Refresher) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	e := engine.New(conn, cfg)
	perms := auth.Service{Repo: e.Repo, Config: cfg}
	for actor, role := range map[string]string{"ops": "admin", "watcher": "viewer"} {
		if err := perms.Grant(context.Background(), actor, role); err != nil {
			t.Fatalf("grant %s: %v", actor, err)
		}
	}
	handler, err := New(Config{
		Engine:    e,
		Refresher: refresher,
		BasePath:  "/v0",
		Auth:      AuthConfig{JWTSecret: testSecret, AllowActorHeader: true},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func as(actor string) map[string]string { return map[string]string{"X-Actor-Id": actor} }

func seed(t *testing.T, e engine.Engine, epoch uint64, ds ...domain.Decision) {
	t.Helper()
	if _, err := e.Apply(context.Background(), pipeline.Result{Epoch: epoch, Decisions: ds, BaselineRASM: 10}); err != nil {
		t.Fatalf("apply: %v", err)
	}
}

func decision(id string, blocking bool) domain.Decision {
	sev := domain.SeverityOK
	if blocking {
		sev = domain.SeverityBlocking
	}
	return domain.Decision{
		ID:            id,
		RuleName:      "upgauge",
		RouteKey:      "FLL-" + id,
		Title:         "Upgauge " + id,
		Category:      domain.CategoryUpgauge,
		Priority:      domain.PriorityHigh,
		RevenueImpact: 5000,
		RASMImpact:    0.2,
		Constraints:   []domain.Constraint{{Domain: domain.DomainCrew, Severity: sev, Binding: blocking, Description: "crew"}},
		Confidence:    domain.ConfidenceMedium,
		Risks:         []string{},
	}
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var env struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("unmarshal error envelope: %v (%s)", err, string(body))
	}
	return env.Error.Code
}

func TestHealthIsPublicAndAPIRequiresAuth(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	client := srv.Client()

	res, body := doJSON(t, client, http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d: %s", res.StatusCode, string(body))
	}
	res, body = doJSON(t, client, http.MethodGet, srv.URL+"/v0/decisions", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d %s", res.StatusCode, string(body))
	}
	if code := errorCode(t, body); code != "unauthorized" {
		t.Fatalf("expected unauthorized code, got %s", code)
	}
}

func TestDecisionLifecycleOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	client := srv.Client()
	seed(t, srv.Engine, 1, decision("open", false), decision("held", true))

	res, body := doJSON(t, client, http.MethodPost, srv.URL+"/v0/decisions/open/simulate", map[string]any{"version": 1}, as("ops"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("simulate status %d: %s", res.StatusCode, string(body))
	}
	var d domain.Decision
	if err := json.Unmarshal(body, &d); err != nil {
		t.Fatalf("unmarshal decision: %v", err)
	}
	if d.Status != domain.StatusSimulated || d.Version != 2 {
		t.Fatalf("expected simulated v2, got %s v%d", d.Status, d.Version)
	}

	res, body = doJSON(t, client, http.MethodPost, srv.URL+"/v0/decisions/open/approve", map[string]any{"version": 1}, as("ops"))
	if res.StatusCode != http.StatusConflict || errorCode(t, body) != "conflict" {
		t.Fatalf("expected version conflict, got %d %s", res.StatusCode, string(body))
	}

	res, body = doJSON(t, client, http.MethodPost, srv.URL+"/v0/decisions/open/complete", map[string]any{}, as("ops"))
	if res.StatusCode != http.StatusConflict || errorCode(t, body) != "invalid_transition" {
		t.Fatalf("expected invalid_transition, got %d %s", res.StatusCode, string(body))
	}

	res, body = doJSON(t, client, http.MethodPost, srv.URL+"/v0/decisions/held/approve", map[string]any{}, as("ops"))
	if res.StatusCode != http.StatusUnprocessableEntity || errorCode(t, body) != "blocked" {
		t.Fatalf("expected blocked, got %d %s", res.StatusCode, string(body))
	}

	res, body = doJSON(t, client, http.MethodGet, srv.URL+"/v0/decisions/missing", nil, as("ops"))
	if res.StatusCode != http.StatusNotFound || errorCode(t, body) != "not_found" {
		t.Fatalf("expected not_found, got %d %s", res.StatusCode, string(body))
	}

	res, body = doJSON(t, client, http.MethodGet, srv.URL+"/v0/log?decision_id=open", nil, as("ops"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("log status %d: %s", res.StatusCode, string(body))
	}
	var page paginatedLog
	if err := json.Unmarshal(body, &page); err != nil {
		t.Fatalf("unmarshal log: %v", err)
	}
	if len(page.Items) != 2 || page.Items[0].Type != domain.LogSimulated || page.Items[1].Type != domain.LogProposed {
		t.Fatalf("unexpected log: %+v", page.Items)
	}
}

func TestViewerCannotApprove(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	client := srv.Client()
	seed(t, srv.Engine, 1, decision("open", false))

	res, body := doJSON(t, client, http.MethodGet, srv.URL+"/v0/decisions/open", nil, as("watcher"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("viewer read status %d: %s", res.StatusCode, string(body))
	}
	res, body = doJSON(t, client, http.MethodPost, srv.URL+"/v0/decisions/open/approve", map[string]any{}, as("watcher"))
	if res.StatusCode != http.StatusForbidden || errorCode(t, body) != "forbidden" {
		t.Fatalf("expected forbidden, got %d %s", res.StatusCode, string(body))
	}
}

func TestDevTokenCarriesPermissions(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	client := srv.Client()

	res, body := doJSON(t, client, http.MethodPost, srv.URL+"/v0/auth/dev/login", map[string]any{
		"actor_id":    "dashboard",
		"permissions": []string{auth.PermDecisionRead},
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dev login status %d: %s", res.StatusCode, string(body))
	}
	var login DevLoginResponse
	if err := json.Unmarshal(body, &login); err != nil || login.Token == "" {
		t.Fatalf("expected token, got %s", string(body))
	}
	bearer := map[string]string{"Authorization": "Bearer " + login.Token}

	res, body = doJSON(t, client, http.MethodGet, srv.URL+"/v0/summary", nil, bearer)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("summary status %d: %s", res.StatusCode, string(body))
	}
	res, body = doJSON(t, client, http.MethodPost, srv.URL+"/v0/refresh", nil, bearer)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected forbidden refresh, got %d %s", res.StatusCode, string(body))
	}

	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/summary", nil, map[string]string{"Authorization": "Bearer nope"})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", res.StatusCode)
	}
}

func TestAPIKeyAuthentication(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	client := srv.Client()

	res, body := doJSON(t, client, http.MethodPost, srv.URL+"/v0/api-keys", map[string]any{"actor_id": "watcher"}, as("ops"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create key status %d: %s", res.StatusCode, string(body))
	}
	var key CreateAPIKeyResponse
	if err := json.Unmarshal(body, &key); err != nil {
		t.Fatalf("unmarshal key: %v", err)
	}
	res, body = doJSON(t, client, http.MethodGet, srv.URL+"/v0/me", nil, map[string]string{"X-Api-Key": key.Key})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me status %d: %s", res.StatusCode, string(body))
	}
	var who WhoAmIResponse
	if err := json.Unmarshal(body, &who); err != nil {
		t.Fatalf("unmarshal me: %v", err)
	}
	if who.ActorID != "watcher" || len(who.Roles) != 1 || who.Roles[0] != "viewer" {
		t.Fatalf("unexpected principal %+v", who)
	}
}

func TestScopedAPIKeyCannotExceedItsRoles(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	client := srv.Client()
	seed(t, srv.Engine, 1, decision("open", false))
	perms := auth.Service{Repo: srv.Engine.Repo, Config: srv.Engine.Config}
	if err := perms.Grant(context.Background(), "ops", "viewer"); err != nil {
		t.Fatalf("grant viewer: %v", err)
	}

	res, body := doJSON(t, client, http.MethodPost, srv.URL+"/v0/api-keys",
		map[string]any{"actor_id": "ops", "roles": []string{"auditor"}}, as("ops"))
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for undefined role, got %d %s", res.StatusCode, string(body))
	}

	res, body = doJSON(t, client, http.MethodPost, srv.URL+"/v0/api-keys",
		map[string]any{"actor_id": "ops", "name": "dashboard", "roles": []string{"viewer"}}, as("ops"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create key status %d: %s", res.StatusCode, string(body))
	}
	var key CreateAPIKeyResponse
	if err := json.Unmarshal(body, &key); err != nil {
		t.Fatalf("unmarshal key: %v", err)
	}
	withKey := map[string]string{"X-Api-Key": key.Key}

	res, body = doJSON(t, client, http.MethodGet, srv.URL+"/v0/me", nil, withKey)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me status %d: %s", res.StatusCode, string(body))
	}
	var who WhoAmIResponse
	if err := json.Unmarshal(body, &who); err != nil {
		t.Fatalf("unmarshal me: %v", err)
	}
	if who.ActorID != "ops" || len(who.Roles) != 1 || who.Roles[0] != "viewer" {
		t.Fatalf("expected key narrowed to viewer, got %+v", who)
	}

	res, body = doJSON(t, client, http.MethodGet, srv.URL+"/v0/decisions", nil, withKey)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list with scoped key: %d %s", res.StatusCode, string(body))
	}
	res, body = doJSON(t, client, http.MethodPost, srv.URL+"/v0/decisions/open/simulate", map[string]any{}, withKey)
	if res.StatusCode != http.StatusForbidden || errorCode(t, body) != "forbidden" {
		t.Fatalf("expected scoped key to be refused, got %d %s", res.StatusCode, string(body))
	}

	if err := perms.Revoke(context.Background(), "ops", "viewer"); err != nil {
		t.Fatalf("revoke viewer: %v", err)
	}
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/decisions", nil, withKey)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 once the actor lost the scoped role, got %d", res.StatusCode)
	}
}

func TestListDecisionsPaginates(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	client := srv.Client()
	seed(t, srv.Engine, 1, decision("a", false), decision("b", false), decision("c", false))

	res, body := doJSON(t, client, http.MethodGet, srv.URL+"/v0/decisions?limit=2&status=proposed", nil, as("ops"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list status %d: %s", res.StatusCode, string(body))
	}
	var page paginatedDecisions
	if err := json.Unmarshal(body, &page); err != nil {
		t.Fatalf("unmarshal page: %v", err)
	}
	if len(page.Items) != 2 || page.NextOffset == nil || *page.NextOffset != 2 {
		t.Fatalf("unexpected page: %d items next=%v", len(page.Items), page.NextOffset)
	}

	res, body = doJSON(t, client, http.MethodGet, srv.URL+"/v0/decisions?status=bogus", nil, as("ops"))
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad status, got %d %s", res.StatusCode, string(body))
	}
}

func TestRefreshEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	res, body := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/refresh", nil, as("ops"))
	if res.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without refresher, got %d %s", res.StatusCode, string(body))
	}

	fake := &fakeRefresher{}
	srv2, cleanup2 := newTestServer(t, fake)
	defer cleanup2()
	res, body = doJSON(t, srv2.Client(), http.MethodPost, srv2.URL+"/v0/refresh", nil, as("ops"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("refresh status %d: %s", res.StatusCode, string(body))
	}
	var out RefreshResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("unmarshal refresh: %v", err)
	}
	if out.Epoch != 1 || fake.calls != 1 {
		t.Fatalf("expected one refresh at epoch 1, got epoch %d calls %d", out.Epoch, fake.calls)
	}
}

func TestWebhookDeliversSignedBatches(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()

	var (
		mu       sync.Mutex
		batches  []webhookBatch
		badSigns int
	)
	hookSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		defer mu.Unlock()
		if r.Header.Get(signatureHeader) != Sign("s3cret", data) {
			badSigns++
		}
		var b webhookBatch
		_ = json.Unmarshal(data, &b)
		batches = append(batches, b)
	}))
	defer hookSrv.Close()

	seed(t, srv.Engine, 1, decision("before", false))
	d := WebhookDispatcher{
		Repo:     srv.Engine.Repo,
		Webhooks: []config.Webhook{{ID: "ops", URL: hookSrv.URL, Secret: "s3cret", Enabled: true}},
	}
	ctx := context.Background()
	// The first round only pins the cursor to the end of the existing log.
	d.DispatchAll(ctx)

	seed(t, srv.Engine, 2, decision("before", false), decision("after", false))
	d.DispatchAll(ctx)
	d.DispatchAll(ctx)

	mu.Lock()
	defer mu.Unlock()
	if badSigns != 0 {
		t.Fatalf("expected valid signatures, got %d bad", badSigns)
	}
	if len(batches) != 1 || len(batches[0].Entries) != 1 || batches[0].Entries[0].DecisionID != "after" {
		t.Fatalf("unexpected deliveries: %+v", batches)
	}
}
