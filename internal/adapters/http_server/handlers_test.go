package httpserver_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	server "resort_hub/internal/adapters/http_server"
	"resort_hub/internal/app"
	"resort_hub/internal/domain"
	"resort_hub/internal/storage/memory"
)

type recordingMedia struct {
	mu  sync.Mutex
	ids []string
	bad map[string]bool
}

func (m *recordingMedia) Destroy(ctx context.Context, publicID string, kind domain.MediaKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids = append(m.ids, publicID)
	if m.bad[publicID] {
		return errors.New("media host down")
	}
	return nil
}

type env struct {
	ts    *httptest.Server
	media *recordingMedia
	token string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st := memory.New()
	cache := memory.NewCache()
	media := &recordingMedia{bad: map[string]bool{}}
	auth, err := app.NewAuthService(st, app.AuthOptions{Secret: "s3cret", BcryptCost: bcrypt.MinCost, AllowRegistration: true})
	if err != nil {
		t.Fatalf("auth: %v", err)
	}

	srv := server.New([]string{"http://localhost:5173"})
	srv.MountHandlers(&server.Handlers{
		Q:        app.NewQueryService(st, st, st, cache, time.Minute),
		Resorts:  app.NewResortService(st, st, st, media, app.ReconcilerOptions{}).WithCache(cache),
		Reviews:  app.NewReviewService(st, st, cache),
		Auth:     auth,
		Stats:    app.NewStatsService(cache),
		LoginRPS: 100,
	})
	ts := httptest.NewServer(srv.Mux())
	t.Cleanup(ts.Close)

	if _, err := auth.Register(context.Background(), "admin@example.com", "secret1", "Admin"); err != nil {
		t.Fatalf("register: %v", err)
	}
	tok, _, err := auth.Login(context.Background(), "admin@example.com", "secret1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return &env{ts: ts, media: media, token: tok.Token}
}

func (e *env) do(t *testing.T, method, path, body string, auth bool) (*http.Response, map[string]any) {
	t.Helper()
	req, _ := http.NewRequest(method, e.ts.URL+path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestResortLifecycle(t *testing.T) {
	e := newEnv(t)

	resp, body := e.do(t, "POST", "/api/admin/resorts/new",
		`{"name":"Lakeview","lat":"49.0","lng":101.0,"price":"100000"}`, true)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status %d: %v", resp.StatusCode, body)
	}
	id := body["resort"].(map[string]any)["id"].(string)

	resp, body = e.do(t, "PUT", "/api/admin/resorts/edit/"+id,
		`{"newImages":["https://cdn/upload/v1/a.jpg"]}`, true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status %d: %v", resp.StatusCode, body)
	}

	resp, body = e.do(t, "PUT", "/api/admin/resorts/"+id,
		`{"removedImages":[{"url":"https://cdn/upload/v1/a.jpg"}],"newImages":["https://cdn/upload/v1/b.jpg"]}`, true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status %d: %v", resp.StatusCode, body)
	}
	images := body["files"].(map[string]any)["images"].([]any)
	if len(images) != 1 || images[0].(map[string]any)["url"] != "https://cdn/upload/v1/b.jpg" {
		t.Fatalf("unexpected images %v", images)
	}
	if len(e.media.ids) != 1 || e.media.ids[0] != "a" {
		t.Fatalf("expected one delete of a, got %v", e.media.ids)
	}

	resp, body = e.do(t, "GET", "/api/resorts/"+id, "", false)
	if resp.StatusCode != http.StatusOK || resp.Header.Get("ETag") == "" {
		t.Fatalf("get status %d etag %q", resp.StatusCode, resp.Header.Get("ETag"))
	}
	if body["resort"].(map[string]any)["name"] != "Lakeview" {
		t.Fatalf("unexpected body %v", body)
	}

	resp, body = e.do(t, "DELETE", "/api/admin/resorts/"+id, "", true)
	if resp.StatusCode != http.StatusOK || body["deletionAttempts"].(float64) != 1 {
		t.Fatalf("delete status %d: %v", resp.StatusCode, body)
	}
	resp, _ = e.do(t, "GET", "/api/admin/resorts/"+id, "", false)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.StatusCode)
	}
}

func TestWritesRequireToken(t *testing.T) {
	e := newEnv(t)
	resp, _ := e.do(t, "POST", "/api/admin/resorts", `{"name":"x"}`, false)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	e.token = "garbage"
	resp, _ = e.do(t, "DELETE", "/api/admin/resorts/any", "", true)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestErrorMapping(t *testing.T) {
	e := newEnv(t)

	resp, body := e.do(t, "POST", "/api/admin/resorts", `{"name":""}`, true)
	if resp.StatusCode != http.StatusBadRequest || body["field"] != "name" {
		t.Fatalf("expected 400 naming name, got %d %v", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/problem+json" {
		t.Fatalf("content type %q", ct)
	}

	resp, body = e.do(t, "PUT", "/api/admin/resorts/missing", `{"price":"abc"}`, true)
	if resp.StatusCode != http.StatusBadRequest || body["field"] != "price" {
		t.Fatalf("expected 400 naming price, got %d %v", resp.StatusCode, body)
	}

	resp, _ = e.do(t, "PUT", "/api/admin/resorts/missing", `{"name":"x"}`, true)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	resp, _ = e.do(t, "POST", "/api/admin/resorts", `{"name":`, true)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad JSON, got %d", resp.StatusCode)
	}

	resp, _ = e.do(t, "POST", "/api/admin/register", `{"email":"admin@example.com","password":"secret1"}`, false)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestLoginAndMe(t *testing.T) {
	e := newEnv(t)
	resp, body := e.do(t, "POST", "/api/admin/login", `{"email":"admin@example.com","password":"secret1"}`, false)
	if resp.StatusCode != http.StatusOK || body["token"] == "" {
		t.Fatalf("login %d %v", resp.StatusCode, body)
	}
	e.token = body["token"].(string)

	resp, body = e.do(t, "GET", "/api/admin/me", "", true)
	if resp.StatusCode != http.StatusOK || body["email"] != "admin@example.com" {
		t.Fatalf("me %d %v", resp.StatusCode, body)
	}
	if _, leaked := body["passwordHash"]; leaked {
		t.Fatalf("password hash exposed")
	}

	resp, _ = e.do(t, "POST", "/api/admin/login", `{"email":"admin@example.com","password":"nope"}`, false)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestPublicListAndReviews(t *testing.T) {
	e := newEnv(t)
	_, body := e.do(t, "POST", "/api/admin/resorts", `{"name":"Lakeview","images":["https://cdn/upload/v1/cover.jpg"]}`, true)
	id := body["resort"].(map[string]any)["id"].(string)
	e.do(t, "POST", "/api/admin/resorts", `{"name":"Hidden","status":"pending"}`, true)

	req, _ := http.NewRequest("GET", e.ts.URL+"/api/resorts", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var list []domain.ResortSummary
	_ = json.NewDecoder(resp.Body).Decode(&list)
	resp.Body.Close()
	if len(list) != 1 || list[0].Image == nil || list[0].Image.PublicID != "cover" {
		t.Fatalf("unexpected public list %+v", list)
	}

	// If-None-Match short-circuits
	req, _ = http.NewRequest("GET", e.ts.URL+"/api/resorts", nil)
	req.Header.Set("If-None-Match", resp.Header.Get("ETag"))
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", resp.StatusCode)
	}

	resp, body = e.do(t, "POST", "/api/reviews/"+id, `{"userName":"Ana","rating":5,"comment":"lovely"}`, false)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add review %d %v", resp.StatusCode, body)
	}
	resp, body = e.do(t, "GET", "/api/reviews/"+id, "", false)
	if resp.StatusCode != http.StatusOK || len(body["items"].([]any)) != 1 {
		t.Fatalf("list reviews %d %v", resp.StatusCode, body)
	}
	resp, _ = e.do(t, "POST", "/api/reviews/"+id, `{"userName":"Ana","rating":9}`, false)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	resp, _ = e.do(t, "GET", "/api/reviews/"+id+"?limit=500", "", false)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for limit, got %d", resp.StatusCode)
	}
}

func TestListReviews_CursorPaging(t *testing.T) {
	e := newEnv(t)
	resp, body := e.do(t, "POST", "/api/admin/resorts/new", `{"name":"Lakeview"}`, true)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status %d: %v", resp.StatusCode, body)
	}
	id := body["resort"].(map[string]any)["id"].(string)
	for _, who := range []string{"Ana", "Bo", "Cy"} {
		if resp, body := e.do(t, "POST", "/api/reviews/"+id, `{"userName":"`+who+`","rating":4}`, false); resp.StatusCode != http.StatusCreated {
			t.Fatalf("add review %d %v", resp.StatusCode, body)
		}
	}

	_, body = e.do(t, "GET", "/api/reviews/"+id+"?limit=2", "", false)
	next, ok := body["nextCursor"].(string)
	if len(body["items"].([]any)) != 2 || !ok || next == "" {
		t.Fatalf("first page %v", body)
	}
	resp, body = e.do(t, "GET", "/api/reviews/"+id+"?limit=2&cursor="+next, "", false)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("second page status %d", resp.StatusCode)
	}
	items := body["items"].([]any)
	if len(items) != 1 || items[0].(map[string]any)["userName"] != "Ana" {
		t.Fatalf("second page %v", body)
	}
	if _, more := body["nextCursor"]; more {
		t.Fatalf("last page should carry no cursor: %v", body)
	}
}

func TestStatsCountsViews(t *testing.T) {
	e := newEnv(t)
	e.do(t, "GET", "/api/stats", "", false)
	_, body := e.do(t, "GET", "/api/stats", "", false)
	if body["pageViews"].(float64) != 2 {
		t.Fatalf("pageViews = %v", body["pageViews"])
	}
}

func TestLoginRateLimited(t *testing.T) {
	auth, err := app.NewAuthService(memory.New(), app.AuthOptions{Secret: "x", BcryptCost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("auth: %v", err)
	}
	srv := server.New(nil)
	srv.MountHandlers(&server.Handlers{
		Auth:     auth,
		LoginRPS: 0.001,
	})
	var last int
	for i := 0; i < 7; i++ {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/api/admin/login", strings.NewReader(`{"email":"a@b.co","password":"x"}`))
		srv.Mux().ServeHTTP(rr, req)
		last = rr.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %d", last)
	}
}
