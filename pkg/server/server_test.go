package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vango-dev/teddy"
	"github.com/vango-dev/teddy/pkg/middleware"
)

var cart = teddy.Def("shop", "cart")

func newServer(t *testing.T, config Config, opts ...teddy.Option) (*teddy.Teddy, *Server) {
	t.Helper()
	td := teddy.New(opts...)
	t.Cleanup(func() { td.Close() })
	td.SetStore(cart, teddy.Config{
		State: map[string]any{
			"products": []any{map[string]any{"id": "a", "name": "berries"}},
			"total":    0,
		},
		Getters: map[string]teddy.GetterDef{
			"count": teddy.Getter(func(s *teddy.Store) any { return s.Get("products.length") }),
			"named": teddy.ParamGetter(func(s *teddy.Store, args ...any) any {
				return s.Get("products[name={n}].id", teddy.WithVars(map[string]any{"n": args[0]}))
			}),
		},
		Actions: map[string]teddy.ActionFunc{
			"add": func(s *teddy.Store, args ...any) (any, error) {
				return s.Push("products", map[string]any{"id": args[0], "name": args[1]})
			},
			"fail": func(*teddy.Store, ...any) (any, error) { return nil, errors.New("nope") },
		},
	})
	return td, New(td, config)
}

func do(t *testing.T, s *Server, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	var out map[string]any
	json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

// =============================================================================
// Stores
// =============================================================================

func TestListStores(t *testing.T) {
	_, s := newServer(t, Config{})
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stores", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var defs []teddy.Definition
	if err := json.Unmarshal(rec.Body.Bytes(), &defs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(defs) != 1 || defs[0] != cart {
		t.Errorf("expected [shop.cart], got %v", defs)
	}
}

func TestGetValue(t *testing.T) {
	_, s := newServer(t, Config{})

	rec, out := do(t, s, http.MethodGet, "/stores/shop/cart?path=products.0.name", "")
	if rec.Code != http.StatusOK || out["value"] != "berries" {
		t.Errorf("expected berries, got %d %v", rec.Code, out)
	}

	vars := url.QueryEscape(`{"id":"a"}`)
	rec, out = do(t, s, http.MethodGet, "/stores/shop/cart?path=products[id={id}].name&vars="+vars, "")
	if rec.Code != http.StatusOK || out["value"] != "berries" {
		t.Errorf("expected berries with vars, got %d %v", rec.Code, out)
	}

	rec, out = do(t, s, http.MethodGet, "/stores/shop/cart", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected whole state, got %d", rec.Code)
	}
	if _, ok := out["value"].(map[string]any)["products"]; !ok {
		t.Errorf("expected state object, got %v", out)
	}
}

func TestGetMissing(t *testing.T) {
	td, s := newServer(t, Config{})

	if rec, _ := do(t, s, http.MethodGet, "/stores/shop/cart?path=nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for a missing path, got %d", rec.Code)
	}
	if rec, _ := do(t, s, http.MethodGet, "/stores/shop/other", ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for a missing store, got %d", rec.Code)
	}
	if td.Exists(teddy.Def("shop", "other")) {
		t.Error("expected reads not to create stores")
	}
	if rec, _ := do(t, s, http.MethodGet, "/stores/shop/cart?vars=nope", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad vars, got %d", rec.Code)
	}
}

func TestSetValueRunsWatchers(t *testing.T) {
	td, s := newServer(t, Config{})
	var seen []any
	td.Watch(cart, teddy.Watch{Path: "total", Handler: func(newV, _ any) { seen = append(seen, newV) }})

	rec, out := do(t, s, http.MethodPut, "/stores/shop/cart?path=total", "12.5")
	if rec.Code != http.StatusOK || out["value"] != 12.5 {
		t.Errorf("expected 12.5, got %d %v", rec.Code, out)
	}
	if !reflect.DeepEqual(seen, []any{12.5}) {
		t.Errorf("expected watcher to see [12.5], got %v", seen)
	}

	if rec, _ := do(t, s, http.MethodPut, "/stores/shop/cart?path=total.x", "1"); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 writing through a scalar, got %d", rec.Code)
	}
	if rec, _ := do(t, s, http.MethodPut, "/stores/shop/cart?path=total", "{bad"); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a bad body, got %d", rec.Code)
	}
}

func TestPushAndRemove(t *testing.T) {
	td, s := newServer(t, Config{})

	rec, out := do(t, s, http.MethodPost, "/stores/shop/cart/push?path=products", `{"id":"b","name":"honey"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if out["value"].(map[string]any)["name"] != "honey" {
		t.Errorf("expected pushed honey, got %v", out)
	}
	if got := td.Get(cart, "products.1.name"); got != "honey" {
		t.Errorf("expected honey in state, got %v", got)
	}

	rec, out = do(t, s, http.MethodDelete, "/stores/shop/cart?path=products.0", "")
	if rec.Code != http.StatusOK || out["removed"] != true {
		t.Errorf("expected removed, got %d %v", rec.Code, out)
	}
	if got := td.Get(cart, "products.0.name"); got != "honey" {
		t.Errorf("expected honey to move up, got %v", got)
	}

	_, out = do(t, s, http.MethodDelete, "/stores/shop/cart?path=nope", "")
	if out["removed"] != false {
		t.Errorf("expected removed=false, got %v", out)
	}
}

func TestActionsAndGetters(t *testing.T) {
	_, s := newServer(t, Config{})

	rec, out := do(t, s, http.MethodPost, "/stores/shop/cart/actions/add", `["b","honey"]`)
	if rec.Code != http.StatusOK || out["result"].(map[string]any)["id"] != "b" {
		t.Errorf("expected added product, got %d %v", rec.Code, out)
	}

	rec, out = do(t, s, http.MethodGet, "/stores/shop/cart/getters/count", "")
	if rec.Code != http.StatusOK || out["value"] != float64(2) {
		t.Errorf("expected count 2, got %d %v", rec.Code, out)
	}

	args := url.QueryEscape(`["honey"]`)
	_, out = do(t, s, http.MethodGet, "/stores/shop/cart/getters/named?args="+args, "")
	if out["value"] != "b" {
		t.Errorf("expected b, got %v", out)
	}

	if rec, _ := do(t, s, http.MethodPost, "/stores/shop/cart/actions/missing", ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for a missing action, got %d", rec.Code)
	}
	if rec, _ := do(t, s, http.MethodPost, "/stores/shop/cart/actions/fail", ""); rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 for a failing action, got %d", rec.Code)
	}
	if rec, _ := do(t, s, http.MethodGet, "/stores/shop/none/getters/count", ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for a missing store, got %d", rec.Code)
	}
}

// =============================================================================
// Optional routes and lifecycle
// =============================================================================

func TestMetricsRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, s := newServer(t, Config{Gatherer: reg}, teddy.WithMiddleware(middleware.Prometheus(middleware.WithRegistry(reg))))

	do(t, s, http.MethodGet, "/stores/shop/cart?path=total", "")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `teddy_operations_total{kind="get",space="shop",status="success"}`) {
		t.Errorf("expected operation counter in metrics output, got %s", rec.Body.String())
	}
}

func TestOptionalRoutesDisabled(t *testing.T) {
	_, s := newServer(t, Config{})
	for _, target := range []string{"/metrics", "/sync"} {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404 for %s, got %d", target, rec.Code)
		}
	}
}

func TestHubRoute(t *testing.T) {
	called := false
	hub := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })
	_, s := newServer(t, Config{Hub: hub})
	s.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/sync?channel=x", nil))
	if !called {
		t.Error("expected hub to handle /sync")
	}
}

func TestRunStopsOnContextDone(t *testing.T) {
	_, s := newServer(t, Config{Address: "127.0.0.1:0"})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for shutdown")
	}
}
