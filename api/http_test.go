package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/beka-birhanu/keymaze/game"
	"github.com/beka-birhanu/keymaze/service"
	"github.com/beka-birhanu/keymaze/service/i"
)

type fakeSession struct {
	keys []game.Cell
	over bool
}

func (f *fakeSession) Serve(ctx context.Context) error { return nil }

func (f *fakeSession) ToggleKey(ctx context.Context, row, col int) (bool, error) {
	if f.over {
		return false, service.ErrSessionOver
	}
	if row > 10 {
		return false, service.ErrCellOutOfMaze
	}
	f.keys = append(f.keys, game.Cell{Row: row, Col: col})
	return true, nil
}

func (f *fakeSession) Status(ctx context.Context) (i.SessionStatus, error) {
	return i.SessionStatus{Keys: f.keys, Connections: 2}, nil
}

func (f *fakeSession) Metrics() map[string]any {
	return map[string]any{"messages_sent": 7}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthzAndMetrics(t *testing.T) {
	h := NewHandler(&fakeSession{}, nil, nil)

	if rec := do(t, h, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("/healthz = %d %q", rec.Code, rec.Body.String())
	}

	rec := do(t, h, http.MethodGet, "/metrics", "")
	var m map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&m); err != nil {
		t.Fatalf("decoding metrics: %v", err)
	}
	if m["messages_sent"] != float64(7) {
		t.Fatalf("metrics = %v", m)
	}
}

func TestAdminKeys(t *testing.T) {
	s := &fakeSession{}
	h := NewHandler(s, nil, nil)

	rec := do(t, h, http.MethodPost, "/admin/keys", `{"row":1,"col":2}`)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"added":true`) {
		t.Fatalf("POST /admin/keys = %d %q", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodGet, "/admin/keys", "")
	var st i.SessionStatus
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatalf("decoding status: %v", err)
	}
	if len(st.Keys) != 1 || st.Keys[0] != (game.Cell{Row: 1, Col: 2}) || st.Connections != 2 {
		t.Fatalf("status = %+v", st)
	}

	if rec := do(t, h, http.MethodPost, "/admin/keys", `{"row":1}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing col answered %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/admin/keys", `{"row":99,"col":0}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("out of maze answered %d", rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, "/admin/keys", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("DELETE answered %d", rec.Code)
	}

	s.over = true
	if rec := do(t, h, http.MethodPost, "/admin/keys", `{"row":0,"col":0}`); rec.Code != http.StatusGone {
		t.Fatalf("toggle after session end answered %d", rec.Code)
	}
}

func TestWebSocketMount(t *testing.T) {
	called := false
	ws := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })
	h := NewHandler(&fakeSession{}, ws, nil)
	do(t, h, http.MethodGet, "/ws", "")
	if !called {
		t.Fatalf("/ws did not reach the websocket handler")
	}
}
