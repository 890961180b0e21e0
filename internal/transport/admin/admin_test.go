package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/google/uuid"

	"ledgerpolice.dipix.pw/internal/block"
	"ledgerpolice.dipix.pw/internal/config"
	"ledgerpolice.dipix.pw/internal/ledger"
	"ledgerpolice.dipix.pw/internal/police"
	"ledgerpolice.dipix.pw/internal/world"
)

func newTestRouter(t *testing.T, enableAdmin bool) (http.Handler, *police.Service) {
	t.Helper()
	store, err := ledger.OpenSQLite(filepath.Join(t.TempDir(), "ledger.sqlite"), ledger.Options{})
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	worlds := world.NewWorlds(store)
	w := worlds.GetOrCreate("minecraft:overworld")
	bob := world.PlayerActor("bob")
	w.SetBlock(bob, cube.Pos{10, 64, 10}, block.MustParse("minecraft:chest[facing=north,type=right]"))
	w.SetBlock(bob, cube.Pos{11, 64, 10}, block.MustParse("minecraft:chest[facing=north,type=left]"))
	w.SetBlock(bob, cube.Pos{12, 64, 10}, block.MustParse("minecraft:stone"))
	if err := store.Sync(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}

	var c config.Config
	c.Police.FingerprintMaxAge = 3600
	c.Police.SearchMaxRange = 8
	svc := police.NewService(nil, worlds, store, config.NewLive(c), police.Options{})
	return NewRouter(Deps{Police: svc, Ledger: store, Sessions: func() int64 { return 3 }, EnableAdmin: enableAdmin}), svc
}

func get(h http.Handler, path, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAdmin_LookupCoversDoubleChest(t *testing.T) {
	h, _ := newTestRouter(t, true)

	rec := get(h, "/admin/v1/lookup/minecraft:overworld/10/64/10", "127.0.0.1:5555")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var body struct {
		OK      bool           `json:"ok"`
		Query   ledger.Query   `json:"query"`
		Results ledger.Results `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.OK || body.Results.Total != 2 {
		t.Fatalf("ok=%v total=%d", body.OK, body.Results.Total)
	}
	for _, a := range body.Results.Actions {
		if a.Object != block.ChestID || a.SourceName != "bob" {
			t.Fatalf("action=%+v", a)
		}
	}
}

func TestAdmin_Errors(t *testing.T) {
	h, _ := newTestRouter(t, true)

	if rec := get(h, "/admin/v1/lookup/minecraft:overworld/10/64/10", "8.8.8.8:1234"); rec.Code != http.StatusForbidden {
		t.Fatalf("non-loopback status=%d", rec.Code)
	}
	if rec := get(h, "/admin/v1/lookup/minecraft:the_end/0/0/0", "127.0.0.1:1"); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown world status=%d body=%s", rec.Code, rec.Body.String())
	}
	if rec := get(h, "/admin/v1/lookup/minecraft:overworld/a/0/0", "[::1]:1"); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad coordinate status=%d", rec.Code)
	}

	disabled, _ := newTestRouter(t, false)
	if rec := get(disabled, "/admin/v1/policing", "127.0.0.1:1"); rec.Code != http.StatusNotFound {
		t.Fatalf("disabled admin status=%d", rec.Code)
	}
	if rec := get(disabled, "/healthz", "8.8.8.8:1"); rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz status=%d body=%q", rec.Code, rec.Body.String())
	}
}

func TestAdmin_PolicingAndMetrics(t *testing.T) {
	h, svc := newTestRouter(t, true)
	id := uuid.New()
	svc.Flags().On(id)

	rec := get(h, "/admin/v1/policing", "127.0.0.1:1")
	var body struct {
		Count int      `json:"count"`
		Users []string `json:"users"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 1 || body.Users[0] != id.String() {
		t.Fatalf("body=%+v", body)
	}

	rec = get(h, "/metrics", "8.8.8.8:1")
	out := rec.Body.String()
	for _, line := range []string{
		"ledgerpolice_policing_users 1\n",
		"ledgerpolice_sessions 3\n",
		"ledgerpolice_ledger_written_total 3\n",
		"# TYPE ledgerpolice_ledger_dropped_total counter\n",
	} {
		if !strings.Contains(out, line) {
			t.Fatalf("metrics missing %q:\n%s", line, out)
		}
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:80": true,
		"[::1]:80":     true,
		"10.0.0.1:80":  false,
		"garbage":      false,
	}
	for in, want := range cases {
		if got := isLoopbackRemote(in); got != want {
			t.Fatalf("isLoopbackRemote(%q)=%v want=%v", in, got, want)
		}
	}
}
