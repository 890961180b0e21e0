package command

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/google/uuid"

	"ledgerpolice.dipix.pw/internal/block"
	"ledgerpolice.dipix.pw/internal/config"
	"ledgerpolice.dipix.pw/internal/ledger"
	"ledgerpolice.dipix.pw/internal/police"
)

type testSource struct {
	id    uuid.UUID
	pos   cube.Pos
	perms map[string]bool

	mu   sync.Mutex
	msgs []police.Message
}

func newTestSource(perms ...string) *testSource {
	s := &testSource{id: uuid.New(), pos: cube.Pos{100, 64, -20}, perms: map[string]bool{}}
	for _, p := range perms {
		s.perms[p] = true
	}
	return s
}

func (s *testSource) Name() string                   { return "alice" }
func (s *testSource) ID() uuid.UUID                  { return s.id }
func (s *testSource) World() string                  { return "minecraft:overworld" }
func (s *testSource) Position() cube.Pos             { return s.pos }
func (s *testSource) HasPermission(perm string) bool { return s.perms[perm] }

func (s *testSource) SendMessage(m police.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, m)
}

func (s *testSource) texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.msgs))
	for _, m := range s.msgs {
		out = append(out, m.Text)
	}
	return out
}

type airWorld struct{}

func (airWorld) BlockState(context.Context, string, cube.Pos) (block.State, error) {
	return block.Air, nil
}

type recordingSearcher struct {
	mu      sync.Mutex
	queries []ledger.Query
}

func (r *recordingSearcher) Search(_ context.Context, q ledger.Query, _ int) (ledger.Results, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, q)
	return ledger.Results{}, nil
}

func newTestService() (*police.Service, *recordingSearcher) {
	var c config.Config
	c.Police.FingerprintMaxAge = 86400
	c.Police.SearchMaxRange = 10
	s := &recordingSearcher{}
	now := time.Unix(1_800_000_000, 0)
	return police.NewService(nil, airWorld{}, s, config.NewLive(c), police.Options{Now: func() time.Time { return now }}), s
}

func TestDispatch_Toggle(t *testing.T) {
	svc, _ := newTestService()
	src := newTestSource(PermPolice)
	ctx := context.Background()

	for _, line := range []string{"police", "/police", "police on", "police off"} {
		if err := Dispatch(ctx, svc, src, line); err != nil {
			t.Fatalf("%q: %v", line, err)
		}
	}
	want := []string{"Police mode: on", "Police mode: off", "Police mode: on", "Police mode: off"}
	got := src.texts()
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("msgs=%v want=%v", got, want)
	}
}

func TestDispatch_Coordinates(t *testing.T) {
	svc, s := newTestService()
	src := newTestSource(PermPolice)

	if err := Dispatch(context.Background(), svc, src, "police -5 ~ ~2"); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	svc.Wait()
	if len(s.queries) != 1 {
		t.Fatalf("queries=%d", len(s.queries))
	}
	want := cube.Pos{-5, 64, -18}
	if got := s.queries[0].Bounds.Min; got != want {
		t.Fatalf("pos=%v want=%v", got, want)
	}
	if texts := src.texts(); len(texts) != 1 || texts[0] != "No results found" {
		t.Fatalf("msgs=%v", texts)
	}
}

func TestDispatch_BadUsage(t *testing.T) {
	svc, _ := newTestService()
	src := newTestSource(PermPolice)
	ctx := context.Background()

	cases := []string{"police 1 2", "police 1 two 3", "police on now"}
	for _, line := range cases {
		if err := Dispatch(ctx, svc, src, line); err == nil {
			t.Fatalf("%q: expected error", line)
		}
	}
	if err := Dispatch(ctx, svc, src, "ledger"); !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("err=%v want ErrUnknownCommand", err)
	}
	if err := Dispatch(ctx, svc, src, `police "unterminated`); err == nil {
		t.Fatalf("expected tokenizer error")
	}
}

func TestDispatch_Permissions(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	nobody := newTestSource()
	if err := Dispatch(ctx, svc, nobody, "police on"); !errors.Is(err, ErrNoPermission) {
		t.Fatalf("err=%v want ErrNoPermission", err)
	}
	if svc.IsPolicing(nobody.ID()) {
		t.Fatalf("denied command changed state")
	}

	staff := newTestSource(PermPolice)
	if err := Dispatch(ctx, svc, staff, "police search source:mallory"); !errors.Is(err, ErrNoPermission) {
		t.Fatalf("err=%v want ErrNoPermission", err)
	}
}

func TestDispatch_Search(t *testing.T) {
	svc, s := newTestService()
	src := newTestSource(PermPolice, PermSearch)

	if err := Dispatch(context.Background(), svc, src, "police search source:@mallory !action:block-place range:3"); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	svc.Wait()
	if len(s.queries) != 1 {
		t.Fatalf("queries=%d", len(s.queries))
	}
	q := s.queries[0]
	if len(q.Sources) != 1 || q.Sources[0] != ledger.Allow("mallory") {
		t.Fatalf("sources=%v", q.Sources)
	}
	if len(q.Actions) != 1 || q.Actions[0] != ledger.Deny(ledger.ActionBlockPlace) {
		t.Fatalf("actions=%v", q.Actions)
	}
	if q.Bounds == nil || q.Bounds.Min != (cube.Pos{97, 61, -23}) || q.Bounds.Max != (cube.Pos{103, 67, -17}) {
		t.Fatalf("bounds=%v", q.Bounds)
	}
	if want := svc.Now().Add(-24 * time.Hour); !q.After.Equal(want) {
		t.Fatalf("after=%v want=%v", q.After, want)
	}

	var pe *ledger.ParamError
	if err := Dispatch(context.Background(), svc, src, "police search range:50"); !errors.As(err, &pe) {
		t.Fatalf("err=%v want ParamError", err)
	}
	if err := Dispatch(context.Background(), svc, src, "police search"); err == nil {
		t.Fatalf("search without params must fail")
	}
}
