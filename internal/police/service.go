package police

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/google/uuid"

	"ledgerpolice.dipix.pw/internal/block"
	"ledgerpolice.dipix.pw/internal/config"
	"ledgerpolice.dipix.pw/internal/geom"
	"ledgerpolice.dipix.pw/internal/ledger"
)

// Source is whoever runs a police action and receives its output.
type Source interface {
	Name() string
	ID() uuid.UUID
	World() string
	Position() cube.Pos
	HasPermission(perm string) bool
	SendMessage(m Message)
}

// WorldReader reads block state from the host world.
type WorldReader interface {
	BlockState(ctx context.Context, world string, pos cube.Pos) (block.State, error)
}

// Searcher runs ledger queries.
type Searcher interface {
	Search(ctx context.Context, q ledger.Query, page int) (ledger.Results, error)
}

type busyReporter interface {
	Busy() bool
}

// LookupEvent describes one finished lookup.
type LookupEvent struct {
	ID      uuid.UUID    `json:"id"`
	Staff   string       `json:"staff"`
	StaffID uuid.UUID    `json:"staff_id"`
	World   string       `json:"world,omitempty"`
	Bounds  *geom.Region `json:"bounds,omitempty"`
	After   time.Time    `json:"after"`
	Results int          `json:"results"`
	At      time.Time    `json:"at"`
}

// LookupRecorder receives an event for every completed lookup.
type LookupRecorder interface {
	RecordLookup(ctx context.Context, ev LookupEvent) error
}

type Options struct {
	Logger   *log.Logger
	Recorder LookupRecorder
	Now      func() time.Time
}

type Service struct {
	flags  *Registry
	world  WorldReader
	ledger Searcher
	cfg    *config.Live
	rec    LookupRecorder
	log    *log.Logger
	now    func() time.Time

	mu        sync.Mutex
	lastQuery map[string]ledger.Query
	inflight  map[string]int

	wg sync.WaitGroup
}

func NewService(flags *Registry, world WorldReader, searcher Searcher, cfg *config.Live, opts Options) *Service {
	if flags == nil {
		flags = NewRegistry()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		flags:     flags,
		world:     world,
		ledger:    searcher,
		cfg:       cfg,
		rec:       opts.Recorder,
		log:       opts.Logger,
		now:       opts.Now,
		lastQuery: map[string]ledger.Query{},
		inflight:  map[string]int{},
	}
}

func (s *Service) Flags() *Registry { return s.flags }

func (s *Service) Config() config.Config { return s.cfg.Load() }

func (s *Service) Now() time.Time { return s.now() }

func (s *Service) IsPolicing(id uuid.UUID) bool { return s.flags.Contains(id) }

func (s *Service) On(src Source) {
	s.flags.On(src.ID())
	src.SendMessage(toggleMessage(true))
}

func (s *Service) Off(src Source) {
	s.flags.Off(src.ID())
	src.SendMessage(toggleMessage(false))
}

// Toggle flips policing mode for src and returns the new state.
func (s *Service) Toggle(src Source) bool {
	on := s.flags.Toggle(src.ID())
	src.SendMessage(toggleMessage(on))
	return on
}

// Forget drops all per-user state, used when src disconnects.
func (s *Service) Forget(src Source) {
	s.flags.Off(src.ID())
	s.mu.Lock()
	delete(s.lastQuery, src.Name())
	s.mu.Unlock()
}

// LastQuery returns the most recent query run for name.
func (s *Service) LastQuery(name string) (ledger.Query, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.lastQuery[name]
	return q, ok
}

// Wait blocks until every running lookup has delivered its output.
func (s *Service) Wait() { s.wg.Wait() }

// BlockQuery observes pos in world and builds the lookup covering it.
func (s *Service) BlockQuery(ctx context.Context, world string, pos cube.Pos) (ledger.Query, error) {
	state, err := s.world.BlockState(ctx, world, pos)
	if err != nil {
		return ledger.Query{}, err
	}
	region := ResolveBounds(Observation{Pos: pos, State: state})
	return BuildQuery(region, world, s.now(), s.cfg.Load().Police.MaxAge(), time.Time{}), nil
}

// Lookup runs a block lookup synchronously.
func (s *Service) Lookup(ctx context.Context, world string, pos cube.Pos) (ledger.Query, ledger.Results, error) {
	q, err := s.BlockQuery(ctx, world, pos)
	if err != nil {
		return ledger.Query{}, ledger.Results{}, err
	}
	res, err := s.ledger.Search(ctx, q, 1)
	return q, res, err
}

// PoliceBlock looks up pos in world for src without blocking the caller. The
// output arrives later through src.SendMessage.
func (s *Service) PoliceBlock(ctx context.Context, src Source, world string, pos cube.Pos) {
	s.spawn(func() {
		q, err := s.BlockQuery(ctx, world, pos)
		if err != nil {
			s.printf("police lookup user=%s world=%s pos=%s err=%v", src.Name(), world, geom.FormatPos(pos), err)
			src.SendMessage(msgFailed)
			return
		}
		s.run(ctx, src, q, headerForPos(*q.Bounds, geom.FormatPos(pos)))
	})
}

// Search runs a parameter search for src. The age ceiling is applied on top of
// any lower time bound in q.
func (s *Service) Search(ctx context.Context, src Source, q ledger.Query) error {
	if q.IsEmpty() {
		src.SendMessage(msgNoParams)
		return ledger.ErrEmptyQuery
	}
	q = ClampQuery(q, s.now(), s.cfg.Load().Police.MaxAge())
	s.spawn(func() { s.run(ctx, src, q, searchHeader) })
	return nil
}

func (s *Service) spawn(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

func (s *Service) run(ctx context.Context, src Source, q ledger.Query, header string) {
	name := src.Name()

	s.mu.Lock()
	s.lastQuery[name] = q
	running := s.inflight[name]
	s.inflight[name] = running + 1
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		if s.inflight[name] <= 1 {
			delete(s.inflight, name)
		} else {
			s.inflight[name]--
		}
		s.mu.Unlock()
	}()

	if running > 0 {
		src.SendMessage(msgInProgress)
	} else if b, ok := s.ledger.(busyReporter); ok && b.Busy() {
		src.SendMessage(msgBusy)
	}

	res, err := s.ledger.Search(ctx, q, 1)
	if err != nil {
		s.printf("police search user=%s err=%v", name, err)
		src.SendMessage(msgFailed)
		return
	}
	s.record(ctx, src, q, res)

	if res.Empty() {
		src.SendMessage(msgNoResults)
		return
	}
	for _, m := range FormatResults(header, res, s.now()) {
		src.SendMessage(m)
	}
}

func (s *Service) record(ctx context.Context, src Source, q ledger.Query, res ledger.Results) {
	ev := LookupEvent{
		ID:      uuid.New(),
		Staff:   src.Name(),
		StaffID: src.ID(),
		Bounds:  q.Bounds,
		After:   q.After,
		Results: res.Total,
		At:      s.now(),
	}
	if len(q.Worlds) == 1 && q.Worlds[0].Allowed {
		ev.World = q.Worlds[0].Value
	}
	s.printf("police lookup user=%s world=%s bounds=%v results=%d", ev.Staff, ev.World, q.Bounds, ev.Results)
	if s.rec == nil {
		return
	}
	if err := s.rec.RecordLookup(ctx, ev); err != nil {
		s.printf("police lookup event: %v", err)
	}
}

func (s *Service) printf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}
