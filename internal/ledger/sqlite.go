package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/df-mc/dragonfly/server/block/cube"
	_ "modernc.org/sqlite"
)

const DefaultPageSize = 8

type Options struct {
	PageSize  int
	QueueSize int
	Logger    *log.Logger
}

type Stats struct {
	QueueDepth    int
	QueueCapacity int
	WrittenTotal  uint64
	DroppedTotal  uint64
	SearchesTotal uint64
	Searching     int64
}

// Store is the SQLite backed ledger. Writes are queued and applied by a single
// writer goroutine in batched transactions; searches read directly.
type Store struct {
	db       *sql.DB
	pageSize int
	log      *log.Logger

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once
	// guards ch against sends after close
	mu     sync.RWMutex
	closed atomic.Bool

	written   atomic.Uint64
	dropped   atomic.Uint64
	searches  atomic.Uint64
	searching atomic.Int64
}

type req struct {
	action Action
	// non-nil for a sync barrier
	done chan struct{}
}

func OpenSQLite(path string, opts Options) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 65536
	}
	s := &Store{
		db:       db,
		pageSize: opts.PageSize,
		log:      opts.Logger,
		ch:       make(chan req, opts.QueueSize),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS actions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			time_ms INTEGER NOT NULL,
			action TEXT NOT NULL,
			world TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			object TEXT NOT NULL,
			old_object TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL,
			source_name TEXT NOT NULL DEFAULT '',
			extra TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS idx_actions_pos_time ON actions(world, x, z, y, time_ms);`,
		`CREATE INDEX IF NOT EXISTS idx_actions_time ON actions(time_ms);`,
		`CREATE INDEX IF NOT EXISTS idx_actions_source_time ON actions(source_name, time_ms);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) PageSize() int { return s.pageSize }

func (s *Store) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed.Store(true)
		close(s.ch)
		s.mu.Unlock()
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// Record queues an action. When the writer falls behind the action is dropped
// and counted; the JSONL audit log stays the source of truth.
func (s *Store) Record(a Action) error {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed.Load() {
		return ErrClosed
	}
	select {
	case s.ch <- req{action: a}:
	default:
		s.dropped.Add(1)
	}
	return nil
}

// Sync blocks until every action queued before the call is committed.
func (s *Store) Sync(ctx context.Context) error {
	done := make(chan struct{})
	s.mu.RLock()
	if s.closed.Load() {
		s.mu.RUnlock()
		return ErrClosed
	}
	select {
	case s.ch <- req{done: done}:
	case <-ctx.Done():
		s.mu.RUnlock()
		return ctx.Err()
	}
	s.mu.RUnlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Busy reports whether a search may have to wait: writes are still queued or
// another search holds the connection.
func (s *Store) Busy() bool {
	return len(s.ch) > 0 || s.searching.Load() > 0
}

func (s *Store) Stats() Stats {
	return Stats{
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
		WrittenTotal:  s.written.Load(),
		DroppedTotal:  s.dropped.Load(),
		SearchesTotal: s.searches.Load(),
		Searching:     s.searching.Load(),
	}
}

// Search returns page (1-based) of the actions matching q, newest first.
func (s *Store) Search(ctx context.Context, q Query, page int) (Results, error) {
	if s.closed.Load() {
		return Results{}, ErrClosed
	}
	if q.IsEmpty() {
		return Results{}, ErrEmptyQuery
	}
	if page < 1 {
		page = 1
	}
	s.searches.Add(1)
	s.searching.Add(1)
	defer s.searching.Add(-1)

	where, args := buildWhere(q)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM actions`+where, args...).Scan(&total); err != nil {
		return Results{}, fmt.Errorf("count actions: %w", err)
	}
	res := Results{
		Page:  page,
		Total: total,
		Pages: (total + s.pageSize - 1) / s.pageSize,
	}
	if total == 0 {
		return res, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id,time_ms,action,world,x,y,z,object,old_object,source,source_name,extra FROM actions`+
			where+` ORDER BY time_ms DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, s.pageSize, (page-1)*s.pageSize)...)
	if err != nil {
		return Results{}, fmt.Errorf("search actions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			a       Action
			ms      int64
			x, y, z int
		)
		if err := rows.Scan(&a.ID, &ms, &a.Type, &a.World, &x, &y, &z, &a.Object, &a.OldObject, &a.Source, &a.SourceName, &a.Extra); err != nil {
			return Results{}, fmt.Errorf("scan action: %w", err)
		}
		a.Time = time.UnixMilli(ms).UTC()
		a.Pos = cube.Pos{x, y, z}
		res.Actions = append(res.Actions, a)
	}
	if err := rows.Err(); err != nil {
		return Results{}, err
	}
	return res, nil
}

func buildWhere(q Query) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if q.Bounds != nil {
		conds = append(conds, `x BETWEEN ? AND ?`, `y BETWEEN ? AND ?`, `z BETWEEN ? AND ?`)
		args = append(args,
			q.Bounds.Min[0], q.Bounds.Max[0],
			q.Bounds.Min[1], q.Bounds.Max[1],
			q.Bounds.Min[2], q.Bounds.Max[2])
	}
	if !q.After.IsZero() {
		conds = append(conds, `time_ms >= ?`)
		args = append(args, q.After.UnixMilli())
	}
	if !q.Before.IsZero() {
		conds = append(conds, `time_ms < ?`)
		args = append(args, q.Before.UnixMilli())
	}
	filter := func(expr string, set []Negatable[string]) {
		var allow []string
		for _, n := range set {
			if n.Allowed {
				allow = append(allow, "?")
				args = append(args, n.Value)
			}
		}
		if len(allow) > 0 {
			conds = append(conds, expr+` IN (`+strings.Join(allow, ",")+`)`)
		}
		var deny []string
		for _, n := range set {
			if !n.Allowed {
				deny = append(deny, "?")
				args = append(args, n.Value)
			}
		}
		if len(deny) > 0 {
			conds = append(conds, expr+` NOT IN (`+strings.Join(deny, ",")+`)`)
		}
	}
	filter(`world`, q.Worlds)
	filter(`action`, q.Actions)
	filter(`object`, q.Objects)
	filter(`(CASE WHEN source_name != '' THEN source_name ELSE source END)`, q.Sources)

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *Store) loop() {
	ctx := context.Background()

	insert, err := s.db.Prepare(`INSERT INTO actions(time_ms,action,world,x,y,z,object,old_object,source,source_name,extra) VALUES(?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		s.printf("ledger prepare insert: %v", err)
	}
	defer func() {
		if insert != nil {
			_ = insert.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			s.printf("ledger begin: %v", err)
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.printf("ledger commit: %v", err)
		} else {
			s.written.Add(uint64(opCount))
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		if r.done != nil {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil || insert == nil {
			s.dropped.Add(1)
			continue
		}
		a := r.action
		if a.Time.IsZero() {
			a.Time = time.Now()
		}
		if _, err := tx.Stmt(insert).Exec(
			a.Time.UnixMilli(),
			a.Type,
			a.World,
			a.Pos[0], a.Pos[1], a.Pos[2],
			a.Object,
			a.OldObject,
			a.Source,
			a.SourceName,
			a.Extra,
		); err != nil {
			s.printf("ledger insert: %v", err)
			s.dropped.Add(uint64(opCount) + 1)
			rollback()
			continue
		}
		opCount++
		// Commit as soon as the queue drains so searches see fresh actions and
		// do not wait on an open write transaction.
		if len(s.ch) == 0 || opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	commit()
}

func (s *Store) printf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}
