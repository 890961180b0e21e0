package ledger

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Memory is a process-local ledger for development and tests. It evaluates
// queries with Query.Matches and keeps every action until Close.
type Memory struct {
	pageSize int

	mu      sync.RWMutex
	actions []Action
	nextID  int64
	closed  bool

	searches atomic.Uint64
}

func NewMemory(pageSize int) *Memory {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Memory{pageSize: pageSize}
}

func (m *Memory) Record(a Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.nextID++
	a.ID = m.nextID
	if a.Time.IsZero() {
		a.Time = time.Now()
	}
	m.actions = append(m.actions, a)
	return nil
}

func (m *Memory) Search(ctx context.Context, q Query, page int) (Results, error) {
	if q.IsEmpty() {
		return Results{}, ErrEmptyQuery
	}
	if page < 1 {
		page = 1
	}
	m.searches.Add(1)

	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return Results{}, ErrClosed
	}
	var matched []Action
	// Newest first: later appends win ties on time.
	for i := len(m.actions) - 1; i >= 0; i-- {
		if q.Matches(m.actions[i]) {
			matched = append(matched, m.actions[i])
		}
	}
	m.mu.RUnlock()
	if err := ctx.Err(); err != nil {
		return Results{}, err
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].Time.After(matched[j].Time) })

	res := Results{
		Page:  page,
		Total: len(matched),
		Pages: (len(matched) + m.pageSize - 1) / m.pageSize,
	}
	start := (page - 1) * m.pageSize
	if start >= len(matched) {
		return res, nil
	}
	end := start + m.pageSize
	if end > len(matched) {
		end = len(matched)
	}
	res.Actions = append([]Action(nil), matched[start:end]...)
	return res, nil
}

func (m *Memory) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{WrittenTotal: uint64(len(m.actions)), SearchesTotal: m.searches.Load()}
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.actions = nil
	return nil
}
