package ws

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/google/uuid"

	"ledgerpolice.dipix.pw/internal/police"
	"ledgerpolice.dipix.pw/internal/protocol"
)

// session is one connected player. It is both the police command source and
// the world interaction actor.
type session struct {
	id    string
	name  string
	uuid  uuid.UUID
	perms map[string]bool
	out   chan []byte

	mu    sync.RWMutex
	world string
	pos   cube.Pos

	dropped atomic.Uint64
}

// offlineUUID derives a stable id for players that connect without one.
func offlineUUID(name string) uuid.UUID {
	return uuid.NewMD5(uuid.Nil, []byte("OfflinePlayer:"+name))
}

func (s *session) Name() string  { return s.name }
func (s *session) ID() uuid.UUID { return s.uuid }

func (s *session) World() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.world
}

func (s *session) Position() cube.Pos {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pos
}

func (s *session) moveTo(world string, pos cube.Pos) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.world = world
	s.pos = pos
}

func (s *session) HasPermission(perm string) bool { return s.perms[perm] }

func (s *session) permissions() []string {
	out := make([]string, 0, len(s.perms))
	for p, ok := range s.perms {
		if ok {
			out = append(out, p)
		}
	}
	return out
}

// SendMessage queues m for the writer. Output for a slow client is dropped
// rather than blocking the lookup that produced it.
func (s *session) SendMessage(m police.Message) {
	s.send(protocol.MessageMsg{
		Type:            protocol.TypeMessage,
		ProtocolVersion: protocol.Version,
		Level:           string(m.Level),
		Text:            m.Text,
	})
}

func (s *session) sendError(code, msg, forType string) {
	s.send(protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		Code:            code,
		Message:         msg,
		For:             forType,
	})
}

func (s *session) send(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case s.out <- b:
	default:
		s.dropped.Add(1)
	}
}
