package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"ledgerpolice.dipix.pw/internal/command"
	"ledgerpolice.dipix.pw/internal/config"
	"ledgerpolice.dipix.pw/internal/geom"
	"ledgerpolice.dipix.pw/internal/police"
	"ledgerpolice.dipix.pw/internal/protocol"
	"ledgerpolice.dipix.pw/internal/world"
)

type Server struct {
	police *police.Service
	worlds *world.Worlds
	cfg    *config.Live
	log    *log.Logger

	upgrader websocket.Upgrader

	nextID   atomic.Uint64
	sessions atomic.Int64
}

func NewServer(svc *police.Service, worlds *world.Worlds, cfg *config.Live, logger *log.Logger) *Server {
	return &Server{
		police: svc,
		worlds: worlds,
		cfg:    cfg,
		log:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// Sessions reports the number of connected players.
func (s *Server) Sessions() int64 { return s.sessions.Load() }

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sess := s.handshake(conn)
		if sess == nil {
			return
		}
		s.sessions.Add(1)
		defer s.sessions.Add(-1)
		s.printf("join name=%s uuid=%s world=%s", sess.name, sess.uuid, sess.World())

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-sess.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			s.handle(ctx, sess, msg)
		}

		s.police.Forget(sess)
		s.printf("leave name=%s dropped=%d", sess.name, sess.dropped.Load())
	}
}

func (s *Server) handle(ctx context.Context, sess *session, msg []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		sess.sendError(protocol.ErrProtoBadRequest, "bad json", "")
		return
	}
	if base.ProtocolVersion != protocol.Version {
		sess.sendError(protocol.ErrProtoVersion, "bad protocol_version", base.Type)
		return
	}
	switch base.Type {
	case protocol.TypeCommand, protocol.TypeAttackBlock, protocol.TypeUseBlock:
	default:
		sess.sendError(protocol.ErrProtoBadRequest, "unexpected message type", base.Type)
		return
	}
	if err := protocol.Validate(base.Type, msg); err != nil {
		sess.sendError(protocol.ErrProtoBadRequest, err.Error(), base.Type)
		return
	}

	switch base.Type {
	case protocol.TypeCommand:
		var m protocol.CommandMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			sess.sendError(protocol.ErrProtoBadRequest, "bad command", base.Type)
			return
		}
		if err := command.Dispatch(ctx, s.police, sess, m.Line); err != nil {
			sess.sendError(commandErrorCode(err), err.Error(), base.Type)
		}
	case protocol.TypeAttackBlock:
		var m protocol.AttackBlockMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			sess.sendError(protocol.ErrProtoBadRequest, "bad attack", base.Type)
			return
		}
		w, ok := s.eventWorld(sess, m.World)
		if !ok {
			sess.sendError(protocol.ErrWorldNotFound, "unknown world", base.Type)
			return
		}
		face := cube.FaceUp
		if m.Face != "" {
			face, _ = geom.ParseFace(m.Face)
		}
		s.worlds.AttackBlock(ctx, world.AttackBlock{Player: sess, World: w, Pos: cube.Pos(m.Pos), Face: face})
	case protocol.TypeUseBlock:
		var m protocol.UseBlockMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			sess.sendError(protocol.ErrProtoBadRequest, "bad use", base.Type)
			return
		}
		w, ok := s.eventWorld(sess, m.World)
		if !ok {
			sess.sendError(protocol.ErrWorldNotFound, "unknown world", base.Type)
			return
		}
		face, _ := geom.ParseFace(m.Face)
		s.worlds.UseBlock(ctx, world.UseBlock{
			Player:   sess,
			World:    w,
			Pos:      cube.Pos(m.Pos),
			Face:     face,
			MainHand: m.Hand != protocol.HandOff,
			Item:     m.Item,
		})
	}
}

func (s *Server) eventWorld(sess *session, id string) (string, bool) {
	if id == "" {
		return sess.World(), true
	}
	if _, ok := s.worlds.Get(id); !ok {
		return "", false
	}
	return id, true
}

func commandErrorCode(err error) string {
	switch {
	case errors.Is(err, command.ErrNoPermission):
		return protocol.ErrNoPermission
	case errors.Is(err, command.ErrUnknownCommand):
		return protocol.ErrUnknownCommand
	}
	return protocol.ErrBadRequest
}

func (s *Server) handshake(conn *websocket.Conn) *session {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closeWith(conn, "expected HELLO")
		return nil
	}
	if base.ProtocolVersion != protocol.Version {
		closeWith(conn, "bad protocol_version")
		return nil
	}
	if err := protocol.Validate(protocol.TypeHello, msg); err != nil {
		closeWith(conn, "bad HELLO")
		return nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil
	}

	id := offlineUUID(hello.Name)
	if hello.UUID != "" {
		if id, err = uuid.Parse(hello.UUID); err != nil {
			closeWith(conn, "bad uuid")
			return nil
		}
	}

	cfg := s.cfg.Load()
	worldID := strings.TrimSpace(hello.World)
	if worldID == "" {
		worldID = cfg.Server.DefaultWorld
	}
	s.worlds.GetOrCreate(worldID)

	maxQ := hello.MaxQueue
	if maxQ <= 0 {
		maxQ = 32
	}
	if maxQ > 256 {
		maxQ = 256
	}

	sess := &session{
		id:    fmt.Sprintf("S%d", s.nextID.Add(1)),
		name:  hello.Name,
		uuid:  id,
		perms: map[string]bool{},
		out:   make(chan []byte, maxQ),
		world: worldID,
		pos:   cube.Pos(hello.Pos),
	}
	if cfg.IsOperator(hello.Name) {
		sess.perms[command.PermPolice] = true
		sess.perms[command.PermSearch] = true
	}

	perms := sess.permissions()
	sort.Strings(perms)
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sess.id,
		UUID:            id.String(),
		World:           worldID,
		Permissions:     perms,
	}
	if err := writeJSON(conn, welcome); err != nil {
		return nil
	}
	return sess
}

func closeWith(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

func (s *Server) printf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}
