package realtime

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/park285/cheese-arena/internal/domain"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/pvpchess"
	"github.com/park285/cheese-arena/pkg/chessdto"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	sendBuffer   = 64
	writeTimeout = 5 * time.Second
	readLimit    = 16 << 10
)

// session is one websocket connection of an identified user. A single writer
// goroutine owns all writes to conn.
type session struct {
	id      string
	profile *domain.Profile
	conn    *websocket.Conn
	hub     *Hub

	out       chan chessdto.Envelope
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	rctx, cancel := context.WithTimeout(r.Context(), resolveTimeout)
	profile, err := h.resolver.Resolve(rctx, token)
	cancel()
	if err != nil {
		obslog.L().Info("ws_unauthorized", zap.String("remote", r.RemoteAddr), zap.Error(err))
		writeJSON(w, http.StatusUnauthorized, chessdto.DomainError{Kind: chessdto.ErrBadRequest, Message: "unauthorized"})
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  originPatterns(h.origins),
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		obslog.L().Warn("ws_accept_error", zap.String("user_id", profile.UserID), zap.Error(err))
		return
	}
	conn.SetReadLimit(readLimit)

	id, err := gonanoid.New()
	if err != nil {
		_ = conn.Close(websocket.StatusInternalError, "session id")
		return
	}
	ctx, stop := context.WithCancel(context.Background())
	s := &session{
		id:      id,
		profile: profile,
		conn:    conn,
		hub:     h,
		out:     make(chan chessdto.Envelope, sendBuffer),
		ctx:     ctx,
		cancel:  stop,
	}
	h.register(s)
	obslog.L().Info("ws_connect", zap.String("session_id", s.id), zap.String("user_id", profile.UserID))

	go s.writeLoop(h.ping)
	s.readLoop()

	s.close(websocket.StatusNormalClosure, "bye")
	if h.unregister(s) && h.lobby.Dequeue(profile.UserID) {
		obslog.L().Info("lobby_dequeue_on_disconnect", zap.String("user_id", profile.UserID))
	}
	obslog.L().Info("ws_disconnect", zap.String("session_id", s.id), zap.String("user_id", profile.UserID))
}

// originPatterns converts allowed origins into host patterns. A wildcard
// disables the origin check.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			return []string{"*"}
		}
		out = append(out, strings.TrimPrefix(strings.TrimPrefix(o, "https://"), "http://"))
	}
	return out
}

func (s *session) readLoop() {
	for {
		var env chessdto.Envelope
		if err := wsjson.Read(s.ctx, s.conn, &env); err != nil {
			if status := websocket.CloseStatus(err); status == -1 && !errors.Is(err, context.Canceled) {
				obslog.L().Debug("ws_read_error", zap.String("session_id", s.id), zap.Error(err))
			}
			return
		}
		s.hub.dispatch(s, env)
	}
}

func (s *session) writeLoop(ping time.Duration) {
	t := time.NewTicker(ping)
	defer t.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case env := <-s.out:
			ctx, cancel := context.WithTimeout(s.ctx, writeTimeout)
			err := wsjson.Write(ctx, s.conn, env)
			cancel()
			if err != nil {
				s.close(websocket.StatusGoingAway, "write failure")
				return
			}
		case <-t.C:
			ctx, cancel := context.WithTimeout(s.ctx, 3*time.Second)
			err := s.conn.Ping(ctx)
			cancel()
			if err != nil {
				s.close(websocket.StatusGoingAway, "ping failure")
				return
			}
		}
	}
}

// send queues env without blocking. A client that cannot keep up is dropped.
func (s *session) send(env chessdto.Envelope) {
	select {
	case <-s.ctx.Done():
	case s.out <- env:
	default:
		obslog.L().Warn("ws_slow_consumer", zap.String("session_id", s.id), zap.String("user_id", s.profile.UserID))
		s.close(websocket.StatusPolicyViolation, "slow consumer")
	}
}

func (s *session) reply(typ string, payload any) {
	env, err := chessdto.NewEnvelope(typ, payload)
	if err != nil {
		obslog.L().Error("ws_encode_error", zap.String("type", typ), zap.Error(err))
		return
	}
	s.send(env)
}

func (s *session) close(code websocket.StatusCode, reason string) {
	s.closeOnce.Do(func() {
		s.cancel()
		_ = s.conn.Close(code, reason)
	})
}

func (s *session) player() pvpchess.Player {
	return pvpchess.Player{ID: s.profile.UserID, Name: s.profile.DisplayName(), Skill: s.profile.Skill}
}
