package realtime

import (
	"errors"
	"strings"

	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/pvpchess"
	"github.com/park285/cheese-arena/pkg/chessdto"
	"go.uber.org/zap"
)

var errBadPayload = errors.New("malformed payload")

const defaultEndReason = "resigned"

func (h *Hub) dispatch(s *session, env chessdto.Envelope) {
	ctx, cancel := opContext(s.ctx)
	defer cancel()
	uid := s.profile.UserID

	switch env.Type {
	case chessdto.TypeJoinLobby:
		m, err := h.lobby.Announce(ctx, s.player())
		if err != nil {
			s.reply(chessdto.TypeError, h.errorEvent(err))
			return
		}
		if m != nil {
			return // 매칭 알림은 OnMatched 훅에서 양쪽에 전송
		}
		if e, ok := h.lobby.Lookup(uid); ok {
			s.reply(chessdto.TypeQueued, chessdto.Queued{Waiting: h.lobby.Len(), Tolerance: e.Tolerance})
		}

	case chessdto.TypeLeaveLobby:
		h.lobby.Dequeue(uid)
		s.reply(chessdto.TypeQueued, chessdto.Queued{Waiting: h.lobby.Len()})

	case chessdto.TypeJoinMatch:
		var in chessdto.MatchRef
		if !h.decode(s, env, &in) {
			return
		}
		m, err := h.arena.Get(ctx, in.MatchID)
		if err == nil && !m.IsParticipant(uid) {
			err = pvpchess.ErrNotParticipant
		}
		if err != nil {
			s.reply(chessdto.TypeError, h.errorEvent(err))
			return
		}
		s.reply(chessdto.TypeMatchState, matchState(m, h.arena))

	case chessdto.TypeStartMatch:
		var in chessdto.MatchRef
		if !h.decode(s, env, &in) {
			return
		}
		m, err := h.arena.Start(ctx, in.MatchID, uid)
		if err != nil {
			s.reply(chessdto.TypeError, h.errorEvent(err))
			return
		}
		h.broadcast(m, chessdto.TypeMatchState, matchState(m, h.arena))

	case chessdto.TypeSubmitMove:
		var in chessdto.SubmitMove
		if !h.decode(s, env, &in) {
			return
		}
		from, to, err := parseSubmitMove(in)
		if err == nil {
			_, _, err = h.arena.ApplyMove(ctx, in.MatchID, uid, from, to)
		}
		if err != nil {
			obslog.L().Debug("ws_move_rejected", zap.String("match_id", in.MatchID), zap.String("user_id", uid), zap.Error(err))
			s.reply(chessdto.TypeMoveRejected, h.rejection(in.MatchID, err))
		}

	case chessdto.TypeEndMatch:
		var in chessdto.EndMatch
		if !h.decode(s, env, &in) {
			return
		}
		reason := strings.TrimSpace(in.Reason)
		if reason == "" {
			reason = defaultEndReason
		}
		if _, err := h.arena.Cancel(ctx, in.MatchID, uid, reason); err != nil {
			s.reply(chessdto.TypeError, h.errorEvent(err))
		}

	default:
		s.reply(chessdto.TypeError, chessdto.DomainError{
			Kind:    chessdto.ErrBadRequest,
			Message: "unknown event type",
			Detail:  env.Type,
		})
	}
}

func (h *Hub) decode(s *session, env chessdto.Envelope, dst any) bool {
	if err := env.Decode(dst); err != nil {
		s.reply(chessdto.TypeError, chessdto.DomainError{
			Kind:    chessdto.ErrBadRequest,
			Message: errBadPayload.Error(),
			Detail:  env.Type,
		})
		return false
	}
	return true
}
