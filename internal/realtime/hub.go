package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/park285/cheese-arena/internal/domain"
	"github.com/park285/cheese-arena/internal/identity"
	"github.com/park285/cheese-arena/internal/msgcat"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/pvpchess"
	"github.com/park285/cheese-arena/internal/pvplobby"
	"github.com/park285/cheese-arena/pkg/chessdto"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

const (
	defaultPingInterval = 30 * time.Second
	resolveTimeout      = 5 * time.Second
	defaultResultsLimit = 20
)

// ResultLister reads a player's archived matches, newest first.
type ResultLister interface {
	ListResults(ctx context.Context, userID string, limit int) ([]domain.MatchRecord, error)
}

type Deps struct {
	Arena          *pvpchess.Arena
	Lobby          *pvplobby.Lobby
	Resolver       identity.Resolver
	Messages       *msgcat.Catalog
	Results        ResultLister // optional
	AllowedOrigins []string
	PingInterval   time.Duration
}

// Hub relays events between connected players and the match subsystem.
type Hub struct {
	arena    *pvpchess.Arena
	lobby    *pvplobby.Lobby
	resolver identity.Resolver
	msgs     *msgcat.Catalog
	results  ResultLister
	origins  []string
	ping     time.Duration

	mu     sync.RWMutex
	byUser map[string]map[string]*session // userID -> sessionID -> session
}

func NewHub(d Deps) *Hub {
	h := &Hub{
		arena:    d.Arena,
		lobby:    d.Lobby,
		resolver: d.Resolver,
		msgs:     d.Messages,
		results:  d.Results,
		origins:  d.AllowedOrigins,
		ping:     d.PingInterval,
		byUser:   make(map[string]map[string]*session),
	}
	if h.ping <= 0 {
		h.ping = defaultPingInterval
	}
	h.lobby.OnMatched(h.notifyMatched)
	h.arena.OnMoved(h.notifyMoved)
	h.arena.OnEnded(h.notifyEnded)
	return h
}

// Handler serves the websocket endpoint and the read-only REST endpoints.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", h.serveWS)
	mux.HandleFunc("GET /matches/{id}", h.serveMatch)
	mux.HandleFunc("GET /lobby", h.serveLobby)
	mux.HandleFunc("GET /players/{id}/results", h.serveResults)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	origins := h.origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})
	return c.Handler(mux)
}

func (h *Hub) serveMatch(w http.ResponseWriter, r *http.Request) {
	m, err := h.arena.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		kind := errorKind(err)
		status := http.StatusInternalServerError
		if kind == chessdto.ErrMatchNotFound {
			status = http.StatusNotFound
		}
		writeJSON(w, status, chessdto.DomainError{Kind: kind, Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, matchState(m, h.arena))
}

func (h *Hub) serveLobby(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, chessdto.LobbyStatus{Waiting: h.lobby.Len()})
}

func (h *Hub) serveResults(w http.ResponseWriter, r *http.Request) {
	if h.results == nil {
		writeJSON(w, http.StatusServiceUnavailable, chessdto.DomainError{
			Kind:    chessdto.ErrPersistenceUnavailable,
			Message: "results archive disabled",
		})
		return
	}
	limit := defaultResultsLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, chessdto.DomainError{Kind: chessdto.ErrBadRequest, Message: "invalid limit", Detail: raw})
			return
		}
		limit = n
	}
	userID := r.PathValue("id")
	recs, err := h.results.ListResults(r.Context(), userID, limit)
	if err != nil {
		if errors.Is(err, pvpchess.ErrInvalidArgs) {
			writeJSON(w, http.StatusBadRequest, chessdto.DomainError{Kind: chessdto.ErrBadRequest, Message: err.Error()})
			return
		}
		obslog.L().Error("results_list_error", zap.String("user_id", userID), zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, chessdto.DomainError{Kind: chessdto.ErrPersistenceUnavailable, Message: err.Error()})
		return
	}
	out := make([]chessdto.ResultView, len(recs))
	for i, rec := range recs {
		out[i] = resultView(rec)
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func bearerToken(r *http.Request) string {
	if t := strings.TrimSpace(r.URL.Query().Get("token")); t != "" {
		return t
	}
	auth := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return ""
}

func (h *Hub) register(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.byUser[s.profile.UserID]
	if set == nil {
		set = make(map[string]*session)
		h.byUser[s.profile.UserID] = set
	}
	set[s.id] = s
}

// unregister removes s and reports whether it was the user's last session.
func (h *Hub) unregister(s *session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.byUser[s.profile.UserID]
	delete(set, s.id)
	if len(set) == 0 {
		delete(h.byUser, s.profile.UserID)
		return true
	}
	return false
}

// Connected reports how many sessions userID has open.
func (h *Hub) Connected(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[userID])
}

func (h *Hub) sendUser(userID, typ string, payload any) {
	env, err := chessdto.NewEnvelope(typ, payload)
	if err != nil {
		obslog.L().Error("ws_encode_error", zap.String("type", typ), zap.Error(err))
		return
	}
	h.mu.RLock()
	targets := make([]*session, 0, len(h.byUser[userID]))
	for _, s := range h.byUser[userID] {
		targets = append(targets, s)
	}
	h.mu.RUnlock()
	for _, s := range targets {
		s.send(env)
	}
}

func (h *Hub) broadcast(m *pvpchess.Match, typ string, payload any) {
	h.sendUser(m.Player1.ID, typ, payload)
	h.sendUser(m.Player2.ID, typ, payload)
}

func (h *Hub) notifyMatched(m *pvpchess.Match) {
	for _, p := range []pvpchess.Player{m.Player1, m.Player2} {
		color, _ := m.ColorOf(p.ID)
		opp := m.Opponent(p.ID)
		oppColor, _ := m.ColorOf(opp.ID)
		h.sendUser(p.ID, chessdto.TypeMatched, chessdto.Matched{
			MatchID:       m.ID,
			Opponent:      playerView(opp, oppColor),
			AssignedColor: string(color),
			Status:        string(m.Status),
		})
	}
}

func (h *Hub) notifyMoved(m *pvpchess.Match, mv pvpchess.Move) {
	h.broadcast(m, chessdto.TypeMoveApplied, chessdto.MoveApplied{
		MatchID:     m.ID,
		Ply:         mv.Ply,
		Move:        mv.Notation(),
		Mover:       string(mv.Color),
		Board:       mv.Board.Placement(),
		NextTurn:    string(m.Turn),
		Status:      string(m.Status),
		RemainingMs: h.arena.Remaining(m).Milliseconds(),
	})
}

func (h *Hub) notifyEnded(m *pvpchess.Match) {
	h.broadcast(m, chessdto.TypeMatchEnded, chessdto.MatchEnded{
		MatchID: m.ID,
		Status:  string(m.Status),
		Winner:  string(m.Winner),
		Reason:  m.Reason,
		Message: h.endedText(m),
	})
}

func (h *Hub) endedText(m *pvpchess.Match) string {
	key := "ended." + string(m.Status)
	if m.Status == pvpchess.StatusCancelled && m.Reason == "stale" && m.EndedBy == "" {
		key = "ended.stale"
	}
	winner := ""
	if m.Winner.Valid() {
		winner = string(m.Winner) + " (" + m.PlayerOf(m.Winner).Name + ")"
	}
	by := ""
	if c, ok := m.ColorOf(m.EndedBy); ok {
		by = m.PlayerOf(c).Name
	}
	cfg := h.arena.Config()
	return h.msgs.Text(key, map[string]any{
		"Winner": winner,
		"By":     by,
		"Reason": m.Reason,
		"Budget": cfg.MatchBudget.String(),
		"Window": cfg.StalenessWindow.String(),
	}, string(m.Status))
}

func (h *Hub) rejection(matchID string, err error) chessdto.MoveRejected {
	kind := errorKind(err)
	detail := errorDetail(err)
	return chessdto.MoveRejected{
		MatchID: matchID,
		Kind:    kind,
		Detail:  detail,
		Message: h.msgs.Text("rejected."+string(kind), map[string]any{"Detail": detail}, err.Error()),
	}
}

func (h *Hub) errorEvent(err error) chessdto.DomainError {
	kind := errorKind(err)
	detail := errorDetail(err)
	return chessdto.DomainError{
		Kind:    kind,
		Detail:  detail,
		Message: h.msgs.Text("rejected."+string(kind), map[string]any{"Detail": detail}, err.Error()),
	}
}

func opContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, 10*time.Second)
}

// CloseAll disconnects every session with a going-away status.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	all := make([]*session, 0, len(h.byUser))
	for _, set := range h.byUser {
		for _, s := range set {
			all = append(all, s)
		}
	}
	h.mu.RUnlock()
	for _, s := range all {
		s.close(websocket.StatusGoingAway, "server shutdown")
	}
}
