package pvpchess

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/park285/cheese-arena/internal/chess"
	"github.com/park285/cheese-arena/internal/obslog"
	"go.uber.org/zap"
)

const (
	DefaultMatchBudget       = 5 * time.Minute
	DefaultStalenessWindow   = 10 * time.Minute
	DefaultTerminalRetention = 10 * time.Minute
	defaultWriteBuffer       = 1024
	writeTimeout             = 5 * time.Second
)

// ResultSink receives every match that reached a terminal state.
type ResultSink interface {
	SaveResult(ctx context.Context, m *Match) error
}

type Config struct {
	MatchBudget       time.Duration
	StalenessWindow   time.Duration
	TerminalRetention time.Duration
	WriteBuffer       int
}

func (c Config) withDefaults() Config {
	if c.MatchBudget <= 0 {
		c.MatchBudget = DefaultMatchBudget
	}
	if c.StalenessWindow <= 0 {
		c.StalenessWindow = DefaultStalenessWindow
	}
	if c.TerminalRetention <= 0 {
		c.TerminalRetention = DefaultTerminalRetention
	}
	if c.WriteBuffer <= 0 {
		c.WriteBuffer = defaultWriteBuffer
	}
	return c
}

// handle serialises every mutation of one match.
type handle struct {
	mu            sync.Mutex
	match         *Match
	dirty         atomic.Bool
	resultPending atomic.Bool
}

type Option func(*Arena)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Arena) { a.now = now }
}

// WithColorPicker replaces the random color assignment for player1.
func WithColorPicker(pick func() chess.Color) Option {
	return func(a *Arena) { a.pickColor = pick }
}

// Arena owns every live match, indexed by match ID. Different matches never
// share a lock; one match is mutated by at most one caller at a time.
type Arena struct {
	mu      sync.RWMutex
	matches map[string]*handle

	store     Store
	repo      ResultSink
	cfg       Config
	now       func() time.Time
	pickColor func() chess.Color
	writes    chan writeOp

	hookMu  sync.RWMutex
	onMoved []func(*Match, Move)
	onEnded []func(*Match)
}

func NewArena(store Store, cfg Config, opts ...Option) *Arena {
	cfg = cfg.withDefaults()
	a := &Arena{
		matches:   make(map[string]*handle),
		store:     store,
		cfg:       cfg,
		now:       time.Now,
		pickColor: randomColor,
		writes:    make(chan writeOp, cfg.WriteBuffer),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AttachRepository wires a sink for final results.
func (a *Arena) AttachRepository(r ResultSink) {
	if a != nil {
		a.repo = r
	}
}

// OnEnded registers a callback fired after any match reaches a terminal state.
// Callbacks run outside the match lock.
func (a *Arena) OnEnded(cb func(*Match)) {
	a.hookMu.Lock()
	a.onEnded = append(a.onEnded, cb)
	a.hookMu.Unlock()
}

// OnMoved registers a callback fired after every applied ply, before any
// OnEnded callback the same ply triggers.
func (a *Arena) OnMoved(cb func(*Match, Move)) {
	a.hookMu.Lock()
	a.onMoved = append(a.onMoved, cb)
	a.hookMu.Unlock()
}

func (a *Arena) Config() Config { return a.cfg }

func (a *Arena) Now() time.Time { return a.now() }

// Remaining computes the clock for m from its StartedAt anchor.
func (a *Arena) Remaining(m *Match) time.Duration {
	return m.Remaining(a.now(), a.cfg.MatchBudget)
}

// Create builds a pending match with randomized colors and persists it before
// returning. A failed write means the match does not exist.
func (a *Arena) Create(ctx context.Context, p1, p2 Player) (*Match, error) {
	p1.ID, p2.ID = strings.TrimSpace(p1.ID), strings.TrimSpace(p2.ID)
	if p1.ID == "" || p2.ID == "" || p1.ID == p2.ID {
		return nil, ErrInvalidArgs
	}
	m := NewMatch(uuid.NewString(), p1, p2, a.pickColor(), a.now())
	if err := a.store.CreateMatch(ctx, m); err != nil {
		obslog.L().Error("match_create_error", zap.String("match_id", m.ID), zap.Error(err))
		return nil, fmt.Errorf("%w: create match: %v", ErrPersistenceUnavailable, err)
	}

	a.mu.Lock()
	a.matches[m.ID] = &handle{match: m}
	a.mu.Unlock()

	obslog.L().Info("match_create",
		zap.String("match_id", m.ID),
		zap.String("player1", p1.ID),
		zap.String("player2", p2.ID),
		zap.String("player1_color", string(m.Player1Color)),
	)
	return m.Clone(), nil
}

// Start marks the match in progress. Repeated calls are no-ops.
func (a *Arena) Start(ctx context.Context, matchID, userID string) (*Match, error) {
	h, err := a.handle(ctx, matchID)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	m := h.match
	if !m.IsParticipant(userID) {
		return nil, ErrNotParticipant
	}
	changed, err := m.Start(a.now())
	if err != nil {
		return nil, err
	}
	if changed {
		a.enqueue(h, writeOp{kind: opStatus, matchID: m.ID, update: m.statusUpdate()})
		obslog.L().Info("match_start", zap.String("match_id", m.ID), zap.String("user_id", userID))
	}
	return m.Clone(), nil
}

// ApplyMove plays one ply. A call that arrives while another mutation of the same
// match is running is rejected with ErrMatchBusy rather than queued. A move
// submitted after the budget ran out times the match out and fails with
// ErrStaleMatch.
func (a *Arena) ApplyMove(ctx context.Context, matchID, userID string, from, to chess.Pos) (*Match, Move, error) {
	h, err := a.handle(ctx, matchID)
	if err != nil {
		return nil, Move{}, err
	}
	if !h.mu.TryLock() {
		return nil, Move{}, ErrMatchBusy
	}
	m := h.match
	now := a.now()
	// 시간 초과 후 도착한 수는 적용하지 않고 대국을 종료 처리
	if m.Status == StatusInProgress && m.IsParticipant(userID) {
		if err := m.Expire(now, a.cfg.MatchBudget); err == nil {
			a.enqueueFinal(h, m)
			snap := m.Clone()
			h.mu.Unlock()
			a.fireEnded(snap)
			return nil, Move{}, ErrStaleMatch
		}
	}
	mv, err := m.ApplyMove(userID, from, to, now)
	if err != nil {
		h.mu.Unlock()
		return nil, Move{}, err
	}
	a.enqueue(h, writeOp{kind: opMove, matchID: m.ID, move: mv, status: m.Status})
	ended := m.Status.Terminal()
	if ended {
		a.enqueueFinal(h, m)
	}
	snap := m.Clone()
	h.mu.Unlock()

	obslog.L().Info("match_move",
		zap.String("match_id", snap.ID),
		zap.String("user_id", userID),
		zap.Int("ply", mv.Ply),
		zap.String("move", mv.Notation()),
		zap.String("status", string(snap.Status)),
	)
	a.fireMoved(snap, mv)
	if ended {
		a.fireEnded(snap)
	}
	return snap, mv, nil
}

// Cancel ends the match. userID may be empty for server-initiated cancellation.
func (a *Arena) Cancel(ctx context.Context, matchID, userID, reason string) (*Match, error) {
	h, err := a.handle(ctx, matchID)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	m := h.match
	if userID != "" && !m.IsParticipant(userID) {
		h.mu.Unlock()
		return nil, ErrNotParticipant
	}
	if err := m.Cancel(reason, userID, a.now()); err != nil {
		h.mu.Unlock()
		return nil, err
	}
	a.enqueueFinal(h, m)
	snap := m.Clone()
	h.mu.Unlock()

	a.fireEnded(snap)
	return snap, nil
}

// Expire times the match out if its budget is exhausted.
func (a *Arena) Expire(ctx context.Context, matchID string) (*Match, error) {
	h, err := a.handle(ctx, matchID)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	m := h.match
	if err := m.Expire(a.now(), a.cfg.MatchBudget); err != nil {
		h.mu.Unlock()
		return nil, err
	}
	a.enqueueFinal(h, m)
	snap := m.Clone()
	h.mu.Unlock()

	a.fireEnded(snap)
	return snap, nil
}

// Get returns a copy of the match, loading it from the store when this
// process does not hold it.
func (a *Arena) Get(ctx context.Context, matchID string) (*Match, error) {
	h, err := a.handle(ctx, matchID)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.match.Clone(), nil
}

// Len is the number of matches held in memory.
func (a *Arena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.matches)
}

func (a *Arena) handle(ctx context.Context, matchID string) (*handle, error) {
	matchID = strings.TrimSpace(matchID)
	if matchID == "" {
		return nil, ErrMatchNotFound
	}
	a.mu.RLock()
	h, ok := a.matches[matchID]
	a.mu.RUnlock()
	if ok {
		return h, nil
	}

	m, err := a.store.FindMatch(ctx, matchID)
	if err != nil {
		if err == ErrMatchNotFound {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("%w: find match: %v", ErrPersistenceUnavailable, err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if h, ok := a.matches[matchID]; ok {
		return h, nil
	}
	h = &handle{match: m}
	a.matches[matchID] = h
	obslog.L().Info("match_rehydrate", zap.String("match_id", matchID), zap.String("status", string(m.Status)))
	return h, nil
}

// 종료 상태 기록 + 결과 저장 예약. h.mu 보유 상태에서 호출.
func (a *Arena) enqueueFinal(h *handle, m *Match) {
	a.enqueue(h, writeOp{kind: opStatus, matchID: m.ID, update: m.statusUpdate()})
	if a.repo != nil {
		h.resultPending.Store(true)
		a.enqueue(h, writeOp{kind: opResult, matchID: m.ID, final: m.Clone()})
	}
	obslog.L().Info("match_end",
		zap.String("match_id", m.ID),
		zap.String("status", string(m.Status)),
		zap.String("winner", string(m.Winner)),
		zap.String("reason", m.Reason),
		zap.String("ended_by", m.EndedBy),
	)
}

func (a *Arena) fireEnded(m *Match) {
	a.hookMu.RLock()
	hooks := slices.Clone(a.onEnded)
	a.hookMu.RUnlock()
	for _, cb := range hooks {
		cb(m.Clone())
	}
}

func (a *Arena) fireMoved(m *Match, mv Move) {
	a.hookMu.RLock()
	hooks := slices.Clone(a.onMoved)
	a.hookMu.RUnlock()
	for _, cb := range hooks {
		cb(m.Clone(), mv)
	}
}

func randomColor() chess.Color {
	if n, err := rand.Int(rand.Reader, big.NewInt(2)); err == nil && n.Int64() == 1 {
		return chess.Black
	}
	return chess.White
}
