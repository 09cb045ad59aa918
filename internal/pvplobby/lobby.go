package pvplobby

import (
	"context"
	"errors"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/pvpchess"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const DefaultToleranceStep = 10

var (
	ErrInvalidArgs = errors.New("invalid arguments")
	ErrNotQueued   = errors.New("user is not queued")
	// ErrPairingRace means a candidate left the queue between the pairing test
	// and its removal. It never leaves this package; the scan is retried once.
	ErrPairingRace = errors.New("queued entry vanished while pairing")
)

// MatchCreator creates and persists a match between two paired players.
type MatchCreator interface {
	Create(ctx context.Context, p1, p2 pvpchess.Player) (*pvpchess.Match, error)
}

// Entry is one waiting player.
type Entry struct {
	UserID     string
	Name       string
	Skill      int
	Tolerance  int
	EnqueuedAt time.Time
	seq        uint64
}

func (e *Entry) player() pvpchess.Player {
	return pvpchess.Player{ID: e.UserID, Name: e.Name, Skill: e.Skill}
}

// before orders entries by enqueue time, then by arrival.
func (e *Entry) before(o *Entry) bool {
	if !e.EnqueuedAt.Equal(o.EnqueuedAt) {
		return e.EnqueuedAt.Before(o.EnqueuedAt)
	}
	return e.seq < o.seq
}

func pairable(a, b *Entry) bool {
	d := a.Skill - b.Skill
	if d < 0 {
		d = -d
	}
	return d <= max(a.Tolerance, b.Tolerance)
}

type Option func(*Lobby)

func WithToleranceStep(step int) Option {
	return func(l *Lobby) {
		if step > 0 {
			l.step = step
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(l *Lobby) { l.now = now }
}

// Lobby is the shared waiting queue. Every operation runs inside one critical
// section, including the match creation that a successful pairing triggers.
type Lobby struct {
	mu      sync.Mutex
	entries map[string]*Entry
	seq     uint64

	creator MatchCreator
	step    int
	now     func() time.Time

	hookMu    sync.RWMutex
	onMatched []func(*pvpchess.Match)
}

func New(creator MatchCreator, opts ...Option) *Lobby {
	l := &Lobby{
		entries: make(map[string]*Entry),
		creator: creator,
		step:    DefaultToleranceStep,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// OnMatched registers a callback fired for every match the lobby creates,
// after the lobby lock is released.
func (l *Lobby) OnMatched(cb func(*pvpchess.Match)) {
	l.hookMu.Lock()
	l.onMatched = append(l.onMatched, cb)
	l.hookMu.Unlock()
}

// Enqueue adds p to the queue, or pairs p with the earliest compatible waiting
// player. A nil match with a nil error means p is waiting. Enqueueing a player
// who is already queued is a no-op.
func (l *Lobby) Enqueue(ctx context.Context, p pvpchess.Player) (*pvpchess.Match, error) {
	p.ID = strings.TrimSpace(p.ID)
	if p.ID == "" || p.Skill < 0 {
		return nil, ErrInvalidArgs
	}

	l.mu.Lock()
	var (
		m   *pvpchess.Match
		err error
	)
	if _, queued := l.entries[p.ID]; !queued {
		m, err = l.enqueueLocked(ctx, p)
	}
	l.mu.Unlock()

	l.fire(m)
	return m, err
}

// Announce handles a joinLobby from p in one critical section.
// 대기열에 없으면 등록, 이미 대기 중이면 허용 범위를 넓혀 재매칭.
func (l *Lobby) Announce(ctx context.Context, p pvpchess.Player) (*pvpchess.Match, error) {
	p.ID = strings.TrimSpace(p.ID)
	if p.ID == "" || p.Skill < 0 {
		return nil, ErrInvalidArgs
	}

	l.mu.Lock()
	var (
		m   *pvpchess.Match
		err error
	)
	if e, queued := l.entries[p.ID]; queued {
		m, err = l.tickLocked(ctx, e)
	} else {
		m, err = l.enqueueLocked(ctx, p)
	}
	l.mu.Unlock()

	l.fire(m)
	return m, err
}

// Dequeue removes userID. Absent users are ignored.
func (l *Lobby) Dequeue(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[userID]; !ok {
		return false
	}
	delete(l.entries, userID)
	obslog.L().Info("lobby_dequeue", zap.String("user_id", userID), zap.Int("queued", len(l.entries)))
	return true
}

// Tick handles a re-announcement from userID: its tolerance widens by one step
// and pairing is retried.
func (l *Lobby) Tick(ctx context.Context, userID string) (*pvpchess.Match, error) {
	l.mu.Lock()
	e, ok := l.entries[userID]
	if !ok {
		l.mu.Unlock()
		return nil, ErrNotQueued
	}
	m, err := l.tickLocked(ctx, e)
	l.mu.Unlock()

	l.fire(m)
	return m, err
}

func (l *Lobby) enqueueLocked(ctx context.Context, p pvpchess.Player) (*pvpchess.Match, error) {
	l.seq++
	e := &Entry{UserID: p.ID, Name: p.Name, Skill: p.Skill, EnqueuedAt: l.now(), seq: l.seq}
	m, err := l.pairLocked(ctx, e, false)
	if m == nil && err == nil {
		l.entries[e.UserID] = e
		obslog.L().Info("lobby_enqueue", zap.String("user_id", e.UserID), zap.Int("skill", e.Skill), zap.Int("queued", len(l.entries)))
	}
	return m, err
}

func (l *Lobby) tickLocked(ctx context.Context, e *Entry) (*pvpchess.Match, error) {
	e.Tolerance += l.step
	return l.pairLocked(ctx, e, true)
}

// WidenAll widens every waiting player's tolerance by one step and pairs
// whoever became compatible, oldest entries first.
func (l *Lobby) WidenAll(ctx context.Context) (int, error) {
	l.mu.Lock()
	for _, e := range l.entries {
		e.Tolerance += l.step
	}
	var (
		created []*pvpchess.Match
		errs    error
	)
	for _, e := range l.ordered() {
		if _, still := l.entries[e.UserID]; !still {
			continue
		}
		m, err := l.pairLocked(ctx, e, true)
		if err != nil {
			errs = multierr.Append(errs, err)
		}
		if m != nil {
			created = append(created, m)
		}
	}
	l.mu.Unlock()

	for _, m := range created {
		l.fire(m)
	}
	return len(created), errs
}

// RunWidener calls WidenAll every interval. A non-positive interval disables
// server-side widening and returns immediately.
func (l *Lobby) RunWidener(ctx context.Context, every time.Duration) error {
	if every <= 0 {
		return nil
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if n, err := l.WidenAll(ctx); err != nil {
				obslog.L().Warn("lobby_widen_error", zap.Int("paired", n), zap.Error(err))
			}
		}
	}
}

func (l *Lobby) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Lobby) Contains(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries[userID]
	return ok
}

// Lookup returns a copy of the entry for userID.
func (l *Lobby) Lookup(userID string) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[userID]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// pairLocked finds the earliest compatible partner for e and creates the
// match. queued says whether e itself is already in the queue. l.mu is held.
func (l *Lobby) pairLocked(ctx context.Context, e *Entry, queued bool) (*pvpchess.Match, error) {
	for attempt := 0; attempt < 2; attempt++ {
		partner := l.candidate(e)
		if partner == nil {
			return nil, nil
		}
		m, err := l.take(ctx, e, partner, queued)
		if errors.Is(err, ErrPairingRace) {
			obslog.L().Debug("lobby_pair_retry", zap.String("user_id", e.UserID), zap.String("partner", partner.UserID))
			continue
		}
		return m, err
	}
	return nil, nil
}

func (l *Lobby) candidate(e *Entry) *Entry {
	var best *Entry
	for id, o := range l.entries {
		if id == e.UserID || !pairable(e, o) {
			continue
		}
		if best == nil || o.before(best) {
			best = o
		}
	}
	return best
}

// take removes both entries and creates the match. On creation failure both
// players stay in the queue.
func (l *Lobby) take(ctx context.Context, e, partner *Entry, queued bool) (*pvpchess.Match, error) {
	if cur, ok := l.entries[partner.UserID]; !ok || cur != partner {
		return nil, ErrPairingRace
	}
	m, err := l.creator.Create(ctx, partner.player(), e.player())
	if err != nil {
		obslog.L().Error("lobby_pair_error", zap.String("user_id", e.UserID), zap.String("partner", partner.UserID), zap.Error(err))
		if !queued {
			l.entries[e.UserID] = e
		}
		return nil, err
	}
	delete(l.entries, partner.UserID)
	delete(l.entries, e.UserID)
	obslog.L().Info("lobby_pair",
		zap.String("match_id", m.ID),
		zap.String("player1", partner.UserID),
		zap.String("player2", e.UserID),
		zap.Int("skill_gap", abs(partner.Skill-e.Skill)),
		zap.Int("queued", len(l.entries)),
	)
	return m, nil
}

func (l *Lobby) ordered() []*Entry {
	out := make([]*Entry, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].before(out[j]) })
	return out
}

func (l *Lobby) fire(m *pvpchess.Match) {
	if m == nil {
		return
	}
	l.hookMu.RLock()
	hooks := slices.Clone(l.onMatched)
	l.hookMu.RUnlock()
	for _, cb := range hooks {
		cb(m)
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
