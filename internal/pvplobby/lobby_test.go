package pvplobby

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/park285/cheese-arena/internal/pvpchess"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is a MatchCreator that remembers every pairing.
type recorder struct {
	mu    sync.Mutex
	pairs [][2]string
	fail  atomic.Bool
}

func (r *recorder) Create(_ context.Context, p1, p2 pvpchess.Player) (*pvpchess.Match, error) {
	if r.fail.Load() {
		return nil, errors.New("store down")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pairs = append(r.pairs, [2]string{p1.ID, p2.ID})
	return &pvpchess.Match{ID: fmt.Sprintf("m%d", len(r.pairs)), Player1: p1, Player2: p2}, nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pairs)
}

func player(id string, skill int) pvpchess.Player {
	return pvpchess.Player{ID: id, Name: id, Skill: skill}
}

func TestEqualSkillPairsImmediately(t *testing.T) {
	for i := range 100 {
		rec := &recorder{}
		l := New(rec)
		ctx := context.Background()

		m, err := l.Enqueue(ctx, player("a", 100))
		require.NoError(t, err)
		require.Nil(t, m)

		m, err = l.Enqueue(ctx, player("b", 100))
		require.NoError(t, err, "iteration %d", i)
		require.NotNil(t, m)
		assert.Equal(t, "a", m.Player1.ID)
		assert.Equal(t, "b", m.Player2.ID)
		assert.Zero(t, l.Len())
	}
}

func TestDistantSkillsNeverPairWithoutReannouncement(t *testing.T) {
	rec := &recorder{}
	l := New(rec)
	ctx := context.Background()
	for range 1000 {
		_, err := l.Enqueue(ctx, player("a", 0))
		require.NoError(t, err)
		_, err = l.Enqueue(ctx, player("b", 1000))
		require.NoError(t, err)
	}
	assert.Zero(t, rec.count())
	assert.Equal(t, 2, l.Len())
}

func TestReenqueueIsNoop(t *testing.T) {
	l := New(&recorder{})
	ctx := context.Background()
	_, err := l.Enqueue(ctx, player("a", 10))
	require.NoError(t, err)
	_, err = l.Enqueue(ctx, player("a", 500))
	require.NoError(t, err)

	e, ok := l.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, 10, e.Skill)
	assert.Equal(t, 1, l.Len())
}

func TestEnqueueRejectsBadInput(t *testing.T) {
	l := New(&recorder{})
	_, err := l.Enqueue(context.Background(), player(" ", 1))
	assert.ErrorIs(t, err, ErrInvalidArgs)
	_, err = l.Enqueue(context.Background(), player("a", -1))
	assert.ErrorIs(t, err, ErrInvalidArgs)
}

func TestTickWidensUntilPaired(t *testing.T) {
	rec := &recorder{}
	l := New(rec, WithToleranceStep(10))
	ctx := context.Background()
	_, _ = l.Enqueue(ctx, player("a", 100))
	_, _ = l.Enqueue(ctx, player("b", 135))

	var m *pvpchess.Match
	ticks := 0
	for m == nil {
		var err error
		m, err = l.Tick(ctx, "a")
		require.NoError(t, err)
		ticks++
		require.LessOrEqual(t, ticks, 4)
	}
	assert.Equal(t, 4, ticks)
	assert.Zero(t, l.Len())

	_, err := l.Tick(ctx, "a")
	assert.ErrorIs(t, err, ErrNotQueued)
}

func TestWidenedEntryAcceptsNewcomer(t *testing.T) {
	l := New(&recorder{}, WithToleranceStep(50))
	ctx := context.Background()
	_, _ = l.Enqueue(ctx, player("a", 100))
	_, err := l.Tick(ctx, "a")
	require.NoError(t, err)

	m, err := l.Enqueue(ctx, player("b", 140))
	require.NoError(t, err)
	require.NotNil(t, m)
}

func TestEarliestCandidateWins(t *testing.T) {
	clk := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(&recorder{}, WithToleranceStep(60), WithClock(func() time.Time { return clk }))
	ctx := context.Background()
	_, _ = l.Enqueue(ctx, player("first", 500))
	_, _ = l.Enqueue(ctx, player("second", 600))
	for _, id := range []string{"second", "first"} {
		m, err := l.Tick(ctx, id)
		require.NoError(t, err)
		require.Nil(t, m)
	}

	// both accept c and share one timestamp; arrival order breaks the tie
	m, err := l.Enqueue(ctx, player("c", 550))
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "first", m.Player1.ID)
	assert.True(t, l.Contains("second"))
}

func TestDequeue(t *testing.T) {
	l := New(&recorder{})
	ctx := context.Background()
	_, _ = l.Enqueue(ctx, player("a", 100))
	assert.True(t, l.Dequeue("a"))
	assert.False(t, l.Dequeue("a"))

	m, err := l.Enqueue(ctx, player("b", 100))
	require.NoError(t, err)
	assert.Nil(t, m, "dequeued players are never paired")
}

func TestCreateFailureKeepsBothQueued(t *testing.T) {
	rec := &recorder{}
	rec.fail.Store(true)
	l := New(rec)
	ctx := context.Background()
	_, _ = l.Enqueue(ctx, player("a", 100))

	_, err := l.Enqueue(ctx, player("b", 100))
	require.Error(t, err)
	assert.True(t, l.Contains("a"))
	assert.True(t, l.Contains("b"))

	rec.fail.Store(false)
	m, err := l.Tick(ctx, "b")
	require.NoError(t, err)
	require.NotNil(t, m)
}

func TestWidenAll(t *testing.T) {
	l := New(&recorder{}, WithToleranceStep(25))
	ctx := context.Background()
	var matched atomic.Int32
	l.OnMatched(func(*pvpchess.Match) { matched.Add(1) })

	_, _ = l.Enqueue(ctx, player("a", 0))
	_, _ = l.Enqueue(ctx, player("b", 40))
	_, _ = l.Enqueue(ctx, player("c", 1000))

	n, err := l.WidenAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = l.WidenAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.EqualValues(t, 1, matched.Load())
	assert.True(t, l.Contains("c"))
}

func TestRunWidenerDisabled(t *testing.T) {
	l := New(&recorder{})
	assert.NoError(t, l.RunWidener(context.Background(), 0))
}

func TestConcurrentEnqueueNeverDoublePairs(t *testing.T) {
	rec := &recorder{}
	l := New(rec)
	ctx := context.Background()
	_, _ = l.Enqueue(ctx, player("host", 100))

	var wg sync.WaitGroup
	var paired atomic.Int32
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := l.Enqueue(ctx, player(fmt.Sprintf("p%d", i), 100))
			if err == nil && m != nil {
				paired.Add(1)
			}
		}()
	}
	wg.Wait()

	// 51 equal players: 25 pairs, one left waiting
	assert.EqualValues(t, 25, paired.Load())
	assert.Equal(t, 25, rec.count())
	assert.Equal(t, 1, l.Len())

	seen := map[string]bool{}
	for _, p := range rec.pairs {
		for _, id := range p {
			assert.False(t, seen[id], "%s paired twice", id)
			seen[id] = true
		}
	}
}

func TestAnnounceEnqueuesThenWidens(t *testing.T) {
	rec := &recorder{}
	l := New(rec, WithToleranceStep(20))
	ctx := context.Background()

	_, err := l.Enqueue(ctx, player("far", 500))
	require.NoError(t, err)

	m, err := l.Announce(ctx, player("a", 530))
	require.NoError(t, err)
	require.Nil(t, m)
	e, ok := l.Lookup("a")
	require.True(t, ok)
	assert.Zero(t, e.Tolerance)

	m, err = l.Announce(ctx, player("a", 530))
	require.NoError(t, err)
	require.Nil(t, m)
	e, _ = l.Lookup("a")
	assert.Equal(t, 20, e.Tolerance)

	m, err = l.Announce(ctx, player("a", 530))
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "far", m.Player1.ID)
	assert.Zero(t, l.Len())
}

func TestAnnounceRacingPairingNeverErrors(t *testing.T) {
	for i := range 50 {
		rec := &recorder{}
		l := New(rec)
		ctx := context.Background()
		_, err := l.Enqueue(ctx, player("a", 100))
		require.NoError(t, err)

		var wg sync.WaitGroup
		errs := make(chan error, 2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := l.Enqueue(ctx, player("b", 100))
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := l.Announce(ctx, player("a", 100))
			errs <- err
		}()
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err, "iteration %d", i)
		}
		assert.GreaterOrEqual(t, rec.count(), 1)
	}
}

func TestEveryMatchedHookFires(t *testing.T) {
	l := New(&recorder{})
	var order []string
	l.OnMatched(func(m *pvpchess.Match) { order = append(order, "first:"+m.ID) })
	l.OnMatched(func(m *pvpchess.Match) { order = append(order, "second:"+m.ID) })

	ctx := context.Background()
	_, err := l.Enqueue(ctx, player("a", 1))
	require.NoError(t, err)
	_, err = l.Enqueue(ctx, player("b", 1))
	require.NoError(t, err)
	assert.Equal(t, []string{"first:m1", "second:m1"}, order)
}
