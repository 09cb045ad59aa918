package pvpchess

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/park285/cheese-arena/internal/chess"
	"github.com/redis/go-redis/v9"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })
	opts, err := ParseRedisURL(fmt.Sprintf("redis://%s/0", mr.Addr()))
	if err != nil {
		t.Fatalf("ParseRedisURL: %v", err)
	}
	rdb := redis.NewClient(opts)
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb, time.Hour), mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()
	m := newTestMatch()

	if err := s.CreateMatch(ctx, m); err != nil {
		t.Fatalf("CreateMatch: %v", err)
	}
	if err := s.CreateMatch(ctx, m); err == nil {
		t.Fatalf("expected duplicate create to fail")
	}
	if ttl := mr.TTL(matchKey(m.ID)); ttl != time.Hour {
		t.Fatalf("unexpected ttl: %v", ttl)
	}

	_, _ = m.Start(t0)
	if err := s.SetStatus(ctx, m.ID, m.statusUpdate()); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	mv, err := m.ApplyMove("alice", chess.Pos{Row: 6, Col: 4}, chess.Pos{Row: 5, Col: 4}, t0.Add(time.Second))
	if err != nil {
		t.Fatalf("ApplyMove: %v", err)
	}
	if err := s.AppendMove(ctx, m.ID, mv, m.Status); err != nil {
		t.Fatalf("AppendMove: %v", err)
	}
	// replays are ignored
	if err := s.AppendMove(ctx, m.ID, mv, m.Status); err != nil {
		t.Fatalf("AppendMove replay: %v", err)
	}

	got, err := s.FindMatch(ctx, m.ID)
	if err != nil {
		t.Fatalf("FindMatch: %v", err)
	}
	if got.Status != StatusInProgress || len(got.Moves) != 1 {
		t.Fatalf("unexpected stored match: status=%s moves=%d", got.Status, len(got.Moves))
	}
	if !got.Board.Equal(m.Board) || got.Turn != chess.Black {
		t.Fatalf("stored board diverged: %s", got.Board)
	}
	if got.StartedAt == nil || !got.StartedAt.Equal(t0) {
		t.Fatalf("startedAt not persisted: %v", got.StartedAt)
	}
}

func TestRedisStoreMissing(t *testing.T) {
	s, _ := newTestRedisStore(t)
	if _, err := s.FindMatch(context.Background(), "nope"); !errors.Is(err, ErrMatchNotFound) {
		t.Fatalf("expected ErrMatchNotFound, got %v", err)
	}
	if err := s.SetStatus(context.Background(), "nope", StatusUpdate{Status: StatusCancelled}); !errors.Is(err, ErrMatchNotFound) {
		t.Fatalf("expected ErrMatchNotFound, got %v", err)
	}
}

func TestRedisStoreTerminalIsAbsorbing(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()
	m := newTestMatch()
	if err := s.CreateMatch(ctx, m); err != nil {
		t.Fatalf("CreateMatch: %v", err)
	}
	live := m.Clone()
	_ = m.Cancel("stale", "", t0.Add(time.Minute))
	if err := s.SetStatus(ctx, m.ID, m.statusUpdate()); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	_, _ = live.Start(t0.Add(2 * time.Minute))
	if err := s.SetStatus(ctx, m.ID, live.statusUpdate()); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if err := s.Save(ctx, live); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.FindMatch(ctx, m.ID)
	if err != nil {
		t.Fatalf("FindMatch: %v", err)
	}
	if got.Status != StatusCancelled || got.Reason != "stale" {
		t.Fatalf("terminal status overwritten: %s %q", got.Status, got.Reason)
	}
}

func TestParseRedisURL(t *testing.T) {
	opts, err := ParseRedisURL("redis://:secret@localhost:6380/2")
	if err != nil {
		t.Fatalf("ParseRedisURL: %v", err)
	}
	if opts.Addr != "localhost:6380" || opts.Password != "secret" || opts.DB != 2 {
		t.Fatalf("unexpected options: %+v", opts)
	}
	if _, err := ParseRedisURL("http://localhost"); err == nil {
		t.Fatalf("expected scheme error")
	}
	if _, err := ParseRedisURL("redis://localhost/x"); err == nil {
		t.Fatalf("expected db error")
	}
}
