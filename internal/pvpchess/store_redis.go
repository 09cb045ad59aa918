package pvpchess

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultMatchTTL = 24 * time.Hour

// RedisStore keeps one JSON document per match under pvp:match:<id>.
// Read-modify-write paths run under WATCH so concurrent writers never interleave.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultMatchTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func matchKey(id string) string { return "pvp:match:" + strings.TrimSpace(id) }

func (s *RedisStore) CreateMatch(ctx context.Context, m *Match) error {
	if m == nil || strings.TrimSpace(m.ID) == "" {
		return ErrInvalidArgs
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	ok, err := s.rdb.SetNX(ctx, matchKey(m.ID), raw, s.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("match %s already exists", m.ID)
	}
	return nil
}

func (s *RedisStore) AppendMove(ctx context.Context, matchID string, mv Move, status Status) error {
	return s.update(ctx, matchID, func(m *Match) (bool, error) {
		before := len(m.Moves)
		if err := m.appendMove(mv, status); err != nil {
			return false, err
		}
		return len(m.Moves) != before, nil
	})
}

func (s *RedisStore) SetStatus(ctx context.Context, matchID string, u StatusUpdate) error {
	return s.update(ctx, matchID, func(m *Match) (bool, error) {
		return m.applyUpdate(u), nil
	})
}

func (s *RedisStore) FindMatch(ctx context.Context, matchID string) (*Match, error) {
	raw, err := s.rdb.Get(ctx, matchKey(matchID)).Bytes()
	if err == redis.Nil {
		return nil, ErrMatchNotFound
	}
	if err != nil {
		return nil, err
	}
	var m Match
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode match %s: %w", matchID, err)
	}
	return &m, nil
}

func (s *RedisStore) Save(ctx context.Context, snap *Match) error {
	if snap == nil {
		return ErrInvalidArgs
	}
	key := matchKey(snap.ID)
	return s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil && err != redis.Nil {
			return err
		}
		if err == nil {
			var cur Match
			if jerr := json.Unmarshal(raw, &cur); jerr == nil && cur.Status.Terminal() && !snap.Status.Terminal() {
				return nil
			}
		}
		out, err := json.Marshal(snap)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, s.ttl)
			return nil
		})
		return err
	}, key)
}

// update runs fn against the stored match under WATCH, retrying a few times
// when another writer wins the race.
func (s *RedisStore) update(ctx context.Context, matchID string, fn func(m *Match) (bool, error)) error {
	key := matchKey(matchID)
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return ErrMatchNotFound
		}
		if err != nil {
			return err
		}
		var cur Match
		if err := json.Unmarshal(raw, &cur); err != nil {
			return fmt.Errorf("decode match %s: %w", matchID, err)
		}
		changed, err := fn(&cur)
		if err != nil || !changed {
			return err
		}
		out, err := json.Marshal(&cur)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, s.ttl)
			return nil
		})
		return err
	}
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		err = s.rdb.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return err
}

// ParseRedisURL turns redis://[:pass@]host:port/db into client options.
func ParseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redis db %q", p)
		}
		db = n
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
