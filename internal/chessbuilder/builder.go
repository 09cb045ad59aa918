package chessbuilder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/park285/cheese-arena/internal/config"
	"github.com/park285/cheese-arena/internal/identity"
	"github.com/park285/cheese-arena/internal/msgcat"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/pvpchess"
	"github.com/park285/cheese-arena/internal/pvplobby"
	"github.com/park285/cheese-arena/internal/realtime"
	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type Deps struct {
	Config *config.AppConfig
	Arena  *pvpchess.Arena
	Lobby  *pvplobby.Lobby
	Hub    *realtime.Hub
	Repo   *pvpchess.Repository

	redis *redis.Client
}

// New wires the match subsystem from cfg. Redis and Postgres are optional;
// without Redis matches live in memory only, without Postgres results are not
// archived.
func New(ctx context.Context, cfg *config.AppConfig) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	d := &Deps{Config: cfg}

	store, err := d.openStore(ctx)
	if err != nil {
		return nil, err
	}

	d.Arena = pvpchess.NewArena(store, pvpchess.Config{
		MatchBudget:       cfg.MatchBudget,
		StalenessWindow:   cfg.StalenessWindow,
		TerminalRetention: cfg.TerminalRetention,
	})

	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		repo, err := pvpchess.NewRepository(cfg.DatabaseURL)
		if err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("init repository: %w", err)
		}
		d.Repo = repo
		d.Arena.AttachRepository(repo)
	} else {
		obslog.L().Warn("results_archive_disabled", zap.String("reason", "DATABASE_URL not set"))
	}

	d.Lobby = pvplobby.New(d.Arena, pvplobby.WithToleranceStep(cfg.LobbyToleranceStep))

	msgs, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("load messages: %w", err)
	}

	hd := realtime.Deps{
		Arena:          d.Arena,
		Lobby:          d.Lobby,
		Resolver:       newResolver(cfg),
		Messages:       msgs,
		AllowedOrigins: cfg.AllowedOrigins,
	}
	// nil *Repository를 인터페이스에 넣지 않도록 분기
	if d.Repo != nil {
		hd.Results = d.Repo
	}
	d.Hub = realtime.NewHub(hd)
	return d, nil
}

func (d *Deps) openStore(ctx context.Context) (pvpchess.Store, error) {
	if strings.TrimSpace(d.Config.RedisURL) == "" {
		obslog.L().Warn("match_store_memory", zap.String("reason", "REDIS_URL not set"))
		return pvpchess.NewMemoryStore(), nil
	}
	opts, err := pvpchess.ParseRedisURL(d.Config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	d.redis = rdb
	return pvpchess.NewRedisStore(rdb, d.Config.MatchTTL), nil
}

func newResolver(cfg *config.AppConfig) identity.Resolver {
	if strings.TrimSpace(cfg.IdentityBaseURL) == "" {
		obslog.L().Warn("identity_static", zap.String("reason", "IDENTITY_BASE_URL not set"))
		return identity.StaticResolver{}
	}
	headers := func() map[string]string {
		h := map[string]string{}
		if cfg.IdentityAPIKey != "" {
			h["X-Api-Key"] = cfg.IdentityAPIKey
		}
		return h
	}
	return identity.NewClient(cfg.IdentityBaseURL, identity.WithHeaderProvider(headers), identity.WithRetry(2))
}

// Close releases the Redis and Postgres connections.
func (d *Deps) Close() error {
	if d == nil {
		return nil
	}
	var err error
	if d.redis != nil {
		err = multierr.Append(err, d.redis.Close())
	}
	if d.Repo != nil {
		err = multierr.Append(err, d.Repo.Close())
	}
	return err
}
