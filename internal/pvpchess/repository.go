package pvpchess

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/park285/cheese-arena/internal/chess"
	"github.com/park285/cheese-arena/internal/domain"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Repository stores final match results in Postgres.
type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Migrate applies the embedded schema migrations.
func (r *Repository) Migrate(ctx context.Context) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialized")
	}
	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, r.db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// SaveResult upserts the final record of a terminal match. Non-terminal
// matches are ignored.
func (r *Repository) SaveResult(ctx context.Context, m *Match) error {
	if r == nil || r.db == nil || m == nil || !m.Status.Terminal() {
		return nil
	}
	white, black := m.PlayerOf(chess.White), m.PlayerOf(chess.Black)
	result := resultToken(m)

	notations := make([]string, len(m.Moves))
	for i, mv := range m.Moves {
		notations[i] = mv.Notation()
	}
	movesRaw, err := json.Marshal(notations)
	if err != nil {
		return err
	}
	var duration int64
	if m.StartedAt != nil && m.EndedAt != nil {
		duration = max(m.EndedAt.Sub(*m.StartedAt).Milliseconds(), 0)
	}

	q := `INSERT INTO match_results (
        match_id, white_id, white_name, black_id, black_name,
        status, result, reason, ended_by, moves, movetext, final_board,
        created_at, started_at, ended_at, duration_ms
      ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16
      ) ON CONFLICT (match_id) DO UPDATE SET
        status=EXCLUDED.status,
        result=EXCLUDED.result,
        reason=EXCLUDED.reason,
        ended_by=EXCLUDED.ended_by,
        moves=EXCLUDED.moves,
        movetext=EXCLUDED.movetext,
        final_board=EXCLUDED.final_board,
        started_at=EXCLUDED.started_at,
        ended_at=EXCLUDED.ended_at,
        duration_ms=EXCLUDED.duration_ms`

	_, err = r.db.ExecContext(ctx, q,
		m.ID,
		white.ID, white.Name,
		black.ID, black.Name,
		string(m.Status), result, m.Reason, m.EndedBy,
		string(movesRaw), buildMovetext(notations, result), m.Board.Placement(),
		m.CreatedAt, nullTime(m.StartedAt), nullTime(m.EndedAt), duration,
	)
	return err
}

const maxResultsLimit = 100

// ListResults returns the newest finished matches userID played, up to limit.
func (r *Repository) ListResults(ctx context.Context, userID string, limit int) ([]domain.MatchRecord, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialized")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrInvalidArgs
	}
	if limit <= 0 || limit > maxResultsLimit {
		limit = maxResultsLimit
	}

	q := `SELECT match_id, white_id, white_name, black_id, black_name,
        status, result, reason, ended_by, moves, movetext, final_board,
        created_at, started_at, ended_at, duration_ms
      FROM match_results
      WHERE white_id = $1 OR black_id = $1
      ORDER BY ended_at DESC NULLS LAST, created_at DESC
      LIMIT $2`
	rows, err := r.db.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.MatchRecord
	for rows.Next() {
		var (
			rec            domain.MatchRecord
			movesRaw       []byte
			started, ended sql.NullTime
			durationMs     int64
		)
		if err := rows.Scan(
			&rec.MatchID, &rec.WhiteID, &rec.WhiteName, &rec.BlackID, &rec.BlackName,
			&rec.Status, &rec.Result, &rec.Reason, &rec.EndedBy, &movesRaw, &rec.Movetext, &rec.FinalBoard,
			&rec.CreatedAt, &started, &ended, &durationMs,
		); err != nil {
			return nil, err
		}
		if len(movesRaw) > 0 {
			if err := json.Unmarshal(movesRaw, &rec.Moves); err != nil {
				return nil, fmt.Errorf("decode moves of %s: %w", rec.MatchID, err)
			}
		}
		rec.StartedAt = timePtr(started)
		rec.EndedAt = timePtr(ended)
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		out = append(out, rec)
	}
	return out, rows.Err()
}

// resultToken uses the usual 1-0 / 0-1 / 1/2-1/2 tokens; cancelled and
// winnerless timeouts are recorded as unfinished.
func resultToken(m *Match) string {
	switch {
	case m.Winner == chess.White:
		return "1-0"
	case m.Winner == chess.Black:
		return "0-1"
	case m.Status == StatusStalemate || m.Status == StatusDraw:
		return "1/2-1/2"
	default:
		return "*"
	}
}

func buildMovetext(notations []string, result string) string {
	var b strings.Builder
	for i := 0; i < len(notations); i += 2 {
		fmt.Fprintf(&b, "%d. %s", i/2+1, notations[i])
		if i+1 < len(notations) {
			b.WriteString(" ")
			b.WriteString(notations[i+1])
		}
		b.WriteString(" ")
	}
	b.WriteString(result)
	return b.String()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
