package pvpchess

import (
	"context"
	"time"

	"github.com/park285/cheese-arena/internal/obslog"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const staleReason = "stale"

// SweepReport counts what one sweep pass did.
type SweepReport struct {
	Scanned   int
	TimedOut  int
	Cancelled int
	Flushed   int
	Evicted   int
	Skipped   int
}

// Sweep force-terminates idle matches, flushes snapshots whose async writes
// failed, and evicts terminal matches past the retention window. Each match is
// examined under its own lock; a match whose lock is held is live and skipped
// until the next pass. Overlapping sweeps transition a match at most once.
func (a *Arena) Sweep(ctx context.Context) (SweepReport, error) {
	a.mu.RLock()
	handles := make([]*handle, 0, len(a.matches))
	for _, h := range a.matches {
		handles = append(handles, h)
	}
	a.mu.RUnlock()

	var (
		rep   SweepReport
		errs  error
		ended []*Match
		evict []string
	)
	for _, h := range handles {
		if ctx.Err() != nil {
			errs = multierr.Append(errs, ctx.Err())
			break
		}
		rep.Scanned++
		if !h.mu.TryLock() {
			rep.Skipped++
			continue
		}
		m := h.match
		now := a.now()

		switch a.classify(m, now) {
		case sweepTimeout:
			if err := m.Expire(now, a.cfg.MatchBudget); err == nil {
				a.enqueueFinal(h, m)
				ended = append(ended, m.Clone())
				rep.TimedOut++
			}
		case sweepCancel:
			if err := m.Cancel(staleReason, "", now); err == nil {
				a.enqueueFinal(h, m)
				ended = append(ended, m.Clone())
				rep.Cancelled++
			}
		}

		if h.dirty.Load() || h.resultPending.Load() {
			if err := a.flush(ctx, h); err != nil {
				errs = multierr.Append(errs, err)
			} else {
				rep.Flushed++
			}
		}

		if m.Status.Terminal() && m.EndedAt != nil && now.Sub(*m.EndedAt) > a.cfg.TerminalRetention &&
			!h.dirty.Load() && !h.resultPending.Load() {
			evict = append(evict, m.ID)
		}
		h.mu.Unlock()
	}

	if len(evict) > 0 {
		a.mu.Lock()
		for _, id := range evict {
			delete(a.matches, id)
		}
		a.mu.Unlock()
		rep.Evicted = len(evict)
	}

	for _, m := range ended {
		a.fireEnded(m)
	}

	obslog.L().Info("sweep_run",
		zap.Int("scanned", rep.Scanned),
		zap.Int("timed_out", rep.TimedOut),
		zap.Int("cancelled", rep.Cancelled),
		zap.Int("flushed", rep.Flushed),
		zap.Int("evicted", rep.Evicted),
		zap.Int("skipped", rep.Skipped),
	)
	return rep, errs
}

type sweepAction int

const (
	sweepNone sweepAction = iota
	sweepTimeout
	sweepCancel
)

func (a *Arena) classify(m *Match, now time.Time) sweepAction {
	switch m.Status {
	case StatusInProgress:
		if m.StartedAt != nil && now.Sub(*m.StartedAt) > a.cfg.MatchBudget {
			return sweepTimeout
		}
		if now.Sub(m.UpdatedAt) > a.cfg.StalenessWindow {
			return sweepCancel
		}
	case StatusPending:
		if now.Sub(m.CreatedAt) > a.cfg.StalenessWindow {
			return sweepCancel
		}
	}
	return sweepNone
}

// RunSweeper calls Sweep every interval until ctx is cancelled.
func (a *Arena) RunSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 2 * time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if _, err := a.Sweep(ctx); err != nil {
				obslog.L().Warn("sweep_error", zap.Error(err))
			}
		}
	}
}
