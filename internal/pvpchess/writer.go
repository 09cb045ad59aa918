package pvpchess

import (
	"context"

	"github.com/park285/cheese-arena/internal/obslog"
	"go.uber.org/zap"
)

type opKind int

const (
	opMove opKind = iota + 1
	opStatus
	opResult
)

func (k opKind) String() string {
	switch k {
	case opMove:
		return "move"
	case opStatus:
		return "status"
	case opResult:
		return "result"
	default:
		return "unknown"
	}
}

type writeOp struct {
	kind    opKind
	matchID string
	move    Move
	status  Status
	update  StatusUpdate
	final   *Match
	h       *handle
}

// enqueue hands op to the writer without blocking the caller. When the buffer
// is full the handle is marked dirty and the sweep flushes a full snapshot.
// Callers hold h.mu, so writes for one match enter the channel in order.
func (a *Arena) enqueue(h *handle, op writeOp) {
	op.h = h
	select {
	case a.writes <- op:
	default:
		h.dirty.Store(true)
		obslog.L().Warn("match_write_dropped",
			zap.String("match_id", op.matchID),
			zap.String("op", op.kind.String()),
		)
	}
}

// Run drains the write queue until ctx is cancelled. Operations are applied
// in enqueue order by a single goroutine.
func (a *Arena) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			a.drain()
			return nil
		case op := <-a.writes:
			a.apply(ctx, op)
		}
	}
}

// drain flushes whatever is still buffered on shutdown.
func (a *Arena) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	for {
		select {
		case op := <-a.writes:
			a.apply(ctx, op)
		default:
			return
		}
	}
}

func (a *Arena) apply(parent context.Context, op writeOp) {
	ctx, cancel := context.WithTimeout(parent, writeTimeout)
	defer cancel()

	var err error
	switch op.kind {
	case opMove:
		err = a.store.AppendMove(ctx, op.matchID, op.move, op.status)
	case opStatus:
		err = a.store.SetStatus(ctx, op.matchID, op.update)
	case opResult:
		if a.repo == nil {
			return
		}
		err = a.repo.SaveResult(ctx, op.final)
		if err == nil && op.h != nil {
			op.h.resultPending.Store(false)
		}
	}
	if err != nil {
		if op.h != nil && op.kind != opResult {
			op.h.dirty.Store(true)
		}
		obslog.L().Warn("match_write_error",
			zap.String("match_id", op.matchID),
			zap.String("op", op.kind.String()),
			zap.Error(err),
		)
	}
}

// flush writes a full snapshot of h and retries a pending result. The caller holds h.mu.
func (a *Arena) flush(ctx context.Context, h *handle) error {
	var firstErr error
	if h.dirty.Load() {
		if err := a.store.Save(ctx, h.match); err != nil {
			firstErr = err
		} else {
			h.dirty.Store(false)
		}
	}
	if a.repo != nil && h.resultPending.Load() && h.match.Status.Terminal() {
		if err := a.repo.SaveResult(ctx, h.match); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		} else {
			h.resultPending.Store(false)
		}
	}
	return firstErr
}
