package pvpchess

import (
	"testing"
	"time"

	"github.com/park285/cheese-arena/internal/chess"
	"github.com/stretchr/testify/assert"
)

func TestResultToken(t *testing.T) {
	m := newTestMatch()
	m.Status, m.Winner = StatusCheckmate, chess.Black
	assert.Equal(t, "0-1", resultToken(m))
	m.Status, m.Winner = StatusStalemate, chess.NoColor
	assert.Equal(t, "1/2-1/2", resultToken(m))
	m.Status = StatusTimeout
	assert.Equal(t, "*", resultToken(m))
}

func TestBuildMovetext(t *testing.T) {
	assert.Equal(t, "1. e2e3 e7e6 2. d2d3 1-0", buildMovetext([]string{"e2e3", "e7e6", "d2d3"}, "1-0"))
	assert.Equal(t, "*", buildMovetext(nil, "*"))
}

func TestNullTime(t *testing.T) {
	assert.False(t, nullTime(nil).Valid)
	now := time.Now()
	nt := nullTime(&now)
	assert.True(t, nt.Valid)
	assert.Equal(t, now, nt.Time)
}
