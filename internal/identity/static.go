package identity

import (
	"context"
	"strconv"
	"strings"

	"github.com/park285/cheese-arena/internal/domain"
)

// StaticResolver trusts the token itself, formatted userId[:name[:skill]].
// Development only.
type StaticResolver struct{}

func (StaticResolver) Resolve(_ context.Context, token string) (*domain.Profile, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrEmptyToken
	}
	parts := strings.SplitN(token, ":", 3)
	p := &domain.Profile{UserID: strings.TrimSpace(parts[0])}
	if p.UserID == "" {
		return nil, ErrUnknownToken
	}
	if len(parts) > 1 {
		p.Username = strings.TrimSpace(parts[1])
	}
	if len(parts) > 2 {
		n, err := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil || n < 0 {
			return nil, ErrUnknownToken
		}
		p.Skill = n
	}
	return p, nil
}
