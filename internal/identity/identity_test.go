package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientResolve(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		switch r.URL.Path {
		case "/sessions/good":
			assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"user_id":"u1","username":"Alice","avatar_url":"https://a/x.png","skill":1500}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", WithTimeout(time.Second), WithHeaderProvider(func() map[string]string {
		return map[string]string{"X-Api-Key": "secret"}
	}))
	p, err := c.Resolve(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "u1", p.UserID)
	assert.Equal(t, "Alice", p.DisplayName())
	assert.Equal(t, 1500, p.Skill)

	_, err = c.Resolve(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrUnknownToken)
	assert.EqualValues(t, 2, calls.Load())

	_, err = c.Resolve(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmptyToken)
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"user_id":"u2"}`))
	}))
	defer srv.Close()

	p, err := NewClient(srv.URL, WithRetry(3)).Resolve(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "u2", p.UserID)
	assert.EqualValues(t, 3, calls.Load())
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Resolve(context.Background(), "tok")
	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, 100*time.Millisecond, backoffDuration(0))
	assert.Equal(t, 400*time.Millisecond, backoffDuration(3))
	assert.Equal(t, backoffDuration(6), backoffDuration(10))
}

func TestStaticResolver(t *testing.T) {
	var r StaticResolver
	ctx := context.Background()

	p, err := r.Resolve(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", p.DisplayName())
	assert.Zero(t, p.Skill)

	p, err = r.Resolve(ctx, "u2:Bob:1200")
	require.NoError(t, err)
	assert.Equal(t, "Bob", p.Username)
	assert.Equal(t, 1200, p.Skill)

	_, err = r.Resolve(ctx, "u3:Carol:-4")
	assert.ErrorIs(t, err, ErrUnknownToken)
	_, err = r.Resolve(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyToken)
}
