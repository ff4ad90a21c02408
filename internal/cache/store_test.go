package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewWithClient(client, time.Hour, zap.NewNop()), mr
}

func TestSetGetRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	ok := store.Set(ctx, "k", payload{Name: "x", Count: 3}, 0)
	require.True(t, ok)

	var got payload
	require.True(t, store.GetJSON(ctx, "k", &got))
	require.Equal(t, payload{Name: "x", Count: 3}, got)
}

func TestGetMissingKey(t *testing.T) {
	store, _ := newTestStore(t)

	var got map[string]string
	require.False(t, store.GetJSON(context.Background(), "absent", &got))
	require.Nil(t, got)
}

func TestSetRespectsTTL(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.True(t, store.Set(ctx, "k", "v", 10*time.Second))
	mr.FastForward(11 * time.Second)

	var got string
	require.False(t, store.GetJSON(ctx, "k", &got))
}

func TestDelete(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.True(t, store.Set(ctx, "k", "v", 0))
	store.Delete(ctx, "k")

	var got string
	require.False(t, store.GetJSON(ctx, "k", &got))
}

func TestFailuresAreSoft(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	mr.Close()

	require.False(t, store.Set(ctx, "k", "v", 0))
	var got string
	require.False(t, store.GetJSON(ctx, "k", &got))
	store.Delete(ctx, "k") // must not panic
}

func TestSynthesisKeyOrderIndependent(t *testing.T) {
	a := SynthesisKey("u", []string{"https://a", "https://b"}, "q")
	b := SynthesisKey("u", []string{"https://b", "https://a"}, "q")
	require.Equal(t, a, b)

	c := SynthesisKey("u", []string{"https://a"}, "q")
	require.NotEqual(t, a, c)
}
