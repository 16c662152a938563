package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/hihihi151/aujc/pkg/captcha"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stored struct {
	Offset int     `json:"offset"`
	Score  float64 `json:"score"`
}

func TestSolutionCacheRoundTrip(t *testing.T) {
	// MiniRedis pra rodar os testes sem precisar do Redis real subindo
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewSolutionCache(rdb, time.Minute)
	ctx := context.Background()

	key := Key("peça", "fundo")
	var got stored
	ok, err := c.Get(ctx, captcha.KindSlider, key, &got)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, captcha.KindSlider, key, stored{Offset: 148, Score: 0.91}))
	assert.True(t, mr.Exists("aujc:solution:slider:"+key))

	ok, err = c.Get(ctx, captcha.KindSlider, key, &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, stored{Offset: 148, Score: 0.91}, got)

	// o mesmo hash em outro tipo de desafio não colide
	ok, err = c.Get(ctx, captcha.KindColor, key, &got)
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(2 * time.Minute)
	ok, err = c.Get(ctx, captcha.KindSlider, key, &got)
	require.NoError(t, err)
	assert.False(t, ok, "solução deveria expirar após o TTL")
}

func TestSolutionCacheForget(t *testing.T) {
	mr := miniredis.RunT(t)
	c := NewSolutionCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}), 0)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, captcha.KindShape, "abc", stored{Offset: 1}))
	assert.Equal(t, 10*time.Minute, mr.TTL("aujc:solution:shape:abc"))
	require.NoError(t, c.Forget(ctx, captcha.KindShape, "abc"))
	assert.False(t, mr.Exists("aujc:solution:shape:abc"))
}

func TestSolutionCacheCorruptEntry(t *testing.T) {
	mr := miniredis.RunT(t)
	c := NewSolutionCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}), 0)
	require.NoError(t, mr.Set("aujc:solution:slider:x", "{quebrado"))

	var got stored
	_, err := c.Get(context.Background(), captcha.KindSlider, "x", &got)
	assert.Error(t, err)
}

func TestKeySeparatesParts(t *testing.T) {
	assert.NotEqual(t, Key("ab", "c"), Key("a", "bc"))
	assert.Equal(t, Key("a", "b"), Key("a", "b"))
	assert.Len(t, Key("x"), 64)
}
