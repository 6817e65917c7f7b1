package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	URL   string `json:"url"`
	Count int    `json:"count"`
}

func TestMemory_SetGetDelete(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m := NewMemory(ctx)

	require.NoError(t, m.Set(ctx, ShortURLKey("abc1234"), payload{URL: "https://example.com", Count: 2}, time.Minute))

	var got payload
	ok, err := m.Get(ctx, ShortURLKey("abc1234"), &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "https://example.com", got.URL)

	require.NoError(t, m.Delete(ctx, ShortURLKey("abc1234")))
	ok, err = m.Get(ctx, ShortURLKey("abc1234"), &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory_Expiry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m := NewMemory(ctx)
	now := time.Now()
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "k", 1, time.Second))
	m.now = func() time.Time { return now.Add(2 * time.Second) }

	var v int
	ok, err := m.Get(ctx, "k", &v)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSEOAnalysisKey_LowercasesKeyword(t *testing.T) {
	assert.Equal(t, "seo:hash:golang", SEOAnalysisKey("hash", "GoLang"))
}
