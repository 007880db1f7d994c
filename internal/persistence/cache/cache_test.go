package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemory_SetThenGet(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	c.Set(ctx, "bucket:1h:corridor:a>b", []byte(`{"quality":0.8}`), time.Minute)
	v, ok := c.Get(ctx, "bucket:1h:corridor:a>b")
	assert.True(t, ok)
	assert.Equal(t, `{"quality":0.8}`, string(v))
}

func TestMemory_ExpiresAfterTTL(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemory_MissingKey(t *testing.T) {
	c := NewMemory()
	_, ok := c.Get(context.Background(), "absent")
	assert.False(t, ok)
}
