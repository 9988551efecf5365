package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreProbe_Disabled(t *testing.T) {
	p := NewStoreProbe(nil, time.Second)
	require.NoError(t, p.Start("*/1 * * * *"))
	defer p.Stop()

	assert.Equal(t, StoreStatusDisabled, p.Check(context.Background()).Status)
	assert.Equal(t, StoreStatusDisabled, p.Health().Status)
}

func TestStoreProbe_UpAndDown(t *testing.T) {
	store := newMemoryStore()
	p := NewStoreProbe(store, time.Second)

	h := p.Check(context.Background())
	assert.Equal(t, StoreStatusUp, h.Status)
	assert.Equal(t, "memory", h.Backend)
	assert.False(t, h.CheckedAt.IsZero())

	store.queryErr = errors.New("connection refused")
	h = p.Check(context.Background())
	assert.Equal(t, StoreStatusDown, h.Status)
	assert.Equal(t, "connection refused", h.Error)
	assert.Equal(t, h, p.Health())
}

func TestStoreProbe_StartRejectsBadCron(t *testing.T) {
	p := NewStoreProbe(newMemoryStore(), time.Second)
	assert.Error(t, p.Start("not a cron"))
	assert.Equal(t, StoreStatusUp, p.Health().Status)
}

func TestStoreProbe_CurrentChecksOnce(t *testing.T) {
	store := newMemoryStore()
	p := NewStoreProbe(store, time.Second)

	first := p.Current(context.Background())
	assert.Equal(t, StoreStatusUp, first.Status)

	store.queryErr = errors.New("gone")
	assert.Equal(t, first, p.Current(context.Background()))
}
