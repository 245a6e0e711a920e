package redisclient

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker_RejectsNestedAcquireOfSameKey(t *testing.T) {
	l := NewLocalLocker()
	key := SlotKey(uuid.New(), "2025-03-10", "09:00")

	err := l.WithSlotLock(context.Background(), key, func(ctx context.Context) error {
		inner := l.WithSlotLock(ctx, key, func(context.Context) error { return nil })
		assert.ErrorIs(t, inner, ErrLockNotAcquired)
		return nil
	})
	require.NoError(t, err)
}

func TestLocalLocker_ReleasesOnError(t *testing.T) {
	l := NewLocalLocker()
	boom := errors.New("boom")

	err := l.WithSlotLock(context.Background(), "k", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	called := false
	err = l.WithSlotLock(context.Background(), "k", func(context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestLocalLocker_DistinctKeysDoNotBlock(t *testing.T) {
	l := NewLocalLocker()
	room := uuid.New()

	err := l.WithSlotLock(context.Background(), SlotKey(room, "2025-03-10", "09:00"), func(ctx context.Context) error {
		return l.WithSlotLock(ctx, SlotKey(room, "2025-03-10", "09:30"), func(context.Context) error { return nil })
	})
	assert.NoError(t, err)
}

func TestSlotKey(t *testing.T) {
	room := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	assert.Equal(t, "lock:slot:00000000-0000-0000-0000-000000000001:2025-03-10:09:00", SlotKey(room, "2025-03-10", "09:00"))
}
