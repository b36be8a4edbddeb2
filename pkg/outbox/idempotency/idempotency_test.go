package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	setKeys map[string]bool
	deleted []string
	setErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{setKeys: make(map[string]bool)}
}

func (f *fakeStore) Get(context.Context, string) (string, error) { return "", nil }

func (f *fakeStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	if f.setErr != nil {
		return false, f.setErr
	}
	if f.setKeys[key] {
		return false, nil
	}
	f.setKeys[key] = true
	return true, nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return "wc:idempotency:" + scope + ":" + id
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.setKeys, key)
		f.deleted = append(f.deleted, key)
	}
	return nil
}

func TestCheckAndMarkProcessed(t *testing.T) {
	store := newFakeStore()
	manager, err := NewManager(store, time.Hour)
	require.NoError(t, err)
	eventID := uuid.New()

	already, err := manager.CheckAndMarkProcessed(context.Background(), "order-notifications", eventID)
	require.NoError(t, err)
	assert.False(t, already)

	already, err = manager.CheckAndMarkProcessed(context.Background(), "order-notifications", eventID)
	require.NoError(t, err)
	assert.True(t, already)

	// A different consumer tracks the same event independently.
	already, err = manager.CheckAndMarkProcessed(context.Background(), "catalog-notifications", eventID)
	require.NoError(t, err)
	assert.False(t, already)
}

func TestDeleteReleasesMarker(t *testing.T) {
	store := newFakeStore()
	manager, err := NewManager(store, time.Hour)
	require.NoError(t, err)
	eventID := uuid.New()

	_, err = manager.CheckAndMarkProcessed(context.Background(), "order-notifications", eventID)
	require.NoError(t, err)
	require.NoError(t, manager.Delete(context.Background(), "order-notifications", eventID))

	already, err := manager.CheckAndMarkProcessed(context.Background(), "order-notifications", eventID)
	require.NoError(t, err)
	assert.False(t, already)
}

func TestCheckRequiresConsumerAndEvent(t *testing.T) {
	manager, err := NewManager(newFakeStore(), time.Hour)
	require.NoError(t, err)

	_, err = manager.CheckAndMarkProcessed(context.Background(), "", uuid.New())
	require.Error(t, err)

	_, err = manager.CheckAndMarkProcessed(context.Background(), "order-notifications", uuid.Nil)
	require.Error(t, err)
}

func TestCheckSurfacesStoreFailure(t *testing.T) {
	store := newFakeStore()
	store.setErr = errors.New("redis down")
	manager, err := NewManager(store, time.Hour)
	require.NoError(t, err)

	_, err = manager.CheckAndMarkProcessed(context.Background(), "order-notifications", uuid.New())
	require.Error(t, err)
}
