package resources_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	apperrors "github.com/jrsteele09/go-medassist-client/internal/errors"
	"github.com/jrsteele09/go-medassist-client/resources"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID   string
	Name string
}

func TestCache_LoadAndClear(t *testing.T) {
	calls := 0
	var gotUser string
	c := resources.NewCache("items", func() string { return "u1" }, func(ctx context.Context, userID string) ([]item, error) {
		calls++
		gotUser = userID
		return []item{{ID: "1", Name: "Aspirin"}}, nil
	})

	require.False(t, c.Loaded())
	items, err := c.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "u1", gotUser)
	require.True(t, c.Loaded())
	require.Equal(t, "items", c.Name())

	c.Clear()
	require.False(t, c.Loaded())
	require.Empty(t, c.Items())
	require.Equal(t, 1, calls)
}

func TestCache_LoadRequiresUser(t *testing.T) {
	c := resources.NewCache("items", func() string { return "" }, func(ctx context.Context, userID string) ([]item, error) {
		t.Fatal("fetch must not run without a user")
		return nil, nil
	})
	_, err := c.Load(context.Background())
	require.True(t, apperrors.Is(err, apperrors.ErrNotAuthenticated))
}

func TestCache_FailedLoadKeepsPreviousCopy(t *testing.T) {
	fail := false
	c := resources.NewCache("items", func() string { return "u1" }, func(ctx context.Context, userID string) ([]item, error) {
		if fail {
			return nil, errors.New("boom")
		}
		return []item{{ID: "1"}}, nil
	})
	_, err := c.Load(context.Background())
	require.NoError(t, err)

	fail = true
	_, err = c.Load(context.Background())
	require.Error(t, err)
	require.Len(t, c.Items(), 1)
	require.EqualError(t, c.Err(), "boom")
}

func TestCache_ClearDuringFetchDropsResult(t *testing.T) {
	var mu sync.Mutex
	user := "alice"
	started := make(chan struct{})
	release := make(chan struct{})
	c := resources.NewCache("items", func() string {
		mu.Lock()
		defer mu.Unlock()
		return user
	}, func(ctx context.Context, userID string) ([]item, error) {
		close(started)
		<-release
		return []item{{ID: "1", Name: userID + "-secret"}}, nil
	})

	done := make(chan error, 1)
	go func() {
		_, err := c.Load(context.Background())
		done <- err
	}()

	<-started
	c.Clear()
	mu.Lock()
	user = ""
	mu.Unlock()
	close(release)

	err := <-done
	require.True(t, apperrors.Is(err, apperrors.ErrNotAuthenticated))
	require.False(t, c.Loaded())
	require.Empty(t, c.Items())
}

func TestCache_RefreshIfStale(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	prev := resources.NowTimeFunc
	resources.NowTimeFunc = func() time.Time { return now }
	defer func() { resources.NowTimeFunc = prev }()

	calls := 0
	c := resources.NewCache("items", func() string { return "u1" }, func(ctx context.Context, userID string) ([]item, error) {
		calls++
		return nil, nil
	})

	refreshed, err := c.RefreshIfStale(context.Background(), 30*time.Second)
	require.NoError(t, err)
	require.True(t, refreshed)

	now = now.Add(10 * time.Second)
	refreshed, err = c.RefreshIfStale(context.Background(), 30*time.Second)
	require.NoError(t, err)
	require.False(t, refreshed)

	now = now.Add(30 * time.Second)
	refreshed, err = c.RefreshIfStale(context.Background(), 30*time.Second)
	require.NoError(t, err)
	require.True(t, refreshed)
	require.Equal(t, 2, calls)
}

func TestCache_UpsertAndRemove(t *testing.T) {
	c := resources.NewCache("items", func() string { return "u1" }, func(ctx context.Context, userID string) ([]item, error) {
		return []item{{ID: "1", Name: "a"}, {ID: "2", Name: "b"}}, nil
	})
	_, err := c.Load(context.Background())
	require.NoError(t, err)

	c.Upsert(item{ID: "2", Name: "b2"}, func(it item) bool { return it.ID == "2" })
	c.Upsert(item{ID: "3", Name: "c"}, func(it item) bool { return it.ID == "3" })
	require.Equal(t, []item{{ID: "1", Name: "a"}, {ID: "2", Name: "b2"}, {ID: "3", Name: "c"}}, c.Items())

	c.Remove(func(it item) bool { return it.ID == "1" })
	require.Equal(t, []item{{ID: "2", Name: "b2"}, {ID: "3", Name: "c"}}, c.Items())
}
