package redisrepo_test

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/jrsteele09/go-medassist-client/token/redisrepo"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T) (*redisrepo.RedisRepo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	repo, err := redisrepo.New(redisrepo.Options{Addr: mr.Addr(), Prefix: "medassist:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo, mr
}

func TestRedisRepo_GetSetDelete(t *testing.T) {
	repo, mr := newRepo(t)

	_, ok, err := repo.Get("token")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, repo.Set("token", "acc"))
	require.NoError(t, repo.Set("user", `{"id":"u1"}`))

	raw, err := mr.Get("medassist:token")
	require.NoError(t, err)
	require.Equal(t, "acc", raw)

	v, ok, err := repo.Get("token")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "acc", v)

	require.NoError(t, repo.Delete("token", "user", "missing"))
	require.False(t, mr.Exists("medassist:token"))
	require.False(t, mr.Exists("medassist:user"))
	require.NoError(t, repo.Delete())
}

func TestRedisRepo_ServerDown(t *testing.T) {
	repo, mr := newRepo(t)
	mr.Close()

	_, _, err := repo.Get("token")
	require.Error(t, err)
	require.Error(t, repo.Set("token", "acc"))
}

func TestNewWithClient_SharesPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	a := redisrepo.NewWithClient(client, "a:")
	b := redisrepo.NewWithClient(client, "b:")
	require.NoError(t, a.Set("token", "one"))

	_, ok, err := b.Get("token")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestNew_RequiresAddr(t *testing.T) {
	_, err := redisrepo.New(redisrepo.Options{})
	require.Error(t, err)
}
