package toml

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/bnema/screeps-cli/internal/domain"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) (*ProfileRepository, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "profiles.toml")
	config := viper.New()
	config.Set(ProfilesPathKey, path)

	repo, err := NewProfileRepository(config, "")
	require.NoError(t, err)
	return repo, path
}

func TestProfileRepositoryRoundTrip(t *testing.T) {
	t.Parallel()

	repo, _ := newTestRepository(t)
	ctx := context.Background()

	official := domain.Profile{Name: "official", ServerURL: "https://screeps.com/api/", Username: "alice", Shard: "shard3"}
	private := domain.Profile{Name: "private", ServerURL: "http://localhost:21025/api/", Username: "bob"}

	require.NoError(t, repo.Save(ctx, private))
	require.NoError(t, repo.Save(ctx, official))

	got, err := repo.Get(ctx, "official")
	require.NoError(t, err)
	assert.Equal(t, official, got)

	profiles, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.Profile{official, private}, profiles)
}

func TestProfileRepositorySaveReplacesByName(t *testing.T) {
	t.Parallel()

	repo, _ := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, domain.Profile{Name: "default", Username: "alice", Shard: "shard0"}))
	require.NoError(t, repo.Save(ctx, domain.Profile{Name: "default", Username: "alice", Shard: "shard2"}))

	profiles, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "shard2", profiles[0].Shard)
}

func TestProfileRepositoryMissingProfile(t *testing.T) {
	t.Parallel()

	repo, _ := newTestRepository(t)

	_, err := repo.Get(context.Background(), "nope")
	require.ErrorIs(t, err, domain.ErrProfileNotFound)

	err = repo.Delete(context.Background(), "nope")
	require.ErrorIs(t, err, domain.ErrProfileNotFound)
}

func TestProfileRepositoryDelete(t *testing.T) {
	t.Parallel()

	repo, _ := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, domain.Profile{Name: "a", Username: "alice"}))
	require.NoError(t, repo.Save(ctx, domain.Profile{Name: "b", Username: "bob"}))
	require.NoError(t, repo.Delete(ctx, "a"))

	profiles, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "b", profiles[0].Name)
}

func TestProfileRepositoryRejectsInvalidProfiles(t *testing.T) {
	t.Parallel()

	repo, path := newTestRepository(t)
	ctx := context.Background()

	require.Error(t, repo.Save(ctx, domain.Profile{Name: "", Username: "alice"}))
	require.Error(t, repo.Save(ctx, domain.Profile{Name: "x", Username: ""}))
	require.Error(t, repo.Save(ctx, domain.Profile{Name: "x", Username: "alice", ServerURL: "ftp://example.com"}))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestProfileRepositoryWritesVersionAndPermissions(t *testing.T) {
	t.Parallel()

	repo, path := newTestRepository(t)
	require.NoError(t, repo.Save(context.Background(), domain.Profile{Name: "default", Username: "alice"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "version = 1")
	assert.Contains(t, string(data), "username = 'alice'")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(profilesFileMode), info.Mode().Perm())

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), ".profiles-*.toml.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestProfileRepositoryRejectsFutureSchema(t *testing.T) {
	t.Parallel()

	repo, path := newTestRepository(t)
	require.NoError(t, os.WriteFile(path, []byte("version = 9\n"), 0o600))

	_, err := repo.List(context.Background())
	require.ErrorContains(t, err, "unsupported profiles schema version 9")
}

func TestProfileRepositoryConcurrentSaves(t *testing.T) {
	t.Parallel()

	repo, _ := newTestRepository(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := "p" + strconv.Itoa(i)
			assert.NoError(t, repo.Save(ctx, domain.Profile{Name: name, Username: "user" + strconv.Itoa(i)}))
		}()
	}
	wg.Wait()

	profiles, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, profiles, 20)
}

func TestProfileRepositoryDefaultsToConfigDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	repo, err := NewProfileRepository(viper.New(), dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "profiles.toml"), repo.Path())
}
