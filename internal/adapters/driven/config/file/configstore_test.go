package file

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigStore_Success(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewConfigStore(tmpDir)

	require.NoError(t, err)
	require.NotNil(t, store)
	assert.Equal(t, filepath.Join(tmpDir, "config.toml"), store.Path())
}

func TestNewConfigStore_DefaultDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	if runtime.GOOS == "windows" {
		t.Setenv("USERPROFILE", home)
	}

	store, err := NewConfigStore("")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".ragops", "config.toml"), store.Path())
}

func TestNewConfigStore_NestedDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")

	store, err := NewConfigStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Set("chunking.size", 300))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("embedding.model", "voyage-law-2"))
	require.NoError(t, store.Set("chunking.size", 500))
	require.NoError(t, store.Set("index.enabled", true))
	require.NoError(t, store.Set("source.extensions", []string{".md", ".txt"}))

	assert.Equal(t, "voyage-law-2", store.GetString("embedding.model"))
	assert.Equal(t, 500, store.GetInt("chunking.size"))
	assert.True(t, store.GetBool("index.enabled"))
	assert.Equal(t, []string{".md", ".txt"}, store.GetStringSlice("source.extensions"))

	// Wrong types and missing keys return zero values.
	assert.Empty(t, store.GetString("chunking.size"))
	assert.Zero(t, store.GetInt("embedding.model"))
	assert.False(t, store.GetBool("missing"))
	assert.Nil(t, store.GetStringSlice("chunking.size"))

	val, ok := store.Get("missing")
	assert.False(t, ok)
	assert.Nil(t, val)
}

func TestConfigStore_PersistsNestedTables(t *testing.T) {
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Set("chunking.size", 400))
	require.NoError(t, store.Set("chunking.overlap", 40))
	require.NoError(t, store.Set("index.url", "https://worker.example.com"))
	require.NoError(t, store.Set("source.extensions", []string{".md"}))

	raw, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(raw), "[chunking]")
	assert.Contains(t, string(raw), "[index]")
	assert.NotContains(t, string(raw), `"chunking.size"`)

	reloaded, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.Equal(t, 400, reloaded.GetInt("chunking.size"))
	assert.Equal(t, 40, reloaded.GetInt("chunking.overlap"))
	assert.Equal(t, "https://worker.example.com", reloaded.GetString("index.url"))
	assert.Equal(t, []string{".md"}, reloaded.GetStringSlice("source.extensions"))
}

func TestConfigStore_ReadsHandWrittenFile(t *testing.T) {
	dir := t.TempDir()
	content := `
[embedding]
provider = "openai"
model = "text-embedding-3-small"

[index]
backend = "worker"
batch_size = 250
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0o600))

	store, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.Equal(t, "openai", store.GetString("embedding.provider"))
	assert.Equal(t, "worker", store.GetString("index.backend"))
	assert.Equal(t, 250, store.GetInt("index.batch_size"))
}

func TestConfigStore_SetNilRemovesKey(t *testing.T) {
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Set("index.token", "secret"))
	require.NoError(t, store.Set("index.token", nil))

	_, ok := store.Get("index.token")
	assert.False(t, ok)

	reloaded, err := NewConfigStore(dir)
	require.NoError(t, err)
	_, ok = reloaded.Get("index.token")
	assert.False(t, ok)
}

func TestConfigStore_ConflictingKeys(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("index", "flat"))
	err = store.Set("index.url", "https://x")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "conflicts")
}

func TestConfigStore_FilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions")
	}
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("test", "value"))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestConfigStore_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte{}, 0o600))

	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	_, ok := store.Get("any_key")
	assert.False(t, ok)
}

func TestConfigStore_InvalidTOML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[[[ not toml"), 0o600))

	_, err := NewConfigStore(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config.toml")
}

func TestConfigStore_SaveFailureKeepsExistingFile(t *testing.T) {
	if runtime.GOOS == "windows" || os.Getuid() == 0 {
		t.Skip("requires unix permissions without root")
	}
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Set("chunking.size", 500))

	require.NoError(t, os.Chmod(dir, 0o500))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o700) })

	assert.Error(t, store.Set("chunking.size", 600))

	raw, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(raw), "500")
}

func TestConfigStore_Concurrency(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := "concurrent.key" + string(rune('0'+id))
			_ = store.Set(key, id)
			_ = store.GetInt(key)
			_, _ = store.Get(key)
		}(i)
	}
	wg.Wait()

	reloaded, err := NewConfigStore(filepath.Dir(store.Path()))
	require.NoError(t, err)
	assert.Equal(t, 3, reloaded.GetInt("concurrent.key3"))
}

func TestFlattenUnflatten(t *testing.T) {
	nested := map[string]any{
		"a": map[string]any{"b": int64(1), "c": map[string]any{"d": "x"}},
		"e": true,
	}

	flat := flattenMap(nested, "")
	assert.Equal(t, map[string]any{"a.b": int64(1), "a.c.d": "x", "e": true}, flat)

	back, err := unflattenMap(flat)
	require.NoError(t, err)
	assert.Equal(t, nested, back)
}
