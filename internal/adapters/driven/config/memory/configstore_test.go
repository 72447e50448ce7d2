package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigStore_SeededCopy(t *testing.T) {
	seed := map[string]any{"chunking.size": 300}
	s := NewConfigStore(seed)

	require.NoError(t, s.Set("chunking.size", 400))
	assert.Equal(t, 400, s.GetInt("chunking.size"))
	assert.Equal(t, 300, seed["chunking.size"], "seed map is not aliased")
}

func TestConfigStore_Getters(t *testing.T) {
	s := NewConfigStore(map[string]any{
		"a": "text",
		"b": int64(7),
		"c": 2.0,
		"d": true,
		"e": []any{".md", 3, ".txt"},
	})

	assert.Equal(t, "text", s.GetString("a"))
	assert.Equal(t, 7, s.GetInt("b"))
	assert.Equal(t, 2, s.GetInt("c"))
	assert.True(t, s.GetBool("d"))
	assert.Equal(t, []string{".md", ".txt"}, s.GetStringSlice("e"))

	assert.Empty(t, s.GetString("missing"))
	assert.Zero(t, s.GetInt("a"))
	assert.False(t, s.GetBool("a"))
	assert.Nil(t, s.GetStringSlice("a"))
}

func TestConfigStore_SetNilDeletes(t *testing.T) {
	s := NewConfigStore(nil)
	require.NoError(t, s.Set("index.token", "x"))
	require.NoError(t, s.Set("index.token", nil))

	_, ok := s.Get("index.token")
	assert.False(t, ok)
}

func TestConfigStore_NoOps(t *testing.T) {
	s := NewConfigStore(nil)
	assert.NoError(t, s.Save())
	assert.NoError(t, s.Load())
	assert.Equal(t, ":memory:", s.Path())
}
