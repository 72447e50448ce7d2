package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMCPCmd_Structure(t *testing.T) {
	assert.Equal(t, "mcp", mcpCmd.Use)
	require.Len(t, mcpCmd.Commands(), 1)
	assert.Equal(t, "serve", mcpCmd.Commands()[0].Use)
}

func TestMCPServeCmd_HasPortFlag(t *testing.T) {
	flag := mcpServeCmd.Flags().Lookup("port")
	require.NotNil(t, flag)
	assert.Equal(t, "p", flag.Shorthand)
	assert.Equal(t, "0", flag.DefValue)
}

func TestMCPServeCmd_RequiresServices(t *testing.T) {
	_, _, cleanup := setupTestServices()
	defer cleanup()
	pipelineService = nil
	indexService = nil
	// An invalid stored backend stops wiring before anything is served.
	require.NoError(t, settingsService.Set("index.backend", "worker"))
	t.Setenv("CF_WORKER_URL", "")
	t.Setenv("CF_API_KEY", "")

	_, err := executeCommand(t, "mcp", "serve")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "worker backend requires")
}
