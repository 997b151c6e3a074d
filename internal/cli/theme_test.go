package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/gpuwatch/internal/errors"
)

func TestThemeDefaultsToSystem(t *testing.T) {
	setupCLI(t, "")

	var buf bytes.Buffer
	require.NoError(t, themeShow(&buf))
	assert.Equal(t, "system\n", buf.String())
}

func TestThemeSetPersists(t *testing.T) {
	setupCLI(t, "")

	var buf bytes.Buffer
	require.NoError(t, themeSet(&buf, "Dark"))
	assert.Contains(t, buf.String(), "Theme set to dark")

	buf.Reset()
	require.NoError(t, themeShow(&buf))
	assert.Equal(t, "dark\n", buf.String())
}

func TestThemeCycle(t *testing.T) {
	setupCLI(t, "")

	var buf bytes.Buffer
	for _, want := range []string{"light", "dark", "system"} {
		require.NoError(t, themeSet(&buf, ""))
		buf.Reset()
		require.NoError(t, themeShow(&buf))
		assert.Equal(t, want+"\n", buf.String())
		buf.Reset()
	}
}

func TestThemeSetUnknown(t *testing.T) {
	setupCLI(t, "")

	err := themeSet(&bytes.Buffer{}, "sepia")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrValidation))
}

func TestThemeShowJSON(t *testing.T) {
	setupCLI(t, "")
	machineMode = true

	var buf bytes.Buffer
	require.NoError(t, themeShow(&buf))
	assert.Contains(t, buf.String(), `"theme": "system"`)
}

func TestThemeLeavesConnectionsAlone(t *testing.T) {
	setupCLI(t, "")
	require.NoError(t, connAdd(&bytes.Buffer{}, ConnAddOptions{Name: "lab", Host: "a", Port: "1", SkipTest: true}))
	require.NoError(t, themeSet(&bytes.Buffer{}, "light"))

	assert.Len(t, savedConnections(t), 1)
}
