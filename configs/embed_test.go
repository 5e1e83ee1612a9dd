package configs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kariantti/NuGetGallery/internal/config"
)

func TestProjectConfigTemplate_MatchesDefaults(t *testing.T) {
	// Given: the template written as a project file
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.ProjectFileName), []byte(ProjectConfigTemplate), 0o644))

	// When
	got, err := config.Load(dir)
	require.NoError(t, err)

	// Then: it loads to the same settings as no file at all
	want, err := config.Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, want.Search, got.Search)
	assert.Equal(t, want.Catalog.Driver, got.Catalog.Driver)
	assert.Equal(t, want.Catalog.LookupBatchSize, got.Catalog.LookupBatchSize)
	assert.Equal(t, want.Server, got.Server)
	assert.Equal(t, want.Telemetry.TopTermsCapacity, got.Telemetry.TopTermsCapacity)
	assert.True(t, got.Telemetry.IsEnabled())
	assert.Equal(t, filepath.Join(dir, ".gallerysearch", "index"), got.Index.Path)
}
