package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kariantti/NuGetGallery/internal/errors"
	"github.com/kariantti/NuGetGallery/internal/validation"
)

func TestValidate_BundledSuitePasses(t *testing.T) {
	isolate(t)

	stdout, _, err := runCLI(t, "validate")

	require.NoError(t, err)
	assert.Contains(t, stdout, "R1 exact id ranks first")
	assert.Contains(t, stdout, "Ranking: 6/6 passed")
}

func TestValidate_CustomSuiteAgainstConfiguredGallery(t *testing.T) {
	// Given: a seeded gallery and a suite with one right and one wrong expectation
	dir := isolate(t)
	seedGallery(t, dir)
	suite := filepath.Join(t.TempDir(), "suite.yaml")
	require.NoError(t, os.WriteFile(suite, []byte(`ranking:
  - {id: C1, name: serilog, query: serilog, sort: relevance, expected: [Serilog]}
  - {id: C2, name: wrong, query: json, sort: popularity, expected: [JsonPatch]}
`), 0o644))

	// When
	stdout, _, err := runCLI(t, "validate", "--dir", dir, "--suite", suite, "--json")

	// Then: the run fails and the report shows which check
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSearchFailed, errors.GetCode(err))

	var report validation.Report
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	require.Len(t, report.Ranking, 2)
	assert.True(t, report.Ranking[0].Passed)
	assert.False(t, report.Ranking[1].Passed)
	assert.Equal(t, 1, report.RankingPass)
}

func TestValidate_MissingSuite(t *testing.T) {
	dir := isolate(t)

	_, _, err := runCLI(t, "validate", "--dir", dir, "--suite", filepath.Join(dir, "nope.yaml"))

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.GetCode(err))
}
