package tariff

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRulesPrograms(t *testing.T) {
	rules := mustDefaultRules(t)

	for origin, want := range map[string]string{"JO": "jordan", "SG": "singapore", "AU": "australia"} {
		got, ok := rules.ProgramFor(origin)
		require.True(t, ok, origin)
		assert.Equal(t, want, got)
	}

	_, ok := rules.ProgramFor("CN")
	assert.False(t, ok)
	assert.Len(t, rules.Programs(), 3)
	assert.Equal(t, "US", rules.Baseline().Code)
	assert.Equal(t, "US", rules.SearchJurisdiction().Code)
}

func TestLoadRulesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := `
baseline: ca
jurisdictions:
  - code: ca
    name: Canada
    aliases: [canada]
  - code: mx
    name: Mexico
programs:
  - key: CUSMA
    name: Canada-United States-Mexico Agreement
    origins: [mexico, US]
countries:
  mexico: MX
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	rules, err := LoadRules(path)
	require.NoError(t, err)

	assert.Equal(t, "CA", rules.Baseline().Code)
	assert.Equal(t, "CA", rules.SearchJurisdiction().Code)
	assert.Equal(t, "MX", rules.ResolveJurisdiction("mx").Code)
	assert.Equal(t, "CA", rules.ResolveJurisdiction("US").Code)

	key, ok := rules.ProgramFor("MX")
	require.True(t, ok)
	assert.Equal(t, "cusma", key)
}

func TestNewRulesRejectsInvalidTables(t *testing.T) {
	_, err := ParseRules([]byte(`baseline: US`))
	assert.Error(t, err)

	_, err = ParseRules([]byte(`
baseline: DE
jurisdictions:
  - code: US
`))
	assert.ErrorContains(t, err, "baseline")

	_, err = ParseRules([]byte(`
baseline: US
jurisdictions:
  - code: US
  - code: us
`))
	assert.ErrorContains(t, err, "duplicate")

	_, err = ParseRules([]byte(`
baseline: US
jurisdictions:
  - code: US
programs:
  - key: a
    origins: [AU]
  - key: b
    origins: [AU]
`))
	assert.ErrorContains(t, err, "mapped to programs")
}

func TestLoadRulesMissingFile(t *testing.T) {
	_, err := LoadRules(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
