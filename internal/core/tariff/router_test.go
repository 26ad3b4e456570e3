package tariff

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDefaultRules(t *testing.T) *Rules {
	t.Helper()
	rules, err := DefaultRules()
	require.NoError(t, err)
	return rules
}

func TestResolveJurisdictionAcceptsCodesAndNames(t *testing.T) {
	rules := mustDefaultRules(t)

	cases := map[string][]string{
		"AU": {"AU", "AUSTRALIA"},
		"BR": {"BR", "BRAZIL"},
		"CA": {"CA", "CANADA"},
		"CN": {"CN", "CHINA"},
		"FR": {"FR", "FRANCE"},
		"IN": {"IN", "INDIA"},
		"ID": {"ID", "INDONESIA"},
		"IL": {"IL", "ISRAEL"},
		"IT": {"IT", "ITALY"},
		"JP": {"JP", "JAPAN"},
		"MX": {"MX", "MEXICO"},
		"SA": {"SA", "SAUDI_ARABIA"},
		"SG": {"SG", "SINGAPORE"},
		"ZA": {"ZA", "SOUTH_AFRICA"},
		"KR": {"KR", "SOUTH_KOREA"},
		"TR": {"TR", "TURKEY"},
		"GB": {"GB", "UK"},
		"US": {"US", "USA"},
	}
	require.Len(t, rules.Jurisdictions(), len(cases))

	for want, inputs := range cases {
		for _, input := range inputs {
			for _, variant := range []string{input, strings.ToLower(input), "  " + input + " "} {
				got := rules.ResolveJurisdiction(variant)
				assert.Equal(t, want, got.Code, "input %q", variant)
				assert.True(t, rules.IsSupported(variant), "input %q", variant)
			}
		}
	}
}

func TestResolveJurisdictionFoldsSpacesAndHyphens(t *testing.T) {
	rules := mustDefaultRules(t)

	assert.Equal(t, "SA", rules.ResolveJurisdiction("Saudi Arabia").Code)
	assert.Equal(t, "ZA", rules.ResolveJurisdiction("south-africa").Code)
	assert.Equal(t, "GB", rules.ResolveJurisdiction("united kingdom").Code)
}

func TestResolveJurisdictionFallsBackToBaseline(t *testing.T) {
	rules := mustDefaultRules(t)

	for _, input := range []string{"", "   ", "XX", "ATLANTIS", "12"} {
		got := rules.ResolveJurisdiction(input)
		assert.Equal(t, "US", got.Code, "input %q", input)
	}
	assert.False(t, rules.IsSupported("ATLANTIS"))
}

func TestNormalizeCountryMapsNamesToCodes(t *testing.T) {
	rules := mustDefaultRules(t)

	assert.Equal(t, "JO", rules.NormalizeCountry("jordan"))
	assert.Equal(t, "AU", rules.NormalizeCountry("Australia"))
	assert.Equal(t, "GB", rules.NormalizeCountry("uk"))
	assert.Equal(t, "DE", rules.NormalizeCountry(" de "))
}
