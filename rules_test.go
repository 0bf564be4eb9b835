package decompress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/pathrules"
)

func TestRulesFilter(t *testing.T) {
	filter, err := RulesFilter([]pathrules.Rule{
		{Action: pathrules.ActionInclude, Pattern: "scripts/**"},
		{Action: pathrules.ActionExclude, Pattern: "scripts/tmp/**"},
		{Action: pathrules.ActionInclude, Pattern: "scripts/tmp/keep/**"},
	}, pathrules.MatcherOptions{
		CaseInsensitive: true,
		DefaultAction:   pathrules.ActionExclude,
	})
	require.NoError(t, err)

	files := []File{
		{Path: "scripts/main.c", Type: TypeFile},
		{Path: "scripts/tmp/a.c", Type: TypeFile},
		{Path: "SCRIPTS/TMP/keep/a.c", Type: TypeFile},
		{Path: "docs/readme.md", Type: TypeFile},
	}

	out := Transform(files, WithFilter(filter))
	assert.Equal(t, []string{"scripts/main.c", "SCRIPTS/TMP/keep/a.c"}, paths(out))
}

func TestRulesFilter_DefaultInclude(t *testing.T) {
	filter, err := RulesFilter([]pathrules.Rule{
		{Action: pathrules.ActionExclude, Pattern: "*.md"},
		{Action: pathrules.ActionExclude, Pattern: "   "},
	}, pathrules.MatcherOptions{})
	require.NoError(t, err)

	assert.True(t, filter(File{Path: "src/main.go", Type: TypeFile}))
	assert.False(t, filter(File{Path: "README.md", Type: TypeFile}))
}

func TestRulesFilter_IncludeRules(t *testing.T) {
	filter, err := RulesFilter(IncludeRules("*.paa", "textures/**"), pathrules.MatcherOptions{
		DefaultAction: pathrules.ActionExclude,
	})
	require.NoError(t, err)

	assert.True(t, filter(File{Path: "data/icon.paa", Type: TypeFile}))
	assert.True(t, filter(File{Path: "textures/wood/oak.png", Type: TypeFile}))
	assert.False(t, filter(File{Path: "config.cpp", Type: TypeFile}))
}

func TestRulesFilter_InvalidRule(t *testing.T) {
	_, err := RulesFilter([]pathrules.Rule{
		{Action: pathrules.ActionUnknown, Pattern: "*.txt"},
	}, pathrules.MatcherOptions{DefaultAction: pathrules.ActionExclude})
	require.Error(t, err)
}
