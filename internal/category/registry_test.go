package category

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLookupIsCaseInsensitive(t *testing.T) {
	spec, ok := Lookup("Case-Log")
	require.True(t, ok)
	require.Equal(t, "case-log", spec.Tag)

	spec, ok = Lookup("  procedure ")
	require.True(t, ok)
	require.Equal(t, "procedure", spec.Tag)

	_, ok = Lookup("unknown")
	require.False(t, ok)
}

func TestTagsAreStableAndComplete(t *testing.T) {
	tags := Tags()
	require.True(t, sort.StringsAreSorted(tags))
	require.Len(t, tags, len(All()))
	for _, tag := range tags {
		spec, ok := Lookup(tag)
		require.True(t, ok)
		require.Equal(t, tag, spec.Tag, "tag key must match the spec tag")
	}
}

func TestAllowsSubCategory(t *testing.T) {
	caseLog, _ := Lookup("case-log")
	require.True(t, caseLog.AllowsSubCategory("OPD"))
	require.True(t, caseLog.AllowsSubCategory("opd"))
	require.False(t, caseLog.AllowsSubCategory("THEATRE"))
	require.False(t, caseLog.AllowsSubCategory(""), "restricted categories require a sub-category")

	seminar, _ := Lookup("seminar")
	require.True(t, seminar.AllowsSubCategory(""))
	require.True(t, seminar.AllowsSubCategory("anything"))
}

func TestCanonicalSubCategory(t *testing.T) {
	caseLog, _ := Lookup("case-log")
	for _, input := range []string{"OPD", "opd", "Opd"} {
		canonical, ok := caseLog.CanonicalSubCategory(input)
		require.True(t, ok, input)
		require.Equal(t, "OPD", canonical, "stored spelling comes from the registry")
	}
	_, ok := caseLog.CanonicalSubCategory("THEATRE")
	require.False(t, ok)

	seminar, _ := Lookup("seminar")
	canonical, ok := seminar.CanonicalSubCategory("Grand Rounds")
	require.True(t, ok)
	require.Equal(t, "Grand Rounds", canonical, "open categories keep the caller's value")
}

func TestPartitionedCategoriesAreMarked(t *testing.T) {
	for _, tag := range []string{"case-log", "procedure", "diagnostic", "imaging", "lab-report"} {
		spec, ok := Lookup(tag)
		require.True(t, ok)
		require.True(t, spec.TallyPartitioned, tag)
	}
	seminar, _ := Lookup("seminar")
	require.False(t, seminar.TallyPartitioned)
}
