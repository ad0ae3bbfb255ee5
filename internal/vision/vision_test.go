package vision

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yungbote/clipindex/internal/domain"
)

func strPtr(s string) *string { return &s }

func TestMerge_PreferNonNilScalar(t *testing.T) {
	local := NewFieldValues()
	local.Scalars["scene"] = strPtr("local scene")
	remote := NewFieldValues()
	remote.Scalars["scene"] = strPtr("remote scene")

	merged := Merge(local, remote)
	require.Equal(t, "remote scene", *merged.Scalars["scene"])
}

func TestMerge_KeepsLocalWhenRemoteEmpty(t *testing.T) {
	local := NewFieldValues()
	local.Scalars["scene"] = strPtr("local scene")
	remote := NewFieldValues()

	merged := Merge(local, remote)
	require.Equal(t, "local scene", *merged.Scalars["scene"])
}

func TestMerge_PreferNonEmptyArray(t *testing.T) {
	local := NewFieldValues()
	local.Arrays["subjects"] = []string{"a", "b"}
	remote := NewFieldValues()
	remote.Arrays["subjects"] = []string{"c"}

	merged := Merge(local, remote)
	require.Equal(t, []string{"c"}, merged.Arrays["subjects"])
}

func TestMerge_KeepsLocalArrayWhenRemoteEmptyArray(t *testing.T) {
	local := NewFieldValues()
	local.Arrays["subjects"] = []string{"a", "b"}
	remote := NewFieldValues()

	merged := Merge(local, remote)
	require.Equal(t, []string{"a", "b"}, merged.Arrays["subjects"])
}

func TestComposeEmbeddingText_GroupsJoinedWithCorrectSeparators(t *testing.T) {
	fv := NewFieldValues()
	fv.Scalars["scene"] = strPtr("a kitchen")
	fv.Scalars["description"] = strPtr("someone cooking")
	fv.Arrays["objects"] = []string{"pan", "stove"}
	fv.Scalars["mood"] = strPtr("calm")

	text := ComposeEmbeddingText(fv)
	require.Contains(t, text, "a kitchen. someone cooking")
	require.Contains(t, text, "pan, stove")
}

func TestComposeTags_OnlyIncludesTaggedFields(t *testing.T) {
	fv := NewFieldValues()
	fv.Arrays["subjects"] = []string{"person", "dog"}
	fv.Scalars["scene"] = strPtr("park") // scene is not IncludeInTags
	tags := ComposeTags(fv)
	require.ElementsMatch(t, []string{"person", "dog"}, tags)
}

func TestBuildJSONSchema_IncludesAllNineFields(t *testing.T) {
	schema := BuildJSONSchema()
	props := schema["properties"].(map[string]interface{})
	require.Len(t, props, len(domain.FieldRegistry))
}

func TestParseFieldValues_RoundTripsArrayAndScalar(t *testing.T) {
	raw := []byte(`{"scene":"beach","subjects":["person","ball"],"actions":"playing","objects":[],"mood":"joyful","shotType":"wide","lighting":"bright","colors":["blue","yellow"],"description":"a day at the beach"}`)
	fv, err := ParseFieldValues(raw)
	require.NoError(t, err)
	require.Equal(t, "beach", *fv.Scalars["scene"])
	require.Equal(t, []string{"person", "ball"}, fv.Arrays["subjects"])
}
