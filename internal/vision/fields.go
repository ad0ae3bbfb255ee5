// Package vision implements VisionAnalyzer (§4.5): engine selection,
// field-registry-driven prompt/schema generation, and merge logic across
// the local fast analyzer, local VLM, and remote cloud engine.
package vision

import (
	"encoding/json"
	"strings"

	"github.com/yungbote/clipindex/internal/domain"
)

// FieldValues holds the nine fields for one clip, using the same
// representation (scalar pointer or string slice) as domain.Clip.
type FieldValues struct {
	Scalars map[string]*string
	Arrays  map[string][]string
}

func NewFieldValues() FieldValues {
	return FieldValues{Scalars: map[string]*string{}, Arrays: map[string][]string{}}
}

// BuildPromptLines renders one prompt line per registry entry, in
// registry order, single-point-of-truth per §9.
func BuildPromptLines() []string {
	lines := make([]string, 0, len(domain.FieldRegistry))
	for _, f := range domain.FieldRegistry {
		lines = append(lines, f.PromptLine)
	}
	return lines
}

// BuildJSONSchema derives the Responses API json_schema from the field
// registry: string properties for scalar fields, string-array properties
// for array fields, all required, no additional properties.
func BuildJSONSchema() map[string]interface{} {
	properties := map[string]interface{}{}
	required := make([]string, 0, len(domain.FieldRegistry))
	for _, f := range domain.FieldRegistry {
		if f.IsArray {
			properties[f.ColumnName] = map[string]interface{}{
				"type":  "array",
				"items": map[string]interface{}{"type": "string"},
			}
		} else {
			properties[f.ColumnName] = map[string]interface{}{"type": "string"}
		}
		required = append(required, f.ColumnName)
	}
	return map[string]interface{}{
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	}
}

// ParseFieldValues unmarshals a json_schema response payload into
// FieldValues, driven by the registry so a new field only needs an entry
// there.
func ParseFieldValues(raw []byte) (FieldValues, error) {
	var generic map[string]json.RawMessage
	if err := json.Unmarshal(raw, &generic); err != nil {
		return FieldValues{}, err
	}
	fv := NewFieldValues()
	for _, f := range domain.FieldRegistry {
		val, ok := generic[f.ColumnName]
		if !ok {
			continue
		}
		if f.IsArray {
			var arr []string
			if err := json.Unmarshal(val, &arr); err == nil {
				fv.Arrays[f.ColumnName] = arr
			}
		} else {
			var s string
			if err := json.Unmarshal(val, &s); err == nil && s != "" {
				fv.Scalars[f.ColumnName] = &s
			}
		}
	}
	return fv, nil
}

// ComposeEmbeddingText joins field values per §4.6's group separators:
// primary fields joined with ". "; detail and meta fields joined with ", ".
func ComposeEmbeddingText(fv FieldValues) string {
	groups := map[domain.EmbeddingGroup][]string{}
	for _, f := range domain.FieldRegistry {
		var text string
		if f.IsArray {
			text = strings.Join(fv.Arrays[f.ColumnName], ", ")
		} else if s := fv.Scalars[f.ColumnName]; s != nil {
			text = *s
		}
		if text == "" {
			continue
		}
		groups[f.EmbeddingGroup] = append(groups[f.EmbeddingGroup], text)
	}
	var parts []string
	if len(groups[domain.GroupPrimary]) > 0 {
		parts = append(parts, strings.Join(groups[domain.GroupPrimary], ". "))
	}
	if len(groups[domain.GroupDetail]) > 0 {
		parts = append(parts, strings.Join(groups[domain.GroupDetail], ", "))
	}
	if len(groups[domain.GroupMeta]) > 0 {
		parts = append(parts, strings.Join(groups[domain.GroupMeta], ", "))
	}
	return strings.Join(parts, ". ")
}

// ComposeTags builds the merged tags array from fields marked
// IncludeInTags in the registry.
func ComposeTags(fv FieldValues) []string {
	var tags []string
	seen := map[string]bool{}
	add := func(v string) {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			return
		}
		seen[v] = true
		tags = append(tags, v)
	}
	for _, f := range domain.FieldRegistry {
		if !f.IncludeInTags {
			continue
		}
		if f.IsArray {
			for _, v := range fv.Arrays[f.ColumnName] {
				add(v)
			}
		} else if s := fv.Scalars[f.ColumnName]; s != nil {
			add(*s)
		}
	}
	return tags
}

// ApplyToClip writes FieldValues into a domain.Clip's nine visual fields.
func ApplyToClip(c *domain.Clip, fv FieldValues) {
	c.Scene = fv.Scalars["scene"]
	c.Subjects = fv.Arrays["subjects"]
	c.Actions = fv.Scalars["actions"]
	c.Objects = fv.Arrays["objects"]
	c.Mood = fv.Scalars["mood"]
	c.ShotType = fv.Scalars["shotType"]
	c.Lighting = fv.Scalars["lighting"]
	c.Colors = fv.Arrays["colors"]
	c.Description = fv.Scalars["description"]
}

// ExtractFromClip reads a domain.Clip's nine visual fields back into
// FieldValues (used by the merge step to read the existing local-analyzer
// values before a remote result arrives).
func ExtractFromClip(c *domain.Clip) FieldValues {
	fv := NewFieldValues()
	fv.Scalars["scene"] = c.Scene
	fv.Arrays["subjects"] = c.Subjects
	fv.Scalars["actions"] = c.Actions
	fv.Arrays["objects"] = c.Objects
	fv.Scalars["mood"] = c.Mood
	fv.Scalars["shotType"] = c.ShotType
	fv.Scalars["lighting"] = c.Lighting
	fv.Arrays["colors"] = c.Colors
	fv.Scalars["description"] = c.Description
	return fv
}
