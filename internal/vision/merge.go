package vision

import "github.com/yungbote/clipindex/internal/domain"

// Merge combines a local result (layer 1, authoritative-first) with a
// remote/VLM result (layer 3) per each field's registry-declared merge
// strategy (§4.5): local value wins unless the remote value is present
// under the field's strategy.
func Merge(local, remote FieldValues) FieldValues {
	out := NewFieldValues()
	for _, f := range domain.FieldRegistry {
		switch f.MergeStrategy {
		case domain.MergePreferNonEmptyArray:
			localArr := local.Arrays[f.ColumnName]
			remoteArr := remote.Arrays[f.ColumnName]
			if len(remoteArr) > 0 {
				out.Arrays[f.ColumnName] = remoteArr
			} else {
				out.Arrays[f.ColumnName] = localArr
			}
		default: // preferNonNil
			localVal := local.Scalars[f.ColumnName]
			remoteVal := remote.Scalars[f.ColumnName]
			if remoteVal != nil && *remoteVal != "" {
				out.Scalars[f.ColumnName] = remoteVal
			} else {
				out.Scalars[f.ColumnName] = localVal
			}
		}
	}
	return out
}
