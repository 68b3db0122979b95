package dispatch

import (
	"encoding/json"

	"github.com/stoneforge-ai/stoneforge/internal/types"
)

// mergeMetadataPatch shallow-merges fields into el's existing metadata
// object and returns the resulting JSON, the same "read, patch top-level
// keys, rewrite" pattern store.Update's patch map uses for the
// element envelope, applied one level deeper to metadata sub-fields.
func mergeMetadataPatch(el *types.Element, fields map[string]interface{}) (json.RawMessage, error) {
	current := map[string]json.RawMessage{}
	if len(el.Metadata) > 0 {
		if err := json.Unmarshal(el.Metadata, &current); err != nil {
			return nil, err
		}
	}
	for key, value := range fields {
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		current[key] = raw
	}
	return json.Marshal(current)
}
