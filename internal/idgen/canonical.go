package idgen

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/stoneforge-ai/stoneforge/internal/types"
)

// CanonicalJSON re-marshals v through a generic interface{} round trip,
// which gives deterministic key-sorted output because encoding/json
// already sorts map[string]interface{} keys alphabetically. Arrays keep
// their original order; numbers round-trip through Go's shortest
// float64 representation.
func CanonicalJSON(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic interface{}
	if err := json.Unmarshal(b, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}

const reservedMetadataPrefix = "_el_"

// ContentHash computes the spec's per-element content hash: the
// canonical JSON of a view that drops updatedAt (a volatile field that
// must not affect equality) and any metadata key under the reserved
// _el_ namespace, then SHA-256 hex-encoded via ContentDigest.
func ContentHash(el *types.Element) (string, error) {
	view := map[string]interface{}{
		"id":        el.ID,
		"type":      string(el.Type),
		"createdAt": el.CreatedAt.UTC().Format(time.RFC3339Nano),
		"createdBy": el.CreatedBy,
		"tags":      el.Tags,
	}
	if el.DeletedAt != nil {
		view["deletedAt"] = el.DeletedAt.UTC().Format(time.RFC3339Nano)
	}
	if len(el.Metadata) > 0 {
		var m map[string]json.RawMessage
		if err := json.Unmarshal(el.Metadata, &m); err != nil {
			return "", err
		}
		filtered := make(map[string]json.RawMessage, len(m))
		for k, v := range m {
			if !strings.HasPrefix(k, reservedMetadataPrefix) {
				filtered[k] = v
			}
		}
		view["metadata"] = filtered
	}

	canon, err := CanonicalJSON(view)
	if err != nil {
		return "", err
	}
	return ContentDigest(canon), nil
}
