package dispatch

import (
	"encoding/json"

	"github.com/stoneforge-ai/stoneforge/internal/types"
)

// PoolsConfigKey is the config row under which the pool roster is
// persisted, the same singleton-settings convention the teacher's
// internal/storage/sqlite/config.go uses for issue_prefix and similar.
const PoolsConfigKey = "pools"

func decodePools(value string) ([]types.Pool, error) {
	if value == "" {
		return nil, nil
	}
	var pools []types.Pool
	if err := json.Unmarshal([]byte(value), &pools); err != nil {
		return nil, err
	}
	return pools, nil
}

func encodePools(pools []types.Pool) (string, error) {
	b, err := json.Marshal(pools)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodePools and EncodePools expose the pool-roster codec to callers
// outside this package (the CLI's `pool` commands) that read or write
// the PoolsConfigKey setting directly.
func DecodePools(value string) ([]types.Pool, error) { return decodePools(value) }
func EncodePools(pools []types.Pool) (string, error) { return encodePools(pools) }
