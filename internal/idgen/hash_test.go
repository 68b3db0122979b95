package idgen

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRootIDDeterministic(t *testing.T) {
	at := time.Unix(1700000000, 0)
	a := GenerateRootID("task", "alice", at, 1)
	b := GenerateRootID("task", "alice", at, 1)
	assert.Equal(t, a, b)

	c := GenerateRootID("task", "alice", at, 2)
	assert.NotEqual(t, a, c)

	require.True(t, len(a) == len("el-")+rootIDLength)
}

func TestChildID(t *testing.T) {
	assert.Equal(t, "el-abc123.1", ChildID("el-abc123", 1))
}

func TestContentDigestLength(t *testing.T) {
	d := ContentDigest([]byte("hello"))
	assert.Len(t, d, 64)
}
