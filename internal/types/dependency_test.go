package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDependencyValidate(t *testing.T) {
	valid := Dependency{BlockedID: "el-a", BlockerID: "el-b", Type: DepBlocks}
	require.NoError(t, valid.Validate())

	selfLoop := Dependency{BlockedID: "el-a", BlockerID: "el-a", Type: DepBlocks}
	err := selfLoop.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "self-loop")

	badType := Dependency{BlockedID: "el-a", BlockerID: "el-b", Type: DependencyType("bogus")}
	require.Error(t, badType.Validate())
}

func TestDependencyIsBlocking(t *testing.T) {
	assert.True(t, DepBlocks.IsBlocking())
	assert.True(t, DepAwaits.IsBlocking())
	assert.True(t, DepParentChild.IsBlocking())
	assert.False(t, DepRelatesTo.IsBlocking())
	assert.False(t, DepMentions.IsBlocking())
	assert.False(t, DepReferences.IsBlocking())
}

func TestDependencyKeyUniqueness(t *testing.T) {
	a := Dependency{BlockedID: "el-a", BlockerID: "el-b", Type: DepBlocks}
	b := Dependency{BlockedID: "el-a", BlockerID: "el-b", Type: DepAwaits}
	assert.NotEqual(t, a.Key(), b.Key())
}
