package idgen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlug(t *testing.T) {
	assert.Equal(t, "fix-the-bug", Slug("Fix The Bug!!", 30))
	assert.Equal(t, "a-b-c", Slug("A_B/C", 30))
	assert.Equal(t, "x", Slug("###", 30))
}

func TestSlugCapsLength(t *testing.T) {
	long := strings.Repeat("abcde-", 10)
	s := Slug(long, 30)
	assert.LessOrEqual(t, len(s), 30)
	assert.False(t, strings.HasSuffix(s, "-"))
}
