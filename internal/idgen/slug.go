package idgen

import (
	"regexp"
	"strings"
)

// nonSlugChar matches any character not allowed in a branch/worktree
// slug: lowercase letters, digits, and dashes.
var nonSlugChar = regexp.MustCompile(`[^a-z0-9-]+`)

var multiDash = regexp.MustCompile(`-+`)

// Slug lowercases s, replaces every run of disallowed characters with a
// single dash, trims leading/trailing dashes, and caps the result at
// maxLen characters. Used for agent/worker names and task-title-derived
// slugs feeding generateBranchName/generateWorktreePath (spec.md §4.4).
func Slug(s string, maxLen int) string {
	out := strings.ToLower(s)
	out = nonSlugChar.ReplaceAllString(out, "-")
	out = multiDash.ReplaceAllString(out, "-")
	out = strings.Trim(out, "-")
	if len(out) > maxLen {
		out = out[:maxLen]
		out = strings.TrimRight(out, "-")
	}
	if out == "" {
		out = "x"
	}
	return out
}
