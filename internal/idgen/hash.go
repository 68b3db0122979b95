// Package idgen generates content-addressed element identifiers and
// URL-safe slugs for branch/worktree naming. Grounded on the teacher's
// internal/idgen package: GenerateRootID adapts GenerateHashID's
// nonce-salted SHA-256 scheme from base36 to the spec's hex encoding,
// and Slug adapts GenerateSlug's character sanitization and length cap
// (no stop words are removed).
package idgen

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// rootIDLength is the number of hex characters in a generated root id,
// within the spec's 6-10 character range.
const rootIDLength = 8

// GenerateRootID derives an opaque root element id from the element's
// type, creator, creation time, and a monotonic per-process index, per
// spec.md §4.1's hierarchical id policy. The id is a SHA-256 digest of
// those inputs, truncated to rootIDLength hex characters; the
// monotonic index disambiguates same-instant collisions the way the
// teacher's GenerateHashID does with its nonce parameter.
func GenerateRootID(elementType, createdBy string, createdAt time.Time, monotonicIndex int64) string {
	content := fmt.Sprintf("%s|%s|%d|%d", elementType, createdBy, createdAt.UnixNano(), monotonicIndex)
	sum := sha256.Sum256([]byte(content))
	return "el-" + hex.EncodeToString(sum[:])[:rootIDLength]
}

// ChildID builds a hierarchical child id el-<parent>.<n> from a parent
// id and the next child number for that parent.
func ChildID(parentID string, n int) string {
	return fmt.Sprintf("%s.%d", parentID, n)
}

// ContentDigest returns the 64-hex-character SHA-256 digest of the given
// canonical bytes, used as the content-hash equality predicate in L2.
func ContentDigest(canonical []byte) string {
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}
