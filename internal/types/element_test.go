package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestElementValidate(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		el      Element
		wantErr string
	}{
		{
			name: "valid element",
			el: Element{
				ID:        "el-abc123",
				Type:      ElementTask,
				CreatedAt: now,
				UpdatedAt: now,
				CreatedBy: "alice",
			},
		},
		{
			name: "missing id",
			el: Element{
				Type:      ElementTask,
				CreatedAt: now,
				UpdatedAt: now,
			},
			wantErr: "id is required",
		},
		{
			name: "invalid type",
			el: Element{
				ID:        "el-abc123",
				Type:      ElementType("bogus"),
				CreatedAt: now,
				UpdatedAt: now,
			},
			wantErr: "invalid element type",
		},
		{
			name: "updatedAt before createdAt",
			el: Element{
				ID:        "el-abc123",
				Type:      ElementTask,
				CreatedAt: now,
				UpdatedAt: now.Add(-time.Hour),
			},
			wantErr: "updatedAt must not precede createdAt",
		},
		{
			name: "duplicate tags",
			el: Element{
				ID:        "el-abc123",
				Type:      ElementTask,
				CreatedAt: now,
				UpdatedAt: now,
				Tags:      []string{"x", "x"},
			},
			wantErr: "duplicate tag",
		},
		{
			name: "invalid tag characters",
			el: Element{
				ID:        "el-abc123",
				Type:      ElementTask,
				CreatedAt: now,
				UpdatedAt: now,
				Tags:      []string{"has space"},
			},
			wantErr: "invalid characters",
		},
		{
			name: "too many tags",
			el: Element{
				ID:        "el-abc123",
				Type:      ElementTask,
				CreatedAt: now,
				UpdatedAt: now,
				Tags:      manyTags(51),
			},
			wantErr: "too many tags",
		},
		{
			name: "reserved metadata key",
			el: Element{
				ID:        "el-abc123",
				Type:      ElementTask,
				CreatedAt: now,
				UpdatedAt: now,
				Metadata:  []byte(`{"_el_internal":1}`),
			},
			wantErr: "reserved prefix",
		},
		{
			name: "metadata must be an object",
			el: Element{
				ID:        "el-abc123",
				Type:      ElementTask,
				CreatedAt: now,
				UpdatedAt: now,
				Metadata:  []byte(`[1,2,3]`),
			},
			wantErr: "must be a JSON object",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.el.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestElementIsTombstone(t *testing.T) {
	e := Element{}
	assert.False(t, e.IsTombstone())

	now := time.Now()
	e.DeletedAt = &now
	assert.True(t, e.IsTombstone())
}

func TestElementMetadataValue(t *testing.T) {
	e := Element{Metadata: []byte(`{"assignee":"el-ag1","priority":3}`)}

	var assignee string
	ok, err := e.MetadataValue("assignee", &assignee)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "el-ag1", assignee)

	var missing string
	ok, err = e.MetadataValue("nope", &missing)
	require.NoError(t, err)
	assert.False(t, ok)
}

func manyTags(n int) []string {
	tags := make([]string, n)
	for i := range tags {
		tags[i] = "tag" + string(rune('a'+i%26)) + string(rune('0'+i/26))
	}
	return tags
}
