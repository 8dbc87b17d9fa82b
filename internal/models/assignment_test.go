package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommittedSetMergeKeepsWarnings(t *testing.T) {
	base := &CommittedSet{
		Assignments: []Assignment{{Period: 3, ClassName: "6A", Substitute: "Bob"}},
		Warnings:    []string{"w1"},
	}
	merged := base.Merge([]Assignment{{Period: 3, ClassName: "6A", Substitute: "Alice"}}, []string{"w1", "w2"})

	require.Len(t, merged.Assignments, 1)
	assert.Equal(t, "Alice", merged.Assignments[0].Substitute)
	assert.Equal(t, []string{"w1", "w2"}, merged.Warnings)
	assert.Equal(t, "Bob", base.Assignments[0].Substitute)
}

func TestCommittedSetSupersedeReplacesWarnings(t *testing.T) {
	base := &CommittedSet{
		Assignments: []Assignment{{Period: 3, ClassName: "6A", Substitute: "Bob"}},
		Warnings:    []string{"No substitute found for 6B period 4"},
	}
	next := base.Supersede([]Assignment{{Period: 4, ClassName: "6B", Substitute: "Alice"}}, []string{"w2", "w2"})

	require.Len(t, next.Assignments, 2)
	assert.Equal(t, []string{"w2"}, next.Warnings)

	cleared := next.Supersede(nil, nil)
	assert.Len(t, cleared.Assignments, 2)
	assert.Empty(t, cleared.Warnings)

	assert.Nil(t, (*CommittedSet)(nil).Supersede(nil, nil).Assignments)
}
