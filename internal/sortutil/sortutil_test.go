package sortutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortedKeys(t *testing.T) {
	assert.Equal(t, []string{"Cat", "Dog", "Stage (stage)"}, SortedKeys(map[string]int{"Stage (stage)": 1, "Dog": 2, "Cat": 3}))
	assert.Empty(t, SortedKeys(map[string]bool{}))
}

func TestSortedLeavesInputAlone(t *testing.T) {
	in := []string{"b", "a"}
	assert.Equal(t, []string{"a", "b"}, Sorted(in))
	assert.Equal(t, []string{"b", "a"}, in)
}
