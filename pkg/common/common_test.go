package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUUIDint64Unique(t *testing.T) {
	seen := make(map[int64]bool)
	for i := 0; i < 1000; i++ {
		id := UUIDint64()
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
}

func TestSha256HashWithSalt(t *testing.T) {
	a := Sha256HashWithSalt("secret", "salt1")
	b := Sha256HashWithSalt("secret", "salt2")
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, Sha256HashWithSalt("secret", "salt1"))
}

func TestSplitJoinIDs(t *testing.T) {
	assert.Equal(t, []int64{1, 22, 333}, SplitIDs(" 1,22, x ,333,"))
	assert.Nil(t, SplitIDs(""))
	assert.Equal(t, "4,5", JoinIDs([]int64{4, 5}))
}
