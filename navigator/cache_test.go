package navigator

import (
	"testing"

	"github.com/gigapi/gigapi-zoomview/core"
	"github.com/stretchr/testify/assert"
)

func TestCacheSettle(t *testing.T) {
	c := NewCache()
	r := &core.ViewResult{Series: "temp"}

	assert.Equal(t, 0, c.Settle(1, r, []uint64{2, 3, 4, 5}))
	assert.True(t, c.PutIfLive(2, r))
	assert.True(t, c.PutIfLive(3, r))
	assert.False(t, c.PutIfLive(9, r))
	assert.Equal(t, 3, c.Len())

	// moving to 3 keeps 3 and its neighbours 1 and 2
	assert.Equal(t, 0, c.Settle(3, r, []uint64{1, 2, 6, 7}))
	assert.ElementsMatch(t, []uint64{1, 2, 3}, c.Keys())

	assert.Equal(t, 3, c.Settle(10, r, []uint64{11, 12, 13, 14}))
	assert.ElementsMatch(t, []uint64{10}, c.Keys())
	assert.False(t, c.IsLive(1))
	assert.True(t, c.IsLive(13))

	got, ok := c.Get(10)
	assert.True(t, ok)
	assert.Same(t, r, got)
	assert.False(t, c.Has(11))
}
