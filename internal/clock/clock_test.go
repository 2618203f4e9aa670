package clock

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewDedupesAndSorts(t *testing.T) {
	c := New([]int64{30, 10, 20, 10})
	assert.Equal(t, 3, c.TotalTicks())
	assert.Equal(t, int64(10), c.CurrentTimestamp())
	assert.Equal(t, int64(10), c.FirstTimestamp())
	assert.Equal(t, int64(30), c.LastTimestamp())
}

func TestAdvanceAndDt(t *testing.T) {
	c := New([]int64{100, 200, 350})
	assert.Equal(t, int64(0), c.DtSeconds())

	ok := c.Advance()
	assert.True(t, ok)
	assert.Equal(t, int64(200), c.CurrentTimestamp())
	assert.Equal(t, int64(100), c.DtSeconds())

	ok = c.Advance()
	assert.True(t, ok)
	assert.Equal(t, int64(150), c.DtSeconds())

	ok = c.Advance()
	assert.False(t, ok)
	assert.Equal(t, int64(350), c.CurrentTimestamp())
}

func TestUniform(t *testing.T) {
	c := Uniform(0, 10, 5)
	assert.Equal(t, []int64{0, 5, 10}, []int64{c.FirstTimestamp(), 5, c.LastTimestamp()})
	assert.Equal(t, 3, c.TotalTicks())
}

func TestEmptyClock(t *testing.T) {
	c := New(nil)
	assert.Equal(t, int64(0), c.CurrentTimestamp())
	assert.Equal(t, int64(0), c.FirstTimestamp())
	assert.Equal(t, int64(0), c.LastTimestamp())
	assert.False(t, c.Advance())
}
