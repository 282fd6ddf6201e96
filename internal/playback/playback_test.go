package playback

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWindow(t *testing.T) {
	w := Window{Start: 30, End: 45}

	assert.True(t, w.Valid())
	assert.False(t, Window{Start: 5, End: 5}.Valid())
	assert.False(t, Window{Start: -1, End: 5}.Valid())

	assert.True(t, w.Contains(30))
	assert.False(t, w.Contains(45))

	assert.Equal(t, 30.0, w.Clamp(10))
	assert.Equal(t, 45.0, w.Clamp(50))
	assert.Equal(t, 30.0, w.Clamp(math.NaN()))
	assert.Equal(t, 40.0, w.Clamp(40))

	assert.Equal(t, 30.0, w.StartFrom(45))
	assert.Equal(t, 30.0, w.StartFrom(29.9))
	assert.Equal(t, 33.0, w.StartFrom(33))

	assert.True(t, w.Overrun(45.2))
	assert.False(t, w.Overrun(44.99))
	assert.Equal(t, 15.0, w.Duration())
}

func TestUnitConversions(t *testing.T) {
	assert.Equal(t, int64(30000), millis(30))
	assert.Equal(t, int64(1235), millis(1.2345))
	assert.Equal(t, 45.2, seconds(45200))
	assert.Equal(t, 0.0, clampVolume(-1))
	assert.Equal(t, 1.0, clampVolume(3))
}
