package quantize

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncode_Bounds(t *testing.T) {
	ranges := []struct {
		name     string
		min, max float64
	}{
		{"latitude", -90, 90},
		{"longitude", -180, 180},
		{"rating", -3, 3},
		{"unit", 0, 1},
	}

	for _, r := range ranges {
		t.Run(r.name, func(t *testing.T) {
			assert.Equal(t, uint32(0), Encode(r.min, r.min, r.max))
			assert.Equal(t, uint32(Max), Encode(r.max, r.min, r.max))
			assert.Equal(t, r.min, Decode(0, r.min, r.max))
			assert.Equal(t, r.max, Decode(Max, r.min, r.max))
		})
	}
}

func TestEncodeDecode_RoundTripWithinOneStep(t *testing.T) {
	min, max := -180.0, 180.0
	step := Step(min, max)

	for v := min; v <= max; v += 0.731 {
		got := Decode(Encode(v, min, max), min, max)
		assert.InDelta(t, v, got, step, "value %v", v)
		assert.GreaterOrEqual(t, got, min)
		assert.LessOrEqual(t, got, max)
	}
}

func TestEncode_PreservesOrder(t *testing.T) {
	min, max := -3.0, 3.0
	prev := Encode(min, min, max)
	for _, v := range []float64{-2.5, -1, -0.001, 0, 0.001, 0.25, 1.5, 2.999, 3} {
		cur := Encode(v, min, max)
		assert.Greater(t, cur, prev, "value %v", v)
		prev = cur
	}
}

func TestEncode_ClampsOutOfRange(t *testing.T) {
	assert.Equal(t, uint32(0), Encode(-100, -90, 90))
	assert.Equal(t, uint32(Max), Encode(100, -90, 90))
}

func TestEncode_MidpointIsHalfway(t *testing.T) {
	got := Encode(0, -1, 1)
	assert.InDelta(t, float64(Max)/2, float64(got), 1)
}

func TestEncode_PanicsOnInvalidRange(t *testing.T) {
	assert.Panics(t, func() { Encode(0, 1, 1) })
	assert.Panics(t, func() { Encode(0, 2, 1) })
	assert.Panics(t, func() { Decode(0, 1, 1) })
	assert.Panics(t, func() { Encode(math.NaN(), 0, 1) })
}
