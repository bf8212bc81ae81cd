// Package quantize maps bounded floating-point domains onto fixed-width
// unsigned integers so they can be used as ordered, filterable index fields.
//
// The integer width is 32 bits: the index engine stores numbers as float64
// and every uint32 survives that round trip exactly.
package quantize

import (
	"fmt"
	"math"
)

// Max is the largest quantized value. It always encodes the upper bound of
// the range.
const Max = math.MaxUint32

// epsilon matches the machine epsilon of float64.
const epsilon = 2.220446049250313e-16

// Encode maps v in [min, max] to [0, Max]. Values outside the range are
// clamped. Panics if min >= max or v is NaN.
func Encode(v, min, max float64) uint32 {
	checkRange(min, max)
	if math.IsNaN(v) {
		panic("quantize: cannot encode NaN")
	}
	if math.Abs(v-max) <= epsilon {
		return Max
	}
	if math.Abs(v-min) <= epsilon {
		return 0
	}
	norm := (math.Min(math.Max(v, min), max) - min) / (max - min)
	return uint32(math.Round(float64(Max) * norm))
}

// Decode is the inverse of Encode. 0 and Max map exactly onto min and max.
// Panics if min >= max.
func Decode(u uint32, min, max float64) float64 {
	checkRange(min, max)
	switch u {
	case Max:
		return max
	case 0:
		return min
	}
	return min + float64(u)*((max-min)/float64(Max))
}

// Step returns the width of one quantization step for the range.
func Step(min, max float64) float64 {
	checkRange(min, max)
	return (max - min) / float64(Max)
}

func checkRange(min, max float64) {
	if !(min < max) {
		panic(fmt.Sprintf("quantize: invalid range [%v, %v]", min, max))
	}
}
