package quantization

import "math"

// DefaultScale maps the normalized range [-1, 1] onto [-127, 127].
const DefaultScale float32 = 127

// Int8Codec quantizes float32 vectors to one signed byte per dimension.
//
// A vector is divided by its L2 norm (a zero norm is treated as 1), every
// component is clamped to [-1, 1], multiplied by the scale, rounded half away
// from zero and narrowed to int8. The codec is stateless apart from the scale
// and safe for concurrent use.
type Int8Codec struct {
	scale    float32
	invScale float32
}

// NewInt8Codec creates a codec with the given scale. A non-positive scale
// falls back to DefaultScale.
func NewInt8Codec(scale float32) *Int8Codec {
	if !(scale > 0) {
		scale = DefaultScale
	}
	return &Int8Codec{scale: scale, invScale: 1 / scale}
}

// Scale returns the scale factor.
func (c *Int8Codec) Scale() float32 { return c.scale }

// Encode quantizes v into a fresh slice of len(v) codes.
func (c *Int8Codec) Encode(v []float32) []int8 {
	buf := make([]byte, len(v))
	c.EncodeInto(buf, v)
	out := make([]int8, len(v))
	for i, b := range buf {
		out[i] = int8(b)
	}
	return out
}

// EncodeInto writes the codes for v into dst, which must hold len(v) bytes.
// Each byte is the two's complement representation of the int8 code.
func (c *Int8Codec) EncodeInto(dst []byte, v []float32) {
	dst = dst[:len(v)]

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := float32(math.Sqrt(sum))
	if norm == 0 {
		norm = 1
	}

	for i, x := range v {
		n := x / norm
		if n > 1 {
			n = 1
		} else if n < -1 {
			n = -1
		}
		q := math.Round(float64(n * c.scale))
		// Scales above 127 would overflow the signed byte.
		if q > math.MaxInt8 {
			q = math.MaxInt8
		} else if q < math.MinInt8 {
			q = math.MinInt8
		}
		dst[i] = byte(int8(q))
	}
}

// DecodeComponent reconstructs a single normalized component.
func (c *Int8Codec) DecodeComponent(code int8) float32 {
	return float32(code) * c.invScale
}

// Decode reconstructs the full normalized vector.
func (c *Int8Codec) Decode(codes []byte) []float32 {
	out := make([]float32, len(codes))
	for i, b := range codes {
		out[i] = c.DecodeComponent(int8(b))
	}
	return out
}

// Dot computes Σ query[j] · decode(codes[j]) without materializing the
// decoded vector. len(codes) must be at least len(query).
func (c *Int8Codec) Dot(query []float32, codes []byte) float32 {
	codes = codes[:len(query)]
	var sum float32
	for j, q := range query {
		sum += q * float32(int8(codes[j]))
	}
	return sum * c.invScale
}
