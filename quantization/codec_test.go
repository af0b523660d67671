package quantization

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func unit(rng *rand.Rand, dim int) []float32 {
	v := make([]float32, dim)
	var sum float64
	for i := range v {
		v[i] = float32(rng.NormFloat64())
		sum += float64(v[i]) * float64(v[i])
	}
	n := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= n
	}
	return v
}

func TestInt8Codec_Encode(t *testing.T) {
	c := NewInt8Codec(DefaultScale)

	t.Run("axis", func(t *testing.T) {
		assert.Equal(t, []int8{127, 0, 0, 0}, c.Encode([]float32{1, 0, 0, 0}))
		assert.Equal(t, []int8{0, -127, 0, 0}, c.Encode([]float32{0, -5, 0, 0}))
	})

	t.Run("normalizes", func(t *testing.T) {
		// 3-4-5 triangle: 0.6*127 = 76.2, 0.8*127 = 101.6
		assert.Equal(t, []int8{76, 102}, c.Encode([]float32{3, 4}))
		assert.Equal(t, c.Encode([]float32{3, 4}), c.Encode([]float32{30, 40}))
	})

	t.Run("zero vector", func(t *testing.T) {
		assert.Equal(t, []int8{0, 0, 0}, c.Encode([]float32{0, 0, 0}))
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, c.Encode(nil))
	})

	t.Run("EncodeInto matches Encode", func(t *testing.T) {
		v := []float32{0.1, -0.7, 0.3, 0.2}
		buf := make([]byte, len(v))
		c.EncodeInto(buf, v)
		codes := c.Encode(v)
		for i := range v {
			assert.Equal(t, codes[i], int8(buf[i]))
		}
	})
}

func TestInt8Codec_DefaultScaleFallback(t *testing.T) {
	assert.Equal(t, DefaultScale, NewInt8Codec(0).Scale())
	assert.Equal(t, DefaultScale, NewInt8Codec(-3).Scale())
	assert.Equal(t, float32(64), NewInt8Codec(64).Scale())
}

func TestInt8Codec_LargeScaleSaturates(t *testing.T) {
	c := NewInt8Codec(200)
	assert.Equal(t, []int8{127, -128}, c.Encode([]float32{1, -1}))
}

func TestInt8Codec_RoundTripBound(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for _, scale := range []float32{127, 64, 16} {
		c := NewInt8Codec(scale)
		for range 50 {
			v := unit(rng, 384)
			codes := make([]byte, len(v))
			c.EncodeInto(codes, v)
			decoded := c.Decode(codes)

			for i := range v {
				assert.LessOrEqual(t, math.Abs(float64(v[i]-decoded[i])), 0.5/float64(c.Scale())+1e-6)
			}

			// dot(v, decode(encode(v))) ≥ 1 - D*0.5/scale
			dot := c.Dot(v, codes)
			assert.GreaterOrEqual(t, float64(dot), 1-float64(len(v))*0.5/float64(scale))
		}
	}
}

func TestInt8Codec_Dot(t *testing.T) {
	c := NewInt8Codec(DefaultScale)
	codes := make([]byte, 4)
	c.EncodeInto(codes, []float32{1, 0, 0, 0})

	assert.InDelta(t, 1.0, c.Dot([]float32{1, 0, 0, 0}, codes), 1e-6)
	assert.InDelta(t, 0.0, c.Dot([]float32{0, 1, 0, 0}, codes), 1e-6)
	// The query is not normalized.
	assert.InDelta(t, 2.0, c.Dot([]float32{2, 0, 0, 0}, codes), 1e-6)

	var want float32
	for j, q := range []float32{0.5, 0.5, 0.5, 0.5} {
		want += q * c.DecodeComponent(int8(codes[j]))
	}
	assert.InDelta(t, want, c.Dot([]float32{0.5, 0.5, 0.5, 0.5}, codes), 1e-6)
}

func BenchmarkInt8Codec_Dot(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	c := NewInt8Codec(DefaultScale)
	v := unit(rng, 384)
	codes := make([]byte, len(v))
	c.EncodeInto(codes, v)
	q := unit(rng, 384)

	b.ResetTimer()
	for b.Loop() {
		_ = c.Dot(q, codes)
	}
}
