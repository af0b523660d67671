// Package quantization provides the int8 codec used by the vector log.
//
// Vectors are unit-normalized by their L2 norm and every component is mapped
// from [-1, 1] onto the signed byte range with a fixed scale factor:
//
//	codec := quantization.NewInt8Codec(quantization.DefaultScale)
//	codes := codec.Encode(vector)        // 384 floats → 384 bytes
//	x := codec.DecodeComponent(codes[0]) // ≈ vector[0] / ‖vector‖
//
// Scoring is asymmetric: the query stays in float32 and is multiplied against
// the dequantized stored codes component by component, see [Int8Codec.Dot].
//
// Memory reduction:
//   - 384-dim float32 = 1536 bytes
//   - int8 codes      = 384 bytes (4x)
//
// Reconstruction error per normalized component is at most 0.5/scale.
package quantization
