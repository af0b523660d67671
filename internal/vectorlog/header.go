package vectorlog

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/hupe1980/revsearch/internal/hash"
)

const (
	headerMagic   = "RSVL"
	headerVersion = 1

	// HeaderSize is the size of the sidecar header in bytes.
	HeaderSize = 20

	// HeaderSuffix is appended to the data path to name the sidecar.
	HeaderSuffix = ".hdr"
)

// Header describes the layout of a vector log.
type Header struct {
	Version uint32
	Dim     uint32
	Scale   float32
}

// Encode serializes the header including its checksum.
func (h *Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:4], headerMagic)
	binary.LittleEndian.PutUint32(buf[4:], h.Version)
	binary.LittleEndian.PutUint32(buf[8:], h.Dim)
	binary.LittleEndian.PutUint32(buf[12:], math.Float32bits(h.Scale))
	binary.LittleEndian.PutUint32(buf[16:], hash.CRC32C(buf[:16]))
	return buf
}

// DecodeHeader parses and verifies a sidecar header.
func DecodeHeader(buf []byte) (*Header, error) {
	if len(buf) != HeaderSize {
		return nil, fmt.Errorf("%w: size %d (expected %d)", ErrCorruptHeader, len(buf), HeaderSize)
	}
	if string(buf[0:4]) != headerMagic {
		return nil, fmt.Errorf("%w: invalid magic %q", ErrCorruptHeader, buf[0:4])
	}
	if want := binary.LittleEndian.Uint32(buf[16:]); !hash.Verify(buf[:16], want) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorruptHeader)
	}
	h := &Header{
		Version: binary.LittleEndian.Uint32(buf[4:]),
		Dim:     binary.LittleEndian.Uint32(buf[8:]),
		Scale:   math.Float32frombits(binary.LittleEndian.Uint32(buf[12:])),
	}
	if h.Version != headerVersion {
		return nil, fmt.Errorf("%w: version %d (expected %d)", ErrCorruptHeader, h.Version, headerVersion)
	}
	if h.Dim == 0 || !(h.Scale > 0) {
		return nil, fmt.Errorf("%w: dim %d scale %g", ErrCorruptHeader, h.Dim, h.Scale)
	}
	return h, nil
}
