// Package hash provides the CRC32-Castagnoli (CRC32C) checksum used for
// integrity checks of the vector log header and snapshot blobs.
//
// For one-shot checksums:
//
//	checksum := hash.CRC32C(data)
//
// For streaming checksums:
//
//	h := hash.NewCRC32C()
//	_, _ = io.Copy(h, r)
//	checksum := h.Sum32()
package hash
