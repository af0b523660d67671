// Package vectorlog implements the append-only quantized vector log.
//
// The data file is a flat sequence of fixed-size records: record i holds the
// D int8 codes of logical id i and occupies bytes [i*D, (i+1)*D). There is no
// framing, no per-record checksum and no in-file header, so the file size is
// always a whole multiple of D after a successful append and the record count
// is derived from the size on every call.
//
// The dimension and scale are persisted in a 20-byte sidecar file next to the
// data file (path + ".hdr"):
//
//	+--------+---------+-------+-----------+-----------+
//	| "RSVL" | version |  dim  | scale f32 | crc32c    |
//	| 4 B    | u32 LE  | u32 LE| bits LE   | of [0:16] |
//	+--------+---------+-------+-----------+-----------+
//
// A data file without a sidecar is adopted on open when its size is a whole
// number of records.
//
// The log takes an advisory exclusive lock on path + ".lock" so that a second
// process cannot append to the same log concurrently. Tools that replace the
// data file hold the same lock through AcquireLock and swap files with
// Install, whose marker lets Open finish a replacement cut short by a crash.
// Within a process the caller serializes appends against reads.
package vectorlog
