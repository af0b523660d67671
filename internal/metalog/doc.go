// Package metalog implements the append-only JSON-lines metadata log.
//
// Each record is one JSON document terminated by '\n'. Record i is the i-th
// line of the file, which pairs it with record i of the vector log. A trailing
// line without a terminating newline is a torn write: it is not counted and
// appends are refused until it is trimmed.
//
// An in-memory index of line offsets is built on open and extended on append,
// so positional reads are a single ReadAt.
package metalog
