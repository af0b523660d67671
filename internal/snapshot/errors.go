package snapshot

import (
	"errors"

	"github.com/hupe1980/revsearch/blobstore"
)

var (
	// ErrNotFound is returned when a snapshot does not exist.
	ErrNotFound = errors.New("snapshot not found")
	// ErrExists is returned when a snapshot name or restore target is taken.
	ErrExists = errors.New("snapshot target exists")
	// ErrInvalidName is returned for empty names or names containing a path separator.
	ErrInvalidName = errors.New("invalid snapshot name")
	// ErrChecksum is returned when restored data does not match the manifest.
	ErrChecksum = errors.New("snapshot checksum mismatch")
	// ErrCorrupt is returned when a manifest cannot be decoded.
	ErrCorrupt = errors.New("corrupt snapshot manifest")
	// ErrUnsupportedVersion is returned for manifests written by a newer format.
	ErrUnsupportedVersion = errors.New("unsupported snapshot version")
)

func isNotFound(err error) bool {
	return errors.Is(err, blobstore.ErrNotFound)
}
