// Package blobstore provides the storage abstraction used for store snapshots.
//
// BlobStore is the interface for reading and writing named blobs (compressed
// store files, manifests). Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: local directory, atomic writes via rename
//   - MemoryStore: in-memory, for tests
//   - s3.Store: Amazon S3 with range reads and multipart uploads
//   - minio.Store: MinIO and other S3-compatible servers
//
// # Custom Implementations
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)            // Open for reading
//	    Create(ctx, name) (WritableBlob, error)  // Create for streaming writes
//	    Put(ctx, name, data) error               // Atomic write
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
package blobstore
