// Package s3 stores revsearch snapshots in an Amazon S3 bucket.
//
//	store, err := s3.New(ctx, "reviews-backup",
//	    s3.WithPrefix("revsearch/"),
//	    s3.WithRegion("eu-central-1"),
//	)
//
// Snapshot files are uploaded through the multipart upload manager with a
// CRC32C checksum per object. Reads of a restored file use ranged GETs, and
// listing follows continuation tokens until the prefix is exhausted.
package s3
