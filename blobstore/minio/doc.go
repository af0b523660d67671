// Package minio stores revsearch snapshots on MinIO or another
// S3-compatible server through the minio-go client.
//
// Wrap an existing client:
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds: credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	})
//	store := minioblob.NewStore(client, "revsearch", "snapshots/")
//
// or let New build one from a Config and create the bucket on first use:
//
//	store, err := minioblob.New(ctx, minioblob.Config{
//	    Endpoint:     "localhost:9000",
//	    AccessKey:    "minioadmin",
//	    SecretKey:    "minioadmin",
//	    Bucket:       "revsearch",
//	    CreateBucket: true,
//	})
//
// Snapshot files are streamed with PutObject and unknown size, so a
// restore never needs the AWS SDK.
package minio
