package s3

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/hupe1980/revsearch/internal/hash"
)

// UploadConfig tunes snapshot uploads. Zero PartSize or Concurrency keep
// the upload manager defaults.
type UploadConfig struct {
	PartSize    int64
	Concurrency int
	// EnableChecksum sends a CRC32C with every object so S3 rejects
	// corrupted uploads.
	EnableChecksum bool
	// LeavePartsOnError skips aborting a failed multipart upload.
	LeavePartsOnError bool
}

// DefaultUploadConfig uses 8 MiB parts, five parts in flight and checksums.
func DefaultUploadConfig() UploadConfig {
	return UploadConfig{
		PartSize:       8 << 20,
		Concurrency:    5,
		EnableChecksum: true,
	}
}

func newUploader(client Client, cfg UploadConfig) *manager.Uploader {
	return manager.NewUploader(client, func(u *manager.Uploader) {
		if cfg.PartSize > 0 {
			u.PartSize = cfg.PartSize
		}
		if cfg.Concurrency > 0 {
			u.Concurrency = cfg.Concurrency
		}
		u.LeavePartsOnError = cfg.LeavePartsOnError
	})
}

func computeCRC32C(data []byte) string {
	return hash.Base64(hash.CRC32C(data))
}

// putObject uploads a small blob such as a manifest in a single request.
func putObject(ctx context.Context, client Client, bucket, key string, data []byte, checksum bool) error {
	in := &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if checksum {
		in.ChecksumCRC32C = aws.String(computeCRC32C(data))
	}
	_, err := client.PutObject(ctx, in)
	return err
}

// multipartWriter streams writes into uploader.Upload running in its own
// goroutine. The object exists once Close returns nil.
type multipartWriter struct {
	pw     *io.PipeWriter
	result chan error

	mu   sync.Mutex
	done bool
	err  error
}

func startUpload(ctx context.Context, uploader *manager.Uploader, bucket, key string, checksum bool) *multipartWriter {
	pr, pw := io.Pipe()
	w := &multipartWriter{pw: pw, result: make(chan error, 1)}

	in := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   pr,
	}
	if checksum {
		in.ChecksumAlgorithm = types.ChecksumAlgorithmCrc32c
	}

	go func() {
		_, err := uploader.Upload(ctx, in)
		_ = pr.CloseWithError(err)
		w.result <- err
	}()
	return w
}

func (w *multipartWriter) Write(p []byte) (int, error) { return w.pw.Write(p) }

func (w *multipartWriter) Sync() error { return nil }

func (w *multipartWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.done {
		return w.err
	}
	w.done = true
	if w.err = w.pw.Close(); w.err != nil {
		return w.err
	}
	w.err = <-w.result
	return w.err
}

// Abort fails the body read so the upload manager aborts the multipart
// upload.
func (w *multipartWriter) Abort() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.done {
		return nil
	}
	w.done = true
	w.err = context.Canceled
	_ = w.pw.CloseWithError(context.Canceled)
	<-w.result
	return nil
}
