package minio

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/minio/minio-go/v7"
)

var errAborted = errors.New("minio: upload aborted")

// object reads a stored blob with ranged GETs.
type object struct {
	client *minio.Client
	bucket string
	key    string
	size   int64
}

func (o *object) Size() int64  { return o.size }
func (o *object) Close() error { return nil }

func (o *object) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	if off < 0 || off >= o.size {
		return nil, io.EOF
	}
	var opts minio.GetObjectOptions
	if err := opts.SetRange(off, min(off+length, o.size)-1); err != nil {
		return nil, err
	}
	obj, err := o.client.GetObject(ctx, o.bucket, o.key, opts)
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func (o *object) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if off < 0 || off >= o.size {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	avail := min(int64(len(p)), o.size-off)
	rc, err := o.ReadRange(ctx, off, avail)
	if err != nil {
		return 0, err
	}
	defer func() { _ = rc.Close() }()

	n, err := io.ReadFull(rc, p[:avail])
	switch {
	case errors.Is(err, io.ErrUnexpectedEOF):
		return n, io.EOF
	case err != nil:
		return n, err
	case avail < int64(len(p)):
		return n, io.EOF
	}
	return n, nil
}

// upload feeds a background PutObject through a pipe.
type upload struct {
	pw     *io.PipeWriter
	result chan error

	mu   sync.Mutex
	done bool
	err  error
}

func (u *upload) Write(p []byte) (int, error) { return u.pw.Write(p) }

func (u *upload) Sync() error { return nil }

func (u *upload) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.done {
		return u.err
	}
	u.done = true
	if u.err = u.pw.Close(); u.err != nil {
		return u.err
	}
	u.err = <-u.result
	return u.err
}

// Abort breaks the pipe so PutObject fails and nothing is stored.
func (u *upload) Abort() error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.done {
		return nil
	}
	u.done = true
	u.err = errAborted
	_ = u.pw.CloseWithError(errAborted)
	<-u.result
	return nil
}
