package snapshot

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/hupe1980/revsearch"
	"github.com/hupe1980/revsearch/blobstore"
	"github.com/hupe1980/revsearch/codec"
)

const (
	// ManifestName is the blob written last; its presence marks a complete snapshot.
	ManifestName = "manifest.json"
	// CurrentVersion is the version of the manifest format.
	CurrentVersion = 1
)

// Manifest describes a snapshot.
type Manifest struct {
	Version     int         `json:"version"`
	Name        string      `json:"name"`
	CreatedAt   time.Time   `json:"created_at"`
	Compression Compression `json:"compression"`
	Codec       string      `json:"codec"`
	Dimension   int         `json:"dimension"`
	Scale       float32     `json:"scale"`
	Count       int         `json:"count"`
	Files       []FileInfo  `json:"files"`
}

// FileInfo describes one store file inside a snapshot.
type FileInfo struct {
	Name       string `json:"name"`
	Blob       string `json:"blob"`
	Size       int64  `json:"size"`
	StoredSize int64  `json:"stored_size"`
	CRC32C     uint32 `json:"crc32c"`
}

// StoredSize sums the compressed sizes.
func (m *Manifest) StoredSize() int64 {
	var n int64
	for _, f := range m.Files {
		n += f.StoredSize
	}
	return n
}

// Size sums the uncompressed sizes.
func (m *Manifest) Size() int64 {
	var n int64
	for _, f := range m.Files {
		n += f.Size
	}
	return n
}

func manifestPath(name string) string {
	return path.Join(name, ManifestName)
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// ReadManifest loads the manifest of snapshot name.
func ReadManifest(ctx context.Context, src blobstore.BlobStore, name string) (*Manifest, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	data, err := blobstore.ReadAll(ctx, src, manifestPath(name))
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, err
	}

	var m Manifest
	if err := codec.Default.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, name, err)
	}
	if m.Version != CurrentVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, m.Version)
	}
	if err := m.validate(name); err != nil {
		return nil, err
	}
	return &m, nil
}

// storeFiles are the only names a snapshot may restore.
var storeFiles = map[string]bool{
	revsearch.VectorFile:   true,
	revsearch.HeaderFile:   true,
	revsearch.MetadataFile: true,
}

// validate rejects manifests that would restore files other than the store
// files or read blobs outside the snapshot's own prefix.
func (m *Manifest) validate(name string) error {
	if m.Name != name {
		return fmt.Errorf("%w: snapshot %s names itself %q", ErrCorrupt, name, m.Name)
	}
	seen := make(map[string]bool, len(m.Files))
	for _, f := range m.Files {
		if !storeFiles[f.Name] || seen[f.Name] {
			return fmt.Errorf("%w: unexpected file %q", ErrCorrupt, f.Name)
		}
		seen[f.Name] = true

		rest, ok := strings.CutPrefix(f.Blob, name+"/")
		if !ok || rest == "" || rest == "." || rest == ".." || strings.ContainsAny(rest, `/\`) {
			return fmt.Errorf("%w: blob %q outside snapshot %s", ErrCorrupt, f.Blob, name)
		}
	}
	return nil
}

func writeManifest(ctx context.Context, dst blobstore.BlobStore, m *Manifest) error {
	data, err := codec.Default.Marshal(m)
	if err != nil {
		return err
	}
	return dst.Put(ctx, manifestPath(m.Name), data)
}

// List returns the manifests of all complete snapshots, oldest first.
func List(ctx context.Context, src blobstore.BlobStore) ([]*Manifest, error) {
	names, err := src.List(ctx, "")
	if err != nil {
		return nil, err
	}

	var out []*Manifest
	for _, n := range names {
		dir, file := path.Split(n)
		if file != ManifestName || strings.Count(n, "/") != 1 {
			continue
		}
		m, err := ReadManifest(ctx, src, strings.TrimSuffix(dir, "/"))
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Name < out[j].Name
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Delete removes snapshot name. The manifest goes first so a partially
// deleted snapshot is never listed.
func Delete(ctx context.Context, dst blobstore.BlobStore, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	blobs, err := dst.List(ctx, name+"/")
	if err != nil {
		return err
	}
	if len(blobs) == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err := dst.Delete(ctx, manifestPath(name)); err != nil {
		return err
	}
	for _, b := range blobs {
		if b == manifestPath(name) {
			continue
		}
		if err := dst.Delete(ctx, b); err != nil {
			return err
		}
	}
	return nil
}
